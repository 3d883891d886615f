// Command negotiatord runs the negotiation engine's HTTP and WebSocket
// façade (spec §6.1, §6.2), grounded on the teacher's
// example/cmd/assistant/main.go wiring and registry/cmd/registry/main.go's
// signal-handling shape.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	sdk "github.com/anthropics/anthropic-sdk-go"
	"goa.design/clue/log"

	"github.com/resonantlabs/negotiator/agentregistry"
	"github.com/resonantlabs/negotiator/config"
	"github.com/resonantlabs/negotiator/engine"
	"github.com/resonantlabs/negotiator/events"
	"github.com/resonantlabs/negotiator/events/pulse"
	"github.com/resonantlabs/negotiator/persistence"
	mongopersist "github.com/resonantlabs/negotiator/persistence/mongo"
	"github.com/resonantlabs/negotiator/profile"
	profileanthropic "github.com/resonantlabs/negotiator/profile/anthropic"
	"github.com/resonantlabs/negotiator/reasoning"
	reasoninganthropic "github.com/resonantlabs/negotiator/reasoning/anthropic"
	"github.com/resonantlabs/negotiator/reasoning/ratelimit"
	"github.com/resonantlabs/negotiator/resonance"
	"github.com/resonantlabs/negotiator/scene"
	"github.com/resonantlabs/negotiator/session"
	"github.com/resonantlabs/negotiator/skills"
	transporthttp "github.com/resonantlabs/negotiator/transport/http"
	"github.com/resonantlabs/negotiator/transport/ws"
	"github.com/resonantlabs/negotiator/vector"
	"github.com/resonantlabs/negotiator/vector/hashing"
	"github.com/resonantlabs/negotiator/vector/openai"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
)

func main() {
	dbgF := flag.Bool("debug", false, "enable debug logs")
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}

	if err := run(ctx); err != nil {
		log.Fatal(ctx, err)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	store := session.NewStore()
	scenes := scene.NewRegistry()
	agents := agentregistry.NewRegistry()

	bus, err := buildBus(cfg)
	if err != nil {
		return err
	}

	encoder, err := buildEncoder(cfg)
	if err != nil {
		return err
	}
	detector := resonance.New()

	profileSource, reasoningClient := buildModelBackends(cfg, agents)
	agents.RegisterSource("default", profileSource)

	toolRegistry, err := skills.NewToolRegistry()
	if err != nil {
		return err
	}

	eng := engine.New(
		store, bus, scenes, agents, encoder, detector,
		skills.NewDemandFormulationSkill(profileSource, "coordinator"),
		skills.NewOfferGenerationSkill(profileSource),
		skills.NewCoordinatorSkill(reasoningClient, toolRegistry),
		skills.NewSubNegotiationSkill(profileSource, "coordinator"),
		skills.NewGapRecursionSkill(profileSource, "coordinator", 3),
		buildPersistence(ctx, cfg),
		engine.Config{
			ConfirmationTimeout:  cfg.ConfirmationTimeout,
			OfferTimeout:         cfg.OfferTimeout,
			MinResonanceScore:    cfg.MinResonanceScore,
			KStar:                cfg.KStar,
			MaxCoordinatorRounds: cfg.MaxCoordinatorRounds,
		},
	)

	router := transporthttp.NewRouter(&transporthttp.Server{
		Engine: eng, Store: store, Scenes: scenes, Agents: agents,
	})
	(&ws.Handler{Store: store, Bus: bus}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Print(ctx, log.KV{K: "addr", V: cfg.HTTPAddr}, log.KV{K: "msg", V: "negotiatord listening"})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	log.Print(ctx, log.KV{K: "msg", V: "negotiatord exited"})
	return nil
}

func buildBus(cfg config.Config) (*events.Bus, error) {
	if cfg.RedisAddr == "" {
		return events.New(), nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	client := pulse.New(rdb)
	sink, err := pulse.NewSink(client)
	if err != nil {
		return nil, err
	}
	return events.New(sink), nil
}

func buildEncoder(cfg config.Config) (vector.Encoder, error) {
	if cfg.OpenAIAPIKey == "" {
		return hashing.New(cfg.EncoderDim), nil
	}
	return openai.NewFromAPIKey(cfg.OpenAIAPIKey, openai.Options{Dim: cfg.EncoderDim})
}

func buildModelBackends(cfg config.Config, agents *agentregistry.Registry) (profile.Source, reasoning.Client) {
	store := registryProfileStore{agents: agents}
	profileSource := profileanthropic.NewFromAPIKey(cfg.AnthropicAPIKey, store, profileanthropic.Options{Model: sdk.ModelClaude3_5SonnetLatest})
	var reasoningClient reasoning.Client = reasoninganthropic.NewFromAPIKey(cfg.AnthropicAPIKey, reasoninganthropic.Options{Model: sdk.ModelClaude3_5SonnetLatest})
	reasoningClient = ratelimit.New(reasoningClient, 2, 4)
	return profileSource, reasoningClient
}

// registryProfileStore adapts the Agent Registry's already-seeded profile
// data onto profileanthropic.ProfileStore, so the Anthropic Profile
// Source never needs its own separate copy of agent profiles.
type registryProfileStore struct {
	agents *agentregistry.Registry
}

func (s registryProfileStore) Profile(_ context.Context, agentID string) (map[string]any, error) {
	a := s.agents.Get(agentID)
	if a == nil {
		return nil, nil
	}
	return a.ProfileData, nil
}

func buildPersistence(ctx context.Context, cfg config.Config) persistence.Sink {
	if cfg.MongoURI == "" {
		return nil
	}
	client, err := mongodriver.Connect(mongooptions.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "mongo connect failed, persistence disabled"})
		return nil
	}
	if err := client.Ping(ctx, nil); err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "mongo ping failed, persistence disabled"})
		return nil
	}
	collection := client.Database(cfg.MongoDatabase).Collection("completed_negotiations")
	return mongopersist.New(collection)
}
