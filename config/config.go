// Package config loads negotiatord's runtime configuration from the
// environment, grounded on the teacher's registry/cmd/registry/main.go
// envOr idiom.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every environment-sourced setting negotiatord needs to
// wire its collaborators (spec §6.7).
type Config struct {
	// HTTPAddr is the address the HTTP/WS façade listens on.
	HTTPAddr string

	// AnthropicAPIKey is the credential negotiatord hands to its
	// Anthropic-backed Reasoning Client and Profile Source, the only
	// backends it wires. BedrockModelID is read but negotiatord does not
	// use it, and neither field is checked for being set.
	AnthropicAPIKey string
	BedrockModelID  string

	// OpenAIAPIKey configures the embeddings Encoder; when unset the
	// hashing fallback encoder is used instead.
	OpenAIAPIKey string
	EncoderDim   int

	// DefaultScope is read from NEGOTIATOR_DEFAULT_SCOPE. negotiatord does
	// not pass it to the HTTP handlers, which use "all" when a request
	// omits a scope.
	DefaultScope string

	// PrecomputedVectorsPath optionally names a vector archive
	// (spec §6.6). negotiatord does not load it: every agent's vector is
	// encoded from its profile.
	PrecomputedVectorsPath string

	// MongoURI and MongoDatabase configure the persistence sink; when
	// MongoURI is empty, completed negotiations are not persisted.
	MongoURI      string
	MongoDatabase string

	// RedisAddr optionally configures the Pulse-backed cross-process
	// event relay; when empty, events stay in-process only.
	RedisAddr string

	ConfirmationTimeout  time.Duration
	OfferTimeout         time.Duration
	MinResonanceScore    float64
	KStar                int
	MaxCoordinatorRounds int
}

// Load reads Config from the process environment, applying the spec's
// suggested defaults wherever a variable is unset.
func Load() Config {
	return Config{
		HTTPAddr:               envOr("NEGOTIATOR_HTTP_ADDR", ":8080"),
		AnthropicAPIKey:        envOr("ANTHROPIC_API_KEY", ""),
		BedrockModelID:         envOr("BEDROCK_MODEL_ID", ""),
		OpenAIAPIKey:           envOr("OPENAI_API_KEY", ""),
		EncoderDim:             envIntOr("NEGOTIATOR_ENCODER_DIM", 256),
		DefaultScope:           envOr("NEGOTIATOR_DEFAULT_SCOPE", "all"),
		PrecomputedVectorsPath: envOr("NEGOTIATOR_PRECOMPUTED_VECTORS", ""),
		MongoURI:               envOr("MONGO_URI", ""),
		MongoDatabase:          envOr("MONGO_DATABASE", "negotiator"),
		RedisAddr:              envOr("REDIS_ADDR", ""),
		ConfirmationTimeout:    envDurationOr("NEGOTIATOR_CONFIRMATION_TIMEOUT", 60*time.Second),
		OfferTimeout:           envDurationOr("NEGOTIATOR_OFFER_TIMEOUT", 30*time.Second),
		MinResonanceScore:      envFloatOr("NEGOTIATOR_MIN_RESONANCE_SCORE", 0.3),
		KStar:                  envIntOr("NEGOTIATOR_K_STAR", 5),
		MaxCoordinatorRounds:   envIntOr("NEGOTIATOR_MAX_COORDINATOR_ROUNDS", 1),
	}
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloatOr(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envDurationOr(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
