// Command precompute-vectors builds a vector archive (spec §6.6) from a
// JSON file of agent profiles, grounded on original_source's
// precompute_vectors.py: read every agent's profile, project it to text,
// encode it, and write the result as a single binary archive the Agent
// Registry can load at startup instead of calling the Encoder per agent
// on every negotiation.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/resonantlabs/negotiator/vector"
	"github.com/resonantlabs/negotiator/vector/archive"
	"github.com/resonantlabs/negotiator/vector/hashing"
	"github.com/resonantlabs/negotiator/vector/openai"
)

type agentProfile struct {
	AgentID string         `json:"agent_id"`
	Profile map[string]any `json:"profile"`
}

func main() {
	var (
		inputPath  = flag.String("in", "", "path to a JSON array of {agent_id, profile} objects")
		outputPath = flag.String("out", "agents.vectors", "path to write the vector archive to")
		dim        = flag.Int("dim", 256, "vector dimensionality (hashing encoder output size; also the dimension the OpenAI encoder reports)")
		openaiKey  = flag.String("openai-api-key", os.Getenv("OPENAI_API_KEY"), "OpenAI API key; when empty, the hashing fallback encoder is used")
	)
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("-in is required")
	}

	if err := run(*inputPath, *outputPath, *dim, *openaiKey); err != nil {
		log.Fatal(err)
	}
}

func run(inputPath, outputPath string, dim int, openaiKey string) error {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	var profiles []agentProfile
	if err := json.Unmarshal(raw, &profiles); err != nil {
		return err
	}

	enc, err := buildEncoder(openaiKey, dim)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(profiles))
	texts := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.AgentID)
		texts = append(texts, vector.ProfileText(p.Profile))
	}

	ctx := context.Background()
	vectors, err := enc.BatchEncode(ctx, texts)
	if err != nil {
		return err
	}

	if err := archive.Save(outputPath, ids, vectors); err != nil {
		return err
	}
	log.Printf("wrote %d vectors (dim=%d) to %s", len(ids), enc.Dim(), outputPath)
	return nil
}

func buildEncoder(openaiKey string, dim int) (vector.Encoder, error) {
	if openaiKey == "" {
		return hashing.New(dim), nil
	}
	return openai.NewFromAPIKey(openaiKey, openai.Options{Dim: dim})
}
