package engine

import "time"

// Config bounds the Engine's timing and sizing behavior (spec §5/§9).
type Config struct {
	// ConfirmationTimeout is how long Stage 1 waits for a user
	// confirmation before auto-confirming (spec §4.2).
	ConfirmationTimeout time.Duration
	// OfferTimeout bounds each individual agent's Stage 3 offer call;
	// one agent timing out never blocks its siblings (spec §4.4).
	OfferTimeout time.Duration
	// MinResonanceScore and KStar parameterize the Resonance Detector
	// (spec §4.8).
	MinResonanceScore float64
	KStar             int
	// MaxCoordinatorRounds bounds the Coordinator Synthesis Loop; the
	// round that reaches this cap is restricted to output_plan and
	// create_machine (spec §4.5).
	MaxCoordinatorRounds int
}

// DefaultConfig returns the spec's suggested defaults.
func DefaultConfig() Config {
	return Config{
		ConfirmationTimeout:  60 * time.Second,
		OfferTimeout:         30 * time.Second,
		MinResonanceScore:    0.3,
		KStar:                5,
		MaxCoordinatorRounds: 1,
	}
}
