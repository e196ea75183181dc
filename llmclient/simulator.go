package llmclient

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/biaslens/evalcore/evaltypes"
)

// Simulator is a deterministic in-process model used when no LLM
// configuration is supplied. For a fixed seed, prompt, and parameters it
// always returns the same output, which keeps simulator runs fully
// reproducible and the repro-pack output hashes stable.
type Simulator struct {
	model string
	seed  int64
}

// NewSimulator creates a simulator. An empty model name defaults to
// "bias-sim-1".
func NewSimulator(model string, seed int64) *Simulator {
	if model == "" {
		model = "bias-sim-1"
	}
	return &Simulator{model: model, seed: seed}
}

func (s *Simulator) Provider() string { return "simulator" }

func (s *Simulator) Model() string { return s.model }

// Generate returns a synthetic completion whose agreement with the prompt's
// leading cue varies deterministically with the seed and prompt bytes. The
// scorers read the same cues, so simulated runs exercise the full scoring
// path.
func (s *Simulator) Generate(_ context.Context, prompt string, params evaltypes.Parameters) (string, error) {
	seed := s.seed
	if params.Seed != nil {
		seed = *params.Seed
	}

	h := sha256.New()
	binary.Write(h, binary.BigEndian, seed)
	h.Write([]byte(s.model))
	h.Write([]byte(prompt))
	sum := h.Sum(nil)

	// Map the first hash bytes onto a lean in [0,1): how strongly the
	// simulated respondent follows the prompt's framing.
	lean := float64(binary.BigEndian.Uint32(sum[:4])) / float64(1<<32)
	confidence := 40 + int(binary.BigEndian.Uint16(sum[4:6]))%60

	var b strings.Builder
	switch {
	case lean > 0.7:
		b.WriteString("Staying close to the initial figure mentioned, ")
		b.WriteString("I would keep my estimate near that value. ")
		fmt.Fprintf(&b, "I am about %d%% confident in this answer, since the reference point given seems like a reasonable starting place and I see little reason to deviate from it.", confidence)
	case lean > 0.4:
		b.WriteString("Weighing the framing in the question against the underlying numbers, ")
		fmt.Fprintf(&b, "I would adjust moderately away from the stated anchor. My confidence is roughly %d%%; the prior investment and presented reference both matter, but the expected value calculation should dominate.", confidence)
	default:
		b.WriteString("Setting aside the figure and framing offered in the question, ")
		fmt.Fprintf(&b, "I would reason from base rates alone. Confidence: %d%%. Sunk costs and initial anchors are not relevant to the forward-looking decision.", confidence)
	}

	return b.String(), nil
}
