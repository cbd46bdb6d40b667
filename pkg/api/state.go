package api

import "fmt"

// StreamPhase is the lifecycle phase of a stream bridge.
type StreamPhase string

const (
	// PhasePriming: the first snapshot is being read synchronously.
	PhasePriming StreamPhase = "priming"
	// PhaseStreaming: primed and ready to be iterated once.
	PhaseStreaming StreamPhase = "streaming"
	// PhaseDrained: iteration started or priming failed. Terminal.
	PhaseDrained StreamPhase = "drained"
)

// ValidatePhaseTransition checks whether a stream phase transition is valid.
// An empty "from" phase represents a bridge that has not started priming.
func ValidatePhaseTransition(from, to StreamPhase) *APIError {
	valid := map[StreamPhase][]StreamPhase{
		"":             {PhasePriming},
		PhasePriming:   {PhaseStreaming, PhaseDrained},
		PhaseStreaming: {PhaseDrained},
		PhaseDrained:   {},
	}

	allowed, exists := valid[from]
	if !exists {
		return NewServerError(fmt.Sprintf("invalid stream transition from %s to %s", from, to))
	}

	for _, p := range allowed {
		if p == to {
			return nil
		}
	}

	return NewServerError(fmt.Sprintf("invalid stream transition from %s to %s", from, to))
}
