package workflow

import (
	"fmt"

	"crewbe/internal/session"
)

var transitions = map[session.Phase][]session.Phase{
	session.PhaseIdle:      {session.PhaseRecording, session.PhaseFailed},
	session.PhaseRecording: {session.PhaseUploading, session.PhaseFailed},
	session.PhaseUploading: {session.PhaseAnalyzing, session.PhaseFailed},
	session.PhaseAnalyzing: {session.PhaseDone, session.PhaseFailed},
	session.PhaseDone:      {session.PhaseIdle},
	session.PhaseFailed:    {session.PhaseIdle},
}

// CanTransition reports whether the pipeline may move from one phase to another.
func CanTransition(from, to session.Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError reports a phase change the pipeline does not allow.
type TransitionError struct {
	From session.Phase
	To   session.Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid phase transition %s -> %s", e.From, e.To)
}
