package lifecycle

import "context"

// Phase orders shutdown hooks. Hooks of a lower phase finish before the next
// phase starts; hooks within a phase run concurrently.
type Phase int

const (
	// PhaseIntake stops accepting new messages: probes, HTTP, polling.
	PhaseIntake Phase = iota
	// PhaseDrain finishes queued turns and background work.
	PhaseDrain
	// PhaseRelease closes stores and clients.
	PhaseRelease
)

func (p Phase) String() string {
	switch p {
	case PhaseIntake:
		return "intake"
	case PhaseDrain:
		return "drain"
	case PhaseRelease:
		return "release"
	}
	return "unknown"
}

// Hook describes a named shutdown hook.
type Hook struct {
	Name  string
	Phase Phase
	Fn    func(ctx context.Context) error
}
