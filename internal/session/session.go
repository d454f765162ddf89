package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/Proton-105/astro-bot/internal/domain"
)

// Mode is the top-level conversational state.
type Mode string

const (
	// ModeFresh is a session that has not handled a turn yet.
	ModeFresh Mode = ""
	// ModeOnboarding collects birth data stage by stage.
	ModeOnboarding Mode = "onboarding"
	// ModeIdle navigates the menu tree.
	ModeIdle Mode = "idle"
	// ModeAwaitingInput runs a guided multi-step flow.
	ModeAwaitingInput Mode = "awaiting_input"
	// ModeError marks a turn that failed unexpectedly; the next turn recovers.
	ModeError Mode = "error"
)

// Stage is the onboarding step.
type Stage string

const (
	StageNone     Stage = ""
	StageAskDate  Stage = "ask_date"
	StageAskTime  Stage = "ask_time"
	StageAskPlace Stage = "ask_place"
	StageConfirm  Stage = "confirm"
)

// ErrCorrupt reports a structurally invalid session.
var ErrCorrupt = errors.New("session corrupt")

// Draft holds birth fields collected during onboarding.
type Draft struct {
	BirthDate   *time.Time        `json:"birth_date,omitempty"`
	BirthTime   *domain.BirthTime `json:"birth_time,omitempty"`
	TimeSkipped bool              `json:"time_skipped,omitempty"`
	PlaceName   string            `json:"place_name,omitempty"`
	Latitude    *float64          `json:"latitude,omitempty"`
	Longitude   *float64          `json:"longitude,omitempty"`
	Timezone    string            `json:"timezone,omitempty"`
}

// FlowState tracks a guided flow: AwaitingMultiStepInput(ID, Step).
type FlowState struct {
	ID     string            `json:"id"`
	Step   int               `json:"step"`
	Data   map[string]string `json:"data,omitempty"`
	Origin string            `json:"origin,omitempty"`
}

// Session is the per-phone conversational state.
type Session struct {
	Phone        string     `json:"phone"`
	Mode         Mode       `json:"mode"`
	Stage        Stage      `json:"stage,omitempty"`
	CurrentMenu  string     `json:"current_menu,omitempty"`
	NavStack     []string   `json:"nav_stack,omitempty"`
	Draft        Draft      `json:"draft"`
	Flow         *FlowState `json:"flow,omitempty"`
	SearchNode   string     `json:"search_node,omitempty"`
	LastActivity time.Time  `json:"last_activity"`
	CreatedAt    time.Time  `json:"created_at"`
	Version      int64      `json:"version"`
}

// New returns a fresh session.
func New(phone string, now time.Time) *Session {
	return &Session{
		Phone:        phone,
		Mode:         ModeFresh,
		LastActivity: now,
		CreatedAt:    now,
	}
}

// Label renders mode and stage for logs and metrics.
func (s *Session) Label() string {
	return label(s.Mode, s.Stage)
}

func label(m Mode, st Stage) string {
	name := string(m)
	if name == "" {
		name = "fresh"
	}
	if st != StageNone {
		return name + ":" + string(st)
	}
	return name
}

// Expired reports whether the session has been inactive longer than ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.LastActivity) > ttl
}

// Top returns the current navigation context, "" when the stack is empty.
func (s *Session) Top() string {
	if len(s.NavStack) == 0 {
		return ""
	}
	return s.NavStack[len(s.NavStack)-1]
}

// TransitionTo moves to mode/stage if the transition table allows it.
func (s *Session) TransitionTo(mode Mode, stage Stage) error {
	if !IsTransitionAllowed(s.Mode, s.Stage, mode, stage) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Label(), label(mode, stage))
	}
	from := s.Label()
	s.Mode = mode
	s.Stage = stage
	transitionRecorder(from, s.Label())
	return nil
}

// StartOnboarding clears collected fields and asks for the date.
func (s *Session) StartOnboarding() error {
	if err := s.TransitionTo(ModeOnboarding, StageAskDate); err != nil {
		return err
	}
	s.Draft = Draft{}
	s.Flow = nil
	s.SearchNode = ""
	s.NavStack = nil
	s.CurrentMenu = ""
	return nil
}

// Advance moves to the next onboarding stage.
func (s *Session) Advance(next Stage) error {
	return s.TransitionTo(ModeOnboarding, next)
}

// EnterIdle switches to menu navigation with the given stack.
func (s *Session) EnterIdle(stack []string) error {
	if len(stack) == 0 {
		return fmt.Errorf("%w: empty navigation stack", ErrInvalidTransition)
	}
	if err := s.TransitionTo(ModeIdle, StageNone); err != nil {
		return err
	}
	s.Flow = nil
	s.SearchNode = ""
	s.SetStack(stack)
	return nil
}

// SetStack replaces the navigation stack, keeping CurrentMenu equal to its top.
func (s *Session) SetStack(stack []string) {
	s.NavStack = append([]string(nil), stack...)
	s.CurrentMenu = s.Top()
	if s.SearchNode != "" && s.SearchNode != s.CurrentMenu {
		s.SearchNode = ""
	}
}

// BeginSearch enters the keyword search sub-mode for the current node.
func (s *Session) BeginSearch() {
	s.SearchNode = s.CurrentMenu
}

// EndSearch leaves the search sub-mode.
func (s *Session) EndSearch() {
	s.SearchNode = ""
}

// BeginFlow starts a guided flow from the current menu context.
func (s *Session) BeginFlow(flowID string) error {
	if err := s.TransitionTo(ModeAwaitingInput, StageNone); err != nil {
		return err
	}
	s.Flow = &FlowState{ID: flowID, Data: map[string]string{}, Origin: s.CurrentMenu}
	s.SearchNode = ""
	return nil
}

// AdvanceFlow records a collected value and moves to the next step.
func (s *Session) AdvanceFlow(key, value string) error {
	if s.Mode != ModeAwaitingInput || s.Flow == nil {
		return fmt.Errorf("%w: no active flow", ErrInvalidTransition)
	}
	if s.Flow.Data == nil {
		s.Flow.Data = map[string]string{}
	}
	s.Flow.Data[key] = value
	s.Flow.Step++
	return nil
}

// EndFlow returns to idle navigation at the flow's origin.
func (s *Session) EndFlow() error {
	stack := s.NavStack
	if len(stack) == 0 && s.Flow != nil && s.Flow.Origin != "" {
		stack = []string{s.Flow.Origin}
	}
	return s.EnterIdle(stack)
}

// Fail marks the session as errored.
func (s *Session) Fail() {
	_ = s.TransitionTo(ModeError, StageNone)
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.NavStack = append([]string(nil), s.NavStack...)
	if s.Draft.BirthDate != nil {
		d := *s.Draft.BirthDate
		cp.Draft.BirthDate = &d
	}
	if s.Draft.BirthTime != nil {
		t := *s.Draft.BirthTime
		cp.Draft.BirthTime = &t
	}
	if s.Draft.Latitude != nil {
		lat := *s.Draft.Latitude
		cp.Draft.Latitude = &lat
	}
	if s.Draft.Longitude != nil {
		lon := *s.Draft.Longitude
		cp.Draft.Longitude = &lon
	}
	if s.Flow != nil {
		f := *s.Flow
		f.Data = make(map[string]string, len(s.Flow.Data))
		for k, v := range s.Flow.Data {
			f.Data[k] = v
		}
		cp.Flow = &f
	}
	return &cp
}

// Check validates structural invariants. known reports whether a node id exists;
// maxDepth bounds the navigation stack (0 disables the bound).
func (s *Session) Check(known func(string) bool, maxDepth int) error {
	switch s.Mode {
	case ModeFresh:
		if s.Stage != StageNone || len(s.NavStack) > 0 {
			return fmt.Errorf("%w: missing mode", ErrCorrupt)
		}
		return nil
	case ModeError:
		return nil
	case ModeOnboarding:
		switch s.Stage {
		case StageAskDate, StageAskTime, StageAskPlace, StageConfirm:
			return nil
		default:
			return fmt.Errorf("%w: unknown onboarding stage %q", ErrCorrupt, s.Stage)
		}
	case ModeIdle, ModeAwaitingInput:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrCorrupt, s.Mode)
	}

	if s.Stage != StageNone {
		return fmt.Errorf("%w: stage %q outside onboarding", ErrCorrupt, s.Stage)
	}
	if len(s.NavStack) == 0 {
		return fmt.Errorf("%w: empty navigation stack", ErrCorrupt)
	}
	if maxDepth > 0 && len(s.NavStack) > maxDepth {
		return fmt.Errorf("%w: navigation stack depth %d", ErrCorrupt, len(s.NavStack))
	}
	if s.Top() != s.CurrentMenu {
		return fmt.Errorf("%w: stack top %q != current menu %q", ErrCorrupt, s.Top(), s.CurrentMenu)
	}
	if known != nil {
		for _, id := range s.NavStack {
			if !known(id) {
				return fmt.Errorf("%w: unknown node %q", ErrCorrupt, id)
			}
		}
	}
	if s.Mode == ModeAwaitingInput && (s.Flow == nil || s.Flow.ID == "" || s.Flow.Step < 0) {
		return fmt.Errorf("%w: awaiting input without a flow", ErrCorrupt)
	}
	return nil
}
