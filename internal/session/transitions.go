package session

import "errors"

// ErrInvalidTransition indicates that a requested transition is not allowed.
var ErrInvalidTransition = errors.New("invalid session transition")

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// validModeTransitions contains the permitted mode changes. Error is reachable
// from anywhere and leaves to any mode.
var validModeTransitions = map[Mode][]Mode{
	ModeFresh:         {ModeOnboarding, ModeIdle},
	ModeOnboarding:    {ModeOnboarding, ModeIdle},
	ModeIdle:          {ModeIdle, ModeAwaitingInput, ModeOnboarding},
	ModeAwaitingInput: {ModeAwaitingInput, ModeIdle},
}

// validStageTransitions contains the onboarding steps. Any stage may restart at AskDate.
var validStageTransitions = map[Stage][]Stage{
	StageAskDate:  {StageAskTime},
	StageAskTime:  {StageAskPlace},
	StageAskPlace: {StageConfirm},
}

// IsTransitionAllowed reports whether (fromMode, fromStage) may move to (toMode, toStage).
func IsTransitionAllowed(fromMode Mode, fromStage Stage, toMode Mode, toStage Stage) bool {
	if toMode == ModeError {
		return toStage == StageNone
	}
	if toMode == ModeOnboarding && toStage == StageNone {
		return false
	}
	if toMode != ModeOnboarding && toStage != StageNone {
		return false
	}

	if fromMode != ModeError && !contains(validModeTransitions[fromMode], toMode) {
		return false
	}

	if toMode != ModeOnboarding {
		return true
	}
	if toStage == StageAskDate {
		return true
	}
	if fromMode != ModeOnboarding {
		return false
	}
	if fromStage == toStage {
		return true
	}
	return contains(validStageTransitions[fromStage], toStage)
}

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
