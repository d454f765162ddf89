package handlers

import (
	"context"
	"errors"

	"github.com/Proton-105/astro-bot/internal/message"
)

// Engine runs one conversational turn.
type Engine interface {
	Handle(ctx context.Context, phone string, in message.Intent) *message.Response
}

// NewTurnHandler normalizes the envelope and hands the intent to the engine.
// It is the innermost handler of the pipeline.
func NewTurnHandler(engine Engine) Handler {
	return func(ctx context.Context, env *message.Envelope) (*message.Response, error) {
		if env == nil || env.From == "" {
			return nil, errors.New("envelope without sender")
		}
		if engine == nil {
			return nil, errors.New("turn engine is not configured")
		}
		return engine.Handle(ctx, env.From, message.Normalize(env)), nil
	}
}
