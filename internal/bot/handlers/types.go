// Package handlers defines the turn handler contract shared by the pipeline
// and its middlewares.
package handlers

import (
	"context"

	"github.com/Proton-105/astro-bot/internal/message"
)

// Handler processes one inbound envelope and returns the reply to deliver.
// A nil response means nothing is sent.
type Handler func(ctx context.Context, env *message.Envelope) (*message.Response, error)

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Chain wraps h so that mws[0] is the outermost middleware.
func Chain(h Handler, mws ...Middleware) Handler {
	if h == nil {
		return nil
	}
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		h = mws[i](h)
	}
	return h
}
