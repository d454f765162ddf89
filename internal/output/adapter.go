// Package output turns a turn's Response into channel messages and owns the
// timeout and retry policy for sending them.
package output

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/Proton-105/astro-bot/internal/errors"
	"github.com/Proton-105/astro-bot/internal/message"
)

// ErrUnknownChannel is returned when no sender is registered for a channel.
var ErrUnknownChannel = stdErrors.New("output: no sender for channel")

// Sender delivers one payload to a recipient on a single channel.
type Sender interface {
	Send(ctx context.Context, to string, p message.Payload) error
}

// Enqueuer hands undelivered payloads to a background retry queue.
type Enqueuer interface {
	EnqueueDelivery(ctx context.Context, channel, to string, payloads []message.Payload) error
}

// Observer is told the result of every payload: "sent", "queued" or "failed".
type Observer func(channel, result string)

// Options tunes the adapter.
type Options struct {
	// SendTimeout bounds each Send attempt.
	SendTimeout time.Duration
	Retry       errors.RetryPolicy
	// DefaultChannel is used for envelopes without a channel.
	DefaultChannel string
	Observer       Observer
}

// Adapter formats responses for their channel and sends them in order.
type Adapter struct {
	senders map[string]Sender
	queue   Enqueuer
	opts    Options
	log     *slog.Logger
}

// NewAdapter builds an adapter. queue may be nil, in which case exhausted
// retries are reported as errors.
func NewAdapter(senders map[string]Sender, queue Enqueuer, opts Options, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	if opts.Retry == (errors.RetryPolicy{}) {
		opts.Retry = errors.DefaultRetryPolicy
	}
	if opts.Observer == nil {
		opts.Observer = func(string, string) {}
	}

	copied := make(map[string]Sender, len(senders))
	for ch, s := range senders {
		if s != nil {
			copied[ch] = s
		}
	}

	return &Adapter{senders: copied, queue: queue, opts: opts, log: log}
}

// Deliver sends resp to the recipient. Payloads go out in order; when one
// cannot be sent it and everything after it are queued for a later retry.
func (a *Adapter) Deliver(ctx context.Context, channel, to string, resp *message.Response) error {
	if resp.Empty() {
		return nil
	}
	if channel == "" {
		channel = a.opts.DefaultChannel
	}

	payloads := FitAll(resp.Messages)
	for i, p := range payloads {
		err := a.send(ctx, channel, to, p)
		if err == nil {
			a.opts.Observer(channel, "sent")
			continue
		}
		if stdErrors.Is(err, ErrUnknownChannel) || IsPermanent(err) {
			a.opts.Observer(channel, "failed")
			return err
		}

		rest := payloads[i:]
		if a.queue == nil {
			a.opts.Observer(channel, "failed")
			return fmt.Errorf("deliver to %s: %w", channel, err)
		}

		a.log.WarnContext(ctx, "delivery failed, queueing for retry",
			slog.String("channel", channel),
			slog.String("to", to),
			slog.Int("pending", len(rest)),
			slog.Any("error", err),
		)
		if qErr := a.queue.EnqueueDelivery(context.WithoutCancel(ctx), channel, to, rest); qErr != nil {
			a.opts.Observer(channel, "failed")
			return fmt.Errorf("queue delivery after %v: %w", err, qErr)
		}
		a.opts.Observer(channel, "queued")
		return nil
	}
	return nil
}

// Resend sends already fitted payloads once each, without the retry loop or
// the fallback queue. The background worker owns retries for these.
func (a *Adapter) Resend(ctx context.Context, channel, to string, payloads []message.Payload) (int, error) {
	sender, ok := a.senders[channel]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownChannel, channel)
	}
	for i, p := range payloads {
		callCtx, cancel := context.WithTimeout(ctx, a.opts.SendTimeout)
		err := sender.Send(callCtx, to, p)
		cancel()
		if err != nil {
			return i, err
		}
		a.opts.Observer(channel, "sent")
	}
	return len(payloads), nil
}

func (a *Adapter) send(ctx context.Context, channel, to string, p message.Payload) error {
	sender, ok := a.senders[channel]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownChannel, channel)
	}

	return errors.WithRetryPolicy(ctx, a.opts.Retry, func() error {
		callCtx, cancel := context.WithTimeout(ctx, a.opts.SendTimeout)
		defer cancel()

		err := sender.Send(callCtx, to, p)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
		return errors.NewCollaboratorUnavailable("outbound:"+channel, err)
	})
}

// PermanentError marks a rejection that a retry cannot fix, such as an
// invalid recipient.
type PermanentError struct {
	Status int
	Err    error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent delivery failure (status %d): %v", e.Status, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsPermanent reports whether err is a PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return stdErrors.As(err, &p)
}
