package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Proton-105/astro-bot/internal/message"
)

var (
	// ErrDispatcherClosed is returned by Submit after Close was called.
	ErrDispatcherClosed = errors.New("dispatcher is closed")
	// ErrMailboxFull is returned when a phone has too many pending messages.
	ErrMailboxFull = errors.New("mailbox is full")
)

const defaultMailboxSize = 64

// RouteFunc processes one envelope. Errors are logged by the dispatcher.
type RouteFunc func(ctx context.Context, env *message.Envelope) error

// DispatcherOptions tunes the dispatcher.
type DispatcherOptions struct {
	// MailboxSize caps pending envelopes per phone.
	MailboxSize int
	// TurnTimeout bounds a single turn; zero means no limit.
	TurnTimeout time.Duration
	// OnMailboxes observes the number of live mailboxes.
	OnMailboxes func(n int)
}

// mailbox is the FIFO queue of one phone. Exactly one goroutine drains it.
type mailbox struct {
	queue []*message.Envelope
}

// Dispatcher serializes envelopes per phone while distinct phones run in
// parallel. Mailboxes are created on demand and removed once drained.
type Dispatcher struct {
	route RouteFunc
	opts  DispatcherOptions
	log   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	mailboxes map[string]*mailbox
	closed    bool
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher that hands every envelope to route.
func NewDispatcher(route RouteFunc, opts DispatcherOptions, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = defaultMailboxSize
	}
	if opts.OnMailboxes == nil {
		opts.OnMailboxes = func(int) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		route:     route,
		opts:      opts,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		mailboxes: make(map[string]*mailbox),
	}
}

// Submit queues env behind any pending envelope from the same sender. It never
// blocks on processing.
func (d *Dispatcher) Submit(env *message.Envelope) error {
	if env == nil || env.From == "" {
		return errors.New("envelope without sender")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	mb, ok := d.mailboxes[env.From]
	if ok {
		if len(mb.queue) >= d.opts.MailboxSize {
			return ErrMailboxFull
		}
		mb.queue = append(mb.queue, env)
		return nil
	}

	mb = &mailbox{queue: []*message.Envelope{env}}
	d.mailboxes[env.From] = mb
	d.opts.OnMailboxes(len(d.mailboxes))

	d.wg.Add(1)
	go d.drain(env.From, mb)
	return nil
}

func (d *Dispatcher) drain(phone string, mb *mailbox) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		if len(mb.queue) == 0 {
			delete(d.mailboxes, phone)
			d.opts.OnMailboxes(len(d.mailboxes))
			d.mu.Unlock()
			return
		}
		env := mb.queue[0]
		mb.queue[0] = nil
		mb.queue = mb.queue[1:]
		d.mu.Unlock()

		d.process(env)
	}
}

func (d *Dispatcher) process(env *message.Envelope) {
	ctx := d.ctx
	if d.opts.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.TurnTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("panic escaped the turn pipeline",
				slog.String("phone", env.From),
				slog.String("message_id", env.MessageID),
				slog.Any("panic", r),
			)
		}
	}()

	if err := d.route(ctx, env); err != nil {
		d.log.Warn("turn failed",
			slog.String("phone", env.From),
			slog.String("message_id", env.MessageID),
			slog.Any("error", err),
		)
	}
}

// Pending returns the number of phones with queued or running turns.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.mailboxes)
}

// Close stops accepting envelopes and waits for queued turns to finish. If ctx
// ends first, running turns are canceled and ctx's error is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
