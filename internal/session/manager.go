package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Reset reasons reported to the reset recorder.
const (
	ResetExpired = "expired"
	ResetCorrupt = "corrupt"
)

var resetRecorder = func(reason string) {}

// RegisterResetRecorder allows external packages to observe session resets.
func RegisterResetRecorder(recorder func(reason string)) {
	if recorder == nil {
		resetRecorder = func(string) {}
		return
	}
	resetRecorder = recorder
}

// Options configures a Manager.
type Options struct {
	TTL           time.Duration
	LockTTL       time.Duration
	MaxStackDepth int
	// KnownNode reports whether a menu node id exists; nil skips the check.
	KnownNode func(id string) bool
	Locker    DistributedLocker
	Logger    *slog.Logger
	Now       func() time.Time
}

// Manager is the single mutation point for sessions. Every read-modify-write
// runs under a per-phone lock.
type Manager struct {
	store    Store
	locks    *keyedMutex
	locker   DistributedLocker
	log      *slog.Logger
	ttl      time.Duration
	lockTTL  time.Duration
	maxDepth int
	known    func(string) bool
	now      func() time.Time
}

func NewManager(store Store, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}

	return &Manager{
		store:    store,
		locks:    newKeyedMutex(),
		locker:   opts.Locker,
		log:      opts.Logger,
		ttl:      opts.TTL,
		lockTTL:  opts.LockTTL,
		maxDepth: opts.MaxStackDepth,
		known:    opts.KnownNode,
		now:      opts.Now,
	}
}

// WithLock runs fn while holding the phone's lock.
func (m *Manager) WithLock(ctx context.Context, phone string, fn func(ctx context.Context) error) error {
	unlock := m.locks.Lock(phone)
	defer unlock()

	if m.locker != nil {
		release, err := m.locker.Lock(ctx, phone, m.lockTTL)
		if err != nil {
			return fmt.Errorf("session lock: %w", err)
		}
		defer func() {
			// Use a fresh context: the turn's context may already be canceled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				m.log.Warn("failed to release session lock, it will expire", "phone", phone, "error", err)
			}
		}()
	}

	return fn(ctx)
}

// GetOrCreate returns the live session for phone, creating or resetting it as needed.
func (m *Manager) GetOrCreate(ctx context.Context, phone string) (*Session, error) {
	var out *Session
	err := m.WithLock(ctx, phone, func(ctx context.Context) error {
		sess, created, err := m.load(ctx, phone)
		if err != nil {
			return err
		}
		if created {
			if err := m.store.Save(ctx, sess); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
		}
		out = sess
		return nil
	})
	return out, err
}

// Update loads the session, applies fn to a copy and saves the result.
// When fn fails nothing is persisted and the stored session is returned with the error.
func (m *Manager) Update(ctx context.Context, phone string, fn func(s *Session) error) (*Session, error) {
	var out *Session
	err := m.WithLock(ctx, phone, func(ctx context.Context) error {
		sess, _, err := m.load(ctx, phone)
		if err != nil {
			return err
		}

		working := sess.Clone()
		if err := fn(working); err != nil {
			out = sess
			return err
		}

		working.Version = sess.Version + 1
		working.LastActivity = m.now().UTC()
		if err := m.store.Save(ctx, working); err != nil {
			out = sess
			return fmt.Errorf("save session: %w", err)
		}
		out = working
		return nil
	})
	return out, err
}

// Delete removes the phone's session.
func (m *Manager) Delete(ctx context.Context, phone string) error {
	return m.WithLock(ctx, phone, func(ctx context.Context) error {
		return m.store.Delete(ctx, phone)
	})
}

// load returns a usable session; created is true when a fresh one replaced a
// missing, expired or corrupt record.
func (m *Manager) load(ctx context.Context, phone string) (*Session, bool, error) {
	now := m.now().UTC()

	sess, err := m.store.Load(ctx, phone)
	switch {
	case errors.Is(err, ErrNotFound):
		return New(phone, now), true, nil
	case errors.Is(err, ErrCorrupt):
		m.log.Warn("discarding corrupt session", "phone", phone, "error", err)
		resetRecorder(ResetCorrupt)
		return New(phone, now), true, nil
	case err != nil:
		return nil, false, fmt.Errorf("load session: %w", err)
	}

	if err := sess.Check(m.known, m.maxDepth); err != nil {
		m.log.Warn("discarding corrupt session", "phone", phone, "mode", string(sess.Mode), "error", err)
		resetRecorder(ResetCorrupt)
		return New(phone, now), true, nil
	}

	if sess.Expired(now, m.ttl) {
		m.log.Info("session expired, starting fresh", "phone", phone, "idle_for", now.Sub(sess.LastActivity).String())
		resetRecorder(ResetExpired)
		return New(phone, now), true, nil
	}

	return sess, false, nil
}

// ActiveLocks returns the number of phones currently holding or waiting on a lock.
func (m *Manager) ActiveLocks() int {
	return m.locks.size()
}
