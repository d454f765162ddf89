package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Load(ctx context.Context, phone string) (*Session, error) {
	args := m.Called(ctx, phone)
	sess, _ := args.Get(0).(*Session)
	return sess, args.Error(1)
}

func (m *mockStore) Save(ctx context.Context, s *Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockStore) Delete(ctx context.Context, phone string) error {
	args := m.Called(ctx, phone)
	return args.Error(0)
}

func (m *mockStore) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	phones, _ := args.Get(0).([]string)
	return phones, args.Error(1)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(store Store, clk *clock) *Manager {
	return NewManager(store, Options{
		TTL:           30 * time.Minute,
		MaxStackDepth: 8,
		KnownNode:     func(id string) bool { return id == "root" || id == "western" },
		Logger:        testLogger(),
		Now:           clk.Now,
	})
}

func TestManager_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	m := newTestManager(store, clk)

	sess, err := m.GetOrCreate(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, ModeFresh, sess.Mode)

	phones, _ := store.List(ctx)
	assert.Equal(t, []string{"1"}, phones)
}

func TestManager_UpdatePersists(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(NewMemoryStore(), clk)

	sess, err := m.Update(ctx, "1", func(s *Session) error {
		return s.EnterIdle([]string{"root", "western"})
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), sess.Version)
	assert.Equal(t, "western", sess.CurrentMenu)

	again, err := m.GetOrCreate(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "western"}, again.NavStack)
}

func TestManager_UpdateErrorLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(NewMemoryStore(), clk)

	_, err := m.Update(ctx, "1", func(s *Session) error { return s.EnterIdle([]string{"root"}) })
	require.NoError(t, err)

	boom := errors.New("collaborator timeout")
	got, err := m.Update(ctx, "1", func(s *Session) error {
		s.SetStack([]string{"root", "western"})
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"root"}, got.NavStack)

	stored, err := m.GetOrCreate(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"root"}, stored.NavStack)
	assert.Equal(t, int64(1), stored.Version)
}

func TestManager_ExpiredSessionResets(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(NewMemoryStore(), clk)

	var reasons []string
	RegisterResetRecorder(func(reason string) { reasons = append(reasons, reason) })
	t.Cleanup(func() { RegisterResetRecorder(nil) })

	_, err := m.Update(ctx, "1", func(s *Session) error { return s.EnterIdle([]string{"root", "western"}) })
	require.NoError(t, err)

	clk.Advance(31 * time.Minute)

	sess, err := m.GetOrCreate(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, ModeFresh, sess.Mode)
	assert.Empty(t, sess.NavStack)
	assert.Equal(t, []string{ResetExpired}, reasons)
}

func TestManager_CorruptSessionResets(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}

	testCases := []struct {
		name  string
		setup func(ms *mockStore)
	}{
		{
			name: "undecodable record",
			setup: func(ms *mockStore) {
				ms.On("Load", mock.Anything, "1").Return((*Session)(nil), ErrCorrupt).Once()
			},
		},
		{
			name: "stack top mismatch",
			setup: func(ms *mockStore) {
				bad := &Session{Phone: "1", Mode: ModeIdle, NavStack: []string{"root"}, CurrentMenu: "western", LastActivity: clk.Now()}
				ms.On("Load", mock.Anything, "1").Return(bad, nil).Once()
			},
		},
		{
			name: "missing mode enum",
			setup: func(ms *mockStore) {
				bad := &Session{Phone: "1", Mode: "", Stage: StageConfirm, LastActivity: clk.Now()}
				ms.On("Load", mock.Anything, "1").Return(bad, nil).Once()
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ms := &mockStore{}
			tc.setup(ms)
			ms.On("Save", mock.Anything, mock.MatchedBy(func(s *Session) bool {
				return s.Mode == ModeIdle && s.CurrentMenu == "root"
			})).Return(nil).Once()

			m := newTestManager(ms, clk)
			sess, err := m.Update(ctx, "1", func(s *Session) error {
				if s.Mode != ModeFresh {
					return errors.New("expected a fresh session")
				}
				return s.EnterIdle([]string{"root"})
			})
			require.NoError(t, err)
			assert.Equal(t, "root", sess.CurrentMenu)
			ms.AssertExpectations(t)
		})
	}
}

func TestManager_SerializesPerPhone(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(NewMemoryStore(), clk)

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Update(ctx, "same", func(s *Session) error {
				if s.Mode == ModeFresh {
					return s.EnterIdle([]string{"root"})
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sess, err := m.GetOrCreate(ctx, "same")
	require.NoError(t, err)
	assert.Equal(t, int64(workers), sess.Version)
	assert.Equal(t, 0, m.ActiveLocks())
}

func TestManager_DistributedLock(t *testing.T) {
	client, _ := setupTestRedis(t)
	clk := &clock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	store := NewRedisStore(client, testLogger(), time.Hour)

	// Two managers sharing Redis stand in for two replicas.
	opts := Options{
		TTL:       time.Hour,
		KnownNode: func(string) bool { return true },
		Locker:    NewRedisLocker(client, 5*time.Second),
		Logger:    testLogger(),
		Now:       clk.Now,
	}
	a := NewManager(store, opts)
	b := NewManager(store, opts)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		m := a
		if i%2 == 1 {
			m = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Update(ctx, "shared", func(s *Session) error {
				if s.Mode == ModeFresh {
					return s.EnterIdle([]string{"root"})
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sess, err := a.GetOrCreate(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, int64(20), sess.Version)
}

func TestRedisLocker_Timeout(t *testing.T) {
	client, _ := setupTestRedis(t)
	locker := NewRedisLocker(client, 100*time.Millisecond)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "1", time.Minute)
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "1", time.Minute)
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, unlock(ctx))
	unlock, err = locker.Lock(ctx, "1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}

func TestCleaner_Sweep(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	m := newTestManager(store, clk)

	_, err := m.Update(ctx, "old", func(s *Session) error { return s.EnterIdle([]string{"root"}) })
	require.NoError(t, err)
	clk.Advance(40 * time.Minute)
	_, err = m.Update(ctx, "new", func(s *Session) error { return s.EnterIdle([]string{"root"}) })
	require.NoError(t, err)

	c := NewCleaner(m, store, testLogger(), 30*time.Minute, time.Minute)
	c.now = clk.Now

	assert.Equal(t, 1, c.Sweep(ctx))
	phones, _ := store.List(ctx)
	assert.Equal(t, []string{"new"}, phones)
}
