package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradewatch/backend/internal/models"
)

// memoryLedgerStore is an in-memory LedgerStore for sequence tests where the
// running balance must accumulate across events.
type memoryLedgerStore struct {
	mu       sync.Mutex
	sessions map[string]models.UserSession
	entries  map[string][]models.LedgerEntry
	nextID   int64
}

func newMemoryLedgerStore() *memoryLedgerStore {
	return &memoryLedgerStore{
		sessions: make(map[string]models.UserSession),
		entries:  make(map[string][]models.LedgerEntry),
	}
}

func (m *memoryLedgerStore) GetSession(_ context.Context, id string) (*models.UserSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (m *memoryLedgerStore) PutSession(_ context.Context, sess *models.UserSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.Identifier] = *sess
	return nil
}

func (m *memoryLedgerStore) SetActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil
	}
	sess.Active = active
	m.sessions[id] = sess
	return nil
}

func (m *memoryLedgerStore) ListActiveSessions(_ context.Context) ([]models.UserSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UserSession
	for _, sess := range m.sessions {
		if sess.Active {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (m *memoryLedgerStore) AppendEntry(_ context.Context, id string, kind models.EntryKind, amount int64) (*models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.sessions[id]
	var net int64
	for _, e := range m.entries[id] {
		net += e.Delta
	}

	delta := amount
	if kind == models.KindLoss {
		delta = -amount
	}
	m.nextID++
	entry := models.LedgerEntry{
		ID:             m.nextID,
		UserIdentifier: id,
		Kind:           kind,
		Delta:          delta,
		RunningBalance: sess.StartBalance + net + delta,
		CreatedAt:      time.Now(),
	}
	m.entries[id] = append(m.entries[id], entry)
	return &entry, nil
}

func (m *memoryLedgerStore) SumDeltas(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var net int64
	for _, e := range m.entries[id] {
		net += e.Delta
	}
	return net, nil
}

func (m *memoryLedgerStore) ListEntries(_ context.Context, id string) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.entries[id]
	out := make([]models.LedgerEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (m *memoryLedgerStore) DeleteEntries(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Send(context.Context, string, string) error { return nil }

type recordingScheduler struct {
	mu        sync.Mutex
	intervals map[string]time.Duration
}

func newRecordingScheduler() *recordingScheduler {
	return &recordingScheduler{intervals: make(map[string]time.Duration)}
}

func (r *recordingScheduler) Register(id string, interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intervals[id] = interval
}

func (r *recordingScheduler) Deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.intervals, id)
}

func (r *recordingScheduler) registered(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.intervals[id]
	return ok
}

func TestSessionLifecycleScenario(t *testing.T) {
	ctx := context.Background()

	newEngine := func() (*SessionService, *memoryLedgerStore, *recordingScheduler) {
		store := newMemoryLedgerStore()
		sched := newRecordingScheduler()
		svc := NewSessionService(store, nopNotifier{}, sched, zap.NewNop())
		require.NoError(t, svc.StartSession(ctx, models.UserSession{
			Identifier:      "user1",
			StartBalance:    100000,
			TargetWin:       50000,
			StopLoss:        20000,
			IntervalMinutes: 5,
		}))
		return svc, store, sched
	}

	t.Run("wins accumulate then target auto-stops", func(t *testing.T) {
		svc, _, sched := newEngine()

		reply, err := svc.HandleInbound(ctx, "user1", Classify("win 30000"))
		require.NoError(t, err)
		assert.Contains(t, reply, "30,000")
		assert.True(t, sched.registered("user1"))

		summary, err := svc.Summarize(ctx, "user1")
		require.NoError(t, err)
		assert.Equal(t, int64(30000), summary.Net)
		assert.True(t, summary.Active)

		reply, err = svc.HandleInbound(ctx, "user1", Classify("win 25000"))
		require.NoError(t, err)
		assert.Contains(t, reply, "TARGET WIN REACHED")
		assert.False(t, sched.registered("user1"))

		summary, err = svc.Summarize(ctx, "user1")
		require.NoError(t, err)
		assert.Equal(t, int64(55000), summary.Net)
		assert.False(t, summary.Active)

		// Auto-stop is monotone: further events are rejected until a start.
		reply, err = svc.HandleInbound(ctx, "user1", Classify("win 1000"))
		require.NoError(t, err)
		assert.Empty(t, reply)

		summary, err = svc.Summarize(ctx, "user1")
		require.NoError(t, err)
		assert.Equal(t, int64(55000), summary.Net)
	})

	t.Run("loss crossing stop-loss auto-stops", func(t *testing.T) {
		svc, _, sched := newEngine()

		reply, err := svc.HandleInbound(ctx, "user1", Classify("loss 25000"))
		require.NoError(t, err)
		assert.Contains(t, reply, "STOP LOSS REACHED")
		assert.False(t, sched.registered("user1"))

		summary, err := svc.Summarize(ctx, "user1")
		require.NoError(t, err)
		assert.Equal(t, int64(-25000), summary.Net)
		assert.False(t, summary.Active)
	})

	t.Run("running balances carry partial sums", func(t *testing.T) {
		svc, _, _ := newEngine()

		for _, text := range []string{"win 5000", "loss 2000", "win 1000"} {
			_, err := svc.HandleInbound(ctx, "user1", Classify(text))
			require.NoError(t, err)
		}

		entries, err := svc.History(ctx, "user1")
		require.NoError(t, err)
		require.Len(t, entries, 3)
		// Most recent first.
		assert.Equal(t, int64(104000), entries[0].RunningBalance)
		assert.Equal(t, int64(103000), entries[1].RunningBalance)
		assert.Equal(t, int64(105000), entries[2].RunningBalance)

		summary, err := svc.Summarize(ctx, "user1")
		require.NoError(t, err)
		assert.Equal(t, int64(4000), summary.Net)
		assert.Equal(t, int64(104000), summary.CurrentBalance)
	})

	t.Run("clear history resets net but not configuration", func(t *testing.T) {
		svc, _, sched := newEngine()

		_, err := svc.HandleInbound(ctx, "user1", Classify("win 10000"))
		require.NoError(t, err)

		require.NoError(t, svc.ClearHistory(ctx, "user1"))

		summary, err := svc.Summarize(ctx, "user1")
		require.NoError(t, err)
		assert.Equal(t, int64(0), summary.Net)
		assert.Equal(t, int64(100000), summary.CurrentBalance)
		assert.True(t, summary.Active)
		assert.True(t, sched.registered("user1"))

		entries, err := svc.History(ctx, "user1")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("stop then start reactivates with stored config", func(t *testing.T) {
		svc, _, sched := newEngine()

		require.NoError(t, svc.StopSession(ctx, "user1"))
		assert.False(t, sched.registered("user1"))

		reply, err := svc.HandleInbound(ctx, "user1", Classify("/start"))
		require.NoError(t, err)
		assert.Contains(t, reply, "BOT ACTIVE")
		assert.True(t, sched.registered("user1"))

		summary, err := svc.Summarize(ctx, "user1")
		require.NoError(t, err)
		assert.True(t, summary.Active)
		assert.Equal(t, int64(100000), summary.StartBalance)
	})
}
