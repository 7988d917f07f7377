package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tradewatch/backend/internal/models"
)

// LedgerStore is the durable storage the engine writes sessions and ledger
// entries to.
type LedgerStore interface {
	GetSession(ctx context.Context, identifier string) (*models.UserSession, error)
	PutSession(ctx context.Context, sess *models.UserSession) error
	SetActive(ctx context.Context, identifier string, active bool) error
	ListActiveSessions(ctx context.Context) ([]models.UserSession, error)
	AppendEntry(ctx context.Context, identifier string, kind models.EntryKind, amount int64) (*models.LedgerEntry, error)
	SumDeltas(ctx context.Context, identifier string) (int64, error)
	ListEntries(ctx context.Context, identifier string) ([]models.LedgerEntry, error)
	DeleteEntries(ctx context.Context, identifier string) error
}

// Notifier delivers a text message to a user. Failures are logged by callers
// and never roll back state changes.
type Notifier interface {
	Send(ctx context.Context, identifier, text string) error
}

// ReminderScheduler maintains the recurring reminder timer per active session.
type ReminderScheduler interface {
	Register(identifier string, interval time.Duration)
	Deregister(identifier string)
}

const lockStripes = 64

// SessionService owns per-user session state: it is the sole writer of the
// active flag and the sole producer of ledger entries. All operations that
// touch one user's session are serialized through a striped per-identifier
// lock so concurrent ledger appends cannot corrupt the running-balance
// invariant, and timer registration stays in step with the active flag.
type SessionService struct {
	store           LedgerStore
	notifier        Notifier
	scheduler       ReminderScheduler
	log             *zap.Logger
	defaultInterval int

	locks [lockStripes]sync.Mutex
}

func NewSessionService(store LedgerStore, notifier Notifier, scheduler ReminderScheduler, log *zap.Logger) *SessionService {
	return &SessionService{
		store:           store,
		notifier:        notifier,
		scheduler:       scheduler,
		log:             log,
		defaultInterval: 5,
	}
}

func (s *SessionService) lock(identifier string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(identifier))
	return &s.locks[h.Sum32()%lockStripes]
}

// StartSession creates or fully replaces the user's session configuration,
// forces it active, (re)registers the reminder timer and sends an activation
// notification. Repeated calls replace prior configuration (last write wins).
func (s *SessionService) StartSession(ctx context.Context, sess models.UserSession) error {
	if sess.Identifier == "" {
		return fmt.Errorf("start session: identifier required")
	}
	if sess.IntervalMinutes <= 0 {
		sess.IntervalMinutes = s.defaultInterval
	}
	sess.Active = true

	mu := s.lock(sess.Identifier)
	mu.Lock()
	defer mu.Unlock()

	if err := s.store.PutSession(ctx, &sess); err != nil {
		return err
	}
	s.scheduler.Register(sess.Identifier, time.Duration(sess.IntervalMinutes)*time.Minute)

	s.notify(ctx, sess.Identifier, startedText(sess.IntervalMinutes, sess.TargetWin, sess.StopLoss))

	s.log.Info("session started",
		zap.String("identifier", sess.Identifier),
		zap.Int64("start_balance", sess.StartBalance),
		zap.Int64("target_win", sess.TargetWin),
		zap.Int64("stop_loss", sess.StopLoss),
		zap.Int("interval_minutes", sess.IntervalMinutes))
	return nil
}

// StopSession deactivates the session and cancels its reminder timer. It is
// a no-op when the session does not exist or is already inactive. The user is
// notified only when the session actually flips to inactive.
func (s *SessionService) StopSession(ctx context.Context, identifier string) error {
	mu := s.lock(identifier)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.store.GetSession(ctx, identifier)
	if err != nil {
		return err
	}
	if sess == nil || !sess.Active {
		return nil
	}

	if err := s.deactivate(ctx, identifier); err != nil {
		return err
	}
	s.notify(ctx, identifier, stoppedText())
	return nil
}

// deactivate flips the active flag and cancels the timer. Callers must hold
// the identifier's lock.
func (s *SessionService) deactivate(ctx context.Context, identifier string) error {
	if err := s.store.SetActive(ctx, identifier, false); err != nil {
		return err
	}
	s.scheduler.Deregister(identifier)
	s.log.Info("session deactivated", zap.String("identifier", identifier))
	return nil
}

// HandleInbound routes one classified event for a user and returns the reply
// text, or "" when there is nothing to say. Start and stop commands are
// accepted regardless of the active flag; everything else requires an
// existing session, and ledger events additionally require it to be active.
func (s *SessionService) HandleInbound(ctx context.Context, identifier string, ev Event) (string, error) {
	switch ev.Type {
	case EventStartCommand:
		return s.activateFromChat(ctx, identifier)
	case EventStopCommand:
		// StopSession already notifies on an actual flip; no extra reply.
		return "", s.StopSession(ctx, identifier)
	case EventSummaryQuery:
		return s.summaryReply(ctx, identifier)
	case EventLedger:
		return s.ApplyLedgerEvent(ctx, identifier, ev.Kind, ev.Amount)
	default:
		return "", nil
	}
}

// activateFromChat handles the /start chat command: it reactivates an
// existing session keeping its stored configuration, or creates a fresh one
// with defaults. Either way the reminder timer is (re)registered.
func (s *SessionService) activateFromChat(ctx context.Context, identifier string) (string, error) {
	mu := s.lock(identifier)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.store.GetSession(ctx, identifier)
	if err != nil {
		return "", err
	}
	if sess == nil {
		sess = &models.UserSession{
			Identifier:      identifier,
			IntervalMinutes: s.defaultInterval,
		}
	}
	sess.Active = true

	if err := s.store.PutSession(ctx, sess); err != nil {
		return "", err
	}
	s.scheduler.Register(identifier, time.Duration(sess.IntervalMinutes)*time.Minute)

	s.log.Info("session activated via chat", zap.String("identifier", identifier))
	return activatedText(), nil
}

// summaryReply formats the summary for chat. Unknown users get no reply.
func (s *SessionService) summaryReply(ctx context.Context, identifier string) (string, error) {
	summary, err := s.Summarize(ctx, identifier)
	if err != nil {
		return "", err
	}
	if summary == nil {
		return "", nil
	}
	return summaryText(summary.StartBalance, summary.Net, summary.CurrentBalance, summary.Active), nil
}

// ApplyLedgerEvent appends one win/loss entry and evaluates the auto-stop
// thresholds. Events for missing or inactive sessions, and non-positive
// amounts, are silently ignored: no entry, no notification. The threshold
// check is win-first; a single signed delta cannot satisfy both bounds.
func (s *SessionService) ApplyLedgerEvent(ctx context.Context, identifier string, kind models.EntryKind, amount int64) (string, error) {
	if amount <= 0 {
		return "", nil
	}

	mu := s.lock(identifier)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.store.GetSession(ctx, identifier)
	if err != nil {
		return "", err
	}
	if sess == nil || !sess.Active {
		return "", nil
	}

	entry, err := s.store.AppendEntry(ctx, identifier, kind, amount)
	if err != nil {
		return "", err
	}
	net := entry.RunningBalance - sess.StartBalance

	reply := entryLoggedText(amount, net)
	switch {
	case sess.TargetWin > 0 && net >= sess.TargetWin:
		// The entry is already durable; if the stop cannot be persisted the
		// user still learns the entry was recorded, and the next event
		// re-triggers the threshold check.
		if err := s.deactivate(ctx, identifier); err != nil {
			s.log.Error("auto-stop failed",
				zap.String("identifier", identifier),
				zap.Error(err))
			break
		}
		reply += targetWinText()
	case sess.StopLoss > 0 && net <= -sess.StopLoss:
		if err := s.deactivate(ctx, identifier); err != nil {
			s.log.Error("auto-stop failed",
				zap.String("identifier", identifier),
				zap.Error(err))
			break
		}
		reply += stopLossText()
	default:
		reply += reminderContinuesText(sess.IntervalMinutes)
	}

	s.log.Info("ledger event applied",
		zap.String("identifier", identifier),
		zap.String("kind", string(kind)),
		zap.Int64("amount", amount),
		zap.Int64("net", net))
	return reply, nil
}

// Summarize computes the session's position on demand. Returns (nil, nil)
// when no session exists.
func (s *SessionService) Summarize(ctx context.Context, identifier string) (*models.SessionSummary, error) {
	sess, err := s.store.GetSession(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}

	net, err := s.store.SumDeltas(ctx, identifier)
	if err != nil {
		return nil, err
	}

	return &models.SessionSummary{
		Identifier:      sess.Identifier,
		StartBalance:    sess.StartBalance,
		Net:             net,
		CurrentBalance:  sess.StartBalance + net,
		TargetWin:       sess.TargetWin,
		StopLoss:        sess.StopLoss,
		IntervalMinutes: sess.IntervalMinutes,
		Active:          sess.Active,
	}, nil
}

// History returns the user's ledger entries, most recent first.
func (s *SessionService) History(ctx context.Context, identifier string) ([]models.LedgerEntry, error) {
	return s.store.ListEntries(ctx, identifier)
}

// ClearHistory deletes every ledger entry for the user. Session configuration
// and the active flag are untouched.
func (s *SessionService) ClearHistory(ctx context.Context, identifier string) error {
	mu := s.lock(identifier)
	mu.Lock()
	defer mu.Unlock()
	return s.store.DeleteEntries(ctx, identifier)
}

// ResumeSessions re-registers reminder timers for sessions that were active
// before a restart, restoring the one-timer-per-active-session invariant.
func (s *SessionService) ResumeSessions(ctx context.Context) error {
	sessions, err := s.store.ListActiveSessions(ctx)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		interval := sess.IntervalMinutes
		if interval <= 0 {
			interval = s.defaultInterval
		}
		s.scheduler.Register(sess.Identifier, time.Duration(interval)*time.Minute)
	}
	if len(sessions) > 0 {
		s.log.Info("resumed active sessions", zap.Int("count", len(sessions)))
	}
	return nil
}

// notify sends fire-and-forget. A failed send never fails the operation that
// produced it.
func (s *SessionService) notify(ctx context.Context, identifier, text string) {
	if err := s.notifier.Send(ctx, identifier, text); err != nil {
		s.log.Warn("notification send failed",
			zap.String("identifier", identifier),
			zap.Error(err))
	}
}
