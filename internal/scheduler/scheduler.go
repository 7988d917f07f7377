package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notifier is the minimal send capability the scheduler needs.
type Notifier interface {
	Send(ctx context.Context, identifier, text string) error
}

const reminderText = "🔔 *Reminder*\nReply with `win <amount>` or `loss <amount>` to record your latest trade."

// ReminderScheduler owns one recurring reminder timer per active session.
// Register replaces any existing timer for the identifier, so an active
// session always has exactly one live timer. Firing only touches the
// notifier, never the ledger.
type ReminderScheduler struct {
	notifier    Notifier
	log         *zap.Logger
	sendTimeout time.Duration

	mu     sync.Mutex
	timers map[string]chan struct{}
	wg     sync.WaitGroup
}

func New(notifier Notifier, log *zap.Logger) *ReminderScheduler {
	return &ReminderScheduler{
		notifier:    notifier,
		log:         log,
		sendTimeout: 10 * time.Second,
		timers:      make(map[string]chan struct{}),
	}
}

// Register starts a recurring timer for identifier, cancelling any existing
// one first. Re-registering with a new interval replaces the cadence rather
// than accumulating timers.
func (s *ReminderScheduler) Register(identifier string, interval time.Duration) {
	if interval <= 0 {
		return
	}

	s.mu.Lock()
	if stop, ok := s.timers[identifier]; ok {
		close(stop)
	}
	stop := make(chan struct{})
	s.timers[identifier] = stop
	// Add under the lock so a concurrent StopAll cannot Wait before this
	// timer is counted.
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(identifier, interval, stop)

	s.log.Info("reminder timer registered",
		zap.String("identifier", identifier),
		zap.Duration("interval", interval))
}

// Deregister cancels the timer for identifier if one exists.
func (s *ReminderScheduler) Deregister(identifier string) {
	s.mu.Lock()
	stop, ok := s.timers[identifier]
	if ok {
		close(stop)
		delete(s.timers, identifier)
	}
	s.mu.Unlock()

	if ok {
		s.log.Info("reminder timer deregistered", zap.String("identifier", identifier))
	}
}

// StopAll cancels every timer and waits for their goroutines to exit.
func (s *ReminderScheduler) StopAll() {
	s.mu.Lock()
	for id, stop := range s.timers {
		close(stop)
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// TimerCount reports the number of live timers.
func (s *ReminderScheduler) TimerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *ReminderScheduler) run(identifier string, interval time.Duration, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.fire(identifier)
		}
	}
}

// fire sends one reminder. Notifier failures are logged and swallowed; a
// failed send never stops the timer.
func (s *ReminderScheduler) fire(identifier string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()

	if err := s.notifier.Send(ctx, identifier, reminderText); err != nil {
		s.log.Warn("reminder send failed",
			zap.String("identifier", identifier),
			zap.Error(err))
	}
}
