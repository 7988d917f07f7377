package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tradewatch/backend/internal/models"
	"github.com/tradewatch/backend/internal/services"
)

// Transport fetches inbound messages strictly after the given cursor, in
// delivery order.
type Transport interface {
	FetchSince(ctx context.Context, cursor int64) ([]models.InboundMessage, error)
}

// Engine applies one classified event and returns the reply text, if any.
type Engine interface {
	HandleInbound(ctx context.Context, identifier string, ev services.Event) (string, error)
}

// Notifier delivers reply texts produced by the engine.
type Notifier interface {
	Send(ctx context.Context, identifier, text string) error
}

// CursorStore persists the cursor across restarts. Save failures are
// non-fatal; the in-process cursor stays authoritative.
type CursorStore interface {
	Load(ctx context.Context) (int64, error)
	Save(ctx context.Context, cursor int64) error
}

// Poller is the single cooperative polling loop: fetch a batch, process each
// message fully, sleep a fixed delay, repeat. At most one fetch is in flight
// at a time. The cursor advances as soon as a message is read from the
// transport response, before downstream processing, so delivery to the engine
// is at-least-once on crash.
type Poller struct {
	transport Transport
	engine    Engine
	notifier  Notifier
	cursors   CursorStore
	log       *zap.Logger

	pollDelay time.Duration
	backoff   time.Duration

	cursor int64
}

type Config struct {
	PollDelay time.Duration // sleep between successful polls
	Backoff   time.Duration // sleep after a transport error
}

func New(transport Transport, engine Engine, notifier Notifier, cursors CursorStore, cfg Config, log *zap.Logger) *Poller {
	pollDelay := cfg.PollDelay
	if pollDelay <= 0 {
		pollDelay = 1500 * time.Millisecond
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return &Poller{
		transport: transport,
		engine:    engine,
		notifier:  notifier,
		cursors:   cursors,
		log:       log,
		pollDelay: pollDelay,
		backoff:   backoff,
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	if cursor, err := p.cursors.Load(ctx); err != nil {
		p.log.Warn("cursor load failed, starting from zero", zap.Error(err))
	} else {
		p.cursor = cursor
	}

	p.log.Info("poller starting", zap.Int64("cursor", p.cursor))

	for {
		if ctx.Err() != nil {
			p.log.Info("poller stopping")
			return
		}

		msgs, err := p.transport.FetchSince(ctx, p.cursor)
		if err != nil {
			if ctx.Err() != nil {
				p.log.Info("poller stopping")
				return
			}
			// Transient: the cursor did not advance, the same range is
			// re-requested after the backoff.
			p.log.Warn("fetch failed", zap.Error(err), zap.Duration("backoff", p.backoff))
			if !sleep(ctx, p.backoff) {
				return
			}
			continue
		}

		for _, msg := range msgs {
			p.advance(ctx, msg.ID)
			p.process(ctx, msg)
		}

		if !sleep(ctx, p.pollDelay) {
			return
		}
	}
}

// Cursor reports the last processed message identifier.
func (p *Poller) Cursor() int64 {
	return p.cursor
}

func (p *Poller) advance(ctx context.Context, id int64) {
	p.cursor = id
	if err := p.cursors.Save(ctx, id); err != nil {
		p.log.Warn("cursor save failed", zap.Int64("cursor", id), zap.Error(err))
	}
}

// process classifies one message and feeds it to the engine. Engine and
// notifier failures are logged and never stall the loop or other users.
func (p *Poller) process(ctx context.Context, msg models.InboundMessage) {
	if msg.UserIdentifier == "" || msg.Text == "" {
		return
	}

	ev := services.Classify(msg.Text)
	if ev.Type == services.EventIgnored {
		return
	}

	reply, err := p.engine.HandleInbound(ctx, msg.UserIdentifier, ev)
	if err != nil {
		p.log.Error("inbound processing failed",
			zap.Int64("message_id", msg.ID),
			zap.String("identifier", msg.UserIdentifier),
			zap.Error(err))
		return
	}
	if reply == "" {
		return
	}

	if err := p.notifier.Send(ctx, msg.UserIdentifier, reply); err != nil {
		p.log.Warn("reply send failed",
			zap.String("identifier", msg.UserIdentifier),
			zap.Error(err))
	}
}

// sleep waits d or until ctx is cancelled, reporting whether to keep running.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
