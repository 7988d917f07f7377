package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/tradewatch/backend/internal/models"
)

// Client adapts the Telegram Bot API to the notifier and inbound transport
// contracts the core works against.
type Client struct {
	bot         *tgbotapi.BotAPI
	log         *zap.Logger
	pollTimeout int // long-poll timeout, seconds
}

// NewClient builds the client against the public Bot API. The underlying
// library issues requests without context support, so every call is bounded
// by the HTTP client timeout instead; it sits above the long-poll timeout so
// getUpdates can wait out its full window.
func NewClient(token string, pollTimeoutSeconds int, log *zap.Logger) (*Client, error) {
	httpClient := &http.Client{
		Timeout: time.Duration(pollTimeoutSeconds+10) * time.Second,
	}
	return newClient(token, tgbotapi.APIEndpoint, pollTimeoutSeconds, httpClient, log)
}

func newClient(token, endpoint string, pollTimeoutSeconds int, httpClient *http.Client, log *zap.Logger) (*Client, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("telegram client: %w", err)
	}
	bot.Debug = false

	log.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))
	return &Client{bot: bot, log: log, pollTimeout: pollTimeoutSeconds}, nil
}

// Send delivers one Markdown-formatted message to the user. Returns as soon
// as ctx expires; an abandoned request still runs out under the HTTP client
// timeout in the background.
func (c *Client) Send(ctx context.Context, identifier, text string) error {
	chatID, err := strconv.ParseInt(identifier, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram send: bad chat id %q: %w", identifier, err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	done := make(chan error, 1)
	go func() {
		_, err := c.bot.Send(msg)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("telegram send: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		return nil
	}
}

// FetchSince long-polls getUpdates for updates strictly after cursor.
// Updates that carry no text message are still returned, with empty
// identifier and text, so the poller can advance its cursor past them.
// Cancelling ctx stops the wait without waiting out the long poll.
func (c *Client) FetchSince(ctx context.Context, cursor int64) ([]models.InboundMessage, error) {
	cfg := tgbotapi.NewUpdate(int(cursor) + 1)
	cfg.Timeout = c.pollTimeout

	type fetchResult struct {
		updates []tgbotapi.Update
		err     error
	}
	done := make(chan fetchResult, 1)
	go func() {
		updates, err := c.bot.GetUpdates(cfg)
		done <- fetchResult{updates: updates, err: err}
	}()

	var updates []tgbotapi.Update
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("telegram getUpdates: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("telegram getUpdates: %w", res.err)
		}
		updates = res.updates
	}

	msgs := make([]models.InboundMessage, 0, len(updates))
	for _, upd := range updates {
		msg := models.InboundMessage{ID: int64(upd.UpdateID)}
		if upd.Message != nil && upd.Message.Text != "" {
			msg.UserIdentifier = strconv.FormatInt(upd.Message.Chat.ID, 10)
			msg.Text = upd.Message.Text
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
