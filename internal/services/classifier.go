package services

import (
	"strings"

	"github.com/tradewatch/backend/internal/models"
)

// EventType is the classification of an inbound message.
type EventType int

const (
	EventIgnored EventType = iota
	EventStartCommand
	EventStopCommand
	EventSummaryQuery
	EventLedger
)

// Event is the result of classifying one inbound message. Kind and Amount are
// only meaningful for EventLedger.
type Event struct {
	Type   EventType
	Kind   models.EntryKind
	Amount int64
}

// Classify parses raw message text into exactly one event. It is a pure
// function with no side effects.
//
// Matching is case-insensitive on trimmed text: "/start" and "/stop" are exact
// commands, "total" (or "/total") requests a summary, any text containing
// "win" records a win and any text containing "loss" or "lose" records a loss.
// The amount is the concatenation of every digit in the text; messages whose
// amount resolves to zero are ignored.
func Classify(text string) Event {
	text = strings.ToLower(strings.TrimSpace(text))

	switch text {
	case "/start":
		return Event{Type: EventStartCommand}
	case "/stop":
		return Event{Type: EventStopCommand}
	case "total", "/total":
		return Event{Type: EventSummaryQuery}
	}

	var kind models.EntryKind
	switch {
	case strings.Contains(text, "win"):
		kind = models.KindWin
	case strings.Contains(text, "loss"), strings.Contains(text, "lose"):
		kind = models.KindLoss
	default:
		return Event{Type: EventIgnored}
	}

	amount := extractAmount(text)
	if amount == 0 {
		return Event{Type: EventIgnored}
	}

	return Event{Type: EventLedger, Kind: kind, Amount: amount}
}

// maxAmount caps an extracted amount at 10^15 minor units. Longer digit runs
// resolve to 0 and the message is ignored, never wrapped.
const maxAmount = int64(1_000_000_000_000_000)

// extractAmount concatenates all digit characters in order of appearance.
func extractAmount(text string) int64 {
	var amount int64
	for _, r := range text {
		if r >= '0' && r <= '9' {
			amount = amount*10 + int64(r-'0')
			if amount > maxAmount {
				return 0
			}
		}
	}
	return amount
}
