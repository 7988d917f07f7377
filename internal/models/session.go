package models

import (
	"time"
)

// EntryKind classifies a ledger entry as a winning or losing trade.
type EntryKind string

const (
	KindWin  EntryKind = "WIN"
	KindLoss EntryKind = "LOSS"
)

// UserSession holds one user's tracking configuration. All balances are in
// minor units (cents).
type UserSession struct {
	Identifier      string `json:"identifier" db:"telegram_id"`
	StartBalance    int64  `json:"start_balance" db:"start_balance"`
	TargetWin       int64  `json:"target_win" db:"target_win"` // 0 disables the check
	StopLoss        int64  `json:"stop_loss" db:"stop_loss"`   // 0 disables the check
	IntervalMinutes int    `json:"interval_minutes" db:"interval_minutes"`
	Active          bool   `json:"active" db:"is_active"`
}

// LedgerEntry is one recorded win/loss event. Rows are immutable once written;
// RunningBalance is start balance plus the sum of deltas through this entry,
// computed at write time.
type LedgerEntry struct {
	ID             int64     `json:"id" db:"id"`
	Reference      string    `json:"reference" db:"reference"`
	UserIdentifier string    `json:"user_identifier" db:"telegram_id"`
	Kind           EntryKind `json:"kind" db:"status"`
	Delta          int64     `json:"delta" db:"profit_loss"`
	RunningBalance int64     `json:"running_balance" db:"current_balance"`
	CreatedAt      time.Time `json:"created_at" db:"time"`
}

// SessionSummary is the on-demand view of a session's position. Never cached.
type SessionSummary struct {
	Identifier      string `json:"identifier"`
	StartBalance    int64  `json:"start_balance"`
	Net             int64  `json:"net"`
	CurrentBalance  int64  `json:"current_balance"`
	TargetWin       int64  `json:"target_win"`
	StopLoss        int64  `json:"stop_loss"`
	IntervalMinutes int    `json:"interval_minutes"`
	Active          bool   `json:"active"`
}

// InboundMessage is one message pulled from the inbound transport.
// Transport delivery order is the only ordering guarantee.
type InboundMessage struct {
	ID             int64
	UserIdentifier string
	Text           string
}
