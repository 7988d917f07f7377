package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tradewatch/backend/internal/models"
)

// ErrSessionNotFound is returned when an operation requires a session row
// that does not exist.
var ErrSessionNotFound = errors.New("session not found")

// PostgresLedgerStore persists user sessions and their append-only ledger.
type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{db: db}
}

// GetSession returns the session for identifier, or (nil, nil) when absent.
func (s *PostgresLedgerStore) GetSession(ctx context.Context, identifier string) (*models.UserSession, error) {
	var sess models.UserSession
	err := s.db.QueryRowContext(ctx, `
		SELECT telegram_id, start_balance, target_win, stop_loss, interval_minutes, is_active
		FROM users
		WHERE telegram_id = $1`, identifier).
		Scan(&sess.Identifier, &sess.StartBalance, &sess.TargetWin, &sess.StopLoss, &sess.IntervalMinutes, &sess.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

// PutSession creates or fully replaces the session row (last write wins).
func (s *PostgresLedgerStore) PutSession(ctx context.Context, sess *models.UserSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (telegram_id, start_balance, target_win, stop_loss, interval_minutes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (telegram_id) DO UPDATE
		SET start_balance = $2, target_win = $3, stop_loss = $4, interval_minutes = $5, is_active = $6`,
		sess.Identifier, sess.StartBalance, sess.TargetWin, sess.StopLoss, sess.IntervalMinutes, sess.Active)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// SetActive flips only the active flag, leaving configuration untouched.
func (s *PostgresLedgerStore) SetActive(ctx context.Context, identifier string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = $2 WHERE telegram_id = $1`, identifier, active)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListActiveSessions returns every session whose active flag is set. Used to
// rehydrate reminder timers after a restart.
func (s *PostgresLedgerStore) ListActiveSessions(ctx context.Context) ([]models.UserSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT telegram_id, start_balance, target_win, stop_loss, interval_minutes, is_active
		FROM users
		WHERE is_active = TRUE
		ORDER BY telegram_id`)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.UserSession
	for rows.Next() {
		var sess models.UserSession
		if err := rows.Scan(&sess.Identifier, &sess.StartBalance, &sess.TargetWin, &sess.StopLoss, &sess.IntervalMinutes, &sess.Active); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// AppendEntry writes one ledger entry, computing the running balance inside
// a transaction. The session row is locked for the duration of the
// read-sum-insert sequence so concurrent appends for the same user cannot
// interleave.
func (s *PostgresLedgerStore) AppendEntry(ctx context.Context, identifier string, kind models.EntryKind, amount int64) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("append entry: amount must be positive, got %d", amount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("append entry: %w", err)
	}
	defer tx.Rollback()

	var startBalance int64
	err = tx.QueryRowContext(ctx,
		`SELECT start_balance FROM users WHERE telegram_id = $1 FOR UPDATE`, identifier).
		Scan(&startBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}

	var priorNet int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(profit_loss), 0) FROM session_logs WHERE telegram_id = $1`, identifier).
		Scan(&priorNet)
	if err != nil {
		return nil, fmt.Errorf("sum deltas: %w", err)
	}

	delta := amount
	if kind == models.KindLoss {
		delta = -amount
	}

	entry := &models.LedgerEntry{
		Reference:      uuid.NewString(),
		UserIdentifier: identifier,
		Kind:           kind,
		Delta:          delta,
		RunningBalance: startBalance + priorNet + delta,
		CreatedAt:      time.Now(),
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO session_logs (telegram_id, reference, current_balance, profit_loss, status, time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		entry.UserIdentifier, entry.Reference, entry.RunningBalance, entry.Delta, string(entry.Kind), entry.CreatedAt).
		Scan(&entry.ID)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("append entry: %w", err)
	}
	return entry, nil
}

// SumDeltas returns the net profit/loss for identifier.
func (s *PostgresLedgerStore) SumDeltas(ctx context.Context, identifier string) (int64, error) {
	var net int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(profit_loss), 0) FROM session_logs WHERE telegram_id = $1`, identifier).
		Scan(&net)
	if err != nil {
		return 0, fmt.Errorf("sum deltas: %w", err)
	}
	return net, nil
}

// ListEntries returns the user's ledger entries, most recent first.
func (s *PostgresLedgerStore) ListEntries(ctx context.Context, identifier string) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reference, telegram_id, status, profit_loss, current_balance, time
		FROM session_logs
		WHERE telegram_id = $1
		ORDER BY id DESC`, identifier)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.Reference, &e.UserIdentifier, &kind, &e.Delta, &e.RunningBalance, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Kind = models.EntryKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteEntries removes all ledger entries for identifier. The session row is
// untouched.
func (s *PostgresLedgerStore) DeleteEntries(ctx context.Context, identifier string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM session_logs WHERE telegram_id = $1`, identifier)
	if err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	return nil
}
