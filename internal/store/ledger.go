package store

import (
	"database/sql"
	"fmt"

	"github.com/mckayc/task-donegeon-sub005/internal/core"
)

// CreateTransaction stores a ledger entry
func (s *Store) CreateTransaction(t *core.Transaction) (*core.Transaction, error) {
	result, err := s.DB.Exec(`
		INSERT INTO transactions (user_id, guild_id, amount, xp, source_type, source_id, day_bucket, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.GuildID, t.Amount, t.XP, string(t.SourceType), nullInt64(t.SourceID), t.DayBucket, t.Description)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	row := s.DB.QueryRow(`
		SELECT id, user_id, guild_id, amount, xp, source_type, source_id, day_bucket, description, created_at
		FROM transactions WHERE id = ?`, id)
	return scanTransaction(row)
}

func scanTransaction(row rowScanner) (*core.Transaction, error) {
	t := &core.Transaction{}
	var sourceID sql.NullInt64
	var description sql.NullString
	err := row.Scan(&t.ID, &t.UserID, &t.GuildID, &t.Amount, &t.XP,
		&t.SourceType, &sourceID, &t.DayBucket, &description, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	if sourceID.Valid {
		t.SourceID = &sourceID.Int64
	}
	if description.Valid {
		t.Description = description.String
	}
	return t, nil
}

// GetTransactionsByUserAndGuild retrieves a user's ledger in a guild, newest first
func (s *Store) GetTransactionsByUserAndGuild(userID, guildID int64) ([]*core.Transaction, error) {
	rows, err := s.DB.Query(`
		SELECT id, user_id, guild_id, amount, xp, source_type, source_id, day_bucket, description, created_at
		FROM transactions WHERE user_id = ? AND guild_id = ?
		ORDER BY id DESC`, userID, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// GetBalance returns the sum of a user's ledger amounts in a guild
func (s *Store) GetBalance(userID, guildID int64) (int, error) {
	var balance int
	err := s.DB.QueryRow(
		"SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = ? AND guild_id = ?",
		userID, guildID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to compute balance: %w", err)
	}
	return balance, nil
}

// GetXPTotal returns the sum of a user's experience across all guilds
func (s *Store) GetXPTotal(userID int64) (int, error) {
	var xp int
	err := s.DB.QueryRow(
		"SELECT COALESCE(SUM(xp), 0) FROM transactions WHERE user_id = ?", userID).Scan(&xp)
	if err != nil {
		return 0, fmt.Errorf("failed to compute xp total: %w", err)
	}
	return xp, nil
}

// HasSetbackOnDay reports whether a setback was already written for the
// (quest, user) pair on the given local day. The sweep uses this to stay
// idempotent across restarts.
func (s *Store) HasSetbackOnDay(questID, userID int64, day string) (bool, error) {
	var count int
	err := s.DB.QueryRow(`
		SELECT COUNT(*) FROM transactions
		WHERE source_type = 'setback' AND source_id = ? AND user_id = ? AND day_bucket = ?`,
		questID, userID, day).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check setback: %w", err)
	}
	return count > 0, nil
}

// CreateScheduledEvent stores a scheduled override event
func (s *Store) CreateScheduledEvent(e *core.ScheduledEvent) (*core.ScheduledEvent, error) {
	result, err := s.DB.Exec(`
		INSERT INTO scheduled_events (name, kind, guild_id, start_date, end_date, bonus)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Name, string(e.Kind), nullInt64(e.GuildID), e.StartDate, e.EndDate, e.Bonus)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	created := *e
	created.ID = id
	return &created, nil
}

// ListEventsOnDay retrieves every event whose date range covers the given
// local day
func (s *Store) ListEventsOnDay(day string) ([]*core.ScheduledEvent, error) {
	rows, err := s.DB.Query(`
		SELECT id, name, kind, guild_id, start_date, end_date, bonus
		FROM scheduled_events WHERE start_date <= ? AND end_date >= ?
		ORDER BY id`, day, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*core.ScheduledEvent
	for rows.Next() {
		e := &core.ScheduledEvent{}
		var guildID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Name, &e.Kind, &guildID, &e.StartDate, &e.EndDate, &e.Bonus); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if guildID.Valid {
			e.GuildID = &guildID.Int64
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
