package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mckayc/task-donegeon-sub005/internal/core"
)

const questColumns = `id, guild_id, title, description, kind, is_active,
	recurrence_rule, start_time, end_time, due_time, all_day, start_at, end_at,
	daily_limit, total_limit, requires_claim, claim_limit, requires_approval,
	reward_value, reward_xp, late_setback, incomplete_setback, created_at`

// CreateQuest stores a quest definition with its checkpoints, condition set
// links and explicit assignments
func (s *Store) CreateQuest(q *core.Quest) (*core.Quest, error) {
	tx, err := s.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO quests (guild_id, title, description, kind, is_active,
			recurrence_rule, start_time, end_time, due_time, all_day, start_at, end_at,
			daily_limit, total_limit, requires_claim, claim_limit, requires_approval,
			reward_value, reward_xp, late_setback, incomplete_setback)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.GuildID, q.Title, q.Description, string(q.Kind), q.IsActive,
		q.RecurrenceRule, q.StartTime, q.EndTime, q.DueTime, q.AllDay, nullTime(q.StartAt), nullTime(q.EndAt),
		q.DailyLimit, q.TotalLimit, q.RequiresClaim, q.ClaimLimit, q.RequiresApproval,
		q.RewardValue, q.RewardXP, q.LateSetback, q.IncompleteSetback)
	if err != nil {
		return nil, fmt.Errorf("failed to create quest: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := writeQuestLinks(tx, id, q); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit quest: %w", err)
	}
	return s.GetQuestByID(id)
}

// UpdateQuest rewrites a quest definition and its links
func (s *Store) UpdateQuest(q *core.Quest) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE quests SET guild_id = ?, title = ?, description = ?, kind = ?, is_active = ?,
			recurrence_rule = ?, start_time = ?, end_time = ?, due_time = ?, all_day = ?,
			start_at = ?, end_at = ?, daily_limit = ?, total_limit = ?,
			requires_claim = ?, claim_limit = ?, requires_approval = ?,
			reward_value = ?, reward_xp = ?, late_setback = ?, incomplete_setback = ?
		WHERE id = ?`,
		q.GuildID, q.Title, q.Description, string(q.Kind), q.IsActive,
		q.RecurrenceRule, q.StartTime, q.EndTime, q.DueTime, q.AllDay,
		nullTime(q.StartAt), nullTime(q.EndAt), q.DailyLimit, q.TotalLimit,
		q.RequiresClaim, q.ClaimLimit, q.RequiresApproval,
		q.RewardValue, q.RewardXP, q.LateSetback, q.IncompleteSetback, q.ID)
	if err != nil {
		return fmt.Errorf("failed to update quest: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}

	for _, table := range []string{"quest_checkpoints", "quest_condition_sets", "quest_assignments"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE quest_id = ?", q.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if err := writeQuestLinks(tx, q.ID, q); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit quest update: %w", err)
	}
	return nil
}

func writeQuestLinks(tx *sql.Tx, questID int64, q *core.Quest) error {
	for i := range q.Checkpoints {
		cp := &q.Checkpoints[i]
		result, err := tx.Exec(`
			INSERT INTO quest_checkpoints (quest_id, position, title, reward_value, reward_xp)
			VALUES (?, ?, ?, ?, ?)`,
			questID, cp.Position, cp.Title, cp.RewardValue, cp.RewardXP)
		if err != nil {
			return fmt.Errorf("failed to create checkpoint: %w", err)
		}
		cpID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get checkpoint id: %w", err)
		}
		cp.ID = cpID
		cp.QuestID = questID
	}
	for _, setID := range q.ConditionSetIDs {
		if _, err := tx.Exec(
			"INSERT INTO quest_condition_sets (quest_id, condition_set_id) VALUES (?, ?)",
			questID, setID); err != nil {
			return fmt.Errorf("failed to link condition set: %w", err)
		}
	}
	for _, userID := range q.AssignedUserIDs {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO quest_assignments (quest_id, user_id) VALUES (?, ?)",
			questID, userID); err != nil {
			return fmt.Errorf("failed to assign quest: %w", err)
		}
	}
	return nil
}

// GetQuestByID retrieves a quest with its checkpoints, condition set links
// and assignments
func (s *Store) GetQuestByID(id int64) (*core.Quest, error) {
	row := s.DB.QueryRow("SELECT "+questColumns+" FROM quests WHERE id = ?", id)
	quest, err := scanQuest(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadQuestLinks(quest); err != nil {
		return nil, err
	}
	return quest, nil
}

// GetQuestsByGuildID retrieves all quests in a guild
func (s *Store) GetQuestsByGuildID(guildID int64) ([]*core.Quest, error) {
	return s.queryQuests("SELECT "+questColumns+" FROM quests WHERE guild_id = ? ORDER BY id", guildID)
}

// ListActiveQuests retrieves every active quest across all guilds
func (s *Store) ListActiveQuests() ([]*core.Quest, error) {
	return s.queryQuests("SELECT " + questColumns + " FROM quests WHERE is_active = 1 ORDER BY id")
}

func (s *Store) queryQuests(query string, args ...interface{}) ([]*core.Quest, error) {
	rows, err := s.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quests: %w", err)
	}
	defer rows.Close()

	var quests []*core.Quest
	for rows.Next() {
		quest, err := scanQuest(rows)
		if err != nil {
			return nil, err
		}
		quests = append(quests, quest)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, q := range quests {
		if err := s.loadQuestLinks(q); err != nil {
			return nil, err
		}
	}
	return quests, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuest(row rowScanner) (*core.Quest, error) {
	q := &core.Quest{}
	var description sql.NullString
	var startAt, endAt sql.NullTime
	err := row.Scan(&q.ID, &q.GuildID, &q.Title, &description, &q.Kind, &q.IsActive,
		&q.RecurrenceRule, &q.StartTime, &q.EndTime, &q.DueTime, &q.AllDay, &startAt, &endAt,
		&q.DailyLimit, &q.TotalLimit, &q.RequiresClaim, &q.ClaimLimit, &q.RequiresApproval,
		&q.RewardValue, &q.RewardXP, &q.LateSetback, &q.IncompleteSetback, &q.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan quest: %w", err)
	}
	if description.Valid {
		q.Description = description.String
	}
	if startAt.Valid {
		q.StartAt = &startAt.Time
	}
	if endAt.Valid {
		q.EndAt = &endAt.Time
	}
	return q, nil
}

func (s *Store) loadQuestLinks(q *core.Quest) error {
	rows, err := s.DB.Query(`
		SELECT id, quest_id, position, title, reward_value, reward_xp
		FROM quest_checkpoints WHERE quest_id = ? ORDER BY position`, q.ID)
	if err != nil {
		return fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cp core.Checkpoint
		if err := rows.Scan(&cp.ID, &cp.QuestID, &cp.Position, &cp.Title, &cp.RewardValue, &cp.RewardXP); err != nil {
			return fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		q.Checkpoints = append(q.Checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	q.ConditionSetIDs, err = s.queryIDs(
		"SELECT condition_set_id FROM quest_condition_sets WHERE quest_id = ? ORDER BY condition_set_id", q.ID)
	if err != nil {
		return fmt.Errorf("failed to query condition set links: %w", err)
	}
	q.AssignedUserIDs, err = s.queryIDs(
		"SELECT user_id FROM quest_assignments WHERE quest_id = ? ORDER BY user_id", q.ID)
	if err != nil {
		return fmt.Errorf("failed to query assignments: %w", err)
	}
	return nil
}

func (s *Store) queryIDs(query string, args ...interface{}) ([]int64, error) {
	rows, err := s.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetQuestAssignments replaces the explicit assignment list of a quest
func (s *Store) SetQuestAssignments(questID int64, userIDs []int64) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM quest_assignments WHERE quest_id = ?", questID); err != nil {
		return fmt.Errorf("failed to clear assignments: %w", err)
	}
	for _, userID := range userIDs {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO quest_assignments (quest_id, user_id) VALUES (?, ?)",
			questID, userID); err != nil {
			return fmt.Errorf("failed to assign quest: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteQuest removes a quest and its links. Completion rows that reference
// the quest are marked orphaned and kept for the ledger history.
func (s *Store) DeleteQuest(id int64) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE completions SET orphaned = 1 WHERE quest_id = ?", id); err != nil {
		return fmt.Errorf("failed to orphan completions: %w", err)
	}
	for _, table := range []string{"quest_checkpoints", "quest_condition_sets", "quest_assignments", "claims"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE quest_id = ?", id); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	result, err := tx.Exec("DELETE FROM quests WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete quest: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return tx.Commit()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
