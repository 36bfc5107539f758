package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mckayc/task-donegeon-sub005/internal/core"
)

const completionColumns = `id, record_id, quest_id, user_id, checkpoint_id,
	status, note, day_bucket, submitted_at, resolved_at, resolved_by, orphaned`

// CreateCompletion stores a submitted completion
func (s *Store) CreateCompletion(c *core.QuestCompletion) (*core.QuestCompletion, error) {
	result, err := s.DB.Exec(`
		INSERT INTO completions (record_id, quest_id, user_id, checkpoint_id,
			status, note, day_bucket, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.RecordID, c.QuestID, c.UserID, nullInt64(c.CheckpointID),
		string(c.Status), c.Note, c.DayBucket, c.SubmittedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return s.GetCompletionByID(id)
}

// GetCompletionByID retrieves a completion by ID
func (s *Store) GetCompletionByID(id int64) (*core.QuestCompletion, error) {
	row := s.DB.QueryRow("SELECT "+completionColumns+" FROM completions WHERE id = ?", id)
	c := &core.QuestCompletion{}
	var checkpointID, resolvedBy sql.NullInt64
	var note sql.NullString
	var resolvedAt sql.NullTime
	err := row.Scan(&c.ID, &c.RecordID, &c.QuestID, &c.UserID, &checkpointID,
		&c.Status, &note, &c.DayBucket, &c.SubmittedAt, &resolvedAt, &resolvedBy, &c.Orphaned)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan completion: %w", err)
	}
	if checkpointID.Valid {
		c.CheckpointID = &checkpointID.Int64
	}
	if note.Valid {
		c.Note = note.String
	}
	if resolvedAt.Valid {
		c.ResolvedAt = &resolvedAt.Time
	}
	if resolvedBy.Valid {
		c.ResolvedBy = &resolvedBy.Int64
	}
	return c, nil
}

// ResolveCompletion transitions a pending completion to approved or rejected
func (s *Store) ResolveCompletion(id int64, status core.CompletionStatus, resolvedBy int64, resolvedAt time.Time, note string) error {
	result, err := s.DB.Exec(`
		UPDATE completions SET status = ?, resolved_by = ?, resolved_at = ?, note = ?
		WHERE id = ? AND status = 'pending'`,
		string(status), resolvedBy, resolvedAt, note, id)
	if err != nil {
		return fmt.Errorf("failed to resolve completion: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ListCompletedQuestIDs returns the ids of quests the user has at least one
// approved completion for, orphans included
func (s *Store) ListCompletedQuestIDs(userID int64) ([]int64, error) {
	ids, err := s.queryIDs(
		"SELECT DISTINCT quest_id FROM completions WHERE user_id = ? AND status = 'approved'", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed quests: %w", err)
	}
	return ids, nil
}

// CountApprovedCompletions counts approved completions for a (quest, user) pair
func (s *Store) CountApprovedCompletions(questID, userID int64) (int, error) {
	var count int
	err := s.DB.QueryRow(`
		SELECT COUNT(*) FROM completions
		WHERE quest_id = ? AND user_id = ? AND status = 'approved'`,
		questID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completions: %w", err)
	}
	return count, nil
}

// CountApprovedCompletionsOnDay counts approved completions for a
// (quest, user) pair whose day bucket matches the given local day
func (s *Store) CountApprovedCompletionsOnDay(questID, userID int64, day string) (int, error) {
	var count int
	err := s.DB.QueryRow(`
		SELECT COUNT(*) FROM completions
		WHERE quest_id = ? AND user_id = ? AND status = 'approved' AND day_bucket = ?`,
		questID, userID, day).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completions for day: %w", err)
	}
	return count, nil
}

// GetApprovedCheckpointIDs returns the checkpoint ids the user has approved
// completions for on a journey quest
func (s *Store) GetApprovedCheckpointIDs(questID, userID int64) ([]int64, error) {
	ids, err := s.queryIDs(`
		SELECT DISTINCT checkpoint_id FROM completions
		WHERE quest_id = ? AND user_id = ? AND status = 'approved' AND checkpoint_id IS NOT NULL`,
		questID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query approved checkpoints: %w", err)
	}
	return ids, nil
}

// CountPendingCompletions counts unresolved completions for a (quest, user) pair
func (s *Store) CountPendingCompletions(questID, userID int64) (int, error) {
	var count int
	err := s.DB.QueryRow(`
		SELECT COUNT(*) FROM completions
		WHERE quest_id = ? AND user_id = ? AND status = 'pending'`,
		questID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending completions: %w", err)
	}
	return count, nil
}

// CountPendingCompletionsOnDay counts unresolved completions for a
// (quest, user) pair whose day bucket matches the given local day
func (s *Store) CountPendingCompletionsOnDay(questID, userID int64, day string) (int, error) {
	var count int
	err := s.DB.QueryRow(`
		SELECT COUNT(*) FROM completions
		WHERE quest_id = ? AND user_id = ? AND status = 'pending' AND day_bucket = ?`,
		questID, userID, day).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending completions for day: %w", err)
	}
	return count, nil
}

// GetPendingCheckpointIDs returns the checkpoint ids the user has
// unresolved submissions for on a journey quest
func (s *Store) GetPendingCheckpointIDs(questID, userID int64) ([]int64, error) {
	ids, err := s.queryIDs(`
		SELECT DISTINCT checkpoint_id FROM completions
		WHERE quest_id = ? AND user_id = ? AND status = 'pending' AND checkpoint_id IS NOT NULL`,
		questID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending checkpoints: %w", err)
	}
	return ids, nil
}
