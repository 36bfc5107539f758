package store

import (
	"database/sql"
	"fmt"

	"github.com/mckayc/task-donegeon-sub005/internal/core"
)

const rotationColumns = `id, guild_id, name, quest_ids, user_ids, active_days,
	frequency, quests_per_user, user_slice_size, is_active, start_date, end_date,
	last_assignment_date, last_user_index, last_quest_start_index, version`

// CreateRotation stores a rotation definition
func (s *Store) CreateRotation(r *core.Rotation) (*core.Rotation, error) {
	result, err := s.DB.Exec(`
		INSERT INTO rotations (guild_id, name, quest_ids, user_ids, active_days,
			frequency, quests_per_user, user_slice_size, is_active, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.GuildID, r.Name, joinIDs(r.QuestIDs), joinIDs(r.UserIDs), joinWeekdays(r.ActiveDays),
		string(r.Frequency), r.QuestsPerUser, r.UserSliceSize, r.IsActive,
		nullTime(r.StartDate), nullTime(r.EndDate))
	if err != nil {
		return nil, fmt.Errorf("failed to create rotation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return s.GetRotationByID(id)
}

// GetRotationByID retrieves a rotation by ID
func (s *Store) GetRotationByID(id int64) (*core.Rotation, error) {
	row := s.DB.QueryRow("SELECT "+rotationColumns+" FROM rotations WHERE id = ?", id)
	return scanRotation(row)
}

// ListActiveRotations retrieves every active rotation
func (s *Store) ListActiveRotations() ([]*core.Rotation, error) {
	rows, err := s.DB.Query("SELECT " + rotationColumns + " FROM rotations WHERE is_active = 1 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query rotations: %w", err)
	}
	defer rows.Close()

	var rotations []*core.Rotation
	for rows.Next() {
		r, err := scanRotation(rows)
		if err != nil {
			return nil, err
		}
		rotations = append(rotations, r)
	}
	return rotations, rows.Err()
}

func scanRotation(row rowScanner) (*core.Rotation, error) {
	r := &core.Rotation{}
	var questIDs, userIDs, activeDays string
	var startDate, endDate sql.NullTime
	err := row.Scan(&r.ID, &r.GuildID, &r.Name, &questIDs, &userIDs, &activeDays,
		&r.Frequency, &r.QuestsPerUser, &r.UserSliceSize, &r.IsActive, &startDate, &endDate,
		&r.LastAssignmentDate, &r.LastUserIndex, &r.LastQuestStartIndex, &r.Version)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rotation: %w", err)
	}
	r.QuestIDs = splitIDs(questIDs)
	r.UserIDs = splitIDs(userIDs)
	r.ActiveDays = splitWeekdays(activeDays)
	if startDate.Valid {
		r.StartDate = &startDate.Time
	}
	if endDate.Valid {
		r.EndDate = &endDate.Time
	}
	return r, nil
}

// ApplyRotationPlan writes the plan's quest assignments and advances the
// rotation cursor in one transaction. The cursor update is guarded by the
// version the planner read: losing the compare-and-swap means another
// replica already applied a plan, so nothing is written and
// ErrVersionConflict comes back.
func (s *Store) ApplyRotationPlan(plan *core.RotationPlan, expectedVersion int64) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE rotations
		SET last_assignment_date = ?, last_user_index = ?, last_quest_start_index = ?,
			version = version + 1
		WHERE id = ? AND version = ?`,
		plan.Day, plan.NextUserIndex, plan.NextQuestStartIndex,
		plan.RotationID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to advance rotation cursor: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrVersionConflict
	}

	for questID, userIDs := range plan.Assignments {
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
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rotation plan: %w", err)
	}
	return nil
}
