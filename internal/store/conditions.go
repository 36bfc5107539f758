package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mckayc/task-donegeon-sub005/internal/core"
)

// CreateConditionSet stores a condition set with its conditions
func (s *Store) CreateConditionSet(cs *core.ConditionSet) (*core.ConditionSet, error) {
	tx, err := s.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		"INSERT INTO condition_sets (name, logic, is_global) VALUES (?, ?, ?)",
		cs.Name, string(cs.Logic), cs.IsGlobal)
	if err != nil {
		return nil, fmt.Errorf("failed to create condition set: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	if err := writeConditions(tx, id, cs.Conditions); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit condition set: %w", err)
	}

	sets, err := s.GetConditionSetsByIDs([]int64{id})
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, core.ErrNotFound
	}
	return sets[0], nil
}

// UpdateConditionSet rewrites a condition set and its conditions
func (s *Store) UpdateConditionSet(cs *core.ConditionSet) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		"UPDATE condition_sets SET name = ?, logic = ?, is_global = ? WHERE id = ?",
		cs.Name, string(cs.Logic), cs.IsGlobal, cs.ID)
	if err != nil {
		return fmt.Errorf("failed to update condition set: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	if _, err := tx.Exec("DELETE FROM conditions WHERE set_id = ?", cs.ID); err != nil {
		return fmt.Errorf("failed to clear conditions: %w", err)
	}
	if err := writeConditions(tx, cs.ID, cs.Conditions); err != nil {
		return err
	}
	return tx.Commit()
}

func writeConditions(tx *sql.Tx, setID int64, conditions []core.Condition) error {
	for i, c := range conditions {
		_, err := tx.Exec(`
			INSERT INTO conditions (set_id, position, kind, rank_ordinal, weekdays,
				start_date, end_date, start_time, end_time, quest_id, trophy_id,
				item_id, guild_id, role)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			setID, i, string(c.Kind), c.RankOrdinal, joinWeekdays(c.Weekdays),
			c.StartDate, c.EndDate, c.StartTime, c.EndTime, c.QuestID, c.TrophyID,
			c.ItemID, c.GuildID, string(c.Role))
		if err != nil {
			return fmt.Errorf("failed to create condition: %w", err)
		}
	}
	return nil
}

// GetConditionSetsByIDs retrieves condition sets with their conditions.
// Unknown ids are skipped, not errors: a quest may reference a set that was
// deleted later.
func (s *Store) GetConditionSetsByIDs(ids []int64) ([]*core.ConditionSet, error) {
	sets := make([]*core.ConditionSet, 0, len(ids))
	for _, id := range ids {
		set, err := s.getConditionSet(id)
		if err == core.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// ListGlobalConditionSets retrieves every set flagged as global
func (s *Store) ListGlobalConditionSets() ([]*core.ConditionSet, error) {
	ids, err := s.queryIDs("SELECT id FROM condition_sets WHERE is_global = 1 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query global sets: %w", err)
	}
	return s.GetConditionSetsByIDs(ids)
}

func (s *Store) getConditionSet(id int64) (*core.ConditionSet, error) {
	cs := &core.ConditionSet{}
	err := s.DB.QueryRow(
		"SELECT id, name, logic, is_global, created_at FROM condition_sets WHERE id = ?", id).
		Scan(&cs.ID, &cs.Name, &cs.Logic, &cs.IsGlobal, &cs.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan condition set: %w", err)
	}

	rows, err := s.DB.Query(`
		SELECT kind, rank_ordinal, weekdays, start_date, end_date, start_time,
			end_time, quest_id, trophy_id, item_id, guild_id, role
		FROM conditions WHERE set_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query conditions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c core.Condition
		var weekdays string
		if err := rows.Scan(&c.Kind, &c.RankOrdinal, &weekdays, &c.StartDate,
			&c.EndDate, &c.StartTime, &c.EndTime, &c.QuestID, &c.TrophyID,
			&c.ItemID, &c.GuildID, &c.Role); err != nil {
			return nil, fmt.Errorf("failed to scan condition: %w", err)
		}
		c.Weekdays = splitWeekdays(weekdays)
		cs.Conditions = append(cs.Conditions, c)
	}
	return cs, rows.Err()
}

func joinWeekdays(days []time.Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func splitWeekdays(s string) []time.Weekday {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	days := make([]time.Weekday, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 6 {
			continue
		}
		days = append(days, time.Weekday(n))
	}
	return days
}
