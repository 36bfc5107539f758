package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mckayc/task-donegeon-sub005/internal/core"
)

const claimColumns = `id, record_id, quest_id, user_id, status, claimed_at, resolved_at, approver_id`

// CreateClaim stores a pending claim
func (s *Store) CreateClaim(c *core.Claim) (*core.Claim, error) {
	result, err := s.DB.Exec(`
		INSERT INTO claims (record_id, quest_id, user_id, status, claimed_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.RecordID, c.QuestID, c.UserID, string(c.Status), c.ClaimedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create claim: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return s.GetClaimByID(id)
}

// GetClaimByID retrieves a claim by ID
func (s *Store) GetClaimByID(id int64) (*core.Claim, error) {
	row := s.DB.QueryRow("SELECT "+claimColumns+" FROM claims WHERE id = ?", id)
	return scanClaim(row)
}

// GetOutstandingClaim returns the user's pending or approved claim on a
// quest, or ErrNotFound
func (s *Store) GetOutstandingClaim(questID, userID int64) (*core.Claim, error) {
	row := s.DB.QueryRow(
		"SELECT "+claimColumns+" FROM claims WHERE quest_id = ? AND user_id = ? ORDER BY id DESC LIMIT 1",
		questID, userID)
	return scanClaim(row)
}

func scanClaim(row *sql.Row) (*core.Claim, error) {
	c := &core.Claim{}
	var resolvedAt sql.NullTime
	var approverID sql.NullInt64
	err := row.Scan(&c.ID, &c.RecordID, &c.QuestID, &c.UserID, &c.Status, &c.ClaimedAt, &resolvedAt, &approverID)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan claim: %w", err)
	}
	if resolvedAt.Valid {
		c.ResolvedAt = &resolvedAt.Time
	}
	if approverID.Valid {
		c.ApproverID = &approverID.Int64
	}
	return c, nil
}

// GetClaimsByQuestID retrieves all claims on a quest
func (s *Store) GetClaimsByQuestID(questID int64) ([]*core.Claim, error) {
	rows, err := s.DB.Query(
		"SELECT "+claimColumns+" FROM claims WHERE quest_id = ? ORDER BY id", questID)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	var claims []*core.Claim
	for rows.Next() {
		c := &core.Claim{}
		var resolvedAt sql.NullTime
		var approverID sql.NullInt64
		if err := rows.Scan(&c.ID, &c.RecordID, &c.QuestID, &c.UserID, &c.Status, &c.ClaimedAt, &resolvedAt, &approverID); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		if resolvedAt.Valid {
			c.ResolvedAt = &resolvedAt.Time
		}
		if approverID.Valid {
			c.ApproverID = &approverID.Int64
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// ApproveClaim transitions a pending claim to approved
func (s *Store) ApproveClaim(id, approverID int64, at time.Time) error {
	result, err := s.DB.Exec(`
		UPDATE claims SET status = 'approved', approver_id = ?, resolved_at = ?
		WHERE id = ? AND status = 'pending'`,
		approverID, at, id)
	if err != nil {
		return fmt.Errorf("failed to approve claim: %w", err)
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

// DeleteClaim removes a claim row. Rejected and cancelled claims leave no
// trace so the slot frees immediately.
func (s *Store) DeleteClaim(id int64) error {
	result, err := s.DB.Exec("DELETE FROM claims WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete claim: %w", err)
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

// CountApprovedClaims counts approved claims on a quest
func (s *Store) CountApprovedClaims(questID int64) (int, error) {
	var count int
	err := s.DB.QueryRow(
		"SELECT COUNT(*) FROM claims WHERE quest_id = ? AND status = 'approved'", questID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count approved claims: %w", err)
	}
	return count, nil
}
