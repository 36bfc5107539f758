package core

import (
	"fmt"
	"log"
	"time"
)

// SubmitClaim reserves a pending claim on a quest that requires claiming.
// A user may hold at most one outstanding claim per quest.
func (s *Service) SubmitClaim(userID, questID int64) (*Claim, error) {
	quest, err := s.store.GetQuestByID(questID)
	if err != nil {
		return nil, err
	}
	if !quest.RequiresClaim {
		return nil, NewValidationError("questId", "quest does not require claiming")
	}
	isMember, err := s.store.IsUserInGuild(userID, quest.GuildID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotMember
	}

	lock := s.questLocks.get(questID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.store.GetOutstandingClaim(questID, userID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateClaim
	}

	claim := &Claim{
		RecordID:  newRecordID(),
		QuestID:   questID,
		UserID:    userID,
		Status:    ClaimPending,
		ClaimedAt: time.Now(),
	}
	created, err := s.store.CreateClaim(claim)
	if err != nil {
		return nil, fmt.Errorf("failed to create claim: %w", err)
	}
	s.notifyApprovers(created, quest)
	return created, nil
}

// notifyApprovers pushes an approval prompt with inline approve/reject
// buttons to every guild member who may approve and has a linked chat.
func (s *Service) notifyApprovers(claim *Claim, quest *Quest) {
	if s.notifier == nil {
		return
	}
	claimant, err := s.store.GetUserByID(claim.UserID)
	if err != nil {
		return
	}
	members, err := s.store.GetUsersByGuildID(quest.GuildID)
	if err != nil {
		return
	}
	message := fmt.Sprintf("%s wants to claim %q", claimant.Username, quest.Title)
	buttons := map[string]string{
		"Approve": fmt.Sprintf("approve_claim:%d", claim.ID),
		"Reject":  fmt.Sprintf("reject_claim:%d", claim.ID),
	}
	for _, member := range members {
		if member.ID == claim.UserID || !member.Role.CanApprove() || member.TelegramID == nil {
			continue
		}
		if err := s.notifier.SendNotification(*member.TelegramID, message, buttons); err != nil {
			log.Printf("failed to notify approver %d: %v", member.ID, err)
		}
	}
}

// ApproveClaim transitions a pending claim to approved. The claim-limit
// invariant is re-checked under the per-quest lock so two concurrent
// approvals cannot both succeed past the limit.
func (s *Service) ApproveClaim(approverID, claimID int64) error {
	claim, err := s.store.GetClaimByID(claimID)
	if err != nil {
		return err
	}
	if err := s.checkApprover(approverID, claim.UserID); err != nil {
		return err
	}

	quest, err := s.store.GetQuestByID(claim.QuestID)
	if err != nil {
		return err
	}

	lock := s.questLocks.get(claim.QuestID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read inside the critical section; the claim may have been
	// cancelled or approved since it was fetched.
	claim, err = s.store.GetClaimByID(claimID)
	if err != nil {
		return err
	}
	if claim.Status != ClaimPending {
		return ErrClaimNotPending
	}

	approved, err := s.store.CountApprovedClaims(claim.QuestID)
	if err != nil {
		return fmt.Errorf("failed to count approved claims: %w", err)
	}
	if quest.ClaimLimit > 0 && approved >= quest.ClaimLimit {
		return ErrClaimLimitExceeded
	}

	return s.store.ApproveClaim(claimID, approverID, time.Now())
}

// RejectClaim removes a pending claim, returning the slot to the pool
func (s *Service) RejectClaim(approverID, claimID int64) error {
	claim, err := s.store.GetClaimByID(claimID)
	if err != nil {
		return err
	}
	if err := s.checkApprover(approverID, claim.UserID); err != nil {
		return err
	}

	lock := s.questLocks.get(claim.QuestID)
	lock.Lock()
	defer lock.Unlock()

	claim, err = s.store.GetClaimByID(claimID)
	if err != nil {
		return err
	}
	if claim.Status != ClaimPending {
		return ErrClaimNotPending
	}
	return s.store.DeleteClaim(claimID)
}

// CancelClaim lets the claimant withdraw their own pending claim
func (s *Service) CancelClaim(userID, claimID int64) error {
	claim, err := s.store.GetClaimByID(claimID)
	if err != nil {
		return err
	}
	if claim.UserID != userID {
		return ErrNotClaimant
	}

	lock := s.questLocks.get(claim.QuestID)
	lock.Lock()
	defer lock.Unlock()

	claim, err = s.store.GetClaimByID(claimID)
	if err != nil {
		return err
	}
	if claim.Status != ClaimPending {
		return ErrClaimNotPending
	}
	return s.store.DeleteClaim(claimID)
}

// checkApprover validates that the actor may approve, and enforces the
// self-approval policy at the transition boundary.
func (s *Service) checkApprover(approverID, subjectUserID int64) error {
	approver, err := s.store.GetUserByID(approverID)
	if err != nil {
		return err
	}
	if !approver.Role.CanApprove() {
		return ErrNotApprover
	}
	if s.policy.DisableSelfApproval && approverID == subjectUserID {
		return ErrSelfApproval
	}
	return nil
}
