package core

import (
	"fmt"
	"log"
	"time"
)

// SubmitCompletion records a completion attempt for a quest, or for a
// single checkpoint of a journey. The submission is rejected before any
// mutation when the quest is not actionable for the user right now, so a
// retried command cannot double-apply. Unresolved submissions count
// against the caps alongside approved ones, so a user cannot queue more
// attempts than the quest permits.
func (s *Service) SubmitCompletion(userID, questID int64, checkpointID *int64, note string) (*QuestCompletion, error) {
	quest, err := s.store.GetQuestByID(questID)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	lock := s.questLocks.get(questID)
	lock.Lock()
	defer lock.Unlock()

	ctx, err := s.BuildUserContext(userID, quest.GuildID, now)
	if err != nil {
		return nil, err
	}
	av, err := s.evaluateWithContext(quest, ctx, now)
	if err != nil {
		return nil, err
	}
	switch av.State {
	case StateAvailable:
	case StateCompleted:
		return nil, ErrAlreadyResolved
	default:
		return nil, ErrQuestNotAvailable
	}

	// Work on a claim-gated quest must not start before a claim is
	// approved, even while free slots keep the quest itself available.
	if quest.RequiresClaim {
		claim, err := s.store.GetOutstandingClaim(questID, userID)
		if err != nil && err != ErrNotFound {
			return nil, err
		}
		if claim == nil || claim.Status != ClaimApproved {
			return nil, ErrClaimRequired
		}
	}

	hist, err := s.history.Lookup(questID, userID, now.Format(dayFormat))
	if err != nil {
		return nil, err
	}
	if quest.Kind == QuestKindJourney {
		if checkpointID == nil {
			return nil, NewValidationError("checkpointId", "journey submissions require a checkpoint")
		}
		if err := checkCheckpointOrder(quest, *checkpointID, hist); err != nil {
			return nil, err
		}
	} else {
		if checkpointID != nil {
			return nil, NewValidationError("checkpointId", "only journeys have checkpoints")
		}
		if quest.DailyLimit > 0 && hist.ApprovedToday+hist.PendingToday >= quest.DailyLimit {
			return nil, ErrCompletionPending
		}
		if quest.TotalLimit > 0 && hist.ApprovedTotal+hist.PendingTotal >= quest.TotalLimit {
			return nil, ErrCompletionPending
		}
	}

	completion := &QuestCompletion{
		RecordID:     newRecordID(),
		QuestID:      questID,
		UserID:       userID,
		CheckpointID: checkpointID,
		Status:       CompletionPending,
		Note:         note,
		DayBucket:    now.Format(dayFormat),
		SubmittedAt:  now,
	}
	created, err := s.store.CreateCompletion(completion)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion: %w", err)
	}
	s.history.Invalidate(questID, userID)

	// Quests without an approval step pay out immediately; the submitter
	// acts as the resolver.
	if !quest.RequiresApproval {
		if err := s.resolveAndPay(created, quest, userID, ""); err != nil {
			return nil, err
		}
		created.Status = CompletionApproved
	}
	return created, nil
}

// checkCheckpointOrder enforces monotonic journey progression at
// submission: checkpoint i+1 may only be submitted once checkpoint i has an
// approved completion, and a checkpoint with an unresolved submission may
// not be submitted again.
func checkCheckpointOrder(quest *Quest, checkpointID int64, hist *HistorySnapshot) error {
	cp := quest.CheckpointByID(checkpointID)
	if cp == nil {
		return ErrNotFound
	}
	if hist.CheckpointIDs[checkpointID] {
		return ErrAlreadyResolved
	}
	if hist.PendingCheckpointIDs[checkpointID] {
		return ErrCompletionPending
	}
	if cp.Position != hist.HighestApprovedPosition(quest)+1 {
		return ErrCheckpointSkipped
	}
	return nil
}

// ApproveCompletion transitions a pending completion to approved and pays
// the reward through the ledger. The cap and checkpoint invariants are
// re-checked under the per-quest lock: approving one of several pending
// submissions consumes the cap for the rest, so the transition cannot be
// driven past the limit by queued duplicates.
func (s *Service) ApproveCompletion(approverID, completionID int64, note string) error {
	completion, err := s.store.GetCompletionByID(completionID)
	if err != nil {
		return err
	}
	if completion.Status != CompletionPending {
		return ErrAlreadyResolved
	}
	if err := s.checkApprover(approverID, completion.UserID); err != nil {
		return err
	}
	quest, err := s.store.GetQuestByID(completion.QuestID)
	if err != nil {
		return err
	}

	lock := s.questLocks.get(quest.ID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read inside the critical section; a concurrent approval may have
	// resolved this completion or consumed the cap since the first read.
	completion, err = s.store.GetCompletionByID(completionID)
	if err != nil {
		return err
	}
	if completion.Status != CompletionPending {
		return ErrAlreadyResolved
	}

	hist, err := s.history.Lookup(quest.ID, completion.UserID, completion.DayBucket)
	if err != nil {
		return err
	}
	if completion.CheckpointID != nil {
		cp := quest.CheckpointByID(*completion.CheckpointID)
		if cp == nil {
			return ErrNotFound
		}
		if hist.CheckpointIDs[*completion.CheckpointID] {
			return ErrAlreadyResolved
		}
		if cp.Position != hist.HighestApprovedPosition(quest)+1 {
			return ErrCheckpointSkipped
		}
	} else if capReached(quest, hist) {
		return ErrAlreadyResolved
	}
	return s.resolveAndPay(completion, quest, approverID, note)
}

// RejectCompletion transitions a pending completion to rejected
func (s *Service) RejectCompletion(approverID, completionID int64, note string) error {
	completion, err := s.store.GetCompletionByID(completionID)
	if err != nil {
		return err
	}
	if completion.Status != CompletionPending {
		return ErrAlreadyResolved
	}
	if err := s.checkApprover(approverID, completion.UserID); err != nil {
		return err
	}
	if err := s.store.ResolveCompletion(completionID, CompletionRejected, approverID, time.Now(), note); err != nil {
		return fmt.Errorf("failed to reject completion: %w", err)
	}
	s.history.Invalidate(completion.QuestID, completion.UserID)
	return nil
}

// resolveAndPay marks the completion approved and writes the reward ledger
// entry. Journey submissions pay the checkpoint's own reward.
func (s *Service) resolveAndPay(completion *QuestCompletion, quest *Quest, resolverID int64, note string) error {
	now := time.Now()
	if err := s.store.ResolveCompletion(completion.ID, CompletionApproved, resolverID, now, note); err != nil {
		return fmt.Errorf("failed to approve completion: %w", err)
	}
	s.history.Invalidate(quest.ID, completion.UserID)

	amount := quest.RewardValue
	xp := quest.RewardXP
	description := quest.Title
	if completion.CheckpointID != nil {
		if cp := quest.CheckpointByID(*completion.CheckpointID); cp != nil {
			amount = cp.RewardValue
			xp = cp.RewardXP
			description = fmt.Sprintf("%s: %s", quest.Title, cp.Title)
		}
	}

	day := completion.DayBucket
	if bonus, err := s.bonusPercent(day, quest.GuildID); err != nil {
		log.Printf("Warning: failed to load bonus events: %v", err)
	} else if bonus > 0 {
		amount += amount * bonus / 100
	}

	if amount == 0 && xp == 0 {
		return nil
	}
	questID := quest.ID
	_, err := s.store.CreateTransaction(&Transaction{
		UserID:      completion.UserID,
		GuildID:     quest.GuildID,
		Amount:      amount,
		XP:          xp,
		SourceType:  SourceTypeReward,
		SourceID:    &questID,
		DayBucket:   day,
		Description: description,
	})
	if err != nil {
		return fmt.Errorf("failed to create reward transaction: %w", err)
	}
	return nil
}

// bonusPercent sums active bonus events covering the day and guild
func (s *Service) bonusPercent(day string, guildID int64) (int, error) {
	events, err := s.store.ListEventsOnDay(day)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, e := range events {
		if e.Kind == EventBonus && e.Covers(day, guildID) {
			total += e.Bonus
		}
	}
	return total, nil
}
