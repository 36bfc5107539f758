package core

import (
	"context"
	"fmt"
	"log"
	"time"
)

// ApplySetbacks evaluates every active quest's current occurrence and
// writes the owed late/incomplete deductions to the ledger. Idempotent per
// (quest, user, occurrence day): a deduction already on the ledger for the
// day is never applied twice, so the sweep can run on any cadence.
//
// Returns the transactions it created, for notification fan-out.
func (s *Service) ApplySetbacks(now time.Time) ([]*Transaction, error) {
	today := now.Format(dayFormat)
	events, err := s.store.ListEventsOnDay(today)
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduled events: %w", err)
	}
	quests, err := s.store.ListActiveQuests()
	if err != nil {
		return nil, fmt.Errorf("failed to load active quests: %w", err)
	}

	var applied []*Transaction
	for _, quest := range quests {
		if quest.LateSetback == 0 && quest.IncompleteSetback == 0 {
			continue
		}
		occ, err := ResolveOccurrence(quest, now)
		if err != nil {
			log.Printf("Warning: quest %d has invalid recurrence, skipping: %v", quest.ID, err)
			continue
		}
		// A closed absolute window still owes its incomplete setback once,
		// so one-off quests past their end date stay sweepable.
		if !occ.ActiveToday && !occ.PastDue {
			continue
		}
		if GraceActive(s.policy.GlobalGracePeriod, events, today, quest.GuildID) {
			continue
		}

		// Deductions are bucketed by occurrence day: for a window that has
		// closed that is the window's final day, which keeps the sweep
		// idempotent no matter how late it runs.
		day := today
		if !occ.ActiveToday {
			day = occ.WindowEnd.Format(dayFormat)
		}

		subjects, err := s.setbackSubjects(quest)
		if err != nil {
			return applied, err
		}
		for _, userID := range subjects {
			tx, err := s.applyUserSetback(quest, occ, userID, day, now)
			if err != nil {
				return applied, err
			}
			if tx != nil {
				applied = append(applied, tx)
			}
		}
	}
	return applied, nil
}

// setbackSubjects returns the users accountable for a quest's occurrence:
// the assigned users, or the whole guild when the quest is open.
func (s *Service) setbackSubjects(quest *Quest) ([]int64, error) {
	if len(quest.AssignedUserIDs) > 0 {
		return quest.AssignedUserIDs, nil
	}
	members, err := s.store.GetUsersByGuildID(quest.GuildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load guild members: %w", err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (s *Service) applyUserSetback(quest *Quest, occ Occurrence, userID int64, day string, now time.Time) (*Transaction, error) {
	hist, err := s.history.Lookup(quest.ID, userID, day)
	if err != nil {
		return nil, err
	}
	// Duties reset per day; an absolute window counts a completion from any
	// day inside it.
	completed := hist.ApprovedToday > 0
	if quest.Kind != QuestKindDuty {
		completed = hist.ApprovedTotal > 0
	}
	decision := EvaluateSetback(quest, occ, completed, now)
	if decision.Kind == SetbackNone {
		return nil, nil
	}

	already, err := s.store.HasSetbackOnDay(quest.ID, userID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing setback: %w", err)
	}
	if already {
		return nil, nil
	}

	questID := quest.ID
	tx, err := s.store.CreateTransaction(&Transaction{
		UserID:      userID,
		GuildID:     quest.GuildID,
		Amount:      -decision.Amount,
		SourceType:  SourceTypeSetback,
		SourceID:    &questID,
		DayBucket:   day,
		Description: fmt.Sprintf("%s (%s)", quest.Title, decision.Kind),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create setback transaction: %w", err)
	}
	return tx, nil
}

// StartSetbackWorker runs the setback sweep on a fixed interval and pushes
// a notice to each penalized user that linked a chat account. Runs until
// the context is cancelled.
func (s *Service) StartSetbackWorker(ctx context.Context, interval time.Duration, notifier Notifier) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Println("[SetbackWorker] starting...")
	for {
		select {
		case <-ctx.Done():
			log.Println("[SetbackWorker] shutdown signal received, stopping...")
			return
		case <-ticker.C:
			applied, err := s.ApplySetbacks(time.Now())
			if err != nil {
				log.Printf("[SetbackWorker] sweep error: %v", err)
			}
			if notifier == nil {
				continue
			}
			for _, tx := range applied {
				s.notifySetback(notifier, tx)
			}
		}
	}
}

func (s *Service) notifySetback(notifier Notifier, tx *Transaction) {
	user, err := s.store.GetUserByID(tx.UserID)
	if err != nil || user.TelegramID == nil {
		return
	}
	message := fmt.Sprintf("A setback of %d was applied: %s", -tx.Amount, tx.Description)
	if err := notifier.SendNotification(*user.TelegramID, message, nil); err != nil {
		log.Printf("[SetbackWorker] failed to notify user %d: %v", tx.UserID, err)
	}
}
