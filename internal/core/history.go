package core

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// HistoryStore is the slice of the storage layer the history index reads.
// All queries are indexed by (quest, user) so evaluation cost stays
// independent of total history size.
type HistoryStore interface {
	CountApprovedCompletions(questID, userID int64) (int, error)
	CountApprovedCompletionsOnDay(questID, userID int64, day string) (int, error)
	GetApprovedCheckpointIDs(questID, userID int64) ([]int64, error)
	CountPendingCompletions(questID, userID int64) (int, error)
	CountPendingCompletionsOnDay(questID, userID int64, day string) (int, error)
	GetPendingCheckpointIDs(questID, userID int64) ([]int64, error)
}

// HistorySnapshot is the per (user, quest) completion history view the
// availability evaluator and the condition predicates consume. Pending
// counts are carried alongside so submission checks can hold unresolved
// attempts against the caps; availability only reads the approved side.
type HistorySnapshot struct {
	ApprovedTotal int
	ApprovedToday int
	PendingTotal  int
	PendingToday  int
	Day           string
	CheckpointIDs        map[int64]bool // approved journey checkpoints
	PendingCheckpointIDs map[int64]bool // checkpoints with an unresolved submission
}

// HighestApprovedPosition returns the highest approved checkpoint position
// for the quest, or -1 when none is approved.
func (s *HistorySnapshot) HighestApprovedPosition(q *Quest) int {
	highest := -1
	for i := range q.Checkpoints {
		if s.CheckpointIDs[q.Checkpoints[i].ID] && q.Checkpoints[i].Position > highest {
			highest = q.Checkpoints[i].Position
		}
	}
	return highest
}

// HistoryIndex caches completion history snapshots over the store. Entries
// are invalidated by the completion state machine whenever it mutates
// history, and expire naturally on day rollover.
type HistoryIndex struct {
	store HistoryStore
	cache *lru.Cache
}

// NewHistoryIndex creates a history index holding up to size snapshots
func NewHistoryIndex(store HistoryStore, size int) (*HistoryIndex, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create history cache: %w", err)
	}
	return &HistoryIndex{store: store, cache: cache}, nil
}

func historyKey(questID, userID int64) string {
	return fmt.Sprintf("%d:%d", questID, userID)
}

// Lookup returns the history snapshot for (quest, user) on the given local
// day, reading through the cache.
func (h *HistoryIndex) Lookup(questID, userID int64, day string) (*HistorySnapshot, error) {
	key := historyKey(questID, userID)
	if cached, ok := h.cache.Get(key); ok {
		snap := cached.(*HistorySnapshot)
		if snap.Day == day {
			return snap, nil
		}
		// Stale day bucket; fall through and rebuild.
	}

	total, err := h.store.CountApprovedCompletions(questID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count completions: %w", err)
	}
	today, err := h.store.CountApprovedCompletionsOnDay(questID, userID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to count completions for day: %w", err)
	}
	pendingTotal, err := h.store.CountPendingCompletions(questID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending completions: %w", err)
	}
	pendingToday, err := h.store.CountPendingCompletionsOnDay(questID, userID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending completions for day: %w", err)
	}
	checkpointIDs, err := h.store.GetApprovedCheckpointIDs(questID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load approved checkpoints: %w", err)
	}
	pendingCheckpointIDs, err := h.store.GetPendingCheckpointIDs(questID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending checkpoints: %w", err)
	}

	snap := &HistorySnapshot{
		ApprovedTotal:        total,
		ApprovedToday:        today,
		PendingTotal:         pendingTotal,
		PendingToday:         pendingToday,
		Day:                  day,
		CheckpointIDs:        make(map[int64]bool, len(checkpointIDs)),
		PendingCheckpointIDs: make(map[int64]bool, len(pendingCheckpointIDs)),
	}
	for _, id := range checkpointIDs {
		snap.CheckpointIDs[id] = true
	}
	for _, id := range pendingCheckpointIDs {
		snap.PendingCheckpointIDs[id] = true
	}
	h.cache.Add(key, snap)
	return snap, nil
}

// Invalidate drops the cached snapshot for (quest, user)
func (h *HistoryIndex) Invalidate(questID, userID int64) {
	h.cache.Remove(historyKey(questID, userID))
}
