package core

import (
	"fmt"
	"time"
)

// RotationPlan is the outcome of planning one scheduler run: which users
// each selected quest should be assigned to, plus the advanced cursor to
// persist atomically with those assignments.
type RotationPlan struct {
	RotationID int64
	Day        string
	// Assignments maps quest id to the full user list that quest should
	// carry after the run (replacing its previous rotation assignment).
	Assignments map[int64][]int64

	NextUserIndex       int
	NextQuestStartIndex int
}

// ValidateRotation checks a rotation definition
func ValidateRotation(r *Rotation) error {
	if r.Name == "" {
		return NewValidationError("name", "cannot be empty")
	}
	if !r.Frequency.IsValid() {
		return NewValidationError("frequency", fmt.Sprintf("unknown frequency %q", r.Frequency))
	}
	if len(r.QuestIDs) == 0 {
		return NewValidationError("questIds", "cannot be empty")
	}
	if len(r.UserIDs) == 0 {
		return NewValidationError("userIds", "cannot be empty")
	}
	if r.QuestsPerUser <= 0 {
		return NewValidationError("questsPerUser", "must be positive")
	}
	if r.UserSliceSize < 0 || r.UserSliceSize > len(r.UserIDs) {
		return NewValidationError("userSliceSize", "must be between 0 and the user pool size")
	}
	return nil
}

// PlanRotation computes the assignments and cursor advance for one run, or
// (nil, nil) when the run is a no-op. Pure function of the rotation row and
// the reference instant; persistence and locking are the caller's job.
//
// No-op conditions, in order: rotation inactive, day outside the rotation's
// active window, already ran today, frequency period not yet elapsed.
func PlanRotation(rot *Rotation, now time.Time) (*RotationPlan, error) {
	if err := ValidateRotation(rot); err != nil {
		return nil, err
	}
	if !rot.IsActive {
		return nil, nil
	}
	if !rot.RunsOn(now) {
		return nil, nil
	}

	today := now.Format(dayFormat)
	if rot.LastAssignmentDate == today {
		return nil, nil
	}
	if rot.LastAssignmentDate != "" {
		elapsed, err := periodElapsed(rot.Frequency, rot.LastAssignmentDate, now)
		if err != nil {
			return nil, err
		}
		if !elapsed {
			return nil, nil
		}
	}

	questSlice, nextQuestStart := wrapSlice(rot.QuestIDs, rot.LastQuestStartIndex, rot.QuestsPerUser)

	userWidth := rot.UserSliceSize
	if userWidth == 0 {
		userWidth = len(rot.UserIDs)
	}
	userSlice, nextUserIndex := wrapSlice(rot.UserIDs, rot.LastUserIndex, userWidth)

	plan := &RotationPlan{
		RotationID:          rot.ID,
		Day:                 today,
		Assignments:         make(map[int64][]int64, len(questSlice)),
		NextUserIndex:       nextUserIndex,
		NextQuestStartIndex: nextQuestStart,
	}
	for _, questID := range questSlice {
		// Copy per quest so later mutation of one assignment list cannot
		// alias another.
		users := make([]int64, len(userSlice))
		copy(users, userSlice)
		plan.Assignments[questID] = users
	}
	return plan, nil
}

// wrapSlice selects width elements starting at start, wrapping around, and
// returns the selection plus the next start index. Advancing by the exact
// slice width, not by one, is what keeps long-run coverage of every element
// equal; a shorter advance would revisit the front of the list more often.
func wrapSlice(ids []int64, start, width int) ([]int64, int) {
	n := len(ids)
	if n == 0 {
		return nil, 0
	}
	if width > n {
		width = n
	}
	start = start % n
	out := make([]int64, 0, width)
	seen := make(map[int64]bool, width)
	for i := 0; i < width; i++ {
		id := ids[(start+i)%n]
		// A duplicate id in the configured pool must not produce a duplicate
		// assignment within the same period.
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, (start + width) % n
}

// periodElapsed reports whether at least one frequency period passed since
// the last assignment day.
func periodElapsed(freq RotationFrequency, lastDay string, now time.Time) (bool, error) {
	last, err := time.ParseInLocation(dayFormat, lastDay, now.Location())
	if err != nil {
		return false, fmt.Errorf("invalid cursor date %q: %w", lastDay, err)
	}
	var next time.Time
	switch freq {
	case RotationDaily:
		next = last.AddDate(0, 0, 1)
	case RotationWeekly:
		next = last.AddDate(0, 0, 7)
	case RotationMonthly:
		next = last.AddDate(0, 1, 0)
	default:
		return false, NewValidationError("frequency", fmt.Sprintf("unknown frequency %q", freq))
	}
	return !now.Before(next), nil
}
