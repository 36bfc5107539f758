package core

import "time"

// SetbackKind classifies the penalty an overdue occurrence earns
type SetbackKind string

const (
	SetbackNone       SetbackKind = "none"
	SetbackLate       SetbackKind = "late"       // due instant passed, window still open
	SetbackIncomplete SetbackKind = "incomplete" // window fully closed with no completion
)

// SetbackDecision is the outcome of evaluating one (quest, user, occurrence)
type SetbackDecision struct {
	Kind   SetbackKind
	Amount int // positive; applied as a negative ledger entry
}

// GraceActive reports whether a grace period covers the given day and guild:
// either the global policy flag or any covering grace_period event. During
// grace no setback is applied and evaluation defers to the next cycle.
func GraceActive(globalGrace bool, events []*ScheduledEvent, day string, guildID int64) bool {
	if globalGrace {
		return true
	}
	for _, e := range events {
		if e.Kind == EventGracePeriod && e.Covers(day, guildID) {
			return true
		}
	}
	return false
}

// EvaluateSetback decides the setback for a quest occurrence without an
// approved completion. Pure gate: for a fixed (quest, occurrence, now) the
// decision never changes, so the sweep may safely recompute it every pass.
//
// Incomplete dominates: once the window is closed the occurrence can no
// longer be completed. Late applies in the interval between the due instant
// and window close, which only exists when the quest sets a due time ahead
// of its window end.
func EvaluateSetback(q *Quest, occ Occurrence, hasApproved bool, now time.Time) SetbackDecision {
	none := SetbackDecision{Kind: SetbackNone}
	if hasApproved {
		return none
	}
	if occ.WindowEnd != nil && !now.Before(*occ.WindowEnd) {
		if q.IncompleteSetback > 0 {
			return SetbackDecision{Kind: SetbackIncomplete, Amount: q.IncompleteSetback}
		}
		return none
	}
	if occ.DueAt != nil && !now.Before(*occ.DueAt) {
		if q.LateSetback > 0 {
			return SetbackDecision{Kind: SetbackLate, Amount: q.LateSetback}
		}
	}
	return none
}
