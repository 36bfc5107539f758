package core

import "time"

// AvailabilityState is the user-facing state of a quest for one user at one
// instant. States are mutually exclusive; evaluation picks the first match
// in precedence order.
type AvailabilityState string

const (
	StateHidden           AvailabilityState = "hidden"            // inactive, unassigned, or no occurrence
	StateLocked           AvailabilityState = "locked"            // condition gate failed
	StateClaimUnavailable AvailabilityState = "claim_unavailable" // all claim slots taken by others
	StateCompleted        AvailabilityState = "completed"         // cap reached for this occurrence/lifetime
	StatePendingClaim     AvailabilityState = "pending_claim"     // user's own claim awaits approval
	StateAvailable        AvailabilityState = "available"
)

// Availability is the result of evaluating one (user, quest, now) triple
type Availability struct {
	Quest      *Quest
	State      AvailabilityState
	Occurrence Occurrence
	Gate       GateResult // populated when State is Locked
}

// EvaluateQuest computes the availability state for a quest.
//
// The precedence is deliberate: condition gating dominates scheduling so a
// locked quest never shows up as completed or claimable, and claim-slot
// exhaustion is reported before occurrence checks so a user understands why
// a quest they can see is not actionable.
func EvaluateQuest(q *Quest, sets []*ConditionSet, ctx *UserContext, hist *HistorySnapshot, claims []*Claim, now time.Time) (Availability, error) {
	av := Availability{Quest: q, State: StateHidden}

	// 1. Inactive or not assigned to this user.
	if !q.IsActive || !q.AssignedTo(ctx.UserID) {
		return av, nil
	}

	// 2. Condition gate.
	gate := EvaluateSets(sets, ctx)
	if !gate.Passed {
		av.State = StateLocked
		av.Gate = gate
		return av, nil
	}

	// 3. Claim slots exhausted by other users.
	var own *Claim
	approvedByOthers := 0
	for _, c := range claims {
		if c.UserID == ctx.UserID {
			own = c
			continue
		}
		if c.Status == ClaimApproved {
			approvedByOthers++
		}
	}
	if q.RequiresClaim && own == nil && q.ClaimLimit > 0 && approvedByOthers >= q.ClaimLimit {
		av.State = StateClaimUnavailable
		return av, nil
	}

	// 4. No active occurrence right now.
	occ, err := ResolveOccurrence(q, now)
	if err != nil {
		return av, err
	}
	av.Occurrence = occ
	if !occ.ActiveToday || !occ.OpenNow {
		return av, nil
	}

	// 5. Completion caps for this occurrence / lifetime.
	if capReached(q, hist) {
		av.State = StateCompleted
		return av, nil
	}

	// 6. Actionable. A claim-gated quest whose claim is still pending shows
	// its own waiting state.
	if q.RequiresClaim && own != nil && own.Status == ClaimPending {
		av.State = StatePendingClaim
		return av, nil
	}
	av.State = StateAvailable
	return av, nil
}

// capReached reports whether the user exhausted the quest's completion caps.
// Journeys are complete when every checkpoint is approved.
func capReached(q *Quest, hist *HistorySnapshot) bool {
	if hist == nil {
		return false
	}
	if q.Kind == QuestKindJourney && len(q.Checkpoints) > 0 {
		return len(hist.CheckpointIDs) >= len(q.Checkpoints)
	}
	if q.DailyLimit > 0 && hist.ApprovedToday >= q.DailyLimit {
		return true
	}
	if q.TotalLimit > 0 && hist.ApprovedTotal >= q.TotalLimit {
		return true
	}
	return false
}
