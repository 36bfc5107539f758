package core

import (
	"fmt"
	"time"
)

// ConditionLogic represents how conditions inside one set are combined
type ConditionLogic string

const (
	LogicAll ConditionLogic = "all" // logical AND, short-circuits on first failure
	LogicAny ConditionLogic = "any" // logical OR, short-circuits on first pass
)

// IsValid returns true if the logic is a known combinator
func (l ConditionLogic) IsValid() bool {
	return l == LogicAll || l == LogicAny
}

// ConditionKind identifies one of the closed set of predicate kinds.
// EvaluateCondition switches exhaustively over these; adding a kind here
// without extending the switch makes evaluation fail loudly, not silently.
type ConditionKind string

const (
	ConditionMinRank        ConditionKind = "min_rank"
	ConditionDayOfWeek      ConditionKind = "day_of_week"
	ConditionDateRange      ConditionKind = "date_range"
	ConditionTimeOfDay      ConditionKind = "time_of_day"
	ConditionQuestCompleted ConditionKind = "quest_completed"
	ConditionTrophyAwarded  ConditionKind = "trophy_awarded"
	ConditionHasItem        ConditionKind = "has_item"
	ConditionLacksItem      ConditionKind = "lacks_item"
	ConditionGuildMember    ConditionKind = "guild_member"
	ConditionUserRole       ConditionKind = "user_role"
)

// IsValid returns true if the kind is a known predicate kind
func (k ConditionKind) IsValid() bool {
	switch k {
	case ConditionMinRank, ConditionDayOfWeek, ConditionDateRange,
		ConditionTimeOfDay, ConditionQuestCompleted, ConditionTrophyAwarded,
		ConditionHasItem, ConditionLacksItem, ConditionGuildMember,
		ConditionUserRole:
		return true
	default:
		return false
	}
}

// Condition is one predicate of a condition set. It is a tagged union: Kind
// selects which parameter fields are meaningful.
type Condition struct {
	Kind ConditionKind

	RankOrdinal int            // min_rank
	Weekdays    []time.Weekday // day_of_week
	StartDate   string         // date_range, inclusive "2006-01-02"
	EndDate     string         // date_range, inclusive
	StartTime   string         // time_of_day, "HH:MM"
	EndTime     string         // time_of_day, "HH:MM"
	QuestID     int64          // quest_completed
	TrophyID    string         // trophy_awarded
	ItemID      int64          // has_item, lacks_item
	GuildID     int64          // guild_member
	Role        Role           // user_role
}

// ConditionSet is a named, reusable boolean rule bundle gating a quest or
// market item. Global sets are applied platform-wide on top of the quest's
// own sets and must use ALL logic.
type ConditionSet struct {
	ID         int64
	Name       string
	Logic      ConditionLogic
	IsGlobal   bool
	Conditions []Condition
	CreatedAt  time.Time
}

// Validate checks a condition set at definition time
func (cs *ConditionSet) Validate() error {
	if cs.Name == "" {
		return NewValidationError("name", "cannot be empty")
	}
	if !cs.Logic.IsValid() {
		return NewValidationError("logic", fmt.Sprintf("unknown logic %q", cs.Logic))
	}
	// Global sets gate the whole platform; OR semantics would let a single
	// passing predicate bypass every other global restriction.
	if cs.IsGlobal && cs.Logic == LogicAny {
		return NewValidationError("logic", "global sets may not use any-logic")
	}
	for i, c := range cs.Conditions {
		if !c.Kind.IsValid() {
			return NewValidationError("conditions", fmt.Sprintf("condition %d: unknown kind %q", i, c.Kind))
		}
		if c.Kind == ConditionTimeOfDay {
			if _, err := parseClock(c.StartTime); err != nil {
				return NewValidationError("conditions", fmt.Sprintf("condition %d: %v", i, err))
			}
			if _, err := parseClock(c.EndTime); err != nil {
				return NewValidationError("conditions", fmt.Sprintf("condition %d: %v", i, err))
			}
		}
		if c.Kind == ConditionUserRole && !c.Role.IsValid() {
			return NewValidationError("conditions", fmt.Sprintf("condition %d: unknown role %q", i, c.Role))
		}
	}
	return nil
}

// UserContext is a point-in-time snapshot of everything the predicates can
// look at. Built once per evaluation batch; the engine itself never touches
// storage.
type UserContext struct {
	UserID            int64
	RankOrdinal       int
	Now               time.Time
	Role              Role
	GuildIDs          []int64
	OwnedItemIDs      map[int64]bool
	CompletedQuestIDs map[int64]bool
	TrophyIDs         map[string]bool
}

// GateResult is the outcome of evaluating the condition sets attached to a
// quest or market item. A failed gate is a normal outcome, not an error.
type GateResult struct {
	Passed  bool
	FailedSet       string     // name of the first failing set
	FailedCondition *Condition // first failing predicate, for diagnostics
}

// EvaluateSets evaluates every attached set against ctx. Sets combine with
// AND: each attached set must itself pass. This is what lets a global
// all-logic set act as a platform-wide gate regardless of quest-local sets.
func EvaluateSets(sets []*ConditionSet, ctx *UserContext) GateResult {
	for _, set := range sets {
		passed, failed := evaluateSet(set, ctx)
		if !passed {
			return GateResult{Passed: false, FailedSet: set.Name, FailedCondition: failed}
		}
	}
	return GateResult{Passed: true}
}

// evaluateSet applies the set's own logic, short-circuiting. It returns the
// first failing condition under ALL, or the last tried condition under ANY.
func evaluateSet(set *ConditionSet, ctx *UserContext) (bool, *Condition) {
	if len(set.Conditions) == 0 {
		return true, nil
	}
	switch set.Logic {
	case LogicAny:
		var last *Condition
		for i := range set.Conditions {
			if EvaluateCondition(&set.Conditions[i], ctx) {
				return true, nil
			}
			last = &set.Conditions[i]
		}
		return false, last
	default: // LogicAll
		for i := range set.Conditions {
			if !EvaluateCondition(&set.Conditions[i], ctx) {
				return false, &set.Conditions[i]
			}
		}
		return true, nil
	}
}

// EvaluateCondition evaluates a single predicate against the context.
// Pure function; unknown kinds evaluate to false so a bad row can gate but
// never grant.
func EvaluateCondition(c *Condition, ctx *UserContext) bool {
	switch c.Kind {
	case ConditionMinRank:
		return ctx.RankOrdinal >= c.RankOrdinal
	case ConditionDayOfWeek:
		wd := ctx.Now.Weekday()
		for _, d := range c.Weekdays {
			if d == wd {
				return true
			}
		}
		return false
	case ConditionDateRange:
		day := ctx.Now.Format(dayFormat)
		return c.StartDate <= day && day <= c.EndDate
	case ConditionTimeOfDay:
		start, err := parseClock(c.StartTime)
		if err != nil {
			return false
		}
		end, err := parseClock(c.EndTime)
		if err != nil {
			return false
		}
		minute := ctx.Now.Hour()*60 + ctx.Now.Minute()
		return minute >= start && minute < end
	case ConditionQuestCompleted:
		return ctx.CompletedQuestIDs[c.QuestID]
	case ConditionTrophyAwarded:
		return ctx.TrophyIDs[c.TrophyID]
	case ConditionHasItem:
		return ctx.OwnedItemIDs[c.ItemID]
	case ConditionLacksItem:
		return !ctx.OwnedItemIDs[c.ItemID]
	case ConditionGuildMember:
		for _, id := range ctx.GuildIDs {
			if id == c.GuildID {
				return true
			}
		}
		return false
	case ConditionUserRole:
		return ctx.Role == c.Role
	default:
		return false
	}
}
