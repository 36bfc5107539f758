package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testContext() *UserContext {
	return &UserContext{
		UserID:            1,
		RankOrdinal:       2,
		Now:               saturday(10, 30),
		Role:              RoleExplorer,
		GuildIDs:          []int64{5},
		OwnedItemIDs:      map[int64]bool{100: true},
		CompletedQuestIDs: map[int64]bool{7: true},
		TrophyIDs:         map[string]bool{"early-bird": true},
	}
}

func TestEvaluateCondition(t *testing.T) {
	ctx := testContext()
	cases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"min rank met", Condition{Kind: ConditionMinRank, RankOrdinal: 2}, true},
		{"min rank unmet", Condition{Kind: ConditionMinRank, RankOrdinal: 3}, false},
		{"weekday match", Condition{Kind: ConditionDayOfWeek, Weekdays: []time.Weekday{time.Saturday}}, true},
		{"weekday miss", Condition{Kind: ConditionDayOfWeek, Weekdays: []time.Weekday{time.Monday}}, false},
		{"date range covers", Condition{Kind: ConditionDateRange, StartDate: "2026-08-01", EndDate: "2026-08-31"}, true},
		{"date range past", Condition{Kind: ConditionDateRange, StartDate: "2026-07-01", EndDate: "2026-07-31"}, false},
		{"time of day inside", Condition{Kind: ConditionTimeOfDay, StartTime: "08:00", EndTime: "12:00"}, true},
		{"time of day outside", Condition{Kind: ConditionTimeOfDay, StartTime: "12:00", EndTime: "14:00"}, false},
		{"quest completed", Condition{Kind: ConditionQuestCompleted, QuestID: 7}, true},
		{"quest not completed", Condition{Kind: ConditionQuestCompleted, QuestID: 8}, false},
		{"trophy awarded", Condition{Kind: ConditionTrophyAwarded, TrophyID: "early-bird"}, true},
		{"has item", Condition{Kind: ConditionHasItem, ItemID: 100}, true},
		{"lacks item", Condition{Kind: ConditionLacksItem, ItemID: 100}, false},
		{"lacks missing item", Condition{Kind: ConditionLacksItem, ItemID: 200}, true},
		{"guild member", Condition{Kind: ConditionGuildMember, GuildID: 5}, true},
		{"guild non-member", Condition{Kind: ConditionGuildMember, GuildID: 6}, false},
		{"role match", Condition{Kind: ConditionUserRole, Role: RoleExplorer}, true},
		{"role mismatch", Condition{Kind: ConditionUserRole, Role: RoleMaster}, false},
		{"unknown kind gates", Condition{Kind: "astrological_sign"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EvaluateCondition(&tc.cond, ctx))
		})
	}
}

func TestEvaluateSetsLogic(t *testing.T) {
	ctx := testContext()
	pass := Condition{Kind: ConditionMinRank, RankOrdinal: 0}
	fail := Condition{Kind: ConditionMinRank, RankOrdinal: 99}

	allPass := &ConditionSet{Name: "all-pass", Logic: LogicAll, Conditions: []Condition{pass, pass}}
	allFail := &ConditionSet{Name: "all-fail", Logic: LogicAll, Conditions: []Condition{pass, fail}}
	anyPass := &ConditionSet{Name: "any-pass", Logic: LogicAny, Conditions: []Condition{fail, pass}}
	anyFail := &ConditionSet{Name: "any-fail", Logic: LogicAny, Conditions: []Condition{fail, fail}}
	empty := &ConditionSet{Name: "empty", Logic: LogicAll}

	assert.True(t, EvaluateSets([]*ConditionSet{allPass, anyPass, empty}, ctx).Passed)

	// Sets combine with AND: one failing set locks the quest.
	res := EvaluateSets([]*ConditionSet{allPass, allFail}, ctx)
	assert.False(t, res.Passed)
	assert.Equal(t, "all-fail", res.FailedSet)
	assert.NotNil(t, res.FailedCondition)

	res = EvaluateSets([]*ConditionSet{anyFail}, ctx)
	assert.False(t, res.Passed)
	assert.Equal(t, "any-fail", res.FailedSet)

	assert.True(t, EvaluateSets(nil, ctx).Passed)
}

func TestConditionSetValidate(t *testing.T) {
	valid := &ConditionSet{Name: "ok", Logic: LogicAny,
		Conditions: []Condition{{Kind: ConditionMinRank, RankOrdinal: 1}}}
	assert.NoError(t, valid.Validate())

	// Global sets may not use any-logic.
	global := &ConditionSet{Name: "global", Logic: LogicAny, IsGlobal: true}
	assert.True(t, IsValidation(global.Validate()))

	global.Logic = LogicAll
	assert.NoError(t, global.Validate())

	bad := &ConditionSet{Name: "bad", Logic: LogicAll,
		Conditions: []Condition{{Kind: "phase_of_moon"}}}
	assert.True(t, IsValidation(bad.Validate()))

	badClock := &ConditionSet{Name: "clock", Logic: LogicAll,
		Conditions: []Condition{{Kind: ConditionTimeOfDay, StartTime: "8am", EndTime: "noon"}}}
	assert.True(t, IsValidation(badClock.Validate()))
}
