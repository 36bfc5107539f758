package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mckayc/task-donegeon-sub005/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedGuildWithUser(t *testing.T, s *Store) (*core.Guild, *core.User) {
	t.Helper()
	user, err := s.CreateUser("frodo", nil, core.RoleExplorer)
	require.NoError(t, err)
	guild, err := s.CreateGuild("The Shire", "invite-1")
	require.NoError(t, err)
	require.NoError(t, s.AddUserToGuild(user.ID, guild.ID))
	return guild, user
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)

	tgID := int64(42)
	user, err := s.CreateUser("sam", &tgID, core.RoleGatekeeper)
	require.NoError(t, err)
	assert.Equal(t, "sam", user.Username)
	assert.Equal(t, core.RoleGatekeeper, user.Role)
	require.NotNil(t, user.TelegramID)
	assert.Equal(t, tgID, *user.TelegramID)

	byTg, err := s.GetUserByTelegramID(tgID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byTg.ID)

	byName, err := s.GetUserByUsername("sam")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	require.NoError(t, s.SetUserRole(user.ID, core.RoleMaster))
	require.NoError(t, s.SetUserLanguage(user.ID, "ru"))
	reloaded, err := s.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RoleMaster, reloaded.Role)
	assert.Equal(t, "ru", reloaded.Language)

	_, err = s.GetUserByID(9999)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGuildMembership(t *testing.T) {
	s := newTestStore(t)
	guild, user := seedGuildWithUser(t, s)

	found, err := s.GetGuildByInviteCode("invite-1")
	require.NoError(t, err)
	assert.Equal(t, guild.ID, found.ID)

	isMember, err := s.IsUserInGuild(user.ID, guild.ID)
	require.NoError(t, err)
	assert.True(t, isMember)

	guilds, err := s.GetGuildsByUserID(user.ID)
	require.NoError(t, err)
	require.Len(t, guilds, 1)
	assert.Equal(t, guild.ID, guilds[0].ID)

	users, err := s.GetUsersByGuildID(guild.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, user.ID, users[0].ID)

	// Joining twice leaves a single membership row.
	require.NoError(t, s.AddUserToGuild(user.ID, guild.ID))
	users, err = s.GetUsersByGuildID(guild.ID)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestQuestRoundTrip(t *testing.T) {
	s := newTestStore(t)
	guild, user := seedGuildWithUser(t, s)

	quest, err := s.CreateQuest(&core.Quest{
		GuildID:           guild.ID,
		Title:             "Sweep the kitchen",
		Description:       "Every evening",
		Kind:              core.QuestKindDuty,
		IsActive:          true,
		RecurrenceRule:    "weekly:mon,wed",
		StartTime:         "06:00",
		EndTime:           "22:00",
		DueTime:           "20:00",
		DailyLimit:        1,
		RequiresApproval:  true,
		RewardValue:       10,
		RewardXP:          5,
		LateSetback:       2,
		IncompleteSetback: 5,
		AssignedUserIDs:   []int64{user.ID},
	})
	require.NoError(t, err)

	loaded, err := s.GetQuestByID(quest.ID)
	require.NoError(t, err)
	assert.Equal(t, "weekly:mon,wed", loaded.RecurrenceRule)
	assert.Equal(t, "20:00", loaded.DueTime)
	assert.Equal(t, []int64{user.ID}, loaded.AssignedUserIDs)

	loaded.Title = "Sweep the whole kitchen"
	loaded.RewardValue = 12
	require.NoError(t, s.UpdateQuest(loaded))
	reloaded, err := s.GetQuestByID(quest.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sweep the whole kitchen", reloaded.Title)
	assert.Equal(t, 12, reloaded.RewardValue)

	active, err := s.ListActiveQuests()
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestJourneyCheckpointsPersist(t *testing.T) {
	s := newTestStore(t)
	guild, _ := seedGuildWithUser(t, s)

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(24 * time.Hour)
	quest, err := s.CreateQuest(&core.Quest{
		GuildID:  guild.ID,
		Title:    "Learn to ride a bike",
		Kind:     core.QuestKindJourney,
		IsActive: true,
		AllDay:   true,
		StartAt:  &start,
		EndAt:    &end,
		Checkpoints: []core.Checkpoint{
			{Position: 0, Title: "Balance", RewardValue: 5},
			{Position: 1, Title: "Pedal", RewardValue: 5},
			{Position: 2, Title: "Ride solo", RewardValue: 20, RewardXP: 10},
		},
	})
	require.NoError(t, err)

	loaded, err := s.GetQuestByID(quest.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Checkpoints, 3)
	assert.Equal(t, "Balance", loaded.Checkpoints[0].Title)
	assert.Equal(t, 2, loaded.Checkpoints[2].Position)
	assert.Equal(t, 20, loaded.Checkpoints[2].RewardValue)
}

func TestDeleteQuestOrphansCompletions(t *testing.T) {
	s := newTestStore(t)
	guild, user := seedGuildWithUser(t, s)

	quest, err := s.CreateQuest(&core.Quest{
		GuildID: guild.ID, Title: "Water plants", Kind: core.QuestKindDuty,
		IsActive: true, RecurrenceRule: "daily", AllDay: true,
	})
	require.NoError(t, err)

	c, err := s.CreateCompletion(&core.QuestCompletion{
		RecordID: "rec-1", QuestID: quest.ID, UserID: user.ID,
		Status: core.CompletionApproved, DayBucket: "2026-08-29",
		SubmittedAt: time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteQuest(quest.ID))

	_, err = s.GetQuestByID(quest.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	orphan, err := s.GetCompletionByID(c.ID)
	require.NoError(t, err)
	assert.True(t, orphan.Orphaned)

	// Approved history survives deletion for prerequisite checks.
	ids, err := s.ListCompletedQuestIDs(user.ID)
	require.NoError(t, err)
	assert.Contains(t, ids, quest.ID)
}

func TestCompletionHistoryCounts(t *testing.T) {
	s := newTestStore(t)
	guild, user := seedGuildWithUser(t, s)

	quest, err := s.CreateQuest(&core.Quest{
		GuildID: guild.ID, Title: "Dishes", Kind: core.QuestKindDuty,
		IsActive: true, RecurrenceRule: "daily", AllDay: true,
	})
	require.NoError(t, err)

	for i, day := range []string{"2026-08-28", "2026-08-29", "2026-08-29"} {
		status := core.CompletionApproved
		if i == 2 {
			status = core.CompletionPending
		}
		_, err := s.CreateCompletion(&core.QuestCompletion{
			RecordID: "rec-" + day + "-" + string(rune('a'+i)), QuestID: quest.ID,
			UserID: user.ID, Status: status, DayBucket: day, SubmittedAt: time.Now(),
		})
		require.NoError(t, err)
	}

	total, err := s.CountApprovedCompletions(quest.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	today, err := s.CountApprovedCompletionsOnDay(quest.ID, user.ID, "2026-08-29")
	require.NoError(t, err)
	assert.Equal(t, 1, today)
}

func TestResolveCompletionOnlyFromPending(t *testing.T) {
	s := newTestStore(t)
	guild, user := seedGuildWithUser(t, s)

	quest, err := s.CreateQuest(&core.Quest{
		GuildID: guild.ID, Title: "Laundry", Kind: core.QuestKindDuty,
		IsActive: true, RecurrenceRule: "daily", AllDay: true,
	})
	require.NoError(t, err)

	c, err := s.CreateCompletion(&core.QuestCompletion{
		RecordID: "rec-p", QuestID: quest.ID, UserID: user.ID,
		Status: core.CompletionPending, DayBucket: "2026-08-29", SubmittedAt: time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, s.ResolveCompletion(c.ID, core.CompletionApproved, user.ID, time.Now(), "nice"))

	resolved, err := s.GetCompletionByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, core.CompletionApproved, resolved.Status)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, user.ID, *resolved.ResolvedBy)

	// Double resolve targets no pending row.
	err = s.ResolveCompletion(c.ID, core.CompletionRejected, user.ID, time.Now(), "")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestClaimLifecycle(t *testing.T) {
	s := newTestStore(t)
	guild, user := seedGuildWithUser(t, s)

	quest, err := s.CreateQuest(&core.Quest{
		GuildID: guild.ID, Title: "Mow the lawn", Kind: core.QuestKindVenture,
		IsActive: true, AllDay: true, RequiresClaim: true, ClaimLimit: 1,
	})
	require.NoError(t, err)

	claim, err := s.CreateClaim(&core.Claim{
		RecordID: "claim-1", QuestID: quest.ID, UserID: user.ID,
		Status: core.ClaimPending, ClaimedAt: time.Now(),
	})
	require.NoError(t, err)

	outstanding, err := s.GetOutstandingClaim(quest.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, claim.ID, outstanding.ID)

	require.NoError(t, s.ApproveClaim(claim.ID, user.ID, time.Now()))
	approved, err := s.GetClaimByID(claim.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ClaimApproved, approved.Status)

	count, err := s.CountApprovedClaims(quest.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// A second approve finds no pending row.
	err = s.ApproveClaim(claim.ID, user.ID, time.Now())
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.DeleteClaim(claim.ID))
	_, err = s.GetOutstandingClaim(quest.ID, user.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestConditionSetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	created, err := s.CreateConditionSet(&core.ConditionSet{
		Name:  "Weekend mornings",
		Logic: core.LogicAll,
		Conditions: []core.Condition{
			{Kind: core.ConditionDayOfWeek, Weekdays: []time.Weekday{time.Saturday, time.Sunday}},
			{Kind: core.ConditionTimeOfDay, StartTime: "08:00", EndTime: "12:00"},
		},
	})
	require.NoError(t, err)

	global, err := s.CreateConditionSet(&core.ConditionSet{
		Name: "Min rank", Logic: core.LogicAll, IsGlobal: true,
		Conditions: []core.Condition{{Kind: core.ConditionMinRank, RankOrdinal: 1}},
	})
	require.NoError(t, err)

	sets, err := s.GetConditionSetsByIDs([]int64{created.ID})
	require.NoError(t, err)
	require.Len(t, sets, 1)
	require.Len(t, sets[0].Conditions, 2)
	assert.Equal(t, []time.Weekday{time.Saturday, time.Sunday}, sets[0].Conditions[0].Weekdays)
	assert.Equal(t, "08:00", sets[0].Conditions[1].StartTime)

	globals, err := s.ListGlobalConditionSets()
	require.NoError(t, err)
	require.Len(t, globals, 1)
	assert.Equal(t, global.ID, globals[0].ID)

	// Dangling ids are skipped, not errors.
	sets, err = s.GetConditionSetsByIDs([]int64{created.ID, 9999})
	require.NoError(t, err)
	assert.Len(t, sets, 1)
}

func TestApplyRotationPlanVersionGuard(t *testing.T) {
	s := newTestStore(t)
	guild, user := seedGuildWithUser(t, s)

	quest, err := s.CreateQuest(&core.Quest{
		GuildID: guild.ID, Title: "Trash duty", Kind: core.QuestKindDuty,
		IsActive: true, RecurrenceRule: "daily", AllDay: true,
	})
	require.NoError(t, err)

	rot, err := s.CreateRotation(&core.Rotation{
		GuildID: guild.ID, Name: "Chore wheel",
		QuestIDs: []int64{quest.ID}, UserIDs: []int64{user.ID},
		Frequency: core.RotationDaily, QuestsPerUser: 1, IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rot.Version)

	plan := &core.RotationPlan{
		RotationID:          rot.ID,
		Day:                 "2026-08-29",
		Assignments:         map[int64][]int64{quest.ID: {user.ID}},
		NextUserIndex:       0,
		NextQuestStartIndex: 1,
	}
	require.NoError(t, s.ApplyRotationPlan(plan, rot.Version))

	reloaded, err := s.GetRotationByID(rot.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-29", reloaded.LastAssignmentDate)
	assert.Equal(t, 1, reloaded.LastQuestStartIndex)
	assert.Equal(t, int64(1), reloaded.Version)

	q, err := s.GetQuestByID(quest.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{user.ID}, q.AssignedUserIDs)

	// Replaying against the stale version changes nothing.
	err = s.ApplyRotationPlan(plan, rot.Version)
	assert.ErrorIs(t, err, core.ErrVersionConflict)
}

func TestLedgerBalanceAndSetbackIdempotence(t *testing.T) {
	s := newTestStore(t)
	guild, user := seedGuildWithUser(t, s)

	questID := int64(7)
	_, err := s.CreateTransaction(&core.Transaction{
		UserID: user.ID, GuildID: guild.ID, Amount: 10, XP: 5,
		SourceType: core.SourceTypeReward, SourceID: &questID, DayBucket: "2026-08-29",
	})
	require.NoError(t, err)
	_, err = s.CreateTransaction(&core.Transaction{
		UserID: user.ID, GuildID: guild.ID, Amount: -3,
		SourceType: core.SourceTypeSetback, SourceID: &questID, DayBucket: "2026-08-29",
	})
	require.NoError(t, err)

	balance, err := s.GetBalance(user.ID, guild.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, balance)

	xp, err := s.GetXPTotal(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, xp)

	has, err := s.HasSetbackOnDay(questID, user.ID, "2026-08-29")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = s.HasSetbackOnDay(questID, user.ID, "2026-08-30")
	require.NoError(t, err)
	assert.False(t, has)

	history, err := s.GetTransactionsByUserAndGuild(user.ID, guild.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, core.SourceTypeSetback, history[0].SourceType)
}

func TestScheduledEventsOnDay(t *testing.T) {
	s := newTestStore(t)
	guild, _ := seedGuildWithUser(t, s)

	_, err := s.CreateScheduledEvent(&core.ScheduledEvent{
		Name: "Vacation", Kind: core.EventGracePeriod, GuildID: &guild.ID,
		StartDate: "2026-08-20", EndDate: "2026-08-30",
	})
	require.NoError(t, err)
	_, err = s.CreateScheduledEvent(&core.ScheduledEvent{
		Name: "Past bonus", Kind: core.EventBonus,
		StartDate: "2026-07-01", EndDate: "2026-07-10", Bonus: 50,
	})
	require.NoError(t, err)

	events, err := s.ListEventsOnDay("2026-08-29")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, core.EventGracePeriod, events[0].Kind)
	assert.True(t, events[0].Covers("2026-08-29", guild.ID))
	assert.False(t, events[0].Covers("2026-08-29", guild.ID+1))
}

func TestMarketPurchasesAndTrophies(t *testing.T) {
	s := newTestStore(t)
	guild, user := seedGuildWithUser(t, s)

	item, err := s.CreateMarketItem(&core.MarketItem{
		GuildID: guild.ID, Title: "Movie night pick", Cost: 25, IsOneTime: true,
	})
	require.NoError(t, err)

	tx, err := s.CreateTransaction(&core.Transaction{
		UserID: user.ID, GuildID: guild.ID, Amount: -25,
		SourceType: core.SourceTypeMarket, SourceID: &item.ID, DayBucket: "2026-08-29",
	})
	require.NoError(t, err)

	p, err := s.CreatePurchase(tx.ID, user.ID, guild.ID, item.ID)
	require.NoError(t, err)
	assert.False(t, p.Fulfilled)

	require.NoError(t, s.MarkPurchaseFulfilled(p.ID, user.ID))
	err = s.MarkPurchaseFulfilled(p.ID, user.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	owned, err := s.ListOwnedItemIDs(user.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{item.ID}, owned)

	// Deleting the item keeps the purchase record.
	require.NoError(t, s.DeleteMarketItem(item.ID))
	purchases, err := s.ListPurchasesByUserAndGuild(user.ID, guild.ID)
	require.NoError(t, err)
	assert.Len(t, purchases, 1)

	require.NoError(t, s.AwardTrophy(user.ID, "first-quest"))
	require.NoError(t, s.AwardTrophy(user.ID, "first-quest"))
	trophies, err := s.ListTrophyIDs(user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"first-quest"}, trophies)
}
