package core_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mckayc/task-donegeon-sub005/internal/core"
	"github.com/mckayc/task-donegeon-sub005/internal/store"
)

type fixture struct {
	svc      *core.Service
	store    *store.Store
	guild    *core.Guild
	explorer *core.User
	master   *core.User
}

func newFixture(t *testing.T, policy core.Policy) *fixture {
	t.Helper()
	s, err := store.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	svc, err := core.NewService(s, nil, policy)
	require.NoError(t, err)

	explorer, err := svc.CreateUser("pippin", nil, core.RoleExplorer)
	require.NoError(t, err)
	master, err := svc.CreateUser("gandalf", nil, core.RoleMaster)
	require.NoError(t, err)
	guild, err := svc.CreateGuild("Fellowship", master.ID)
	require.NoError(t, err)
	require.NoError(t, s.AddUserToGuild(explorer.ID, guild.ID))

	return &fixture{svc: svc, store: s, guild: guild, explorer: explorer, master: master}
}

func (f *fixture) dailyQuest(t *testing.T, mutate func(*core.Quest)) *core.Quest {
	t.Helper()
	q := &core.Quest{
		GuildID:          f.guild.ID,
		Title:            "Sweep the kitchen",
		Kind:             core.QuestKindDuty,
		IsActive:         true,
		RecurrenceRule:   "daily",
		AllDay:           true,
		RequiresApproval: true,
		RewardValue:      10,
		RewardXP:         5,
	}
	if mutate != nil {
		mutate(q)
	}
	created, err := f.svc.CreateQuest(q)
	require.NoError(t, err)
	return created
}

func TestQuestValidation(t *testing.T) {
	f := newFixture(t, core.Policy{})

	_, err := f.svc.CreateQuest(&core.Quest{GuildID: f.guild.ID, Kind: core.QuestKindDuty})
	assert.True(t, core.IsValidation(err), "missing title")

	_, err = f.svc.CreateQuest(&core.Quest{
		GuildID: f.guild.ID, Title: "x", Kind: core.QuestKindDuty,
		RequiresClaim: true, RecurrenceRule: "daily", AllDay: true,
	})
	assert.True(t, core.IsValidation(err), "claim limit required")

	_, err = f.svc.CreateQuest(&core.Quest{
		GuildID: f.guild.ID, Title: "x", Kind: core.QuestKindJourney,
		Checkpoints: []core.Checkpoint{{Position: 0}, {Position: 2}},
	})
	assert.True(t, core.IsValidation(err), "checkpoint positions must be contiguous")
}

func TestClaimLifecycle(t *testing.T) {
	f := newFixture(t, core.Policy{})
	quest := f.dailyQuest(t, func(q *core.Quest) {
		q.RequiresClaim = true
		q.ClaimLimit = 1
	})

	claim, err := f.svc.SubmitClaim(f.explorer.ID, quest.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ClaimPending, claim.Status)

	_, err = f.svc.SubmitClaim(f.explorer.ID, quest.ID)
	assert.ErrorIs(t, err, core.ErrDuplicateClaim)

	require.NoError(t, f.svc.ApproveClaim(f.master.ID, claim.ID))
	assert.ErrorIs(t, f.svc.ApproveClaim(f.master.ID, claim.ID), core.ErrClaimNotPending)

	// With the single slot approved away, a second claimant reaches the
	// pending queue but can no longer be approved.
	second, err := f.svc.SubmitClaim(f.master.ID, quest.ID)
	require.NoError(t, err)
	err = f.svc.ApproveClaim(f.master.ID, second.ID)
	assert.ErrorIs(t, err, core.ErrClaimLimitExceeded)

	// Rejecting frees the pending row entirely.
	require.NoError(t, f.svc.RejectClaim(f.master.ID, second.ID))
	_, err = f.svc.SubmitClaim(f.master.ID, quest.ID)
	require.NoError(t, err)
}

func TestClaimPermissions(t *testing.T) {
	f := newFixture(t, core.Policy{DisableSelfApproval: true})
	quest := f.dailyQuest(t, func(q *core.Quest) {
		q.RequiresClaim = true
		q.ClaimLimit = 2
	})

	claim, err := f.svc.SubmitClaim(f.explorer.ID, quest.ID)
	require.NoError(t, err)

	// Explorers may not approve.
	assert.ErrorIs(t, f.svc.ApproveClaim(f.explorer.ID, claim.ID), core.ErrNotApprover)

	// Masters may not approve their own claim under the policy.
	own, err := f.svc.SubmitClaim(f.master.ID, quest.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.ApproveClaim(f.master.ID, own.ID), core.ErrSelfApproval)

	// Only the claimant may cancel.
	assert.ErrorIs(t, f.svc.CancelClaim(f.master.ID, claim.ID), core.ErrNotClaimant)
	require.NoError(t, f.svc.CancelClaim(f.explorer.ID, claim.ID))
}

func TestCompletionApprovalFlow(t *testing.T) {
	f := newFixture(t, core.Policy{})
	quest := f.dailyQuest(t, nil)

	completion, err := f.svc.SubmitCompletion(f.explorer.ID, quest.ID, nil, "done before dinner")
	require.NoError(t, err)
	assert.Equal(t, core.CompletionPending, completion.Status)

	// No payout until approval.
	balance, err := f.svc.GetBalance(f.explorer.ID, f.guild.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)

	require.NoError(t, f.svc.ApproveCompletion(f.master.ID, completion.ID, "good"))
	assert.ErrorIs(t, f.svc.ApproveCompletion(f.master.ID, completion.ID, ""), core.ErrAlreadyResolved)

	balance, err = f.svc.GetBalance(f.explorer.ID, f.guild.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, balance)
}

func TestCompletionAutoApproval(t *testing.T) {
	f := newFixture(t, core.Policy{})
	quest := f.dailyQuest(t, func(q *core.Quest) {
		q.RequiresApproval = false
		q.DailyLimit = 1
	})

	completion, err := f.svc.SubmitCompletion(f.explorer.ID, quest.ID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, core.CompletionApproved, completion.Status)

	balance, err := f.svc.GetBalance(f.explorer.ID, f.guild.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, balance)

	// The daily cap makes a second submission a resolved duplicate.
	_, err = f.svc.SubmitCompletion(f.explorer.ID, quest.ID, nil, "")
	assert.ErrorIs(t, err, core.ErrAlreadyResolved)
}

func TestCompletionRejectionLeavesNoPayout(t *testing.T) {
	f := newFixture(t, core.Policy{})
	quest := f.dailyQuest(t, nil)

	completion, err := f.svc.SubmitCompletion(f.explorer.ID, quest.ID, nil, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.RejectCompletion(f.master.ID, completion.ID, "not actually swept"))

	balance, err := f.svc.GetBalance(f.explorer.ID, f.guild.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)

	// A rejected attempt does not consume the cap; resubmission works.
	_, err = f.svc.SubmitCompletion(f.explorer.ID, quest.ID, nil, "second try")
	require.NoError(t, err)
}

func TestDailyCapCountsPendingSubmissions(t *testing.T) {
	f := newFixture(t, core.Policy{})
	quest := f.dailyQuest(t, func(q *core.Quest) { q.DailyLimit = 1 })
	today := time.Now().Format("2006-01-02")

	first, err := f.svc.SubmitCompletion(f.explorer.ID, quest.ID, nil, "")
	require.NoError(t, err)

	// The unresolved attempt holds the daily slot.
	_, err = f.svc.SubmitCompletion(f.explorer.ID, quest.ID, nil, "")
	assert.ErrorIs(t, err, core.ErrCompletionPending)

	// A pending row slipped in underneath the submission check must still
	// not pay out once the cap is consumed by the first approval.
	dup, err := f.store.CreateCompletion(&core.QuestCompletion{
		RecordID: "dup-record", QuestID: quest.ID, UserID: f.explorer.ID,
		Status: core.CompletionPending, DayBucket: today, SubmittedAt: time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.ApproveCompletion(f.master.ID, first.ID, ""))
	assert.ErrorIs(t, f.svc.ApproveCompletion(f.master.ID, dup.ID, ""), core.ErrAlreadyResolved)

	balance, err := f.svc.GetBalance(f.explorer.ID, f.guild.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, balance)
}

func TestCompletionRequiresApprovedClaim(t *testing.T) {
	f := newFixture(t, core.Policy{})
	quest := f.dailyQuest(t, func(q *core.Quest) {
		q.RequiresClaim = true
		q.ClaimLimit = 1
	})

	// Free slots keep the quest available, but work may not be submitted
	// before a claim is approved.
	_, err := f.svc.SubmitCompletion(f.explorer.ID, quest.ID, nil, "")
	assert.ErrorIs(t, err, core.ErrClaimRequired)

	claim, err := f.svc.SubmitClaim(f.explorer.ID, quest.ID)
	require.NoError(t, err)
	_, err = f.svc.SubmitCompletion(f.explorer.ID, quest.ID, nil, "")
	assert.ErrorIs(t, err, core.ErrQuestNotAvailable)

	require.NoError(t, f.svc.ApproveClaim(f.master.ID, claim.ID))
	_, err = f.svc.SubmitCompletion(f.explorer.ID, quest.ID, nil, "")
	require.NoError(t, err)
}

func TestJourneyCheckpointOrder(t *testing.T) {
	f := newFixture(t, core.Policy{})
	start := time.Now().Add(-time.Hour)
	quest, err := f.svc.CreateQuest(&core.Quest{
		GuildID: f.guild.ID, Title: "Learn to ride a bike",
		Kind: core.QuestKindJourney, IsActive: true, AllDay: true,
		RequiresApproval: false, StartAt: &start,
		Checkpoints: []core.Checkpoint{
			{Position: 0, Title: "Balance", RewardValue: 5},
			{Position: 1, Title: "Pedal", RewardValue: 5},
			{Position: 2, Title: "Ride solo", RewardValue: 20, RewardXP: 10},
		},
	})
	require.NoError(t, err)

	first := quest.Checkpoints[0].ID
	second := quest.Checkpoints[1].ID
	third := quest.Checkpoints[2].ID

	// A checkpoint is required, and skipping ahead is refused.
	_, err = f.svc.SubmitCompletion(f.explorer.ID, quest.ID, nil, "")
	assert.True(t, core.IsValidation(err))
	_, err = f.svc.SubmitCompletion(f.explorer.ID, quest.ID, &second, "")
	assert.ErrorIs(t, err, core.ErrCheckpointSkipped)

	_, err = f.svc.SubmitCompletion(f.explorer.ID, quest.ID, &first, "")
	require.NoError(t, err)
	_, err = f.svc.SubmitCompletion(f.explorer.ID, quest.ID, &first, "")
	assert.ErrorIs(t, err, core.ErrAlreadyResolved)

	_, err = f.svc.SubmitCompletion(f.explorer.ID, quest.ID, &second, "")
	require.NoError(t, err)
	_, err = f.svc.SubmitCompletion(f.explorer.ID, quest.ID, &third, "")
	require.NoError(t, err)

	// All checkpoints approved: the journey reads as completed.
	av, err := f.svc.EvaluateAvailability(f.explorer.ID, quest.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, core.StateCompleted, av.State)

	balance, err := f.svc.GetBalance(f.explorer.ID, f.guild.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, balance)
	xp, err := f.store.GetXPTotal(f.explorer.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, xp)
}

func TestJourneyCheckpointDoubleApproval(t *testing.T) {
	f := newFixture(t, core.Policy{})
	start := time.Now().Add(-time.Hour)
	quest, err := f.svc.CreateQuest(&core.Quest{
		GuildID: f.guild.ID, Title: "Bake bread from scratch",
		Kind: core.QuestKindJourney, IsActive: true, AllDay: true,
		RequiresApproval: true, StartAt: &start,
		Checkpoints: []core.Checkpoint{
			{Position: 0, Title: "Knead the dough", RewardValue: 5},
			{Position: 1, Title: "Bake a loaf", RewardValue: 10},
		},
	})
	require.NoError(t, err)
	cp := quest.Checkpoints[0].ID

	first, err := f.svc.SubmitCompletion(f.explorer.ID, quest.ID, &cp, "")
	require.NoError(t, err)

	// The same checkpoint cannot be queued twice.
	_, err = f.svc.SubmitCompletion(f.explorer.ID, quest.ID, &cp, "")
	assert.ErrorIs(t, err, core.ErrCompletionPending)

	// Even a duplicate pending row written underneath the submission check
	// pays out at most once.
	dup, err := f.store.CreateCompletion(&core.QuestCompletion{
		RecordID: "dup-checkpoint", QuestID: quest.ID, UserID: f.explorer.ID,
		CheckpointID: &cp, Status: core.CompletionPending,
		DayBucket: time.Now().Format("2006-01-02"), SubmittedAt: time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.ApproveCompletion(f.master.ID, first.ID, ""))
	assert.ErrorIs(t, f.svc.ApproveCompletion(f.master.ID, dup.ID, ""), core.ErrAlreadyResolved)

	balance, err := f.svc.GetBalance(f.explorer.ID, f.guild.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, balance)
}

func TestListQuestBoardFiltersHidden(t *testing.T) {
	f := newFixture(t, core.Policy{})
	visible := f.dailyQuest(t, nil)
	f.dailyQuest(t, func(q *core.Quest) {
		q.Title = "Someone else's quest"
		q.AssignedUserIDs = []int64{f.master.ID}
	})
	f.dailyQuest(t, func(q *core.Quest) {
		q.Title = "Retired quest"
		q.IsActive = false
	})

	board, err := f.svc.ListQuestBoard(f.explorer.ID, f.guild.ID, time.Now())
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, visible.ID, board[0].Quest.ID)

	outsider, err := f.svc.CreateUser("saruman", nil, core.RoleExplorer)
	require.NoError(t, err)
	_, err = f.svc.ListQuestBoard(outsider.ID, f.guild.ID, time.Now())
	assert.ErrorIs(t, err, core.ErrNotMember)
}

func TestSetbackSweep(t *testing.T) {
	f := newFixture(t, core.Policy{})
	f.dailyQuest(t, func(q *core.Quest) {
		q.AllDay = false
		q.StartTime = "06:00"
		q.EndTime = "22:00"
		q.LateSetback = 2
		q.IncompleteSetback = 5
		q.AssignedUserIDs = []int64{f.explorer.ID}
	})

	// 23:00 is past the window end: the occurrence closed incomplete.
	lateEvening := time.Date(2026, 8, 29, 23, 0, 0, 0, time.Local)
	applied, err := f.svc.ApplySetbacks(lateEvening)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, -5, applied[0].Amount)
	assert.Equal(t, core.SourceTypeSetback, applied[0].SourceType)

	// A second sweep on the same day applies nothing.
	applied, err = f.svc.ApplySetbacks(lateEvening.Add(30 * time.Minute))
	require.NoError(t, err)
	assert.Empty(t, applied)

	balance, err := f.svc.GetBalance(f.explorer.ID, f.guild.ID)
	require.NoError(t, err)
	assert.Equal(t, -5, balance)
}

func TestSetbackSweepHonorsGrace(t *testing.T) {
	f := newFixture(t, core.Policy{})
	f.dailyQuest(t, func(q *core.Quest) {
		q.AllDay = false
		q.StartTime = "06:00"
		q.EndTime = "22:00"
		q.IncompleteSetback = 5
		q.AssignedUserIDs = []int64{f.explorer.ID}
	})
	_, err := f.svc.CreateScheduledEvent(&core.ScheduledEvent{
		Name: "Vacation", Kind: core.EventGracePeriod,
		StartDate: "2026-08-25", EndDate: "2026-08-31",
	})
	require.NoError(t, err)

	lateEvening := time.Date(2026, 8, 29, 23, 0, 0, 0, time.Local)
	applied, err := f.svc.ApplySetbacks(lateEvening)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestVentureIncompleteSetback(t *testing.T) {
	f := newFixture(t, core.Policy{})
	start := time.Now().Add(-48 * time.Hour)
	end := time.Now().Add(-time.Hour)
	_, err := f.svc.CreateQuest(&core.Quest{
		GuildID: f.guild.ID, Title: "Clear out the garage",
		Kind: core.QuestKindVenture, IsActive: true, AllDay: true,
		RequiresApproval: true, StartAt: &start, EndAt: &end,
		IncompleteSetback: 5, AssignedUserIDs: []int64{f.explorer.ID},
	})
	require.NoError(t, err)

	// The window closed without a completion: the deduction is owed even
	// though the end date has passed.
	applied, err := f.svc.ApplySetbacks(time.Now())
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, -5, applied[0].Amount)

	// Re-running, today or any later day, applies nothing further.
	applied, err = f.svc.ApplySetbacks(time.Now())
	require.NoError(t, err)
	assert.Empty(t, applied)
	applied, err = f.svc.ApplySetbacks(time.Now().AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, applied)

	balance, err := f.svc.GetBalance(f.explorer.ID, f.guild.ID)
	require.NoError(t, err)
	assert.Equal(t, -5, balance)
}

func TestClaimLimitConcurrentApprovals(t *testing.T) {
	f := newFixture(t, core.Policy{})
	quest := f.dailyQuest(t, func(q *core.Quest) {
		q.RequiresClaim = true
		q.ClaimLimit = 1
	})

	claimants := []*core.User{f.explorer}
	for _, name := range []string{"merry", "sam", "frodo"} {
		u, err := f.svc.CreateUser(name, nil, core.RoleExplorer)
		require.NoError(t, err)
		require.NoError(t, f.store.AddUserToGuild(u.ID, f.guild.ID))
		claimants = append(claimants, u)
	}

	claims := make([]*core.Claim, len(claimants))
	for i, u := range claimants {
		c, err := f.svc.SubmitClaim(u.ID, quest.ID)
		require.NoError(t, err)
		claims[i] = c
	}

	errs := make([]error, len(claims))
	var wg sync.WaitGroup
	for i, c := range claims {
		wg.Add(1)
		go func(i int, claimID int64) {
			defer wg.Done()
			errs[i] = f.svc.ApproveClaim(f.master.ID, claimID)
		}(i, c.ID)
	}
	wg.Wait()

	// With a single slot, exactly one approval lands.
	approved := 0
	for _, err := range errs {
		if err == nil {
			approved++
		} else {
			assert.ErrorIs(t, err, core.ErrClaimLimitExceeded)
		}
	}
	assert.Equal(t, 1, approved)
}

func TestRunRotationIdempotence(t *testing.T) {
	f := newFixture(t, core.Policy{})
	q1 := f.dailyQuest(t, nil)
	q2 := f.dailyQuest(t, func(q *core.Quest) { q.Title = "Water plants" })

	rot, err := f.svc.CreateRotation(&core.Rotation{
		GuildID: f.guild.ID, Name: "Chore wheel",
		QuestIDs: []int64{q1.ID, q2.ID}, UserIDs: []int64{f.explorer.ID, f.master.ID},
		Frequency: core.RotationDaily, QuestsPerUser: 1, UserSliceSize: 1,
		IsActive: true,
	})
	require.NoError(t, err)

	now := time.Date(2026, 8, 29, 8, 0, 0, 0, time.Local)
	plan, err := f.svc.RunRotation(rot.ID, now)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, map[int64][]int64{q1.ID: {f.explorer.ID}}, plan.Assignments)

	// Same day: the run is a no-op, not a double assignment.
	plan, err = f.svc.RunRotation(rot.ID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, plan)

	// The next day rotates to the next user and quest.
	plan, err = f.svc.RunRotation(rot.ID, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, map[int64][]int64{q2.ID: {f.master.ID}}, plan.Assignments)

	assigned, err := f.store.GetQuestByID(q2.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.master.ID}, assigned.AssignedUserIDs)
}

func TestMarketPurchaseFlow(t *testing.T) {
	f := newFixture(t, core.Policy{})
	item, err := f.svc.CreateMarketItem(&core.MarketItem{
		GuildID: f.guild.ID, Title: "Movie night pick", Cost: 25,
	})
	require.NoError(t, err)

	_, err = f.svc.BuyMarketItem(f.explorer.ID, item.ID)
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)

	_, err = f.store.CreateTransaction(&core.Transaction{
		UserID: f.explorer.ID, GuildID: f.guild.ID, Amount: 40,
		SourceType: core.SourceTypeManual, DayBucket: "2026-08-29",
	})
	require.NoError(t, err)

	tx, err := f.svc.BuyMarketItem(f.explorer.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, -25, tx.Amount)

	balance, err := f.svc.GetBalance(f.explorer.ID, f.guild.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, balance)

	purchases, err := f.svc.GetPurchaseHistory(f.explorer.ID, f.guild.ID)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	require.NoError(t, f.svc.MarkPurchaseFulfilled(purchases[0].ID, f.master.ID))
}

func TestMarketClosedEventBlocksPurchases(t *testing.T) {
	f := newFixture(t, core.Policy{})
	item, err := f.svc.CreateMarketItem(&core.MarketItem{
		GuildID: f.guild.ID, Title: "Ice cream", Cost: 5,
	})
	require.NoError(t, err)
	_, err = f.store.CreateTransaction(&core.Transaction{
		UserID: f.explorer.ID, GuildID: f.guild.ID, Amount: 100,
		SourceType: core.SourceTypeManual, DayBucket: "2026-08-29",
	})
	require.NoError(t, err)

	today := time.Now().Format("2006-01-02")
	_, err = f.svc.CreateScheduledEvent(&core.ScheduledEvent{
		Name: "Maintenance", Kind: core.EventMarketClosed,
		StartDate: today, EndDate: today,
	})
	require.NoError(t, err)

	_, err = f.svc.BuyMarketItem(f.explorer.ID, item.ID)
	assert.ErrorIs(t, err, core.ErrMarketClosed)
}

func TestMarketGateLocksItem(t *testing.T) {
	f := newFixture(t, core.Policy{})
	set, err := f.svc.CreateConditionSet(&core.ConditionSet{
		Name: "Heroes only", Logic: core.LogicAll,
		Conditions: []core.Condition{{Kind: core.ConditionMinRank, RankOrdinal: 2}},
	})
	require.NoError(t, err)

	item, err := f.svc.CreateMarketItem(&core.MarketItem{
		GuildID: f.guild.ID, Title: "Legendary sword", Cost: 5,
		ConditionSetIDs: []int64{set.ID},
	})
	require.NoError(t, err)
	_, err = f.store.CreateTransaction(&core.Transaction{
		UserID: f.explorer.ID, GuildID: f.guild.ID, Amount: 100,
		SourceType: core.SourceTypeManual, DayBucket: "2026-08-29",
	})
	require.NoError(t, err)

	listings, err := f.svc.ListMarket(f.explorer.ID, f.guild.ID, time.Now())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.True(t, listings[0].Locked)

	_, err = f.svc.BuyMarketItem(f.explorer.ID, item.ID)
	assert.ErrorIs(t, err, core.ErrItemLocked)
}

func TestBonusEventMultipliesReward(t *testing.T) {
	f := newFixture(t, core.Policy{})
	quest := f.dailyQuest(t, func(q *core.Quest) { q.RequiresApproval = false })

	today := time.Now().Format("2006-01-02")
	_, err := f.svc.CreateScheduledEvent(&core.ScheduledEvent{
		Name: "Double weekend", Kind: core.EventBonus,
		StartDate: today, EndDate: today, Bonus: 100,
	})
	require.NoError(t, err)

	_, err = f.svc.SubmitCompletion(f.explorer.ID, quest.ID, nil, "")
	require.NoError(t, err)

	balance, err := f.svc.GetBalance(f.explorer.ID, f.guild.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, balance)
}

func TestTrophyAwardGating(t *testing.T) {
	f := newFixture(t, core.Policy{})
	assert.ErrorIs(t, f.svc.AwardTrophy(f.explorer.ID, f.explorer.ID, "early-bird"), core.ErrNotApprover)
	require.NoError(t, f.svc.AwardTrophy(f.master.ID, f.explorer.ID, "early-bird"))

	trophies, err := f.store.ListTrophyIDs(f.explorer.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"early-bird"}, trophies)
}
