package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mckayc/task-donegeon-sub005/internal/core"
)

func urlID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// mustUserID is only called behind requireAuth
func (s *Server) mustUserID(r *http.Request) int64 {
	id, _ := s.getUserID(r)
	return id
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.service.GetUserByID(s.mustUserID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	guilds, err := s.service.GetGuildsByUserID(user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
		"language": user.Language,
		"guilds":   guildPayloads(guilds),
	})
}

// ---- Guilds ----

func (s *Server) handleCreateGuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	guild, err := s.service.CreateGuild(req.Name, s.mustUserID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, guildPayload(guild))
}

func (s *Server) handleJoinGuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InviteCode string `json:"inviteCode"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	guild, err := s.service.JoinGuild(s.mustUserID(r), req.InviteCode)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, guildPayload(guild))
}

func guildPayload(g *core.Guild) map[string]interface{} {
	return map[string]interface{}{
		"id":         g.ID,
		"name":       g.Name,
		"inviteCode": g.InviteCode,
	}
}

func guildPayloads(guilds []*core.Guild) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(guilds))
	for _, g := range guilds {
		out = append(out, guildPayload(g))
	}
	return out
}

// ---- Quest board ----

func (s *Server) handleQuestBoard(w http.ResponseWriter, r *http.Request) {
	guildID, err := urlID(r, "guildID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid guild id")
		return
	}
	board, err := s.service.ListQuestBoard(s.mustUserID(r), guildID, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	entries := make([]map[string]interface{}, 0, len(board))
	for _, av := range board {
		entries = append(entries, availabilityPayload(av))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"quests": entries})
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	questID, err := urlID(r, "questID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid quest id")
		return
	}
	av, err := s.service.EvaluateAvailability(s.mustUserID(r), questID, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityPayload(av))
}

func availabilityPayload(av core.Availability) map[string]interface{} {
	entry := map[string]interface{}{
		"questId": av.Quest.ID,
		"title":   av.Quest.Title,
		"kind":    av.Quest.Kind,
		"state":   av.State,
	}
	if av.Occurrence.DueAt != nil {
		entry["dueAt"] = av.Occurrence.DueAt
	}
	if av.Occurrence.WindowEnd != nil {
		entry["windowEnd"] = av.Occurrence.WindowEnd
	}
	if av.State == core.StateLocked && av.Gate.FailedSet != "" {
		entry["lockedBy"] = av.Gate.FailedSet
	}
	return entry
}

// ---- Quest definitions ----

type questPayload struct {
	ID                int64              `json:"id,omitempty"`
	GuildID           int64              `json:"guildId"`
	Title             string             `json:"title"`
	Description       string             `json:"description,omitempty"`
	Kind              core.QuestKind     `json:"kind"`
	IsActive          bool               `json:"isActive"`
	RecurrenceRule    string             `json:"recurrenceRule,omitempty"`
	StartTime         string             `json:"startTime,omitempty"`
	EndTime           string             `json:"endTime,omitempty"`
	DueTime           string             `json:"dueTime,omitempty"`
	AllDay            bool               `json:"allDay"`
	StartAt           *time.Time         `json:"startAt,omitempty"`
	EndAt             *time.Time         `json:"endAt,omitempty"`
	DailyLimit        int                `json:"dailyLimit,omitempty"`
	TotalLimit        int                `json:"totalLimit,omitempty"`
	RequiresClaim     bool               `json:"requiresClaim,omitempty"`
	ClaimLimit        int                `json:"claimLimit,omitempty"`
	RequiresApproval  bool               `json:"requiresApproval"`
	RewardValue       int                `json:"rewardValue,omitempty"`
	RewardXP          int                `json:"rewardXp,omitempty"`
	LateSetback       int                `json:"lateSetback,omitempty"`
	IncompleteSetback int                `json:"incompleteSetback,omitempty"`
	ConditionSetIDs   []int64            `json:"conditionSetIds,omitempty"`
	AssignedUserIDs   []int64            `json:"assignedUserIds,omitempty"`
	Checkpoints       []checkpointInput  `json:"checkpoints,omitempty"`
}

type checkpointInput struct {
	ID          int64  `json:"id,omitempty"`
	Position    int    `json:"position"`
	Title       string `json:"title"`
	RewardValue int    `json:"rewardValue,omitempty"`
	RewardXP    int    `json:"rewardXp,omitempty"`
}

func (p *questPayload) toQuest() *core.Quest {
	q := &core.Quest{
		ID:                p.ID,
		GuildID:           p.GuildID,
		Title:             p.Title,
		Description:       p.Description,
		Kind:              p.Kind,
		IsActive:          p.IsActive,
		RecurrenceRule:    p.RecurrenceRule,
		StartTime:         p.StartTime,
		EndTime:           p.EndTime,
		DueTime:           p.DueTime,
		AllDay:            p.AllDay,
		StartAt:           p.StartAt,
		EndAt:             p.EndAt,
		DailyLimit:        p.DailyLimit,
		TotalLimit:        p.TotalLimit,
		RequiresClaim:     p.RequiresClaim,
		ClaimLimit:        p.ClaimLimit,
		RequiresApproval:  p.RequiresApproval,
		RewardValue:       p.RewardValue,
		RewardXP:          p.RewardXP,
		LateSetback:       p.LateSetback,
		IncompleteSetback: p.IncompleteSetback,
		ConditionSetIDs:   p.ConditionSetIDs,
		AssignedUserIDs:   p.AssignedUserIDs,
	}
	for _, cp := range p.Checkpoints {
		q.Checkpoints = append(q.Checkpoints, core.Checkpoint{
			ID: cp.ID, Position: cp.Position, Title: cp.Title,
			RewardValue: cp.RewardValue, RewardXP: cp.RewardXP,
		})
	}
	return q
}

func fromQuest(q *core.Quest) *questPayload {
	p := &questPayload{
		ID:                q.ID,
		GuildID:           q.GuildID,
		Title:             q.Title,
		Description:       q.Description,
		Kind:              q.Kind,
		IsActive:          q.IsActive,
		RecurrenceRule:    q.RecurrenceRule,
		StartTime:         q.StartTime,
		EndTime:           q.EndTime,
		DueTime:           q.DueTime,
		AllDay:            q.AllDay,
		StartAt:           q.StartAt,
		EndAt:             q.EndAt,
		DailyLimit:        q.DailyLimit,
		TotalLimit:        q.TotalLimit,
		RequiresClaim:     q.RequiresClaim,
		ClaimLimit:        q.ClaimLimit,
		RequiresApproval:  q.RequiresApproval,
		RewardValue:       q.RewardValue,
		RewardXP:          q.RewardXP,
		LateSetback:       q.LateSetback,
		IncompleteSetback: q.IncompleteSetback,
		ConditionSetIDs:   q.ConditionSetIDs,
		AssignedUserIDs:   q.AssignedUserIDs,
	}
	for _, cp := range q.Checkpoints {
		p.Checkpoints = append(p.Checkpoints, checkpointInput{
			ID: cp.ID, Position: cp.Position, Title: cp.Title,
			RewardValue: cp.RewardValue, RewardXP: cp.RewardXP,
		})
	}
	return p
}

func (s *Server) handleListQuests(w http.ResponseWriter, r *http.Request) {
	guildID, err := urlID(r, "guildID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid guild id")
		return
	}
	quests, err := s.service.GetQuestsByGuildID(guildID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	payloads := make([]*questPayload, 0, len(quests))
	for _, q := range quests {
		payloads = append(payloads, fromQuest(q))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"quests": payloads})
}

func (s *Server) handleCreateQuest(w http.ResponseWriter, r *http.Request) {
	var req questPayload
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	quest, err := s.service.CreateQuest(req.toQuest())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fromQuest(quest))
}

func (s *Server) handleUpdateQuest(w http.ResponseWriter, r *http.Request) {
	questID, err := urlID(r, "questID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid quest id")
		return
	}
	var req questPayload
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.ID = questID
	if err := s.service.UpdateQuest(req.toQuest()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteQuest(w http.ResponseWriter, r *http.Request) {
	questID, err := urlID(r, "questID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid quest id")
		return
	}
	if err := s.service.DeleteQuest(questID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ---- Claims ----

func (s *Server) handleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	questID, err := urlID(r, "questID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid quest id")
		return
	}
	claim, err := s.service.SubmitClaim(s.mustUserID(r), questID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id": claim.ID, "questId": claim.QuestID, "status": claim.Status,
	})
}

func (s *Server) claimAction(w http.ResponseWriter, r *http.Request, act func(actorID, claimID int64) error) {
	claimID, err := urlID(r, "claimID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}
	if err := act(s.mustUserID(r), claimID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleApproveClaim(w http.ResponseWriter, r *http.Request) {
	s.claimAction(w, r, s.service.ApproveClaim)
}

func (s *Server) handleRejectClaim(w http.ResponseWriter, r *http.Request) {
	s.claimAction(w, r, s.service.RejectClaim)
}

func (s *Server) handleCancelClaim(w http.ResponseWriter, r *http.Request) {
	s.claimAction(w, r, s.service.CancelClaim)
}

// ---- Completions ----

func (s *Server) handleSubmitCompletion(w http.ResponseWriter, r *http.Request) {
	questID, err := urlID(r, "questID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid quest id")
		return
	}
	var req struct {
		CheckpointID *int64 `json:"checkpointId"`
		Note         string `json:"note"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
	}
	completion, err := s.service.SubmitCompletion(s.mustUserID(r), questID, req.CheckpointID, req.Note)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id": completion.ID, "status": completion.Status, "dayBucket": completion.DayBucket,
	})
}

func (s *Server) completionAction(w http.ResponseWriter, r *http.Request, act func(actorID, completionID int64, note string) error) {
	completionID, err := urlID(r, "completionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid completion id")
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
	}
	if err := act(s.mustUserID(r), completionID, req.Note); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleApproveCompletion(w http.ResponseWriter, r *http.Request) {
	s.completionAction(w, r, s.service.ApproveCompletion)
}

func (s *Server) handleRejectCompletion(w http.ResponseWriter, r *http.Request) {
	s.completionAction(w, r, s.service.RejectCompletion)
}

// ---- Condition sets and events ----

type conditionSetPayload struct {
	Name       string           `json:"name"`
	Logic      string           `json:"logic"`
	IsGlobal   bool             `json:"isGlobal"`
	Conditions []conditionInput `json:"conditions"`
}

type conditionInput struct {
	Kind        string `json:"kind"`
	RankOrdinal int    `json:"rankOrdinal,omitempty"`
	Weekdays    []int  `json:"weekdays,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	StartTime   string `json:"startTime,omitempty"`
	EndTime     string `json:"endTime,omitempty"`
	QuestID     int64  `json:"questId,omitempty"`
	TrophyID    string `json:"trophyId,omitempty"`
	ItemID      int64  `json:"itemId,omitempty"`
	GuildID     int64  `json:"guildId,omitempty"`
	Role        string `json:"role,omitempty"`
}

func (s *Server) handleCreateConditionSet(w http.ResponseWriter, r *http.Request) {
	var req conditionSetPayload
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	cs := &core.ConditionSet{
		Name:     req.Name,
		Logic:    core.ConditionLogic(req.Logic),
		IsGlobal: req.IsGlobal,
	}
	for _, c := range req.Conditions {
		cond := core.Condition{
			Kind:        core.ConditionKind(c.Kind),
			RankOrdinal: c.RankOrdinal,
			StartDate:   c.StartDate,
			EndDate:     c.EndDate,
			StartTime:   c.StartTime,
			EndTime:     c.EndTime,
			QuestID:     c.QuestID,
			TrophyID:    c.TrophyID,
			ItemID:      c.ItemID,
			GuildID:     c.GuildID,
			Role:        core.Role(c.Role),
		}
		for _, wd := range c.Weekdays {
			cond.Weekdays = append(cond.Weekdays, time.Weekday(wd))
		}
		cs.Conditions = append(cs.Conditions, cond)
	}
	created, err := s.service.CreateConditionSet(cs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": created.ID, "name": created.Name})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		Kind      string `json:"kind"`
		GuildID   *int64 `json:"guildId"`
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
		Bonus     int    `json:"bonus"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	event, err := s.service.CreateScheduledEvent(&core.ScheduledEvent{
		Name:      req.Name,
		Kind:      core.EventKind(req.Kind),
		GuildID:   req.GuildID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Bonus:     req.Bonus,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": event.ID})
}

// ---- Rotations ----

func (s *Server) handleCreateRotation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GuildID       int64   `json:"guildId"`
		Name          string  `json:"name"`
		QuestIDs      []int64 `json:"questIds"`
		UserIDs       []int64 `json:"userIds"`
		ActiveDays    []int   `json:"activeDays"`
		Frequency     string  `json:"frequency"`
		QuestsPerUser int     `json:"questsPerUser"`
		UserSliceSize int     `json:"userSliceSize"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	rot := &core.Rotation{
		GuildID:       req.GuildID,
		Name:          req.Name,
		QuestIDs:      req.QuestIDs,
		UserIDs:       req.UserIDs,
		Frequency:     core.RotationFrequency(req.Frequency),
		QuestsPerUser: req.QuestsPerUser,
		UserSliceSize: req.UserSliceSize,
		IsActive:      true,
	}
	for _, d := range req.ActiveDays {
		rot.ActiveDays = append(rot.ActiveDays, time.Weekday(d))
	}
	created, err := s.service.CreateRotation(rot)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": created.ID})
}

func (s *Server) handleRunRotation(w http.ResponseWriter, r *http.Request) {
	rotationID, err := urlID(r, "rotationID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rotation id")
		return
	}
	plan, err := s.service.RunRotation(rotationID, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if plan == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ran": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ran": true, "assignments": plan.Assignments})
}

// ---- Market and ledger ----

func (s *Server) handleListMarket(w http.ResponseWriter, r *http.Request) {
	guildID, err := urlID(r, "guildID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid guild id")
		return
	}
	listings, err := s.service.ListMarket(s.mustUserID(r), guildID, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(listings))
	for _, l := range listings {
		entry := map[string]interface{}{
			"id":        l.Item.ID,
			"title":     l.Item.Title,
			"cost":      l.Item.Cost,
			"isOneTime": l.Item.IsOneTime,
			"locked":    l.Locked,
		}
		if l.Locked && l.Gate.FailedSet != "" {
			entry["lockedBy"] = l.Gate.FailedSet
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": out})
}

func (s *Server) handleCreateMarketItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GuildID         int64   `json:"guildId"`
		Title           string  `json:"title"`
		Description     string  `json:"description"`
		Cost            int     `json:"cost"`
		IsOneTime       bool    `json:"isOneTime"`
		ConditionSetIDs []int64 `json:"conditionSetIds"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	item, err := s.service.CreateMarketItem(&core.MarketItem{
		GuildID:         req.GuildID,
		Title:           req.Title,
		Description:     req.Description,
		Cost:            req.Cost,
		IsOneTime:       req.IsOneTime,
		ConditionSetIDs: req.ConditionSetIDs,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": item.ID})
}

func (s *Server) handleDeleteMarketItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := urlID(r, "itemID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	if err := s.service.DeleteMarketItem(itemID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleBuyItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := urlID(r, "itemID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	tx, err := s.service.BuyMarketItem(s.mustUserID(r), itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactionId": tx.ID, "amount": tx.Amount})
}

func (s *Server) handleFulfillPurchase(w http.ResponseWriter, r *http.Request) {
	purchaseID, err := urlID(r, "purchaseID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid purchase id")
		return
	}
	if err := s.service.MarkPurchaseFulfilled(purchaseID, s.mustUserID(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "fulfilled"})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	guildID, err := urlID(r, "guildID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid guild id")
		return
	}
	userID := s.mustUserID(r)
	balance, err := s.service.GetBalance(userID, guildID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	transactions, err := s.service.GetTransactionHistory(userID, guildID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	entries := make([]map[string]interface{}, 0, len(transactions))
	for _, tx := range transactions {
		entries = append(entries, map[string]interface{}{
			"id":          tx.ID,
			"amount":      tx.Amount,
			"xp":          tx.XP,
			"sourceType":  tx.SourceType,
			"dayBucket":   tx.DayBucket,
			"description": tx.Description,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"balance": balance, "transactions": entries})
}

func (s *Server) handlePurchaseHistory(w http.ResponseWriter, r *http.Request) {
	guildID, err := urlID(r, "guildID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid guild id")
		return
	}
	purchases, err := s.service.GetPurchaseHistory(s.mustUserID(r), guildID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(purchases))
	for _, p := range purchases {
		out = append(out, map[string]interface{}{
			"id":           p.ID,
			"marketItemId": p.MarketItemID,
			"fulfilled":    p.Fulfilled,
			"createdAt":    p.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"purchases": out})
}

// ---- Admin ----

func (s *Server) handleAwardTrophy(w http.ResponseWriter, r *http.Request) {
	userID, err := urlID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req struct {
		TrophyID string `json:"trophyId"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.service.AwardTrophy(s.mustUserID(r), userID, req.TrophyID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "awarded"})
}

func (s *Server) handleRefreshCatalog(w http.ResponseWriter, r *http.Request) {
	if err := s.service.RefreshCatalog(); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}
