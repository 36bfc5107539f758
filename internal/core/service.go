package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store interface defines the methods required from the storage layer
type Store interface {
	HistoryStore

	// User operations
	CreateUser(username string, telegramID *int64, role Role) (*User, error)
	GetUserByID(id int64) (*User, error)
	GetUserByTelegramID(telegramID int64) (*User, error)
	GetUserByUsername(username string) (*User, error)
	GetUsersByGuildID(guildID int64) ([]*User, error)
	SetUserRole(id int64, role Role) error
	SetUserLanguage(id int64, language string) error

	// Guild operations
	CreateGuild(name, inviteCode string) (*Guild, error)
	GetGuildByID(id int64) (*Guild, error)
	GetGuildByInviteCode(inviteCode string) (*Guild, error)
	GetGuildsByUserID(userID int64) ([]*Guild, error)
	AddUserToGuild(userID, guildID int64) error
	IsUserInGuild(userID, guildID int64) (bool, error)

	// Quest operations
	CreateQuest(q *Quest) (*Quest, error)
	GetQuestByID(id int64) (*Quest, error)
	GetQuestsByGuildID(guildID int64) ([]*Quest, error)
	ListActiveQuests() ([]*Quest, error)
	UpdateQuest(q *Quest) error
	DeleteQuest(id int64) error
	SetQuestAssignments(questID int64, userIDs []int64) error

	// Completion operations
	CreateCompletion(c *QuestCompletion) (*QuestCompletion, error)
	GetCompletionByID(id int64) (*QuestCompletion, error)
	ResolveCompletion(id int64, status CompletionStatus, resolvedBy int64, resolvedAt time.Time, note string) error
	ListCompletedQuestIDs(userID int64) ([]int64, error)

	// Claim operations
	CreateClaim(c *Claim) (*Claim, error)
	GetClaimByID(id int64) (*Claim, error)
	GetClaimsByQuestID(questID int64) ([]*Claim, error)
	GetOutstandingClaim(questID, userID int64) (*Claim, error)
	ApproveClaim(id, approverID int64, at time.Time) error
	DeleteClaim(id int64) error
	CountApprovedClaims(questID int64) (int, error)

	// Condition set operations
	CreateConditionSet(cs *ConditionSet) (*ConditionSet, error)
	GetConditionSetsByIDs(ids []int64) ([]*ConditionSet, error)
	UpdateConditionSet(cs *ConditionSet) error
	ListGlobalConditionSets() ([]*ConditionSet, error)

	// Rotation operations
	CreateRotation(r *Rotation) (*Rotation, error)
	GetRotationByID(id int64) (*Rotation, error)
	ListActiveRotations() ([]*Rotation, error)
	// ApplyRotationPlan writes the plan's assignments and advances the
	// cursor in one transaction, failing with ErrVersionConflict when the
	// rotation row changed since it was read.
	ApplyRotationPlan(plan *RotationPlan, expectedVersion int64) error

	// Ledger operations
	CreateTransaction(t *Transaction) (*Transaction, error)
	GetTransactionsByUserAndGuild(userID, guildID int64) ([]*Transaction, error)
	GetBalance(userID, guildID int64) (int, error)
	GetXPTotal(userID int64) (int, error)
	HasSetbackOnDay(questID, userID int64, day string) (bool, error)

	// Scheduled event operations
	CreateScheduledEvent(e *ScheduledEvent) (*ScheduledEvent, error)
	ListEventsOnDay(day string) ([]*ScheduledEvent, error)

	// Market operations
	CreateMarketItem(item *MarketItem) (*MarketItem, error)
	GetMarketItemByID(id int64) (*MarketItem, error)
	GetMarketItemsByGuildID(guildID int64) ([]*MarketItem, error)
	DeleteMarketItem(id int64) error
	CreatePurchase(transactionID, userID, guildID, itemID int64) (*Purchase, error)
	MarkPurchaseFulfilled(purchaseID, fulfilledByUserID int64) error
	ListPurchasesByUserAndGuild(userID, guildID int64) ([]*Purchase, error)
	ListOwnedItemIDs(userID int64) ([]int64, error)

	// Trophy operations
	AwardTrophy(userID int64, trophyID string) error
	ListTrophyIDs(userID int64) ([]string, error)
}

// Policy holds platform-wide behaviour switches consulted at transition
// boundaries.
type Policy struct {
	DisableSelfApproval bool
	GlobalGracePeriod   bool
	HistoryCacheSize    int
}

// Notifier delivers out-of-band notifications (approval prompts, setback
// notices) to users that linked a chat account.
type Notifier interface {
	SendNotification(chatID int64, message string, buttons map[string]string) error
}

// lockStripe hands out one mutex per id, so per-quest and per-rotation
// critical sections serialize without a global lock.
type lockStripe struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newLockStripe() *lockStripe {
	return &lockStripe{locks: make(map[int64]*sync.Mutex)}
}

func (s *lockStripe) get(id int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[id] = l
	return l
}

// Service provides the quest lifecycle engine: availability queries, the
// claim and completion state machines, the setback sweep and the rotation
// scheduler, all on top of a Store.
type Service struct {
	store    Store
	catalog  *CatalogCache
	history  *HistoryIndex
	policy   Policy
	notifier Notifier

	questLocks    *lockStripe
	rotationLocks *lockStripe
}

// SetNotifier wires an out-of-band notifier for approval prompts. Optional;
// without it claims are still approvable through the API.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// NewService creates a new Service instance
func NewService(store Store, catalog *CatalogCache, policy Policy) (*Service, error) {
	if catalog == nil {
		catalog = NewStaticCatalogCache(DefaultCatalog())
	}
	size := policy.HistoryCacheSize
	if size <= 0 {
		size = 4096
	}
	history, err := NewHistoryIndex(store, size)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:         store,
		catalog:       catalog,
		history:       history,
		policy:        policy,
		questLocks:    newLockStripe(),
		rotationLocks: newLockStripe(),
	}, nil
}

// Catalog returns the current content catalogue
func (s *Service) Catalog() *Catalog {
	return s.catalog.Current()
}

// RefreshCatalog re-validates and swaps the content catalogue
func (s *Service) RefreshCatalog() error {
	return s.catalog.Refresh()
}

// ---- Users and guilds ----

// CreateUser creates a new user
func (s *Service) CreateUser(username string, telegramID *int64, role Role) (*User, error) {
	if username == "" {
		return nil, NewValidationError("username", "cannot be empty")
	}
	if role == "" {
		role = RoleExplorer
	}
	if !role.IsValid() {
		return nil, NewValidationError("role", fmt.Sprintf("unknown role %q", role))
	}
	return s.store.CreateUser(username, telegramID, role)
}

// GetUserByID retrieves a user by ID
func (s *Service) GetUserByID(id int64) (*User, error) {
	return s.store.GetUserByID(id)
}

// GetUserByTelegramID retrieves a user by Telegram ID
func (s *Service) GetUserByTelegramID(telegramID int64) (*User, error) {
	return s.store.GetUserByTelegramID(telegramID)
}

// GetUserByUsername retrieves a user by username
func (s *Service) GetUserByUsername(username string) (*User, error) {
	return s.store.GetUserByUsername(username)
}

// SetUserLanguage stores the user's preferred language
func (s *Service) SetUserLanguage(id int64, language string) error {
	return s.store.SetUserLanguage(id, language)
}

// SetUserRole changes a user's role
func (s *Service) SetUserRole(actorID, userID int64, role Role) error {
	actor, err := s.store.GetUserByID(actorID)
	if err != nil {
		return err
	}
	if actor.Role != RoleMaster {
		return ErrNotApprover
	}
	if !role.IsValid() {
		return NewValidationError("role", fmt.Sprintf("unknown role %q", role))
	}
	return s.store.SetUserRole(userID, role)
}

// CreateGuild creates a new guild with a generated invite code and adds the
// creator as its first member
func (s *Service) CreateGuild(name string, creatorUserID int64) (*Guild, error) {
	if name == "" {
		return nil, NewValidationError("name", "cannot be empty")
	}
	inviteCode, err := generateInviteCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate invite code: %w", err)
	}
	guild, err := s.store.CreateGuild(name, inviteCode)
	if err != nil {
		return nil, err
	}
	if err := s.store.AddUserToGuild(creatorUserID, guild.ID); err != nil {
		return nil, fmt.Errorf("failed to add creator to guild: %w", err)
	}
	return guild, nil
}

// GetGuildByID retrieves a guild by ID
func (s *Service) GetGuildByID(id int64) (*Guild, error) {
	return s.store.GetGuildByID(id)
}

// GetGuildsByUserID retrieves all guilds for a user
func (s *Service) GetGuildsByUserID(userID int64) ([]*Guild, error) {
	return s.store.GetGuildsByUserID(userID)
}

// GetUsersByGuildID retrieves all users in a guild
func (s *Service) GetUsersByGuildID(guildID int64) ([]*User, error) {
	return s.store.GetUsersByGuildID(guildID)
}

// JoinGuild adds a user to a guild using an invite code
func (s *Service) JoinGuild(userID int64, inviteCode string) (*Guild, error) {
	guild, err := s.store.GetGuildByInviteCode(inviteCode)
	if err != nil {
		return nil, err
	}
	isMember, err := s.store.IsUserInGuild(userID, guild.ID)
	if err != nil {
		return nil, err
	}
	if isMember {
		return nil, fmt.Errorf("user is already a member of this guild")
	}
	if err := s.store.AddUserToGuild(userID, guild.ID); err != nil {
		return nil, err
	}
	return guild, nil
}

// ---- Quest definitions ----

// CreateQuest validates and stores a quest definition
func (s *Service) CreateQuest(q *Quest) (*Quest, error) {
	if err := validateQuest(q); err != nil {
		return nil, err
	}
	return s.store.CreateQuest(q)
}

// UpdateQuest validates and updates a quest definition
func (s *Service) UpdateQuest(q *Quest) error {
	if err := validateQuest(q); err != nil {
		return err
	}
	return s.store.UpdateQuest(q)
}

// DeleteQuest removes a quest. Completions referencing it are orphan-marked
// by the store, never deleted.
func (s *Service) DeleteQuest(id int64) error {
	return s.store.DeleteQuest(id)
}

// GetQuestByID retrieves a quest by ID
func (s *Service) GetQuestByID(id int64) (*Quest, error) {
	return s.store.GetQuestByID(id)
}

// GetQuestsByGuildID retrieves all quests in a guild
func (s *Service) GetQuestsByGuildID(guildID int64) ([]*Quest, error) {
	return s.store.GetQuestsByGuildID(guildID)
}

func validateQuest(q *Quest) error {
	if q.Title == "" {
		return NewValidationError("title", "cannot be empty")
	}
	if !q.Kind.IsValid() {
		return NewValidationError("kind", fmt.Sprintf("unknown kind %q", q.Kind))
	}
	if q.RewardValue < 0 || q.RewardXP < 0 {
		return NewValidationError("reward", "cannot be negative")
	}
	if q.RequiresClaim && q.ClaimLimit <= 0 {
		return NewValidationError("claimLimit", "must be positive when the quest requires claiming")
	}
	if q.Kind == QuestKindJourney {
		if len(q.Checkpoints) == 0 {
			return NewValidationError("checkpoints", "journey requires at least one checkpoint")
		}
		for i := range q.Checkpoints {
			if q.Checkpoints[i].Position != i {
				return NewValidationError("checkpoints", "positions must be contiguous from 0")
			}
		}
	}
	return ValidateRecurrence(q)
}

// ---- Condition sets ----

// CreateConditionSet validates and stores a condition set
func (s *Service) CreateConditionSet(cs *ConditionSet) (*ConditionSet, error) {
	if err := cs.Validate(); err != nil {
		return nil, err
	}
	return s.store.CreateConditionSet(cs)
}

// UpdateConditionSet validates and updates a condition set
func (s *Service) UpdateConditionSet(cs *ConditionSet) error {
	if err := cs.Validate(); err != nil {
		return err
	}
	return s.store.UpdateConditionSet(cs)
}

// BuildUserContext assembles the point-in-time snapshot the condition
// engine evaluates against.
func (s *Service) BuildUserContext(userID, guildID int64, now time.Time) (*UserContext, error) {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	guilds, err := s.store.GetGuildsByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load guilds: %w", err)
	}
	guildIDs := make([]int64, 0, len(guilds))
	for _, g := range guilds {
		guildIDs = append(guildIDs, g.ID)
	}
	completed, err := s.store.ListCompletedQuestIDs(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load completed quests: %w", err)
	}
	completedSet := make(map[int64]bool, len(completed))
	for _, id := range completed {
		completedSet[id] = true
	}
	trophies, err := s.store.ListTrophyIDs(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trophies: %w", err)
	}
	trophySet := make(map[string]bool, len(trophies))
	for _, id := range trophies {
		trophySet[id] = true
	}
	items, err := s.store.ListOwnedItemIDs(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load owned items: %w", err)
	}
	itemSet := make(map[int64]bool, len(items))
	for _, id := range items {
		itemSet[id] = true
	}
	xp, err := s.store.GetXPTotal(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load xp: %w", err)
	}
	_ = guildID // context is user-scoped; guild filtering happens per quest

	return &UserContext{
		UserID:            userID,
		RankOrdinal:       s.catalog.Current().RankOrdinalForXP(xp),
		Now:               now,
		Role:              user.Role,
		GuildIDs:          guildIDs,
		OwnedItemIDs:      itemSet,
		CompletedQuestIDs: completedSet,
		TrophyIDs:         trophySet,
	}, nil
}

// conditionSetsFor loads a quest/market item's attached sets plus every
// global set.
func (s *Service) conditionSetsFor(ids []int64) ([]*ConditionSet, error) {
	sets, err := s.store.GetConditionSetsByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load condition sets: %w", err)
	}
	global, err := s.store.ListGlobalConditionSets()
	if err != nil {
		return nil, fmt.Errorf("failed to load global condition sets: %w", err)
	}
	for _, g := range global {
		already := false
		for _, cs := range sets {
			if cs.ID == g.ID {
				already = true
				break
			}
		}
		if !already {
			sets = append(sets, g)
		}
	}
	return sets, nil
}

// ---- Availability ----

// EvaluateAvailability computes the availability state of one quest for one
// user at the given instant.
func (s *Service) EvaluateAvailability(userID, questID int64, now time.Time) (Availability, error) {
	quest, err := s.store.GetQuestByID(questID)
	if err != nil {
		return Availability{}, err
	}
	ctx, err := s.BuildUserContext(userID, quest.GuildID, now)
	if err != nil {
		return Availability{}, err
	}
	return s.evaluateWithContext(quest, ctx, now)
}

// ListQuestBoard evaluates every quest in a guild for one user. The user
// context snapshot is built once for the whole page.
func (s *Service) ListQuestBoard(userID, guildID int64, now time.Time) ([]Availability, error) {
	isMember, err := s.store.IsUserInGuild(userID, guildID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotMember
	}
	quests, err := s.store.GetQuestsByGuildID(guildID)
	if err != nil {
		return nil, err
	}
	ctx, err := s.BuildUserContext(userID, guildID, now)
	if err != nil {
		return nil, err
	}
	board := make([]Availability, 0, len(quests))
	for _, q := range quests {
		av, err := s.evaluateWithContext(q, ctx, now)
		if err != nil {
			return nil, err
		}
		if av.State == StateHidden {
			continue
		}
		board = append(board, av)
	}
	return board, nil
}

func (s *Service) evaluateWithContext(q *Quest, ctx *UserContext, now time.Time) (Availability, error) {
	sets, err := s.conditionSetsFor(q.ConditionSetIDs)
	if err != nil {
		return Availability{}, err
	}
	hist, err := s.history.Lookup(q.ID, ctx.UserID, now.Format(dayFormat))
	if err != nil {
		return Availability{}, err
	}
	var claims []*Claim
	if q.RequiresClaim {
		claims, err = s.store.GetClaimsByQuestID(q.ID)
		if err != nil {
			return Availability{}, err
		}
	}
	return EvaluateQuest(q, sets, ctx, hist, claims, now)
}

// ---- Helpers ----

// generateInviteCode generates a random invite code
func generateInviteCode() (string, error) {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func newRecordID() string {
	return uuid.NewString()
}
