package core

import "time"

// Role represents a user's role in the platform
type Role string

const (
	RoleExplorer   Role = "explorer"   // regular member completing quests
	RoleGatekeeper Role = "gatekeeper" // may approve claims and completions
	RoleMaster     Role = "master"     // full administrative access
)

// IsValid returns true if the role is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleExplorer, RoleGatekeeper, RoleMaster:
		return true
	default:
		return false
	}
}

// CanApprove reports whether the role may approve claims and completions
func (r Role) CanApprove() bool {
	return r == RoleGatekeeper || r == RoleMaster
}

// User represents a user in the system
type User struct {
	ID         int64
	TelegramID *int64 // Nullable
	Username   string
	Role       Role
	Language   string
	CreatedAt  time.Time
}

// Guild represents a household or group sharing quests and a market
type Guild struct {
	ID         int64
	Name       string
	InviteCode string
	CreatedAt  time.Time
}

// GuildMember represents a user's membership in a guild
type GuildMember struct {
	UserID   int64
	GuildID  int64
	JoinedAt time.Time
}

// QuestKind represents the lifecycle shape of a quest
type QuestKind string

const (
	QuestKindDuty    QuestKind = "duty"    // recurring, driven by a recurrence rule
	QuestKindVenture QuestKind = "venture" // one-off with absolute start/end instants
	QuestKindJourney QuestKind = "journey" // ordered checkpoints, each rewarded
)

// IsValid returns true if the quest kind is a known kind
func (k QuestKind) IsValid() bool {
	switch k {
	case QuestKindDuty, QuestKindVenture, QuestKindJourney:
		return true
	default:
		return false
	}
}

// Quest represents a quest definition in a guild
type Quest struct {
	ID          int64
	GuildID     int64
	Title       string
	Description string
	Kind        QuestKind
	IsActive    bool

	// Recurrence fields. Duties use RecurrenceRule plus the optional
	// time-of-day window; ventures and journeys use StartAt/EndAt.
	RecurrenceRule string // "daily", "weekly:mon,wed", "monthly:1,15"; empty = never recurs
	StartTime      string // "HH:MM" local, empty when AllDay
	EndTime        string // "HH:MM" local, empty when AllDay
	DueTime        string // optional "HH:MM" inside the window; past it the quest is late
	AllDay         bool
	StartAt        *time.Time
	EndAt          *time.Time

	// Completion caps, 0 = unlimited.
	DailyLimit int
	TotalLimit int

	RequiresClaim    bool
	ClaimLimit       int
	RequiresApproval bool

	RewardValue       int
	RewardXP          int
	LateSetback       int // deducted when the deadline passed but the day is not over
	IncompleteSetback int // deducted when the occurrence closed without completion

	ConditionSetIDs []int64
	AssignedUserIDs []int64      // empty = every guild member
	Checkpoints     []Checkpoint // journey only, ordered by Position

	CreatedAt time.Time
}

// AssignedTo reports whether the quest is visible to the given user.
// A quest with no explicit assignments is open to the whole guild.
func (q *Quest) AssignedTo(userID int64) bool {
	if len(q.AssignedUserIDs) == 0 {
		return true
	}
	for _, id := range q.AssignedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CheckpointByID returns the checkpoint with the given id, or nil
func (q *Quest) CheckpointByID(id int64) *Checkpoint {
	for i := range q.Checkpoints {
		if q.Checkpoints[i].ID == id {
			return &q.Checkpoints[i]
		}
	}
	return nil
}

// Checkpoint represents one stage of a journey quest
type Checkpoint struct {
	ID          int64
	QuestID     int64
	Position    int // 0-based order within the journey
	Title       string
	RewardValue int
	RewardXP    int
}

// CompletionStatus represents the state of a submitted completion
type CompletionStatus string

const (
	CompletionPending  CompletionStatus = "pending"
	CompletionApproved CompletionStatus = "approved"
	CompletionRejected CompletionStatus = "rejected"
)

// IsValid returns true if the status is a known completion status
func (s CompletionStatus) IsValid() bool {
	switch s {
	case CompletionPending, CompletionApproved, CompletionRejected:
		return true
	default:
		return false
	}
}

// QuestCompletion represents one submitted attempt at a quest or checkpoint
type QuestCompletion struct {
	ID           int64
	RecordID     string // uuid, stable across exports
	QuestID      int64
	UserID       int64
	CheckpointID *int64 // set for journey submissions
	Status       CompletionStatus
	Note         string
	DayBucket    string // local day "2006-01-02" the submission counts against
	SubmittedAt  time.Time
	ResolvedAt   *time.Time
	ResolvedBy   *int64
	Orphaned     bool // quest was deleted after this completion
}

// ClaimStatus represents the state of a claim on a limited-slot quest
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
)

// Claim represents a user's reservation on a quest that requires claiming
type Claim struct {
	ID         int64
	RecordID   string // uuid
	QuestID    int64
	UserID     int64
	Status     ClaimStatus
	ClaimedAt  time.Time
	ResolvedAt *time.Time
	ApproverID *int64
}

// RotationFrequency represents how often a rotation assigns a new slice
type RotationFrequency string

const (
	RotationDaily   RotationFrequency = "daily"
	RotationWeekly  RotationFrequency = "weekly"
	RotationMonthly RotationFrequency = "monthly"
)

// IsValid returns true if the frequency is a known frequency
func (f RotationFrequency) IsValid() bool {
	switch f {
	case RotationDaily, RotationWeekly, RotationMonthly:
		return true
	default:
		return false
	}
}

// Rotation represents a persisted round-robin assignment policy
type Rotation struct {
	ID            int64
	GuildID       int64
	Name          string
	QuestIDs      []int64
	UserIDs       []int64
	ActiveDays    []time.Weekday // empty = every day
	Frequency     RotationFrequency
	QuestsPerUser int
	UserSliceSize int // 0 = assign the quest slice to every user in the pool
	IsActive      bool
	StartDate     *time.Time
	EndDate       *time.Time

	// Scheduler cursor. The only mutable scheduler state; persisted
	// atomically with the assignments it produced, guarded by Version.
	LastAssignmentDate  string // local day "2006-01-02", empty = never run
	LastUserIndex       int
	LastQuestStartIndex int
	Version             int64
}

// RunsOn reports whether the rotation is allowed to assign on the given day
func (r *Rotation) RunsOn(day time.Time) bool {
	if r.StartDate != nil && day.Before(*r.StartDate) {
		return false
	}
	if r.EndDate != nil && day.After(*r.EndDate) {
		return false
	}
	if len(r.ActiveDays) == 0 {
		return true
	}
	wd := day.Weekday()
	for _, d := range r.ActiveDays {
		if d == wd {
			return true
		}
	}
	return false
}

// EventKind represents the kind of a scheduled override event
type EventKind string

const (
	EventGracePeriod  EventKind = "grace_period"  // suppresses setbacks
	EventBonus        EventKind = "bonus"         // reward multiplier window
	EventMarketClosed EventKind = "market_closed" // blocks market purchases
)

// ScheduledEvent represents a time-bounded override consulted as read-only context
type ScheduledEvent struct {
	ID        int64
	Name      string
	Kind      EventKind
	GuildID   *int64 // nil = platform-wide
	StartDate string // inclusive local day "2006-01-02"
	EndDate   string // inclusive
	Bonus     int    // percent, bonus events only
}

// Covers reports whether the event is active on the given day for the guild
func (e *ScheduledEvent) Covers(day string, guildID int64) bool {
	if e.GuildID != nil && *e.GuildID != guildID {
		return false
	}
	return e.StartDate <= day && day <= e.EndDate
}

// MarketItem represents an item purchasable with reward currency
type MarketItem struct {
	ID              int64
	GuildID         int64
	Title           string
	Description     string
	Cost            int
	IsOneTime       bool
	ConditionSetIDs []int64
	CreatedAt       time.Time
}

// SourceType represents the source of a ledger transaction
type SourceType string

const (
	SourceTypeReward  SourceType = "reward"  // quest or checkpoint completion payout
	SourceTypeSetback SourceType = "setback" // late/incomplete deduction
	SourceTypeMarket  SourceType = "market"  // market purchase
	SourceTypeManual  SourceType = "manual"  // administrative adjustment
)

// Transaction represents a currency/XP ledger entry
type Transaction struct {
	ID          int64
	UserID      int64
	GuildID     int64
	Amount      int // positive for earnings, negative for spending/setbacks
	XP          int // experience is never negative
	SourceType  SourceType
	SourceID    *int64 // quest, market item, or nil
	DayBucket   string // local day the entry counts against
	Description string
	CreatedAt   time.Time
}

// Purchase represents a market purchase with fulfillment tracking
type Purchase struct {
	ID            int64
	TransactionID int64
	UserID        int64
	GuildID       int64
	MarketItemID  int64
	Fulfilled     bool
	FulfilledAt   *time.Time
	FulfilledBy   *int64
	CreatedAt     time.Time
}

// TrophyAward represents a trophy granted to a user
type TrophyAward struct {
	UserID    int64
	TrophyID  string
	AwardedAt time.Time
}
