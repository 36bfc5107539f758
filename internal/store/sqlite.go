package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the database connection
type Store struct {
	DB *sql.DB
}

// NewStore creates a new Store and initializes the database
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers anyway, and an in-memory database exists
	// per connection, so the pool must stay at one.
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{DB: db}

	// Run migrations
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate creates all necessary tables
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		telegram_id INTEGER UNIQUE,
		username TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'explorer' CHECK(role IN ('explorer', 'gatekeeper', 'master')),
		language TEXT DEFAULT 'en',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS guilds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		invite_code TEXT UNIQUE NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS guild_members (
		user_id INTEGER,
		guild_id INTEGER,
		joined_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, guild_id),
		FOREIGN KEY(user_id) REFERENCES users(id),
		FOREIGN KEY(guild_id) REFERENCES guilds(id)
	);

	CREATE TABLE IF NOT EXISTS quests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guild_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		kind TEXT NOT NULL CHECK(kind IN ('duty', 'venture', 'journey')),
		is_active BOOLEAN DEFAULT 1,
		recurrence_rule TEXT DEFAULT '',
		start_time TEXT DEFAULT '',
		end_time TEXT DEFAULT '',
		due_time TEXT DEFAULT '',
		all_day BOOLEAN DEFAULT 1,
		start_at DATETIME,
		end_at DATETIME,
		daily_limit INTEGER DEFAULT 0,
		total_limit INTEGER DEFAULT 0,
		requires_claim BOOLEAN DEFAULT 0,
		claim_limit INTEGER DEFAULT 0,
		requires_approval BOOLEAN DEFAULT 1,
		reward_value INTEGER DEFAULT 0,
		reward_xp INTEGER DEFAULT 0,
		late_setback INTEGER DEFAULT 0,
		incomplete_setback INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(guild_id) REFERENCES guilds(id)
	);

	CREATE TABLE IF NOT EXISTS quest_checkpoints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		quest_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		title TEXT NOT NULL,
		reward_value INTEGER DEFAULT 0,
		reward_xp INTEGER DEFAULT 0,
		FOREIGN KEY(quest_id) REFERENCES quests(id)
	);

	CREATE TABLE IF NOT EXISTS quest_condition_sets (
		quest_id INTEGER NOT NULL,
		condition_set_id INTEGER NOT NULL,
		PRIMARY KEY (quest_id, condition_set_id)
	);

	CREATE TABLE IF NOT EXISTS quest_assignments (
		quest_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		assigned_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (quest_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS completions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id TEXT UNIQUE NOT NULL,
		quest_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		checkpoint_id INTEGER,
		status TEXT NOT NULL CHECK(status IN ('pending', 'approved', 'rejected')),
		note TEXT,
		day_bucket TEXT NOT NULL,
		submitted_at DATETIME NOT NULL,
		resolved_at DATETIME,
		resolved_by INTEGER,
		orphaned BOOLEAN DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS claims (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id TEXT UNIQUE NOT NULL,
		quest_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		status TEXT NOT NULL CHECK(status IN ('pending', 'approved')),
		claimed_at DATETIME NOT NULL,
		resolved_at DATETIME,
		approver_id INTEGER
	);

	CREATE TABLE IF NOT EXISTS condition_sets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		logic TEXT NOT NULL CHECK(logic IN ('all', 'any')),
		is_global BOOLEAN DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS conditions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		set_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		rank_ordinal INTEGER DEFAULT 0,
		weekdays TEXT DEFAULT '',
		start_date TEXT DEFAULT '',
		end_date TEXT DEFAULT '',
		start_time TEXT DEFAULT '',
		end_time TEXT DEFAULT '',
		quest_id INTEGER DEFAULT 0,
		trophy_id TEXT DEFAULT '',
		item_id INTEGER DEFAULT 0,
		guild_id INTEGER DEFAULT 0,
		role TEXT DEFAULT '',
		FOREIGN KEY(set_id) REFERENCES condition_sets(id)
	);

	CREATE TABLE IF NOT EXISTS rotations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guild_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		quest_ids TEXT NOT NULL,
		user_ids TEXT NOT NULL,
		active_days TEXT DEFAULT '',
		frequency TEXT NOT NULL CHECK(frequency IN ('daily', 'weekly', 'monthly')),
		quests_per_user INTEGER NOT NULL,
		user_slice_size INTEGER DEFAULT 0,
		is_active BOOLEAN DEFAULT 1,
		start_date DATETIME,
		end_date DATETIME,
		last_assignment_date TEXT DEFAULT '',
		last_user_index INTEGER DEFAULT 0,
		last_quest_start_index INTEGER DEFAULT 0,
		version INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS scheduled_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		kind TEXT NOT NULL CHECK(kind IN ('grace_period', 'bonus', 'market_closed')),
		guild_id INTEGER,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		bonus INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		guild_id INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		xp INTEGER DEFAULT 0,
		source_type TEXT CHECK(source_type IN ('reward', 'setback', 'market', 'manual')),
		source_id INTEGER,
		day_bucket TEXT DEFAULT '',
		description TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS market_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guild_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		cost INTEGER NOT NULL,
		is_one_time BOOLEAN DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS market_item_condition_sets (
		item_id INTEGER NOT NULL,
		condition_set_id INTEGER NOT NULL,
		PRIMARY KEY (item_id, condition_set_id)
	);

	CREATE TABLE IF NOT EXISTS purchases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		guild_id INTEGER NOT NULL,
		market_item_id INTEGER NOT NULL,
		fulfilled BOOLEAN DEFAULT 0,
		fulfilled_at DATETIME,
		fulfilled_by INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS trophy_awards (
		user_id INTEGER NOT NULL,
		trophy_id TEXT NOT NULL,
		awarded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, trophy_id)
	);
	`

	if _, err := s.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	// Indexes backing the per (user, quest) history reads and the setback
	// idempotence check.
	indexes := `
	CREATE INDEX IF NOT EXISTS idx_completions_quest_user
	ON completions(quest_id, user_id, status);

	CREATE INDEX IF NOT EXISTS idx_completions_quest_user_day
	ON completions(quest_id, user_id, day_bucket);

	CREATE INDEX IF NOT EXISTS idx_claims_quest
	ON claims(quest_id, status);

	CREATE INDEX IF NOT EXISTS idx_transactions_setback_day
	ON transactions(source_id, user_id, day_bucket)
	WHERE source_type = 'setback';
	`
	if _, err := s.DB.Exec(indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.DB.Close()
}

// joinIDs serializes an id list into a comma-separated column value
func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// splitIDs parses a comma-separated id column value
func splitIDs(s string) []int64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
