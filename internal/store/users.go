package store

import (
	"database/sql"
	"fmt"

	"github.com/mckayc/task-donegeon-sub005/internal/core"
)

// CreateUser creates a new user
func (s *Store) CreateUser(username string, telegramID *int64, role core.Role) (*core.User, error) {
	var tgID sql.NullInt64
	if telegramID != nil {
		tgID = sql.NullInt64{Int64: *telegramID, Valid: true}
	}

	result, err := s.DB.Exec(
		"INSERT INTO users (telegram_id, username, role) VALUES (?, ?, ?)",
		tgID, username, string(role),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return s.GetUserByID(id)
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(id int64) (*core.User, error) {
	return s.scanUser(s.DB.QueryRow(
		"SELECT id, telegram_id, username, role, language, created_at FROM users WHERE id = ?", id))
}

// GetUserByTelegramID retrieves a user by Telegram ID
func (s *Store) GetUserByTelegramID(telegramID int64) (*core.User, error) {
	return s.scanUser(s.DB.QueryRow(
		"SELECT id, telegram_id, username, role, language, created_at FROM users WHERE telegram_id = ?", telegramID))
}

// GetUserByUsername retrieves a user by username
func (s *Store) GetUserByUsername(username string) (*core.User, error) {
	return s.scanUser(s.DB.QueryRow(
		"SELECT id, telegram_id, username, role, language, created_at FROM users WHERE username = ?", username))
}

func (s *Store) scanUser(row *sql.Row) (*core.User, error) {
	user := &core.User{}
	var tgID sql.NullInt64
	var language sql.NullString
	err := row.Scan(&user.ID, &tgID, &user.Username, &user.Role, &language, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if tgID.Valid {
		user.TelegramID = &tgID.Int64
	}
	if language.Valid {
		user.Language = language.String
	}
	return user, nil
}

// GetUsersByGuildID retrieves all users in a guild
func (s *Store) GetUsersByGuildID(guildID int64) ([]*core.User, error) {
	rows, err := s.DB.Query(`
		SELECT u.id, u.telegram_id, u.username, u.role, u.language, u.created_at
		FROM users u
		JOIN guild_members gm ON gm.user_id = u.id
		WHERE gm.guild_id = ?
		ORDER BY u.id`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to query guild users: %w", err)
	}
	defer rows.Close()

	var users []*core.User
	for rows.Next() {
		user := &core.User{}
		var tgID sql.NullInt64
		var language sql.NullString
		if err := rows.Scan(&user.ID, &tgID, &user.Username, &user.Role, &language, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if tgID.Valid {
			user.TelegramID = &tgID.Int64
		}
		if language.Valid {
			user.Language = language.String
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SetUserRole updates a user's role
func (s *Store) SetUserRole(id int64, role core.Role) error {
	result, err := s.DB.Exec("UPDATE users SET role = ? WHERE id = ?", string(role), id)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// SetUserLanguage updates a user's preferred language
func (s *Store) SetUserLanguage(id int64, language string) error {
	result, err := s.DB.Exec("UPDATE users SET language = ? WHERE id = ?", language, id)
	if err != nil {
		return fmt.Errorf("failed to update user language: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// CreateGuild creates a new guild
func (s *Store) CreateGuild(name, inviteCode string) (*core.Guild, error) {
	result, err := s.DB.Exec(
		"INSERT INTO guilds (name, invite_code) VALUES (?, ?)", name, inviteCode)
	if err != nil {
		return nil, fmt.Errorf("failed to create guild: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return s.GetGuildByID(id)
}

// GetGuildByID retrieves a guild by ID
func (s *Store) GetGuildByID(id int64) (*core.Guild, error) {
	return s.scanGuild(s.DB.QueryRow(
		"SELECT id, name, invite_code, created_at FROM guilds WHERE id = ?", id))
}

// GetGuildByInviteCode retrieves a guild by its invite code
func (s *Store) GetGuildByInviteCode(inviteCode string) (*core.Guild, error) {
	return s.scanGuild(s.DB.QueryRow(
		"SELECT id, name, invite_code, created_at FROM guilds WHERE invite_code = ?", inviteCode))
}

func (s *Store) scanGuild(row *sql.Row) (*core.Guild, error) {
	guild := &core.Guild{}
	err := row.Scan(&guild.ID, &guild.Name, &guild.InviteCode, &guild.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan guild: %w", err)
	}
	return guild, nil
}

// GetGuildsByUserID retrieves all guilds a user belongs to
func (s *Store) GetGuildsByUserID(userID int64) ([]*core.Guild, error) {
	rows, err := s.DB.Query(`
		SELECT g.id, g.name, g.invite_code, g.created_at
		FROM guilds g
		JOIN guild_members gm ON gm.guild_id = g.id
		WHERE gm.user_id = ?
		ORDER BY g.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user guilds: %w", err)
	}
	defer rows.Close()

	var guilds []*core.Guild
	for rows.Next() {
		guild := &core.Guild{}
		if err := rows.Scan(&guild.ID, &guild.Name, &guild.InviteCode, &guild.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan guild: %w", err)
		}
		guilds = append(guilds, guild)
	}
	return guilds, rows.Err()
}

// AddUserToGuild adds a user to a guild
func (s *Store) AddUserToGuild(userID, guildID int64) error {
	_, err := s.DB.Exec(
		"INSERT OR IGNORE INTO guild_members (user_id, guild_id) VALUES (?, ?)", userID, guildID)
	if err != nil {
		return fmt.Errorf("failed to add guild member: %w", err)
	}
	return nil
}

// IsUserInGuild checks whether a user is a member of a guild
func (s *Store) IsUserInGuild(userID, guildID int64) (bool, error) {
	var count int
	err := s.DB.QueryRow(
		"SELECT COUNT(*) FROM guild_members WHERE user_id = ? AND guild_id = ?",
		userID, guildID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check guild membership: %w", err)
	}
	return count > 0, nil
}
