package store

import (
	"database/sql"
	"fmt"

	"github.com/mckayc/task-donegeon-sub005/internal/core"
)

// CreateMarketItem stores a market item with its condition set links
func (s *Store) CreateMarketItem(item *core.MarketItem) (*core.MarketItem, error) {
	tx, err := s.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO market_items (guild_id, title, description, cost, is_one_time)
		VALUES (?, ?, ?, ?, ?)`,
		item.GuildID, item.Title, item.Description, item.Cost, item.IsOneTime)
	if err != nil {
		return nil, fmt.Errorf("failed to create market item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	for _, setID := range item.ConditionSetIDs {
		if _, err := tx.Exec(
			"INSERT INTO market_item_condition_sets (item_id, condition_set_id) VALUES (?, ?)",
			id, setID); err != nil {
			return nil, fmt.Errorf("failed to link condition set: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit market item: %w", err)
	}
	return s.GetMarketItemByID(id)
}

// GetMarketItemByID retrieves a market item by ID
func (s *Store) GetMarketItemByID(id int64) (*core.MarketItem, error) {
	item := &core.MarketItem{}
	var description sql.NullString
	err := s.DB.QueryRow(`
		SELECT id, guild_id, title, description, cost, is_one_time, created_at
		FROM market_items WHERE id = ?`, id).
		Scan(&item.ID, &item.GuildID, &item.Title, &description, &item.Cost, &item.IsOneTime, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan market item: %w", err)
	}
	if description.Valid {
		item.Description = description.String
	}
	item.ConditionSetIDs, err = s.queryIDs(
		"SELECT condition_set_id FROM market_item_condition_sets WHERE item_id = ? ORDER BY condition_set_id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query condition set links: %w", err)
	}
	return item, nil
}

// GetMarketItemsByGuildID retrieves all market items in a guild
func (s *Store) GetMarketItemsByGuildID(guildID int64) ([]*core.MarketItem, error) {
	ids, err := s.queryIDs("SELECT id FROM market_items WHERE guild_id = ? ORDER BY id", guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to query market items: %w", err)
	}
	items := make([]*core.MarketItem, 0, len(ids))
	for _, id := range ids {
		item, err := s.GetMarketItemByID(id)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// DeleteMarketItem removes a market item and its links. Purchase rows stay.
func (s *Store) DeleteMarketItem(id int64) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM market_item_condition_sets WHERE item_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear condition set links: %w", err)
	}
	result, err := tx.Exec("DELETE FROM market_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete market item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return tx.Commit()
}

// CreatePurchase records a purchase backed by an already written transaction
func (s *Store) CreatePurchase(transactionID, userID, guildID, itemID int64) (*core.Purchase, error) {
	result, err := s.DB.Exec(`
		INSERT INTO purchases (transaction_id, user_id, guild_id, market_item_id)
		VALUES (?, ?, ?, ?)`,
		transactionID, userID, guildID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to create purchase: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	row := s.DB.QueryRow(`
		SELECT id, transaction_id, user_id, guild_id, market_item_id,
			fulfilled, fulfilled_at, fulfilled_by, created_at
		FROM purchases WHERE id = ?`, id)
	return scanPurchase(row)
}

func scanPurchase(row rowScanner) (*core.Purchase, error) {
	p := &core.Purchase{}
	var fulfilledAt sql.NullTime
	var fulfilledBy sql.NullInt64
	err := row.Scan(&p.ID, &p.TransactionID, &p.UserID, &p.GuildID, &p.MarketItemID,
		&p.Fulfilled, &fulfilledAt, &fulfilledBy, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan purchase: %w", err)
	}
	if fulfilledAt.Valid {
		p.FulfilledAt = &fulfilledAt.Time
	}
	if fulfilledBy.Valid {
		p.FulfilledBy = &fulfilledBy.Int64
	}
	return p, nil
}

// MarkPurchaseFulfilled marks a purchase as fulfilled
func (s *Store) MarkPurchaseFulfilled(purchaseID, fulfilledByUserID int64) error {
	result, err := s.DB.Exec(`
		UPDATE purchases SET fulfilled = 1, fulfilled_at = CURRENT_TIMESTAMP, fulfilled_by = ?
		WHERE id = ? AND fulfilled = 0`,
		fulfilledByUserID, purchaseID)
	if err != nil {
		return fmt.Errorf("failed to fulfill purchase: %w", err)
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

// ListPurchasesByUserAndGuild retrieves a user's purchases in a guild, newest first
func (s *Store) ListPurchasesByUserAndGuild(userID, guildID int64) ([]*core.Purchase, error) {
	rows, err := s.DB.Query(`
		SELECT id, transaction_id, user_id, guild_id, market_item_id,
			fulfilled, fulfilled_at, fulfilled_by, created_at
		FROM purchases WHERE user_id = ? AND guild_id = ?
		ORDER BY id DESC`, userID, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var purchases []*core.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

// ListOwnedItemIDs returns the ids of market items the user has ever purchased
func (s *Store) ListOwnedItemIDs(userID int64) ([]int64, error) {
	ids, err := s.queryIDs(
		"SELECT DISTINCT market_item_id FROM purchases WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query owned items: %w", err)
	}
	return ids, nil
}

// AwardTrophy grants a trophy to a user. Awarding twice is a no-op.
func (s *Store) AwardTrophy(userID int64, trophyID string) error {
	_, err := s.DB.Exec(
		"INSERT OR IGNORE INTO trophy_awards (user_id, trophy_id) VALUES (?, ?)",
		userID, trophyID)
	if err != nil {
		return fmt.Errorf("failed to award trophy: %w", err)
	}
	return nil
}

// ListTrophyIDs returns the trophy ids awarded to a user
func (s *Store) ListTrophyIDs(userID int64) ([]string, error) {
	rows, err := s.DB.Query(
		"SELECT trophy_id FROM trophy_awards WHERE user_id = ? ORDER BY trophy_id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trophies: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan trophy: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
