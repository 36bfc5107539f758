package core

import (
	"fmt"
	"log"
	"time"
)

// MarketListing is one market item together with its gate outcome for the
// viewing user.
type MarketListing struct {
	Item   *MarketItem
	Locked bool
	Gate   GateResult
}

// CreateMarketItem validates and stores a market item
func (s *Service) CreateMarketItem(item *MarketItem) (*MarketItem, error) {
	if item.Title == "" {
		return nil, NewValidationError("title", "cannot be empty")
	}
	if item.Cost <= 0 {
		return nil, NewValidationError("cost", "must be positive")
	}
	return s.store.CreateMarketItem(item)
}

// DeleteMarketItem deletes a market item
func (s *Service) DeleteMarketItem(id int64) error {
	return s.store.DeleteMarketItem(id)
}

// ListMarket returns the guild's market items with each item's gate outcome
// for the viewing user. Locked items are listed, not hidden, so the UI can
// show why they are unavailable.
func (s *Service) ListMarket(userID, guildID int64, now time.Time) ([]MarketListing, error) {
	isMember, err := s.store.IsUserInGuild(userID, guildID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotMember
	}
	items, err := s.store.GetMarketItemsByGuildID(guildID)
	if err != nil {
		return nil, err
	}
	ctx, err := s.BuildUserContext(userID, guildID, now)
	if err != nil {
		return nil, err
	}
	listings := make([]MarketListing, 0, len(items))
	for _, item := range items {
		sets, err := s.conditionSetsFor(item.ConditionSetIDs)
		if err != nil {
			return nil, err
		}
		gate := EvaluateSets(sets, ctx)
		listings = append(listings, MarketListing{Item: item, Locked: !gate.Passed, Gate: gate})
	}
	return listings, nil
}

// BuyMarketItem purchases an item with the user's reward balance. The
// purchase is rejected when a market_closed event covers today, when the
// item's condition gate fails, or when the balance is insufficient.
func (s *Service) BuyMarketItem(userID, itemID int64) (*Transaction, error) {
	item, err := s.store.GetMarketItemByID(itemID)
	if err != nil {
		return nil, err
	}
	isMember, err := s.store.IsUserInGuild(userID, item.GuildID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotMember
	}

	now := time.Now()
	day := now.Format(dayFormat)
	events, err := s.store.ListEventsOnDay(day)
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduled events: %w", err)
	}
	for _, e := range events {
		if e.Kind == EventMarketClosed && e.Covers(day, item.GuildID) {
			return nil, ErrMarketClosed
		}
	}

	ctx, err := s.BuildUserContext(userID, item.GuildID, now)
	if err != nil {
		return nil, err
	}
	sets, err := s.conditionSetsFor(item.ConditionSetIDs)
	if err != nil {
		return nil, err
	}
	if gate := EvaluateSets(sets, ctx); !gate.Passed {
		return nil, ErrItemLocked
	}

	balance, err := s.store.GetBalance(userID, item.GuildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance < item.Cost {
		return nil, ErrInsufficientFunds
	}

	marketItemID := item.ID
	transaction, err := s.store.CreateTransaction(&Transaction{
		UserID:      userID,
		GuildID:     item.GuildID,
		Amount:      -item.Cost,
		SourceType:  SourceTypeMarket,
		SourceID:    &marketItemID,
		DayBucket:   day,
		Description: item.Title,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	if _, err := s.store.CreatePurchase(transaction.ID, userID, item.GuildID, item.ID); err != nil {
		return nil, fmt.Errorf("failed to create purchase record: %w", err)
	}

	if item.IsOneTime {
		if err := s.store.DeleteMarketItem(item.ID); err != nil {
			// The purchase succeeded; deletion is secondary.
			log.Printf("Warning: failed to delete one-time item %d: %v", item.ID, err)
		}
	}
	return transaction, nil
}

// MarkPurchaseFulfilled marks a purchase as fulfilled
func (s *Service) MarkPurchaseFulfilled(purchaseID, fulfilledByUserID int64) error {
	return s.store.MarkPurchaseFulfilled(purchaseID, fulfilledByUserID)
}

// GetPurchaseHistory retrieves purchase history for a user in a guild
func (s *Service) GetPurchaseHistory(userID, guildID int64) ([]*Purchase, error) {
	return s.store.ListPurchasesByUserAndGuild(userID, guildID)
}

// GetBalance retrieves the current balance for a user in a guild
func (s *Service) GetBalance(userID, guildID int64) (int, error) {
	return s.store.GetBalance(userID, guildID)
}

// GetTransactionHistory retrieves the ledger for a user in a guild
func (s *Service) GetTransactionHistory(userID, guildID int64) ([]*Transaction, error) {
	return s.store.GetTransactionsByUserAndGuild(userID, guildID)
}

// CreateScheduledEvent validates and stores a time-bounded override event
func (s *Service) CreateScheduledEvent(e *ScheduledEvent) (*ScheduledEvent, error) {
	switch e.Kind {
	case EventGracePeriod, EventBonus, EventMarketClosed:
	default:
		return nil, NewValidationError("kind", fmt.Sprintf("unknown event kind %q", e.Kind))
	}
	if _, err := time.Parse(dayFormat, e.StartDate); err != nil {
		return nil, NewValidationError("startDate", "want YYYY-MM-DD")
	}
	if _, err := time.Parse(dayFormat, e.EndDate); err != nil {
		return nil, NewValidationError("endDate", "want YYYY-MM-DD")
	}
	if e.EndDate < e.StartDate {
		return nil, NewValidationError("endDate", "must not precede startDate")
	}
	return s.store.CreateScheduledEvent(e)
}

// AwardTrophy grants a trophy to a user
func (s *Service) AwardTrophy(actorID, userID int64, trophyID string) error {
	actor, err := s.store.GetUserByID(actorID)
	if err != nil {
		return err
	}
	if !actor.Role.CanApprove() {
		return ErrNotApprover
	}
	if trophyID == "" {
		return NewValidationError("trophyId", "cannot be empty")
	}
	return s.store.AwardTrophy(userID, trophyID)
}
