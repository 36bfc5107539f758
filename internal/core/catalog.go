package core

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// RewardType is a content-defined reward denomination (currency, XP pool,
// consumable). Loaded from the catalogue file, never from the database.
type RewardType struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	IsCurrency bool   `yaml:"isCurrency"`
}

// Rank is one step of the rank ladder. Ordinal is the index in the ladder;
// a user's rank is the highest rank whose MinXP they reached.
type Rank struct {
	Name  string `yaml:"name"`
	MinXP int    `yaml:"minXp"`
}

// Catalog is the read-only content catalogue: reward types and the rank
// ladder. Validated at load time so evaluation never sees bad content.
type Catalog struct {
	RewardTypes []RewardType `yaml:"rewardTypes"`
	Ranks       []Rank       `yaml:"ranks"`
}

// Validate checks catalogue invariants at load time
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.RewardTypes))
	for i, rt := range c.RewardTypes {
		if rt.ID == "" {
			return NewValidationError("rewardTypes", fmt.Sprintf("entry %d: missing id", i))
		}
		if seen[rt.ID] {
			return NewValidationError("rewardTypes", fmt.Sprintf("duplicate id %q", rt.ID))
		}
		seen[rt.ID] = true
	}
	if len(c.Ranks) == 0 {
		return NewValidationError("ranks", "ladder cannot be empty")
	}
	if c.Ranks[0].MinXP != 0 {
		return NewValidationError("ranks", "first rank must start at 0 XP")
	}
	for i := 1; i < len(c.Ranks); i++ {
		if c.Ranks[i].MinXP <= c.Ranks[i-1].MinXP {
			return NewValidationError("ranks", fmt.Sprintf("rank %d: thresholds must be strictly ascending", i))
		}
	}
	return nil
}

// RankOrdinalForXP maps a total XP to a rank ordinal on the ladder
func (c *Catalog) RankOrdinalForXP(xp int) int {
	ordinal := 0
	for i, r := range c.Ranks {
		if xp >= r.MinXP {
			ordinal = i
		}
	}
	return ordinal
}

// LoadCatalog reads and validates a catalogue YAML file
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	cat := &Catalog{}
	if err := yaml.Unmarshal(data, cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// CatalogCache holds the current catalogue and swaps it on manual refresh.
// A refresh that fails validation leaves the previous catalogue in place.
type CatalogCache struct {
	mu   sync.RWMutex
	path string
	cat  *Catalog
}

// NewCatalogCache loads the catalogue from path and caches it
func NewCatalogCache(path string) (*CatalogCache, error) {
	cat, err := LoadCatalog(path)
	if err != nil {
		return nil, err
	}
	return &CatalogCache{path: path, cat: cat}, nil
}

// DefaultCatalog returns a built-in catalogue for deployments without a
// catalogue file: one currency and a short ladder.
func DefaultCatalog() *Catalog {
	return &Catalog{
		RewardTypes: []RewardType{{ID: "gold", Name: "Gold", IsCurrency: true}},
		Ranks: []Rank{
			{Name: "Novice", MinXP: 0},
			{Name: "Adept", MinXP: 100},
			{Name: "Hero", MinXP: 500},
			{Name: "Legend", MinXP: 2000},
		},
	}
}

// NewStaticCatalogCache wraps an already-built catalogue; Refresh is a no-op
func NewStaticCatalogCache(cat *Catalog) *CatalogCache {
	return &CatalogCache{cat: cat}
}

// Current returns the cached catalogue
func (cc *CatalogCache) Current() *Catalog {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.cat
}

// Refresh re-reads and re-validates the catalogue file and swaps the cache
func (cc *CatalogCache) Refresh() error {
	if cc.path == "" {
		return nil
	}
	cat, err := LoadCatalog(cc.path)
	if err != nil {
		return err
	}
	cc.mu.Lock()
	cc.cat = cat
	cc.mu.Unlock()
	return nil
}
