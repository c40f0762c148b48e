package order

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownItem  = errors.New("unknown catalog item")
	ErrItemMismatch = errors.New("purchase does not match catalog item")
	ErrItemRequired = errors.New("catalog item is required")
)

// Item is a recharge tier offered to users
type Item struct {
	ID    string          `json:"id"`
	Price decimal.Decimal `json:"price"`
	Coins int64           `json:"coins"`
	Bonus int64           `json:"bonus"`
}

// Catalog holds the purchasable recharge tiers
type Catalog struct {
	items map[string]Item
}

// NewCatalog builds a catalog from items keyed by ID
func NewCatalog(items ...Item) *Catalog {
	c := &Catalog{items: make(map[string]Item, len(items))}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

// DefaultCatalog returns the standard recharge tiers
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Item{ID: "1", Price: decimal.RequireFromString("6.00"), Coins: 60, Bonus: 0},
		Item{ID: "2", Price: decimal.RequireFromString("38.00"), Coins: 380, Bonus: 20},
		Item{ID: "3", Price: decimal.RequireFromString("88.00"), Coins: 880, Bonus: 100},
		Item{ID: "4", Price: decimal.RequireFromString("128.00"), Coins: 1280, Bonus: 220},
	)
}

// Lookup returns the item with the given id
func (c *Catalog) Lookup(id string) (Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

// Items returns all tiers ordered by id
func (c *Catalog) Items() []Item {
	out := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Match checks a purchase against its catalog tier. An empty itemID is accepted
// unless required is set.
func (c *Catalog) Match(itemID string, amount decimal.Decimal, coins, bonus int64, required bool) error {
	if itemID == "" {
		if required {
			return ErrItemRequired
		}
		return nil
	}
	it, ok := c.Lookup(itemID)
	if !ok {
		return ErrUnknownItem
	}
	if !it.Price.Equal(amount) || it.Coins != coins || it.Bonus != bonus {
		return ErrItemMismatch
	}
	return nil
}
