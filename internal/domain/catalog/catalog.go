// Package catalog holds the immutable item catalog and its load boundary.
package catalog

import (
	"fmt"

	"github.com/okian/mangacatch/internal/domain/model"
)

// Catalog is an ordered, read-only set of item types.
// Order is significant: it breaks ties when picking a favorite.
type Catalog struct {
	items []model.ItemType
	index map[string]int
}

// New validates items and builds a Catalog. Items are copied.
func New(items []model.ItemType) (*Catalog, error) {
	if len(items) == 0 {
		return nil, ErrCatalogEmpty
	}
	c := &Catalog{
		items: make([]model.ItemType, len(items)),
		index: make(map[string]int, len(items)),
	}
	for i, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("%w: item %d has no id", ErrInvalidItem, i)
		}
		if it.ScoreValue < 0 || it.RarityWeight < 0 || it.RarityPoint < 0 {
			return nil, fmt.Errorf("%w: %s has a negative value", ErrInvalidItem, it.ID)
		}
		if _, dup := c.index[it.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateItem, it.ID)
		}
		c.items[i] = it
		c.index[it.ID] = i
	}
	return c, nil
}

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.items) }

// Items returns a copy of the items in catalog order.
func (c *Catalog) Items() []model.ItemType {
	out := make([]model.ItemType, len(c.items))
	copy(out, c.items)
	return out
}

// At returns the item at position i in catalog order.
func (c *Catalog) At(i int) model.ItemType { return c.items[i] }

// Lookup finds an item by id.
func (c *Catalog) Lookup(id string) (model.ItemType, bool) {
	i, ok := c.index[id]
	if !ok {
		return model.ItemType{}, false
	}
	return c.items[i], true
}

// Position returns the catalog order of id, or -1.
func (c *Catalog) Position(id string) int {
	if i, ok := c.index[id]; ok {
		return i
	}
	return -1
}

// rarity tier -> rarity point
var tierPoints = map[int]int{1: 1, 2: 3, 3: 6}

// Default returns the built-in catalog used when no file is configured.
func Default() *Catalog {
	raw := []struct {
		id     string
		name   string
		score  int
		tier   int
		weight int
	}{
		{"chara_001", "Yume", 100, 1, 10},
		{"chara_002", "Po", 150, 2, 8},
		{"chara_003", "Alexandra", 120, 2, 9},
		{"chara_004", "Byakuren", 100, 1, 10},
		{"chara_005", "Ryo & Kaori", 300, 3, 5},
		{"chara_006", "Shogo", 150, 2, 8},
		{"chara_007", "Ryota", 100, 1, 10},
		{"chara_008", "Gataro", 100, 1, 10},
		{"chara_009", "Yuichi & Kenji", 200, 2, 7},
		{"chara_010", "Ruri", 100, 1, 10},
	}
	items := make([]model.ItemType, 0, len(raw))
	for _, r := range raw {
		items = append(items, model.ItemType{
			ID:             r.id,
			DisplayName:    r.name,
			ScoreValue:     r.score,
			RarityWeight:   r.weight,
			RarityPoint:    tierPoints[r.tier],
			AssetReference: "characters/" + r.id + ".png",
		})
	}
	c, err := New(items)
	if err != nil {
		panic(err)
	}
	return c
}
