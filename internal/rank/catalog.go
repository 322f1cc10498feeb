// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package rank

import (
	"sort"
	"time"
)

// Catalog is an immutable snapshot of restaurants, menus and user profiles.
// Snapshots are replaced as a whole; nothing mutates a published snapshot.
type Catalog struct {
	// Version increases with every published snapshot.
	Version int64

	// LoadedAt is when the snapshot was built.
	LoadedAt time.Time

	restaurants map[string]*Restaurant
	items       map[string]*Item
	users       map[string]*UserProfile
	menus       map[string][]*Item
	subcats     map[string]Category
}

// NewCatalog indexes the given records into a snapshot.
func NewCatalog(version int64, restaurants []*Restaurant, items []*Item, users []*UserProfile) *Catalog {
	c := &Catalog{
		Version:     version,
		LoadedAt:    time.Now(),
		restaurants: make(map[string]*Restaurant, len(restaurants)),
		items:       make(map[string]*Item, len(items)),
		users:       make(map[string]*UserProfile, len(users)),
		menus:       make(map[string][]*Item),
		subcats:     make(map[string]Category),
	}

	for _, r := range restaurants {
		c.restaurants[r.ID] = r
	}
	for _, u := range users {
		c.users[u.ID] = u
	}
	for _, it := range items {
		c.items[it.ID] = it
		c.menus[it.RestaurantID] = append(c.menus[it.RestaurantID], it)
		if _, ok := c.subcats[it.Subcategory]; !ok && it.Subcategory != "" && it.Category != CategoryCombo {
			c.subcats[it.Subcategory] = it.Category
		}
	}
	for id := range c.menus {
		menu := c.menus[id]
		sort.Slice(menu, func(i, j int) bool { return menu[i].ID < menu[j].ID })
	}

	return c
}

// WithEmbeddings returns a new snapshot whose items carry the given embeddings.
// Items absent from the table keep their current embedding.
func (c *Catalog) WithEmbeddings(version int64, table map[string][]float32) *Catalog {
	restaurants := make([]*Restaurant, 0, len(c.restaurants))
	for _, r := range c.restaurants {
		restaurants = append(restaurants, r)
	}
	users := make([]*UserProfile, 0, len(c.users))
	for _, u := range c.users {
		users = append(users, u)
	}
	items := make([]*Item, 0, len(c.items))
	for _, it := range c.items {
		cp := *it
		if vec, ok := table[it.ID]; ok {
			cp.Embedding = vec
		}
		items = append(items, &cp)
	}
	return NewCatalog(version, restaurants, items, users)
}

// Item returns the item with the given id.
func (c *Catalog) Item(id string) (*Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

// Restaurant returns the restaurant with the given id.
func (c *Catalog) Restaurant(id string) (*Restaurant, bool) {
	r, ok := c.restaurants[id]
	return r, ok
}

// User returns the profile with the given id.
func (c *Catalog) User(id string) (*UserProfile, bool) {
	u, ok := c.users[id]
	return u, ok
}

// Menu returns the restaurant's items sorted by id. The slice must not be modified.
func (c *Catalog) Menu(restaurantID string) []*Item {
	return c.menus[restaurantID]
}

// CategoryOf maps a subcategory to its category. Subcategories named after a
// category map to that category.
func (c *Catalog) CategoryOf(subcategory string) (Category, bool) {
	if cat, ok := c.subcats[subcategory]; ok {
		return cat, true
	}
	switch cat := Category(subcategory); cat {
	case CategoryMain, CategoryBread, CategoryRice, CategorySide, CategoryBeverage,
		CategoryDessert, CategoryAppetizer, CategorySoup:
		return cat, true
	}
	return "", false
}

// Stats returns the number of restaurants, items and users.
func (c *Catalog) Stats() (restaurants, items, users int) {
	return len(c.restaurants), len(c.items), len(c.users)
}

// Restaurants returns all restaurants sorted by id.
func (c *Catalog) Restaurants() []*Restaurant {
	out := make([]*Restaurant, 0, len(c.restaurants))
	for _, r := range c.restaurants {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Users returns all user profiles sorted by id.
func (c *Catalog) Users() []*UserProfile {
	out := make([]*UserProfile, 0, len(c.users))
	for _, u := range c.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Items returns all items sorted by id.
func (c *Catalog) Items() []*Item {
	out := make([]*Item, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
