// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/rank"
)

type stubLoader struct {
	data *Data
	err  error
}

func (l *stubLoader) Load(context.Context) (*Data, error) {
	return l.data, l.err
}

func sampleData() *Data {
	return &Data{
		Restaurants: []*rank.Restaurant{{ID: "R1", PrimaryCuisine: "north_indian", FreeDeliveryMin: 199}},
		Items: []*rank.Item{
			{ID: "I1", RestaurantID: "R1", Name: "Dal", Category: rank.CategoryMain, Price: 199, Available: true},
			{ID: "I2", RestaurantID: "R1", Name: "Naan", Category: rank.CategoryBread, Price: 49, Available: true},
		},
		Users: []*rank.UserProfile{{ID: "U1", Segment: "Budget"}},
	}
}

func TestStore_RefreshPublishes(t *testing.T) {
	t.Parallel()

	loader := &stubLoader{data: sampleData()}
	store := NewStore(loader, zerolog.Nop())
	if store.Current() != nil {
		t.Fatal("Current() before refresh is not nil")
	}

	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	first := store.Current()
	if first == nil || first.Version != 1 {
		t.Fatalf("Current() = %+v, want version 1", first)
	}
	if _, ok := first.Item("I2"); !ok {
		t.Error("item I2 missing from snapshot")
	}

	loader.err = errors.New("source down")
	if err := store.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() with failing loader returned nil")
	}
	if store.Current() != first {
		t.Error("failed refresh replaced the published snapshot")
	}
}

func TestStore_RejectsInvalidData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Data)
	}{
		{"unknown restaurant", func(d *Data) { d.Items[0].RestaurantID = "R9" }},
		{"duplicate item", func(d *Data) { d.Items[1].ID = "I1" }},
		{"negative price", func(d *Data) { d.Items[0].Price = -1 }},
		{"missing user id", func(d *Data) { d.Users[0].ID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := sampleData()
			tt.mutate(d)
			store := NewStore(nil, zerolog.Nop())
			if _, err := store.Install(d); err == nil {
				t.Error("Install() accepted invalid data")
			}
		})
	}

	if err := NewStore(nil, zerolog.Nop()).Refresh(context.Background()); !errors.Is(err, ErrNoLoader) {
		t.Errorf("Refresh() without loader error = %v, want ErrNoLoader", err)
	}
}

func TestStore_SetEmbeddings(t *testing.T) {
	t.Parallel()

	store := NewStore(&stubLoader{data: sampleData()}, zerolog.Nop())

	// Embeddings before the first load are kept for it.
	store.SetEmbeddings(3, map[string][]float32{"I1": {1, 0}})
	if store.Current() != nil {
		t.Fatal("SetEmbeddings published without data")
	}
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	it, _ := store.Current().Item("I1")
	if len(it.Embedding) != 2 {
		t.Errorf("I1 embedding = %v, want the stored vector", it.Embedding)
	}

	before := store.Current().Version
	store.SetEmbeddings(4, map[string][]float32{"I2": {0, 1}})
	cat := store.Current()
	if cat.Version <= before {
		t.Errorf("version = %d, want above %d", cat.Version, before)
	}
	if it, _ := cat.Item("I2"); len(it.Embedding) != 2 {
		t.Error("I2 embedding not applied")
	}
	if store.EmbeddingsVersion() != 4 {
		t.Errorf("EmbeddingsVersion() = %d, want 4", store.EmbeddingsVersion())
	}

	// Same version again is a no-op.
	store.SetEmbeddings(4, nil)
	if store.Current() != cat {
		t.Error("re-applying the same embeddings version republished")
	}
}

func TestJSONLoader_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.json")
	data := sampleData()
	data.Items = append(data.Items, &rank.Item{
		ID: "I3", RestaurantID: "R1", Name: "Thali", Category: rank.CategoryCombo,
		ComboComponents: []string{"curry", "rice", "roti"}, Contains: []string{rank.TagMeat}, Available: true,
	})
	data.Users[0].VegDays = []time.Weekday{time.Tuesday}
	if err := WriteJSON(path, data); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	got, err := NewJSONLoader(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got.Items) != 3 || len(got.Restaurants) != 1 || len(got.Users) != 1 {
		t.Fatalf("Load() = %d restaurants %d items %d users", len(got.Restaurants), len(got.Items), len(got.Users))
	}
	thali := got.Items[2]
	if !thali.IsCombo || thali.Diet != rank.DietClassNonVeg {
		t.Errorf("thali = combo %v diet %s, want combo non-veg", thali.IsCombo, thali.Diet)
	}
	if got.Items[0].Diet != rank.DietClassVeg {
		t.Errorf("untagged item diet = %s, want veg", got.Items[0].Diet)
	}
	if !got.Users[0].IsVegDay(time.Tuesday) {
		t.Error("veg day lost in round trip")
	}

	if _, err := NewJSONLoader(filepath.Join(t.TempDir(), "missing.json")).Load(context.Background()); err == nil {
		t.Error("Load() of a missing file returned nil")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDuckDBLoader_ReadsCSVExports(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, RestaurantsFile, `restaurant_id,name,primary_cuisine,price_tier,avg_prep_time,free_delivery_min,discount_thresholds
R0001,Spice Route,north_indian,mid,25,199,"[{""type"": ""percentage"", ""min_order"": 299, ""discount_pct"": 10}, {""type"": ""free_item"", ""min_order"": 399, ""free_item"": ""Free Dessert""}]"
`)
	writeFile(t, dir, MenuItemsFile, `item_id,restaurant_id,name,price,category,subcategory,cuisine_tag,veg_flag,is_combo,combo_components,bestseller_flag,availability,margin_pct,prep_time_mins,popularity_score,popularity_by_meal
I00001,R0001,Paneer Butter Masala,249,main,curry,north_indian,True,False,[],True,True,35.5,20,0.8,"{""breakfast"": 0.1, ""lunch"": 0.7, ""dinner"": 0.9, ""late_night"": 0.3}"
I00002,R0001,Butter Chicken,299,main,curry,north_indian,False,False,[],False,True,32,25,0.9,
I00003,R0001,Veg Thali,299,combo,thali,north_indian,True,True,"[""curry"", ""dal"", ""rice"", ""roti""]",False,False,28,18,0.5,
`)
	writeFile(t, dir, UsersFile, `user_id,name,city,segment,dietary_preference,veg_days,rfm_recency,rfm_frequency,rfm_monetary,order_count,avg_order_value,favourite_cuisines
U00001,Asha,Bengaluru,Premium,veg,"[1, 3]",3,12,800,20,650,"[""north_indian""]"
`)

	data, err := NewDuckDBLoader(dir).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(data.Restaurants) != 1 {
		t.Fatalf("restaurants = %d, want 1", len(data.Restaurants))
	}
	r := data.Restaurants[0]
	if r.FreeDeliveryMin != 199 || len(r.Discounts) != 2 || r.Discounts[1].FreeItem != "Free Dessert" {
		t.Errorf("restaurant = %+v", r)
	}

	if len(data.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(data.Items))
	}
	byID := make(map[string]*rank.Item)
	for _, it := range data.Items {
		byID[it.ID] = it
	}
	paneer := byID["I00001"]
	if paneer.Diet != rank.DietClassVeg || !paneer.Bestseller || paneer.MarginPct != 35.5 {
		t.Errorf("paneer = %+v", paneer)
	}
	if paneer.PopularityFor(rank.MealDinner) != 0.9 {
		t.Errorf("dinner popularity = %v, want 0.9", paneer.PopularityFor(rank.MealDinner))
	}
	if chicken := byID["I00002"]; chicken.IsVegetarian() {
		t.Error("non-veg item classified vegetarian")
	}
	thali := byID["I00003"]
	if !thali.IsCombo || len(thali.ComboComponents) != 4 || thali.Available {
		t.Errorf("thali = %+v", thali)
	}

	if len(data.Users) != 1 {
		t.Fatalf("users = %d, want 1", len(data.Users))
	}
	u := data.Users[0]
	// Exported days 1 and 3 are Tuesday and Thursday.
	if !u.IsVegDay(time.Tuesday) || !u.IsVegDay(time.Thursday) || u.IsVegDay(time.Monday) {
		t.Errorf("veg days = %v", u.VegDays)
	}
	if u.RFM.Monetary != 800 || u.OrderCount != 20 {
		t.Errorf("user = %+v", u)
	}

	store := NewStore(NewDuckDBLoader(dir), zerolog.Nop())
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if menu := store.Current().Menu("R0001"); len(menu) != 3 {
		t.Errorf("menu = %d items, want 3", len(menu))
	}
}

func TestDuckDBLoader_MissingMenu(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, RestaurantsFile, "restaurant_id,name\nR0001,Spice Route\n")
	if _, err := NewDuckDBLoader(dir).Load(context.Background()); err == nil {
		t.Error("Load() without menu_items.csv returned nil")
	}
}
