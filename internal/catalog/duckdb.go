// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB driver for CSV reading
	"github.com/goccy/go-json"

	"github.com/tomtom215/addonrail/internal/rank"
)

// CSV file names inside a catalog directory.
const (
	RestaurantsFile = "restaurants.csv"
	MenuItemsFile   = "menu_items.csv"
	UsersFile       = "users.csv"
)

// DuckDBLoader reads the catalog from a directory of CSV exports through
// DuckDB's read_csv_auto. Every column is read as text and parsed here so a
// column DuckDB would sniff differently between exports cannot break a load.
// JSON-valued columns (discount_thresholds, combo_components, veg_days, ...)
// are decoded per row.
type DuckDBLoader struct {
	dir string
}

var _ Loader = (*DuckDBLoader)(nil)

// NewDuckDBLoader creates a loader for the CSV directory dir.
func NewDuckDBLoader(dir string) *DuckDBLoader {
	return &DuckDBLoader{dir: dir}
}

// row is one CSV record keyed by column name.
type row map[string]string

// Load opens an in-memory DuckDB, reads the three CSV files and closes it.
func (l *DuckDBLoader) Load(ctx context.Context) (*Data, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	defer db.Close() //nolint:errcheck // in-memory database, nothing to flush

	restRows, err := l.read(ctx, db, RestaurantsFile)
	if err != nil {
		return nil, err
	}
	itemRows, err := l.read(ctx, db, MenuItemsFile)
	if err != nil {
		return nil, err
	}
	// Users are optional: unknown users fall back to a default profile.
	var userRows []row
	if _, statErr := os.Stat(filepath.Join(l.dir, UsersFile)); statErr == nil {
		if userRows, err = l.read(ctx, db, UsersFile); err != nil {
			return nil, err
		}
	}

	data := &Data{
		Restaurants: make([]*rank.Restaurant, 0, len(restRows)),
		Items:       make([]*rank.Item, 0, len(itemRows)),
		Users:       make([]*rank.UserProfile, 0, len(userRows)),
	}
	for i, r := range restRows {
		rest, err := parseRestaurant(r)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", RestaurantsFile, i+1, err)
		}
		data.Restaurants = append(data.Restaurants, rest)
	}
	for i, r := range itemRows {
		it, err := parseItem(r)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", MenuItemsFile, i+1, err)
		}
		data.Items = append(data.Items, it)
	}
	for i, r := range userRows {
		u, err := parseUser(r)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", UsersFile, i+1, err)
		}
		data.Users = append(data.Users, u)
	}
	return data, nil
}

func (l *DuckDBLoader) read(ctx context.Context, db *sql.DB, file string) ([]row, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	path := strings.ReplaceAll(filepath.Join(l.dir, file), "'", "''")
	query := fmt.Sprintf("SELECT * FROM read_csv_auto('%s', header = true, all_varchar = true)", path) //nolint:gosec // path is operator configuration, quotes escaped
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", file, err)
	}

	var out []row
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", file, err)
		}
		r := make(row, len(cols))
		for i, c := range cols {
			if values[i].Valid {
				r[c] = strings.TrimSpace(values[i].String)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", file, err)
	}
	return out, nil
}

func parseRestaurant(r row) (*rank.Restaurant, error) {
	rest := &rank.Restaurant{
		ID:             r["restaurant_id"],
		Name:           r["name"],
		PrimaryCuisine: r["primary_cuisine"],
		PriceTier:      r["price_tier"],
	}
	var err error
	if rest.AvgPrepTime, err = r.intCol("avg_prep_time"); err != nil {
		return nil, err
	}
	if rest.FreeDeliveryMin, err = r.floatCol("free_delivery_min"); err != nil {
		return nil, err
	}
	if err := r.jsonCol("discount_thresholds", &rest.Discounts); err != nil {
		return nil, err
	}
	return rest, nil
}

func parseItem(r row) (*rank.Item, error) {
	it := &rank.Item{
		ID:           r["item_id"],
		RestaurantID: r["restaurant_id"],
		Name:         r["name"],
		Category:     rank.Category(r["category"]),
		Subcategory:  r["subcategory"],
	}
	if c := r["cuisine_tag"]; c != "" {
		it.Cuisines = []string{c}
	}
	if err := r.jsonCol("cuisine_tags", &it.Cuisines); err != nil {
		return nil, err
	}

	var err error
	if it.Price, err = r.floatCol("price"); err != nil {
		return nil, err
	}
	if it.MarginPct, err = r.floatCol("margin_pct"); err != nil {
		return nil, err
	}
	if it.PrepTimeMins, err = r.intCol("prep_time_mins"); err != nil {
		return nil, err
	}
	if it.Popularity, err = r.floatCol("popularity_score"); err != nil {
		return nil, err
	}
	if it.AddonSuccessRate, err = r.floatCol("addon_success_rate"); err != nil {
		return nil, err
	}
	if it.Available, err = r.boolCol("availability", true); err != nil {
		return nil, err
	}
	if it.Bestseller, err = r.boolCol("bestseller_flag", false); err != nil {
		return nil, err
	}
	if it.IsCombo, err = r.boolCol("is_combo", false); err != nil {
		return nil, err
	}
	if err := r.jsonCol("combo_components", &it.ComboComponents); err != nil {
		return nil, err
	}
	if err := r.jsonCol("contains", &it.Contains); err != nil {
		return nil, err
	}
	if err := r.jsonCol("meal_periods", &it.MealPeriods); err != nil {
		return nil, err
	}

	var byMeal map[rank.MealPeriod]float64
	if err := r.jsonCol("popularity_by_meal", &byMeal); err != nil {
		return nil, err
	}
	it.PopularityByMeal = byMeal

	if d := r["diet"]; d != "" {
		it.Diet = rank.DietClass(d)
	} else if v, ok := r["veg_flag"]; ok && v != "" {
		veg, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("veg_flag: %w", err)
		}
		it.Diet = rank.DietClassNonVeg
		if veg {
			it.Diet = rank.DietClassVeg
		} else if len(it.Contains) == 0 {
			it.Contains = []string{rank.TagMeat}
		}
	}
	normalizeItem(it)
	return it, nil
}

func parseUser(r row) (*rank.UserProfile, error) {
	u := &rank.UserProfile{
		ID:                r["user_id"],
		Segment:           r["segment"],
		City:              r["city"],
		DietaryPreference: r["dietary_preference"],
	}
	var err error
	if u.RFM.Recency, err = r.intCol("rfm_recency"); err != nil {
		return nil, err
	}
	if u.RFM.Frequency, err = r.intCol("rfm_frequency"); err != nil {
		return nil, err
	}
	if u.RFM.Monetary, err = r.floatCol("rfm_monetary"); err != nil {
		return nil, err
	}
	if u.OrderCount, err = r.intCol("order_count"); err != nil {
		return nil, err
	}
	if u.AvgOrderValue, err = r.floatCol("avg_order_value"); err != nil {
		return nil, err
	}
	if err := r.jsonCol("favourite_cuisines", &u.FavouriteCuisines); err != nil {
		return nil, err
	}

	// Exported veg days count Monday as 0.
	var days []int
	if err := r.jsonCol("veg_days", &days); err != nil {
		return nil, err
	}
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("veg_days: day %d out of range", d)
		}
		u.VegDays = append(u.VegDays, time.Weekday((d+1)%7))
	}
	return u, nil
}

func (r row) floatCol(col string) (float64, error) {
	v := r[col]
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", col, err)
	}
	return f, nil
}

func (r row) intCol(col string) (int, error) {
	f, err := r.floatCol(col)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func (r row) boolCol(col string, def bool) (bool, error) {
	v := r[col]
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", col, err)
	}
	return b, nil
}

// jsonCol decodes a JSON-valued column into target. Empty columns leave target untouched.
func (r row) jsonCol(col string, target any) error {
	v := r[col]
	if v == "" || v == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(v), target); err != nil {
		return fmt.Errorf("%s: %w", col, err)
	}
	return nil
}
