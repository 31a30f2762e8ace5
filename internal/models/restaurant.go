package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Restaurant struct {
	bun.BaseModel `bun:"table:restaurants"`

	ID          string    `bun:"id,pk" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Cuisine     string    `bun:"cuisine,notnull" json:"cuisine"`
	Description string    `bun:"description" json:"description,omitempty"`
	ImageURL    string    `bun:"image_url" json:"image_url,omitempty"`
	IsActive    bool      `bun:"is_active,notnull" json:"is_active"`
	TalabatID   string    `bun:"talabat_id,nullzero" json:"talabat_id,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

type MenuItem struct {
	bun.BaseModel `bun:"table:menu_items"`

	ID           string          `bun:"id,pk" json:"id"`
	RestaurantID string          `bun:"restaurant_id,notnull" json:"restaurant_id"`
	Name         string          `bun:"name,notnull" json:"name"`
	Description  string          `bun:"description" json:"description"`
	Price        decimal.Decimal `bun:"price,type:decimal(10,2),notnull" json:"price"`
	Category     string          `bun:"category,notnull" json:"category"`
	Tags         []string        `bun:"tags,type:text" json:"tags"`
	ImageURL     string          `bun:"image_url" json:"image_url,omitempty"`
	IsAvailable  bool            `bun:"is_available,notnull" json:"is_available"`
	TalabatID    string          `bun:"talabat_id,nullzero" json:"talabat_id,omitempty"`
	CreatedAt    time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// HasAnyTag reports whether the item carries at least one of tags (case-insensitive).
func (m *MenuItem) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range m.Tags {
			if equalFold(want, have) {
				return true
			}
		}
	}
	return false
}

// DailyRestaurant pins a restaurant to the voting ballot of one date.
type DailyRestaurant struct {
	bun.BaseModel `bun:"table:daily_restaurants"`

	ID           string `bun:"id,pk" json:"id"`
	Date         string `bun:"date,notnull,unique:daily_date_restaurant" json:"date"`
	RestaurantID string `bun:"restaurant_id,notnull,unique:daily_date_restaurant" json:"restaurant_id"`
}
