package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const (
	OrderPending   = "pending"
	OrderConfirmed = "confirmed"
	OrderCancelled = "cancelled"
)

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID             string          `bun:"id,pk" json:"id"`
	UserID         string          `bun:"user_id,notnull" json:"user_id"`
	RestaurantID   string          `bun:"restaurant_id,notnull" json:"restaurant_id"`
	VotingPeriodID string          `bun:"voting_period_id,notnull" json:"voting_period_id"`
	Status         string          `bun:"status,notnull" json:"status"`
	TotalAmount    decimal.Decimal `bun:"total_amount,type:decimal(10,2),notnull" json:"total_amount"`
	CreatedAt      time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time       `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	User       *User       `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Restaurant *Restaurant `bun:"rel:belongs-to,join:restaurant_id=id" json:"restaurant,omitempty"`
	Items      []OrderItem `bun:"rel:has-many,join:id=order_id" json:"items,omitempty"`
}

type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID         string          `bun:"id,pk" json:"id"`
	OrderID    string          `bun:"order_id,notnull" json:"order_id"`
	MenuItemID string          `bun:"menu_item_id,notnull" json:"menu_item_id"`
	Quantity   int             `bun:"quantity,notnull" json:"quantity"`
	Notes      string          `bun:"notes" json:"notes,omitempty"`
	UnitPrice  decimal.Decimal `bun:"unit_price,type:decimal(10,2),notnull" json:"unit_price"`
	Subtotal   decimal.Decimal `bun:"subtotal,type:decimal(10,2),notnull" json:"subtotal"`
	CreatedAt  time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	MenuItem *MenuItem `bun:"rel:belongs-to,join:menu_item_id=id" json:"menu_item,omitempty"`
}
