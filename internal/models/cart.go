package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Cart struct {
	bun.BaseModel `bun:"table:carts"`

	ID        string    `bun:"id,pk" json:"id"`
	GroupID   string    `bun:"group_id,notnull,unique:cart_group_user" json:"group_id"`
	UserID    string    `bun:"user_id,notnull,unique:cart_group_user" json:"user_id"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	User  *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Items []CartItem `bun:"rel:has-many,join:id=cart_id" json:"items"`
}

// Total sums price x quantity over items whose menu item is loaded.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

type CartItem struct {
	bun.BaseModel `bun:"table:cart_items"`

	ID         string    `bun:"id,pk" json:"id"`
	CartID     string    `bun:"cart_id,notnull" json:"cart_id"`
	MenuItemID string    `bun:"menu_item_id,notnull" json:"menu_item_id"`
	Quantity   int       `bun:"quantity,notnull" json:"quantity"`
	Notes      string    `bun:"notes" json:"notes,omitempty"`
	AddedAt    time.Time `bun:"added_at,notnull,default:current_timestamp" json:"added_at"`

	Cart     *Cart     `bun:"rel:belongs-to,join:cart_id=id" json:"-"`
	MenuItem *MenuItem `bun:"rel:belongs-to,join:menu_item_id=id" json:"menu_item,omitempty"`
}

func (i CartItem) Subtotal() decimal.Decimal {
	if i.MenuItem == nil {
		return decimal.Zero
	}
	return i.MenuItem.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
