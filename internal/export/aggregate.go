// Package export aggregates order lines per menu item and renders order
// summaries for the restaurant.
package export

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ItemLine is one ordered line before aggregation.
type ItemLine struct {
	MenuItemID string
	Name       string
	Quantity   int
	Subtotal   decimal.Decimal
}

// ItemTotal is the combined quantity and amount of one menu item.
type ItemTotal struct {
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"total_quantity"`
	Amount     decimal.Decimal `json:"total_amount"`
}

// Aggregate sums lines per menu item, largest quantity first, then by name.
func Aggregate(lines []ItemLine) []ItemTotal {
	index := map[string]int{}
	out := []ItemTotal{}
	for _, l := range lines {
		i, ok := index[l.MenuItemID]
		if !ok {
			i = len(out)
			index[l.MenuItemID] = i
			out = append(out, ItemTotal{MenuItemID: l.MenuItemID, Name: l.Name, Amount: decimal.Zero})
		}
		out[i].Quantity += l.Quantity
		out[i].Amount = out[i].Amount.Add(l.Subtotal)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Quantity != out[b].Quantity {
			return out[a].Quantity > out[b].Quantity
		}
		return out[a].Name < out[b].Name
	})
	return out
}
