package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"ms-lunch/internal/utils"
)

const (
	FormatText = "text"
	FormatCSV  = "csv"
	FormatJSON = "json"
)

type Restaurant struct {
	Name    string `json:"name"`
	Cuisine string `json:"cuisine"`
}

type Line struct {
	ItemName string          `json:"item_name"`
	Quantity int             `json:"quantity"`
	Notes    string          `json:"notes,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Entry is one person's order or cart.
type Entry struct {
	Name  string          `json:"employee_name"`
	Items []Line          `json:"items"`
	Total decimal.Decimal `json:"total"`
}

type Summary struct {
	TotalOrders int             `json:"total_orders"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []ItemTotal     `json:"item_breakdown"`
}

type Document struct {
	Title      string     `json:"title"`
	Date       string     `json:"date"`
	Restaurant Restaurant `json:"restaurant"`
	Entries    []Entry    `json:"orders"`
	Summary    Summary    `json:"summary"`
}

// Rendered is an export ready to be served as a download.
type Rendered struct {
	Body        []byte
	ContentType string
	Extension   string
}

// Render formats doc as text, csv or json. An empty format means text.
func Render(doc Document, format string) (*Rendered, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		return &Rendered{Body: []byte(Text(doc)), ContentType: "text/plain; charset=utf-8", Extension: "txt"}, nil
	case FormatCSV:
		body, err := CSV(doc)
		if err != nil {
			return nil, err
		}
		return &Rendered{Body: body, ContentType: "text/csv; charset=utf-8", Extension: "csv"}, nil
	case FormatJSON:
		body, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return &Rendered{Body: body, ContentType: "application/json", Extension: "json"}, nil
	}
	return nil, utils.Invalid("INVALID_FORMAT", "Format must be text, csv or json")
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func Text(doc Document) string {
	rule := strings.Repeat("=", 60)
	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line(rule)
	line("%s", strings.ToUpper(doc.Title))
	line(rule)
	line("")
	line("Date: %s", doc.Date)
	line("Restaurant: %s (%s)", doc.Restaurant.Name, doc.Restaurant.Cuisine)
	line("Total Orders: %d", doc.Summary.TotalOrders)
	line("Total Amount: %s", money(doc.Summary.TotalAmount))
	line("")
	line(rule)
	line("INDIVIDUAL ORDERS")
	line(rule)
	line("")
	for i, e := range doc.Entries {
		line("%d. %s", i+1, e.Name)
		line(strings.Repeat("-", 60))
		for _, item := range e.Items {
			line("   %dx %s - %s", item.Quantity, item.ItemName, money(item.Subtotal))
			if item.Notes != "" {
				line("      Note: %s", item.Notes)
			}
		}
		line("   Total: %s", money(e.Total))
		line("")
	}
	line(rule)
	line("ITEM SUMMARY (for restaurant)")
	line(rule)
	line("")
	for _, item := range doc.Summary.Items {
		line("%dx %s - %s", item.Quantity, item.Name, money(item.Amount))
	}
	line("")
	line(rule)
	line("GRAND TOTAL: %s", money(doc.Summary.TotalAmount))
	b.WriteString(rule)
	return b.String()
}

func CSV(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Employee Name", "Item Name", "Quantity", "Price", "Subtotal", "Notes"}); err != nil {
		return nil, err
	}
	for _, e := range doc.Entries {
		for _, item := range e.Items {
			record := []string{
				e.Name,
				item.ItemName,
				strconv.Itoa(item.Quantity),
				item.Price.StringFixed(2),
				item.Subtotal.StringFixed(2),
				item.Notes,
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
