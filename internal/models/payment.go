package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentUnpaid, PaymentPending, PaymentPaid:
		return true
	}
	return false
}

type Payment struct {
	bun.BaseModel `bun:"table:payments,alias:p"`

	ID               string          `bun:"id,pk" json:"id"`
	GroupID          string          `bun:"group_id,notnull,unique:payment_group_user" json:"group_id"`
	UserID           string          `bun:"user_id,notnull,unique:payment_group_user" json:"user_id"`
	Status           PaymentStatus   `bun:"status,notnull" json:"status"`
	Amount           decimal.Decimal `bun:"amount,type:decimal(10,2),notnull" json:"amount"`
	ConfirmedByOwner bool            `bun:"confirmed_by_owner,notnull" json:"confirmed_by_owner"`
	ConfirmedAt      time.Time       `bun:"confirmed_at,nullzero" json:"confirmed_at,omitempty"`
	CreatedAt        time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time       `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	User *User `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
}

// Settled is the only state that allows a group to be deleted.
func (p *Payment) Settled() bool {
	return p.Status == PaymentPaid && p.ConfirmedByOwner
}
