package models

import (
	"time"

	"github.com/uptrace/bun"
)

type VotingPeriod struct {
	bun.BaseModel `bun:"table:voting_periods"`

	ID                 string    `bun:"id,pk" json:"id"`
	Date               string    `bun:"date,unique,notnull" json:"date"`
	StartTime          string    `bun:"start_time,notnull" json:"start_time"`
	EndTime            string    `bun:"end_time,notnull" json:"end_time"`
	WinnerRestaurantID string    `bun:"winner_restaurant_id,nullzero" json:"winner_restaurant_id,omitempty"`
	IsComplete         bool      `bun:"is_complete,notnull" json:"is_complete"`
	CreatedAt          time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type Vote struct {
	bun.BaseModel `bun:"table:votes"`

	ID             string    `bun:"id,pk" json:"id"`
	UserID         string    `bun:"user_id,notnull,unique:vote_user_period" json:"user_id"`
	RestaurantID   string    `bun:"restaurant_id,notnull" json:"restaurant_id"`
	VotingPeriodID string    `bun:"voting_period_id,notnull,unique:vote_user_period" json:"voting_period_id"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
