package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-lunch/internal/models"
	"ms-lunch/internal/utils"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- PERIODS ----------------

// GetPeriodByDate returns (nil, nil) when the date has no period.
func (d *DB) GetPeriodByDate(ctx context.Context, date string) (*models.VotingPeriod, error) {
	var p models.VotingPeriod
	err := d.Bun.NewSelect().Model(&p).Where("date = ?", date).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get voting period %s: %w", date, err)
	}
	return &p, nil
}

// GetOrCreatePeriod inserts a period for date unless one exists. Concurrent
// callers converge on the same row through the unique date.
func (d *DB) GetOrCreatePeriod(ctx context.Context, date, startTime, endTime string) (*models.VotingPeriod, error) {
	p := &models.VotingPeriod{
		ID:        utils.GenerateID(),
		Date:      date,
		StartTime: startTime,
		EndTime:   endTime,
	}
	if _, err := d.Bun.NewInsert().Model(p).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
		return nil, fmt.Errorf("create voting period %s: %w", date, err)
	}
	existing, err := d.GetPeriodByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("voting period %s missing after insert", date)
	}
	return existing, nil
}

// ListIncompletePeriods returns open periods dated on or before date.
func (d *DB) ListIncompletePeriods(ctx context.Context, date string) ([]models.VotingPeriod, error) {
	var periods []models.VotingPeriod
	err := d.Bun.NewSelect().Model(&periods).
		Where("is_complete = ?", false).
		Where("date <= ?", date).
		Order("date ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list incomplete periods: %w", err)
	}
	return periods, nil
}

// SetWinner completes the period. It reports false when the period was already complete.
func (d *DB) SetWinner(ctx context.Context, periodID, restaurantID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.VotingPeriod)(nil)).
		Set("winner_restaurant_id = ?", restaurantID).
		Set("is_complete = ?", true).
		Where("id = ?", periodID).
		Where("is_complete = ?", false).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("set winner of %s: %w", periodID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ---------------- VOTES ----------------

func (d *DB) HasUserVoted(ctx context.Context, userID, periodID string) (bool, error) {
	exists, err := d.Bun.NewSelect().Model((*models.Vote)(nil)).
		Where("user_id = ?", userID).
		Where("voting_period_id = ?", periodID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check vote: %w", err)
	}
	return exists, nil
}

// CreateVote reports false when the user already has a vote in the period.
func (d *DB) CreateVote(ctx context.Context, vote *models.Vote) (bool, error) {
	res, err := d.Bun.NewInsert().Model(vote).On("CONFLICT DO NOTHING").Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("insert vote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListVotes returns the period's votes in the order they were cast.
func (d *DB) ListVotes(ctx context.Context, periodID string) ([]models.Vote, error) {
	var votes []models.Vote
	err := d.Bun.NewSelect().Model(&votes).
		Where("voting_period_id = ?", periodID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	return votes, nil
}

// ---------------- DAILY BALLOT ----------------

func (d *DB) ListDailyRestaurantIDs(ctx context.Context, date string) ([]string, error) {
	var ids []string
	err := d.Bun.NewSelect().
		Model((*models.DailyRestaurant)(nil)).
		Column("restaurant_id").
		Where("date = ?", date).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list daily restaurants %s: %w", date, err)
	}
	return ids, nil
}

// ReplaceDailyRestaurants sets the ballot of date to exactly ids.
func (d *DB) ReplaceDailyRestaurants(ctx context.Context, date string, ids []string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.DailyRestaurant)(nil)).Where("date = ?", date).Exec(ctx); err != nil {
			return fmt.Errorf("clear daily restaurants: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		rows := make([]models.DailyRestaurant, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, models.DailyRestaurant{ID: utils.GenerateID(), Date: date, RestaurantID: id})
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert daily restaurants: %w", err)
		}
		return nil
	})
}
