// Package admin serves the administrator dashboard: participation statistics,
// user management and the daily ballot.
package admin

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
	"ms-lunch/internal/order"
	"ms-lunch/internal/utils"
	"ms-lunch/internal/voting"
)

const maxHistoryDays = 90

type StatsStore interface {
	CountUsersByRole(ctx context.Context, role string) (int, error)
	PeriodOrderTotals(ctx context.Context, periodID string) (int, decimal.Decimal, error)
	Overview(ctx context.Context) (*Overview, error)
	OrderHistory(ctx context.Context, from, to string) ([]DailyOrders, error)
}

type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateRole(ctx context.Context, id, role string) (bool, error)
}

type PeriodStore interface {
	GetPeriodByDate(ctx context.Context, date string) (*models.VotingPeriod, error)
}

type Voting interface {
	Today() string
	Results(ctx context.Context, date string) (*voting.Results, error)
	SetDailyRestaurants(ctx context.Context, date string, ids []string) ([]models.Restaurant, error)
	DailyRestaurants(ctx context.Context, date string) ([]models.Restaurant, error)
}

type Orders interface {
	GroupOrder(ctx context.Context, date string) (*order.GroupOrder, error)
}

// Service handles admin operations
type Service struct {
	Stats     StatsStore
	UserStore UserStore
	Periods   PeriodStore
	Voting    Voting
	Orders    Orders
	Logger    *logger.Logger
}

func NewService(stats StatsStore, users UserStore, periods PeriodStore, v Voting, orders Orders, log *logger.Logger) *Service {
	return &Service{Stats: stats, UserStore: users, Periods: periods, Voting: v, Orders: orders, Logger: log}
}

type WinnerStats struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	VoteCount int    `json:"vote_count"`
}

type DailyStats struct {
	Date                   string          `json:"date"`
	TotalEmployees         int             `json:"total_employees"`
	TotalVotes             int             `json:"total_votes"`
	ParticipationRate      float64         `json:"participation_rate"`
	TotalOrders            int             `json:"total_orders"`
	OrderParticipationRate float64         `json:"order_participation_rate"`
	TotalRevenue           decimal.Decimal `json:"total_revenue"`
	Winner                 *WinnerStats    `json:"winning_restaurant,omitempty"`
}

// percent returns part/whole as a percentage rounded to two places.
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*10000) / 100
}

func (s *Service) date(d string) (string, error) {
	if d == "" {
		return s.Voting.Today(), nil
	}
	return utils.ParseDateKey(d)
}

func (s *Service) DailyStats(ctx context.Context, date string) (*DailyStats, error) {
	date, err := s.date(date)
	if err != nil {
		return nil, err
	}
	employees, err := s.Stats.CountUsersByRole(ctx, models.RoleEmployee)
	if err != nil {
		return nil, err
	}
	out := &DailyStats{Date: date, TotalEmployees: employees, TotalRevenue: decimal.Zero}

	period, err := s.Periods.GetPeriodByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return out, nil
	}

	results, err := s.Voting.Results(ctx, date)
	if err != nil {
		return nil, err
	}
	out.TotalVotes = results.TotalVotes
	out.ParticipationRate = percent(results.TotalVotes, employees)

	orders, revenue, err := s.Stats.PeriodOrderTotals(ctx, period.ID)
	if err != nil {
		return nil, err
	}
	out.TotalOrders = orders
	out.OrderParticipationRate = percent(orders, employees)
	out.TotalRevenue = revenue

	if results.Winner != nil {
		w := &WinnerStats{ID: results.Winner.ID, Name: results.Winner.Name}
		for _, rv := range results.Restaurants {
			if rv.Restaurant.ID == w.ID {
				w.VoteCount = rv.VoteCount
			}
		}
		out.Winner = w
	}
	return out, nil
}

func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	return s.Stats.Overview(ctx)
}

// OrderHistory returns one row per voting day over the last days days, ending today.
func (s *Service) OrderHistory(ctx context.Context, days int) ([]DailyOrders, error) {
	if days <= 0 || days > maxHistoryDays {
		return nil, utils.Invalid(utils.CodeInvalidInput, fmt.Sprintf("days must be between 1 and %d", maxHistoryDays))
	}
	to := s.Voting.Today()
	end, err := time.Parse(utils.DateLayout, to)
	if err != nil {
		return nil, err
	}
	from := end.AddDate(0, 0, -(days - 1)).Format(utils.DateLayout)
	rows, err := s.Stats.OrderHistory(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []DailyOrders{}
	}
	return rows, nil
}

func (s *Service) Users(ctx context.Context) ([]models.User, error) {
	users, err := s.UserStore.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

func (s *Service) UpdateUserRole(ctx context.Context, actorID, userID, role string) (*models.User, error) {
	if role != models.RoleEmployee && role != models.RoleAdmin {
		return nil, utils.Invalid("INVALID_ROLE", "Role must be employee or admin")
	}
	ok, err := s.UserStore.UpdateRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, utils.NotFound("USER_NOT_FOUND", "User not found")
	}
	s.Logger.LogSecurity("ROLE_CHANGE", fmt.Sprintf("User %s set %s to %s", actorID, userID, role))
	return s.UserStore.GetUserByID(ctx, userID)
}

func (s *Service) VotingResults(ctx context.Context, date string) (*voting.Results, error) {
	date, err := s.date(date)
	if err != nil {
		return nil, err
	}
	return s.Voting.Results(ctx, date)
}

func (s *Service) GroupOrder(ctx context.Context, date string) (*order.GroupOrder, error) {
	return s.Orders.GroupOrder(ctx, date)
}

func (s *Service) SetDailyRestaurants(ctx context.Context, date string, ids []string) ([]models.Restaurant, error) {
	date, err := s.date(date)
	if err != nil {
		return nil, err
	}
	return s.Voting.SetDailyRestaurants(ctx, date, ids)
}

func (s *Service) DailyRestaurants(ctx context.Context, date string) ([]models.Restaurant, error) {
	return s.Voting.DailyRestaurants(ctx, date)
}
