package voting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ms-lunch/internal/config"
	"ms-lunch/internal/events"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/metrics"
	"ms-lunch/internal/models"
	"ms-lunch/internal/utils"
)

type DBLayer interface {
	GetPeriodByDate(ctx context.Context, date string) (*models.VotingPeriod, error)
	GetOrCreatePeriod(ctx context.Context, date, startTime, endTime string) (*models.VotingPeriod, error)
	ListIncompletePeriods(ctx context.Context, date string) ([]models.VotingPeriod, error)
	SetWinner(ctx context.Context, periodID, restaurantID string) (bool, error)
	HasUserVoted(ctx context.Context, userID, periodID string) (bool, error)
	CreateVote(ctx context.Context, vote *models.Vote) (bool, error)
	ListVotes(ctx context.Context, periodID string) ([]models.Vote, error)
	ListDailyRestaurantIDs(ctx context.Context, date string) ([]string, error)
	ReplaceDailyRestaurants(ctx context.Context, date string, ids []string) error
}

// RestaurantStore is the slice of the restaurant db layer voting reads.
type RestaurantStore interface {
	ListRestaurants(ctx context.Context, activeOnly bool) ([]models.Restaurant, error)
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
	GetRestaurantsByIDs(ctx context.Context, ids []string) ([]models.Restaurant, error)
}

type Service struct {
	DB          DBLayer
	Restaurants RestaurantStore
	Window      config.VotingConfig
	Location    *time.Location
	Events      events.Publisher
	Metrics     *metrics.Metrics
	Logger      *logger.Logger
	Now         func() time.Time
}

func NewService(d DBLayer, restaurants RestaurantStore, window config.VotingConfig, pub events.Publisher, m *metrics.Metrics, log *logger.Logger) *Service {
	// Window bounds are compared as strings, so they must be zero-padded.
	if v, ok := utils.NormalizeTimeOfDay(window.StartTime); ok {
		window.StartTime = v
	}
	if v, ok := utils.NormalizeTimeOfDay(window.EndTime); ok {
		window.EndTime = v
	}
	return &Service{
		DB:          d,
		Restaurants: restaurants,
		Window:      window,
		Location:    window.Location(),
		Events:      pub,
		Metrics:     m,
		Logger:      log,
		Now:         time.Now,
	}
}

type RestaurantVotes struct {
	Restaurant models.Restaurant `json:"restaurant"`
	VoteCount  int               `json:"vote_count"`
}

type Results struct {
	Date        string             `json:"date"`
	Restaurants []RestaurantVotes  `json:"restaurants"`
	Winner      *models.Restaurant `json:"winner,omitempty"`
	IsComplete  bool               `json:"is_complete"`
	TotalVotes  int                `json:"total_votes"`
}

type VoteReceipt struct {
	Vote       models.Vote `json:"vote"`
	VoteCount  int         `json:"vote_count"`
	PeriodDate string      `json:"period_date"`
}

// Today is the current calendar date in the voting timezone.
func (s *Service) Today() string {
	return utils.DateKey(s.Now(), s.Location)
}

func (s *Service) clock() string {
	return utils.TimeOfDay(s.Now(), s.Location)
}

// AvailableRestaurants returns the date's ballot, or every active restaurant
// when no ballot was set.
func (s *Service) AvailableRestaurants(ctx context.Context, date string) ([]models.Restaurant, error) {
	if date == "" {
		date = s.Today()
	}
	ids, err := s.DB.ListDailyRestaurantIDs(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return s.Restaurants.ListRestaurants(ctx, true)
	}
	restaurants, err := s.Restaurants.GetRestaurantsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	active := make([]models.Restaurant, 0, len(restaurants))
	for _, r := range restaurants {
		if r.IsActive {
			active = append(active, r)
		}
	}
	return active, nil
}

func (s *Service) CastVote(ctx context.Context, userID, restaurantID string) (*VoteReceipt, error) {
	if restaurantID == "" {
		return nil, utils.Invalid(utils.CodeInvalidInput, "restaurant_id is required")
	}
	today := s.Today()
	period, err := s.DB.GetOrCreatePeriod(ctx, today, s.Window.StartTime, s.Window.EndTime)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if now < period.StartTime {
		return nil, utils.Invalid("VOTING_NOT_STARTED", fmt.Sprintf("Voting starts at %s", period.StartTime))
	}
	if now > period.EndTime || period.IsComplete {
		return nil, utils.Invalid("VOTING_ENDED", "Voting has ended for today")
	}

	voted, err := s.DB.HasUserVoted(ctx, userID, period.ID)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, alreadyVoted()
	}

	rest, err := s.Restaurants.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if rest == nil {
		return nil, utils.NotFound("RESTAURANT_NOT_FOUND", "Restaurant not found")
	}
	if !rest.IsActive {
		return nil, utils.Invalid("RESTAURANT_NOT_AVAILABLE", "Restaurant is not available")
	}
	available, err := s.AvailableRestaurants(ctx, today)
	if err != nil {
		return nil, err
	}
	if !containsRestaurant(available, restaurantID) {
		return nil, utils.Invalid("RESTAURANT_NOT_AVAILABLE_TODAY", "Restaurant is not available for voting today")
	}

	vote := &models.Vote{
		ID:             utils.GenerateID(),
		UserID:         userID,
		RestaurantID:   restaurantID,
		VotingPeriodID: period.ID,
		CreatedAt:      s.Now(),
	}
	inserted, err := s.DB.CreateVote(ctx, vote)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, alreadyVoted()
	}

	votes, err := s.DB.ListVotes(ctx, period.ID)
	if err != nil {
		return nil, err
	}
	count := 0
	for _, v := range votes {
		if v.RestaurantID == restaurantID {
			count++
		}
	}

	if s.Metrics != nil {
		s.Metrics.VotesCast.Inc()
	}
	s.Logger.LogVote("CAST", today, fmt.Sprintf("User %s voted for %s (%d votes)", userID, rest.Name, count))
	s.Events.Publish(ctx, models.DomainEvent{
		Type:       models.EventVoteCast,
		UserID:     userID,
		Attributes: map[string]string{"date": today, "restaurant_id": restaurantID},
	})
	return &VoteReceipt{Vote: *vote, VoteCount: count, PeriodDate: today}, nil
}

func alreadyVoted() error {
	return utils.Conflict("ALREADY_VOTED", "You have already voted today")
}

func (s *Service) HasUserVoted(ctx context.Context, userID, date string) (bool, error) {
	if date == "" {
		date = s.Today()
	}
	period, err := s.DB.GetPeriodByDate(ctx, date)
	if err != nil || period == nil {
		return false, err
	}
	return s.DB.HasUserVoted(ctx, userID, period.ID)
}

// IsVotingActive reports whether a vote cast now would be accepted by the
// clock. Before the first vote of the day no period exists yet; the
// configured window applies.
func (s *Service) IsVotingActive(ctx context.Context) (bool, error) {
	period, err := s.DB.GetPeriodByDate(ctx, s.Today())
	if err != nil {
		return false, err
	}
	start, end := s.Window.StartTime, s.Window.EndTime
	if period != nil {
		if period.IsComplete {
			return false, nil
		}
		start, end = period.StartTime, period.EndTime
	}
	now := s.clock()
	return now >= start && now <= end, nil
}

func (s *Service) Results(ctx context.Context, date string) (*Results, error) {
	if date == "" {
		date = s.Today()
	}
	period, err := s.DB.GetPeriodByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	res := &Results{Date: date, Restaurants: []RestaurantVotes{}}
	if period == nil {
		return res, nil
	}
	res.IsComplete = period.IsComplete

	votes, err := s.DB.ListVotes(ctx, period.ID)
	if err != nil {
		return nil, err
	}
	res.TotalVotes = len(votes)

	ranked := Tally(votes)
	ids := make([]string, 0, len(ranked))
	for _, t := range ranked {
		ids = append(ids, t.RestaurantID)
	}
	if period.WinnerRestaurantID != "" && !contains(ids, period.WinnerRestaurantID) {
		ids = append(ids, period.WinnerRestaurantID)
	}
	byID, err := s.restaurantsByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, t := range ranked {
		rest, ok := byID[t.RestaurantID]
		if !ok {
			continue
		}
		res.Restaurants = append(res.Restaurants, RestaurantVotes{Restaurant: rest, VoteCount: t.Count})
	}
	if period.WinnerRestaurantID != "" {
		if w, ok := byID[period.WinnerRestaurantID]; ok {
			res.Winner = &w
		}
	}
	return res, nil
}

// DetermineWinner completes the period of date and returns its winner.
// A period that is already complete keeps its stored winner.
func (s *Service) DetermineWinner(ctx context.Context, date string) (*models.Restaurant, error) {
	if date == "" {
		date = s.Today()
	}
	period, err := s.DB.GetPeriodByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, utils.NotFound("VOTING_PERIOD_NOT_FOUND", "No voting period for "+date)
	}
	if period.IsComplete && period.WinnerRestaurantID != "" {
		return s.storedWinner(ctx, period.WinnerRestaurantID)
	}

	votes, err := s.DB.ListVotes(ctx, period.ID)
	if err != nil {
		return nil, err
	}
	ranked := Tally(votes)
	if len(ranked) == 0 {
		return nil, utils.Invalid("NO_VOTES", "No votes were cast for "+date)
	}
	winnerID := ranked[0].RestaurantID

	updated, err := s.DB.SetWinner(ctx, period.ID, winnerID)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Closed concurrently; report whatever was stored.
		period, err = s.DB.GetPeriodByDate(ctx, date)
		if err != nil {
			return nil, err
		}
		return s.storedWinner(ctx, period.WinnerRestaurantID)
	}

	winner, err := s.storedWinner(ctx, winnerID)
	if err != nil {
		return nil, err
	}
	s.Logger.LogVote("CLOSE", date, fmt.Sprintf("Winner %s with %d of %d votes", winner.Name, ranked[0].Count, len(votes)))
	s.Events.Publish(ctx, models.DomainEvent{
		Type:       models.EventVotingClosed,
		Attributes: map[string]string{"date": date, "restaurant_id": winnerID},
	})
	return winner, nil
}

// CloseVoting is the admin entry point for DetermineWinner.
func (s *Service) CloseVoting(ctx context.Context, date string) (*models.Restaurant, error) {
	return s.DetermineWinner(ctx, date)
}

func (s *Service) storedWinner(ctx context.Context, id string) (*models.Restaurant, error) {
	rest, err := s.Restaurants.GetRestaurant(ctx, id)
	if err != nil {
		return nil, err
	}
	if rest == nil {
		return nil, utils.NotFound("RESTAURANT_NOT_FOUND", "Winning restaurant no longer exists")
	}
	return rest, nil
}

// CompleteEndedPeriods settles every open period whose window has passed and
// that received votes. Periods without votes stay open.
func (s *Service) CompleteEndedPeriods(ctx context.Context) (int, error) {
	today := s.Today()
	now := s.clock()
	periods, err := s.DB.ListIncompletePeriods(ctx, today)
	if err != nil {
		return 0, err
	}
	completed := 0
	for _, p := range periods {
		if p.Date == today && now <= p.EndTime {
			continue
		}
		if _, err := s.DetermineWinner(ctx, p.Date); err != nil {
			if utils.CodeOf(err) == "NO_VOTES" {
				continue
			}
			return completed, err
		}
		completed++
	}
	return completed, nil
}

// SetDailyRestaurants replaces the ballot of date.
func (s *Service) SetDailyRestaurants(ctx context.Context, date string, ids []string) ([]models.Restaurant, error) {
	date, err := utils.ParseDateKey(date)
	if err != nil {
		return nil, err
	}
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !contains(unique, id) {
			unique = append(unique, id)
		}
	}
	restaurants, err := s.Restaurants.GetRestaurantsByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	if len(restaurants) != len(unique) {
		return nil, utils.NotFound("RESTAURANT_NOT_FOUND", "One or more restaurants do not exist")
	}
	if err := s.DB.ReplaceDailyRestaurants(ctx, date, unique); err != nil {
		return nil, err
	}
	s.Logger.LogVote("BALLOT", date, fmt.Sprintf("%d restaurants set", len(unique)))
	return restaurants, nil
}

func (s *Service) DailyRestaurants(ctx context.Context, date string) ([]models.Restaurant, error) {
	if date == "" {
		date = s.Today()
	}
	date, err := utils.ParseDateKey(date)
	if err != nil {
		return nil, err
	}
	ids, err := s.DB.ListDailyRestaurantIDs(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.Restaurant{}, nil
	}
	return s.Restaurants.GetRestaurantsByIDs(ctx, ids)
}

func (s *Service) restaurantsByID(ctx context.Context, ids []string) (map[string]models.Restaurant, error) {
	out := make(map[string]models.Restaurant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	restaurants, err := s.Restaurants.GetRestaurantsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, r := range restaurants {
		out[r.ID] = r
	}
	return out, nil
}

// RestaurantTally is one restaurant's share of a period's votes.
type RestaurantTally struct {
	RestaurantID string
	Count        int
	firstVote    int
}

// Tally ranks restaurants by vote count. Ties go to the restaurant that
// received its first vote earliest, then to the lower id. votes must be in
// the order they were cast.
func Tally(votes []models.Vote) []RestaurantTally {
	index := map[string]int{}
	var out []RestaurantTally
	for i, v := range votes {
		pos, ok := index[v.RestaurantID]
		if !ok {
			pos = len(out)
			index[v.RestaurantID] = pos
			out = append(out, RestaurantTally{RestaurantID: v.RestaurantID, firstVote: i})
		}
		out[pos].Count++
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].firstVote != out[j].firstVote {
			return out[i].firstVote < out[j].firstVote
		}
		return out[i].RestaurantID < out[j].RestaurantID
	})
	return out
}

func containsRestaurant(list []models.Restaurant, id string) bool {
	for _, r := range list {
		if r.ID == id {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
