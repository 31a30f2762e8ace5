package group

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-lunch/internal/events"
	"ms-lunch/internal/group/db"
	"ms-lunch/internal/lock"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/metrics"
	"ms-lunch/internal/models"
	"ms-lunch/internal/qr"
	"ms-lunch/internal/utils"
)

const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 1440
	minNameLength      = 3
	maxNameLength      = 100
	joinCodeAttempts   = 10
)

type DBLayer interface {
	CreateGroup(ctx context.Context, g *models.Group) error
	JoinCodeExists(ctx context.Context, code string) (bool, error)
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	ListGroups(ctx context.Context, f db.Filter) ([]models.Group, error)
	ListOpenGroups(ctx context.Context) ([]models.Group, error)
	CloseGroup(ctx context.Context, id string, now time.Time) (bool, error)
	DeleteGroup(ctx context.Context, id string) error
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	CountMembers(ctx context.Context, groupID string) (int, error)
	AddMember(ctx context.Context, groupID, userID string, now time.Time) (bool, error)
}

type RestaurantStore interface {
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
}

// Locker serializes joins of one group across instances.
type Locker interface {
	WithGroupLock(ctx context.Context, groupID string, fn func() error) error
}

// ExpiryScheduler arms a timer that fires when a group reaches end_at.
type ExpiryScheduler interface {
	ScheduleGroupExpiry(ctx context.Context, groupID string, endAt time.Time) error
	CancelGroupExpiry(ctx context.Context, groupID string) error
}

// Settlement answers whether every payment of a closed group is settled.
type Settlement interface {
	CanDeleteGroup(ctx context.Context, groupID string) (bool, error)
}

type Service struct {
	DB          DBLayer
	Restaurants RestaurantStore
	Locks       Locker
	Expiry      ExpiryScheduler
	Payments    Settlement
	Invites     *qr.InviteCodec
	Events      events.Publisher
	Metrics     *metrics.Metrics
	Logger      *logger.Logger
	Now         func() time.Time

	MinDuration int
	MaxDuration int
}

func NewService(d DBLayer, restaurants RestaurantStore, locks Locker, payments Settlement, pub events.Publisher, log *logger.Logger) *Service {
	return &Service{
		DB:          d,
		Restaurants: restaurants,
		Locks:       locks,
		Payments:    payments,
		Events:      pub,
		Logger:      log,
		Now:         time.Now,
		MinDuration: MinDurationMinutes,
		MaxDuration: MaxDurationMinutes,
	}
}

type CreateGroupInput struct {
	RestaurantID    string `json:"restaurant_id"`
	Name            string `json:"name"`
	Visibility      string `json:"visibility"`
	DurationMinutes int    `json:"duration_minutes"`
	MaxMembers      int    `json:"max_members"`
}

type ListQuery struct {
	ViewerID   string
	Mine       bool
	Visibility string
	Search     string
}

func (s *Service) now() time.Time {
	return s.Now().UTC()
}

// ---------------- CREATE / READ ----------------

func (s *Service) CreateGroup(ctx context.Context, ownerID string, in CreateGroupInput) (*models.Group, error) {
	name := strings.TrimSpace(in.Name)
	if len(name) < minNameLength || len(name) > maxNameLength {
		return nil, utils.Invalid(utils.CodeInvalidInput, fmt.Sprintf("Name must be %d-%d characters", minNameLength, maxNameLength))
	}
	visibility := strings.ToUpper(strings.TrimSpace(in.Visibility))
	if visibility == "" {
		visibility = models.VisibilityPublic
	}
	if visibility != models.VisibilityPublic && visibility != models.VisibilityPrivate {
		return nil, utils.Invalid("INVALID_VISIBILITY", "Visibility must be PUBLIC or PRIVATE")
	}
	if in.DurationMinutes < s.MinDuration || in.DurationMinutes > s.MaxDuration {
		return nil, utils.Invalid("INVALID_DURATION", fmt.Sprintf("Duration must be between %d and %d minutes", s.MinDuration, s.MaxDuration))
	}
	if in.MaxMembers < 0 || in.MaxMembers == 1 {
		return nil, utils.Invalid("INVALID_MAX_MEMBERS", "Max members must be at least 2, or 0 for no limit")
	}

	rest, err := s.Restaurants.GetRestaurant(ctx, in.RestaurantID)
	if err != nil {
		return nil, err
	}
	if rest == nil {
		return nil, utils.NotFound("RESTAURANT_NOT_FOUND", "Restaurant not found")
	}
	if !rest.IsActive {
		return nil, utils.Invalid("RESTAURANT_NOT_AVAILABLE", "Restaurant is not available")
	}

	now := s.now()
	g := &models.Group{
		ID:           utils.GenerateID(),
		OwnerID:      ownerID,
		RestaurantID: rest.ID,
		Name:         name,
		Visibility:   visibility,
		EndAt:        now.Add(time.Duration(in.DurationMinutes) * time.Minute),
		MaxMembers:   in.MaxMembers,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if visibility == models.VisibilityPrivate {
		code, err := s.uniqueJoinCode(ctx)
		if err != nil {
			return nil, err
		}
		g.JoinCode = code
	}

	if err := s.DB.CreateGroup(ctx, g); err != nil {
		return nil, err
	}
	if s.Expiry != nil {
		if err := s.Expiry.ScheduleGroupExpiry(ctx, g.ID, g.EndAt); err != nil {
			s.Logger.Warn("GROUP", fmt.Sprintf("Failed to schedule expiry of %s: %v", g.ID, err))
		}
	}

	s.Logger.LogGroup("CREATE", g.ID, fmt.Sprintf("%s group %q at %s until %s", visibility, name, rest.Name, g.EndAt.Format(time.RFC3339)))
	s.Events.Publish(ctx, models.DomainEvent{
		Type:       models.EventGroupCreated,
		GroupID:    g.ID,
		UserID:     ownerID,
		Attributes: map[string]string{"restaurant_id": rest.ID, "visibility": visibility},
	})
	return s.DB.GetGroup(ctx, g.ID)
}

func (s *Service) uniqueJoinCode(ctx context.Context) (string, error) {
	for i := 0; i < joinCodeAttempts; i++ {
		code, err := utils.GenerateJoinCode()
		if err != nil {
			return "", err
		}
		taken, err := s.DB.JoinCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", utils.NewError(utils.KindInternal, "JOIN_CODE_GENERATION_FAILED", "Failed to generate unique join code")
}

// ListGroups returns open PUBLIC groups, or with Mine every open group the
// viewer owns or joined.
func (s *Service) ListGroups(ctx context.Context, q ListQuery) ([]models.Group, error) {
	f := db.Filter{Search: strings.TrimSpace(q.Search)}
	if q.Mine && q.ViewerID != "" {
		f.MemberID = q.ViewerID
		f.Visibility = strings.ToUpper(q.Visibility)
	} else {
		f.Visibility = models.VisibilityPublic
	}
	groups, err := s.DB.ListGroups(ctx, f)
	if err != nil {
		return nil, err
	}
	live := groups[:0]
	for i := range groups {
		if err := s.closeIfDue(ctx, &groups[i]); err != nil {
			return nil, err
		}
		if !groups[i].IsClosed {
			live = append(live, groups[i])
		}
	}
	return live, nil
}

// Find loads a group or reports GROUP_NOT_FOUND.
func (s *Service) Find(ctx context.Context, id string) (*models.Group, error) {
	g, err := s.DB.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, utils.NotFound("GROUP_NOT_FOUND", "Group not found")
	}
	return g, nil
}

// FindCurrent is Find followed by a lazy close of a group whose end_at has passed.
func (s *Service) FindCurrent(ctx context.Context, id string) (*models.Group, error) {
	g, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.closeIfDue(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) closeIfDue(ctx context.Context, g *models.Group) error {
	if g.IsClosed || !g.Expired(s.now()) {
		return nil
	}
	if _, err := s.close(ctx, g.ID, "expired"); err != nil {
		return err
	}
	g.IsClosed = true
	return nil
}

// GetGroup hides PRIVATE groups from anyone but their members.
func (s *Service) GetGroup(ctx context.Context, id, viewerID string) (*models.Group, error) {
	g, err := s.FindCurrent(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.IsPrivate() && !HasMember(g, viewerID) {
		return nil, utils.Forbidden("GROUP_ACCESS_DENIED", "Access denied to private group")
	}
	if !HasMember(g, viewerID) {
		g.JoinCode = ""
	}
	return g, nil
}

// HasMember reports whether userID owns or belongs to g. Members must be loaded.
func HasMember(g *models.Group, userID string) bool {
	if userID == "" {
		return false
	}
	if g.OwnerID == userID {
		return true
	}
	for _, m := range g.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// RequireMember loads a group and checks that userID owns or belongs to it.
func (s *Service) RequireMember(ctx context.Context, groupID, userID string) (*models.Group, error) {
	g, err := s.Find(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !HasMember(g, userID) {
		return nil, utils.Forbidden("NOT_GROUP_MEMBER", "Not a member of this group")
	}
	return g, nil
}

// ---------------- JOIN ----------------

func (s *Service) JoinGroup(ctx context.Context, groupID, userID, joinCode string) (*models.Group, error) {
	g, err := s.Find(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureOpen(ctx, g); err != nil {
		return nil, err
	}
	if HasMember(g, userID) {
		return nil, alreadyMember()
	}
	if g.IsPrivate() {
		code := strings.ToUpper(strings.TrimSpace(joinCode))
		if code == "" {
			return nil, utils.Invalid("JOIN_CODE_REQUIRED", "Join code required for private group")
		}
		if !utils.IsValidJoinCodeFormat(code) {
			return nil, utils.Invalid("INVALID_JOIN_CODE", "Invalid join code format")
		}
		if code != g.JoinCode {
			return nil, utils.Invalid("INVALID_JOIN_CODE", "Invalid join code")
		}
	}

	err = s.Locks.WithGroupLock(ctx, groupID, func() error {
		if g.MaxMembers > 0 {
			n, err := s.DB.CountMembers(ctx, groupID)
			if err != nil {
				return err
			}
			if n >= g.MaxMembers {
				return utils.Invalid("GROUP_FULL", "Group is full")
			}
		}
		added, err := s.DB.AddMember(ctx, groupID, userID, s.now())
		if err != nil {
			return err
		}
		if !added {
			return alreadyMember()
		}
		return nil
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, utils.Conflict("GROUP_BUSY", "Group is busy, try again")
	}
	if err != nil {
		return nil, err
	}

	s.Logger.LogGroup("JOIN", groupID, "User "+userID+" joined")
	s.Events.Publish(ctx, models.DomainEvent{Type: models.EventMemberJoined, GroupID: groupID, UserID: userID})
	return s.DB.GetGroup(ctx, groupID)
}

func alreadyMember() error {
	return utils.Conflict("ALREADY_MEMBER", "Already a member of this group")
}

// EnsureOpen rejects closed groups and lazily closes groups whose end_at has passed.
func (s *Service) EnsureOpen(ctx context.Context, g *models.Group) error {
	if g.IsClosed {
		return utils.Invalid("GROUP_CLOSED", "Group is closed")
	}
	if g.Expired(s.now()) {
		if _, err := s.close(ctx, g.ID, "expired"); err != nil {
			return err
		}
		g.IsClosed = true
		return utils.Invalid("GROUP_EXPIRED", "Group has expired")
	}
	return nil
}

// ---------------- INVITES ----------------

// InviteQR renders a QR code carrying a sealed invite to the group.
func (s *Service) InviteQR(ctx context.Context, groupID, userID string) ([]byte, string, error) {
	if s.Invites == nil {
		return nil, "", utils.NewError(utils.KindInternal, "INVITES_DISABLED", "Invites are not configured")
	}
	g, err := s.RequireMember(ctx, groupID, userID)
	if err != nil {
		return nil, "", err
	}
	if g.IsClosed {
		return nil, "", utils.Invalid("GROUP_CLOSED", "Group is closed")
	}
	token, err := s.Invites.Seal(qr.Invite{GroupID: g.ID, JoinCode: g.JoinCode, IssuedAt: s.now()})
	if err != nil {
		return nil, "", err
	}
	png, err := s.Invites.PNG(token)
	if err != nil {
		return nil, "", err
	}
	return png, token, nil
}

func (s *Service) JoinByInvite(ctx context.Context, token, userID string) (*models.Group, error) {
	if s.Invites == nil {
		return nil, utils.NewError(utils.KindInternal, "INVITES_DISABLED", "Invites are not configured")
	}
	inv, err := s.Invites.Open(token)
	if err != nil {
		return nil, utils.Invalid("INVALID_INVITE", "Invite is invalid")
	}
	return s.JoinGroup(ctx, inv.GroupID, userID, inv.JoinCode)
}

// ---------------- CLOSE / DELETE ----------------

// CloseGroup is the owner's explicit close. Closing a closed group is a no-op.
func (s *Service) CloseGroup(ctx context.Context, groupID, userID string) (*models.Group, error) {
	g, err := s.Find(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.OwnerID != userID {
		return nil, utils.Forbidden("NOT_GROUP_OWNER", "Only the group owner can close the group")
	}
	if !g.IsClosed {
		if _, err := s.close(ctx, groupID, "owner"); err != nil {
			return nil, err
		}
	}
	return s.DB.GetGroup(ctx, groupID)
}

// CloseExpiredGroups closes every open group past its end_at and returns how many it closed.
func (s *Service) CloseExpiredGroups(ctx context.Context) (int, error) {
	open, err := s.DB.ListOpenGroups(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	closed := 0
	for _, g := range open {
		if !g.Expired(now) {
			continue
		}
		ok, err := s.close(ctx, g.ID, "sweep")
		if err != nil {
			return closed, err
		}
		if ok {
			closed++
		}
	}
	if closed > 0 {
		s.Logger.Info("SWEEPER", fmt.Sprintf("Closed %d expired groups", closed))
	}
	return closed, nil
}

// CloseIfExpired is called when a group's expiry timer fires.
func (s *Service) CloseIfExpired(ctx context.Context, groupID string) (bool, error) {
	g, err := s.DB.GetGroup(ctx, groupID)
	if err != nil || g == nil || g.IsClosed {
		return false, err
	}
	if !g.Expired(s.now()) {
		return false, nil
	}
	return s.close(ctx, groupID, "timer")
}

func (s *Service) close(ctx context.Context, groupID, reason string) (bool, error) {
	closed, err := s.DB.CloseGroup(ctx, groupID, s.now())
	if err != nil {
		return false, err
	}
	if !closed {
		return false, nil
	}
	if s.Expiry != nil && reason != "timer" {
		if err := s.Expiry.CancelGroupExpiry(ctx, groupID); err != nil {
			s.Logger.Warn("GROUP", fmt.Sprintf("Failed to cancel expiry of %s: %v", groupID, err))
		}
	}
	if s.Metrics != nil {
		s.Metrics.GroupsClosed.WithLabelValues(reason).Inc()
	}
	s.Logger.LogGroup("CLOSE", groupID, "Closed ("+reason+"), payments initialized")
	s.Events.Publish(ctx, models.DomainEvent{
		Type:       models.EventGroupClosed,
		GroupID:    groupID,
		Attributes: map[string]string{"reason": reason},
	})
	return true, nil
}

// DeleteGroup removes a closed group once every payment is settled.
func (s *Service) DeleteGroup(ctx context.Context, groupID, userID string) error {
	g, err := s.FindCurrent(ctx, groupID)
	if err != nil {
		return err
	}
	if g.OwnerID != userID {
		return utils.Forbidden("NOT_GROUP_OWNER", "Only the group owner can delete the group")
	}
	if !g.IsClosed {
		return utils.Invalid("GROUP_STILL_OPEN", "Cannot delete a group that is still open")
	}
	ok, err := s.Payments.CanDeleteGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return utils.Invalid("PAYMENTS_OUTSTANDING", "Cannot delete group until all payments are confirmed")
	}
	if err := s.DB.DeleteGroup(ctx, groupID); err != nil {
		return err
	}
	s.Logger.LogGroup("DELETE", groupID, "Deleted by owner")
	s.Events.Publish(ctx, models.DomainEvent{Type: models.EventGroupDeleted, GroupID: groupID, UserID: userID})
	return nil
}
