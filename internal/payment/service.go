// Package payment tracks who has paid the group owner for a closed group order.
package payment

import (
	"context"
	"fmt"
	"time"

	"ms-lunch/internal/events"
	"ms-lunch/internal/group"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
	"ms-lunch/internal/payment/storage"
	"ms-lunch/internal/utils"
)

type Groups interface {
	FindCurrent(ctx context.Context, id string) (*models.Group, error)
}

type Service struct {
	Store  storage.Store
	Groups Groups
	Events events.Publisher
	Logger *logger.Logger
	Now    func() time.Time
}

func NewService(store storage.Store, groups Groups, pub events.Publisher, log *logger.Logger) *Service {
	return &Service{Store: store, Groups: groups, Events: pub, Logger: log, Now: time.Now}
}

type Stats struct {
	Total        int  `json:"total"`
	Paid         int  `json:"paid"`
	Unpaid       int  `json:"unpaid"`
	Pending      int  `json:"pending"`
	AllConfirmed bool `json:"all_confirmed"`
}

type GroupPayments struct {
	Payments []models.Payment `json:"payments"`
	Stats    Stats            `json:"stats"`
}

func (s *Service) InitializePayments(ctx context.Context, groupID string) (int, error) {
	n, err := s.Store.InitializePayments(ctx, groupID, s.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.Logger.LogPayment("INIT", groupID, fmt.Sprintf("%d payment records created", n))
	}
	return n, nil
}

// closedGroup loads a group and rejects it while orders are still being collected.
func (s *Service) closedGroup(ctx context.Context, groupID string) (*models.Group, error) {
	g, err := s.Groups.FindCurrent(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsClosed {
		return nil, utils.Invalid("GROUP_NOT_CLOSED", "Payments open once the group is closed")
	}
	return g, nil
}

// MarkPending lets a member report that they have paid the owner.
func (s *Service) MarkPending(ctx context.Context, groupID, userID string) (*models.Payment, error) {
	g, err := s.closedGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(g, userID) {
		return nil, utils.Forbidden("NOT_GROUP_MEMBER", "Not a member of this group")
	}
	p, err := s.Store.GetPayment(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, utils.NotFound("PAYMENT_NOT_FOUND", "Payment record not found")
	}
	ok, err := s.Store.MarkPending(ctx, groupID, userID, s.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, utils.Invalid("INVALID_PAYMENT_TRANSITION", fmt.Sprintf("Cannot mark a %s payment as pending", p.Status))
	}

	s.Logger.LogPayment("PENDING", groupID, "User "+userID+" reported payment")
	s.publish(ctx, groupID, userID, models.PaymentPending)
	return s.Store.GetPayment(ctx, groupID, userID)
}

// UpdateStatus is the owner's view of a member's payment. PAID records the
// owner's confirmation, any other status clears it.
func (s *Service) UpdateStatus(ctx context.Context, groupID, targetUserID, ownerID string, status models.PaymentStatus) (*models.Payment, error) {
	if !status.Valid() {
		return nil, utils.Invalid("INVALID_PAYMENT_STATUS", "Status must be UNPAID, PENDING or PAID")
	}
	g, err := s.Groups.FindCurrent(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.OwnerID != ownerID {
		return nil, utils.Forbidden("NOT_GROUP_OWNER", "Only the group owner can update payments")
	}
	if !g.IsClosed {
		return nil, utils.Invalid("GROUP_NOT_CLOSED", "Payments open once the group is closed")
	}
	if !group.HasMember(g, targetUserID) {
		return nil, utils.Invalid("NOT_GROUP_MEMBER", "Target user is not a member of this group")
	}
	p, err := s.Store.GetPayment(ctx, groupID, targetUserID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, utils.NotFound("PAYMENT_NOT_FOUND", "Payment record not found")
	}

	now := s.Now()
	p.Status = status
	p.UpdatedAt = now
	if status == models.PaymentPaid {
		p.ConfirmedByOwner = true
		p.ConfirmedAt = now
	} else {
		p.ConfirmedByOwner = false
		p.ConfirmedAt = time.Time{}
	}
	if err := s.Store.UpdatePayment(ctx, p); err != nil {
		return nil, err
	}

	s.Logger.LogPayment("UPDATE", groupID, fmt.Sprintf("User %s set to %s by owner", targetUserID, status))
	s.publish(ctx, groupID, targetUserID, status)
	return p, nil
}

func (s *Service) GroupPayments(ctx context.Context, groupID, userID string) (*GroupPayments, error) {
	g, err := s.Groups.FindCurrent(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(g, userID) {
		return nil, utils.Forbidden("NOT_GROUP_MEMBER", "Not a member of this group")
	}
	payments, err := s.Store.ListPayments(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	return &GroupPayments{Payments: payments, Stats: Summarize(payments)}, nil
}

func Summarize(payments []models.Payment) Stats {
	st := Stats{Total: len(payments), AllConfirmed: len(payments) > 0}
	for i := range payments {
		switch payments[i].Status {
		case models.PaymentPaid:
			st.Paid++
		case models.PaymentPending:
			st.Pending++
		default:
			st.Unpaid++
		}
		if !payments[i].Settled() {
			st.AllConfirmed = false
		}
	}
	return st
}

// CanDeleteGroup reports whether every payment of the group is paid and confirmed.
// A group without payment records cannot be deleted.
func (s *Service) CanDeleteGroup(ctx context.Context, groupID string) (bool, error) {
	payments, err := s.Store.ListPayments(ctx, groupID)
	if err != nil {
		return false, err
	}
	return Summarize(payments).AllConfirmed, nil
}

func (s *Service) publish(ctx context.Context, groupID, userID string, status models.PaymentStatus) {
	s.Events.Publish(ctx, models.DomainEvent{
		Type:       models.EventPaymentUpdated,
		GroupID:    groupID,
		UserID:     userID,
		Attributes: map[string]string{"status": string(status)},
	})
}
