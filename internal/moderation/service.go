// Package moderation implements the admin review workflow for fraud flags
// and disputes.
package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/internal/realtime"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"
)

// FlagRepository covers flag reads and the review write.
type FlagRepository interface {
	Insert(ctx context.Context, f *domain.FraudFlag) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.FraudFlag, error)
	Review(ctx context.Context, id uuid.UUID, status domain.FlagStatus, reviewedBy uuid.UUID, notes string, reviewedAt time.Time) (bool, error)
	FindByStatus(ctx context.Context, status domain.FlagStatus, limit, offset int) ([]*domain.FraudFlag, error)
	FindByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.FraudFlag, error)
	CountByStatus(ctx context.Context, status domain.FlagStatus) (int, error)
}

// OrderRepository covers the dispute-resolution write path.
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ResolveDispute(ctx context.Context, id uuid.UUID, to domain.OrderStatus, resolvedBy uuid.UUID, notes string) (bool, error)
}

// UserRepository resolves the acting admin for the privilege gate.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// MessageRepository appends the system note that closes a dispute thread.
type MessageRepository interface {
	Insert(ctx context.Context, m *domain.ConversationMessage) error
}

// Notifier sends user-facing notifications.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, eventType string, data map[string]interface{}) error
}

type Service struct {
	flagRepo    FlagRepository
	orderRepo   OrderRepository
	userRepo    UserRepository
	messageRepo MessageRepository
	notifier    Notifier
	bus         *realtime.Bus
	logger      logger.Logger
}

func NewService(
	flagRepo FlagRepository,
	orderRepo OrderRepository,
	userRepo UserRepository,
	messageRepo MessageRepository,
	notifier Notifier,
	bus *realtime.Bus,
	log logger.Logger,
) *Service {
	return &Service{
		flagRepo:    flagRepo,
		orderRepo:   orderRepo,
		userRepo:    userRepo,
		messageRepo: messageRepo,
		notifier:    notifier,
		bus:         bus,
		logger:      log,
	}
}

// requireSuperAdmin rejects the call before any write when the actor lacks
// the privilege.
func (s *Service) requireSuperAdmin(ctx context.Context, actorID uuid.UUID) (*domain.User, error) {
	actor, err := s.userRepo.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsSuperAdmin() {
		s.logger.Warn("Moderation call without privilege", map[string]interface{}{
			"actor_id": actorID,
			"role":     actor.Role,
		})
		return nil, errors.ErrSuperAdminRequired
	}
	return actor, nil
}

type ReviewFlagRequest struct {
	FlagID  uuid.UUID         `json:"flag_id" validate:"required"`
	ActorID uuid.UUID         `json:"actor_id" validate:"required"`
	Status  domain.FlagStatus `json:"status" validate:"required,oneof=reviewed resolved false_positive"`
	Notes   string            `json:"notes"`
}

// ReviewFlag moves an active flag into a terminal review state.
func (s *Service) ReviewFlag(ctx context.Context, req *ReviewFlagRequest) (*domain.FraudFlag, error) {
	if _, err := s.requireSuperAdmin(ctx, req.ActorID); err != nil {
		return nil, err
	}

	switch req.Status {
	case domain.FlagStatusReviewed, domain.FlagStatusResolved, domain.FlagStatusFalsePositive:
	default:
		return nil, errors.ErrIllegalTransition
	}

	moved, err := s.flagRepo.Review(ctx, req.FlagID, req.Status, req.ActorID, req.Notes, time.Now())
	if err != nil {
		return nil, err
	}
	if !moved {
		// distinguish missing from already-terminal
		if _, findErr := s.flagRepo.FindByID(ctx, req.FlagID); findErr != nil {
			return nil, findErr
		}
		return nil, errors.ErrFlagNotActive
	}

	flag, err := s.flagRepo.FindByID(ctx, req.FlagID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Fraud flag reviewed", map[string]interface{}{
		"flag_id":  flag.ID,
		"status":   flag.Status,
		"actor_id": req.ActorID,
	})

	s.publishFlagChange("flag_reviewed", flag)

	return flag, nil
}

func (s *Service) publishFlagChange(eventType string, flag *domain.FraudFlag) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(realtime.TableFraudFlags, realtime.Event{
		Type:      eventType,
		Status:    string(flag.Status),
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"flag_id": flag.ID.String(),
			"user_id": flag.UserID.String(),
			"type":    string(flag.Type),
		},
	})
}

type ManualFlagRequest struct {
	ActorID     uuid.UUID           `json:"actor_id" validate:"required"`
	UserID      uuid.UUID           `json:"user_id" validate:"required"`
	Type        domain.FraudFlagType `json:"type" validate:"required"`
	Severity    domain.FlagSeverity  `json:"severity" validate:"required,oneof=low medium high critical"`
	Description string              `json:"description" validate:"required"`
}

// CreateManualFlag raises a flag by hand. The same dedup invariant applies
// as for scanner-raised flags.
func (s *Service) CreateManualFlag(ctx context.Context, req *ManualFlagRequest) (*domain.FraudFlag, error) {
	if _, err := s.requireSuperAdmin(ctx, req.ActorID); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.FindByID(ctx, req.UserID); err != nil {
		return nil, err
	}

	now := time.Now()
	flag := &domain.FraudFlag{
		ID:              uuid.New(),
		UserID:          req.UserID,
		Type:            req.Type,
		Severity:        req.Severity,
		Description:     req.Description,
		Status:          domain.FlagStatusActive,
		AutoDetected:    false,
		DetectionSource: "manual:" + req.ActorID.String(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	created, err := s.flagRepo.Insert(ctx, flag)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, errors.ErrFlagAlreadyActive
	}

	s.logger.Info("Manual fraud flag raised", map[string]interface{}{
		"flag_id":  flag.ID,
		"user_id":  req.UserID,
		"type":     req.Type,
		"actor_id": req.ActorID,
	})

	s.publishFlagChange("flag_raised", flag)

	return flag, nil
}

// ResolutionSide names who the dispute is decided for.
type ResolutionSide string

const (
	ResolveForBuyer  ResolutionSide = "buyer"
	ResolveForSeller ResolutionSide = "seller"
)

type ResolveDisputeRequest struct {
	OrderID uuid.UUID      `json:"order_id" validate:"required"`
	ActorID uuid.UUID      `json:"actor_id" validate:"required"`
	Side    ResolutionSide `json:"side" validate:"required,oneof=buyer seller"`
	Notes   string         `json:"notes"`
}

// ResolveDispute closes a dispute for one side: buyer means refund, seller
// means complete. The conditional update is what rejects a second
// resolution of the same order.
func (s *Service) ResolveDispute(ctx context.Context, req *ResolveDisputeRequest) (*domain.Order, error) {
	if _, err := s.requireSuperAdmin(ctx, req.ActorID); err != nil {
		return nil, err
	}

	var target domain.OrderStatus
	switch req.Side {
	case ResolveForBuyer:
		target = domain.OrderStatusRefunded
	case ResolveForSeller:
		target = domain.OrderStatusCompleted
	default:
		return nil, errors.ErrIllegalTransition
	}

	o, err := s.orderRepo.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	moved, err := s.orderRepo.ResolveDispute(ctx, req.OrderID, target, req.ActorID, req.Notes)
	if err != nil {
		return nil, err
	}
	if !moved {
		if o.Status == domain.OrderStatusRefunded || o.Status == domain.OrderStatusCompleted {
			return nil, errors.ErrDisputeAlreadyResolved
		}
		return nil, errors.ErrOrderNotDisputed
	}

	o, err = s.orderRepo.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	s.appendClosingMessage(ctx, o, req.Side, req.Notes)

	outcome := "refunded to the buyer"
	if req.Side == ResolveForSeller {
		outcome = "completed in the seller's favor"
	}

	s.notifyAsync(o.BuyerID, "DISPUTE_RESOLVED", map[string]interface{}{
		"order_id": o.ID.String(),
		"outcome":  outcome,
	})
	s.notifyAsync(o.SellerID, "DISPUTE_RESOLVED", map[string]interface{}{
		"order_id": o.ID.String(),
		"outcome":  outcome,
	})
	if req.Side == ResolveForBuyer {
		s.notifyAsync(o.BuyerID, "ORDER_REFUNDED", map[string]interface{}{
			"order_id": o.ID.String(),
		})
	}

	if s.bus != nil {
		s.bus.Publish(realtime.TableOrders, realtime.Event{
			Type:      "dispute_resolved",
			OrderID:   o.ID,
			Status:    string(o.Status),
			Timestamp: time.Now(),
			Data:      map[string]interface{}{"side": string(req.Side)},
		})
	}

	s.logger.Info("Dispute resolved", map[string]interface{}{
		"order_id": o.ID,
		"side":     req.Side,
		"status":   o.Status,
		"actor_id": req.ActorID,
	})

	return o, nil
}

// appendClosingMessage writes the immutable system note that closes the
// order's conversation thread to further dispute action. Best effort: a
// failed write never rolls back the resolution.
func (s *Service) appendClosingMessage(ctx context.Context, o *domain.Order, side ResolutionSide, notes string) {
	body := fmt.Sprintf("Dispute resolved in favor of the %s. Order is now %s.", side, o.Status)
	if notes != "" {
		body += " Notes: " + notes
	}

	msg := &domain.ConversationMessage{
		ID:        uuid.New(),
		OrderID:   o.ID,
		Body:      body,
		IsSystem:  true,
		CreatedAt: time.Now(),
	}

	if err := s.messageRepo.Insert(ctx, msg); err != nil {
		s.logger.Error("Failed to append dispute closing message", map[string]interface{}{
			"order_id": o.ID,
			"error":    err.Error(),
		})
	}
}

// ListFlags pages flags by status for the review queue.
func (s *Service) ListFlags(ctx context.Context, actorID uuid.UUID, status domain.FlagStatus, limit, offset int) ([]*domain.FraudFlag, int, error) {
	if _, err := s.requireSuperAdmin(ctx, actorID); err != nil {
		return nil, 0, err
	}

	flags, err := s.flagRepo.FindByStatus(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.flagRepo.CountByStatus(ctx, status)
	if err != nil {
		return nil, 0, err
	}
	return flags, total, nil
}

// UserFlags returns a user's full flag history.
func (s *Service) UserFlags(ctx context.Context, actorID, userID uuid.UUID, limit, offset int) ([]*domain.FraudFlag, error) {
	if _, err := s.requireSuperAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.flagRepo.FindByUser(ctx, userID, limit, offset)
}

func (s *Service) notifyAsync(userID uuid.UUID, eventType string, data map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.notifier.Notify(ctx, userID, eventType, data); err != nil {
			s.logger.Error("Notification dispatch failed", map[string]interface{}{
				"user_id": userID,
				"event":   eventType,
				"error":   err.Error(),
			})
		}
	}()
}
