// Package blacklist manages normalized exclusion entries.
package blacklist

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"
)

// Repository is the blacklist persistence surface.
type Repository interface {
	Insert(ctx context.Context, e *domain.BlacklistEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.BlacklistEntry, error)
	FindByType(ctx context.Context, entryType domain.BlacklistType, limit, offset int) ([]*domain.BlacklistEntry, error)
	FindAll(ctx context.Context, limit, offset int) ([]*domain.BlacklistEntry, error)
	Exists(ctx context.Context, entryType domain.BlacklistType, value string) (bool, error)
}

// UserRepository resolves the acting admin for the privilege gate.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type Service struct {
	repo     Repository
	userRepo UserRepository
	logger   logger.Logger
}

func NewService(repo Repository, userRepo UserRepository, log logger.Logger) *Service {
	return &Service{repo: repo, userRepo: userRepo, logger: log}
}

// Normalize canonicalizes a blacklist value: trimmed and lower-cased.
// Lookups and writes both go through this, so the table never holds two
// casings of the same value.
func Normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func validType(t domain.BlacklistType) bool {
	switch t {
	case domain.BlacklistIP, domain.BlacklistEmailDomain, domain.BlacklistDeviceFingerprint:
		return true
	}
	return false
}

type AddRequest struct {
	ActorID uuid.UUID            `json:"actor_id" validate:"required"`
	Type    domain.BlacklistType `json:"type" validate:"required,oneof=ip email_domain device_fingerprint"`
	Value   string               `json:"value" validate:"required"`
	Reason  string               `json:"reason"`
}

func (s *Service) Add(ctx context.Context, req *AddRequest) (*domain.BlacklistEntry, error) {
	actor, err := s.userRepo.FindByID(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsSuperAdmin() {
		return nil, errors.ErrSuperAdminRequired
	}

	if !validType(req.Type) {
		return nil, errors.ErrInvalidBlacklistType
	}

	value := Normalize(req.Value)
	if value == "" {
		return nil, errors.ErrInvalidBlacklistType
	}

	entry := &domain.BlacklistEntry{
		ID:        uuid.New(),
		Type:      req.Type,
		Value:     value,
		Reason:    strings.TrimSpace(req.Reason),
		AddedBy:   req.ActorID,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Insert(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("Blacklist entry added", map[string]interface{}{
		"entry_id": entry.ID,
		"type":     entry.Type,
		"actor_id": req.ActorID,
	})

	return entry, nil
}

func (s *Service) Remove(ctx context.Context, actorID, entryID uuid.UUID) error {
	actor, err := s.userRepo.FindByID(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.IsSuperAdmin() {
		return errors.ErrSuperAdminRequired
	}

	if err := s.repo.Delete(ctx, entryID); err != nil {
		return err
	}

	s.logger.Info("Blacklist entry removed", map[string]interface{}{
		"entry_id": entryID,
		"actor_id": actorID,
	})
	return nil
}

func (s *Service) List(ctx context.Context, entryType domain.BlacklistType, limit, offset int) ([]*domain.BlacklistEntry, error) {
	if entryType == "" {
		return s.repo.FindAll(ctx, limit, offset)
	}
	if !validType(entryType) {
		return nil, errors.ErrInvalidBlacklistType
	}
	return s.repo.FindByType(ctx, entryType, limit, offset)
}

// IsListed reports whether the value, after normalization, is blacklisted.
func (s *Service) IsListed(ctx context.Context, entryType domain.BlacklistType, value string) (bool, error) {
	if !validType(entryType) {
		return false, errors.ErrInvalidBlacklistType
	}
	return s.repo.Exists(ctx, entryType, Normalize(value))
}
