// Package fraud implements the batch pattern scanner.
package fraud

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/internal/repository/postgres"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/config"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"
)

// UserRepository pages the population under scan.
type UserRepository interface {
	FindActivePage(ctx context.Context, limit, offset int) ([]*domain.User, error)
}

// OrderStats provides the aggregate order reads the heuristics consume.
type OrderStats interface {
	CountInvolvingUser(ctx context.Context, userID uuid.UUID) (int, error)
	CountDisputesInvolvingUser(ctx context.Context, userID uuid.UUID) (int, error)
	CountRecentOrders(ctx context.Context, userID uuid.UUID, window time.Duration) (int, error)
	CountFastDeliveries(ctx context.Context, sellerID uuid.UUID, window time.Duration) (int, error)
}

// ListingStats provides the listing reads for pricing heuristics.
type ListingStats interface {
	FindActiveBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Listing, error)
	MarketPriceForGame(ctx context.Context, game string, exclude uuid.UUID) (*postgres.MarketPrice, error)
}

// FlagRepository persists flags with insert-or-skip dedup semantics.
type FlagRepository interface {
	Insert(ctx context.Context, f *domain.FraudFlag) (bool, error)
}

// RunRepository records the scan audit trail.
type RunRepository interface {
	Create(ctx context.Context, run *domain.ScanRun) error
	Complete(ctx context.Context, id uuid.UUID, status domain.ScanRunStatus, usersScanned, flagsCreated int, durationMS int64) error
}

// ScanResult is the aggregate outcome of one full-population scan.
type ScanResult struct {
	RunID        uuid.UUID `json:"run_id"`
	UsersScanned int       `json:"users_scanned"`
	FlagsCreated int       `json:"flags_created"`
	Errors       []string  `json:"errors,omitempty"`
}

const scanPageSize = 200

// Scanner evaluates the fraud heuristics over every active account. One
// scan runs at a time; users are fanned out to a bounded worker pool and a
// failure on one user never aborts the batch.
type Scanner struct {
	users    UserRepository
	orders   OrderStats
	listings ListingStats
	flags    FlagRepository
	runs     RunRepository
	cfg      config.FraudConfig
	logger   logger.Logger

	running int32
}

func NewScanner(
	users UserRepository,
	orders OrderStats,
	listings ListingStats,
	flags FlagRepository,
	runs RunRepository,
	cfg config.FraudConfig,
	log logger.Logger,
) *Scanner {
	return &Scanner{
		users:    users,
		orders:   orders,
		listings: listings,
		flags:    flags,
		runs:     runs,
		cfg:      cfg,
		logger:   log,
	}
}

// Scan walks the full user population and raises deduplicated flags.
func (s *Scanner) Scan(ctx context.Context, triggeredBy uuid.UUID) (*ScanResult, error) {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return nil, errors.ErrScanInProgress
	}
	defer atomic.StoreInt32(&s.running, 0)

	run := &domain.ScanRun{
		ID:          uuid.New(),
		ScanType:    "full_population",
		TriggeredBy: triggeredBy.String(),
		Status:      domain.ScanRunStatusRunning,
		StartedAt:   time.Now(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	start := time.Now()

	concurrency := s.cfg.ScanConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		mu           sync.Mutex
		usersScanned int
		flagsCreated int
		scanErrors   []string
	)

	jobs := make(chan *domain.User)
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range jobs {
				created, err := s.evaluateUser(ctx, u)

				mu.Lock()
				usersScanned++
				flagsCreated += created
				if err != nil {
					scanErrors = append(scanErrors, fmt.Sprintf("user %s: %v", u.ID, err))
				}
				mu.Unlock()
			}
		}()
	}

	feedErr := s.feedUsers(ctx, jobs)
	close(jobs)
	wg.Wait()

	durationMS := time.Since(start).Milliseconds()

	status := domain.ScanRunStatusCompleted
	if feedErr != nil {
		status = domain.ScanRunStatusFailed
		scanErrors = append(scanErrors, fmt.Sprintf("user paging: %v", feedErr))
	}

	if err := s.runs.Complete(ctx, run.ID, status, usersScanned, flagsCreated, durationMS); err != nil {
		s.logger.Error("Failed to finalize scan run", map[string]interface{}{
			"run_id": run.ID,
			"error":  err.Error(),
		})
	}

	s.logger.Info("Fraud scan finished", map[string]interface{}{
		"run_id":        run.ID,
		"users_scanned": usersScanned,
		"flags_created": flagsCreated,
		"errors":        len(scanErrors),
		"duration_ms":   durationMS,
	})

	return &ScanResult{
		RunID:        run.ID,
		UsersScanned: usersScanned,
		FlagsCreated: flagsCreated,
		Errors:       scanErrors,
	}, nil
}

func (s *Scanner) feedUsers(ctx context.Context, jobs chan<- *domain.User) error {
	offset := 0
	for {
		page, err := s.users.FindActivePage(ctx, scanPageSize, offset)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		for _, u := range page {
			select {
			case jobs <- u:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		offset += len(page)
	}
}

// evaluateUser runs every heuristic for one user. Heuristic failures are
// collected, not fatal; the returned count is flags actually inserted after
// dedup.
func (s *Scanner) evaluateUser(ctx context.Context, u *domain.User) (int, error) {
	created := 0
	var firstErr error

	checks := []func(context.Context, *domain.User) (*domain.FraudFlag, error){
		s.checkMultipleDisputes,
		s.checkNewAccountActivity,
		s.checkRapidTransactions,
		s.checkLowPricing,
		s.checkFastDeliveries,
	}

	for _, check := range checks {
		flag, err := check(ctx, u)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if flag == nil {
			continue
		}

		inserted, err := s.flags.Insert(ctx, flag)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if inserted {
			created++
			s.logger.Info("Fraud flag raised", map[string]interface{}{
				"user_id":  u.ID,
				"type":     flag.Type,
				"severity": flag.Severity,
			})
		}
	}

	return created, firstErr
}

func (s *Scanner) checkMultipleDisputes(ctx context.Context, u *domain.User) (*domain.FraudFlag, error) {
	orders, err := s.orders.CountInvolvingUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if orders < s.cfg.DisputeMinOrders {
		return nil, nil
	}

	disputes, err := s.orders.CountDisputesInvolvingUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	ratio := float64(disputes) / float64(orders)
	if ratio <= s.cfg.DisputeRatio {
		return nil, nil
	}

	return s.newFlag(u.ID, domain.FlagMultipleDisputes, domain.SeverityHigh,
		fmt.Sprintf("%d of %d orders disputed (%.0f%%)", disputes, orders, ratio*100)), nil
}

func (s *Scanner) checkNewAccountActivity(ctx context.Context, u *domain.User) (*domain.FraudFlag, error) {
	age := time.Since(u.CreatedAt)
	if age >= s.cfg.NewAccountMaxAge {
		return nil, nil
	}

	orders, err := s.orders.CountInvolvingUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if orders <= s.cfg.NewAccountMaxOrders {
		return nil, nil
	}

	return s.newFlag(u.ID, domain.FlagSuspiciousActivity, domain.SeverityMedium,
		fmt.Sprintf("%d orders on an account %.0f hours old", orders, age.Hours())), nil
}

func (s *Scanner) checkRapidTransactions(ctx context.Context, u *domain.User) (*domain.FraudFlag, error) {
	recent, err := s.orders.CountRecentOrders(ctx, u.ID, s.cfg.RapidWindow)
	if err != nil {
		return nil, err
	}
	if recent < s.cfg.RapidOrderCount {
		return nil, nil
	}

	return s.newFlag(u.ID, domain.FlagRapidTransactions, domain.SeverityHigh,
		fmt.Sprintf("%d orders within the last %s", recent, s.cfg.RapidWindow)), nil
}

func (s *Scanner) checkLowPricing(ctx context.Context, u *domain.User) (*domain.FraudFlag, error) {
	listings, err := s.listings.FindActiveBySeller(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	factor := decimal.NewFromFloat(s.cfg.LowPriceFactor)

	for _, l := range listings {
		market, err := s.listings.MarketPriceForGame(ctx, l.Game, l.ID)
		if err != nil {
			return nil, err
		}
		if market.Peers < s.cfg.LowPriceMinPeers {
			continue
		}

		threshold := market.Mean.Mul(factor)
		if l.Price.LessThan(threshold) {
			return s.newFlag(u.ID, domain.FlagLowPricing, domain.SeverityMedium,
				fmt.Sprintf("listing %s priced %s against a market mean of %s for %s",
					l.ID, l.Price.String(), market.Mean.String(), l.Game)), nil
		}
	}

	return nil, nil
}

func (s *Scanner) checkFastDeliveries(ctx context.Context, u *domain.User) (*domain.FraudFlag, error) {
	fast, err := s.orders.CountFastDeliveries(ctx, u.ID, s.cfg.FastDeliveryWindow)
	if err != nil {
		return nil, err
	}
	if fast < s.cfg.FastDeliveryCount {
		return nil, nil
	}

	return s.newFlag(u.ID, domain.FlagAccountManipulation, domain.SeverityMedium,
		fmt.Sprintf("%d orders delivered within %s of creation", fast, s.cfg.FastDeliveryWindow)), nil
}

func (s *Scanner) newFlag(userID uuid.UUID, flagType domain.FraudFlagType, severity domain.FlagSeverity, description string) *domain.FraudFlag {
	now := time.Now()
	return &domain.FraudFlag{
		ID:              uuid.New(),
		UserID:          userID,
		Type:            flagType,
		Severity:        severity,
		Description:     description,
		Status:          domain.FlagStatusActive,
		AutoDetected:    true,
		DetectionSource: "pattern_scanner",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
