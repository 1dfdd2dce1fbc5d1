package domain

import (
	"time"

	"github.com/google/uuid"
)

// FraudFlag is a persisted, typed, severity-ranked suspicion record about a
// user. At most one flag per (user_id, type) may be active at a time;
// re-detection after a terminal review state creates a new row.
type FraudFlag struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	UserID          uuid.UUID     `json:"user_id" db:"user_id"`
	Type            FraudFlagType `json:"type" db:"type"`
	Severity        FlagSeverity  `json:"severity" db:"severity"`
	Description     string        `json:"description" db:"description"`
	Status          FlagStatus    `json:"status" db:"status"`
	AutoDetected    bool          `json:"auto_detected" db:"auto_detected"`
	DetectionSource string        `json:"detection_source" db:"detection_source"`
	ReviewedBy      *uuid.UUID    `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewNotes     string        `json:"review_notes" db:"review_notes"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

type FraudFlagType string

const (
	FlagMultipleDisputes    FraudFlagType = "multiple_disputes"
	FlagSuspiciousActivity  FraudFlagType = "suspicious_activity"
	FlagRapidTransactions   FraudFlagType = "rapid_transactions"
	FlagLowPricing          FraudFlagType = "low_pricing"
	FlagAccountManipulation FraudFlagType = "account_manipulation"
	FlagChargebackAbuse     FraudFlagType = "chargeback_abuse"
	FlagStolenPayment       FraudFlagType = "stolen_payment"
	FlagDuplicateAccounts   FraudFlagType = "duplicate_accounts"
	FlagFakeListings        FraudFlagType = "fake_listings"
	FlagReviewManipulation  FraudFlagType = "review_manipulation"
	FlagPhishingAttempt     FraudFlagType = "phishing_attempt"
	FlagPolicyEvasion       FraudFlagType = "policy_evasion"
)

type FlagSeverity string

const (
	SeverityLow      FlagSeverity = "low"
	SeverityMedium   FlagSeverity = "medium"
	SeverityHigh     FlagSeverity = "high"
	SeverityCritical FlagSeverity = "critical"
)

type FlagStatus string

const (
	FlagStatusActive        FlagStatus = "active"
	FlagStatusReviewed      FlagStatus = "reviewed"
	FlagStatusResolved      FlagStatus = "resolved"
	FlagStatusFalsePositive FlagStatus = "false_positive"
)

// ScanRun is the append-only audit record of one scanner execution. One row
// is created at start and updated once at completion.
type ScanRun struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	ScanType     string        `json:"scan_type" db:"scan_type"`
	TriggeredBy  string        `json:"triggered_by" db:"triggered_by"`
	Status       ScanRunStatus `json:"status" db:"status"`
	UsersScanned int           `json:"users_scanned" db:"users_scanned"`
	FlagsCreated int           `json:"flags_created" db:"flags_created"`
	StartedAt    time.Time     `json:"started_at" db:"started_at"`
	DurationMS   int64         `json:"duration_ms" db:"duration_ms"`
}

type ScanRunStatus string

const (
	ScanRunStatusRunning   ScanRunStatus = "running"
	ScanRunStatusCompleted ScanRunStatus = "completed"
	ScanRunStatusFailed    ScanRunStatus = "failed"
)

// BlacklistEntry marks a normalized identifier for exclusion by policy.
// Values are stored trimmed and lower-cased.
type BlacklistEntry struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	Type      BlacklistType `json:"type" db:"type"`
	Value     string        `json:"value" db:"value"`
	Reason    string        `json:"reason" db:"reason"`
	AddedBy   uuid.UUID     `json:"added_by" db:"added_by"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

type BlacklistType string

const (
	BlacklistIP                BlacklistType = "ip"
	BlacklistEmailDomain       BlacklistType = "email_domain"
	BlacklistDeviceFingerprint BlacklistType = "device_fingerprint"
)
