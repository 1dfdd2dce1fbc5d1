// Package domain holds the marketplace's core data model.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User represents a marketplace account (buyer, seller, or both).
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Username  string    `json:"username" db:"username"`
	Role      UserRole  `json:"role" db:"role"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type UserRole string

const (
	UserRoleMember     UserRole = "member"
	UserRoleAdmin      UserRole = "admin"
	UserRoleSuperAdmin UserRole = "super_admin"
)

// IsSuperAdmin reports whether the user may drive the moderation workflow.
func (u *User) IsSuperAdmin() bool {
	return u.Role == UserRoleSuperAdmin
}

// Listing represents a digital good offered for sale.
type Listing struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	SellerID     uuid.UUID       `json:"seller_id" db:"seller_id"`
	Game         string          `json:"game" db:"game"`
	Title        string          `json:"title" db:"title"`
	Description  string          `json:"description" db:"description"`
	Price        decimal.Decimal `json:"price" db:"price"`
	Stock        int             `json:"stock" db:"stock"`
	DeliveryType DeliveryType    `json:"delivery_type" db:"delivery_type"`
	Status       ListingStatus   `json:"status" db:"status"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

type ListingStatus string

const (
	ListingStatusActive ListingStatus = "active"
	ListingStatusSold   ListingStatus = "sold"
	ListingStatusPaused ListingStatus = "paused"
)

// DeliveryType distinguishes seller-fulfilled orders from pre-provisioned
// code delivery.
type DeliveryType string

const (
	DeliveryManual    DeliveryType = "manual"
	DeliveryAutomatic DeliveryType = "automatic"
)

// Order represents one purchase. The delivery type is snapshotted from the
// listing at creation time; orders are never physically deleted.
type Order struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	ListingID        uuid.UUID       `json:"listing_id" db:"listing_id"`
	BuyerID          uuid.UUID       `json:"buyer_id" db:"buyer_id"`
	SellerID         uuid.UUID       `json:"seller_id" db:"seller_id"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	Quantity         int             `json:"quantity" db:"quantity"`
	Status           OrderStatus     `json:"status" db:"status"`
	PaymentMethod    PaymentMethod   `json:"payment_method" db:"payment_method"`
	PaymentReference string          `json:"payment_reference" db:"payment_reference"`
	DeliveryType     DeliveryType    `json:"delivery_type" db:"delivery_type"`
	DisputeOpenedAt  *time.Time      `json:"dispute_opened_at,omitempty" db:"dispute_opened_at"`
	DisputeReason    string          `json:"dispute_reason" db:"dispute_reason"`
	ResolvedBy       *uuid.UUID      `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolutionNotes  string          `json:"resolution_notes" db:"resolution_notes"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	Metadata         Metadata        `json:"metadata" db:"metadata"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"
	OrderStatusPaid          OrderStatus = "paid"
	OrderStatusDelivered     OrderStatus = "delivered"
	OrderStatusCompleted     OrderStatus = "completed"
	OrderStatusDisputeRaised OrderStatus = "dispute_raised"
	OrderStatusRefunded      OrderStatus = "refunded"
	OrderStatusCancelled     OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodCrypto PaymentMethod = "crypto"
)

// DeliveryCode is a pre-provisioned fulfillment code. is_used=true implies a
// non-null order_id; a code is mutated exactly once, by the claim.
type DeliveryCode struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	ListingID   uuid.UUID  `json:"listing_id" db:"listing_id"`
	CodeText    string     `json:"code_text" db:"code_text"`
	IsUsed      bool       `json:"is_used" db:"is_used"`
	OrderID     *uuid.UUID `json:"order_id,omitempty" db:"order_id"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// ConversationMessage is one message on a buyer/seller order thread.
// System-authored messages are immutable and close the thread to further
// dispute action.
type ConversationMessage struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	OrderID   uuid.UUID  `json:"order_id" db:"order_id"`
	SenderID  *uuid.UUID `json:"sender_id,omitempty" db:"sender_id"`
	Body      string     `json:"body" db:"body"`
	IsSystem  bool       `json:"is_system" db:"is_system"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Metadata is a JSON-compatible map
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, &m)
}
