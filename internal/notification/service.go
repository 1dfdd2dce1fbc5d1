// Package notification implements a multi-channel notification system.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"
)

// ChannelType represents the delivery method (Email, Push).
type ChannelType string

const (
	ChannelEmail ChannelType = "EMAIL"
	ChannelPush  ChannelType = "PUSH"
)

// Priority represents the urgency of the notification.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 1
	PriorityHigh   Priority = 2
	PriorityUrgent Priority = 3
)

// Notification represents a message to be sent.
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      string // e.g., "ORDER_PAID", "DISPUTE_OPENED"
	Channel   ChannelType
	Priority  Priority
	Subject   string
	Body      string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}

// Service defines the notification service interface.
type Service interface {
	Notify(ctx context.Context, userID uuid.UUID, eventType string, data map[string]interface{}) error
}

// DefaultService is the concrete implementation. Delivery is simulated
// through structured logs; a provider integration would slot in here.
type DefaultService struct {
	logger logger.Logger
}

// NewService creates a new notification service.
func NewService(log logger.Logger) *DefaultService {
	return &DefaultService{logger: log}
}

// Notify constructs and sends a notification based on an event type.
func (s *DefaultService) Notify(ctx context.Context, userID uuid.UUID, eventType string, data map[string]interface{}) error {
	var subject, body string
	var priority Priority = PriorityNormal

	switch eventType {
	case "ORDER_PAID":
		amount := data["amount"]
		title := data["listing_title"]
		subject = "Order Paid"
		body = fmt.Sprintf("Payment of %v confirmed for %v.", amount, title)
		priority = PriorityHigh

	case "CODE_DELIVERED":
		title := data["listing_title"]
		subject = "Your Code Is Ready"
		body = fmt.Sprintf("Your code for %v has been delivered. Check your order page.", title)
		priority = PriorityHigh

	case "DELIVERY_FALLBACK":
		title := data["listing_title"]
		subject = "Delivery Pending"
		body = fmt.Sprintf("Automatic delivery for %v is unavailable. The seller will deliver manually.", title)
		priority = PriorityUrgent

	case "MANUAL_DELIVERY_DUE":
		orderID := data["order_id"]
		subject = "Action Required: Deliver Order"
		body = fmt.Sprintf("Order %v is paid and waiting for manual delivery.", orderID)
		priority = PriorityUrgent

	case "DISPUTE_OPENED":
		orderID := data["order_id"]
		reason := data["reason"]
		subject = "Dispute Opened"
		body = fmt.Sprintf("A dispute was opened on order %v: %v", orderID, reason)
		priority = PriorityUrgent

	case "DISPUTE_RESOLVED":
		orderID := data["order_id"]
		outcome := data["outcome"]
		subject = "Dispute Resolved"
		body = fmt.Sprintf("The dispute on order %v was resolved: %v.", orderID, outcome)
		priority = PriorityHigh

	case "ORDER_CANCELLED":
		orderID := data["order_id"]
		subject = "Order Cancelled"
		body = fmt.Sprintf("Order %v was cancelled before payment.", orderID)

	case "ORDER_REFUNDED":
		orderID := data["order_id"]
		subject = "Refund Issued"
		body = fmt.Sprintf("Order %v has been refunded to your original payment method.", orderID)
		priority = PriorityHigh

	default:
		subject = "Notification"
		body = fmt.Sprintf("Event: %s", eventType)
	}

	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      eventType,
		Channel:   ChannelEmail, // Default to Email
		Priority:  priority,
		Subject:   subject,
		Body:      body,
		Metadata:  data,
		CreatedAt: time.Now(),
	}

	return s.send(ctx, n)
}

func (s *DefaultService) send(_ context.Context, n *Notification) error {
	s.logger.Info("Notification Sent", map[string]interface{}{
		"notification_id": n.ID,
		"user_id":         n.UserID,
		"channel":         n.Channel,
		"type":            n.Type,
		"subject":         n.Subject,
		"priority":        n.Priority,
	})

	// Urgent events additionally go out as push
	if n.Priority == PriorityUrgent {
		s.logger.Info("Push Sent (Urgent)", map[string]interface{}{
			"user_id": n.UserID,
			"body":    n.Body,
		})
	}

	return nil
}
