package order

import "github.com/darkosells/gaming-marketplace-sub001/internal/domain"

// transitions is the full lifecycle graph. Anything not listed here is an
// illegal move; refunded, completed and cancelled are terminal. The service
// checks the graph before attempting a move; the conditional UPDATE in the
// repository settles concurrent ones.
var transitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending: {
		domain.OrderStatusPaid,
		domain.OrderStatusCancelled,
	},
	domain.OrderStatusPaid: {
		domain.OrderStatusDelivered,
		domain.OrderStatusDisputeRaised,
	},
	domain.OrderStatusDelivered: {
		domain.OrderStatusCompleted,
		domain.OrderStatusDisputeRaised,
	},
	domain.OrderStatusDisputeRaised: {
		domain.OrderStatusRefunded,
		domain.OrderStatusCompleted,
	},
	domain.OrderStatusCompleted: nil,
	domain.OrderStatusRefunded:  nil,
	domain.OrderStatusCancelled: nil,
}

// CanTransition reports whether from may legally move to to.
func CanTransition(from, to domain.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave the status.
func IsTerminal(s domain.OrderStatus) bool {
	return len(transitions[s]) == 0
}
