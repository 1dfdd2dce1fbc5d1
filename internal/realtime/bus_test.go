package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBusDeliversToTableSubscribers(t *testing.T) {
	bus := NewBus()

	var orders, flags []Event
	bus.OnChange(TableOrders, func(e Event) { orders = append(orders, e) })
	bus.OnChange(TableFraudFlags, func(e Event) { flags = append(flags, e) })

	bus.Publish(TableOrders, Event{Type: "order_paid", OrderID: uuid.New(), Timestamp: time.Now()})
	bus.Publish(TableOrders, Event{Type: "order_delivered", OrderID: uuid.New(), Timestamp: time.Now()})
	bus.Publish(TableFraudFlags, Event{Type: "flag_raised", Timestamp: time.Now()})

	assert.Len(t, orders, 2)
	assert.Len(t, flags, 1)
	assert.Equal(t, TableOrders, orders[0].Table)
	assert.Equal(t, TableFraudFlags, flags[0].Table)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()

	var got int
	unsubscribe := bus.OnChange(TableOrders, func(Event) { got++ })

	bus.Publish(TableOrders, Event{Type: "order_paid"})
	unsubscribe()
	bus.Publish(TableOrders, Event{Type: "order_delivered"})
	unsubscribe() // second call is a no-op

	assert.Equal(t, 1, got)
}

func TestBusMultipleSubscribersSameTable(t *testing.T) {
	bus := NewBus()

	var a, b int
	bus.OnChange(TableOrders, func(Event) { a++ })
	bus.OnChange(TableOrders, func(Event) { b++ })

	bus.Publish(TableOrders, Event{Type: "order_paid"})

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}
