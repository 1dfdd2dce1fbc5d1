package realtime

import "sync"

// Tables that emit change events.
const (
	TableOrders     = "orders"
	TableFraudFlags = "fraud_flags"
)

// ChangeHandler receives one change event. Handlers run on the publisher's
// goroutine and must not block.
type ChangeHandler func(Event)

// Bus is the in-process change feed. Services publish table-scoped events;
// consumers register with OnChange and re-fetch whatever they care about on
// signal. Delivery is at-least-once and unordered across tables.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[int]ChangeHandler
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]ChangeHandler)}
}

// OnChange registers handler for change events on table. The returned
// function unsubscribes; it is safe to call more than once.
func (b *Bus) OnChange(table string, handler ChangeHandler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[table] == nil {
		b.subs[table] = make(map[int]ChangeHandler)
	}
	id := b.next
	b.next++
	b.subs[table][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[table], id)
	}
}

// Publish delivers the event to every handler registered for the table.
func (b *Bus) Publish(table string, e Event) {
	e.Table = table

	b.mu.RLock()
	handlers := make([]ChangeHandler, 0, len(b.subs[table]))
	for _, h := range b.subs[table] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
