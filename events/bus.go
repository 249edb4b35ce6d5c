// Package events provides an in-process event bus for the group directory.
//
// Bus implements both outbound event emission (interfaces.EventEmitter) and
// inbound notification routing (interfaces.NotificationRouter). Handlers run
// synchronously on the emitting goroutine, in registration order.
package events

import (
	"sync"

	"github.com/opd-ai/groupdir/interfaces"
	"github.com/opd-ai/groupdir/node"
	"github.com/sirupsen/logrus"
)

// Listener receives the payload of an emitted event.
type Listener func(payload any)

type subscription struct {
	id       uint64
	listener Listener
}

// Bus multiplexes events and notifications to registered handlers.
// It is safe for concurrent use.
type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[string][]subscription
	routes    map[string][]interfaces.NotificationHandler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[string][]subscription),
		routes:    make(map[string][]interfaces.NotificationHandler),
	}
}

// Subscribe registers a listener for the named event. The returned function
// removes it again.
func (b *Bus) Subscribe(event string, listener Listener) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[event] = append(b.listeners[event], subscription{id: id, listener: listener})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.listeners[event]
		for i, s := range subs {
			if s.id == id {
				b.listeners[event] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers payload to every listener of event. A panicking listener is
// logged and does not prevent delivery to the others.
func (b *Bus) Emit(event string, payload any) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.listeners[event]...)
	b.mu.RUnlock()

	logrus.WithFields(logrus.Fields{
		"function":  "Emit",
		"event":     event,
		"listeners": len(subs),
	}).Debug("Emitting event")

	for _, s := range subs {
		b.deliver(event, s.listener, payload)
	}
}

func (b *Bus) deliver(event string, listener Listener, payload any) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Emit",
				"event":    event,
				"panic":    r,
			}).Error("Event listener panicked")
		}
	}()
	listener(payload)
}

// RegisterHandler registers handler for notifications arriving on route.
func (b *Bus) RegisterHandler(route string, handler interfaces.NotificationHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[route] = append(b.routes[route], handler)

	logrus.WithFields(logrus.Fields{
		"function": "RegisterHandler",
		"route":    route,
	}).Debug("Notification handler registered")
}

// Dispatch delivers an inbound notification to the handlers of route and
// reports whether any handler was registered.
func (b *Bus) Dispatch(route string, n *node.Node) bool {
	b.mu.RLock()
	handlers := append([]interfaces.NotificationHandler(nil), b.routes[route]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		logrus.WithFields(logrus.Fields{
			"function": "Dispatch",
			"route":    route,
		}).Debug("No handler for notification route")
		return false
	}

	for _, h := range handlers {
		h(n)
	}
	return true
}
