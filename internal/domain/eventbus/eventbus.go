package eventbus

import (
	evbus "github.com/asaskevich/EventBus"
)

// Topics published by the auth service.
const (
	TopicUserRegistered = "user:registered"
	TopicUserLogin      = "user:login"
	TopicUserLogout     = "user:logout"
	TopicUserReset      = "user:reset"
	TopicUserDeleted    = "user:deleted"
)

// Event is the payload for every user lifecycle topic.
type Event struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IP       string `json:"ip,omitempty"`
	Browser  string `json:"browser,omitempty"`
}

// Bus wraps the underlying event bus behind a small injected handle. It is
// constructed at bootstrap and passed to the services that publish on it;
// there is no package-level instance.
type Bus struct {
	bus evbus.Bus
}

// New creates a bus.
func New() *Bus {
	return &Bus{bus: evbus.New()}
}

// Publish emits an event on the topic. Nil receivers are tolerated so that
// callers can treat the bus as optional.
func (b *Bus) Publish(topic string, event Event) {
	if b == nil {
		return
	}
	b.bus.Publish(topic, event)
}

// Subscribe registers a handler for the topic.
func (b *Bus) Subscribe(topic string, fn func(Event)) error {
	return b.bus.Subscribe(topic, fn)
}

// SubscribeAsync registers a handler running in its own goroutine per event.
func (b *Bus) SubscribeAsync(topic string, fn func(Event)) error {
	return b.bus.SubscribeAsync(topic, fn, false)
}

// WaitAsync blocks until all async handlers have completed. Used in tests and
// during shutdown.
func (b *Bus) WaitAsync() {
	if b == nil {
		return
	}
	b.bus.WaitAsync()
}
