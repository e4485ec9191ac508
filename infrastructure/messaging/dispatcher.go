package messaging

import (
	"context"
	"encoding/json"
	"sync"

	pkgerrors "catalog/pkg/errors"
)

// ErrNoHandler marks an event type with no registration. The consumer
// logs and commits these rather than dead-lettering them.
var ErrNoHandler = pkgerrors.NewNotFound("no handler registered for event type")

// Registration binds an event type to its payload decoder and handler.
// NewPayload returns a fresh pointer for each message; Handle receives that
// pointer after the envelope data has been decoded into it.
type Registration struct {
	NewPayload func() interface{}
	Handle     func(ctx context.Context, payload interface{}, env *Envelope) error
}

// Dispatcher routes envelopes to handlers by event type. Registration is
// write-once per type; lookups are O(1) and safe for concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Registration
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Registration)}
}

// Register binds a handler to an event type; Conflict if already bound
func (d *Dispatcher) Register(eventType string, reg Registration) error {
	if eventType == "" {
		return pkgerrors.NewInvalid("event type is required")
	}
	if reg.NewPayload == nil || reg.Handle == nil {
		return pkgerrors.NewInvalid("registration requires both payload factory and handler")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[eventType]; exists {
		return pkgerrors.NewConflict("handler already registered for event type " + eventType)
	}
	d.handlers[eventType] = reg
	return nil
}

// Registered reports whether the event type has a handler
func (d *Dispatcher) Registered(eventType string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[eventType]
	return ok
}

// Dispatch decodes the envelope data into the registered payload type and
// invokes the handler. ErrNoHandler when the event type is unregistered.
func (d *Dispatcher) Dispatch(ctx context.Context, env *Envelope) error {
	d.mu.RLock()
	reg, ok := d.handlers[env.Event.Type]
	d.mu.RUnlock()
	if !ok {
		return ErrNoHandler
	}

	payload := reg.NewPayload()
	if len(env.Event.Data) > 0 {
		if err := json.Unmarshal(env.Event.Data, payload); err != nil {
			return pkgerrors.NewInvalidf("decoding %s payload: %v", env.Event.Type, err)
		}
	}

	return reg.Handle(ctx, payload, env)
}
