package stripe

import (
	"context"
	"fmt"
	"sync"

	"github.com/classpilot/billing/core"
)

// EventHandler processes one decoded subscription event and reports the job
// disposition.
type EventHandler interface {
	Handle(ctx context.Context, event core.SubscriptionEvent) (core.Outcome, error)
}

type EventHandlerFunc func(ctx context.Context, event core.SubscriptionEvent) (core.Outcome, error)

func (f EventHandlerFunc) Handle(ctx context.Context, event core.SubscriptionEvent) (core.Outcome, error) {
	return f(ctx, event)
}

// Router dispatches decoded events to the handler registered for their kind.
// The kind set is closed; unknown kinds are reported as unhandled rather than
// failed so the sender never retries types we intentionally ignore.
type Router struct {
	mu       sync.RWMutex
	handlers map[core.EventKind]EventHandler
}

func NewRouter() *Router {
	return &Router{
		handlers: map[core.EventKind]EventHandler{},
	}
}

func (r *Router) Register(kind core.EventKind, handler EventHandler) error {
	if r == nil {
		return fmt.Errorf("stripe: router is nil")
	}
	if handler == nil {
		return fmt.Errorf("stripe: handler is nil")
	}
	if !kind.Known() {
		return fmt.Errorf("stripe: cannot register handler for unknown kind %q", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[kind]; exists {
		return fmt.Errorf("stripe: handler already registered for kind %q", kind)
	}
	r.handlers[kind] = handler
	return nil
}

// Dispatch routes the event to its handler. handled is false when no handler
// covers the kind; callers acknowledge such events without processing.
func (r *Router) Dispatch(ctx context.Context, event core.SubscriptionEvent) (outcome core.Outcome, handled bool, err error) {
	if r == nil {
		return core.Outcome{}, false, fmt.Errorf("stripe: router is nil")
	}
	r.mu.RLock()
	handler := r.handlers[event.Kind]
	r.mu.RUnlock()
	if handler == nil {
		return core.Outcome{}, false, nil
	}
	outcome, err = handler.Handle(ctx, event)
	return outcome, true, err
}

// NewReconcileRouter wires the three subscription lifecycle kinds to the
// service reconciler.
func NewReconcileRouter(service ReconcileService) (*Router, error) {
	if service == nil {
		return nil, fmt.Errorf("stripe: reconcile service is required")
	}
	router := NewRouter()
	handler := EventHandlerFunc(service.ReconcileSubscriptionEvent)
	for _, kind := range []core.EventKind{
		core.EventKindSubscriptionCreated,
		core.EventKindSubscriptionUpdated,
		core.EventKindSubscriptionDeleted,
	} {
		if err := router.Register(kind, handler); err != nil {
			return nil, err
		}
	}
	return router, nil
}

type ReconcileService interface {
	ReconcileSubscriptionEvent(ctx context.Context, event core.SubscriptionEvent) (core.Outcome, error)
}
