package core

import (
	"fmt"
	"strings"
	"time"
)

// EventKind is the closed set of external billing events the reconciler
// understands. Anything else is EventKindUnknown and is acknowledged without
// processing so the sender does not retry it.
type EventKind string

const (
	EventKindSubscriptionCreated EventKind = "subscription.created"
	EventKindSubscriptionUpdated EventKind = "subscription.updated"
	EventKindSubscriptionDeleted EventKind = "subscription.deleted"
	EventKindUnknown             EventKind = "unknown"
)

func (k EventKind) Known() bool {
	switch k {
	case EventKindSubscriptionCreated, EventKindSubscriptionUpdated, EventKindSubscriptionDeleted:
		return true
	default:
		return false
	}
}

// SubscriptionEvent is the decoded projection of one external billing event.
// The wire format lives in the stripe package; the reconciler only ever sees
// this shape.
type SubscriptionEvent struct {
	ID         string
	Kind       EventKind
	MarketID   string
	OccurredAt time.Time

	ExternalID string
	CustomerID string
	PriceID    string
	Status     string

	StartsAt              *time.Time
	CancelsAt             *time.Time
	CurrentPeriodStartsAt *time.Time
	CurrentPeriodEndsAt   *time.Time
	CanceledAt            *time.Time
	EndedAt               *time.Time
}

func (e SubscriptionEvent) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("core: event id is required")
	}
	if !e.Kind.Known() {
		return fmt.Errorf("core: event kind %q is not reconcilable", e.Kind)
	}
	if strings.TrimSpace(e.ExternalID) == "" {
		return fmt.Errorf("core: event subscription id is required")
	}
	if strings.TrimSpace(e.CustomerID) == "" {
		return fmt.Errorf("core: event customer id is required")
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("core: event timestamp is required")
	}
	return nil
}
