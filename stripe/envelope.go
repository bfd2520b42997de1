package stripe

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/classpilot/billing/core"
)

const (
	EventTypeSubscriptionCreated = "customer.subscription.created"
	EventTypeSubscriptionUpdated = "customer.subscription.updated"
	EventTypeSubscriptionDeleted = "customer.subscription.deleted"
)

// Envelope is the outer wire shape of one webhook event.
type Envelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

func DecodeEnvelope(body []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("stripe: decode event envelope: %w", err)
	}
	if strings.TrimSpace(envelope.ID) == "" {
		return Envelope{}, fmt.Errorf("stripe: event envelope is missing id")
	}
	if strings.TrimSpace(envelope.Type) == "" {
		return Envelope{}, fmt.Errorf("stripe: event envelope is missing type")
	}
	return envelope, nil
}

// EventKindOf maps a wire event type onto the closed reconcilable set.
func EventKindOf(eventType string) core.EventKind {
	switch strings.TrimSpace(eventType) {
	case EventTypeSubscriptionCreated:
		return core.EventKindSubscriptionCreated
	case EventTypeSubscriptionUpdated:
		return core.EventKindSubscriptionUpdated
	case EventTypeSubscriptionDeleted:
		return core.EventKindSubscriptionDeleted
	default:
		return core.EventKindUnknown
	}
}

// subscriptionObject is the subset of the external subscription object the
// reconciler projects. Price resolution prefers the line items and falls back
// to the legacy plan field.
type subscriptionObject struct {
	ID                 string `json:"id"`
	Object             string `json:"object"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	StartDate          int64  `json:"start_date"`
	CancelAt           int64  `json:"cancel_at"`
	CanceledAt         int64  `json:"canceled_at"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	EndedAt            int64  `json:"ended_at"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Plan struct {
		ID string `json:"id"`
	} `json:"plan"`
}

func (o subscriptionObject) priceID() string {
	for _, item := range o.Items.Data {
		if id := strings.TrimSpace(item.Price.ID); id != "" {
			return id
		}
	}
	return strings.TrimSpace(o.Plan.ID)
}

// ToSubscriptionEvent projects the envelope's nested object into the domain
// event the reconciler consumes. A nested object that is not a subscription is
// a malformed payload; the job treats it as non-retryable.
func ToSubscriptionEvent(envelope Envelope, marketID string) (core.SubscriptionEvent, error) {
	kind := EventKindOf(envelope.Type)
	if !kind.Known() {
		return core.SubscriptionEvent{}, fmt.Errorf("stripe: event type %q is not reconcilable", envelope.Type)
	}
	if len(envelope.Data.Object) == 0 {
		return core.SubscriptionEvent{}, fmt.Errorf("stripe: event %s carries no object", envelope.ID)
	}

	var object subscriptionObject
	if err := json.Unmarshal(envelope.Data.Object, &object); err != nil {
		return core.SubscriptionEvent{}, fmt.Errorf("stripe: decode subscription object: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(object.Object), "subscription") {
		return core.SubscriptionEvent{}, fmt.Errorf(
			"stripe: event %s carries unexpected object %q", envelope.ID, object.Object,
		)
	}
	if strings.TrimSpace(object.ID) == "" {
		return core.SubscriptionEvent{}, fmt.Errorf("stripe: subscription object is missing id")
	}
	if strings.TrimSpace(object.Customer) == "" {
		return core.SubscriptionEvent{}, fmt.Errorf("stripe: subscription object is missing customer")
	}

	return core.SubscriptionEvent{
		ID:                    strings.TrimSpace(envelope.ID),
		Kind:                  kind,
		MarketID:              strings.TrimSpace(marketID),
		OccurredAt:            time.Unix(envelope.Created, 0).UTC(),
		ExternalID:            strings.TrimSpace(object.ID),
		CustomerID:            strings.TrimSpace(object.Customer),
		PriceID:               object.priceID(),
		Status:                strings.TrimSpace(object.Status),
		StartsAt:              unixTime(object.StartDate),
		CancelsAt:             unixTime(object.CancelAt),
		CurrentPeriodStartsAt: unixTime(object.CurrentPeriodStart),
		CurrentPeriodEndsAt:   unixTime(object.CurrentPeriodEnd),
		CanceledAt:            unixTime(object.CanceledAt),
		EndedAt:               unixTime(object.EndedAt),
	}, nil
}

func unixTime(seconds int64) *time.Time {
	if seconds <= 0 {
		return nil
	}
	at := time.Unix(seconds, 0).UTC()
	return &at
}
