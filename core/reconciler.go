package core

import (
	"fmt"
	"strings"
	"time"
)

type OutcomeKind string

const (
	// OutcomeApplied means the event mutated local state.
	OutcomeApplied OutcomeKind = "applied"
	// OutcomeSkipped means the event is already accounted for; the job is done.
	OutcomeSkipped OutcomeKind = "skipped"
	// OutcomeRetry means a dependency has not materialized yet; redeliver later.
	OutcomeRetry OutcomeKind = "retry"
	// OutcomeFatal means the event can never apply; dead-letter it for an operator.
	OutcomeFatal OutcomeKind = "fatal"
)

type SkipReason string

const (
	SkipReasonStale     SkipReason = "stale_event"
	SkipReasonDuplicate SkipReason = "duplicate_create"
	SkipReasonTerminal  SkipReason = "terminal_state"
)

// Outcome is the closed result of reconciling one event against a snapshot.
// The queue adapter translates it into ack/requeue/dead-letter; nothing in
// here touches the job runner directly.
type Outcome struct {
	Kind   OutcomeKind
	Reason SkipReason
	Delay  time.Duration
	Err    error
	// Subscription carries the state to persist when Kind is OutcomeApplied.
	// Created is true when the row must be inserted rather than updated.
	Subscription *Subscription
	Created      bool
	// CampaignInactive flags the anomaly of a create arriving for a membership
	// whose campaign has expired. The event still applies; callers log it.
	CampaignInactive bool
}

func (o Outcome) Applied() bool { return o.Kind == OutcomeApplied }

// Snapshot is the local state the reconciler reads. Lookups happen before the
// pure step so the decision logic stays free of I/O.
type Snapshot struct {
	School       *School
	Membership   *Membership
	Campaign     *Campaign
	Subscription *Subscription
}

// Reconciler folds external subscription events into local subscription state.
// It is a pure decision function: callers load the snapshot, run Reconcile,
// then persist the outcome under a per-subscription lock.
type Reconciler struct {
	// RetryDelay is the base backoff for events that arrive before their
	// dependencies (update-before-create).
	RetryDelay time.Duration
	Now        func() time.Time
}

const defaultReconcileRetryDelay = 30 * time.Second

func NewReconciler() Reconciler {
	return Reconciler{
		RetryDelay: defaultReconcileRetryDelay,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (r Reconciler) Reconcile(event SubscriptionEvent, snap Snapshot) Outcome {
	if err := event.Validate(); err != nil {
		return Outcome{Kind: OutcomeFatal, Err: err}
	}
	if snap.School == nil {
		return Outcome{Kind: OutcomeFatal, Err: fmt.Errorf(
			"%w: no school with billing customer %q", ErrSchoolNotFound, event.CustomerID,
		)}
	}
	if snap.Subscription != nil && !snap.Subscription.AcceptsEvent(event.OccurredAt) {
		// Out-of-order redelivery. Already applied as far as the watermark is
		// concerned; complete the job without touching the row.
		return Outcome{Kind: OutcomeSkipped, Reason: SkipReasonStale}
	}

	switch event.Kind {
	case EventKindSubscriptionCreated:
		return r.reconcileCreated(event, snap)
	case EventKindSubscriptionUpdated:
		return r.reconcileUpdated(event, snap)
	case EventKindSubscriptionDeleted:
		return r.reconcileDeleted(event, snap)
	default:
		return Outcome{Kind: OutcomeFatal, Err: fmt.Errorf("core: event kind %q is not reconcilable", event.Kind)}
	}
}

func (r Reconciler) reconcileCreated(event SubscriptionEvent, snap Snapshot) Outcome {
	if snap.Subscription != nil {
		return Outcome{Kind: OutcomeSkipped, Reason: SkipReasonDuplicate}
	}
	if snap.Membership == nil {
		return Outcome{Kind: OutcomeFatal, Err: fmt.Errorf(
			"%w: no membership with price %q", ErrMembershipNotFound, event.PriceID,
		)}
	}

	// An expired campaign does not block creation: the processor already took
	// the money, so refusing the mirror row would only strand a paid tenant.
	// The anomaly is surfaced for operator review instead.
	campaignInactive := snap.Campaign != nil && !snap.Campaign.Active(r.now())

	sub := &Subscription{
		SchoolID:              snap.School.ID,
		MembershipID:          snap.Membership.ID,
		ExternalID:            strings.TrimSpace(event.ExternalID),
		Status:                ParseSubscriptionStatus(event.Status),
		StartsAt:              cloneTime(event.StartsAt),
		CancelsAt:             cloneTime(event.CancelsAt),
		CurrentPeriodStartsAt: cloneTime(event.CurrentPeriodStartsAt),
		CurrentPeriodEndsAt:   cloneTime(event.CurrentPeriodEndsAt),
		LastEventAt:           event.OccurredAt,
	}
	return Outcome{
		Kind:             OutcomeApplied,
		Subscription:     sub,
		Created:          true,
		CampaignInactive: campaignInactive,
	}
}

func (r Reconciler) reconcileUpdated(event SubscriptionEvent, snap Snapshot) Outcome {
	if snap.Membership == nil {
		return Outcome{Kind: OutcomeFatal, Err: fmt.Errorf(
			"%w: no membership with price %q", ErrMembershipNotFound, event.PriceID,
		)}
	}
	if snap.Subscription == nil {
		// The create event may still be in flight; give it another pass.
		return Outcome{Kind: OutcomeRetry, Delay: r.retryDelay(), Err: fmt.Errorf(
			"%w: update for %q before create", ErrSubscriptionNotFound, event.ExternalID,
		)}
	}
	if snap.Subscription.Canceled() {
		return Outcome{Kind: OutcomeSkipped, Reason: SkipReasonTerminal}
	}

	sub := *snap.Subscription
	sub.MembershipID = snap.Membership.ID
	sub.Status = ParseSubscriptionStatus(event.Status)
	sub.StartsAt = cloneTime(event.StartsAt)
	sub.CancelsAt = cloneTime(event.CancelsAt)
	sub.CurrentPeriodStartsAt = cloneTime(event.CurrentPeriodStartsAt)
	sub.CurrentPeriodEndsAt = cloneTime(event.CurrentPeriodEndsAt)
	sub.LastEventAt = event.OccurredAt
	return Outcome{Kind: OutcomeApplied, Subscription: &sub}
}

func (r Reconciler) reconcileDeleted(event SubscriptionEvent, snap Snapshot) Outcome {
	if snap.Subscription == nil {
		return Outcome{Kind: OutcomeRetry, Delay: r.retryDelay(), Err: fmt.Errorf(
			"%w: delete for %q before create", ErrSubscriptionNotFound, event.ExternalID,
		)}
	}
	if snap.Subscription.Canceled() {
		return Outcome{Kind: OutcomeSkipped, Reason: SkipReasonTerminal}
	}

	sub := *snap.Subscription
	sub.Status = SubscriptionStatusCanceled
	sub.CanceledAt = cloneTime(event.CanceledAt)
	sub.EndedAt = cloneTime(event.EndedAt)
	if sub.CanceledAt == nil {
		at := event.OccurredAt
		sub.CanceledAt = &at
	}
	if sub.EndedAt == nil {
		at := event.OccurredAt
		sub.EndedAt = &at
	}
	sub.LastEventAt = event.OccurredAt
	return Outcome{Kind: OutcomeApplied, Subscription: &sub}
}

func (r Reconciler) retryDelay() time.Duration {
	if r.RetryDelay > 0 {
		return r.RetryDelay
	}
	return defaultReconcileRetryDelay
}

func (r Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	out := *value
	return &out
}
