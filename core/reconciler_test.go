package core

import (
	"errors"
	"testing"
	"time"
)

var reconcileBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testSchool() *School {
	return &School{
		ID:                "sch_1",
		Name:              "Westfield Academy",
		Kind:              SchoolKindTraditional,
		BillingCustomerID: "cus_1",
		MarketID:          "us",
	}
}

func testMembership() *Membership {
	return &Membership{
		ID:           "mem_1",
		Name:         "Annual Plan",
		CampaignID:   "cmp_1",
		PriceID:      "price_1",
		Recurring:    true,
		PeriodMonths: 12,
	}
}

func testEvent(kind EventKind, occurredAt time.Time) SubscriptionEvent {
	return SubscriptionEvent{
		ID:         "evt_1",
		Kind:       kind,
		MarketID:   "us",
		OccurredAt: occurredAt,
		ExternalID: "sub_1",
		CustomerID: "cus_1",
		PriceID:    "price_1",
		Status:     "active",
	}
}

func fixedReconciler() Reconciler {
	r := NewReconciler()
	r.Now = func() time.Time { return reconcileBase }
	return r
}

func TestReconcileCreatedHappyPath(t *testing.T) {
	r := fixedReconciler()
	event := testEvent(EventKindSubscriptionCreated, reconcileBase)
	starts := reconcileBase.Add(-time.Hour)
	event.StartsAt = &starts

	outcome := r.Reconcile(event, Snapshot{
		School:     testSchool(),
		Membership: testMembership(),
		Campaign:   &Campaign{ID: "cmp_1", Name: "Launch"},
	})

	if outcome.Kind != OutcomeApplied {
		t.Fatalf("expected applied outcome, got %q (%v)", outcome.Kind, outcome.Err)
	}
	if !outcome.Created {
		t.Fatalf("expected created flag on new subscription")
	}
	if outcome.CampaignInactive {
		t.Fatalf("active campaign must not raise the anomaly flag")
	}
	sub := outcome.Subscription
	if sub == nil {
		t.Fatalf("expected subscription state on applied outcome")
	}
	if sub.SchoolID != "sch_1" || sub.MembershipID != "mem_1" {
		t.Fatalf("expected school and membership binding, got %q/%q", sub.SchoolID, sub.MembershipID)
	}
	if sub.Status != SubscriptionStatusActive {
		t.Fatalf("expected active status, got %q", sub.Status)
	}
	if !sub.LastEventAt.Equal(event.OccurredAt) {
		t.Fatalf("expected watermark %s, got %s", event.OccurredAt, sub.LastEventAt)
	}
	if sub.StartsAt == nil || !sub.StartsAt.Equal(starts) {
		t.Fatalf("expected starts_at to carry over")
	}
}

func TestReconcileStaleEventSkips(t *testing.T) {
	r := fixedReconciler()
	existing := &Subscription{
		ID:          "row_1",
		ExternalID:  "sub_1",
		Status:      SubscriptionStatusActive,
		LastEventAt: reconcileBase,
	}

	for _, kind := range []EventKind{
		EventKindSubscriptionCreated,
		EventKindSubscriptionUpdated,
		EventKindSubscriptionDeleted,
	} {
		event := testEvent(kind, reconcileBase.Add(-time.Minute))
		outcome := r.Reconcile(event, Snapshot{
			School:       testSchool(),
			Membership:   testMembership(),
			Subscription: existing,
		})
		if outcome.Kind != OutcomeSkipped || outcome.Reason != SkipReasonStale {
			t.Fatalf("%s: expected stale skip, got %q/%q", kind, outcome.Kind, outcome.Reason)
		}
	}

	// Equal timestamp is also stale: the watermark admits strictly newer only.
	event := testEvent(EventKindSubscriptionUpdated, reconcileBase)
	outcome := r.Reconcile(event, Snapshot{
		School:       testSchool(),
		Membership:   testMembership(),
		Subscription: existing,
	})
	if outcome.Kind != OutcomeSkipped || outcome.Reason != SkipReasonStale {
		t.Fatalf("expected equal-timestamp skip, got %q/%q", outcome.Kind, outcome.Reason)
	}
}

func TestReconcileDuplicateCreateSkips(t *testing.T) {
	r := fixedReconciler()
	event := testEvent(EventKindSubscriptionCreated, reconcileBase.Add(time.Minute))
	outcome := r.Reconcile(event, Snapshot{
		School:     testSchool(),
		Membership: testMembership(),
		Subscription: &Subscription{
			ID:          "row_1",
			ExternalID:  "sub_1",
			LastEventAt: reconcileBase,
		},
	})
	if outcome.Kind != OutcomeSkipped || outcome.Reason != SkipReasonDuplicate {
		t.Fatalf("expected duplicate skip, got %q/%q", outcome.Kind, outcome.Reason)
	}
}

func TestReconcileMissingSchoolIsFatal(t *testing.T) {
	r := fixedReconciler()
	event := testEvent(EventKindSubscriptionCreated, reconcileBase)
	outcome := r.Reconcile(event, Snapshot{Membership: testMembership()})
	if outcome.Kind != OutcomeFatal {
		t.Fatalf("expected fatal outcome, got %q", outcome.Kind)
	}
	if !errors.Is(outcome.Err, ErrSchoolNotFound) {
		t.Fatalf("expected ErrSchoolNotFound, got %v", outcome.Err)
	}
}

func TestReconcileMissingMembershipIsFatal(t *testing.T) {
	r := fixedReconciler()
	for _, kind := range []EventKind{EventKindSubscriptionCreated, EventKindSubscriptionUpdated} {
		event := testEvent(kind, reconcileBase)
		outcome := r.Reconcile(event, Snapshot{School: testSchool()})
		if outcome.Kind != OutcomeFatal {
			t.Fatalf("%s: expected fatal outcome, got %q", kind, outcome.Kind)
		}
		if !errors.Is(outcome.Err, ErrMembershipNotFound) {
			t.Fatalf("%s: expected ErrMembershipNotFound, got %v", kind, outcome.Err)
		}
	}
}

func TestReconcileUpdateBeforeCreateRetries(t *testing.T) {
	r := fixedReconciler()
	r.RetryDelay = 45 * time.Second

	event := testEvent(EventKindSubscriptionUpdated, reconcileBase)
	outcome := r.Reconcile(event, Snapshot{
		School:     testSchool(),
		Membership: testMembership(),
	})
	if outcome.Kind != OutcomeRetry {
		t.Fatalf("expected retry outcome, got %q", outcome.Kind)
	}
	if outcome.Delay != 45*time.Second {
		t.Fatalf("expected configured retry delay, got %s", outcome.Delay)
	}
	if !errors.Is(outcome.Err, ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", outcome.Err)
	}
}

func TestReconcileDeleteBeforeCreateRetries(t *testing.T) {
	r := fixedReconciler()
	event := testEvent(EventKindSubscriptionDeleted, reconcileBase)
	outcome := r.Reconcile(event, Snapshot{School: testSchool()})
	if outcome.Kind != OutcomeRetry {
		t.Fatalf("expected retry outcome, got %q", outcome.Kind)
	}
}

func TestReconcileUpdateAppliesNewState(t *testing.T) {
	r := fixedReconciler()
	event := testEvent(EventKindSubscriptionUpdated, reconcileBase.Add(time.Minute))
	event.Status = "past_due"
	periodEnd := reconcileBase.Add(30 * 24 * time.Hour)
	event.CurrentPeriodEndsAt = &periodEnd

	outcome := r.Reconcile(event, Snapshot{
		School:     testSchool(),
		Membership: testMembership(),
		Subscription: &Subscription{
			ID:          "row_1",
			ExternalID:  "sub_1",
			Status:      SubscriptionStatusActive,
			LastEventAt: reconcileBase,
		},
	})
	if outcome.Kind != OutcomeApplied {
		t.Fatalf("expected applied outcome, got %q (%v)", outcome.Kind, outcome.Err)
	}
	if outcome.Created {
		t.Fatalf("update must not request an insert")
	}
	if outcome.Subscription.Status != SubscriptionStatusPastDue {
		t.Fatalf("expected past_due status, got %q", outcome.Subscription.Status)
	}
	if outcome.Subscription.CurrentPeriodEndsAt == nil ||
		!outcome.Subscription.CurrentPeriodEndsAt.Equal(periodEnd) {
		t.Fatalf("expected period end to carry over")
	}
	if !outcome.Subscription.LastEventAt.Equal(event.OccurredAt) {
		t.Fatalf("expected watermark advance")
	}
}

func TestReconcileCanceledSubscriptionIsTerminal(t *testing.T) {
	r := fixedReconciler()
	canceled := &Subscription{
		ID:          "row_1",
		ExternalID:  "sub_1",
		Status:      SubscriptionStatusCanceled,
		LastEventAt: reconcileBase,
	}

	for _, kind := range []EventKind{EventKindSubscriptionUpdated, EventKindSubscriptionDeleted} {
		event := testEvent(kind, reconcileBase.Add(time.Minute))
		outcome := r.Reconcile(event, Snapshot{
			School:       testSchool(),
			Membership:   testMembership(),
			Subscription: canceled,
		})
		if outcome.Kind != OutcomeSkipped || outcome.Reason != SkipReasonTerminal {
			t.Fatalf("%s: expected terminal skip, got %q/%q", kind, outcome.Kind, outcome.Reason)
		}
	}
}

func TestReconcileDeleteCancelsWithEventTimestamps(t *testing.T) {
	r := fixedReconciler()
	event := testEvent(EventKindSubscriptionDeleted, reconcileBase.Add(time.Minute))
	canceledAt := reconcileBase.Add(30 * time.Second)
	event.CanceledAt = &canceledAt

	outcome := r.Reconcile(event, Snapshot{
		School:     testSchool(),
		Membership: testMembership(),
		Subscription: &Subscription{
			ID:          "row_1",
			ExternalID:  "sub_1",
			Status:      SubscriptionStatusActive,
			LastEventAt: reconcileBase,
		},
	})
	if outcome.Kind != OutcomeApplied {
		t.Fatalf("expected applied outcome, got %q (%v)", outcome.Kind, outcome.Err)
	}
	sub := outcome.Subscription
	if sub.Status != SubscriptionStatusCanceled {
		t.Fatalf("expected canceled status, got %q", sub.Status)
	}
	if sub.CanceledAt == nil || !sub.CanceledAt.Equal(canceledAt) {
		t.Fatalf("expected canceled_at from event")
	}
	if sub.EndedAt == nil || !sub.EndedAt.Equal(event.OccurredAt) {
		t.Fatalf("expected ended_at fallback to event timestamp")
	}
}

func TestReconcileInactiveCampaignProceedsWithFlag(t *testing.T) {
	r := fixedReconciler()
	expired := reconcileBase.Add(-time.Hour)
	event := testEvent(EventKindSubscriptionCreated, reconcileBase)

	outcome := r.Reconcile(event, Snapshot{
		School:     testSchool(),
		Membership: testMembership(),
		Campaign:   &Campaign{ID: "cmp_1", Name: "Expired", ExpiresAt: &expired},
	})
	if outcome.Kind != OutcomeApplied || !outcome.Created {
		t.Fatalf("expired campaign must not block creation, got %q", outcome.Kind)
	}
	if !outcome.CampaignInactive {
		t.Fatalf("expected campaign anomaly flag")
	}
}

func TestReconcileInvalidEventIsFatal(t *testing.T) {
	r := fixedReconciler()
	event := testEvent(EventKindSubscriptionCreated, reconcileBase)
	event.CustomerID = ""
	outcome := r.Reconcile(event, Snapshot{School: testSchool(), Membership: testMembership()})
	if outcome.Kind != OutcomeFatal {
		t.Fatalf("expected fatal outcome for invalid event, got %q", outcome.Kind)
	}
}
