package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestServiceCancelSubscription(t *testing.T) {
	h := newReconcileHarness(t)
	watermark := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	h.subscriptions.byExternal["sub_1"] = Subscription{
		ID:          "row_1",
		SchoolID:    "sch_1",
		ExternalID:  "sub_1",
		Status:      SubscriptionStatusActive,
		LastEventAt: watermark,
	}

	sub, err := h.service.CancelSubscription(context.Background(), " sub_1 ")
	if err != nil {
		t.Fatalf("expected cancel to succeed, got %v", err)
	}
	if sub.Status != SubscriptionStatusCanceled {
		t.Fatalf("expected canceled status, got %q", sub.Status)
	}
	if sub.CanceledAt == nil || sub.EndedAt == nil {
		t.Fatalf("expected cancellation timestamps, got %+v", sub)
	}
	if !sub.LastEventAt.After(watermark) {
		t.Fatalf("expected watermark to advance past %v, got %v", watermark, sub.LastEventAt)
	}

	stored := h.subscriptions.byExternal["sub_1"]
	if stored.Status != SubscriptionStatusCanceled {
		t.Fatalf("expected stored row to be canceled, got %q", stored.Status)
	}

	found := false
	for _, entry := range h.activity.entries {
		if entry.Action == "subscription.canceled" && entry.SchoolID == "sch_1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected cancellation activity entry, got %+v", h.activity.entries)
	}
}

func TestServiceCancelSubscriptionDropsLateExternalEcho(t *testing.T) {
	h := newReconcileHarness(t)
	watermark := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	h.subscriptions.byExternal["sub_1"] = Subscription{
		ID:          "row_1",
		SchoolID:    "sch_1",
		ExternalID:  "sub_1",
		Status:      SubscriptionStatusActive,
		LastEventAt: watermark,
	}

	if _, err := h.service.CancelSubscription(context.Background(), "sub_1"); err != nil {
		t.Fatalf("expected cancel to succeed, got %v", err)
	}

	echo := reconcileTestEvent(EventKindSubscriptionDeleted, watermark.Add(time.Hour))
	outcome, err := h.service.ReconcileSubscriptionEvent(context.Background(), echo)
	if err != nil {
		t.Fatalf("expected reconcile to succeed, got %v", err)
	}
	if outcome.Kind != OutcomeSkipped {
		t.Fatalf("expected late echo to be skipped, got %+v", outcome)
	}
}

func TestServiceCancelSubscriptionAlreadyCanceled(t *testing.T) {
	h := newReconcileHarness(t)
	now := time.Now().UTC()
	h.subscriptions.byExternal["sub_1"] = Subscription{
		ID:          "row_1",
		ExternalID:  "sub_1",
		Status:      SubscriptionStatusCanceled,
		CanceledAt:  &now,
		LastEventAt: now,
	}

	_, err := h.service.CancelSubscription(context.Background(), "sub_1")
	if err == nil {
		t.Fatalf("expected canceled subscription rejection")
	}
	if !errors.Is(err, ErrSubscriptionCanceled) {
		t.Fatalf("expected ErrSubscriptionCanceled in chain, got %v", err)
	}
}

func TestServiceCancelSubscriptionNotFound(t *testing.T) {
	h := newReconcileHarness(t)

	_, err := h.service.CancelSubscription(context.Background(), "sub_missing")
	if err == nil {
		t.Fatalf("expected missing subscription rejection")
	}
	if !errors.Is(err, ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound in chain, got %v", err)
	}
}

func TestServiceCancelSubscriptionRequiresExternalID(t *testing.T) {
	h := newReconcileHarness(t)

	if _, err := h.service.CancelSubscription(context.Background(), "   "); err == nil {
		t.Fatalf("expected empty external id rejection")
	}
}
