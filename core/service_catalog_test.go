package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestServiceCreateSchool(t *testing.T) {
	h := newReconcileHarness(t)

	school, err := h.service.CreateSchool(context.Background(), CreateSchoolInput{
		Name:              "  Lakeside Homeschool  ",
		Kind:              "Homeschool",
		BillingCustomerID: "cus_2",
		MarketID:          "us",
	})
	if err != nil {
		t.Fatalf("expected school creation, got %v", err)
	}
	if school.Name != "Lakeside Homeschool" || school.Kind != SchoolKindHomeschool {
		t.Fatalf("expected normalized school, got %+v", school)
	}

	stored, err := h.schools.GetByBillingCustomerID(context.Background(), "cus_2")
	if err != nil {
		t.Fatalf("expected persisted school, got %v", err)
	}
	if stored.MarketID != "us" {
		t.Fatalf("expected market binding, got %q", stored.MarketID)
	}

	if len(h.activity.entries) != 1 || h.activity.entries[0].Action != "school.created" {
		t.Fatalf("expected catalog activity entry, got %+v", h.activity.entries)
	}
}

func TestServiceCreateSchoolRejectsInvalidKind(t *testing.T) {
	h := newReconcileHarness(t)

	_, err := h.service.CreateSchool(context.Background(), CreateSchoolInput{
		Name:     "Charter One",
		Kind:     "charter",
		MarketID: "us",
	})
	if err == nil {
		t.Fatalf("expected invalid kind rejection")
	}
	if !errors.Is(err, ErrInvalidSchoolKind) {
		t.Fatalf("expected ErrInvalidSchoolKind in chain, got %v", err)
	}
}

func TestServiceCreateMembershipChecksCampaign(t *testing.T) {
	h := newReconcileHarness(t)

	membership, err := h.service.CreateMembership(context.Background(), CreateMembershipInput{
		Name:         "Monthly Plan",
		CampaignID:   "cmp_1",
		PriceID:      "price_2",
		Recurring:    true,
		PeriodMonths: 1,
	})
	if err != nil {
		t.Fatalf("expected membership creation, got %v", err)
	}
	if membership.PriceID != "price_2" {
		t.Fatalf("expected price binding, got %q", membership.PriceID)
	}

	_, err = h.service.CreateMembership(context.Background(), CreateMembershipInput{
		Name:         "Orphan Plan",
		CampaignID:   "cmp_missing",
		PriceID:      "price_3",
		PeriodMonths: 1,
	})
	if err == nil {
		t.Fatalf("expected missing campaign rejection")
	}
	if !errors.Is(err, ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound in chain, got %v", err)
	}
}

func TestServiceCreateCampaign(t *testing.T) {
	h := newReconcileHarness(t)
	expires := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	campaign, err := h.service.CreateCampaign(context.Background(), CreateCampaignInput{
		Name:      "Back to School",
		ExpiresAt: &expires,
	})
	if err != nil {
		t.Fatalf("expected campaign creation, got %v", err)
	}
	if campaign.ExpiresAt == nil || !campaign.ExpiresAt.Equal(expires) {
		t.Fatalf("expected expiry to persist")
	}

	if _, err := h.service.CreateCampaign(context.Background(), CreateCampaignInput{Name: "  "}); err == nil {
		t.Fatalf("expected empty name rejection")
	}
}
