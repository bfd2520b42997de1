package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/classpilot/billing/core"
)

type stubMutatingService struct {
	school     core.CreateSchoolInput
	membership core.CreateMembershipInput
	campaign   core.CreateCampaignInput
	event      core.SubscriptionEvent
	canceled   string
	outcome    core.Outcome
	err        error
}

func (s *stubMutatingService) CreateSchool(_ context.Context, in core.CreateSchoolInput) (core.School, error) {
	s.school = in
	return core.School{ID: "sch_1", Name: in.Name}, s.err
}

func (s *stubMutatingService) CreateMembership(_ context.Context, in core.CreateMembershipInput) (core.Membership, error) {
	s.membership = in
	return core.Membership{ID: "mem_1", PriceID: in.PriceID}, s.err
}

func (s *stubMutatingService) CreateCampaign(_ context.Context, in core.CreateCampaignInput) (core.Campaign, error) {
	s.campaign = in
	return core.Campaign{ID: "cmp_1", Name: in.Name}, s.err
}

func (s *stubMutatingService) ReconcileSubscriptionEvent(_ context.Context, event core.SubscriptionEvent) (core.Outcome, error) {
	s.event = event
	return s.outcome, s.err
}

func (s *stubMutatingService) CancelSubscription(_ context.Context, externalID string) (core.Subscription, error) {
	s.canceled = externalID
	return core.Subscription{ExternalID: externalID, Status: core.SubscriptionStatusCanceled}, s.err
}

func TestCreateSchoolCommandExecute(t *testing.T) {
	service := &stubMutatingService{}
	cmd := NewCreateSchoolCommand(service)

	msg := CreateSchoolMessage{Input: core.CreateSchoolInput{
		Name:     "Westfield Academy",
		Kind:     "traditional",
		MarketID: "us",
	}}
	if err := cmd.Execute(context.Background(), msg); err != nil {
		t.Fatalf("expected execute to succeed, got %v", err)
	}
	if service.school.Name != "Westfield Academy" {
		t.Fatalf("expected service invocation, got %+v", service.school)
	}
}

func TestCreateSchoolCommandPropagatesServiceError(t *testing.T) {
	service := &stubMutatingService{err: errors.New("store down")}
	cmd := NewCreateSchoolCommand(service)

	msg := CreateSchoolMessage{Input: core.CreateSchoolInput{
		Name:     "Westfield Academy",
		Kind:     "traditional",
		MarketID: "us",
	}}
	if err := cmd.Execute(context.Background(), msg); err == nil {
		t.Fatalf("expected service error to propagate")
	}
}

func TestCreateSchoolCommandRequiresService(t *testing.T) {
	cmd := NewCreateSchoolCommand(nil)
	if err := cmd.Execute(context.Background(), CreateSchoolMessage{}); err == nil {
		t.Fatalf("expected dependency error")
	}
}

func TestReconcileEventCommandExecute(t *testing.T) {
	service := &stubMutatingService{outcome: core.Outcome{Kind: core.OutcomeApplied}}
	cmd := NewReconcileEventCommand(service)

	msg := ReconcileEventMessage{Event: core.SubscriptionEvent{
		ID:         "evt_1",
		Kind:       core.EventKindSubscriptionCreated,
		ExternalID: "sub_1",
		CustomerID: "cus_1",
		OccurredAt: time.Now(),
	}}
	if err := cmd.Execute(context.Background(), msg); err != nil {
		t.Fatalf("expected execute to succeed, got %v", err)
	}
	if service.event.ID != "evt_1" {
		t.Fatalf("expected event to reach the service, got %+v", service.event)
	}
}

func TestCancelSubscriptionCommandExecute(t *testing.T) {
	service := &stubMutatingService{}
	cmd := NewCancelSubscriptionCommand(service)

	msg := CancelSubscriptionMessage{ExternalID: "sub_1"}
	if err := cmd.Execute(context.Background(), msg); err != nil {
		t.Fatalf("expected execute to succeed, got %v", err)
	}
	if service.canceled != "sub_1" {
		t.Fatalf("expected cancellation to reach the service, got %q", service.canceled)
	}
}

func TestCancelSubscriptionCommandRequiresService(t *testing.T) {
	cmd := NewCancelSubscriptionCommand(nil)
	if err := cmd.Execute(context.Background(), CancelSubscriptionMessage{ExternalID: "sub_1"}); err == nil {
		t.Fatalf("expected dependency error")
	}
}

func TestMessageTypes(t *testing.T) {
	cases := map[string]string{
		CreateSchoolMessage{}.Type():       TypeCreateSchool,
		CreateMembershipMessage{}.Type():   TypeCreateMembership,
		CreateCampaignMessage{}.Type():     TypeCreateCampaign,
		ReconcileEventMessage{}.Type():     TypeReconcileEvent,
		CancelSubscriptionMessage{}.Type(): TypeCancelSubscription,
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected message type %q, got %q", want, got)
		}
	}
}

func TestMessageValidation(t *testing.T) {
	if err := (CreateSchoolMessage{}).Validate(); err == nil {
		t.Fatalf("expected empty school message to fail validation")
	}
	if err := (CreateMembershipMessage{Input: core.CreateMembershipInput{Name: "Plan"}}).Validate(); err == nil {
		t.Fatalf("expected membership message without price to fail validation")
	}
	if err := (CreateCampaignMessage{}).Validate(); err == nil {
		t.Fatalf("expected empty campaign message to fail validation")
	}
	if err := (ReconcileEventMessage{}).Validate(); err == nil {
		t.Fatalf("expected empty reconcile message to fail validation")
	}
	if err := (CancelSubscriptionMessage{}).Validate(); err == nil {
		t.Fatalf("expected empty cancel message to fail validation")
	}

	valid := ReconcileEventMessage{Event: core.SubscriptionEvent{
		ID:         "evt_1",
		Kind:       core.EventKindSubscriptionUpdated,
		ExternalID: "sub_1",
		CustomerID: "cus_1",
		OccurredAt: time.Now(),
	}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid reconcile message, got %v", err)
	}
}
