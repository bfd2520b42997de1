package inbound

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/classpilot/billing/core"
	"github.com/classpilot/billing/stripe"
	"github.com/classpilot/billing/webhooks"
)

var dispatchNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stubEnqueuer struct {
	messages []ReconcileJobMessage
	err      error
}

func (s *stubEnqueuer) Enqueue(_ context.Context, msg ReconcileJobMessage) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

type dispatchHarness struct {
	dispatcher *Dispatcher
	ledger     *webhooks.MemoryDeliveryLedger
	enqueuer   *stubEnqueuer
}

func newDispatchHarness() *dispatchHarness {
	ledger := webhooks.NewMemoryDeliveryLedger()
	ledger.Now = func() time.Time { return dispatchNow }
	enqueuer := &stubEnqueuer{}

	secrets := core.Config{MarketSecrets: map[string]string{"us": "whsec_test"}}
	dispatcher := NewDispatcher(secrets, ledger, enqueuer)
	dispatcher.Now = func() time.Time { return dispatchNow }

	return &dispatchHarness{dispatcher: dispatcher, ledger: ledger, enqueuer: enqueuer}
}

func signedRequest(marketID, eventType, eventID string) Request {
	body := []byte(fmt.Sprintf(
		`{"id":"%s","type":"%s","created":%d,"data":{"object":{"id":"sub_1","object":"subscription","customer":"cus_1","status":"active","items":{"data":[{"price":{"id":"price_1"}}]}}}}`,
		eventID, eventType, dispatchNow.Unix(),
	))
	return Request{
		MarketID: marketID,
		Headers: map[string]string{
			stripe.SignatureHeader: stripe.ComputeSignatureHeader("whsec_test", dispatchNow.Unix(), body),
		},
		Body: body,
	}
}

func TestDispatchEnqueuesVerifiedDelivery(t *testing.T) {
	h := newDispatchHarness()
	req := signedRequest("us", stripe.EventTypeSubscriptionCreated, "evt_1")

	result, err := h.dispatcher.Dispatch(context.Background(), req)
	if err != nil {
		t.Fatalf("expected dispatch to succeed, got %v", err)
	}
	if !result.Accepted || result.StatusCode != http.StatusOK {
		t.Fatalf("expected accepted 200, got %v/%d", result.Accepted, result.StatusCode)
	}
	if len(h.enqueuer.messages) != 1 {
		t.Fatalf("expected one enqueued job, got %d", len(h.enqueuer.messages))
	}
	msg := h.enqueuer.messages[0]
	if msg.MarketID != "us" || msg.DeliveryID != "evt_1" || msg.ClaimID == "" {
		t.Fatalf("expected claimed job message, got %+v", msg)
	}

	record, err := h.ledger.Get(context.Background(), "us", "evt_1")
	if err != nil {
		t.Fatalf("expected claimed delivery, got %v", err)
	}
	if record.Status != webhooks.DeliveryStatusProcessing {
		t.Fatalf("expected processing delivery, got %q", record.Status)
	}
}

func TestDispatchUnknownMarketRejects(t *testing.T) {
	h := newDispatchHarness()
	req := signedRequest("mx", stripe.EventTypeSubscriptionCreated, "evt_1")
	req.Headers["X-Request-Id"] = "req_1"

	result, err := h.dispatcher.Dispatch(context.Background(), req)
	if err == nil {
		t.Fatalf("expected unknown market rejection")
	}
	if result.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", result.StatusCode)
	}

	record, lookupErr := h.ledger.Get(context.Background(), "mx", "req_1")
	if lookupErr != nil {
		t.Fatalf("expected rejected payload to be recorded, got %v", lookupErr)
	}
	if record.Status != webhooks.DeliveryStatusDead {
		t.Fatalf("expected dead rejected record, got %q", record.Status)
	}
}

func TestDispatchBadSignatureRejects(t *testing.T) {
	h := newDispatchHarness()
	req := signedRequest("us", stripe.EventTypeSubscriptionCreated, "evt_1")
	req.Headers[stripe.SignatureHeader] = stripe.ComputeSignatureHeader("whsec_wrong", dispatchNow.Unix(), req.Body)

	result, err := h.dispatcher.Dispatch(context.Background(), req)
	if err == nil {
		t.Fatalf("expected signature rejection")
	}
	if result.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", result.StatusCode)
	}
	if len(h.enqueuer.messages) != 0 {
		t.Fatalf("rejected delivery must not enqueue")
	}
}

func TestDispatchMalformedEnvelopeIsUnprocessable(t *testing.T) {
	h := newDispatchHarness()
	body := []byte(`{"type":"customer.subscription.created"}`)
	req := Request{
		MarketID: "us",
		Headers: map[string]string{
			stripe.SignatureHeader: stripe.ComputeSignatureHeader("whsec_test", dispatchNow.Unix(), body),
		},
		Body: body,
	}

	result, err := h.dispatcher.Dispatch(context.Background(), req)
	if err == nil {
		t.Fatalf("expected malformed envelope rejection")
	}
	if result.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", result.StatusCode)
	}
}

func TestDispatchUnknownEventTypeAcknowledged(t *testing.T) {
	h := newDispatchHarness()
	body := []byte(fmt.Sprintf(`{"id":"evt_inv","type":"invoice.paid","created":%d,"data":{"object":{}}}`, dispatchNow.Unix()))
	req := Request{
		MarketID: "us",
		Headers: map[string]string{
			stripe.SignatureHeader: stripe.ComputeSignatureHeader("whsec_test", dispatchNow.Unix(), body),
		},
		Body: body,
	}

	result, err := h.dispatcher.Dispatch(context.Background(), req)
	if err != nil {
		t.Fatalf("expected unhandled acknowledgment, got %v", err)
	}
	if !result.Accepted || result.StatusCode != http.StatusOK {
		t.Fatalf("expected accepted 200 for ignored type, got %v/%d", result.Accepted, result.StatusCode)
	}
	if result.Metadata["unhandled"] != true {
		t.Fatalf("expected unhandled marker, got %v", result.Metadata)
	}
	if len(h.enqueuer.messages) != 0 {
		t.Fatalf("ignored event type must not enqueue")
	}
}

func TestDispatchDuplicateDeliveryIsDeduped(t *testing.T) {
	h := newDispatchHarness()
	req := signedRequest("us", stripe.EventTypeSubscriptionCreated, "evt_1")

	if _, err := h.dispatcher.Dispatch(context.Background(), req); err != nil {
		t.Fatalf("expected first dispatch to succeed, got %v", err)
	}
	result, err := h.dispatcher.Dispatch(context.Background(), req)
	if err != nil {
		t.Fatalf("expected duplicate acknowledgment, got %v", err)
	}
	if !result.Accepted || result.StatusCode != http.StatusOK {
		t.Fatalf("expected accepted 200 for duplicate, got %v/%d", result.Accepted, result.StatusCode)
	}
	if result.Metadata["deduped"] != true {
		t.Fatalf("expected dedupe marker, got %v", result.Metadata)
	}
	if len(h.enqueuer.messages) != 1 {
		t.Fatalf("duplicate must not enqueue twice, got %d", len(h.enqueuer.messages))
	}
}

func TestDispatchEnqueueFailureSchedulesRetry(t *testing.T) {
	h := newDispatchHarness()
	h.enqueuer.err = errors.New("queue unavailable")
	req := signedRequest("us", stripe.EventTypeSubscriptionCreated, "evt_1")

	result, err := h.dispatcher.Dispatch(context.Background(), req)
	if err == nil {
		t.Fatalf("expected enqueue failure to surface")
	}
	if result.StatusCode != 0 && result.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", result.StatusCode)
	}

	record, lookupErr := h.ledger.Get(context.Background(), "us", "evt_1")
	if lookupErr != nil {
		t.Fatalf("expected delivery record, got %v", lookupErr)
	}
	if record.Status != webhooks.DeliveryStatusRetryReady {
		t.Fatalf("expected retry_ready after enqueue failure, got %q", record.Status)
	}
	if record.NextAttemptAt == nil || !record.NextAttemptAt.After(dispatchNow.Add(-time.Second)) {
		t.Fatalf("expected next attempt schedule, got %v", record.NextAttemptAt)
	}
}
