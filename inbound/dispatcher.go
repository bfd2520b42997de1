package inbound

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/classpilot/billing/core"
	"github.com/classpilot/billing/stripe"
	"github.com/classpilot/billing/webhooks"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Request is one inbound webhook delivery as seen at the HTTP edge.
type Request struct {
	MarketID string
	Headers  map[string]string
	Body     []byte
	Metadata map[string]any
}

// Result maps directly onto the HTTP response: 200 for handled, deduped, or
// intentionally ignored events; 403 for authenticity failures; 422 for
// malformed envelopes.
type Result struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

// SecretResolver yields the webhook signing secret for a market; empty means
// the market is unknown. core.Config satisfies it.
type SecretResolver interface {
	MarketSecret(marketID string) string
}

// ReconcileJobMessage is the payload handed to the queue; the worker decodes
// the envelope's nested object there, never at the HTTP edge.
type ReconcileJobMessage struct {
	MarketID   string
	DeliveryID string
	ClaimID    string
	Payload    []byte
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg ReconcileJobMessage) error
}

// Dispatcher is the webhook HTTP edge: verify signature, decode the envelope,
// claim the delivery for dedupe, enqueue the reconcile job, answer
// immediately. Reconciliation itself is fire-and-forget.
type Dispatcher struct {
	Secrets     SecretResolver
	Ledger      webhooks.DeliveryLedger
	Enqueuer    JobEnqueuer
	Tolerance   time.Duration
	ClaimLease  time.Duration
	MaxAttempts int
	RetryPolicy webhooks.RetryPolicy
	Logger      glog.Logger
	Now         func() time.Time
}

func NewDispatcher(secrets SecretResolver, ledger webhooks.DeliveryLedger, enqueuer JobEnqueuer) *Dispatcher {
	return &Dispatcher{
		Secrets:     secrets,
		Ledger:      ledger,
		Enqueuer:    enqueuer,
		Tolerance:   5 * time.Minute,
		ClaimLease:  30 * time.Second,
		MaxAttempts: 8,
		RetryPolicy: webhooks.ExponentialRetryPolicy{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	if d == nil || d.Secrets == nil || d.Ledger == nil || d.Enqueuer == nil {
		return Result{}, inboundInternal("inbound: dispatcher requires secrets, ledger and enqueuer", nil)
	}

	marketID := strings.TrimSpace(req.MarketID)
	if marketID == "" {
		return Result{}, inboundBadInput("inbound: market id is required", nil)
	}

	secret := d.Secrets.MarketSecret(marketID)
	if secret == "" {
		return d.reject(ctx, marketID, req, inboundError(
			"inbound: unknown market",
			goerrors.CategoryAuthz,
			http.StatusForbidden,
			core.BillingErrorSignatureInvalid,
			map[string]any{"market_id": marketID},
		))
	}

	verifier := stripe.NewSignatureVerifier(secret, d.Tolerance)
	if d.Now != nil {
		verifier.Now = d.Now
	}
	header := headerValue(req.Headers, stripe.SignatureHeader)
	if err := verifier.Verify(ctx, header, req.Body); err != nil {
		return d.reject(ctx, marketID, req, inboundWrapError(
			err,
			goerrors.CategoryAuthz,
			"inbound: webhook verification failed",
			http.StatusForbidden,
			core.BillingErrorSignatureInvalid,
			map[string]any{"market_id": marketID},
		))
	}

	envelope, err := stripe.DecodeEnvelope(req.Body)
	if err != nil {
		return Result{
				Accepted:   false,
				StatusCode: http.StatusUnprocessableEntity,
				Metadata:   map[string]any{"market_id": marketID},
			}, inboundWrapError(
				err,
				goerrors.CategoryValidation,
				"inbound: malformed event envelope",
				http.StatusUnprocessableEntity,
				core.BillingErrorPayloadMalformed,
				map[string]any{"market_id": marketID},
			)
	}

	if !stripe.EventKindOf(envelope.Type).Known() {
		// Acknowledged but intentionally ignored: the sender must not retry.
		return Result{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata: map[string]any{
				"market_id":  marketID,
				"event_id":   envelope.ID,
				"event_type": envelope.Type,
				"unhandled":  true,
				"message":    "event type is not handled",
			},
		}, nil
	}

	delivery, claimed, err := d.Ledger.Claim(ctx, marketID, envelope.ID, req.Body, d.claimLease())
	if err != nil {
		return Result{}, inboundWrapError(
			err,
			goerrors.CategoryOperation,
			"inbound: claim webhook delivery",
			http.StatusInternalServerError,
			core.BillingErrorInternal,
			map[string]any{"market_id": marketID, "event_id": envelope.ID},
		)
	}
	if !claimed {
		return Result{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata: map[string]any{
				"market_id": marketID,
				"event_id":  envelope.ID,
				"status":    delivery.Status,
				"deduped":   true,
			},
		}, nil
	}

	msg := ReconcileJobMessage{
		MarketID:   marketID,
		DeliveryID: envelope.ID,
		ClaimID:    delivery.ClaimID,
		Payload:    append([]byte(nil), req.Body...),
	}
	if err := d.Enqueuer.Enqueue(ctx, msg); err != nil {
		nextAttemptAt := d.now().Add(d.retryPolicy().NextDelay(delivery.Attempts))
		_ = d.Ledger.Fail(ctx, delivery.ClaimID, err, nextAttemptAt, d.maxAttempts())
		return Result{}, inboundWrapError(
			err,
			goerrors.CategoryOperation,
			"inbound: enqueue reconcile job",
			http.StatusInternalServerError,
			core.BillingErrorInternal,
			map[string]any{"market_id": marketID, "event_id": envelope.ID},
		)
	}

	return Result{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"market_id": marketID,
			"event_id":  envelope.ID,
			"enqueued":  true,
		},
	}, nil
}

// reject records the raw payload for forensic review before answering 403.
func (d *Dispatcher) reject(ctx context.Context, marketID string, req Request, cause error) (Result, error) {
	deliveryID := headerValue(req.Headers, "X-Request-Id")
	if deliveryID == "" {
		deliveryID = "rejected-" + d.now().Format("20060102T150405.000000000Z0700")
	}
	if err := d.Ledger.RecordRejected(ctx, marketID, deliveryID, req.Body, cause); err != nil {
		d.logWarn(ctx, "record rejected webhook payload failed", map[string]any{
			"market_id": marketID,
			"error":     err.Error(),
		})
	}
	return Result{
		Accepted:   false,
		StatusCode: http.StatusForbidden,
		Metadata: map[string]any{
			"market_id": marketID,
			"rejected":  true,
		},
	}, cause
}

func (d *Dispatcher) logWarn(ctx context.Context, message string, fields map[string]any) {
	if d == nil || d.Logger == nil {
		return
	}
	logger := d.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	logger.Warn(message, args...)
}

func (d *Dispatcher) claimLease() time.Duration {
	if d != nil && d.ClaimLease > 0 {
		return d.ClaimLease
	}
	return 30 * time.Second
}

func (d *Dispatcher) maxAttempts() int {
	if d != nil && d.MaxAttempts > 0 {
		return d.MaxAttempts
	}
	return 8
}

func (d *Dispatcher) retryPolicy() webhooks.RetryPolicy {
	if d != nil && d.RetryPolicy != nil {
		return d.RetryPolicy
	}
	return webhooks.ExponentialRetryPolicy{}
}

func (d *Dispatcher) now() time.Time {
	if d != nil && d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
