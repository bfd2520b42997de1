package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/classpilot/billing/core"
	"github.com/classpilot/billing/inbound"
	"github.com/classpilot/billing/stripe"
	"github.com/classpilot/billing/webhooks"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

const JobIDReconcileWebhook = "billing.webhook.reconcile"

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// NewReconcileMessage maps an inbound reconcile job onto the go-job wire
// message. The raw envelope rides along as a parameter; the worker decodes it.
func NewReconcileMessage(msg inbound.ReconcileJobMessage) *job.ExecutionMessage {
	return &job.ExecutionMessage{
		JobID: JobIDReconcileWebhook,
		Parameters: map[string]any{
			"market_id":   strings.TrimSpace(msg.MarketID),
			"delivery_id": strings.TrimSpace(msg.DeliveryID),
			"claim_id":    strings.TrimSpace(msg.ClaimID),
			"payload":     string(msg.Payload),
		},
		IdempotencyKey: strings.TrimSpace(msg.MarketID) + "::" + strings.TrimSpace(msg.DeliveryID),
	}
}

// ParseReconcileMessage is the inverse of NewReconcileMessage.
func ParseReconcileMessage(msg *job.ExecutionMessage) (inbound.ReconcileJobMessage, error) {
	if msg == nil {
		return inbound.ReconcileJobMessage{}, fmt.Errorf("gojob: execution message is required")
	}
	out := inbound.ReconcileJobMessage{
		MarketID:   paramString(msg.Parameters, "market_id"),
		DeliveryID: paramString(msg.Parameters, "delivery_id"),
		ClaimID:    paramString(msg.Parameters, "claim_id"),
		Payload:    []byte(paramString(msg.Parameters, "payload")),
	}
	if out.MarketID == "" || out.DeliveryID == "" {
		return inbound.ReconcileJobMessage{}, fmt.Errorf("gojob: market id and delivery id parameters are required")
	}
	if len(out.Payload) == 0 {
		return inbound.ReconcileJobMessage{}, fmt.Errorf("gojob: payload parameter is required")
	}
	return out, nil
}

type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg inbound.ReconcileJobMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	return a.enqueuer.Enqueue(ctx, NewReconcileMessage(msg))
}

// NackForOutcome translates a closed reconcile outcome into the queue's
// native disposition. Applied and skipped outcomes acknowledge; retry
// outcomes requeue with the reconciler's delay; fatal outcomes dead-letter.
func NackForOutcome(outcome core.Outcome) (ack bool, opts queue.NackOptions) {
	switch outcome.Kind {
	case core.OutcomeApplied, core.OutcomeSkipped:
		return true, queue.NackOptions{}
	case core.OutcomeRetry:
		reason := ""
		if outcome.Err != nil {
			reason = outcome.Err.Error()
		}
		return false, queue.NackOptions{
			Requeue: true,
			Delay:   outcome.Delay,
			Reason:  reason,
		}
	default:
		reason := "reconcile failed permanently"
		if outcome.Err != nil {
			reason = outcome.Err.Error()
		}
		return false, queue.NackOptions{
			DeadLetter: true,
			Reason:     reason,
		}
	}
}

// ReconcileWorker consumes reconcile jobs: decode the delivery payload, route
// the event, then translate the outcome into ledger state and a queue
// disposition.
type ReconcileWorker struct {
	Router  *stripe.Router
	Ledger  webhooks.DeliveryLedger
	Policy  RetryPolicy
	Backoff webhooks.RetryPolicy
	Now     func() time.Time
}

func NewReconcileWorker(router *stripe.Router, ledger webhooks.DeliveryLedger) *ReconcileWorker {
	return &ReconcileWorker{
		Router:  router,
		Ledger:  ledger,
		Policy:  RetryPolicy{MaxAttempts: 8, DeadLetterOnMax: true},
		Backoff: webhooks.ExponentialRetryPolicy{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// ProcessDelivery handles one queued delivery end to end and settles it with
// the queue. The returned error reports unexpected adapter failures only; job
// dispositions are already signaled through Ack/Nack.
func (w *ReconcileWorker) ProcessDelivery(ctx context.Context, delivery queue.Delivery) error {
	if w == nil || w.Router == nil || w.Ledger == nil {
		return fmt.Errorf("gojob: reconcile worker requires router and ledger")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}

	msg, err := ParseReconcileMessage(delivery.Message())
	if err != nil {
		// Unusable message; no ledger claim to settle.
		return delivery.Nack(ctx, queue.NackOptions{DeadLetter: true, Reason: err.Error()})
	}

	event, parseErr := decodeEvent(msg)
	if parseErr != nil {
		// Malformed nested object: non-retryable, operator follow-up required.
		_ = w.Ledger.Fail(ctx, msg.ClaimID, parseErr, w.now(), 1)
		return delivery.Nack(ctx, queue.NackOptions{DeadLetter: true, Reason: parseErr.Error()})
	}

	outcome, handled, err := w.Router.Dispatch(ctx, event)
	if err != nil {
		attempts := w.deliveryAttempts(ctx, msg)
		nextAttemptAt := w.now().Add(w.backoff().NextDelay(attempts))
		_ = w.Ledger.Fail(ctx, msg.ClaimID, err, nextAttemptAt, w.Policy.MaxAttempts)
		opts := w.Policy.NormalizeAttempt(queue.NackOptions{
			Requeue: true,
			Delay:   w.backoff().NextDelay(attempts),
			Reason:  err.Error(),
		}, attempts)
		return delivery.Nack(ctx, opts)
	}
	if !handled {
		// The edge filters unknown kinds; an unhandled event here is a no-op.
		_ = w.Ledger.Complete(ctx, msg.ClaimID)
		return delivery.Ack(ctx)
	}

	ack, opts := NackForOutcome(outcome)
	if ack {
		_ = w.Ledger.Complete(ctx, msg.ClaimID)
		return delivery.Ack(ctx)
	}
	attempts := w.deliveryAttempts(ctx, msg)
	if opts.DeadLetter {
		_ = w.Ledger.Fail(ctx, msg.ClaimID, outcome.Err, w.now(), 1)
	} else {
		_ = w.Ledger.Fail(ctx, msg.ClaimID, outcome.Err, w.now().Add(opts.Delay), w.Policy.MaxAttempts)
	}
	return delivery.Nack(ctx, w.Policy.NormalizeAttempt(opts, attempts))
}

func decodeEvent(msg inbound.ReconcileJobMessage) (core.SubscriptionEvent, error) {
	envelope, err := stripe.DecodeEnvelope(msg.Payload)
	if err != nil {
		return core.SubscriptionEvent{}, err
	}
	return stripe.ToSubscriptionEvent(envelope, msg.MarketID)
}

func (w *ReconcileWorker) deliveryAttempts(ctx context.Context, msg inbound.ReconcileJobMessage) int {
	record, err := w.Ledger.Get(ctx, msg.MarketID, msg.DeliveryID)
	if err != nil {
		return 1
	}
	return record.Attempts
}

func (w *ReconcileWorker) backoff() webhooks.RetryPolicy {
	if w != nil && w.Backoff != nil {
		return w.Backoff
	}
	return webhooks.ExponentialRetryPolicy{}
}

func (w *ReconcileWorker) now() time.Time {
	if w != nil && w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}

func paramString(params map[string]any, key string) string {
	if len(params) == 0 {
		return ""
	}
	value, ok := params[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

var _ inbound.JobEnqueuer = (*EnqueuerAdapter)(nil)
