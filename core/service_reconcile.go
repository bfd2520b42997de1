package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ReconcileSubscriptionEvent folds one external billing event into local
// subscription state. The read-check-write sequence runs under a
// per-external-subscription-id lock so concurrent deliveries for the same
// subscription cannot race the watermark check.
//
// The returned Outcome is the job disposition; the error return is reserved
// for infrastructure failures (store unreachable, lock contention) that the
// queue should treat as retryable.
func (s *Service) ReconcileSubscriptionEvent(ctx context.Context, event SubscriptionEvent) (Outcome, error) {
	if s == nil {
		return Outcome{}, fmt.Errorf("core: service is nil")
	}
	if s.schoolStore == nil || s.membershipStore == nil || s.subscriptionStore == nil {
		return Outcome{}, s.mapError(fmt.Errorf("core: reconcile requires school, membership and subscription stores"))
	}

	startedAt := time.Now()
	fields := map[string]any{
		"event_id":        event.ID,
		"event_kind":      string(event.Kind),
		"market_id":       event.MarketID,
		"subscription_id": event.ExternalID,
	}

	externalID := strings.TrimSpace(event.ExternalID)
	if externalID == "" {
		outcome := Outcome{Kind: OutcomeFatal, Err: fmt.Errorf("core: event subscription id is required")}
		s.observeOperation(ctx, startedAt, "reconcile_subscription_event", outcome.Err, fields)
		return outcome, nil
	}

	lock, err := s.keyLocker.Acquire(ctx, externalID, defaultReconcileLockTTL)
	if err != nil {
		// Another worker holds this subscription; let the queue redeliver.
		return Outcome{}, s.mapError(err)
	}
	defer func() { _ = lock.Unlock(ctx) }()

	snap, err := s.loadSnapshot(ctx, event)
	if err != nil {
		s.observeOperation(ctx, startedAt, "reconcile_subscription_event", err, fields)
		return Outcome{}, s.mapError(err)
	}

	outcome := s.reconciler.Reconcile(event, snap)

	if outcome.Applied() {
		outcome, err = s.persistOutcome(ctx, event, outcome)
		if err != nil {
			s.observeOperation(ctx, startedAt, "reconcile_subscription_event", err, fields)
			return Outcome{}, s.mapError(err)
		}
	}

	if outcome.CampaignInactive {
		s.logWarn(ctx, "subscription created against inactive campaign", cloneFields(fields))
	}

	fields["outcome"] = string(outcome.Kind)
	if outcome.Reason != "" {
		fields["skip_reason"] = string(outcome.Reason)
	}
	if snap.School != nil {
		fields["school_id"] = snap.School.ID
	}
	s.recordReconcileActivity(ctx, event, snap, outcome)
	s.observeOperation(ctx, startedAt, "reconcile_subscription_event", outcome.Err, fields)
	return outcome, nil
}

// loadSnapshot gathers the local rows the reconciler decides against. Missing
// rows load as nil pointers; the pure step decides what each absence means.
func (s *Service) loadSnapshot(ctx context.Context, event SubscriptionEvent) (Snapshot, error) {
	snap := Snapshot{}

	school, err := s.schoolStore.GetByBillingCustomerID(ctx, event.CustomerID)
	switch {
	case err == nil:
		snap.School = &school
	case errors.Is(err, ErrSchoolNotFound):
	default:
		return Snapshot{}, err
	}

	if strings.TrimSpace(event.PriceID) != "" {
		membership, err := s.membershipStore.GetByPriceID(ctx, event.PriceID)
		switch {
		case err == nil:
			snap.Membership = &membership
		case errors.Is(err, ErrMembershipNotFound):
		default:
			return Snapshot{}, err
		}
	}

	if snap.Membership != nil && strings.TrimSpace(snap.Membership.CampaignID) != "" && s.campaignStore != nil {
		campaign, err := s.campaignStore.GetByID(ctx, snap.Membership.CampaignID)
		switch {
		case err == nil:
			snap.Campaign = &campaign
		case errors.Is(err, ErrCampaignNotFound):
		default:
			return Snapshot{}, err
		}
	}

	sub, err := s.subscriptionStore.GetByExternalID(ctx, event.ExternalID)
	switch {
	case err == nil:
		snap.Subscription = &sub
	case errors.Is(err, ErrSubscriptionNotFound):
	default:
		return Snapshot{}, err
	}

	return snap, nil
}

func (s *Service) persistOutcome(ctx context.Context, event SubscriptionEvent, outcome Outcome) (Outcome, error) {
	if outcome.Subscription == nil {
		return Outcome{}, fmt.Errorf("core: applied outcome is missing subscription state")
	}
	if outcome.Created {
		created, err := s.subscriptionStore.Create(ctx, *outcome.Subscription)
		switch {
		case err == nil:
			outcome.Subscription = &created
			return outcome, nil
		case errors.Is(err, ErrSubscriptionExists):
			// Duplicate delivery won the insert race after our snapshot read.
			return Outcome{Kind: OutcomeSkipped, Reason: SkipReasonDuplicate}, nil
		default:
			return Outcome{}, err
		}
	}

	updated, err := s.subscriptionStore.Update(ctx, *outcome.Subscription)
	switch {
	case err == nil:
		outcome.Subscription = &updated
		return outcome, nil
	case errors.Is(err, ErrStaleEvent):
		// A newer event was applied between snapshot and write.
		return Outcome{Kind: OutcomeSkipped, Reason: SkipReasonStale}, nil
	default:
		return Outcome{}, err
	}
}

func (s *Service) recordReconcileActivity(ctx context.Context, event SubscriptionEvent, snap Snapshot, outcome Outcome) {
	if s == nil || s.activityStore == nil {
		return
	}
	schoolID := ""
	if snap.School != nil {
		schoolID = snap.School.ID
	}
	status := string(outcome.Kind)
	metadata := map[string]any{
		"event_id":   event.ID,
		"event_kind": string(event.Kind),
	}
	if outcome.Reason != "" {
		metadata["skip_reason"] = string(outcome.Reason)
	}
	if outcome.CampaignInactive {
		metadata["campaign_inactive"] = true
	}
	if outcome.Err != nil {
		metadata["error"] = outcome.Err.Error()
	}
	entry := ActivityEntry{
		SchoolID:   schoolID,
		Actor:      "stripe",
		ActorType:  ActorTypeWebhook,
		Action:     "subscription." + string(outcome.Kind),
		ObjectType: "subscription",
		ObjectID:   event.ExternalID,
		Status:     status,
		Metadata:   metadata,
	}
	if _, err := s.activityStore.Record(ctx, entry); err != nil {
		s.logWarn(ctx, "record reconcile activity failed", map[string]any{
			"event_id": event.ID,
			"error":    err.Error(),
		})
	}
}
