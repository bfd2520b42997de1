package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func (s *Service) GetSubscriptionByExternalID(ctx context.Context, externalID string) (Subscription, error) {
	if s == nil || s.subscriptionStore == nil {
		return Subscription{}, fmt.Errorf("core: subscription store is not configured")
	}
	sub, err := s.subscriptionStore.GetByExternalID(ctx, externalID)
	if err != nil {
		return Subscription{}, s.mapError(err)
	}
	return sub, nil
}

func (s *Service) ListSubscriptionsBySchool(ctx context.Context, schoolID string, limit, offset int) ([]Subscription, int, error) {
	if s == nil || s.subscriptionStore == nil {
		return nil, 0, fmt.Errorf("core: subscription store is not configured")
	}
	subs, total, err := s.subscriptionStore.ListBySchool(ctx, schoolID, limit, offset)
	if err != nil {
		return nil, 0, s.mapError(err)
	}
	return subs, total, nil
}

// CancelSubscription tears down a subscription from the operator side, for
// example when a school offboards before the external processor emits the
// deleted event. The watermark advances past the stored one so a late echo of
// the external cancellation is dropped as stale.
func (s *Service) CancelSubscription(ctx context.Context, externalID string) (Subscription, error) {
	if s == nil || s.subscriptionStore == nil {
		return Subscription{}, fmt.Errorf("core: subscription store is not configured")
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return Subscription{}, s.mapError(fmt.Errorf("core: subscription external id is required"))
	}
	startedAt := time.Now()

	lock, err := s.keyLocker.Acquire(ctx, externalID, defaultReconcileLockTTL)
	if err != nil {
		return Subscription{}, s.mapError(err)
	}
	defer func() { _ = lock.Unlock(ctx) }()

	sub, err := s.subscriptionStore.GetByExternalID(ctx, externalID)
	if err != nil {
		return Subscription{}, s.mapError(err)
	}
	if sub.Canceled() {
		return Subscription{}, s.mapError(fmt.Errorf("%w: %s", ErrSubscriptionCanceled, externalID))
	}

	now := time.Now().UTC()
	watermark := now
	if !watermark.After(sub.LastEventAt) {
		watermark = sub.LastEventAt.Add(time.Second)
	}
	sub.Status = SubscriptionStatusCanceled
	sub.CanceledAt = &now
	if sub.EndedAt == nil {
		sub.EndedAt = &now
	}
	sub.LastEventAt = watermark

	updated, err := s.subscriptionStore.Update(ctx, sub)
	s.observeOperation(ctx, startedAt, "cancel_subscription", err, map[string]any{
		"subscription_id": externalID,
	})
	if err != nil {
		return Subscription{}, s.mapError(err)
	}
	s.recordCatalogActivity(ctx, updated.SchoolID, "subscription.canceled", "subscription", externalID)
	return updated, nil
}

func (s *Service) ListActivityBySchool(ctx context.Context, schoolID string, limit, offset int) ([]ActivityEntry, int, error) {
	if s == nil || s.activityStore == nil {
		return nil, 0, fmt.Errorf("core: activity store is not configured")
	}
	entries, total, err := s.activityStore.ListBySchool(ctx, schoolID, limit, offset)
	if err != nil {
		return nil, 0, s.mapError(err)
	}
	return entries, total, nil
}
