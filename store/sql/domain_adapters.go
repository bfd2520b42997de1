package sqlstore

import (
	"time"

	"github.com/classpilot/billing/core"
	"github.com/classpilot/billing/webhooks"
)

func newSchoolRecord(school core.School, now time.Time) *schoolRecord {
	return &schoolRecord{
		ID:                school.ID,
		Name:              school.Name,
		Kind:              string(school.Kind),
		BillingCustomerID: school.BillingCustomerID,
		MarketID:          school.MarketID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (r *schoolRecord) toDomain() core.School {
	if r == nil {
		return core.School{}
	}
	return core.School{
		ID:                r.ID,
		Name:              r.Name,
		Kind:              core.SchoolKind(r.Kind),
		BillingCustomerID: r.BillingCustomerID,
		MarketID:          r.MarketID,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func newMembershipRecord(membership core.Membership, now time.Time) *membershipRecord {
	return &membershipRecord{
		ID:           membership.ID,
		Name:         membership.Name,
		ProductID:    membership.ProductID,
		CampaignID:   membership.CampaignID,
		PriceID:      membership.PriceID,
		Recurring:    membership.Recurring,
		PeriodMonths: membership.PeriodMonths,
		PeriodDays:   membership.PeriodDays,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r *membershipRecord) toDomain() core.Membership {
	if r == nil {
		return core.Membership{}
	}
	return core.Membership{
		ID:           r.ID,
		Name:         r.Name,
		ProductID:    r.ProductID,
		CampaignID:   r.CampaignID,
		PriceID:      r.PriceID,
		Recurring:    r.Recurring,
		PeriodMonths: r.PeriodMonths,
		PeriodDays:   r.PeriodDays,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func newCampaignRecord(campaign core.Campaign, now time.Time) *campaignRecord {
	return &campaignRecord{
		ID:        campaign.ID,
		Name:      campaign.Name,
		ExpiresAt: cloneTimePointer(campaign.ExpiresAt),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *campaignRecord) toDomain() core.Campaign {
	if r == nil {
		return core.Campaign{}
	}
	return core.Campaign{
		ID:        r.ID,
		Name:      r.Name,
		ExpiresAt: cloneTimePointer(r.ExpiresAt),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func newSubscriptionRecord(sub core.Subscription, now time.Time) *subscriptionRecord {
	return &subscriptionRecord{
		ID:                    sub.ID,
		SchoolID:              sub.SchoolID,
		MembershipID:          sub.MembershipID,
		ExternalID:            sub.ExternalID,
		Status:                string(sub.Status),
		StartsAt:              cloneTimePointer(sub.StartsAt),
		CancelsAt:             cloneTimePointer(sub.CancelsAt),
		CurrentPeriodStartsAt: cloneTimePointer(sub.CurrentPeriodStartsAt),
		CurrentPeriodEndsAt:   cloneTimePointer(sub.CurrentPeriodEndsAt),
		CanceledAt:            cloneTimePointer(sub.CanceledAt),
		EndedAt:               cloneTimePointer(sub.EndedAt),
		LastEventAt:           sub.LastEventAt.UTC(),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func (r *subscriptionRecord) toDomain() core.Subscription {
	if r == nil {
		return core.Subscription{}
	}
	return core.Subscription{
		ID:                    r.ID,
		SchoolID:              r.SchoolID,
		MembershipID:          r.MembershipID,
		ExternalID:            r.ExternalID,
		Status:                core.SubscriptionStatus(r.Status),
		StartsAt:              cloneTimePointer(r.StartsAt),
		CancelsAt:             cloneTimePointer(r.CancelsAt),
		CurrentPeriodStartsAt: cloneTimePointer(r.CurrentPeriodStartsAt),
		CurrentPeriodEndsAt:   cloneTimePointer(r.CurrentPeriodEndsAt),
		CanceledAt:            cloneTimePointer(r.CanceledAt),
		EndedAt:               cloneTimePointer(r.EndedAt),
		LastEventAt:           r.LastEventAt,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

func newActivityEntryRecord(entry core.ActivityEntry, now time.Time) *activityEntryRecord {
	return &activityEntryRecord{
		ID:         entry.ID,
		SchoolID:   entry.SchoolID,
		Actor:      entry.Actor,
		ActorType:  entry.ActorType,
		Action:     entry.Action,
		ObjectType: entry.ObjectType,
		ObjectID:   entry.ObjectID,
		Status:     entry.Status,
		Metadata:   copyAnyMap(entry.Metadata),
		CreatedAt:  now,
	}
}

func (r *activityEntryRecord) toDomain() core.ActivityEntry {
	if r == nil {
		return core.ActivityEntry{}
	}
	return core.ActivityEntry{
		ID:         r.ID,
		SchoolID:   r.SchoolID,
		Actor:      r.Actor,
		ActorType:  r.ActorType,
		Action:     r.Action,
		ObjectType: r.ObjectType,
		ObjectID:   r.ObjectID,
		Status:     r.Status,
		Metadata:   copyAnyMap(r.Metadata),
		CreatedAt:  r.CreatedAt,
	}
}

func (r *webhookDeliveryRecord) toDomain() webhooks.DeliveryRecord {
	if r == nil {
		return webhooks.DeliveryRecord{}
	}
	return webhooks.DeliveryRecord{
		ID:            r.ID,
		ClaimID:       r.ClaimID,
		MarketID:      r.MarketID,
		DeliveryID:    r.DeliveryID,
		Status:        r.Status,
		Attempts:      r.Attempts,
		LastError:     r.LastError,
		NextAttemptAt: cloneTimePointer(r.NextAttemptAt),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func copyAnyMap(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
