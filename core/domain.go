package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidSchoolKind         = errors.New("core: invalid school kind")
	ErrInvalidSubscriptionStatus = errors.New("core: invalid subscription status")
	ErrSchoolNotFound            = errors.New("core: school not found")
	ErrMembershipNotFound        = errors.New("core: membership not found")
	ErrCampaignNotFound          = errors.New("core: campaign not found")
	ErrSubscriptionNotFound      = errors.New("core: subscription not found")
	ErrSubscriptionExists        = errors.New("core: subscription already exists")
	ErrSubscriptionCanceled      = errors.New("core: subscription is canceled")
	ErrStaleEvent                = errors.New("core: event older than applied watermark")
)

type SchoolKind string

const (
	SchoolKindTraditional SchoolKind = "traditional"
	SchoolKindHomeschool  SchoolKind = "homeschool"
)

func ParseSchoolKind(value string) (SchoolKind, error) {
	kind := SchoolKind(strings.TrimSpace(strings.ToLower(value)))
	switch kind {
	case SchoolKindTraditional, SchoolKindHomeschool:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSchoolKind, value)
	}
}

// School is the tenant root. Every subscription, teacher, and student hangs
// off a school; the billing processor knows it by BillingCustomerID.
type School struct {
	ID                string
	Name              string
	Kind              SchoolKind
	BillingCustomerID string
	MarketID          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (s School) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("core: school name is required")
	}
	if _, err := ParseSchoolKind(string(s.Kind)); err != nil {
		return err
	}
	if strings.TrimSpace(s.MarketID) == "" {
		return fmt.Errorf("core: school market id is required")
	}
	return nil
}

// Membership is a purchasable plan. PriceID is the external billing price the
// plan is sold under; webhook events resolve memberships through it.
type Membership struct {
	ID           string
	Name         string
	ProductID    string
	CampaignID   string
	PriceID      string
	Recurring    bool
	PeriodMonths int
	PeriodDays   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (m Membership) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("core: membership name is required")
	}
	if strings.TrimSpace(m.PriceID) == "" {
		return fmt.Errorf("core: membership price id is required")
	}
	if m.PeriodMonths <= 0 && m.PeriodDays <= 0 {
		return fmt.Errorf("core: membership billing period is required")
	}
	if m.PeriodMonths > 0 && m.PeriodDays > 0 {
		return fmt.Errorf("core: membership period is months or days, not both")
	}
	return nil
}

// Campaign is a promotional validity window gating new sign-ups for the
// memberships bound to it.
type Campaign struct {
	ID        string
	Name      string
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the campaign accepts new subscriptions at the given
// instant. A nil expiry never expires.
func (c Campaign) Active(now time.Time) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return c.ExpiresAt.After(now)
}

type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusPaused            SubscriptionStatus = "paused"
	SubscriptionStatusUnknown           SubscriptionStatus = "unknown"
)

// ParseSubscriptionStatus maps an external status string onto the local enum.
// Unrecognized values collapse to SubscriptionStatusUnknown rather than error:
// the processor may grow statuses we have not seen yet, and a webhook must not
// dead-letter over one.
func ParseSubscriptionStatus(value string) SubscriptionStatus {
	status := SubscriptionStatus(strings.TrimSpace(strings.ToLower(value)))
	switch status {
	case SubscriptionStatusActive,
		SubscriptionStatusIncomplete,
		SubscriptionStatusIncompleteExpired,
		SubscriptionStatusPastDue,
		SubscriptionStatusCanceled,
		SubscriptionStatusUnpaid,
		SubscriptionStatusTrialing,
		SubscriptionStatusPaused:
		return status
	default:
		return SubscriptionStatusUnknown
	}
}

// Subscription mirrors the lifecycle of one external billing subscription.
// Rows are never deleted; cancellation is a terminal status change.
type Subscription struct {
	ID                    string
	SchoolID              string
	MembershipID          string
	ExternalID            string
	Status                SubscriptionStatus
	StartsAt              *time.Time
	CancelsAt             *time.Time
	CurrentPeriodStartsAt *time.Time
	CurrentPeriodEndsAt   *time.Time
	CanceledAt            *time.Time
	EndedAt               *time.Time
	// LastEventAt is the watermark: the created timestamp of the last external
	// event applied to this row. Events at or below it are dropped.
	LastEventAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Canceled reports whether the subscription reached its terminal state.
func (s Subscription) Canceled() bool {
	return s.Status == SubscriptionStatusCanceled
}

// AcceptsEvent reports whether an external event stamped at the given instant
// is newer than the applied watermark.
func (s Subscription) AcceptsEvent(eventAt time.Time) bool {
	return eventAt.After(s.LastEventAt)
}

// ActivityEntry is one audit-log row. The service records an entry for every
// reconciliation outcome and every catalog mutation.
type ActivityEntry struct {
	ID         string
	SchoolID   string
	Actor      string
	ActorType  string
	Action     string
	ObjectType string
	ObjectID   string
	Status     string
	Metadata   map[string]any
	CreatedAt  time.Time
}

const (
	ActorTypeSystem  = "system"
	ActorTypeWebhook = "webhook"
	ActorTypeAdmin   = "admin"
)
