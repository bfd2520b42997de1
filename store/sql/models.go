package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type schoolRecord struct {
	bun.BaseModel `bun:"table:billing_schools,alias:bs"`

	ID                string    `bun:"id,pk"`
	Name              string    `bun:"name,notnull"`
	Kind              string    `bun:"kind,notnull"`
	BillingCustomerID string    `bun:"billing_customer_id,notnull"`
	MarketID          string    `bun:"market_id,notnull"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type membershipRecord struct {
	bun.BaseModel `bun:"table:billing_memberships,alias:bm"`

	ID           string    `bun:"id,pk"`
	Name         string    `bun:"name,notnull"`
	ProductID    string    `bun:"product_id"`
	CampaignID   string    `bun:"campaign_id"`
	PriceID      string    `bun:"price_id,notnull"`
	Recurring    bool      `bun:"recurring,notnull"`
	PeriodMonths int       `bun:"period_months,notnull"`
	PeriodDays   int       `bun:"period_days,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type campaignRecord struct {
	bun.BaseModel `bun:"table:billing_campaigns,alias:bc"`

	ID        string     `bun:"id,pk"`
	Name      string     `bun:"name,notnull"`
	ExpiresAt *time.Time `bun:"expires_at,nullzero"`
	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type subscriptionRecord struct {
	bun.BaseModel `bun:"table:billing_subscriptions,alias:bsub"`

	ID                    string     `bun:"id,pk"`
	SchoolID              string     `bun:"school_id,notnull"`
	MembershipID          string     `bun:"membership_id,notnull"`
	ExternalID            string     `bun:"external_id,notnull"`
	Status                string     `bun:"status,notnull"`
	StartsAt              *time.Time `bun:"starts_at,nullzero"`
	CancelsAt             *time.Time `bun:"cancels_at,nullzero"`
	CurrentPeriodStartsAt *time.Time `bun:"current_period_starts_at,nullzero"`
	CurrentPeriodEndsAt   *time.Time `bun:"current_period_ends_at,nullzero"`
	CanceledAt            *time.Time `bun:"canceled_at,nullzero"`
	EndedAt               *time.Time `bun:"ended_at,nullzero"`
	LastEventAt           time.Time  `bun:"last_event_at,notnull"`
	CreatedAt             time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt             time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type activityEntryRecord struct {
	bun.BaseModel `bun:"table:billing_activity_entries,alias:bae"`

	ID         string         `bun:"id,pk"`
	SchoolID   string         `bun:"school_id,notnull"`
	Actor      string         `bun:"actor,notnull"`
	ActorType  string         `bun:"actor_type,notnull"`
	Action     string         `bun:"action,notnull"`
	ObjectType string         `bun:"object_type,notnull"`
	ObjectID   string         `bun:"object_id,notnull"`
	Status     string         `bun:"status,notnull"`
	Metadata   map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:billing_webhook_deliveries,alias:bwd"`

	ID             string     `bun:"id,pk"`
	ClaimID        string     `bun:"claim_id"`
	MarketID       string     `bun:"market_id,notnull"`
	DeliveryID     string     `bun:"delivery_id,notnull"`
	Status         string     `bun:"status,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	LastError      string     `bun:"last_error"`
	NextAttemptAt  *time.Time `bun:"next_attempt_at,nullzero"`
	LeaseExpiresAt *time.Time `bun:"lease_expires_at,nullzero"`
	Payload        []byte     `bun:"payload"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
