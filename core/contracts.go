package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type SchoolStore interface {
	Create(ctx context.Context, school School) (School, error)
	Update(ctx context.Context, school School) (School, error)
	GetByID(ctx context.Context, id string) (School, error)
	// GetByBillingCustomerID resolves the tenant referenced by a webhook
	// event's customer id. Wraps ErrSchoolNotFound when no row matches.
	GetByBillingCustomerID(ctx context.Context, customerID string) (School, error)
	ListByMarket(ctx context.Context, marketID string, limit, offset int) ([]School, int, error)
}

type MembershipStore interface {
	Create(ctx context.Context, membership Membership) (Membership, error)
	GetByID(ctx context.Context, id string) (Membership, error)
	// GetByPriceID resolves the plan referenced by a webhook event's price id.
	// Wraps ErrMembershipNotFound when no row matches.
	GetByPriceID(ctx context.Context, priceID string) (Membership, error)
	List(ctx context.Context, limit, offset int) ([]Membership, int, error)
}

type CampaignStore interface {
	Create(ctx context.Context, campaign Campaign) (Campaign, error)
	GetByID(ctx context.Context, id string) (Campaign, error)
	List(ctx context.Context, limit, offset int) ([]Campaign, int, error)
}

type SubscriptionStore interface {
	// GetByExternalID wraps ErrSubscriptionNotFound when no row matches.
	GetByExternalID(ctx context.Context, externalID string) (Subscription, error)
	ListBySchool(ctx context.Context, schoolID string, limit, offset int) ([]Subscription, int, error)
	// Create wraps ErrSubscriptionExists when a row for the external id is
	// already present.
	Create(ctx context.Context, sub Subscription) (Subscription, error)
	// Update persists sub only while the stored watermark is strictly below
	// sub.LastEventAt, re-checked inside the transaction. Wraps ErrStaleEvent
	// when a newer event won the race.
	Update(ctx context.Context, sub Subscription) (Subscription, error)
}

type ActivityStore interface {
	Record(ctx context.Context, entry ActivityEntry) (ActivityEntry, error)
	ListBySchool(ctx context.Context, schoolID string, limit, offset int) ([]ActivityEntry, int, error)
}

// StoreProvider exposes the persistence stores a repository factory builds.
type StoreProvider interface {
	SchoolStore() SchoolStore
	MembershipStore() MembershipStore
	CampaignStore() CampaignStore
	SubscriptionStore() SubscriptionStore
	ActivityStore() ActivityStore
}

// RepositoryStoreFactory is implemented by sqlstore.RepositoryFactory; the
// service builder feeds it the persistence client and pulls stores from the
// resulting provider.
type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// KeyLocker serializes reconciliation per external subscription id so the
// watermark read-check-write sequence never races itself across workers.
type KeyLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (LockHandle, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}
