package sqlstore

import (
	"fmt"

	"github.com/classpilot/billing/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	schoolStore          *SchoolStore
	membershipStore      *MembershipStore
	cachedMembership     *CachedMembershipStore
	campaignStore        *CampaignStore
	subscriptionStore    *SubscriptionStore
	activityStore        *ActivityStore
	webhookDeliveryStore *WebhookDeliveryStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.schoolStore != nil && f.subscriptionStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

// UseMembershipCache wraps the membership store with a read-through cache.
// Call after BuildStores.
func (f *RepositoryFactory) UseMembershipCache(cacheService repositorycache.CacheService) error {
	if f == nil || f.membershipStore == nil {
		return fmt.Errorf("sqlstore: build stores before enabling the membership cache")
	}
	cached, err := NewCachedMembershipStore(f.membershipStore, cacheService)
	if err != nil {
		return err
	}
	f.cachedMembership = cached
	return nil
}

func (f *RepositoryFactory) SchoolStore() core.SchoolStore {
	if f == nil {
		return nil
	}
	return f.schoolStore
}

func (f *RepositoryFactory) MembershipStore() core.MembershipStore {
	if f == nil {
		return nil
	}
	if f.cachedMembership != nil {
		return f.cachedMembership
	}
	return f.membershipStore
}

func (f *RepositoryFactory) CampaignStore() core.CampaignStore {
	if f == nil {
		return nil
	}
	return f.campaignStore
}

func (f *RepositoryFactory) SubscriptionStore() core.SubscriptionStore {
	if f == nil {
		return nil
	}
	return f.subscriptionStore
}

func (f *RepositoryFactory) ActivityStore() core.ActivityStore {
	if f == nil {
		return nil
	}
	return f.activityStore
}

func (f *RepositoryFactory) WebhookDeliveryStore() *WebhookDeliveryStore {
	if f == nil {
		return nil
	}
	return f.webhookDeliveryStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	schoolStore, err := NewSchoolStore(f.db)
	if err != nil {
		return err
	}
	f.schoolStore = schoolStore

	membershipStore, err := NewMembershipStore(f.db)
	if err != nil {
		return err
	}
	f.membershipStore = membershipStore

	campaignStore, err := NewCampaignStore(f.db)
	if err != nil {
		return err
	}
	f.campaignStore = campaignStore

	subscriptionStore, err := NewSubscriptionStore(f.db)
	if err != nil {
		return err
	}
	f.subscriptionStore = subscriptionStore

	activityStore, err := NewActivityStore(f.db)
	if err != nil {
		return err
	}
	f.activityStore = activityStore

	webhookDeliveryStore, err := NewWebhookDeliveryStore(f.db)
	if err != nil {
		return err
	}
	f.webhookDeliveryStore = webhookDeliveryStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
