package sqlstore

import "github.com/classpilot/billing/core"

var (
	_ core.SchoolStore            = (*SchoolStore)(nil)
	_ core.MembershipStore        = (*MembershipStore)(nil)
	_ core.CampaignStore          = (*CampaignStore)(nil)
	_ core.SubscriptionStore      = (*SubscriptionStore)(nil)
	_ core.ActivityStore          = (*ActivityStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
