package billing

import "github.com/classpilot/billing/core"

type Config = core.Config

type WebhookConfig = core.WebhookConfig

type Option = core.Option

type Service = core.Service

type School = core.School
type Membership = core.Membership
type Campaign = core.Campaign
type Subscription = core.Subscription
type ActivityEntry = core.ActivityEntry

type SubscriptionEvent = core.SubscriptionEvent
type Outcome = core.Outcome
type Snapshot = core.Snapshot
type Reconciler = core.Reconciler

type SchoolStore = core.SchoolStore
type MembershipStore = core.MembershipStore
type CampaignStore = core.CampaignStore
type SubscriptionStore = core.SubscriptionStore
type ActivityStore = core.ActivityStore
type KeyLocker = core.KeyLocker

type CreateSchoolInput = core.CreateSchoolInput
type CreateMembershipInput = core.CreateMembershipInput
type CreateCampaignInput = core.CreateCampaignInput

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithKeyLocker         = core.WithKeyLocker
	WithReconciler        = core.WithReconciler
	WithSchoolStore       = core.WithSchoolStore
	WithMembershipStore   = core.WithMembershipStore
	WithCampaignStore     = core.WithCampaignStore
	WithSubscriptionStore = core.WithSubscriptionStore
	WithActivityStore     = core.WithActivityStore
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
