package core

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the billing domain service: catalog management for schools,
// memberships, and campaigns, plus the webhook-driven subscription
// reconciliation pipeline.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	keyLocker         KeyLocker
	reconciler        Reconciler
	schoolStore       SchoolStore
	membershipStore   MembershipStore
	campaignStore     CampaignStore
	subscriptionStore SubscriptionStore
	activityStore     ActivityStore
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("billing", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("billing"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.keyLocker == nil {
		builder.keyLocker = NewMemoryKeyLocker()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.reconciler == nil {
		reconciler := NewReconciler()
		if finalConfig.Webhook.RetryDelaySeconds > 0 {
			reconciler.RetryDelay = secondsToDuration(finalConfig.Webhook.RetryDelaySeconds)
		}
		builder.reconciler = &reconciler
	}

	if needsStores(&builder) && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				if builder.schoolStore == nil {
					builder.schoolStore = storeProvider.SchoolStore()
				}
				if builder.membershipStore == nil {
					builder.membershipStore = storeProvider.MembershipStore()
				}
				if builder.campaignStore == nil {
					builder.campaignStore = storeProvider.CampaignStore()
				}
				if builder.subscriptionStore == nil {
					builder.subscriptionStore = storeProvider.SubscriptionStore()
				}
				if builder.activityStore == nil {
					builder.activityStore = storeProvider.ActivityStore()
				}
			}
		}
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		keyLocker:         builder.keyLocker,
		reconciler:        *builder.reconciler,
		schoolStore:       builder.schoolStore,
		membershipStore:   builder.membershipStore,
		campaignStore:     builder.campaignStore,
		subscriptionStore: builder.subscriptionStore,
		activityStore:     builder.activityStore,
	}, nil
}

// Config returns the resolved service configuration.
func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return defaultErrorMapper(err)
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper != nil {
		if mapped := mapper(err); mapped != nil {
			return mapped
		}
	}
	return err
}

func needsStores(builder *serviceBuilder) bool {
	return builder.schoolStore == nil ||
		builder.membershipStore == nil ||
		builder.campaignStore == nil ||
		builder.subscriptionStore == nil ||
		builder.activityStore == nil
}
