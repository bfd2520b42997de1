package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type CreateSchoolInput struct {
	Name              string
	Kind              string
	BillingCustomerID string
	MarketID          string
}

type CreateMembershipInput struct {
	Name         string
	ProductID    string
	CampaignID   string
	PriceID      string
	Recurring    bool
	PeriodMonths int
	PeriodDays   int
}

type CreateCampaignInput struct {
	Name      string
	ExpiresAt *time.Time
}

func (s *Service) CreateSchool(ctx context.Context, in CreateSchoolInput) (School, error) {
	if s == nil || s.schoolStore == nil {
		return School{}, fmt.Errorf("core: school store is not configured")
	}
	startedAt := time.Now()

	kind, err := ParseSchoolKind(in.Kind)
	if err != nil {
		return School{}, s.mapError(err)
	}
	school := School{
		Name:              strings.TrimSpace(in.Name),
		Kind:              kind,
		BillingCustomerID: strings.TrimSpace(in.BillingCustomerID),
		MarketID:          strings.TrimSpace(in.MarketID),
	}
	if err := school.Validate(); err != nil {
		return School{}, s.mapError(err)
	}

	created, err := s.schoolStore.Create(ctx, school)
	s.observeOperation(ctx, startedAt, "create_school", err, map[string]any{
		"market_id": school.MarketID,
	})
	if err != nil {
		return School{}, s.mapError(err)
	}
	s.recordCatalogActivity(ctx, created.ID, "school.created", "school", created.ID)
	return created, nil
}

func (s *Service) GetSchool(ctx context.Context, id string) (School, error) {
	if s == nil || s.schoolStore == nil {
		return School{}, fmt.Errorf("core: school store is not configured")
	}
	school, err := s.schoolStore.GetByID(ctx, id)
	if err != nil {
		return School{}, s.mapError(err)
	}
	return school, nil
}

func (s *Service) ListSchoolsByMarket(ctx context.Context, marketID string, limit, offset int) ([]School, int, error) {
	if s == nil || s.schoolStore == nil {
		return nil, 0, fmt.Errorf("core: school store is not configured")
	}
	schools, total, err := s.schoolStore.ListByMarket(ctx, marketID, limit, offset)
	if err != nil {
		return nil, 0, s.mapError(err)
	}
	return schools, total, nil
}

func (s *Service) CreateMembership(ctx context.Context, in CreateMembershipInput) (Membership, error) {
	if s == nil || s.membershipStore == nil {
		return Membership{}, fmt.Errorf("core: membership store is not configured")
	}
	startedAt := time.Now()

	membership := Membership{
		Name:         strings.TrimSpace(in.Name),
		ProductID:    strings.TrimSpace(in.ProductID),
		CampaignID:   strings.TrimSpace(in.CampaignID),
		PriceID:      strings.TrimSpace(in.PriceID),
		Recurring:    in.Recurring,
		PeriodMonths: in.PeriodMonths,
		PeriodDays:   in.PeriodDays,
	}
	if err := membership.Validate(); err != nil {
		return Membership{}, s.mapError(err)
	}
	if membership.CampaignID != "" && s.campaignStore != nil {
		if _, err := s.campaignStore.GetByID(ctx, membership.CampaignID); err != nil {
			return Membership{}, s.mapError(err)
		}
	}

	created, err := s.membershipStore.Create(ctx, membership)
	s.observeOperation(ctx, startedAt, "create_membership", err, map[string]any{
		"price_id": membership.PriceID,
	})
	if err != nil {
		return Membership{}, s.mapError(err)
	}
	s.recordCatalogActivity(ctx, "", "membership.created", "membership", created.ID)
	return created, nil
}

func (s *Service) ListMemberships(ctx context.Context, limit, offset int) ([]Membership, int, error) {
	if s == nil || s.membershipStore == nil {
		return nil, 0, fmt.Errorf("core: membership store is not configured")
	}
	memberships, total, err := s.membershipStore.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, s.mapError(err)
	}
	return memberships, total, nil
}

func (s *Service) CreateCampaign(ctx context.Context, in CreateCampaignInput) (Campaign, error) {
	if s == nil || s.campaignStore == nil {
		return Campaign{}, fmt.Errorf("core: campaign store is not configured")
	}
	startedAt := time.Now()

	campaign := Campaign{
		Name:      strings.TrimSpace(in.Name),
		ExpiresAt: cloneTime(in.ExpiresAt),
	}
	if campaign.Name == "" {
		return Campaign{}, s.mapError(fmt.Errorf("core: campaign name is required"))
	}

	created, err := s.campaignStore.Create(ctx, campaign)
	s.observeOperation(ctx, startedAt, "create_campaign", err, nil)
	if err != nil {
		return Campaign{}, s.mapError(err)
	}
	s.recordCatalogActivity(ctx, "", "campaign.created", "campaign", created.ID)
	return created, nil
}

func (s *Service) recordCatalogActivity(ctx context.Context, schoolID, action, objectType, objectID string) {
	if s == nil || s.activityStore == nil {
		return
	}
	entry := ActivityEntry{
		SchoolID:   schoolID,
		Actor:      s.config.ServiceName,
		ActorType:  ActorTypeAdmin,
		Action:     action,
		ObjectType: objectType,
		ObjectID:   objectID,
		Status:     "success",
	}
	if _, err := s.activityStore.Record(ctx, entry); err != nil {
		s.logWarn(ctx, "record catalog activity failed", map[string]any{
			"action": action,
			"error":  err.Error(),
		})
	}
}
