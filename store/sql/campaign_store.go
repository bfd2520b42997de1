package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/classpilot/billing/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type CampaignStore struct {
	db   *bun.DB
	repo repository.Repository[*campaignRecord]
}

func NewCampaignStore(db *bun.DB) (*CampaignStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*campaignRecord](db, campaignHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid campaign repository wiring: %w", err)
		}
	}
	return &CampaignStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *CampaignStore) Create(ctx context.Context, campaign core.Campaign) (core.Campaign, error) {
	if s == nil || s.db == nil {
		return core.Campaign{}, fmt.Errorf("sqlstore: campaign store is not configured")
	}
	if strings.TrimSpace(campaign.Name) == "" {
		return core.Campaign{}, fmt.Errorf("sqlstore: campaign name is required")
	}
	now := time.Now().UTC()
	record := newCampaignRecord(campaign, now)
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Campaign{}, err
	}
	return record.toDomain(), nil
}

func (s *CampaignStore) GetByID(ctx context.Context, id string) (core.Campaign, error) {
	if s == nil || s.db == nil {
		return core.Campaign{}, fmt.Errorf("sqlstore: campaign store is not configured")
	}
	record := &campaignRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Campaign{}, fmt.Errorf("sqlstore: %w: id %q", core.ErrCampaignNotFound, id)
		}
		return core.Campaign{}, err
	}
	return record.toDomain(), nil
}

func (s *CampaignStore) List(ctx context.Context, limit, offset int) ([]core.Campaign, int, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("sqlstore: campaign store is not configured")
	}
	records, total, err := s.repo.List(ctx,
		repository.OrderBy("created_at ASC"),
		repository.SelectPaginate(normalizeLimit(limit), normalizeOffset(offset)),
	)
	if err != nil {
		return nil, 0, err
	}
	campaigns := make([]core.Campaign, 0, len(records))
	for _, record := range records {
		campaigns = append(campaigns, record.toDomain())
	}
	return campaigns, total, nil
}
