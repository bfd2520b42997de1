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

type SchoolStore struct {
	db   *bun.DB
	repo repository.Repository[*schoolRecord]
}

func NewSchoolStore(db *bun.DB) (*SchoolStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*schoolRecord](db, schoolHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid school repository wiring: %w", err)
		}
	}
	return &SchoolStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *SchoolStore) Create(ctx context.Context, school core.School) (core.School, error) {
	if s == nil || s.db == nil {
		return core.School{}, fmt.Errorf("sqlstore: school store is not configured")
	}
	if err := school.Validate(); err != nil {
		return core.School{}, err
	}
	now := time.Now().UTC()
	record := newSchoolRecord(school, now)
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.School{}, err
	}
	return record.toDomain(), nil
}

func (s *SchoolStore) Update(ctx context.Context, school core.School) (core.School, error) {
	if s == nil || s.db == nil {
		return core.School{}, fmt.Errorf("sqlstore: school store is not configured")
	}
	if strings.TrimSpace(school.ID) == "" {
		return core.School{}, fmt.Errorf("sqlstore: school id is required")
	}
	if err := school.Validate(); err != nil {
		return core.School{}, err
	}
	now := time.Now().UTC()
	record := newSchoolRecord(school, now)
	record.CreatedAt = school.CreatedAt
	result, err := s.db.NewUpdate().
		Model(record).
		Column("name", "kind", "billing_customer_id", "market_id", "updated_at").
		Where("id = ?", record.ID).
		Exec(ctx)
	if err != nil {
		return core.School{}, err
	}
	if affected, affectedErr := result.RowsAffected(); affectedErr == nil && affected == 0 {
		return core.School{}, fmt.Errorf("sqlstore: %w: id %q", core.ErrSchoolNotFound, school.ID)
	}
	return record.toDomain(), nil
}

func (s *SchoolStore) GetByID(ctx context.Context, id string) (core.School, error) {
	if s == nil || s.db == nil {
		return core.School{}, fmt.Errorf("sqlstore: school store is not configured")
	}
	record := &schoolRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.School{}, fmt.Errorf("sqlstore: %w: id %q", core.ErrSchoolNotFound, id)
		}
		return core.School{}, err
	}
	return record.toDomain(), nil
}

func (s *SchoolStore) GetByBillingCustomerID(ctx context.Context, customerID string) (core.School, error) {
	if s == nil || s.db == nil {
		return core.School{}, fmt.Errorf("sqlstore: school store is not configured")
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return core.School{}, fmt.Errorf("sqlstore: billing customer id is required")
	}
	record := &schoolRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.billing_customer_id = ?", customerID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.School{}, fmt.Errorf(
				"sqlstore: %w: billing customer %q", core.ErrSchoolNotFound, customerID,
			)
		}
		return core.School{}, err
	}
	return record.toDomain(), nil
}

func (s *SchoolStore) ListByMarket(
	ctx context.Context,
	marketID string,
	limit, offset int,
) ([]core.School, int, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("sqlstore: school store is not configured")
	}
	records, total, err := s.repo.List(ctx,
		repository.SelectBy("market_id", "=", strings.TrimSpace(marketID)),
		repository.OrderBy("created_at ASC"),
		repository.SelectPaginate(normalizeLimit(limit), normalizeOffset(offset)),
	)
	if err != nil {
		return nil, 0, err
	}
	schools := make([]core.School, 0, len(records))
	for _, record := range records {
		schools = append(schools, record.toDomain())
	}
	return schools, total, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
