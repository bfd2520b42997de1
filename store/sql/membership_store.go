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

type MembershipStore struct {
	db   *bun.DB
	repo repository.Repository[*membershipRecord]
}

func NewMembershipStore(db *bun.DB) (*MembershipStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*membershipRecord](db, membershipHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid membership repository wiring: %w", err)
		}
	}
	return &MembershipStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *MembershipStore) Create(ctx context.Context, membership core.Membership) (core.Membership, error) {
	if s == nil || s.db == nil {
		return core.Membership{}, fmt.Errorf("sqlstore: membership store is not configured")
	}
	if err := membership.Validate(); err != nil {
		return core.Membership{}, err
	}
	now := time.Now().UTC()
	record := newMembershipRecord(membership, now)
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Membership{}, err
	}
	return record.toDomain(), nil
}

func (s *MembershipStore) GetByID(ctx context.Context, id string) (core.Membership, error) {
	if s == nil || s.db == nil {
		return core.Membership{}, fmt.Errorf("sqlstore: membership store is not configured")
	}
	record := &membershipRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Membership{}, fmt.Errorf("sqlstore: %w: id %q", core.ErrMembershipNotFound, id)
		}
		return core.Membership{}, err
	}
	return record.toDomain(), nil
}

func (s *MembershipStore) GetByPriceID(ctx context.Context, priceID string) (core.Membership, error) {
	if s == nil || s.db == nil {
		return core.Membership{}, fmt.Errorf("sqlstore: membership store is not configured")
	}
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return core.Membership{}, fmt.Errorf("sqlstore: price id is required")
	}
	record := &membershipRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.price_id = ?", priceID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Membership{}, fmt.Errorf(
				"sqlstore: %w: price %q", core.ErrMembershipNotFound, priceID,
			)
		}
		return core.Membership{}, err
	}
	return record.toDomain(), nil
}

func (s *MembershipStore) List(ctx context.Context, limit, offset int) ([]core.Membership, int, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("sqlstore: membership store is not configured")
	}
	records, total, err := s.repo.List(ctx,
		repository.OrderBy("created_at ASC"),
		repository.SelectPaginate(normalizeLimit(limit), normalizeOffset(offset)),
	)
	if err != nil {
		return nil, 0, err
	}
	memberships := make([]core.Membership, 0, len(records))
	for _, record := range records {
		memberships = append(memberships, record.toDomain())
	}
	return memberships, total, nil
}
