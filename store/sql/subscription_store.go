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

type SubscriptionStore struct {
	db   *bun.DB
	repo repository.Repository[*subscriptionRecord]
}

func NewSubscriptionStore(db *bun.DB) (*SubscriptionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*subscriptionRecord](db, subscriptionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid subscription repository wiring: %w", err)
		}
	}
	return &SubscriptionStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *SubscriptionStore) GetByExternalID(ctx context.Context, externalID string) (core.Subscription, error) {
	if s == nil || s.db == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return core.Subscription{}, fmt.Errorf("sqlstore: external subscription id is required")
	}
	record := &subscriptionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.external_id = ?", externalID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Subscription{}, fmt.Errorf(
				"sqlstore: %w: external id %q", core.ErrSubscriptionNotFound, externalID,
			)
		}
		return core.Subscription{}, err
	}
	return record.toDomain(), nil
}

func (s *SubscriptionStore) ListBySchool(
	ctx context.Context,
	schoolID string,
	limit, offset int,
) ([]core.Subscription, int, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	records, total, err := s.repo.List(ctx,
		repository.SelectBy("school_id", "=", strings.TrimSpace(schoolID)),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(normalizeLimit(limit), normalizeOffset(offset)),
	)
	if err != nil {
		return nil, 0, err
	}
	subscriptions := make([]core.Subscription, 0, len(records))
	for _, record := range records {
		subscriptions = append(subscriptions, record.toDomain())
	}
	return subscriptions, total, nil
}

func (s *SubscriptionStore) Create(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	if s == nil || s.db == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	sub.ExternalID = strings.TrimSpace(sub.ExternalID)
	if sub.ExternalID == "" {
		return core.Subscription{}, fmt.Errorf("sqlstore: external subscription id is required")
	}
	if strings.TrimSpace(sub.SchoolID) == "" || strings.TrimSpace(sub.MembershipID) == "" {
		return core.Subscription{}, fmt.Errorf("sqlstore: school id and membership id are required")
	}
	now := time.Now().UTC()
	record := newSubscriptionRecord(sub, now)
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.Subscription{}, fmt.Errorf(
				"sqlstore: %w: external id %q", core.ErrSubscriptionExists, sub.ExternalID,
			)
		}
		return core.Subscription{}, err
	}
	return record.toDomain(), nil
}

// Update persists sub only while the stored watermark is strictly below the
// incoming one. The watermark is re-checked inside the transaction so two
// workers racing past the same snapshot cannot apply out of order.
func (s *SubscriptionStore) Update(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	if s == nil || s.db == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	sub.ExternalID = strings.TrimSpace(sub.ExternalID)
	if sub.ExternalID == "" {
		return core.Subscription{}, fmt.Errorf("sqlstore: external subscription id is required")
	}
	now := time.Now().UTC()

	var out core.Subscription
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &subscriptionRecord{}
		err := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.external_id = ?", sub.ExternalID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf(
					"sqlstore: %w: external id %q", core.ErrSubscriptionNotFound, sub.ExternalID,
				)
			}
			return err
		}
		if !sub.LastEventAt.After(existing.LastEventAt) {
			return fmt.Errorf(
				"sqlstore: %w: external id %q applied watermark %s incoming %s",
				core.ErrStaleEvent,
				sub.ExternalID,
				existing.LastEventAt.UTC().Format(time.RFC3339),
				sub.LastEventAt.UTC().Format(time.RFC3339),
			)
		}

		existing.Status = string(sub.Status)
		existing.StartsAt = cloneTimePointer(sub.StartsAt)
		existing.CancelsAt = cloneTimePointer(sub.CancelsAt)
		existing.CurrentPeriodStartsAt = cloneTimePointer(sub.CurrentPeriodStartsAt)
		existing.CurrentPeriodEndsAt = cloneTimePointer(sub.CurrentPeriodEndsAt)
		existing.CanceledAt = cloneTimePointer(sub.CanceledAt)
		existing.EndedAt = cloneTimePointer(sub.EndedAt)
		existing.LastEventAt = sub.LastEventAt.UTC()
		existing.UpdatedAt = now

		if _, updateErr := tx.NewUpdate().
			Model(existing).
			Where("id = ?", existing.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = existing.toDomain()
		return nil
	})
	if err != nil {
		return core.Subscription{}, err
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
