package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/classpilot/billing/webhooks"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type WebhookDeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookDeliveryRecord]
}

func NewWebhookDeliveryStore(db *bun.DB) (*WebhookDeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookDeliveryRecord](db, webhookDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook delivery repository wiring: %w", err)
		}
	}
	return &WebhookDeliveryStore{
		db:   db,
		repo: repo,
	}, nil
}

// Claim registers a delivery for processing. The status transition happens
// inside a transaction so two edge nodes receiving the same redelivery cannot
// both claim it.
func (s *WebhookDeliveryStore) Claim(
	ctx context.Context,
	marketID string,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	marketID = strings.TrimSpace(marketID)
	deliveryID = strings.TrimSpace(deliveryID)
	if marketID == "" || deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: market id and delivery id are required")
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	now := time.Now().UTC()

	var out webhooks.DeliveryRecord
	var claimed bool
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.findTx(ctx, tx, marketID, deliveryID)
		if err != nil {
			return err
		}
		if existing == nil {
			leaseExpiry := now.Add(lease)
			record := &webhookDeliveryRecord{
				ID:             uuid.NewString(),
				ClaimID:        uuid.NewString(),
				MarketID:       marketID,
				DeliveryID:     deliveryID,
				Status:         webhooks.DeliveryStatusProcessing,
				Attempts:       1,
				LeaseExpiresAt: &leaseExpiry,
				Payload:        append([]byte(nil), payload...),
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				if isUniqueViolation(insertErr) {
					// Lost the race; the other claimer owns it.
					raced, getErr := s.findTx(ctx, tx, marketID, deliveryID)
					if getErr != nil {
						return getErr
					}
					out = raced.toDomain()
					claimed = false
					return nil
				}
				return insertErr
			}
			out = record.toDomain()
			claimed = true
			return nil
		}

		if !claimable(existing, now) {
			out = existing.toDomain()
			claimed = false
			return nil
		}

		leaseExpiry := now.Add(lease)
		existing.ClaimID = uuid.NewString()
		existing.Status = webhooks.DeliveryStatusProcessing
		existing.Attempts++
		existing.NextAttemptAt = nil
		existing.LeaseExpiresAt = &leaseExpiry
		existing.UpdatedAt = now
		if _, updateErr := tx.NewUpdate().
			Model(existing).
			Where("id = ?", existing.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = existing.toDomain()
		claimed = true
		return nil
	})
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	return out, claimed, nil
}

func (s *WebhookDeliveryStore) Get(
	ctx context.Context,
	marketID string,
	deliveryID string,
) (webhooks.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.market_id = ?", strings.TrimSpace(marketID)).
		Where("?TableAlias.delivery_id = ?", strings.TrimSpace(deliveryID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return webhooks.DeliveryRecord{}, fmt.Errorf(
				"sqlstore: webhook delivery not found for market %q id %q", marketID, deliveryID,
			)
		}
		return webhooks.DeliveryRecord{}, err
	}
	return record.toDomain(), nil
}

func (s *WebhookDeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return nil
	}
	now := time.Now().UTC()
	_, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessed).
		Set("next_attempt_at = NULL").
		Set("lease_expires_at = NULL").
		Set("updated_at = ?", now).
		Where("claim_id = ?", claimID).
		Where("status = ?", webhooks.DeliveryStatusProcessing).
		Exec(ctx)
	return err
}

func (s *WebhookDeliveryStore) Fail(
	ctx context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return nil
	}
	now := time.Now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &webhookDeliveryRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.claim_id = ?", claimID).
			Where("?TableAlias.status = ?", webhooks.DeliveryStatusProcessing).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if err == sql.ErrNoRows {
				// Stale or already settled claim; nothing to do.
				return nil
			}
			return err
		}

		if cause != nil {
			record.LastError = cause.Error()
		}
		if maxAttempts > 0 && record.Attempts >= maxAttempts {
			record.Status = webhooks.DeliveryStatusDead
			record.NextAttemptAt = nil
		} else {
			next := nextAttemptAt.UTC()
			record.Status = webhooks.DeliveryStatusRetryReady
			record.NextAttemptAt = &next
		}
		record.LeaseExpiresAt = nil
		record.UpdatedAt = now

		_, err = tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx)
		return err
	})
}

// RecordRejected persists a delivery that never passed verification as a dead
// row, payload included, for forensic review.
func (s *WebhookDeliveryStore) RecordRejected(
	ctx context.Context,
	marketID string,
	deliveryID string,
	payload []byte,
	cause error,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	now := time.Now().UTC()
	record := &webhookDeliveryRecord{
		ID:         uuid.NewString(),
		MarketID:   strings.TrimSpace(marketID),
		DeliveryID: strings.TrimSpace(deliveryID),
		Status:     webhooks.DeliveryStatusDead,
		Payload:    append([]byte(nil), payload...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if cause != nil {
		record.LastError = cause.Error()
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			_, updateErr := s.db.NewUpdate().
				Model((*webhookDeliveryRecord)(nil)).
				Set("status = ?", webhooks.DeliveryStatusDead).
				Set("last_error = ?", record.LastError).
				Set("updated_at = ?", now).
				Where("market_id = ?", record.MarketID).
				Where("delivery_id = ?", record.DeliveryID).
				Exec(ctx)
			return updateErr
		}
		return err
	}
	return nil
}

// Payload returns the stored raw body for a delivery; forensic use only.
func (s *WebhookDeliveryStore) Payload(ctx context.Context, marketID, deliveryID string) ([]byte, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Column("payload").
		Where("?TableAlias.market_id = ?", strings.TrimSpace(marketID)).
		Where("?TableAlias.delivery_id = ?", strings.TrimSpace(deliveryID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf(
				"sqlstore: webhook delivery not found for market %q id %q", marketID, deliveryID,
			)
		}
		return nil, err
	}
	return append([]byte(nil), record.Payload...), nil
}

func (s *WebhookDeliveryStore) findTx(
	ctx context.Context,
	tx bun.Tx,
	marketID string,
	deliveryID string,
) (*webhookDeliveryRecord, error) {
	record := &webhookDeliveryRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.market_id = ?", marketID).
		Where("?TableAlias.delivery_id = ?", deliveryID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func claimable(record *webhookDeliveryRecord, now time.Time) bool {
	switch record.Status {
	case webhooks.DeliveryStatusProcessed, webhooks.DeliveryStatusDead:
		return false
	case webhooks.DeliveryStatusProcessing:
		return record.LeaseExpiresAt == nil || !now.Before(*record.LeaseExpiresAt)
	case webhooks.DeliveryStatusRetryReady:
		return record.NextAttemptAt == nil || !now.Before(*record.NextAttemptAt)
	default:
		return true
	}
}

var _ webhooks.DeliveryLedger = (*WebhookDeliveryStore)(nil)
