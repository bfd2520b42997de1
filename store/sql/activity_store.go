package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/classpilot/billing/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ActivityStore struct {
	db   *bun.DB
	repo repository.Repository[*activityEntryRecord]
}

func NewActivityStore(db *bun.DB) (*ActivityStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*activityEntryRecord](db, activityHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid activity repository wiring: %w", err)
		}
	}
	return &ActivityStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *ActivityStore) Record(ctx context.Context, entry core.ActivityEntry) (core.ActivityEntry, error) {
	if s == nil || s.db == nil {
		return core.ActivityEntry{}, fmt.Errorf("sqlstore: activity store is not configured")
	}
	if strings.TrimSpace(entry.SchoolID) == "" {
		return core.ActivityEntry{}, fmt.Errorf("sqlstore: activity school id is required")
	}
	if strings.TrimSpace(entry.Action) == "" {
		return core.ActivityEntry{}, fmt.Errorf("sqlstore: activity action is required")
	}
	now := time.Now().UTC()
	record := newActivityEntryRecord(entry, now)
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.ActivityEntry{}, err
	}
	return record.toDomain(), nil
}

func (s *ActivityStore) ListBySchool(
	ctx context.Context,
	schoolID string,
	limit, offset int,
) ([]core.ActivityEntry, int, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("sqlstore: activity store is not configured")
	}
	records, total, err := s.repo.List(ctx,
		repository.SelectBy("school_id", "=", strings.TrimSpace(schoolID)),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(normalizeLimit(limit), normalizeOffset(offset)),
	)
	if err != nil {
		return nil, 0, err
	}
	entries := make([]core.ActivityEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, record.toDomain())
	}
	return entries, total, nil
}
