package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	DeliveryStatusPending    = "pending"
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
)

// DeliveryRecord is one webhook delivery tracked for dedupe and forensics.
// The raw payload is retained so rejected or dead deliveries can be replayed
// or inspected by an operator.
type DeliveryRecord struct {
	ID            string
	ClaimID       string
	MarketID      string
	DeliveryID    string
	Status        string
	Attempts      int
	LastError     string
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type DeliveryLedger interface {
	// Claim registers a delivery for processing. claimed is false when the
	// delivery is already accounted for (duplicate redelivery).
	Claim(
		ctx context.Context,
		marketID string,
		deliveryID string,
		payload []byte,
		lease time.Duration,
	) (DeliveryRecord, bool, error)
	Get(ctx context.Context, marketID string, deliveryID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error
	// RecordRejected persists a delivery that never passed verification, with
	// its raw payload, as a dead row for forensic review.
	RecordRejected(ctx context.Context, marketID string, deliveryID string, payload []byte, cause error) error
}

// MemoryDeliveryLedger backs the ledger contract for tests and single-node
// development runs. Production uses the sqlstore implementation.
type MemoryDeliveryLedger struct {
	mu      sync.Mutex
	entries map[string]*memoryDeliveryEntry
	claims  map[string]string
	nextID  int
	Now     func() time.Time
}

type memoryDeliveryEntry struct {
	record  DeliveryRecord
	payload []byte
	lease   time.Time
}

func NewMemoryDeliveryLedger() *MemoryDeliveryLedger {
	return &MemoryDeliveryLedger{
		entries: map[string]*memoryDeliveryEntry{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func deliveryKey(marketID, deliveryID string) string {
	return strings.TrimSpace(marketID) + "::" + strings.TrimSpace(deliveryID)
}

func (l *MemoryDeliveryLedger) Claim(
	_ context.Context,
	marketID string,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: delivery ledger is nil")
	}
	marketID = strings.TrimSpace(marketID)
	deliveryID = strings.TrimSpace(deliveryID)
	if marketID == "" || deliveryID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: market id and delivery id are required")
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	key := deliveryKey(marketID, deliveryID)
	entry, exists := l.entries[key]
	if exists {
		switch entry.record.Status {
		case DeliveryStatusProcessed, DeliveryStatusDead:
			return entry.record, false, nil
		case DeliveryStatusProcessing:
			if now.Before(entry.lease) {
				return entry.record, false, nil
			}
		case DeliveryStatusRetryReady:
			if entry.record.NextAttemptAt != nil && now.Before(*entry.record.NextAttemptAt) {
				return entry.record, false, nil
			}
		}
		if entry.record.ClaimID != "" {
			delete(l.claims, entry.record.ClaimID)
		}
		claimID := l.nextClaimID()
		entry.record.ClaimID = claimID
		entry.record.Status = DeliveryStatusProcessing
		entry.record.Attempts++
		entry.record.NextAttemptAt = nil
		entry.record.UpdatedAt = now
		entry.lease = now.Add(lease)
		l.claims[claimID] = key
		return entry.record, true, nil
	}

	claimID := l.nextClaimID()
	record := DeliveryRecord{
		ID:         fmt.Sprintf("delivery_%d", len(l.entries)+1),
		ClaimID:    claimID,
		MarketID:   marketID,
		DeliveryID: deliveryID,
		Status:     DeliveryStatusProcessing,
		Attempts:   1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	l.entries[key] = &memoryDeliveryEntry{
		record:  record,
		payload: append([]byte(nil), payload...),
		lease:   now.Add(lease),
	}
	l.claims[claimID] = key
	return record, true, nil
}

func (l *MemoryDeliveryLedger) Get(_ context.Context, marketID string, deliveryID string) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery ledger is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[deliveryKey(marketID, deliveryID)]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf(
			"webhooks: delivery not found for market %q id %q", marketID, deliveryID,
		)
	}
	return entry.record, nil
}

func (l *MemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	if l == nil {
		return fmt.Errorf("webhooks: delivery ledger is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.claimedEntryLocked(claimID)
	if entry == nil {
		return nil
	}
	entry.record.Status = DeliveryStatusProcessed
	entry.record.NextAttemptAt = nil
	entry.record.UpdatedAt = l.now()
	delete(l.claims, claimID)
	return nil
}

func (l *MemoryDeliveryLedger) Fail(
	_ context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if l == nil {
		return fmt.Errorf("webhooks: delivery ledger is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.claimedEntryLocked(claimID)
	if entry == nil {
		return nil
	}
	if cause != nil {
		entry.record.LastError = cause.Error()
	}
	if maxAttempts > 0 && entry.record.Attempts >= maxAttempts {
		entry.record.Status = DeliveryStatusDead
		entry.record.NextAttemptAt = nil
	} else {
		next := nextAttemptAt.UTC()
		entry.record.Status = DeliveryStatusRetryReady
		entry.record.NextAttemptAt = &next
	}
	entry.record.UpdatedAt = l.now()
	delete(l.claims, claimID)
	return nil
}

func (l *MemoryDeliveryLedger) RecordRejected(
	_ context.Context,
	marketID string,
	deliveryID string,
	payload []byte,
	cause error,
) error {
	if l == nil {
		return fmt.Errorf("webhooks: delivery ledger is nil")
	}
	now := l.now()
	record := DeliveryRecord{
		ID:         fmt.Sprintf("rejected_%d", now.UnixNano()),
		MarketID:   strings.TrimSpace(marketID),
		DeliveryID: strings.TrimSpace(deliveryID),
		Status:     DeliveryStatusDead,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if cause != nil {
		record.LastError = cause.Error()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[deliveryKey(record.MarketID, record.DeliveryID)] = &memoryDeliveryEntry{
		record:  record,
		payload: append([]byte(nil), payload...),
	}
	return nil
}

// Payload returns the stored raw body for a delivery; forensic use only.
func (l *MemoryDeliveryLedger) Payload(marketID, deliveryID string) []byte {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[deliveryKey(marketID, deliveryID)]
	if !ok {
		return nil
	}
	return append([]byte(nil), entry.payload...)
}

func (l *MemoryDeliveryLedger) claimedEntryLocked(claimID string) *memoryDeliveryEntry {
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return nil
	}
	key, ok := l.claims[claimID]
	if !ok {
		return nil
	}
	entry, ok := l.entries[key]
	if !ok || entry.record.ClaimID != claimID || entry.record.Status != DeliveryStatusProcessing {
		delete(l.claims, claimID)
		return nil
	}
	return entry
}

func (l *MemoryDeliveryLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *MemoryDeliveryLedger) nextClaimID() string {
	l.nextID++
	return fmt.Sprintf("claim_%d", l.nextID)
}
