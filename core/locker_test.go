package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryKeyLockerAcquireAndContend(t *testing.T) {
	locker := NewMemoryKeyLocker()
	ctx := context.Background()

	handle, err := locker.Acquire(ctx, "sub_1", time.Minute)
	if err != nil {
		t.Fatalf("expected first acquire to succeed, got %v", err)
	}

	if _, err := locker.Acquire(ctx, "sub_1", time.Minute); err == nil {
		t.Fatalf("expected contended acquire to fail")
	}

	// A different key is independent.
	other, err := locker.Acquire(ctx, "sub_2", time.Minute)
	if err != nil {
		t.Fatalf("expected unrelated key to acquire, got %v", err)
	}
	_ = other.Unlock(ctx)

	if err := handle.Unlock(ctx); err != nil {
		t.Fatalf("expected unlock to succeed, got %v", err)
	}

	if _, err := locker.Acquire(ctx, "sub_1", time.Minute); err != nil {
		t.Fatalf("expected reacquire after unlock, got %v", err)
	}
}

func TestMemoryKeyLockerExpiredLeaseIsReclaimable(t *testing.T) {
	locker := NewMemoryKeyLocker()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	locker.nowFn = func() time.Time { return now }

	if _, err := locker.Acquire(context.Background(), "sub_1", 30*time.Second); err != nil {
		t.Fatalf("expected acquire to succeed, got %v", err)
	}

	now = now.Add(time.Minute)
	if _, err := locker.Acquire(context.Background(), "sub_1", 30*time.Second); err != nil {
		t.Fatalf("expected expired lease to be reclaimable, got %v", err)
	}
}

func TestMemoryKeyLockerRejectsEmptyKey(t *testing.T) {
	locker := NewMemoryKeyLocker()
	if _, err := locker.Acquire(context.Background(), "   ", time.Minute); err == nil {
		t.Fatalf("expected empty key rejection")
	}
}

func TestMemoryLockHandleUnlockIsIdempotent(t *testing.T) {
	locker := NewMemoryKeyLocker()
	ctx := context.Background()

	handle, err := locker.Acquire(ctx, "sub_1", time.Minute)
	if err != nil {
		t.Fatalf("expected acquire to succeed, got %v", err)
	}
	if err := handle.Unlock(ctx); err != nil {
		t.Fatalf("expected unlock to succeed, got %v", err)
	}
	if err := handle.Unlock(ctx); err != nil {
		t.Fatalf("expected repeated unlock to be a no-op, got %v", err)
	}
}
