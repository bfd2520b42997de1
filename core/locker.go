package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultReconcileLockTTL = 30 * time.Second

// MemoryKeyLocker is an in-process advisory lock keyed by external
// subscription id. Single-node deployments use it directly; clustered
// deployments supply a distributed KeyLocker instead.
type MemoryKeyLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	nowFn func() time.Time
}

func NewMemoryKeyLocker() *MemoryKeyLocker {
	return &MemoryKeyLocker{
		locks: make(map[string]time.Time),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryKeyLocker) Acquire(_ context.Context, key string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: key locker is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("core: key is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultReconcileLockTTL
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.locks[key]; ok && now.Before(until) {
		return nil, fmt.Errorf("core: reconcile lock already held for %q", key)
	}
	l.locks[key] = now.Add(ttl)
	return &memoryLockHandle{locker: l, key: key}, nil
}

type memoryLockHandle struct {
	locker *MemoryKeyLocker
	key    string
	once   sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		delete(h.locker.locks, h.key)
		h.locker.mu.Unlock()
	})
	return nil
}
