package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestLocalLocker_ExclusiveUntilRelease(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()
	release, err := l.Acquire(ctx, "cycle", time.Minute)
	if err != nil {
		t.Fatalf("Acquire err=%v", err)
	}
	if _, err := l.Acquire(ctx, "cycle", time.Minute); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("second acquire err=%v want=ErrNotAcquired", err)
	}
	if _, err := l.Acquire(ctx, "other", time.Minute); err != nil {
		t.Fatalf("other key err=%v", err)
	}
	if err := release(ctx); err != nil {
		t.Fatalf("release err=%v", err)
	}
	if _, err := l.Acquire(ctx, "cycle", time.Minute); err != nil {
		t.Fatalf("acquire after release err=%v", err)
	}
}

func TestLocalLocker_ExpiredLeaseIsReclaimed(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.Now = func() time.Time { return now }
	stale, err := l.Acquire(ctx, "cycle", time.Minute)
	if err != nil {
		t.Fatalf("Acquire err=%v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := l.Acquire(ctx, "cycle", time.Minute); err != nil {
		t.Fatalf("acquire after expiry err=%v", err)
	}
	_ = stale(ctx)
	if _, err := l.Acquire(ctx, "cycle", time.Minute); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("stale release freed the new lease: err=%v", err)
	}
}

func TestLocalLocker_RepeatedReleaseKeepsNewLease(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()
	first, err := l.Acquire(ctx, "cycle", time.Minute)
	if err != nil {
		t.Fatalf("Acquire err=%v", err)
	}
	_ = first(ctx)
	if _, err := l.Acquire(ctx, "cycle", time.Minute); err != nil {
		t.Fatalf("second holder err=%v", err)
	}
	_ = first(ctx)
	if _, err := l.Acquire(ctx, "cycle", time.Minute); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("old release freed the new lease: err=%v", err)
	}
}

func TestRedisLocker_UnreachableServer(t *testing.T) {
	l := NewRedisLocker(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer l.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := l.Acquire(ctx, "cycle", time.Minute)
	if err == nil || errors.Is(err, ErrNotAcquired) {
		t.Fatalf("err=%v want connection error", err)
	}
}
