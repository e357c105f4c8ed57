package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := &Client{rdb: rdb, logger: zap.NewNop()}

	return client, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestGuard_FirstArrivalIsNew(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	g := NewGuard(client, zap.NewNop(), time.Hour)
	ctx := context.Background()

	res, err := g.Admit(ctx, "r-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.New {
		t.Fatal("first arrival should be new")
	}
}

func TestGuard_BoundDuplicateReturnsExistingID(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	g := NewGuard(client, zap.NewNop(), time.Hour)
	ctx := context.Background()

	if _, err := g.Admit(ctx, "r-1"); err != nil {
		t.Fatalf("admit failed: %v", err)
	}
	if err := g.Bind(ctx, "r-1", "notif-123"); err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	res, err := g.Admit(ctx, "r-1")
	if err != nil {
		t.Fatalf("duplicate admit failed: %v", err)
	}
	if res.New {
		t.Fatal("duplicate should not be new")
	}
	if res.NotificationID != "notif-123" {
		t.Errorf("expected notif-123, got %s", res.NotificationID)
	}
}

func TestGuard_UnboundDuplicateIsInFlight(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	g := NewGuard(client, zap.NewNop(), time.Hour)
	ctx := context.Background()

	if _, err := g.Admit(ctx, "r-1"); err != nil {
		t.Fatalf("admit failed: %v", err)
	}

	if _, err := g.Admit(ctx, "r-1"); !errors.Is(err, ErrRequestInFlight) {
		t.Fatalf("expected ErrRequestInFlight, got: %v", err)
	}
}

func TestGuard_ConcurrentAdmitYieldsOneWinner(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	g := NewGuard(client, zap.NewNop(), time.Hour)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := g.Admit(ctx, "same-request")
			if err != nil {
				return // losers see ErrRequestInFlight
			}
			if res.New {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", winners)
	}
}

func TestGuard_ExpiredRecordIsNewRequest(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	g := NewGuard(client, zap.NewNop(), time.Minute)
	ctx := context.Background()

	if _, err := g.Admit(ctx, "r-1"); err != nil {
		t.Fatalf("admit failed: %v", err)
	}
	if err := g.Bind(ctx, "r-1", "notif-1"); err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	res, err := g.Admit(ctx, "r-1")
	if err != nil {
		t.Fatalf("post-expiry admit failed: %v", err)
	}
	if !res.New {
		t.Fatal("post-expiry reuse should be a new request")
	}
}

func TestGuard_ReleaseAllowsImmediateRetry(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	g := NewGuard(client, zap.NewNop(), time.Hour)
	ctx := context.Background()

	if _, err := g.Admit(ctx, "r-1"); err != nil {
		t.Fatalf("admit failed: %v", err)
	}
	if err := g.Release(ctx, "r-1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	res, err := g.Admit(ctx, "r-1")
	if err != nil {
		t.Fatalf("retry admit failed: %v", err)
	}
	if !res.New {
		t.Fatal("released request_id should admit as new")
	}
}

func TestGuard_StoreDownSurfacesUnavailable(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	g := NewGuard(client, zap.NewNop(), time.Hour)
	ctx := context.Background()

	mr.Close()

	if _, err := g.Admit(ctx, "r-1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got: %v", err)
	}
}
