package tests

import (
	"context"
	"sync/atomic"
	"testing"

	"buggy/internal/domain"
	"buggy/internal/service"
)

// ──────────────────────────────────────────────
// DIRECTORY CACHE
// ──────────────────────────────────────────────

func TestDirectoryList_ServesCachedCopy(t *testing.T) {
	t.Parallel()

	repo := NewMockLocationRepository(resortDirectory()...)
	cache := NewMockCacheStore()
	dir := service.NewDirectoryService(repo, cache, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := dir.List(ctx); err != nil {
			t.Fatalf("list: %v", err)
		}
	}
	if calls := atomic.LoadInt32(&repo.ListCallCount); calls != 1 {
		t.Errorf("expected one repository read behind the cache, got %d", calls)
	}
}

func TestDirectoryRefresh_DropsStaleCache(t *testing.T) {
	t.Parallel()

	repo := NewMockLocationRepository(resortDirectory()...)
	cache := NewMockCacheStore()
	ctx := context.Background()

	// A stale directory is sitting in the cache from before an admin
	// edit to the locations table.
	stale := []domain.Location{{ID: "old", Name: "Old Pier", Category: domain.CategoryFacility}}
	if err := cache.SetDirectory(ctx, stale); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	dir := service.NewDirectoryService(repo, cache, nil)
	listed, err := dir.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "old" {
		t.Fatalf("expected the stale cached copy first, got %d entries", len(listed))
	}

	refreshed, err := dir.Refresh(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(refreshed) != len(resortDirectory()) {
		t.Fatalf("expected the reloaded directory, got %d entries", len(refreshed))
	}

	// Subsequent reads serve the refreshed copy from cache.
	listed, err = dir.List(ctx)
	if err != nil {
		t.Fatalf("list after refresh: %v", err)
	}
	if len(listed) != len(resortDirectory()) {
		t.Errorf("expected the cache repopulated, got %d entries", len(listed))
	}
	if calls := atomic.LoadInt32(&repo.ListCallCount); calls != 1 {
		t.Errorf("expected one repository read, got %d", calls)
	}
}
