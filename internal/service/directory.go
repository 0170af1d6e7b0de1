package service

import (
	"context"
	"log/slog"

	"buggy/internal/domain"
	"buggy/internal/redis"
	"buggy/internal/repository"
)

// DirectoryService lists the resort's location directory, fronted by a
// short-TTL cache so every resolve call sees a recent snapshot without
// a database round trip.
type DirectoryService struct {
	repo   repository.LocationRepository
	cache  redis.CacheStoreInterface
	logger *slog.Logger
}

// NewDirectoryService creates a new DirectoryService. cache may be nil.
func NewDirectoryService(repo repository.LocationRepository, cache redis.CacheStoreInterface, logger *slog.Logger) *DirectoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectoryService{repo: repo, cache: cache, logger: logger}
}

// List returns the current directory. Cache failures are swallowed and
// fall through to the repository; a repository failure surfaces as
// ErrDirectoryUnavailable.
func (s *DirectoryService) List(ctx context.Context) ([]domain.Location, error) {
	if s.cache != nil {
		cached, err := s.cache.GetDirectory(ctx)
		if err != nil {
			s.logger.Warn("directory cache read failed", "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	locations, err := s.repo.ListLocations(ctx)
	if err != nil {
		s.logger.Error("directory listing failed", "error", err)
		return nil, ErrDirectoryUnavailable
	}

	if s.cache != nil {
		if err := s.cache.SetDirectory(ctx, locations); err != nil {
			s.logger.Warn("directory cache write failed", "error", err)
		}
	}

	return locations, nil
}

// Refresh drops the cached directory and reloads it from the
// repository. Admin edits to the locations table call this so consoles
// see the change before the cache TTL expires.
func (s *DirectoryService) Refresh(ctx context.Context) ([]domain.Location, error) {
	if s.cache != nil {
		if err := s.cache.InvalidateDirectory(ctx); err != nil {
			s.logger.Warn("directory cache invalidation failed", "error", err)
		}
	}
	return s.List(ctx)
}
