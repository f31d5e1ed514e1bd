package identity

import (
	"context"
	"fmt"
	"time"

	"ms-events/internal/logger"
	"ms-events/internal/models"
)

type Fetcher interface {
	FetchProfile(ctx context.Context, subject string) (*models.UserProfile, error)
}

type Cache interface {
	Get(ctx context.Context, subject string) (*models.UserProfile, error)
	Set(ctx context.Context, profile *models.UserProfile, ttl time.Duration) error
	Invalidate(ctx context.Context, subject string) error
}

// Service is the cache-aside front for identity lookups. Cache failures
// degrade to a direct API call; API failures propagate to the caller.
type Service struct {
	fetcher Fetcher
	cache   Cache
	ttl     time.Duration
	logger  *logger.Logger
}

func NewService(fetcher Fetcher, cache Cache, ttl time.Duration, log *logger.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		cache:   cache,
		ttl:     ttl,
		logger:  log,
	}
}

// Lookup resolves one subject to a profile.
func (s *Service) Lookup(ctx context.Context, subject string) (*models.UserProfile, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, subject)
		if err != nil {
			s.logger.Warn("IDENTITY", fmt.Sprintf("Profile cache read failed for %s: %v", subject, err))
		} else if cached != nil {
			return cached, nil
		}
	}

	profile, err := s.fetcher.FetchProfile(ctx, subject)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, profile, s.ttl); err != nil {
			s.logger.Warn("IDENTITY", fmt.Sprintf("Profile cache write failed for %s: %v", subject, err))
		}
	}

	return profile, nil
}

// Forget drops a subject from the cache. Called when the provider reports
// the user deleted.
func (s *Service) Forget(ctx context.Context, subject string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, subject); err != nil {
		s.logger.Warn("IDENTITY", fmt.Sprintf("Profile cache invalidation failed for %s: %v", subject, err))
	}
}
