package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-events/internal/identity"
	"ms-events/internal/logger"
	"ms-events/internal/models"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchProfile(ctx context.Context, subject string) (*models.UserProfile, error) {
	args := m.Called(ctx, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserProfile), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, subject string) (*models.UserProfile, error) {
	args := m.Called(ctx, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserProfile), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, profile *models.UserProfile, ttl time.Duration) error {
	args := m.Called(ctx, profile, ttl)
	return args.Error(0)
}

func (m *MockCache) Invalidate(ctx context.Context, subject string) error {
	args := m.Called(ctx, subject)
	return args.Error(0)
}

func TestLookup_CacheHit(t *testing.T) {
	fetcher := new(MockFetcher)
	cache := new(MockCache)
	svc := identity.NewService(fetcher, cache, time.Minute, logger.NewLogger())

	cached := &models.UserProfile{ID: "user_1", FirstName: "Ada"}
	cache.On("Get", mock.Anything, "user_1").Return(cached, nil)

	profile, err := svc.Lookup(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, cached, profile)

	fetcher.AssertNotCalled(t, "FetchProfile", mock.Anything, mock.Anything)
}

func TestLookup_CacheMissFetchesAndStores(t *testing.T) {
	fetcher := new(MockFetcher)
	cache := new(MockCache)
	svc := identity.NewService(fetcher, cache, time.Minute, logger.NewLogger())

	fetched := &models.UserProfile{ID: "user_1", FirstName: "Ada"}
	cache.On("Get", mock.Anything, "user_1").Return(nil, nil)
	fetcher.On("FetchProfile", mock.Anything, "user_1").Return(fetched, nil)
	cache.On("Set", mock.Anything, fetched, time.Minute).Return(nil)

	profile, err := svc.Lookup(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, fetched, profile)

	cache.AssertExpectations(t)
	fetcher.AssertExpectations(t)
}

func TestLookup_CacheErrorDegradesToFetch(t *testing.T) {
	fetcher := new(MockFetcher)
	cache := new(MockCache)
	svc := identity.NewService(fetcher, cache, time.Minute, logger.NewLogger())

	fetched := &models.UserProfile{ID: "user_1"}
	cache.On("Get", mock.Anything, "user_1").Return(nil, errors.New("redis down"))
	fetcher.On("FetchProfile", mock.Anything, "user_1").Return(fetched, nil)
	cache.On("Set", mock.Anything, fetched, time.Minute).Return(errors.New("redis still down"))

	profile, err := svc.Lookup(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, fetched, profile)
}

func TestLookup_FetchErrorPropagates(t *testing.T) {
	fetcher := new(MockFetcher)
	cache := new(MockCache)
	svc := identity.NewService(fetcher, cache, time.Minute, logger.NewLogger())

	cache.On("Get", mock.Anything, "user_1").Return(nil, nil)
	fetcher.On("FetchProfile", mock.Anything, "user_1").Return(nil, errors.New("identity api 500"))

	_, err := svc.Lookup(context.Background(), "user_1")
	assert.Error(t, err)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
}

func TestForget(t *testing.T) {
	fetcher := new(MockFetcher)
	cache := new(MockCache)
	svc := identity.NewService(fetcher, cache, time.Minute, logger.NewLogger())

	cache.On("Invalidate", mock.Anything, "user_1").Return(nil)

	svc.Forget(context.Background(), "user_1")
	cache.AssertExpectations(t)
}
