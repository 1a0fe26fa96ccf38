package weather

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/yegors/flightwatch/internal/itinerary"
	"github.com/yegors/flightwatch/pkg/logger"
)

const (
	defaultCacheTTL  = 10 * time.Minute
	defaultCacheSize = 32
)

// Service serves weather briefs per airport from a shared expiring cache.
// It is safe for concurrent use by all trackers.
type Service struct {
	client *Client
	cache  *expirable.LRU[string, *Brief]
	logger *logger.Logger
}

// NewService creates a weather service over the given client
func NewService(client *Client, log *logger.Logger) *Service {
	ttl := client.config.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	size := client.config.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	return &Service{
		client: client,
		cache:  expirable.NewLRU[string, *Brief](size, nil, ttl),
		logger: log.Named("weather-service"),
	}
}

// Brief returns the current weather for an airport. It never fails: a
// provider error yields an empty brief, which is not cached so the next
// caller tries again.
func (s *Service) Brief(ctx context.Context, airport *itinerary.Airport) *Brief {
	if b, ok := s.cache.Get(airport.Code); ok {
		return b
	}

	b, err := s.client.Current(ctx, airport.Code, airport.Location, airport.ZoneName)
	if err != nil {
		s.logger.Warn("Weather unavailable",
			logger.String("airport", airport.Code),
			logger.Error(err))
		return &Brief{Airport: airport.Code}
	}

	s.cache.Add(airport.Code, b)
	s.logger.Debug("Weather data cached",
		logger.String("airport", airport.Code),
		logger.String("observed", b.Time))
	return b
}

// Cached returns the cached brief for an airport code without fetching
func (s *Service) Cached(code string) (*Brief, bool) {
	return s.cache.Get(code)
}
