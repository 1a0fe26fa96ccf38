package tracking

import (
	"context"
	"time"

	"github.com/yegors/flightwatch/internal/aerodatabox"
	"github.com/yegors/flightwatch/internal/itinerary"
	"github.com/yegors/flightwatch/internal/metrics"
	"github.com/yegors/flightwatch/internal/opensky"
	"github.com/yegors/flightwatch/internal/storage/sqlite"
	"github.com/yegors/flightwatch/internal/weather"
	"github.com/yegors/flightwatch/internal/websocket"
)

const (
	DefaultPositionInterval = 15 * time.Second
	DefaultBoxSpan          = 8.0
)

// DetailResolver resolves a designator and date to a flight record
type DetailResolver interface {
	Configured() bool
	Resolve(ctx context.Context, designator, date string) (*aerodatabox.Result, error)
}

// StateSource returns state vectors inside a bounding box
type StateSource interface {
	States(ctx context.Context, box opensky.BBox) ([]opensky.StateVector, error)
}

// WeatherSource returns a best-effort weather brief for an airport
type WeatherSource interface {
	Brief(ctx context.Context, airport *itinerary.Airport) *weather.Brief
}

// AirlineDirectory looks up an airline by IATA or ICAO code
type AirlineDirectory interface {
	Lookup(ctx context.Context, code string) (*sqlite.Airline, error)
}

// Publisher pushes segment updates to live subscribers
type Publisher interface {
	Broadcast(message *websocket.Message)
}

// Dependencies are the collaborators shared by all trackers. Any of them
// may be nil except Clock, which defaults to time.Now; a nil States
// disables the secondary position feed.
type Dependencies struct {
	Resolver  DetailResolver
	States    StateSource
	Weather   WeatherSource
	Airlines  AirlineDirectory
	Publisher Publisher
	Metrics   *metrics.Metrics
	Clock     func() time.Time
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

// Config holds tracker timing
type Config struct {
	PositionInterval time.Duration
	BoxSpan          float64
}

func (c Config) withDefaults() Config {
	if c.PositionInterval <= 0 {
		c.PositionInterval = DefaultPositionInterval
	}
	if c.BoxSpan <= 0 {
		c.BoxSpan = DefaultBoxSpan
	}
	return c
}
