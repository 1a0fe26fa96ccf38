package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flightwatch/internal/geo"
	"github.com/yegors/flightwatch/internal/itinerary"
	"github.com/yegors/flightwatch/pkg/logger"
)

var fra = &itinerary.Airport{
	Code:     "FRA",
	Name:     "Frankfurt",
	Location: geo.Coordinate{Lat: 50.0379, Lon: 8.5622},
	ZoneName: "Europe/Berlin",
}

func TestCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "50.0379", q.Get("latitude"))
		assert.Equal(t, "8.5622", q.Get("longitude"))
		assert.Equal(t, "true", q.Get("current_weather"))
		assert.Equal(t, "Europe/Berlin", q.Get("timezone"))
		w.Write([]byte(`{"current_weather":{"temperature":12.4,"windspeed":18.0,"time":"2025-10-11T10:45"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, logger.NewNop(), nil)
	b, err := c.Current(context.Background(), fra.Code, fra.Location, fra.ZoneName)
	require.NoError(t, err)

	require.True(t, b.Available())
	assert.Equal(t, 12.4, *b.TempC)
	assert.Equal(t, 18.0, *b.WindKph)
	assert.Equal(t, "2025-10-11T10:45", b.Time)
}

func TestCurrentRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"current_weather":{"temperature":1,"windspeed":2,"time":"t"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, MaxRetries: 1}, logger.NewNop(), nil)
	_, err := c.Current(context.Background(), "FRA", fra.Location, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestCurrentMissingBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"latitude":50}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, logger.NewNop(), nil)
	_, err := c.Current(context.Background(), "FRA", fra.Location, "")
	assert.ErrorIs(t, err, errNoCurrentWeather)
}

func TestServiceCachesSuccessOnly(t *testing.T) {
	var calls int32
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"current_weather":{"temperature":9.5,"windspeed":11,"time":"2025-10-11T10:00"}}`))
	}))
	defer srv.Close()

	s := NewService(NewClient(Config{BaseURL: srv.URL, CacheTTL: time.Hour}, logger.NewNop(), nil), logger.NewNop())

	b := s.Brief(context.Background(), fra)
	require.NotNil(t, b)
	assert.False(t, b.Available(), "failure yields an empty brief")
	assert.Equal(t, "FRA", b.Airport)
	_, cached := s.Cached("FRA")
	assert.False(t, cached)

	fail.Store(false)
	b = s.Brief(context.Background(), fra)
	assert.True(t, b.Available())

	b = s.Brief(context.Background(), fra)
	assert.True(t, b.Available())
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls), "second success served from cache")
}
