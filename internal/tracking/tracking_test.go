package tracking

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flightwatch/internal/aerodatabox"
	"github.com/yegors/flightwatch/internal/geo"
	"github.com/yegors/flightwatch/internal/itinerary"
	"github.com/yegors/flightwatch/internal/opensky"
	"github.com/yegors/flightwatch/internal/websocket"
	"github.com/yegors/flightwatch/pkg/logger"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeResolver struct {
	configured bool
	result     *aerodatabox.Result
	err        error
	block      bool // wait for cancellation, then answer anyway

	mu    sync.Mutex
	calls []string
}

func (f *fakeResolver) Configured() bool { return f.configured }

func (f *fakeResolver) Resolve(ctx context.Context, d, date string) (*aerodatabox.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, d+"|"+date)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
	}
	return f.result, f.err
}

func (f *fakeResolver) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeStates struct {
	states []opensky.StateVector
	err    error
	calls  atomic.Int32
	boxes  chan opensky.BBox
}

func (f *fakeStates) States(ctx context.Context, box opensky.BBox) ([]opensky.StateVector, error) {
	f.calls.Add(1)
	if f.boxes != nil {
		select {
		case f.boxes <- box:
		default:
		}
	}
	return f.states, f.err
}

type fakePublisher struct {
	messages chan *websocket.Message
}

func (f *fakePublisher) Broadcast(m *websocket.Message) {
	select {
	case f.messages <- m:
	default:
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func testItinerary(t *testing.T) *itinerary.Itinerary {
	t.Helper()
	it, err := itinerary.New(
		[]itinerary.AirportSpec{
			{Code: "DRS", Name: "Dresden", Lat: 51.1328, Lon: 13.7672, TZ: "Europe/Berlin"},
			{Code: "FRA", Name: "Frankfurt", Lat: 50.0379, Lon: 8.5622, TZ: "Europe/Berlin"},
			{Code: "EWR", Name: "Newark", Lat: 40.6895, Lon: -74.1745, TZ: "America/New_York"},
		},
		[]itinerary.SegmentSpec{
			{ID: "out1", Label: "Outbound 1", Flight: "UA 9001", From: "DRS", To: "FRA", Departure: "2025-10-11T10:45", Arrival: "2025-10-11T11:50"},
			{ID: "out2", Label: "Outbound 2", Flight: "UA 8839", From: "FRA", To: "EWR", Departure: "2025-10-11T13:20", Arrival: "2025-10-11T21:40"},
		},
		map[string]string{"UA 8839": "LH 402"},
	)
	require.NoError(t, err)
	return it
}

// out2 departs 11:20Z and arrives 01:40Z the next day
var (
	beforeWindow = time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	midFlight    = time.Date(2025, 10, 11, 16, 0, 0, 0, time.UTC)
	afterWindow  = time.Date(2025, 10, 12, 4, 0, 0, 0, time.UTC)
)

func flightResult(status string, loc *aerodatabox.Location) *aerodatabox.Result {
	return &aerodatabox.Result{
		Kind:       aerodatabox.KindFlight,
		Status:     200,
		Designator: "LH402",
		Flight: &aerodatabox.Flight{
			Number:    "LH 402",
			Status:    status,
			Departure: aerodatabox.Movement{Gate: "Z25"},
			Arrival: aerodatabox.Movement{
				Gate:          "C71",
				PredictedTime: &aerodatabox.ProviderTime{UTC: "2025-10-12 01:31Z"},
			},
			Location: loc,
		},
		Attempts: []aerodatabox.Attempt{{Call: "number-Iata", Designator: "LH402", Status: 200}},
	}
}

func startTracker(t *testing.T, id string, deps Dependencies, cfg Config) *Tracker {
	t.Helper()
	it := testItinerary(t)
	seg, ok := it.Segment(id)
	require.True(t, ok)

	tr := NewTracker(seg, it.Codeshares(), cfg, deps, logger.NewNop())
	tr.Start(context.Background())
	t.Cleanup(tr.Stop)
	return tr
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func f64(v float64) *float64 { return &v }

// ---------------------------------------------------------------------------
// Merge
// ---------------------------------------------------------------------------

func TestMergePrecedence(t *testing.T) {
	now := midFlight
	primaryPos := &aerodatabox.Location{Lat: 52, Lon: -20}
	secondary := &geo.Coordinate{Lat: 48, Lon: -30}

	tests := []struct {
		name       string
		primary    *aerodatabox.Flight
		secondary  *geo.Coordinate
		wantNil    bool
		wantStatus string
		wantPos    *geo.Coordinate
		wantSource PositionSource
	}{
		{"nothing known", nil, nil, true, "", nil, SourceNone},
		{"primary coordinate wins", flightResult("EnRoute", primaryPos).Flight, secondary, false, "EnRoute", &geo.Coordinate{Lat: 52, Lon: -20}, SourcePrimary},
		{"secondary fills missing coordinate", flightResult("EnRoute", nil).Flight, secondary, false, "EnRoute", secondary, SourceSecondary},
		{"secondary only labels status", nil, secondary, false, StatusSecondaryAirborne, secondary, SourceSecondary},
		{"primary without status gets label", flightResult("", nil).Flight, secondary, false, StatusSecondaryAirborne, secondary, SourceSecondary},
		{"primary without any position", flightResult("Expected", nil).Flight, nil, false, "Expected", nil, SourceNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := merge(tt.primary, tt.secondary, now)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantPos, got.Position)
			assert.Equal(t, tt.wantSource, got.PositionSource)
		})
	}
}

func TestMergeCopiesGatesAndETA(t *testing.T) {
	got := merge(flightResult("EnRoute", nil).Flight, nil, midFlight)
	require.NotNil(t, got)
	assert.Equal(t, "Z25", got.GateDeparture)
	assert.Equal(t, "C71", got.GateArrival)
	require.NotNil(t, got.ETA)
	assert.Equal(t, time.Date(2025, 10, 12, 1, 31, 0, 0, time.UTC), *got.ETA)
}

func TestDisplayStatusFallsBackToSchedule(t *testing.T) {
	it := testItinerary(t)
	seg, _ := it.Segment("out2")

	assert.Equal(t, "scheduled", DisplayStatus(nil, seg, beforeWindow))
	assert.Equal(t, "likely airborne", DisplayStatus(nil, seg, midFlight))
	assert.Equal(t, "likely landed", DisplayStatus(&LiveStatus{}, seg, afterWindow))
	assert.Equal(t, "Boarding", DisplayStatus(&LiveStatus{Status: "Boarding"}, seg, beforeWindow))
}

// ---------------------------------------------------------------------------
// Tracker
// ---------------------------------------------------------------------------

func TestTrackerResolvesCodeshareDesignatorOnce(t *testing.T) {
	resolver := &fakeResolver{configured: true, result: flightResult("EnRoute", &aerodatabox.Location{Lat: 52.1, Lon: -20.4})}
	states := &fakeStates{}

	tr := startTracker(t, "out2", Dependencies{
		Resolver: resolver,
		States:   states,
		Clock:    fixedClock(midFlight),
	}, Config{PositionInterval: 10 * time.Millisecond})

	assert.Equal(t, "LH402", tr.Designator())
	require.Eventually(t, func() bool { return tr.View().Live != nil }, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"LH402|2025-10-11"}, resolver.Calls())

	v := tr.View()
	assert.Equal(t, "EnRoute", v.Status)
	assert.Equal(t, "Z25", v.GateDeparture)
	assert.Equal(t, "C71", v.GateArrival)
	assert.Equal(t, SourcePrimary, v.PositionSource)
	assert.Equal(t, &geo.Coordinate{Lat: 52.1, Lon: -20.4}, v.Position)
	require.NotNil(t, v.Resolution)
	assert.Equal(t, aerodatabox.KindFlight, v.Resolution.Kind)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, states.calls.Load(), "primary coordinate makes the secondary feed unnecessary")
}

func TestTrackerFillsPositionFromSecondaryFeed(t *testing.T) {
	resolver := &fakeResolver{configured: true, result: flightResult("", nil)}
	states := &fakeStates{
		boxes: make(chan opensky.BBox, 1),
		states: []opensky.StateVector{
			{Callsign: "UAL9001", Latitude: f64(50.5), Longitude: f64(10)},
			{Callsign: "DLH402", Latitude: f64(51.2), Longitude: f64(-35.5)},
		},
	}

	tr := startTracker(t, "out2", Dependencies{
		Resolver: resolver,
		States:   states,
		Clock:    fixedClock(midFlight),
	}, Config{PositionInterval: time.Hour})

	var box opensky.BBox
	select {
	case box = <-states.boxes:
	case <-time.After(time.Second):
		t.Fatal("secondary feed was never queried")
	}
	mid := geo.Midpoint(geo.Coordinate{Lat: 50.0379, Lon: 8.5622}, geo.Coordinate{Lat: 40.6895, Lon: -74.1745})
	assert.Equal(t, opensky.BoxAround(mid, DefaultBoxSpan), box)

	require.Eventually(t, func() bool { return tr.View().PositionSource == SourceSecondary }, time.Second, 5*time.Millisecond)

	v := tr.View()
	assert.Equal(t, &geo.Coordinate{Lat: 51.2, Lon: -35.5}, v.Position)
	assert.Equal(t, StatusSecondaryAirborne, v.Status)
	assert.Equal(t, "Z25", v.GateDeparture, "primary fields survive the merge")
}

func TestTrackerOutsideWindowMakesNoFeedCall(t *testing.T) {
	states := &fakeStates{}
	tr := startTracker(t, "out2", Dependencies{
		States: states,
		Clock:  fixedClock(beforeWindow),
	}, Config{PositionInterval: 5 * time.Millisecond})

	time.Sleep(60 * time.Millisecond)
	tr.Stop()

	assert.Zero(t, states.calls.Load())
	v := tr.View()
	assert.Equal(t, "scheduled", v.Status)
	assert.False(t, v.InWindow)
	assert.Nil(t, v.Position)
}

func TestTrackerEmptyStatesFallsBackToSchedule(t *testing.T) {
	states := &fakeStates{}
	tr := startTracker(t, "out2", Dependencies{
		Resolver: &fakeResolver{configured: false},
		States:   states,
		Clock:    fixedClock(midFlight),
	}, Config{PositionInterval: 5 * time.Millisecond})

	require.Eventually(t, func() bool { return states.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	v := tr.View()
	assert.Nil(t, v.Live)
	assert.Nil(t, v.Position)
	assert.Equal(t, "likely airborne", v.Status)
	assert.Equal(t, Placeholder, v.GateDeparture)
	assert.Equal(t, Placeholder, v.GateArrival)
	assert.Equal(t, Placeholder, v.ETA)
}

func TestTrackerClearsSecondaryOutsideWindow(t *testing.T) {
	clk := &clock{now: midFlight}
	states := &fakeStates{states: []opensky.StateVector{{Callsign: "DLH402", Latitude: f64(45), Longitude: f64(-50)}}}

	tr := startTracker(t, "out2", Dependencies{
		States: states,
		Clock:  clk.Now,
	}, Config{PositionInterval: 5 * time.Millisecond})

	require.Eventually(t, func() bool { return tr.View().Position != nil }, time.Second, 5*time.Millisecond)

	clk.Set(afterWindow)
	require.Eventually(t, func() bool { return tr.View().Position == nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "likely landed", tr.View().Status)
}

func TestTrackerKeepsCoordinateWhenNoLaterMatch(t *testing.T) {
	states := &fakeStates{states: []opensky.StateVector{{Callsign: "DLH402", Latitude: f64(45), Longitude: f64(-50)}}}
	tr := startTracker(t, "out2", Dependencies{
		States: states,
		Clock:  fixedClock(midFlight),
	}, Config{PositionInterval: time.Hour})

	require.Eventually(t, func() bool { return tr.View().Position != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StatusSecondaryAirborne, tr.View().Status)
}

func TestTrackerDiscardsResultsAfterStop(t *testing.T) {
	resolver := &fakeResolver{configured: true, block: true, result: flightResult("EnRoute", nil)}
	tr := startTracker(t, "out2", Dependencies{
		Resolver: resolver,
		Clock:    fixedClock(midFlight),
	}, Config{})

	require.Eventually(t, func() bool { return len(resolver.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	tr.Stop()

	v := tr.View()
	assert.Nil(t, v.Live)
	assert.Nil(t, v.Resolution)
	assert.Equal(t, "likely airborne", v.Status)
}

func TestTrackerRefresh(t *testing.T) {
	resolver := &fakeResolver{configured: true, result: &aerodatabox.Result{Kind: aerodatabox.KindFailure, Status: 404}}
	tr := startTracker(t, "out1", Dependencies{
		Resolver: resolver,
		Clock:    fixedClock(beforeWindow),
	}, Config{})

	require.Eventually(t, func() bool { return len(resolver.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "UA9001|2025-10-11", resolver.Calls()[0])

	require.True(t, tr.Refresh())
	require.Eventually(t, func() bool { return len(resolver.Calls()) == 2 }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return tr.View().Resolution != nil }, time.Second, 5*time.Millisecond)
	v := tr.View()
	assert.Equal(t, aerodatabox.KindFailure, v.Resolution.Kind)
	assert.Nil(t, v.Live, "a failed resolution leaves no live status")

	tr.Stop()
	assert.False(t, tr.Refresh())
}

func TestTrackerPublishesUpdates(t *testing.T) {
	pub := &fakePublisher{messages: make(chan *websocket.Message, 16)}
	startTracker(t, "out2", Dependencies{
		Resolver:  &fakeResolver{configured: true, result: flightResult("EnRoute", nil)},
		Publisher: pub,
		Clock:     fixedClock(midFlight),
	}, Config{PositionInterval: time.Hour})

	deadline := time.After(time.Second)
	for {
		select {
		case m := <-pub.messages:
			assert.Equal(t, websocket.MessageTypeSegmentUpdate, m.Type)
			assert.Equal(t, "out2", m.Data["segment_id"])
			v, ok := m.Data["segment"].(View)
			require.True(t, ok)
			if v.Live != nil {
				assert.Equal(t, "EnRoute", v.Status)
				return
			}
		case <-deadline:
			t.Fatal("no update with live status published")
		}
	}
}

func TestViewDualZoneTimes(t *testing.T) {
	it := testItinerary(t)
	seg, _ := it.Segment("out2")
	tr := NewTracker(seg, it.Codeshares(), Config{}, Dependencies{Clock: fixedClock(beforeWindow)}, logger.NewNop())

	v := tr.View()
	assert.Equal(t, time.Date(2025, 10, 11, 11, 20, 0, 0, time.UTC), v.Departure.UTC)
	assert.Equal(t, "Sat 11.10 13:20 CEST", v.Departure.OriginLocal)
	assert.Equal(t, "Sat 11.10 07:20 EDT", v.Departure.DestinationLocal)
	assert.Equal(t, "Sat 11.10 21:40 EDT", v.Arrival.DestinationLocal)
	assert.InDelta(t, 6200, v.DistanceKm, 100)
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

func TestServiceLifecycle(t *testing.T) {
	resolver := &fakeResolver{configured: true, result: &aerodatabox.Result{Kind: aerodatabox.KindFailure, Status: 502}}
	svc := NewService(testItinerary(t), Config{}, Dependencies{
		Resolver: resolver,
		Clock:    fixedClock(beforeWindow),
	}, logger.NewNop())

	views := svc.Snapshots()
	require.Len(t, views, 2)
	assert.Equal(t, "out1", views[0].ID)
	assert.Equal(t, "out2", views[1].ID)
	assert.Equal(t, "LH402", views[1].TrackingDesignator)

	_, ok := svc.Snapshot("nope")
	assert.False(t, ok)

	assert.ErrorIs(t, svc.Refresh("nope"), ErrUnknownSegment)
	assert.ErrorIs(t, svc.Refresh("out1"), ErrNotRunning)

	require.NoError(t, svc.Start(context.Background()))
	require.Eventually(t, func() bool { return len(resolver.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"UA9001|2025-10-11", "LH402|2025-10-11"}, resolver.Calls())

	assert.NoError(t, svc.Refresh("out1"))
	svc.Stop()
	assert.ErrorIs(t, svc.Refresh("out1"), ErrNotRunning)
}
