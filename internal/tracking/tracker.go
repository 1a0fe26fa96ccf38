package tracking

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yegors/flightwatch/internal/aerodatabox"
	"github.com/yegors/flightwatch/internal/designator"
	"github.com/yegors/flightwatch/internal/geo"
	"github.com/yegors/flightwatch/internal/itinerary"
	"github.com/yegors/flightwatch/internal/opensky"
	"github.com/yegors/flightwatch/internal/storage/sqlite"
	"github.com/yegors/flightwatch/internal/weather"
	"github.com/yegors/flightwatch/internal/websocket"
	"github.com/yegors/flightwatch/pkg/logger"
)

// Resolution summarizes the last detail lookup
type Resolution struct {
	Kind       aerodatabox.Kind `json:"kind"`
	Status     int              `json:"status"`
	Designator string           `json:"designator"`
	Attempts   int              `json:"attempts"`
	At         time.Time        `json:"at"`
}

// Tracker follows one segment. It owns its live status; nothing else
// writes to it.
type Tracker struct {
	segment    *itinerary.Segment
	designator string
	cfg        Config
	deps       Dependencies
	logger     *logger.Logger

	mu          sync.RWMutex
	primary     *aerodatabox.Flight
	resolution  *Resolution
	secondary   *geo.Coordinate
	live        *LiveStatus
	originWx    *weather.Brief
	destWx      *weather.Brief
	airline     *sqlite.Airline
	running     bool
	refresh     chan struct{}
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewTracker creates a tracker for seg. The tracking designator is fixed
// here, before any network call: the canonical form of the segment's
// flight, remapped through codeshares.
func NewTracker(seg *itinerary.Segment, codeshares *designator.CodeshareMap, cfg Config, deps Dependencies, log *logger.Logger) *Tracker {
	cfg = cfg.withDefaults()
	deps = deps.withDefaults()
	return &Tracker{
		segment:    seg,
		designator: codeshares.Resolve(designator.Normalize(seg.Flight)),
		cfg:        cfg,
		deps:       deps,
		logger:     log.Named("tracker").With(logger.String("segment", seg.ID)),
		refresh:    make(chan struct{}, 1),
	}
}

// Segment returns the tracked segment
func (t *Tracker) Segment() *itinerary.Segment { return t.segment }

// Designator returns the designator used for all provider calls
func (t *Tracker) Designator() string { return t.designator }

// Start launches the tracker goroutine. Calling Start on a running tracker
// does nothing.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.running = true

	t.logger.Info("Starting tracker",
		logger.String("flight", t.segment.Flight),
		logger.String("designator", t.designator),
		logger.Time("departure", t.segment.Departure()),
		logger.Time("arrival", t.segment.Arrival()))

	go t.run(ctx, t.done)
}

// Stop cancels the tracker and waits for its goroutine to exit. Results
// that arrive after Stop are discarded.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	cancel()
	<-done
	t.logger.Debug("Tracker stopped")
}

// Refresh asks the tracker to re-run detail resolution. It reports false
// when the tracker is not running. Repeated calls before the tracker gets
// to it collapse into one.
func (t *Tracker) Refresh() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.running {
		return false
	}
	select {
	case t.refresh <- struct{}{}:
	default:
	}
	return true
}

func (t *Tracker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	t.bootstrap(ctx)
	t.resolveDetail(ctx)
	t.pollPosition(ctx)

	ticker := time.NewTicker(t.cfg.PositionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.pollPosition(ctx)
		case <-t.refresh:
			t.resolveDetail(ctx)
		}
	}
}

// bootstrap fetches the once-per-start data: weather at both ends and the
// airline directory entry.
func (t *Tracker) bootstrap(ctx context.Context) {
	var originWx, destWx *weather.Brief
	var airline *sqlite.Airline

	g, gctx := errgroup.WithContext(ctx)
	if t.deps.Weather != nil {
		g.Go(func() error {
			originWx = t.deps.Weather.Brief(gctx, t.segment.Origin)
			return nil
		})
		g.Go(func() error {
			destWx = t.deps.Weather.Brief(gctx, t.segment.Destination)
			return nil
		})
	}
	if t.deps.Airlines != nil {
		g.Go(func() error {
			a, err := t.deps.Airlines.Lookup(gctx, designator.Carrier(t.designator))
			if err != nil {
				t.logger.Debug("Airline not in directory",
					logger.String("designator", t.designator),
					logger.Error(err))
				return nil
			}
			airline = a
			return nil
		})
	}
	_ = g.Wait()

	t.apply(ctx, func() {
		t.originWx = originWx
		t.destWx = destWx
		t.airline = airline
	})
}

// resolveDetail runs the provider cascade once. Failures keep the previous
// primary record.
func (t *Tracker) resolveDetail(ctx context.Context) {
	if t.deps.Resolver == nil || !t.deps.Resolver.Configured() {
		t.logger.Debug("Detail provider not configured, skipping resolution")
		return
	}

	res, err := t.deps.Resolver.Resolve(ctx, t.designator, t.segment.Date())
	if err != nil {
		if ctx.Err() == nil {
			t.logger.Warn("Detail resolution failed",
				logger.String("designator", t.designator),
				logger.Error(err))
		}
		return
	}

	t.logger.Debug("Detail resolution finished",
		logger.String("kind", string(res.Kind)),
		logger.Int("status", res.Status),
		logger.String("resolved_designator", res.Designator))

	now := t.deps.Clock()
	t.apply(ctx, func() {
		t.resolution = &Resolution{
			Kind:       res.Kind,
			Status:     res.Status,
			Designator: res.Designator,
			Attempts:   len(res.Attempts),
			At:         now,
		}
		if res.Kind == aerodatabox.KindFlight && res.Flight != nil {
			t.primary = res.Flight
		}
	})
}

// pollPosition queries the secondary feed when the segment is in its
// tracking window and the primary record has no coordinate.
func (t *Tracker) pollPosition(ctx context.Context) {
	now := t.deps.Clock()

	if !itinerary.InWindow(t.segment, now) {
		t.mu.RLock()
		stale := t.secondary != nil
		t.mu.RUnlock()
		if stale {
			t.apply(ctx, func() { t.secondary = nil })
		}
		return
	}

	if t.deps.States == nil {
		return
	}

	t.mu.RLock()
	hasPrimary := t.primary.Coordinate() != nil
	t.mu.RUnlock()
	if hasPrimary {
		return
	}

	box := opensky.BoxAround(t.segment.Midpoint(), t.cfg.BoxSpan)
	states, err := t.deps.States.States(ctx, box)
	if err != nil {
		if ctx.Err() == nil {
			t.logger.Debug("Secondary feed unavailable", logger.Error(err))
		}
		return
	}

	pos := opensky.Correlate(t.designator, states)
	t.deps.Metrics.ObserveCorrelation(t.segment.ID, pos != nil)
	if pos == nil {
		t.logger.Debug("No state vector matched",
			logger.String("designator", t.designator),
			logger.Int("state_count", len(states)))
		return
	}

	t.apply(ctx, func() { t.secondary = pos })
}

// apply mutates tracker state under the lock, recomputes the merged live
// status and publishes the result. It drops the update once ctx is done.
func (t *Tracker) apply(ctx context.Context, fn func()) {
	now := t.deps.Clock()

	t.mu.Lock()
	if ctx.Err() != nil {
		t.mu.Unlock()
		t.logger.Debug("Discarding result after stop")
		return
	}
	fn()
	t.live = merge(t.primary, t.secondary, now)
	view := t.viewLocked(now)
	t.mu.Unlock()

	if t.deps.Publisher != nil {
		t.deps.Publisher.Broadcast(&websocket.Message{
			Type: websocket.MessageTypeSegmentUpdate,
			Data: map[string]any{
				"segment_id": t.segment.ID,
				"segment":    view,
			},
		})
	}
}

// View returns a snapshot of the tracker's current state
func (t *Tracker) View() View {
	now := t.deps.Clock()
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.viewLocked(now)
}
