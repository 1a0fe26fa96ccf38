package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yegors/flightwatch/internal/itinerary"
	"github.com/yegors/flightwatch/internal/websocket"
	"github.com/yegors/flightwatch/pkg/logger"
)

var (
	// ErrUnknownSegment is returned for a segment ID not in the itinerary
	ErrUnknownSegment = errors.New("unknown segment")

	// ErrNotRunning is returned when a stopped tracker is asked to refresh
	ErrNotRunning = errors.New("tracker not running")
)

// Service owns one tracker per segment of the itinerary
type Service struct {
	itinerary *itinerary.Itinerary
	trackers  []*Tracker
	byID      map[string]*Tracker
	logger    *logger.Logger

	mu      sync.Mutex
	started bool
}

// NewService creates a tracker for every segment. Nothing runs until Start.
func NewService(it *itinerary.Itinerary, cfg Config, deps Dependencies, log *logger.Logger) *Service {
	s := &Service{
		itinerary: it,
		byID:      make(map[string]*Tracker),
		logger:    log.Named("tracking"),
	}
	for _, seg := range it.Segments() {
		t := NewTracker(seg, it.Codeshares(), cfg, deps, log)
		s.trackers = append(s.trackers, t)
		s.byID[seg.ID] = t
	}
	return s
}

// Itinerary returns the tracked itinerary
func (s *Service) Itinerary() *itinerary.Itinerary { return s.itinerary }

// Start launches every tracker
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.logger.Info("Starting tracking service", logger.Int("segments", len(s.trackers)))
	for _, t := range s.trackers {
		t.Start(ctx)
	}
	s.started = true
	return nil
}

// Stop stops every tracker and waits for them to exit
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}

	s.logger.Info("Stopping tracking service")
	var wg sync.WaitGroup
	for _, t := range s.trackers {
		wg.Add(1)
		go func(t *Tracker) {
			defer wg.Done()
			t.Stop()
		}(t)
	}
	wg.Wait()
	s.started = false
}

// Snapshots returns the views of all segments in itinerary order
func (s *Service) Snapshots() []View {
	views := make([]View, 0, len(s.trackers))
	for _, t := range s.trackers {
		views = append(views, t.View())
	}
	return views
}

// Snapshot returns the view of one segment
func (s *Service) Snapshot(id string) (View, bool) {
	t, ok := s.byID[id]
	if !ok {
		return View{}, false
	}
	return t.View(), true
}

// Refresh re-triggers detail resolution for one segment
func (s *Service) Refresh(id string) error {
	t, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSegment, id)
	}
	if !t.Refresh() {
		return fmt.Errorf("%w: %s", ErrNotRunning, id)
	}
	s.logger.Debug("Refresh requested", logger.String("segment", id))
	return nil
}

// HandleMessage answers snapshot requests from websocket clients
func (s *Service) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	switch messageType {
	case websocket.MessageTypeSnapshotRequest:
		views := s.Snapshots()
		segments := make([]View, 0, len(views))
		for _, v := range views {
			if client.Wants(v.ID) {
				segments = append(segments, v)
			}
		}
		if !client.SendMessage(&websocket.Message{
			Type: websocket.MessageTypeSnapshot,
			Data: map[string]any{"segments": segments},
		}) {
			return fmt.Errorf("failed to queue snapshot for client")
		}
		return nil
	default:
		return fmt.Errorf("unsupported message type: %s", messageType)
	}
}
