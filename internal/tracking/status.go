package tracking

import (
	"time"

	"github.com/yegors/flightwatch/internal/aerodatabox"
	"github.com/yegors/flightwatch/internal/geo"
	"github.com/yegors/flightwatch/internal/itinerary"
)

// Placeholder is rendered for any value no provider reported
const Placeholder = "–"

// StatusSecondaryAirborne is reported when the secondary feed placed the
// flight and nothing else was known about it.
const StatusSecondaryAirborne = "likely airborne via secondary feed"

// PositionSource tells where a live coordinate came from
type PositionSource string

const (
	SourceNone      PositionSource = ""
	SourcePrimary   PositionSource = "primary"
	SourceSecondary PositionSource = "secondary"
)

// LiveStatus is the merged live view of one segment
type LiveStatus struct {
	Status         string          `json:"status,omitempty"`
	GateDeparture  string          `json:"gate_departure,omitempty"`
	GateArrival    string          `json:"gate_arrival,omitempty"`
	ETA            *time.Time      `json:"eta,omitempty"`
	Position       *geo.Coordinate `json:"position,omitempty"`
	PositionSource PositionSource  `json:"position_source,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// merge combines the last primary record with the last correlated
// coordinate. The primary record always wins; the secondary coordinate only
// fills a missing position. Returns nil when neither source has anything.
func merge(primary *aerodatabox.Flight, secondary *geo.Coordinate, now time.Time) *LiveStatus {
	if primary == nil && secondary == nil {
		return nil
	}

	ls := &LiveStatus{UpdatedAt: now}
	if primary != nil {
		ls.Status = primary.Status
		ls.GateDeparture = primary.Departure.Gate
		ls.GateArrival = primary.Arrival.Gate
		if eta, ok := primary.ETA(); ok {
			ls.ETA = &eta
		}
		if c := primary.Coordinate(); c != nil {
			ls.Position = c
			ls.PositionSource = SourcePrimary
		}
	}

	if ls.Position == nil && secondary != nil {
		c := *secondary
		ls.Position = &c
		ls.PositionSource = SourceSecondary
		if ls.Status == "" {
			ls.Status = StatusSecondaryAirborne
		}
	}
	return ls
}

// DisplayStatus is the status text shown for a segment: the live status
// when one is known, otherwise the schedule-based guess.
func DisplayStatus(live *LiveStatus, seg *itinerary.Segment, now time.Time) string {
	if live != nil && live.Status != "" {
		return live.Status
	}
	return string(itinerary.InferStatus(seg, now))
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}
