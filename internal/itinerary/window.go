package itinerary

import "time"

// TrackingMargin is how long before departure and after arrival live
// position lookups are still worth issuing.
const TrackingMargin = 2 * time.Hour

// InWindow reports whether now lies in [departure-TrackingMargin, arrival+TrackingMargin].
// Both bounds are inclusive.
func InWindow(s *Segment, now time.Time) bool {
	start := s.Departure().Add(-TrackingMargin)
	end := s.Arrival().Add(TrackingMargin)
	return !now.Before(start) && !now.After(end)
}

// Phase is the schedule-only guess at where a flight is
type Phase string

const (
	PhaseScheduled Phase = "scheduled"
	PhaseAirborne  Phase = "likely airborne"
	PhaseLanded    Phase = "likely landed"
)

// InferStatus guesses the flight phase from the schedule alone. It is the
// fallback used when no provider reported anything.
func InferStatus(s *Segment, now time.Time) Phase {
	switch {
	case now.Before(s.Departure()):
		return PhaseScheduled
	case now.After(s.Arrival()):
		return PhaseLanded
	default:
		return PhaseAirborne
	}
}

// Countdown is the time remaining until a departure, split for display
type Countdown struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// CountdownTo splits the duration from now until t. A past t gives all zeros.
func CountdownTo(t, now time.Time) Countdown {
	d := t.Sub(now)
	if d <= 0 {
		return Countdown{}
	}
	total := int(d / time.Second)
	return Countdown{
		Days:    total / 86400,
		Hours:   total % 86400 / 3600,
		Minutes: total % 3600 / 60,
		Seconds: total % 60,
	}
}
