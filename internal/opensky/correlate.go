package opensky

import (
	"strings"

	"github.com/yegors/flightwatch/internal/designator"
	"github.com/yegors/flightwatch/internal/geo"
)

// Correlate finds the position of a flight in a batch of state vectors.
//
// The numeric part of the designator is matched as a substring of each
// upper-cased callsign, so "UA9001" matches "UAL9001". The first matching
// vector decides: if it carries no position the result is nil. Matching is
// loose and can pick up an unrelated flight that shares the digits.
func Correlate(flight string, states []StateVector) *geo.Coordinate {
	num := designator.Digits(flight)
	if num == "" {
		return nil
	}
	for _, s := range states {
		if !strings.Contains(strings.ToUpper(strings.TrimSpace(s.Callsign)), num) {
			continue
		}
		return s.Position()
	}
	return nil
}
