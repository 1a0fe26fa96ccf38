package opensky

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/yegors/flightwatch/internal/geo"
)

// ErrInvalidBBox is returned for a bounding box that is not a valid query
var ErrInvalidBBox = errors.New("opensky: invalid bounding box")

// BBox is a latitude/longitude query box in degrees
type BBox struct {
	Lamin float64 `json:"lamin"`
	Lomin float64 `json:"lomin"`
	Lamax float64 `json:"lamax"`
	Lomax float64 `json:"lomax"`
}

// BoxAround returns the box spanning span degrees on each side of center.
// The box is not clamped; OpenSky accepts out-of-range values and simply
// returns nothing for them.
func BoxAround(center geo.Coordinate, span float64) BBox {
	return BBox{
		Lamin: center.Lat - span,
		Lomin: center.Lon - span,
		Lamax: center.Lat + span,
		Lomax: center.Lon + span,
	}
}

// Validate checks the box is ordered and finite
func (b BBox) Validate() error {
	for _, v := range []float64{b.Lamin, b.Lomin, b.Lamax, b.Lomax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite bound", ErrInvalidBBox)
		}
	}
	if b.Lamin > b.Lamax || b.Lomin > b.Lomax {
		return fmt.Errorf("%w: minimum exceeds maximum", ErrInvalidBBox)
	}
	return nil
}

// StateVector is one row of the states/all response. Only the callsign and
// position take part in correlation; the rest is carried for the API.
type StateVector struct {
	ICAO24        string   `json:"icao24"`
	Callsign      string   `json:"callsign"`
	OriginCountry string   `json:"origin_country,omitempty"`
	Longitude     *float64 `json:"longitude"`
	Latitude      *float64 `json:"latitude"`
	BaroAltitude  *float64 `json:"baro_altitude,omitempty"`
	OnGround      bool     `json:"on_ground"`
	Velocity      *float64 `json:"velocity,omitempty"`
	TrueTrack     *float64 `json:"true_track,omitempty"`
}

// Position returns the reported position, or nil when either axis is missing
func (s StateVector) Position() *geo.Coordinate {
	if s.Latitude == nil || s.Longitude == nil {
		return nil
	}
	return &geo.Coordinate{Lat: *s.Latitude, Lon: *s.Longitude}
}

// parseState extracts a state vector from one positional row. Missing or
// mistyped cells are left at their zero value.
func parseState(row []interface{}) StateVector {
	var s StateVector
	if v, ok := cell[string](row, 0); ok {
		s.ICAO24 = strings.TrimSpace(v)
	}
	if v, ok := cell[string](row, 1); ok {
		s.Callsign = strings.TrimSpace(v)
	}
	if v, ok := cell[string](row, 2); ok {
		s.OriginCountry = v
	}
	s.Longitude = floatCell(row, 5)
	s.Latitude = floatCell(row, 6)
	s.BaroAltitude = floatCell(row, 7)
	if v, ok := cell[bool](row, 8); ok {
		s.OnGround = v
	}
	s.Velocity = floatCell(row, 9)
	s.TrueTrack = floatCell(row, 10)
	return s
}

func cell[T any](row []interface{}, i int) (T, bool) {
	var zero T
	if i >= len(row) {
		return zero, false
	}
	v, ok := row[i].(T)
	return v, ok
}

func floatCell(row []interface{}, i int) *float64 {
	v, ok := cell[float64](row, i)
	if !ok {
		return nil
	}
	return &v
}
