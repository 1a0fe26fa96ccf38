package itinerary

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yegors/flightwatch/internal/designator"
	"github.com/yegors/flightwatch/internal/geo"
)

// LocalTimeLayout is the layout of scheduled local times in configuration
const LocalTimeLayout = "2006-01-02T15:04"

// DateLayout is the calendar date layout providers expect
const DateLayout = "2006-01-02"

// ErrInvalidItinerary is returned when the static configuration is inconsistent
var ErrInvalidItinerary = errors.New("invalid itinerary")

// Airport is a static airport entry shared by all segments that reference it
type Airport struct {
	Code     string         `json:"code"`
	Name     string         `json:"name"`
	Location geo.Coordinate `json:"location"`
	ZoneName string         `json:"tz"`
	Zone     *time.Location `json:"-"`
}

// Segment is one leg of the itinerary. It is immutable after New returns.
type Segment struct {
	ID             string   `json:"id"`
	Label          string   `json:"label"`
	Flight         string   `json:"flight"`
	Origin         *Airport `json:"-"`
	Destination    *Airport `json:"-"`
	DepartureLocal string   `json:"departure_local"`
	ArrivalLocal   string   `json:"arrival_local"`

	departure time.Time
	arrival   time.Time
}

// Departure returns the scheduled departure as an absolute instant
func (s *Segment) Departure() time.Time { return s.departure }

// Arrival returns the scheduled arrival as an absolute instant
func (s *Segment) Arrival() time.Time { return s.arrival }

// Date returns the local departure date, the date providers index flights by
func (s *Segment) Date() string {
	return s.departure.In(s.Origin.Zone).Format(DateLayout)
}

// Midpoint returns the midpoint between origin and destination
func (s *Segment) Midpoint() geo.Coordinate {
	return geo.Midpoint(s.Origin.Location, s.Destination.Location)
}

// AirportSpec describes an airport in configuration
type AirportSpec struct {
	Code string
	Name string
	Lat  float64
	Lon  float64
	TZ   string
}

// SegmentSpec describes a segment in configuration
type SegmentSpec struct {
	ID        string
	Label     string
	Flight    string
	From      string
	To        string
	Departure string
	Arrival   string
}

// Itinerary is the fixed set of airports, segments and codeshares the
// process tracks for its whole lifetime.
type Itinerary struct {
	airports   map[string]*Airport
	segments   []*Segment
	byID       map[string]*Segment
	codeshares *designator.CodeshareMap
}

// New validates the static configuration and builds the itinerary
func New(airports []AirportSpec, segments []SegmentSpec, codeshares map[string]string) (*Itinerary, error) {
	it := &Itinerary{
		airports:   make(map[string]*Airport, len(airports)),
		byID:       make(map[string]*Segment, len(segments)),
		codeshares: designator.NewCodeshareMap(codeshares),
	}

	for _, a := range airports {
		code := strings.ToUpper(strings.TrimSpace(a.Code))
		if code == "" {
			return nil, fmt.Errorf("%w: airport without code", ErrInvalidItinerary)
		}
		if _, dup := it.airports[code]; dup {
			return nil, fmt.Errorf("%w: duplicate airport %s", ErrInvalidItinerary, code)
		}
		if a.Lat < -90 || a.Lat > 90 || a.Lon < -180 || a.Lon > 180 {
			return nil, fmt.Errorf("%w: airport %s has coordinates out of range", ErrInvalidItinerary, code)
		}
		loc, err := time.LoadLocation(a.TZ)
		if err != nil || a.TZ == "" {
			return nil, fmt.Errorf("%w: airport %s has invalid time zone %q", ErrInvalidItinerary, code, a.TZ)
		}
		it.airports[code] = &Airport{
			Code:     code,
			Name:     a.Name,
			Location: geo.Coordinate{Lat: a.Lat, Lon: a.Lon},
			ZoneName: a.TZ,
			Zone:     loc,
		}
	}

	for _, s := range segments {
		if s.ID == "" {
			return nil, fmt.Errorf("%w: segment without id", ErrInvalidItinerary)
		}
		if _, dup := it.byID[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate segment %s", ErrInvalidItinerary, s.ID)
		}
		if designator.Normalize(s.Flight) == "" {
			return nil, fmt.Errorf("%w: segment %s has no flight designator", ErrInvalidItinerary, s.ID)
		}

		from, ok := it.airports[strings.ToUpper(s.From)]
		if !ok {
			return nil, fmt.Errorf("%w: segment %s references unknown airport %q", ErrInvalidItinerary, s.ID, s.From)
		}
		to, ok := it.airports[strings.ToUpper(s.To)]
		if !ok {
			return nil, fmt.Errorf("%w: segment %s references unknown airport %q", ErrInvalidItinerary, s.ID, s.To)
		}

		dep, err := time.ParseInLocation(LocalTimeLayout, s.Departure, from.Zone)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %s departure: %v", ErrInvalidItinerary, s.ID, err)
		}
		arr, err := time.ParseInLocation(LocalTimeLayout, s.Arrival, to.Zone)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %s arrival: %v", ErrInvalidItinerary, s.ID, err)
		}
		if !arr.After(dep) {
			return nil, fmt.Errorf("%w: segment %s arrives before it departs", ErrInvalidItinerary, s.ID)
		}

		seg := &Segment{
			ID:             s.ID,
			Label:          s.Label,
			Flight:         s.Flight,
			Origin:         from,
			Destination:    to,
			DepartureLocal: s.Departure,
			ArrivalLocal:   s.Arrival,
			departure:      dep.UTC(),
			arrival:        arr.UTC(),
		}
		it.segments = append(it.segments, seg)
		it.byID[seg.ID] = seg
	}

	return it, nil
}

// Segments returns the segments in configuration order
func (it *Itinerary) Segments() []*Segment {
	out := make([]*Segment, len(it.segments))
	copy(out, it.segments)
	return out
}

// Segment looks up a segment by ID
func (it *Itinerary) Segment(id string) (*Segment, bool) {
	s, ok := it.byID[id]
	return s, ok
}

// Airport looks up an airport by code
func (it *Itinerary) Airport(code string) (*Airport, bool) {
	a, ok := it.airports[strings.ToUpper(code)]
	return a, ok
}

// Airports returns all airports sorted by code
func (it *Itinerary) Airports() []*Airport {
	out := make([]*Airport, 0, len(it.airports))
	for _, a := range it.airports {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Codeshares returns the static codeshare map
func (it *Itinerary) Codeshares() *designator.CodeshareMap {
	return it.codeshares
}

// Next returns the earliest segment departing after now, if any
func (it *Itinerary) Next(now time.Time) (*Segment, bool) {
	var next *Segment
	for _, s := range it.segments {
		if !s.departure.After(now) {
			continue
		}
		if next == nil || s.departure.Before(next.departure) {
			next = s
		}
	}
	return next, next != nil
}
