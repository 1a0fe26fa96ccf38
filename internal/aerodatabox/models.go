package aerodatabox

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yegors/flightwatch/internal/geo"
)

// Scheme selects how the provider interprets a flight number
type Scheme string

const (
	SchemeIATA Scheme = "Iata"
	SchemeICAO Scheme = "Icao"
)

// providerTimeLayout matches both "2025-10-11 11:20Z" and "2025-10-11 13:20+02:00"
const providerTimeLayout = "2006-01-02 15:04Z07:00"

// ProviderTime is a timestamp as the provider reports it, in UTC and local form
type ProviderTime struct {
	UTC   string `json:"utc"`
	Local string `json:"local"`
}

// Time parses the UTC form, falling back to the local form
func (p *ProviderTime) Time() (time.Time, bool) {
	if p == nil {
		return time.Time{}, false
	}
	for _, s := range []string{p.UTC, p.Local} {
		if s == "" {
			continue
		}
		if t, err := time.Parse(providerTimeLayout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// MovementAirport identifies the airport of a departure or arrival
type MovementAirport struct {
	ICAO      string `json:"icao"`
	IATA      string `json:"iata"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
	TimeZone  string `json:"timeZone"`
}

// Movement is one end of a flight
type Movement struct {
	Airport       MovementAirport `json:"airport"`
	ScheduledTime *ProviderTime   `json:"scheduledTime,omitempty"`
	RevisedTime   *ProviderTime   `json:"revisedTime,omitempty"`
	PredictedTime *ProviderTime   `json:"predictedTime,omitempty"`
	RunwayTime    *ProviderTime   `json:"runwayTime,omitempty"`
	Terminal      string          `json:"terminal,omitempty"`
	Gate          string          `json:"gate,omitempty"`
	CheckInDesk   string          `json:"checkInDesk,omitempty"`
	BaggageBelt   string          `json:"baggageBelt,omitempty"`
	Quality       []string        `json:"quality,omitempty"`
}

// BestTime returns the most informed time for this movement: runway,
// then predicted, then revised, then scheduled.
func (m *Movement) BestTime() (time.Time, bool) {
	for _, pt := range []*ProviderTime{m.RunwayTime, m.PredictedTime, m.RevisedTime, m.ScheduledTime} {
		if t, ok := pt.Time(); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// Airline is the carrier as reported by the provider
type Airline struct {
	Name string `json:"name"`
	IATA string `json:"iata,omitempty"`
	ICAO string `json:"icao,omitempty"`
}

// Aircraft is the equipment as reported by the provider
type Aircraft struct {
	Reg   string `json:"reg,omitempty"`
	ModeS string `json:"modeS,omitempty"`
	Model string `json:"model,omitempty"`
}

// Location is the live position attached when withLocation=true
type Location struct {
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	ReportedAtUTC    string  `json:"reportedAtUtc,omitempty"`
	PressureAltitude *struct {
		Feet float64 `json:"feet"`
	} `json:"pressureAltitude,omitempty"`
	GroundSpeed *struct {
		Kt float64 `json:"kt"`
	} `json:"groundSpeed,omitempty"`
	TrueTrack *struct {
		Deg float64 `json:"deg"`
	} `json:"trueTrack,omitempty"`
}

// Flight is one resolved flight record
type Flight struct {
	Number          string    `json:"number"`
	CallSign        string    `json:"callSign,omitempty"`
	Status          string    `json:"status,omitempty"`
	CodeshareStatus string    `json:"codeshareStatus,omitempty"`
	IsCargo         bool      `json:"isCargo,omitempty"`
	Departure       Movement  `json:"departure"`
	Arrival         Movement  `json:"arrival"`
	Airline         *Airline  `json:"airline,omitempty"`
	Aircraft        *Aircraft `json:"aircraft,omitempty"`
	Location        *Location `json:"location,omitempty"`
	LastUpdatedUTC  string    `json:"lastUpdatedUtc,omitempty"`
}

// Coordinate returns the live position, or nil when the provider sent none
func (f *Flight) Coordinate() *geo.Coordinate {
	if f == nil || f.Location == nil {
		return nil
	}
	return &geo.Coordinate{Lat: f.Location.Lat, Lon: f.Location.Lon}
}

// ETA returns the best known arrival time
func (f *Flight) ETA() (time.Time, bool) {
	if f == nil {
		return time.Time{}, false
	}
	return f.Arrival.BestTime()
}

// Candidate is one match from the free-text search endpoint
type Candidate struct {
	Number          string           `json:"number"`
	Airline         *Airline         `json:"airline,omitempty"`
	OperatingFlight *OperatingFlight `json:"operatingFlight,omitempty"`
}

// OperatingFlight is the operating carrier's flight behind a marketing number
type OperatingFlight struct {
	Number string `json:"number"`
}

// PreferredNumber returns the operating carrier's number when present,
// otherwise the marketing number.
func (c Candidate) PreferredNumber() string {
	if c.OperatingFlight != nil && strings.TrimSpace(c.OperatingFlight.Number) != "" {
		return c.OperatingFlight.Number
	}
	return c.Number
}

// parseFlights decodes the by-number response. The provider returns an
// array of flights; an empty array is treated like an empty body.
func parseFlights(body []byte) ([]Flight, error) {
	var flights []Flight
	if err := json.Unmarshal(body, &flights); err != nil {
		// Some plans return a single object instead of an array
		var single Flight
		if err2 := json.Unmarshal(body, &single); err2 != nil || single.Number == "" {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		flights = []Flight{single}
	}
	if len(flights) == 0 {
		return nil, ErrEmptyBody
	}
	return flights, nil
}

// parseCandidates decodes the search response, which is either a bare
// array or an {"items": [...]} envelope.
func parseCandidates(body []byte) ([]Candidate, error) {
	var list []Candidate
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var envelope struct {
		Items []Candidate `json:"items"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return envelope.Items, nil
}
