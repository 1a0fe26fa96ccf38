package tracking

import (
	"time"

	"github.com/yegors/flightwatch/internal/geo"
	"github.com/yegors/flightwatch/internal/itinerary"
	"github.com/yegors/flightwatch/internal/storage/sqlite"
	"github.com/yegors/flightwatch/internal/weather"
)

const displayLayout = "Mon 02.01 15:04 MST"

// AirportView is one end of a segment as shown to clients
type AirportView struct {
	Code    string         `json:"code"`
	Name    string         `json:"name"`
	Lat     float64        `json:"lat"`
	Lon     float64        `json:"lon"`
	TZ      string         `json:"tz"`
	Weather *weather.Brief `json:"weather,omitempty"`
}

// ScheduleView is a scheduled instant in UTC and in both endpoint zones
type ScheduleView struct {
	UTC              time.Time `json:"utc"`
	OriginLocal      string    `json:"origin_local"`
	DestinationLocal string    `json:"destination_local"`
}

// View is the read-only snapshot of a segment served over HTTP and pushed
// over the websocket.
type View struct {
	ID                 string          `json:"id"`
	Label              string          `json:"label"`
	Flight             string          `json:"flight"`
	TrackingDesignator string          `json:"tracking_designator"`
	Airline            *sqlite.Airline `json:"airline,omitempty"`
	Origin             AirportView     `json:"origin"`
	Destination        AirportView     `json:"destination"`
	Departure          ScheduleView    `json:"departure"`
	Arrival            ScheduleView    `json:"arrival"`
	DistanceKm         float64         `json:"distance_km"`
	InWindow           bool            `json:"in_window"`
	Phase              itinerary.Phase `json:"phase"`
	Status             string          `json:"status"`
	GateDeparture      string          `json:"gate_departure"`
	GateArrival        string          `json:"gate_arrival"`
	ETA                string          `json:"eta"`
	Position           *geo.Coordinate `json:"position,omitempty"`
	PositionSource     PositionSource  `json:"position_source,omitempty"`
	Live               *LiveStatus     `json:"live,omitempty"`
	Resolution         *Resolution     `json:"resolution,omitempty"`
}

// viewLocked builds a View; the caller holds t.mu
func (t *Tracker) viewLocked(now time.Time) View {
	seg := t.segment
	v := View{
		ID:                 seg.ID,
		Label:              seg.Label,
		Flight:             seg.Flight,
		TrackingDesignator: t.designator,
		Airline:            t.airline,
		Origin:             airportView(seg.Origin, t.originWx),
		Destination:        airportView(seg.Destination, t.destWx),
		Departure:          scheduleView(seg, seg.Departure()),
		Arrival:            scheduleView(seg, seg.Arrival()),
		DistanceKm:         geo.Haversine(seg.Origin.Location, seg.Destination.Location) / 1000,
		InWindow:           itinerary.InWindow(seg, now),
		Phase:              itinerary.InferStatus(seg, now),
		Status:             DisplayStatus(t.live, seg, now),
		GateDeparture:      Placeholder,
		GateArrival:        Placeholder,
		ETA:                Placeholder,
		Resolution:         t.resolution,
	}

	if t.live != nil {
		live := *t.live
		v.Live = &live
		v.GateDeparture = orPlaceholder(live.GateDeparture)
		v.GateArrival = orPlaceholder(live.GateArrival)
		if live.ETA != nil {
			v.ETA = live.ETA.In(seg.Destination.Zone).Format(displayLayout)
		}
		v.Position = live.Position
		v.PositionSource = live.PositionSource
	}
	return v
}

func airportView(a *itinerary.Airport, wx *weather.Brief) AirportView {
	return AirportView{
		Code:    a.Code,
		Name:    a.Name,
		Lat:     a.Location.Lat,
		Lon:     a.Location.Lon,
		TZ:      a.ZoneName,
		Weather: wx,
	}
}

func scheduleView(seg *itinerary.Segment, at time.Time) ScheduleView {
	return ScheduleView{
		UTC:              at.UTC(),
		OriginLocal:      at.In(seg.Origin.Zone).Format(displayLayout),
		DestinationLocal: at.In(seg.Destination.Zone).Format(displayLayout),
	}
}
