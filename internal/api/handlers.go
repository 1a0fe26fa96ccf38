package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/flightwatch/internal/aerodatabox"
	"github.com/yegors/flightwatch/internal/calendar"
	"github.com/yegors/flightwatch/internal/itinerary"
	"github.com/yegors/flightwatch/internal/opensky"
	"github.com/yegors/flightwatch/internal/tracking"
	"github.com/yegors/flightwatch/internal/weather"
	"github.com/yegors/flightwatch/pkg/logger"
)

// FlightResolver runs the detail lookup cascade
type FlightResolver interface {
	Configured() bool
	Resolve(ctx context.Context, designator, date string) (*aerodatabox.Result, error)
}

// StateSource returns state vectors inside a bounding box
type StateSource interface {
	States(ctx context.Context, box opensky.BBox) ([]opensky.StateVector, error)
}

// SegmentSource serves per-segment views
type SegmentSource interface {
	Itinerary() *itinerary.Itinerary
	Snapshots() []tracking.View
	Snapshot(id string) (tracking.View, bool)
	Refresh(id string) error
}

// WeatherSource returns a best-effort brief for an airport
type WeatherSource interface {
	Brief(ctx context.Context, airport *itinerary.Airport) *weather.Brief
}

// Handler contains the API handlers
type Handler struct {
	resolver FlightResolver
	states   StateSource
	segments SegmentSource
	weather  WeatherSource
	clients  func() int
	clock    func() time.Time
	logger   *logger.Logger
}

// HandlerDeps are the collaborators of the API. States and Weather may be
// nil when the matching feature is disabled.
type HandlerDeps struct {
	Resolver FlightResolver
	States   StateSource
	Segments SegmentSource
	Weather  WeatherSource
	Clients  func() int
	Clock    func() time.Time
}

// NewHandler creates a new API handler
func NewHandler(deps HandlerDeps, log *logger.Logger) *Handler {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Clients == nil {
		deps.Clients = func() int { return 0 }
	}
	return &Handler{
		resolver: deps.Resolver,
		states:   deps.States,
		segments: deps.Segments,
		weather:  deps.Weather,
		clients:  deps.Clients,
		clock:    deps.Clock,
		logger:   log.Named("api-handler"),
	}
}

// GetHealth reports liveness and which providers are usable
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":            "ok",
		"time":              h.clock().UTC().Format(time.RFC3339),
		"segments":          len(h.segments.Itinerary().Segments()),
		"websocket_clients": h.clients(),
		"detail_provider":   h.resolver != nil && h.resolver.Configured(),
		"secondary_feed":    h.states != nil,
		"weather_briefs":    h.weather != nil,
	}

	WriteJSON(w, http.StatusOK, response)
}

// LookupFlight proxies the detail cascade. Flight and candidate results are
// passed through as the provider sent them, with the provider status.
func (h *Handler) LookupFlight(w http.ResponseWriter, r *http.Request) {
	if h.resolver == nil || !h.resolver.Configured() {
		writeError(w, http.StatusUnauthorized, "missing api key")
		return
	}

	flight := strings.TrimSpace(r.URL.Query().Get("flight"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if flight == "" || date == "" {
		writeError(w, http.StatusBadRequest, "flight and date are required")
		return
	}

	res, err := h.resolver.Resolve(r.Context(), flight, date)
	switch {
	case errors.Is(err, aerodatabox.ErrMissingCredentials):
		writeError(w, http.StatusUnauthorized, "missing api key")
		return
	case errors.Is(err, aerodatabox.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Warn("Flight lookup aborted",
			logger.String("flight", flight),
			logger.String("date", date),
			logger.Error(err))
		writeError(w, http.StatusGatewayTimeout, "lookup aborted")
		return
	}

	w.Header().Set("X-Resolution-Kind", string(res.Kind))
	w.Header().Set("X-Resolved-Designator", res.Designator)

	if res.Kind == aerodatabox.KindFailure {
		WriteJSON(w, res.Status, map[string]interface{}{
			"error":      "flight not found",
			"designator": res.Designator,
			"attempts":   res.Attempts,
		})
		return
	}

	if len(res.Body) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(res.Status)
		if _, err := w.Write(res.Body); err != nil {
			h.logger.Debug("Failed to write lookup body", logger.Error(err))
		}
		return
	}
	WriteJSON(w, res.Status, res)
}

// GetPositions proxies the state-vector feed for a bounding box
func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	if h.states == nil {
		writeError(w, http.StatusServiceUnavailable, "secondary position feed disabled")
		return
	}

	box, err := parseBBox(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	states, err := h.states.States(r.Context(), box)
	if err != nil {
		if errors.Is(err, opensky.ErrInvalidBBox) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Warn("Failed to fetch state vectors", logger.Error(err))
		writeError(w, http.StatusBadGateway, "failed to fetch state vectors")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"time":   h.clock().UTC().Unix(),
		"bbox":   box,
		"states": states,
	})
}

func parseBBox(r *http.Request) (opensky.BBox, error) {
	q := r.URL.Query()
	var values [4]float64
	for i, name := range []string{"lamin", "lomin", "lamax", "lomax"} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			return opensky.BBox{}, errors.New("lamin, lomin, lamax and lomax are required")
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return opensky.BBox{}, errors.New("invalid " + name + ": " + raw)
		}
		values[i] = v
	}
	box := opensky.BBox{Lamin: values[0], Lomin: values[1], Lamax: values[2], Lomax: values[3]}
	if err := box.Validate(); err != nil {
		return opensky.BBox{}, err
	}
	return box, nil
}

// GetSegments returns every segment with its live status
func (h *Handler) GetSegments(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"segments": h.segments.Snapshots(),
	})
}

// GetSegment returns one segment
func (h *Handler) GetSegment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, ok := h.segments.Snapshot(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown segment: "+id)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// RefreshSegment re-triggers detail resolution for one segment
func (h *Handler) RefreshSegment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.segments.Refresh(id)
	switch {
	case errors.Is(err, tracking.ErrUnknownSegment):
		writeError(w, http.StatusNotFound, "unknown segment: "+id)
	case errors.Is(err, tracking.ErrNotRunning):
		writeError(w, http.StatusConflict, "tracker not running")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		WriteJSON(w, http.StatusAccepted, map[string]string{
			"status":  "refresh_requested",
			"segment": id,
		})
	}
}

// GetWeather returns the weather brief for a configured airport
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "airport")))
	airport, ok := h.segments.Itinerary().Airport(code)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown airport: "+code)
		return
	}
	if h.weather == nil {
		writeError(w, http.StatusServiceUnavailable, "weather briefs disabled")
		return
	}
	WriteJSON(w, http.StatusOK, h.weather.Brief(r.Context(), airport))
}

type segmentSummary struct {
	ID        string          `json:"id"`
	Label     string          `json:"label"`
	Flight    string          `json:"flight"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Departure time.Time       `json:"departure"`
	Arrival   time.Time       `json:"arrival"`
	InWindow  bool            `json:"in_window"`
	Phase     itinerary.Phase `json:"phase"`
}

type nextDeparture struct {
	Segment   string              `json:"segment"`
	Flight    string              `json:"flight"`
	Departure time.Time           `json:"departure"`
	Countdown itinerary.Countdown `json:"countdown"`
}

// GetItinerary returns the segment summary and the countdown to the next
// departure, or a null next once every segment has departed.
func (h *Handler) GetItinerary(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	it := h.segments.Itinerary()

	segments := make([]segmentSummary, 0, len(it.Segments()))
	for _, seg := range it.Segments() {
		segments = append(segments, segmentSummary{
			ID:        seg.ID,
			Label:     seg.Label,
			Flight:    seg.Flight,
			From:      seg.Origin.Code,
			To:        seg.Destination.Code,
			Departure: seg.Departure().UTC(),
			Arrival:   seg.Arrival().UTC(),
			InWindow:  itinerary.InWindow(seg, now),
			Phase:     itinerary.InferStatus(seg, now),
		})
	}

	var next *nextDeparture
	if seg, ok := it.Next(now); ok {
		next = &nextDeparture{
			Segment:   seg.ID,
			Flight:    seg.Flight,
			Departure: seg.Departure().UTC(),
			Countdown: itinerary.CountdownTo(seg.Departure(), now),
		}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"now":      now.UTC(),
		"segments": segments,
		"next":     next,
	})
}

// GetCalendar exports the itinerary as iCalendar
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	body := calendar.Export(h.segments.Itinerary(), h.clock())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="itinerary.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		h.logger.Debug("Failed to write calendar", logger.Error(err))
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
