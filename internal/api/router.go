package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yegors/flightwatch/pkg/logger"
)

// Router wires the API handlers, the websocket endpoint and metrics
type Router struct {
	handler        *Handler
	websocket      http.HandlerFunc
	gatherer       prometheus.Gatherer
	allowedOrigins []string
	logger         *logger.Logger
}

// NewRouter creates a new router. websocket and gatherer may be nil, in
// which case /ws and /metrics are not mounted.
func NewRouter(handler *Handler, websocket http.HandlerFunc, gatherer prometheus.Gatherer, allowedOrigins []string, log *logger.Logger) *Router {
	return &Router{
		handler:        handler,
		websocket:      websocket,
		gatherer:       gatherer,
		allowedOrigins: allowedOrigins,
		logger:         log.Named("api-router"),
	}
}

// Routes returns the HTTP handler for all routes
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(rt.requestLogger)
	r.Use(cors(rt.allowedOrigins))

	r.Get("/health", rt.handler.GetHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/flights/lookup", rt.handler.LookupFlight)
		r.Get("/positions", rt.handler.GetPositions)

		r.Get("/segments", rt.handler.GetSegments)
		r.Get("/segments/{id}", rt.handler.GetSegment)
		r.Post("/segments/{id}/refresh", rt.handler.RefreshSegment)

		r.Get("/weather/{airport}", rt.handler.GetWeather)

		r.Get("/itinerary", rt.handler.GetItinerary)
		r.Get("/itinerary.ics", rt.handler.GetCalendar)
	})

	if rt.websocket != nil {
		r.Get("/ws", rt.websocket)
	}
	if rt.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		rt.logger.Debug("Request served",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// cors answers preflight requests and sets Access-Control-Allow-Origin.
// A "*" entry allows every origin.
func cors(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
