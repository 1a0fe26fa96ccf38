package aerodatabox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yegors/flightwatch/internal/designator"
	"github.com/yegors/flightwatch/internal/metrics"
	"github.com/yegors/flightwatch/pkg/logger"
)

// Kind tells a resolved flight apart from a candidate list or a failure
type Kind string

const (
	KindFlight     Kind = "flight"
	KindCandidates Kind = "candidates"
	KindFailure    Kind = "failure"
)

// Attempt records one provider call made during a resolution
type Attempt struct {
	Call       string `json:"call"`
	Designator string `json:"designator"`
	Status     int    `json:"status"`
	Error      string `json:"error,omitempty"`
}

// Result is the outcome of a cascade resolution
type Result struct {
	Kind       Kind            `json:"kind"`
	Status     int             `json:"status"`
	Designator string          `json:"designator"`
	Flight     *Flight         `json:"flight,omitempty"`
	Candidates []Candidate     `json:"candidates,omitempty"`
	Body       json.RawMessage `json:"-"`
	Attempts   []Attempt       `json:"attempts"`
}

// Resolver runs the by-number / search fallback cascade
type Resolver struct {
	client  *Client
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewResolver creates a resolver over the given client
func NewResolver(client *Client, log *logger.Logger, m *metrics.Metrics) *Resolver {
	return &Resolver{
		client:  client,
		logger:  log.Named("aerodatabox-resolver"),
		metrics: m,
	}
}

// Configured reports whether the resolver can make calls at all
func (r *Resolver) Configured() bool {
	return r.client.HasCredentials()
}

// Resolve turns a designator and a local departure date into a flight record.
//
// Order: by-number with the IATA scheme, by-number with the ICAO scheme,
// then free-text search. When search yields candidates, the first one's
// number (operating flight preferred) is looked up by number once more;
// if that fails too the candidate list is returned. Exhaustion yields a
// KindFailure result, not an error.
//
// The returned error is reserved for ErrMissingCredentials, ErrInvalidInput
// and context cancellation.
func (r *Resolver) Resolve(ctx context.Context, raw, date string) (*Result, error) {
	if !r.client.HasCredentials() {
		return nil, ErrMissingCredentials
	}

	d := designator.Normalize(raw)
	date = strings.TrimSpace(date)
	if d == "" || date == "" {
		return nil, fmt.Errorf("%w: flight and date are required", ErrInvalidInput)
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidInput, date)
	}

	res := &Result{Designator: d}

	if ok := r.lookup(ctx, res, d, date); ok {
		return r.finish(res), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates, body, status, err := r.client.SearchTerm(ctx, d)
	res.record("search", d, status, err)
	if err == nil {
		next := designator.Normalize(candidates[0].PreferredNumber())
		r.logger.Debug("Re-resolving search candidate",
			logger.String("designator", d),
			logger.String("candidate", next),
			logger.Int("candidate_count", len(candidates)))

		if next != "" {
			if ok := r.lookup(ctx, res, next, date); ok {
				return r.finish(res), nil
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		res.Kind = KindCandidates
		res.Status = status
		res.Candidates = candidates
		res.Body = body
		return r.finish(res), nil
	}
	if errors.Is(err, ErrMissingCredentials) {
		return nil, err
	}

	res.Kind = KindFailure
	res.Status = res.failureStatus()
	return r.finish(res), nil
}

// lookup tries the by-number endpoint with both schemes in order and fills
// res on the first success.
func (r *Resolver) lookup(ctx context.Context, res *Result, d, date string) bool {
	for _, scheme := range []Scheme{SchemeIATA, SchemeICAO} {
		if ctx.Err() != nil {
			return false
		}
		flight, body, status, err := r.client.FlightByNumber(ctx, d, date, scheme)
		res.record("number-"+string(scheme), d, status, err)
		if err != nil {
			continue
		}
		res.Kind = KindFlight
		res.Status = http.StatusOK
		res.Designator = d
		res.Flight = flight
		res.Body = body
		return true
	}
	return false
}

func (r *Resolver) finish(res *Result) *Result {
	r.metrics.ObserveResolution(string(res.Kind))
	r.logger.Debug("Resolution finished",
		logger.String("designator", res.Designator),
		logger.String("kind", string(res.Kind)),
		logger.Int("status", res.Status),
		logger.Int("attempts", len(res.Attempts)))
	return res
}

func (res *Result) record(call, d string, status int, err error) {
	a := Attempt{Call: call, Designator: d, Status: status}
	if err != nil {
		a.Error = err.Error()
	}
	res.Attempts = append(res.Attempts, a)
}

// failureStatus picks the status to report once every tier failed: the
// first non-success status from a by-number attempt, 404 when the provider
// only ever answered with empty success, 502 when nothing answered at all.
func (res *Result) failureStatus() int {
	sawEmpty := false
	for _, a := range res.Attempts {
		if !strings.HasPrefix(a.Call, "number-") || a.Status == 0 {
			continue
		}
		if a.Status < 200 || a.Status > 299 {
			return a.Status
		}
		sawEmpty = true
	}
	if sawEmpty {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
