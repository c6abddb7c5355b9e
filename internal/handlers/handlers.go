// Package handlers serves the route catalogue HTTP API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spraywall/spraywall/internal/dispatcher"
	"github.com/spraywall/spraywall/internal/logging"
	"github.com/spraywall/spraywall/internal/observability"
	"github.com/spraywall/spraywall/internal/storage"
	"github.com/spraywall/spraywall/pkg/core"
	"github.com/spraywall/spraywall/pkg/streaming"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	maxBodyBytes = 1 << 20
	// activityQueueSize bounds route events waiting for the time series
	// writer; events beyond it are dropped and counted.
	activityQueueSize = 256
)

// Route lifecycle actions handed to the ActivityRecorder.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Stream pushes route changes to live subscribers.
type Stream interface {
	http.Handler
	Broadcast(msgType string, payload any) error
}

// ActivityRecorder stores a time series point per route change.
type ActivityRecorder interface {
	RecordRouteEvent(ctx context.Context, action string, r core.Route) error
}

// Dependencies holds all dependencies needed by handlers. Only Backend is
// required.
type Dependencies struct {
	Backend    storage.Backend
	Stream     Stream
	Activity   ActivityRecorder
	Metrics    *observability.HTTPCollector
	Meter      metric.Meter
	Tracer     trace.Tracer
	LogManager *logging.SlogManager
	StaticDir  string
}

// Service provides the HTTP handlers of the route API.
type Service struct {
	deps    Dependencies
	metrics routeMetrics
	events  *dispatcher.Dispatcher
}

// NewService creates a new handler service.
func NewService(deps Dependencies) *Service {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.Meter == nil {
		deps.Meter = metricnoop.NewMeterProvider().Meter(logging.DefaultServiceName)
	}
	if deps.Tracer == nil {
		deps.Tracer = tracenoop.NewTracerProvider().Tracer(logging.DefaultServiceName)
	}
	s := &Service{deps: deps}
	s.metrics = newRouteMetrics(deps.Meter, s.logger())

	events, err := dispatcher.New(s.logger(), deps.Meter)
	if err != nil {
		s.logger().Warn("Failed to instrument route event dispatcher", "error", err)
		events, _ = dispatcher.New(s.logger(), metricnoop.NewMeterProvider().Meter(logging.DefaultServiceName))
	}
	if deps.Stream != nil {
		events.Register("stream", s.broadcast, dispatcher.Logged())
	}
	if deps.Activity != nil {
		events.Register("activity", s.recordActivity, dispatcher.Buffered(activityQueueSize), dispatcher.Logged())
	}
	s.events = events
	return s
}

// Close stops publishing route changes and waits for queued activity writes.
func (s *Service) Close() {
	s.events.Close()
}

func (s *Service) logger() *slog.Logger {
	return s.deps.LogManager.Logger()
}

// Handler returns the API mux wrapped in request middleware.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.handle(mux, "POST /api/routes", s.createRoute)
	s.handle(mux, "GET /api/routes", s.listRoutes)
	s.handle(mux, "GET /api/routes/{id}", s.getRoute)
	s.handle(mux, "PUT /api/routes/{id}", s.updateRoute)
	s.handle(mux, "DELETE /api/routes/{id}", s.deleteRoute)
	s.handle(mux, "GET /healthcheck", s.healthcheck)

	if s.deps.Stream != nil {
		mux.Handle("GET /api/routes/stream", s.instrument("/api/routes/stream", s.deps.Stream))
	}
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}
	if s.deps.StaticDir != "" {
		mux.Handle("GET /static/", s.instrument("/static/", noCache(
			http.StripPrefix("/static/", http.FileServer(http.Dir(s.deps.StaticDir))),
		)))
	}

	return requestID(mux)
}

func (s *Service) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	route := pattern
	if _, path, ok := cutMethod(pattern); ok {
		route = path
	}
	mux.Handle(pattern, s.instrument(route, h))
}

type messageResponse struct {
	Message string            `json:"message"`
	Errors  []core.FieldError `json:"errors,omitempty"`
}

type savedResponse struct {
	Message string     `json:"message"`
	Route   core.Route `json:"route"`
}

func (s *Service) healthcheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) createRoute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	in, ok := s.decodeInput(w, r)
	if !ok {
		s.metrics.rejected(ctx, "create")
		return
	}

	route, err := s.deps.Backend.CreateRoute(ctx, in)
	s.deps.Metrics.RouteOp("create", err)
	if err != nil {
		if s.writeValidation(w, err, "invalid route") {
			s.metrics.rejected(ctx, "create")
			return
		}
		s.logger().ErrorContext(ctx, "Error saving route", "error", err, "name", in.Name)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Error saving route"})
		return
	}

	s.logger().InfoContext(ctx, "Route saved successfully", "id", route.ID, "name", route.Name, "markers", len(route.Markers))
	s.deps.Metrics.AddRouteCount(1)
	s.metrics.saved(ctx, route)
	s.publish(ctx, ActionCreated, route)

	writeJSON(w, http.StatusCreated, savedResponse{Message: "Route saved successfully", Route: route})
}

func (s *Service) listRoutes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := core.ParseListQuery(r.URL.Query())
	if err != nil {
		if !s.writeValidation(w, err, "invalid query") {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: err.Error()})
		}
		return
	}

	routes, err := s.deps.Backend.ListRoutes(ctx, q)
	if err != nil {
		s.logger().ErrorContext(ctx, "Error listing routes", "error", err)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Error listing routes"})
		return
	}
	if routes == nil {
		routes = []core.Route{}
	}
	if isUnfiltered(q) {
		s.deps.Metrics.SetRouteCount(len(routes))
	}
	writeJSON(w, http.StatusOK, routes)
}

func (s *Service) getRoute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	route, err := s.deps.Backend.GetRoute(ctx, id)
	if err != nil {
		s.writeStorageError(w, r, "Error loading route", err)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

func (s *Service) updateRoute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	in, ok := s.decodeInput(w, r)
	if !ok {
		s.metrics.rejected(ctx, "update")
		return
	}

	route, err := s.deps.Backend.UpdateRoute(ctx, id, in)
	s.deps.Metrics.RouteOp("update", err)
	if err != nil {
		if s.writeValidation(w, err, "invalid route") {
			s.metrics.rejected(ctx, "update")
			return
		}
		s.writeStorageError(w, r, "Error saving route", err)
		return
	}

	s.logger().InfoContext(ctx, "Route updated", "id", route.ID, "name", route.Name)
	s.publish(ctx, ActionUpdated, route)
	writeJSON(w, http.StatusOK, route)
}

func (s *Service) deleteRoute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	// fetched first so the activity point carries grade and setter
	route, err := s.deps.Backend.GetRoute(ctx, id)
	if err == nil {
		err = s.deps.Backend.DeleteRoute(ctx, id)
	}
	s.deps.Metrics.RouteOp("delete", err)
	if err != nil {
		s.writeStorageError(w, r, "Error deleting route", err)
		return
	}

	s.logger().InfoContext(ctx, "Route deleted", "id", id)
	s.deps.Metrics.AddRouteCount(-1)
	s.metrics.deleted(ctx)
	s.publish(ctx, ActionDeleted, route)
	w.WriteHeader(http.StatusNoContent)
}

// decodeInput reads and checks a RouteInput body, writing a 400 on failure.
func (s *Service) decodeInput(w http.ResponseWriter, r *http.Request) (core.RouteInput, bool) {
	var in core.RouteInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		s.logger().DebugContext(r.Context(), "Malformed route payload", "error", err)
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: fmt.Sprintf("invalid JSON body: %v", err)})
		return in, false
	}

	in.Normalize()
	if err := in.Validate(); err != nil {
		s.writeValidation(w, err, "invalid route")
		return in, false
	}
	return in, true
}

// writeValidation writes a 400 if err carries field violations.
func (s *Service) writeValidation(w http.ResponseWriter, err error, msg string) bool {
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	writeJSON(w, http.StatusBadRequest, messageResponse{Message: msg, Errors: verr.Fields})
	return true
}

func (s *Service) writeStorageError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if errors.Is(err, core.ErrRouteNotFound) {
		writeJSON(w, http.StatusNotFound, messageResponse{Message: core.ErrRouteNotFound.Error()})
		return
	}
	s.logger().ErrorContext(r.Context(), msg, "error", err, "id", r.PathValue("id"))
	writeJSON(w, http.StatusInternalServerError, messageResponse{Message: msg})
}

// publish hands a stored change to the dispatcher. Failures are logged; the
// change itself has already been stored.
func (s *Service) publish(ctx context.Context, action string, route core.Route) {
	err := s.events.Dispatch(dispatcher.Event{
		Action:    action,
		Route:     route,
		RequestID: logging.RequestIDFromContext(ctx),
	})
	if err != nil {
		s.logger().WarnContext(ctx, "Failed to publish route change", "action", action, "error", err)
	}
}

func (s *Service) broadcast(e dispatcher.Event) error {
	switch e.Action {
	case ActionCreated:
		return s.deps.Stream.Broadcast(streaming.TypeRouteCreated, streaming.RoutePayload{Route: e.Route})
	case ActionUpdated:
		return s.deps.Stream.Broadcast(streaming.TypeRouteUpdated, streaming.RoutePayload{Route: e.Route})
	case ActionDeleted:
		return s.deps.Stream.Broadcast(streaming.TypeRouteDeleted, streaming.DeletedPayload{ID: e.Route.ID})
	}
	return fmt.Errorf("unknown route action %q", e.Action)
}

func (s *Service) recordActivity(e dispatcher.Event) error {
	ctx := logging.WithRequestID(context.Background(), e.RequestID)
	return s.deps.Activity.RecordRouteEvent(ctx, e.Action, e.Route)
}

func isUnfiltered(q core.ListQuery) bool {
	return q.MinGrade == "" && q.MaxGrade == "" && len(q.Styles) == 0 &&
		q.Setter == "" && q.Search == "" && q.Limit == 0 && q.Offset == 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
