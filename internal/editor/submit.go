package editor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spraywall/spraywall/pkg/core"
)

// RouteCreator persists a new route. api.Client and every storage backend
// satisfy it.
type RouteCreator interface {
	CreateRoute(ctx context.Context, in core.RouteInput) (core.Route, error)
}

// Submitter saves editing sessions through a RouteCreator.
type Submitter struct {
	creator RouteCreator
	logger  *slog.Logger

	// OnSaved runs after a successful save, once the session is reset.
	// The UI uses it to return to the listing.
	OnSaved func(core.Route)
}

// NewSubmitter creates a Submitter. A nil logger falls back to slog.Default.
func NewSubmitter(creator RouteCreator, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{creator: creator, logger: logger}
}

// Save submits the session's metadata and markers as a single payload.
// On failure the error is logged and returned and the session is left
// exactly as it was; nothing is retried.
func (s *Submitter) Save(ctx context.Context, sess *Session) (core.Route, error) {
	payload := sess.Payload()
	payload.Normalize()

	if err := payload.Validate(); err != nil {
		s.logger.Error("Error saving route", "error", err, "name", payload.Name)
		return core.Route{}, err
	}

	route, err := s.creator.CreateRoute(ctx, payload)
	if err != nil {
		s.logger.Error("Error saving route", "error", err, "name", payload.Name, "markers", len(payload.Markers))
		return core.Route{}, fmt.Errorf("failed to save route: %w", err)
	}

	s.logger.Info("Route saved successfully", "id", route.ID, "name", route.Name, "markers", len(route.Markers))
	sess.Reset()
	if s.OnSaved != nil {
		s.OnSaved(route)
	}
	return route, nil
}
