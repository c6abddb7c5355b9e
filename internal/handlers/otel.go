package handlers

import (
	"context"
	"log/slog"

	"github.com/spraywall/spraywall/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// routeMetrics are the OTel instruments for route changes. Instruments that
// fail to register stay nil and are skipped.
type routeMetrics struct {
	savedCount    metric.Int64Counter
	rejectedCount metric.Int64Counter
	deletedCount  metric.Int64Counter
	markerCount   metric.Int64Histogram
}

func newRouteMetrics(meter metric.Meter, logger *slog.Logger) routeMetrics {
	var m routeMetrics
	var err error

	if m.savedCount, err = meter.Int64Counter("spraywall.routes.saved",
		metric.WithDescription("Routes created"),
		metric.WithUnit("{route}")); err != nil {
		logger.Warn("Failed to create OTel counter", "name", "spraywall.routes.saved", "error", err)
	}
	if m.rejectedCount, err = meter.Int64Counter("spraywall.routes.rejected",
		metric.WithDescription("Route payloads rejected by validation"),
		metric.WithUnit("{route}")); err != nil {
		logger.Warn("Failed to create OTel counter", "name", "spraywall.routes.rejected", "error", err)
	}
	if m.deletedCount, err = meter.Int64Counter("spraywall.routes.deleted",
		metric.WithDescription("Routes deleted"),
		metric.WithUnit("{route}")); err != nil {
		logger.Warn("Failed to create OTel counter", "name", "spraywall.routes.deleted", "error", err)
	}
	if m.markerCount, err = meter.Int64Histogram("spraywall.routes.markers",
		metric.WithDescription("Markers per created route"),
		metric.WithUnit("{marker}")); err != nil {
		logger.Warn("Failed to create OTel histogram", "name", "spraywall.routes.markers", "error", err)
	}
	return m
}

func (m routeMetrics) saved(ctx context.Context, r core.Route) {
	attrs := metric.WithAttributes(attribute.String("grade", string(r.Grade)))
	if m.savedCount != nil {
		m.savedCount.Add(ctx, 1, attrs)
	}
	if m.markerCount != nil {
		m.markerCount.Record(ctx, int64(len(r.Markers)), attrs)
	}
}

func (m routeMetrics) rejected(ctx context.Context, op string) {
	if m.rejectedCount != nil {
		m.rejectedCount.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
}

func (m routeMetrics) deleted(ctx context.Context) {
	if m.deletedCount != nil {
		m.deletedCount.Add(ctx, 1)
	}
}
