package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry metric instruments for the SSO pipeline.
// They are exported through the meter provider set up by InitOTel.
type OTelMetrics struct {
	logins          metric.Int64Counter
	roleResolutions metric.Int64Counter
	enrollments     metric.Int64Counter
	notifications   metric.Int64Counter
	cacheLookups    metric.Int64Counter
}

// NewOTelMetrics creates the instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/platinummonkey/ssomap")

	m := &OTelMetrics{}
	var err error

	m.logins, err = meter.Int64Counter(
		"ssomap.logins",
		metric.WithDescription("SSO logins by outcome"),
		metric.WithUnit("{login}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create logins counter: %w", err)
	}

	m.roleResolutions, err = meter.Int64Counter(
		"ssomap.role_resolutions",
		metric.WithDescription("Resolved roles"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create role_resolutions counter: %w", err)
	}

	m.enrollments, err = meter.Int64Counter(
		"ssomap.enrollments",
		metric.WithDescription("Organization enrollments by outcome"),
		metric.WithUnit("{enrollment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create enrollments counter: %w", err)
	}

	m.notifications, err = meter.Int64Counter(
		"ssomap.notifications",
		metric.WithDescription("Enrollment notifications by kind and status"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifications counter: %w", err)
	}

	m.cacheLookups, err = meter.Int64Counter(
		"ssomap.cache.lookups",
		metric.WithDescription("Cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_lookups counter: %w", err)
	}

	return m, nil
}

// RecordLogin records an SSO login
func (m *OTelMetrics) RecordLogin(outcome string) {
	m.logins.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRoleResolution records a resolved role
func (m *OTelMetrics) RecordRoleResolution(role string) {
	m.roleResolutions.Add(context.Background(), 1, metric.WithAttributes(attribute.String("role", role)))
}

// RecordEnrollment records an enrollment
func (m *OTelMetrics) RecordEnrollment(outcome string) {
	m.enrollments.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordNotification records a notification state change
func (m *OTelMetrics) RecordNotification(kind, status string) {
	m.notifications.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordCacheLookup records a cache hit or miss
func (m *OTelMetrics) RecordCacheLookup(cacheType string, hit bool) {
	m.cacheLookups.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("cache.type", cacheType),
		attribute.Bool("cache.hit", hit),
	))
}
