package observability

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMeterProvider creates a test meter provider with a manual reader
func setupTestMeterProvider(t *testing.T) (*metric.MeterProvider, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down provider: %v", err)
		}
	})
	return provider, reader
}

// collectSums returns the total of every int64 sum by instrument name
func collectSums(t *testing.T, reader *metric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Failed to collect metrics: %v", err)
	}

	totals := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}
	return totals
}

func TestNewOTelMetrics(t *testing.T) {
	setupTestMeterProvider(t)

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v, want nil", err)
	}

	if m.logins == nil {
		t.Error("logins is nil")
	}
	if m.roleResolutions == nil {
		t.Error("roleResolutions is nil")
	}
	if m.enrollments == nil {
		t.Error("enrollments is nil")
	}
	if m.notifications == nil {
		t.Error("notifications is nil")
	}
	if m.cacheLookups == nil {
		t.Error("cacheLookups is nil")
	}
}

func TestOTelMetrics_Record(t *testing.T) {
	_, reader := setupTestMeterProvider(t)

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v", err)
	}

	m.RecordLogin("success")
	m.RecordLogin("denied")
	m.RecordRoleResolution("admin")
	m.RecordEnrollment("invited")
	m.RecordNotification("invite", "sent")
	m.RecordNotification("pending_notice", "skipped")
	m.RecordCacheLookup("organizations", true)
	m.RecordCacheLookup("organizations", false)

	totals := collectSums(t, reader)

	want := map[string]int64{
		"ssomap.logins":           2,
		"ssomap.role_resolutions": 1,
		"ssomap.enrollments":      1,
		"ssomap.notifications":    2,
		"ssomap.cache.lookups":    2,
	}
	for name, value := range want {
		if totals[name] != value {
			t.Errorf("%s = %d, want %d", name, totals[name], value)
		}
	}
}

func TestMetrics_MirrorsToOTel(t *testing.T) {
	_, reader := setupTestMeterProvider(t)

	o, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v", err)
	}

	m := newTestMetrics(t).WithOTel(o)
	m.RecordLogin("success")
	m.RecordEnrollment("added")

	totals := collectSums(t, reader)
	if totals["ssomap.logins"] != 1 {
		t.Errorf("ssomap.logins = %d, want 1", totals["ssomap.logins"])
	}
	if totals["ssomap.enrollments"] != 1 {
		t.Errorf("ssomap.enrollments = %d, want 1", totals["ssomap.enrollments"])
	}
}
