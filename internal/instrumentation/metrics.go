package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrOutcome   = "outcome"
)

// Metrics records credential acquisition and Google API metrics.
// The zero value and a nil *Metrics are no-ops.
type Metrics struct {
	credentialAcquireTotal    metric.Int64Counter
	credentialAcquireDuration metric.Float64Histogram

	oauthAuthTotal         metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter
	tokenStoreWritesTotal  metric.Int64Counter

	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.credentialAcquireTotal, err = meter.Int64Counter(
		"credential_acquire_total",
		metric.WithDescription("Total number of credential acquisitions by outcome"),
		metric.WithUnit("{acquisition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential_acquire_total counter: %w", err)
	}

	m.credentialAcquireDuration, err = meter.Float64Histogram(
		"credential_acquire_duration_seconds",
		metric.WithDescription("Credential acquisition duration in seconds, including user consent"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 5.0, 30.0, 60.0, 300.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential_acquire_duration_seconds histogram: %w", err)
	}

	m.oauthAuthTotal, err = meter.Int64Counter(
		"oauth_auth_total",
		metric.WithDescription("Total number of interactive OAuth authorizations"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_auth_total counter: %w", err)
	}

	m.oauthTokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	m.tokenStoreWritesTotal, err = meter.Int64Counter(
		"token_store_writes_total",
		metric.WithDescription("Total number of token store writes"),
		metric.WithUnit("{write}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_store_writes_total counter: %w", err)
	}

	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordCredentialAcquire records one acquisition.
// Outcome is "cache_hit", "refreshed" or "authorized"; status is "success" or "error".
func (m *Metrics) RecordCredentialAcquire(ctx context.Context, outcome, status string, duration time.Duration) {
	if m == nil || m.credentialAcquireTotal == nil || m.credentialAcquireDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOutcome, outcome),
		attribute.String(attrStatus, status),
	)
	m.credentialAcquireTotal.Add(ctx, 1, attrs)
	m.credentialAcquireDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOAuthAuth records an interactive authorization with result "success" or "failure".
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m == nil || m.oauthAuthTotal == nil {
		return
	}
	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordOAuthTokenRefresh records a refresh attempt with result "success", "rejected" or "failure".
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.oauthTokenRefreshTotal == nil {
		return
	}
	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordTokenStoreWrite records a write to the token store.
func (m *Metrics) RecordTokenStoreWrite(ctx context.Context, status string) {
	if m == nil || m.tokenStoreWritesTotal == nil {
		return
	}
	m.tokenStoreWritesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordGoogleAPIOperation records a Google API call.
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.googleAPIOperationsTotal.Add(ctx, 1, attrs)
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// StatusFromError returns StatusError for a non-nil err and StatusSuccess otherwise.
func StatusFromError(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
