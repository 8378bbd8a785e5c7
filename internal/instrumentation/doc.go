// Package instrumentation provides OpenTelemetry metrics and tracing for gmailauth.
//
// Instrumentation is off by default; set INSTRUMENTATION_ENABLED=true to turn it on.
//
// # Metrics
//
//   - credential_acquire_total / credential_acquire_duration_seconds: acquisitions by
//     outcome (cache_hit, refreshed, authorized) and status
//   - oauth_auth_total: interactive authorizations by result
//   - oauth_token_refresh_total: refresh attempts by result (success, rejected, failure)
//   - token_store_writes_total: token file writes by status
//   - google_api_operations_total / google_api_operation_duration_seconds: Gmail calls
//
// Because gmailauth is a one-shot command there is no /metrics endpoint. With the
// prometheus exporter, METRICS_TEXTFILE=/var/lib/node_exporter/gmailauth.prom writes
// the metrics on shutdown for the node_exporter textfile collector. The otlp and
// stdout exporters flush on shutdown as well.
//
// # Tracing
//
// Spans are created for credential acquisition (credential.acquire) and Gmail calls
// (google.gmail.<operation>). TRACING_EXPORTER selects otlp, stdout or none.
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED: true/false (default false)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG: 0.0 to 1.0 (default 1.0)
//   - METRICS_TEXTFILE: textfile output path (prometheus exporter only)
package instrumentation
