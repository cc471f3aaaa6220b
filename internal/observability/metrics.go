package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds all application metrics implementing the golden 4 signals:
// - Latency: How long API requests and downloads take
// - Traffic: Poll and download throughput
// - Errors: Rate of failures
// - Saturation: Concurrent downloads against the pool limit
type Metrics struct {
	meter metric.Meter

	// API client metrics (Latency, Traffic, Errors)
	APIRequestDuration metric.Float64Histogram
	APIRequestsTotal   metric.Int64Counter
	APIErrorsTotal     metric.Int64Counter

	// Lifecycle metrics (Traffic)
	PollsTotal metric.Int64Counter

	// Download metrics (Latency, Traffic, Errors, Saturation)
	DownloadDuration      metric.Float64Histogram
	DownloadsTotal        metric.Int64Counter
	DownloadFailuresTotal metric.Int64Counter
	DownloadBytesTotal    metric.Int64Counter
	DownloadsActive       metric.Int64UpDownCounter
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("extractor")
	m := &Metrics{meter: meter}

	// API client metrics
	m.APIRequestDuration, err = meter.Float64Histogram(
		"api_request_duration_seconds",
		metric.WithDescription("Extraction API request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, nil, err
	}

	m.APIRequestsTotal, err = meter.Int64Counter(
		"api_requests_total",
		metric.WithDescription("Total number of extraction API requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.APIErrorsTotal, err = meter.Int64Counter(
		"api_errors_total",
		metric.WithDescription("Total number of extraction API errors (transport, 4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Lifecycle metrics
	m.PollsTotal, err = meter.Int64Counter(
		"lifecycle_polls_total",
		metric.WithDescription("Total status polls by observed job state"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Download metrics
	m.DownloadDuration, err = meter.Float64Histogram(
		"download_duration_seconds",
		metric.WithDescription("Result file download duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DownloadsTotal, err = meter.Int64Counter(
		"downloads_total",
		metric.WithDescription("Total result file downloads attempted"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DownloadFailuresTotal, err = meter.Int64Counter(
		"download_failures_total",
		metric.WithDescription("Total result file downloads that failed"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DownloadBytesTotal, err = meter.Int64Counter(
		"download_bytes_total",
		metric.WithDescription("Total bytes written to disk by the download pool"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DownloadsActive, err = meter.Int64UpDownCounter(
		"downloads_active",
		metric.WithDescription("Number of downloads currently in flight (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordAPIRequest records one extraction API request. A status code of zero
// means the request never produced a response.
func (m *Metrics) RecordAPIRequest(ctx context.Context, method string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		statusAttr(statusCode),
	)

	m.APIRequestDuration.Record(ctx, durationSeconds, attrs)
	m.APIRequestsTotal.Add(ctx, 1, attrs)

	if statusCode == 0 || statusCode >= 400 {
		m.APIErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordPoll records one lifecycle status poll.
func (m *Metrics) RecordPoll(ctx context.Context, state string) {
	m.PollsTotal.Add(ctx, 1, metric.WithAttributes(stateAttr(state)))
}

// RecordDownloadStarted records a download entering the pool.
func (m *Metrics) RecordDownloadStarted(ctx context.Context) {
	m.DownloadsActive.Add(ctx, 1)
}

// RecordDownloadFinished records a download leaving the pool.
func (m *Metrics) RecordDownloadFinished(ctx context.Context, success bool, bytes int64, durationSeconds float64) {
	attrs := metric.WithAttributes(successAttr(success))

	m.DownloadsActive.Add(ctx, -1)
	m.DownloadsTotal.Add(ctx, 1, attrs)
	m.DownloadDuration.Record(ctx, durationSeconds, attrs)
	m.DownloadBytesTotal.Add(ctx, bytes)

	if !success {
		m.DownloadFailuresTotal.Add(ctx, 1)
	}
}
