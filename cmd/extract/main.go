// extract runs one historical extraction job end to end: submit, await the
// quote, accept, wait for execution, then download and inflate the results.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"extractor/internal/apperrors"
	"extractor/internal/client"
	"extractor/internal/config"
	"extractor/internal/downloader"
	"extractor/internal/health"
	"extractor/internal/job"
	"extractor/internal/observability"
	"extractor/internal/retrieval"
)

const apiTimeout = 30 * time.Second

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	jobFile := flag.String("job", "", "path to the TOML job description")
	flag.Parse()

	if err := run(*jobFile); err != nil {
		slog.Error("Extraction failed", "error", err)
		os.Exit(1)
	}
}

func run(jobFile string) error {
	if jobFile == "" {
		return errors.New("a job description is required (-job path/to/job.toml)")
	}

	// Every log line of a run carries the same correlation ID.
	slog.SetDefault(slog.Default().With("run_id", uuid.NewString()))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	desc, err := job.LoadDescription(jobFile)
	if err != nil {
		return err
	}
	slog.Info("Loaded job description",
		"title", desc.Title,
		"from", desc.FromDate.Format(job.DateFormat),
		"to", desc.ToDate.Format(job.DateFormat),
		"rules", desc.Rules.Len(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	api := client.New(cfg.Username, cfg.Password, apiTimeout, metrics)

	// Readiness probes the account job list with the run's credentials.
	healthChecker := health.NewChecker(health.ProbeFunc(func(ctx context.Context) error {
		code, _, err := api.Get(ctx, cfg.JobsURL())
		if err != nil {
			return err
		}
		if !client.Success(code) {
			return fmt.Errorf("job list returned HTTP %d", code)
		}
		return nil
	}))

	metricsServer := startMetricsServer(cfg.MetricsPort, metricsHandler, healthChecker)
	defer func() {
		healthChecker.SetShuttingDown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}()

	manager := job.NewManager(api, desc, job.ManagerConfig{
		JobsURL:        cfg.JobsURL(),
		SubmitInterval: cfg.SubmitInterval,
		QuoteInterval:  cfg.QuoteInterval,
		RunInterval:    cfg.RunInterval,
	}, metrics)

	status, err := manager.Manage(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrAcceptance) {
			slog.Warn("Quote was not accepted; the job is still quoted, re-run to retry acceptance")
		}
		return err
	}
	if status.Results == nil {
		return fmt.Errorf("job %q finished without results", desc.Title)
	}

	destDir := cfg.OutputDir(desc.Title, desc.Identifier())
	slog.Info("Job finished, retrieving results",
		"files", status.Results.FileCount,
		"activities", status.Results.ActivityCount,
		"dest", destDir,
	)

	dl := downloader.New(api, downloader.LoadConfigFromEnv(), metrics)
	result, err := dl.Download(ctx, status.Results.DataURL, destDir, desc.Identifier())
	if err != nil {
		return err
	}
	for _, f := range result.Failures {
		slog.Error("File not retrieved", "url", f.URL, "error", f.Err)
	}

	inflated, err := retrieval.NewFinisher(api).Finish(ctx, destDir, result.SuspectMinutesURL)
	if err != nil {
		slog.Warn("Post-download finishing incomplete", "error", err)
	}

	slog.Info("Extraction complete",
		"written", result.Written,
		"failed", len(result.Failures),
		"inflated", inflated,
		"dest", destDir,
	)
	if len(result.Failures) > 0 {
		return fmt.Errorf("%d of %d files were not retrieved", len(result.Failures), result.TotalFiles)
	}
	return nil
}

// startMetricsServer serves /metrics plus the health endpoints while the
// run is in progress. Failures here are logged, never fatal: a broken
// metrics listener must not kill a multi-hour extraction.
func startMetricsServer(port string, metricsHandler http.Handler, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting metrics server", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	return server
}

func writeHealth(w http.ResponseWriter, response *health.Response) {
	w.Header().Set("Content-Type", "application/json")
	if !response.IsHealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(response)
}
