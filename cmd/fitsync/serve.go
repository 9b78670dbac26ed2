package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"fitsync/internal/domain"
	"fitsync/internal/scheduler"
)

type syncResponse struct {
	Provider        domain.Provider `json:"provider"`
	Message         string          `json:"message"`
	Synced          int             `json:"synced"`
	Skipped         int             `json:"skipped"`
	Errors          int             `json:"errors"`
	SkippedEntirely bool            `json:"skipped_entirely"`
	QuotaExhausted  bool            `json:"quota_exhausted"`
	Error           string          `json:"error,omitempty"`
}

type healthResponse struct {
	Status  string            `json:"status"`
	Syncing []domain.Provider `json:"syncing"`
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the periodic syncer with metrics and a manual sync endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, appOptions{publisher: true})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sched := scheduler.NewScheduler(a.engine, a.cfg.Scheduler.Interval, a.cfg.Scheduler.SyncTimeout, a.logger)

			srv := &http.Server{
				Addr:              a.cfg.Metrics.Address,
				Handler:           newServeMux(ctx, sched),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				a.logger.Info("http server listening", "address", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("http server failed", "error", err)
				}
			}()

			a.logger.Info("starting fitsync",
				"providers", a.engine.Providers(),
				"interval", a.cfg.Scheduler.Interval,
			)

			err = sched.Start(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
				a.logger.Warn("http server shutdown", "error", shutdownErr)
			}

			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("scheduler error", "error", err)
				return err
			}
			return nil
		},
	}
}

// newServeMux exposes /metrics, /healthz (with the providers currently
// syncing) and POST /sync/{provider}. Manual
// syncs run on ctx so they stop with the process, not with the request.
func newServeMux(ctx context.Context, sched *scheduler.Scheduler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{Status: "ok", Syncing: []domain.Provider{}}
		for _, p := range domain.Providers {
			if sched.Running(p) {
				resp.Syncing = append(resp.Syncing, p)
			}
		}
		writeJSON(w, http.StatusOK, resp)
	})
	mux.HandleFunc("POST /sync/{provider}", func(w http.ResponseWriter, r *http.Request) {
		p, err := domain.ParseProvider(r.PathValue("provider"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, syncResponse{Error: err.Error()})
			return
		}

		result, err := sched.TriggerNow(ctx, p, r.URL.Query().Get("force") == "true")
		resp := syncResponse{
			Provider:        p,
			Message:         result.Message(),
			Synced:          result.SyncedCount,
			Skipped:         result.SkippedCount,
			Errors:          result.ErrorCount,
			SkippedEntirely: result.SkippedEntirely,
			QuotaExhausted:  result.QuotaExhausted,
		}

		status := http.StatusOK
		switch {
		case err == nil:
		case errors.Is(err, scheduler.ErrSyncInProgress):
			status = http.StatusConflict
		case errors.Is(err, domain.ErrUnknownProvider):
			status = http.StatusNotFound
		case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, domain.ErrRefreshFailed):
			status = http.StatusUnauthorized
		case errors.Is(err, domain.ErrQuotaExceeded):
			status = http.StatusTooManyRequests
		default:
			status = http.StatusInternalServerError
		}
		if err != nil {
			resp.Error = err.Error()
		}

		writeJSON(w, status, resp)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
