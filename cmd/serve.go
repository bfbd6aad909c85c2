package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clearclaim/estimate-cli/internal/model"
	"github.com/clearclaim/estimate-cli/internal/store"
	"github.com/clearclaim/estimate-cli/internal/worker"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			env.Close(shutdownCtx)
		}()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env, cfg.Server.EnableV2),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.Bool("v2_enabled", cfg.Server.EnableV2))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *appEnv, enableV2 bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/jobs", handleListJobs(env))
	r.Get("/jobs/{jobID}", handleGetJob(env))

	r.Route("/v2/jobs/{jobID}", func(r chi.Router) {
		if !enableV2 {
			r.Post("/process", handleV2Disabled)
			r.Post("/reprocess", handleV2Disabled)
			return
		}
		r.Post("/process", handleProcess(env, false))
		r.Post("/reprocess", handleProcess(env, true))
	})

	return r
}

func handleV2Disabled(w http.ResponseWriter, req *http.Request) {
	writeError(w, http.StatusForbidden, "v2 extraction is not enabled")
}

func handleListJobs(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		filter := store.JobFilter{}
		if s := req.URL.Query().Get("status"); s != "" {
			filter.Status = model.JobStatus(s)
		}

		jobs, err := env.Store.ListJobs(req.Context(), filter)
		if err != nil {
			zap.L().Error("list jobs", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list jobs")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
	}
}

func handleGetJob(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		jobID := chi.URLParam(req, "jobID")

		job, err := env.Store.GetJob(req.Context(), jobID)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		if err != nil {
			zap.L().Error("get job", zap.String("job_id", jobID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load job")
			return
		}

		extraction, err := env.Store.GetExtractionDocument(req.Context(), jobID)
		if err != nil {
			zap.L().Error("get extraction", zap.String("job_id", jobID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load extraction")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"job": job, "extraction": extraction})
	}
}

// handleProcess starts a background extraction run. Reprocess purges prior
// per-page rows first; it is a destructive restart, not a resume.
func handleProcess(env *appEnv, reprocess bool) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		jobID := chi.URLParam(req, "jobID")

		var body struct {
			FilePaths []string `json:"filePaths"`
		}
		// An empty body is fine; file paths then come from the job record.
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		job, err := env.Store.GetJob(req.Context(), jobID)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		if err != nil {
			zap.L().Error("load job", zap.String("job_id", jobID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load job")
			return
		}

		filePaths := body.FilePaths
		if len(filePaths) == 0 {
			filePaths = job.FilePaths
		}
		if len(filePaths) == 0 {
			writeError(w, http.StatusBadRequest, "no file paths")
			return
		}

		if reprocess {
			n, err := env.Store.DeletePages(req.Context(), jobID)
			if err != nil {
				zap.L().Error("purge pages", zap.String("job_id", jobID), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to purge prior pages")
				return
			}
			zap.L().Info("purged prior pages", zap.String("job_id", jobID), zap.Int("count", n))
		}

		err = env.Runner.Submit(jobID, func(ctx context.Context) {
			if runErr := env.Pipeline.Run(ctx, jobID, filePaths); runErr != nil {
				zap.L().Error("background run failed",
					zap.String("job_id", jobID),
					zap.Error(runErr))
			}
		})
		switch {
		case errors.Is(err, worker.ErrAlreadyRunning):
			writeError(w, http.StatusConflict, "a run for this job is already in flight")
			return
		case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrShutdown):
			writeError(w, http.StatusServiceUnavailable, "extraction queue unavailable")
			return
		case err != nil:
			zap.L().Error("submit run", zap.String("job_id", jobID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to start run")
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]any{
			"ok":        true,
			"jobId":     jobID,
			"fileCount": len(filePaths),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
