package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/urban-sprawl/internal/model"
	"github.com/sells-group/urban-sprawl/internal/output"
)

var servePort int

var regionName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var contentTypes = map[string]string{
	".geojson": "application/geo+json",
	".csv":     "text/csv; charset=utf-8",
	".xlsx":    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".json":    "application/json",
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// newRouter serves the output dataset under root read-only.
func newRouter(root string, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/regions/{region}/periods", func(w http.ResponseWriter, r *http.Request) {
		region := chi.URLParam(r, "region")
		if !regionName.MatchString(region) {
			writeError(w, http.StatusBadRequest, "invalid region")
			return
		}
		periods, err := output.Periods(root, region)
		if err != nil {
			zap.L().Error("list periods", zap.String("region", region), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not list periods")
			return
		}
		if periods == nil {
			periods = []model.Period{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"region": region, "periods": periods})
	})

	r.Get("/regions/{region}/periods/{period}/{artifact}", func(w http.ResponseWriter, r *http.Request) {
		region := chi.URLParam(r, "region")
		artifact := chi.URLParam(r, "artifact")
		if !regionName.MatchString(region) {
			writeError(w, http.StatusBadRequest, "invalid region")
			return
		}
		period, err := model.ParsePeriod(chi.URLParam(r, "period"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid period")
			return
		}
		if !output.IsArtifact(artifact) {
			writeError(w, http.StatusNotFound, "unknown artifact")
			return
		}

		path := filepath.Join(root, region, period.Key(), artifact)
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "artifact not found")
			return
		}
		if err != nil {
			zap.L().Error("open artifact", zap.String("path", path), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not read artifact")
			return
		}
		defer f.Close()
		st, err := f.Stat()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not read artifact")
			return
		}
		if ct, ok := contentTypes[filepath.Ext(artifact)]; ok {
			w.Header().Set("Content-Type", ct)
		}
		http.ServeContent(w, r, artifact, st.ModTime(), f)
	})

	return r
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the output dataset over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(cfg.Output.Dir, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("root", cfg.Output.Dir))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
