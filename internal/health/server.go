package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pixelgrove/photosync/internal/config"
	syncerrors "github.com/pixelgrove/photosync/internal/errors"
	"github.com/pixelgrove/photosync/internal/types"
)

// shutdownTimeout caps how long an in-flight request may delay exit.
const shutdownTimeout = 5 * time.Second

// Syncer runs a serialized full sync on demand; the worker implements it.
type Syncer interface {
	FullSync(ctx context.Context) (types.SyncStats, error)
}

// Server is the HTTP surface for liveness checks, statistics and
// manually triggered syncs.
type Server struct {
	monitor *Monitor
	syncer  Syncer
	log     *slog.Logger
	httpSrv *http.Server
}

func NewServer(cfg *config.Config, monitor *Monitor, syncer Syncer, logger *slog.Logger) *Server {
	s := &Server{
		monitor: monitor,
		syncer:  syncer,
		log:     logger.With("component", "health"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/sync", s.handleSync)

	var handler http.Handler = mux
	if cfg.AccessLog {
		handler = s.accessLog(handler)
	}
	s.httpSrv = &http.Server{
		Addr:              net.JoinHostPort(cfg.HealthCheckHost, strconv.Itoa(cfg.HealthCheckPort)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.ListenAndServe()
	}()
	s.log.Info("health server listening", "addr", s.httpSrv.Addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}

// handleHealth always answers 200; the payload carries the verdict so
// probes can alert on content rather than connection failures.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.monitor.Health(r.Context()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.monitor.Stats())
}

// handleSync runs a full sync inline and answers with its stats. A
// missing storage root maps to 404, everything else to 500.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.log.Info("manual sync requested", "remote", r.RemoteAddr)

	stats, err := s.syncer.FullSync(r.Context())
	if err != nil {
		if syncerrors.IsPrecondition(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.log.Error("manual sync failed", "error", err)
		http.Error(w, "sync failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("encoding response", "error", err)
	}
}

// accessLog emits one structured line per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
