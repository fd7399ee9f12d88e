// Package statusserver exposes the sensor's status report over HTTP, the
// Prometheus registry at /metrics and a gRPC health service.
package statusserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/cognitive.radar/internal/db"
	"github.com/banshee-data/cognitive.radar/internal/monitoring"
	"github.com/banshee-data/cognitive.radar/internal/orchestrator"
)

// ServiceName is the gRPC health service reported alongside the overall
// ("") status.
const ServiceName = "cognitive.radar.Sensor"

const (
	defaultAdaptationLimit = 10
	maxAdaptationLimit     = 500
	shutdownTimeout        = 5 * time.Second
)

// Reporter provides the status report.
type Reporter interface {
	StatusReport() orchestrator.Status
}

// AdaptationLog serves journalled adaptation rows.
type AdaptationLog interface {
	RecentAdaptations(ctx context.Context, limit int) ([]db.AdaptationRecord, error)
}

// Server serves status, metrics and health.
type Server struct {
	reporter Reporter
	metrics  *monitoring.Metrics
	journal  AdaptationLog
	health   *health.Server
}

// New returns a Server. metrics and journal may be nil.
func New(r Reporter, metrics *monitoring.Metrics, journal AdaptationLog) *Server {
	s := &Server{reporter: r, metrics: metrics, journal: journal, health: health.NewServer()}
	s.setHealth(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Health returns the gRPC health implementation.
func (s *Server) Health() *health.Server { return s.health }

// UpdateHealth sets the health status from the current report and returns
// whether the sensor is serving.
func (s *Server) UpdateHealth() bool {
	ok := s.reporter.StatusReport().Healthy()
	if ok {
		s.setHealth(healthpb.HealthCheckResponse_SERVING)
	} else {
		s.setHealth(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return ok
}

func (s *Server) setHealth(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Handler returns the HTTP routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.showStatus)
	mux.HandleFunc("/adaptations", s.listAdaptations)
	if s.metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}
	return LoggingMiddleware(mux)
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	st := s.reporter.StatusReport()
	code := http.StatusOK
	if !st.Healthy() && r.URL.Query().Get("strict") == "true" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, st)
}

func (s *Server) listAdaptations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.journal == nil {
		writeJSONError(w, http.StatusNotFound, "journal disabled")
		return
	}
	limit := defaultAdaptationLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxAdaptationLimit {
			writeJSONError(w, http.StatusBadRequest, "limit must be an integer in [1, 500]")
			return
		}
		limit = n
	}
	recs, err := s.journal.RecentAdaptations(r.Context(), limit)
	if err != nil {
		monitoring.Logf("statusserver: recent adaptations: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	if recs == nil {
		recs = []db.AdaptationRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// Serve listens on httpAddr and grpcAddr (either may be empty to skip it)
// and refreshes health every interval until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, httpAddr, grpcAddr string, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	var lis net.Listener
	if grpcAddr != "" {
		var err error
		if lis, err = net.Listen("tcp", grpcAddr); err != nil {
			return err
		}
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			s.UpdateHealth()
			select {
			case <-gctx.Done():
				s.health.Shutdown()
				return nil
			case <-t.C:
			}
		}
	})

	if httpAddr != "" {
		srv := &http.Server{Addr: httpAddr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			monitoring.Logf("status server listening on %s", httpAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	if lis != nil {
		gs := grpc.NewServer()
		healthpb.RegisterHealthServer(gs, s.health)
		g.Go(func() error {
			monitoring.Logf("grpc health listening on %s", lis.Addr())
			if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			gs.GracefulStop()
			return nil
		})
	}

	return g.Wait()
}

// LoggingMiddleware logs method, path, status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf("[%d] %s %s %.3fms", lrw.statusCode, r.Method, r.RequestURI,
			float64(time.Since(start).Nanoseconds())/1e6)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("failed to encode json response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
