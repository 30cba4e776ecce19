package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	ctrlMetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	MetricsPath = "/metrics"
	HealthzPath = "/healthz"
	ReadyzPath  = "/readyz"

	shutdownTimeout = 5 * time.Second
)

// Server exposes the controller-runtime metrics registry and the health
// probes on a single listener.
type Server struct {
	addr    string
	handler http.Handler
	logger  logr.Logger
}

var _ manager.Runnable = &Server{}

func NewServer(addr string, logger logr.Logger, readyChecks map[string]healthz.Checker) *Server {
	checks := map[string]healthz.Checker{"ping": healthz.Ping}
	for name, check := range readyChecks {
		checks[name] = check
	}

	mux := http.NewServeMux()
	mux.Handle(MetricsPath, promhttp.HandlerFor(ctrlMetrics.Registry, promhttp.HandlerOpts{
		ErrorLog: promLogger{logger},
	}))
	liveness := http.StripPrefix(HealthzPath, &healthz.Handler{
		Checks: map[string]healthz.Checker{"ping": healthz.Ping},
	})
	readiness := http.StripPrefix(ReadyzPath, &healthz.Handler{Checks: checks})
	mux.Handle(HealthzPath, liveness)
	mux.Handle(HealthzPath+"/", liveness)
	mux.Handle(ReadyzPath, readiness)
	mux.Handle(ReadyzPath+"/", readiness)

	return &Server{
		addr:    addr,
		handler: mux,
		logger:  logger,
	}
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving metrics and probes", "address", listener.Addr().String())
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to shut down metrics server: %w", err)
	}
	s.logger.V(4).Info("metrics server stopped")

	return nil
}

// promLogger routes promhttp errors to logr.
type promLogger struct {
	log logr.Logger
}

func (l promLogger) Println(v ...interface{}) {
	l.log.Error(errors.New(fmt.Sprint(v...)), "metrics handler error")
}
