package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/imrenagi/go-drive-relay/tus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Opts struct {
	Addr        string
	ServiceName string
	// TusDir enables the tus receiver at /files, storing uploads in TusDir.
	TusDir     string
	TusMaxSize int64
}

func New(opts Opts) Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "go-drive-relay"
	}
	return Server{
		opts: opts,
	}
}

// Server is the operational HTTP surface of the relay.
type Server struct {
	opts Opts
}

// Run serves until ctx is done, then shuts the server and the meter provider
// down.
func (s *Server) Run(ctx context.Context) error {
	log.Info().Msg("starting server")

	prometheusExporter, err := NewPrometheusExporter()
	if err != nil {
		return err
	}
	meterShutdownFn, err := InitMeterProvider(ctx, s.opts.ServiceName, prometheusExporter)
	if err != nil {
		return err
	}

	handler, err := s.newHTTPHandler()
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:    s.opts.Addr,
		Handler: handler,
		// Chunks of a tus upload are several megabytes, so reads get more room
		// than the header.
		ReadTimeout:       5 * time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting http server on %s", s.opts.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	gracefulShutdownPeriod := 30 * time.Second
	log.Warn().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownPeriod)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown http server gracefully")
	}
	log.Warn().Msg("http server gracefully stopped")

	if err := meterShutdownFn(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown meter provider")
	}
	return nil
}

func (s *Server) newHTTPHandler() (http.Handler, error) {
	router := mux.NewRouter()
	router.Use(
		otelhttp.NewMiddleware("relay"),
		LogInterceptor)
	router.Handle("/metrics", promhttp.Handler())
	router.Handle("/healthz", otelhttp.WithRouteTag("/healthz", http.HandlerFunc(healthz))).Methods(http.MethodGet)

	if s.opts.TusDir != "" {
		if err := os.MkdirAll(s.opts.TusDir, 0o750); err != nil {
			return nil, fmt.Errorf("create tus directory: %w", err)
		}
		controller := tus.NewController(tus.NewMemoryStore(), s.opts.TusDir, tus.WithMaxSize(s.opts.TusMaxSize))
		controller.Register(router.PathPrefix("/files").Subrouter())
		log.Info().Str("dir", s.opts.TusDir).Msg("tus receiver mounted at /files")
	}

	return otelhttp.NewHandler(router, "/"), nil
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
