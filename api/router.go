// Package api serves the status of the supervised miners over HTTP.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	logging "github.com/ipfs/go-log/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/xerrors"
)

var log = logging.Logger("api")

const shutdownTimeout = 5 * time.Second

func NewRouter(m Miners, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", Health)
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		Status(w, r, m)
	})
	r.Post("/miners/{name}/restart", func(w http.ResponseWriter, r *http.Request) {
		Restart(w, r, m)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

// Serve listens on listenAddress until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, listenAddress string, h http.Handler) error {
	l, err := net.Listen("tcp", listenAddress)
	if err != nil {
		return xerrors.Errorf("listening on %s: %w", listenAddress, err)
	}
	return serve(ctx, l, h)
}

func serve(ctx context.Context, l net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infow("status api listening", "addr", l.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		return xerrors.Errorf("status api: %w", err)
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return xerrors.Errorf("shutting down status api: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
