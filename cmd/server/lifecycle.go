package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// runGroup runs a fixed set of background loops and waits for all of
// them to return once ctx is cancelled. It exists because the example
// pack carries no errgroup-style dependency; a sync.WaitGroup plus a
// first-error latch covers the same ground for a handful of
// known-in-advance goroutines.
type runGroup struct {
	ctx    context.Context
	wg     sync.WaitGroup
	mu     sync.Mutex
	errs   []error
}

func errGroup(parent context.Context) (*runGroup, context.Context) {
	return &runGroup{ctx: parent}, parent
}

func (g *runGroup) spawn(fn func() error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := fn(); err != nil {
			g.mu.Lock()
			g.errs = append(g.errs, err)
			g.mu.Unlock()
		}
	}()
}

func (g *runGroup) wait() error {
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.errs) > 0 {
		return g.errs[0]
	}
	return nil
}

// metricsServer serves the Prometheus handler on its own internal
// address until ctx is cancelled.
type metricsServer struct {
	addr    string
	handler http.Handler
}

func (m *metricsServer) run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.handler)

	srv := &http.Server{Addr: m.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("address", m.addr).Info("serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
