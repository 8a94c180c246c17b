// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService serves the Prometheus scrape endpoint as a supervised
// service. It translates http.Server's blocking ListenAndServe into
// suture's context-aware Serve.
type MetricsService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewMetricsService creates the metrics listener on the given address.
func NewMetricsService(listen string, shutdownTimeout time.Duration) *MetricsService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &MetricsService{
		server: &http.Server{
			Addr:         listen,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// Serve implements suture.Service.
func (m *MetricsService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
		defer cancel()
		if err := m.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervisor logs.
func (m *MetricsService) String() string {
	return "metrics-server"
}
