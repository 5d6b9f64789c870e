// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Danproc/QR-Verify-sub002/internal/config"
	"github.com/Danproc/QR-Verify-sub002/internal/logging"
)

// Server is the supervised HTTP server. Implements suture.Service.
type Server struct {
	cfg     config.ServerConfig
	handler http.Handler
}

// NewServer creates the server service from a built route tree.
func NewServer(cfg config.ServerConfig, handler http.Handler) *Server {
	return &Server{cfg: cfg, handler: handler}
}

func (s *Server) String() string {
	return "http-server"
}

// Serve runs the HTTP server until the context is canceled, then shuts
// it down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port)),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("HTTP server shutdown was not graceful")
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
