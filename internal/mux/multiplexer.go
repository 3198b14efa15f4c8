// Package mux serves HTTP/1 and gRPC on one port with cmux.
package mux

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/soheilhy/cmux"

	"harvest-engine/internal/config"
	"harvest-engine/internal/grpc/server"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/logging/types"
)

// Multiplexer handles protocol detection and routing between gRPC and HTTP
type Multiplexer struct {
	grpcServer *server.Server
	httpServer *http.Server
	logger     types.Logger

	mux      cmux.CMux
	listener net.Listener
	wg       sync.WaitGroup
	errs     chan error
}

// NewMultiplexer wraps httpHandler in an http.Server using server.* timeouts
func NewMultiplexer(cfg *config.Config, grpcServer *server.Server, httpHandler http.Handler) *Multiplexer {
	return &Multiplexer{
		grpcServer: grpcServer,
		logger:     logging.Component("multiplexer"),
		errs:       make(chan error, 3),
		httpServer: &http.Server{
			Handler:           httpHandler,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       cfg.Server.IdleTimeout,
		},
	}
}

// Start listens on address and serves both protocols in the background
func (m *Multiplexer) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return m.Serve(listener)
}

// Serve splits an existing listener between gRPC and HTTP
func (m *Multiplexer) Serve(listener net.Listener) error {
	m.listener = listener
	m.mux = cmux.New(listener)

	grpcListener := m.mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpListener := m.mux.Match(cmux.Any())

	address := listener.Addr().String()
	m.run("gRPC server", func() error { return m.grpcServer.Start(grpcListener) })
	m.run("HTTP server", func() error {
		if err := m.httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	m.run("protocol multiplexer", func() error {
		if err := m.mux.Serve(); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, cmux.ErrListenerClosed) {
			return err
		}
		return nil
	})

	m.logger.Info("Multiplexer started successfully", map[string]interface{}{"address": address})
	return nil
}

func (m *Multiplexer) run(name string, serve func() error) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := serve(); err != nil {
			m.logger.Error(name+" failed", map[string]interface{}{"error": err.Error()})
			m.errs <- fmt.Errorf("%s: %w", name, err)
		}
	}()
}

// Errors delivers fatal serve errors
func (m *Multiplexer) Errors() <-chan error {
	return m.errs
}

// Stop drains HTTP, stops gRPC and closes the listener, bounded by ctx
func (m *Multiplexer) Stop(ctx context.Context) error {
	m.logger.Info("Stopping multiplexer...", nil)

	var firstErr error
	if err := m.httpServer.Shutdown(ctx); err != nil {
		m.logger.Error("HTTP server shutdown failed", map[string]interface{}{"error": err.Error()})
		firstErr = err
	}
	m.grpcServer.Stop()
	if m.listener != nil {
		if err := m.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			m.logger.Error("Failed to close listener", map[string]interface{}{"error": err.Error()})
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Multiplexer stopped gracefully", nil)
	case <-ctx.Done():
		m.logger.Warn("Multiplexer shutdown timed out", nil)
		if firstErr == nil {
			firstErr = ctx.Err()
		}
	}
	return firstErr
}

// GetAddress returns the address the multiplexer is listening on
func (m *Multiplexer) GetAddress() string {
	if m.listener != nil {
		return m.listener.Addr().String()
	}
	return ""
}
