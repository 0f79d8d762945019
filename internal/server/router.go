// Package server runs the HTTP API on a listener, optionally with TLS.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Server struct {
	handler http.Handler
	cert    *tls.Certificate

	mu       sync.Mutex
	listener net.Listener
	srv      *http.Server

	stopOnce sync.Once
	stopped  chan struct{}
}

func New(h http.Handler) *Server {
	return &Server{handler: h, stopped: make(chan struct{})}
}

// SetCertificate enables TLS with the given certificate.
func (s *Server) SetCertificate(cert tls.Certificate) {
	s.cert = &cert
}

// Listen serves on port until Stop is called. After a Stop it returns nil
// once in-flight requests have drained or the Stop context expired.
func (s *Server) Listen(port string) error {
	var listener net.Listener
	var err error

	if s.cert != nil {
		config := &tls.Config{Certificates: []tls.Certificate{*s.cert}, MinVersion: tls.VersionTLS12}
		listener, err = tls.Listen("tcp", ":"+port, config)
	} else {
		listener, err = net.Listen("tcp", ":"+port)
	}
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.srv = srv
	s.mu.Unlock()

	log.Info().Str("addr", listener.Addr().String()).Bool("tls", s.cert != nil).Msg("HTTP API listening")
	err = srv.Serve(listener)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	// Serve returns as soon as Shutdown starts; Stop signals when it is done.
	<-s.stopped
	return nil
}

// Addr returns the bound address, or nil before Listen has bound.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop waits for in-flight requests to finish or ctx to expire.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	s.stopOnce.Do(func() { close(s.stopped) })
	return err
}
