// Package rest exposes the duty tables and registry mutations over HTTP.
package rest

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethduties/eth-duties/config/params"
	"github.com/ethduties/eth-duties/duties"
	"github.com/ethduties/eth-duties/validator/registry"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "rest")

// Config carries the server options.
type Config struct {
	Host           string
	Port           string
	AllowedOrigins []string
}

// Service is the REST API server. It implements runtime.Service. A listen
// port already in use is not fatal: the process continues without the
// server.
type Service struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      Config
	fetcher  *duties.Fetcher
	registry *registry.Registry
	resolver *registry.Resolver
	server   *http.Server
	listener net.Listener

	mu       sync.Mutex
	startErr error
}

// NewService builds the REST server over the fetcher and registry.
func NewService(ctx context.Context, cfg Config, fetcher *duties.Fetcher, reg *registry.Registry, resolver *registry.Resolver) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		fetcher:  fetcher,
		registry: reg,
		resolver: resolver,
	}
}

// Start binds the listener and serves requests until Stop.
func (s *Service) Start() {
	address := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		log.WithError(err).Warnf("Port %s is already in use. Starting without rest server.", s.cfg.Port)
		return
	}
	s.listener = listener

	router := mux.NewRouter()
	s.registerRoutes(router)
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	s.server = &http.Server{
		Handler:           corsHandler.Handler(router),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Infof("Started rest api server on %s", address)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Rest server failed")
			s.mu.Lock()
			s.startErr = err
			s.mu.Unlock()
		}
	}()
}

func (s *Service) registerRoutes(router *mux.Router) {
	router.HandleFunc("/duties/raw/attestation", s.rawDutiesHandler(duties.Attestation)).Methods(http.MethodGet)
	router.HandleFunc("/duties/raw/sync-committee", s.rawDutiesHandler(duties.SyncCommittee)).Methods(http.MethodGet)
	router.HandleFunc("/duties/raw/proposing", s.rawDutiesHandler(duties.Proposing)).Methods(http.MethodGet)
	router.HandleFunc("/duties/any", s.anyDutiesHandler).Methods(http.MethodGet)
	router.HandleFunc("/validator/identifier", s.addIdentifiersHandler).Methods(http.MethodPost)
	router.HandleFunc("/validator/identifier", s.removeIdentifiersHandler).Methods(http.MethodDelete)
}

// Stop shuts the server down and releases the listener.
func (s *Service) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), params.DutiesConf().AnyDutyRequestTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Status reports a failed serve loop.
func (s *Service) Status() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startErr
}
