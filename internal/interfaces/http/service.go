package httpinterface

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-stealth/internal/core/application/transfer"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
	webhookpubsub "github.com/tdex-network/tdex-stealth/internal/infrastructure/pubsub/webhook"
	httprelay "github.com/tdex-network/tdex-stealth/internal/infrastructure/relay/http"
	interfaces "github.com/tdex-network/tdex-stealth/internal/interfaces"
)

const (
	metricsPath   = "/metrics"
	relayPath     = "/relay"
	shutdownDelay = 10 * time.Second
)

type ServiceOpts struct {
	Address string

	TransferSvc *transfer.Service
	Session     ports.WalletSession
	// Webhooks, if set, enables the webhook management routes.
	Webhooks *webhookpubsub.Publisher
	// Gatherer, if set, is served at /metrics.
	Gatherer prometheus.Gatherer
	// Relay, if set, is served under /relay with the relay protocol. Used to
	// expose the simulated relay to external tools.
	Relay ports.Relay
}

func (o ServiceOpts) validate() error {
	if o.Address == "" {
		return fmt.Errorf("missing listening address")
	}
	if o.TransferSvc == nil {
		return fmt.Errorf("missing transfer service")
	}
	if o.Session == nil {
		return fmt.Errorf("missing wallet session")
	}
	return nil
}

type service struct {
	opts   ServiceOpts
	router chi.Router
	server *http.Server
}

// NewService returns the HTTP interface of the daemon.
func NewService(opts ServiceOpts) (interfaces.Service, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &service{
		opts:   opts,
		router: newRouter(opts),
	}, nil
}

func (s *service) Start() error {
	lis, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http interface stopped unexpectedly")
		}
	}()

	log.Infof("http interface is listening on %s", lis.Addr())
	return nil
}

func (s *service) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownDelay)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("http interface did not shut down gracefully")
	}
	log.Debug("disabled http interface")
}

func newRouter(opts ServiceOpts) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := &handler{
		transferSvc: opts.TransferSvc,
		session:     opts.Session,
		webhooks:    opts.Webhooks,
	}
	h.registerRoutes(r)

	if opts.Gatherer != nil {
		r.Handle(metricsPath, promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	if opts.Relay != nil {
		r.Route(relayPath, httprelay.NewHandler(opts.Relay).RegisterRoutes)
	}
	return r
}
