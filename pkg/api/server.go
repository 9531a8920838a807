package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/platinummonkey/subledger/pkg/billing"
	"github.com/platinummonkey/subledger/pkg/fx"
	"github.com/platinummonkey/subledger/pkg/httputil"
	"github.com/platinummonkey/subledger/pkg/observability"
	"github.com/platinummonkey/subledger/pkg/plans"
	"github.com/platinummonkey/subledger/pkg/storage"
	"github.com/platinummonkey/subledger/pkg/subscriptions"
)

// maxBodyBytes caps request bodies; every payload here is tiny
const maxBodyBytes = 1 << 20

// BillingSimulator runs billing advancement
type BillingSimulator interface {
	Simulate(ctx context.Context, req *billing.SimulateRequest) (*billing.SimulateResponse, error)
}

// EventLister lists a subscription's billing events
type EventLister interface {
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*billing.Entry, error)
}

// RateCreator loads exchange rates
type RateCreator interface {
	CreateRate(ctx context.Context, req *fx.CreateRateRequest) (*fx.Rate, error)
}

// Services are the domain services the API exposes
type Services struct {
	Plans         plans.Service
	Subscriptions subscriptions.Service
	Events        EventLister
	Simulator     BillingSimulator
	Rates         RateCreator
}

// Server represents our API server
type Server struct {
	services Services
	router   *mux.Router
	handler  http.Handler
	clock    clockwork.Clock
	logger   *observability.Logger
}

// NewServer creates a new API server
func NewServer(services Services, clock clockwork.Clock, logger *observability.Logger) *Server {
	s := &Server{
		services: services,
		router:   mux.NewRouter(),
		clock:    clock,
		logger:   logger,
	}
	s.setupRoutes()

	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware(logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(maxBodyBytes),
	)(s.router)
	return s
}

// WithMetrics instruments every route with request metrics
func (s *Server) WithMetrics(m *observability.Metrics) *Server {
	if m != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(m))
	}
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Billing
	s.router.HandleFunc("/billing/simulate", s.simulateBilling).Methods("POST")

	// Plans
	s.router.HandleFunc("/plans", s.createPlan).Methods("POST")
	s.router.HandleFunc("/plans", s.listPlans).Methods("GET")
	s.router.HandleFunc("/plans/{id}", s.getPlan).Methods("GET")

	// Subscriptions
	s.router.HandleFunc("/subscriptions", s.createSubscription).Methods("POST")
	s.router.HandleFunc("/subscriptions", s.listSubscriptions).Methods("GET")
	s.router.HandleFunc("/subscriptions/{id}", s.getSubscription).Methods("GET")
	s.router.HandleFunc("/subscriptions/{id}/cancel", s.cancelSubscription).Methods("POST")
	s.router.HandleFunc("/subscriptions/{id}/reactivate", s.reactivateSubscription).Methods("POST")
	s.router.HandleFunc("/subscriptions/{id}/billing-events", s.listBillingEvents).Methods("GET")

	// FX
	s.router.HandleFunc("/fx-rates", s.createFXRate).Methods("POST")

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ledgerEvents reads billing events straight from a pool
type ledgerEvents struct {
	ledger *billing.Ledger
	db     storage.Querier
}

// LedgerEvents adapts a ledger reading from db to an EventLister
func LedgerEvents(ledger *billing.Ledger, db storage.Querier) EventLister {
	return &ledgerEvents{ledger: ledger, db: db}
}

func (l *ledgerEvents) ListBySubscription(ctx context.Context, subscriptionID string) ([]*billing.Entry, error) {
	return l.ledger.ListBySubscription(ctx, l.db, subscriptionID)
}
