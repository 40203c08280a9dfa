// Package api provides the HTTP surface for smart-whatsapping.
//
// It exposes the Twilio and commerce webhooks, manual send endpoints, the
// campaign trigger, and the dashboard with its data endpoints. Handlers are
// thin: they normalize payloads and delegate to the flow, campaign, and
// identity components.
package api

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/spurbey/smart-whatsapping/internal/campaign"
	"github.com/spurbey/smart-whatsapping/internal/flow"
	"github.com/spurbey/smart-whatsapping/internal/identity"
	"github.com/spurbey/smart-whatsapping/internal/messaging"
	"github.com/spurbey/smart-whatsapping/internal/session"
	"github.com/spurbey/smart-whatsapping/internal/store"
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8000"

// Server wires the HTTP handlers to the application components.
type Server struct {
	addr      string
	store     store.Store
	gateway   messaging.Gateway
	sessions  *session.Manager
	router    *flow.Router
	campaigns *campaign.Engine
	resolver  *identity.Resolver
}

// NewServer creates the API server. The listen address falls back to the
// API_ADDR environment variable, then DefaultAddr.
func NewServer(st store.Store, gw messaging.Gateway, sessions *session.Manager, campaigns *campaign.Engine, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = os.Getenv("API_ADDR")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	return &Server{
		addr:      cfg.Addr,
		store:     st,
		gateway:   gw,
		sessions:  sessions,
		router:    flow.NewRouter(sessions, st),
		campaigns: campaigns,
		resolver:  identity.NewResolver(st),
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Routes builds the HTTP handler tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.rootHandler)
	r.Get("/health", s.healthHandler)

	r.Post("/webhook/whatsapp/twilio", s.twilioWebhookHandler)
	r.Post("/webhook/whatsapp", s.whatsappJSONWebhookHandler)
	r.Post("/webhook/shopify", s.shopifyWebhookHandler)

	r.Post("/send-whatsapp", s.sendWhatsAppHandler)
	r.Post("/send-interactive", s.sendInteractiveHandler)
	r.Post("/send-menu", s.sendMenuHandler)
	r.Post("/broadcast", s.broadcastHandler)

	r.Get("/dashboard", s.dashboardHandler)
	r.Get("/api/dashboard-stats", s.dashboardStatsHandler)
	r.Get("/customers", s.listCustomersHandler)
	r.Get("/customers/segments", s.customerSegmentsHandler)
	r.Get("/customers/{customerID}", s.customerDetailsHandler)
	r.Get("/messages/recent", s.recentMessagesHandler)
	r.Get("/orders/recent", s.recentOrdersHandler)

	r.Post("/campaigns/run", s.runCampaignsHandler)
	r.Post("/campaigns/seed", s.seedCampaignsHandler)

	return r
}
