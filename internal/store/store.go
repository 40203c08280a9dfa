// Package store provides the relational storage backends for smart-whatsapping.
//
// It persists customers, orders, messages, webhook events, cart items, and
// campaign records, with SQLite and PostgreSQL implementations behind one
// interface. Schema migrations are embedded per dialect and applied on open.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/spurbey/smart-whatsapping/internal/models"
)

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store creation.
type Option func(*Opts)

// WithDSN sets the database connection string (file path for SQLite,
// connection URL for Postgres).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". Postgres DSNs use
// the URL scheme or key=value form; everything else is a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// Segment names accepted by ListCustomersBySegment.
const (
	SegmentAll = "all"
	SegmentVIP = "vip"
	SegmentNew = "new"
)

// DashboardTotals aggregates whole-table counts for the dashboard.
type DashboardTotals struct {
	Customers int     `json:"customers"`
	Orders    int     `json:"orders"`
	Messages  int     `json:"messages"`
	Revenue   float64 `json:"revenue"`
}

// DashboardActivity counts rows created inside a recent window.
type DashboardActivity struct {
	NewCustomers int `json:"new_customers"`
	NewOrders    int `json:"new_orders"`
	NewMessages  int `json:"new_messages"`
}

// DashboardStats is the aggregate payload served by the stats endpoint.
type DashboardStats struct {
	Totals       DashboardTotals   `json:"totals"`
	Recent       DashboardActivity `json:"recent_24h"`
	TopCustomers []models.Customer `json:"top_customers"`
}

// SegmentCounts summarizes customer segment sizes.
type SegmentCounts struct {
	Total           int `json:"total"`
	WhatsAppEnabled int `json:"whatsapp_enabled"`
	VIP             int `json:"vip"`
	New             int `json:"new"`
}

// Store is the relational persistence contract consumed by the core
// components. Lookups signal "not found" with a nil record and nil error.
type Store interface {
	// Customers
	CreateCustomer(ctx context.Context, c *models.Customer) error
	GetCustomerByID(ctx context.Context, id string) (*models.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	GetCustomerByPhoneOrWhatsApp(ctx context.Context, phone string) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, c *models.Customer) error
	ListCustomers(ctx context.Context, limit int) ([]models.Customer, error)
	ListCustomersBySegment(ctx context.Context, segment string) ([]models.Customer, error)
	GetSegmentCounts(ctx context.Context) (SegmentCounts, error)
	RecalculateCustomerTotals(ctx context.Context, customerID string) (*models.Customer, error)

	// Orders
	CreateOrder(ctx context.Context, o *models.Order) error
	ListOrdersByCustomer(ctx context.Context, customerID string, limit int) ([]models.Order, error)
	ListRecentOrders(ctx context.Context, limit int) ([]models.Order, error)

	// Messages
	CreateMessage(ctx context.Context, m *models.Message) error
	ListRecentMessages(ctx context.Context, limit int) ([]models.Message, error)
	ListMessagesByCustomer(ctx context.Context, customerID string) ([]models.Message, error)

	// Webhook events
	CreateWebhookEvent(ctx context.Context, e *models.WebhookEvent) error
	MarkWebhookEventProcessed(ctx context.Context, id string, processingError string) error

	// Cart items
	CreateCartItem(ctx context.Context, item *models.CartItem) error
	GetCartItem(ctx context.Context, id string) (*models.CartItem, error)
	ListAbandonedCartsInWindow(ctx context.Context, start, end time.Time) ([]models.CartItem, error)
	ListUnrecoveredCartsByCustomer(ctx context.Context, customerID string) ([]models.CartItem, error)
	RecordCartCampaignSend(ctx context.Context, cartItemID string, sentAt time.Time) error
	MarkCartRecovered(ctx context.Context, cartItemID, orderID string) error

	// Campaigns
	CreateCampaign(ctx context.Context, c *models.Campaign) error
	GetCampaignByName(ctx context.Context, name string) (*models.Campaign, error)
	ListActiveCampaignsByType(ctx context.Context, campaignType string) ([]models.Campaign, error)
	CreateCampaignSend(ctx context.Context, s *models.CampaignSend) error
	GetCampaignSend(ctx context.Context, campaignID, customerID, cartItemID string) (*models.CampaignSend, error)
	MarkCampaignSendsConverted(ctx context.Context, cartItemID string) error
	CreateOfferCode(ctx context.Context, o *models.OfferCode) error

	// Aggregates
	GetDashboardStats(ctx context.Context) (*DashboardStats, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
