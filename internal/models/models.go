// Package models defines the core data structures for smart-whatsapping.
//
// It includes customer, order, message, and campaign entities shared across
// modules, plus the payloads exchanged with the webhook surface.
package models

import (
	"errors"
	"time"
)

// Channel identifies the contact channel a message travelled through.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
)

// Direction distinguishes inbound customer messages from outbound sends.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// SendStatus is the outcome of a single gateway send attempt.
type SendStatus string

const (
	SendStatusSent   SendStatus = "sent"
	SendStatusFailed SendStatus = "failed"
	SendStatusError  SendStatus = "error"
)

// Thresholds for customer segmentation and order automations.
const (
	// VIPOrderThreshold is the order count at which a customer counts as VIP.
	VIPOrderThreshold = 3
	// HighValueOrderAmount marks an order for high-value handling.
	HighValueOrderAmount = 100.0
	// PremiumOrderAmount marks an order for premium handling.
	PremiumOrderAmount = 500.0
)

// Error variables for better error handling and testability
var (
	ErrEmptyRecipient   = errors.New("recipient cannot be empty")
	ErrNoIdentifiers    = errors.New("at least one contact identifier is required")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrGatewayDisabled  = errors.New("messaging gateway not configured")
)

// Customer is the canonical identity record for one real-world customer.
// Identifier fields are filled additively; a populated field is never
// overwritten by identity resolution.
type Customer struct {
	ID            string     `json:"id"`
	Email         string     `json:"email,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	WhatsAppPhone string     `json:"whatsapp_phone,omitempty"`
	FirstName     string     `json:"first_name,omitempty"`
	LastName      string     `json:"last_name,omitempty"`
	TotalSpent    float64    `json:"total_spent"`
	OrderCount    int        `json:"order_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DisplayName returns the customer's name for message personalization,
// falling back to "there" when no name is known.
func (c *Customer) DisplayName() string {
	if c.FirstName != "" {
		return c.FirstName
	}
	return "there"
}

// FullName joins the stored name parts, or "Unknown" when both are empty.
func (c *Customer) FullName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	case c.LastName != "":
		return c.LastName
	default:
		return "Unknown"
	}
}

// IsVIP reports whether the customer qualifies for the VIP segment.
func (c *Customer) IsVIP() bool {
	return c.OrderCount >= VIPOrderThreshold
}

// Order is one purchase imported from a commerce platform webhook.
type Order struct {
	ID                string    `json:"id"`
	CustomerID        string    `json:"customer_id"`
	PlatformOrderID   string    `json:"platform_order_id"`
	Platform          string    `json:"platform"`
	TotalPrice        float64   `json:"total_price"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	FulfillmentStatus string    `json:"fulfillment_status,omitempty"`
	ItemsJSON         string    `json:"items_json,omitempty"`
	OrderDate         time.Time `json:"order_date"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Message is one inbound or outbound customer communication.
type Message struct {
	ID                string     `json:"id"`
	CustomerID        string     `json:"customer_id"`
	Channel           Channel    `json:"channel"`
	Direction         Direction  `json:"direction"`
	Content           string     `json:"content"`
	PlatformMessageID string     `json:"platform_message_id,omitempty"`
	MetadataJSON      string     `json:"metadata_json,omitempty"`
	WorkflowID        string     `json:"workflow_id,omitempty"`
	BotHandled        bool       `json:"bot_handled"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	ReceivedAt        *time.Time `json:"received_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// WebhookEvent logs a raw inbound webhook for debugging and replay.
type WebhookEvent struct {
	ID              string     `json:"id"`
	Source          string     `json:"source"`
	EventType       string     `json:"event_type"`
	RawData         string     `json:"raw_data"`
	Processed       bool       `json:"processed"`
	ProcessingError string     `json:"processing_error,omitempty"`
	ReceivedAt      time.Time  `json:"received_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
}

// CartItem is a shopping-cart line tracked for abandonment campaigns.
type CartItem struct {
	ID                string     `json:"id"`
	CustomerID        string     `json:"customer_id"`
	ProductName       string     `json:"product_name"`
	ProductPrice      float64    `json:"product_price"`
	Quantity          int        `json:"quantity"`
	AddedAt           time.Time  `json:"added_at"`
	IsRecovered       bool       `json:"is_recovered"`
	RecoveredAt       *time.Time `json:"recovered_at,omitempty"`
	RecoveredOrderID  string     `json:"recovered_order_id,omitempty"`
	CampaignSentCount int        `json:"campaign_sent_count"`
	LastCampaignSent  *time.Time `json:"last_campaign_sent,omitempty"`
}

// OfferType describes what a campaign's offer code grants.
type OfferType string

const (
	OfferTypeFreeShipping OfferType = "free_shipping"
	OfferTypePercentage   OfferType = "percentage"
)

// Campaign is a configured drip-marketing campaign.
type Campaign struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	CampaignType        string    `json:"campaign_type"`
	TriggerDelayMinutes int       `json:"trigger_delay_minutes"`
	MessageTemplate     string    `json:"message_template"`
	OfferType           OfferType `json:"offer_type,omitempty"`
	OfferValue          float64   `json:"offer_value"`
	MaxSendsPerCustomer int       `json:"max_sends_per_customer"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
}

// CampaignTypeCartAbandonment is the only campaign type currently scheduled.
const CampaignTypeCartAbandonment = "cart_abandonment"

// CampaignSend records one campaign message delivered to a customer.
type CampaignSend struct {
	ID                string    `json:"id"`
	CampaignID        string    `json:"campaign_id"`
	CustomerID        string    `json:"customer_id"`
	CartItemID        string    `json:"cart_item_id"`
	MessageContent    string    `json:"message_content"`
	OfferCodeUsed     string    `json:"offer_code_used,omitempty"`
	PlatformMessageID string    `json:"platform_message_id,omitempty"`
	Converted         bool      `json:"converted"`
	SentAt            time.Time `json:"sent_at"`
}

// OfferCode is a short-lived single-use discount token minted for a send.
type OfferCode struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	OfferType  OfferType `json:"offer_type"`
	OfferValue float64   `json:"offer_value"`
	MaxUses    int       `json:"max_uses"`
	UsedCount  int       `json:"used_count"`
	ExpiresAt  time.Time `json:"expires_at"`
	CampaignID string    `json:"campaign_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// InboundMessage is the normalized chat payload handed to the core by the
// webhook surface.
type InboundMessage struct {
	MessageID    string `json:"message_id"`
	FromPhone    string `json:"from_phone"`
	MessageText  string `json:"message_text"`
	Timestamp    string `json:"timestamp"`
	CustomerName string `json:"customer_name,omitempty"`
}

// OrderPayload is the normalized order payload from commerce webhooks.
type OrderPayload struct {
	OrderID       string      `json:"order_id"`
	CustomerEmail string      `json:"customer_email"`
	TotalPrice    float64     `json:"total_price"`
	OrderStatus   string      `json:"order_status"`
	Items         []OrderItem `json:"items"`
	CreatedAt     string      `json:"created_at"`
}

// OrderItem is one line of an inbound order payload.
type OrderItem struct {
	ProductID string  `json:"product_id,omitempty"`
	Title     string  `json:"title,omitempty"`
	Product   string  `json:"product,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// SendResult reports the outcome of a single gateway send.
type SendResult struct {
	Status    SendStatus `json:"status"`
	MessageID string     `json:"message_id,omitempty"`
	To        string     `json:"to"`
	Content   string     `json:"content,omitempty"`
	Error     string     `json:"error,omitempty"`
	SentAt    string     `json:"sent_at,omitempty"`
}

// BroadcastResult aggregates per-recipient outcomes of a broadcast send.
type BroadcastResult struct {
	Status     string            `json:"status"`
	TotalSent  int               `json:"total_sent"`
	Successful []string          `json:"successful"`
	Failed     []BroadcastError  `json:"failed"`
}

// BroadcastError pairs a failed recipient with the gateway error text.
type BroadcastError struct {
	Phone string `json:"phone"`
	Error string `json:"error"`
}
