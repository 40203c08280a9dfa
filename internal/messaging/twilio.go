package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/spurbey/smart-whatsapping/internal/identity"
	"github.com/spurbey/smart-whatsapping/internal/models"
)

// Opts holds configuration options for the Twilio WhatsApp gateway.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string
}

// Option defines a configuration option for the Twilio WhatsApp gateway.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromWhats sets the sending WhatsApp number.
func WithFromWhats(from string) Option {
	return func(o *Opts) { o.FromWhats = from }
}

// TwilioGateway delivers WhatsApp messages through the Twilio REST API.
type TwilioGateway struct {
	client    *twilio.RestClient
	fromWhats string // sending number in "whatsapp:+1234567890" form
}

// NewTwilioGateway creates a Twilio-backed gateway. Options fall back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, and TWILIO_WHATSAPP_NUMBER
// environment variables.
func NewTwilioGateway(opts ...Option) (*TwilioGateway, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromWhats == "" {
		cfg.FromWhats = os.Getenv("TWILIO_WHATSAPP_NUMBER")
	}
	slog.Debug("Twilio gateway config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromWhats_set", cfg.FromWhats != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, fmt.Errorf("sending WhatsApp number must be provided")
	}
	if !strings.HasPrefix(cfg.FromWhats, "whatsapp:") {
		cfg.FromWhats = "whatsapp:" + cfg.FromWhats
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &TwilioGateway{
		client:    client,
		fromWhats: cfg.FromWhats,
	}, nil
}

// SendMessage sends one WhatsApp text message through Twilio.
func (g *TwilioGateway) SendMessage(ctx context.Context, to string, body string) (*models.SendResult, error) {
	if to == "" {
		return nil, models.ErrEmptyRecipient
	}
	normalized := identity.NormalizePhone(to)

	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:" + normalized)
	params.SetFrom(g.fromWhats)
	params.SetBody(body)

	resp, err := g.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendMessage failed", "to", normalized, "error", err)
		return &models.SendResult{
			Status: models.SendStatusFailed,
			To:     normalized,
			Error:  err.Error(),
		}, nil
	}

	messageID := ""
	if resp.Sid != nil {
		messageID = *resp.Sid
	}
	slog.Debug("Twilio message sent", "to", normalized, "sid", messageID)
	return newSendResult(normalized, messageID, body), nil
}

// SendInteractive sends a message with numbered quick-reply options. The
// Twilio Go SDK has no WhatsApp button API, so options are rendered as text.
func (g *TwilioGateway) SendInteractive(ctx context.Context, to string, body string, buttons []string) (*models.SendResult, error) {
	return g.SendMessage(ctx, to, FormatInteractive(body, buttons))
}

// SendMenu sends a sectioned list menu rendered as text.
func (g *TwilioGateway) SendMenu(ctx context.Context, to string, header string, sections []MenuSection) (*models.SendResult, error) {
	return g.SendMessage(ctx, to, FormatMenu(header, sections))
}
