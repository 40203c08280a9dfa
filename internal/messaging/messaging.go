// Package messaging defines the outbound message delivery abstraction and its
// WhatsApp implementations.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spurbey/smart-whatsapping/internal/identity"
	"github.com/spurbey/smart-whatsapping/internal/models"
)

// Gateway is a pluggable outbound delivery channel. Implementations report
// per-recipient outcomes in the SendResult rather than failing the call, so
// callers can record failed sends alongside successful ones.
type Gateway interface {
	// SendMessage delivers one text message to a phone number in any of the
	// accepted forms (bare, E.164, or "whatsapp:" prefixed).
	SendMessage(ctx context.Context, to string, body string) (*models.SendResult, error)

	// SendInteractive delivers a message followed by numbered quick-reply
	// options the recipient answers by number.
	SendInteractive(ctx context.Context, to string, body string, buttons []string) (*models.SendResult, error)

	// SendMenu delivers a sectioned list menu rendered as text.
	SendMenu(ctx context.Context, to string, header string, sections []MenuSection) (*models.SendResult, error)
}

// MenuSection is one titled group of menu rows.
type MenuSection struct {
	Title string   `json:"title"`
	Rows  []string `json:"rows"`
}

// FormatInteractive renders a body plus numbered reply options the way the
// WhatsApp text fallback presents buttons.
func FormatInteractive(body string, buttons []string) string {
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	for i, btn := range buttons {
		fmt.Fprintf(&b, "\n%d. %s", i+1, btn)
	}
	b.WriteString("\n\nReply with a number to choose.")
	return b.String()
}

// FormatMenu renders a sectioned menu as plain text.
func FormatMenu(header string, sections []MenuSection) string {
	var b strings.Builder
	b.WriteString(header)
	for _, section := range sections {
		b.WriteString("\n\n*")
		b.WriteString(section.Title)
		b.WriteString("*")
		for _, row := range section.Rows {
			b.WriteString("\n- ")
			b.WriteString(row)
		}
	}
	return b.String()
}

// Broadcast sends body to every customer in the list through the gateway,
// collecting per-recipient outcomes. Customers without a WhatsApp number are
// skipped. A failed recipient never aborts the rest of the broadcast.
func Broadcast(ctx context.Context, gw Gateway, customers []models.Customer, body string) *models.BroadcastResult {
	result := &models.BroadcastResult{
		Status:     "completed",
		Successful: []string{},
		Failed:     []models.BroadcastError{},
	}
	for _, customer := range customers {
		if customer.WhatsAppPhone == "" {
			continue
		}
		personalized := strings.ReplaceAll(body, "{name}", customer.DisplayName())
		res, err := gw.SendMessage(ctx, customer.WhatsAppPhone, personalized)
		if err != nil || res.Status != models.SendStatusSent {
			errText := "send failed"
			if err != nil {
				errText = err.Error()
			} else if res.Error != "" {
				errText = res.Error
			}
			result.Failed = append(result.Failed, models.BroadcastError{Phone: customer.WhatsAppPhone, Error: errText})
			continue
		}
		result.Successful = append(result.Successful, customer.WhatsAppPhone)
		result.TotalSent++
	}
	return result
}

// newSendResult builds the common successful-send result shape.
func newSendResult(to, messageID, content string) *models.SendResult {
	return &models.SendResult{
		Status:    models.SendStatusSent,
		MessageID: messageID,
		To:        identity.NormalizePhone(to),
		Content:   content,
		SentAt:    time.Now().UTC().Format(time.RFC3339),
	}
}
