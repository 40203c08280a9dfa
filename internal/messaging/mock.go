package messaging

import (
	"context"
	"fmt"

	"github.com/spurbey/smart-whatsapping/internal/models"
)

// MockGateway records sends for tests and for running without Twilio
// credentials.
type MockGateway struct {
	SentMessages []SentMessage
	// FailNext makes the next send report a failed result.
	FailNext bool

	nextID int
}

// SentMessage is one recorded mock send.
type SentMessage struct {
	To   string
	Body string
}

// NewMockGateway creates an empty recording gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{SentMessages: []SentMessage{}}
}

func (m *MockGateway) SendMessage(ctx context.Context, to string, body string) (*models.SendResult, error) {
	if to == "" {
		return nil, models.ErrEmptyRecipient
	}
	if m.FailNext {
		m.FailNext = false
		return &models.SendResult{Status: models.SendStatusFailed, To: to, Error: "mock send failure"}, nil
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	m.nextID++
	return newSendResult(to, fmt.Sprintf("mock-%d", m.nextID), body), nil
}

func (m *MockGateway) SendInteractive(ctx context.Context, to string, body string, buttons []string) (*models.SendResult, error) {
	return m.SendMessage(ctx, to, FormatInteractive(body, buttons))
}

func (m *MockGateway) SendMenu(ctx context.Context, to string, header string, sections []MenuSection) (*models.SendResult, error) {
	return m.SendMessage(ctx, to, FormatMenu(header, sections))
}

// LastMessage returns the most recent recorded send, nil when none.
func (m *MockGateway) LastMessage() *SentMessage {
	if len(m.SentMessages) == 0 {
		return nil
	}
	return &m.SentMessages[len(m.SentMessages)-1]
}
