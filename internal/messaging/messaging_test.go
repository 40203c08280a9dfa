package messaging

import (
	"context"
	"strings"
	"testing"

	"github.com/spurbey/smart-whatsapping/internal/models"
)

func TestFormatInteractive(t *testing.T) {
	got := FormatInteractive("Pick one:", []string{"Orders", "Products"})
	for _, want := range []string{"Pick one:", "1. Orders", "2. Products", "Reply with a number to choose."} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output:\n%s", want, got)
		}
	}
}

func TestFormatMenu(t *testing.T) {
	got := FormatMenu("Our menu", []MenuSection{
		{Title: "Drinks", Rows: []string{"Coffee", "Tea"}},
		{Title: "Food", Rows: []string{"Toast"}},
	})
	for _, want := range []string{"Our menu", "*Drinks*", "- Coffee", "- Tea", "*Food*", "- Toast"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output:\n%s", want, got)
		}
	}
}

func TestMockGatewaySendMessage(t *testing.T) {
	gw := NewMockGateway()

	res, err := gw.SendMessage(context.Background(), "whatsapp:+15551234567", "hello")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if res.Status != models.SendStatusSent {
		t.Errorf("expected sent status, got %q", res.Status)
	}
	if res.To != "+15551234567" {
		t.Errorf("expected normalized recipient, got %q", res.To)
	}
	if res.MessageID != "mock-1" {
		t.Errorf("expected mock-1 id, got %q", res.MessageID)
	}
	if last := gw.LastMessage(); last == nil || last.Body != "hello" {
		t.Errorf("expected recorded send, got %+v", last)
	}

	if _, err := gw.SendMessage(context.Background(), "", "hello"); err == nil {
		t.Error("expected error for empty recipient")
	}
}

func TestBroadcast(t *testing.T) {
	gw := NewMockGateway()
	customers := []models.Customer{
		{ID: "c1", FirstName: "Ana", WhatsAppPhone: "+15550000001"},
		{ID: "c2", FirstName: "Ben"}, // no WhatsApp number, skipped
		{ID: "c3", FirstName: "Cho", WhatsAppPhone: "+15550000003"},
	}

	result := Broadcast(context.Background(), gw, customers, "Hi {name}, sale today!")
	if result.TotalSent != 2 {
		t.Errorf("expected 2 sends, got %d", result.TotalSent)
	}
	if len(result.Failed) != 0 {
		t.Errorf("expected no failures, got %+v", result.Failed)
	}
	if len(gw.SentMessages) != 2 {
		t.Fatalf("expected 2 recorded sends, got %d", len(gw.SentMessages))
	}
	if gw.SentMessages[0].Body != "Hi Ana, sale today!" {
		t.Errorf("expected personalized body, got %q", gw.SentMessages[0].Body)
	}
}

func TestBroadcastCollectsFailures(t *testing.T) {
	gw := NewMockGateway()
	gw.FailNext = true
	customers := []models.Customer{
		{ID: "c1", WhatsAppPhone: "+15550000001"},
		{ID: "c2", WhatsAppPhone: "+15550000002"},
	}

	result := Broadcast(context.Background(), gw, customers, "hello")
	if result.TotalSent != 1 {
		t.Errorf("expected 1 send after failure, got %d", result.TotalSent)
	}
	if len(result.Failed) != 1 || result.Failed[0].Phone != "+15550000001" {
		t.Errorf("expected first recipient failed, got %+v", result.Failed)
	}
	if len(result.Successful) != 1 || result.Successful[0] != "+15550000002" {
		t.Errorf("expected second recipient successful, got %+v", result.Successful)
	}
}
