package identity

import (
	"context"
	"testing"

	"github.com/spurbey/smart-whatsapping/internal/models"
	"github.com/spurbey/smart-whatsapping/internal/store"
	"github.com/spurbey/smart-whatsapping/internal/store/storetest"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"whatsapp prefix", "whatsapp:+15551234567", "+15551234567"},
		{"plain e164", "+15551234567", "+15551234567"},
		{"no plus", "15551234567", "+15551234567"},
		{"ten digits gets country code", "5551234567", "+15551234567"},
		{"spaces and hyphens", "+1 555-123-4567", "+15551234567"},
		{"whatsapp prefix ten digits", "whatsapp:5551234567", "+15551234567"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizePhone(tc.input); got != tc.expected {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestResolveOrCreateNoIdentifiers(t *testing.T) {
	r := NewResolver(store.NewInMemoryStore())
	_, err := r.ResolveOrCreate(context.Background(), Contact{Source: SourceWhatsApp})
	if err != models.ErrNoIdentifiers {
		t.Errorf("expected ErrNoIdentifiers, got %v", err)
	}
}

func TestResolveOrCreateCreatesCustomer(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	r := NewResolver(st)

	customer, err := r.ResolveOrCreate(ctx, Contact{
		Phone:     "whatsapp:+15551234567",
		FirstName: "Ana",
		Source:    SourceWhatsApp,
	})
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}
	if customer.Phone != "+15551234567" {
		t.Errorf("expected normalized phone, got %q", customer.Phone)
	}
	if customer.WhatsAppPhone != "+15551234567" {
		t.Errorf("expected whatsapp phone set for whatsapp source, got %q", customer.WhatsAppPhone)
	}
	if customer.FirstName != "Ana" {
		t.Errorf("expected first name Ana, got %q", customer.FirstName)
	}
}

func TestResolveOrCreateShopifySkipsWhatsAppPhone(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(store.NewInMemoryStore())

	customer, err := r.ResolveOrCreate(ctx, Contact{
		Email:  "ana@example.com",
		Phone:  "+15551234567",
		Source: SourceShopify,
	})
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}
	if customer.WhatsAppPhone != "" {
		t.Errorf("shopify contact must not claim a whatsapp phone, got %q", customer.WhatsAppPhone)
	}
}

func TestResolveOrCreateEmailPrecedence(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	byEmail := storetest.SeedCustomer(t, st, "ana@example.com", "", "", "Ana")
	byPhone := storetest.SeedCustomer(t, st, "", "+15551234567", "+15551234567", "Impostor")
	r := NewResolver(st)

	customer, err := r.ResolveOrCreate(ctx, Contact{
		Email:  "ana@example.com",
		Phone:  "+15551234567",
		Source: SourceShopify,
	})
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}
	if customer.ID != byEmail {
		t.Errorf("expected email match %s, got %s (phone match was %s)", byEmail, customer.ID, byPhone)
	}
}

func TestResolveOrCreateBackfillIsAdditive(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	id := storetest.SeedCustomer(t, st, "ana@example.com", "", "", "Ana")
	r := NewResolver(st)

	customer, err := r.ResolveOrCreate(ctx, Contact{
		Email:     "ana@example.com",
		Phone:     "whatsapp:+15551234567",
		FirstName: "Anabelle",
		LastName:  "Reyes",
		Source:    SourceWhatsApp,
	})
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}
	if customer.ID != id {
		t.Fatalf("expected existing customer %s, got %s", id, customer.ID)
	}
	// Empty fields are filled in.
	if customer.Phone != "+15551234567" || customer.WhatsAppPhone != "+15551234567" {
		t.Errorf("expected phone backfill, got phone=%q whatsapp=%q", customer.Phone, customer.WhatsAppPhone)
	}
	if customer.LastName != "Reyes" {
		t.Errorf("expected last name backfill, got %q", customer.LastName)
	}
	// Populated fields are never overwritten.
	if customer.FirstName != "Ana" {
		t.Errorf("existing first name was overwritten: %q", customer.FirstName)
	}

	// A second resolve with nothing new leaves the record untouched.
	again, err := r.ResolveOrCreate(ctx, Contact{Email: "ana@example.com", Source: SourceShopify})
	if err != nil {
		t.Fatalf("second ResolveOrCreate failed: %v", err)
	}
	if again.Phone != "+15551234567" || again.FirstName != "Ana" {
		t.Errorf("idempotent resolve mutated record: %+v", again)
	}
}
