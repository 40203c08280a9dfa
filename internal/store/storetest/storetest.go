// Package storetest provides seeding helpers shared by the package tests
// that drive a store.Store.
package storetest

import (
	"context"
	"strings"
	"testing"

	"github.com/spurbey/smart-whatsapping/internal/models"
	"github.com/spurbey/smart-whatsapping/internal/store"
)

// SeedCustomer inserts a customer with the given identifiers and returns
// its id.
func SeedCustomer(t *testing.T, st store.Store, email, phone, whatsappPhone, firstName string) string {
	t.Helper()
	c := models.Customer{
		Email:         email,
		Phone:         phone,
		WhatsAppPhone: whatsappPhone,
		FirstName:     strings.TrimSpace(firstName),
	}
	if err := st.CreateCustomer(context.Background(), &c); err != nil {
		t.Fatalf("SeedCustomer failed: %v", err)
	}
	return c.ID
}
