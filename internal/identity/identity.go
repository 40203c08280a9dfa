// Package identity resolves inbound contact identifiers to canonical customer
// records.
//
// Lookups prefer email over phone. Matching records are updated additively:
// missing identifier and name fields are backfilled, populated fields are
// never overwritten.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spurbey/smart-whatsapping/internal/models"
	"github.com/spurbey/smart-whatsapping/internal/store"
)

// NormalizePhone canonicalizes a phone number for storage and lookup. It
// strips the "whatsapp:" channel prefix, the leading "+", and separator
// characters, prepends the US country code to bare 10-digit numbers, and
// returns the result in E.164 form. Empty input normalizes to "".
func NormalizePhone(phone string) string {
	if phone == "" {
		return ""
	}
	cleaned := strings.TrimPrefix(phone, "whatsapp:")
	cleaned = strings.NewReplacer("+", "", " ", "", "-", "").Replace(cleaned)
	if cleaned == "" {
		return ""
	}
	if len(cleaned) == 10 {
		cleaned = "1" + cleaned
	}
	return "+" + cleaned
}

// Contact carries the identifiers and optional name captured from one
// inbound event.
type Contact struct {
	Email     string
	Phone     string
	FirstName string
	LastName  string
	// Source names the channel the contact arrived through, "whatsapp" or
	// "shopify". WhatsApp contacts store their phone in whatsapp_phone.
	Source string
}

// Contact sources.
const (
	SourceWhatsApp = "whatsapp"
	SourceShopify  = "shopify"
)

// Resolver maps contacts to customer records backed by the relational store.
type Resolver struct {
	store store.Store
}

// NewResolver creates an identity resolver on the given store.
func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

// ResolveOrCreate finds the customer matching the contact's identifiers,
// creating one when nothing matches. Email match takes precedence over phone
// match. Known fields on the matched record are kept; empty ones are filled
// from the contact.
func (r *Resolver) ResolveOrCreate(ctx context.Context, contact Contact) (*models.Customer, error) {
	slog.Debug("Resolver ResolveOrCreate", "email", contact.Email, "phone", contact.Phone, "source", contact.Source)
	phone := NormalizePhone(contact.Phone)
	if contact.Email == "" && phone == "" {
		return nil, models.ErrNoIdentifiers
	}

	customer, err := r.lookup(ctx, contact.Email, phone)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return r.create(ctx, contact, phone)
	}

	if r.backfill(customer, contact, phone) {
		if err := r.store.UpdateCustomer(ctx, customer); err != nil {
			return nil, fmt.Errorf("failed to backfill customer %s: %w", customer.ID, err)
		}
		slog.Info("Resolver merged contact into existing customer",
			"customerID", customer.ID, "email", contact.Email, "phone", phone, "source", contact.Source)
	}
	return customer, nil
}

func (r *Resolver) lookup(ctx context.Context, email, phone string) (*models.Customer, error) {
	if email != "" {
		customer, err := r.store.GetCustomerByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to look up customer by email: %w", err)
		}
		if customer != nil {
			return customer, nil
		}
	}
	if phone != "" {
		customer, err := r.store.GetCustomerByPhoneOrWhatsApp(ctx, phone)
		if err != nil {
			return nil, fmt.Errorf("failed to look up customer by phone: %w", err)
		}
		if customer != nil {
			return customer, nil
		}
	}
	return nil, nil
}

func (r *Resolver) create(ctx context.Context, contact Contact, phone string) (*models.Customer, error) {
	customer := &models.Customer{
		Email:     contact.Email,
		FirstName: contact.FirstName,
		LastName:  contact.LastName,
	}
	if phone != "" {
		customer.Phone = phone
		if contact.Source == SourceWhatsApp {
			customer.WhatsAppPhone = phone
		}
	}
	if err := r.store.CreateCustomer(ctx, customer); err != nil {
		return nil, err
	}
	slog.Info("Resolver created customer", "customerID", customer.ID, "source", contact.Source)
	return customer, nil
}

// backfill fills empty fields on the matched record from the contact and
// reports whether anything changed.
func (r *Resolver) backfill(customer *models.Customer, contact Contact, phone string) bool {
	changed := false
	if customer.Email == "" && contact.Email != "" {
		customer.Email = contact.Email
		changed = true
	}
	if phone != "" {
		if customer.Phone == "" {
			customer.Phone = phone
			changed = true
		}
		if customer.WhatsAppPhone == "" && contact.Source == SourceWhatsApp {
			customer.WhatsAppPhone = phone
			changed = true
		}
	}
	if customer.FirstName == "" && contact.FirstName != "" {
		customer.FirstName = contact.FirstName
		changed = true
	}
	if customer.LastName == "" && contact.LastName != "" {
		customer.LastName = contact.LastName
		changed = true
	}
	return changed
}
