package campaign

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spurbey/smart-whatsapping/internal/messaging"
	"github.com/spurbey/smart-whatsapping/internal/models"
	"github.com/spurbey/smart-whatsapping/internal/store"
	"github.com/spurbey/smart-whatsapping/internal/store/storetest"
)

func newTestEngine() (*Engine, *store.InMemoryStore, *messaging.MockGateway) {
	st := store.NewInMemoryStore()
	gw := messaging.NewMockGateway()
	return NewEngine(st, gw), st, gw
}

// seedCart creates a customer with a cart item abandoned ago in the past.
func seedCart(t *testing.T, st *store.InMemoryStore, ago time.Duration) (customerID, cartID string) {
	t.Helper()
	ctx := context.Background()
	customerID = storetest.SeedCustomer(t, st, "ana@example.com", "", "+15551234567", "Ana")
	cart := &models.CartItem{
		CustomerID:   customerID,
		ProductName:  "Wireless Headphones",
		ProductPrice: 99.99,
		Quantity:     2,
		AddedAt:      time.Now().UTC().Add(-ago),
	}
	if err := st.CreateCartItem(ctx, cart); err != nil {
		t.Fatalf("CreateCartItem failed: %v", err)
	}
	return customerID, cart.ID
}

func TestSeedCartAbandonmentCampaigns(t *testing.T) {
	ctx := context.Background()
	engine, st, _ := newTestEngine()

	created, err := engine.SeedCartAbandonmentCampaigns(ctx)
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("expected 3 campaigns created, got %d", len(created))
	}

	campaigns, err := st.ListActiveCampaignsByType(ctx, models.CampaignTypeCartAbandonment)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(campaigns) != 3 {
		t.Fatalf("expected 3 active campaigns, got %d", len(campaigns))
	}

	// Seeding again is a no-op.
	created, err = engine.SeedCartAbandonmentCampaigns(ctx)
	if err != nil {
		t.Fatalf("second seed failed: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("expected no campaigns on reseed, got %v", created)
	}
}

func TestGenerateOfferCode(t *testing.T) {
	code := GenerateOfferCode(10)
	if !strings.HasPrefix(code, "CART10") {
		t.Errorf("expected CART10 prefix, got %q", code)
	}
	if len(code) != len("CART10")+offerCodeSuffixLen {
		t.Errorf("unexpected code length: %q", code)
	}
	suffix := code[len("CART10"):]
	for _, r := range suffix {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			t.Errorf("suffix must be upper alphanumeric, got %q", code)
		}
	}
}

func TestPersonalizeMessage(t *testing.T) {
	customer := &models.Customer{FirstName: "Ana"}
	cart := models.CartItem{
		ID:           "cart-1",
		ProductName:  "Wireless Headphones",
		ProductPrice: 99.99,
		Quantity:     2,
	}

	got := PersonalizeMessage("Hi {customer_name}!\n{product_list}\nCode: {offer_code}\n{cart_link}", customer, cart, "CART10ABCD")
	for _, want := range []string{
		"Hi Ana!",
		"• Wireless Headphones ($99.99) x2",
		"Code: CART10ABCD",
		"https://yourstore.com/cart?recover=cart-1",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in message:\n%s", want, got)
		}
	}

	// Single-quantity carts drop the multiplier.
	cart.Quantity = 1
	got = PersonalizeMessage("{product_list}", customer, cart, "")
	if strings.Contains(got, "x1") {
		t.Errorf("unexpected quantity suffix: %q", got)
	}
}

func TestFindAbandonedCartsWindow(t *testing.T) {
	ctx := context.Background()
	engine, st, _ := newTestEngine()
	if _, err := engine.SeedCartAbandonmentCampaigns(ctx); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	// Inside the 1-hour campaign's window.
	seedCart(t, st, time.Hour)
	// Too fresh for any campaign.
	freshCustomer := storetest.SeedCustomer(t, st, "ben@example.com", "", "+15550000002", "Ben")
	fresh := &models.CartItem{CustomerID: freshCustomer, ProductName: "Phone Case", ProductPrice: 24.99, AddedAt: time.Now().UTC().Add(-10 * time.Minute)}
	if err := st.CreateCartItem(ctx, fresh); err != nil {
		t.Fatalf("CreateCartItem failed: %v", err)
	}

	ready, err := engine.FindAbandonedCarts(ctx)
	if err != nil {
		t.Fatalf("FindAbandonedCarts failed: %v", err)
	}
	if len(ready) != 1 {
		t.Fatalf("expected 1 ready cart, got %d", len(ready))
	}
	if ready[0].Campaign.Name != "Cart Reminder - 1 Hour" {
		t.Errorf("expected 1-hour campaign, got %q", ready[0].Campaign.Name)
	}
	if ready[0].Customer == nil || ready[0].Customer.FirstName != "Ana" {
		t.Errorf("expected resolved customer, got %+v", ready[0].Customer)
	}
}

func TestFindAbandonedCartsSkipsSent(t *testing.T) {
	ctx := context.Background()
	engine, st, _ := newTestEngine()
	if _, err := engine.SeedCartAbandonmentCampaigns(ctx); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	seedCart(t, st, time.Hour)

	ready, err := engine.FindAbandonedCarts(ctx)
	if err != nil {
		t.Fatalf("FindAbandonedCarts failed: %v", err)
	}
	if len(ready) != 1 {
		t.Fatalf("expected 1 ready cart, got %d", len(ready))
	}

	// After the send the same pair never qualifies again.
	if res := engine.SendCampaignMessage(ctx, ready[0]); res.Status != models.SendStatusSent {
		t.Fatalf("send failed: %+v", res)
	}
	ready, err = engine.FindAbandonedCarts(ctx)
	if err != nil {
		t.Fatalf("second FindAbandonedCarts failed: %v", err)
	}
	if len(ready) != 0 {
		t.Errorf("expected no ready carts after send, got %d", len(ready))
	}
}

func TestSendCampaignMessageBookkeeping(t *testing.T) {
	ctx := context.Background()
	engine, st, gw := newTestEngine()
	if _, err := engine.SeedCartAbandonmentCampaigns(ctx); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	customerID, cartID := seedCart(t, st, 4*time.Hour)

	ready, err := engine.FindAbandonedCarts(ctx)
	if err != nil {
		t.Fatalf("FindAbandonedCarts failed: %v", err)
	}
	if len(ready) != 1 {
		t.Fatalf("expected 1 ready cart, got %d", len(ready))
	}
	if ready[0].Campaign.Name != "Cart Discount - 4 Hours" {
		t.Fatalf("expected 4-hour campaign, got %q", ready[0].Campaign.Name)
	}

	result := engine.SendCampaignMessage(ctx, ready[0])
	if result.Status != models.SendStatusSent {
		t.Fatalf("expected sent, got %+v", result)
	}

	last := gw.LastMessage()
	if last == nil || !strings.Contains(last.Body, "10% OFF with code: CART10") {
		t.Errorf("unexpected outbound body: %+v", last)
	}

	send, err := st.GetCampaignSend(ctx, ready[0].Campaign.ID, customerID, cartID)
	if err != nil || send == nil {
		t.Fatalf("expected recorded campaign send, got %v, %v", send, err)
	}
	if send.OfferCodeUsed == "" {
		t.Error("expected minted offer code on send record")
	}

	cart, err := st.GetCartItem(ctx, cartID)
	if err != nil || cart == nil {
		t.Fatalf("GetCartItem failed: %v", err)
	}
	if cart.CampaignSentCount != 1 || cart.LastCampaignSent == nil {
		t.Errorf("cart counters not updated: %+v", cart)
	}

	messages, err := st.ListMessagesByCustomer(ctx, customerID)
	if err != nil {
		t.Fatalf("ListMessagesByCustomer failed: %v", err)
	}
	if len(messages) != 1 || messages[0].Direction != models.DirectionOutbound || !messages[0].BotHandled {
		t.Errorf("unexpected message log: %+v", messages)
	}
}

func TestSendCampaignMessageNoWhatsApp(t *testing.T) {
	ctx := context.Background()
	engine, st, _ := newTestEngine()

	customerID := storetest.SeedCustomer(t, st, "ana@example.com", "+15551234567", "", "Ana")
	customer, _ := st.GetCustomerByID(ctx, customerID)

	result := engine.SendCampaignMessage(ctx, ReadyCart{
		Cart:     models.CartItem{ID: "cart-1", CustomerID: customerID},
		Campaign: models.Campaign{Name: "test"},
		Customer: customer,
	})
	if result.Status != models.SendStatusFailed {
		t.Errorf("expected failed status, got %+v", result)
	}
}

func TestRunCountsOutcomes(t *testing.T) {
	ctx := context.Background()
	engine, st, gw := newTestEngine()
	if _, err := engine.SeedCartAbandonmentCampaigns(ctx); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	seedCart(t, st, time.Hour)

	gw.FailNext = true
	result, err := engine.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.TotalProcessed != 1 || result.MessagesFailed != 1 || result.MessagesSent != 0 {
		t.Errorf("unexpected run result: %+v", result)
	}
}

func TestMarkCartRecovered(t *testing.T) {
	ctx := context.Background()
	engine, st, _ := newTestEngine()
	if _, err := engine.SeedCartAbandonmentCampaigns(ctx); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	customerID, cartID := seedCart(t, st, time.Hour)

	ready, err := engine.FindAbandonedCarts(ctx)
	if err != nil || len(ready) != 1 {
		t.Fatalf("expected 1 ready cart, got %d (%v)", len(ready), err)
	}
	engine.SendCampaignMessage(ctx, ready[0])

	if err := engine.MarkCartRecovered(ctx, cartID, "order-1"); err != nil {
		t.Fatalf("MarkCartRecovered failed: %v", err)
	}

	cart, _ := st.GetCartItem(ctx, cartID)
	if !cart.IsRecovered || cart.RecoveredOrderID != "order-1" {
		t.Errorf("cart not marked recovered: %+v", cart)
	}

	send, _ := st.GetCampaignSend(ctx, ready[0].Campaign.ID, customerID, cartID)
	if send == nil || !send.Converted {
		t.Errorf("campaign send not marked converted: %+v", send)
	}

	if err := engine.MarkCartRecovered(ctx, "missing", "order-2"); err == nil {
		t.Error("expected error for unknown cart")
	}
}
