package flow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spurbey/smart-whatsapping/internal/kvstore"
	"github.com/spurbey/smart-whatsapping/internal/models"
	"github.com/spurbey/smart-whatsapping/internal/session"
	"github.com/spurbey/smart-whatsapping/internal/store"
	"github.com/spurbey/smart-whatsapping/internal/store/storetest"
)

func TestDetectChoice(t *testing.T) {
	cases := []struct {
		input    string
		options  int
		expected int
	}{
		{"1", 4, 1},
		{"4", 4, 4},
		{"5", 4, 0},
		{" 2 ", 4, 2},
		{"10", 4, 1}, // leading digit fallback
		{"3 please", 4, 3},
		{"hello", 4, 0},
		{"", 4, 0},
		{"0", 4, 0},
	}
	for _, tc := range cases {
		if got := DetectChoice(tc.input, tc.options); got != tc.expected {
			t.Errorf("DetectChoice(%q, %d) = %d, want %d", tc.input, tc.options, got, tc.expected)
		}
	}
}

func TestResponderGreeting(t *testing.T) {
	r := NewResponder(store.NewInMemoryStore())
	customer := &models.Customer{ID: "c1", FirstName: "Ana"}

	reply := r.Respond(context.Background(), customer, "hello")
	if !strings.Contains(reply, "Hi Ana!") {
		t.Errorf("expected personalized greeting, got %q", reply)
	}
	if !strings.Contains(reply, "1. 📦 My Orders") {
		t.Errorf("expected numbered menu, got %q", reply)
	}
}

func TestResponderOrders(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	id := storetest.SeedCustomer(t, st, "ana@example.com", "", "+15551234567", "Ana")
	customer, _ := st.GetCustomerByID(ctx, id)

	r := NewResponder(st)

	// No orders yet.
	reply := r.Respond(ctx, customer, "1")
	if !strings.Contains(reply, "don't see any orders") {
		t.Errorf("expected empty-orders reply, got %q", reply)
	}

	err := st.CreateOrder(ctx, &models.Order{
		CustomerID:      id,
		PlatformOrderID: "SHOP-1001",
		TotalPrice:      129.99,
		Status:          "shipped",
		OrderDate:       time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	reply = r.Respond(ctx, customer, "order status")
	if !strings.Contains(reply, "SHOP-1001") {
		t.Errorf("expected order id in reply, got %q", reply)
	}
	if !strings.Contains(reply, "🚚 Shipped") {
		t.Errorf("expected shipped status line, got %q", reply)
	}
	if !strings.Contains(reply, "$129.99") {
		t.Errorf("expected order total, got %q", reply)
	}
}

func TestResponderProductsAndAccount(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	id := storetest.SeedCustomer(t, st, "ana@example.com", "+15551234567", "", "Ana")
	customer, _ := st.GetCustomerByID(ctx, id)

	r := NewResponder(st)

	reply := r.Respond(ctx, customer, "2")
	if !strings.Contains(reply, "*Our Products*") || !strings.Contains(reply, "Wireless Headphones") {
		t.Errorf("unexpected products reply: %q", reply)
	}

	reply = r.Respond(ctx, customer, "4")
	if !strings.Contains(reply, "*Your Account*") {
		t.Errorf("unexpected account reply: %q", reply)
	}
	if !strings.Contains(reply, "ana@example.com") {
		t.Errorf("expected email in account reply: %q", reply)
	}
	if strings.Contains(reply, "VIP Customer Status") {
		t.Errorf("zero-order customer must not be VIP: %q", reply)
	}
}

func TestResponderFallback(t *testing.T) {
	r := NewResponder(store.NewInMemoryStore())
	customer := &models.Customer{ID: "c1"}

	reply := r.Respond(context.Background(), customer, "xyzzy")
	if !strings.Contains(reply, "Reply with a number or type 'menu' anytime!") {
		t.Errorf("expected fallback menu, got %q", reply)
	}
}

func TestRouterDispatch(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	id := storetest.SeedCustomer(t, st, "ana@example.com", "", "+15551234567", "Ana")
	customer, _ := st.GetCustomerByID(ctx, id)

	sessions := newTestSessions()
	router := NewRouter(sessions, st)

	// Plain greeting goes to the responder.
	reply := router.HandleInbound(ctx, customer, "hello")
	if !strings.Contains(reply, "Hi Ana!") {
		t.Errorf("expected greeting, got %q", reply)
	}

	// Menu option 3 starts the support flow.
	reply = router.HandleInbound(ctx, customer, "3")
	if !strings.Contains(reply, "What type of issue are you having?") {
		t.Errorf("expected support flow start, got %q", reply)
	}

	// While the flow runs the router hands messages to it.
	reply = router.HandleInbound(ctx, customer, "1")
	if !strings.Contains(reply, "order issue") {
		t.Errorf("expected flow to consume the message, got %q", reply)
	}

	state := sessions.GetState(ctx, id)
	if state.CurrentFlow != FlowSupport {
		t.Errorf("expected active support flow, got %q", state.CurrentFlow)
	}
}

func TestRouterSupportKeyword(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	id := storetest.SeedCustomer(t, st, "", "", "+15551234567", "Ben")
	customer, _ := st.GetCustomerByID(ctx, id)

	router := NewRouter(newTestSessions(), st)

	reply := router.HandleInbound(ctx, customer, "I want to talk to an agent")
	if !strings.Contains(reply, "What type of issue are you having?") {
		t.Errorf("expected support flow start on keyword, got %q", reply)
	}
}

// downKV simulates an unreachable session backend.
type downKV struct{}

func (downKV) SetData(ctx context.Context, key string, data map[string]interface{}, ttlSeconds int) bool {
	return false
}
func (downKV) GetData(ctx context.Context, key string) map[string]interface{} { return nil }
func (downKV) DeleteData(ctx context.Context, key string) bool                { return false }
func (downKV) GetTTL(ctx context.Context, key string) int                     { return kvstore.TTLMissing }
func (downKV) Ping(ctx context.Context) error                                 { return errors.New("connection refused") }

func TestRouterStatelessFallback(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	id := storetest.SeedCustomer(t, st, "ana@example.com", "", "+15551234567", "Ana")
	customer, _ := st.GetCustomerByID(ctx, id)

	sessions := session.NewManager(downKV{}, session.DefaultSessionTimeout)
	router := NewRouter(sessions, st)

	// No session means no flow; the message is still answered.
	reply := router.HandleInbound(ctx, customer, "hello")
	if !strings.Contains(reply, "Hi Ana!") {
		t.Errorf("expected stateless greeting, got %q", reply)
	}

	// Menu choice 3 gets the support hint instead of the flow.
	reply = router.HandleInbound(ctx, customer, "3")
	if !strings.Contains(reply, "I'm here to help!") {
		t.Errorf("expected stateless support hint, got %q", reply)
	}
	if sessions.HasActiveSession(ctx, id) {
		t.Errorf("expected no session with the store down")
	}
}
