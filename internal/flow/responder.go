package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spurbey/smart-whatsapping/internal/models"
	"github.com/spurbey/smart-whatsapping/internal/store"
)

// mainMenuOptions is how many numbered choices the greeting menu offers.
const mainMenuOptions = 4

// catalogProduct is one entry of the static demo catalog.
type catalogProduct struct {
	Name  string
	Price float64
	SKU   string
}

// TODO: load the catalog from the commerce platform instead of this static list.
var catalog = []catalogProduct{
	{Name: "Wireless Headphones", Price: 99.99, SKU: "WH001"},
	{Name: "Bluetooth Speaker", Price: 79.99, SKU: "BS002"},
	{Name: "Phone Case", Price: 24.99, SKU: "PC003"},
	{Name: "Charging Cable", Price: 19.99, SKU: "CC004"},
	{Name: "Power Bank", Price: 49.99, SKU: "PB005"},
}

// Responder generates menu-driven replies for customers with no active flow.
type Responder struct {
	store store.Store
}

// NewResponder creates an idle responder backed by the relational store.
func NewResponder(st store.Store) *Responder {
	return &Responder{store: st}
}

// Respond generates the reply for one message outside any flow: numbered
// main-menu choices first, then keyword routing, then the menu fallback.
func (r *Responder) Respond(ctx context.Context, customer *models.Customer, messageText string) string {
	text := strings.ToLower(strings.TrimSpace(messageText))
	name := customer.DisplayName()

	if choice := DetectChoice(messageText, mainMenuOptions); choice > 0 {
		return r.handleMenuChoice(ctx, choice, customer)
	}

	switch {
	case containsAny(text, "hi", "hello", "hey", "menu", "start", "help"):
		return fmt.Sprintf("Hi %s! 👋 Welcome!\n\nWhat can I help you with today?\n\n1. 📦 My Orders\n2. 🛍️ Products\n3. 🆘 Support\n4. 👤 My Account\n\nReply with the number of your choice.", name)
	case containsAny(text, "order", "status", "track", "shipping"):
		return r.ordersReply(ctx, customer)
	case containsAny(text, "product", "catalog", "buy", "shop", "price"):
		return r.productsReply(customer)
	case containsAny(text, "account", "profile", "info", "details"):
		return r.accountReply(customer)
	case containsAny(text, "return", "refund", "exchange", "cancel"):
		return fmt.Sprintf("Hi %s! I can help with returns. 🔄\n\n1. ✅ Yes, start return process\n2. ❌ No, just asking\n\nWhich option applies to you?", name)
	case containsAny(text, "thank", "thanks", "appreciate"):
		return fmt.Sprintf("You're welcome, %s! 😊\n\nAnything else I can help with? Type 'menu' to see all options.", name)
	default:
		return fmt.Sprintf("Thanks for your message, %s! 💬\n\nI want to help you properly. Here's what I can do:\n\n1. 📦 Check Orders\n2. 🛍️ Browse Products\n3. 🆘 Get Support\n4. 👤 Account Info\n\nReply with a number or type 'menu' anytime!", name)
	}
}

func (r *Responder) handleMenuChoice(ctx context.Context, choice int, customer *models.Customer) string {
	switch choice {
	case 1:
		return r.ordersReply(ctx, customer)
	case 2:
		return r.productsReply(customer)
	case 3:
		// With sessions available the router starts the support flow before
		// the menu is consulted; this branch answers choice 3 when the
		// session store is down and no flow can run.
		return fmt.Sprintf("Hi %s! 🆘\n\nI'm here to help! You can ask me about:\n• Order issues\n• Product questions\n• Returns & refunds\n• Account problems\n\nWhat do you need help with?", customer.DisplayName())
	case 4:
		return r.accountReply(customer)
	default:
		return "Sorry, I didn't understand that choice. Please reply with 1, 2, 3, or 4."
	}
}

func (r *Responder) ordersReply(ctx context.Context, customer *models.Customer) string {
	orders, err := r.store.ListOrdersByCustomer(ctx, customer.ID, 5)
	if err != nil {
		slog.Error("Responder orders lookup failed", "error", err, "customerID", customer.ID)
		orders = nil
	}
	if len(orders) == 0 {
		return fmt.Sprintf("Hi %s! 📦\n\nI don't see any orders for you yet. Ready to place your first order? Check out our products!", customer.DisplayName())
	}

	var b strings.Builder
	b.WriteString("*Your Recent Orders* 📦\n\n")
	for i, order := range orders {
		emoji := "⏳"
		switch order.Status {
		case "delivered":
			emoji = "✅"
		case "shipped":
			emoji = "🚚"
		}
		fmt.Fprintf(&b, "%d. Order %s\n", i+1, order.PlatformOrderID)
		fmt.Fprintf(&b, "   %s %s\n", emoji, titleCase(order.Status))
		fmt.Fprintf(&b, "   💰 $%.2f\n", order.TotalPrice)
		fmt.Fprintf(&b, "   📅 %s\n\n", order.OrderDate.Format("Jan 02, 2006"))
	}
	b.WriteString("Need help with any of these orders? Just ask!")
	return b.String()
}

func (r *Responder) productsReply(customer *models.Customer) string {
	var b strings.Builder
	b.WriteString("*Our Products* 🛍️\n\n")
	for i, p := range catalog {
		fmt.Fprintf(&b, "%d. *%s*\n", i+1, p.Name)
		fmt.Fprintf(&b, "   💰 $%.2f\n", p.Price)
		fmt.Fprintf(&b, "   🆔 %s\n\n", p.SKU)
	}
	b.WriteString("Interested in any product? Just tell me the name or number!")
	return b.String()
}

func (r *Responder) accountReply(customer *models.Customer) string {
	phone := customer.WhatsAppPhone
	if phone == "" {
		phone = customer.Phone
	}

	var b strings.Builder
	b.WriteString("*Your Account* 👤\n\n")
	fmt.Fprintf(&b, "📝 Name: %s\n", orDefault(strings.TrimSpace(customer.FirstName+" "+customer.LastName), "Not set"))
	fmt.Fprintf(&b, "📧 Email: %s\n", orDefault(customer.Email, "Not set"))
	fmt.Fprintf(&b, "📱 Phone: %s\n", orDefault(phone, "Not set"))
	fmt.Fprintf(&b, "🛒 Total Orders: %d\n", customer.OrderCount)
	fmt.Fprintf(&b, "💰 Total Spent: $%.2f\n", customer.TotalSpent)
	fmt.Fprintf(&b, "📅 Customer Since: %s\n\n", customer.CreatedAt.Format("January 2006"))
	if customer.IsVIP() {
		b.WriteString("⭐ *VIP Customer Status* - Thank you for your loyalty!\n\n")
	}
	b.WriteString("Need to update any information? Just let me know!")
	return b.String()
}

// DetectChoice reports which numbered option a message selects: the whole
// message as a number, or a leading digit. Returns 0 when no valid choice.
func DetectChoice(messageText string, optionsCount int) int {
	text := strings.TrimSpace(messageText)
	if text == "" {
		return 0
	}

	if choice, err := strconv.Atoi(text); err == nil && choice >= 1 && choice <= optionsCount {
		return choice
	}

	// "10 please" still counts as option 1 when only single-digit options exist.
	if text[0] >= '1' && text[0] <= '9' {
		choice := int(text[0] - '0')
		if choice <= optionsCount {
			return choice
		}
	}
	return 0
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
