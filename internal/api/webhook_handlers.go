package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spurbey/smart-whatsapping/internal/identity"
	"github.com/spurbey/smart-whatsapping/internal/models"
)

// twilioWebhookHandler receives real WhatsApp messages from Twilio as form
// posts and replies inline with TwiML. Any processing failure returns an
// empty TwiML body so Twilio does not retry.
func (s *Server) twilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		slog.Error("Twilio webhook form parse failed", "error", err)
		writeTwimlResponse(w, "")
		return
	}

	fromPhone := strings.TrimPrefix(r.PostFormValue("From"), "whatsapp:")
	body := r.PostFormValue("Body")
	messageSid := r.PostFormValue("MessageSid")
	profileName := r.PostFormValue("ProfileName")
	slog.Info("Twilio webhook received", "from", fromPhone, "sid", messageSid)

	if fromPhone == "" {
		writeTwimlResponse(w, "")
		return
	}

	inbound := models.InboundMessage{
		MessageID:    messageSid,
		FromPhone:    fromPhone,
		MessageText:  body,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		CustomerName: profileName,
	}
	_, reply, err := s.processInbound(ctx, inbound)
	if err != nil {
		slog.Error("Twilio webhook processing failed", "error", err, "from", fromPhone)
		writeTwimlResponse(w, "")
		return
	}
	writeTwimlResponse(w, reply)
}

// whatsappJSONWebhookHandler is the JSON variant of the WhatsApp webhook,
// used for testing and non-Twilio integrations.
func (s *Server) whatsappJSONWebhookHandler(w http.ResponseWriter, r *http.Request) {
	var inbound models.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&inbound); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if inbound.FromPhone == "" {
		writeErrorResponse(w, http.StatusBadRequest, "from_phone is required")
		return
	}
	slog.Info("JSON WhatsApp webhook received", "from", inbound.FromPhone)

	customer, reply, err := s.processInbound(r.Context(), inbound)
	if err != nil {
		slog.Error("JSON WhatsApp webhook processing failed", "error", err, "from", inbound.FromPhone)
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":      "success",
		"customer_id": customer.ID,
		"response":    reply,
	})
}

// processInbound runs one inbound chat message through identity resolution,
// message persistence, and the conversation router, returning the reply text.
func (s *Server) processInbound(ctx context.Context, inbound models.InboundMessage) (*models.Customer, string, error) {
	first, last := splitName(inbound.CustomerName)
	customer, err := s.resolver.ResolveOrCreate(ctx, identity.Contact{
		Phone:     inbound.FromPhone,
		FirstName: first,
		LastName:  last,
		Source:    identity.SourceWhatsApp,
	})
	if err != nil {
		return nil, "", err
	}

	receivedAt := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, inbound.Timestamp); err == nil {
		receivedAt = t.UTC()
	}
	metadata, _ := json.Marshal(map[string]string{
		"from_phone":   inbound.FromPhone,
		"profile_name": inbound.CustomerName,
	})
	inboundMsg := &models.Message{
		CustomerID:        customer.ID,
		Channel:           models.ChannelWhatsApp,
		Direction:         models.DirectionInbound,
		Content:           inbound.MessageText,
		PlatformMessageID: inbound.MessageID,
		MetadataJSON:      string(metadata),
		ReceivedAt:        &receivedAt,
	}
	if err := s.store.CreateMessage(ctx, inboundMsg); err != nil {
		return nil, "", err
	}

	reply := s.router.HandleInbound(ctx, customer, inbound.MessageText)

	sentAt := time.Now().UTC()
	replyMetadata, _ := json.Marshal(map[string]string{
		"triggered_by_message": inboundMsg.ID,
		"response_type":        "automated",
	})
	replyMsg := &models.Message{
		CustomerID:   customer.ID,
		Channel:      models.ChannelWhatsApp,
		Direction:    models.DirectionOutbound,
		Content:      reply,
		MetadataJSON: string(replyMetadata),
		BotHandled:   true,
		SentAt:       &sentAt,
	}
	if err := s.store.CreateMessage(ctx, replyMsg); err != nil {
		return nil, "", err
	}

	slog.Info("Inbound WhatsApp message processed", "customerID", customer.ID)
	return customer, reply, nil
}

// shopifyWebhookHandler processes commerce order webhooks: it records the
// event, attaches the order to a customer, recomputes totals, fires the order
// automations, and closes out any open carts the order recovers.
func (s *Server) shopifyWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var payload models.OrderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if payload.OrderID == "" || payload.CustomerEmail == "" {
		writeErrorResponse(w, http.StatusBadRequest, "order_id and customer_email are required")
		return
	}
	slog.Info("Shopify webhook received", "orderID", payload.OrderID)

	raw, _ := json.Marshal(payload)
	event := &models.WebhookEvent{
		Source:    "shopify",
		EventType: "order.created",
		RawData:   string(raw),
	}
	if err := s.store.CreateWebhookEvent(ctx, event); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	customer, order, actions, err := s.processOrder(ctx, payload)
	if err != nil {
		slog.Error("Shopify webhook processing failed", "error", err, "orderID", payload.OrderID)
		if markErr := s.store.MarkWebhookEventProcessed(ctx, event.ID, err.Error()); markErr != nil {
			slog.Error("Webhook event error mark failed", "error", markErr, "eventID", event.ID)
		}
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.store.MarkWebhookEventProcessed(ctx, event.ID, ""); err != nil {
		slog.Error("Webhook event mark failed", "error", err, "eventID", event.ID)
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":            "success",
		"customer_id":       customer.ID,
		"order_id":          order.ID,
		"actions_triggered": actions,
	})
}

func (s *Server) processOrder(ctx context.Context, payload models.OrderPayload) (*models.Customer, *models.Order, []string, error) {
	customer, err := s.resolver.ResolveOrCreate(ctx, identity.Contact{
		Email:  payload.CustomerEmail,
		Source: identity.SourceShopify,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	orderDate := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, payload.CreatedAt); err == nil {
		orderDate = t.UTC()
	}
	items, _ := json.Marshal(payload.Items)
	order := &models.Order{
		CustomerID:      customer.ID,
		PlatformOrderID: payload.OrderID,
		Platform:        "shopify",
		TotalPrice:      payload.TotalPrice,
		Status:          payload.OrderStatus,
		ItemsJSON:       string(items),
		OrderDate:       orderDate,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, nil, nil, err
	}

	// Totals are always recomputed from the orders table, so replayed
	// webhooks cannot drift the counters.
	customer, err = s.store.RecalculateCustomerTotals(ctx, customer.ID)
	if err != nil {
		return nil, nil, nil, err
	}

	actions := orderAutomations(customer, order)
	actions = append(actions, s.recoverCarts(ctx, customer.ID, order.ID)...)

	if customer.WhatsAppPhone != "" && s.gateway != nil {
		if s.sendOrderConfirmation(ctx, customer, order, payload) {
			actions = append(actions, "whatsapp_confirmation_sent")
		}
	}
	return customer, order, actions, nil
}

// recoverCarts marks the customer's open carts as recovered by the order.
func (s *Server) recoverCarts(ctx context.Context, customerID, orderID string) []string {
	carts, err := s.store.ListUnrecoveredCartsByCustomer(ctx, customerID)
	if err != nil {
		slog.Error("Cart recovery lookup failed", "error", err, "customerID", customerID)
		return nil
	}
	var actions []string
	for _, cart := range carts {
		if err := s.campaigns.MarkCartRecovered(ctx, cart.ID, orderID); err != nil {
			slog.Error("Cart recovery failed", "error", err, "cartItemID", cart.ID)
			continue
		}
		actions = append(actions, "cart_recovered")
	}
	return actions
}

func (s *Server) sendOrderConfirmation(ctx context.Context, customer *models.Customer, order *models.Order, payload models.OrderPayload) bool {
	confirmation := "🎉 Order confirmed! Your order " + payload.OrderID +
		" for $" + strconv.FormatFloat(payload.TotalPrice, 'f', 2, 64) +
		" is being processed. We'll update you on the status!"

	result, err := s.gateway.SendMessage(ctx, customer.WhatsAppPhone, confirmation)
	if err != nil || result.Status != models.SendStatusSent {
		slog.Error("Order confirmation send failed", "error", err, "customerID", customer.ID)
		return false
	}

	sentAt := time.Now().UTC()
	metadata, _ := json.Marshal(map[string]string{
		"trigger":  "order_confirmation",
		"order_id": order.ID,
	})
	msg := &models.Message{
		CustomerID:        customer.ID,
		Channel:           models.ChannelWhatsApp,
		Direction:         models.DirectionOutbound,
		Content:           confirmation,
		PlatformMessageID: result.MessageID,
		MetadataJSON:      string(metadata),
		BotHandled:        true,
		SentAt:            &sentAt,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		slog.Error("Order confirmation record failed", "error", err, "customerID", customer.ID)
	}
	return true
}

// orderAutomations names the workflows a new order triggers, based on the
// customer's history and the order value.
func orderAutomations(customer *models.Customer, order *models.Order) []string {
	var actions []string
	if customer.OrderCount == 1 {
		actions = append(actions, "welcome_new_customer")
	}
	if order.TotalPrice > models.HighValueOrderAmount {
		actions = append(actions, "high_value_order_alert")
	}
	if customer.IsVIP() {
		actions = append(actions, "vip_customer_recognition")
	}
	if order.TotalPrice > models.PremiumOrderAmount {
		actions = append(actions, "premium_order_handling")
	}
	if customer.OrderCount > 1 && customer.OrderCount < models.VIPOrderThreshold {
		actions = append(actions, "returning_customer_thanks")
	}
	return actions
}

// splitName splits a display name into first and last parts at the first
// space.
func splitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	parts := strings.SplitN(name, " ", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}
