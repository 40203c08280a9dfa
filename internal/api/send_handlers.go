package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/spurbey/smart-whatsapping/internal/identity"
	"github.com/spurbey/smart-whatsapping/internal/messaging"
	"github.com/spurbey/smart-whatsapping/internal/models"
	"github.com/spurbey/smart-whatsapping/internal/store"
)

// sendMessageRequest is the payload for /send-whatsapp.
type sendMessageRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// interactiveMessageRequest is the payload for /send-interactive.
type interactiveMessageRequest struct {
	Phone   string   `json:"phone"`
	Message string   `json:"message"`
	Buttons []string `json:"buttons"`
}

// menuMessageRequest is the payload for /send-menu.
type menuMessageRequest struct {
	Phone    string                  `json:"phone"`
	Title    string                  `json:"title"`
	Sections []messaging.MenuSection `json:"sections"`
}

// broadcastRequest is the payload for /broadcast.
type broadcastRequest struct {
	Message          string   `json:"message"`
	CustomerSegments []string `json:"customer_segments,omitempty"`
}

// sendWhatsAppHandler sends one manual WhatsApp message and records it
// against the resolved customer.
func (s *Server) sendWhatsAppHandler(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Phone == "" || req.Message == "" {
		writeErrorResponse(w, http.StatusBadRequest, "phone and message are required")
		return
	}

	result, err := s.gateway.SendMessage(r.Context(), req.Phone, req.Message)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result.Status == models.SendStatusSent {
		s.recordManualSend(r, req.Phone, req.Message, result.MessageID, map[string]interface{}{
			"send_type":    "manual",
			"api_endpoint": "/send-whatsapp",
		})
	}
	writeJSONResponse(w, http.StatusOK, result)
}

// sendInteractiveHandler sends a message with numbered quick-reply options.
func (s *Server) sendInteractiveHandler(w http.ResponseWriter, r *http.Request) {
	var req interactiveMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Phone == "" || req.Message == "" {
		writeErrorResponse(w, http.StatusBadRequest, "phone and message are required")
		return
	}

	result, err := s.gateway.SendInteractive(r.Context(), req.Phone, req.Message, req.Buttons)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result.Status == models.SendStatusSent {
		s.recordManualSend(r, req.Phone, req.Message, result.MessageID, map[string]interface{}{
			"message_type": "interactive_buttons",
			"buttons":      req.Buttons,
		})
	}
	writeJSONResponse(w, http.StatusOK, result)
}

// sendMenuHandler sends a sectioned list menu.
func (s *Server) sendMenuHandler(w http.ResponseWriter, r *http.Request) {
	var req menuMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Phone == "" || req.Title == "" {
		writeErrorResponse(w, http.StatusBadRequest, "phone and title are required")
		return
	}

	result, err := s.gateway.SendMenu(r.Context(), req.Phone, req.Title, req.Sections)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result.Status == models.SendStatusSent {
		s.recordManualSend(r, req.Phone, req.Title, result.MessageID, map[string]interface{}{
			"message_type": "menu",
			"title":        req.Title,
			"sections":     req.Sections,
		})
	}
	writeJSONResponse(w, http.StatusOK, result)
}

// broadcastHandler sends one message to every customer in the requested
// segments and records each successful delivery.
func (s *Server) broadcastHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		writeErrorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	customers, err := s.segmentCustomers(ctx, req.CustomerSegments)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(customers) == 0 {
		writeJSONResponse(w, http.StatusOK, map[string]string{
			"status":  "error",
			"message": "No customers found for selected segments",
		})
		return
	}

	result := messaging.Broadcast(ctx, s.gateway, customers, req.Message)

	sentAt := time.Now().UTC()
	metadata, _ := json.Marshal(map[string]interface{}{
		"message_type": "broadcast",
		"segments":     req.CustomerSegments,
	})
	sent := make(map[string]bool, len(result.Successful))
	for _, phone := range result.Successful {
		sent[phone] = true
	}
	for _, customer := range customers {
		if !sent[customer.WhatsAppPhone] {
			continue
		}
		msg := &models.Message{
			CustomerID:   customer.ID,
			Channel:      models.ChannelWhatsApp,
			Direction:    models.DirectionOutbound,
			Content:      req.Message,
			MetadataJSON: string(metadata),
			SentAt:       &sentAt,
		}
		if err := s.store.CreateMessage(ctx, msg); err != nil {
			slog.Error("Broadcast message record failed", "error", err, "customerID", customer.ID)
		}
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":           "success",
		"total_customers":  len(customers),
		"broadcast_result": result,
	})
}

// segmentCustomers resolves segment names to a deduplicated customer list.
// Empty segments, or any list containing "all", mean every WhatsApp-enabled
// customer.
func (s *Server) segmentCustomers(ctx context.Context, segments []string) ([]models.Customer, error) {
	if len(segments) == 0 {
		return s.store.ListCustomersBySegment(ctx, store.SegmentAll)
	}
	for _, segment := range segments {
		if segment == store.SegmentAll {
			return s.store.ListCustomersBySegment(ctx, store.SegmentAll)
		}
	}

	seen := make(map[string]bool)
	var customers []models.Customer
	for _, segment := range segments {
		batch, err := s.store.ListCustomersBySegment(ctx, segment)
		if err != nil {
			return nil, err
		}
		for _, customer := range batch {
			if seen[customer.ID] {
				continue
			}
			seen[customer.ID] = true
			customers = append(customers, customer)
		}
	}
	return customers, nil
}

// recordManualSend persists an operator-initiated outbound message.
func (s *Server) recordManualSend(r *http.Request, phone, content, messageID string, metadata map[string]interface{}) {
	ctx := r.Context()
	customer, err := s.resolver.ResolveOrCreate(ctx, identity.Contact{
		Phone:  phone,
		Source: identity.SourceWhatsApp,
	})
	if err != nil {
		slog.Error("Manual send customer resolution failed", "error", err, "phone", phone)
		return
	}

	sentAt := time.Now().UTC()
	metadataJSON, _ := json.Marshal(metadata)
	msg := &models.Message{
		CustomerID:        customer.ID,
		Channel:           models.ChannelWhatsApp,
		Direction:         models.DirectionOutbound,
		Content:           content,
		PlatformMessageID: messageID,
		MetadataJSON:      string(metadataJSON),
		SentAt:            &sentAt,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		slog.Error("Manual send record failed", "error", err, "customerID", customer.ID)
	}
}
