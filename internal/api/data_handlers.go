package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spurbey/smart-whatsapping/internal/models"
)

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"message":  "E-commerce Automation API with WhatsApp Integration",
		"version":  "1.0.0",
		"features": []string{"WhatsApp Integration", "Shopify Webhooks", "Web Dashboard"},
		"endpoints": map[string]string{
			"dashboard": "/dashboard",
			"health":    "/health",
		},
	})
}

// healthHandler reports per-service health. A failing database degrades the
// overall status instead of failing the endpoint.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "healthy"
	services := map[string]interface{}{}

	if err := s.store.Ping(ctx); err != nil {
		status = "degraded"
		services["database"] = map[string]string{"status": "unhealthy", "error": err.Error()}
	} else {
		counts, err := s.store.GetSegmentCounts(ctx)
		db := map[string]interface{}{"status": "healthy"}
		if err == nil {
			db["stats"] = map[string]int{"customers": counts.Total}
		}
		services["database"] = db
	}

	if s.gateway != nil {
		services["whatsapp"] = map[string]string{"status": "healthy", "provider": "twilio"}
	} else {
		services["whatsapp"] = map[string]string{"status": "unavailable", "note": "WhatsApp service not configured"}
	}

	if s.sessions != nil {
		services["sessions"] = map[string]string{"status": "healthy"}
	} else {
		services["sessions"] = map[string]string{"status": "unavailable"}
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  services,
	})
}

func (s *Server) dashboardStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetDashboardStats(r.Context())
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	topCustomers := make([]map[string]interface{}, 0, len(stats.TopCustomers))
	for _, c := range stats.TopCustomers {
		topCustomers = append(topCustomers, map[string]interface{}{
			"name":        c.FullName(),
			"email":       c.Email,
			"total_spent": c.TotalSpent,
			"order_count": c.OrderCount,
		})
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"totals":        stats.Totals,
		"recent_24h":    stats.Recent,
		"top_customers": topCustomers,
		"services": map[string]bool{
			"whatsapp_available": s.gateway != nil,
			"database_connected": true,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) listCustomersHandler(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)
	customers, err := s.store.ListCustomers(r.Context(), limit)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]interface{}, 0, len(customers))
	for _, c := range customers {
		out = append(out, map[string]interface{}{
			"id":             c.ID,
			"name":           c.FullName(),
			"email":          c.Email,
			"phone":          c.Phone,
			"whatsapp_phone": c.WhatsAppPhone,
			"orders":         c.OrderCount,
			"total_spent":    c.TotalSpent,
			"created_at":     c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"count":     len(out),
		"customers": out,
	})
}

func (s *Server) customerDetailsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := chi.URLParam(r, "customerID")

	customer, err := s.store.GetCustomerByID(ctx, customerID)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if customer == nil {
		writeErrorResponse(w, http.StatusNotFound, "Customer not found")
		return
	}

	orders, err := s.store.ListOrdersByCustomer(ctx, customerID, 100)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	messages, err := s.store.ListMessagesByCustomer(ctx, customerID)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	orderViews := make([]map[string]interface{}, 0, len(orders))
	for _, o := range orders {
		orderViews = append(orderViews, map[string]interface{}{
			"id":       o.ID,
			"order_id": o.PlatformOrderID,
			"platform": o.Platform,
			"total":    o.TotalPrice,
			"status":   o.Status,
			"date":     o.OrderDate.UTC().Format(time.RFC3339),
			"items":    decodeItems(o.ItemsJSON),
		})
	}
	messageViews := make([]map[string]interface{}, 0, len(messages))
	for _, m := range messages {
		messageViews = append(messageViews, map[string]interface{}{
			"id":          m.ID,
			"direction":   m.Direction,
			"content":     m.Content,
			"channel":     m.Channel,
			"timestamp":   messageTimestamp(m),
			"bot_handled": m.BotHandled,
		})
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"customer": map[string]interface{}{
			"id":             customer.ID,
			"name":           customer.FullName(),
			"email":          customer.Email,
			"phone":          customer.Phone,
			"whatsapp_phone": customer.WhatsAppPhone,
			"total_spent":    customer.TotalSpent,
			"order_count":    customer.OrderCount,
			"created_at":     customer.CreatedAt.UTC().Format(time.RFC3339),
		},
		"orders":   orderViews,
		"messages": messageViews,
	})
}

func (s *Server) customerSegmentsHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.GetSegmentCounts(r.Context())
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"segments": map[string]interface{}{
			"all": map[string]interface{}{
				"total":            counts.Total,
				"whatsapp_enabled": counts.WhatsAppEnabled,
			},
			"vip": map[string]interface{}{
				"total":       counts.VIP,
				"description": "Customers with 3+ orders",
			},
			"new": map[string]interface{}{
				"total":       counts.New,
				"description": "Customers with 0 orders",
			},
		},
	})
}

func (s *Server) recentMessagesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := queryLimit(r, 50)
	messages, err := s.store.ListRecentMessages(ctx, limit)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	names := s.customerNames(ctx, messageCustomerIDs(messages))
	out := make([]map[string]interface{}, 0, len(messages))
	for _, m := range messages {
		out = append(out, map[string]interface{}{
			"id":            m.ID,
			"customer_id":   m.CustomerID,
			"customer_name": names[m.CustomerID],
			"direction":     m.Direction,
			"content":       m.Content,
			"channel":       m.Channel,
			"timestamp":     messageTimestamp(m),
			"bot_handled":   m.BotHandled,
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"total":    len(out),
		"messages": out,
	})
}

func (s *Server) recentOrdersHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := queryLimit(r, 20)
	orders, err := s.store.ListRecentOrders(ctx, limit)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.CustomerID)
	}
	names := s.customerNames(ctx, ids)
	emails := s.customerEmails(ctx, ids)

	out := make([]map[string]interface{}, 0, len(orders))
	for _, o := range orders {
		out = append(out, map[string]interface{}{
			"id":             o.ID,
			"order_id":       o.PlatformOrderID,
			"customer_name":  names[o.CustomerID],
			"customer_email": emails[o.CustomerID],
			"platform":       o.Platform,
			"total":          o.TotalPrice,
			"status":         o.Status,
			"date":           o.OrderDate.UTC().Format(time.RFC3339),
			"items":          decodeItems(o.ItemsJSON),
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"total":  len(out),
		"orders": out,
	})
}

func (s *Server) runCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	result, err := s.campaigns.Run(r.Context())
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

func (s *Server) seedCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	created, err := s.campaigns.SeedCartAbandonmentCampaigns(r.Context())
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":            "success",
		"created_campaigns": created,
	})
}

// customerNames resolves customer ids to display names, deduplicating
// lookups. Unknown ids map to "Unknown".
func (s *Server) customerNames(ctx context.Context, ids []string) map[string]string {
	names := make(map[string]string)
	for _, id := range ids {
		if _, ok := names[id]; ok {
			continue
		}
		names[id] = "Unknown"
		customer, err := s.store.GetCustomerByID(ctx, id)
		if err != nil {
			slog.Error("Customer name lookup failed", "error", err, "customerID", id)
			continue
		}
		if customer != nil {
			names[id] = customer.FullName()
		}
	}
	return names
}

func (s *Server) customerEmails(ctx context.Context, ids []string) map[string]string {
	emails := make(map[string]string)
	for _, id := range ids {
		if _, ok := emails[id]; ok {
			continue
		}
		emails[id] = ""
		customer, err := s.store.GetCustomerByID(ctx, id)
		if err != nil {
			continue
		}
		if customer != nil {
			emails[id] = customer.Email
		}
	}
	return emails
}

func messageCustomerIDs(messages []models.Message) []string {
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.CustomerID)
	}
	return ids
}

// messageTimestamp picks the most meaningful timestamp for display.
func messageTimestamp(m models.Message) string {
	switch {
	case m.SentAt != nil:
		return m.SentAt.UTC().Format(time.RFC3339)
	case m.ReceivedAt != nil:
		return m.ReceivedAt.UTC().Format(time.RFC3339)
	default:
		return m.CreatedAt.UTC().Format(time.RFC3339)
	}
}

func decodeItems(itemsJSON string) []interface{} {
	if itemsJSON == "" {
		return []interface{}{}
	}
	var items []interface{}
	if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil {
		return []interface{}{}
	}
	return items
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
