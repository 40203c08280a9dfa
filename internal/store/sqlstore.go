// Package store provides storage backends for smart-whatsapping.
//
// This file implements the query layer shared by the SQLite and Postgres
// backends. Statements are written with "?" placeholders and rebound to the
// "$n" form for Postgres.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spurbey/smart-whatsapping/internal/models"
)

// Supported SQL dialects.
const (
	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"
)

// SQLStore implements Store for both supported dialects.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// rebind converts "?" placeholders to "$n" for the Postgres dialect.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// --- Customers ---

const customerColumns = `id, email, phone, whatsapp_phone, first_name, last_name, total_spent, order_count, created_at, updated_at`

// CreateCustomer inserts a new customer, assigning an id and timestamps when
// absent. The assigned id is written back to c.
func (s *SQLStore) CreateCustomer(ctx context.Context, c *models.Customer) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO customers (`+customerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		c.ID, nilIfEmpty(c.Email), nilIfEmpty(c.Phone), nilIfEmpty(c.WhatsAppPhone),
		nilIfEmpty(c.FirstName), nilIfEmpty(c.LastName), c.TotalSpent, c.OrderCount,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		slog.Error("SQLStore CreateCustomer failed", "error", err, "customerID", c.ID)
		return fmt.Errorf("failed to insert customer: %w", err)
	}
	slog.Debug("SQLStore CreateCustomer succeeded", "customerID", c.ID)
	return nil
}

// GetCustomerByID looks up one customer by primary key.
func (s *SQLStore) GetCustomerByID(ctx context.Context, id string) (*models.Customer, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+customerColumns+` FROM customers WHERE id = ?`), id)
	return scanCustomerRow(row)
}

// GetCustomerByEmail looks up one customer by exact email match.
func (s *SQLStore) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+customerColumns+` FROM customers WHERE email = ?`), email)
	return scanCustomerRow(row)
}

// GetCustomerByPhoneOrWhatsApp looks up one customer whose phone or WhatsApp
// number equals the given normalized number.
func (s *SQLStore) GetCustomerByPhoneOrWhatsApp(ctx context.Context, phone string) (*models.Customer, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+customerColumns+` FROM customers WHERE phone = ? OR whatsapp_phone = ?`), phone, phone)
	return scanCustomerRow(row)
}

// UpdateCustomer persists identifier, name, and totals fields.
func (s *SQLStore) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	c.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE customers SET email = ?, phone = ?, whatsapp_phone = ?, first_name = ?, last_name = ?, total_spent = ?, order_count = ?, updated_at = ? WHERE id = ?`),
		nilIfEmpty(c.Email), nilIfEmpty(c.Phone), nilIfEmpty(c.WhatsAppPhone),
		nilIfEmpty(c.FirstName), nilIfEmpty(c.LastName), c.TotalSpent, c.OrderCount,
		c.UpdatedAt, c.ID,
	)
	if err != nil {
		slog.Error("SQLStore UpdateCustomer failed", "error", err, "customerID", c.ID)
		return fmt.Errorf("failed to update customer %s: %w", c.ID, err)
	}
	slog.Debug("SQLStore UpdateCustomer succeeded", "customerID", c.ID)
	return nil
}

// ListCustomers returns customers ordered by creation time descending.
func (s *SQLStore) ListCustomers(ctx context.Context, limit int) ([]models.Customer, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+customerColumns+` FROM customers ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		slog.Error("SQLStore ListCustomers query failed", "error", err)
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()
	return scanCustomers(rows)
}

// ListCustomersBySegment returns WhatsApp-reachable customers matching a
// segment: "all", "vip" (order_count >= 3), or "new" (order_count = 0).
func (s *SQLStore) ListCustomersBySegment(ctx context.Context, segment string) ([]models.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE whatsapp_phone IS NOT NULL`
	switch segment {
	case SegmentAll:
	case SegmentVIP:
		query += ` AND order_count >= ` + strconv.Itoa(models.VIPOrderThreshold)
	case SegmentNew:
		query += ` AND order_count = 0`
	default:
		return nil, fmt.Errorf("unknown customer segment %q", segment)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		slog.Error("SQLStore ListCustomersBySegment query failed", "error", err, "segment", segment)
		return nil, fmt.Errorf("failed to query segment %s: %w", segment, err)
	}
	defer rows.Close()
	return scanCustomers(rows)
}

// GetSegmentCounts returns customer segment sizes for the segments endpoint.
func (s *SQLStore) GetSegmentCounts(ctx context.Context) (SegmentCounts, error) {
	var counts SegmentCounts
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(whatsapp_phone),
		       SUM(CASE WHEN order_count >= `+strconv.Itoa(models.VIPOrderThreshold)+` THEN 1 ELSE 0 END),
		       SUM(CASE WHEN order_count = 0 THEN 1 ELSE 0 END)
		FROM customers`)
	var vip, newCount sql.NullInt64
	if err := row.Scan(&counts.Total, &counts.WhatsAppEnabled, &vip, &newCount); err != nil {
		slog.Error("SQLStore GetSegmentCounts failed", "error", err)
		return counts, fmt.Errorf("failed to count segments: %w", err)
	}
	counts.VIP = int(vip.Int64)
	counts.New = int(newCount.Int64)
	return counts, nil
}

// RecalculateCustomerTotals recomputes order_count and total_spent from the
// orders table. Running it repeatedly with no new orders is a no-op.
func (s *SQLStore) RecalculateCustomerTotals(ctx context.Context, customerID string) (*models.Customer, error) {
	customer, err := s.GetCustomerByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT COUNT(id), COALESCE(SUM(total_price), 0) FROM orders WHERE customer_id = ?`), customerID)
	var orderCount int
	var totalSpent float64
	if err := row.Scan(&orderCount, &totalSpent); err != nil {
		slog.Error("SQLStore RecalculateCustomerTotals scan failed", "error", err, "customerID", customerID)
		return nil, fmt.Errorf("failed to aggregate orders for %s: %w", customerID, err)
	}

	customer.OrderCount = orderCount
	customer.TotalSpent = totalSpent
	if err := s.UpdateCustomer(ctx, customer); err != nil {
		return nil, err
	}
	slog.Debug("SQLStore RecalculateCustomerTotals succeeded", "customerID", customerID, "orders", orderCount, "total", totalSpent)
	return customer, nil
}

// --- Orders ---

const orderColumns = `id, customer_id, platform_order_id, platform, total_price, currency, status, fulfillment_status, items_json, order_date, created_at, updated_at`

// CreateOrder inserts a new order, assigning an id and timestamps when absent.
func (s *SQLStore) CreateOrder(ctx context.Context, o *models.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	if o.Currency == "" {
		o.Currency = "USD"
	}

	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		o.ID, o.CustomerID, o.PlatformOrderID, o.Platform, o.TotalPrice, o.Currency,
		o.Status, nilIfEmpty(o.FulfillmentStatus), nilIfEmpty(o.ItemsJSON),
		o.OrderDate, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		slog.Error("SQLStore CreateOrder failed", "error", err, "orderID", o.ID)
		return fmt.Errorf("failed to insert order: %w", err)
	}
	slog.Debug("SQLStore CreateOrder succeeded", "orderID", o.ID, "customerID", o.CustomerID)
	return nil
}

// ListOrdersByCustomer returns a customer's orders, most recent first.
func (s *SQLStore) ListOrdersByCustomer(ctx context.Context, customerID string, limit int) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = ? ORDER BY order_date DESC LIMIT ?`), customerID, limit)
	if err != nil {
		slog.Error("SQLStore ListOrdersByCustomer query failed", "error", err, "customerID", customerID)
		return nil, fmt.Errorf("failed to query orders for %s: %w", customerID, err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// ListRecentOrders returns the newest orders across all customers.
func (s *SQLStore) ListRecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		slog.Error("SQLStore ListRecentOrders query failed", "error", err)
		return nil, fmt.Errorf("failed to query recent orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// --- Messages ---

const messageColumns = `id, customer_id, channel, direction, content, platform_message_id, metadata_json, workflow_id, bot_handled, sent_at, received_at, created_at`

// CreateMessage inserts a message row, assigning an id and created_at when absent.
func (s *SQLStore) CreateMessage(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		m.ID, m.CustomerID, string(m.Channel), string(m.Direction), m.Content,
		nilIfEmpty(m.PlatformMessageID), nilIfEmpty(m.MetadataJSON), nilIfEmpty(m.WorkflowID),
		m.BotHandled, m.SentAt, m.ReceivedAt, m.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLStore CreateMessage failed", "error", err, "customerID", m.CustomerID)
		return fmt.Errorf("failed to insert message: %w", err)
	}
	slog.Debug("SQLStore CreateMessage succeeded", "messageID", m.ID, "direction", m.Direction)
	return nil
}

// ListRecentMessages returns the newest messages across all customers.
func (s *SQLStore) ListRecentMessages(ctx context.Context, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+messageColumns+` FROM messages ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		slog.Error("SQLStore ListRecentMessages query failed", "error", err)
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListMessagesByCustomer returns a customer's full message history, oldest first.
func (s *SQLStore) ListMessagesByCustomer(ctx context.Context, customerID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+messageColumns+` FROM messages WHERE customer_id = ? ORDER BY created_at ASC`), customerID)
	if err != nil {
		slog.Error("SQLStore ListMessagesByCustomer query failed", "error", err, "customerID", customerID)
		return nil, fmt.Errorf("failed to query messages for %s: %w", customerID, err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// --- Webhook events ---

// CreateWebhookEvent logs a raw inbound webhook.
func (s *SQLStore) CreateWebhookEvent(ctx context.Context, e *models.WebhookEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO webhook_events (id, source, event_type, raw_data, processed, processing_error, received_at, processed_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.Source, e.EventType, e.RawData, e.Processed, nilIfEmpty(e.ProcessingError), e.ReceivedAt, e.ProcessedAt,
	)
	if err != nil {
		slog.Error("SQLStore CreateWebhookEvent failed", "error", err, "source", e.Source)
		return fmt.Errorf("failed to insert webhook event: %w", err)
	}
	return nil
}

// MarkWebhookEventProcessed flags an event as handled, recording the error
// text when processing failed.
func (s *SQLStore) MarkWebhookEventProcessed(ctx context.Context, id string, processingError string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE webhook_events SET processed = ?, processing_error = ?, processed_at = ? WHERE id = ?`),
		processingError == "", nilIfEmpty(processingError), time.Now().UTC(), id,
	)
	if err != nil {
		slog.Error("SQLStore MarkWebhookEventProcessed failed", "error", err, "eventID", id)
		return fmt.Errorf("failed to mark webhook event %s: %w", id, err)
	}
	return nil
}

// --- Cart items ---

const cartColumns = `id, customer_id, product_name, product_price, quantity, added_at, is_recovered, recovered_at, recovered_order_id, campaign_sent_count, last_campaign_sent`

// CreateCartItem inserts a cart line, assigning an id and added_at when absent.
func (s *SQLStore) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}

	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO cart_items (`+cartColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		item.ID, item.CustomerID, item.ProductName, item.ProductPrice, item.Quantity,
		item.AddedAt, item.IsRecovered, item.RecoveredAt, nilIfEmpty(item.RecoveredOrderID),
		item.CampaignSentCount, item.LastCampaignSent,
	)
	if err != nil {
		slog.Error("SQLStore CreateCartItem failed", "error", err, "customerID", item.CustomerID)
		return fmt.Errorf("failed to insert cart item: %w", err)
	}
	return nil
}

// GetCartItem looks up one cart line by id.
func (s *SQLStore) GetCartItem(ctx context.Context, id string) (*models.CartItem, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+cartColumns+` FROM cart_items WHERE id = ?`), id)
	item, err := scanCartItemRow(row)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListAbandonedCartsInWindow returns not-yet-recovered cart lines whose
// added_at falls inside [start, end].
func (s *SQLStore) ListAbandonedCartsInWindow(ctx context.Context, start, end time.Time) ([]models.CartItem, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+cartColumns+` FROM cart_items WHERE added_at >= ? AND added_at <= ? AND is_recovered = ?`),
		start, end, false)
	if err != nil {
		slog.Error("SQLStore ListAbandonedCartsInWindow query failed", "error", err)
		return nil, fmt.Errorf("failed to query abandoned carts: %w", err)
	}
	defer rows.Close()
	return scanCartItems(rows)
}

// ListUnrecoveredCartsByCustomer returns a customer's open cart lines.
func (s *SQLStore) ListUnrecoveredCartsByCustomer(ctx context.Context, customerID string) ([]models.CartItem, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+cartColumns+` FROM cart_items WHERE customer_id = ? AND is_recovered = ?`), customerID, false)
	if err != nil {
		slog.Error("SQLStore ListUnrecoveredCartsByCustomer query failed", "error", err, "customerID", customerID)
		return nil, fmt.Errorf("failed to query carts for %s: %w", customerID, err)
	}
	defer rows.Close()
	return scanCartItems(rows)
}

// RecordCartCampaignSend bumps the per-cart send counter and timestamp.
func (s *SQLStore) RecordCartCampaignSend(ctx context.Context, cartItemID string, sentAt time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE cart_items SET campaign_sent_count = campaign_sent_count + 1, last_campaign_sent = ? WHERE id = ?`),
		sentAt, cartItemID,
	)
	if err != nil {
		slog.Error("SQLStore RecordCartCampaignSend failed", "error", err, "cartItemID", cartItemID)
		return fmt.Errorf("failed to record campaign send for cart %s: %w", cartItemID, err)
	}
	return nil
}

// MarkCartRecovered flags a cart line as converted by the given order.
func (s *SQLStore) MarkCartRecovered(ctx context.Context, cartItemID, orderID string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE cart_items SET is_recovered = ?, recovered_at = ?, recovered_order_id = ? WHERE id = ?`),
		true, time.Now().UTC(), orderID, cartItemID,
	)
	if err != nil {
		slog.Error("SQLStore MarkCartRecovered failed", "error", err, "cartItemID", cartItemID)
		return fmt.Errorf("failed to mark cart %s recovered: %w", cartItemID, err)
	}
	slog.Debug("SQLStore MarkCartRecovered succeeded", "cartItemID", cartItemID, "orderID", orderID)
	return nil
}

// --- Campaigns ---

const campaignColumns = `id, name, campaign_type, trigger_delay_minutes, message_template, offer_type, offer_value, max_sends_per_customer, is_active, created_at`

// CreateCampaign inserts a campaign definition.
func (s *SQLStore) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO campaigns (`+campaignColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.Name, c.CampaignType, c.TriggerDelayMinutes, c.MessageTemplate,
		nilIfEmpty(string(c.OfferType)), c.OfferValue, c.MaxSendsPerCustomer, c.IsActive, c.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLStore CreateCampaign failed", "error", err, "name", c.Name)
		return fmt.Errorf("failed to insert campaign %s: %w", c.Name, err)
	}
	slog.Debug("SQLStore CreateCampaign succeeded", "name", c.Name)
	return nil
}

// GetCampaignByName looks up one campaign by its unique name.
func (s *SQLStore) GetCampaignByName(ctx context.Context, name string) (*models.Campaign, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+campaignColumns+` FROM campaigns WHERE name = ?`), name)
	return scanCampaignRow(row)
}

// ListActiveCampaignsByType returns active campaigns of the given type.
func (s *SQLStore) ListActiveCampaignsByType(ctx context.Context, campaignType string) ([]models.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+campaignColumns+` FROM campaigns WHERE is_active = ? AND campaign_type = ?`), true, campaignType)
	if err != nil {
		slog.Error("SQLStore ListActiveCampaignsByType query failed", "error", err, "type", campaignType)
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// CreateCampaignSend records one delivered campaign message.
func (s *SQLStore) CreateCampaignSend(ctx context.Context, send *models.CampaignSend) error {
	if send.ID == "" {
		send.ID = uuid.NewString()
	}
	if send.SentAt.IsZero() {
		send.SentAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO campaign_sends (id, campaign_id, customer_id, cart_item_id, message_content, offer_code_used, platform_message_id, converted, sent_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		send.ID, send.CampaignID, send.CustomerID, send.CartItemID, send.MessageContent,
		nilIfEmpty(send.OfferCodeUsed), nilIfEmpty(send.PlatformMessageID), send.Converted, send.SentAt,
	)
	if err != nil {
		slog.Error("SQLStore CreateCampaignSend failed", "error", err, "campaignID", send.CampaignID)
		return fmt.Errorf("failed to insert campaign send: %w", err)
	}
	return nil
}

// GetCampaignSend looks up the send record for one campaign/customer/cart
// combination, nil when the campaign has not reached that cart yet.
func (s *SQLStore) GetCampaignSend(ctx context.Context, campaignID, customerID, cartItemID string) (*models.CampaignSend, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, campaign_id, customer_id, cart_item_id, message_content, offer_code_used, platform_message_id, converted, sent_at
		 FROM campaign_sends WHERE campaign_id = ? AND customer_id = ? AND cart_item_id = ?`),
		campaignID, customerID, cartItemID)

	var send models.CampaignSend
	var offerCode, platformID sql.NullString
	err := row.Scan(&send.ID, &send.CampaignID, &send.CustomerID, &send.CartItemID,
		&send.MessageContent, &offerCode, &platformID, &send.Converted, &send.SentAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLStore GetCampaignSend scan failed", "error", err)
		return nil, fmt.Errorf("failed to scan campaign send: %w", err)
	}
	send.OfferCodeUsed = offerCode.String
	send.PlatformMessageID = platformID.String
	return &send, nil
}

// MarkCampaignSendsConverted flags every send targeting a cart as converted.
func (s *SQLStore) MarkCampaignSendsConverted(ctx context.Context, cartItemID string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE campaign_sends SET converted = ? WHERE cart_item_id = ?`), true, cartItemID)
	if err != nil {
		slog.Error("SQLStore MarkCampaignSendsConverted failed", "error", err, "cartItemID", cartItemID)
		return fmt.Errorf("failed to mark sends converted for cart %s: %w", cartItemID, err)
	}
	return nil
}

// CreateOfferCode inserts a minted offer code.
func (s *SQLStore) CreateOfferCode(ctx context.Context, o *models.OfferCode) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if o.MaxUses == 0 {
		o.MaxUses = 1
	}

	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO offer_codes (id, code, offer_type, offer_value, max_uses, used_count, expires_at, campaign_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		o.ID, o.Code, string(o.OfferType), o.OfferValue, o.MaxUses, o.UsedCount,
		o.ExpiresAt, o.CampaignID, o.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLStore CreateOfferCode failed", "error", err, "code", o.Code)
		return fmt.Errorf("failed to insert offer code %s: %w", o.Code, err)
	}
	return nil
}

// --- Aggregates ---

// GetDashboardStats computes the aggregate dashboard payload: whole-table
// counts, revenue, last-24h activity, and top customers by spend.
func (s *SQLStore) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}

	row := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM customers),
		       (SELECT COUNT(*) FROM orders),
		       (SELECT COUNT(*) FROM messages),
		       (SELECT COALESCE(SUM(total_spent), 0) FROM customers)`)
	if err := row.Scan(&stats.Totals.Customers, &stats.Totals.Orders, &stats.Totals.Messages, &stats.Totals.Revenue); err != nil {
		slog.Error("SQLStore GetDashboardStats totals failed", "error", err)
		return nil, fmt.Errorf("failed to compute dashboard totals: %w", err)
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	row = s.db.QueryRowContext(ctx, s.rebind(`
		SELECT (SELECT COUNT(*) FROM customers WHERE created_at >= ?),
		       (SELECT COUNT(*) FROM orders WHERE created_at >= ?),
		       (SELECT COUNT(*) FROM messages WHERE created_at >= ?)`),
		since, since, since)
	if err := row.Scan(&stats.Recent.NewCustomers, &stats.Recent.NewOrders, &stats.Recent.NewMessages); err != nil {
		slog.Error("SQLStore GetDashboardStats recent activity failed", "error", err)
		return nil, fmt.Errorf("failed to compute recent activity: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+customerColumns+` FROM customers WHERE total_spent > 0 ORDER BY total_spent DESC LIMIT ?`), 5)
	if err != nil {
		slog.Error("SQLStore GetDashboardStats top customers failed", "error", err)
		return nil, fmt.Errorf("failed to query top customers: %w", err)
	}
	defer rows.Close()
	top, err := scanCustomers(rows)
	if err != nil {
		return nil, err
	}
	stats.TopCustomers = top

	return stats, nil
}
