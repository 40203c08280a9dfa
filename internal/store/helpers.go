package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/spurbey/smart-whatsapping/internal/models"
)

// nilIfEmpty converts empty strings to nil so optional columns store NULL
// instead of "".
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// timePtr converts a NullTime to the pointer form used by the models.
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCustomer(sc rowScanner) (models.Customer, error) {
	var c models.Customer
	var email, phone, whatsapp, first, last sql.NullString
	err := sc.Scan(&c.ID, &email, &phone, &whatsapp, &first, &last,
		&c.TotalSpent, &c.OrderCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	c.Email = email.String
	c.Phone = phone.String
	c.WhatsAppPhone = whatsapp.String
	c.FirstName = first.String
	c.LastName = last.String
	return c, nil
}

func scanCustomerRow(row *sql.Row) (*models.Customer, error) {
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLStore customer scan failed", "error", err)
		return nil, fmt.Errorf("failed to scan customer: %w", err)
	}
	return &c, nil
}

func scanCustomers(rows *sql.Rows) ([]models.Customer, error) {
	var customers []models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			slog.Error("SQLStore customer scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func scanOrders(rows *sql.Rows) ([]models.Order, error) {
	var orders []models.Order
	for rows.Next() {
		var o models.Order
		var fulfillment, items sql.NullString
		err := rows.Scan(&o.ID, &o.CustomerID, &o.PlatformOrderID, &o.Platform,
			&o.TotalPrice, &o.Currency, &o.Status, &fulfillment, &items,
			&o.OrderDate, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			slog.Error("SQLStore order scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.FulfillmentStatus = fulfillment.String
		o.ItemsJSON = items.String
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var platformID, metadata, workflow sql.NullString
		var channel, direction string
		var sentAt, receivedAt sql.NullTime
		err := rows.Scan(&m.ID, &m.CustomerID, &channel, &direction, &m.Content,
			&platformID, &metadata, &workflow, &m.BotHandled, &sentAt, &receivedAt, &m.CreatedAt)
		if err != nil {
			slog.Error("SQLStore message scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Channel = models.Channel(channel)
		m.Direction = models.Direction(direction)
		m.PlatformMessageID = platformID.String
		m.MetadataJSON = metadata.String
		m.WorkflowID = workflow.String
		m.SentAt = timePtr(sentAt)
		m.ReceivedAt = timePtr(receivedAt)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func scanCartItem(sc rowScanner) (models.CartItem, error) {
	var item models.CartItem
	var recoveredOrderID sql.NullString
	var recoveredAt, lastSent sql.NullTime
	err := sc.Scan(&item.ID, &item.CustomerID, &item.ProductName, &item.ProductPrice,
		&item.Quantity, &item.AddedAt, &item.IsRecovered, &recoveredAt,
		&recoveredOrderID, &item.CampaignSentCount, &lastSent)
	if err != nil {
		return item, err
	}
	item.RecoveredAt = timePtr(recoveredAt)
	item.RecoveredOrderID = recoveredOrderID.String
	item.LastCampaignSent = timePtr(lastSent)
	return item, nil
}

func scanCartItemRow(row *sql.Row) (*models.CartItem, error) {
	item, err := scanCartItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLStore cart item scan failed", "error", err)
		return nil, fmt.Errorf("failed to scan cart item: %w", err)
	}
	return &item, nil
}

func scanCartItems(rows *sql.Rows) ([]models.CartItem, error) {
	var items []models.CartItem
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			slog.Error("SQLStore cart item scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanCampaign(sc rowScanner) (models.Campaign, error) {
	var c models.Campaign
	var offerType sql.NullString
	err := sc.Scan(&c.ID, &c.Name, &c.CampaignType, &c.TriggerDelayMinutes,
		&c.MessageTemplate, &offerType, &c.OfferValue, &c.MaxSendsPerCustomer,
		&c.IsActive, &c.CreatedAt)
	if err != nil {
		return c, err
	}
	c.OfferType = models.OfferType(offerType.String)
	return c, nil
}

func scanCampaignRow(row *sql.Row) (*models.Campaign, error) {
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLStore campaign scan failed", "error", err)
		return nil, fmt.Errorf("failed to scan campaign: %w", err)
	}
	return &c, nil
}
