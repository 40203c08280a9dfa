package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spurbey/smart-whatsapping/internal/models"
)

// InMemoryStore implements Store with in-process maps. It backs tests and
// ephemeral runs; nothing survives a restart.
type InMemoryStore struct {
	mu sync.RWMutex

	customers     map[string]models.Customer
	orders        map[string]models.Order
	messages      map[string]models.Message
	webhookEvents map[string]models.WebhookEvent
	cartItems     map[string]models.CartItem
	campaigns     map[string]models.Campaign
	campaignSends map[string]models.CampaignSend
	offerCodes    map[string]models.OfferCode
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		customers:     make(map[string]models.Customer),
		orders:        make(map[string]models.Order),
		messages:      make(map[string]models.Message),
		webhookEvents: make(map[string]models.WebhookEvent),
		cartItems:     make(map[string]models.CartItem),
		campaigns:     make(map[string]models.Campaign),
		campaignSends: make(map[string]models.CampaignSend),
		offerCodes:    make(map[string]models.OfferCode),
	}
}

func (s *InMemoryStore) CreateCustomer(ctx context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.customers[c.ID] = *c
	return nil
}

func (s *InMemoryStore) GetCustomerByID(ctx context.Context, id string) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.customers[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (s *InMemoryStore) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		if c.Email != "" && c.Email == email {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) GetCustomerByPhoneOrWhatsApp(ctx context.Context, phone string) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		if (c.Phone != "" && c.Phone == phone) || (c.WhatsAppPhone != "" && c.WhatsAppPhone == phone) {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[c.ID]; !ok {
		return fmt.Errorf("customer %s not found", c.ID)
	}
	c.UpdatedAt = time.Now().UTC()
	s.customers[c.ID] = *c
	return nil
}

func (s *InMemoryStore) ListCustomers(ctx context.Context, limit int) ([]models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customers := make([]models.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].CreatedAt.After(customers[j].CreatedAt) })
	if limit > 0 && len(customers) > limit {
		customers = customers[:limit]
	}
	return customers, nil
}

func (s *InMemoryStore) ListCustomersBySegment(ctx context.Context, segment string) ([]models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var customers []models.Customer
	for _, c := range s.customers {
		if c.WhatsAppPhone == "" {
			continue
		}
		switch segment {
		case SegmentAll:
		case SegmentVIP:
			if !c.IsVIP() {
				continue
			}
		case SegmentNew:
			if c.OrderCount != 0 {
				continue
			}
		default:
			return nil, fmt.Errorf("unknown customer segment %q", segment)
		}
		customers = append(customers, c)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].CreatedAt.After(customers[j].CreatedAt) })
	return customers, nil
}

func (s *InMemoryStore) GetSegmentCounts(ctx context.Context) (SegmentCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var counts SegmentCounts
	for _, c := range s.customers {
		counts.Total++
		if c.WhatsAppPhone != "" {
			counts.WhatsAppEnabled++
		}
		if c.IsVIP() {
			counts.VIP++
		}
		if c.OrderCount == 0 {
			counts.New++
		}
	}
	return counts, nil
}

func (s *InMemoryStore) RecalculateCustomerTotals(ctx context.Context, customerID string) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[customerID]
	if !ok {
		return nil, nil
	}
	count := 0
	total := 0.0
	for _, o := range s.orders {
		if o.CustomerID == customerID {
			count++
			total += o.TotalPrice
		}
	}
	c.OrderCount = count
	c.TotalSpent = total
	c.UpdatedAt = time.Now().UTC()
	s.customers[customerID] = c
	return &c, nil
}

func (s *InMemoryStore) CreateOrder(ctx context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	s.orders[o.ID] = *o
	return nil
}

func (s *InMemoryStore) ListOrdersByCustomer(ctx context.Context, customerID string, limit int) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var orders []models.Order
	for _, o := range s.orders {
		if o.CustomerID == customerID {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderDate.After(orders[j].OrderDate) })
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *InMemoryStore) ListRecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orders := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *InMemoryStore) CreateMessage(ctx context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.messages[m.ID] = *m
	return nil
}

func (s *InMemoryStore) ListRecentMessages(ctx context.Context, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages := make([]models.Message, 0, len(s.messages))
	for _, m := range s.messages {
		messages = append(messages, m)
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].CreatedAt.After(messages[j].CreatedAt) })
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

func (s *InMemoryStore) ListMessagesByCustomer(ctx context.Context, customerID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var messages []models.Message
	for _, m := range s.messages {
		if m.CustomerID == customerID {
			messages = append(messages, m)
		}
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].CreatedAt.Before(messages[j].CreatedAt) })
	return messages, nil
}

func (s *InMemoryStore) CreateWebhookEvent(ctx context.Context, e *models.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}
	s.webhookEvents[e.ID] = *e
	return nil
}

func (s *InMemoryStore) MarkWebhookEventProcessed(ctx context.Context, id string, processingError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.webhookEvents[id]
	if !ok {
		return fmt.Errorf("webhook event %s not found", id)
	}
	now := time.Now().UTC()
	e.Processed = processingError == ""
	e.ProcessingError = processingError
	e.ProcessedAt = &now
	s.webhookEvents[id] = e
	return nil
}

func (s *InMemoryStore) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	s.cartItems[item.ID] = *item
	return nil
}

func (s *InMemoryStore) GetCartItem(ctx context.Context, id string) (*models.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if item, ok := s.cartItems[id]; ok {
		return &item, nil
	}
	return nil, nil
}

func (s *InMemoryStore) ListAbandonedCartsInWindow(ctx context.Context, start, end time.Time) ([]models.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []models.CartItem
	for _, item := range s.cartItems {
		if item.IsRecovered {
			continue
		}
		if item.AddedAt.Before(start) || item.AddedAt.After(end) {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *InMemoryStore) ListUnrecoveredCartsByCustomer(ctx context.Context, customerID string) ([]models.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []models.CartItem
	for _, item := range s.cartItems {
		if item.CustomerID == customerID && !item.IsRecovered {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *InMemoryStore) RecordCartCampaignSend(ctx context.Context, cartItemID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.cartItems[cartItemID]
	if !ok {
		return fmt.Errorf("cart item %s not found", cartItemID)
	}
	item.CampaignSentCount++
	item.LastCampaignSent = &sentAt
	s.cartItems[cartItemID] = item
	return nil
}

func (s *InMemoryStore) MarkCartRecovered(ctx context.Context, cartItemID, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.cartItems[cartItemID]
	if !ok {
		return fmt.Errorf("cart item %s not found", cartItemID)
	}
	now := time.Now().UTC()
	item.IsRecovered = true
	item.RecoveredAt = &now
	item.RecoveredOrderID = orderID
	s.cartItems[cartItemID] = item
	return nil
}

func (s *InMemoryStore) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.campaigns[c.ID] = *c
	return nil
}

func (s *InMemoryStore) GetCampaignByName(ctx context.Context, name string) (*models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.campaigns {
		if c.Name == name {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) ListActiveCampaignsByType(ctx context.Context, campaignType string) ([]models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var campaigns []models.Campaign
	for _, c := range s.campaigns {
		if c.IsActive && c.CampaignType == campaignType {
			campaigns = append(campaigns, c)
		}
	}
	sort.Slice(campaigns, func(i, j int) bool { return campaigns[i].TriggerDelayMinutes < campaigns[j].TriggerDelayMinutes })
	return campaigns, nil
}

func (s *InMemoryStore) CreateCampaignSend(ctx context.Context, send *models.CampaignSend) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if send.ID == "" {
		send.ID = uuid.NewString()
	}
	if send.SentAt.IsZero() {
		send.SentAt = time.Now().UTC()
	}
	s.campaignSends[send.ID] = *send
	return nil
}

func (s *InMemoryStore) GetCampaignSend(ctx context.Context, campaignID, customerID, cartItemID string) (*models.CampaignSend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, send := range s.campaignSends {
		if send.CampaignID == campaignID && send.CustomerID == customerID && send.CartItemID == cartItemID {
			send := send
			return &send, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) MarkCampaignSendsConverted(ctx context.Context, cartItemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, send := range s.campaignSends {
		if send.CartItemID == cartItemID {
			send.Converted = true
			s.campaignSends[id] = send
		}
	}
	return nil
}

func (s *InMemoryStore) CreateOfferCode(ctx context.Context, o *models.OfferCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if o.MaxUses == 0 {
		o.MaxUses = 1
	}
	s.offerCodes[o.ID] = *o
	return nil
}

func (s *InMemoryStore) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &DashboardStats{}
	since := time.Now().UTC().Add(-24 * time.Hour)

	var top []models.Customer
	for _, c := range s.customers {
		stats.Totals.Customers++
		stats.Totals.Revenue += c.TotalSpent
		if c.CreatedAt.After(since) {
			stats.Recent.NewCustomers++
		}
		if c.TotalSpent > 0 {
			top = append(top, c)
		}
	}
	for _, o := range s.orders {
		stats.Totals.Orders++
		if o.CreatedAt.After(since) {
			stats.Recent.NewOrders++
		}
	}
	for _, m := range s.messages {
		stats.Totals.Messages++
		if m.CreatedAt.After(since) {
			stats.Recent.NewMessages++
		}
	}

	sort.Slice(top, func(i, j int) bool { return top[i].TotalSpent > top[j].TotalSpent })
	if len(top) > 5 {
		top = top[:5]
	}
	stats.TopCustomers = top
	return stats, nil
}

func (s *InMemoryStore) Ping(ctx context.Context) error { return nil }

func (s *InMemoryStore) Close() error { return nil }
