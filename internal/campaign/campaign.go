// Package campaign implements the cart-abandonment drip campaigns: default
// campaign seeding, trigger-window scanning, message personalization, offer
// code minting, and send bookkeeping.
package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spurbey/smart-whatsapping/internal/messaging"
	"github.com/spurbey/smart-whatsapping/internal/models"
	"github.com/spurbey/smart-whatsapping/internal/store"
	"github.com/spurbey/smart-whatsapping/internal/util"
)

// triggerWindow is the tolerance around a campaign's trigger time. A cart
// qualifies while its age is within delay +/- this window, so the scan loop
// must run at least this often or carts slip through untouched.
const triggerWindow = 5 * time.Minute

// offerCodeTTL is how long minted offer codes stay valid.
const offerCodeTTL = 24 * time.Hour

// offerCodeSuffixLen is the random suffix length on minted codes.
const offerCodeSuffixLen = 4

// Engine runs cart-abandonment campaigns against the store and gateway.
type Engine struct {
	store   store.Store
	gateway messaging.Gateway
}

// NewEngine creates a campaign engine.
func NewEngine(st store.Store, gw messaging.Gateway) *Engine {
	return &Engine{store: st, gateway: gw}
}

// ReadyCart pairs a qualifying cart with the campaign that should fire for it.
type ReadyCart struct {
	Cart     models.CartItem
	Campaign models.Campaign
	Customer *models.Customer
}

// RunResult summarizes one campaign scan-and-send pass.
type RunResult struct {
	Status         string              `json:"status"`
	MessagesSent   int                 `json:"messages_sent"`
	MessagesFailed int                 `json:"messages_failed"`
	TotalProcessed int                 `json:"total_processed"`
	Results        []models.SendResult `json:"results,omitempty"`
}

// SeedCartAbandonmentCampaigns inserts the three default cart-abandonment
// campaigns, skipping any that already exist by name. Returns the names
// actually created.
func (e *Engine) SeedCartAbandonmentCampaigns(ctx context.Context) ([]string, error) {
	defaults := []models.Campaign{
		{
			Name:                "Cart Reminder - 1 Hour",
			CampaignType:        models.CampaignTypeCartAbandonment,
			TriggerDelayMinutes: 60,
			MessageTemplate:     "Hey {customer_name}! 👋\n\nYou left something amazing in your cart:\n\n🛍️ {product_list}\n\nDon't miss out! Complete your order now and get FREE shipping! 🚚\n\nShop now: {cart_link}",
			OfferType:           models.OfferTypeFreeShipping,
			OfferValue:          0,
			MaxSendsPerCustomer: 1,
			IsActive:            true,
		},
		{
			Name:                "Cart Discount - 4 Hours",
			CampaignType:        models.CampaignTypeCartAbandonment,
			TriggerDelayMinutes: 240,
			MessageTemplate:     "🎉 Special offer just for you, {customer_name}!\n\nYour cart is waiting:\n{product_list}\n\n💥 Get 10% OFF with code: {offer_code}\n⏰ Valid for next 24 hours only!\n\nClaim discount: {cart_link}",
			OfferType:           models.OfferTypePercentage,
			OfferValue:          10,
			MaxSendsPerCustomer: 1,
			IsActive:            true,
		},
		{
			Name:                "Last Chance - 24 Hours",
			CampaignType:        models.CampaignTypeCartAbandonment,
			TriggerDelayMinutes: 1440,
			MessageTemplate:     "⚠️ LAST CHANCE, {customer_name}!\n\nYour cart expires soon:\n{product_list}\n\n🔥 Final offer: 15% OFF + FREE shipping!\nCode: {offer_code}\n\n⏰ Only 2 hours left!\n\nSave now: {cart_link}",
			OfferType:           models.OfferTypePercentage,
			OfferValue:          15,
			MaxSendsPerCustomer: 1,
			IsActive:            true,
		},
	}

	var created []string
	for _, campaign := range defaults {
		existing, err := e.store.GetCampaignByName(ctx, campaign.Name)
		if err != nil {
			return created, fmt.Errorf("failed to check campaign %s: %w", campaign.Name, err)
		}
		if existing != nil {
			continue
		}
		campaign := campaign
		if err := e.store.CreateCampaign(ctx, &campaign); err != nil {
			return created, err
		}
		created = append(created, campaign.Name)
	}
	slog.Info("Seeded cart abandonment campaigns", "created", len(created))
	return created, nil
}

// FindAbandonedCarts returns every (cart, campaign) pair whose cart age falls
// inside the campaign's trigger window, has not been recovered, has not
// already received this campaign, and is under the campaign's send cap.
func (e *Engine) FindAbandonedCarts(ctx context.Context) ([]ReadyCart, error) {
	campaigns, err := e.store.ListActiveCampaignsByType(ctx, models.CampaignTypeCartAbandonment)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var ready []ReadyCart
	for _, campaign := range campaigns {
		triggerTime := now.Add(-time.Duration(campaign.TriggerDelayMinutes) * time.Minute)
		carts, err := e.store.ListAbandonedCartsInWindow(ctx, triggerTime.Add(-triggerWindow), triggerTime.Add(triggerWindow))
		if err != nil {
			return nil, err
		}

		for _, cart := range carts {
			if cart.CampaignSentCount >= campaign.MaxSendsPerCustomer {
				continue
			}
			send, err := e.store.GetCampaignSend(ctx, campaign.ID, cart.CustomerID, cart.ID)
			if err != nil {
				return nil, err
			}
			if send != nil {
				continue
			}
			customer, err := e.store.GetCustomerByID(ctx, cart.CustomerID)
			if err != nil {
				return nil, err
			}
			if customer == nil {
				slog.Warn("Campaign cart references missing customer", "cartItemID", cart.ID, "customerID", cart.CustomerID)
				continue
			}
			ready = append(ready, ReadyCart{Cart: cart, Campaign: campaign, Customer: customer})
		}
	}
	return ready, nil
}

// GenerateOfferCode builds a code like CART10X7QA from the offer value plus a
// random suffix.
func GenerateOfferCode(offerValue float64) string {
	return "CART" + strconv.Itoa(int(offerValue)) + util.GenerateRandomUpperAlphaNumeric(offerCodeSuffixLen)
}

// mintOfferCode creates and persists a single-use offer code for the
// campaign, or "" when the campaign's offer carries no code.
func (e *Engine) mintOfferCode(ctx context.Context, campaign models.Campaign) (string, error) {
	if campaign.OfferType == "" || campaign.OfferType == models.OfferTypeFreeShipping {
		return "", nil
	}
	offer := &models.OfferCode{
		Code:       GenerateOfferCode(campaign.OfferValue),
		OfferType:  campaign.OfferType,
		OfferValue: campaign.OfferValue,
		MaxUses:    1,
		ExpiresAt:  time.Now().UTC().Add(offerCodeTTL),
		CampaignID: campaign.ID,
	}
	if err := e.store.CreateOfferCode(ctx, offer); err != nil {
		return "", err
	}
	return offer.Code, nil
}

// PersonalizeMessage fills the campaign template's tokens from the customer
// and cart.
func PersonalizeMessage(template string, customer *models.Customer, cart models.CartItem, offerCode string) string {
	productList := fmt.Sprintf("• %s ($%.2f)", cart.ProductName, cart.ProductPrice)
	if cart.Quantity > 1 {
		productList += fmt.Sprintf(" x%d", cart.Quantity)
	}
	cartLink := "https://yourstore.com/cart?recover=" + cart.ID

	message := strings.ReplaceAll(template, "{customer_name}", customer.DisplayName())
	message = strings.ReplaceAll(message, "{product_list}", productList)
	message = strings.ReplaceAll(message, "{cart_link}", cartLink)
	if offerCode != "" {
		message = strings.ReplaceAll(message, "{offer_code}", offerCode)
	}
	return message
}

// SendCampaignMessage delivers one campaign message and records all
// bookkeeping on success: the CampaignSend row, the cart's send counters, and
// the outbound Message row. Failed sends are reported in the result and never
// retried.
func (e *Engine) SendCampaignMessage(ctx context.Context, ready ReadyCart) models.SendResult {
	customer := ready.Customer
	if customer.WhatsAppPhone == "" {
		return models.SendResult{Status: models.SendStatusFailed, Error: "customer has no WhatsApp number"}
	}

	offerCode, err := e.mintOfferCode(ctx, ready.Campaign)
	if err != nil {
		slog.Error("Campaign offer code mint failed", "error", err, "campaign", ready.Campaign.Name)
		return models.SendResult{Status: models.SendStatusError, Error: err.Error()}
	}

	content := PersonalizeMessage(ready.Campaign.MessageTemplate, customer, ready.Cart, offerCode)
	result, err := e.gateway.SendMessage(ctx, customer.WhatsAppPhone, content)
	if err != nil {
		slog.Error("Campaign send failed", "error", err, "campaign", ready.Campaign.Name, "customerID", customer.ID)
		return models.SendResult{Status: models.SendStatusError, To: customer.WhatsAppPhone, Error: err.Error()}
	}
	if result.Status != models.SendStatusSent {
		return *result
	}

	now := time.Now().UTC()
	send := &models.CampaignSend{
		CampaignID:        ready.Campaign.ID,
		CustomerID:        customer.ID,
		CartItemID:        ready.Cart.ID,
		MessageContent:    content,
		OfferCodeUsed:     offerCode,
		PlatformMessageID: result.MessageID,
		SentAt:            now,
	}
	if err := e.store.CreateCampaignSend(ctx, send); err != nil {
		slog.Error("Campaign send record failed", "error", err, "campaign", ready.Campaign.Name)
	}
	if err := e.store.RecordCartCampaignSend(ctx, ready.Cart.ID, now); err != nil {
		slog.Error("Campaign cart counter update failed", "error", err, "cartItemID", ready.Cart.ID)
	}

	metadata, _ := json.Marshal(map[string]interface{}{
		"campaign_id":   ready.Campaign.ID,
		"campaign_type": models.CampaignTypeCartAbandonment,
		"offer_code":    offerCode,
		"cart_item_id":  ready.Cart.ID,
	})
	message := &models.Message{
		CustomerID:        customer.ID,
		Channel:           models.ChannelWhatsApp,
		Direction:         models.DirectionOutbound,
		Content:           content,
		PlatformMessageID: result.MessageID,
		MetadataJSON:      string(metadata),
		BotHandled:        true,
		SentAt:            &now,
	}
	if err := e.store.CreateMessage(ctx, message); err != nil {
		slog.Error("Campaign message record failed", "error", err, "customerID", customer.ID)
	}

	slog.Info("Campaign message sent", "campaign", ready.Campaign.Name, "customerID", customer.ID, "offerCode", offerCode)
	return *result
}

// Run executes one full scan-and-send pass over all active campaigns.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	slog.Debug("Campaign run starting")
	ready, err := e.FindAbandonedCarts(ctx)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Status: "completed", TotalProcessed: len(ready)}
	for _, rc := range ready {
		sendResult := e.SendCampaignMessage(ctx, rc)
		result.Results = append(result.Results, sendResult)
		if sendResult.Status == models.SendStatusSent {
			result.MessagesSent++
		} else {
			result.MessagesFailed++
		}
	}
	slog.Info("Campaign run finished", "sent", result.MessagesSent, "failed", result.MessagesFailed)
	return result, nil
}

// MarkCartRecovered records a completed purchase against a cart: the cart is
// flagged recovered and all its campaign sends marked converted.
func (e *Engine) MarkCartRecovered(ctx context.Context, cartItemID, orderID string) error {
	cart, err := e.store.GetCartItem(ctx, cartItemID)
	if err != nil {
		return err
	}
	if cart == nil {
		return fmt.Errorf("cart item %s not found", cartItemID)
	}
	if err := e.store.MarkCartRecovered(ctx, cartItemID, orderID); err != nil {
		return err
	}
	if err := e.store.MarkCampaignSendsConverted(ctx, cartItemID); err != nil {
		return err
	}
	slog.Info("Cart recovered", "cartItemID", cartItemID, "orderID", orderID)
	return nil
}
