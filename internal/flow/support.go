// Package flow implements the scripted conversation engine: the multi-step
// support flow plus the menu-driven idle responder used outside any flow.
package flow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spurbey/smart-whatsapping/internal/models"
	"github.com/spurbey/smart-whatsapping/internal/session"
)

// FlowSupport is the name of the scripted support flow.
const FlowSupport = "support"

// Support flow step names. Steps advance in order; 4_provide_solution runs
// automatically without waiting for customer input.
const (
	StepIssueType       = "1_issue_type"
	StepCollectDetails  = "2_collect_details"
	StepGatherInfo      = "3_gather_info"
	StepProvideSolution = "4_provide_solution"
	StepConfirmation    = "5_confirmation"
)

// Issue categories a customer can select in step 1.
const (
	IssueOrder   = "order_issue"
	IssueProduct = "product_question"
	IssueAccount = "account_problem"
	IssueReturn  = "return_refund"
)

const (
	issueTypePrompt = "I'll help you with that! What type of issue are you having?\n\n" +
		"1. Order issue (delivery, tracking, etc.)\n" +
		"2. Product question (features, compatibility)\n" +
		"3. Account problem (login, billing, etc.)\n" +
		"4. Return or refund request\n"

	confirmationPrompt = "Did this help resolve your issue?\n\n" +
		"1. Yes, issue resolved!\n" +
		"2. No, I still need help\n"

	retryResponse = "I encountered an error. Let me try to help you again. What's your issue?"
)

// SupportEngine drives the support flow against the session state machine.
type SupportEngine struct {
	sessions *session.Manager
}

// NewSupportEngine creates a support flow engine on the given session manager.
func NewSupportEngine(sessions *session.Manager) *SupportEngine {
	return &SupportEngine{sessions: sessions}
}

// Start begins the support flow for a customer and returns the first prompt.
// The triggering message is kept in collected data for context.
func (e *SupportEngine) Start(ctx context.Context, customerID, initialMessage string) string {
	if !e.sessions.StartFlow(ctx, customerID, FlowSupport) {
		return "Sorry, I'm having trouble right now. Please try again."
	}

	ok := e.sessions.UpdateState(ctx, customerID, map[string]interface{}{
		"current_step":                   StepIssueType,
		"collected_data.initial_message": initialMessage,
		"collected_data.started_at":      time.Now().UTC().Format(time.RFC3339),
	})
	if !ok {
		return "Sorry, I'm having trouble right now. Please try again."
	}

	slog.Info("Support flow started", "customerID", customerID)
	return issueTypePrompt
}

// Process handles one customer message inside the support flow and returns
// the reply. An unexpected state produces the generic retry response without
// touching the session.
func (e *SupportEngine) Process(ctx context.Context, customerID, message string) string {
	state := e.sessions.GetState(ctx, customerID)
	if state == nil || state.CurrentFlow != FlowSupport {
		return "I don't have an active support session for you. How can I help?"
	}

	switch state.CurrentStep {
	case StepIssueType:
		return e.handleIssueType(ctx, customerID, message, state)
	case StepCollectDetails:
		return e.handleDetailCollection(ctx, customerID, message, state)
	case StepGatherInfo:
		return e.handleInfoGathering(ctx, customerID, message, state)
	case StepProvideSolution:
		return e.handleSolution(ctx, customerID, state)
	case StepConfirmation:
		return e.handleConfirmation(ctx, customerID, message)
	default:
		slog.Warn("Support flow unknown step", "customerID", customerID, "step", state.CurrentStep)
		return "Something went wrong. Let me restart. How can I help you?"
	}
}

func (e *SupportEngine) handleIssueType(ctx context.Context, customerID, message string, state *models.SessionState) string {
	issueType := ParseIssueType(message)
	if issueType == "" {
		return "Please select a valid option:\n\n" + issueTypePrompt
	}

	ok := e.sessions.UpdateState(ctx, customerID, map[string]interface{}{
		"current_step":              StepCollectDetails,
		"collected_data.issue_type": issueType,
		"metadata.message_count":    state.Metadata.MessageCount + 1,
	})
	if !ok {
		return retryResponse
	}

	switch issueType {
	case IssueOrder:
		return "I'll help you with your order issue. Please tell me:\n• Your order number (if you have it)\n• What specifically is wrong\n• When you placed the order"
	case IssueProduct:
		return "I'll help answer your product question. Please tell me:\n• Which product you're asking about\n• What you'd like to know"
	case IssueAccount:
		return "I'll help with your account issue. Please describe:\n• What problem you're experiencing\n• What you were trying to do"
	case IssueReturn:
		return "I'll help you with your return or refund. Please provide:\n• Your order number\n• Which item(s) you want to return\n• Reason for return"
	default:
		return "Tell me more about your " + issueType + ". Please provide details:"
	}
}

func (e *SupportEngine) handleDetailCollection(ctx context.Context, customerID, message string, state *models.SessionState) string {
	issueType, _ := state.CollectedData["issue_type"].(string)

	updates := map[string]interface{}{
		"current_step":                   StepGatherInfo,
		"collected_data.problem_details": message,
		"metadata.message_count":         state.Metadata.MessageCount + 1,
	}

	// Product questions and unrecognized categories have nothing extra to
	// gather, so they jump straight to the solution.
	skipGathering := issueType == IssueProduct || issueType == ""
	if skipGathering {
		updates["current_step"] = StepProvideSolution
	}
	if !e.sessions.UpdateState(ctx, customerID, updates) {
		return retryResponse
	}
	if skipGathering {
		return e.handleSolution(ctx, customerID, e.sessions.GetState(ctx, customerID))
	}

	switch issueType {
	case IssueOrder:
		return "Thank you for those details. To help you better, can you provide your email address or phone number associated with the order?"
	case IssueAccount:
		return "I understand the issue. Can you confirm the email address associated with your account?"
	case IssueReturn:
		return "Got it. I'll help process your return. Can you confirm the email address you used for the order?"
	default:
		return "Thank you for the information. Let me see how I can help you."
	}
}

func (e *SupportEngine) handleInfoGathering(ctx context.Context, customerID, message string, state *models.SessionState) string {
	ok := e.sessions.UpdateState(ctx, customerID, map[string]interface{}{
		"current_step":                   StepProvideSolution,
		"collected_data.additional_info": message,
		"metadata.message_count":         state.Metadata.MessageCount + 1,
	})
	if !ok {
		return retryResponse
	}
	return e.handleSolution(ctx, customerID, e.sessions.GetState(ctx, customerID))
}

func (e *SupportEngine) handleSolution(ctx context.Context, customerID string, state *models.SessionState) string {
	if state == nil {
		return retryResponse
	}
	issueType, _ := state.CollectedData["issue_type"].(string)
	solution := solutionFor(issueType)

	ok := e.sessions.UpdateState(ctx, customerID, map[string]interface{}{
		"current_step":                     StepConfirmation,
		"collected_data.solution_provided": solution,
		"metadata.message_count":           state.Metadata.MessageCount + 1,
	})
	if !ok {
		return retryResponse
	}
	return solution + "\n\n" + confirmationPrompt
}

func (e *SupportEngine) handleConfirmation(ctx context.Context, customerID, message string) string {
	switch strings.ToLower(strings.TrimSpace(message)) {
	case "1", "yes", "resolved", "fixed", "good":
		e.sessions.CompleteFlow(ctx, customerID, models.FlowOutcomeResolved)
		slog.Info("Support flow completed", "customerID", customerID, "outcome", models.FlowOutcomeResolved)
		return "Great! I'm glad I could help resolve your issue. 😊\n\nIs there anything else I can help you with today?"
	case "2", "no", "not resolved", "still need help":
		e.sessions.CompleteFlow(ctx, customerID, models.FlowOutcomeEscalated)
		slog.Info("Support flow completed", "customerID", customerID, "outcome", models.FlowOutcomeEscalated)
		return "I understand you still need help. Let me connect you with a human support agent who can assist you further.\n\nYour case has been escalated and someone will contact you within 24 hours."
	default:
		return "Please let me know if the solution helped:\n\n1. Yes, issue resolved!\n2. No, I still need help"
	}
}

// ParseIssueType maps a customer's reply to an issue category, "" when the
// reply matches none.
func ParseIssueType(message string) string {
	switch strings.ToLower(strings.TrimSpace(message)) {
	case "1", "order", "order issue", "delivery", "tracking":
		return IssueOrder
	case "2", "product", "product question", "features":
		return IssueProduct
	case "3", "account", "account problem", "login", "billing":
		return IssueAccount
	case "4", "return", "refund", "return refund":
		return IssueReturn
	default:
		return ""
	}
}

func solutionFor(issueType string) string {
	switch issueType {
	case IssueOrder:
		return "Here's how I can help with your order issue:\n\n" +
			"1. *Check Order Status*: I can look up your order using your email\n" +
			"2. *Tracking Information*: Most orders ship within 24-48 hours\n" +
			"3. *Delivery Issues*: If your order is delayed, I can check with our shipping partner\n\n" +
			"For immediate assistance, you can also track your order at: https://yourstore.com/track"
	case IssueProduct:
		return "I'd be happy to help with product information:\n\n" +
			"1. *Product Details*: Check our website for full specifications\n" +
			"2. *Compatibility*: Most of our products work with standard systems\n" +
			"3. *Warranty*: All products come with 1-year manufacturer warranty\n\n" +
			"For detailed specs, visit: https://yourstore.com/products"
	case IssueAccount:
		return "Here are solutions for common account issues:\n\n" +
			"1. *Password Reset*: Use 'Forgot Password' on the login page\n" +
			"2. *Account Access*: Clear your browser cache and try again\n" +
			"3. *Billing Questions*: Check your email for receipt confirmations\n\n" +
			"Account help: https://yourstore.com/account-help"
	case IssueReturn:
		return "Here's our return and refund process:\n\n" +
			"1. *Return Window*: 30 days from purchase date\n" +
			"2. *Process*: Visit our returns page to start a return\n" +
			"3. *Refunds*: Processed within 5-7 business days after we receive the item\n\n" +
			"Start your return: https://yourstore.com/returns"
	default:
		return "I've noted your issue and our support team will help you resolve it."
	}
}
