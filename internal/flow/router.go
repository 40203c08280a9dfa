package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spurbey/smart-whatsapping/internal/models"
	"github.com/spurbey/smart-whatsapping/internal/session"
	"github.com/spurbey/smart-whatsapping/internal/store"
)

// Router dispatches each inbound message to the active flow engine or, when
// no flow is running, to the idle responder.
type Router struct {
	sessions  *session.Manager
	support   *SupportEngine
	responder *Responder
}

// NewRouter wires the conversation components together.
func NewRouter(sessions *session.Manager, st store.Store) *Router {
	return &Router{
		sessions:  sessions,
		support:   NewSupportEngine(sessions),
		responder: NewResponder(st),
	}
}

// HandleInbound produces the reply for one inbound customer message. A
// running support flow consumes the message; otherwise support intent starts
// the flow and everything else goes to the menu responder.
func (r *Router) HandleInbound(ctx context.Context, customer *models.Customer, messageText string) string {
	state := r.sessions.GetOrCreateState(ctx, customer.ID)
	if state == nil {
		// Store down. Answer statelessly rather than dropping the message.
		slog.Warn("Router session unavailable, responding statelessly", "customerID", customer.ID)
		return r.responder.Respond(ctx, customer, messageText)
	}

	if state.CurrentFlow == FlowSupport {
		return r.support.Process(ctx, customer.ID, messageText)
	}

	if wantsSupport(messageText) {
		return r.support.Start(ctx, customer.ID, messageText)
	}

	r.sessions.IncrementMessageCount(ctx, customer.ID)
	return r.responder.Respond(ctx, customer, messageText)
}

// wantsSupport reports whether a message outside any flow asks for the
// support flow: menu option 3 or an explicit support keyword.
func wantsSupport(messageText string) bool {
	if DetectChoice(messageText, mainMenuOptions) == 3 {
		return true
	}
	text := strings.ToLower(strings.TrimSpace(messageText))
	return containsAny(text, "support", "agent", "complaint")
}
