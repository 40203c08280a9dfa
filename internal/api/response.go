// Package api HTTP response utilities.
package api

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
)

// Pre-marshaled fallback response to avoid runtime JSON encoding failures.
var fallbackErrorResponse []byte

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(map[string]string{"error": "Internal server error"})
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	// Marshal first to catch encoding errors before writing headers.
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// writeErrorResponse writes a JSON error body with the given status code.
func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	writeJSONResponse(w, statusCode, map[string]string{"error": message})
}

// twimlResponse is the TwiML document returned to Twilio webhooks.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// TwimlReply renders the TwiML body that makes Twilio deliver an immediate
// reply to the sender.
func TwimlReply(body string) string {
	doc, err := xml.Marshal(twimlResponse{Message: body})
	if err != nil {
		slog.Error("TwimlReply marshal failed", "error", err)
		return ""
	}
	return xml.Header + string(doc)
}

// writeTwimlResponse writes a TwiML reply. An empty body writes an empty
// response, which tells Twilio to reply with nothing and not retry.
func writeTwimlResponse(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	if body == "" {
		return
	}
	if _, err := w.Write([]byte(TwimlReply(body))); err != nil {
		slog.Error("Server.writeTwimlResponse: failed to write response", "error", err)
	}
}
