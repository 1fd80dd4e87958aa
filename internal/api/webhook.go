package api

import (
	"net/http"

	"ledger-hub-go/internal/store"

	"go.uber.org/zap"
)

type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			Id string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

// handleBridgeWebhook is the push confirmation path. It races the polling
// path for the same external reference; the bridge adapter guarantees the
// pair is recorded once regardless of which one wins.
func (s *Server) handleBridgeWebhook(w http.ResponseWriter, r *http.Request) {
	var event webhookEvent
	if err := decodeJSON(r, &event); err != nil {
		writeError(w, err)
		return
	}
	if event.Type != "checkout.session.completed" {
		// Unhandled event types are acknowledged so the provider stops
		// redelivering them.
		w.WriteHeader(http.StatusOK)
		return
	}
	if event.Data.Object.Id == "" {
		writeError(w, store.Validation("data.object.id", "missing checkout reference"))
		return
	}

	result, err := s.bridge.ConfirmCheckout(r.Context(), event.Data.Object.Id, "")
	if err != nil {
		writeError(w, err)
		return
	}

	zap.L().Info("Webhook confirmation processed",
		zap.String("external_ref", result.ExternalRef),
		zap.Bool("already_recorded", result.AlreadyRecorded))
	writeJSON(w, http.StatusOK, result)
}
