package order_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-events/internal/auth"
	"ms-events/internal/models"
	"ms-events/internal/order"
	"ms-events/internal/utils"
)

// CreateCheckout starts a Stripe checkout session for the caller and the
// requested event.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		// The OIDC middleware normally fills the context; fall back to
		// the raw bearer token for routes mounted without it.
		subject, err := auth.SubjectFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthenticated", http.StatusUnauthorized)
			return
		}
		userID = subject
	}

	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateCheckout: failed to decode body: %v", err))
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.EventID == "" {
		http.Error(w, "Event ID is required", http.StatusBadRequest)
		return
	}

	resp, err := h.OrderService.CreateCheckoutSession(r.Context(), userID, req.EventID)
	if err != nil {
		if errors.Is(err, order.ErrEventNotFound) {
			http.Error(w, "Event not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("CreateCheckout: %v", err))
		http.Error(w, "Could not create checkout session: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateCheckout: failed to encode response: %v", err))
	}
}

// StripeWebhook receives deliveries from Stripe. Responses are structured
// JSON in every case so delivery logs on the Stripe dashboard stay
// readable.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	result, err := h.OrderService.HandleStripeWebhook(r)
	if err != nil {
		var webhookErr *order.WebhookError
		if errors.As(err, &webhookErr) {
			h.Logger.Warn("API", fmt.Sprintf("StripeWebhook: %s failure (%d): %s",
				webhookErr.Category, webhookErr.StatusCode, webhookErr.InternalError))
			utils.WriteJSON(w, webhookErr.StatusCode, utils.ErrorResponse("Webhook rejected", webhookErr.PublicError))
			return
		}

		h.Logger.Error("API", fmt.Sprintf("StripeWebhook: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Webhook rejected", "Webhook processing error"))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Webhook processed", result))
}
