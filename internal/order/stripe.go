package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ms-events/internal/models"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// InitStripe sets the API key for all outbound Stripe calls.
func InitStripe(secretKey string) {
	stripe.Key = secretKey
}

// WebhookError carries the error taxonomy for webhook processing:
// validation failures map to 4xx (Stripe will not redeliver), processing
// failures map to 5xx (Stripe will redeliver).
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int
	PublicError   string
	InternalError string
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

func (e *WebhookError) Unwrap() error {
	return e.OriginalErr
}

// WebhookResult describes what a verified delivery did. Every delivery
// ends in exactly one of these outcomes or a WebhookError.
type WebhookResult struct {
	EventType string        `json:"event_type"`
	Outcome   string        `json:"outcome"` // "materialized", "duplicate", "ignored"
	Order     *models.Order `json:"order,omitempty"`
}

// CreateCheckoutSession starts a payment-provider checkout for one ticket
// to the given event. Free events go through Stripe with a zero amount so
// the order still materializes over the same webhook path.
func (s *OrderService) CreateCheckoutSession(ctx context.Context, buyerID, eventID string) (*models.CheckoutResponse, error) {
	event, err := s.Events.GetEventByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event %s: %w", eventID, err)
	}

	var amount int64
	if !event.IsFree {
		amount, err = PriceToMinorUnits(event.Price)
		if err != nil {
			return nil, fmt.Errorf("event %s has an invalid price %q: %w", eventID, event.Price, err)
		}
	}

	params := &stripe.CheckoutSessionParams{
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(s.Stripe.Currency),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(event.Title),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.Stripe.SuccessURL),
		CancelURL:  stripe.String(s.Stripe.CancelURL),
	}
	params.AddMetadata("eventId", eventID)
	params.AddMetadata("buyerId", buyerID)

	checkoutSession, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.Logger.Info("PAYMENT", fmt.Sprintf("Created checkout session %s for event %s, buyer %s", checkoutSession.ID, eventID, buyerID))

	return &models.CheckoutResponse{
		SessionID: checkoutSession.ID,
		URL:       checkoutSession.URL,
	}, nil
}

// HandleStripeWebhook runs one delivery through the
// verify → classify → materialize pipeline. The request body must be the
// exact byte stream Stripe sent; any re-serialization breaks the
// signature.
func (s *OrderService) HandleStripeWebhook(r *http.Request) (*WebhookResult, error) {
	if s.Stripe.WebhookSecret == "" {
		s.Logger.Error("WEBHOOK", "Stripe webhook secret is not configured")
		return nil, &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to read webhook payload: %v", err))
		return nil, &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: fmt.Sprintf("Failed to read webhook payload: %v", err),
			OriginalErr:   err,
		}
	}

	// A missing header short-circuits before any cryptographic work.
	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		s.Logger.Warn("WEBHOOK", "Delivery rejected: missing Stripe-Signature header")
		return nil, &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Missing Stripe signature header",
			InternalError: "Stripe-Signature header is absent",
		}
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, s.Stripe.WebhookSecret, opts)
	if err != nil {
		s.Logger.Error("WEBHOOK", fmt.Sprintf("Signature verification failed: %v", err))
		return nil, &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Webhook signature verification failed",
			InternalError: fmt.Sprintf("Webhook signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	// The endpoint is a multiplexed channel: acknowledge everything,
	// act only on checkout completion.
	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		s.Logger.Debug("WEBHOOK", fmt.Sprintf("Ignoring event type %s", event.Type))
		return &WebhookResult{
			EventType: string(event.Type),
			Outcome:   "ignored",
		}, nil
	}

	var checkoutSession stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &checkoutSession); err != nil {
		s.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to unmarshal checkout session: %v", err))
		return nil, &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Malformed checkout session payload",
			InternalError: fmt.Sprintf("Failed to unmarshal checkout session: %v", err),
			OriginalErr:   err,
		}
	}

	return s.materializeOrder(r.Context(), string(event.Type), &checkoutSession)
}

// materializeOrder maps a completed checkout session onto an Order row.
// Metadata keys are optional and default to empty strings; a missing
// amount defaults to zero. The stripe_id unique constraint is what makes
// redelivery safe.
func (s *OrderService) materializeOrder(ctx context.Context, eventType string, checkoutSession *stripe.CheckoutSession) (*WebhookResult, error) {
	order := models.Order{
		ID:          uuid.NewString(),
		StripeID:    checkoutSession.ID,
		EventID:     checkoutSession.Metadata["eventId"],
		BuyerID:     checkoutSession.Metadata["buyerId"],
		TotalAmount: FormatMinorUnits(checkoutSession.AmountTotal),
		CreatedAt:   time.Now().UTC(),
	}

	created, err := s.DB.CreateOrder(ctx, order)
	if err != nil {
		s.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to persist order for session %s: %v", order.StripeID, err))
		return nil, &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Failed to persist order",
			InternalError: fmt.Sprintf("Failed to persist order for session %s: %v", order.StripeID, err),
			OriginalErr:   err,
		}
	}

	if !created {
		s.Logger.LogWebhook(eventType, "duplicate", fmt.Sprintf("Order for session %s already exists", order.StripeID))
		existing, err := s.DB.GetOrderByStripeID(ctx, order.StripeID)
		if err != nil {
			// The duplicate is already acknowledged; losing the echo of
			// the existing row is not a failure.
			s.Logger.Warn("WEBHOOK", fmt.Sprintf("Could not load existing order for session %s: %v", order.StripeID, err))
			existing = nil
		}
		return &WebhookResult{
			EventType: eventType,
			Outcome:   "duplicate",
			Order:     existing,
		}, nil
	}

	s.Logger.LogWebhook(eventType, "materialized", fmt.Sprintf("Order %s created for session %s (event=%q buyer=%q total=%s)",
		order.ID, order.StripeID, order.EventID, order.BuyerID, order.TotalAmount))

	if s.Kafka != nil {
		if err := s.Kafka.PublishOrderCreated(order); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish order created event for %s: %v", order.ID, err))
		}
	}

	return &WebhookResult{
		EventType: eventType,
		Outcome:   "materialized",
		Order:     &order,
	}, nil
}

// FormatMinorUnits renders a minor-unit amount as a major-unit decimal
// string using integer math only: 1999 → "19.99", 1990 → "19.9",
// 5000 → "50", 0 → "0".
func FormatMinorUnits(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	whole := amount / 100
	frac := amount % 100

	switch {
	case frac == 0:
		return sign + strconv.FormatInt(whole, 10)
	case frac%10 == 0:
		return fmt.Sprintf("%s%d.%d", sign, whole, frac/10)
	default:
		return fmt.Sprintf("%s%d.%02d", sign, whole, frac)
	}
}

// PriceToMinorUnits parses a major-unit decimal string ("25", "19.99")
// into minor units. An empty price counts as zero.
func PriceToMinorUnits(price string) (int64, error) {
	price = strings.TrimSpace(price)
	if price == "" {
		return 0, nil
	}

	wholePart := price
	fracPart := ""
	if i := strings.IndexByte(price, '.'); i >= 0 {
		wholePart, fracPart = price[:i], price[i+1:]
	}
	if wholePart == "" {
		wholePart = "0"
	}
	if len(fracPart) > 2 {
		return 0, fmt.Errorf("more than two decimal places in %q", price)
	}
	for len(fracPart) < 2 {
		fracPart += "0"
	}

	whole, err := strconv.ParseInt(wholePart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", price)
	}
	if whole < 0 {
		return 0, fmt.Errorf("negative amount %q", price)
	}

	frac, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", price)
	}

	return whole*100 + frac, nil
}
