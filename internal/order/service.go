package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-events/internal/config"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/utils"
)

var (
	ErrNotFound      = errors.New("order not found")
	ErrEventNotFound = errors.New("event not found")
	ErrForbidden     = errors.New("not allowed for this user")
)

type DBLayer interface {
	CreateOrder(ctx context.Context, order models.Order) (bool, error)
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderByStripeID(ctx context.Context, stripeID string) (*models.Order, error)
	ListOrdersByEvent(ctx context.Context, eventID, buyerFilter string) ([]models.OrderBuyerRow, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string, page, limit int) ([]models.OrderWithEvent, int, error)
}

type EventLookup interface {
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
}

type IdentityLookup interface {
	Lookup(ctx context.Context, subject string) (*models.UserProfile, error)
}

type KafkaPublisher interface {
	PublishOrderCreated(order models.Order) error
}

type OrderService struct {
	DB       DBLayer
	Events   EventLookup
	Identity IdentityLookup
	Kafka    KafkaPublisher
	Stripe   config.StripeConfig
	Logger   *logger.Logger
}

func NewOrderService(db DBLayer, events EventLookup, identity IdentityLookup, kafka KafkaPublisher, stripeCfg config.StripeConfig, log *logger.Logger) *OrderService {
	return &OrderService{
		DB:       db,
		Events:   events,
		Identity: identity,
		Kafka:    kafka,
		Stripe:   stripeCfg,
		Logger:   log,
	}
}

// GetOrderForBuyer returns one order if it belongs to the requesting buyer.
func (s *OrderService) GetOrderForBuyer(ctx context.Context, buyerID, orderID string) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	if order.BuyerID != buyerID {
		return nil, ErrForbidden
	}
	return order, nil
}

// OrdersByEvent is the organizer's sales view: every order for one of
// their events, with buyer names resolved through the identity API.
func (s *OrderService) OrdersByEvent(ctx context.Context, userID, eventID, buyerFilter string) ([]models.OrderBuyerRow, error) {
	event, err := s.Events.GetEventByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event %s: %w", eventID, err)
	}
	if event.Organizer != userID {
		return nil, ErrForbidden
	}

	rows, err := s.DB.ListOrdersByEvent(ctx, eventID, buyerFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for event %s: %w", eventID, err)
	}

	profiles := make(map[string]*models.UserProfile)
	for i := range rows {
		subject := rows[i].BuyerID
		if subject == "" {
			continue
		}
		profile, ok := profiles[subject]
		if !ok {
			profile, err = s.Identity.Lookup(ctx, subject)
			if err != nil {
				return nil, fmt.Errorf("buyer lookup for order %s failed: %w", rows[i].ID, err)
			}
			profiles[subject] = profile
		}
		rows[i].Buyer = profile.FullName()
	}

	return rows, nil
}

// ValidateTicket resolves a scanned ticket against the order it claims
// to represent. Only the organizer of the ticket's event may check
// tickets in, and a ticket presented at the wrong event is treated the
// same as one that does not exist.
func (s *OrderService) ValidateTicket(ctx context.Context, userID, orderID, eventID string) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	if order.EventID != eventID {
		return nil, ErrNotFound
	}

	event, err := s.Events.GetEventByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event %s: %w", eventID, err)
	}
	if event.Organizer != userID {
		return nil, ErrForbidden
	}

	return order, nil
}

// OrdersByBuyer is the buyer's purchase history, each order joined with
// its event and the event's organizer profile.
func (s *OrderService) OrdersByBuyer(ctx context.Context, buyerID string, page, limit int) (*models.PagedOrders, error) {
	if limit <= 0 {
		limit = 3
	}

	rows, count, err := s.DB.ListOrdersByBuyer(ctx, buyerID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for buyer %s: %w", buyerID, err)
	}

	profiles := make(map[string]*models.UserProfile)
	for i := range rows {
		subject := rows[i].EventOrganizer
		if subject == "" {
			continue
		}
		profile, ok := profiles[subject]
		if !ok {
			profile, err = s.Identity.Lookup(ctx, subject)
			if err != nil {
				return nil, fmt.Errorf("organizer lookup for order %s failed: %w", rows[i].ID, err)
			}
			profiles[subject] = profile
		}
		rows[i].Organizer = profile
	}

	return &models.PagedOrders{
		Data:       rows,
		TotalPages: utils.TotalPages(count, limit),
	}, nil
}
