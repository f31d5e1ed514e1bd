package db

import (
	"context"
	"strings"

	"github.com/uptrace/bun"

	"ms-events/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

// CreateOrder → insert a new order. The stripe_id unique constraint makes
// this idempotent: a duplicate webhook delivery inserts nothing and the
// returned bool is false.
func (d *DB) CreateOrder(ctx context.Context, order models.Order) (bool, error) {
	res, err := d.Bun.NewInsert().
		Model(&order).
		On("CONFLICT (stripe_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return inserted > 0, nil
}

// GetOrderByID → fetch one order by its ID
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("o.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByStripeID → fetch one order by the checkout-session id
func (d *DB) GetOrderByStripeID(ctx context.Context, stripeID string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("o.stripe_id = ?", stripeID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ---------------- RELATION QUERIES ----------------

// ListOrdersByEvent → the organizer's sales view for one event, optionally
// filtered by a case-insensitive buyer-id substring.
func (d *DB) ListOrdersByEvent(ctx context.Context, eventID, buyerFilter string) ([]models.OrderBuyerRow, error) {
	q := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		ColumnExpr("o.id, o.total_amount, o.created_at, o.event_id, o.buyer_id").
		ColumnExpr("e.title AS event_title").
		Join("JOIN events AS e ON e.id = o.event_id").
		Where("o.event_id = ?", eventID)

	if buyerFilter != "" {
		q = q.Where("lower(o.buyer_id) LIKE ?", "%"+strings.ToLower(buyerFilter)+"%")
	}

	var rows []models.OrderBuyerRow
	err := q.Order("o.created_at DESC").Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListOrdersByBuyer → paginated purchase history for one buyer, joined
// with the title and organizer of each order's event.
func (d *DB) ListOrdersByBuyer(ctx context.Context, buyerID string, page, limit int) ([]models.OrderWithEvent, int, error) {
	var rows []models.OrderWithEvent
	count, err := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		ColumnExpr("o.*").
		ColumnExpr("e.title AS event_title").
		ColumnExpr("e.organizer AS event_organizer").
		Join("JOIN events AS e ON e.id = o.event_id").
		Where("o.buyer_id = ?", buyerID).
		Order("o.created_at DESC").
		Offset(offset(page, limit)).
		Limit(limit).
		ScanAndCount(ctx, &rows)
	if err != nil {
		return nil, 0, err
	}
	return rows, count, nil
}

// UnlinkBuyer → clear the buyer reference on all orders of a deleted
// identity subject
func (d *DB) UnlinkBuyer(ctx context.Context, subject string) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("buyer_id = ''").
		Where("buyer_id = ?", subject).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
