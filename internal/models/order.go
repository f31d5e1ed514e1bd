package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Order is created exclusively by the Stripe webhook flow. StripeID is the
// checkout session id and must be unique: a duplicate webhook delivery for
// the same session is a no-op.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID          string    `bun:"id,pk" json:"id"`
	StripeID    string    `bun:"stripe_id,unique,notnull" json:"stripe_id"`
	EventID     string    `bun:"event_id,notnull" json:"event_id"`
	BuyerID     string    `bun:"buyer_id,notnull" json:"buyer_id"`
	TotalAmount string    `bun:"total_amount,notnull" json:"total_amount"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// OrderWithEvent is an order joined with the title and organizer of the
// event it was purchased for. The organizer profile is filled in from the
// identity API, never from the database.
type OrderWithEvent struct {
	Order
	EventTitle     string       `bun:"event_title" json:"event_title"`
	EventOrganizer string       `bun:"event_organizer" json:"-"`
	Organizer      *UserProfile `bun:"-" json:"organizer,omitempty"`
}

// OrderBuyerRow is the per-event sales view shown to an organizer.
type OrderBuyerRow struct {
	ID          string    `bun:"id" json:"id"`
	TotalAmount string    `bun:"total_amount" json:"total_amount"`
	CreatedAt   time.Time `bun:"created_at" json:"created_at"`
	EventTitle  string    `bun:"event_title" json:"event_title"`
	EventID     string    `bun:"event_id" json:"event_id"`
	BuyerID     string    `bun:"buyer_id" json:"buyer_id"`
	Buyer       string    `bun:"-" json:"buyer"`
}

type PagedOrders struct {
	Data       []OrderWithEvent `json:"data"`
	TotalPages int              `json:"total_pages"`
}
