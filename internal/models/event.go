package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event is a ticketed event. Organizer holds the identity-provider subject
// id of the creator; there is no local user table to reference.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID            string    `bun:"id,pk" json:"id"`
	Title         string    `bun:"title,notnull" json:"title"`
	Description   string    `bun:"description,nullzero" json:"description,omitempty"`
	Location      string    `bun:"location,nullzero" json:"location,omitempty"`
	ImageURL      string    `bun:"image_url,nullzero" json:"image_url,omitempty"`
	StartDateTime time.Time `bun:"start_date_time,notnull" json:"start_date_time"`
	EndDateTime   time.Time `bun:"end_date_time,notnull" json:"end_date_time"`
	Price         string    `bun:"price,nullzero" json:"price,omitempty"`
	IsFree        bool      `bun:"is_free" json:"is_free"`
	URL           string    `bun:"url,nullzero" json:"url,omitempty"`
	CategoryID    string    `bun:"category_id,nullzero" json:"category_id,omitempty"`
	Organizer     string    `bun:"organizer,notnull" json:"organizer_id"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	Category *Category `bun:"rel:belongs-to,join:category_id=id" json:"category,omitempty"`
}

// EventInput carries the mutable fields of an event through create/update.
type EventInput struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Location      string    `json:"location"`
	ImageURL      string    `json:"image_url"`
	StartDateTime time.Time `json:"start_date_time"`
	EndDateTime   time.Time `json:"end_date_time"`
	Price         string    `json:"price"`
	IsFree        bool      `json:"is_free"`
	URL           string    `json:"url"`
	CategoryID    string    `json:"category_id"`
}

// EnrichedEvent is an event plus its organizer profile joined in memory
// from the identity API.
type EnrichedEvent struct {
	Event
	OrganizerProfile *UserProfile `json:"organizer,omitempty"`
}

type PagedEvents struct {
	Data       []EnrichedEvent `json:"data"`
	TotalPages int             `json:"total_pages"`
}

// EventFilter describes the list query: case-insensitive title substring,
// case-insensitive category name, page starting at 1.
type EventFilter struct {
	Query    string
	Category string
	Page     int
	Limit    int
}
