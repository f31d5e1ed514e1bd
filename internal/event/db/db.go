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

// ---------------- EVENTS ----------------

// CreateEvent → insert new event
func (d *DB) CreateEvent(ctx context.Context, event models.Event) error {
	_, err := d.Bun.NewInsert().Model(&event).Exec(ctx)
	return err
}

// GetEventByID → fetch one event with its category
func (d *DB) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Relation("Category").
		Where("event.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// UpdateEvent → update the mutable fields
func (d *DB) UpdateEvent(ctx context.Context, event models.Event) error {
	_, err := d.Bun.NewUpdate().
		Model(&event).
		Column("title", "description", "location", "image_url",
			"start_date_time", "end_date_time", "price", "is_free",
			"url", "category_id").
		Where("id = ?", event.ID).
		Exec(ctx)
	return err
}

// DeleteEvent → delete an event by ID
func (d *DB) DeleteEvent(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Event)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// ListEvents → filtered, paginated listing sorted by creation time
// descending. Title matching is a case-insensitive substring; category
// matching is a case-insensitive exact name. lower() keeps the queries
// portable between Postgres and the SQLite test dialect.
func (d *DB) ListEvents(ctx context.Context, f models.EventFilter) ([]models.Event, int, error) {
	q := d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Relation("Category")

	if f.Query != "" {
		q = q.Where("lower(event.title) LIKE ?", "%"+strings.ToLower(f.Query)+"%")
	}
	if f.Category != "" {
		q = q.Join("JOIN categories AS c ON c.id = event.category_id").
			Where("lower(c.name) = ?", strings.ToLower(f.Category))
	}

	var events []models.Event
	count, err := q.Order("event.created_at DESC").
		Offset(offset(f.Page, f.Limit)).
		Limit(f.Limit).
		ScanAndCount(ctx, &events)
	if err != nil {
		return nil, 0, err
	}

	return events, count, nil
}

// ListEventsByOrganizer → paginated events created by one organizer
func (d *DB) ListEventsByOrganizer(ctx context.Context, organizer string, page, limit int) ([]models.Event, int, error) {
	q := d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Relation("Category").
		Where("event.organizer = ?", organizer)

	var events []models.Event
	count, err := q.Order("event.created_at DESC").
		Offset(offset(page, limit)).
		Limit(limit).
		ScanAndCount(ctx, &events)
	if err != nil {
		return nil, 0, err
	}

	return events, count, nil
}

// ListRelatedEvents → events sharing a category, excluding the event the
// caller is looking at
func (d *DB) ListRelatedEvents(ctx context.Context, categoryID, excludeEventID string, page, limit int) ([]models.Event, int, error) {
	q := d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Relation("Category").
		Where("event.category_id = ?", categoryID).
		Where("event.id != ?", excludeEventID)

	var events []models.Event
	count, err := q.Order("event.created_at DESC").
		Offset(offset(page, limit)).
		Limit(limit).
		ScanAndCount(ctx, &events)
	if err != nil {
		return nil, 0, err
	}

	return events, count, nil
}

// UnlinkOrganizer → clear the organizer reference on all events owned by a
// deleted identity subject
func (d *DB) UnlinkOrganizer(ctx context.Context, subject string) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("organizer = ''").
		Where("organizer = ?", subject).
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
