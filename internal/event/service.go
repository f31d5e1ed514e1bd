package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/utils"
)

var (
	ErrNotFound  = errors.New("event not found")
	ErrForbidden = errors.New("only the organizer may modify this event")
)

type DBLayer interface {
	CreateEvent(ctx context.Context, event models.Event) error
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	UpdateEvent(ctx context.Context, event models.Event) error
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context, f models.EventFilter) ([]models.Event, int, error)
	ListEventsByOrganizer(ctx context.Context, organizer string, page, limit int) ([]models.Event, int, error)
	ListRelatedEvents(ctx context.Context, categoryID, excludeEventID string, page, limit int) ([]models.Event, int, error)
}

type IdentityLookup interface {
	Lookup(ctx context.Context, subject string) (*models.UserProfile, error)
}

type EventService struct {
	DB       DBLayer
	Identity IdentityLookup
	Logger   *logger.Logger
}

func NewEventService(db DBLayer, identity IdentityLookup, log *logger.Logger) *EventService {
	return &EventService{DB: db, Identity: identity, Logger: log}
}

// Create persists a new event owned by the authenticated organizer and
// returns it with the organizer profile attached.
func (s *EventService) Create(ctx context.Context, organizer string, in models.EventInput) (*models.EnrichedEvent, error) {
	event := models.Event{
		ID:            uuid.NewString(),
		Title:         in.Title,
		Description:   in.Description,
		Location:      in.Location,
		ImageURL:      in.ImageURL,
		StartDateTime: in.StartDateTime,
		EndDateTime:   in.EndDateTime,
		Price:         in.Price,
		IsFree:        in.IsFree,
		URL:           in.URL,
		CategoryID:    in.CategoryID,
		Organizer:     organizer,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.DB.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	profile, err := s.Identity.Lookup(ctx, organizer)
	if err != nil {
		return nil, fmt.Errorf("event created but organizer lookup failed: %w", err)
	}

	s.Logger.Info("EVENT", fmt.Sprintf("Created event %s by organizer %s", event.ID, organizer))
	return &models.EnrichedEvent{Event: event, OrganizerProfile: profile}, nil
}

// GetByID returns one event with its category and organizer profile.
func (s *EventService) GetByID(ctx context.Context, id string) (*models.EnrichedEvent, error) {
	event, err := s.DB.GetEventByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load event %s: %w", id, err)
	}

	// An empty organizer means the account was deleted; the event stays
	// readable without a profile.
	var profile *models.UserProfile
	if event.Organizer != "" {
		profile, err = s.Identity.Lookup(ctx, event.Organizer)
		if err != nil {
			return nil, fmt.Errorf("organizer lookup for event %s failed: %w", id, err)
		}
	}

	return &models.EnrichedEvent{Event: *event, OrganizerProfile: profile}, nil
}

// Update replaces the mutable fields of an event. Only the organizer who
// created the event may update it.
func (s *EventService) Update(ctx context.Context, userID, eventID string, in models.EventInput) (*models.Event, error) {
	existing, err := s.DB.GetEventByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load event %s: %w", eventID, err)
	}

	if existing.Organizer != userID {
		return nil, ErrForbidden
	}

	updated := *existing
	updated.Title = in.Title
	updated.Description = in.Description
	updated.Location = in.Location
	updated.ImageURL = in.ImageURL
	updated.StartDateTime = in.StartDateTime
	updated.EndDateTime = in.EndDateTime
	updated.Price = in.Price
	updated.IsFree = in.IsFree
	updated.URL = in.URL
	updated.CategoryID = in.CategoryID
	updated.Category = nil

	if err := s.DB.UpdateEvent(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to update event %s: %w", eventID, err)
	}

	s.Logger.Info("EVENT", fmt.Sprintf("Updated event %s", eventID))
	return &updated, nil
}

// Delete removes an event. Same ownership rule as Update.
func (s *EventService) Delete(ctx context.Context, userID, eventID string) error {
	existing, err := s.DB.GetEventByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load event %s: %w", eventID, err)
	}

	if existing.Organizer != userID {
		return ErrForbidden
	}

	if err := s.DB.DeleteEvent(ctx, eventID); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}

	s.Logger.Info("EVENT", fmt.Sprintf("Deleted event %s", eventID))
	return nil
}

// List returns a filtered page of events, each enriched with its organizer
// profile. An identity failure fails the whole listing rather than serving
// partial data.
func (s *EventService) List(ctx context.Context, f models.EventFilter) (*models.PagedEvents, error) {
	if f.Limit <= 0 {
		f.Limit = 6
	}

	events, count, err := s.DB.ListEvents(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	enriched, err := s.enrich(ctx, events)
	if err != nil {
		return nil, err
	}

	return &models.PagedEvents{
		Data:       enriched,
		TotalPages: utils.TotalPages(count, f.Limit),
	}, nil
}

// ListByOrganizer returns a page of the organizer's own events. The caller
// already knows who the organizer is, so no enrichment happens here.
func (s *EventService) ListByOrganizer(ctx context.Context, organizer string, page, limit int) (*models.PagedEvents, error) {
	if limit <= 0 {
		limit = 6
	}

	events, count, err := s.DB.ListEventsByOrganizer(ctx, organizer, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for organizer %s: %w", organizer, err)
	}

	return &models.PagedEvents{
		Data:       bare(events),
		TotalPages: utils.TotalPages(count, limit),
	}, nil
}

// ListRelated returns events sharing a category with the given event.
func (s *EventService) ListRelated(ctx context.Context, eventID string, page, limit int) (*models.PagedEvents, error) {
	if limit <= 0 {
		limit = 3
	}

	anchor, err := s.DB.GetEventByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load event %s: %w", eventID, err)
	}

	events, count, err := s.DB.ListRelatedEvents(ctx, anchor.CategoryID, eventID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list related events: %w", err)
	}

	return &models.PagedEvents{
		Data:       bare(events),
		TotalPages: utils.TotalPages(count, limit),
	}, nil
}

func (s *EventService) enrich(ctx context.Context, events []models.Event) ([]models.EnrichedEvent, error) {
	// Dedupe lookups per batch; the redis cache bounds the rest.
	profiles := make(map[string]*models.UserProfile)
	out := make([]models.EnrichedEvent, len(events))
	for i, ev := range events {
		// Events whose organizer account was deleted are served bare.
		if ev.Organizer == "" {
			out[i] = models.EnrichedEvent{Event: ev}
			continue
		}
		profile, ok := profiles[ev.Organizer]
		if !ok {
			var err error
			profile, err = s.Identity.Lookup(ctx, ev.Organizer)
			if err != nil {
				return nil, fmt.Errorf("organizer lookup for event %s failed: %w", ev.ID, err)
			}
			profiles[ev.Organizer] = profile
		}
		out[i] = models.EnrichedEvent{Event: ev, OrganizerProfile: profile}
	}
	return out, nil
}

func bare(events []models.Event) []models.EnrichedEvent {
	out := make([]models.EnrichedEvent, len(events))
	for i, ev := range events {
		out[i] = models.EnrichedEvent{Event: ev}
	}
	return out
}
