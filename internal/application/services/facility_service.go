package services

import (
	"context"

	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
	"github.com/zatekoja/caremarket/backend/internal/domain/providers"
	"github.com/zatekoja/caremarket/backend/internal/domain/repositories"
	"github.com/zatekoja/caremarket/backend/internal/infrastructure/observability"
)

// FacilityService writes facilities and keeps the search index and subscribers in step.
// The store write is authoritative; indexing and events are best effort.
type FacilityService struct {
	store      repositories.FacilityStore
	searchRepo repositories.FacilitySearchRepository
	events     providers.EventBus
}

// NewFacilityService creates a new facility service. searchRepo and events may be nil.
func NewFacilityService(store repositories.FacilityStore, searchRepo repositories.FacilitySearchRepository, events providers.EventBus) *FacilityService {
	return &FacilityService{
		store:      store,
		searchRepo: searchRepo,
		events:     events,
	}
}

// Create stores a new facility, sets its id, and indexes it
func (s *FacilityService) Create(ctx context.Context, facility *entities.Facility) (int64, error) {
	id, err := s.store.Create(ctx, facility)
	if err != nil {
		return 0, err
	}
	facility.ID = id

	s.index(ctx, facility)
	s.publish(ctx, entities.NewFacilityEvent(id, entities.FacilityEventTypeImported, facility.Location, map[string]interface{}{
		"name":      facility.Name,
		"kind":      facility.Kind,
		"source_id": facility.SourceID,
	}))

	return id, nil
}

// Update applies update to existing and returns the record as it now stands
func (s *FacilityService) Update(ctx context.Context, existing *entities.Facility, update entities.FacilityUpdate) (*entities.Facility, error) {
	if err := s.store.Update(ctx, existing.ID, update); err != nil {
		return nil, err
	}

	updated := *existing
	update.Apply(&updated)

	s.index(ctx, &updated)
	if changed := changedFields(existing, &updated); len(changed) > 0 {
		s.publish(ctx, entities.NewFacilityEvent(updated.ID, entities.FacilityEventTypeSynced, updated.Location, changed))
	}

	return &updated, nil
}

// PurgeManaged deletes every managed record from the store and the search index
func (s *FacilityService) PurgeManaged(ctx context.Context) (int64, error) {
	logger := observability.LoggerFromContext(ctx)

	deleted, err := s.store.DeleteManaged(ctx)
	if err != nil {
		return 0, err
	}

	if s.searchRepo != nil {
		if n, err := s.searchRepo.DeleteManaged(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to purge managed facilities from search index")
		} else {
			logger.Info().Int("documents", n).Msg("Purged managed facilities from search index")
		}
	}

	s.publish(ctx, entities.NewFacilityEvent(0, entities.FacilityEventTypePurged, nil, map[string]interface{}{
		"deleted": deleted,
	}))

	return deleted, nil
}

func (s *FacilityService) index(ctx context.Context, facility *entities.Facility) {
	if s.searchRepo == nil {
		return
	}
	if err := s.searchRepo.Index(ctx, facility); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Int64("facility_id", facility.ID).Msg("Failed to index facility")
	}
}

func (s *FacilityService) publish(ctx context.Context, event *entities.FacilityEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, providers.EventChannelFacilityUpdates, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("event_type", string(event.EventType)).Msg("Failed to publish facility event")
	}
}

func changedFields(before, after *entities.Facility) map[string]interface{} {
	changed := map[string]interface{}{}
	set := func(name string, b, a interface{}) {
		if b != a {
			changed[name] = a
		}
	}
	set("name", before.Name, after.Name)
	set("kind", before.Kind, after.Kind)
	set("classification", before.Classification, after.Classification)
	set("address", before.Address, after.Address)
	set("city", before.City, after.City)
	set("province", before.Province, after.Province)
	set("postal_code", before.PostalCode, after.PostalCode)
	set("phone", before.Phone, after.Phone)
	set("email", before.Email, after.Email)
	set("website", before.Website, after.Website)
	if !sameLocation(before.Location, after.Location) {
		changed["location"] = after.Location
	}
	return changed
}

func sameLocation(a, b *entities.Location) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
