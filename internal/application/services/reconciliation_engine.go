package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
	"github.com/zatekoja/caremarket/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/caremarket/backend/pkg/errors"
)

// FacilityWriter persists reconciliation decisions
type FacilityWriter interface {
	Create(ctx context.Context, facility *entities.Facility) (int64, error)
	Update(ctx context.Context, existing *entities.Facility, update entities.FacilityUpdate) (*entities.Facility, error)
}

// ReconciliationEngine decides whether a validated draft updates a managed record or creates one
type ReconciliationEngine struct {
	store  repositories.FacilityStore
	writer FacilityWriter
	index  *CandidateIndex
	now    func() time.Time
}

// NewReconciliationEngine creates an engine. Until Prime is called, candidates are read from the store per draft.
func NewReconciliationEngine(store repositories.FacilityStore, writer FacilityWriter) *ReconciliationEngine {
	return &ReconciliationEngine{
		store:  store,
		writer: writer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Prime loads every managed record into an in-memory candidate index and returns its size
func (e *ReconciliationEngine) Prime(ctx context.Context) (int, error) {
	managed, err := e.store.ListManaged(ctx)
	if err != nil {
		return 0, err
	}
	index := NewCandidateIndex()
	for _, f := range managed {
		index.Put(f)
	}
	e.index = index
	return index.Len(), nil
}

// Matches reports whether an existing record is the same facility as the draft:
// both coordinates within CoordinateTolerance, or identical name and city.
// Records not managed by the import never match.
func Matches(existing *entities.Facility, draft *entities.FacilityDraft) bool {
	if existing == nil || draft == nil || !existing.ManagedByPipeline {
		return false
	}
	if existing.Location != nil && draft.Location != nil &&
		withinTolerance(existing.Location.Latitude, draft.Location.Latitude) &&
		withinTolerance(existing.Location.Longitude, draft.Location.Longitude) {
		return true
	}
	return existing.Name == draft.Name && existing.City == draft.City
}

// FindMatch returns the lowest-id managed record matching the draft, or nil
func (e *ReconciliationEngine) FindMatch(ctx context.Context, draft *entities.FacilityDraft) (*entities.Facility, error) {
	candidates, err := e.candidates(ctx, draft)
	if err != nil {
		return nil, err
	}

	var best *entities.Facility
	for _, c := range candidates {
		if !Matches(c, draft) {
			continue
		}
		if best == nil || c.ID < best.ID {
			best = c
		}
	}
	return best, nil
}

// Reconcile creates or updates the facility for one validated draft.
// Store failures come back as WRITE_FAILED, or UNAVAILABLE when the store cannot be reached.
func (e *ReconciliationEngine) Reconcile(ctx context.Context, draft *entities.FacilityDraft) (entities.ReconcileOutcome, *entities.Facility, error) {
	match, err := e.FindMatch(ctx, draft)
	if err != nil {
		return entities.OutcomeErrored, nil, classifyStoreError(fmt.Sprintf("failed to look up candidates for %s", draft.SourceID), err)
	}

	now := e.now()

	if match != nil {
		updated, err := e.writer.Update(ctx, match, entities.UpdateFromDraft(draft, now))
		if err != nil {
			return entities.OutcomeErrored, nil, classifyStoreError(fmt.Sprintf("failed to update facility %d", match.ID), err)
		}
		if e.index != nil {
			e.index.Put(updated)
		}
		return entities.OutcomeUpdated, updated, nil
	}

	facility := entities.NewManagedFacility(draft, now)
	id, err := e.writer.Create(ctx, facility)
	if err != nil {
		return entities.OutcomeErrored, nil, classifyStoreError(fmt.Sprintf("failed to create facility for %s", draft.SourceID), err)
	}
	facility.ID = id
	if e.index != nil {
		e.index.Put(facility)
	}
	return entities.OutcomeImported, facility, nil
}

func (e *ReconciliationEngine) candidates(ctx context.Context, draft *entities.FacilityDraft) ([]*entities.Facility, error) {
	if e.index != nil {
		return e.index.Candidates(draft), nil
	}
	return e.store.FindCandidates(ctx, CandidateQueryFor(draft))
}

// CandidateQueryFor builds the store lookup covering the draft's tolerance window and name and city
func CandidateQueryFor(draft *entities.FacilityDraft) repositories.CandidateQuery {
	q := repositories.CandidateQuery{
		Name: draft.Name,
		City: draft.City,
	}
	if draft.Location != nil {
		half := CoordinateTolerance + toleranceEpsilon
		q.Box = &repositories.BoundingBox{
			MinLatitude:  draft.Location.Latitude - half,
			MaxLatitude:  draft.Location.Latitude + half,
			MinLongitude: draft.Location.Longitude - half,
			MaxLongitude: draft.Location.Longitude + half,
		}
	}
	return q
}

// classifyStoreError keeps UNAVAILABLE and WRITE_FAILED as they are and wraps everything else as WRITE_FAILED
func classifyStoreError(message string, err error) error {
	if apperrors.IsType(err, apperrors.ErrorTypeUnavailable) || apperrors.IsType(err, apperrors.ErrorTypeWriteFailed) {
		return err
	}
	return apperrors.NewWriteFailedError(message, err)
}
