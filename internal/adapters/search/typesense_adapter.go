package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
	"github.com/zatekoja/caremarket/backend/internal/domain/repositories"
	tsclient "github.com/zatekoja/caremarket/backend/internal/infrastructure/clients/typesense"
)

const managedFilter = "managed_by_pipeline:true"

// TypesenseAdapter keeps the facility search collection in step with the store
type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements FacilitySearchRepository
var _ repositories.FacilitySearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// Index upserts a facility document
func (a *TypesenseAdapter) Index(ctx context.Context, facility *entities.Facility) error {
	_, err := a.client.Client().Collection(tsclient.FacilitiesCollection).Documents().Upsert(ctx, facilityDocument(facility))
	if err != nil {
		return fmt.Errorf("failed to index facility %d: %w", facility.ID, err)
	}
	return nil
}

// Delete removes a facility from index
func (a *TypesenseAdapter) Delete(ctx context.Context, id int64) error {
	_, err := a.client.Client().Collection(tsclient.FacilitiesCollection).Document(documentID(id)).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete facility %d from index: %w", id, err)
	}
	return nil
}

// DeleteManaged removes every document owned by the import
func (a *TypesenseAdapter) DeleteManaged(ctx context.Context) (int, error) {
	deleted, err := a.client.Client().Collection(tsclient.FacilitiesCollection).Documents().Delete(ctx, &api.DeleteDocumentsParams{
		FilterBy: pointer.String(managedFilter),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete managed facilities from index: %w", err)
	}
	return deleted, nil
}

func documentID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// facilityDocument maps a facility onto the collection schema. Facilities without coordinates carry no location.
func facilityDocument(f *entities.Facility) map[string]interface{} {
	doc := map[string]interface{}{
		"id":                  documentID(f.ID),
		"name":                f.Name,
		"kind":                string(f.Kind),
		"city":                f.City,
		"province":            f.Province,
		"verified":            f.Verified,
		"managed_by_pipeline": f.ManagedByPipeline,
		"rating":              f.Rating,
		"review_count":        f.ReviewCount,
		"created_at":          f.CreatedAt.Unix(),
	}
	if f.Classification != "" {
		doc["classification"] = f.Classification
	}
	if f.Location != nil {
		doc["location"] = []float64{f.Location.Latitude, f.Location.Longitude}
	}
	return doc
}
