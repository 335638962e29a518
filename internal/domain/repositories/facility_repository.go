package repositories

import (
	"context"

	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
)

// FacilityStore is the facility persistence boundary used by the import
type FacilityStore interface {
	// FindCandidates returns managed records inside the bounding box or with the exact name and city
	FindCandidates(ctx context.Context, q CandidateQuery) ([]*entities.Facility, error)

	// Create inserts a facility and returns the id assigned by the store
	Create(ctx context.Context, facility *entities.Facility) (int64, error)

	// Update overwrites the import-owned fields of one record
	Update(ctx context.Context, id int64, update entities.FacilityUpdate) error

	// DeleteManaged removes every managed record and returns how many were removed
	DeleteManaged(ctx context.Context) (int64, error)

	// ListManaged returns every managed record ordered by id
	ListManaged(ctx context.Context) ([]*entities.Facility, error)

	// CountManaged counts managed records
	CountManaged(ctx context.Context) (int64, error)

	// CountByProvince groups managed records by province
	CountByProvince(ctx context.Context) ([]GroupCount, error)

	// CountByKind groups managed records by kind
	CountByKind(ctx context.Context) ([]GroupCount, error)
}

// CandidateQuery selects possible matches for a draft: records whose coordinates fall
// inside Box, or whose name and city equal Name and City. Box may be nil.
type CandidateQuery struct {
	Box  *BoundingBox
	Name string
	City string
}

// BoundingBox is an inclusive latitude and longitude range
type BoundingBox struct {
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
}

// Contains reports whether the point lies inside the box
func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLatitude && lat <= b.MaxLatitude && lng >= b.MinLongitude && lng <= b.MaxLongitude
}

// GroupCount is one row of a grouped count
type GroupCount struct {
	Key   string `json:"key" db:"key"`
	Count int64  `json:"count" db:"count"`
}

// FacilitySearchRepository keeps the facility search index in step with the store
type FacilitySearchRepository interface {
	// Index indexes a facility
	Index(ctx context.Context, facility *entities.Facility) error

	// Delete removes a facility from index
	Delete(ctx context.Context, id int64) error

	// DeleteManaged removes every managed facility from the index
	DeleteManaged(ctx context.Context) (int, error)
}
