package entities

import (
	"math"
	"time"
)

// FacilityKind is the canonical facility category shown in the directory
type FacilityKind string

const (
	FacilityKindPublic   FacilityKind = "PUBLIC"
	FacilityKindPrivate  FacilityKind = "PRIVATE"
	FacilityKindClinic   FacilityKind = "CLINIC"
	FacilityKindPharmacy FacilityKind = "PHARMACY"
)

// FacilityKinds lists every kind in display order
var FacilityKinds = []FacilityKind{
	FacilityKindPublic,
	FacilityKindPrivate,
	FacilityKindClinic,
	FacilityKindPharmacy,
}

// PlaceholderFacilityName is used by the normalizer when the source carries no name
const PlaceholderFacilityName = "Unnamed Facility"

// Facility is a hospital, clinic or pharmacy listed in the directory.
//
// Records with ManagedByPipeline set are owned by the directory import and may be
// overwritten by it; all other records are curated by hand and never touched by it.
type Facility struct {
	ID                int64        `json:"id" db:"id"`
	Name              string       `json:"name" db:"name"`
	Kind              FacilityKind `json:"kind" db:"kind"`
	Classification    string       `json:"classification" db:"classification"`
	Address           string       `json:"address" db:"address"`
	City              string       `json:"city" db:"city"`
	Province          string       `json:"province" db:"province"`
	PostalCode        string       `json:"postal_code" db:"postal_code"`
	Phone             string       `json:"phone,omitempty" db:"phone"`
	Email             string       `json:"email,omitempty" db:"email"`
	Website           string       `json:"website,omitempty" db:"website"`
	Location          *Location    `json:"location,omitempty" db:"-"`
	Verified          bool         `json:"verified" db:"verified"`
	ManagedByPipeline bool         `json:"managed_by_pipeline" db:"managed_by_pipeline"`
	SourceID          string       `json:"source_id,omitempty" db:"source_id"`
	SourceKind        string       `json:"source_kind,omitempty" db:"source_kind"`
	Rating            float64      `json:"rating" db:"rating"`
	ReviewCount       int          `json:"review_count" db:"review_count"`
	LastSyncedAt      *time.Time   `json:"last_synced_at,omitempty" db:"last_synced_at"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}

// Location represents geographical coordinates
type Location struct {
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
}

// NewLocation returns nil unless both coordinates are finite and in range
func NewLocation(lat, lng float64) *Location {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return nil
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil
	}
	return &Location{Latitude: lat, Longitude: lng}
}

// FacilityDraft is a normalized directory element that has not been validated yet
type FacilityDraft struct {
	Name           string       `validate:"required,not_placeholder"`
	Kind           FacilityKind `validate:"required,oneof=PUBLIC PRIVATE CLINIC PHARMACY"`
	Classification string
	Address        string
	City           string    `validate:"required"`
	Province       string    `validate:"required"`
	PostalCode     string
	Phone          string
	Email          string
	Website        string
	Location       *Location `validate:"required"`
	SourceID       string
	SourceKind     string
}

// FacilityUpdate carries the fields the import owns on an existing record
type FacilityUpdate struct {
	Name           string
	Kind           FacilityKind
	Classification string
	Address        string
	City           string
	Province       string
	PostalCode     string
	Phone          string
	Email          string
	Website        string
	Location       *Location
	SourceID       string
	SourceKind     string
	LastSyncedAt   time.Time
}

// NewManagedFacility builds the record inserted when a draft matches nothing
func NewManagedFacility(d *FacilityDraft, now time.Time) *Facility {
	synced := now
	return &Facility{
		Name:              d.Name,
		Kind:              d.Kind,
		Classification:    d.Classification,
		Address:           d.Address,
		City:              d.City,
		Province:          d.Province,
		PostalCode:        d.PostalCode,
		Phone:             d.Phone,
		Email:             d.Email,
		Website:           d.Website,
		Location:          copyLocation(d.Location),
		Verified:          false,
		ManagedByPipeline: true,
		SourceID:          d.SourceID,
		SourceKind:        d.SourceKind,
		Rating:            0,
		ReviewCount:       0,
		LastSyncedAt:      &synced,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// UpdateFromDraft builds the overwrite applied to a matched record
func UpdateFromDraft(d *FacilityDraft, now time.Time) FacilityUpdate {
	return FacilityUpdate{
		Name:           d.Name,
		Kind:           d.Kind,
		Classification: d.Classification,
		Address:        d.Address,
		City:           d.City,
		Province:       d.Province,
		PostalCode:     d.PostalCode,
		Phone:          d.Phone,
		Email:          d.Email,
		Website:        d.Website,
		Location:       copyLocation(d.Location),
		SourceID:       d.SourceID,
		SourceKind:     d.SourceKind,
		LastSyncedAt:   now,
	}
}

// Apply copies the update onto f, leaving curated fields alone
func (u FacilityUpdate) Apply(f *Facility) {
	f.Name = u.Name
	f.Kind = u.Kind
	f.Classification = u.Classification
	f.Address = u.Address
	f.City = u.City
	f.Province = u.Province
	f.PostalCode = u.PostalCode
	f.Phone = u.Phone
	f.Email = u.Email
	f.Website = u.Website
	f.Location = copyLocation(u.Location)
	f.SourceID = u.SourceID
	f.SourceKind = u.SourceKind
	synced := u.LastSyncedAt
	f.LastSyncedAt = &synced
	f.UpdatedAt = u.LastSyncedAt
}

func copyLocation(l *Location) *Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
