package entities

import "fmt"

// FacilityCategory is one entry of the directory category catalog
type FacilityCategory struct {
	Name     string
	TagKey   string
	TagValue string
}

// RegionKind selects how a region is expressed in a directory query
type RegionKind string

const (
	RegionKindArea   RegionKind = "area"
	RegionKindCircle RegionKind = "circle"
)

// Region is one entry of the administrative region catalog
type Region struct {
	Name     string
	Kind     RegionKind
	Province string

	// Area regions
	ISOCode string

	// Circle regions
	City         string
	Center       Location
	RadiusMeters int
}

// Key returns a stable identifier for the region
func (r Region) Key() string {
	if r.Kind == RegionKindArea {
		return r.ISOCode
	}
	return fmt.Sprintf("%s@%.4f,%.4f/%d", r.City, r.Center.Latitude, r.Center.Longitude, r.RadiusMeters)
}

// ImportSegment is one bounded (category, region) directory query
type ImportSegment struct {
	Index          int
	Category       FacilityCategory
	Region         Region
	TimeoutSeconds int
	MaxSizeBytes   int
}

// Key returns a stable identifier used in logs, reports and cache keys
func (s ImportSegment) Key() string {
	return s.Category.Name + "/" + s.Region.Key()
}
