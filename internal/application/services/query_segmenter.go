package services

import (
	"fmt"

	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
)

const (
	RegionModeProvinces = "provinces"
	RegionModeCities    = "cities"
)

// DefaultFacilityCategories is the directory category catalog, in query order
var DefaultFacilityCategories = []entities.FacilityCategory{
	{Name: "hospital", TagKey: "amenity", TagValue: "hospital"},
	{Name: "clinic", TagKey: "amenity", TagValue: "clinic"},
	{Name: "pharmacy", TagKey: "amenity", TagValue: "pharmacy"},
	{Name: "doctor", TagKey: "amenity", TagValue: "doctors"},
	{Name: "dentist", TagKey: "amenity", TagValue: "dentist"},
	{Name: "physiotherapist", TagKey: "healthcare", TagValue: "physiotherapist"},
	{Name: "psychotherapist", TagKey: "healthcare", TagValue: "psychotherapist"},
}

// ProvinceRegions covers the country one administrative area per province
var ProvinceRegions = []entities.Region{
	{Name: "Eastern Cape", Kind: entities.RegionKindArea, ISOCode: "ZA-EC", Province: "Eastern Cape"},
	{Name: "Free State", Kind: entities.RegionKindArea, ISOCode: "ZA-FS", Province: "Free State"},
	{Name: "Gauteng", Kind: entities.RegionKindArea, ISOCode: "ZA-GP", Province: "Gauteng"},
	{Name: "KwaZulu-Natal", Kind: entities.RegionKindArea, ISOCode: "ZA-KZN", Province: "KwaZulu-Natal"},
	{Name: "Limpopo", Kind: entities.RegionKindArea, ISOCode: "ZA-LP", Province: "Limpopo"},
	{Name: "Mpumalanga", Kind: entities.RegionKindArea, ISOCode: "ZA-MP", Province: "Mpumalanga"},
	{Name: "North West", Kind: entities.RegionKindArea, ISOCode: "ZA-NW", Province: "North West"},
	{Name: "Northern Cape", Kind: entities.RegionKindArea, ISOCode: "ZA-NC", Province: "Northern Cape"},
	{Name: "Western Cape", Kind: entities.RegionKindArea, ISOCode: "ZA-WC", Province: "Western Cape"},
}

// CityRegions are bounding circles around the metros, for mirrors that struggle with province-sized areas
var CityRegions = []entities.Region{
	cityRegion("Johannesburg", "Gauteng", -26.2041, 28.0473, 40000),
	cityRegion("Pretoria", "Gauteng", -25.7479, 28.2293, 35000),
	cityRegion("Cape Town", "Western Cape", -33.9249, 18.4241, 40000),
	cityRegion("Durban", "KwaZulu-Natal", -29.8587, 31.0218, 35000),
	cityRegion("Gqeberha", "Eastern Cape", -33.9608, 25.6022, 30000),
	cityRegion("East London", "Eastern Cape", -33.0153, 27.9116, 25000),
	cityRegion("Bloemfontein", "Free State", -29.0852, 26.1596, 25000),
	cityRegion("Pietermaritzburg", "KwaZulu-Natal", -29.6006, 30.3794, 25000),
	cityRegion("Polokwane", "Limpopo", -23.9045, 29.4689, 25000),
	cityRegion("Mbombela", "Mpumalanga", -25.4658, 30.9853, 25000),
	cityRegion("Rustenburg", "North West", -25.6676, 27.2421, 25000),
	cityRegion("Kimberley", "Northern Cape", -28.7282, 24.7499, 25000),
}

func cityRegion(city, province string, lat, lng float64, radius int) entities.Region {
	return entities.Region{
		Name:         city,
		Kind:         entities.RegionKindCircle,
		Province:     province,
		City:         city,
		Center:       entities.Location{Latitude: lat, Longitude: lng},
		RadiusMeters: radius,
	}
}

// RegionsForMode returns the region catalog for IMPORT_REGION_MODE
func RegionsForMode(mode string) ([]entities.Region, error) {
	switch mode {
	case RegionModeProvinces, "":
		return ProvinceRegions, nil
	case RegionModeCities:
		return CityRegions, nil
	default:
		return nil, fmt.Errorf("unknown region mode %q", mode)
	}
}

// SegmentLimits are the per-request ceilings written into every segment
type SegmentLimits struct {
	TimeoutSeconds int
	MaxSizeBytes   int
}

// QuerySegmenter plans the import as one bounded query per (category, region)
type QuerySegmenter struct {
	categories []entities.FacilityCategory
	regions    []entities.Region
	limits     SegmentLimits
}

// NewQuerySegmenter creates a segmenter over the given catalogs
func NewQuerySegmenter(categories []entities.FacilityCategory, regions []entities.Region, limits SegmentLimits) *QuerySegmenter {
	if limits.TimeoutSeconds <= 0 {
		limits.TimeoutSeconds = 60
	}
	return &QuerySegmenter{
		categories: categories,
		regions:    regions,
		limits:     limits,
	}
}

// Segments returns every (category, region) pair, category-major, indexed from 0
func (s *QuerySegmenter) Segments() []entities.ImportSegment {
	segments := make([]entities.ImportSegment, 0, len(s.categories)*len(s.regions))
	for _, category := range s.categories {
		for _, region := range s.regions {
			segments = append(segments, entities.ImportSegment{
				Index:          len(segments),
				Category:       category,
				Region:         region,
				TimeoutSeconds: s.limits.TimeoutSeconds,
				MaxSizeBytes:   s.limits.MaxSizeBytes,
			})
		}
	}
	return segments
}
