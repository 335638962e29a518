package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
)

func float(v float64) *float64 {
	return &v
}

func gautengSegment(category string) entities.ImportSegment {
	for _, c := range DefaultFacilityCategories {
		if c.Name == category {
			return entities.ImportSegment{Category: c, Region: ProvinceRegions[2], TimeoutSeconds: 60}
		}
	}
	panic("unknown category " + category)
}

func johannesburgElement() entities.DirectoryElement {
	return entities.DirectoryElement{
		Type: "node",
		ID:   "n1",
		Lat:  float(-26.1715),
		Lon:  float(28.0416),
		Tags: map[string]string{
			"amenity":       "hospital",
			"hospital_type": "public",
			"name":          "Example Academic Hospital",
			"addr:city":     "Johannesburg",
			"addr:province": "Gauteng",
		},
	}
}

func TestRecordNormalizer_JohannesburgHospital(t *testing.T) {
	draft := NewRecordNormalizer().Normalize(johannesburgElement(), gautengSegment("hospital"))

	assert.Equal(t, "Example Academic Hospital", draft.Name)
	assert.Equal(t, entities.FacilityKindPublic, draft.Kind)
	assert.Equal(t, "GENERAL", draft.Classification)
	assert.Equal(t, "Johannesburg", draft.City)
	assert.Equal(t, "Gauteng", draft.Province)
	assert.Equal(t, "n1", draft.SourceID)
	assert.Equal(t, "node", draft.SourceKind)
	require.NotNil(t, draft.Location)
	assert.Equal(t, -26.1715, draft.Location.Latitude)
	assert.Equal(t, 28.0416, draft.Location.Longitude)
}

func TestRecordNormalizer_Coordinates(t *testing.T) {
	tests := []struct {
		name     string
		element  entities.DirectoryElement
		expected *entities.Location
	}{
		{
			name:     "point",
			element:  entities.DirectoryElement{Lat: float(-25.1), Lon: float(28.1)},
			expected: &entities.Location{Latitude: -25.1, Longitude: 28.1},
		},
		{
			name:     "centroid when no point",
			element:  entities.DirectoryElement{Type: "way", Center: &entities.ElementCenter{Lat: -25.2, Lon: 28.2}},
			expected: &entities.Location{Latitude: -25.2, Longitude: 28.2},
		},
		{
			name: "point wins over centroid",
			element: entities.DirectoryElement{
				Lat: float(-25.1), Lon: float(28.1),
				Center: &entities.ElementCenter{Lat: -25.2, Lon: 28.2},
			},
			expected: &entities.Location{Latitude: -25.1, Longitude: 28.1},
		},
		{
			name:     "half a point is no point",
			element:  entities.DirectoryElement{Lat: float(-25.1), Center: &entities.ElementCenter{Lat: -25.2, Lon: 28.2}},
			expected: &entities.Location{Latitude: -25.2, Longitude: 28.2},
		},
		{
			name:     "out of range",
			element:  entities.DirectoryElement{Lat: float(-125.1), Lon: float(28.1)},
			expected: nil,
		},
		{
			name:     "absent",
			element:  entities.DirectoryElement{Type: "relation"},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := NewRecordNormalizer().Normalize(tt.element, gautengSegment("clinic"))
			assert.Equal(t, tt.expected, draft.Location)
		})
	}
}

func TestRecordNormalizer_Kind(t *testing.T) {
	tests := []struct {
		name     string
		category string
		tags     map[string]string
		expected entities.FacilityKind
	}{
		{"hospital defaults to private", "hospital", map[string]string{"amenity": "hospital"}, entities.FacilityKindPrivate},
		{"hospital public by operator type", "hospital", map[string]string{"amenity": "hospital", "operator:type": "government"}, entities.FacilityKindPublic},
		{"pharmacy", "pharmacy", map[string]string{"amenity": "pharmacy"}, entities.FacilityKindPharmacy},
		{"healthcare pharmacy", "clinic", map[string]string{"healthcare": "pharmacy"}, entities.FacilityKindPharmacy},
		{"clinic", "clinic", map[string]string{"amenity": "clinic"}, entities.FacilityKindClinic},
		{"doctor", "doctor", map[string]string{"amenity": "doctors"}, entities.FacilityKindClinic},
		{"dentist", "dentist", map[string]string{"amenity": "dentist"}, entities.FacilityKindClinic},
		{"physiotherapist", "physiotherapist", map[string]string{"healthcare": "physiotherapist"}, entities.FacilityKindClinic},
		{"psychotherapist", "psychotherapist", map[string]string{"healthcare": "psychotherapist"}, entities.FacilityKindClinic},
		{"untagged element in hospital segment", "hospital", nil, entities.FacilityKindPrivate},
		{"untagged element in pharmacy segment", "pharmacy", nil, entities.FacilityKindPharmacy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := NewRecordNormalizer().Normalize(entities.DirectoryElement{Tags: tt.tags}, gautengSegment(tt.category))
			assert.Equal(t, tt.expected, draft.Kind)
		})
	}
}

func TestRecordNormalizer_Address(t *testing.T) {
	tests := []struct {
		name     string
		tags     map[string]string
		expected string
	}{
		{
			name:     "house number street suburb",
			tags:     map[string]string{"addr:housenumber": "7", "addr:street": "York Road", "addr:suburb": "Parktown", "addr:full": "ignored"},
			expected: "7 York Road Parktown",
		},
		{
			name:     "street only",
			tags:     map[string]string{"addr:street": "Jubilee Road"},
			expected: "Jubilee Road",
		},
		{
			name:     "full address fallback",
			tags:     map[string]string{"addr:full": "1 Main Road, Rosebank"},
			expected: "1 Main Road, Rosebank",
		},
		{
			name:     "nothing",
			tags:     map[string]string{"amenity": "clinic"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := NewRecordNormalizer().Normalize(entities.DirectoryElement{Tags: tt.tags}, gautengSegment("clinic"))
			assert.Equal(t, tt.expected, draft.Address)
		})
	}
}

func TestRecordNormalizer_FallbacksAndContacts(t *testing.T) {
	seg := entities.ImportSegment{Category: DefaultFacilityCategories[2], Region: CityRegions[2]}
	el := entities.DirectoryElement{
		Type: "way",
		ID:   "4471",
		Tags: map[string]string{
			"amenity":               "pharmacy",
			"name:en":               "  Sea Point Pharmacy ",
			"addr:town":             "Sea Point",
			"contact:phone":         "+27 21 555 0100",
			"contact:email":         "info@example.co.za",
			"url":                   "https://example.co.za",
			"addr:postcode":         "8005",
			"healthcare:speciality": "compounding;retail",
		},
	}

	draft := NewRecordNormalizer().Normalize(el, seg)

	assert.Equal(t, "Sea Point Pharmacy", draft.Name)
	assert.Equal(t, "Sea Point", draft.City)
	assert.Equal(t, "Western Cape", draft.Province, "province from the city circle")
	assert.Equal(t, "+27 21 555 0100", draft.Phone)
	assert.Equal(t, "info@example.co.za", draft.Email)
	assert.Equal(t, "https://example.co.za", draft.Website)
	assert.Equal(t, "8005", draft.PostalCode)
	assert.Equal(t, "COMPOUNDING", draft.Classification)
	assert.Equal(t, "4471", draft.SourceID)
	assert.Equal(t, "way", draft.SourceKind)
}

func TestRecordNormalizer_PlaceholderAndRegionCity(t *testing.T) {
	seg := entities.ImportSegment{Category: DefaultFacilityCategories[1], Region: CityRegions[0]}

	draft := NewRecordNormalizer().Normalize(entities.DirectoryElement{Tags: map[string]string{"amenity": "clinic"}}, seg)

	assert.Equal(t, entities.PlaceholderFacilityName, draft.Name)
	assert.Equal(t, "Johannesburg", draft.City)
	assert.Equal(t, "Gauteng", draft.Province)
	assert.Equal(t, "CLINIC", draft.Classification)
}

func TestRecordNormalizer_ProvinceSegmentLeavesCityEmpty(t *testing.T) {
	draft := NewRecordNormalizer().Normalize(entities.DirectoryElement{Tags: map[string]string{"name": "X"}}, gautengSegment("dentist"))

	assert.Empty(t, draft.City)
	assert.Equal(t, "Gauteng", draft.Province)
}

func TestRecordNormalizer_IsPure(t *testing.T) {
	n := NewRecordNormalizer()
	el := johannesburgElement()
	seg := gautengSegment("hospital")

	assert.Equal(t, n.Normalize(el, seg), n.Normalize(el, seg))
	assert.Equal(t, johannesburgElement(), el)
}
