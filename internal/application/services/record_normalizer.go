package services

import (
	"strings"

	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
)

// RecordNormalizer maps raw directory elements onto the facility shape.
// It does no I/O; the same element and segment always give the same draft.
type RecordNormalizer struct{}

// NewRecordNormalizer creates a normalizer
func NewRecordNormalizer() *RecordNormalizer {
	return &RecordNormalizer{}
}

// Normalize converts one element returned for segment into a draft.
// The segment's region fills in city and province when the element carries none.
func (n *RecordNormalizer) Normalize(el entities.DirectoryElement, segment entities.ImportSegment) *entities.FacilityDraft {
	kind := inferKind(&el, segment.Category)

	draft := &entities.FacilityDraft{
		Name:           tag(&el, "name", "name:en", "official_name"),
		Kind:           kind,
		Classification: inferClassification(&el, kind, segment.Category),
		Address:        composeAddress(&el),
		City:           tag(&el, "addr:city", "addr:town", "addr:village"),
		Province:       tag(&el, "addr:province", "addr:state"),
		PostalCode:     tag(&el, "addr:postcode"),
		Phone:          tag(&el, "phone", "contact:phone"),
		Email:          tag(&el, "email", "contact:email"),
		Website:        tag(&el, "website", "contact:website", "url"),
		Location:       extractLocation(&el),
		SourceID:       string(el.ID),
		SourceKind:     el.Type,
	}

	if draft.Name == "" {
		draft.Name = entities.PlaceholderFacilityName
	}
	if draft.City == "" {
		draft.City = segment.Region.City
	}
	if draft.Province == "" {
		draft.Province = segment.Region.Province
	}

	return draft
}

func tag(el *entities.DirectoryElement, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(el.Tags[key]); v != "" {
			return v
		}
	}
	return ""
}

// extractLocation prefers the element's own point and falls back to the centroid
func extractLocation(el *entities.DirectoryElement) *entities.Location {
	if el.Lat != nil && el.Lon != nil {
		if loc := entities.NewLocation(*el.Lat, *el.Lon); loc != nil {
			return loc
		}
	}
	if el.Center != nil {
		return entities.NewLocation(el.Center.Lat, el.Center.Lon)
	}
	return nil
}

func inferKind(el *entities.DirectoryElement, category entities.FacilityCategory) entities.FacilityKind {
	amenity := strings.ToLower(tag(el, "amenity"))
	healthcare := strings.ToLower(tag(el, "healthcare"))

	switch {
	case amenity == "pharmacy" || healthcare == "pharmacy":
		return entities.FacilityKindPharmacy
	case amenity == "hospital" || healthcare == "hospital":
		return hospitalKind(el)
	case amenity != "" || healthcare != "":
		return entities.FacilityKindClinic
	}

	switch category.Name {
	case "pharmacy":
		return entities.FacilityKindPharmacy
	case "hospital":
		return hospitalKind(el)
	default:
		return entities.FacilityKindClinic
	}
}

func hospitalKind(el *entities.DirectoryElement) entities.FacilityKind {
	switch strings.ToLower(tag(el, "hospital_type")) {
	case "public", "government":
		return entities.FacilityKindPublic
	}
	switch strings.ToLower(tag(el, "operator:type")) {
	case "public", "government":
		return entities.FacilityKindPublic
	}
	return entities.FacilityKindPrivate
}

func inferClassification(el *entities.DirectoryElement, kind entities.FacilityKind, category entities.FacilityCategory) string {
	if speciality := tag(el, "healthcare:speciality"); speciality != "" {
		first := strings.TrimSpace(strings.Split(speciality, ";")[0])
		if first != "" {
			return strings.ToUpper(first)
		}
	}
	if kind == entities.FacilityKindPublic || kind == entities.FacilityKindPrivate {
		return "GENERAL"
	}
	return strings.ToUpper(category.Name)
}

// composeAddress joins house number, street and suburb, falling back to addr:full
func composeAddress(el *entities.DirectoryElement) string {
	parts := make([]string, 0, 3)
	for _, key := range []string{"addr:housenumber", "addr:street", "addr:suburb"} {
		if v := tag(el, key); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return tag(el, "addr:full")
}
