package services

import (
	"math"
	"sort"

	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
)

// CoordinateTolerance is the half-width, in degrees, of the window in which two points are the same facility
const CoordinateTolerance = 0.001

// toleranceEpsilon absorbs float error so points exactly CoordinateTolerance apart still match
const toleranceEpsilon = 1e-9

func withinTolerance(a, b float64) bool {
	return math.Abs(a-b) <= CoordinateTolerance+toleranceEpsilon
}

type gridCell struct {
	lat int64
	lng int64
}

// CandidateIndex holds managed records in a coordinate grid plus a name and city map,
// so matching a draft looks at a handful of records instead of the whole table.
// Not safe for concurrent use.
type CandidateIndex struct {
	byID       map[int64]*entities.Facility
	cells      map[gridCell]map[int64]struct{}
	byNameCity map[string]map[int64]struct{}
}

// NewCandidateIndex creates an empty index
func NewCandidateIndex() *CandidateIndex {
	return &CandidateIndex{
		byID:       map[int64]*entities.Facility{},
		cells:      map[gridCell]map[int64]struct{}{},
		byNameCity: map[string]map[int64]struct{}{},
	}
}

// Len returns the number of indexed records
func (ix *CandidateIndex) Len() int {
	return len(ix.byID)
}

// Put adds or replaces a managed record. Records not managed by the import are ignored.
func (ix *CandidateIndex) Put(f *entities.Facility) {
	if f == nil || !f.ManagedByPipeline {
		return
	}
	ix.Remove(f.ID)

	stored := *f
	ix.byID[f.ID] = &stored

	if f.Location != nil {
		cell := cellOf(f.Location.Latitude, f.Location.Longitude)
		addID(ix.cells, cell, f.ID)
	}
	addID(ix.byNameCity, nameCityKey(f.Name, f.City), f.ID)
}

// Remove drops a record from the index
func (ix *CandidateIndex) Remove(id int64) {
	f, ok := ix.byID[id]
	if !ok {
		return
	}
	delete(ix.byID, id)
	if f.Location != nil {
		removeID(ix.cells, cellOf(f.Location.Latitude, f.Location.Longitude), id)
	}
	removeID(ix.byNameCity, nameCityKey(f.Name, f.City), id)
}

// Candidates returns the records near the draft's coordinates or sharing its name and city, ordered by id.
// Callers still apply the exact tolerance check.
func (ix *CandidateIndex) Candidates(d *entities.FacilityDraft) []*entities.Facility {
	ids := map[int64]struct{}{}

	if d.Location != nil {
		latFrom, latTo := cellSpan(d.Location.Latitude)
		lngFrom, lngTo := cellSpan(d.Location.Longitude)
		for lat := latFrom; lat <= latTo; lat++ {
			for lng := lngFrom; lng <= lngTo; lng++ {
				for id := range ix.cells[gridCell{lat: lat, lng: lng}] {
					ids[id] = struct{}{}
				}
			}
		}
	}
	for id := range ix.byNameCity[nameCityKey(d.Name, d.City)] {
		ids[id] = struct{}{}
	}

	out := make([]*entities.Facility, 0, len(ids))
	for id := range ids {
		out = append(out, ix.byID[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cellIndex(v float64) int64 {
	return int64(math.Floor(v / CoordinateTolerance))
}

func cellOf(lat, lng float64) gridCell {
	return gridCell{lat: cellIndex(lat), lng: cellIndex(lng)}
}

// cellSpan returns the cells any value within tolerance of v can fall in
func cellSpan(v float64) (int64, int64) {
	return cellIndex(v-CoordinateTolerance) - 1, cellIndex(v+CoordinateTolerance) + 1
}

func nameCityKey(name, city string) string {
	return name + "\x00" + city
}

func addID[K comparable](m map[K]map[int64]struct{}, key K, id int64) {
	set, ok := m[key]
	if !ok {
		set = map[int64]struct{}{}
		m[key] = set
	}
	set[id] = struct{}{}
}

func removeID[K comparable](m map[K]map[int64]struct{}, key K, id int64) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(m, key)
	}
}
