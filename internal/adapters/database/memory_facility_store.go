package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
	"github.com/zatekoja/caremarket/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/caremarket/backend/pkg/errors"
)

// MemoryFacilityStore is a process-local FacilityStore used for dry runs and tests
type MemoryFacilityStore struct {
	mu         sync.RWMutex
	facilities map[int64]*entities.Facility
	nextID     int64
}

var _ repositories.FacilityStore = (*MemoryFacilityStore)(nil)

// NewMemoryFacilityStore creates a store holding copies of seed
func NewMemoryFacilityStore(seed ...*entities.Facility) *MemoryFacilityStore {
	s := &MemoryFacilityStore{facilities: map[int64]*entities.Facility{}}
	for _, f := range seed {
		if f.ID > s.nextID {
			s.nextID = f.ID
		}
	}
	for _, f := range seed {
		c := cloneFacility(f)
		if c.ID == 0 {
			s.nextID++
			c.ID = s.nextID
		}
		s.facilities[c.ID] = c
	}
	return s
}

// FindCandidates implements repositories.FacilityStore
func (s *MemoryFacilityStore) FindCandidates(ctx context.Context, q repositories.CandidateQuery) ([]*entities.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entities.Facility
	for _, f := range s.facilities {
		if !f.ManagedByPipeline {
			continue
		}
		inBox := q.Box != nil && f.Location != nil && q.Box.Contains(f.Location.Latitude, f.Location.Longitude)
		if inBox || (f.Name == q.Name && f.City == q.City) {
			out = append(out, cloneFacility(f))
		}
	}
	sortByID(out)
	return out, nil
}

// Create implements repositories.FacilityStore
func (s *MemoryFacilityStore) Create(ctx context.Context, facility *entities.Facility) (int64, error) {
	if facility == nil {
		return 0, apperrors.NewWriteFailedError("facility is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	c := cloneFacility(facility)
	c.ID = s.nextID
	s.facilities[c.ID] = c
	return c.ID, nil
}

// Update implements repositories.FacilityStore. Only managed records can be updated.
func (s *MemoryFacilityStore) Update(ctx context.Context, id int64, update entities.FacilityUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.facilities[id]
	if !ok {
		return apperrors.NewWriteFailedError(fmt.Sprintf("facility %d not found", id), nil)
	}
	if !f.ManagedByPipeline {
		return apperrors.NewWriteFailedError(fmt.Sprintf("facility %d is not managed by the import", id), nil)
	}
	update.Apply(f)
	return nil
}

// DeleteManaged implements repositories.FacilityStore
func (s *MemoryFacilityStore) DeleteManaged(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, f := range s.facilities {
		if f.ManagedByPipeline {
			delete(s.facilities, id)
			deleted++
		}
	}
	return deleted, nil
}

// ListManaged implements repositories.FacilityStore
func (s *MemoryFacilityStore) ListManaged(ctx context.Context) ([]*entities.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entities.Facility
	for _, f := range s.facilities {
		if f.ManagedByPipeline {
			out = append(out, cloneFacility(f))
		}
	}
	sortByID(out)
	return out, nil
}

// CountManaged implements repositories.FacilityStore
func (s *MemoryFacilityStore) CountManaged(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, f := range s.facilities {
		if f.ManagedByPipeline {
			n++
		}
	}
	return n, nil
}

// CountByProvince implements repositories.FacilityStore
func (s *MemoryFacilityStore) CountByProvince(ctx context.Context) ([]repositories.GroupCount, error) {
	return s.groupCount(func(f *entities.Facility) string { return f.Province }), nil
}

// CountByKind implements repositories.FacilityStore
func (s *MemoryFacilityStore) CountByKind(ctx context.Context) ([]repositories.GroupCount, error) {
	return s.groupCount(func(f *entities.Facility) string { return string(f.Kind) }), nil
}

// Get returns a copy of one record
func (s *MemoryFacilityStore) Get(ctx context.Context, id int64) (*entities.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.facilities[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility %d not found", id))
	}
	return cloneFacility(f), nil
}

// Len returns the number of records, managed or not
func (s *MemoryFacilityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.facilities)
}

func (s *MemoryFacilityStore) groupCount(key func(*entities.Facility) string) []repositories.GroupCount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[string]int64{}
	for _, f := range s.facilities {
		if f.ManagedByPipeline {
			counts[key(f)]++
		}
	}
	out := make([]repositories.GroupCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, repositories.GroupCount{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func cloneFacility(f *entities.Facility) *entities.Facility {
	c := *f
	if f.Location != nil {
		loc := *f.Location
		c.Location = &loc
	}
	if f.LastSyncedAt != nil {
		t := *f.LastSyncedAt
		c.LastSyncedAt = &t
	}
	return &c
}

func sortByID(facilities []*entities.Facility) {
	sort.Slice(facilities, func(i, j int) bool { return facilities[i].ID < facilities[j].ID })
}
