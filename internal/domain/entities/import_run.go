package entities

import (
	"sync"
	"time"
)

// ReconcileOutcome is the result of processing one directory element
type ReconcileOutcome string

const (
	OutcomeImported ReconcileOutcome = "imported"
	OutcomeUpdated  ReconcileOutcome = "updated"
	OutcomeSkipped  ReconcileOutcome = "skipped"
	OutcomeErrored  ReconcileOutcome = "errored"
)

// SegmentFailure records a segment that used up its attempts
type SegmentFailure struct {
	Segment string `json:"segment"`
	Error   string `json:"error"`
}

// ImportRunStats accumulates counters for one import run. Safe for concurrent reads.
type ImportRunStats struct {
	mu sync.Mutex

	runID          string
	startedAt      time.Time
	finishedAt     time.Time
	found          int
	imported       int
	updated        int
	skipped        int
	errored        int
	segmentsDone   int
	segmentsTotal  int
	failedSegments []SegmentFailure
	cancelled      bool
}

// ImportRunSnapshot is a point-in-time copy of ImportRunStats
type ImportRunSnapshot struct {
	RunID          string           `json:"run_id"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     *time.Time       `json:"finished_at,omitempty"`
	Found          int              `json:"found"`
	Imported       int              `json:"imported"`
	Updated        int              `json:"updated"`
	Skipped        int              `json:"skipped"`
	Errored        int              `json:"errored"`
	SegmentsDone   int              `json:"segments_done"`
	SegmentsTotal  int              `json:"segments_total"`
	FailedSegments []SegmentFailure `json:"failed_segments"`
	Cancelled      bool             `json:"cancelled"`
}

// NewImportRunStats starts the counters for a run
func NewImportRunStats(runID string, segmentsTotal int, startedAt time.Time) *ImportRunStats {
	return &ImportRunStats{
		runID:         runID,
		segmentsTotal: segmentsTotal,
		startedAt:     startedAt,
	}
}

// AddFound adds n elements returned by the directory
func (s *ImportRunStats) AddFound(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.found += n
}

// Record counts one element outcome
func (s *ImportRunStats) Record(outcome ReconcileOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch outcome {
	case OutcomeImported:
		s.imported++
	case OutcomeUpdated:
		s.updated++
	case OutcomeSkipped:
		s.skipped++
	case OutcomeErrored:
		s.errored++
	}
}

// SegmentDone marks a segment finished, successfully or not
func (s *ImportRunStats) SegmentDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segmentsDone++
}

// SegmentFailed records a segment that could not be fetched
func (s *ImportRunStats) SegmentFailed(segment string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segmentsDone++
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	s.failedSegments = append(s.failedSegments, SegmentFailure{Segment: segment, Error: msg})
}

// MarkCancelled notes that the run stopped before covering every segment
func (s *ImportRunStats) MarkCancelled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

// Finish stamps the end of the run
func (s *ImportRunStats) Finish(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishedAt = at
}

// Snapshot returns a copy of the current counters
func (s *ImportRunStats) Snapshot() ImportRunSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := ImportRunSnapshot{
		RunID:          s.runID,
		StartedAt:      s.startedAt,
		Found:          s.found,
		Imported:       s.imported,
		Updated:        s.updated,
		Skipped:        s.skipped,
		Errored:        s.errored,
		SegmentsDone:   s.segmentsDone,
		SegmentsTotal:  s.segmentsTotal,
		FailedSegments: append([]SegmentFailure{}, s.failedSegments...),
		Cancelled:      s.cancelled,
	}
	if !s.finishedAt.IsZero() {
		finished := s.finishedAt
		snap.FinishedAt = &finished
	}
	return snap
}

// Duration returns how long the run took, or has taken so far
func (s ImportRunSnapshot) Duration() time.Duration {
	if s.FinishedAt == nil {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
