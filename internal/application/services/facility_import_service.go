package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
	"github.com/zatekoja/caremarket/backend/internal/domain/providers"
	"github.com/zatekoja/caremarket/backend/internal/domain/repositories"
	"github.com/zatekoja/caremarket/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/caremarket/backend/pkg/errors"
)

// ErrRunInProgress is returned when an import is already running here or in another process
var ErrRunInProgress = errors.New("a facility import is already running")

// ImportSettings tunes a FacilityImportService
type ImportSettings struct {
	// SegmentDelay is the pause between two segments
	SegmentDelay time.Duration
	// LockTTL bounds how long a crashed run can block the next one
	LockTTL time.Duration
	// PrimeIndex loads managed records into memory before the first segment
	PrimeIndex bool
}

// RunOptions selects what a single run does
type RunOptions struct {
	// Reset purges every managed record before the sweep
	Reset bool
	// DryRun reconciles against a scratch copy of the managed records and writes nothing
	DryRun bool
}

// ScratchStoreFunc builds the throwaway store used by dry runs
type ScratchStoreFunc func(seed []*entities.Facility) repositories.FacilityStore

// FacilityImportService runs the directory sweep: segments in order, one element at a time
type FacilityImportService struct {
	segmenter  *QuerySegmenter
	directory  providers.DirectoryClient
	normalizer *RecordNormalizer
	validator  *DraftValidator
	store      repositories.FacilityStore
	facilities *FacilityService
	locker     providers.RunLocker
	scratch    ScratchStoreFunc
	metrics    *observability.Metrics
	settings   ImportSettings

	mu      sync.Mutex
	running bool
	latest  *entities.ImportRunStats
}

// NewFacilityImportService wires the import. locker, scratch and metrics may be nil;
// without scratch, dry runs are refused.
func NewFacilityImportService(
	segmenter *QuerySegmenter,
	directory providers.DirectoryClient,
	store repositories.FacilityStore,
	facilities *FacilityService,
	locker providers.RunLocker,
	scratch ScratchStoreFunc,
	metrics *observability.Metrics,
	settings ImportSettings,
) *FacilityImportService {
	if settings.LockTTL <= 0 {
		settings.LockTTL = 6 * time.Hour
	}
	return &FacilityImportService{
		segmenter:  segmenter,
		directory:  directory,
		normalizer: NewRecordNormalizer(),
		validator:  NewDraftValidator(),
		store:      store,
		facilities: facilities,
		locker:     locker,
		scratch:    scratch,
		metrics:    metrics,
		settings:   settings,
	}
}

type importRun struct {
	opts     RunOptions
	segments []entities.ImportSegment
	stats    *entities.ImportRunStats
	lock     providers.RunLock
}

// Run performs a full sweep and blocks until it ends.
// The returned stats are complete even when the run was cancelled.
// The error is non-nil only when the run could not start or the store became unreachable.
func (s *FacilityImportService) Run(ctx context.Context, opts RunOptions) (*entities.ImportRunStats, error) {
	run, err := s.begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return run.stats, s.execute(ctx, run)
}

// Start begins a sweep in the background and returns its run id.
// ctx must outlive the caller's request; cancelling it stops the run between segments.
func (s *FacilityImportService) Start(ctx context.Context, opts RunOptions) (string, error) {
	run, err := s.begin(ctx, opts)
	if err != nil {
		return "", err
	}
	go func() {
		if err := s.execute(ctx, run); err != nil {
			observability.LoggerFromContext(ctx).Error().Err(err).Str("run_id", run.stats.Snapshot().RunID).Msg("Facility import aborted")
		}
	}()
	return run.stats.Snapshot().RunID, nil
}

// Latest returns the counters of the running or most recent run.
// ok is false when no run has started since the process came up.
func (s *FacilityImportService) Latest() (snap entities.ImportRunSnapshot, running bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return entities.ImportRunSnapshot{}, false, false
	}
	return s.latest.Snapshot(), s.running, true
}

func (s *FacilityImportService) begin(ctx context.Context, opts RunOptions) (*importRun, error) {
	if opts.DryRun && s.scratch == nil {
		return nil, fmt.Errorf("dry run is not available without a scratch store")
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()

	run := &importRun{opts: opts}

	if s.locker != nil && !opts.DryRun {
		lock, err := s.locker.Acquire(ctx, s.settings.LockTTL)
		if err != nil {
			s.finish()
			if errors.Is(err, providers.ErrLockHeld) {
				return nil, ErrRunInProgress
			}
			return nil, fmt.Errorf("acquire import lock: %w", err)
		}
		run.lock = lock
	}

	run.segments = s.segmenter.Segments()
	run.stats = entities.NewImportRunStats(uuid.NewString(), len(run.segments), time.Now().UTC())

	s.mu.Lock()
	s.latest = run.stats
	s.mu.Unlock()

	return run, nil
}

func (s *FacilityImportService) finish() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *FacilityImportService) execute(ctx context.Context, run *importRun) (err error) {
	stats := run.stats
	runID := stats.Snapshot().RunID

	ctx, span := observability.StartSpan(ctx, "facility_import.run",
		attribute.String("run_id", runID),
		attribute.Bool("reset", run.opts.Reset),
		attribute.Bool("dry_run", run.opts.DryRun),
	)
	logger := observability.LoggerFromContext(ctx).With().Str("run_id", runID).Logger()

	defer func() {
		stats.Finish(time.Now().UTC())
		if run.lock != nil {
			if releaseErr := run.lock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
				logger.Warn().Err(releaseErr).Msg("Failed to release import lock")
			}
		}
		observability.RecordError(span, err)
		span.End()
		s.finish()
	}()

	logger.Info().
		Bool("reset", run.opts.Reset).
		Bool("dry_run", run.opts.DryRun).
		Int("segments", len(run.segments)).
		Msg("Facility import started")

	engine, err := s.prepare(ctx, run)
	if err != nil {
		return err
	}

	for i, segment := range run.segments {
		if ctx.Err() != nil {
			stats.MarkCancelled()
			break
		}
		if i > 0 && s.settings.SegmentDelay > 0 {
			if waitErr := wait(ctx, s.settings.SegmentDelay); waitErr != nil {
				stats.MarkCancelled()
				break
			}
		}

		cancelled, fatal := s.processSegment(ctx, segment, engine, stats)
		if fatal != nil {
			logger.Error().Err(fatal).Str("segment", segment.Key()).Msg("Facility store unavailable, aborting import")
			return fatal
		}
		if cancelled {
			stats.MarkCancelled()
			break
		}
	}

	snap := stats.Snapshot()
	logger.Info().
		Int("found", snap.Found).
		Int("imported", snap.Imported).
		Int("updated", snap.Updated).
		Int("skipped", snap.Skipped).
		Int("errored", snap.Errored).
		Int("failed_segments", len(snap.FailedSegments)).
		Bool("cancelled", snap.Cancelled).
		Msg("Facility import finished")
	return nil
}

// prepare purges when asked and builds the engine over the real or scratch store
func (s *FacilityImportService) prepare(ctx context.Context, run *importRun) (*ReconciliationEngine, error) {
	logger := observability.LoggerFromContext(ctx)

	store := s.store
	writer := s.facilities

	if run.opts.DryRun {
		var seed []*entities.Facility
		if !run.opts.Reset {
			managed, err := s.store.ListManaged(ctx)
			if err != nil {
				return nil, unavailable("load managed facilities for dry run", err)
			}
			seed = managed
		}
		store = s.scratch(seed)
		writer = NewFacilityService(store, nil, nil)
	} else if run.opts.Reset {
		deleted, err := s.facilities.PurgeManaged(ctx)
		if err != nil {
			return nil, unavailable("purge managed facilities", err)
		}
		logger.Info().Int64("deleted", deleted).Msg("Purged managed facilities before import")
	}

	engine := NewReconciliationEngine(store, writer)
	if s.settings.PrimeIndex {
		n, err := engine.Prime(ctx)
		if err != nil {
			return nil, unavailable("prime candidate index", err)
		}
		logger.Info().Int("records", n).Msg("Candidate index primed")
	}
	return engine, nil
}

// processSegment fetches one segment and reconciles its elements.
// Once elements are in hand they are all processed even if ctx is cancelled meanwhile.
func (s *FacilityImportService) processSegment(ctx context.Context, segment entities.ImportSegment, engine *ReconciliationEngine, stats *entities.ImportRunStats) (bool, error) {
	ctx, span := observability.StartSpan(ctx, "facility_import.segment",
		attribute.Int("segment.index", segment.Index),
		attribute.String("segment.category", segment.Category.Name),
		attribute.String("segment.region", segment.Region.Name),
	)
	defer span.End()

	logger := observability.LoggerFromContext(ctx).With().
		Int("segment", segment.Index).
		Str("category", segment.Category.Name).
		Str("region", segment.Region.Name).
		Logger()
	started := time.Now()

	elements, err := s.directory.Execute(ctx, segment)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info().Msg("Import cancelled while fetching segment")
			return true, nil
		}
		observability.RecordError(span, err)
		stats.SegmentFailed(segment.Key(), err)
		observability.RecordSegmentMetric(ctx, s.metrics, segment.Category.Name, "failed", time.Since(started))
		logger.Warn().Err(err).Msg("Segment failed, moving on")
		return false, nil
	}

	stats.AddFound(len(elements))
	work := context.WithoutCancel(ctx)
	for _, el := range elements {
		if err := s.processElement(work, el, segment, engine, stats); err != nil {
			observability.RecordError(span, err)
			return false, err
		}
	}

	stats.SegmentDone()
	duration := time.Since(started)
	observability.RecordSegmentMetric(ctx, s.metrics, segment.Category.Name, "ok", duration)
	logger.Info().Int("elements", len(elements)).Dur("duration", duration).Msg("Segment processed")
	return false, nil
}

// processElement returns an error only when the store is unreachable
func (s *FacilityImportService) processElement(ctx context.Context, el entities.DirectoryElement, segment entities.ImportSegment, engine *ReconciliationEngine, stats *entities.ImportRunStats) error {
	draft := s.normalizer.Normalize(el, segment)

	if result := s.validator.Validate(draft); !result.Valid {
		s.record(ctx, stats, entities.OutcomeSkipped)
		observability.LoggerFromContext(ctx).Debug().
			Str("source_id", draft.SourceID).
			Str("reasons", result.String()).
			Msg("Skipping incomplete directory element")
		return nil
	}

	outcome, _, err := engine.Reconcile(ctx, draft)
	if err != nil {
		s.record(ctx, stats, entities.OutcomeErrored)
		if apperrors.IsType(err, apperrors.ErrorTypeUnavailable) {
			return err
		}
		observability.LoggerFromContext(ctx).Error().
			Err(err).
			Str("source_id", draft.SourceID).
			Str("source_kind", draft.SourceKind).
			Msg("Failed to reconcile facility")
		return nil
	}

	s.record(ctx, stats, outcome)
	return nil
}

func (s *FacilityImportService) record(ctx context.Context, stats *entities.ImportRunStats, outcome entities.ReconcileOutcome) {
	stats.Record(outcome)
	observability.RecordElementMetric(ctx, s.metrics, string(outcome))
}

func unavailable(message string, err error) error {
	if apperrors.IsType(err, apperrors.ErrorTypeUnavailable) {
		return err
	}
	return apperrors.NewUnavailableError(message, err)
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
