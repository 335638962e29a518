// Package bootstrap wires the facility import from configuration for the api and importer binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/caremarket/backend/internal/adapters/cache"
	"github.com/zatekoja/caremarket/backend/internal/adapters/database"
	"github.com/zatekoja/caremarket/backend/internal/adapters/events"
	"github.com/zatekoja/caremarket/backend/internal/adapters/locking"
	"github.com/zatekoja/caremarket/backend/internal/adapters/search"
	"github.com/zatekoja/caremarket/backend/internal/application/services"
	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
	"github.com/zatekoja/caremarket/backend/internal/domain/providers"
	"github.com/zatekoja/caremarket/backend/internal/domain/repositories"
	"github.com/zatekoja/caremarket/backend/internal/infrastructure/clients/overpass"
	"github.com/zatekoja/caremarket/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/caremarket/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/caremarket/backend/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/caremarket/backend/internal/infrastructure/observability"
	"github.com/zatekoja/caremarket/backend/pkg/config"
)

const userAgent = "caremarket-facility-importer/1.0"

// ImportStack holds everything a facility import needs. Redis and Typesense are optional.
type ImportStack struct {
	Imports    *services.FacilityImportService
	Facilities *services.FacilityService
	Reports    *services.ImportReporter
	Store      repositories.FacilityStore

	// nil when Redis is disabled or unreachable
	Cache    *cache.RedisAdapter
	EventBus *events.RedisEventBus

	closers []func() error
}

// Options adjusts the stack per invocation
type Options struct {
	// RegionMode overrides IMPORT_REGION_MODE when set
	RegionMode string
	Metrics    *observability.Metrics
}

// NewImportStack connects to the configured backends and wires the import.
// PostgreSQL is required; everything else degrades with a warning.
func NewImportStack(ctx context.Context, cfg *config.Config, opts Options) (*ImportStack, error) {
	regionMode := cfg.Import.RegionMode
	if opts.RegionMode != "" {
		regionMode = opts.RegionMode
	}
	regions, err := services.RegionsForMode(regionMode)
	if err != nil {
		return nil, err
	}

	stack := &ImportStack{}

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}
	stack.closers = append(stack.closers, pgClient.Close)
	store := database.NewFacilityAdapter(pgClient)
	stack.Store = store

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable; running without run lock, response cache and events")
			redisClient = nil
		} else {
			stack.closers = append(stack.closers, redisClient.Close)
		}
	}

	var eventBus providers.EventBus
	var locker providers.RunLocker
	var responseCache providers.CacheProvider
	if redisClient != nil {
		stack.Cache = cache.NewRedisAdapter(redisClient)
		responseCache = stack.Cache
		stack.EventBus = events.NewRedisEventBus(redisClient)
		stack.closers = append(stack.closers, stack.EventBus.Close)
		eventBus = stack.EventBus
		locker = locking.NewRedisRunLocker(redisClient)
	}

	var searchRepo repositories.FacilitySearchRepository
	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(ctx, &cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable; imported facilities will not be indexed")
		} else {
			if err := tsClient.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to init Typesense schema")
			}
			searchRepo = search.NewTypesenseAdapter(tsClient)
		}
	}

	directory, err := newDirectoryClient(cfg, responseCache, opts.Metrics)
	if err != nil {
		stack.Close()
		return nil, err
	}

	segmenter := services.NewQuerySegmenter(services.DefaultFacilityCategories, regions, services.SegmentLimits{
		TimeoutSeconds: cfg.Overpass.QueryTimeoutSecs,
		MaxSizeBytes:   cfg.Overpass.MaxSizeBytes,
	})

	stack.Facilities = services.NewFacilityService(store, searchRepo, eventBus)
	stack.Reports = services.NewImportReporter(store)
	stack.Imports = services.NewFacilityImportService(
		segmenter,
		directory,
		store,
		stack.Facilities,
		locker,
		ScratchStore,
		opts.Metrics,
		services.ImportSettings{
			SegmentDelay: cfg.Import.SegmentDelay,
			LockTTL:      cfg.Import.LockTTL,
			PrimeIndex:   cfg.Import.CandidateIndex,
		},
	)

	log.Info().
		Str("region_mode", regionMode).
		Int("segments", len(segmenter.Segments())).
		Strs("endpoints", cfg.Overpass.Endpoints).
		Bool("run_lock", locker != nil).
		Bool("search_index", searchRepo != nil).
		Msg("Facility import wired")

	return stack, nil
}

// ScratchStore is the dry-run store: an in-memory copy of the managed records
func ScratchStore(seed []*entities.Facility) repositories.FacilityStore {
	return database.NewMemoryFacilityStore(seed...)
}

func newDirectoryClient(cfg *config.Config, responseCache providers.CacheProvider, metrics *observability.Metrics) (providers.DirectoryClient, error) {
	pool, err := overpass.NewEndpointPool(cfg.Overpass.Endpoints)
	if err != nil {
		return nil, err
	}

	var directory providers.DirectoryClient = overpass.NewFailoverClient(
		pool,
		overpass.NewHTTPTransport(cfg.Overpass.HTTPTimeout, userAgent),
		overpass.FailoverConfig{
			MaxAttempts:       cfg.Overpass.MaxAttempts,
			RetryDelay:        cfg.Overpass.RetryDelay,
			RateLimitCooldown: cfg.Overpass.RateLimitCooldown,
		},
		metrics,
	)
	if responseCache != nil && cfg.Overpass.CacheTTL > 0 {
		directory = overpass.NewCachedDirectory(directory, responseCache, cfg.Overpass.CacheTTL)
	}
	return directory, nil
}

// Close releases every connection the stack opened, in reverse order
func (s *ImportStack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
