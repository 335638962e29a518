package overpass

import (
	"context"
	"errors"
	"time"

	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
	"github.com/zatekoja/caremarket/backend/internal/domain/providers"
	"github.com/zatekoja/caremarket/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/caremarket/backend/pkg/errors"
	"github.com/zatekoja/caremarket/backend/pkg/retry"
)

// FailoverConfig bounds the attempts made for one segment
type FailoverConfig struct {
	MaxAttempts       int
	RetryDelay        time.Duration
	RateLimitCooldown time.Duration
}

// FailoverClient executes segments against an EndpointPool, rotating mirrors on rate limits
type FailoverClient struct {
	pool      *EndpointPool
	transport Transport
	cfg       FailoverConfig
	metrics   *observability.Metrics
}

var _ providers.DirectoryClient = (*FailoverClient)(nil)

// NewFailoverClient creates a client. metrics may be nil.
func NewFailoverClient(pool *EndpointPool, transport Transport, cfg FailoverConfig, metrics *observability.Metrics) *FailoverClient {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &FailoverClient{
		pool:      pool,
		transport: transport,
		cfg:       cfg,
		metrics:   metrics,
	}
}

// Classify maps transport errors onto retry classes
func Classify(err error) retry.Class {
	switch {
	case apperrors.IsType(err, apperrors.ErrorTypeRateLimited):
		return retry.RateLimited
	case apperrors.IsType(err, apperrors.ErrorTypeTransient):
		return retry.Transient
	default:
		return retry.Fatal
	}
}

// Execute runs one segment. It returns the elements, the context error when ctx is done,
// or a SEGMENT_EXHAUSTED error once the attempts are used up.
func (c *FailoverClient) Execute(ctx context.Context, segment entities.ImportSegment) ([]entities.DirectoryElement, error) {
	logger := observability.LoggerFromContext(ctx)
	query := BuildQuery(segment)

	var elements []entities.DirectoryElement
	attempts := 0

	policy := retry.Policy{
		MaxAttempts: c.cfg.MaxAttempts,
		RetryDelay:  c.cfg.RetryDelay,
		Cooldown:    c.cfg.RateLimitCooldown,
		Classify:    Classify,
		OnRateLimited: func(attempt int, err error) {
			from := c.pool.Current()
			to := c.pool.Advance()
			logger.Warn().
				Err(err).
				Str("segment", segment.Key()).
				Int("attempt", attempt).
				Str("from", from).
				Str("to", to).
				Msg("Directory mirror rate limited, switching endpoint")
		},
		OnRetry: func(attempt int, class retry.Class, err error, wait time.Duration) {
			logger.Warn().
				Err(err).
				Str("segment", segment.Key()).
				Int("attempt", attempt).
				Str("class", class.String()).
				Dur("retry_in", wait).
				Msg("Directory query failed, retrying")
		},
	}

	err := retry.DoClassified(ctx, policy, func(ctx context.Context, attempt int) error {
		attempts = attempt
		endpoint := c.pool.Current()

		result, err := c.transport.Query(ctx, endpoint, query)
		observability.RecordDirectoryRequest(ctx, c.metrics, endpoint, requestStatus(err))
		if err != nil {
			return err
		}
		elements = result
		return nil
	})
	if err == nil {
		return elements, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return nil, err
	}

	var exhausted *retry.AttemptsError
	if errors.As(err, &exhausted) {
		return nil, apperrors.NewSegmentExhaustedError(segment.Key(), exhausted.Attempts, exhausted.Last)
	}
	return nil, apperrors.NewSegmentExhaustedError(segment.Key(), attempts, err)
}

func requestStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperrors.IsType(err, apperrors.ErrorTypeRateLimited):
		return "rate_limited"
	case apperrors.IsType(err, apperrors.ErrorTypeTransient):
		return "transient"
	default:
		return "error"
	}
}
