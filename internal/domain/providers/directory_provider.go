package providers

import (
	"context"
	"errors"
	"time"

	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
)

// DirectoryClient executes one segment against the facility directory service.
// Implementations either return the elements or a SEGMENT_EXHAUSTED error; they never block past their attempt bound.
type DirectoryClient interface {
	Execute(ctx context.Context, segment entities.ImportSegment) ([]entities.DirectoryElement, error)
}

// ErrLockHeld is returned by RunLocker.Acquire when another run holds the lock
var ErrLockHeld = errors.New("import run lock is held by another process")

// RunLock is a held import run lock
type RunLock interface {
	Release(ctx context.Context) error
}

// RunLocker guards against two import runs writing at the same time
type RunLocker interface {
	// Acquire returns ErrLockHeld when another run holds the lock
	Acquire(ctx context.Context, ttl time.Duration) (RunLock, error)
}
