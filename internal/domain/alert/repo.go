package alert

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrStaleStatus is returned by Repository.ApplyTransition when the stored
// status no longer matches Transition.From.
var ErrStaleStatus = errors.New("alert status changed concurrently")

type Repository interface {
	Create(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	// ApplyTransition is a conditional update keyed on the current status.
	ApplyTransition(ctx context.Context, t Transition) (*Alert, error)
	ListForClinician(ctx context.Context, f Filter) ([]*Alert, int, error)
	// Stats counts a clinician's alerts; pending alerts created before
	// slaCutoff count as breached.
	Stats(ctx context.Context, clinicianID uuid.UUID, slaCutoff time.Time) (*Stats, error)
}
