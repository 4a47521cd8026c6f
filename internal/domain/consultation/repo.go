package consultation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotDraft is returned by conditional writes when the consultation is no
// longer a draft, or no longer the draft revision the caller read.
var ErrNotDraft = errors.New("consultation is not a draft")

// Signature is what Finalize persists. Revision is the draft revision that
// was validated and hashed.
type Signature struct {
	Hash       string
	SignedAt   time.Time
	Credential string
	Revision   int
}

type Repository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	// UpdateDraft, Finalize and Cancel only apply while status is DRAFT.
	// UpdateDraft and Finalize also require c.Revision / sig.Revision to
	// match the stored revision; UpdateDraft increments it.
	UpdateDraft(ctx context.Context, c *Consultation) error
	Finalize(ctx context.Context, id uuid.UUID, sig Signature) (*Consultation, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Consultation, error)
}
