package dailylog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateDate is returned by Create when the patient already reported
// for that date.
var ErrDuplicateDate = errors.New("daily report already exists for date")

type Repository interface {
	Create(ctx context.Context, r *DailyReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*DailyReport, error)
	// RecentWithMood returns up to n reports dated strictly before before
	// that carry a mood level, newest first.
	RecentWithMood(ctx context.Context, patientID uuid.UUID, before time.Time, n int) ([]*DailyReport, error)
}
