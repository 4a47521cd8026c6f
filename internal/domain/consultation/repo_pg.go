package consultation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telemon/telemon/internal/platform/apperr"
	"github.com/telemon/telemon/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const consultationCols = `id, patient_id, doctor_id, scheduled_at, duration_minutes, modality, status,
	anamnesis, diagnostic_hypothesis, treatment_plan, diagnosis_codes, signature_hash, signed_at,
	signed_credential, cancellation_reason, cancelled_at, revision, created_at, updated_at`

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	err := row.Scan(&c.ID, &c.PatientID, &c.DoctorID, &c.ScheduledAt, &c.DurationMinutes, &c.Modality, &c.Status,
		&c.Anamnesis, &c.DiagnosticHypothesis, &c.TreatmentPlan, &c.DiagnosisCodes, &c.SignatureHash, &c.SignedAt,
		&c.SignedCredential, &c.CancellationReason, &c.CancelledAt, &c.Revision, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *repoPG) Create(ctx context.Context, c *Consultation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.DiagnosisCodes == nil {
		c.DiagnosisCodes = []string{}
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO consultations (id, patient_id, doctor_id, scheduled_at, duration_minutes, modality, status,
			anamnesis, diagnostic_hypothesis, treatment_plan, diagnosis_codes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.PatientID, c.DoctorID, c.ScheduledAt, c.DurationMinutes, c.Modality, c.Status,
		c.Anamnesis, c.DiagnosticHypothesis, c.TreatmentPlan, c.DiagnosisCodes, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert consultation: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	c, err := scanConsultation(r.conn(ctx).QueryRow(ctx,
		`SELECT `+consultationCols+` FROM consultations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("consultation %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get consultation: %w", err)
	}
	return c, nil
}

func (r *repoPG) UpdateDraft(ctx context.Context, c *Consultation) error {
	if c.DiagnosisCodes == nil {
		c.DiagnosisCodes = []string{}
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE consultations SET
			scheduled_at = $2, duration_minutes = $3, modality = $4, anamnesis = $5,
			diagnostic_hypothesis = $6, treatment_plan = $7, diagnosis_codes = $8, updated_at = $9,
			revision = revision + 1
		WHERE id = $1 AND status = 'DRAFT' AND revision = $10`,
		c.ID, c.ScheduledAt, c.DurationMinutes, c.Modality, c.Anamnesis,
		c.DiagnosticHypothesis, c.TreatmentPlan, c.DiagnosisCodes, c.UpdatedAt, c.Revision)
	if err != nil {
		return fmt.Errorf("update consultation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotDraft
	}
	c.Revision++
	return nil
}

func (r *repoPG) Finalize(ctx context.Context, id uuid.UUID, sig Signature) (*Consultation, error) {
	c, err := scanConsultation(r.conn(ctx).QueryRow(ctx, `
		UPDATE consultations SET
			status = 'FINALIZED', signature_hash = $2, signed_at = $3, signed_credential = $4, updated_at = $3
		WHERE id = $1 AND status = 'DRAFT' AND revision = $5
		RETURNING `+consultationCols,
		id, sig.Hash, sig.SignedAt, sig.Credential, sig.Revision))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotDraft
	}
	if err != nil {
		return nil, fmt.Errorf("finalize consultation: %w", err)
	}
	return c, nil
}

func (r *repoPG) Cancel(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Consultation, error) {
	c, err := scanConsultation(r.conn(ctx).QueryRow(ctx, `
		UPDATE consultations SET
			status = 'CANCELLED', cancellation_reason = $2, cancelled_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'DRAFT'
		RETURNING `+consultationCols,
		id, reason, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotDraft
	}
	if err != nil {
		return nil, fmt.Errorf("cancel consultation: %w", err)
	}
	return c, nil
}
