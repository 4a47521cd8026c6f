package prescription

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

func NewRepoPG(pool *pgxpool.Pool) Store {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const prescriptionCols = `id, patient_id, consultation_id, prescriber_id, type, determined_type, is_valid,
	valid_until, signature_hash, signed_at, signed_credential, revoked_at, revocation_reason, created_at`

func scanPrescription(row pgx.Row) (*FormalPrescription, error) {
	var fp FormalPrescription
	err := row.Scan(&fp.ID, &fp.PatientID, &fp.ConsultationID, &fp.PrescriberID, &fp.Type, &fp.DeterminedType,
		&fp.IsValid, &fp.ValidUntil, &fp.SignatureHash, &fp.SignedAt, &fp.SignedCredential, &fp.RevokedAt,
		&fp.RevocationReason, &fp.CreatedAt)
	return &fp, err
}

func (r *repoPG) Create(ctx context.Context, fp *FormalPrescription) error {
	if fp.ID == uuid.Nil {
		fp.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO formal_prescriptions (id, patient_id, consultation_id, prescriber_id, type, determined_type,
			is_valid, valid_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		fp.ID, fp.PatientID, fp.ConsultationID, fp.PrescriberID, fp.Type, fp.DeterminedType,
		fp.IsValid, fp.ValidUntil, fp.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert formal prescription: %w", err)
	}

	for i := range fp.Items {
		it := &fp.Items[i]
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.FormalPrescriptionID = fp.ID
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO prescription_items (id, formal_prescription_id, position, medication_id, dosage,
				quantity, form, duration, frequency, instructions)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			it.ID, it.FormalPrescriptionID, it.Position, it.MedicationID, it.Dosage,
			it.Quantity, it.Form, it.Duration, it.Frequency, it.Instructions)
		if err != nil {
			return fmt.Errorf("insert prescription item %d: %w", it.Position, err)
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*FormalPrescription, error) {
	fp, err := scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM formal_prescriptions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("prescription %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get prescription: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, formal_prescription_id, position, medication_id, dosage, quantity, form, duration,
			frequency, instructions
		FROM prescription_items WHERE formal_prescription_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query prescription items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.FormalPrescriptionID, &it.Position, &it.MedicationID, &it.Dosage,
			&it.Quantity, &it.Form, &it.Duration, &it.Frequency, &it.Instructions); err != nil {
			return nil, fmt.Errorf("scan prescription item: %w", err)
		}
		fp.Items = append(fp.Items, it)
	}
	return fp, rows.Err()
}

func (r *repoPG) SetSignature(ctx context.Context, id uuid.UUID, hash string, signedAt time.Time, credential string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE formal_prescriptions SET signature_hash = $2, signed_at = $3, signed_credential = $4
		WHERE id = $1 AND signature_hash IS NULL`, id, hash, signedAt, credential)
	if err != nil {
		return fmt.Errorf("sign prescription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("prescription %s is missing or already signed", id)
	}
	return nil
}

func (r *repoPG) Revoke(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*FormalPrescription, error) {
	fp, err := scanPrescription(r.conn(ctx).QueryRow(ctx, `
		UPDATE formal_prescriptions SET is_valid = FALSE, revoked_at = $2, revocation_reason = $3
		WHERE id = $1 AND is_valid
		RETURNING `+prescriptionCols, id, at, reason))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAlreadyRevoked
	}
	if err != nil {
		return nil, fmt.Errorf("revoke prescription: %w", err)
	}
	return fp, nil
}

func (r *repoPG) ApplyActiveUpsert(ctx context.Context, u ActiveUpsert) (bool, error) {
	var superseded bool
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM active_prescriptions
			WHERE patient_id = $1 AND medication_id = $2 AND is_active
				AND formal_prescription_id <> $3 AND start_date > $4
		)`,
		u.PatientID, u.MedicationID, u.FormalPrescriptionID, u.StartDate).Scan(&superseded); err != nil {
		return false, fmt.Errorf("check newer active medication: %w", err)
	}
	if superseded {
		return false, nil
	}

	if _, err := r.conn(ctx).Exec(ctx, `
		UPDATE active_prescriptions SET is_active = FALSE, end_date = $4
		WHERE patient_id = $1 AND medication_id = $2 AND is_active AND formal_prescription_id <> $3`,
		u.PatientID, u.MedicationID, u.FormalPrescriptionID, u.At); err != nil {
		return false, fmt.Errorf("deactivate superseded medication: %w", err)
	}
	if _, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO active_prescriptions (id, patient_id, medication_id, formal_prescription_id, dosage,
			frequency, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		ON CONFLICT (formal_prescription_id, medication_id) DO UPDATE SET
			dosage = EXCLUDED.dosage,
			frequency = EXCLUDED.frequency,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			is_active = TRUE`,
		uuid.New(), u.PatientID, u.MedicationID, u.FormalPrescriptionID, u.Dosage,
		u.Frequency, u.StartDate, u.EndDate); err != nil {
		return false, fmt.Errorf("upsert active medication: %w", err)
	}
	return true, nil
}

func (r *repoPG) DeactivateActive(ctx context.Context, prescriptionID uuid.UUID, at time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE active_prescriptions SET is_active = FALSE, end_date = $2
		WHERE formal_prescription_id = $1 AND is_active`, prescriptionID, at)
	if err != nil {
		return 0, fmt.Errorf("deactivate prescription medications: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) ListActive(ctx context.Context, patientID uuid.UUID) ([]*ActivePrescription, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, medication_id, formal_prescription_id, dosage, frequency, start_date, end_date, is_active
		FROM active_prescriptions
		WHERE patient_id = $1 AND is_active
		ORDER BY start_date DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query active medications: %w", err)
	}
	defer rows.Close()

	var out []*ActivePrescription
	for rows.Next() {
		var a ActivePrescription
		if err := rows.Scan(&a.ID, &a.PatientID, &a.MedicationID, &a.FormalPrescriptionID, &a.Dosage,
			&a.Frequency, &a.StartDate, &a.EndDate, &a.IsActive); err != nil {
			return nil, fmt.Errorf("scan active medication: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *repoPG) GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	var m Medication
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, name, active_ingredient, indication_codes, is_controlled, tags
		FROM medications WHERE id = $1`, id).
		Scan(&m.ID, &m.Name, &m.ActiveIngredient, &m.IndicationCodes, &m.IsControlled, &m.Tags)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("medication %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get medication: %w", err)
	}
	return &m, nil
}

func (r *repoPG) CreateMedication(ctx context.Context, m *Medication) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.IndicationCodes == nil {
		m.IndicationCodes = []string{}
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medications (id, name, active_ingredient, indication_codes, is_controlled, tags)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.Name, m.ActiveIngredient, m.IndicationCodes, m.IsControlled, m.Tags)
	if err != nil {
		return fmt.Errorf("insert medication: %w", err)
	}
	return nil
}
