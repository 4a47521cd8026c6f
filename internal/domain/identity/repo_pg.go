package identity

import (
	"context"
	"errors"
	"fmt"

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

func (r *repoPG) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, assigned_doctor_id, created_at FROM patients WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.AssignedDoctorID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return &p, nil
}

func (r *repoPG) GetClinician(ctx context.Context, id uuid.UUID) (*Clinician, error) {
	var c Clinician
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, credential, email, created_at FROM clinicians WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Credential, &c.Email, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("clinician %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get clinician: %w", err)
	}
	return &c, nil
}

func (r *repoPG) CreatePatient(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO patients (id, name, assigned_doctor_id) VALUES ($1, $2, $3) RETURNING created_at`,
		p.ID, p.Name, p.AssignedDoctorID,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *repoPG) CreateClinician(ctx context.Context, c *Clinician) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO clinicians (id, name, credential, email) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		c.ID, c.Name, c.Credential, c.Email,
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert clinician: %w", err)
	}
	return nil
}
