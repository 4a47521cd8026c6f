package alert

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

const alertCols = `a.id, a.patient_id, a.daily_report_id, a.severity, a.trigger_source, a.status,
	a.resolution_notes, a.contact_method, a.created_at, a.updated_at, a.viewed_at, a.contacted_at, a.resolved_at`

func scanAlert(row pgx.Row) (*Alert, error) {
	var a Alert
	err := row.Scan(&a.ID, &a.PatientID, &a.DailyReportID, &a.Severity, &a.TriggerSource, &a.Status,
		&a.ResolutionNotes, &a.ContactMethod, &a.CreatedAt, &a.UpdatedAt, &a.ViewedAt, &a.ContactedAt, &a.ResolvedAt)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Alert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO alerts (id, patient_id, daily_report_id, severity, trigger_source, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.PatientID, a.DailyReportID, a.Severity, a.TriggerSource, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Alert, error) {
	a, err := scanAlert(r.conn(ctx).QueryRow(ctx, `SELECT `+alertCols+` FROM alerts a WHERE a.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("alert %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

func (r *repoPG) ApplyTransition(ctx context.Context, t Transition) (*Alert, error) {
	stamp, ok := stampColumns[t.To]
	if !ok {
		return nil, fmt.Errorf("no timestamp column for status %s", t.To)
	}
	// stamp comes from a fixed map, never from input.
	query := fmt.Sprintf(`
		UPDATE alerts a SET
			status = $3,
			resolution_notes = COALESCE($4, a.resolution_notes),
			contact_method = COALESCE($5, a.contact_method),
			updated_at = $6,
			%s = $6
		WHERE a.id = $1 AND a.status = $2
		RETURNING `+alertCols, stamp)

	a, err := scanAlert(r.conn(ctx).QueryRow(ctx, query,
		t.AlertID, t.From, t.To, t.Notes, t.ContactMethod, t.At))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStaleStatus
	}
	if err != nil {
		return nil, fmt.Errorf("update alert status: %w", err)
	}
	return a, nil
}

func (r *repoPG) ListForClinician(ctx context.Context, f Filter) ([]*Alert, int, error) {
	where := ` FROM alerts a JOIN patients p ON p.id = a.patient_id WHERE p.assigned_doctor_id = $1`
	args := []interface{}{f.ClinicianID}
	idx := 2
	if f.Status != nil {
		where += fmt.Sprintf(" AND a.status = $%d", idx)
		args = append(args, *f.Status)
		idx++
	}
	if f.Severity != nil {
		where += fmt.Sprintf(" AND a.severity = $%d", idx)
		args = append(args, *f.Severity)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	query := `SELECT ` + alertCols + where + fmt.Sprintf(" ORDER BY a.created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, f.Limit, f.Offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var items []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan alert: %w", err)
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Stats(ctx context.Context, clinicianID uuid.UUID, slaCutoff time.Time) (*Stats, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.status, a.severity, COUNT(*),
			COUNT(*) FILTER (WHERE a.status = 'PENDING' AND a.created_at < $2)
		FROM alerts a JOIN patients p ON p.id = a.patient_id
		WHERE p.assigned_doctor_id = $1
		GROUP BY a.status, a.severity`, clinicianID, slaCutoff)
	if err != nil {
		return nil, fmt.Errorf("alert stats: %w", err)
	}
	defer rows.Close()

	st := newStats()
	for rows.Next() {
		var status Status
		var severity Severity
		var n, breached int
		if err := rows.Scan(&status, &severity, &n, &breached); err != nil {
			return nil, fmt.Errorf("scan alert stats: %w", err)
		}
		st.Total += n
		st.ByStatus[status] += n
		st.BySeverity[severity] += n
		st.SLABreached += breached
	}
	st.Pending = st.ByStatus[StatusPending]
	return st, rows.Err()
}
