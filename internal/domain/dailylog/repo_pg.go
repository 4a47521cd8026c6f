package dailylog

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

const reportCols = `id, patient_id, report_date, mood_rating, mood_level, anxiety_level, irritability_level,
	sleep_hours, sleep_quality, notes, suicidal_ideation_flag, risk_flag, tags, created_at`

func scanReport(row pgx.Row) (*DailyReport, error) {
	var d DailyReport
	err := row.Scan(&d.ID, &d.PatientID, &d.ReportDate, &d.MoodRating, &d.MoodLevel, &d.AnxietyLevel,
		&d.IrritabilityLevel, &d.SleepHours, &d.SleepQuality, &d.Notes, &d.SuicidalIdeation, &d.RiskFlag,
		&d.Tags, &d.CreatedAt)
	return &d, err
}

func (r *repoPG) Create(ctx context.Context, d *DailyReport) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO daily_reports (`+reportCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		d.ID, d.PatientID, d.ReportDate, d.MoodRating, d.MoodLevel, d.AnxietyLevel, d.IrritabilityLevel,
		d.SleepHours, d.SleepQuality, d.Notes, d.SuicidalIdeation, d.RiskFlag, d.Tags, d.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateDate
	}
	if err != nil {
		return fmt.Errorf("insert daily report: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*DailyReport, error) {
	d, err := scanReport(r.conn(ctx).QueryRow(ctx, `SELECT `+reportCols+` FROM daily_reports WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("daily report %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get daily report: %w", err)
	}
	return d, nil
}

func (r *repoPG) RecentWithMood(ctx context.Context, patientID uuid.UUID, before time.Time, n int) ([]*DailyReport, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+reportCols+` FROM daily_reports
		WHERE patient_id = $1 AND report_date < $2 AND mood_level IS NOT NULL
		ORDER BY report_date DESC
		LIMIT $3`, patientID, before, n)
	if err != nil {
		return nil, fmt.Errorf("query recent daily reports: %w", err)
	}
	defer rows.Close()

	var out []*DailyReport
	for rows.Next() {
		d, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily report: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
