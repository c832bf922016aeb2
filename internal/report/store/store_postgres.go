package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"trustlane/internal/platform/postgres"
	"trustlane/internal/report/models"
	id "trustlane/pkg/domain"
	"trustlane/pkg/platform/sentinel"
	txcontext "trustlane/pkg/platform/tx"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const reportColumns = `id, profile_id, reason, source, status, admin_notes, created_at, reviewed_at`

func (s *Postgres) Create(ctx context.Context, r *models.Report) error {
	_, err := txcontext.Execer(ctx, s.db).ExecContext(ctx,
		`INSERT INTO reports (`+reportColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(r.ID),
		uuid.UUID(r.ProfileID),
		r.Reason,
		string(r.Source),
		string(r.Status),
		sql.NullString{String: r.AdminNotes, Valid: r.AdminNotes != ""},
		r.CreatedAt,
		r.ReviewedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	return s.findOne(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, uuid.UUID(reportID))
}

func (s *Postgres) FindByIDForUpdate(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	return s.findOne(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1 FOR UPDATE`, uuid.UUID(reportID))
}

func (s *Postgres) Update(ctx context.Context, r *models.Report) error {
	res, err := txcontext.Execer(ctx, s.db).ExecContext(ctx,
		`UPDATE reports SET status = $2, admin_notes = $3, reviewed_at = $4 WHERE id = $1`,
		uuid.UUID(r.ID),
		string(r.Status),
		sql.NullString{String: r.AdminNotes, Valid: r.AdminNotes != ""},
		r.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, filter models.Filter) ([]*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if !filter.ProfileID.IsNil() {
		args = append(args, uuid.UUID(filter.ProfileID))
		query += fmt.Sprintf(` AND profile_id = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []*models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

func (s *Postgres) ExistsForProfileReason(ctx context.Context, profileID id.ProfileID, category string) (bool, error) {
	var exists bool
	err := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM reports WHERE profile_id = $1 AND strpos(reason, $2) > 0)`,
		uuid.UUID(profileID), category).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check existing report: %w", err)
	}
	return exists, nil
}

func (s *Postgres) CountByStatus(ctx context.Context, status models.Status) (int, error) {
	var n int
	err := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reports WHERE status = $1`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}

func (s *Postgres) findOne(ctx context.Context, query string, args ...any) (*models.Report, error) {
	r, err := scanReport(txcontext.Execer(ctx, s.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return r, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var (
		r                   models.Report
		reportID, profileID uuid.UUID
		source, status      string
		notes               sql.NullString
		reviewedAt          sql.NullTime
	)
	if err := row.Scan(&reportID, &profileID, &r.Reason, &source, &status, &notes, &r.CreatedAt, &reviewedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	r.ID = id.ReportID(reportID)
	r.ProfileID = id.ProfileID(profileID)
	r.Source = models.Source(source)
	r.Status = models.Status(status)
	r.AdminNotes = notes.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		r.ReviewedAt = &t
	}
	return &r, nil
}
