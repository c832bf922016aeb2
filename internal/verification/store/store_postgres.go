package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"trustlane/internal/platform/postgres"
	"trustlane/internal/verification/models"
	id "trustlane/pkg/domain"
	"trustlane/pkg/platform/sentinel"
	txcontext "trustlane/pkg/platform/tx"
)

// Postgres persists requests in verification_requests. A partial unique index
// on (profile_id) WHERE status = 'PENDING' backs the single-pending rule.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const requestColumns = `id, profile_id, metrics_snapshot, status, admin_reason, created_at, reviewed_at`

func (s *Postgres) Create(ctx context.Context, r *models.Request) error {
	snapshot, err := json.Marshal(r.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal metrics snapshot: %w", err)
	}
	query := `INSERT INTO verification_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = txcontext.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(r.ID),
		uuid.UUID(r.ProfileID),
		snapshot,
		string(r.Status),
		sql.NullString{String: r.AdminReason, Valid: r.AdminReason != ""},
		r.CreatedAt,
		r.ReviewedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert verification request: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, requestID id.VerificationRequestID) (*models.Request, error) {
	return s.findOne(ctx, `SELECT `+requestColumns+` FROM verification_requests WHERE id = $1`, uuid.UUID(requestID))
}

func (s *Postgres) FindByIDForUpdate(ctx context.Context, requestID id.VerificationRequestID) (*models.Request, error) {
	return s.findOne(ctx, `SELECT `+requestColumns+` FROM verification_requests WHERE id = $1 FOR UPDATE`, uuid.UUID(requestID))
}

func (s *Postgres) FindPendingByProfile(ctx context.Context, profileID id.ProfileID) (*models.Request, error) {
	return s.findOne(ctx, `SELECT `+requestColumns+` FROM verification_requests
		WHERE profile_id = $1 AND status = 'PENDING'`, uuid.UUID(profileID))
}

func (s *Postgres) Update(ctx context.Context, r *models.Request) error {
	query := `UPDATE verification_requests SET status = $2, admin_reason = $3, reviewed_at = $4 WHERE id = $1`
	res, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(r.ID),
		string(r.Status),
		sql.NullString{String: r.AdminReason, Valid: r.AdminReason != ""},
		r.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("update verification request: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification request rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListByStatus(ctx context.Context, status models.Status, limit int) ([]*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM verification_requests WHERE status = $1 ORDER BY created_at, id`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.list(ctx, query, args...)
}

func (s *Postgres) ListByProfile(ctx context.Context, profileID id.ProfileID) ([]*models.Request, error) {
	return s.list(ctx, `SELECT `+requestColumns+` FROM verification_requests
		WHERE profile_id = $1 ORDER BY created_at DESC, id DESC`, uuid.UUID(profileID))
}

func (s *Postgres) CountByStatus(ctx context.Context, status models.Status) (int, error) {
	var n int
	err := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM verification_requests WHERE status = $1`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count verification requests: %w", err)
	}
	return n, nil
}

func (s *Postgres) findOne(ctx context.Context, query string, args ...any) (*models.Request, error) {
	r, err := scanRequest(txcontext.Execer(ctx, s.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return r, err
}

func (s *Postgres) list(ctx context.Context, query string, args ...any) ([]*models.Request, error) {
	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query verification requests: %w", err)
	}
	defer rows.Close()

	var out []*models.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification requests: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.Request, error) {
	var (
		r                    models.Request
		requestID, profileID uuid.UUID
		snapshot             []byte
		status               string
		reason               sql.NullString
		reviewedAt           sql.NullTime
	)
	if err := row.Scan(&requestID, &profileID, &snapshot, &status, &reason, &r.CreatedAt, &reviewedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan verification request: %w", err)
	}
	r.ID = id.VerificationRequestID(requestID)
	r.ProfileID = id.ProfileID(profileID)
	r.Status = models.Status(status)
	r.AdminReason = reason.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		r.ReviewedAt = &t
	}
	r.Snapshot = models.MetricsSnapshot{}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &r.Snapshot); err != nil {
			return nil, fmt.Errorf("decode metrics snapshot: %w", err)
		}
	}
	return &r, nil
}
