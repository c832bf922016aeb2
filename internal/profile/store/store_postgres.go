package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"trustlane/internal/platform/postgres"
	"trustlane/internal/profile/models"
	id "trustlane/pkg/domain"
	"trustlane/pkg/platform/sentinel"
	txcontext "trustlane/pkg/platform/tx"
)

// Postgres persists profiles in the profiles table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const profileColumns = `id, user_id, display_name, bio, category, trust_score, verification_status,
	profile_completion, admin_note, downgraded_at, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, p *models.Profile) error {
	query := `INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.ID),
		uuid.UUID(p.UserID),
		nullString(p.DisplayName),
		nullString(p.Bio),
		nullString(p.Category),
		p.TrustScore,
		string(p.VerificationStatus),
		p.ProfileCompletion,
		nullString(p.AdminNote),
		nullTime(p.DowngradedAt),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	return s.findOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, uuid.UUID(profileID))
}

// FindByIDForUpdate locks the row until the surrounding transaction ends.
func (s *Postgres) FindByIDForUpdate(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	return s.findOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`, uuid.UUID(profileID))
}

func (s *Postgres) FindByUserID(ctx context.Context, userID id.UserID) (*models.Profile, error) {
	return s.findOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, uuid.UUID(userID))
}

func (s *Postgres) Update(ctx context.Context, p *models.Profile) error {
	query := `UPDATE profiles SET
			display_name = $2, bio = $3, category = $4, trust_score = $5,
			verification_status = $6, profile_completion = $7, admin_note = $8, downgraded_at = $9, updated_at = $10
		WHERE id = $1`
	res, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.ID),
		nullString(p.DisplayName),
		nullString(p.Bio),
		nullString(p.Category),
		p.TrustScore,
		string(p.VerificationStatus),
		p.ProfileCompletion,
		nullString(p.AdminNote),
		nullTime(p.DowngradedAt),
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListIDs(ctx context.Context) ([]id.ProfileID, error) {
	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx, `SELECT id FROM profiles ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list profile ids: %w", err)
	}
	defer rows.Close()

	var ids []id.ProfileID
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan profile id: %w", err)
		}
		ids = append(ids, id.ProfileID(u))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile ids: %w", err)
	}
	return ids, nil
}

func (s *Postgres) Search(ctx context.Context, filter models.SearchFilter) ([]*models.Profile, error) {
	var (
		where = []string{"trust_score >= $1"}
		args  = []any{filter.MinTrustScore}
	)
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("LOWER(category) = LOWER($%d)", len(args)))
	}
	if filter.VerifiedOnly {
		args = append(args, string(models.StatusVerified))
		where = append(where, fmt.Sprintf("verification_status = $%d", len(args)))
	}
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY trust_score DESC, created_at`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	defer rows.Close()

	var out []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}

func (s *Postgres) CountByStatus(ctx context.Context) (map[models.VerificationStatus]int, error) {
	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx,
		`SELECT verification_status, COUNT(*) FROM profiles GROUP BY verification_status`)
	if err != nil {
		return nil, fmt.Errorf("count profiles: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.VerificationStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan profile count: %w", err)
		}
		counts[models.VerificationStatus(status)] = n
	}
	return counts, rows.Err()
}

func (s *Postgres) findOne(ctx context.Context, query string, arg any) (*models.Profile, error) {
	row := txcontext.Execer(ctx, s.db).QueryRowContext(ctx, query, arg)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p                         models.Profile
		profileID, userID         uuid.UUID
		name, bio, category, note sql.NullString
		status                    string
		downgradedAt              sql.NullTime
	)
	err := row.Scan(&profileID, &userID, &name, &bio, &category, &p.TrustScore, &status,
		&p.ProfileCompletion, &note, &downgradedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	p.ID = id.ProfileID(profileID)
	p.UserID = id.UserID(userID)
	p.DisplayName = name.String
	p.Bio = bio.String
	p.Category = category.String
	p.AdminNote = note.String
	p.VerificationStatus = models.VerificationStatus(status)
	if downgradedAt.Valid {
		t := downgradedAt.Time
		p.DowngradedAt = &t
	}
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
