package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"trustlane/internal/collaboration/models"
	"trustlane/internal/platform/postgres"
	id "trustlane/pkg/domain"
	"trustlane/pkg/platform/sentinel"
	txcontext "trustlane/pkg/platform/tx"
)

// Postgres persists requests in collaboration_requests and engagements in
// collaborations. Unique constraints on (campaign_id, creator_profile_id) and
// collaborations.request_id surface as sentinel.ErrConflict.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// -----------------------------------------------------------------------------
// Requests
// -----------------------------------------------------------------------------

const requestColumns = `id, campaign_id, campaign_name, creator_profile_id, creator_user_id,
	sponsor_id, message, status, created_at, updated_at`

func (s *Postgres) CreateRequest(ctx context.Context, r *models.Request) error {
	query := `INSERT INTO collaboration_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(r.ID),
		uuid.UUID(r.CampaignID),
		r.CampaignName,
		uuid.UUID(r.CreatorProfileID),
		uuid.UUID(r.CreatorUserID),
		uuid.UUID(r.SponsorID),
		nullString(r.Message),
		string(r.Status),
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert collaboration request: %w", err)
	}
	return nil
}

func (s *Postgres) FindRequestByID(ctx context.Context, requestID id.CollaborationRequestID) (*models.Request, error) {
	return s.findRequest(ctx, `SELECT `+requestColumns+` FROM collaboration_requests WHERE id = $1`, uuid.UUID(requestID))
}

func (s *Postgres) FindRequestByIDForUpdate(ctx context.Context, requestID id.CollaborationRequestID) (*models.Request, error) {
	return s.findRequest(ctx, `SELECT `+requestColumns+` FROM collaboration_requests WHERE id = $1 FOR UPDATE`, uuid.UUID(requestID))
}

func (s *Postgres) UpdateRequest(ctx context.Context, r *models.Request) error {
	res, err := txcontext.Execer(ctx, s.db).ExecContext(ctx,
		`UPDATE collaboration_requests SET status = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(r.ID), string(r.Status), r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update collaboration request: %w", err)
	}
	return requireRow(res, "collaboration request")
}

func (s *Postgres) ListRequests(ctx context.Context, filter models.RequestFilter) ([]*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM collaboration_requests WHERE 1=1`
	var args []any
	if !filter.SponsorID.IsNil() {
		args = append(args, uuid.UUID(filter.SponsorID))
		query += fmt.Sprintf(` AND sponsor_id = $%d`, len(args))
	}
	if !filter.CreatorUserID.IsNil() {
		args = append(args, uuid.UUID(filter.CreatorUserID))
		query += fmt.Sprintf(` AND creator_user_id = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query collaboration requests: %w", err)
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
		return nil, fmt.Errorf("iterate collaboration requests: %w", err)
	}
	return out, nil
}

func (s *Postgres) CountAccepted(ctx context.Context, profileID id.ProfileID) (int, error) {
	var n int
	err := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collaboration_requests WHERE creator_profile_id = $1 AND status = 'ACCEPTED'`,
		uuid.UUID(profileID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count accepted requests: %w", err)
	}
	return n, nil
}

func (s *Postgres) LastRequestActivity(ctx context.Context, profileID id.ProfileID) (time.Time, bool, error) {
	var last sql.NullTime
	err := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT MAX(updated_at) FROM collaboration_requests WHERE creator_profile_id = $1`,
		uuid.UUID(profileID)).Scan(&last)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query last request activity: %w", err)
	}
	return last.Time, last.Valid, nil
}

func (s *Postgres) findRequest(ctx context.Context, query string, args ...any) (*models.Request, error) {
	r, err := scanRequest(txcontext.Execer(ctx, s.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return r, err
}

func scanRequest(row rowScanner) (*models.Request, error) {
	var (
		r                                                models.Request
		requestID, campaignID, profileID, creator, spons uuid.UUID
		message                                          sql.NullString
		status                                           string
	)
	err := row.Scan(&requestID, &campaignID, &r.CampaignName, &profileID, &creator,
		&spons, &message, &status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan collaboration request: %w", err)
	}
	r.ID = id.CollaborationRequestID(requestID)
	r.CampaignID = id.CampaignID(campaignID)
	r.CreatorProfileID = id.ProfileID(profileID)
	r.CreatorUserID = id.UserID(creator)
	r.SponsorID = id.UserID(spons)
	r.Message = message.String
	r.Status = models.RequestStatus(status)
	return &r, nil
}

// -----------------------------------------------------------------------------
// Collaborations
// -----------------------------------------------------------------------------

const collaborationColumns = `id, request_id, campaign_id, campaign_name, creator_profile_id,
	creator_user_id, sponsor_id, status, payment_status, deliverables_description, requirements,
	deadline, deliverables_set_at, content_links, approval_feedback, approved_at, revision_note,
	final_notes, cancel_reason, created_at, updated_at, completed_at`

func (s *Postgres) CreateCollaboration(ctx context.Context, c *models.Collaboration) error {
	links, err := json.Marshal(c.ContentLinks)
	if err != nil {
		return fmt.Errorf("marshal content links: %w", err)
	}
	query := `INSERT INTO collaborations (` + collaborationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`
	_, err = txcontext.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.ID),
		uuid.UUID(c.RequestID),
		uuid.UUID(c.CampaignID),
		c.CampaignName,
		uuid.UUID(c.CreatorProfileID),
		uuid.UUID(c.CreatorUserID),
		uuid.UUID(c.SponsorID),
		string(c.Status),
		string(c.PaymentStatus),
		nullString(c.Deliverables.Description),
		pq.Array(requirementsOrEmpty(c.Deliverables.Requirements)),
		c.Deliverables.Deadline,
		c.Deliverables.SetAt,
		links,
		nullString(c.ApprovalFeedback),
		c.ApprovedAt,
		nullString(c.RevisionNote),
		nullString(c.FinalNotes),
		nullString(c.CancelReason),
		c.CreatedAt,
		c.UpdatedAt,
		c.CompletedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert collaboration: %w", err)
	}
	return nil
}

func (s *Postgres) FindCollaborationByID(ctx context.Context, collaborationID id.CollaborationID) (*models.Collaboration, error) {
	return s.findCollaboration(ctx, `SELECT `+collaborationColumns+` FROM collaborations WHERE id = $1`,
		uuid.UUID(collaborationID))
}

func (s *Postgres) FindCollaborationByIDForUpdate(ctx context.Context, collaborationID id.CollaborationID) (*models.Collaboration, error) {
	return s.findCollaboration(ctx, `SELECT `+collaborationColumns+` FROM collaborations WHERE id = $1 FOR UPDATE`,
		uuid.UUID(collaborationID))
}

func (s *Postgres) FindCollaborationByRequest(ctx context.Context, requestID id.CollaborationRequestID) (*models.Collaboration, error) {
	return s.findCollaboration(ctx, `SELECT `+collaborationColumns+` FROM collaborations WHERE request_id = $1`,
		uuid.UUID(requestID))
}

func (s *Postgres) UpdateCollaboration(ctx context.Context, c *models.Collaboration) error {
	links, err := json.Marshal(c.ContentLinks)
	if err != nil {
		return fmt.Errorf("marshal content links: %w", err)
	}
	query := `UPDATE collaborations SET
		status = $2, payment_status = $3, deliverables_description = $4, requirements = $5,
		deadline = $6, deliverables_set_at = $7, content_links = $8, approval_feedback = $9,
		approved_at = $10, revision_note = $11, final_notes = $12, cancel_reason = $13,
		updated_at = $14, completed_at = $15
		WHERE id = $1`
	res, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.ID),
		string(c.Status),
		string(c.PaymentStatus),
		nullString(c.Deliverables.Description),
		pq.Array(requirementsOrEmpty(c.Deliverables.Requirements)),
		c.Deliverables.Deadline,
		c.Deliverables.SetAt,
		links,
		nullString(c.ApprovalFeedback),
		c.ApprovedAt,
		nullString(c.RevisionNote),
		nullString(c.FinalNotes),
		nullString(c.CancelReason),
		c.UpdatedAt,
		c.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update collaboration: %w", err)
	}
	return requireRow(res, "collaboration")
}

func (s *Postgres) ListCollaborations(ctx context.Context, filter models.Filter) ([]*models.Collaboration, error) {
	query := `SELECT ` + collaborationColumns + ` FROM collaborations WHERE 1=1`
	var args []any
	if !filter.SponsorID.IsNil() {
		args = append(args, uuid.UUID(filter.SponsorID))
		query += fmt.Sprintf(` AND sponsor_id = $%d`, len(args))
	}
	if !filter.CreatorUserID.IsNil() {
		args = append(args, uuid.UUID(filter.CreatorUserID))
		query += fmt.Sprintf(` AND creator_user_id = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query collaborations: %w", err)
	}
	defer rows.Close()

	var out []*models.Collaboration
	for rows.Next() {
		c, err := scanCollaboration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collaborations: %w", err)
	}
	return out, nil
}

func (s *Postgres) CountCollaborationsByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx,
		`SELECT status, COUNT(*) FROM collaborations GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count collaborations: %w", err)
	}
	defer rows.Close()

	out := make(map[models.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan collaboration count: %w", err)
		}
		out[models.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collaboration counts: %w", err)
	}
	return out, nil
}

func (s *Postgres) findCollaboration(ctx context.Context, query string, args ...any) (*models.Collaboration, error) {
	c, err := scanCollaboration(txcontext.Execer(ctx, s.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return c, err
}

func scanCollaboration(row rowScanner) (*models.Collaboration, error) {
	var (
		c                                                   models.Collaboration
		collabID, requestID, campaignID, profileID, creator uuid.UUID
		sponsorID                                           uuid.UUID
		status, payment                                     string
		description, feedback, revision, final, cancel      sql.NullString
		requirements                                        []string
		deadline, setAt, approvedAt, completedAt            sql.NullTime
		links                                               []byte
	)
	err := row.Scan(&collabID, &requestID, &campaignID, &c.CampaignName, &profileID,
		&creator, &sponsorID, &status, &payment, &description, pq.Array(&requirements),
		&deadline, &setAt, &links, &feedback, &approvedAt, &revision,
		&final, &cancel, &c.CreatedAt, &c.UpdatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan collaboration: %w", err)
	}
	c.ID = id.CollaborationID(collabID)
	c.RequestID = id.CollaborationRequestID(requestID)
	c.CampaignID = id.CampaignID(campaignID)
	c.CreatorProfileID = id.ProfileID(profileID)
	c.CreatorUserID = id.UserID(creator)
	c.SponsorID = id.UserID(sponsorID)
	c.Status = models.Status(status)
	c.PaymentStatus = models.PaymentStatus(payment)
	c.Deliverables = models.Deliverables{
		Description:  description.String,
		Requirements: requirementsOrEmpty(requirements),
		Deadline:     nullTime(deadline),
		SetAt:        nullTime(setAt),
	}
	c.ApprovalFeedback = feedback.String
	c.ApprovedAt = nullTime(approvedAt)
	c.RevisionNote = revision.String
	c.FinalNotes = final.String
	c.CancelReason = cancel.String
	c.CompletedAt = nullTime(completedAt)
	c.ContentLinks = []models.ContentLink{}
	if len(links) > 0 {
		if err := json.Unmarshal(links, &c.ContentLinks); err != nil {
			return nil, fmt.Errorf("decode content links: %w", err)
		}
	}
	return &c, nil
}

func requirementsOrEmpty(r []string) []string {
	if r == nil {
		return []string{}
	}
	return r
}

func requireRow(res sql.Result, entity string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", entity, err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
