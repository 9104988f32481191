package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/lead-tracker/internal/store"
	"github.com/jonathan/lead-tracker/internal/types"
)

// updatable lists the columns UpdateApplication may write. Field names are
// the store's external names, which are also the column names.
var updatable = []string{
	store.ColApplied,
	store.ColSentCV,
	store.ColSentPortfolio,
	store.ColSentCoverLetter,
	store.ColGotTheJob,
	store.ColStartDate,
	store.ColInterviews,
	store.ColContacts,
	store.ColNotes,
	store.ColFollowUpMessage,
	store.ColFollowUpCompletedAt,
	store.ColInterviewPrepComplete,
	store.ColCollapsed,
	store.ColJobTitle,
	store.ColCompanyName,
}

const applicationColumns = `id, click_id, source_job_id, job_title, company_name, url,
	applied, sent_cv, sent_portfolio, sent_cover_letter, got_the_job, start_date,
	interviews, contacts, notes, follow_up_message, follow_up_completed_at,
	interview_prep_complete, is_collapsed, is_archived, archived_at, created_at`

// RecordClick stores a click event so it shows up as a prospect until it is
// materialized. Recording the same click twice is a no-op.
func (db *DB) RecordClick(ctx context.Context, evt types.ClickEvent) error {
	clickedAt := evt.ClickedAt
	if clickedAt.IsZero() {
		clickedAt = time.Now()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO job_clicks (click_id, user_id, source_job_id, job_title, company_name, url, clicked_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (click_id) DO NOTHING`,
		evt.ClickID, db.userID, evt.SourceJobID, evt.Title, evt.Company, evt.URL, clickedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record click %s: %w", evt.ClickID, err)
	}
	return nil
}

// CreateApplication creates the durable record for a lead. Creating twice
// for the same source returns the existing id.
func (db *DB) CreateApplication(ctx context.Context, in store.CreateApplicationInput) (string, error) {
	var clickID *string
	if types.IsClickID(in.SourceID) {
		clickID = &in.SourceID
	}
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO applications (user_id, source_id, click_id, source_job_id, job_title, company_name, url,
		     applied, sent_cv, sent_portfolio, sent_cover_letter, notes, follow_up_message,
		     interview_prep_complete, start_date, is_collapsed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (user_id, source_id) DO UPDATE SET updated_at = applications.updated_at
		 RETURNING id`,
		db.userID, in.SourceID, clickID, in.SourceJobID, in.Title, in.Company, in.URL,
		in.Applied, in.SentCV, in.SentPortfolio, in.SentCoverLetter, in.Notes, in.FollowUpMessage,
		in.InterviewPrepComplete, in.StartDate, in.Collapsed, createdAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create application for %s: %w", in.SourceID, err)
	}
	return id.String(), nil
}

// buildUpdate renders the UPDATE statement for a partial field set. Unknown
// columns are rejected so callers can never write outside the whitelist.
func buildUpdate(fields store.Fields) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, errors.New("no fields to update")
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !slices.Contains(updatable, col) {
			return "", nil, fmt.Errorf("%w: %s", types.ErrUnknownField, col)
		}
		cols = append(cols, col)
	}
	slices.Sort(cols)

	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols))
	for i, col := range cols {
		v, err := encodeValue(col, fields[col])
		if err != nil {
			return "", nil, fmt.Errorf("failed to encode %s: %w", col, err)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+1))
		args = append(args, v)
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf(
		"UPDATE applications SET %s WHERE id = $%d AND user_id = $%d",
		strings.Join(sets, ", "), len(cols)+1, len(cols)+2,
	)
	return query, args, nil
}

// encodeValue converts a field value to what the column expects.
func encodeValue(col string, v any) (any, error) {
	switch col {
	case store.ColInterviews:
		ivs, ok := v.([]types.Interview)
		if !ok {
			return nil, fmt.Errorf("%w: got %T", types.ErrInvalidFieldValue, v)
		}
		if ivs == nil {
			ivs = []types.Interview{}
		}
		return json.Marshal(ivs)
	case store.ColContacts:
		cs, ok := v.([]types.Contact)
		if !ok {
			return nil, fmt.Errorf("%w: got %T", types.ErrInvalidFieldValue, v)
		}
		if cs == nil {
			cs = []types.Contact{}
		}
		return json.Marshal(cs)
	default:
		return v, nil
	}
}

// UpdateApplication writes a partial field set.
func (db *DB) UpdateApplication(ctx context.Context, applyingID string, fields store.Fields) error {
	id, err := uuid.Parse(applyingID)
	if err != nil {
		return fmt.Errorf("%w: %s", store.ErrApplicationNotFound, applyingID)
	}
	query, args, err := buildUpdate(fields)
	if err != nil {
		return err
	}
	args = append(args, id, db.userID)

	result, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update application %s: %w", applyingID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrApplicationNotFound, applyingID)
	}
	return nil
}

// ArchiveApplication marks an application archived.
func (db *DB) ArchiveApplication(ctx context.Context, applyingID string) error {
	id, err := uuid.Parse(applyingID)
	if err != nil {
		return fmt.Errorf("%w: %s", store.ErrApplicationNotFound, applyingID)
	}
	result, err := db.pool.Exec(ctx,
		`UPDATE applications SET is_archived = TRUE, archived_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND user_id = $2`,
		id, db.userID,
	)
	if err != nil {
		return fmt.Errorf("failed to archive application %s: %w", applyingID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrApplicationNotFound, applyingID)
	}
	return nil
}

// GetApplication retrieves an application by id, archived or not.
func (db *DB) GetApplication(ctx context.Context, applyingID string) (*types.Lead, error) {
	id, err := uuid.Parse(applyingID)
	if err != nil {
		return nil, nil
	}
	row := db.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1 AND user_id = $2`,
		id, db.userID,
	)
	l, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return &l, nil
}

// ListLeads returns active applications followed by clicks that have not
// been materialized, each ordered by creation time.
func (db *DB) ListLeads(ctx context.Context) ([]types.Lead, error) {
	var apps, clicks []types.Lead

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		apps, err = db.listApplications(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		clicks, err = db.listPendingClicks(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return append(apps, clicks...), nil
}

func (db *DB) listApplications(ctx context.Context) ([]types.Lead, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+applicationColumns+` FROM applications
		 WHERE user_id = $1 AND NOT is_archived
		 ORDER BY created_at ASC`,
		db.userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var leads []types.Lead
	for rows.Next() {
		l, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return leads, nil
}

func (db *DB) listPendingClicks(ctx context.Context) ([]types.Lead, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT c.click_id, c.source_job_id, c.job_title, c.company_name, c.url, c.clicked_at
		 FROM job_clicks c
		 WHERE c.user_id = $1
		   AND NOT EXISTS (
		       SELECT 1 FROM applications a
		       WHERE a.user_id = c.user_id AND a.source_id = c.click_id
		   )
		 ORDER BY c.clicked_at ASC`,
		db.userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list clicks: %w", err)
	}
	defer rows.Close()

	var leads []types.Lead
	for rows.Next() {
		var evt types.ClickEvent
		if err := rows.Scan(&evt.ClickID, &evt.SourceJobID, &evt.Title, &evt.Company, &evt.URL, &evt.ClickedAt); err != nil {
			return nil, fmt.Errorf("failed to scan click: %w", err)
		}
		leads = append(leads, types.LeadFromClick(evt))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list clicks: %w", err)
	}
	return leads, nil
}

func scanApplication(row pgx.Row) (types.Lead, error) {
	var (
		l          types.Lead
		id         uuid.UUID
		clickID    *string
		interviews []byte
		contacts   []byte
	)
	err := row.Scan(
		&id, &clickID, &l.SourceJobID, &l.Title, &l.Company, &l.URL,
		&l.Applied, &l.SentCV, &l.SentPortfolio, &l.SentCoverLetter, &l.GotTheJob, &l.StartDate,
		&interviews, &contacts, &l.Notes, &l.FollowUpMessage, &l.FollowUpCompletedAt,
		&l.InterviewPrepComplete, &l.Collapsed, &l.IsArchived, &l.ArchivedAt, &l.CreatedAt,
	)
	if err != nil {
		return types.Lead{}, err
	}

	l.ID = id.String()
	if clickID != nil {
		l.ClickID = *clickID
	}
	l.IsMaterialized = true
	if err := decodeJSONList(interviews, &l.Interviews); err != nil {
		return types.Lead{}, fmt.Errorf("failed to decode interviews: %w", err)
	}
	if err := decodeJSONList(contacts, &l.Contacts); err != nil {
		return types.Lead{}, fmt.Errorf("failed to decode contacts: %w", err)
	}
	return l, nil
}

func decodeJSONList[T any](raw []byte, dst *[]T) error {
	if len(raw) == 0 {
		*dst = []T{}
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	if *dst == nil {
		*dst = []T{}
	}
	return nil
}

var _ store.Backend = (*DB)(nil)
