package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nexus-vision/facesearch-go/internal/core"
	"github.com/nexus-vision/facesearch-go/internal/data/pgxutil"
	"github.com/nexus-vision/facesearch-go/internal/domain/model"
	apperrors "github.com/nexus-vision/facesearch-go/internal/errors"
)

// Create inserts a new pending job row keyed by its correlation id.
func (r *JobRepo) Create(ctx context.Context, params core.CreateJobParams) (*model.SearchJob, error) {
	if params.CorrelationID == "" {
		return nil, errors.New("correlation id is required")
	}
	if params.SubjectReference == "" {
		return nil, errors.New("subject reference is required")
	}

	parameters := params.Parameters
	if len(parameters) == 0 {
		parameters = json.RawMessage(`{}`)
	}

	query := `
      INSERT INTO search_jobs(correlation_id, status, subject_reference, parameters, created_at)
      VALUES ($1, 'pending', $2, $3, $4)
      RETURNING ` + jobColumns

	row := r.DB.QueryRowContext(ctx, query,
		params.CorrelationID,
		params.SubjectReference,
		[]byte(parameters),
		r.timeProvider.Now().UTC(),
	)

	job, err := scanJobFromRow(row)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("insert job: %w", err))
	}
	return job, nil
}

// GetByCorrelationID retrieves a job by its correlation id.
func (r *JobRepo) GetByCorrelationID(ctx context.Context, correlationID string) (*model.SearchJob, error) {
	var job *model.SearchJob
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM search_jobs
			WHERE correlation_id = $1
		`, correlationID)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = collectJobFromRows(rows)
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Complete transitions a pending job to completed and stores the result
// payload. The conditional update makes concurrent duplicate callbacks race
// safely: exactly one wins, the rest observe the terminal row and no-op.
// Returns false without error when the job exists but was already terminal,
// and ErrJobNotFound when the correlation id is unknown.
func (r *JobRepo) Complete(ctx context.Context, correlationID string, result json.RawMessage) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()

	query := `
		UPDATE search_jobs
		SET status = 'completed',
		    result_payload = $2,
		    completed_at = $3
		WHERE correlation_id = $1 AND status = 'pending'
	`

	res, err := r.DB.ExecContext(ctx, query, correlationID, []byte(result), currentTime)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}

	return r.transitionOutcome(ctx, correlationID, res)
}

// Fail transitions a pending job to failed with a diagnostic reason. Same
// contract as Complete.
func (r *JobRepo) Fail(ctx context.Context, correlationID, reason string) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()

	query := `
		UPDATE search_jobs
		SET status = 'failed',
		    failure_reason = $2,
		    completed_at = $3
		WHERE correlation_id = $1 AND status = 'pending'
	`

	res, err := r.DB.ExecContext(ctx, query, correlationID, reason, currentTime)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}

	return r.transitionOutcome(ctx, correlationID, res)
}

// transitionOutcome interprets the result of a conditional terminal update:
// one affected row means this caller won the transition; zero rows means the
// job is either already terminal (idempotent no-op) or unknown.
func (r *JobRepo) transitionOutcome(ctx context.Context, correlationID string, res sql.Result) (bool, error) {
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return true, nil
	}

	var exists bool
	err = r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM search_jobs WHERE correlation_id = $1)`,
		correlationID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check job existence: %w", err)
	}
	if !exists {
		return false, ErrJobNotFound
	}
	return false, nil
}

// Stats returns counts of jobs per status.
func (r *JobRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'pending')   AS pending,
    count(*) FILTER (WHERE status = 'completed') AS completed,
    count(*) FILTER (WHERE status = 'failed')    AS failed
  FROM search_jobs
  `).Scan(
		&s.Pending,
		&s.Completed,
		&s.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}
	return &s, nil
}

// collectJobFromRows collects a single job from pgx rows.
func collectJobFromRows(rows pgx.Rows) (*model.SearchJob, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	job, err := scanJobFromRow(rows)
	if err != nil {
		return nil, err
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}

	return job, nil
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	parameters    []byte
	resultPayload []byte
	failureReason sql.NullString
	completedAt   sql.NullTime
}

func (d *jobRowData) scanInto(scanner jobRowScanner, job *model.SearchJob) error {
	return scanner.Scan(
		&job.CorrelationID,
		&job.Status,
		&job.SubjectReference,
		&d.parameters,
		&d.resultPayload,
		&d.failureReason,
		&job.CreatedAt,
		&d.completedAt,
	)
}

func (d *jobRowData) apply(job *model.SearchJob) {
	job.Parameters = cloneJSON(d.parameters)
	if len(d.resultPayload) > 0 {
		job.ResultPayload = append(json.RawMessage(nil), d.resultPayload...)
	}
	job.FailureReason = cloneNullableString(d.failureReason)
	job.CompletedAt = cloneNullableTime(d.completedAt)
}

func scanJobFromRow(scanner jobRowScanner) (*model.SearchJob, error) {
	job := &model.SearchJob{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}

	data.apply(job)
	return job, nil
}

func cloneJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
