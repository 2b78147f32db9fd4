package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/judgehub/internal/apperror"
	"github.com/sakif/judgehub/internal/model"
	"github.com/sakif/judgehub/internal/repository"
)

var _ repository.SubmissionRepository = (*DB)(nil)

const submissionColumns = `id, user_id, problem_id, language, source, status, passed, total,
	runtime_ms, memory_kb, error_message, created_at, updated_at`

func (db *DB) CreateSubmission(ctx context.Context, s *model.Submission) error {
	now := time.Now().UTC()
	s.ID = xid.New().String()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.Status == "" {
		s.Status = model.SubmissionPending
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO submissions (`+submissionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.ProblemID, s.Language, s.Source, s.Status, s.Passed, s.Total,
		s.RuntimeMS, s.MemoryKB, s.ErrorMessage, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting submission: %w", err)
	}
	return nil
}

func (db *DB) UpdateSubmission(ctx context.Context, s *model.Submission) error {
	s.UpdatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE submissions
		 SET status = ?, passed = ?, total = ?, runtime_ms = ?, memory_kb = ?, error_message = ?, updated_at = ?
		 WHERE id = ?`,
		s.Status, s.Passed, s.Total, s.RuntimeMS, s.MemoryKB, s.ErrorMessage, s.UpdatedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating submission %s: %w", s.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("submission", s.ID)
	}
	return nil
}

func (db *DB) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	s, err := scanSubmission(db.conn.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("submission", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting submission %s: %w", id, err)
	}
	return s, nil
}

func (db *DB) ListSubmissions(ctx context.Context, f repository.SubmissionFilter) ([]model.Submission, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.ProblemID != "" {
		where = append(where, "problem_id = ?")
		args = append(args, f.ProblemID)
	}

	query := `SELECT ` + submissionColumns + ` FROM submissions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	limit, offset := page(f.ListOptions)
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing submissions: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning submission: %w", err)
		}
		s.Source = ""
		subs = append(subs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating submissions: %w", err)
	}
	return subs, nil
}

func scanSubmission(row rowScanner) (*model.Submission, error) {
	var s model.Submission
	err := row.Scan(&s.ID, &s.UserID, &s.ProblemID, &s.Language, &s.Source, &s.Status,
		&s.Passed, &s.Total, &s.RuntimeMS, &s.MemoryKB, &s.ErrorMessage, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
