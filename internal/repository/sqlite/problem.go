package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/judgehub/internal/apperror"
	"github.com/sakif/judgehub/internal/model"
	"github.com/sakif/judgehub/internal/repository"
)

var _ repository.ProblemRepository = (*DB)(nil)

const problemColumns = `id, author_id, title, statement, difficulty, time_limit_ms, memory_limit_kb, created_at, updated_at`

func (db *DB) CreateProblem(ctx context.Context, p *model.Problem) error {
	now := time.Now().UTC()
	p.ID = xid.New().String()
	p.CreatedAt = now
	p.UpdatedAt = now

	return db.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO problems (`+problemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.AuthorID, p.Title, p.Statement, p.Difficulty,
			p.TimeLimitMS, p.MemoryLimitKB, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting problem: %w", err)
		}
		return insertTestCases(ctx, tx, p.ID, p.TestCases)
	})
}

// GetProblem returns the problem with all of its test cases in order.
func (db *DB) GetProblem(ctx context.Context, id string) (*model.Problem, error) {
	p, err := scanProblem(db.conn.QueryRowContext(ctx,
		`SELECT `+problemColumns+` FROM problems WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("problem", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting problem %s: %w", id, err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT input, output, hidden FROM test_cases WHERE problem_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing test cases for %s: %w", id, err)
	}
	defer rows.Close()

	p.TestCases = []model.TestCase{}
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.Input, &tc.Output, &tc.Hidden); err != nil {
			return nil, fmt.Errorf("sqlite: scanning test case: %w", err)
		}
		p.TestCases = append(p.TestCases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating test cases: %w", err)
	}
	return p, nil
}

func (db *DB) ListProblems(ctx context.Context, opts repository.ListOptions) ([]model.Problem, error) {
	limit, offset := page(opts)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+problemColumns+` FROM problems ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing problems: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning problem: %w", err)
		}
		problems = append(problems, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating problems: %w", err)
	}
	return problems, nil
}

func (db *DB) UpdateProblem(ctx context.Context, p *model.Problem) error {
	p.UpdatedAt = time.Now().UTC()

	return db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE problems
			 SET title = ?, statement = ?, difficulty = ?, time_limit_ms = ?, memory_limit_kb = ?, updated_at = ?
			 WHERE id = ?`,
			p.Title, p.Statement, p.Difficulty, p.TimeLimitMS, p.MemoryLimitKB, p.UpdatedAt, p.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating problem %s: %w", p.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound("problem", p.ID)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM test_cases WHERE problem_id = ?`, p.ID); err != nil {
			return fmt.Errorf("sqlite: clearing test cases for %s: %w", p.ID, err)
		}
		return insertTestCases(ctx, tx, p.ID, p.TestCases)
	})
}

// DeleteProblem cascades to its test cases and submissions.
func (db *DB) DeleteProblem(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM problems WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting problem %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("problem", id)
	}
	return nil
}

func insertTestCases(ctx context.Context, tx *sql.Tx, problemID string, cases []model.TestCase) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO test_cases (problem_id, position, input, output, hidden) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: preparing test case insert: %w", err)
	}
	defer stmt.Close()

	for i, tc := range cases {
		if _, err := stmt.ExecContext(ctx, problemID, i, tc.Input, tc.Output, tc.Hidden); err != nil {
			return fmt.Errorf("sqlite: inserting test case %d: %w", i, err)
		}
	}
	return nil
}

func scanProblem(row rowScanner) (*model.Problem, error) {
	var p model.Problem
	err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Statement, &p.Difficulty,
		&p.TimeLimitMS, &p.MemoryLimitKB, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// page applies the default page size of 20 and a cap of 100.
func page(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	switch {
	case limit <= 0:
		limit = 20
	case limit > 100:
		limit = 100
	}
	return limit, max(opts.Offset, 0)
}
