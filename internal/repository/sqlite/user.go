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

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, password_hash, github_id, avatar_url, created_at, updated_at`

// CreateUser inserts a password account. A taken username is a conflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.PasswordHash, nullableGitHubID(user.GitHubID),
		user.AvatarURL, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Username, err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", username)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user %s: %w", username, err)
	}
	return u, nil
}

// Upsert keeps the internal id of an existing GitHub user and refreshes
// their email and avatar. New GitHub users get their login as username, or
// login-<github id> when that name is already taken.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		var existing model.User
		err := tx.QueryRowContext(ctx,
			`SELECT id, username, created_at FROM users WHERE github_id = ?`, user.GitHubID,
		).Scan(&existing.ID, &existing.Username, &existing.CreatedAt)

		now := time.Now().UTC()
		switch {
		case err == nil:
			user.ID = existing.ID
			user.Username = existing.Username
			user.CreatedAt = existing.CreatedAt
			user.UpdatedAt = now
			_, err = tx.ExecContext(ctx,
				`UPDATE users SET email = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
				user.Email, user.AvatarURL, user.UpdatedAt, user.ID,
			)
			if err != nil {
				return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
			}
			return nil

		case errors.Is(err, sql.ErrNoRows):
			var taken int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM users WHERE username = ?`, user.Username,
			).Scan(&taken); err != nil {
				return fmt.Errorf("sqlite: checking username: %w", err)
			}
			if taken > 0 {
				user.Username = fmt.Sprintf("%s-%d", user.Username, user.GitHubID)
			}

			user.ID = xid.New().String()
			user.CreatedAt = now
			user.UpdatedAt = now
			_, err = tx.ExecContext(ctx,
				`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				user.ID, user.Username, user.Email, user.PasswordHash, user.GitHubID,
				user.AvatarURL, user.CreatedAt, user.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("sqlite: inserting user (githubID=%d): %w", user.GitHubID, err)
			}
			return nil

		default:
			return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
		}
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &githubID,
		&u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.GitHubID = githubID.Int64
	return &u, nil
}

func nullableGitHubID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// isUniqueViolation matches SQLite's UNIQUE constraint failure message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
