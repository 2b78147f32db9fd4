package sqlite

import (
	"context"
	"testing"

	"github.com/sakif/judgehub/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com", PasswordHash: "hash"}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return u
}

func createTestProblem(t *testing.T, db *DB, authorID, title string) *model.Problem {
	t.Helper()
	p := &model.Problem{
		AuthorID:      authorID,
		Title:         title,
		Statement:     "Add two numbers.",
		Difficulty:    model.DifficultyEasy,
		TimeLimitMS:   1000,
		MemoryLimitKB: 65536,
		TestCases: []model.TestCase{
			{Input: "1\n2", Output: "3"},
			{Input: "5\n5", Output: "10", Hidden: true},
		},
	}
	if err := db.CreateProblem(context.Background(), p); err != nil {
		t.Fatalf("CreateProblem(%s): %v", title, err)
	}
	return p
}
