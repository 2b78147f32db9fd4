// Package repository declares the storage interfaces the services depend on.
// internal/repository/sqlite implements all of them on one *sqlite.DB.
package repository

import (
	"context"

	"github.com/sakif/judgehub/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	// Upsert creates or refreshes a user keyed by GitHubID.
	Upsert(ctx context.Context, user *model.User) error
}

type ProblemRepository interface {
	CreateProblem(ctx context.Context, p *model.Problem) error
	GetProblem(ctx context.Context, id string) (*model.Problem, error)
	// ListProblems returns problems newest first, without test cases.
	ListProblems(ctx context.Context, opts ListOptions) ([]model.Problem, error)
	// UpdateProblem replaces the problem's fields and its whole test case set.
	UpdateProblem(ctx context.Context, p *model.Problem) error
	DeleteProblem(ctx context.Context, id string) error
}

// SubmissionFilter narrows ListSubmissions. Empty fields match everything.
type SubmissionFilter struct {
	UserID    string
	ProblemID string
	ListOptions
}

type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, s *model.Submission) error
	// UpdateSubmission stores the verdict fields of s.
	UpdateSubmission(ctx context.Context, s *model.Submission) error
	GetSubmission(ctx context.Context, id string) (*model.Submission, error)
	// ListSubmissions returns newest first, without source code.
	ListSubmissions(ctx context.Context, f SubmissionFilter) ([]model.Submission, error)
}
