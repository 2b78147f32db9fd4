// Package service holds judgehub's business rules. Handlers call services,
// services call repositories through the interfaces in internal/repository
// and never see HTTP.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/judgehub/internal/apperror"
	"github.com/sakif/judgehub/internal/model"
	"github.com/sakif/judgehub/internal/repository"
	"github.com/sakif/judgehub/internal/validate"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type TestCaseInput struct {
	Input  string `json:"input"  validate:"max=1000000"`
	Output string `json:"output" validate:"max=1000000"`
	Hidden bool   `json:"hidden"`
}

// ProblemInput is the body of create and update requests. Updates replace
// every field, test cases included.
type ProblemInput struct {
	Title         string          `json:"title"         validate:"required,max=200"`
	Statement     string          `json:"statement"     validate:"max=100000"`
	Difficulty    string          `json:"difficulty"    validate:"omitempty,oneof=easy medium hard"`
	TimeLimitMS   int64           `json:"timeLimitMs"   validate:"min=0,max=20000"`
	MemoryLimitKB int64           `json:"memoryLimitKb" validate:"min=0,max=1048576"`
	TestCases     []TestCaseInput `json:"testCases"     validate:"required,min=1,max=100,dive"`
}

func (in ProblemInput) apply(p *model.Problem) {
	p.Title = strings.TrimSpace(in.Title)
	p.Statement = in.Statement
	p.Difficulty = model.Difficulty(in.Difficulty)
	if p.Difficulty == "" {
		p.Difficulty = model.DifficultyEasy
	}
	p.TimeLimitMS = in.TimeLimitMS
	p.MemoryLimitKB = in.MemoryLimitKB
	p.TestCases = make([]model.TestCase, len(in.TestCases))
	for i, tc := range in.TestCases {
		p.TestCases[i] = model.TestCase{Input: tc.Input, Output: tc.Output, Hidden: tc.Hidden}
	}
}

type ProblemService struct {
	repo      repository.ProblemRepository
	validator *validate.Validator
	logger    *slog.Logger
}

func NewProblemService(repo repository.ProblemRepository, validator *validate.Validator, logger *slog.Logger) *ProblemService {
	return &ProblemService{repo: repo, validator: validator, logger: logger}
}

func (s *ProblemService) Create(ctx context.Context, authorID string, in ProblemInput) (*model.Problem, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	p := &model.Problem{AuthorID: authorID}
	in.apply(p)
	if err := s.repo.CreateProblem(ctx, p); err != nil {
		return nil, fmt.Errorf("service/problem: creating problem: %w", err)
	}

	s.logger.Info("problem created",
		slog.String("id", p.ID),
		slog.String("authorID", authorID),
		slog.Int("testCases", len(p.TestCases)))
	return p, nil
}

// Get returns the problem as viewerID may see it: the author sees every
// test case, everyone else only the samples.
func (s *ProblemService) Get(ctx context.Context, id, viewerID string) (*model.Problem, error) {
	p, err := s.repo.GetProblem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/problem: getting problem %s: %w", id, err)
	}
	if p.AuthorID != viewerID {
		p.TestCases = p.Samples()
	}
	return p, nil
}

func (s *ProblemService) List(ctx context.Context, limit, offset int) ([]model.Problem, error) {
	problems, err := s.repo.ListProblems(ctx, listOptions(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("service/problem: listing problems: %w", err)
	}
	return problems, nil
}

func (s *ProblemService) Update(ctx context.Context, id, userID string, in ProblemInput) (*model.Problem, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	p, err := s.authorOnly(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	in.apply(p)
	if err := s.repo.UpdateProblem(ctx, p); err != nil {
		return nil, fmt.Errorf("service/problem: updating problem %s: %w", id, err)
	}

	s.logger.Info("problem updated", slog.String("id", id))
	return p, nil
}

func (s *ProblemService) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.authorOnly(ctx, id, userID); err != nil {
		return err
	}
	if err := s.repo.DeleteProblem(ctx, id); err != nil {
		return fmt.Errorf("service/problem: deleting problem %s: %w", id, err)
	}

	s.logger.Info("problem deleted", slog.String("id", id))
	return nil
}

func (s *ProblemService) authorOnly(ctx context.Context, id, userID string) (*model.Problem, error) {
	p, err := s.repo.GetProblem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/problem: getting problem %s: %w", id, err)
	}
	if p.AuthorID != userID {
		return nil, apperror.Forbidden("only the problem's author can change it")
	}
	return p, nil
}

func listOptions(limit, offset int) repository.ListOptions {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	return repository.ListOptions{Limit: limit, Offset: max(offset, 0)}
}
