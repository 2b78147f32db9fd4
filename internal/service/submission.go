package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/judgehub/internal/apperror"
	"github.com/sakif/judgehub/internal/judge"
	"github.com/sakif/judgehub/internal/model"
	"github.com/sakif/judgehub/internal/repository"
	"github.com/sakif/judgehub/internal/validate"
)

const unavailableMessage = "evaluation service unavailable"

// archiveTimeout bounds one background source upload, retries included.
const archiveTimeout = time.Minute

type Evaluator interface {
	Validate(sub judge.Submission) error
	Evaluate(ctx context.Context, sub judge.Submission) (*judge.Verdict, error)
}

// SourceArchiver copies submitted source to long-term storage.
type SourceArchiver interface {
	Put(ctx context.Context, submissionID, source string) error
}

type SubmitInput struct {
	Language string `json:"language" validate:"required,max=32"`
	Source   string `json:"source"   validate:"required,max=65536"`
}

type SubmissionFilter struct {
	UserID    string
	ProblemID string
	Limit     int
	Offset    int
}

type SubmissionService struct {
	problems    repository.ProblemRepository
	submissions repository.SubmissionRepository
	evaluator   Evaluator
	archiver    SourceArchiver
	validator   *validate.Validator
	logger      *slog.Logger

	archiving sync.WaitGroup
}

// NewSubmissionService accepts a nil archiver, in which case sources are
// kept only in the database.
func NewSubmissionService(
	problems repository.ProblemRepository,
	submissions repository.SubmissionRepository,
	evaluator Evaluator,
	archiver SourceArchiver,
	validator *validate.Validator,
	logger *slog.Logger,
) *SubmissionService {
	return &SubmissionService{
		problems:    problems,
		submissions: submissions,
		evaluator:   evaluator,
		archiver:    archiver,
		validator:   validator,
		logger:      logger,
	}
}

// Submit judges source against every test case of the problem and stores
// the outcome. A judge outage leaves the submission stored as failed and
// returns an apperror.ErrUnavailable error.
func (s *SubmissionService) Submit(ctx context.Context, userID, problemID string, in SubmitInput) (*model.Submission, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	p, err := s.problems.GetProblem(ctx, problemID)
	if err != nil {
		return nil, fmt.Errorf("service/submission: loading problem %s: %w", problemID, err)
	}

	jsub := judgeSubmission(p, p.TestCases, in)
	if err := s.evaluator.Validate(jsub); err != nil {
		return nil, err
	}

	sub := &model.Submission{
		UserID:    userID,
		ProblemID: problemID,
		Language:  in.Language,
		Source:    in.Source,
		Status:    model.SubmissionPending,
		Total:     len(p.TestCases),
	}
	if err := s.submissions.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("service/submission: creating submission: %w", err)
	}
	s.archive(ctx, sub)

	logger := s.logger.With(slog.String("submissionID", sub.ID), slog.String("problemID", problemID))

	verdict, evalErr := s.evaluator.Evaluate(ctx, jsub)
	if evalErr != nil {
		logger.Error("evaluation failed", slog.String("error", evalErr.Error()))
		sub.Status = model.SubmissionFailed
		sub.ErrorMessage = unavailableMessage
	} else {
		applyVerdict(sub, verdict)
	}

	// The verdict is stored even if the client has gone away.
	if err := s.submissions.UpdateSubmission(context.WithoutCancel(ctx), sub); err != nil {
		return nil, fmt.Errorf("service/submission: storing verdict: %w", err)
	}

	if evalErr != nil {
		return nil, evaluationError(evalErr)
	}

	logger.Info("submission judged",
		slog.String("status", string(sub.Status)),
		slog.Int("passed", sub.Passed),
		slog.Int("total", sub.Total))
	return sub, nil
}

// Run judges source against the problem's sample cases only. Nothing is
// stored.
func (s *SubmissionService) Run(ctx context.Context, problemID string, in SubmitInput) (*judge.Verdict, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	p, err := s.problems.GetProblem(ctx, problemID)
	if err != nil {
		return nil, fmt.Errorf("service/submission: loading problem %s: %w", problemID, err)
	}

	samples := p.Samples()
	if len(samples) == 0 {
		return nil, apperror.ValidationFailed("testCases", "problem has no sample test cases")
	}

	verdict, err := s.evaluator.Evaluate(ctx, judgeSubmission(p, samples, in))
	if err != nil {
		if !errors.Is(err, apperror.ErrValidation) {
			s.logger.Error("sample run failed",
				slog.String("problemID", problemID),
				slog.String("error", err.Error()))
		}
		return nil, evaluationError(err)
	}
	return verdict, nil
}

// Get hides the source from everyone but the submitter.
func (s *SubmissionService) Get(ctx context.Context, id, viewerID string) (*model.Submission, error) {
	sub, err := s.submissions.GetSubmission(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/submission: getting submission %s: %w", id, err)
	}
	if sub.UserID != viewerID {
		sub.Source = ""
	}
	return sub, nil
}

func (s *SubmissionService) List(ctx context.Context, f SubmissionFilter) ([]model.Submission, error) {
	subs, err := s.submissions.ListSubmissions(ctx, repository.SubmissionFilter{
		UserID:      f.UserID,
		ProblemID:   f.ProblemID,
		ListOptions: listOptions(f.Limit, f.Offset),
	})
	if err != nil {
		return nil, fmt.Errorf("service/submission: listing submissions: %w", err)
	}
	return subs, nil
}

// Wait blocks until background archive uploads have finished.
func (s *SubmissionService) Wait() {
	s.archiving.Wait()
}

// archive uploads the source in the background. Failures are logged only.
func (s *SubmissionService) archive(ctx context.Context, sub *model.Submission) {
	if s.archiver == nil {
		return
	}

	id, source := sub.ID, sub.Source
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)

	s.archiving.Add(1)
	go func() {
		defer s.archiving.Done()
		defer cancel()
		if err := s.archiver.Put(ctx, id, source); err != nil {
			s.logger.Warn("archiving source failed",
				slog.String("submissionID", id),
				slog.String("error", err.Error()))
		}
	}()
}

func judgeSubmission(p *model.Problem, cases []model.TestCase, in SubmitInput) judge.Submission {
	tcs := make([]judge.TestCase, len(cases))
	for i, tc := range cases {
		tcs[i] = judge.TestCase{Input: tc.Input, Output: tc.Output, Hidden: tc.Hidden}
	}
	return judge.Submission{
		Source:        in.Source,
		Language:      in.Language,
		TestCases:     tcs,
		TimeLimit:     time.Duration(p.TimeLimitMS) * time.Millisecond,
		MemoryLimitKB: p.MemoryLimitKB,
	}
}

func applyVerdict(sub *model.Submission, v *judge.Verdict) {
	switch v.Status {
	case judge.VerdictAccepted:
		sub.Status = model.SubmissionAccepted
	case judge.VerdictWrong:
		sub.Status = model.SubmissionWrong
	default:
		sub.Status = model.SubmissionError
	}
	sub.Passed = v.Passed
	sub.Total = v.Total
	sub.RuntimeMS = v.RuntimeMS()
	sub.MemoryKB = v.MemoryKB
	sub.ErrorMessage = v.ErrorMessage
}

// evaluationError keeps validation errors and hides everything else behind
// a generic unavailable error.
func evaluationError(err error) error {
	if errors.Is(err, apperror.ErrValidation) {
		return err
	}
	return apperror.Unavailable(unavailableMessage, err)
}
