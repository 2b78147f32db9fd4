package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/judgehub/internal/apperror"
)

// TestCase is one input/expected-output pair, in problem order.
type TestCase struct {
	Input  string
	Output string
	// Hidden cases report only their status description, never program
	// output.
	Hidden bool
}

// Submission is what gets evaluated: one source file against every case.
type Submission struct {
	Source    string
	Language  string
	TestCases []TestCase
	// Zero limits leave the judge defaults in place.
	TimeLimit     time.Duration
	MemoryLimitKB int64
}

// BatchClient is the judge surface the Evaluator needs.
type BatchClient interface {
	BatchPoller
	SubmitBatch(ctx context.Context, reqs []Request) ([]Token, error)
}

type Evaluator struct {
	languages Languages
	client    BatchClient
	poller    *Poller
	timeout   time.Duration
	logger    *slog.Logger
}

type EvaluatorConfig struct {
	PollInterval    time.Duration
	PollMaxAttempts int
	// Timeout bounds one evaluation, dispatch and polling together. Zero
	// leaves only the poll attempt budget.
	Timeout time.Duration
}

func NewEvaluator(languages Languages, client BatchClient, cfg EvaluatorConfig, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		languages: languages,
		client:    client,
		poller:    NewPoller(client, cfg.PollInterval, cfg.PollMaxAttempts, logger),
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

// Validate rejects submissions that must never reach the judge.
func (e *Evaluator) Validate(sub Submission) error {
	if strings.TrimSpace(sub.Source) == "" {
		return apperror.ValidationFailed("source", "source is required")
	}
	if _, ok := e.languages.Resolve(sub.Language); !ok {
		return apperror.ValidationFailed("language", fmt.Sprintf("unsupported language %q", sub.Language))
	}
	if len(sub.TestCases) == 0 {
		return apperror.ValidationFailed("testCases", "problem has no test cases")
	}
	return nil
}

// Evaluate dispatches one request per test case, waits for every result and
// folds them into a Verdict. A failing test case is a Verdict, not an error;
// errors are validation failures or wrap ErrDispatch, ErrPoll or
// ErrPollTimeout. Running past the evaluation timeout is ErrPollTimeout.
func (e *Evaluator) Evaluate(ctx context.Context, sub Submission) (*Verdict, error) {
	if err := e.Validate(sub); err != nil {
		return nil, err
	}
	langID, _ := e.languages.Resolve(sub.Language)

	parent := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	reqs := make([]Request, len(sub.TestCases))
	for i, tc := range sub.TestCases {
		reqs[i] = Request{
			SourceCode:     sub.Source,
			LanguageID:     langID,
			Stdin:          tc.Input,
			ExpectedOutput: tc.Output,
			CPUTimeLimit:   sub.TimeLimit.Seconds(),
			MemoryLimit:    sub.MemoryLimitKB,
		}
	}

	start := time.Now()
	tokens, err := e.client.SubmitBatch(ctx, reqs)
	if err != nil {
		return nil, err
	}

	results, err := e.poller.Await(ctx, tokens)
	if err != nil {
		if parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: evaluation exceeded %s", ErrPollTimeout, e.timeout)
		}
		return nil, err
	}

	maskHidden(results, sub.TestCases)
	v := Aggregate(results, len(sub.TestCases))
	e.logger.Info("evaluation finished",
		slog.String("language", sub.Language),
		slog.String("status", string(v.Status)),
		slog.Int("passed", v.Passed),
		slog.Int("total", v.Total),
		slog.Duration("elapsed", time.Since(start)))
	return &v, nil
}

// maskHidden replaces hidden cases' messages with the status description.
// Compiler output does not depend on stdin and is kept.
func maskHidden(results []Result, cases []TestCase) {
	for i := range results {
		if i >= len(cases) || !cases[i].Hidden {
			continue
		}
		if results[i].StatusID != StatusCompilationError {
			results[i].Message = results[i].Description
		}
	}
}
