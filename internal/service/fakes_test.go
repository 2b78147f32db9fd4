package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sakif/judgehub/internal/apperror"
	"github.com/sakif/judgehub/internal/judge"
	"github.com/sakif/judgehub/internal/model"
	"github.com/sakif/judgehub/internal/repository"
	"github.com/sakif/judgehub/internal/validate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var testValidator = validate.New()

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	users     map[string]*model.User
	nextID    int
	createErr error
	upsertErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return apperror.Conflict("user", u.Username)
		}
	}
	f.nextID++
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeUserRepo) Upsert(_ context.Context, u *model.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, existing := range f.users {
		if existing.GitHubID == u.GitHubID {
			existing.Email = u.Email
			existing.AvatarURL = u.AvatarURL
			*u = *existing
			return nil
		}
	}
	f.nextID++
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

// fakeProblemRepo is an in-memory repository.ProblemRepository.
type fakeProblemRepo struct {
	problems map[string]*model.Problem
	nextID   int
}

func newFakeProblemRepo() *fakeProblemRepo {
	return &fakeProblemRepo{problems: make(map[string]*model.Problem)}
}

func (f *fakeProblemRepo) CreateProblem(_ context.Context, p *model.Problem) error {
	f.nextID++
	p.ID = fmt.Sprintf("problem-%d", f.nextID)
	p.CreatedAt = time.Now()
	f.problems[p.ID] = cloneProblem(p)
	return nil
}

func (f *fakeProblemRepo) GetProblem(_ context.Context, id string) (*model.Problem, error) {
	p, ok := f.problems[id]
	if !ok {
		return nil, apperror.NotFound("problem", id)
	}
	return cloneProblem(p), nil
}

func (f *fakeProblemRepo) ListProblems(_ context.Context, opts repository.ListOptions) ([]model.Problem, error) {
	out := []model.Problem{}
	for _, p := range f.problems {
		cp := *p
		cp.TestCases = nil
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if opts.Offset >= len(out) {
		return []model.Problem{}, nil
	}
	out = out[opts.Offset:]
	if opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeProblemRepo) UpdateProblem(_ context.Context, p *model.Problem) error {
	if _, ok := f.problems[p.ID]; !ok {
		return apperror.NotFound("problem", p.ID)
	}
	f.problems[p.ID] = cloneProblem(p)
	return nil
}

func (f *fakeProblemRepo) DeleteProblem(_ context.Context, id string) error {
	if _, ok := f.problems[id]; !ok {
		return apperror.NotFound("problem", id)
	}
	delete(f.problems, id)
	return nil
}

func cloneProblem(p *model.Problem) *model.Problem {
	cp := *p
	cp.TestCases = append([]model.TestCase(nil), p.TestCases...)
	return &cp
}

// fakeSubmissionRepo is an in-memory repository.SubmissionRepository.
type fakeSubmissionRepo struct {
	subs      map[string]*model.Submission
	nextID    int
	updates   int
	lastQuery repository.SubmissionFilter
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{subs: make(map[string]*model.Submission)}
}

func (f *fakeSubmissionRepo) CreateSubmission(_ context.Context, s *model.Submission) error {
	f.nextID++
	s.ID = fmt.Sprintf("sub-%d", f.nextID)
	cp := *s
	f.subs[s.ID] = &cp
	return nil
}

func (f *fakeSubmissionRepo) UpdateSubmission(_ context.Context, s *model.Submission) error {
	if _, ok := f.subs[s.ID]; !ok {
		return apperror.NotFound("submission", s.ID)
	}
	f.updates++
	cp := *s
	f.subs[s.ID] = &cp
	return nil
}

func (f *fakeSubmissionRepo) GetSubmission(_ context.Context, id string) (*model.Submission, error) {
	s, ok := f.subs[id]
	if !ok {
		return nil, apperror.NotFound("submission", id)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSubmissionRepo) ListSubmissions(_ context.Context, q repository.SubmissionFilter) ([]model.Submission, error) {
	f.lastQuery = q
	out := []model.Submission{}
	for _, s := range f.subs {
		if (q.UserID == "" || s.UserID == q.UserID) && (q.ProblemID == "" || s.ProblemID == q.ProblemID) {
			cp := *s
			cp.Source = ""
			out = append(out, cp)
		}
	}
	return out, nil
}

// fakeEvaluator records what it was asked to judge and returns a fixed
// verdict or error.
type fakeEvaluator struct {
	languages judge.Languages
	verdict   *judge.Verdict
	err       error
	calls     []judge.Submission
}

func newFakeEvaluator(v *judge.Verdict) *fakeEvaluator {
	return &fakeEvaluator{languages: judge.DefaultLanguages(), verdict: v}
}

func (f *fakeEvaluator) Validate(sub judge.Submission) error {
	if _, ok := f.languages.Resolve(sub.Language); !ok {
		return apperror.ValidationFailed("language", "unsupported language")
	}
	if len(sub.TestCases) == 0 {
		return apperror.ValidationFailed("testCases", "problem has no test cases")
	}
	return nil
}

func (f *fakeEvaluator) Evaluate(_ context.Context, sub judge.Submission) (*judge.Verdict, error) {
	f.calls = append(f.calls, sub)
	if err := f.Validate(sub); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	v := *f.verdict
	return &v, nil
}

// fakeArchiver stores sources in memory.
type fakeArchiver struct {
	mu      sync.Mutex
	sources map[string]string
	err     error
}

func (f *fakeArchiver) Put(_ context.Context, id, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.sources == nil {
		f.sources = make(map[string]string)
	}
	f.sources[id] = source
	return nil
}
