package judge

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/judgehub/internal/apperror"
)

var adderCases = []TestCase{
	{Input: "1\n2", Output: "3"},
	{Input: "5\n5", Output: "10"},
}

func newTestEvaluator(t *testing.T, run program) (*fakeJudge, *Evaluator) {
	t.Helper()
	fj, srv := newFakeJudge(t, run)
	client := newTestClient(t, srv.URL, 0)
	ev := NewEvaluator(DefaultLanguages(), client, EvaluatorConfig{
		PollInterval:    time.Millisecond,
		PollMaxAttempts: 10,
	}, testLogger())
	return fj, ev
}

func TestEvaluator_CorrectAdder(t *testing.T) {
	fj, ev := newTestEvaluator(t, adder)
	fj.pendingPolls = 2

	v, err := ev.Evaluate(context.Background(), Submission{
		Source:    "a = int(input())\nb = int(input())\nprint(a + b)\n",
		Language:  "python",
		TestCases: adderCases,
	})

	require.NoError(t, err)
	assert.Equal(t, VerdictAccepted, v.Status)
	assert.Equal(t, 2, v.Passed)
	assert.Equal(t, 2, v.Total)
	assert.Equal(t, 24*time.Millisecond, v.Runtime)
	assert.Equal(t, int64(3200), v.MemoryKB)
	assert.Empty(t, v.ErrorMessage)

	submits, polls := fj.counts()
	assert.Equal(t, 1, submits)
	assert.Equal(t, 3, polls)
}

func TestEvaluator_AlwaysPrintsZero(t *testing.T) {
	_, ev := newTestEvaluator(t, printsZero)

	v, err := ev.Evaluate(context.Background(), Submission{
		Source:    "print(0)",
		Language:  "Python",
		TestCases: adderCases,
	})

	require.NoError(t, err)
	assert.Equal(t, VerdictWrong, v.Status)
	assert.Equal(t, 0, v.Passed)
	assert.Equal(t, 2, v.Total)
	assert.NotEmpty(t, v.ErrorMessage)
}

func TestEvaluator_SendsLimits(t *testing.T) {
	fj, ev := newTestEvaluator(t, adder)

	_, err := ev.Evaluate(context.Background(), Submission{
		Source:        "int main() {}",
		Language:      "c++",
		TestCases:     adderCases[:1],
		TimeLimit:     1500 * time.Millisecond,
		MemoryLimitKB: 65536,
	})
	require.NoError(t, err)

	req := fj.request("tok-001")
	assert.Equal(t, LanguageID(54), req.LanguageID)
	assert.Equal(t, 1.5, req.CPUTimeLimit)
	assert.Equal(t, int64(65536), req.MemoryLimit)
	assert.Equal(t, "1\n2", req.Stdin)
	assert.Equal(t, "3", req.ExpectedOutput)
}

func TestEvaluator_ValidationHappensBeforeDispatch(t *testing.T) {
	tests := []struct {
		name  string
		sub   Submission
		field string
	}{
		{"unknown language", Submission{Source: "puts 1", Language: "ruby", TestCases: adderCases}, "language"},
		{"no test cases", Submission{Source: "print(1)", Language: "python"}, "testCases"},
		{"empty source", Submission{Source: "  \n", Language: "python", TestCases: adderCases}, "source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fj, ev := newTestEvaluator(t, adder)

			v, err := ev.Evaluate(context.Background(), tt.sub)

			assert.Nil(t, v)
			require.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.field, appErr.Field)

			submits, polls := fj.counts()
			assert.Zero(t, submits)
			assert.Zero(t, polls)
		})
	}
}

func TestEvaluator_DispatchFailureSkipsPolling(t *testing.T) {
	fj, ev := newTestEvaluator(t, adder)
	fj.submitStatus = http.StatusBadGateway

	_, err := ev.Evaluate(context.Background(), Submission{Source: "x", Language: "go", TestCases: adderCases})

	assert.True(t, errors.Is(err, ErrDispatch), "got %v", err)
	_, polls := fj.counts()
	assert.Zero(t, polls)
}

func TestEvaluator_PollTimeout(t *testing.T) {
	fj, ev := newTestEvaluator(t, adder)
	fj.pendingPolls = 1000

	_, err := ev.Evaluate(context.Background(), Submission{Source: "x", Language: "go", TestCases: adderCases})

	assert.True(t, errors.Is(err, ErrPollTimeout), "got %v", err)
	_, polls := fj.counts()
	assert.Equal(t, 10, polls)
}

func TestEvaluator_DeadlineStopsPolling(t *testing.T) {
	fj, srv := newFakeJudge(t, adder)
	fj.pendingPolls = 1000
	ev := NewEvaluator(DefaultLanguages(), newTestClient(t, srv.URL, 0), EvaluatorConfig{
		PollInterval:    20 * time.Millisecond,
		PollMaxAttempts: 1000,
		Timeout:         100 * time.Millisecond,
	}, testLogger())

	start := time.Now()
	_, err := ev.Evaluate(context.Background(), Submission{Source: "x", Language: "go", TestCases: adderCases})

	assert.True(t, errors.Is(err, ErrPollTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
	_, polls := fj.counts()
	assert.Less(t, polls, 50)
}

func TestEvaluator_CallerCancelIsNotATimeout(t *testing.T) {
	fj, srv := newFakeJudge(t, adder)
	fj.pendingPolls = 1000
	ev := NewEvaluator(DefaultLanguages(), newTestClient(t, srv.URL, 0), EvaluatorConfig{
		PollInterval:    20 * time.Millisecond,
		PollMaxAttempts: 1000,
		Timeout:         time.Minute,
	}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := ev.Evaluate(ctx, Submission{Source: "x", Language: "go", TestCases: adderCases})

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPollTimeout), "got %v", err)
}

func TestEvaluator_HiddenCaseMessageIsStatusOnly(t *testing.T) {
	fj, ev := newTestEvaluator(t, adder)
	fj.statusFor["secret 41"] = wireSubmission{
		Status: wireStatus{ID: 11, Description: "Runtime Error (NZEC)"},
		Stderr: strPtr("echo: secret 41"),
	}
	fj.statusFor["visible 7"] = wireSubmission{
		Status: wireStatus{ID: 11, Description: "Runtime Error (NZEC)"},
		Stderr: strPtr("echo: visible 7"),
	}

	v, err := ev.Evaluate(context.Background(), Submission{
		Source:    "import sys; sys.exit(sys.stdin.read())",
		Language:  "python",
		TestCases: []TestCase{{Input: "secret 41", Output: "42", Hidden: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, VerdictError, v.Status)
	assert.Equal(t, "Runtime Error (NZEC)", v.ErrorMessage)

	v, err = ev.Evaluate(context.Background(), Submission{
		Source:    "import sys; sys.exit(sys.stdin.read())",
		Language:  "python",
		TestCases: []TestCase{{Input: "visible 7", Output: "8"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "echo: visible 7", v.ErrorMessage)
}

func TestEvaluator_HiddenCaseKeepsCompilerOutput(t *testing.T) {
	fj, ev := newTestEvaluator(t, adder)
	fj.statusFor["1 2"] = wireSubmission{
		Status:        wireStatus{ID: StatusCompilationError, Description: "Compilation Error"},
		CompileOutput: strPtr("main.cpp:1: error: expected ';'"),
	}

	v, err := ev.Evaluate(context.Background(), Submission{
		Source:    "int main() { return 0 }",
		Language:  "cpp",
		TestCases: []TestCase{{Input: "1 2", Output: "3", Hidden: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, "main.cpp:1: error: expected ';'", v.ErrorMessage)
}
