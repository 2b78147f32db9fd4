package judge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPoller returns responses[i] on call i, repeating the last one.
type scriptedPoller struct {
	mu        sync.Mutex
	responses [][]Result
	err       error
	calls     int
}

func (s *scriptedPoller) PollBatch(_ context.Context, _ []Token) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	i := min(s.calls-1, len(s.responses)-1)
	return s.responses[i], nil
}

var (
	accepted = Result{Outcome: OutcomeAccepted, StatusID: StatusAccepted}
	pending  = Result{Outcome: OutcomePending, StatusID: StatusProcessing}
)

func TestPoller_TerminalResultsReturnWithoutWaiting(t *testing.T) {
	sp := &scriptedPoller{responses: [][]Result{{accepted, accepted}}}
	p := NewPoller(sp, time.Hour, 10, testLogger())

	start := time.Now()
	results, err := p.Await(context.Background(), []Token{"a", "b"})

	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 1, sp.calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPoller_RetriesWhilePending(t *testing.T) {
	sp := &scriptedPoller{responses: [][]Result{
		{pending, pending},
		{accepted, pending},
		{accepted, accepted},
	}}
	p := NewPoller(sp, time.Millisecond, 10, testLogger())

	results, err := p.Await(context.Background(), []Token{"a", "b"})

	require.NoError(t, err)
	assert.Equal(t, []Result{accepted, accepted}, results)
	assert.Equal(t, 3, sp.calls)
}

func TestPoller_Timeout(t *testing.T) {
	sp := &scriptedPoller{responses: [][]Result{{pending}}}
	p := NewPoller(sp, time.Millisecond, 4, testLogger())

	results, err := p.Await(context.Background(), []Token{"a"})

	assert.Nil(t, results)
	assert.True(t, errors.Is(err, ErrPollTimeout), "got %v", err)
	assert.Equal(t, 4, sp.calls)
}

func TestPoller_PollErrorIsNotRetried(t *testing.T) {
	sp := &scriptedPoller{err: ErrPoll}
	p := NewPoller(sp, time.Millisecond, 10, testLogger())

	_, err := p.Await(context.Background(), []Token{"a"})

	assert.True(t, errors.Is(err, ErrPoll))
	assert.False(t, errors.Is(err, ErrPollTimeout))
	assert.Equal(t, 1, sp.calls)
}

func TestPoller_ContextCancelled(t *testing.T) {
	sp := &scriptedPoller{responses: [][]Result{{pending}}}
	p := NewPoller(sp, time.Hour, 10, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Await(ctx, []Token{"a"})

	assert.True(t, errors.Is(err, ErrPoll), "got %v", err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, sp.calls)
}
