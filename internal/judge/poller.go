package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrPollTimeout means the attempt budget ran out with results still pending.
var ErrPollTimeout = errors.New("judge: results still pending after final poll")

var errStillPending = errors.New("results pending")

// BatchPoller fetches results for a batch of tokens.
type BatchPoller interface {
	PollBatch(ctx context.Context, tokens []Token) ([]Result, error)
}

// Poller repeats PollBatch until every result is terminal.
type Poller struct {
	client      BatchPoller
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger
}

func NewPoller(client BatchPoller, interval time.Duration, maxAttempts int, logger *slog.Logger) *Poller {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		client:      client,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Await polls up to maxAttempts times, sleeping interval between attempts.
// The first attempt is immediate. A poll error stops polling at once.
func (p *Poller) Await(ctx context.Context, tokens []Token) ([]Result, error) {
	backoff := retry.WithMaxRetries(uint64(p.maxAttempts-1), retry.NewConstant(p.interval))

	var (
		results  []Result
		attempts int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		rs, err := p.client.PollBatch(ctx, tokens)
		if err != nil {
			return err
		}
		results = rs

		if pending := countPending(rs); pending > 0 {
			p.logger.Debug("results pending",
				slog.Int("attempt", attempts),
				slog.Int("pending", pending),
				slog.Int("total", len(rs)))
			return retry.RetryableError(errStillPending)
		}
		return nil
	})

	switch {
	case err == nil:
		return results, nil
	case errors.Is(err, errStillPending):
		return nil, fmt.Errorf("%w (%d attempts)", ErrPollTimeout, attempts)
	case ctx.Err() != nil && !errors.Is(err, ErrPoll):
		return nil, fmt.Errorf("%w: %w", ErrPoll, ctx.Err())
	default:
		return nil, err
	}
}

func countPending(rs []Result) int {
	n := 0
	for _, r := range rs {
		if !r.Terminal() {
			n++
		}
	}
	return n
}
