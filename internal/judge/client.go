package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"
)

var (
	// ErrDispatch means the batch was not accepted. Nothing should be polled.
	ErrDispatch = errors.New("judge: dispatch failed")
	// ErrPoll means fetching results failed. It is distinct from results
	// that are still pending.
	ErrPoll = errors.New("judge: poll failed")
)

const (
	batchPath = "/submissions/batch"
	// maxResponseBytes caps how much of a judge response is read.
	maxResponseBytes = 8 << 20
)

// ClientConfig configures the judge HTTP client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	// AuthHeader carries APIKey. Defaults to X-Auth-Token.
	AuthHeader string
	Timeout    time.Duration
	// PollRetries is the number of transport-level retries for poll GETs.
	// Submits are never retried.
	PollRetries int
}

// Client talks to a Judge0-compatible batch API.
type Client struct {
	baseURL    string
	apiKey     string
	authHeader string
	submitHTTP *http.Client
	pollHTTP   *http.Client
	logger     *slog.Logger
}

func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("judge: invalid base URL %q", cfg.BaseURL)
	}

	header := cfg.AuthHeader
	if header == "" {
		header = "X-Auth-Token"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		apiKey:     cfg.APIKey,
		authHeader: header,
		submitHTTP: newHTTPClient(0, timeout, logger),
		pollHTTP:   newHTTPClient(cfg.PollRetries, timeout, logger),
		logger:     logger,
	}, nil
}

func newHTTPClient(retries int, timeout time.Duration, logger *slog.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = logger.With(slog.String("component", "judge-http"))
	return rc.StandardClient()
}

// SubmitBatch posts requests as one batch. Token i belongs to request i.
// Any failure, including a single rejected item, fails the whole batch.
func (c *Client) SubmitBatch(ctx context.Context, reqs []Request) ([]Token, error) {
	body, err := json.Marshal(batchRequest{Submissions: reqs})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding batch: %w", ErrDispatch, err)
	}

	q := url.Values{}
	q.Set("base64_encoded", "false")
	q.Set("wait", "false")

	req, err := c.newRequest(ctx, http.MethodPost, q, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDispatch, err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.do(c.submitHTTP, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDispatch, err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrDispatch, err)
	}
	if len(items) != len(reqs) {
		return nil, fmt.Errorf("%w: sent %d requests, got %d tokens", ErrDispatch, len(reqs), len(items))
	}

	tokens := make([]Token, len(items))
	for i, item := range items {
		var bt batchToken
		if err := json.Unmarshal(item, &bt); err != nil || bt.Token == "" {
			return nil, fmt.Errorf("%w: request %d rejected: %s", ErrDispatch, i, truncate(string(item), 200))
		}
		tokens[i] = Token(bt.Token)
	}

	c.logger.Debug("batch submitted", slog.Int("count", len(tokens)))
	return tokens, nil
}

// PollBatch fetches the current state of every token in one request.
// Result i belongs to token i.
func (c *Client) PollBatch(ctx context.Context, tokens []Token) ([]Result, error) {
	ids := make([]string, len(tokens))
	for i, t := range tokens {
		ids[i] = string(t)
	}

	q := url.Values{}
	q.Set("tokens", strings.Join(ids, ","))
	q.Set("base64_encoded", "false")
	q.Set("fields", "*")

	req, err := c.newRequest(ctx, http.MethodGet, q, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPoll, err)
	}

	raw, err := c.do(c.pollHTTP, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPoll, err)
	}

	var resp batchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrPoll, err)
	}

	ordered, err := orderByToken(tokens, resp.Submissions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPoll, err)
	}

	results := make([]Result, len(ordered))
	for i, sub := range ordered {
		r, err := sub.result()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPoll, err)
		}
		results[i] = r
	}
	return results, nil
}

// orderByToken lines the response up with the requested tokens. Responses
// that omit tokens are taken positionally.
func orderByToken(tokens []Token, subs []wireSubmission) ([]wireSubmission, error) {
	if len(subs) != len(tokens) {
		return nil, fmt.Errorf("asked for %d results, got %d", len(tokens), len(subs))
	}

	byToken := make(map[string]wireSubmission, len(subs))
	for _, s := range subs {
		if s.Token == "" {
			return subs, nil
		}
		byToken[s.Token] = s
	}

	out := make([]wireSubmission, len(tokens))
	for i, t := range tokens {
		s, ok := byToken[string(t)]
		if !ok {
			return nil, fmt.Errorf("no result for token %s", t)
		}
		out[i] = s
	}
	return out, nil
}

func (c *Client) newRequest(ctx context.Context, method string, q url.Values, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+batchPath+"?"+q.Encode(), body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.authHeader, c.apiKey)
	}
	return req, nil
}

func (c *Client) do(hc *http.Client, req *http.Request) ([]byte, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s returned status %d: %s",
			req.Method, batchPath, resp.StatusCode, truncate(string(raw), 200))
	}
	return raw, nil
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
