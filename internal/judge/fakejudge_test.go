package judge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// program stands in for running source code: it maps stdin to stdout.
type program func(stdin string) string

func adder(stdin string) string {
	sum := 0
	for _, f := range strings.Fields(stdin) {
		n, _ := strconv.Atoi(f)
		sum += n
	}
	return strconv.Itoa(sum) + "\n"
}

func printsZero(string) string { return "0\n" }

// fakeJudge is an in-process Judge0 batch API.
type fakeJudge struct {
	t *testing.T

	mu      sync.Mutex
	run     program
	subs    map[string]Request
	seq     int
	submits int
	polls   int
	headers []http.Header

	// pendingPolls is how many polls report Processing before results settle.
	pendingPolls int
	// submitStatus, when set, is returned instead of tokens.
	submitStatus int
	// pollStatus, when set, is returned instead of results.
	pollStatus int
	// rejectIndex, when >= 0, replaces that item's token with a field error.
	rejectIndex int
	// statusFor overrides the computed status for a given stdin.
	statusFor map[string]wireSubmission
}

func newFakeJudge(t *testing.T, run program) (*fakeJudge, *httptest.Server) {
	t.Helper()
	fj := &fakeJudge{
		t:           t,
		run:         run,
		subs:        make(map[string]Request),
		rejectIndex: -1,
		statusFor:   make(map[string]wireSubmission),
	}
	srv := httptest.NewServer(http.HandlerFunc(fj.serveHTTP))
	t.Cleanup(srv.Close)
	return fj, srv
}

func (f *fakeJudge) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/submissions/batch" {
		http.NotFound(w, r)
		return
	}
	if r.URL.Query().Get("base64_encoded") != "false" {
		http.Error(w, "base64 must be disabled", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers = append(f.headers, r.Header.Clone())

	switch r.Method {
	case http.MethodPost:
		f.submit(w, r)
	case http.MethodGet:
		f.poll(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeJudge) submit(w http.ResponseWriter, r *http.Request) {
	f.submits++
	if r.URL.Query().Get("wait") != "false" {
		http.Error(w, "wait must be disabled", http.StatusBadRequest)
		return
	}
	if f.submitStatus != 0 {
		w.WriteHeader(f.submitStatus)
		return
	}

	var body batchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out := make([]any, len(body.Submissions))
	for i, req := range body.Submissions {
		if i == f.rejectIndex {
			out[i] = map[string][]string{"language_id": {"can't be blank"}}
			continue
		}
		f.seq++
		tok := fmt.Sprintf("tok-%03d", f.seq)
		f.subs[tok] = req
		out[i] = map[string]string{"token": tok}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(out)
}

func (f *fakeJudge) poll(w http.ResponseWriter, r *http.Request) {
	f.polls++
	if f.pollStatus != 0 {
		w.WriteHeader(f.pollStatus)
		return
	}
	if r.URL.Query().Get("fields") != "*" {
		http.Error(w, "fields must be *", http.StatusBadRequest)
		return
	}

	tokens := strings.Split(r.URL.Query().Get("tokens"), ",")
	subs := make([]wireSubmission, 0, len(tokens))
	// Reverse order so callers must match by token.
	for i := len(tokens) - 1; i >= 0; i-- {
		subs = append(subs, f.resultFor(tokens[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(batchResponse{Submissions: subs})
}

func (f *fakeJudge) resultFor(token string) wireSubmission {
	req, ok := f.subs[token]
	if !ok {
		return wireSubmission{Token: token, Status: wireStatus{ID: StatusInternalError, Description: "Internal Error"}}
	}
	if f.polls <= f.pendingPolls {
		return wireSubmission{Token: token, Status: wireStatus{ID: StatusProcessing, Description: "Processing"}}
	}
	if ws, ok := f.statusFor[req.Stdin]; ok {
		ws.Token = token
		return ws
	}

	stdout := f.run(req.Stdin)
	if strings.TrimSpace(stdout) == strings.TrimSpace(req.ExpectedOutput) {
		return wireSubmission{
			Token:  token,
			Status: wireStatus{ID: StatusAccepted, Description: "Accepted"},
			Time:   strPtr("0.012"),
			Memory: floatPtr(3200),
		}
	}
	return wireSubmission{
		Token:  token,
		Status: wireStatus{ID: StatusWrongAnswer, Description: "Wrong Answer"},
		Time:   strPtr("0.010"),
		Memory: floatPtr(3100),
	}
}

func (f *fakeJudge) counts() (submits, polls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits, f.polls
}

func (f *fakeJudge) request(tok Token) Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[string(tok)]
}

func strPtr(s string) *string     { return &s }
func floatPtr(v float64) *float64 { return &v }
