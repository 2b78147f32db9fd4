package judge

import (
	"fmt"
	"time"
)

type VerdictStatus string

const (
	VerdictAccepted VerdictStatus = "accepted"
	VerdictWrong    VerdictStatus = "wrong"
	VerdictError    VerdictStatus = "error"
)

// Verdict summarises a whole submission.
//
// Runtime and MemoryKB cover accepted cases only. ErrorMessage is set from
// the first failing case when Status is not accepted.
type Verdict struct {
	Status       VerdictStatus `json:"status"`
	Passed       int           `json:"passed"`
	Total        int           `json:"total"`
	Runtime      time.Duration `json:"-"`
	MemoryKB     int64         `json:"memoryKb"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
}

// RuntimeMS is Runtime in whole milliseconds.
func (v Verdict) RuntimeMS() int64 {
	return v.Runtime.Milliseconds()
}

// Aggregate folds per-case results, in test case order, into a Verdict.
// total is the number of test cases submitted; missing or pending results
// make the verdict an error.
func Aggregate(results []Result, total int) Verdict {
	v := Verdict{Total: total}

	var failed *Result
	for i := range results {
		r := results[i]
		if r.Outcome == OutcomeAccepted {
			v.Passed++
			v.Runtime += r.Time
			v.MemoryKB = max(v.MemoryKB, r.MemoryKB)
			continue
		}
		if failed == nil {
			failed = &results[i]
		}
	}

	switch {
	case failed != nil && failed.Outcome == OutcomeWrongOutput:
		v.Status = VerdictWrong
		v.ErrorMessage = failed.Message
	case failed != nil && failed.Outcome == OutcomePending:
		v.Status = VerdictError
		v.ErrorMessage = "result still pending"
	case failed != nil:
		v.Status = VerdictError
		v.ErrorMessage = failed.Message
	case len(results) < total:
		v.Status = VerdictError
		v.ErrorMessage = fmt.Sprintf("judge returned %d of %d results", len(results), total)
	case v.Passed == total:
		v.Status = VerdictAccepted
	default:
		v.Status = VerdictError
		v.ErrorMessage = fmt.Sprintf("passed %d of %d cases", v.Passed, total)
	}

	return v
}
