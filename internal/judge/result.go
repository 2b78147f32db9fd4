package judge

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Judge0 status ids.
const (
	StatusInQueue           = 1
	StatusProcessing        = 2
	StatusAccepted          = 3
	StatusWrongAnswer       = 4
	StatusTimeLimitExceeded = 5
	StatusCompilationError  = 6
	StatusInternalError     = 13
	StatusExecFormatError   = 14
)

// Outcome tags a Result. Pending never leaves this package.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeAccepted
	OutcomeWrongOutput
	OutcomeRuntimeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeAccepted:
		return "accepted"
	case OutcomeWrongOutput:
		return "wrong_output"
	case OutcomeRuntimeError:
		return "runtime_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// outcomeFor is the single place judge status ids are interpreted.
func outcomeFor(statusID int) Outcome {
	switch statusID {
	case StatusInQueue, StatusProcessing:
		return OutcomePending
	case StatusAccepted:
		return OutcomeAccepted
	case StatusWrongAnswer:
		return OutcomeWrongOutput
	default:
		return OutcomeRuntimeError
	}
}

// Result is the judge's verdict for one test case.
//
// Time and Memory are meaningful only for OutcomeAccepted; Message only
// for OutcomeWrongOutput and OutcomeRuntimeError.
type Result struct {
	Outcome     Outcome
	StatusID    int
	Description string
	Time        time.Duration
	MemoryKB    int64
	Message     string
}

func (r Result) Terminal() bool {
	return r.Outcome != OutcomePending
}

// Request is one test case submitted to the judge.
type Request struct {
	SourceCode     string     `json:"source_code"`
	LanguageID     LanguageID `json:"language_id"`
	Stdin          string     `json:"stdin"`
	ExpectedOutput string     `json:"expected_output"`
	// CPUTimeLimit is in seconds, MemoryLimit in kilobytes. Zero leaves the
	// judge default in place.
	CPUTimeLimit float64 `json:"cpu_time_limit,omitempty"`
	MemoryLimit  int64   `json:"memory_limit,omitempty"`
}

// Token identifies one submitted Request until its result is fetched.
type Token string

type batchRequest struct {
	Submissions []Request `json:"submissions"`
}

// batchToken is one element of the submit response. Judge0 reports
// per-item validation problems (e.g. {"language_id":["can't be blank"]})
// in place of the token.
type batchToken struct {
	Token string `json:"token"`
}

type wireStatus struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

type wireSubmission struct {
	Token         string     `json:"token"`
	Status        wireStatus `json:"status"`
	Time          *string    `json:"time"`
	Memory        *float64   `json:"memory"`
	Stderr        *string    `json:"stderr"`
	CompileOutput *string    `json:"compile_output"`
	Message       *string    `json:"message"`
}

type batchResponse struct {
	Submissions []wireSubmission `json:"submissions"`
}

// result decodes the wire form into the tagged Result.
func (w wireSubmission) result() (Result, error) {
	r := Result{
		Outcome:     outcomeFor(w.Status.ID),
		StatusID:    w.Status.ID,
		Description: w.Status.Description,
	}

	switch r.Outcome {
	case OutcomePending:
	case OutcomeAccepted:
		if w.Time != nil && *w.Time != "" {
			secs, err := strconv.ParseFloat(*w.Time, 64)
			if err != nil {
				return Result{}, fmt.Errorf("judge: parsing time %q: %w", *w.Time, err)
			}
			r.Time = time.Duration(math.Round(secs*1e6)) * time.Microsecond
		}
		if w.Memory != nil {
			r.MemoryKB = int64(*w.Memory)
		}
	default:
		r.Message = firstNonEmpty(w.Stderr, w.CompileOutput, w.Message)
		if r.Message == "" {
			r.Message = w.Status.Description
		}
	}

	return r, nil
}

func firstNonEmpty(values ...*string) string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			return *v
		}
	}
	return ""
}
