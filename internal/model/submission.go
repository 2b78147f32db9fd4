package model

import "time"

type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionAccepted SubmissionStatus = "accepted"
	SubmissionWrong    SubmissionStatus = "wrong"
	SubmissionError    SubmissionStatus = "error"
	// SubmissionFailed means the judge could not be reached; the code never
	// ran to completion.
	SubmissionFailed SubmissionStatus = "failed"
)

// Submission is a stored attempt at a problem and its verdict.
type Submission struct {
	ID           string           `json:"id"`
	UserID       string           `json:"userId"`
	ProblemID    string           `json:"problemId"`
	Language     string           `json:"language"`
	Source       string           `json:"source,omitempty"`
	Status       SubmissionStatus `json:"status"`
	Passed       int              `json:"passed"`
	Total        int              `json:"total"`
	RuntimeMS    int64            `json:"runtimeMs"`
	MemoryKB     int64            `json:"memoryKb"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}
