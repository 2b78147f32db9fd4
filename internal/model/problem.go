package model

import "time"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// TestCase is one input/expected-output pair. Hidden cases are judged but
// only their author ever sees their contents.
type TestCase struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	Hidden bool   `json:"hidden"`
}

// Problem owns its test cases, kept in the order they were given.
type Problem struct {
	ID            string     `json:"id"`
	AuthorID      string     `json:"authorId"`
	Title         string     `json:"title"`
	Statement     string     `json:"statement"`
	Difficulty    Difficulty `json:"difficulty"`
	TimeLimitMS   int64      `json:"timeLimitMs"`
	MemoryLimitKB int64      `json:"memoryLimitKb"`
	TestCases     []TestCase `json:"testCases,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Samples returns the visible test cases.
func (p *Problem) Samples() []TestCase {
	out := make([]TestCase, 0, len(p.TestCases))
	for _, tc := range p.TestCases {
		if !tc.Hidden {
			out = append(out, tc)
		}
	}
	return out
}
