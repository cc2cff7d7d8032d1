package model

import (
	"encoding/json"
	"fmt"
)

// Session is the authenticated identity held by the client.
type Session struct {
	Username string
	Token    string
}

// Authenticated reports whether the session carries a token.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Credentials are sent to /login and /register.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Lecture is one uploaded lecture of a course.
type Lecture struct {
	Name   string `json:"lecture_name"`
	Course string `json:"course,omitempty"`
}

// UnmarshalJSON accepts both `{"lecture_name": "x"}` and a bare `"x"`.
func (l *Lecture) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		l.Name = name
		return nil
	}
	type plain Lecture
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode lecture: %w", err)
	}
	*l = Lecture(p)
	return nil
}

// ExamType selects the kind of exam to generate.
type ExamType string

const (
	ExamMultipleChoice ExamType = "multiple-choice"
	ExamEssay          ExamType = "essay"
)

// Wire returns the value the remote API expects.
func (t ExamType) Wire() string {
	if t == ExamEssay {
		return "Essay Questions"
	}
	return "MCQs"
}

// Valid reports whether t is a known exam type.
func (t ExamType) Valid() bool {
	return t == ExamMultipleChoice || t == ExamEssay
}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Wire returns the capitalised form the remote API expects.
func (d Difficulty) Wire() string {
	switch d {
	case DifficultyMedium:
		return "Medium"
	case DifficultyHard:
		return "Hard"
	default:
		return "Easy"
	}
}

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// QuestionKind is the per-question answer mode.
type QuestionKind string

const (
	KindMultipleChoice QuestionKind = "mcq"
	KindEssay          QuestionKind = "essay"
)

// Question is one generated exam question. Questions are immutable once generated.
type Question struct {
	ID      string       `json:"id"`
	Text    string       `json:"question"`
	Kind    QuestionKind `json:"type"`
	Options []string     `json:"options,omitempty"`
}

// HasOption reports whether answer is one of the question's options.
func (q Question) HasOption(answer string) bool {
	for _, o := range q.Options {
		if o == answer {
			return true
		}
	}
	return false
}

// StudyTask is one of the study assistant's generation modes.
type StudyTask string

const (
	TaskSummarize      StudyTask = "Summarize"
	TaskExplain        StudyTask = "Explain"
	TaskExamples       StudyTask = "Examples"
	TaskCustomQuestion StudyTask = "Custom Question"
)

// StudyTasks lists the tasks in menu order.
var StudyTasks = []StudyTask{TaskSummarize, TaskExplain, TaskExamples, TaskCustomQuestion}

// Valid reports whether t is a known study task.
func (t StudyTask) Valid() bool {
	for _, known := range StudyTasks {
		if t == known {
			return true
		}
	}
	return false
}

// ResourceUsage is the server's reported memory and disk pressure.
type ResourceUsage struct {
	MemoryPercent float64
	DiskPercent   float64
}

// ExamConfig holds the exam parameters chosen before generation.
type ExamConfig struct {
	Type       ExamType
	Difficulty Difficulty
}

// DefaultExamConfig matches the first entries of the exam menus.
func DefaultExamConfig() ExamConfig {
	return ExamConfig{Type: ExamMultipleChoice, Difficulty: DifficultyEasy}
}
