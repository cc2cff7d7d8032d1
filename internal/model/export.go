package model

import "time"

// ExamTranscript is the JSON structure written by `studyassist exam --transcript`.
type ExamTranscript struct {
	Username     string             `json:"username"`
	Lecture      string             `json:"lecture"`
	ExamType     ExamType           `json:"exam_type"`
	Difficulty   Difficulty         `json:"difficulty"`
	GeneratedAt  time.Time          `json:"generated_at"`
	NumQuestions int                `json:"num_questions"`
	Questions    []TranscriptAnswer `json:"questions"`
	LastFeedback string             `json:"last_feedback,omitempty"`
}

// TranscriptAnswer pairs a question with the answer captured for it, if any.
type TranscriptAnswer struct {
	ID       string       `json:"id"`
	Text     string       `json:"question"`
	Kind     QuestionKind `json:"type"`
	Options  []string     `json:"options,omitempty"`
	Answer   string       `json:"answer,omitempty"`
	Answered bool         `json:"answered"`
}
