// Package exam drives one generated exam: configuration, generation, cursor
// navigation, answer capture and per-question grading.
package exam

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pavelanni/studyassist/internal/guard"
	"github.com/pavelanni/studyassist/internal/i18n"
	"github.com/pavelanni/studyassist/internal/model"
	"github.com/pavelanni/studyassist/internal/notify"
)

// State is the exam session's position in its state machine.
type State string

const (
	StateUnconfigured State = "unconfigured"
	StateGenerating   State = "generating"
	StateReady        State = "ready"
	StateGrading      State = "grading"
)

// ExamAPI is the part of the API client the exam session uses.
type ExamAPI interface {
	GenerateExam(ctx context.Context, lecture string, cfg model.ExamConfig) ([]model.Question, error)
	GradeAnswer(ctx context.Context, questionID, answer string) (string, error)
}

// Session is the Exam Session. It exclusively owns the questions, the cursor
// and the answer map.
type Session struct {
	state  *model.AppState
	api    ExamAPI
	notify notify.Notifier

	generateGuard *guard.Guard
	gradeGuard    *guard.Guard
	inline        notify.Inline

	mu          sync.RWMutex
	cfg         model.ExamConfig
	lecture     string
	questions   []model.Question
	cursor      int
	answers     map[string]string
	feedback    string
	generatedAt time.Time
	// epoch changes whenever the question set is replaced; a grade started
	// under an older epoch must not write feedback.
	epoch      uint64
	generating bool
	grading     bool
}

// New creates an unconfigured session with the default configuration.
func New(state *model.AppState, api ExamAPI, n notify.Notifier) *Session {
	return &Session{
		state:         state,
		api:           api,
		notify:        n,
		generateGuard: guard.New(),
		gradeGuard:    guard.New(),
		cfg:           model.DefaultExamConfig(),
		answers:       map[string]string{},
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.generating:
		return StateGenerating
	case s.grading:
		return StateGrading
	case len(s.questions) > 0:
		return StateReady
	default:
		return StateUnconfigured
	}
}

// Config returns the configuration used by the next Generate.
func (s *Session) Config() model.ExamConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Configure sets the exam type and difficulty for the next Generate.
func (s *Session) Configure(ctx context.Context, t model.ExamType, d model.Difficulty) error {
	if !t.Valid() {
		return model.NewError(model.KindValidation, i18n.T(ctx, "InvalidExamType"))
	}
	if !d.Valid() {
		return model.NewError(model.KindValidation, i18n.T(ctx, "InvalidDifficulty"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = model.ExamConfig{Type: t, Difficulty: d}
	return nil
}

// InlineError returns the message of the last failed attempt.
func (s *Session) InlineError() string {
	return s.inline.Get()
}

// Generate requests a fresh exam for the selected lecture. On success the
// cursor is reset and earlier answers and feedback are dropped; on failure the
// previous exam, if any, is kept.
func (s *Session) Generate(ctx context.Context) error {
	release, ok := s.generateGuard.TryAcquire()
	if !ok {
		return model.NewError(model.KindBusy, i18n.T(ctx, "Busy"))
	}
	defer release()
	s.inline.Clear()

	lecture := strings.TrimSpace(s.state.SelectedLecture())
	if lecture == "" {
		return s.fail(ctx, model.NewError(model.KindValidation, i18n.T(ctx, "NoLectureSelected")), "ExamGenerateFailed")
	}
	if s.state.Token() == "" {
		return s.fail(ctx, model.NewError(model.KindAuth, i18n.T(ctx, "TokenMissing")), "ExamGenerateFailed")
	}

	s.mu.Lock()
	s.generating = true
	cfg := s.cfg
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.generating = false
		s.mu.Unlock()
	}()

	log := slog.With("lecture", lecture, "exam_type", cfg.Type, "difficulty", cfg.Difficulty)
	questions, err := s.api.GenerateExam(ctx, lecture, cfg)
	if err != nil {
		log.Warn("exam generation failed", "error", err)
		return s.fail(ctx, err, "ExamGenerateFailed")
	}

	s.mu.Lock()
	s.lecture = lecture
	s.questions = questions
	s.cursor = 0
	s.answers = map[string]string{}
	s.feedback = ""
	s.generatedAt = time.Now().UTC()
	s.epoch++
	s.mu.Unlock()

	log.Info("exam generated", "questions", len(questions))
	s.notify.Notify(notify.LevelSuccess, i18n.Tp(ctx, "ExamGenerated", len(questions)))
	return nil
}

// Len returns the number of questions.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.questions)
}

// Questions returns a copy of the generated questions.
func (s *Session) Questions() []model.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Question{}, s.questions...)
}

// Cursor returns the index of the current question.
func (s *Session) Cursor() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// Current returns the question under the cursor.
func (s *Session) Current() (model.Question, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.questions) == 0 {
		return model.Question{}, false
	}
	return s.questions[s.cursor], true
}

// Next moves the cursor forward, clamped to the last question.
func (s *Session) Next() int {
	return s.move(1)
}

// Prev moves the cursor back, clamped to the first question.
func (s *Session) Prev() int {
	return s.move(-1)
}

func (s *Session) move(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.questions) == 0 {
		return 0
	}
	s.cursor = min(max(s.cursor+delta, 0), len(s.questions)-1)
	return s.cursor
}

// Answer records the answer to the current question, replacing any earlier one.
// A multiple-choice answer must be one of the question's options.
func (s *Session) Answer(ctx context.Context, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.questions) == 0 {
		return model.NewError(model.KindValidation, i18n.T(ctx, "NoExam"))
	}
	q := s.questions[s.cursor]
	if q.Kind == model.KindMultipleChoice && answer != "" && !q.HasOption(answer) {
		return model.NewError(model.KindValidation, i18n.T(ctx, "OptionInvalid"))
	}
	s.answers[q.ID] = answer
	return nil
}

// AnswerFor returns the captured answer for a question id.
func (s *Session) AnswerFor(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answers[id]
}

// Answers returns a copy of the answer map.
func (s *Session) Answers() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// Feedback returns the most recent grading result.
func (s *Session) Feedback() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feedback
}

// Grade submits the current question's answer. An empty answer is rejected
// without a request. On failure the answer is kept.
func (s *Session) Grade(ctx context.Context) (string, error) {
	release, ok := s.gradeGuard.TryAcquire()
	if !ok {
		return "", model.NewError(model.KindBusy, i18n.T(ctx, "Busy"))
	}
	defer release()
	s.inline.Clear()

	s.mu.Lock()
	if len(s.questions) == 0 {
		s.mu.Unlock()
		return "", s.fail(ctx, model.NewError(model.KindValidation, i18n.T(ctx, "NoExam")), "GradeFailed")
	}
	q := s.questions[s.cursor]
	answer := s.answers[q.ID]
	epoch := s.epoch
	if strings.TrimSpace(answer) == "" {
		s.mu.Unlock()
		return "", s.fail(ctx, model.NewError(model.KindValidation, i18n.T(ctx, "AnswerRequired")), "GradeFailed")
	}
	s.grading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.grading = false
		s.mu.Unlock()
	}()

	feedback, err := s.api.GradeAnswer(ctx, q.ID, answer)
	if err != nil {
		slog.Warn("grading failed", "question_id", q.ID, "error", err)
		return "", s.fail(ctx, err, "GradeFailed")
	}

	s.mu.Lock()
	stale := s.epoch != epoch
	if !stale {
		s.feedback = feedback
	}
	s.mu.Unlock()
	if stale {
		slog.Debug("dropping feedback for a replaced exam", "question_id", q.ID)
		return feedback, nil
	}
	slog.Debug("answer graded", "question_id", q.ID)
	s.notify.Notify(notify.LevelSuccess, i18n.T(ctx, "AnswerSubmitted"))
	return feedback, nil
}

// Reset drops the exam, the answers and the feedback and restores the default
// configuration. A grade still in flight will not write its feedback.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = model.DefaultExamConfig()
	s.lecture = ""
	s.questions = nil
	s.cursor = 0
	s.answers = map[string]string{}
	s.feedback = ""
	s.generatedAt = time.Time{}
	s.epoch++
	s.inline.Clear()
}

func (s *Session) fail(ctx context.Context, err error, fallback string) error {
	msg := model.MessageOf(err, i18n.T(ctx, fallback))
	s.inline.Set(msg)
	s.notify.Notify(notify.LevelError, msg)
	return err
}

// Transcript snapshots the exam for export.
func (s *Session) Transcript(username string) model.ExamTranscript {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := model.ExamTranscript{
		Username:     username,
		Lecture:      s.lecture,
		ExamType:     s.cfg.Type,
		Difficulty:   s.cfg.Difficulty,
		GeneratedAt:  s.generatedAt,
		NumQuestions: len(s.questions),
		LastFeedback: s.feedback,
	}
	for _, q := range s.questions {
		answer, answered := s.answers[q.ID]
		t.Questions = append(t.Questions, model.TranscriptAnswer{
			ID:       q.ID,
			Text:     q.Text,
			Kind:     q.Kind,
			Options:  q.Options,
			Answer:   answer,
			Answered: answered && answer != "",
		})
	}
	return t
}
