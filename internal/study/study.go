// Package study asks the assistant for summaries, explanations, examples or
// answers to a custom question about the selected lecture.
package study

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pavelanni/studyassist/internal/api"
	"github.com/pavelanni/studyassist/internal/guard"
	"github.com/pavelanni/studyassist/internal/i18n"
	"github.com/pavelanni/studyassist/internal/model"
	"github.com/pavelanni/studyassist/internal/notify"
)

// StudyAPI generates study content.
type StudyAPI interface {
	Study(ctx context.Context, req api.StudyRequest) (string, error)
}

// Assistant holds the chosen task, the custom question and the last content.
type Assistant struct {
	state  *model.AppState
	api    StudyAPI
	notify notify.Notifier
	guard  *guard.Guard
	inline notify.Inline

	mu       sync.RWMutex
	task     model.StudyTask
	question string
	content  string
}

// New creates an assistant with the first task selected.
func New(state *model.AppState, api StudyAPI, n notify.Notifier) *Assistant {
	return &Assistant{state: state, api: api, notify: n, guard: guard.New(), task: model.TaskSummarize}
}

// SetTask chooses the generation mode.
func (a *Assistant) SetTask(ctx context.Context, task model.StudyTask) error {
	if !task.Valid() {
		return model.NewError(model.KindValidation, i18n.T(ctx, "InvalidTask"))
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.task = task
	return nil
}

// Task returns the chosen generation mode.
func (a *Assistant) Task() model.StudyTask {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.task
}

// SetQuestion sets the custom question.
func (a *Assistant) SetQuestion(q string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.question = q
}

// Question returns the custom question input.
func (a *Assistant) Question() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.question
}

// Content returns the last generated content.
func (a *Assistant) Content() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.content
}

// InlineError returns the message of the last failed attempt.
func (a *Assistant) InlineError() string {
	return a.inline.Get()
}

// Generate requests content for the selected lecture.
func (a *Assistant) Generate(ctx context.Context) (string, error) {
	release, ok := a.guard.TryAcquire()
	if !ok {
		return "", model.NewError(model.KindBusy, i18n.T(ctx, "Busy"))
	}
	defer release()
	a.inline.Clear()

	lecture := strings.TrimSpace(a.state.SelectedLecture())
	if lecture == "" {
		return "", a.fail(ctx, model.NewError(model.KindValidation, i18n.T(ctx, "NoLectureSelected")))
	}

	a.mu.RLock()
	task, question := a.task, a.question
	a.mu.RUnlock()
	if task == model.TaskCustomQuestion && strings.TrimSpace(question) == "" {
		return "", a.fail(ctx, model.NewError(model.KindValidation, i18n.T(ctx, "CustomQuestionRequired")))
	}
	if task != model.TaskCustomQuestion {
		question = ""
	}

	content, err := a.api.Study(ctx, api.StudyRequest{Task: task, LectureName: lecture, Question: question})
	if err != nil {
		slog.Warn("study generation failed", "lecture", lecture, "task", task, "error", err)
		return "", a.fail(ctx, err)
	}

	a.mu.Lock()
	a.content = content
	if task == model.TaskCustomQuestion {
		a.question = ""
	}
	a.mu.Unlock()
	slog.Info("study content generated", "lecture", lecture, "task", task)
	a.notify.Notify(notify.LevelSuccess, i18n.T(ctx, "StudyGenerated"))
	return content, nil
}

// Reset drops the question and the content and selects the first task again.
func (a *Assistant) Reset() {
	a.mu.Lock()
	a.task = model.TaskSummarize
	a.question = ""
	a.content = ""
	a.mu.Unlock()
	a.inline.Clear()
}

func (a *Assistant) fail(ctx context.Context, err error) error {
	msg := model.MessageOf(err, i18n.T(ctx, "StudyFailed"))
	a.inline.Set(msg)
	a.notify.Notify(notify.LevelError, msg)
	return err
}
