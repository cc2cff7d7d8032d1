// Package catalog keeps the course and lecture listings and writes the shared
// course/lecture selections in AppState.
package catalog

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pavelanni/studyassist/internal/guard"
	"github.com/pavelanni/studyassist/internal/i18n"
	"github.com/pavelanni/studyassist/internal/model"
	"github.com/pavelanni/studyassist/internal/notify"
)

// CourseAPI is the part of the API client used for courses.
type CourseAPI interface {
	ListCourses(ctx context.Context) ([]string, error)
	CreateCourse(ctx context.Context, name string) error
}

// Courses is the course manager.
type Courses struct {
	state  *model.AppState
	api    CourseAPI
	notify notify.Notifier

	listGuard   *guard.Guard
	createGuard *guard.Guard
	inline      notify.Inline

	mu      sync.RWMutex
	courses []string
}

// NewCourses creates an empty course manager.
func NewCourses(state *model.AppState, api CourseAPI, n notify.Notifier) *Courses {
	return &Courses{
		state:       state,
		api:         api,
		notify:      n,
		listGuard:   guard.New(),
		createGuard: guard.New(),
		courses:     []string{},
	}
}

// List returns the local listing.
func (c *Courses) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string{}, c.courses...)
}

// InlineError returns the message of the last failed attempt.
func (c *Courses) InlineError() string {
	return c.inline.Get()
}

// Refresh replaces the local listing with the server's.
func (c *Courses) Refresh(ctx context.Context) ([]string, error) {
	release, ok := c.listGuard.TryAcquire()
	if !ok {
		return nil, model.NewError(model.KindBusy, i18n.T(ctx, "Busy"))
	}
	defer release()
	c.inline.Clear()

	courses, err := c.api.ListCourses(ctx)
	if err != nil {
		c.fail(ctx, err, "FetchCoursesFailed")
		return nil, err
	}
	c.mu.Lock()
	c.courses = courses
	c.mu.Unlock()
	slog.Debug("courses fetched", "count", len(courses))
	return append([]string{}, courses...), nil
}

// Create creates a course and appends it to the local listing without refetching.
func (c *Courses) Create(ctx context.Context, name string) error {
	release, ok := c.createGuard.TryAcquire()
	if !ok {
		return model.NewError(model.KindBusy, i18n.T(ctx, "Busy"))
	}
	defer release()
	c.inline.Clear()

	name = strings.TrimSpace(name)
	if name == "" {
		err := model.NewError(model.KindValidation, i18n.T(ctx, "CourseNameRequired"))
		c.fail(ctx, err, "CourseNameRequired")
		return err
	}
	if err := c.api.CreateCourse(ctx, name); err != nil {
		c.fail(ctx, err, "CreateCourseFailed")
		return err
	}

	c.mu.Lock()
	c.courses = append(c.courses, name)
	c.mu.Unlock()
	slog.Info("course created", "course", name)
	c.notify.Notify(notify.LevelSuccess, i18n.T(ctx, "CourseCreated"))
	return nil
}

// Select writes the shared course selection. Any earlier lecture selection
// belonged to another course and is dropped.
func (c *Courses) Select(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		err := model.NewError(model.KindValidation, i18n.T(ctx, "NoCourseSelected"))
		c.fail(ctx, err, "NoCourseSelected")
		return err
	}
	c.state.SelectCourse(name)
	c.state.SelectLecture("")
	return nil
}

// Reset empties the local listing.
func (c *Courses) Reset() {
	c.mu.Lock()
	c.courses = []string{}
	c.mu.Unlock()
	c.inline.Clear()
}

func (c *Courses) fail(ctx context.Context, err error, fallback string) {
	msg := model.MessageOf(err, i18n.T(ctx, fallback))
	c.inline.Set(msg)
	c.notify.Notify(notify.LevelError, msg)
}

// LectureAPI is the part of the API client used for lecture listings.
type LectureAPI interface {
	ListLectures(ctx context.Context, course string) ([]model.Lecture, error)
}

// Lectures holds the lecture listing of the selected course.
type Lectures struct {
	state  *model.AppState
	api    LectureAPI
	notify notify.Notifier

	guard  *guard.Guard
	inline notify.Inline

	mu       sync.RWMutex
	course   string
	lectures []model.Lecture
}

// NewLectures creates an empty lecture listing.
func NewLectures(state *model.AppState, api LectureAPI, n notify.Notifier) *Lectures {
	return &Lectures{state: state, api: api, notify: n, guard: guard.New(), lectures: []model.Lecture{}}
}

// List returns the listing of the last fetched course.
func (l *Lectures) List() []model.Lecture {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.Lecture{}, l.lectures...)
}

// Course returns the course the listing belongs to.
func (l *Lectures) Course() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.course
}

// InlineError returns the message of the last failed attempt.
func (l *Lectures) InlineError() string {
	return l.inline.Get()
}

// Refresh replaces the listing wholesale with the server's listing for the
// selected course.
func (l *Lectures) Refresh(ctx context.Context) ([]model.Lecture, error) {
	release, ok := l.guard.TryAcquire()
	if !ok {
		return nil, model.NewError(model.KindBusy, i18n.T(ctx, "Busy"))
	}
	defer release()
	l.inline.Clear()

	course := l.state.SelectedCourse()
	if course == "" {
		err := model.NewError(model.KindValidation, i18n.T(ctx, "NoCourseSelected"))
		l.fail(ctx, err, "NoCourseSelected")
		return nil, err
	}

	lectures, err := l.api.ListLectures(ctx, course)
	if err != nil {
		l.fail(ctx, err, "FetchLecturesFailed")
		return nil, err
	}
	l.mu.Lock()
	l.course = course
	l.lectures = lectures
	l.mu.Unlock()
	slog.Debug("lectures fetched", "course", course, "count", len(lectures))
	return append([]model.Lecture{}, lectures...), nil
}

// Select writes the shared lecture selection.
func (l *Lectures) Select(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		err := model.NewError(model.KindValidation, i18n.T(ctx, "NoLectureSelected"))
		l.fail(ctx, err, "NoLectureSelected")
		return err
	}
	l.state.SelectLecture(name)
	return nil
}

// Reset empties the listing.
func (l *Lectures) Reset() {
	l.mu.Lock()
	l.course = ""
	l.lectures = []model.Lecture{}
	l.mu.Unlock()
	l.inline.Clear()
}

func (l *Lectures) fail(ctx context.Context, err error, fallback string) {
	msg := model.MessageOf(err, i18n.T(ctx, fallback))
	l.inline.Set(msg)
	l.notify.Notify(notify.LevelError, msg)
}
