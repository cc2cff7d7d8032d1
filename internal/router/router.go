// Package router composes the client flows around one AppState and selects the
// single active view.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/studyassist/internal/advisory"
	"github.com/pavelanni/studyassist/internal/api"
	"github.com/pavelanni/studyassist/internal/catalog"
	"github.com/pavelanni/studyassist/internal/exam"
	"github.com/pavelanni/studyassist/internal/i18n"
	"github.com/pavelanni/studyassist/internal/model"
	"github.com/pavelanni/studyassist/internal/notify"
	"github.com/pavelanni/studyassist/internal/session"
	"github.com/pavelanni/studyassist/internal/store"
	"github.com/pavelanni/studyassist/internal/study"
	"github.com/pavelanni/studyassist/internal/upload"
)

// Config holds what the flows need from configuration.
type Config struct {
	APIURL         string
	ListTimeout    time.Duration
	UploadTimeout  time.Duration
	RequestTimeout time.Duration
}

// App holds every flow, wired to one AppState and one API client.
type App struct {
	State    *model.AppState
	API      *api.Client
	Session  *session.Store
	Courses  *catalog.Courses
	Lectures *catalog.Lectures
	Advisory *advisory.Monitor
	Upload   *upload.Orchestrator
	Exam     *exam.Session
	Study    *study.Assistant
}

// New wires the flows. kv keeps the session token between runs.
func New(cfg Config, kv store.KV, n notify.Notifier, opts ...api.Option) (*App, error) {
	state := model.NewAppState()

	if cfg.ListTimeout > 0 {
		opts = append(opts, api.WithListTimeout(cfg.ListTimeout))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, api.WithRequestTimeout(cfg.RequestTimeout))
	}
	client, err := api.New(cfg.APIURL, state, opts...)
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}

	var uploadOpts []upload.Option
	if cfg.UploadTimeout > 0 {
		uploadOpts = append(uploadOpts, upload.WithDeadline(cfg.UploadTimeout))
	}

	lectures := catalog.NewLectures(state, client, n)
	monitor := advisory.New(client, n)
	return &App{
		State:    state,
		API:      client,
		Session:  session.New(state, client, kv, n),
		Courses:  catalog.NewCourses(state, client, n),
		Lectures: lectures,
		Advisory: monitor,
		Upload:   upload.New(state, client, lectures, monitor, n, uploadOpts...),
		Exam:     exam.New(state, client, n),
		Study:    study.New(state, client, n),
	}, nil
}

// View returns the active view.
func (a *App) View() model.View {
	return a.State.View()
}

// Navigate activates v and runs its on-enter fetches. Without a session the
// result is always the login view. Fetch failures are reported by the flow that
// owns them and do not change the view.
func (a *App) Navigate(ctx context.Context, v model.View) model.View {
	if !v.Valid() {
		v = model.ViewDashboard
	}
	got := a.State.SetView(v)
	switch got {
	case model.ViewCourses:
		_, _ = a.Courses.Refresh(ctx)
	case model.ViewLectures:
		a.Advisory.Check(ctx)
		_, _ = a.Lectures.Refresh(ctx)
	}
	return got
}

// Back re-derives the previous view from the current one.
func (a *App) Back(ctx context.Context) model.View {
	return a.Navigate(ctx, Parent(a.State.View()))
}

// Parent is the view Back leads to from v.
func Parent(v model.View) model.View {
	switch v {
	case model.ViewLectures:
		return model.ViewCourses
	case model.ViewStudy, model.ViewExam:
		return model.ViewLectures
	case model.ViewLogin:
		return model.ViewLogin
	default:
		return model.ViewDashboard
	}
}

// OpenCourse selects a course and moves to its lectures.
func (a *App) OpenCourse(ctx context.Context, course string) (model.View, error) {
	if err := a.Courses.Select(ctx, course); err != nil {
		return a.State.View(), err
	}
	return a.Navigate(ctx, model.ViewLectures), nil
}

// OpenLecture selects a lecture and moves to the study view, or to next when
// it is the exam view.
func (a *App) OpenLecture(ctx context.Context, lecture string, next model.View) (model.View, error) {
	if err := a.Lectures.Select(ctx, lecture); err != nil {
		return a.State.View(), err
	}
	if next != model.ViewExam {
		next = model.ViewStudy
	}
	return a.Navigate(ctx, next), nil
}

// Logout ends the session, drops everything the flows hold for the previous
// user and forces the login view.
func (a *App) Logout(ctx context.Context) model.View {
	a.Upload.Cancel()
	a.Session.Logout(ctx)
	a.Upload.Reset()
	a.Courses.Reset()
	a.Lectures.Reset()
	a.Study.Reset()
	a.Exam.Reset()
	a.Advisory.Reset()
	return a.State.View()
}

// MenuItem is one navigation entry.
type MenuItem struct {
	View  model.View
	Label string
}

// Menu lists the navigation entries reachable from the current state. The
// logout entry has an empty View.
func (a *App) Menu(ctx context.Context) []MenuItem {
	if !a.State.Session().Authenticated() {
		return nil
	}
	return []MenuItem{
		{View: model.ViewDashboard, Label: i18n.T(ctx, "MenuDashboard")},
		{View: model.ViewCourses, Label: i18n.T(ctx, "MenuCourses")},
		{View: model.ViewLectures, Label: i18n.T(ctx, "MenuLectures")},
		{View: model.ViewStudy, Label: i18n.T(ctx, "MenuStudy")},
		{View: model.ViewExam, Label: i18n.T(ctx, "MenuExam")},
		{Label: i18n.T(ctx, "MenuLogout")},
	}
}
