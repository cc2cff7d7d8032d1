package catalog

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/studyassist/internal/api"
	"github.com/pavelanni/studyassist/internal/apitest"
	"github.com/pavelanni/studyassist/internal/model"
	"github.com/pavelanni/studyassist/internal/notify"
)

func setup(t *testing.T) (*apitest.Server, *model.AppState, *api.Client, *notify.Recorder) {
	t.Helper()
	srv := apitest.New(t)
	srv.AddUser("alice", "x", "T1")
	state := model.NewAppState()
	state.SetSession(model.Session{Username: "alice", Token: "T1"})
	client, err := api.New(srv.URL, state)
	require.NoError(t, err)
	return srv, state, client, &notify.Recorder{}
}

func TestCreateCourseAppendsWithoutRefetch(t *testing.T) {
	srv, state, client, rec := setup(t)
	courses := NewCourses(state, client, rec)
	ctx := context.Background()

	listed, err := courses.Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)

	require.NoError(t, courses.Create(ctx, "CS101"))
	assert.Equal(t, []string{"CS101"}, courses.List())
	assert.Equal(t, 1, srv.Hits(http.MethodGet, "/courses"))

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.LevelSuccess, last.Level)
}

func TestCreateCourseFailure(t *testing.T) {
	srv, state, client, rec := setup(t)
	srv.SetCourses("CS101")
	courses := NewCourses(state, client, rec)
	ctx := context.Background()

	_, err := courses.Refresh(ctx)
	require.NoError(t, err)

	err = courses.Create(ctx, "CS101")
	require.Error(t, err)
	assert.Equal(t, model.KindServer, model.KindOf(err))
	assert.Equal(t, "Course exists", courses.InlineError())
	assert.Equal(t, []string{"CS101"}, courses.List())
}

func TestCreateCourseRequiresName(t *testing.T) {
	srv, state, client, rec := setup(t)
	courses := NewCourses(state, client, rec)

	err := courses.Create(context.Background(), "  ")
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))
	assert.Zero(t, srv.Hits(http.MethodPost, "/courses"))
}

func TestCreateCourseGuard(t *testing.T) {
	srv, state, client, rec := setup(t)
	srv.Delay(http.MethodPost, "/courses", 200*time.Millisecond)
	courses := NewCourses(state, client, rec)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- courses.Create(ctx, "CS101") }()

	require.Eventually(t, func() bool { return srv.Hits(http.MethodPost, "/courses") == 1 },
		time.Second, 5*time.Millisecond)
	err := courses.Create(ctx, "CS102")
	require.Error(t, err)
	assert.Equal(t, model.KindBusy, model.KindOf(err))

	require.NoError(t, <-done)
	assert.Equal(t, 1, srv.Hits(http.MethodPost, "/courses"))
	assert.Equal(t, []string{"CS101"}, courses.List())
}

func TestSelectCourseDropsLecture(t *testing.T) {
	_, state, client, rec := setup(t)
	courses := NewCourses(state, client, rec)
	state.SelectLecture("old")

	require.NoError(t, courses.Select(context.Background(), "CS101"))
	assert.Equal(t, "CS101", state.SelectedCourse())
	assert.Empty(t, state.SelectedLecture())

	require.Error(t, courses.Select(context.Background(), ""))
	assert.Equal(t, "CS101", state.SelectedCourse())
}

func TestLecturesRefresh(t *testing.T) {
	srv, state, client, rec := setup(t)
	srv.SetLectures("CS101", "intro-1", "week_2")
	lectures := NewLectures(state, client, rec)
	ctx := context.Background()

	_, err := lectures.Refresh(ctx)
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))
	assert.Equal(t, "Please select a course first", lectures.InlineError())

	state.SelectCourse("CS101")
	got, err := lectures.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Lecture{
		{Name: "intro-1", Course: "CS101"},
		{Name: "week_2", Course: "CS101"},
	}, got)
	assert.Equal(t, "CS101", lectures.Course())
	assert.Empty(t, lectures.InlineError())
}

func TestLecturesRefreshFailureKeepsListing(t *testing.T) {
	srv, state, client, rec := setup(t)
	srv.SetLectures("CS101", "intro-1")
	state.SelectCourse("CS101")
	lectures := NewLectures(state, client, rec)
	ctx := context.Background()

	_, err := lectures.Refresh(ctx)
	require.NoError(t, err)

	srv.Override(http.MethodGet, "/lectures/CS101", http.StatusInternalServerError, "")
	_, err = lectures.Refresh(ctx)
	require.Error(t, err)
	assert.Equal(t, "Failed to fetch lectures", lectures.InlineError())
	assert.Len(t, lectures.List(), 1)
}

func TestSelectLecture(t *testing.T) {
	_, state, client, rec := setup(t)
	lectures := NewLectures(state, client, rec)

	require.Error(t, lectures.Select(context.Background(), " "))
	require.NoError(t, lectures.Select(context.Background(), "intro-1"))
	assert.Equal(t, "intro-1", state.SelectedLecture())
}
