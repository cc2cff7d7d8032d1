package study

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/studyassist/internal/api"
	"github.com/pavelanni/studyassist/internal/apitest"
	"github.com/pavelanni/studyassist/internal/model"
	"github.com/pavelanni/studyassist/internal/notify"
)

func setup(t *testing.T) (*apitest.Server, *model.AppState, *Assistant) {
	t.Helper()
	srv := apitest.New(t)
	srv.AddUser("alice", "x", "T1")
	state := model.NewAppState()
	state.SetSession(model.Session{Username: "alice", Token: "T1"})
	state.SelectLecture("intro-1")
	client, err := api.New(srv.URL, state)
	require.NoError(t, err)
	return srv, state, New(state, client, &notify.Recorder{})
}

func TestGenerateTasks(t *testing.T) {
	for _, task := range []model.StudyTask{model.TaskSummarize, model.TaskExplain, model.TaskExamples} {
		t.Run(string(task), func(t *testing.T) {
			srv, _, a := setup(t)
			srv.SetContent("content for " + string(task))
			ctx := context.Background()
			require.NoError(t, a.SetTask(ctx, task))
			a.SetQuestion("ignored")

			got, err := a.Generate(ctx)
			require.NoError(t, err)
			assert.Equal(t, "content for "+string(task), got)
			assert.Equal(t, got, a.Content())

			var sent map[string]string
			require.NoError(t, json.Unmarshal(srv.Body(http.MethodPost, "/study"), &sent))
			assert.Equal(t, map[string]string{"task": string(task), "lecture_name": "intro-1", "question": ""}, sent)
		})
	}
}

func TestCustomQuestion(t *testing.T) {
	srv, _, a := setup(t)
	ctx := context.Background()
	require.NoError(t, a.SetTask(ctx, model.TaskCustomQuestion))

	_, err := a.Generate(ctx)
	require.Error(t, err)
	assert.Equal(t, "Please enter a custom question", a.InlineError())
	assert.Zero(t, srv.Hits(http.MethodPost, "/study"))

	a.SetQuestion("What is a page fault?")
	_, err = a.Generate(ctx)
	require.NoError(t, err)
	assert.Empty(t, a.Question())
	assert.Empty(t, a.InlineError())
}

func TestGenerateRequiresLecture(t *testing.T) {
	srv, state, a := setup(t)
	state.SelectLecture("")

	_, err := a.Generate(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))
	assert.Zero(t, srv.Hits(http.MethodPost, "/study"))
}

func TestInvalidTask(t *testing.T) {
	_, _, a := setup(t)
	require.Error(t, a.SetTask(context.Background(), "Translate"))
	assert.Equal(t, model.TaskSummarize, a.Task())
}

func TestFailureKeepsQuestion(t *testing.T) {
	srv, _, a := setup(t)
	srv.Override(http.MethodPost, "/study", http.StatusGatewayTimeout, `{"error":"AI processing timed out"}`)
	ctx := context.Background()
	require.NoError(t, a.SetTask(ctx, model.TaskCustomQuestion))
	a.SetQuestion("Why?")

	_, err := a.Generate(ctx)
	require.Error(t, err)
	assert.Equal(t, model.KindTimeout, model.KindOf(err))
	assert.Equal(t, "AI processing timed out", a.InlineError())
	assert.Equal(t, "Why?", a.Question())
}
