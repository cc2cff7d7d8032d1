package session

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/studyassist/internal/api"
	"github.com/pavelanni/studyassist/internal/apitest"
	"github.com/pavelanni/studyassist/internal/model"
	"github.com/pavelanni/studyassist/internal/notify"
	"github.com/pavelanni/studyassist/internal/store"
)

type fixture struct {
	srv   *apitest.Server
	state *model.AppState
	kv    store.KV
	rec   *notify.Recorder
	store *Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.New(t)
	state := model.NewAppState()
	client, err := api.New(srv.URL, state)
	require.NoError(t, err)
	kv, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	rec := &notify.Recorder{}
	return &fixture{
		srv:   srv,
		state: state,
		kv:    kv,
		rec:   rec,
		store: New(state, client, kv, rec),
	}
}

func TestLoginPersistsAndOpensDashboard(t *testing.T) {
	f := newFixture(t)
	f.srv.AddUser("alice", "x", "T1")
	ctx := context.Background()

	sess, err := f.store.Login(ctx, "alice", "x")
	require.NoError(t, err)
	assert.Equal(t, model.Session{Username: "alice", Token: "T1"}, sess)
	assert.Equal(t, model.ViewDashboard, f.state.View())
	assert.Equal(t, "T1", f.state.Token())

	token, err := f.kv.Get(ctx, store.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "T1", token)
	username, err := f.kv.Get(ctx, store.KeyUsername)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	last, ok := f.rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.LevelSuccess, last.Level)
	assert.Contains(t, last.Message, "alice")
	assert.Empty(t, f.store.InlineError())
}

func TestRegisterAuthenticatesImmediately(t *testing.T) {
	f := newFixture(t)

	sess, err := f.store.Register(context.Background(), "bob", "pw")
	require.NoError(t, err)
	assert.Equal(t, "token-bob", sess.Token)
	assert.Equal(t, model.ViewDashboard, f.state.View())
}

func TestRegisterDuplicateShowsServerText(t *testing.T) {
	f := newFixture(t)
	f.srv.AddUser("bob", "pw", "")

	_, err := f.store.Register(context.Background(), "bob", "other")
	require.Error(t, err)
	assert.Equal(t, "Username exists", f.store.InlineError())
	assert.False(t, f.state.Session().Authenticated())
}

func TestLoginFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.srv.AddUser("alice", "x", "T1")
	ctx := context.Background()

	_, err := f.store.Login(ctx, "alice", "wrong")
	require.Error(t, err)
	assert.Equal(t, model.KindAuth, model.KindOf(err))
	assert.Equal(t, model.ViewLogin, f.state.View())
	assert.Equal(t, "Invalid credentials", f.store.InlineError())

	token, err := f.kv.Get(ctx, store.KeyToken)
	require.NoError(t, err)
	assert.Empty(t, token)

	last, ok := f.rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Entry{Level: notify.LevelError, Message: "Invalid credentials"}, last)
}

func TestLoginFailureWithoutServerTextUsesGeneric(t *testing.T) {
	f := newFixture(t)
	f.srv.Override(http.MethodPost, "/login", http.StatusInternalServerError, "")

	_, err := f.store.Login(context.Background(), "alice", "x")
	require.Error(t, err)
	assert.Equal(t, "An error occurred", f.store.InlineError())
}

func TestCredentialsRequired(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
	}{
		{"empty username", "", "x"},
		{"blank username", "   ", "x"},
		{"empty password", "alice", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.store.Login(context.Background(), tt.username, tt.password)
			require.Error(t, err)
			assert.Equal(t, model.KindValidation, model.KindOf(err))
			assert.Zero(t, f.srv.Hits(http.MethodPost, "/login"))
		})
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.srv.AddUser("alice", "x", "T1")
	ctx := context.Background()

	_, err := f.store.Login(ctx, "alice", "x")
	require.NoError(t, err)
	f.state.SelectCourse("CS101")
	f.state.SelectLecture("intro-1")

	f.store.Logout(ctx)
	f.store.Logout(ctx)

	assert.False(t, f.state.Session().Authenticated())
	assert.Empty(t, f.state.SelectedCourse())
	assert.Empty(t, f.state.SelectedLecture())
	assert.Equal(t, model.ViewLogin, f.state.View())

	token, err := f.kv.Get(ctx, store.KeyToken)
	require.NoError(t, err)
	assert.Empty(t, token)

	loggedOut := 0
	for _, e := range f.rec.Entries() {
		if e.Message == "Logged out successfully" {
			loggedOut++
		}
	}
	assert.Equal(t, 1, loggedOut)
}

func TestRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	found, err := f.store.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, model.ViewLogin, f.state.View())

	require.NoError(t, f.kv.Set(ctx, store.KeyToken, "T9"))
	require.NoError(t, f.kv.Set(ctx, store.KeyUsername, "carol"))

	found, err = f.store.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, model.Session{Username: "carol", Token: "T9"}, f.store.Current())
	assert.Equal(t, model.ViewDashboard, f.state.View())
}
