package advisory

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
)

func TestExceeds(t *testing.T) {
	tests := []struct {
		name   string
		memory float64
		disk   float64
		want   bool
	}{
		{"both low", 40, 50, false},
		{"memory at threshold", 80, 10, false},
		{"memory over", 80.5, 10, true},
		{"disk at threshold", 10, 85, false},
		{"disk over", 10, 90, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Exceeds(model.ResourceUsage{MemoryPercent: tt.memory, DiskPercent: tt.disk})
			if got != tt.want {
				t.Errorf("Exceeds(%v, %v) = %v, want %v", tt.memory, tt.disk, got, tt.want)
			}
		})
	}
}

func newMonitor(t *testing.T, srv *apitest.Server) (*Monitor, *notify.Recorder) {
	t.Helper()
	srv.AddUser("alice", "x", "T1")
	state := model.NewAppState()
	state.SetSession(model.Session{Username: "alice", Token: "T1"})
	client, err := api.New(srv.URL, state)
	require.NoError(t, err)
	rec := &notify.Recorder{}
	return New(client, rec), rec
}

func TestCheckRaisesAndResets(t *testing.T) {
	srv := apitest.New(t)
	srv.SetResources(92, 30)
	m, rec := newMonitor(t, srv)

	assert.True(t, m.Check(context.Background()))
	assert.True(t, m.Warning())
	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.LevelWarn, last.Level)

	m.Reset()
	assert.False(t, m.Warning())
}

func TestCheckBelowThresholds(t *testing.T) {
	srv := apitest.New(t)
	m, rec := newMonitor(t, srv)

	assert.False(t, m.Check(context.Background()))
	assert.Empty(t, rec.Entries())
}

func TestCheckFailureIsSwallowed(t *testing.T) {
	srv := apitest.New(t)
	srv.Override(http.MethodGet, "/resources", http.StatusInternalServerError, `{"error":"boom"}`)
	m, rec := newMonitor(t, srv)

	assert.False(t, m.Check(context.Background()))
	assert.Empty(t, rec.Entries())
}

func TestRaiseNotifiesOnce(t *testing.T) {
	m := New(nil, &notify.Recorder{})
	rec := m.notify.(*notify.Recorder)
	m.Raise(context.Background())
	m.Raise(context.Background())
	assert.Len(t, rec.Entries(), 1)
}
