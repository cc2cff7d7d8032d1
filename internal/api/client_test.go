package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/studyassist/internal/apitest"
	"github.com/pavelanni/studyassist/internal/model"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, srv *apitest.Server, token string, opts ...Option) *Client {
	t.Helper()
	c, err := New(srv.URL, staticToken(token), opts...)
	require.NoError(t, err)
	return c
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New("  ", nil)
	require.Error(t, err)
}

func TestBearerTokenAndRequestID(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "x", "T1")
	srv.SetCourses("CS101")
	c := newTestClient(t, srv, "T1")

	courses, err := c.ListCourses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"CS101"}, courses)

	h := srv.Header(http.MethodGet, "/courses")
	assert.Equal(t, "Bearer T1", h.Get("Authorization"))
	assert.NotEmpty(t, h.Get("X-Request-ID"))
}

func TestMissingTokenFailsBeforeNetwork(t *testing.T) {
	srv := apitest.New(t)
	c := newTestClient(t, srv, "")

	_, err := c.ListCourses(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.KindAuth, model.KindOf(err))
	assert.Equal(t, "Authentication token is missing. Please log in again.", model.MessageOf(err, ""))
	assert.Zero(t, srv.Hits(http.MethodGet, "/courses"))
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind model.ErrorKind
		wantMsg  string
	}{
		{"server error text wins", 400, `{"error":"Course exists"}`, model.KindServer, "Course exists"},
		{"detail fallback", 400, `{"detail":"Username and password required"}`, model.KindServer, "Username and password required"},
		{"non-string detail ignored", 422, `{"detail":[{"loc":["body"]}]}`, model.KindServer, "Failed to create course"},
		{"no body uses default", 500, ``, model.KindServer, "Failed to create course"},
		{"unauthorized", 401, `{"error":"Invalid credentials"}`, model.KindAuth, "Invalid credentials"},
		{"insufficient storage with text", 507, `{"error":"Memory overloaded"}`, model.KindResourceExhausted, "Memory overloaded"},
		{"insufficient storage bare", 507, ``, model.KindResourceExhausted, "The server is low on resources. Try uploading a smaller file or contact support to upgrade your plan."},
		{"gateway timeout", 504, `{"error":"AI processing timed out"}`, model.KindTimeout, "AI processing timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := apitest.New(t)
			srv.Override(http.MethodPost, "/courses", tt.status, tt.body)
			c := newTestClient(t, srv, "T1")

			err := c.CreateCourse(context.Background(), "CS101")
			require.Error(t, err)
			var apiErr *model.Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantKind, apiErr.Kind)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, tt.status, apiErr.Status)
		})
	}
}

func TestDefaultFallbackIsGeneric(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "x", "T1")
	srv.Override(http.MethodGet, "/courses", http.StatusInternalServerError, `{}`)
	c := newTestClient(t, srv, "T1")

	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/courses", Auth: true}, nil)
	require.Error(t, err)
	assert.Equal(t, model.KindServer, model.KindOf(err))
	assert.Equal(t, "Request failed", model.MessageOf(err, ""))
}

func TestListTimeout(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "x", "T1")
	srv.Delay(http.MethodGet, "/courses", time.Second)
	c := newTestClient(t, srv, "T1", WithListTimeout(50*time.Millisecond))

	_, err := c.ListCourses(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.KindTimeout, model.KindOf(err))
	assert.Equal(t, "Request timed out", model.MessageOf(err, ""))
}

func TestCallerCancellation(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "x", "T1")
	srv.Delay(http.MethodGet, "/courses", time.Second)
	c := newTestClient(t, srv, "T1")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)
	_, err := c.ListCourses(ctx)
	require.Error(t, err)
	assert.Equal(t, model.KindCancelled, model.KindOf(err))
}

func TestTransportFailure(t *testing.T) {
	srv := apitest.New(t)
	url := srv.URL
	srv.Close()

	c, err := New(url, staticToken("T1"))
	require.NoError(t, err)
	_, err = c.ListCourses(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.KindTransport, model.KindOf(err))
	assert.Equal(t, "Network connection failed", model.MessageOf(err, ""))
}

func TestMalformedResponses(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		call    func(c *Client) error
		wantMsg string
	}{
		{
			name: "exam without questions", method: http.MethodPost, path: "/exam",
			body: `{"content":"oops"}`,
			call: func(c *Client) error {
				_, err := c.GenerateExam(context.Background(), "intro-1", model.DefaultExamConfig())
				return err
			},
			wantMsg: "Invalid response from server: Questions not found",
		},
		{
			name: "exam questions not an array", method: http.MethodPost, path: "/exam",
			body: `{"questions":{"id":"q1"}}`,
			call: func(c *Client) error {
				_, err := c.GenerateExam(context.Background(), "intro-1", model.DefaultExamConfig())
				return err
			},
			wantMsg: "Invalid response from server: Questions not found",
		},
		{
			name: "resources missing disk", method: http.MethodGet, path: "/resources",
			body: `{"memory":{"percent":10}}`,
			call: func(c *Client) error {
				_, err := c.Resources(context.Background())
				return err
			},
			wantMsg: "Invalid response from server",
		},
		{
			name: "login without token", method: http.MethodPost, path: "/login",
			body: `{}`,
			call: func(c *Client) error {
				_, err := c.Login(context.Background(), model.Credentials{Username: "a", Password: "b"})
				return err
			},
			wantMsg: "Invalid response from server",
		},
		{
			name: "grade not json", method: http.MethodPost, path: "/exam/grade",
			body: `<html>`,
			call: func(c *Client) error {
				_, err := c.GradeAnswer(context.Background(), "q1", "A")
				return err
			},
			wantMsg: "Invalid response from server",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := apitest.New(t)
			srv.Override(tt.method, tt.path, http.StatusOK, tt.body)
			c := newTestClient(t, srv, "T1")

			err := tt.call(c)
			require.Error(t, err)
			assert.Equal(t, model.KindMalformedResponse, model.KindOf(err))
			assert.Equal(t, tt.wantMsg, model.MessageOf(err, ""))
		})
	}
}

func TestLectureListingAcceptsStringsAndObjects(t *testing.T) {
	srv := apitest.New(t)
	srv.Override(http.MethodGet, "/lectures/CS101", http.StatusOK,
		`{"lectures":["intro-1",{"lecture_name":"week_2"}]}`)
	c := newTestClient(t, srv, "T1")

	lectures, err := c.ListLectures(context.Background(), "CS101")
	require.NoError(t, err)
	assert.Equal(t, []model.Lecture{
		{Name: "intro-1", Course: "CS101"},
		{Name: "week_2", Course: "CS101"},
	}, lectures)
}

func TestExamWireVocabulary(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "x", "T1")
	srv.SetQuestions(apitest.Question{ID: "essay_intro-1_0", Text: "1. Discuss.", Type: "essay"})
	c := newTestClient(t, srv, "T1")

	qs, err := c.GenerateExam(context.Background(), "intro-1",
		model.ExamConfig{Type: model.ExamEssay, Difficulty: model.DifficultyHard})
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, model.KindEssay, qs[0].Kind)

	var sent map[string]string
	require.NoError(t, json.Unmarshal(srv.Body(http.MethodPost, "/exam"), &sent))
	assert.Equal(t, map[string]string{
		"lecture_name": "intro-1",
		"exam_type":    "Essay Questions",
		"difficulty":   "Hard",
	}, sent)
}

func TestUploadMultipart(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "x", "T1")
	c := newTestClient(t, srv, "T1")

	err := c.UploadLecture(context.Background(), UploadForm{
		LectureName: " intro-1 ",
		CourseName:  "CS101",
		FileName:    "intro.pdf",
		ContentType: "application/pdf",
		Content:     []byte("%PDF-1.4\n"),
	})
	require.NoError(t, err)

	ups := srv.Uploads()
	require.Len(t, ups, 1)
	assert.Equal(t, apitest.Upload{
		LectureName: "intro-1",
		CourseName:  "CS101",
		FileName:    "intro.pdf",
		FileType:    "application/pdf",
		Size:        9,
	}, ups[0])
}

func TestStartCancel(t *testing.T) {
	cause := errors.New("stop")
	call := Start(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return context.Cause(ctx)
	})
	call.Cancel(cause)
	require.ErrorIs(t, call.Wait(), cause)

	select {
	case <-call.Done():
	default:
		t.Fatal("Done must be closed after Wait")
	}
}
