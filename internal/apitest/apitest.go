// Package apitest runs an in-process fake of the remote study API for tests.
package apitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// Question is a generated question in wire form.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"question"`
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
}

// Upload records one received multipart upload.
type Upload struct {
	LectureName string
	CourseName  string
	FileName    string
	FileType    string
	Size        int
}

type override struct {
	status int
	body   string
}

// Server is a fake API backed by httptest.Server.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	users      map[string]string // username -> password
	tokens     map[string]string // username -> issued token
	courses    []string
	lectures   map[string][]string
	questions  []Question
	feedback   string
	content    string
	memory     float64
	disk       float64
	overrides  map[string]override
	delays     map[string]time.Duration
	hits       map[string]int
	headers    map[string]http.Header
	bodies     map[string][]byte
	uploads    []Upload
	uploadGate chan struct{}
}

// New starts a fake server that is closed with the test.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:     map[string]string{},
		tokens:    map[string]string{},
		lectures:  map[string][]string{},
		overrides: map[string]override{},
		delays:    map[string]time.Duration{},
		hits:      map[string]int{},
		headers:   map[string]http.Header{},
		bodies:    map[string][]byte{},
		feedback:  "Correct.",
		content:   "Summary of the lecture.",
		memory:    40,
		disk:      50,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(func() {
		s.ReleaseUploads()
		s.Close()
	})
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/courses", s.handleListCourses)
		r.Post("/courses", s.handleCreateCourse)
		r.Get("/resources", s.handleResources)
		r.Get("/lectures/{course}", s.handleListLectures)
		r.Post("/lectures", s.handleUpload)
		r.Post("/study", s.handleStudy)
		r.Post("/exam", s.handleExam)
		r.Post("/exam/grade", s.handleGrade)
	})
	return r
}

func key(method, path string) string {
	return method + " " + path
}

// record counts hits, keeps headers and bodies, and applies delays and overrides.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		k := key(r.Method, r.URL.Path)
		var body []byte
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(strings.NewReader(string(body)))
		}

		s.mu.Lock()
		s.hits[k]++
		s.headers[k] = r.Header.Clone()
		if body != nil {
			s.bodies[k] = body
		}
		delay := s.delays[k]
		ov, hasOverride := s.overrides[k]
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if hasOverride {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(ov.status)
			_, _ = io.WriteString(w, ov.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		valid := false
		for _, t := range s.tokens {
			if t == token && token != "" {
				valid = true
				break
			}
		}
		s.mu.Unlock()
		if !valid {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Username == "" || c.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Username and password required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[c.Username]; exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username exists"})
		return
	}
	s.users[c.Username] = c.Password
	writeJSON(w, http.StatusOK, map[string]string{"token": s.issueLocked(c.Username)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Username and password required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if pw, ok := s.users[c.Username]; !ok || pw != c.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": s.issueLocked(c.Username)})
}

func (s *Server) issueLocked(username string) string {
	if t, ok := s.tokens[username]; ok {
		return t
	}
	t := "token-" + username
	s.tokens[username] = t
	return t
}

func (s *Server) handleListCourses(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"courses": append([]string{}, s.courses...)})
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CourseName string `json:"course_name"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.courses {
		if c == body.CourseName {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Course exists"})
			return
		}
	}
	s.courses = append(s.courses, body.CourseName)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Course '" + body.CourseName + "' created"})
}

func (s *Server) handleResources(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"memory": map[string]any{"percent": s.memory, "total": "1024.00 MB"},
		"disk":   map[string]any{"percent": s.disk, "total": "4096.00 MB"},
		"status": "ok",
	})
}

func (s *Server) handleListLectures(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]string, 0, len(s.lectures[course]))
	for _, name := range s.lectures[course] {
		out = append(out, map[string]string{"lecture_name": name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"lectures": out})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate := s.uploadGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid form"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "File required"})
		return
	}
	defer file.Close()
	data, _ := io.ReadAll(file)

	up := Upload{
		LectureName: r.FormValue("lecture_name"),
		CourseName:  r.FormValue("course_name"),
		FileName:    header.Filename,
		FileType:    header.Header.Get("Content-Type"),
		Size:        len(data),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, up)
	s.lectures[up.CourseName] = append(s.lectures[up.CourseName], up.LectureName)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Lecture '" + up.LectureName + "' uploaded"})
}

func (s *Server) handleStudy(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"content": s.content})
}

func (s *Server) handleExam(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"questions": append([]Question{}, s.questions...)})
}

func (s *Server) handleGrade(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"feedback": s.feedback})
}

// AddUser registers an account. An empty token keeps the default "token-<username>".
func (s *Server) AddUser(username, password, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = password
	if token != "" {
		s.tokens[username] = token
	} else {
		s.issueLocked(username)
	}
}

// Token returns the token issued to username, if any.
func (s *Server) Token(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[username]
}

// SetCourses replaces the course listing.
func (s *Server) SetCourses(courses ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses = append([]string{}, courses...)
}

// Courses returns the server-side course listing.
func (s *Server) Courses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.courses...)
}

// SetLectures replaces the lecture listing of course.
func (s *Server) SetLectures(course string, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lectures[course] = append([]string{}, names...)
}

// SetQuestions replaces the exam returned by POST /exam.
func (s *Server) SetQuestions(qs ...Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = append([]Question{}, qs...)
}

// SetFeedback sets the grading feedback.
func (s *Server) SetFeedback(f string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = f
}

// SetContent sets the study content.
func (s *Server) SetContent(c string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = c
}

// SetResources sets the reported memory and disk percentages.
func (s *Server) SetResources(memory, disk float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory, s.disk = memory, disk
}

// Override makes method+path answer with status and a raw body.
func (s *Server) Override(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[key(method, path)] = override{status: status, body: body}
}

// Delay holds method+path for d before handling it.
func (s *Server) Delay(method, path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[key(method, path)] = d
}

// HoldUploads makes POST /lectures wait until ReleaseUploads or the client gives up.
func (s *Server) HoldUploads() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadGate == nil {
		s.uploadGate = make(chan struct{})
	}
}

// ReleaseUploads lets held uploads proceed.
func (s *Server) ReleaseUploads() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadGate != nil {
		close(s.uploadGate)
		s.uploadGate = nil
	}
}

// Hits returns how many times method+path was requested.
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key(method, path)]
}

// Header returns the headers of the last method+path request.
func (s *Server) Header(method, path string) http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[key(method, path)]
}

// Body returns the raw JSON body of the last method+path request.
func (s *Server) Body(method, path string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[key(method, path)]
}

// Uploads returns every upload the server accepted.
func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload{}, s.uploads...)
}
