package model

import "sync"

// View names the single active screen.
type View string

const (
	ViewLogin     View = "login"
	ViewDashboard View = "dashboard"
	ViewCourses   View = "courses"
	ViewLectures  View = "lectures"
	ViewStudy     View = "study"
	ViewExam      View = "exam"
)

// Views lists every view in navigation order.
var Views = []View{ViewLogin, ViewDashboard, ViewCourses, ViewLectures, ViewStudy, ViewExam}

// Valid reports whether v is a known view.
func (v View) Valid() bool {
	for _, known := range Views {
		if v == known {
			return true
		}
	}
	return false
}

// AppState is the application state shared across flows. Each field has a
// single writer: the session store writes the identity, the catalog writes the
// selections and the router writes the view. Readers may be any flow.
type AppState struct {
	mu              sync.RWMutex
	view            View
	session         Session
	selectedCourse  string
	selectedLecture string
}

// NewAppState returns the unauthenticated initial state.
func NewAppState() *AppState {
	return &AppState{view: ViewLogin}
}

// View returns the active view.
func (s *AppState) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// SetView changes the active view. Without a session only ViewLogin is reachable;
// any other request is coerced to it.
func (s *AppState) SetView(v View) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.session.Authenticated() {
		v = ViewLogin
	}
	s.view = v
	return v
}

// Session returns a copy of the current identity.
func (s *AppState) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Token returns the current auth token, empty when unauthenticated.
func (s *AppState) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Token
}

// SetSession stores a freshly authenticated identity and opens the dashboard.
func (s *AppState) SetSession(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
	if sess.Authenticated() {
		s.view = ViewDashboard
	} else {
		s.view = ViewLogin
	}
}

// Reset drops the identity and both selections and forces the login view.
func (s *AppState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = Session{}
	s.selectedCourse = ""
	s.selectedLecture = ""
	s.view = ViewLogin
}

// SelectedCourse returns the course chosen in the courses view.
func (s *AppState) SelectedCourse() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedCourse
}

// SelectCourse overwrites the course selection.
func (s *AppState) SelectCourse(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedCourse = name
}

// SelectedLecture returns the lecture chosen in the lectures view.
func (s *AppState) SelectedLecture() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedLecture
}

// SelectLecture overwrites the lecture selection.
func (s *AppState) SelectLecture(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedLecture = name
}
