// Package notify delivers the transient, toast-like notifications every flow
// raises on success or failure.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
)

// Notifier shows a short-lived message to the user.
type Notifier interface {
	Notify(level Level, msg string)
}

// Writer prints notifications as single lines, e.g. to a terminal.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a Notifier writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

var prefixes = map[Level]string{
	LevelInfo:    "i",
	LevelSuccess: "✓",
	LevelWarn:    "!",
	LevelError:   "✗",
}

func (n *Writer) Notify(level Level, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := fmt.Fprintf(n.w, "%s %s\n", prefixes[level], msg); err != nil {
		slog.Debug("notification dropped", "error", err)
	}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(Level, string) {}

// Entry is one recorded notification.
type Entry struct {
	Level   Level
	Message string
}

// Recorder keeps notifications in memory; tests use it to assert on them.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) Notify(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: msg})
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Last returns the most recent entry and false if nothing was recorded.
func (r *Recorder) Last() (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return Entry{}, false
	}
	return r.entries[len(r.entries)-1], true
}

// Inline is the persisted error line a view shows until its next attempt.
type Inline struct {
	mu  sync.RWMutex
	msg string
}

// Set replaces the message.
func (i *Inline) Set(msg string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.msg = msg
}

// Clear empties the message at the start of an attempt.
func (i *Inline) Clear() {
	i.Set("")
}

// Get returns the current message.
func (i *Inline) Get() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.msg
}
