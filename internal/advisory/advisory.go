// Package advisory raises a non-blocking warning when the server reports high
// memory or disk usage.
package advisory

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/pavelanni/studyassist/internal/i18n"
	"github.com/pavelanni/studyassist/internal/model"
	"github.com/pavelanni/studyassist/internal/notify"
)

// Thresholds above which the warning is raised, in percent.
const (
	MemoryThreshold = 80.0
	DiskThreshold   = 85.0
)

// ResourceAPI reads the server's resource usage.
type ResourceAPI interface {
	Resources(ctx context.Context) (model.ResourceUsage, error)
}

// Monitor owns the resource warning flag.
type Monitor struct {
	api    ResourceAPI
	notify notify.Notifier
	flag   atomic.Bool
}

// New creates a monitor with the flag lowered.
func New(api ResourceAPI, n notify.Notifier) *Monitor {
	return &Monitor{api: api, notify: n}
}

// Exceeds reports whether usage crosses either threshold.
func Exceeds(u model.ResourceUsage) bool {
	return u.MemoryPercent > MemoryThreshold || u.DiskPercent > DiskThreshold
}

// Check reads the server's resource levels once and raises the flag if either
// is over its threshold. Failures are logged and otherwise ignored.
func (m *Monitor) Check(ctx context.Context) bool {
	usage, err := m.api.Resources(ctx)
	if err != nil {
		slog.Warn("resource check failed", "error", err)
		return m.flag.Load()
	}
	slog.Debug("resource usage", "memory_percent", usage.MemoryPercent, "disk_percent", usage.DiskPercent)
	if Exceeds(usage) {
		m.Raise(ctx)
	}
	return m.flag.Load()
}

// Warning reports the current flag.
func (m *Monitor) Warning() bool {
	return m.flag.Load()
}

// Raise sets the flag and tells the user.
func (m *Monitor) Raise(ctx context.Context) {
	if m.flag.Swap(true) {
		return
	}
	m.notify.Notify(notify.LevelWarn, i18n.T(ctx, "ResourceWarning"))
}

// Reset lowers the flag at the start of an upload attempt.
func (m *Monitor) Reset() {
	m.flag.Store(false)
}
