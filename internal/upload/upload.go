// Package upload validates a lecture file and sends it to the API under a hard
// deadline, with manual cancellation.
package upload

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pavelanni/studyassist/internal/api"
	"github.com/pavelanni/studyassist/internal/guard"
	"github.com/pavelanni/studyassist/internal/i18n"
	"github.com/pavelanni/studyassist/internal/model"
	"github.com/pavelanni/studyassist/internal/notify"
)

// State is the orchestrator's position in the upload state machine.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateUploading  State = "uploading"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateTimedOut   State = "timed_out"
)

// DefaultDeadline bounds one transfer.
const DefaultDeadline = 120 * time.Second

var (
	errDeadline  = errors.New("upload deadline exceeded")
	errCancelled = errors.New("upload cancelled by user")
)

// Uploader sends the multipart form.
type Uploader interface {
	UploadLecture(ctx context.Context, form api.UploadForm) error
}

// Lister re-fetches the authoritative lecture listing of the selected course.
type Lister interface {
	Refresh(ctx context.Context) ([]model.Lecture, error)
}

// Advisory is the resource warning flag.
type Advisory interface {
	Reset()
	Raise(ctx context.Context)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDeadline overrides DefaultDeadline.
func WithDeadline(d time.Duration) Option {
	return func(o *Orchestrator) { o.deadline = d }
}

// who settled an attempt first
const (
	pending int32 = iota
	byCompletion
	byDeadline
	byCancel
)

type attempt struct {
	call   *api.Call
	winner atomic.Int32
}

func (a *attempt) settle(by int32) bool {
	return a.winner.CompareAndSwap(pending, by)
}

// complete claims the attempt for the transfer's own result the moment it is
// known, so a deadline firing afterwards cannot relabel it.
func (a *attempt) complete(err error) error {
	a.settle(byCompletion)
	return err
}

// Orchestrator is the Upload Orchestrator. It owns the name/file inputs and the
// cancellation handle of the in-flight transfer.
type Orchestrator struct {
	state    *model.AppState
	api      Uploader
	lister   Lister
	advisory Advisory
	notify   notify.Notifier
	guard    *guard.Guard
	inline   notify.Inline
	deadline time.Duration

	mu       sync.Mutex
	status   State
	name     string
	fileName string
	content  []byte
	current  *attempt
}

// New creates an idle orchestrator.
func New(state *model.AppState, up Uploader, lister Lister, adv Advisory, n notify.Notifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		state:    state,
		api:      up,
		lister:   lister,
		advisory: adv,
		notify:   n,
		guard:    guard.New(),
		deadline: DefaultDeadline,
		status:   StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetLectureName sets the name input.
func (o *Orchestrator) SetLectureName(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.name = name
}

// SetFile sets the file input.
func (o *Orchestrator) SetFile(fileName string, content []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fileName = fileName
	o.content = content
}

// Inputs returns the current name and file name.
func (o *Orchestrator) Inputs() (lectureName, fileName string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.name, o.fileName
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// InlineError returns the message of the last failed attempt.
func (o *Orchestrator) InlineError() string {
	return o.inline.Get()
}

// Pending reports whether an upload is in flight.
func (o *Orchestrator) Pending() bool {
	return o.guard.Busy()
}

func (o *Orchestrator) setStatus(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = s
}

// Upload validates the inputs and uploads them to the selected course. It
// returns once the transfer has completed, failed, timed out or been cancelled.
func (o *Orchestrator) Upload(ctx context.Context) error {
	release, ok := o.guard.TryAcquire()
	if !ok {
		return model.NewError(model.KindBusy, i18n.T(ctx, "Busy"))
	}
	defer release()

	o.inline.Clear()
	o.advisory.Reset()
	o.setStatus(StateValidating)

	o.mu.Lock()
	name, fileName, content := o.name, o.fileName, o.content
	o.mu.Unlock()

	course := o.state.SelectedCourse()
	if course == "" {
		return o.fail(ctx, model.NewError(model.KindValidation, i18n.T(ctx, "NoCourseSelected")))
	}
	contentType, msgID := check(name, fileName, content)
	if msgID != "" {
		slog.Debug("upload rejected", "lecture", name, "reason", msgID)
		return o.fail(ctx, model.NewError(model.KindValidation, i18n.T(ctx, msgID)))
	}

	form := api.UploadForm{
		LectureName: name,
		CourseName:  course,
		FileName:    fileName,
		ContentType: contentType,
		Content:     content,
	}
	return o.transfer(ctx, form)
}

func (o *Orchestrator) transfer(ctx context.Context, form api.UploadForm) error {
	a := &attempt{}
	a.call = api.Start(ctx, func(ctx context.Context) error {
		return a.complete(o.api.UploadLecture(ctx, form))
	})

	o.mu.Lock()
	o.status = StateUploading
	o.current = a
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.current = nil
		o.mu.Unlock()
	}()

	log := slog.With("lecture", form.LectureName, "course", form.CourseName, "size", len(form.Content))
	log.Info("upload started", "deadline", o.deadline)

	timer := time.AfterFunc(o.deadline, func() {
		if a.settle(byDeadline) {
			a.call.Cancel(errDeadline)
		}
	})
	err := a.call.Wait()
	timer.Stop()

	switch a.winner.Load() {
	case byDeadline:
		log.Warn("upload timed out")
		o.setStatus(StateTimedOut)
		nerr := &model.Error{Kind: model.KindTimeout, Message: i18n.T(ctx, "UploadTimedOut"), Err: errDeadline}
		o.report(nerr)
		return nerr
	case byCancel:
		log.Info("upload cancelled")
		o.setStatus(StateIdle)
		o.notify.Notify(notify.LevelInfo, i18n.T(ctx, "UploadCancelled"))
		return &model.Error{Kind: model.KindCancelled, Message: i18n.T(ctx, "UploadCancelled"), Err: errCancelled}
	}

	if err != nil {
		if model.IsKind(err, model.KindCancelled) {
			// The caller's context went away; nothing to show.
			o.setStatus(StateIdle)
			return err
		}
		log.Warn("upload failed", "error", err)
		if model.IsKind(err, model.KindResourceExhausted) {
			o.advisory.Raise(ctx)
		}
		return o.fail(ctx, err)
	}

	log.Info("upload succeeded")
	o.setStatus(StateSucceeded)
	o.mu.Lock()
	o.name, o.fileName, o.content = "", "", nil
	o.mu.Unlock()
	if _, err := o.lister.Refresh(ctx); err != nil {
		log.Warn("lecture listing refresh after upload failed", "error", err)
	}
	o.notify.Notify(notify.LevelSuccess, i18n.T(ctx, "LectureUploaded"))
	return nil
}

// Cancel aborts the in-flight upload. It reports whether there was one to abort.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	a := o.current
	o.mu.Unlock()
	if a == nil || !a.settle(byCancel) {
		return false
	}
	a.call.Cancel(errCancelled)
	return true
}

// Reset clears the inputs and the inline message and returns to idle. It does
// not touch an upload in flight; Cancel that first.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.name, o.fileName, o.content = "", "", nil
	if o.current == nil {
		o.status = StateIdle
	}
	o.mu.Unlock()
	o.inline.Clear()
}

func (o *Orchestrator) fail(ctx context.Context, err error) error {
	o.setStatus(StateFailed)
	var nerr *model.Error
	if !errors.As(err, &nerr) {
		nerr = &model.Error{Kind: model.KindUnknown, Message: i18n.T(ctx, "UploadFailed"), Err: err}
	}
	o.report(nerr)
	return nerr
}

func (o *Orchestrator) report(err *model.Error) {
	o.inline.Set(err.Message)
	o.notify.Notify(notify.LevelError, err.Message)
}
