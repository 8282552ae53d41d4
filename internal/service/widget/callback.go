package widget

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/support-widget/backend/internal/model/widget"
)

var e164 = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// Validate checks a callback draft. The first failing rule wins: name, then
// phone, then consent. PreferredTime is free text and never checked.
func Validate(draft widget.CallbackRequest) error {
	if strings.TrimSpace(draft.Name) == "" {
		return widget.NewValidationError(widget.MissingName)
	}
	if !e164.MatchString(draft.Phone) {
		return widget.NewValidationError(widget.InvalidPhone)
	}
	if !draft.Consent {
		return widget.NewValidationError(widget.MissingConsent)
	}
	return nil
}

// CallbackSink delivers a validated callback request to whoever returns the call.
type CallbackSink interface {
	Deliver(ctx context.Context, req widget.CallbackRequest) error
}

// CallbackSinkFunc adapts a function to CallbackSink.
type CallbackSinkFunc func(ctx context.Context, req widget.CallbackRequest) error

func (f CallbackSinkFunc) Deliver(ctx context.Context, req widget.CallbackRequest) error {
	return f(ctx, req)
}

var (
	ErrSubmitPending       = errors.New("callback request is already being sent")
	ErrSubmissionCancelled = errors.New("callback submission was cancelled")
)

// FormConfig tunes a CallbackForm.
type FormConfig struct {
	SuccessDelay   time.Duration
	SuccessMessage string
	// OnDismiss runs on the loop when the success banner expires.
	OnDismiss func()
	Logger    *zap.Logger
}

// CallbackForm holds the callback draft and its transient feedback.
type CallbackForm struct {
	loop           Loop
	sink           CallbackSink
	delay          time.Duration
	successMessage string
	onDismiss      func()
	logger         *zap.Logger

	draft       widget.CallbackRequest
	err         *widget.ValidationError
	success     string
	dismiss     Task
	dismissals  uint64
	submitting  *pendingSubmit
	submissions uint64
}

type pendingSubmit struct {
	id     uint64
	cancel context.CancelFunc
	done   func(error)
}

func (p *pendingSubmit) notify(err error) {
	if p.done != nil {
		p.done(err)
	}
}

// NewCallbackForm builds an empty form. A nil sink accepts every request.
func NewCallbackForm(loop Loop, sink CallbackSink, cfg FormConfig) *CallbackForm {
	if sink == nil {
		sink = CallbackSinkFunc(func(context.Context, widget.CallbackRequest) error { return nil })
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &CallbackForm{
		loop:           loop,
		sink:           sink,
		delay:          cfg.SuccessDelay,
		successMessage: cfg.SuccessMessage,
		onDismiss:      cfg.OnDismiss,
		logger:         cfg.Logger,
	}
}

// State returns the visible form state.
func (f *CallbackForm) State() widget.CallbackState {
	state := widget.CallbackState{Draft: f.draft, Success: f.success, Submitting: f.submitting != nil}
	if f.err != nil {
		e := *f.err
		state.Error = &e
	}
	return state
}

// Update replaces the draft. Validation only happens on Submit.
func (f *CallbackForm) Update(draft widget.CallbackRequest) {
	f.draft = draft
}

// Submit validates the draft and hands it to the sink off the loop. A
// validation failure is returned at once and the fields are kept. Otherwise
// done receives the delivery outcome once it has been applied on the loop:
// nil after the banner is shown, a DeliveryFailed error, or
// ErrSubmissionCancelled when Reset dropped the submission first.
func (f *CallbackForm) Submit(ctx context.Context, done func(error)) error {
	if f.submitting != nil {
		return ErrSubmitPending
	}
	f.err = nil
	f.clearSuccess()

	if err := Validate(f.draft); err != nil {
		f.err = err.(*widget.ValidationError)
		return err
	}

	f.submissions++
	id := f.submissions
	dctx, cancel := context.WithCancel(ctx)
	f.submitting = &pendingSubmit{id: id, cancel: cancel, done: done}

	req := f.draft
	sink := f.sink
	f.loop.Go(func() func() bool {
		err := sink.Deliver(dctx, req)
		return func() bool { return f.finish(id, req, err) }
	})
	return nil
}

// Reset clears the draft and feedback, cancels an in-flight delivery and a
// pending dismissal.
func (f *CallbackForm) Reset() {
	if p := f.submitting; p != nil {
		f.submitting = nil
		p.cancel()
		p.notify(ErrSubmissionCancelled)
	}
	f.clearSuccess()
	f.draft = widget.CallbackRequest{}
	f.err = nil
}

func (f *CallbackForm) finish(id uint64, req widget.CallbackRequest, err error) bool {
	p := f.submitting
	if p == nil || p.id != id {
		f.logger.Debug("dropping stale callback delivery", zap.Uint64("submission", id))
		return false
	}
	f.submitting = nil
	p.cancel()

	if err != nil {
		f.logger.Warn("callback delivery failed", zap.Error(err))
		f.err = widget.NewValidationError(widget.DeliveryFailed)
		p.notify(f.err)
		return true
	}

	f.logger.Info("callback request submitted", zap.Bool("has_preferred_time", req.PreferredTime != ""))
	// Edits made while the request was in flight are kept.
	if f.draft == req {
		f.draft = widget.CallbackRequest{}
	}
	f.success = f.successMessage

	f.dismissals++
	dismissal := f.dismissals
	f.dismiss = f.loop.AfterFunc(f.delay, func() bool { return f.expire(dismissal) })
	p.notify(nil)
	return true
}

func (f *CallbackForm) clearSuccess() {
	if f.dismiss != nil {
		f.dismiss.Stop()
		f.dismiss = nil
	}
	f.success = ""
}

func (f *CallbackForm) expire(id uint64) bool {
	if f.dismiss == nil || id != f.dismissals {
		return false
	}
	f.dismiss = nil
	f.success = ""
	if f.onDismiss != nil {
		f.onDismiss()
	}
	return true
}
