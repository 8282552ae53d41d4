package widget

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/support-widget/backend/internal/model/widget"
)

const (
	DefaultReplyDelay   = 1500 * time.Millisecond
	DefaultReplyTimeout = 30 * time.Second
	DefaultSuccessDelay = 3000 * time.Millisecond

	subscriberBuffer = 16
)

var (
	ErrWidgetClosed = errors.New("widget is closed")
	ErrViewInactive = errors.New("view is not active")
	ErrShutdown     = errors.New("widget has been shut down")
)

// Options wires a Shell to its collaborators.
type Options struct {
	Clock     Clock
	Responder Responder
	Sink      CallbackSink
	FAQ       *FaqIndex
	Assistant widget.Assistant

	ReplyDelay   time.Duration
	ReplyTimeout time.Duration
	SuccessDelay time.Duration

	// CalendarURL, when set, makes "Schedule Consultation" open the external
	// calendar instead of the local callback form.
	CalendarURL string

	Logger *zap.Logger
}

// MenuResult describes what a menu selection did.
type MenuResult struct {
	View        widget.View `json:"view"`
	CalendarURL string      `json:"calendarUrl,omitempty"`
}

// Shell is one support-widget session. It owns the open flag and the active
// view and serialises every mutation, including timer callbacks, behind a
// single lock.
type Shell struct {
	id          string
	clock       Clock
	calendarURL string
	assistant   widget.Assistant
	logger      *zap.Logger
	done        chan struct{}

	mu         sync.Mutex
	open       bool
	view       *ViewController
	chat       *ConversationEngine
	faq        *FaqIndex
	faqQuery   string
	form       *CallbackForm
	revision   uint64
	lastActive time.Time
	subs       map[int]chan widget.Event
	nextSub    int
	shutdown   bool

	inflight sync.WaitGroup
}

// NewShell creates a closed widget session showing the menu.
func NewShell(id string, opts Options) *Shell {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Assistant == (widget.Assistant{}) {
		opts.Assistant = widget.DefaultAssistant()
	}
	if opts.Responder == nil {
		opts.Responder = CannedResponder{Reply: opts.Assistant.CannedReply}
	}
	if opts.FAQ == nil {
		opts.FAQ = NewFaqIndex(nil)
	}

	s := &Shell{
		id:          id,
		clock:       opts.Clock,
		calendarURL: opts.CalendarURL,
		assistant:   opts.Assistant,
		done:        make(chan struct{}),
		logger:      opts.Logger.With(zap.String("session_id", id)),
		view:        NewViewController(),
		faq:         opts.FAQ,
		lastActive:  opts.Clock.Now(),
		subs:        make(map[int]chan widget.Event),
	}

	loop := shellLoop{s}
	s.chat = NewConversationEngine(loop, opts.Responder, EngineConfig{
		Greeting:     opts.Assistant.Greeting,
		ReplyDelay:   opts.ReplyDelay,
		ReplyTimeout: opts.ReplyTimeout,
		Now:          opts.Clock.Now,
		Logger:       s.logger,
	})
	s.form = NewCallbackForm(loop, opts.Sink, FormConfig{
		SuccessDelay:   opts.SuccessDelay,
		SuccessMessage: opts.Assistant.SuccessMessage,
		OnDismiss:      s.backLocked,
		Logger:         s.logger,
	})
	return s
}

// ID returns the session identifier.
func (s *Shell) ID() string {
	return s.id
}

// LastActive returns when a user last interacted with the session.
func (s *Shell) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Open shows the widget on the menu.
func (s *Shell) Open() error {
	return s.mutate(func() error {
		s.openLocked()
		return nil
	})
}

// Close hides the widget and drops all transient state: messages, the
// pending reply, the callback draft and the FAQ query.
func (s *Shell) Close() error {
	return s.mutate(func() error {
		s.closeLocked()
		return nil
	})
}

// Toggle opens a closed widget and closes an open one.
func (s *Shell) Toggle() error {
	return s.mutate(func() error {
		if s.open {
			s.closeLocked()
		} else {
			s.openLocked()
		}
		return nil
	})
}

// IsOpen reports the visibility flag.
func (s *Shell) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// CurrentView returns the active view.
func (s *Shell) CurrentView() widget.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Current()
}

// Navigate activates v.
func (s *Shell) Navigate(v widget.View) error {
	if !v.Valid() {
		return fmt.Errorf("%w: %q", widget.ErrUnknownView, v)
	}
	return s.mutateOpen(func() error {
		s.navigateLocked(v)
		return nil
	})
}

// Back returns to the menu.
func (s *Shell) Back() error {
	return s.mutateOpen(func() error {
		s.backLocked()
		return nil
	})
}

// SelectMenuItem follows a menu entry.
func (s *Shell) SelectMenuItem(item widget.MenuItem) (MenuResult, error) {
	var result MenuResult
	err := s.mutateOpen(func() error {
		switch item {
		case widget.MenuAskQuestion:
			s.navigateLocked(widget.ViewChat)
		case widget.MenuSearchFAQ:
			s.navigateLocked(widget.ViewFAQ)
		case widget.MenuScheduleConsultation:
			if s.calendarURL != "" {
				result.CalendarURL = s.calendarURL
				s.publishLocked(widget.Event{Type: widget.EventOpenCalendar, URL: s.calendarURL})
				s.logger.Info("calendar requested")
				break
			}
			s.navigateLocked(widget.ViewCallback)
		default:
			return fmt.Errorf("%w: %q", widget.ErrUnknownMenuItem, item)
		}
		result.View = s.view.Current()
		return nil
	})
	return result, err
}

// PostMessage submits user text to the conversation.
func (s *Shell) PostMessage(text string) (widget.Message, error) {
	var msg widget.Message
	err := s.mutateIn(widget.ViewChat, func() error {
		var err error
		msg, err = s.chat.Post(text)
		return err
	})
	return msg, err
}

// SearchFAQ records the FAQ query and returns its matches.
func (s *Shell) SearchFAQ(term string) ([]widget.FaqEntry, error) {
	var results []widget.FaqEntry
	err := s.mutateIn(widget.ViewFAQ, func() error {
		s.faqQuery = term
		results = slices.Collect(s.faq.Search(term))
		return nil
	})
	return results, err
}

// UpdateCallback replaces the callback draft.
func (s *Shell) UpdateCallback(draft widget.CallbackRequest) error {
	return s.mutateIn(widget.ViewCallback, func() error {
		s.form.Update(draft)
		return nil
	})
}

// SubmitCallback validates the callback draft and waits for its delivery.
// The sink runs without holding the session, so the session keeps serving
// snapshots and timers while the request is in flight.
func (s *Shell) SubmitCallback(ctx context.Context) error {
	result := make(chan error, 1)
	err := s.mutateIn(widget.ViewCallback, func() error {
		return s.form.Submit(ctx, func(err error) { result <- err })
	})
	if err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-s.done:
		return ErrShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot copies the current session state.
func (s *Shell) Snapshot() widget.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel receiving an event after every state change.
// Slow subscribers miss intermediate events rather than blocking the session.
// The returned function unsubscribes and closes the channel.
func (s *Shell) Subscribe() (<-chan widget.Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan widget.Event, subscriberBuffer)
	if s.shutdown {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
		})
	}
}

// Shutdown tears the session down. Pending timers are cancelled, subscribers
// are closed, and Shutdown waits for in-flight responder calls to return.
func (s *Shell) Shutdown() {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	s.shutdown = true
	close(s.done)
	s.resetLocked()
	s.open = false
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	s.inflight.Wait()
	s.logger.Debug("widget shut down")
}

func (s *Shell) mutate(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return ErrShutdown
	}
	s.lastActive = s.clock.Now()
	if err := fn(); err != nil {
		// A failed submit still changes what the form shows.
		var verr *widget.ValidationError
		if errors.As(err, &verr) {
			s.changedLocked()
		}
		return err
	}
	s.changedLocked()
	return nil
}

func (s *Shell) mutateOpen(fn func() error) error {
	return s.mutate(func() error {
		if !s.open {
			return ErrWidgetClosed
		}
		return fn()
	})
}

func (s *Shell) mutateIn(v widget.View, fn func() error) error {
	return s.mutateOpen(func() error {
		if s.view.Current() != v {
			return fmt.Errorf("%w: %s", ErrViewInactive, v)
		}
		return fn()
	})
}

func (s *Shell) openLocked() {
	if s.open {
		return
	}
	s.open = true
	s.view.Goto(widget.ViewMenu)
	s.logger.Info("widget opened")
}

func (s *Shell) closeLocked() {
	if !s.open {
		return
	}
	s.resetLocked()
	s.open = false
	s.logger.Info("widget closed")
}

func (s *Shell) navigateLocked(v widget.View) {
	prev := s.view.Current()
	if prev == v {
		return
	}
	s.view.Goto(v)
	s.leaveLocked(prev)
	s.enterLocked(v)
	s.logger.Debug("view changed", zap.String("from", string(prev)), zap.String("to", string(v)))
}

func (s *Shell) backLocked() {
	s.navigateLocked(widget.ViewMenu)
}

func (s *Shell) leaveLocked(v widget.View) {
	if v == widget.ViewCallback {
		s.form.Reset()
	}
}

func (s *Shell) enterLocked(v widget.View) {
	switch v {
	case widget.ViewChat:
		s.chat.Seed()
	case widget.ViewCallback:
		// A re-entered callback view always starts from an empty draft.
		s.form.Reset()
	}
}

func (s *Shell) resetLocked() {
	s.chat.Reset()
	s.form.Reset()
	s.faqQuery = ""
	s.view.Goto(widget.ViewMenu)
}

func (s *Shell) changedLocked() {
	s.revision++
	snap := s.snapshotLocked()
	s.publishLocked(widget.Event{Type: widget.EventSnapshot, Snapshot: &snap})
}

func (s *Shell) publishLocked(ev widget.Event) {
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Debug("subscriber lagging, event dropped", zap.Int("subscriber", id), zap.String("event", string(ev.Type)))
		}
	}
}

func (s *Shell) snapshotLocked() widget.Snapshot {
	return widget.Snapshot{
		SessionID:  s.id,
		Revision:   s.revision,
		Assistant:  s.assistant,
		Open:       s.open,
		View:       s.view.Current(),
		Messages:   s.chat.Messages(),
		Pending:    s.chat.Pending(),
		FAQQuery:   s.faqQuery,
		FAQResults: slices.Collect(s.faq.Search(s.faqQuery)),
		Callback:   s.form.State(),
	}
}

// shellLoop runs component callbacks under the shell lock.
type shellLoop struct {
	s *Shell
}

func (l shellLoop) AfterFunc(d time.Duration, f func() bool) Task {
	return l.s.clock.AfterFunc(d, func() { l.s.run(f) })
}

func (l shellLoop) Go(work func() func() bool) {
	l.s.inflight.Add(1)
	go func() {
		defer l.s.inflight.Done()
		apply := work()
		l.s.run(apply)
	}()
}

// run applies a loop callback and publishes only when it changed something.
func (s *Shell) run(f func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return
	}
	if f() {
		s.changedLocked()
	}
}
