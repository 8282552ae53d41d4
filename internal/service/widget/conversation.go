package widget

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/support-widget/backend/internal/model/widget"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrReplyPending = errors.New("assistant reply is pending")
)

// Responder produces the assistant reply for the conversation so far.
// Implementations must return once ctx is done.
type Responder interface {
	Respond(ctx context.Context, history []widget.Message) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, history []widget.Message) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, history []widget.Message) (string, error) {
	return f(ctx, history)
}

// CannedResponder ignores the conversation and answers with a fixed reply.
type CannedResponder struct {
	Reply string
}

func (r CannedResponder) Respond(ctx context.Context, _ []widget.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.Reply, nil
}

// EngineConfig tunes a ConversationEngine.
type EngineConfig struct {
	Greeting     string
	ReplyDelay   time.Duration
	ReplyTimeout time.Duration
	Now          func() time.Time
	Logger       *zap.Logger
}

// ConversationEngine owns the message log and the single in-flight reply.
type ConversationEngine struct {
	loop      Loop
	responder Responder
	greeting  string
	delay     time.Duration
	timeout   time.Duration
	now       func() time.Time
	logger    *zap.Logger

	messages []widget.Message
	pending  *pendingReply
	replies  uint64
}

type pendingReply struct {
	id     uint64
	task   Task
	ctx    context.Context
	cancel context.CancelFunc
}

// NewConversationEngine builds an engine whose delayed work runs on loop.
func NewConversationEngine(loop Loop, responder Responder, cfg EngineConfig) *ConversationEngine {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &ConversationEngine{
		loop:      loop,
		responder: responder,
		greeting:  cfg.Greeting,
		delay:     cfg.ReplyDelay,
		timeout:   cfg.ReplyTimeout,
		now:       cfg.Now,
		logger:    cfg.Logger,
	}
}

// Messages returns a copy of the log in append order.
func (e *ConversationEngine) Messages() []widget.Message {
	return append([]widget.Message(nil), e.messages...)
}

// Pending reports whether an assistant reply is outstanding.
func (e *ConversationEngine) Pending() bool {
	return e.pending != nil
}

// Seed appends the greeting when the log is empty and reports whether it did.
func (e *ConversationEngine) Seed() bool {
	if len(e.messages) > 0 || e.greeting == "" {
		return false
	}
	e.appendMessage(widget.RoleAssistant, e.greeting)
	return true
}

// Post appends a user message and schedules exactly one assistant reply.
// Blank text and posts made while a reply is pending are rejected untouched.
func (e *ConversationEngine) Post(text string) (widget.Message, error) {
	if strings.TrimSpace(text) == "" {
		return widget.Message{}, ErrEmptyMessage
	}
	if e.pending != nil {
		return widget.Message{}, ErrReplyPending
	}

	msg := e.appendMessage(widget.RoleUser, text)

	e.replies++
	id := e.replies
	ctx, cancel := context.WithCancel(context.Background())
	p := &pendingReply{id: id, ctx: ctx, cancel: cancel}
	e.pending = p
	p.task = e.loop.AfterFunc(e.delay, func() bool { return e.dispatch(id) })

	e.logger.Debug("user message posted", zap.String("message_id", msg.ID), zap.Uint64("reply", id))
	return msg, nil
}

// Reset cancels any in-flight reply and clears the log.
func (e *ConversationEngine) Reset() {
	e.cancelPending()
	e.messages = nil
}

func (e *ConversationEngine) cancelPending() {
	if e.pending == nil {
		return
	}
	e.pending.task.Stop()
	e.pending.cancel()
	e.logger.Debug("pending reply cancelled", zap.Uint64("reply", e.pending.id))
	e.pending = nil
}

// dispatch hands the conversation to the responder. Nothing visible changes
// until deliver runs.
func (e *ConversationEngine) dispatch(id uint64) bool {
	p := e.pending
	if p == nil || p.id != id {
		return false
	}

	history := e.Messages()
	responder := e.responder
	timeout := e.timeout
	ctx := p.ctx

	e.loop.Go(func() func() bool {
		rctx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		text, err := responder.Respond(rctx, history)
		return func() bool { return e.deliver(id, text, err) }
	})
	return false
}

func (e *ConversationEngine) deliver(id uint64, text string, err error) bool {
	p := e.pending
	if p == nil || p.id != id {
		e.logger.Debug("dropping stale reply", zap.Uint64("reply", id))
		return false
	}
	p.cancel()
	e.pending = nil

	if err != nil {
		e.logger.Warn("responder failed", zap.Uint64("reply", id), zap.Error(err))
		return true
	}
	e.appendMessage(widget.RoleAssistant, text)
	return true
}

func (e *ConversationEngine) appendMessage(role widget.Role, text string) widget.Message {
	msg := widget.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		CreatedAt: e.now(),
	}
	e.messages = append(e.messages, msg)
	return msg
}
