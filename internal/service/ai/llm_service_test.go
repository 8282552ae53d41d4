package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/support-widget/backend/internal/model/widget"
)

type recordingModel struct {
	reply string
	err   error
	input []*schema.Message
}

func (m *recordingModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.input = input
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *recordingModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func testPrompts() *PromptBuilder {
	return NewPromptBuilder(widget.DefaultAssistant(), widget.MustCatalog())
}

func msg(role widget.Role, text string) widget.Message {
	return widget.Message{ID: text, Role: role, Text: text, CreatedAt: time.Unix(0, 0)}
}

func TestRespondUsesHistoryAndLastUserMessage(t *testing.T) {
	fake := &recordingModel{reply: "  We build websites.  "}
	svc, err := NewServiceWithModel(context.Background(), fake, testPrompts(), nil)
	require.NoError(t, err)

	history := []widget.Message{
		msg(widget.RoleAssistant, "Hello!"),
		msg(widget.RoleUser, "What do you do?"),
	}
	reply, err := svc.Respond(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "We build websites.", reply)

	require.Len(t, fake.input, 3)
	assert.Equal(t, schema.System, fake.input[0].Role)
	assert.Contains(t, fake.input[0].Content, "Martex AI")
	assert.Equal(t, schema.Assistant, fake.input[1].Role)
	assert.Equal(t, "Hello!", fake.input[1].Content)
	assert.Equal(t, schema.User, fake.input[2].Role)
	assert.Equal(t, "What do you do?", fake.input[2].Content)
}

func TestRespondWithoutUserMessage(t *testing.T) {
	svc, err := NewServiceWithModel(context.Background(), &recordingModel{reply: "x"}, testPrompts(), nil)
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), []widget.Message{msg(widget.RoleAssistant, "Hello!")})
	assert.ErrorIs(t, err, errNoUserMessage)
}

func TestRespondModelError(t *testing.T) {
	boom := errors.New("boom")
	svc, err := NewServiceWithModel(context.Background(), &recordingModel{err: boom}, testPrompts(), nil)
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), []widget.Message{msg(widget.RoleUser, "hi")})
	assert.ErrorIs(t, err, boom)
}

func TestRespondEmptyReply(t *testing.T) {
	svc, err := NewServiceWithModel(context.Background(), &recordingModel{reply: "   "}, testPrompts(), nil)
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), []widget.Message{msg(widget.RoleUser, "hi")})
	assert.Error(t, err)
}

func TestBuildHistoryMessagesKeepsRecentTurns(t *testing.T) {
	var messages []widget.Message
	for i := range 15 {
		role := widget.RoleUser
		if i%2 == 1 {
			role = widget.RoleAssistant
		}
		messages = append(messages, msg(role, fmt.Sprintf("m%d", i)))
	}

	history := buildHistoryMessages(messages)
	require.Len(t, history, historyLimit)
	assert.Equal(t, "m5", history[0].Content)
	assert.Equal(t, "m14", history[len(history)-1].Content)
	assert.Nil(t, buildHistoryMessages(nil))
}

func TestSystemPromptListsKnowledgeBase(t *testing.T) {
	faqs := []widget.FaqEntry{{Question: "Where are you?", Answer: "Remote."}}
	prompt := NewPromptBuilder(widget.DefaultAssistant(), faqs).SystemPrompt()

	assert.Contains(t, prompt, "1. Q: Where are you?")
	assert.Contains(t, prompt, "A: Remote.")
	assert.Contains(t, prompt, "Keep replies under four sentences")
}
