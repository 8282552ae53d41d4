package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/support-widget/backend/internal/config"
	"github.com/zhouzirui/support-widget/backend/internal/model/widget"
)

const historyLimit = 10

var errNoUserMessage = errors.New("conversation has no user message to answer")

// Service answers widget conversations with an Ark chat model.
type Service struct {
	prompts *PromptBuilder
	chain   compose.Runnable[map[string]any, *schema.Message]
	logger  *zap.Logger
}

// NewService creates the chat model from cfg and compiles the reply chain.
func NewService(ctx context.Context, cfg config.AIConfig, prompts *PromptBuilder, logger *zap.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, prompts, logger)
}

// NewServiceWithModel compiles the reply chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, prompts *PromptBuilder, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{prompts: prompts, chain: runnable, logger: logger}, nil
}

// Respond answers the last user message of history.
func (s *Service) Respond(ctx context.Context, history []widget.Message) (string, error) {
	input, err := s.buildChainInput(history)
	if err != nil {
		return "", err
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	reply := strings.TrimSpace(response.Content)
	if reply == "" {
		return "", errors.New("chat model returned an empty reply")
	}

	s.logger.Debug("generated reply", zap.Int("history", len(history)), zap.Int("length", len(reply)))
	return reply, nil
}

func (s *Service) buildChainInput(history []widget.Message) (map[string]any, error) {
	last := -1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == widget.RoleUser {
			last = i
			break
		}
	}
	if last < 0 {
		return nil, errNoUserMessage
	}

	return map[string]any{
		"system":  s.prompts.SystemPrompt(),
		"history": buildHistoryMessages(history[:last]),
		"query":   history[last].Text,
	}, nil
}

func buildHistoryMessages(messages []widget.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Role {
		case widget.RoleUser:
			history = append(history, schema.UserMessage(msg.Text))
		case widget.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Text, nil))
		}
	}

	return history
}
