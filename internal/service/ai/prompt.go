package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/support-widget/backend/internal/model/widget"
)

// PromptBuilder renders the system prompt for the support assistant.
type PromptBuilder struct {
	assistant widget.Assistant
	faqs      []widget.FaqEntry
	rules     []string
}

// NewPromptBuilder grounds the assistant in the FAQ catalog.
func NewPromptBuilder(assistant widget.Assistant, faqs []widget.FaqEntry) *PromptBuilder {
	return &PromptBuilder{
		assistant: assistant,
		faqs:      append([]widget.FaqEntry(nil), faqs...),
		rules: []string{
			"Only answer questions about the agency and its services",
			"Prefer the knowledge base below; never invent prices, dates or guarantees",
			"If you cannot help, suggest scheduling a consultation or requesting a callback",
			"Keep replies under four sentences",
		},
	}
}

// SystemPrompt returns the full system prompt.
func (b *PromptBuilder) SystemPrompt() string {
	var kb strings.Builder
	for i, faq := range b.faqs {
		fmt.Fprintf(&kb, "%d. Q: %s\n   A: %s\n", i+1, faq.Question, faq.Answer)
	}

	return fmt.Sprintf(`You are %s, the support assistant embedded on the agency website.

Style:
- %s

Rules:
- %s

Knowledge base:
%s`,
		b.assistant.Name,
		b.assistant.PromptHint,
		strings.Join(b.rules, "\n- "),
		strings.TrimRight(kb.String(), "\n"),
	)
}
