package summary

import (
	"fmt"
	"strings"

	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/pkg/conv"
)

const summarySystemPrompt = "You are a conversation summarizer. Output only the summary text, no preamble."

func buildSummaryPrompt(prior string, msgs []core.Message, maxWords int) string {
	conversation := formatConversation(msgs)

	if prior == "" {
		return fmt.Sprintf(
			`Summarize the following conversation as a single paragraph of at most %d words. Keep names, decisions, preferences and open tasks; drop greetings and filler.

Conversation:
%s`,
			maxWords, conversation,
		)
	}

	return fmt.Sprintf(
		`Below is an existing summary of an ongoing conversation, followed by newer messages. Merge them into ONE updated summary paragraph of at most %d words. Do not concatenate: rewrite so older details compress further while new details enter. Keep names, decisions, preferences and open tasks.

Existing summary:
%s

New messages:
%s`,
		maxWords, prior, conversation,
	)
}

func formatConversation(msgs []core.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		content := m.Content
		if m.Role == core.RoleAssistant {
			// Assistant replies carry markdown; flatten it so the
			// summarizer sees prose instead of formatting syntax.
			content = conv.MarkdownToText(content)
		}
		b.WriteString(strings.ToUpper(m.Role))
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(content))
		b.WriteByte('\n')
	}
	return b.String()
}
