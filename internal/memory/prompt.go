package memory

import (
	"fmt"
	"strings"

	"github.com/sandevgo/recall/internal/core"
)

const extractionSystemPrompt = "You are a memory extraction system. Output only a valid JSON array, nothing else."

func buildExtractionPrompt(msgs []core.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(strings.ToUpper(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}

	return fmt.Sprintf(
		`Extract durable, time-invariant facts about the user from this conversation: identity, preferences, relationships, skills, ongoing projects. Exclude transient state (current mood, what they are doing right now, one-off requests).

Rules:
1. Each fact is one atomic, self-contained statement.
2. Always phrase the subject as "User", never the user's literal name ("User prefers dark mode").
3. Assign each fact a category from: preference, interest, personal, technical, project, general.
4. Assign a confidence between 0 and 1.
5. Skip greetings and small talk. An empty array is a fine answer.

Output format: JSON array of {"fact", "category", "confidence"}.

Conversation:
%s`,
		b.String(),
	)
}
