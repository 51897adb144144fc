// Package prompt builds the message list sent to the completion client and
// holds the persona, language and mood helpers that shape it.
package prompt

import (
	"strings"

	"github.com/edgard/jarvis/internal/database"
	"github.com/edgard/jarvis/internal/llm"
)

// ContextHeader introduces the web context system message.
const ContextHeader = "External context follows (web search results; may be incomplete):"

// Assemble orders the request as: persona, web context when non-blank,
// history oldest first, then the user's message.
func Assemble(persona, contextBlob string, history []database.Turn, userText string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+3)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: persona})

	if strings.TrimSpace(contextBlob) != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: ContextHeader + "\n" + contextBlob})
	}

	for _, t := range history {
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}

	return append(msgs, llm.Message{Role: llm.RoleUser, Content: userText})
}
