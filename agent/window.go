// Context-window management: tool-result eviction and message
// summarization.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/chrispangg/ai-sdk-deepagent/internal/textutil"
	"github.com/chrispangg/ai-sdk-deepagent/llm"
)

// evictionDir is where oversized tool results land in the virtual
// filesystem.
const evictionDir = "/tool-results"

// maybeEvict rewrites an oversized tool result into the filesystem and
// returns a short reference the model can follow with read_file. The
// original text is returned untouched when it fits or when the write
// fails; the result is never lost.
func (a *Agent) maybeEvict(ctx context.Context, toolName, toolCallID, text string) string {
	tokens := textutil.EstimateTokens(text)
	if tokens <= a.cfg.EvictionLimit {
		return text
	}

	path := fmt.Sprintf("%s/%s-%s.txt", evictionDir, toolName, toolCallID)
	if err := a.cfg.Backend.Write(ctx, path, text); err != nil {
		a.cfg.Logger.Warn().Err(err).Str("path", path).Msg("tool result eviction failed")
		return text
	}

	a.cfg.Logger.Debug().Str("tool", toolName).Str("path", path).Int("tokens", tokens).Msg("evicted tool result")
	return fmt.Sprintf(
		"Tool result was too large to keep in the conversation (~%d tokens, %d characters). The full output was written to %s; use read_file to inspect it.",
		tokens, len(text), path,
	)
}

// estimateMessages approximates the token footprint of the buffer.
func estimateMessages(messages []llm.ChatMessage) int {
	total := 0
	for _, m := range messages {
		total += textutil.EstimateTokens(m.Content)
		for _, tc := range m.ToolCalls {
			total += textutil.EstimateTokens(tc.Name) + textutil.EstimateTokens(string(tc.Arguments))
		}
	}
	return total
}

// maybeSummarize compresses the buffer when it exceeds the token
// threshold: everything but the most recent messages is replaced by one
// model-generated summary carried as a system message. The recent tail
// is never split inside a tool-call/tool-result pair. On any failure
// the buffer passes through unchanged.
func (a *Agent) maybeSummarize(ctx context.Context, messages []llm.ChatMessage) []llm.ChatMessage {
	if estimateMessages(messages) <= a.cfg.TokenThreshold {
		return messages
	}
	keep := a.cfg.KeepMessages
	if len(messages) <= keep {
		return messages
	}

	// Preserve an original system prompt outside the summarized prefix.
	head := []llm.ChatMessage{}
	body := messages
	if body[0].Role == "system" {
		head = body[:1]
		body = body[1:]
	}
	if len(body) <= keep {
		return messages
	}

	cut := len(body) - keep
	// A tool result must stay with the assistant message that called
	// it; widen the kept tail until the boundary is clean.
	for cut > 0 && body[cut].Role == "tool" {
		cut--
	}
	if cut <= 0 {
		return messages
	}

	summary, err := a.summarize(ctx, body[:cut])
	if err != nil {
		a.cfg.Logger.Warn().Err(err).Msg("summarization failed; keeping full buffer")
		return messages
	}

	compressed := make([]llm.ChatMessage, 0, len(head)+1+keep)
	compressed = append(compressed, head...)
	compressed = append(compressed, llm.ChatMessage{
		Role:    "system",
		Content: "[Conversation summary]\n" + summary,
	})
	compressed = append(compressed, body[cut:]...)

	a.cfg.Logger.Debug().Int("before", len(messages)).Int("after", len(compressed)).Msg("summarized conversation")
	return compressed
}

// summarize asks the model to compress the given messages.
func (a *Agent) summarize(ctx context.Context, messages []llm.ChatMessage) (string, error) {
	var b strings.Builder
	b.WriteString("Summarize the following conversation context concisely. ")
	b.WriteString("Preserve key decisions, file paths, tool results, and important details. ")
	b.WriteString("Keep the summary under 2000 words.\n\n")
	for _, m := range messages {
		content := m.Content
		for _, tc := range m.ToolCalls {
			content += fmt.Sprintf("\n[tool call: %s %s]", tc.Name, tc.Arguments)
		}
		fmt.Fprintf(&b, "[%s] %s\n\n", m.Role, content)
	}

	return a.client.Chat(ctx, []llm.ChatMessage{
		{Role: "user", Content: b.String()},
	})
}
