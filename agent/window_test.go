package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/chrispangg/ai-sdk-deepagent/llm"
)

func newWindowAgent(t *testing.T, provider llm.Provider, threshold int) *Agent {
	t.Helper()
	a, err := New(Config{Provider: provider, TokenThreshold: threshold})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return a
}

func chatMessages(n int) []llm.ChatMessage {
	messages := make([]llm.ChatMessage, 0, n)
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		messages = append(messages, llm.ChatMessage{
			Role:    role,
			Content: strings.Repeat("words and more words ", 20),
		})
	}
	return messages
}

func TestSummarizationCompressesBuffer(t *testing.T) {
	provider := &fakeProvider{
		script:  []llm.LLMResponse{{Content: "final"}},
		summary: "what happened before",
	}
	a := newWindowAgent(t, provider, 100)

	collect(t, a, Request{Messages: chatMessages(12)})

	// The tool-loop model call must have seen the compressed buffer:
	// one summary message plus the six most recent.
	buffer := provider.buffers[0]
	if len(buffer) != 7 {
		t.Fatalf("expected buffer of 7 after summarization, got %d", len(buffer))
	}
	if buffer[0].Role != "system" || !strings.HasPrefix(buffer[0].Content, "[Conversation summary]") {
		t.Errorf("first message should be the summary: %+v", buffer[0])
	}
	if !strings.Contains(buffer[0].Content, "what happened before") {
		t.Errorf("summary should carry the model's text: %q", buffer[0].Content)
	}
}

func TestSummarizationIdempotentUnderThreshold(t *testing.T) {
	provider := &fakeProvider{summary: "s"}
	a := newWindowAgent(t, provider, 100)

	messages := chatMessages(12)
	once := a.maybeSummarize(context.Background(), messages)
	if len(once) != 7 {
		t.Fatalf("expected 7 messages after first pass, got %d", len(once))
	}

	twice := a.maybeSummarize(context.Background(), once)
	if len(twice) != len(once) {
		t.Errorf("second pass on a compressed buffer should be a no-op: %d vs %d", len(twice), len(once))
	}
	for i := range once {
		if twice[i].Content != once[i].Content {
			t.Errorf("message %d changed on second pass", i)
		}
	}
}

func TestSummarizationSkipsSmallBuffers(t *testing.T) {
	provider := &fakeProvider{}
	a := newWindowAgent(t, provider, 100)

	messages := chatMessages(4) // over threshold by tokens, under by count
	out := a.maybeSummarize(context.Background(), messages)
	if len(out) != 4 {
		t.Errorf("buffers at or below keepMessages must pass through, got %d", len(out))
	}
}

func TestSummarizationNeverSplitsToolPairs(t *testing.T) {
	provider := &fakeProvider{summary: "s"}
	a := newWindowAgent(t, provider, 100)

	big := strings.Repeat("x", 200)
	// The cut boundary (len-keep = 5) lands inside the c1/c2 result
	// batch; the kept tail must widen back to the assistant call.
	messages := []llm.ChatMessage{
		{Role: "user", Content: big},
		{Role: "assistant", Content: big},
		{Role: "user", Content: big},
		{Role: "assistant", Content: big, ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "ls", Arguments: []byte("{}")},
			{ID: "c2", Name: "ls", Arguments: []byte("{}")},
		}},
		{Role: "tool", Content: big, ToolCallID: "c1"},
		{Role: "tool", Content: big, ToolCallID: "c2"},
		{Role: "assistant", Content: big},
		{Role: "user", Content: big},
		{Role: "assistant", Content: big},
		{Role: "user", Content: big},
		{Role: "assistant", Content: big},
	}

	out := a.maybeSummarize(context.Background(), messages)
	// Walk the kept tail: no tool message may appear without its
	// assistant call earlier in the kept slice.
	for i, m := range out {
		if m.Role != "tool" {
			continue
		}
		found := false
		for j := 0; j < i; j++ {
			for _, tc := range out[j].ToolCalls {
				if tc.ID == m.ToolCallID {
					found = true
				}
			}
		}
		if !found {
			t.Errorf("tool result %q split from its call", m.ToolCallID)
		}
	}
}

func TestSummarizationPreservesSystemPrompt(t *testing.T) {
	provider := &fakeProvider{summary: "s"}
	a := newWindowAgent(t, provider, 100)

	messages := append([]llm.ChatMessage{
		{Role: "system", Content: "you are the agent"},
	}, chatMessages(12)...)

	out := a.maybeSummarize(context.Background(), messages)
	if out[0].Role != "system" || out[0].Content != "you are the agent" {
		t.Errorf("original system prompt must survive: %+v", out[0])
	}
	if !strings.HasPrefix(out[1].Content, "[Conversation summary]") {
		t.Errorf("summary should follow the system prompt: %+v", out[1])
	}
}
