// Package checkpoint provides thread persistence: saving and restoring
// the full agent snapshot (messages, state, todos) between invocations.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between memory, file, and key-value storage
// - Serialization format encapsulated per implementation
package checkpoint

import (
	"context"
	"time"

	"github.com/chrispangg/ai-sdk-deepagent/llm"
	"github.com/chrispangg/ai-sdk-deepagent/model"
)

// Checkpoint is a serialized snapshot sufficient to resume a thread.
// Step is monotonically non-decreasing across saves for one thread;
// UpdatedAt never precedes CreatedAt. Messages keep the provider-
// compatible shape verbatim.
type Checkpoint struct {
	ThreadID  string            `json:"thread_id"`
	Step      int               `json:"step"`
	Messages  []llm.ChatMessage `json:"messages"`
	State     *model.AgentState `json:"state"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Clone returns a deep copy of the checkpoint.
func (c *Checkpoint) Clone() *Checkpoint {
	out := &Checkpoint{
		ThreadID:  c.ThreadID,
		Step:      c.Step,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	out.Messages = make([]llm.ChatMessage, len(c.Messages))
	copy(out.Messages, c.Messages)
	for i, msg := range c.Messages {
		if msg.ToolCalls == nil {
			continue
		}
		calls := make([]llm.ToolCall, len(msg.ToolCalls))
		for j, tc := range msg.ToolCalls {
			calls[j] = tc
			calls[j].Arguments = append(tc.Arguments[:0:0], tc.Arguments...)
		}
		out.Messages[i].ToolCalls = calls
	}
	if c.State != nil {
		out.State = c.State.Clone()
	}
	return out
}

// Checkpointer persists checkpoints per thread. Implementations
// overwrite on save, refresh UpdatedAt, and preserve CreatedAt from the
// first save. Load returns nil (not an error) for missing or corrupt
// threads.
type Checkpointer interface {
	Save(ctx context.Context, cp *Checkpoint) error
	Load(ctx context.Context, threadID string) (*Checkpoint, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, threadID string) error
	Exists(ctx context.Context, threadID string) (bool, error)
}

// stamp applies the shared save-time bookkeeping: UpdatedAt refreshes,
// CreatedAt sticks to the first save.
func stamp(cp *Checkpoint, existing *Checkpoint) *Checkpoint {
	saved := cp.Clone()
	now := time.Now().UTC()
	saved.UpdatedAt = now
	if existing != nil && !existing.CreatedAt.IsZero() {
		saved.CreatedAt = existing.CreatedAt
	} else if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	return saved
}
