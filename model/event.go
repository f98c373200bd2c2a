package model

import "encoding/json"

// EventType identifies an event emitted by the agent loop. The set is
// closed: consumers can switch exhaustively over these values.
type EventType string

const (
	EventText              EventType = "text"
	EventTextSegment       EventType = "text-segment"
	EventStepStart         EventType = "step-start"
	EventToolCall          EventType = "tool-call"
	EventToolResult        EventType = "tool-result"
	EventTodosChanged      EventType = "todos-changed"
	EventFileWriteStart    EventType = "file-write-start"
	EventFileWritten       EventType = "file-written"
	EventFileEdited        EventType = "file-edited"
	EventFileRead          EventType = "file-read"
	EventLs                EventType = "ls"
	EventGlob              EventType = "glob"
	EventGrep              EventType = "grep"
	EventExecuteStart      EventType = "execute-start"
	EventExecuteFinish     EventType = "execute-finish"
	EventWebSearchStart    EventType = "web-search-start"
	EventWebSearchFinish   EventType = "web-search-finish"
	EventHTTPRequestStart  EventType = "http-request-start"
	EventHTTPRequestFinish EventType = "http-request-finish"
	EventFetchURLStart     EventType = "fetch-url-start"
	EventFetchURLFinish    EventType = "fetch-url-finish"
	EventSubagentStart     EventType = "subagent-start"
	EventSubagentStep      EventType = "subagent-step"
	EventSubagentFinish    EventType = "subagent-finish"
	EventUserMessage       EventType = "user-message"
	EventDone              EventType = "done"
	EventError             EventType = "error"
	EventApprovalRequested EventType = "approval-requested"
	EventApprovalResponse  EventType = "approval-response"
	EventCheckpointSaved   EventType = "checkpoint-saved"
	EventCheckpointLoaded  EventType = "checkpoint-loaded"
)

// Event is one entry in the agent's event stream. Events are ephemeral:
// they are delivered to a single consumer and never persisted. Only the
// fields relevant to the Type are populated.
type Event struct {
	Type EventType `json:"type"`

	// Text carries streamed model text (text, text-segment) or a final
	// answer (done), result payloads (tool-result), and error messages
	// (error).
	Text string `json:"text,omitempty"`

	// Step is the loop step the event belongs to (step-start,
	// checkpoint-saved, subagent-step).
	Step int `json:"step,omitempty"`

	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`

	Path    string `json:"path,omitempty"`
	Pattern string `json:"pattern,omitempty"`
	Query   string `json:"query,omitempty"`
	URL     string `json:"url,omitempty"`
	Command string `json:"command,omitempty"`

	Todos []Todo `json:"todos,omitempty"`

	Request  *ApprovalRequest `json:"request,omitempty"`
	Approved bool             `json:"approved,omitempty"`

	Subagent string `json:"subagent,omitempty"`

	ThreadID      string `json:"thread_id,omitempty"`
	MessagesCount int    `json:"messages_count,omitempty"`

	// Output is the structured final output when an output schema was
	// configured (done).
	Output json.RawMessage `json:"output,omitempty"`

	// State is the final agent state (done).
	State *AgentState `json:"state,omitempty"`
}

// Emitter delivers events from tools back to the stream owner. The agent
// core passes one into every tool it binds; a nil-safe no-op is used
// when tools run outside a loop.
type Emitter func(Event)

// Emit sends through the emitter if one is set.
func (e Emitter) Emit(ev Event) {
	if e != nil {
		e(ev)
	}
}
