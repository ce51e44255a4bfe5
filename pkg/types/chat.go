// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Role identifies the speaker of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one entry of conversation history. The caller owns the
// history; the orchestrator only reads it.
type ChatTurn struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// ToolPhase marks the lifecycle point of a tool dispatch.
type ToolPhase string

const (
	ToolStart ToolPhase = "start"
	ToolEnd   ToolPhase = "end"
)

// ToolEvent describes a tool dispatch. It is never persisted.
type ToolEvent struct {
	ToolName string    `json:"tool_name"`
	Phase    ToolPhase `json:"phase"`
	Payload  string    `json:"payload,omitempty"`
}

// EventKind classifies a StreamEvent.
type EventKind string

const (
	// EventNotice is a lifecycle notice emitted when a tool dispatch begins.
	EventNotice EventKind = "notice"

	// EventText is a fragment of model output.
	EventText EventKind = "text"

	// EventError is the single bracketed error fragment that ends a
	// failed turn.
	EventError EventKind = "error"
)

// StreamEvent is one fragment of a chat turn's output stream. Clients
// render a turn by concatenating Text in emission order.
type StreamEvent struct {
	Kind EventKind  `json:"kind"`
	Text string     `json:"text"`
	Tool *ToolEvent `json:"tool,omitempty"`
}
