package generation

import (
	"context"
	"fmt"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// TaskType selects the system prompt and, for code, the model.
type TaskType string

const (
	TaskGeneral       TaskType = "general"
	TaskCode          TaskType = "code"
	TaskDocumentation TaskType = "documentation"
	TaskDebugging     TaskType = "debugging"
	TaskArchitecture  TaskType = "architecture"
)

// Message is one chat message sent to a generator.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Generation is the answer of a generator.
type Generation struct {
	Text    string `json:"response"`
	Model   string `json:"model"`
	KeyUsed string `json:"api_key_used,omitempty"`
	Demo    bool   `json:"demo_mode,omitempty"`
}

// Generator produces a chat completion for a list of messages.
type Generator interface {
	Generate(ctx context.Context, messages []Message, taskType TaskType) (*Generation, error)
}

// DemoGenerator echoes the last message. It stands in for a real model
// when no API key is configured and in tests.
type DemoGenerator struct{}

// Generate returns a canned response for the last message.
func (DemoGenerator) Generate(ctx context.Context, messages []Message, taskType TaskType) (*Generation, error) {
	last := "No message"
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}

	return &Generation{
		Text:  fmt.Sprintf("[DEMO MODE] This is a simulated response for: %s. Configure API keys for real functionality.", last),
		Model: "demo",
		Demo:  true,
	}, nil
}
