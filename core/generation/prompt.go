package generation

import (
	"fmt"
	"strings"

	"github.com/siherrmann/nexus/model"
)

// DefaultMaxContextLength is the character budget of the retrieved context.
const DefaultMaxContextLength = 6000

// DefaultSystemPrompt is the base prompt for every task type.
const DefaultSystemPrompt = "You are Nexus, a development assistant answering from the retrieved project context."

var taskModifiers = map[TaskType]string{
	TaskCode:          "\nFocus on code analysis, generation, and technical accuracy.",
	TaskDocumentation: "\nProvide comprehensive, well-structured documentation.",
	TaskDebugging:     "\nAnalyze errors systematically and provide clear solutions.",
	TaskArchitecture:  "\nThink about system design and component interactions.",
}

// ParseTaskType parses a task type, an empty string means general.
func ParseTaskType(s string) (TaskType, error) {
	switch t := TaskType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TaskGeneral, nil
	case TaskGeneral, TaskCode, TaskDocumentation, TaskDebugging, TaskArchitecture:
		return t, nil
	default:
		return "", fmt.Errorf("unknown task type %q", s)
	}
}

// BuildSystemPrompt appends the task specific instruction to the base prompt.
// An empty base uses DefaultSystemPrompt.
func BuildSystemPrompt(base string, taskType TaskType) string {
	if base == "" {
		base = DefaultSystemPrompt
	}
	return base + taskModifiers[taskType]
}

// ResultSource names where a retrieved result came from.
func ResultSource(r *model.RetrievalResult) string {
	for _, key := range []string{"file_path", "source", "title", "document_rid"} {
		if v, ok := r.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	if r.ItemID != "" {
		return r.ItemID
	}
	return "unknown"
}

// PrepareContext formats results as "[Source: ...]" blocks separated by
// "---". Results are added in order until the next block would exceed
// maxLength characters.
func PrepareContext(results []*model.RetrievalResult, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxContextLength
	}

	parts := []string{}
	length := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		content, _ := r.Metadata["content"].(string)
		formatted := fmt.Sprintf("[Source: %s]\n%s\n", ResultSource(r), content)

		if length+len(formatted) > maxLength {
			break
		}
		parts = append(parts, formatted)
		length += len(formatted)
	}

	return strings.Join(parts, "\n---\n")
}
