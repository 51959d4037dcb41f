package tasks

import (
	"fmt"
	"strings"
)

// Render projects tasks into one line per task for use as prompt context:
//
//	- id: 1, description: Fetch data, status: pending, priority: 0
//	- id: 2, description: Summarise, status: pending, priority: 1, dependencies: 1
//
// The output is meant to be read by a generator, never parsed back.
func Render(tasks []Task) string {
	if len(tasks) == 0 {
		return "no tasks"
	}
	var sb strings.Builder
	for i, t := range tasks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "- id: %s, description: %s, status: %s, priority: %d",
			t.ID, t.Description, t.Status, t.Priority)
		if len(t.Dependencies) > 0 {
			sb.WriteString(", dependencies: ")
			sb.WriteString(strings.Join(t.Dependencies, ", "))
		}
	}
	return sb.String()
}
