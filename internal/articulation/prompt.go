package articulation

import (
	"fmt"
	"strings"
	"text/template"
)

// =============================================================================
// PROMPT ASSEMBLER - Per-agent prompt rendering
// =============================================================================
// Prompt wording is configuration: each agent policy carries its own template
// and the assembler only fills in the context it is handed.

// PromptContext is the data a prompt template may reference.
type PromptContext struct {
	TaskDescription  string
	TaskStatus       string // tasks.Render output
	ExecutionResults string
	Format           string // filled from the schema when empty
}

// PromptAssembler renders one parsed template.
type PromptAssembler struct {
	tmpl   *template.Template
	schema Schema
}

// NewPromptAssembler parses text as a text/template. The schema supplies the
// default {{.Format}} section.
func NewPromptAssembler(name, text string, schema Schema) (*PromptAssembler, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	return &PromptAssembler{tmpl: tmpl, schema: schema}, nil
}

// Assemble renders the template for ctx.
func (pa *PromptAssembler) Assemble(ctx PromptContext) (string, error) {
	if ctx.Format == "" {
		ctx.Format = FormatSection(pa.schema)
	}
	var sb strings.Builder
	if err := pa.tmpl.Execute(&sb, ctx); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", pa.tmpl.Name(), err)
	}
	return sb.String(), nil
}

// FormatSection lists the expected tags in schema order, one marker pair per
// line, so the generator knows exactly which markers to emit.
func FormatSection(schema Schema) string {
	var sb strings.Builder
	for _, f := range schema {
		hint := f.Kind.String()
		if f.Kind == KindList {
			hint = `JSON array of strings, e.g. ["a", "b"]`
		}
		if f.Kind == KindRepeated {
			hint = "one per item; repeat the tag"
		}
		fmt.Fprintf(&sb, "<%s>%s</%s>\n", f.Tag, hint, f.Tag)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// DefaultObservationPrompt is the stock progress-assessment template.
const DefaultObservationPrompt = `# Task execution review

## Current task
{{.TaskDescription}}

## Task manager status
{{.TaskStatus}}

## Recent execution results
{{.ExecutionResults}}

## Instructions
1. Judge whether the execution so far satisfies the task.
2. Ask the user for more input only when it is truly required.
3. Decide whether the task is finished and estimate completion from 0 to 100.
4. Mark task ids as completed or failed only on the evidence of actual results.
5. Output only the tags below, in this order, with no other text.

{{.Format}}`

// DefaultPlanPrompt is the stock task-decomposition template.
const DefaultPlanPrompt = `# Task decomposition

## Request
{{.TaskDescription}}

## Existing tasks
{{.TaskStatus}}

Break the request into a short ordered list of independent, verifiable subtasks.
Output only the tags below, with no other text.

{{.Format}}`

// DefaultNextStepPrompt is the stock next-step planning template.
const DefaultNextStepPrompt = `# Next step planning

## Full task
{{.TaskDescription}}

## Task manager status
{{.TaskStatus}}

## Recently completed work
{{.ExecutionResults}}

## Rules
1. Describe the concrete next step that advances the unfinished subtasks.
2. The step must be executable and measurable.
3. Prefer existing tools; list between five and ten candidate tool names.
4. State clear success criteria.
5. Output only the tags below, each marker on its own line, with no other text.

{{.Format}}`
