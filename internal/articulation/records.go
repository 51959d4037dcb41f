package articulation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Observation is the decoded progress assessment of one observation session.
type Observation struct {
	NeedsMoreInput   bool     `json:"needs_more_input"`
	FinishPercent    int      `json:"finish_percent"`
	IsCompleted      bool     `json:"is_completed"`
	Analysis         string   `json:"analysis"`
	Suggestions      []string `json:"suggestions"`
	UserQuery        string   `json:"user_query"`
	CompletedTaskIDs []string `json:"completed_task_ids"`
	PendingTaskIDs   []string `json:"pending_task_ids"`
	FailedTaskIDs    []string `json:"failed_task_ids"`
}

// NewObservation decodes a record extracted with ObservationSchema.
func NewObservation(rec *Record) Observation {
	return Observation{
		NeedsMoreInput:   rec.Bool(TagNeedsMoreInput),
		FinishPercent:    rec.Int(TagFinishPercent),
		IsCompleted:      rec.Bool(TagIsCompleted),
		Analysis:         rec.Text(TagAnalysis),
		Suggestions:      rec.List(TagSuggestions),
		UserQuery:        rec.Text(TagUserQuery),
		CompletedTaskIDs: rec.List(TagCompletedTaskIDs),
		PendingTaskIDs:   rec.List(TagPendingTaskIDs),
		FailedTaskIDs:    rec.List(TagFailedTaskIDs),
	}
}

// ExtractObservation is Extract with ObservationSchema followed by decoding.
func ExtractObservation(text string) (Observation, error) {
	rec, err := Extract(text, ObservationSchema())
	if err != nil {
		return Observation{}, err
	}
	return NewObservation(rec), nil
}

// Plan is the decoded output of a task-decomposition session.
type Plan struct {
	Tasks []PlanItem `json:"tasks"`
}

// PlanItem is one decomposed task. TaskID is filled in once the task has
// been registered with the engine.
type PlanItem struct {
	Description string `json:"description"`
	TaskID      string `json:"task_id,omitempty"`
}

// NewPlan decodes a record extracted with PlanSchema.
func NewPlan(rec *Record) Plan {
	items := rec.List(TagTaskItem)
	p := Plan{Tasks: make([]PlanItem, len(items))}
	for i, d := range items {
		p.Tasks[i] = PlanItem{Description: d}
	}
	return p
}

// Descriptions returns the task descriptions in plan order.
func (p Plan) Descriptions() []string {
	out := make([]string, len(p.Tasks))
	for i, t := range p.Tasks {
		out[i] = t.Description
	}
	return out
}

// NextStep is the decoded output of a planning session.
type NextStep struct {
	Step NextStepDetail `json:"next_step"`
}

// NextStepDetail describes the step the executor should take next.
// RequiredTools is kept verbatim as the generator wrote it.
type NextStepDetail struct {
	Description     string `json:"description"`
	RequiredTools   string `json:"required_tools"`
	ExpectedOutput  string `json:"expected_output"`
	SuccessCriteria string `json:"success_criteria"`
}

// NewNextStep decodes a record extracted with NextStepSchema.
func NewNextStep(rec *Record) NextStep {
	return NextStep{Step: NextStepDetail{
		Description:     rec.Text(TagNextStepDescription),
		RequiredTools:   rec.Text(TagRequiredTools),
		ExpectedOutput:  rec.Text(TagExpectedOutput),
		SuccessCriteria: rec.Text(TagSuccessCriteria),
	}}
}

// RenderJSON marshals v after prefix without HTML escaping, so angle brackets
// in analysed text stay readable in the machine content channel.
func RenderJSON(prefix string, v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("render %T: %w", v, err)
	}
	return prefix + string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
