// Package agent runs analysis sessions: one upstream generation is classified
// rune by rune, echoed live, then extracted into a typed record whose side
// effects land on the shared task engine.
//
// Every agent kind is the same Session state machine; what differs is the
// Policy it is given.
package agent

import (
	"fmt"
	"maps"
	"slices"

	"sageflow/internal/articulation"
	"sageflow/internal/tagstream"
	"sageflow/internal/tasks"
)

// Report describes what a finalized session did to the task engine.
type Report struct {
	Transitions []tasks.Transition `json:"transitions,omitempty"`
	AddedIDs    []string           `json:"added_ids,omitempty"`
	Warnings    []string           `json:"warnings,omitempty"`
}

// Effect decodes an extracted record and applies it to engine. engine may be
// nil, in which case only decoding happens.
type Effect func(engine *tasks.Engine, rec *articulation.Record) (value any, report Report)

// Renderer turns a decoded value into the machine content of the result event.
type Renderer func(value any) (string, error)

// Policy is the per-agent configuration of a Session.
type Policy struct {
	Agent       string // message role, e.g. "ObservationAgent"
	MessageType string
	Vocabulary  *tagstream.Vocabulary
	Displayable map[string]bool // tags echoed live
	Separator   string          // display text emitted when a displayable region starts
	Schema      articulation.Schema
	Effect      Effect
	Render      Renderer
	Prompt      *articulation.PromptAssembler
}

// Validate checks that the policy is usable by a Session.
func (p Policy) Validate() error {
	if p.Agent == "" {
		return fmt.Errorf("policy: agent name is required")
	}
	if p.Vocabulary == nil {
		return fmt.Errorf("policy %s: vocabulary is required", p.Agent)
	}
	if len(p.Schema) == 0 {
		return fmt.Errorf("policy %s: schema is empty", p.Agent)
	}
	for tag := range p.Displayable {
		if !p.Vocabulary.Contains(tag) {
			return fmt.Errorf("policy %s: displayable tag %q is not in the vocabulary", p.Agent, tag)
		}
	}
	for _, tag := range p.Schema.Tags() {
		if !p.Vocabulary.Contains(tag) {
			return fmt.Errorf("policy %s: schema tag %q is not in the vocabulary", p.Agent, tag)
		}
	}
	if p.Effect == nil || p.Render == nil {
		return fmt.Errorf("policy %s: effect and renderer are required", p.Agent)
	}
	return nil
}

// WithDisplayable returns a copy of p echoing exactly tags.
func (p Policy) WithDisplayable(tags ...string) Policy {
	p.Displayable = make(map[string]bool, len(tags))
	for _, t := range tags {
		p.Displayable[t] = true
	}
	return p
}

// WithSeparator returns a copy of p using sep between displayed regions.
func (p Policy) WithSeparator(sep string) Policy {
	p.Separator = sep
	return p
}

// WithPrompt returns a copy of p rendering prompts from text.
func (p Policy) WithPrompt(text string) (Policy, error) {
	pa, err := articulation.NewPromptAssembler(p.Agent, text, p.Schema)
	if err != nil {
		return p, err
	}
	p.Prompt = pa
	return p, nil
}

// DisplayableTags lists the echoed tags in sorted order.
func (p Policy) DisplayableTags() []string {
	return slices.Sorted(maps.Keys(p.Displayable))
}

// BuildPrompt renders the policy's prompt. When engine is non-nil and pc has
// no task status, the engine's current status projection is used.
func (p Policy) BuildPrompt(engine *tasks.Engine, pc articulation.PromptContext) (string, error) {
	if p.Prompt == nil {
		return "", fmt.Errorf("policy %s: no prompt template", p.Agent)
	}
	if pc.TaskStatus == "" && engine != nil {
		pc.TaskStatus = engine.StatusText()
	}
	return p.Prompt.Assemble(pc)
}

const (
	ObservationAgent = "ObservationAgent"
	PlanAgent        = "TaskDecomposeAgent"
	PlanningAgent    = "PlanningAgent"
)

// ObservationPolicy assesses progress. Only the analysis is echoed live; the
// completed and failed id lists drive status updates on the engine.
func ObservationPolicy() Policy {
	schema := articulation.ObservationSchema()
	prompt, _ := articulation.NewPromptAssembler(ObservationAgent, articulation.DefaultObservationPrompt, schema)
	return Policy{
		Agent:       ObservationAgent,
		MessageType: "observation_result",
		Vocabulary:  tagstream.MustVocabulary(schema.Tags()...),
		Displayable: map[string]bool{articulation.TagAnalysis: true},
		Separator:   "\n\n",
		Schema:      schema,
		Effect:      observationEffect,
		Render:      jsonRenderer("Observation: "),
		Prompt:      prompt,
	}
}

// PlanPolicy decomposes a request into tasks. Each task item is echoed as a
// bullet and registered with the engine in order.
func PlanPolicy() Policy {
	schema := articulation.PlanSchema()
	prompt, _ := articulation.NewPromptAssembler(PlanAgent, articulation.DefaultPlanPrompt, schema)
	return Policy{
		Agent:       PlanAgent,
		MessageType: "task_decomposition",
		Vocabulary:  tagstream.MustVocabulary(schema.Tags()...),
		Displayable: map[string]bool{articulation.TagTaskItem: true},
		Separator:   "\n- ",
		Schema:      schema,
		Effect:      planEffect,
		Render:      jsonRenderer("Task plan:\n"),
		Prompt:      prompt,
	}
}

// PlanningPolicy proposes the next step. The description and the expected
// output are echoed live, each as its own paragraph; the engine is not touched.
func PlanningPolicy() Policy {
	schema := articulation.NextStepSchema()
	prompt, _ := articulation.NewPromptAssembler(PlanningAgent, articulation.DefaultNextStepPrompt, schema)
	return Policy{
		Agent:       PlanningAgent,
		MessageType: "planning_result",
		Vocabulary:  tagstream.MustVocabulary(schema.Tags()...),
		Displayable: map[string]bool{
			articulation.TagNextStepDescription: true,
			articulation.TagExpectedOutput:      true,
		},
		Separator: "\n\n",
		Schema:    schema,
		Effect:    planningEffect,
		Render:    jsonRenderer("Planning: "),
		Prompt:    prompt,
	}
}

// Policies returns the built-in policies keyed by agent name.
func Policies() map[string]Policy {
	return map[string]Policy{
		ObservationAgent: ObservationPolicy(),
		PlanAgent:        PlanPolicy(),
		PlanningAgent:    PlanningPolicy(),
	}
}

func observationEffect(engine *tasks.Engine, rec *articulation.Record) (any, Report) {
	obs := articulation.NewObservation(rec)
	report := Report{Warnings: append([]string(nil), rec.Warnings...)}
	if engine == nil {
		return obs, report
	}
	for _, step := range []struct {
		ids []string
		to  tasks.Status
	}{
		{obs.CompletedTaskIDs, tasks.StatusCompleted},
		{obs.FailedTaskIDs, tasks.StatusFailed},
	} {
		trs, err := engine.UpdateStatuses(step.ids, step.to)
		if err != nil {
			report.Warnings = append(report.Warnings, err.Error())
			continue
		}
		report.Transitions = append(report.Transitions, trs...)
		report.Warnings = append(report.Warnings, tasks.Warnings(trs)...)
	}
	return obs, report
}

func planEffect(engine *tasks.Engine, rec *articulation.Record) (any, Report) {
	plan := articulation.NewPlan(rec)
	report := Report{Warnings: append([]string(nil), rec.Warnings...)}
	if engine == nil || len(plan.Tasks) == 0 {
		return plan, report
	}
	ids := engine.AddTasksBatch(plan.Descriptions())
	for i, id := range ids {
		plan.Tasks[i].TaskID = id
	}
	report.AddedIDs = ids
	return plan, report
}

func planningEffect(_ *tasks.Engine, rec *articulation.Record) (any, Report) {
	return articulation.NewNextStep(rec), Report{Warnings: append([]string(nil), rec.Warnings...)}
}

func jsonRenderer(prefix string) Renderer {
	return func(v any) (string, error) {
		return articulation.RenderJSON(prefix, v)
	}
}
