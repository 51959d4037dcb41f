package articulation

// =============================================================================
// FIELD SCHEMAS
// =============================================================================
// A Schema lists the tagged fields an agent's output must carry, in the order
// the prompt asks for them. Extract walks it to build a Record.

// Kind is the value type of a tagged field.
type Kind int

const (
	KindText     Kind = iota // trimmed free text
	KindBool                 // "true" (any case) or false
	KindInt                  // decimal integer, unclamped
	KindList                 // list literal with graceful fallback
	KindRepeated             // every occurrence of the tag, in order
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindList:
		return "list"
	case KindRepeated:
		return "repeated"
	default:
		return "unknown"
	}
}

// Field describes one tagged field.
type Field struct {
	Tag      string
	Kind     Kind
	Required bool
	Default  any // used when an optional field is absent
}

// Schema is an ordered field list.
type Schema []Field

// Tags returns the field tags in schema order, suitable for building a
// tagstream vocabulary.
func (s Schema) Tags() []string {
	tags := make([]string, len(s))
	for i, f := range s {
		tags[i] = f.Tag
	}
	return tags
}

// Observation field tags.
const (
	TagNeedsMoreInput   = "needs_more_input"
	TagFinishPercent    = "finish_percent"
	TagIsCompleted      = "is_completed"
	TagAnalysis         = "analysis"
	TagSuggestions      = "suggestions"
	TagUserQuery        = "user_query"
	TagCompletedTaskIDs = "completed_task_ids"
	TagPendingTaskIDs   = "pending_task_ids"
	TagFailedTaskIDs    = "failed_task_ids"

	TagTaskItem = "task_item"

	TagNextStepDescription = "next_step_description"
	TagRequiredTools       = "required_tools"
	TagExpectedOutput      = "expected_output"
	TagSuccessCriteria     = "success_criteria"
)

// ObservationSchema is the progress-assessment output: six required fields
// followed by three optional task-id lists that default to empty.
func ObservationSchema() Schema {
	return Schema{
		{Tag: TagNeedsMoreInput, Kind: KindBool, Required: true},
		{Tag: TagFinishPercent, Kind: KindInt, Required: true},
		{Tag: TagIsCompleted, Kind: KindBool, Required: true},
		{Tag: TagAnalysis, Kind: KindText, Required: true},
		{Tag: TagSuggestions, Kind: KindList, Required: true},
		{Tag: TagUserQuery, Kind: KindText, Required: true},
		{Tag: TagCompletedTaskIDs, Kind: KindList, Default: []string{}},
		{Tag: TagPendingTaskIDs, Kind: KindList, Default: []string{}},
		{Tag: TagFailedTaskIDs, Kind: KindList, Default: []string{}},
	}
}

// PlanSchema is the task-decomposition output: one or more <task_item> tags.
func PlanSchema() Schema {
	return Schema{
		{Tag: TagTaskItem, Kind: KindRepeated, Required: true},
	}
}

// NextStepSchema is the planning output: four required text fields describing
// the next step to execute.
func NextStepSchema() Schema {
	return Schema{
		{Tag: TagNextStepDescription, Kind: KindText, Required: true},
		{Tag: TagRequiredTools, Kind: KindText, Required: true},
		{Tag: TagExpectedOutput, Kind: KindText, Required: true},
		{Tag: TagSuccessCriteria, Kind: KindText, Required: true},
	}
}
