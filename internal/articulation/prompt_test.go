package articulation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSection(t *testing.T) {
	got := FormatSection(Schema{
		{Tag: "done", Kind: KindBool},
		{Tag: "ids", Kind: KindList},
		{Tag: "item", Kind: KindRepeated},
	})
	assert.Equal(t, "<done>bool</done>\n"+
		`<ids>JSON array of strings, e.g. ["a", "b"]</ids>`+"\n"+
		"<item>one per item; repeat the tag</item>", got)
}

func TestPromptAssembler(t *testing.T) {
	pa, err := NewPromptAssembler("obs", DefaultObservationPrompt, ObservationSchema())
	require.NoError(t, err)

	out, err := pa.Assemble(PromptContext{
		TaskDescription:  "Summarise the match",
		TaskStatus:       "- id: 1, description: Fetch, status: pending, priority: 0",
		ExecutionResults: "fetched 3 rows",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "## Current task\nSummarise the match")
	assert.Contains(t, out, "fetched 3 rows")
	assert.True(t, strings.HasSuffix(out, "<failed_task_ids>"+`JSON array of strings, e.g. ["a", "b"]`+"</failed_task_ids>"))

	out, err = pa.Assemble(PromptContext{Format: "custom"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "custom"))

	_, err = NewPromptAssembler("bad", "{{.Nope", nil)
	assert.Error(t, err)

	pa, err = NewPromptAssembler("unknown_field", "{{.Missing}}", nil)
	require.NoError(t, err)
	_, err = pa.Assemble(PromptContext{})
	assert.Error(t, err)
}
