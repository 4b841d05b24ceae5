package judging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdictDirectJSON(t *testing.T) {
	p := NewParser()
	raw := `{"winner": "b", "reasoning": "b was more thorough", "scores": [
		{"backend_id": "a", "score": 70, "strengths": ["concise"], "weaknesses": ["shallow"]},
		{"backend_id": "b", "score": 90, "strengths": ["thorough"], "weaknesses": []}
	]}`

	winner, reasoning, scores := p.ParseVerdict(raw, []string{"a", "b"})

	assert.Equal(t, "b", winner)
	assert.Equal(t, "b was more thorough", reasoning)
	require.Len(t, scores, 2)
	assert.Equal(t, "a", scores[0].BackendID)
	assert.Equal(t, 70.0, scores[0].Score)
	assert.Equal(t, []string{"concise"}, scores[0].Strengths)
	assert.Equal(t, 90.0, scores[1].Score)
}

func TestParseVerdictFencedJSON(t *testing.T) {
	p := NewParser()
	raw := "Here is my evaluation:\n```json\n" +
		`{"winner": "a", "reasoning": "clearer structure", "scores": [{"backend_id": "a", "score": 85}]}` +
		"\n```\nHope that helps!"

	winner, reasoning, scores := p.ParseVerdict(raw, []string{"a", "b"})

	assert.Equal(t, "a", winner)
	assert.Equal(t, "clearer structure", reasoning)
	require.Len(t, scores, 2)
	assert.Equal(t, 85.0, scores[0].Score)
	// The judge skipped b; it gets a neutral entry.
	assert.Equal(t, NeutralScore, scores[1].Score)
}

func TestParseVerdictEmbeddedInProse(t *testing.T) {
	p := NewParser()
	raw := `After careful thought I decided {"winner": "a", "reasoning": "most accurate", "scores": [{"backend_id": "a", "score": 80}, {"backend_id": "b", "score": 60}]} as shown above.`

	winner, _, scores := p.ParseVerdict(raw, []string{"a", "b"})

	assert.Equal(t, "a", winner)
	assert.Len(t, scores, 2)
}

func TestParseVerdictRepairsSloppyJSON(t *testing.T) {
	p := NewParser()
	// Trailing comma makes this invalid JSON; the repair pass fixes it.
	raw := `{"winner": "a", "reasoning": "best coverage", "scores": [{"backend_id": "a", "score": 75},]}`

	winner, reasoning, _ := p.ParseVerdict(raw, []string{"a", "b"})

	assert.Equal(t, "a", winner)
	assert.Equal(t, "best coverage", reasoning)
}

func TestParseVerdictGarbageFallsBack(t *testing.T) {
	p := NewParser()

	winner, reasoning, scores := p.ParseVerdict("I refuse to answer in the requested format.", []string{"x", "y"})

	assert.Equal(t, "x", winner)
	assert.Equal(t, FallbackReasoning, reasoning)
	require.Len(t, scores, 2)
	for i, id := range []string{"x", "y"} {
		assert.Equal(t, id, scores[i].BackendID)
		assert.Equal(t, NeutralScore, scores[i].Score)
		assert.Empty(t, scores[i].Strengths)
		assert.Empty(t, scores[i].Weaknesses)
	}
}

func TestParseVerdictUnknownWinnerFallsBack(t *testing.T) {
	p := NewParser()
	raw := `{"winner": "stranger", "reasoning": "I liked it", "scores": [{"backend_id": "a", "score": 80}]}`

	winner, reasoning, _ := p.ParseVerdict(raw, []string{"a", "b"})

	assert.Equal(t, "a", winner)
	assert.Equal(t, FallbackReasoning, reasoning)
}

func TestParseVerdictMissingFieldsFallsBack(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "no winner", raw: `{"reasoning": "good", "scores": [{"backend_id": "a", "score": 80}]}`},
		{name: "no reasoning", raw: `{"winner": "a", "scores": [{"backend_id": "a", "score": 80}]}`},
		{name: "empty scores", raw: `{"winner": "a", "reasoning": "good", "scores": []}`},
		{name: "score out of range", raw: `{"winner": "a", "reasoning": "good", "scores": [{"backend_id": "a", "score": 400}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			winner, reasoning, _ := p.ParseVerdict(tt.raw, []string{"a", "b"})
			assert.Equal(t, "a", winner)
			assert.Equal(t, FallbackReasoning, reasoning)
		})
	}
}

func TestParseVerdictEmptyEvaluatedSet(t *testing.T) {
	p := NewParser()

	winner, reasoning, scores := p.ParseVerdict("garbage", nil)

	assert.Empty(t, winner)
	assert.Equal(t, FallbackReasoning, reasoning)
	assert.Nil(t, scores)
}

func TestParseConsensusStructured(t *testing.T) {
	p := NewParser()
	raw := `{"synthesized_text": "The merged answer.",
		"attributions": [{"backend_id": "a", "label": "GPT", "contribution": "core structure"}],
		"key_points": [{"point": "both agree on X", "source_backend_ids": ["a", "b"]}]}`

	result, parsed := p.ParseConsensus(raw)

	assert.True(t, parsed)
	assert.Equal(t, "The merged answer.", result.Synthesis)
	require.Len(t, result.Attributions, 1)
	assert.Equal(t, "GPT", result.Attributions[0].Label)
	require.Len(t, result.KeyPoints, 1)
	assert.Equal(t, []string{"a", "b"}, result.KeyPoints[0].Sources)
}

func TestParseConsensusPlainTextFallsBackToRaw(t *testing.T) {
	p := NewParser()

	result, parsed := p.ParseConsensus("  Here is a combined answer without any JSON.  ")

	assert.False(t, parsed)
	assert.Equal(t, "Here is a combined answer without any JSON.", result.Synthesis)
	assert.Empty(t, result.Attributions)
}

func TestExtractJSONObjectHandlesNestedBracesAndStrings(t *testing.T) {
	raw := `prefix {"a": {"b": "close brace in string }"}, "c": 1} suffix`

	assert.Equal(t, `{"a": {"b": "close brace in string }"}, "c": 1}`, extractJSONObject(raw))
	assert.Empty(t, extractJSONObject("no json here"))
	assert.Empty(t, extractJSONObject(`{"unterminated": true`))
}
