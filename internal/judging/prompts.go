// Package judging implements the four evaluation modes over assembled
// candidate responses: single judge, committee vote, executive panel,
// and consensus synthesis.
package judging

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/ahrav/go-tribunal/internal/domain"
)

// Prompt construction is split into three pure functions so the engine
// stays testable without network mocking: FormatCriteria renders the
// rubric, FormatResponses renders the labeled candidate texts, and
// BuildJudgePrompt / BuildConsensusPrompt assemble the final
// instruction text from those parts.

const judgePromptTemplate = `You are an impartial judge evaluating responses from multiple AI assistants.

Original prompt:
{{.Prompt}}

{{.Responses}}
{{.Criteria}}
Compare the responses against each criterion and pick the single best one.

IMPORTANT: You must respond with valid JSON in exactly this format:
{"winner": "<backend id>", "reasoning": "<detailed explanation>", "scores": [{"backend_id": "<backend id>", "score": <0-100>, "strengths": ["..."], "weaknesses": ["..."]}]}

Include one scores entry for every response listed above. Do not add any text outside the JSON object.`

const consensusPromptTemplate = `You are a synthesizer merging responses from multiple AI assistants into one answer.

Original prompt:
{{.Prompt}}

{{.Responses}}
{{.Criteria}}
Write a single synthesized answer that combines the strongest material from every response, then credit each source.

IMPORTANT: You must respond with valid JSON in exactly this format:
{"synthesized_text": "<merged answer>", "attributions": [{"backend_id": "<backend id>", "label": "<display name>", "contribution": "<what it contributed>"}], "key_points": [{"point": "<statement>", "source_backend_ids": ["<backend id>"]}]}

Include one attributions entry for every response listed above. Do not add any text outside the JSON object.`

var (
	judgeTmpl     = template.Must(template.New("judgePrompt").Parse(judgePromptTemplate))
	consensusTmpl = template.Must(template.New("consensusPrompt").Parse(consensusPromptTemplate))
)

// FormatCriteria renders a weighted rubric as prompt text. An empty
// rubric renders as an empty string so templates can omit the section.
func FormatCriteria(criteria domain.Criteria) string {
	if criteria.Empty() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Evaluation criteria (weight 1-5, higher matters more):\n")
	for _, item := range criteria.Items {
		sb.WriteString(fmt.Sprintf("- %s (weight %d)", item.Name, item.Weight))
		if item.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(item.Description)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// FormatResponses renders the evaluated candidate texts, each headed by
// its backend identifier and display label. labelOf maps identifiers to
// display names; when it returns the identifier unchanged the header
// shows the identifier once.
func FormatResponses(responses []domain.CandidateResponse, labelOf func(string) string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Responses to evaluate (%d):\n", len(responses)))
	for i, resp := range responses {
		label := resp.BackendID
		if labelOf != nil {
			label = labelOf(resp.BackendID)
		}
		sb.WriteString(fmt.Sprintf("\n--- Response %d (id: %s", i+1, resp.BackendID))
		if label != resp.BackendID {
			sb.WriteString(fmt.Sprintf(", %s", label))
		}
		sb.WriteString(") ---\n")
		sb.WriteString(resp.Content)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// BuildJudgePrompt assembles the instruction text for a winner-picking
// judge call over the given responses.
func BuildJudgePrompt(prompt string, responses []domain.CandidateResponse, criteria domain.Criteria, labelOf func(string) string) (string, error) {
	return renderPrompt(judgeTmpl, prompt, responses, criteria, labelOf)
}

// BuildConsensusPrompt assembles the instruction text for the
// synthesizer call in consensus mode.
func BuildConsensusPrompt(prompt string, responses []domain.CandidateResponse, criteria domain.Criteria, labelOf func(string) string) (string, error) {
	return renderPrompt(consensusTmpl, prompt, responses, criteria, labelOf)
}

func renderPrompt(tmpl *template.Template, prompt string, responses []domain.CandidateResponse, criteria domain.Criteria, labelOf func(string) string) (string, error) {
	data := struct {
		Prompt    string
		Responses string
		Criteria  string
	}{
		Prompt:    prompt,
		Responses: FormatResponses(responses, labelOf),
		Criteria:  FormatCriteria(criteria),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}
