package judging

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kaptinlin/jsonrepair"

	"github.com/ahrav/go-tribunal/internal/domain"
)

// NeutralScore is assigned to every backend when a judge's output
// cannot be parsed into a structured verdict.
const NeutralScore = 50.0

// FallbackReasoning is the fixed reasoning attached to fallback
// verdicts so callers can distinguish them from genuine judgments.
const FallbackReasoning = "The judge's output could not be parsed into a structured verdict; defaulting to the first evaluated response."

// parsedVerdict is the JSON schema a judge is instructed to emit.
// Validation runs before acceptance so partially-typed output falls
// back to the deterministic default instead of flowing downstream.
type parsedVerdict struct {
	Winner    string        `json:"winner" validate:"required"`
	Reasoning string        `json:"reasoning" validate:"required"`
	Scores    []parsedScore `json:"scores" validate:"required,min=1,dive"`
}

type parsedScore struct {
	BackendID  string   `json:"backend_id" validate:"required"`
	Score      float64  `json:"score" validate:"min=0,max=100"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

// parsedConsensus is the JSON schema the consensus synthesizer is
// instructed to emit.
type parsedConsensus struct {
	Synthesis    string `json:"synthesized_text" validate:"required"`
	Attributions []struct {
		BackendID    string `json:"backend_id" validate:"required"`
		Label        string `json:"label"`
		Contribution string `json:"contribution"`
	} `json:"attributions"`
	KeyPoints []struct {
		Point   string   `json:"point" validate:"required"`
		Sources []string `json:"source_backend_ids"`
	} `json:"key_points"`
}

// Parser turns free-form judge output into structured verdicts. It
// never fails: output that resists parsing yields a deterministic
// fallback instead of an error.
type Parser struct{ validate *validator.Validate }

// NewParser creates a verdict parser.
func NewParser() *Parser {
	return &Parser{validate: validator.New()}
}

// ParseVerdict extracts a winner, reasoning, and per-backend scores
// from raw judge text. Extraction is attempted in order of preference:
// the whole text as JSON, then a fenced or embedded JSON object, then
// a repaired rendition of that object. Output failing schema
// validation, or naming a winner outside evaluated, falls back to the
// first evaluated backend with neutral scores.
func (p *Parser) ParseVerdict(raw string, evaluated []string) (string, string, []domain.ScoreEntry) {
	for _, candidate := range jsonCandidates(raw) {
		var v parsedVerdict
		if err := json.Unmarshal([]byte(candidate), &v); err != nil {
			continue
		}
		if err := p.validate.Struct(v); err != nil {
			continue
		}
		if !containsID(evaluated, v.Winner) {
			continue
		}
		return v.Winner, v.Reasoning, normalizeScores(v.Scores, evaluated)
	}
	return fallbackVerdict(evaluated)
}

// ParseConsensus extracts a synthesized answer with attributions and
// key points from raw synthesizer text. When no structured object can
// be recovered the raw text itself becomes the synthesis, since a
// synthesizer that ignored formatting instructions still usually
// produced a merged answer.
func (p *Parser) ParseConsensus(raw string) (domain.ConsensusResult, bool) {
	for _, candidate := range jsonCandidates(raw) {
		var c parsedConsensus
		if err := json.Unmarshal([]byte(candidate), &c); err != nil {
			continue
		}
		if err := p.validate.Struct(c); err != nil {
			continue
		}

		result := domain.ConsensusResult{Synthesis: c.Synthesis}
		for _, a := range c.Attributions {
			result.Attributions = append(result.Attributions, domain.Attribution{
				BackendID:    a.BackendID,
				Label:        a.Label,
				Contribution: a.Contribution,
			})
		}
		for _, k := range c.KeyPoints {
			result.KeyPoints = append(result.KeyPoints, domain.KeyPoint{
				Point:   k.Point,
				Sources: k.Sources,
			})
		}
		return result, true
	}

	return domain.ConsensusResult{Synthesis: strings.TrimSpace(raw)}, false
}

// jsonCandidates yields the strings worth attempting as JSON, cheapest
// first: the trimmed text itself, any fenced or brace-delimited object
// inside it, and a repaired copy of the best candidate for output with
// trailing commas or unquoted keys.
func jsonCandidates(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	candidates := []string{raw}
	if extracted := extractJSONObject(raw); extracted != "" && extracted != raw {
		candidates = append(candidates, extracted)
	}

	repairInput := raw
	if extracted := extractJSONObject(raw); extracted != "" {
		repairInput = extracted
	}
	if repaired, err := jsonrepair.JSONRepair(repairInput); err == nil && repaired != repairInput {
		candidates = append(candidates, repaired)
	}

	return candidates
}

// extractJSONObject pulls a JSON object out of text that may wrap it
// in markdown fences or surrounding prose. Returns "" when no balanced
// object is found.
func extractJSONObject(response string) string {
	response = strings.TrimSpace(response)

	if idx := strings.Index(response, "```json"); idx != -1 {
		start := idx + len("```json")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}

	if idx := strings.Index(response, "```"); idx != -1 {
		start := idx + 3
		if nl := strings.Index(response[start:], "\n"); nl != -1 {
			start += nl + 1
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			candidate := strings.TrimSpace(response[start : start+end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	// Walk to the matching close brace, skipping braces inside strings.
	braceCount := 0
	inString := false
	escapeNext := false
	for i := start; i < len(response); i++ {
		char := response[i]
		if escapeNext {
			escapeNext = false
			continue
		}
		if char == '\\' {
			escapeNext = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return response[start : i+1]
				}
			}
		}
	}
	return ""
}

// normalizeScores keeps only entries for evaluated backends and fills a
// neutral entry for any evaluated backend the judge skipped, so every
// verdict carries exactly one entry per evaluated backend.
func normalizeScores(scores []parsedScore, evaluated []string) []domain.ScoreEntry {
	byID := make(map[string]parsedScore, len(scores))
	for _, s := range scores {
		byID[s.BackendID] = s
	}

	entries := make([]domain.ScoreEntry, 0, len(evaluated))
	for _, id := range evaluated {
		if s, ok := byID[id]; ok {
			entries = append(entries, domain.ScoreEntry{
				BackendID:  id,
				Score:      s.Score,
				Strengths:  emptyIfNil(s.Strengths),
				Weaknesses: emptyIfNil(s.Weaknesses),
			})
			continue
		}
		entries = append(entries, neutralEntry(id))
	}
	return entries
}

func fallbackVerdict(evaluated []string) (string, string, []domain.ScoreEntry) {
	if len(evaluated) == 0 {
		return "", FallbackReasoning, nil
	}
	scores := make([]domain.ScoreEntry, 0, len(evaluated))
	for _, id := range evaluated {
		scores = append(scores, neutralEntry(id))
	}
	return evaluated[0], FallbackReasoning, scores
}

func neutralEntry(id string) domain.ScoreEntry {
	return domain.ScoreEntry{
		BackendID:  id,
		Score:      NeutralScore,
		Strengths:  []string{},
		Weaknesses: []string{},
	}
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
