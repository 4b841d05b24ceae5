package domain

import (
	"time"
)

// JudgingMode selects which judge set and aggregation algorithm apply
// to an evaluation. The mode is fixed for the lifetime of one request.
type JudgingMode string

const (
	// ModeSingle uses exactly one configured judge backend.
	ModeSingle JudgingMode = "single"

	// ModeCommittee has every backend that produced a usable response
	// judge its peers. A judge never evaluates its own response.
	ModeCommittee JudgingMode = "committee"

	// ModeExecutive uses a caller-supplied panel of judge backends.
	ModeExecutive JudgingMode = "executive"

	// ModeConsensus merges the candidate responses into a single
	// synthesized answer instead of picking a winner.
	ModeConsensus JudgingMode = "consensus"
)

// Valid reports whether m is one of the defined judging modes.
func (m JudgingMode) Valid() bool {
	switch m {
	case ModeSingle, ModeCommittee, ModeExecutive, ModeConsensus:
		return true
	default:
		return false
	}
}

// ScoreEntry is one backend's score from one judge, or the aggregated
// score across judges after tallying.
type ScoreEntry struct {
	// BackendID identifies the scored backend.
	BackendID string `json:"backend_id"`

	// Score rates the response on a 0-100 scale.
	Score float64 `json:"score"`

	// Strengths lists what the judge found good about the response.
	Strengths []string `json:"strengths"`

	// Weaknesses lists what the judge found lacking.
	Weaknesses []string `json:"weaknesses"`
}

// JudgeVote is one judge's parsed verdict over the evaluated responses.
// Judges that fail to respond produce no vote at all; unparseable
// output degrades to a deterministic fallback vote instead.
type JudgeVote struct {
	// JudgeID identifies the judge backend that cast this vote.
	JudgeID string `json:"judge_id"`

	// Winner is the backend identifier the judge picked as best.
	Winner string `json:"winner"`

	// Reasoning explains the judge's pick.
	Reasoning string `json:"reasoning"`

	// Scores holds the judge's per-backend score entries.
	Scores []ScoreEntry `json:"scores"`
}

// Verdict is the final outcome of a non-consensus evaluation.
type Verdict struct {
	// ID uniquely identifies this verdict.
	ID string `json:"id"`

	// Winner is the backend identifier of the winning response.
	Winner string `json:"winner"`

	// WinnerLabel is the winner's human-readable display name.
	// Falls back to the identifier when no label is configured.
	WinnerLabel string `json:"winner_label"`

	// Reasoning summarizes why the winner won. For single-judge mode
	// this is the judge's reasoning verbatim; for multi-judge modes it
	// is a deterministic synthesis referencing the vote ratio.
	Reasoning string `json:"reasoning"`

	// Scores holds one aggregated entry per evaluated backend.
	Scores []ScoreEntry `json:"scores"`

	// Mode records which judging mode produced this verdict.
	Mode JudgingMode `json:"mode"`

	// Votes lists the surviving per-judge votes in judge-list order.
	Votes []JudgeVote `json:"votes,omitempty"`

	// VoteCounts maps backend identifier to the number of judges that
	// picked it. Winner always equals the key with the highest count,
	// ties broken by the earliest judge in the configured judge list.
	VoteCounts map[string]int `json:"vote_counts,omitempty"`

	// Timestamp records when this verdict was created.
	Timestamp time.Time `json:"timestamp"`
}

// Attribution credits one backend's contribution to a synthesized answer.
type Attribution struct {
	// BackendID identifies the contributing backend.
	BackendID string `json:"backend_id"`

	// Label is the backend's display name.
	Label string `json:"label"`

	// Contribution describes what the backend contributed.
	Contribution string `json:"contribution"`
}

// KeyPoint is one notable point in a synthesized answer together with
// the backends that supplied it.
type KeyPoint struct {
	// Point is the synthesized statement.
	Point string `json:"point"`

	// Sources lists the backend identifiers the point came from.
	Sources []string `json:"source_backend_ids"`
}

// ConsensusResult is the outcome of consensus-mode judging. It replaces
// the winner and vote semantics of Verdict with a merged answer.
type ConsensusResult struct {
	// ID uniquely identifies this result.
	ID string `json:"id"`

	// Synthesis is the merged answer produced by the synthesizer.
	Synthesis string `json:"synthesized_text"`

	// Attributions credits each evaluated backend. Backends the
	// synthesizer omitted receive a default entry rather than being
	// dropped.
	Attributions []Attribution `json:"attributions"`

	// KeyPoints lists notable points with their source backends.
	KeyPoints []KeyPoint `json:"key_points"`

	// Reasoning is a fixed statement that a synthesis occurred across
	// N inputs; scores in the synthesizer output are contribution
	// weight, not competitive ranking.
	Reasoning string `json:"reasoning"`

	// Timestamp records when this result was created.
	Timestamp time.Time `json:"timestamp"`
}
