package judging

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tribunal/internal/domain"
	"github.com/ahrav/go-tribunal/internal/ports"
	"github.com/ahrav/go-tribunal/internal/testutils"
)

func verdictJSON(winner, reasoning string, scored ...string) string {
	scores := ""
	for i, id := range scored {
		if i > 0 {
			scores += ","
		}
		scores += fmt.Sprintf(`{"backend_id": %q, "score": 80, "strengths": ["clear"], "weaknesses": []}`, id)
	}
	return fmt.Sprintf(`{"winner": %q, "reasoning": %q, "scores": [%s]}`, winner, reasoning, scores)
}

func usableResponses(ids ...string) []domain.CandidateResponse {
	responses := make([]domain.CandidateResponse, 0, len(ids))
	for _, id := range ids {
		responses = append(responses, domain.CandidateResponse{BackendID: id, Content: "answer from " + id})
	}
	return responses
}

func newTestEngine(t *testing.T, dir *testutils.MockDirectory, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(dir, cfg)
	require.NoError(t, err)
	return e
}

func TestEvaluateSingleModeReturnsJudgesVerdict(t *testing.T) {
	judge := &testutils.MockBackend{Response: verdictJSON("b", "b was more complete", "a", "b")}
	dir := testutils.NewMockDirectory().
		Add("judge", "The Judge", judge).
		Add("b", "Claude", &testutils.MockBackend{})

	e := newTestEngine(t, dir, Config{})
	outcome, err := e.Evaluate(context.Background(), Request{
		Prompt:    "What is Go?",
		Responses: usableResponses("a", "b"),
		Mode:      domain.ModeSingle,
		JudgeIDs:  []string{"judge"},
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Verdict)
	require.Nil(t, outcome.Consensus)

	v := outcome.Verdict
	assert.Equal(t, "b", v.Winner)
	assert.Equal(t, "Claude", v.WinnerLabel)
	assert.Equal(t, "b was more complete", v.Reasoning, "single mode carries the judge's reasoning verbatim")
	assert.Equal(t, domain.ModeSingle, v.Mode)
	require.Len(t, v.Votes, 1)
	assert.Equal(t, "judge", v.Votes[0].JudgeID)
	assert.Equal(t, map[string]int{"b": 1}, v.VoteCounts)
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, 1, judge.Calls())
}

func TestEvaluateSingleModeUsesConfiguredDefaultJudge(t *testing.T) {
	judge := &testutils.MockBackend{Response: verdictJSON("a", "fine", "a", "b")}
	dir := testutils.NewMockDirectory().Add("default-judge", "", judge)

	e := newTestEngine(t, dir, Config{DefaultJudgeID: "default-judge"})
	outcome, err := e.Evaluate(context.Background(), Request{
		Prompt:    "p",
		Responses: usableResponses("a", "b"),
		Mode:      domain.ModeSingle,
	})
	require.NoError(t, err)
	assert.Equal(t, "a", outcome.Verdict.Winner)
	assert.Equal(t, 1, judge.Calls())
}

func TestEvaluateCommitteeExcludesOwnResponse(t *testing.T) {
	judgeA := &testutils.MockBackend{Response: verdictJSON("beta", "good", "beta", "gamma")}
	judgeB := &testutils.MockBackend{Response: verdictJSON("gamma", "good", "alpha", "gamma")}
	judgeC := &testutils.MockBackend{Response: verdictJSON("beta", "good", "alpha", "beta")}
	dir := testutils.NewMockDirectory().
		Add("alpha", "", judgeA).
		Add("beta", "", judgeB).
		Add("gamma", "", judgeC)

	e := newTestEngine(t, dir, Config{})
	outcome, err := e.Evaluate(context.Background(), Request{
		Prompt:    "p",
		Responses: usableResponses("alpha", "beta", "gamma"),
		Mode:      domain.ModeCommittee,
	})
	require.NoError(t, err)

	promptA := judgeA.LastPrompt()
	assert.NotContains(t, promptA, "id: alpha", "a judge must not see its own response")
	assert.Contains(t, promptA, "id: beta")
	assert.Contains(t, promptA, "id: gamma")

	promptB := judgeB.LastPrompt()
	assert.NotContains(t, promptB, "id: beta")
	assert.Contains(t, promptB, "id: alpha")

	assert.Equal(t, "beta", outcome.Verdict.Winner)
	assert.Equal(t, map[string]int{"beta": 2, "gamma": 1}, outcome.Verdict.VoteCounts)
}

func TestEvaluateExecutiveTally(t *testing.T) {
	dir := testutils.NewMockDirectory().
		Add("j1", "", &testutils.MockBackend{Response: verdictJSON("a", "r1", "a", "b")}).
		Add("j2", "", &testutils.MockBackend{Response: verdictJSON("a", "r2", "a", "b")}).
		Add("j3", "", &testutils.MockBackend{Response: verdictJSON("b", "r3", "a", "b")}).
		Add("a", "Model A", &testutils.MockBackend{})

	e := newTestEngine(t, dir, Config{})
	outcome, err := e.Evaluate(context.Background(), Request{
		Prompt:    "p",
		Responses: usableResponses("a", "b"),
		Mode:      domain.ModeExecutive,
		JudgeIDs:  []string{"j1", "j2", "j3"},
	})
	require.NoError(t, err)

	v := outcome.Verdict
	assert.Equal(t, "a", v.Winner)
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, v.VoteCounts)
	require.Len(t, v.Votes, 3)
	assert.Contains(t, v.Reasoning, "2 of 3 votes")
	assert.Contains(t, v.Reasoning, "r1")
	assert.Contains(t, v.Reasoning, "r2")
	assert.NotContains(t, v.Reasoning, "r3", "only winner-voter reasonings feed the summary")
}

func TestEvaluateTieBreakGoesToEarliestJudge(t *testing.T) {
	dir := testutils.NewMockDirectory().
		Add("j1", "", &testutils.MockBackend{Response: verdictJSON("a", "r1", "a", "b")}).
		Add("j2", "", &testutils.MockBackend{Response: verdictJSON("b", "r2", "a", "b")})

	e := newTestEngine(t, dir, Config{})

	// Tie-break must be stable across repeated runs with the same
	// judge order.
	for i := 0; i < 5; i++ {
		outcome, err := e.Evaluate(context.Background(), Request{
			Prompt:    "p",
			Responses: usableResponses("a", "b"),
			Mode:      domain.ModeExecutive,
			JudgeIDs:  []string{"j1", "j2"},
		})
		require.NoError(t, err)
		assert.Equal(t, "a", outcome.Verdict.Winner)
	}
}

func TestEvaluateScoreAveraging(t *testing.T) {
	dir := testutils.NewMockDirectory().
		Add("j1", "", &testutils.MockBackend{Response: `{"winner": "a", "reasoning": "r", "scores": [{"backend_id": "a", "score": 90}, {"backend_id": "b", "score": 50}]}`}).
		Add("j2", "", &testutils.MockBackend{Response: `{"winner": "a", "reasoning": "r", "scores": [{"backend_id": "a", "score": 70}, {"backend_id": "b", "score": 60}]}`})

	e := newTestEngine(t, dir, Config{})
	outcome, err := e.Evaluate(context.Background(), Request{
		Prompt:    "p",
		Responses: usableResponses("a", "b"),
		Mode:      domain.ModeExecutive,
		JudgeIDs:  []string{"j1", "j2"},
	})
	require.NoError(t, err)

	scores := outcome.Verdict.Scores
	require.Len(t, scores, 2)
	assert.Equal(t, "a", scores[0].BackendID)
	assert.InDelta(t, 80.0, scores[0].Score, 0.001)
	assert.InDelta(t, 55.0, scores[1].Score, 0.001)
}

func TestEvaluatePreconditionTooFewUsable(t *testing.T) {
	judge := &testutils.MockBackend{Response: verdictJSON("a", "r", "a")}
	dir := testutils.NewMockDirectory().Add("judge", "", judge)

	e := newTestEngine(t, dir, Config{DefaultJudgeID: "judge"})
	responses := []domain.CandidateResponse{
		{BackendID: "a", Content: "only usable answer"},
		{BackendID: "b", Error: "timed out"},
		{BackendID: "c", Content: "   "},
	}

	_, err := e.Evaluate(context.Background(), Request{
		Prompt:    "p",
		Responses: responses,
		Mode:      domain.ModeSingle,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTooFewResponses)
	assert.Equal(t, 0, judge.Calls(), "no judge dispatch may happen on precondition failure")

	var jerr *domain.JudgingError
	require.ErrorAs(t, err, &jerr)
	assert.Equal(t, "precondition", jerr.Stage)
}

func TestEvaluatePreconditionValidation(t *testing.T) {
	dir := testutils.NewMockDirectory().Add("judge", "", &testutils.MockBackend{})
	e := newTestEngine(t, dir, Config{DefaultJudgeID: "judge"})

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{
			name:    "empty prompt",
			req:     Request{Prompt: " ", Responses: usableResponses("a", "b"), Mode: domain.ModeSingle},
			wantErr: domain.ErrEmptyPrompt,
		},
		{
			name:    "unknown mode",
			req:     Request{Prompt: "p", Responses: usableResponses("a", "b"), Mode: "tournament"},
			wantErr: domain.ErrUnknownMode,
		},
		{
			name:    "executive without judges",
			req:     Request{Prompt: "p", Responses: usableResponses("a", "b"), Mode: domain.ModeExecutive},
			wantErr: domain.ErrNoJudges,
		},
		{
			name:    "unknown judge",
			req:     Request{Prompt: "p", Responses: usableResponses("a", "b"), Mode: domain.ModeExecutive, JudgeIDs: []string{"ghost"}},
			wantErr: domain.ErrUnknownBackend,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Evaluate(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEvaluateAllJudgesFailed(t *testing.T) {
	dir := testutils.NewMockDirectory().
		Add("j1", "", &testutils.MockBackend{Err: errors.New("unreachable")}).
		Add("j2", "", &testutils.MockBackend{Err: errors.New("also unreachable")})

	e := newTestEngine(t, dir, Config{})
	_, err := e.Evaluate(context.Background(), Request{
		Prompt:    "p",
		Responses: usableResponses("a", "b"),
		Mode:      domain.ModeExecutive,
		JudgeIDs:  []string{"j1", "j2"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAllJudgesFailed)

	// The joined error attributes each failure to its judge.
	var dispatchErr *ports.DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, "j1", dispatchErr.BackendID)
	assert.Equal(t, "complete", dispatchErr.Operation)
	assert.Contains(t, err.Error(), "also unreachable")
}

func TestEvaluateOneFailedJudgeIsAbsorbed(t *testing.T) {
	dir := testutils.NewMockDirectory().
		Add("j1", "", &testutils.MockBackend{Err: errors.New("unreachable")}).
		Add("j2", "", &testutils.MockBackend{Response: verdictJSON("b", "r", "a", "b")})

	e := newTestEngine(t, dir, Config{})
	outcome, err := e.Evaluate(context.Background(), Request{
		Prompt:    "p",
		Responses: usableResponses("a", "b"),
		Mode:      domain.ModeExecutive,
		JudgeIDs:  []string{"j1", "j2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "b", outcome.Verdict.Winner)
	require.Len(t, outcome.Verdict.Votes, 1)
	assert.Equal(t, "j2", outcome.Verdict.Votes[0].JudgeID)
}

func TestEvaluateConsensusFillsMissingAttributions(t *testing.T) {
	synth := &testutils.MockBackend{Response: `{"synthesized_text": "Merged answer.",
		"attributions": [{"backend_id": "a", "label": "", "contribution": "main structure"}],
		"key_points": [{"point": "shared claim", "source_backend_ids": ["a", "b"]}]}`}
	dir := testutils.NewMockDirectory().
		Add("synth", "", synth).
		Add("a", "Model A", &testutils.MockBackend{}).
		Add("b", "Model B", &testutils.MockBackend{})

	e := newTestEngine(t, dir, Config{SynthesizerID: "synth"})
	outcome, err := e.Evaluate(context.Background(), Request{
		Prompt:    "p",
		Responses: usableResponses("a", "b"),
		Mode:      domain.ModeConsensus,
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Consensus)
	require.Nil(t, outcome.Verdict)

	c := outcome.Consensus
	assert.Equal(t, "Merged answer.", c.Synthesis)
	assert.Equal(t, "Synthesized across 2 responses.", c.Reasoning)
	require.Len(t, c.Attributions, 2)
	assert.Equal(t, "a", c.Attributions[0].BackendID)
	assert.Equal(t, "Model A", c.Attributions[0].Label, "empty labels are filled from the directory")
	assert.Equal(t, "b", c.Attributions[1].BackendID)
	assert.NotEmpty(t, c.Attributions[1].Contribution, "omitted backends get a default attribution")
	assert.NotEmpty(t, c.ID)
}

func TestEvaluateConsensusSynthesizerFailure(t *testing.T) {
	dir := testutils.NewMockDirectory().
		Add("synth", "", &testutils.MockBackend{Err: errors.New("unavailable")})

	e := newTestEngine(t, dir, Config{SynthesizerID: "synth"})
	_, err := e.Evaluate(context.Background(), Request{
		Prompt:    "p",
		Responses: usableResponses("a", "b"),
		Mode:      domain.ModeConsensus,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAllJudgesFailed)
}

func TestEvaluateUnparseableJudgeOutputBecomesFallbackVote(t *testing.T) {
	dir := testutils.NewMockDirectory().
		Add("judge", "", &testutils.MockBackend{Response: "I simply cannot decide."})

	e := newTestEngine(t, dir, Config{DefaultJudgeID: "judge"})
	outcome, err := e.Evaluate(context.Background(), Request{
		Prompt:    "p",
		Responses: usableResponses("x", "y"),
		Mode:      domain.ModeSingle,
	})
	require.NoError(t, err)
	assert.Equal(t, "x", outcome.Verdict.Winner)
	assert.Equal(t, FallbackReasoning, outcome.Verdict.Reasoning)
}
