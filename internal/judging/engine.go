package judging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-tribunal/internal/domain"
	"github.com/ahrav/go-tribunal/internal/ports"
)

const (
	// DefaultMaxConcurrency limits simultaneous judge calls so a large
	// panel does not overwhelm the backend service.
	DefaultMaxConcurrency = 5

	// judgeMaxTokens bounds judge output length. Verdict JSON with a
	// detailed reasoning fits comfortably within this.
	judgeMaxTokens = 1024

	// synthesisMaxTokens bounds synthesizer output, which carries a
	// full merged answer and so needs more room than a verdict.
	synthesisMaxTokens = 4096

	// judgeTemperature keeps judging deterministic across runs.
	judgeTemperature = 0.0

	// maxWinnerReasonings bounds how many winner-voter reasonings feed
	// the synthesized verdict reasoning in multi-judge modes.
	maxWinnerReasonings = 2
)

// Config carries the engine's fixed judge assignments.
type Config struct {
	// DefaultJudgeID is the judge used by single mode when the request
	// names none.
	DefaultJudgeID string

	// SynthesizerID is the backend used by consensus mode when the
	// request names none.
	SynthesizerID string

	// MaxConcurrency limits simultaneous judge calls. Zero means
	// DefaultMaxConcurrency.
	MaxConcurrency int

	// DefaultCriteria is the rubric used when a request supplies none.
	// An empty rubric falls back to domain.DefaultCriteria.
	DefaultCriteria domain.Criteria
}

// Request is one judging operation over assembled responses.
type Request struct {
	// Prompt is the original prompt the responses answered.
	Prompt string

	// Responses are the assembled candidate responses. Entries with an
	// error or empty content are excluded from evaluation.
	Responses []domain.CandidateResponse

	// Mode selects the judge set and aggregation algorithm.
	Mode domain.JudgingMode

	// JudgeIDs names the judges for single and executive modes and the
	// synthesizer for consensus mode. Committee mode ignores it.
	JudgeIDs []string

	// Criteria is the rubric judges score against. An empty rubric
	// falls back to the default one.
	Criteria domain.Criteria
}

// Outcome is the result of one judging operation. Exactly one of
// Verdict and Consensus is set, matching the request mode.
type Outcome struct {
	Verdict   *domain.Verdict
	Consensus *domain.ConsensusResult
}

// Engine dispatches judge calls and aggregates their verdicts.
type Engine struct {
	directory ports.BackendDirectory
	parser    *Parser
	config    Config
	metrics   ports.MetricsCollector
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineMetrics attaches a metrics collector recording judging
// latency and outcomes.
func WithEngineMetrics(collector ports.MetricsCollector) EngineOption {
	return func(e *Engine) { e.metrics = collector }
}

// NewEngine creates a judging engine backed by the given directory.
func NewEngine(directory ports.BackendDirectory, config Config, opts ...EngineOption) (*Engine, error) {
	if directory == nil {
		return nil, fmt.Errorf("backend directory must not be nil")
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultMaxConcurrency
	}
	e := &Engine{
		directory: directory,
		parser:    NewParser(),
		config:    config,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Evaluate runs one judging operation. It validates preconditions
// before any judge is contacted, waits for every resolved judge to
// finish or fail, then aggregates surviving votes into a Verdict or,
// in consensus mode, a ConsensusResult.
func (e *Engine) Evaluate(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	outcome, err := e.evaluate(ctx, req)
	e.recordOutcome(req.Mode, time.Since(start), err)
	return outcome, err
}

func (e *Engine) evaluate(ctx context.Context, req Request) (*Outcome, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, domain.NewJudgingError(req.Mode, "precondition", domain.ErrEmptyPrompt)
	}
	if !req.Mode.Valid() {
		return nil, domain.NewJudgingError(req.Mode, "precondition", domain.ErrUnknownMode)
	}

	usable := domain.UsableResponses(req.Responses)
	if len(usable) < 2 {
		return nil, domain.NewJudgingError(req.Mode, "precondition", domain.ErrTooFewResponses)
	}

	if req.Criteria.Empty() {
		req.Criteria = e.config.DefaultCriteria
	}
	if req.Criteria.Empty() {
		req.Criteria = domain.DefaultCriteria()
	}

	if req.Mode == domain.ModeConsensus {
		result, err := e.synthesize(ctx, req, usable)
		if err != nil {
			return nil, err
		}
		return &Outcome{Consensus: result}, nil
	}

	judges, err := e.resolveJudges(req, usable)
	if err != nil {
		return nil, err
	}

	votes, failures := e.dispatchJudges(ctx, req, usable, judges)

	verdict, err := e.aggregate(req.Mode, usable, votes, failures)
	if err != nil {
		return nil, err
	}
	return &Outcome{Verdict: verdict}, nil
}

// resolveJudges maps the request mode to its judge set. Every resolved
// judge must have a configured client; an unknown identifier is a
// precondition failure, not an absent vote.
func (e *Engine) resolveJudges(req Request, usable []domain.CandidateResponse) ([]string, error) {
	var judges []string

	switch req.Mode {
	case domain.ModeSingle:
		id := e.config.DefaultJudgeID
		if len(req.JudgeIDs) > 0 {
			id = req.JudgeIDs[0]
		}
		if id == "" {
			return nil, domain.NewJudgingError(req.Mode, "resolve", domain.ErrNoJudges)
		}
		judges = []string{id}

	case domain.ModeCommittee:
		for _, resp := range usable {
			judges = append(judges, resp.BackendID)
		}

	case domain.ModeExecutive:
		if len(req.JudgeIDs) == 0 {
			return nil, domain.NewJudgingError(req.Mode, "resolve", domain.ErrNoJudges)
		}
		judges = req.JudgeIDs

	default:
		return nil, domain.NewJudgingError(req.Mode, "resolve", domain.ErrUnknownMode)
	}

	for _, id := range judges {
		if _, ok := e.directory.Client(id); !ok {
			return nil, domain.NewJudgingError(req.Mode, "resolve",
				fmt.Errorf("%w: %s", domain.ErrUnknownBackend, id))
		}
	}
	return judges, nil
}

// dispatchJudges issues one non-streaming call per judge concurrently
// and returns the vote and failure slots in judge-list order. A failed
// call leaves its vote slot nil and records a DispatchError; it never
// disturbs sibling judges.
func (e *Engine) dispatchJudges(ctx context.Context, req Request, usable []domain.CandidateResponse, judges []string) ([]*domain.JudgeVote, []error) {
	votes := make([]*domain.JudgeVote, len(judges))
	failures := make([]error, len(judges))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.MaxConcurrency)

	for i, judgeID := range judges {
		g.Go(func() error {
			evaluated := usable
			if req.Mode == domain.ModeCommittee {
				evaluated = excludeOwn(usable, judgeID)
			}
			if len(evaluated) == 0 {
				return nil
			}

			votes[i], failures[i] = e.callJudge(gctx, req, judgeID, evaluated)
			return nil
		})
	}

	// Branches never return errors; Wait is purely the barrier.
	_ = g.Wait()

	return votes, failures
}

// callJudge runs one judge call end to end. Transport failures come
// back as a DispatchError attributed to the judge; parse failures
// cannot occur because the parser always yields a deterministic
// fallback.
func (e *Engine) callJudge(ctx context.Context, req Request, judgeID string, evaluated []domain.CandidateResponse) (*domain.JudgeVote, error) {
	client, ok := e.directory.Client(judgeID)
	if !ok {
		return nil, ports.NewDispatchError(judgeID, "complete", domain.ErrUnknownBackend)
	}

	prompt, err := BuildJudgePrompt(req.Prompt, evaluated, req.Criteria, e.directory.Label)
	if err != nil {
		return nil, ports.NewDispatchError(judgeID, "complete", err)
	}

	raw, err := client.Complete(ctx, prompt, judgeOptions(judgeMaxTokens))
	if err != nil {
		return nil, ports.NewDispatchError(judgeID, "complete", err)
	}

	winner, reasoning, scores := e.parser.ParseVerdict(raw, responseIDs(evaluated))
	if winner == "" {
		return nil, ports.NewDispatchError(judgeID, "complete", ports.ErrInvalidResponse)
	}
	return &domain.JudgeVote{
		JudgeID:   judgeID,
		Winner:    winner,
		Reasoning: reasoning,
		Scores:    scores,
	}, nil
}

// aggregate tallies surviving votes into a final verdict. Ties are
// broken by the earliest judge in the configured judge list whose pick
// is among the tied backends, which keeps repeated runs with the same
// judge order deterministic. When no vote survives, the per-judge
// dispatch failures are joined into the returned error so callers can
// see which backend let them down.
func (e *Engine) aggregate(mode domain.JudgingMode, usable []domain.CandidateResponse, votes []*domain.JudgeVote, failures []error) (*domain.Verdict, error) {
	surviving := make([]domain.JudgeVote, 0, len(votes))
	for _, v := range votes {
		if v != nil {
			surviving = append(surviving, *v)
		}
	}
	if len(surviving) == 0 {
		err := domain.ErrAllJudgesFailed
		if joined := errors.Join(failures...); joined != nil {
			err = fmt.Errorf("%w: %w", domain.ErrAllJudgesFailed, joined)
		}
		return nil, domain.NewJudgingError(mode, "aggregate", err)
	}

	voteCounts := make(map[string]int, len(usable))
	for _, v := range surviving {
		voteCounts[v.Winner]++
	}

	winner := pickWinner(surviving, voteCounts)

	return &domain.Verdict{
		ID:          uuid.NewString(),
		Winner:      winner,
		WinnerLabel: e.directory.Label(winner),
		Reasoning:   buildReasoning(mode, winner, e.directory.Label(winner), surviving, voteCounts),
		Scores:      aggregateScores(usable, surviving),
		Mode:        mode,
		Votes:       surviving,
		VoteCounts:  voteCounts,
		Timestamp:   time.Now().UTC(),
	}, nil
}

// pickWinner returns the backend with the highest vote count. Among
// tied backends, the pick of the earliest surviving vote wins.
func pickWinner(surviving []domain.JudgeVote, voteCounts map[string]int) string {
	best := 0
	for _, count := range voteCounts {
		if count > best {
			best = count
		}
	}
	for _, v := range surviving {
		if voteCounts[v.Winner] == best {
			return v.Winner
		}
	}
	return surviving[0].Winner
}

// aggregateScores averages each backend's score across the judges that
// scored it and unions their observed traits.
func aggregateScores(usable []domain.CandidateResponse, votes []domain.JudgeVote) []domain.ScoreEntry {
	entries := make([]domain.ScoreEntry, 0, len(usable))
	for _, resp := range usable {
		var sum float64
		var count int
		var strengths, weaknesses [][]string
		for _, vote := range votes {
			for _, s := range vote.Scores {
				if s.BackendID != resp.BackendID {
					continue
				}
				sum += s.Score
				count++
				strengths = append(strengths, s.Strengths)
				weaknesses = append(weaknesses, s.Weaknesses)
			}
		}

		entry := domain.ScoreEntry{
			BackendID:  resp.BackendID,
			Score:      NeutralScore,
			Strengths:  mergeTraits(strengths...),
			Weaknesses: mergeTraits(weaknesses...),
		}
		if count > 0 {
			entry.Score = sum / float64(count)
		}
		entries = append(entries, entry)
	}
	return entries
}

// buildReasoning produces the verdict's reasoning text. Single-judge
// verdicts carry the judge's reasoning verbatim; multi-judge verdicts
// get a deterministic summary with the vote ratio and a bounded number
// of winner-voter reasonings.
func buildReasoning(mode domain.JudgingMode, winner, winnerLabel string, votes []domain.JudgeVote, voteCounts map[string]int) string {
	if mode == domain.ModeSingle || len(votes) == 1 {
		return votes[0].Reasoning
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s won with %d of %d votes.", winnerLabel, voteCounts[winner], len(votes)))

	quoted := 0
	for _, v := range votes {
		if v.Winner != winner || v.Reasoning == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf(" Judge %s: %s", v.JudgeID, v.Reasoning))
		quoted++
		if quoted == maxWinnerReasonings {
			break
		}
	}
	return sb.String()
}

// synthesize runs the single consensus-mode synthesizer call. The
// synthesizer failing outright is a total judging failure; unparseable
// output degrades through the parser's raw-text fallback instead.
func (e *Engine) synthesize(ctx context.Context, req Request, usable []domain.CandidateResponse) (*domain.ConsensusResult, error) {
	id := e.config.SynthesizerID
	if len(req.JudgeIDs) > 0 {
		id = req.JudgeIDs[0]
	}
	if id == "" {
		return nil, domain.NewJudgingError(req.Mode, "resolve", domain.ErrNoJudges)
	}
	client, ok := e.directory.Client(id)
	if !ok {
		return nil, domain.NewJudgingError(req.Mode, "resolve",
			fmt.Errorf("%w: %s", domain.ErrUnknownBackend, id))
	}

	prompt, err := BuildConsensusPrompt(req.Prompt, usable, req.Criteria, e.directory.Label)
	if err != nil {
		return nil, domain.NewJudgingError(req.Mode, "dispatch", err)
	}

	raw, err := client.Complete(ctx, prompt, judgeOptions(synthesisMaxTokens))
	if err != nil {
		return nil, domain.NewJudgingError(req.Mode, "dispatch",
			fmt.Errorf("%w: %w", domain.ErrAllJudgesFailed, ports.NewDispatchError(id, "complete", err)))
	}

	result, _ := e.parser.ParseConsensus(raw)
	if strings.TrimSpace(result.Synthesis) == "" {
		return nil, domain.NewJudgingError(req.Mode, "aggregate", domain.ErrAllJudgesFailed)
	}

	result.ID = uuid.NewString()
	result.Attributions = fillAttributions(result.Attributions, usable, e.directory.Label)
	if result.KeyPoints == nil {
		result.KeyPoints = []domain.KeyPoint{}
	}
	result.Reasoning = fmt.Sprintf("Synthesized across %d responses.", len(usable))
	result.Timestamp = time.Now().UTC()
	return &result, nil
}

// fillAttributions guarantees one attribution per evaluated backend,
// adding a default entry for any backend the synthesizer omitted.
func fillAttributions(attributions []domain.Attribution, usable []domain.CandidateResponse, labelOf func(string) string) []domain.Attribution {
	credited := make(map[string]struct{}, len(attributions))
	filled := make([]domain.Attribution, 0, len(usable))
	for _, a := range attributions {
		if a.Label == "" {
			a.Label = labelOf(a.BackendID)
		}
		credited[a.BackendID] = struct{}{}
		filled = append(filled, a)
	}
	for _, resp := range usable {
		if _, ok := credited[resp.BackendID]; ok {
			continue
		}
		filled = append(filled, domain.Attribution{
			BackendID:    resp.BackendID,
			Label:        labelOf(resp.BackendID),
			Contribution: "Contributed to the synthesized answer.",
		})
	}
	return filled
}

func (e *Engine) recordOutcome(mode domain.JudgingMode, duration time.Duration, err error) {
	if e.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	labels := map[string]string{"mode": string(mode), "status": status}
	e.metrics.RecordLatency("judge", duration, labels)
	e.metrics.RecordCounter("judging_requests_total", 1, labels)
}

// excludeOwn removes a judge's own response from its evaluated set so
// a committee member never scores itself.
func excludeOwn(responses []domain.CandidateResponse, judgeID string) []domain.CandidateResponse {
	out := make([]domain.CandidateResponse, 0, len(responses))
	for _, r := range responses {
		if r.BackendID == judgeID {
			continue
		}
		out = append(out, r)
	}
	return out
}

func responseIDs(responses []domain.CandidateResponse) []string {
	ids := make([]string, 0, len(responses))
	for _, r := range responses {
		ids = append(ids, r.BackendID)
	}
	return ids
}

func judgeOptions(maxTokens int) map[string]any {
	return map[string]any{
		"temperature": judgeTemperature,
		"max_tokens":  maxTokens,
	}
}
