package server

import (
	"errors"
	"net/http"

	"github.com/chainguard-dev/clog"
	"github.com/gin-gonic/gin"

	"github.com/ahrav/go-tribunal/internal/domain"
	"github.com/ahrav/go-tribunal/internal/judging"
)

// judgeRequest is the request body for the judge endpoint.
type judgeRequest struct {
	Prompt    string                     `json:"prompt" binding:"required"`
	Responses []domain.CandidateResponse `json:"responses" binding:"required"`
	Mode      domain.JudgingMode         `json:"mode" binding:"required"`
	JudgeIDs  []string                   `json:"judge_backend_ids"`
	Criteria  domain.Criteria            `json:"criteria"`
}

// handleJudge runs one judging operation and returns the verdict or,
// in consensus mode, the synthesized result.
func (s *Server) handleJudge(c *gin.Context) {
	var req judgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	log := clog.FromContext(ctx).With("mode", string(req.Mode))

	outcome, err := s.engine.Evaluate(ctx, judging.Request{
		Prompt:    req.Prompt,
		Responses: req.Responses,
		Mode:      req.Mode,
		JudgeIDs:  req.JudgeIDs,
		Criteria:  req.Criteria,
	})
	if err != nil {
		log.Warn("judging failed", "error", err)
		c.JSON(judgingStatus(err), gin.H{"error": err.Error()})
		return
	}

	if outcome.Consensus != nil {
		log.Info("consensus produced", "id", outcome.Consensus.ID)
		c.JSON(http.StatusOK, gin.H{"consensus": outcome.Consensus})
		return
	}
	log.Info("verdict produced", "id", outcome.Verdict.ID, "winner", outcome.Verdict.Winner)
	c.JSON(http.StatusOK, gin.H{"verdict": outcome.Verdict})
}

// judgingStatus maps judging errors to HTTP statuses. Precondition
// failures are the caller's fault; total judging failure means the
// backends let us down.
func judgingStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyPrompt),
		errors.Is(err, domain.ErrTooFewResponses),
		errors.Is(err, domain.ErrNoJudges),
		errors.Is(err, domain.ErrUnknownMode),
		errors.Is(err, domain.ErrUnknownBackend),
		errors.Is(err, domain.ErrDuplicateBackend):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAllJudgesFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
