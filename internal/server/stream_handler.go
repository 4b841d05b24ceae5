package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/gin-gonic/gin"
)

// heartbeatInterval keeps idle SSE connections alive through proxies
// while slow backends produce their first tokens.
const heartbeatInterval = 15 * time.Second

// streamRequest is the request body for the committee stream endpoint.
type streamRequest struct {
	Prompt     string         `json:"prompt" binding:"required"`
	BackendIDs []string       `json:"backend_ids" binding:"required,min=1"`
	Options    map[string]any `json:"options"`
}

// handleCommitteeStream fans the prompt out to the requested backends
// and forwards their token deltas as server-sent events. Each event's
// data is one JSON delta; a backend's final event has done set, with
// an error message when that backend failed.
func (s *Server) handleCommitteeStream(c *gin.Context) {
	var req streamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return
	}

	ctx := c.Request.Context()
	deltas, err := s.dispatcher.Run(ctx, req.Prompt, req.BackendIDs, req.Options)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Every exit path must keep consuming the channel: branch
	// goroutines still owe their terminal deltas and would block
	// forever on a full, abandoned buffer.
	defer func() {
		go func() {
			for range deltas {
			}
		}()
	}()

	log := clog.FromContext(ctx).With("backends", len(req.BackendIDs))
	log.Info("committee stream started")

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		log.Error("response writer does not support streaming")
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case delta, open := <-deltas:
			if !open {
				log.Info("committee stream complete")
				return
			}
			data, err := json.Marshal(delta)
			if err != nil {
				log.Error("failed to marshal delta", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
				log.Info("client write failed, closing stream", "error", err)
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(c.Writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-ctx.Done():
			log.Info("client disconnected")
			return
		}
	}
}
