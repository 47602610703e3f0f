package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/isdmx/codelab/explain"
	"github.com/isdmx/codelab/sandbox"
)

// Response bodies that do not depend on the request
const (
	MsgInternalError  = "Internal server error"
	MsgInvalidExplain = "Invalid request data provided."
)

type executeRequest struct {
	Code     string `json:"code" binding:"required"`
	Language string `json:"language" binding:"required"`
}

type explainRequest struct {
	Code     string `json:"code" binding:"required"`
	Language string `json:"language" binding:"required,oneof=python java"`
	Error    string `json:"error" binding:"required"`
}

type explainResponse struct {
	Explanation string `json:"explanation"`
}

// handleExecute runs the submitted code and always answers exactly once.
// Unsupported languages pass validation and are reported by the executor.
func (s *Server) handleExecute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}

	log := s.logger.With(zap.String("request_id", c.GetString(requestIDKey)), zap.String("language", req.Language))
	log.Info("code execution requested", zap.Int("code_len", len(req.Code)))

	// a client disconnect must not abort the child processes
	ctx := context.WithoutCancel(c.Request.Context())
	result, err := s.executor.Execute(ctx, sandbox.ExecuteRequest{
		Language: req.Language,
		Code:     req.Code,
	})
	switch {
	case errors.Is(err, sandbox.ErrBusy):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Error("sandbox execution failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": MsgInternalError})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleExplain(c *gin.Context) {
	var req explainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("invalid explain request", zap.Error(err))
		c.JSON(http.StatusBadRequest, explainResponse{Explanation: MsgInvalidExplain})
		return
	}

	explanation := s.explainer.Explain(c.Request.Context(), explain.Request{
		Code:     req.Code,
		Language: req.Language,
		Error:    req.Error,
	})

	c.JSON(http.StatusOK, explainResponse{Explanation: explanation})
}
