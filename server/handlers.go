package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/katalvlaran/hydronet/diagnostics"
	"github.com/katalvlaran/hydronet/flow"
	"github.com/katalvlaran/hydronet/network"
	"github.com/katalvlaran/hydronet/solve"
)

// bindDraft decodes the request body. It writes the error response itself
// and returns false on failure.
func bindDraft(c *gin.Context) (*network.Draft, bool) {
	var d network.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: " + err.Error()})
		return nil, false
	}

	return &d, true
}

// validationBody describes a *network.ValidationError.
func validationBody(err error) gin.H {
	body := gin.H{"valid": false, "kind": "validation", "error": err.Error()}
	var ve *network.ValidationError
	if errors.As(err, &ve) {
		if ve.Node != "" {
			body["node"] = ve.Node
		}
		if ve.Arc >= 0 {
			body["arc"] = ve.Arc
			body["field"] = ve.Field
		}
	}

	return body
}

func (s *Server) handleValidate(c *gin.Context) {
	d, ok := bindDraft(c)
	if !ok {
		return
	}
	if err := network.Validate(d); err != nil {
		c.JSON(http.StatusUnprocessableEntity, validationBody(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (s *Server) handleDiagnose(c *gin.Context) {
	d, ok := bindDraft(c)
	if !ok {
		return
	}
	net, err := d.Build()
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, validationBody(err))
		return
	}

	an, err := diagnostics.Analyze(net, flow.Options{Ctx: c.Request.Context()})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"report":   diagnostics.Diagnose(net),
		"summary":  diagnostics.Summarize(net),
		"analysis": an,
	})
}

func (s *Server) handleSolve(c *gin.Context) {
	d, ok := bindDraft(c)
	if !ok {
		return
	}
	net, err := d.Build()
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, validationBody(err))
		return
	}

	ctx := c.Request.Context()
	if t := s.cfg.SolveTimeout.Duration; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	out, err := s.run(ctx, net)
	var agg *solve.AggregateFailure
	switch {
	case err == nil:
		c.JSON(http.StatusOK, out)
	case errors.As(err, &agg):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"kind":        "solve_failed",
			"error":       agg.Error(),
			"explanation": agg.Explain(),
			"outcome":     out,
		})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "solve timed out"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// run executes on the runner pool when one is configured.
func (s *Server) run(ctx context.Context, net *network.Network) (*solve.Outcome, error) {
	if s.deps.Runner == nil {
		return s.deps.Orchestrator.Run(ctx, net)
	}
	done, err := s.deps.Runner.Submit(ctx, net)
	if err != nil {
		return nil, err
	}
	comp := <-done

	return comp.Outcome, comp.Err
}
