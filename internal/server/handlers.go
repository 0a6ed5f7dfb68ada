// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

// PredictionEnvelope wraps a single advanced prediction.
type PredictionEnvelope struct {
	RequestedAt     time.Time              `json:"requestedAt"`
	FeaturesUsed    []string               `json:"featuresUsed"`
	AvailableModels []string               `json:"availableModels"`
	Result          types.DiagnosticResult `json:"result"`
}

// BatchEnvelope wraps a batch prediction.
type BatchEnvelope struct {
	RequestedAt     time.Time                `json:"requestedAt"`
	RowCount        int                      `json:"rowCount"`
	AvailableModels []string                 `json:"availableModels"`
	Results         []types.DiagnosticResult `json:"results"`
	Errors          []types.RowError         `json:"errors,omitempty"`
}

// PredictRequest is the body of POST /api/v1/new-models/predict.
type PredictRequest struct {
	Features types.RawRow `json:"features"`
}

// BatchRequest is the body of POST /api/v1/new-models/batch.
type BatchRequest struct {
	Rows []types.RawRow `json:"rows"`
}

// ExplainRequest is the body of POST /api/v1/diagnostics/explain. Null
// cells are missing samples.
type ExplainRequest struct {
	Columns  []string     `json:"columns"`
	Rows     [][]*float64 `json:"rows"`
	WindowMs float64      `json:"window_ms"`
}

// Waveform converts the request rows, mapping null to NaN.
func (r ExplainRequest) Waveform() types.Waveform {
	w := types.Waveform{Columns: r.Columns, Rows: make([][]float64, len(r.Rows))}
	for i, row := range r.Rows {
		out := make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				out[j] = math.NaN()
				continue
			}
			out[j] = *v
		}
		w.Rows[i] = out
	}
	return w
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "loaded": s.svc.Ready()})
}

func (s *Server) features(c *gin.Context) {
	names, err := s.svc.Features()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"features": names})
}

// predictFeatures takes the feature dictionary as the whole body.
func (s *Server) predictFeatures(c *gin.Context) {
	var row types.RawRow
	if err := c.ShouldBindJSON(&row); err != nil {
		s.badRequest(c, err)
		return
	}
	d, err := s.svc.PredictFeatures(row)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) explain(c *gin.Context) {
	var req ExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	res, err := s.svc.Explain(req.Waveform(), req.WindowMs)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) status(c *gin.Context) {
	st, err := s.svc.Status()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) featureSpace(c *gin.Context) {
	fs, err := s.svc.FeatureSpace()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, fs)
}

func (s *Server) predictRow(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	res, err := s.svc.PredictRow(0, req.Features)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PredictionEnvelope{
		RequestedAt:     s.now().UTC(),
		FeaturesUsed:    req.Features.Names(),
		AvailableModels: s.availableModels(),
		Result:          res,
	})
}

func (s *Server) predictBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	res, err := s.svc.PredictBatch(req.Rows)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, BatchEnvelope{
		RequestedAt:     s.now().UTC(),
		RowCount:        len(res.Results),
		AvailableModels: s.availableModels(),
		Results:         res.Results,
		Errors:          res.Errors,
	})
}

func (s *Server) availableModels() []string {
	fs, err := s.svc.FeatureSpace()
	if err != nil {
		return []string{}
	}
	return fs.AvailableModels
}

// fail maps service errors onto HTTP status codes. Unavailable artifacts
// are 503 so clients may retry; a rejected input is 400.
func (s *Server) fail(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrArtifactUnavailable):
		code = http.StatusServiceUnavailable
	case errors.Is(err, types.ErrPredictionFailed):
		code = http.StatusBadRequest
	case errors.Is(err, types.ErrAttributionUnavailable):
		code = http.StatusUnprocessableEntity
	}
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(code, gin.H{"detail": err.Error()})
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("invalid request body: %v", err)})
}
