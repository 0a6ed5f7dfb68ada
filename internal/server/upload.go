// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdiddy/dcrm-diagnostics/internal/frame"
	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

// UploadResponse is returned by POST /api/v1/uploads.
type UploadResponse struct {
	RunID                    string                   `json:"runId,omitempty"`
	Filename                 string                   `json:"filename"`
	Bytes                    int                      `json:"bytes"`
	Diagnostics              []types.Diagnosis        `json:"diagnostics"`
	DiagnosticsProcessedRows int                      `json:"diagnosticsProcessedRows"`
	DiagnosticsTotalRows     int                      `json:"diagnosticsTotalRows"`
	Advanced                 *types.BatchResult       `json:"advanced,omitempty"`
	Shap                     *types.AttributionResult `json:"shap,omitempty"`
}

// upload diagnoses a multipart CSV. The first upload_row_limit rows go
// through the feature-dict path; any row failing fails the request. The
// advanced batch and the waveform attribution are added when their
// artifacts are available and omitted otherwise.
func (s *Server) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.detail(c, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.detail(c, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	name := fh.Filename
	if name == "" {
		name = "upload.csv"
	}
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		s.detail(c, http.StatusBadRequest, "Only .csv files are allowed")
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.detail(c, http.StatusBadRequest, "cannot open uploaded file")
		return
	}
	defer f.Close()
	contents, err := io.ReadAll(f)
	if err != nil {
		s.detail(c, http.StatusBadRequest, "cannot read uploaded file")
		return
	}
	if len(contents) == 0 {
		s.detail(c, http.StatusBadRequest, "Uploaded file is empty")
		return
	}

	table, err := frame.Read(bytes.NewReader(contents), frame.Options{
		HeaderMarker:   frame.DCRMHeaderMarker,
		MarkerOptional: true,
	})
	if err != nil {
		s.detail(c, http.StatusBadRequest, "Invalid CSV format")
		return
	}
	if table.Len() == 0 {
		s.detail(c, http.StatusBadRequest, "CSV has no data rows")
		return
	}

	if _, err := s.svc.Features(); err != nil {
		s.fail(c, err)
		return
	}

	rows := table.Head(s.cfg.UploadRowLimit).Rows()
	resp := UploadResponse{
		Filename:             name,
		Bytes:                len(contents),
		Diagnostics:          make([]types.Diagnosis, 0, len(rows)),
		DiagnosticsTotalRows: table.Len(),
	}
	for i, row := range rows {
		d, err := s.svc.PredictFeatures(row)
		if err != nil {
			s.fail(c, fmt.Errorf("row %d: %w", i, err))
			return
		}
		d.RowIndex = i
		resp.Diagnostics = append(resp.Diagnostics, d)
	}
	resp.DiagnosticsProcessedRows = len(resp.Diagnostics)

	if batch, err := s.svc.PredictBatch(rows); err == nil {
		resp.Advanced = &batch
	} else {
		s.logger.Debug("advanced diagnostics skipped", zap.Error(err))
	}

	if shap, err := s.svc.Explain(table.Waveform(), 0); err == nil {
		resp.Shap = shap
	} else {
		s.logger.Info("attribution omitted", zap.String("file", name), zap.Error(err))
	}

	if s.runs != nil {
		run := &types.Run{
			Source:        name,
			TotalRows:     resp.DiagnosticsTotalRows,
			ProcessedRows: resp.DiagnosticsProcessedRows,
			Diagnoses:     resp.Diagnostics,
			Advanced:      resp.Advanced,
			Attribution:   resp.Shap,
		}
		if err := s.runs.Save(c.Request.Context(), run); err != nil {
			s.logger.Error("persisting upload failed", zap.String("file", name), zap.Error(err))
		} else {
			resp.RunID = run.ID
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) detail(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"detail": msg})
}
