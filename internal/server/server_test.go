// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/dcrm-diagnostics/internal/client"
	"github.com/pdiddy/dcrm-diagnostics/internal/diagnostics"
	"github.com/pdiddy/dcrm-diagnostics/internal/testfixture"
	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingStore struct {
	runs []*types.Run
	err  error
}

func (r *recordingStore) Save(_ context.Context, run *types.Run) error {
	if r.err != nil {
		return r.err
	}
	run.ID = "run-1"
	r.runs = append(r.runs, run)
	return nil
}

// fixtureDirs lays out the three artifact sets. Layouts named in skip are
// left empty.
func fixtureDirs(t *testing.T, skip ...string) types.ArtifactsConfig {
	t.Helper()
	root := t.TempDir()
	dirs := types.ArtifactsConfig{
		DCRMModelDir:        filepath.Join(root, "dcrm"),
		AdvancedModelDir:    filepath.Join(root, "advanced"),
		AttributionModelDir: filepath.Join(root, "attribution"),
	}
	skipped := map[string]bool{}
	for _, s := range skip {
		skipped[s] = true
	}
	if !skipped["dcrm"] {
		testfixture.WriteDCRM(t, dirs.DCRMModelDir)
	}
	if !skipped["advanced"] {
		testfixture.WriteAdvanced(t, dirs.AdvancedModelDir)
	}
	if !skipped["attribution"] {
		testfixture.WriteAttribution(t, dirs.AttributionModelDir)
	}
	return dirs
}

func newTestServer(t *testing.T, cfg types.ServerConfig, dirs types.ArtifactsConfig, opts ...Option) *Server {
	t.Helper()
	svc := diagnostics.New(types.DiagnosticsConfig{Artifacts: dirs},
		diagnostics.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return New(svc, cfg, nil, opts...)
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			r = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestDiagnosticsRoutes(t *testing.T) {
	s := newTestServer(t, types.ServerConfig{}, fixtureDirs(t))

	rec := do(t, s, http.MethodGet, "/api/v1/diagnostics/features", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testfixture.DCRMFeatures, decode[map[string][]string](t, rec)["features"])

	rec = do(t, s, http.MethodPost, "/api/v1/diagnostics/predict", `{"contact_resistance_uohm": 150, "coil_current_a": "bad"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[types.Diagnosis](t, rec)
	assert.Equal(t, testfixture.LabelContactWear, d.Diagnosis)
	assert.Equal(t, types.StatusFaulty, d.Status)

	rec = do(t, s, http.MethodPost, "/api/v1/diagnostics/predict", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNewModelsRoutes(t *testing.T) {
	s := newTestServer(t, types.ServerConfig{}, fixtureDirs(t))

	rec := do(t, s, http.MethodGet, "/api/v1/new-models/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[types.ModelsStatus](t, rec)
	assert.Equal(t, 7, st.ArtifactCount)
	assert.Equal(t, len(testfixture.AdvancedFeatures), st.FeatureCount)

	rec = do(t, s, http.MethodGet, "/api/v1/new-models/features", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testfixture.AdvancedFeatures, decode[types.FeatureSpace](t, rec).Features)

	rec = do(t, s, http.MethodPost, "/api/v1/new-models/predict",
		`{"features": {"main_contact_resistance": 300, "coil_current_a": 4, "breaker_type": "SF6"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode[PredictionEnvelope](t, rec)
	assert.Equal(t, []string{"main_contact_resistance", "coil_current_a", "breaker_type"}, env.FeaturesUsed)
	assert.Equal(t, []string{types.ModelXGBoost, types.ModelAdaBoost, types.ModelAutoencoder}, env.AvailableModels)
	assert.Equal(t, testfixture.LabelContactWear, env.Result.Primary.Label)
	require.NotNil(t, env.Result.Reconstruction)
	assert.True(t, env.Result.Reconstruction.IsAnomaly)

	rec = do(t, s, http.MethodPost, "/api/v1/new-models/batch",
		`{"rows": [{"main_contact_resistance": 60}, {"main_contact_resistance": 200}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	batch := decode[BatchEnvelope](t, rec)
	assert.Equal(t, 2, batch.RowCount)
	assert.Equal(t, 1, batch.Results[1].RowIndex)
	assert.Empty(t, batch.Errors)
}

func TestArtifactsUnavailableIs503(t *testing.T) {
	s := newTestServer(t, types.ServerConfig{}, fixtureDirs(t, "dcrm", "advanced", "attribution"))

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/v1/diagnostics/features", ""},
		{http.MethodPost, "/api/v1/diagnostics/predict", `{}`},
		{http.MethodPost, "/api/v1/diagnostics/explain", `{"columns": ["Time"], "rows": [[0]]}`},
		{http.MethodGet, "/api/v1/new-models/status", ""},
		{http.MethodGet, "/api/v1/new-models/features", ""},
		{http.MethodPost, "/api/v1/new-models/predict", `{"features": {}}`},
		{http.MethodPost, "/api/v1/new-models/batch", `{"rows": []}`},
	} {
		t.Run(tc.path, func(t *testing.T) {
			var body any
			if tc.body != "" {
				body = tc.body
			}
			rec := do(t, s, tc.method, tc.path, body)
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
			assert.Contains(t, decode[map[string]string](t, rec)["detail"], "unavailable")
		})
	}
}

func TestExplainRoute(t *testing.T) {
	s := newTestServer(t, types.ServerConfig{}, fixtureDirs(t))

	rows := make([][]*float64, 0, 30)
	for i := 0; i < 30; i++ {
		ts, r := float64(i), 50.0
		if i >= 20 {
			r = 300
		}
		rows = append(rows, []*float64{&ts, &r, nil})
	}
	rec := do(t, s, http.MethodPost, "/api/v1/diagnostics/explain",
		ExplainRequest{Columns: []string{"Time (ms)", "Resistance", "Travel"}, Rows: rows, WindowMs: 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[types.AttributionResult](t, rec)
	assert.Len(t, res.Windows, 3)
	assert.Equal(t, types.ChannelAttribution{0, 0, 1}, res.Attributions[types.ModelXGBoost][types.ChannelResistance])

	rec = do(t, s, http.MethodPost, "/api/v1/diagnostics/explain", ExplainRequest{Columns: []string{"Time"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestExplainRequest_Waveform(t *testing.T) {
	one := 1.0
	w := ExplainRequest{Columns: []string{"a", "b"}, Rows: [][]*float64{{&one, nil}}}.Waveform()
	assert.Equal(t, 1.0, w.Rows[0][0])
	assert.NotEqual(t, w.Rows[0][1], w.Rows[0][1], "null becomes NaN")
}

func multipartUpload(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	store := &recordingStore{}
	s := newTestServer(t, types.ServerConfig{UploadRowLimit: 2}, fixtureDirs(t), WithRunStore(store))

	csv := "contact_resistance_uohm,coil_current_a,main_contact_resistance\n150,4,200\n50,80,60\n50,4,60\n"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, multipartUpload(t, "402-B.csv", csv))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[UploadResponse](t, rec)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "402-B.csv", resp.Filename)
	assert.Equal(t, len(csv), resp.Bytes)
	assert.Equal(t, 3, resp.DiagnosticsTotalRows)
	assert.Equal(t, 2, resp.DiagnosticsProcessedRows)
	require.Len(t, resp.Diagnostics, 2)
	assert.Equal(t, testfixture.LabelContactWear, resp.Diagnostics[0].Diagnosis)
	assert.Equal(t, testfixture.LabelCoilFault, resp.Diagnostics[1].Diagnosis)
	assert.Equal(t, 1, resp.Diagnostics[1].RowIndex)

	require.NotNil(t, resp.Advanced)
	assert.Equal(t, 2, resp.Advanced.Succeeded())
	require.NotNil(t, resp.Shap, "a synthesised time axis still yields one window")
	assert.Len(t, resp.Shap.Windows, 1)

	require.Len(t, store.runs, 1)
	assert.Equal(t, 2, store.runs[0].ProcessedRows)
}

func TestUpload_WaveformAttribution(t *testing.T) {
	s := newTestServer(t, types.ServerConfig{}, fixtureDirs(t, "advanced"))

	var b strings.Builder
	b.WriteString("Breaker,402-B\n")
	b.WriteString("Time (ms),Resistance CH1 (uOhm),Travel T1 (mm),Coil Current C1 (A)\n")
	for i := 0; i < 25; i++ {
		r := "50"
		if i >= 10 && i < 20 {
			r = "300"
		}
		b.WriteString(strings.Join([]string{strconv.Itoa(i), r, "0", "1"}, ",") + "\n")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, multipartUpload(t, "402-B 26-11-2021.CSV", b.String()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[UploadResponse](t, rec)
	assert.Equal(t, 25, resp.DiagnosticsProcessedRows)
	assert.Nil(t, resp.Advanced, "advanced artifacts are missing")
	require.NotNil(t, resp.Shap)
	assert.Len(t, resp.Shap.Windows, 3)
	assert.Equal(t, types.ChannelAttribution{0, 1, 0}, resp.Shap.Attributions[types.ModelXGBoost][types.ChannelResistance])
}

func TestUpload_Rejections(t *testing.T) {
	s := newTestServer(t, types.ServerConfig{}, fixtureDirs(t))

	tests := []struct {
		name     string
		filename string
		content  string
		want     int
	}{
		{"not csv", "data.xlsx", "a,b\n1,2\n", http.StatusBadRequest},
		{"empty file", "empty.csv", "", http.StatusBadRequest},
		{"header only", "header.csv", "a,b\n", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, multipartUpload(t, tt.filename, tt.content))
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", strings.NewReader(""))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_PersistFailureStillAnswers(t *testing.T) {
	store := &recordingStore{err: errors.New("disk full")}
	s := newTestServer(t, types.ServerConfig{}, fixtureDirs(t), WithRunStore(store))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, multipartUpload(t, "a.csv", "contact_resistance_uohm\n50\n"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[UploadResponse](t, rec).RunID)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, types.ServerConfig{}, fixtureDirs(t))

	do(t, s, http.MethodGet, "/api/v1/diagnostics/features", nil)
	rec := do(t, s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health struct {
		Status string          `json:"status"`
		Loaded map[string]bool `json:"loaded"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.True(t, health.Loaded["dcrm"])
	assert.False(t, health.Loaded["advanced"])

	rec = do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dcrm_artifacts_loads_total")
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, types.ServerConfig{CORSOrigins: []string{"http://localhost:3000"}}, fixtureDirs(t))
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/new-models/status", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestClientRoundTrip(t *testing.T) {
	s := newTestServer(t, types.ServerConfig{}, fixtureDirs(t))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	c := client.New(ts.URL, types.HTTPConfig{MaxRetries: 1}, nil)

	d, err := c.PredictFeatures(context.Background(),
		types.NewRawRow(types.Field{Name: "coil_current_a", Value: 80}))
	require.NoError(t, err)
	assert.Equal(t, testfixture.LabelCoilFault, d.Diagnosis)

	res, err := c.PredictBatch(context.Background(), []types.RawRow{
		types.NewRawRow(types.Field{Name: "main_contact_resistance", Value: 60}),
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Succeeded())
	assert.Equal(t, types.StatusHealthy, res.Results[0].Status)

	fs, err := c.FeatureSpace(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testfixture.AdvancedFeatures, fs.Features)
}
