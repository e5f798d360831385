package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericksa/contractlens/internal/analysis"
	"github.com/ericksa/contractlens/internal/app"
	"github.com/ericksa/contractlens/internal/config"
	"github.com/ericksa/contractlens/internal/extract"
	"github.com/ericksa/contractlens/internal/model"
	"github.com/ericksa/contractlens/internal/review"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{Review: config.ReviewConfig{
		Server:   config.ServerConfig{MaxUploadMB: 1, CORSOrigins: []string{"*"}},
		Pipeline: config.PipelineConfig{Concurrency: 2, SampleFallback: true, Seed: 3},
		Storage:  config.StorageConfig{Path: ":memory:", AuditPath: ":memory:"},
	}}
	a, err := app.New(cfg, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(newRouter(a))
	t.Cleanup(func() {
		srv.Close()
		a.Close()
	})
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeResp[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func uploadFile(t *testing.T, url, filename string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("document_id", "doc-http"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(url+"/api/documents", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func emptyDOCX(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// notAPDF uploads under a .pdf name with bytes that are not a PDF.
var notAPDF = []byte("plain bytes, not a pdf")

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp["status"])
}

func TestRules_CRUD(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/rules", map[string]any{"keyword": "indemnify", "allowed": false, "riskScore": 8})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeResp[model.ComplianceRule](t, resp)
	assert.NotEmpty(t, created.ID)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/rules", map[string]any{"keyword": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/rules/"+created.ID, map[string]any{"keyword": "hold harmless"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.DefaultRuleRiskScore, decodeResp[model.ComplianceRule](t, resp).RiskScore)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/rules/missing", map[string]any{"keyword": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/rules", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeResp[[]model.ComplianceRule](t, resp), 1)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/rules/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/rules/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDocumentFlow(t *testing.T) {
	srv := newTestServer(t)

	// An empty DOCX has no text, so the sample clauses stand in.
	resp := uploadFile(t, srv.URL, "contract.docx", emptyDOCX(t))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	res := decodeResp[analysis.Result](t, resp)
	assert.Equal(t, "doc-http", res.DocumentID)
	assert.True(t, res.Synthetic)
	require.NotEmpty(t, res.Clauses)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/documents/doc-http/clauses", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	clauses := decodeResp[[]model.Clause](t, resp)
	require.Len(t, clauses, len(res.Clauses))
	for i := range clauses {
		assert.Equal(t, res.Clauses[i].ID, clauses[i].ID)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/documents/doc-http/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sum := decodeResp[model.ContractSummary](t, resp)
	assert.Equal(t, "Acme Corporation", sum.Parties.Party1)

	for _, kind := range []string{"fees", "costs", "payment-terms"} {
		resp = doJSON(t, http.MethodPost, srv.URL+"/api/documents/doc-http/extract/"+kind, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, kind)
		assert.Equal(t, 0, decodeResp[review.ExtractionResult](t, resp).Added, kind)
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/documents/doc-http/extract/totals", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/clauses/"+clauses[0].ID, map[string]bool{"completed": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeResp[model.Clause](t, resp).Completed)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/documents/doc-http/summary", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpload_Errors(t *testing.T) {
	srv := newTestServer(t)

	resp := uploadFile(t, srv.URL, "contract.pdf", notAPDF)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = uploadFile(t, srv.URL, "notes.txt", []byte("hello"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, err := http.Post(srv.URL+"/api/documents", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTools(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/tools", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed := decodeResp[map[string][]map[string]string](t, resp)
	assert.NotEmpty(t, listed["tools"])

	resp = doJSON(t, http.MethodPost, srv.URL+"/tools/contract/analyze", map[string]any{"title": "pasted", "content": extract.SampleText(1)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	analyzed := decodeResp[map[string]any](t, resp)
	assert.Equal(t, float64(10), analyzed["clause_count"])

	resp = doJSON(t, http.MethodPost, srv.URL+"/tools/contract/nope", map[string]any{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = doJSON(t, http.MethodPost, srv.URL+"/tools/other/analyze", map[string]any{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/audit?limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	logs := decodeResp[[]map[string]any](t, resp)
	// unknown workers are rejected before the audit log
	require.Len(t, logs, 2)
	assert.Equal(t, "contract_nope", logs[0]["tool"])
	assert.Equal(t, "contract_analyze", logs[1]["tool"])
}

func TestMetricsAndCORS(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/rules", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
