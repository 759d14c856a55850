package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/classcycle/internal/analyzer"
	"github.com/ajitpratap0/classcycle/internal/api"
	"github.com/ajitpratap0/classcycle/internal/models"
	"github.com/ajitpratap0/classcycle/internal/scanner"
	"github.com/ajitpratap0/classcycle/internal/store"
	"github.com/ajitpratap0/classcycle/internal/testsupport"
)

// newTestServer creates a test HTTP server backed by a MockStore.
func newTestServer(t *testing.T, authToken string) (*httptest.Server, *store.MockStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMockStore()
	srv := api.NewServer(scanner.Options{Workers: 2}, analyzer.Options{}, st, logger, authToken)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func doRequest(t *testing.T, method, url string, body *bytes.Buffer, token string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(context.Background(), method, url, body)
	} else {
		req, err = http.NewRequestWithContext(context.Background(), method, url, http.NoBody)
	}
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func cyclicDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testsupport.WriteClassDir(t, dir,
		testsupport.NewClassFile("shop.Cart").Uses("shop.pay.Payment"),
		testsupport.NewClassFile("shop.pay.Payment").Method("refund", "(Lshop/Cart;)V"),
	)
	return dir
}

func TestAPI_Healthz(t *testing.T) {
	ts, _ := newTestServer(t, "secret")

	resp := doRequest(t, http.MethodGet, ts.URL+"/healthz", nil, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "ok", result["status"])
}

func TestAPI_AuthRequired(t *testing.T) {
	ts, _ := newTestServer(t, "secret")

	for _, token := range []string{"", "wrong"} {
		resp := doRequest(t, http.MethodGet, ts.URL+"/v1/runs", nil, token)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/runs", nil, "secret")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_Escape(t *testing.T) {
	ts, _ := newTestServer(t, "")

	tests := []struct {
		name string
		body map[string]any
		want string
	}{
		{"markup", map[string]any{"text": "<hel&lo>"}, "&lt;hel&amp;lo&gt;"},
		{"plain", map[string]any{"text": "plain text"}, "plain text"},
		{"missing text", map[string]any{}, ""},
		{"null text", map[string]any{"text": nil}, ""},
		{"quotes", map[string]any{"text": `a="b"`, "quotes": true}, "a=&quot;b&quot;"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodPost, ts.URL+"/v1/escape", jsonBody(t, tc.body), "")
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var result map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
			assert.Equal(t, tc.want, result["escaped"])
		})
	}
}

func TestAPI_EscapeInvalidBody(t *testing.T) {
	ts, _ := newTestServer(t, "")
	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/escape", bytes.NewBufferString("{not json"), "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_EscapeBodyTooLarge(t *testing.T) {
	ts, _ := newTestServer(t, "")
	big := strings.Repeat("&", 2<<20)
	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/escape", jsonBody(t, map[string]any{"text": big}), "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_AnalyzeJSONAndSave(t *testing.T) {
	ts, st := newTestServer(t, "")

	body := jsonBody(t, map[string]any{"paths": []string{cyclicDir(t)}, "save": true, "title": "shop"})
	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/analyze", body, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var a models.Analysis
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&a))
	assert.Equal(t, "shop", a.Title)
	require.Len(t, a.ClassCycles, 1)
	assert.Equal(t, "shop.Cart et al.", a.ClassCycles[0].Name)
	assert.Equal(t, a.ID, resp.Header.Get("X-Analysis-Id"))

	run, err := st.GetRun(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.ClassCycles)
	assert.Equal(t, 1, run.PackageCycles)
}

func TestAPI_AnalyzeXML(t *testing.T) {
	ts, _ := newTestServer(t, "")

	body := jsonBody(t, map[string]any{"paths": []string{cyclicDir(t)}, "format": "XML", "title": "<shop> & co"})
	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/analyze", body, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/xml")

	var doc struct {
		Title string `xml:"title,attr"`
	}
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "<shop> & co", doc.Title)
}

func TestAPI_AnalyzeErrors(t *testing.T) {
	ts, _ := newTestServer(t, "")

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"no paths", map[string]any{}, http.StatusBadRequest},
		{"bad format", map[string]any{"paths": []string{"x"}, "format": "pdf"}, http.StatusBadRequest},
		{"missing input", map[string]any{"paths": []string{"/does/not/exist"}}, http.StatusUnprocessableEntity},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodPost, ts.URL+"/v1/analyze", jsonBody(t, tc.body), "")
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestAPI_Runs(t *testing.T) {
	ts, st := newTestServer(t, "")
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new"} {
		require.NoError(t, st.SaveAnalysis(ctx, &models.Analysis{
			ID:          id,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
			ClassCycles: []models.Cycle{{Name: "a.A et al.", Level: models.LevelClass, Members: []string{"a.A", "a.B"}}},
		}))
	}

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/runs?limit=1", nil, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Runs []models.RunSummary `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, "new", list.Runs[0].ID)

	bad := doRequest(t, http.MethodGet, ts.URL+"/v1/runs?limit=zero", nil, "")
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	got := doRequest(t, http.MethodGet, ts.URL+"/v1/runs/old", nil, "")
	defer got.Body.Close()
	require.Equal(t, http.StatusOK, got.StatusCode)
	var run models.RunSummary
	require.NoError(t, json.NewDecoder(got.Body).Decode(&run))
	assert.Equal(t, 1, run.ClassCycles)

	missing := doRequest(t, http.MethodGet, ts.URL+"/v1/runs/nope", nil, "")
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestAPI_RunCycles(t *testing.T) {
	ts, st := newTestServer(t, "")
	require.NoError(t, st.SaveAnalysis(context.Background(), &models.Analysis{
		ID:          "r1",
		ClassCycles: []models.Cycle{{Name: "a.A et al.", Level: models.LevelClass, Members: []string{"a.A", "a.B"}}},
	}))

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/runs/r1/cycles", nil, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Level  models.Level   `json:"level"`
		Cycles []models.Cycle `json:"cycles"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, models.LevelClass, out.Level)
	require.Len(t, out.Cycles, 1)

	pkg := doRequest(t, http.MethodGet, ts.URL+"/v1/runs/r1/cycles?level=package", nil, "")
	defer pkg.Body.Close()
	require.Equal(t, http.StatusOK, pkg.StatusCode)
	require.NoError(t, json.NewDecoder(pkg.Body).Decode(&out))
	assert.Empty(t, out.Cycles)

	bad := doRequest(t, http.MethodGet, ts.URL+"/v1/runs/r1/cycles?level=module", nil, "")
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	missing := doRequest(t, http.MethodGet, ts.URL+"/v1/runs/zz/cycles", nil, "")
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestAPI_NoStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := api.NewServer(scanner.Options{}, analyzer.Options{}, nil, logger, "")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/runs", nil, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestShutdown(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", ReadHeaderTimeout: time.Second}
	require.NoError(t, api.Shutdown(srv, time.Second))
}
