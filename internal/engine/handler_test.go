package engine

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-scribe/verification-engine/internal/compliance"
	"carbon-scribe/verification-engine/internal/reports/dashboard"
	"carbon-scribe/verification-engine/internal/trends"
	"carbon-scribe/verification-engine/internal/verification"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cache := dashboard.NewSummaryCache(0)
	t.Cleanup(cache.Stop)

	svc := NewService(Dependencies{
		Repository: NewRepository(newTestDB(t)),
		Cache:      cache,
		Metrics:    NewMetrics(prometheus.NewRegistry()),
		Logger:     zap.NewNop(),
	})

	router := gin.New()
	NewHandler(svc).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func doRequest(router *gin.Engine, method, path, body, tier string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if tier != "" {
		req.Header.Set(TierHeader, tier)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandlerIngestAndHistory(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/subjects/session-1/documents", verifiedPayload, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result IngestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.NotNil(t, result.Run)
	assert.Equal(t, verification.StatusVerified, result.Run.Status)
	assert.Equal(t, int64(2), result.Run.CreditEligibility.EligibleCredits)

	w = doRequest(router, http.MethodGet, "/api/v1/subjects/session-1/summary", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var summary struct {
		Total        float64         `json:"total"`
		Scope2       float64         `json:"scope2"`
		MonthlyTrend json.RawMessage `json:"monthly_trend"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 2650.0, summary.Total)
	assert.Equal(t, 2650.0, summary.Scope2)

	w = doRequest(router, http.MethodGet, "/api/v1/subjects/session-1/runs/"+result.Run.ID.String(), "", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/subjects/session-1/trend", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var trend trends.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trend))
	assert.Equal(t, 1, trend.RunCount)
	assert.Equal(t, int64(2), trend.TotalCredits)
}

func TestHandlerErrorMapping(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		tier   string
		status int
	}{
		{"extraction failure", http.MethodPost, "/api/v1/subjects/s/documents", `{"status": "failed"}`, "", http.StatusUnprocessableEntity},
		{"malformed payload", http.MethodPost, "/api/v1/subjects/s/documents", `{not json`, "", http.StatusBadRequest},
		{"empty payload", http.MethodPost, "/api/v1/subjects/s/documents", ``, "", http.StatusBadRequest},
		{"unknown tier", http.MethodGet, "/api/v1/subjects/s/summary", ``, "platinum", http.StatusBadRequest},
		{"export on free tier", http.MethodGet, "/api/v1/subjects/s/runs/export", ``, "free", http.StatusForbidden},
		{"override on free tier", http.MethodPost, "/api/v1/subjects/s/evaluate", `{"frameworks": ["CBAM"]}`, "", http.StatusForbidden},
		{"unknown framework", http.MethodPost, "/api/v1/subjects/s/evaluate", `{"frameworks": ["KYOTO"]}`, "enterprise", http.StatusBadRequest},
		{"missing profile", http.MethodGet, "/api/v1/subjects/s/profile", ``, "", http.StatusNotFound},
		{"invalid run id", http.MethodGet, "/api/v1/subjects/s/runs/nope", ``, "", http.StatusBadRequest},
		{"merge into itself", http.MethodPost, "/api/v1/subjects/s/merge", `{"from_subject": "s"}`, "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, tt.method, tt.path, tt.body, tt.tier)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestHandlerEvaluateWithoutBody(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/subjects/s/evaluate", "", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var run verification.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, verification.StatusNoData, run.Status)
}

func TestHandlerExportOnProfessionalTier(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/subjects/acct/documents", verifiedPayload, "professional")
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/subjects/acct/runs/export", "", "professional")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), compliance.Disclaimer([]compliance.FrameworkID{compliance.GHGProtocol}))
}

func TestHandlerProfileAndMerge(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodPut, "/api/v1/subjects/account-1/profile",
		`{"country": "India", "sector": "steel", "size": "large", "exports_to_eu": true}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(router, http.MethodPost, "/api/v1/subjects/session-9/documents", verifiedPayload, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/subjects/account-1/merge", `{"from_subject": "session-9"}`, "professional")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result MergeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, int64(1), result.Merge.RecordsMoved)
	assert.Equal(t, int64(1), result.Merge.RunsMoved)
	assert.Contains(t, result.Run.Frameworks, compliance.CBAM)
	assert.True(t, result.Run.CBAMCompliant)

	w = doRequest(router, http.MethodGet, "/api/v1/subjects/account-1/runs", "", "professional")
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Count)
}

func TestHandlerResolveFrameworks(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/frameworks/resolve",
		`{"profile": {"country": "IN", "size": "large-listed", "exports_to_eu": true, "sector": "steel"}}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resolution compliance.Resolution
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resolution))
	assert.Contains(t, resolution.Frameworks, compliance.GHGProtocol)
	assert.Contains(t, resolution.Frameworks, compliance.CBAM)
	assert.Contains(t, resolution.Frameworks, compliance.IndiaBRSR)
}
