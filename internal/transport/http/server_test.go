package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"gopherai-study/internal/app"
	"gopherai-study/internal/metrics"
	"gopherai-study/internal/model"
	"gopherai-study/internal/pkg/jwtutil"
	"gopherai-study/internal/transport/http/handler"
)

type recordingLifecycle struct {
	userID *uint
}

func (r *recordingLifecycle) Heartbeat(_ context.Context, _ string, userID *uint) error {
	r.userID = userID
	return nil
}

func (r *recordingLifecycle) Teardown(context.Context, string) error { return nil }

type emptyOutlines struct{}

func (emptyOutlines) Ingest(context.Context, app.IngestInput) (*app.IngestResult, error) {
	return &app.IngestResult{}, nil
}

func (emptyOutlines) IngestBatch(context.Context, []app.IngestInput) []app.BatchItem { return nil }

func (emptyOutlines) DeleteDocument(context.Context, string, string) (bool, error) { return true, nil }

func (emptyOutlines) GetDocumentOutline(_ context.Context, sessionID, filename string) (*app.DocumentOutlineResult, error) {
	return &app.DocumentOutlineResult{SessionID: sessionID, Filename: filename}, nil
}

func (emptyOutlines) GetSessionOutline(context.Context, string) ([]model.UnifiedSection, error) {
	return []model.UnifiedSection{}, nil
}

func testRouter(lc *recordingLifecycle) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return Register(Handlers{
		Health:    handler.NewHealthHandler("study", "test", time.Now()),
		Sessions:  handler.NewSessionHandler(lc),
		Documents: handler.NewDocumentHandler(emptyOutlines{}, nil, 800, 80),
		Quiz:      handler.NewQuizHandler(nil),
		Ask:       handler.NewAskHandler(nil),
		Metrics:   metrics.New().Handler(),
	}, "secret")
}

func TestRouterServesOperationalEndpoints(t *testing.T) {
	router := testRouter(&recordingLifecycle{})

	for _, path := range []string{"/healthz", "/metrics", "/api/v1/sessions/s1/outline", "/api/v1/sessions/s1/documents/a.pdf"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRouterAttachesOptionalIdentity(t *testing.T) {
	lc := &recordingLifecycle{}
	router := testRouter(lc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s1/heartbeat", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, lc.userID)

	token, err := jwtutil.GenerateToken("secret", time.Minute, 5, "lin")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s1/heartbeat", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 5, *lc.userID)
}
