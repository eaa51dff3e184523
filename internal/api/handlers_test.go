package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/boss-timer/backend/internal/analyzer"
	"github.com/boss-timer/backend/internal/models"
	"github.com/boss-timer/backend/internal/notify"
	"github.com/boss-timer/backend/internal/session"
	"github.com/boss-timer/backend/internal/storage"
	"github.com/boss-timer/backend/internal/testutil"
)

var png = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type testServer struct {
	e   *echo.Echo
	mgr *session.Manager
	ai  *testutil.FakeAnalyzer
	hub *notify.Hub
}

func newTestServer(t *testing.T, opts session.Options) *testServer {
	t.Helper()
	store, err := storage.NewStore(afero.NewMemMapFs(), "/uploads", 0)
	require.NoError(t, err)

	s := &testServer{
		e:   echo.New(),
		ai:  &testutil.FakeAnalyzer{},
		hub: notify.NewHub(),
	}
	s.mgr = session.NewManager(store, s.ai, s.hub, opts)
	t.Cleanup(func() { _ = s.mgr.Close(context.Background()) })

	s.e.HTTPErrorHandler = ErrorHandler
	RegisterRoutes(s.e, NewHandlers(&Dependencies{
		Sessions:   s.mgr,
		Hub:        s.hub,
		Version:    "test",
		AnalyzerOK: true,
	}))
	return s
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(t *testing.T, method, path string, v interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return s.do(t, method, path, bytes.NewReader(data), echo.MIMEApplicationJSON)
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/sessions", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var view models.SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.NotEmpty(t, view.ID)
	return view.ID
}

func (s *testServer) paste(t *testing.T, id string) *httptest.ResponseRecorder {
	t.Helper()
	return s.doJSON(t, http.MethodPost, "/api/sessions/"+id+"/files/paste", PasteRequest{
		Name: "clip.png",
		Data: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}

func (s *testServer) waitStatus(t *testing.T, id string, want models.SessionStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		v, err := s.mgr.Get(id)
		return err == nil && v.Status == want
	}, 2*time.Second, 10*time.Millisecond)
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, session.Options{})
	s.createSession(t)

	rec := s.do(t, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"sessions":1`)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, session.Options{})
	id := s.createSession(t)

	rec := s.do(t, http.MethodGet, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"idle"`)
	assert.Contains(t, rec.Body.String(), `"showSeconds":true`)

	rec = s.do(t, http.MethodPost, "/api/sessions/"+id+"/keepalive", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeAPIError(t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/sessions/"+id+"/keepalive", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadFilesMultipart(t *testing.T) {
	s := newTestServer(t, session.Options{})
	id := s.createSession(t)

	stamp := time.Date(2025, 6, 1, 13, 58, 12, 0, time.UTC)
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", "boss1.png")
	part.Write(png)
	require.NoError(t, writer.WriteField("lastModified", fmt.Sprint(stamp.UnixMilli())))
	part, _ = writer.CreateFormFile("file", "boss2.png")
	part.Write(png)
	writer.Close()

	rec := s.do(t, http.MethodPost, "/api/sessions/"+id+"/files", body, writer.FormDataContentType())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var files []*models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	require.Len(t, files, 2)
	assert.Equal(t, "boss1.png", files[0].Name)
	assert.Equal(t, "image/png", files[0].MimeType)
	assert.True(t, files[0].ModifiedAt.Equal(stamp))
	assert.False(t, files[1].ModifiedAt.IsZero())

	rec = s.do(t, http.MethodGet, "/api/sessions/"+id+"/files", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "boss2.png")

	rec = s.do(t, http.MethodDelete, "/api/sessions/"+id+"/files/"+files[0].ID, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/sessions/"+id+"/files/"+files[0].ID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadRejectsNonImage(t *testing.T) {
	s := newTestServer(t, session.Options{})
	id := s.createSession(t)

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", "notes.txt")
	part.Write([]byte("just some text"))
	writer.Close()

	rec := s.do(t, http.MethodPost, "/api/sessions/"+id+"/files", body, writer.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/sessions/"+id+"/files", strings.NewReader("x"), echo.MIMETextPlain)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPasteFile(t *testing.T) {
	s := newTestServer(t, session.Options{MaxFilesPerSession: 1})
	id := s.createSession(t)

	rec := s.paste(t, id)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var info models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "clip.png", info.Name)
	assert.Equal(t, "image/png", info.MimeType)

	rec = s.paste(t, id)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = s.doJSON(t, http.MethodPost, "/api/sessions/"+id+"/files/paste", PasteRequest{Data: "***"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.doJSON(t, http.MethodPost, "/api/sessions/"+id+"/files/paste", PasteRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeAPIError(t, rec).Code)
}

func TestAnalyzeAndRenderSchedule(t *testing.T) {
	s := newTestServer(t, session.Options{})
	s.ai.Set(&models.AnalysisResult{
		ReferenceTime: "14:00:00",
		Bosses: []models.BossSpawn{
			{BossName: "보스B", SpawnTime: "13:30:00"},
			{BossName: "보스A", SpawnTime: "15:00:00"},
		},
	}, nil)
	id := s.createSession(t)

	rec := s.do(t, http.MethodPost, "/api/sessions/"+id+"/analyze", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusCreated, s.paste(t, id).Code)
	rec = s.do(t, http.MethodPost, "/api/sessions/"+id+"/analyze", nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	s.waitStatus(t, id, models.SessionStatusReady)

	rec = s.do(t, http.MethodGet, "/api/sessions/"+id+"/schedule", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ScheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "14:00:00", resp.ReferenceTime)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "보스A", resp.Entries[0].DisplayName)
	assert.Equal(t, "15:00:00", resp.Entries[0].DisplayTime)
	assert.Equal(t, "보스B", resp.Entries[1].DisplayName)
	assert.Equal(t, 1, resp.Entries[1].DayOffset)

	rec = s.do(t, http.MethodGet, "/api/sessions/"+id+"/schedule?invasion=true&seconds=false", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "(침공)보스A", resp.Entries[0].DisplayName)
	assert.Equal(t, "15:00", resp.Entries[0].DisplayTime)

	rec = s.do(t, http.MethodGet, "/api/sessions/"+id+"/schedule?seconds=maybe", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/sessions/"+id+"/schedule/export", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "15:00:00 보스A\n13:30:00 보스B", rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/sessions/"+id+"/schedule/msgpack", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get(echo.HeaderContentType))
	var packed ScheduleResponse
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &packed))
	assert.Equal(t, "14:00:00", packed.ReferenceTime)
	assert.Len(t, packed.Entries, 2)
}

func TestScheduleBeforeAnalysisIsEmpty(t *testing.T) {
	s := newTestServer(t, session.Options{})
	id := s.createSession(t)

	rec := s.do(t, http.MethodGet, "/api/sessions/"+id+"/schedule", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"entries":[]`)

	rec = s.do(t, http.MethodGet, "/api/sessions/"+id+"/schedule/export", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/sessions/missing/schedule", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeConflictWhileRunning(t *testing.T) {
	s := newTestServer(t, session.Options{})
	gate := make(chan struct{})
	s.ai.Gate = gate
	t.Cleanup(func() { close(gate) })
	id := s.createSession(t)
	require.Equal(t, http.StatusCreated, s.paste(t, id).Code)

	rec := s.do(t, http.MethodPost, "/api/sessions/"+id+"/analyze", nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"analyzing"`)

	rec = s.do(t, http.MethodPost, "/api/sessions/"+id+"/analyze", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.paste(t, id)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAnalyzeRateLimited(t *testing.T) {
	s := newTestServer(t, session.Options{AnalysisBurst: 1, AnalysisInterval: time.Hour})
	id := s.createSession(t)
	require.Equal(t, http.StatusCreated, s.paste(t, id).Code)

	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/api/sessions/"+id+"/analyze", nil, "").Code)
	s.waitStatus(t, id, models.SessionStatusReady)

	rec := s.do(t, http.MethodPost, "/api/sessions/"+id+"/analyze", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decodeAPIError(t, rec).Code)
}

func TestAnalyzeFailureReportsMessage(t *testing.T) {
	s := newTestServer(t, session.Options{})
	s.ai.Set(nil, errors.Join(analyzer.ErrAnalysisFailed, errors.New("quota")))
	id := s.createSession(t)
	require.Equal(t, http.StatusCreated, s.paste(t, id).Code)

	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/api/sessions/"+id+"/analyze", nil, "").Code)
	s.waitStatus(t, id, models.SessionStatusError)

	rec := s.do(t, http.MethodGet, "/api/sessions/"+id, nil, "")
	assert.Contains(t, rec.Body.String(), analyzer.ErrAnalysisFailed.Error())
}

func TestSessionReportsEffectiveReference(t *testing.T) {
	now := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	s := newTestServer(t, session.Options{Location: time.UTC, Now: func() time.Time { return now }})
	s.ai.Set(&models.AnalysisResult{
		ReferenceTime: "n/a",
		Bosses:        []models.BossSpawn{{BossName: "보스A", SpawnTime: "15:00:00"}},
	}, nil)
	id := s.createSession(t)
	require.Equal(t, http.StatusCreated, s.paste(t, id).Code)
	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/api/sessions/"+id+"/analyze", nil, "").Code)
	s.waitStatus(t, id, models.SessionStatusReady)

	rec := s.do(t, http.MethodGet, "/api/sessions/"+id, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view models.SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "14:00:00", view.ReferenceTime)
	assert.Equal(t, "n/a", view.ReportedReference)
}

func TestAnalyzeWithoutAnalyzer(t *testing.T) {
	store, err := storage.NewStore(afero.NewMemMapFs(), "/uploads", 0)
	require.NoError(t, err)
	mgr := session.NewManager(store, nil, nil, session.Options{})
	t.Cleanup(func() { _ = mgr.Close(context.Background()) })
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	RegisterRoutes(e, NewHandlers(&Dependencies{Sessions: mgr, Hub: notify.NewHub()}))

	view, err := mgr.Create()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+view.ID+"/analyze", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProgressStreamEndsWhenIdle(t *testing.T) {
	s := newTestServer(t, session.Options{})
	id := s.createSession(t)
	require.Equal(t, http.StatusCreated, s.paste(t, id).Code)
	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/api/sessions/"+id+"/analyze", nil, "").Code)
	s.waitStatus(t, id, models.SessionStatusReady)

	rec := s.do(t, http.MethodGet, "/api/sessions/"+id+"/analyze/progress", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: "))
	assert.Contains(t, body, `"status":"ready"`)
	assert.Equal(t, 1, strings.Count(body, "data: "))
}

func TestProgressStreamFollowsAnalysis(t *testing.T) {
	s := newTestServer(t, session.Options{})
	gate := make(chan struct{})
	s.ai.Gate = gate
	id := s.createSession(t)
	require.Equal(t, http.StatusCreated, s.paste(t, id).Code)
	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/api/sessions/"+id+"/analyze", nil, "").Code)

	time.AfterFunc(100*time.Millisecond, func() { close(gate) })
	rec := s.do(t, http.MethodGet, "/api/sessions/"+id+"/analyze/progress", nil, "")
	body := rec.Body.String()
	assert.Contains(t, body, `"status":"analyzing"`)
	assert.Contains(t, body, `"status":"ready"`)
}

func TestDisplayAndAlertSettings(t *testing.T) {
	s := newTestServer(t, session.Options{})
	id := s.createSession(t)

	rec := s.doJSON(t, http.MethodPut, "/api/sessions/"+id+"/display", models.DisplayOptions{Invasion: true})
	require.Equal(t, http.StatusOK, rec.Code)
	opts, err := s.mgr.Display(id)
	require.NoError(t, err)
	assert.Equal(t, models.DisplayOptions{Invasion: true}, opts)

	rec = s.doJSON(t, http.MethodPut, "/api/sessions/"+id+"/alerts", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alertsEnabled":true`)

	rec = s.doJSON(t, http.MethodPut, "/api/sessions/"+id+"/alerts", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.doJSON(t, http.MethodPut, "/api/sessions/"+id+"/alerts", map[string]bool{"enabled": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alertsEnabled":false`)

	rec = s.doJSON(t, http.MethodPut, "/api/sessions/"+id+"/permission", map[string]string{"permission": "granted"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"permission":"granted"`)

	rec = s.doJSON(t, http.MethodPut, "/api/sessions/"+id+"/permission", map[string]string{"permission": "sometimes"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearFilesResetsSchedule(t *testing.T) {
	s := newTestServer(t, session.Options{})
	s.ai.Set(&models.AnalysisResult{
		ReferenceTime: "14:00:00",
		Bosses:        []models.BossSpawn{{BossName: "보스A", SpawnTime: "15:00:00"}},
	}, nil)
	id := s.createSession(t)
	require.Equal(t, http.StatusCreated, s.paste(t, id).Code)
	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/api/sessions/"+id+"/analyze", nil, "").Code)
	s.waitStatus(t, id, models.SessionStatusReady)

	rec := s.do(t, http.MethodDelete, "/api/sessions/"+id+"/files", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/sessions/"+id+"/schedule/export", nil, "")
	assert.Empty(t, rec.Body.String())
	rec = s.do(t, http.MethodGet, "/api/sessions/"+id+"/files", nil, "")
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestFromError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrSessionNotFound, http.StatusNotFound},
		{session.ErrFileNotFound, http.StatusNotFound},
		{storage.ErrFileNotFound, http.StatusNotFound},
		{session.ErrAnalysisInProgress, http.StatusConflict},
		{session.ErrRateLimited, http.StatusTooManyRequests},
		{session.ErrTooManyFiles, http.StatusRequestEntityTooLarge},
		{storage.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{session.ErrNoFiles, http.StatusBadRequest},
		{storage.ErrNotImage, http.StatusBadRequest},
		{session.ErrTooManySessions, http.StatusServiceUnavailable},
		{analyzer.ErrMissingAPIKey, http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", session.ErrSessionNotFound), http.StatusNotFound},
		{NewConflictError("busy"), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, FromError(tt.err).Status)
		})
	}
}

func TestErrorHandlerHidesInternalDetails(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(errors.New("secret path /var/x"), c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")

	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	ErrorHandler(echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), c)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"HTTP_ERROR"`)
}
