package reader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"

	svcerrors "github.com/metervision/meter-reader/internal/errors"
	"github.com/metervision/meter-reader/internal/httputil"
	"github.com/metervision/meter-reader/internal/logging"
	"github.com/metervision/meter-reader/internal/middleware"
	readersupabase "github.com/metervision/meter-reader/services/reader/supabase"
)

type mockStore struct {
	savedRow   *readersupabase.ReadingRow
	savedToken string
	saveID     string
	saveErr    error

	listFilter readersupabase.Filter
	listUserID string
	listRows   []readersupabase.ReadingRow
	listErr    error

	statsJSON json.RawMessage
	statsErr  error
}

func (m *mockStore) Save(_ context.Context, token string, row *readersupabase.ReadingRow) (string, error) {
	m.savedToken = token
	m.savedRow = row
	return m.saveID, m.saveErr
}

func (m *mockStore) List(_ context.Context, _, userID string, f readersupabase.Filter) ([]readersupabase.ReadingRow, error) {
	m.listUserID = userID
	m.listFilter = f
	return m.listRows, m.listErr
}

func (m *mockStore) Stats(_ context.Context, _ string) (json.RawMessage, error) {
	return m.statsJSON, m.statsErr
}

type fakeExtractor struct {
	reading MeterReading
	metrics ProcessingMetrics
	err     error

	gotPath       string
	pathExistedAt bool
}

func (f *fakeExtractor) ReadMeter(_ context.Context, path string) (MeterReading, ProcessingMetrics, error) {
	f.gotPath = path
	if _, err := os.Stat(path); err == nil {
		f.pathExistedAt = true
	}
	return f.reading, f.metrics, f.err
}

func newTestService(t *testing.T, store Store, extractor MeterExtractor) *Service {
	t.Helper()
	svc, err := New(Config{
		Store:          store,
		Extractor:      extractor,
		Logger:         logging.New("meter-reader-test", "error"),
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 1024 * 1024,
	})
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	return svc
}

func serve(svc *Service, req *http.Request) *httptest.ResponseRecorder {
	r := mux.NewRouter()
	svc.RegisterRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func authed(req *http.Request) *http.Request {
	ctx := middleware.WithTestUser(req.Context(),
		&middleware.AuthUser{ID: "user-1", Email: "u@example.com"}, "user-jwt")
	return req.WithContext(ctx)
}

func newUploadRequest(t *testing.T, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadField, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart() err = %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/meter-reading", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) httputil.APIResponse {
	t.Helper()
	var resp httputil.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return resp
}

func TestCreateReadingPersistsAndResponds(t *testing.T) {
	store := &mockStore{saveID: "rec-42"}
	extractor := &fakeExtractor{
		reading: MeterReading{
			MeterID:      "E2301",
			MeterType:    MeterTypeElectricity,
			ReadingValue: 31781.8,
			Unit:         "kWh",
			Confidence:   ConfidenceHigh,
			RawResponse:  `{"meter_id":"E2301"}`,
		},
		metrics: ProcessingMetrics{ProcessingTimeMS: 1500, ImageSizeBytes: 4, ConfidenceScore: 0.95},
	}
	svc := newTestService(t, store, extractor)

	rec := serve(svc, authed(newUploadRequest(t, "meter.jpg", "image/jpeg", []byte("fake"))))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeEnvelope(t, rec)
	if !resp.Success {
		t.Fatalf("success = false: %s", rec.Body.String())
	}
	data := resp.Data.(map[string]interface{})
	if data["meter_id"] != "E2301" {
		t.Errorf("meter_id = %v", data["meter_id"])
	}
	if data["reading_value"] != 31781.8 {
		t.Errorf("reading_value = %v", data["reading_value"])
	}
	if data["confidence"] != "high" {
		t.Errorf("confidence = %v", data["confidence"])
	}
	if data["persisted_id"] != "rec-42" {
		t.Errorf("persisted_id = %v", data["persisted_id"])
	}
	metricsData := data["metrics"].(map[string]interface{})
	if metricsData["confidence_score"] != 0.95 {
		t.Errorf("confidence_score = %v", metricsData["confidence_score"])
	}

	if store.savedRow == nil {
		t.Fatal("nothing persisted")
	}
	if store.savedRow.UserID != "user-1" {
		t.Errorf("row user_id = %q", store.savedRow.UserID)
	}
	if store.savedToken != "user-jwt" {
		t.Errorf("persisted with token %q, want user token", store.savedToken)
	}
	if store.savedRow.MeterType != "electricity" || store.savedRow.ReadingValue != 31781.8 {
		t.Errorf("row = %+v", store.savedRow)
	}

	if !extractor.pathExistedAt {
		t.Error("upload file missing during extraction")
	}
	assertUploadDirEmpty(t, svc.uploadDir)
}

func TestCreateReadingRequiresImagePart(t *testing.T) {
	svc := newTestService(t, &mockStore{}, &fakeExtractor{})

	req := httptest.NewRequest(http.MethodPost, "/meter-reading", nil)
	rec := serve(svc, authed(req))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Success || resp.Error == "" {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
}

func TestCreateReadingRejectsNonImage(t *testing.T) {
	svc := newTestService(t, &mockStore{}, &fakeExtractor{})

	req := newUploadRequest(t, "notes.txt", "text/plain", []byte("hello"))
	rec := serve(svc, authed(req))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateReadingRejectsOversizeFile(t *testing.T) {
	store := &mockStore{}
	extractor := &fakeExtractor{}
	svc := newTestService(t, store, extractor)
	svc.maxUploadBytes = 16

	req := newUploadRequest(t, "big.jpg", "image/jpeg", bytes.Repeat([]byte("x"), 64))
	rec := serve(svc, authed(req))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if extractor.gotPath != "" {
		t.Error("extraction ran on rejected upload")
	}
}

func TestCreateReadingRequiresAuth(t *testing.T) {
	svc := newTestService(t, &mockStore{}, &fakeExtractor{})

	req := newUploadRequest(t, "meter.jpg", "image/jpeg", []byte("fake"))
	rec := serve(svc, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCreateReadingExtractionFailureCleansUp(t *testing.T) {
	store := &mockStore{}
	extractor := &fakeExtractor{
		err: svcerrors.Parse("invalid JSON response from vision model", "garbage"),
	}
	svc := newTestService(t, store, extractor)

	rec := serve(svc, authed(newUploadRequest(t, "meter.jpg", "image/jpeg", []byte("fake"))))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if store.savedRow != nil {
		t.Error("failed extraction was persisted")
	}
	assertUploadDirEmpty(t, svc.uploadDir)
}

func TestCreateReadingStoreFailure(t *testing.T) {
	store := &mockStore{saveErr: svcerrors.Persistence("insert rejected", nil)}
	extractor := &fakeExtractor{
		reading: MeterReading{MeterID: "G1", MeterType: MeterTypeGas, Unit: "m3", Confidence: ConfidenceLow},
	}
	svc := newTestService(t, store, extractor)

	rec := serve(svc, authed(newUploadRequest(t, "meter.jpg", "image/jpeg", []byte("fake"))))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error != "insert rejected" {
		t.Errorf("error = %q, want store message passed through", resp.Error)
	}
	assertUploadDirEmpty(t, svc.uploadDir)
}

func TestListReadingsAppliesQueryParams(t *testing.T) {
	store := &mockStore{listRows: []readersupabase.ReadingRow{
		{ID: "r1", UserID: "user-1", MeterID: "E2301", CreatedAt: time.Now().UTC()},
	}}
	svc := newTestService(t, store, &fakeExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/readings?meter_id=E2301&limit=5&offset=10", nil)
	rec := serve(svc, authed(req))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if store.listUserID != "user-1" {
		t.Errorf("list user = %q", store.listUserID)
	}
	want := readersupabase.Filter{MeterID: "E2301", Limit: 5, Offset: 10}
	if store.listFilter != want {
		t.Errorf("filter = %+v, want %+v", store.listFilter, want)
	}

	resp := decodeEnvelope(t, rec)
	rows := resp.Data.([]interface{})
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
}

func TestListReadingsRequiresAuth(t *testing.T) {
	svc := newTestService(t, &mockStore{}, &fakeExtractor{})

	rec := serve(svc, httptest.NewRequest(http.MethodGet, "/readings", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Success || resp.Error == "" {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
}

func TestMeterReadingsUsesPathMeterID(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(t, store, &fakeExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/readings/W-77", nil)
	rec := serve(svc, authed(req))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.listFilter.MeterID != "W-77" {
		t.Errorf("meter_id = %q, want W-77", store.listFilter.MeterID)
	}
}

func TestStatsPassthrough(t *testing.T) {
	store := &mockStore{statsJSON: json.RawMessage(`{"total_readings":12,"avg_confidence":0.9}`)}
	svc := newTestService(t, store, &fakeExtractor{})

	rec := serve(svc, authed(httptest.NewRequest(http.MethodGet, "/stats", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]interface{})
	if data["total_readings"] != float64(12) {
		t.Errorf("total_readings = %v", data["total_readings"])
	}
}

func TestHealthNeedsNoAuth(t *testing.T) {
	svc := newTestService(t, &mockStore{}, &fakeExtractor{})

	rec := serve(svc, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	// Probes match on a top-level status key; no envelope here.
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["timestamp"] == "" || body["timestamp"] == nil {
		t.Error("timestamp missing")
	}
	if _, enveloped := body["success"]; enveloped {
		t.Error("health body must not be wrapped in the response envelope")
	}
}

func TestInfoReportsUptime(t *testing.T) {
	svc := newTestService(t, &mockStore{}, &fakeExtractor{})

	rec := serve(svc, httptest.NewRequest(http.MethodGet, "/info", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]interface{})
	if data["service"] != ServiceName || data["version"] != Version {
		t.Errorf("info = %v", data)
	}
}

func assertUploadDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	for _, e := range entries {
		t.Errorf("leftover upload file %s", filepath.Join(dir, e.Name()))
	}
}
