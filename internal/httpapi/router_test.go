package httpapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/batchsumm/orchestrator/internal/cancel"
	"github.com/batchsumm/orchestrator/internal/model"
	"github.com/batchsumm/orchestrator/internal/notifier"
	"github.com/batchsumm/orchestrator/internal/provider"
	"github.com/batchsumm/orchestrator/internal/reporter"
	"github.com/batchsumm/orchestrator/internal/scheduler"
	"github.com/batchsumm/orchestrator/internal/segmenter"
)

// memStore is a minimal in-memory storage.Store used only by this package's
// tests, mirroring the teacher's own in-memory test doubles for storage.
type memStore struct {
	mu      sync.Mutex
	records map[string]*model.SummaryRecord
}

func newMemStore() *memStore { return &memStore{records: make(map[string]*model.SummaryRecord)} }

func (m *memStore) Init() error  { return nil }
func (m *memStore) Close() error { return nil }

func (m *memStore) Save(rec *model.SummaryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return nil
}

func (m *memStore) Get(id string) (*model.SummaryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id], nil
}

func (m *memStore) ListByUser(userID string, limit, offset int) ([]*model.SummaryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SummaryRecord
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) Cleanup(retentionDays int) (int64, error) { return 0, nil }

func newTestServer(t *testing.T, p provider.Summarizer) *Server {
	t.Helper()

	bus := notifier.NewBus()
	cancels := cancel.New(nil, scheduler.NewBusPublisher(bus), nil)
	sched := scheduler.New(p, cancels, bus, nil)
	seg := segmenter.New(segmenter.DefaultOptions(), nil)
	rep, err := reporter.NewHTMLReporter()
	if err != nil {
		t.Fatalf("failed to build reporter: %v", err)
	}

	cfg := scheduler.DefaultConfig()
	cfg.BaseDelay = time.Millisecond

	return NewServer(sched, seg, p, bus, newMemStore(), rep, cfg, nil)
}

func TestHandleSummarize_Success(t *testing.T) {
	srv := newTestServer(t, provider.NewFake())

	body, _ := json.Marshal(map[string]any{"text": "hello world", "userId": "u1"})
	req := httptest.NewRequest(http.MethodPost, "/api/summarize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.Engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp summarizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if !resp.Success || resp.BatchID == "" {
		t.Fatalf("expected success with a batch id, got %+v", resp)
	}
}

func TestHandleSummarize_EmptyTextRejected(t *testing.T) {
	srv := newTestServer(t, provider.NewFake())

	body, _ := json.Marshal(map[string]any{"text": ""})
	req := httptest.NewRequest(http.MethodPost, "/api/summarize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.Engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleSummarizeUpload_RejectsUnsupportedExtension(t *testing.T) {
	srv := newTestServer(t, provider.NewFake())

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile("file", "doc.exe")
	part.Write([]byte("some content"))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/summarize/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()

	srv.Engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported extension, got %d", rec.Code)
	}
}

func TestHandleSummarizeUpload_AcceptsTxt(t *testing.T) {
	srv := newTestServer(t, provider.NewFake())

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile("file", "notes.txt")
	part.Write([]byte("plain text content"))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/summarize/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()

	srv.Engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleHealth_ReportsProviderStatus(t *testing.T) {
	fake := provider.NewFake()
	fake.HealthOK = false
	srv := newTestServer(t, fake)

	req := httptest.NewRequest(http.MethodGet, "/api/summarize/health", nil)
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when provider unhealthy, got %d", rec.Code)
	}
}

func TestHandleBatchProgress_UnknownBatchReturns400(t *testing.T) {
	srv := newTestServer(t, provider.NewFake())

	req := httptest.NewRequest(http.MethodGet, "/api/summarize/batch/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown batch, got %d", rec.Code)
	}
}

func TestHandlePauseResume_UnknownBatchFails(t *testing.T) {
	srv := newTestServer(t, provider.NewFake())

	req := httptest.NewRequest(http.MethodPost, "/api/summarize/batch/nope/pause", nil)
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleReset_UnknownTypeRejected(t *testing.T) {
	srv := newTestServer(t, provider.NewFake())

	req := httptest.NewRequest(http.MethodPost, "/api/summarize/reset?resetType=bogus", nil)
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown resetType, got %d", rec.Code)
	}
}

func TestHandleListByUser_EmptyForUnknownUser(t *testing.T) {
	srv := newTestServer(t, provider.NewFake())

	req := httptest.NewRequest(http.MethodGet, "/api/summarize/user/ghost/batches", nil)
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":true`) {
		t.Fatalf("expected a success envelope, got %s", rec.Body.String())
	}
}

func TestHandleProgressStream_UnknownBatchReturns400(t *testing.T) {
	srv := newTestServer(t, provider.NewFake())

	req := httptest.NewRequest(http.MethodGet, "/api/summarize/batch/does-not-exist/events", nil)
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown batch, got %d", rec.Code)
	}
}

func TestHandleBatchExport_RendersCSVForCompletedBatch(t *testing.T) {
	srv := newTestServer(t, provider.NewFake())

	body, _ := json.Marshal(map[string]any{"text": "short text", "userId": "u1"})
	req := httptest.NewRequest(http.MethodPost, "/api/summarize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)

	var resp summarizeResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := srv.scheduler.Progress(resp.BatchID); ok && snap.Stage.IsTerminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/summarize/batch/"+resp.BatchID+"/export?format=csv", nil)
	rec2 := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec2, req2)

	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec2.Code, rec2.Body.String())
	}
	if !strings.Contains(rec2.Body.String(), "strategy") {
		t.Errorf("expected a CSV header row, got %s", rec2.Body.String())
	}
}

func TestHandleBatchReport_WaitsForCompletionThenRendersHTML(t *testing.T) {
	srv := newTestServer(t, provider.NewFake())

	body, _ := json.Marshal(map[string]any{"text": "short text", "userId": "u1"})
	req := httptest.NewRequest(http.MethodPost, "/api/summarize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)

	var resp summarizeResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := srv.scheduler.Progress(resp.BatchID); ok && snap.Stage.IsTerminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/summarize/batch/"+resp.BatchID+"/report", nil)
	rec2 := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec2, req2)

	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec2.Code, rec2.Body.String())
	}
	if !strings.Contains(rec2.Body.String(), resp.BatchID) {
		t.Errorf("expected report to mention the batch id")
	}
}
