package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/welldanyogia/webhook-relay/internal/middleware"
	"github.com/welldanyogia/webhook-relay/internal/repository"
)

type fakeReader struct {
	receipts  []repository.Receipt
	stats     repository.ReceiptStats
	err       error
	lastLimit int
	lastSince time.Time
}

func (f *fakeReader) ListRecent(ctx context.Context, limit int) ([]repository.Receipt, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.receipts, nil
}

func (f *fakeReader) StatsSince(ctx context.Context, since time.Time) (*repository.ReceiptStats, error) {
	f.lastSince = since
	if f.err != nil {
		return nil, f.err
	}
	return &f.stats, nil
}

func passThrough(next http.Handler) http.Handler { return next }

func serve(h *ReceiptHandler, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		RegisterReceiptRoutes(r, h, passThrough)
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestListReceipts(t *testing.T) {
	eventID := "evt-1"
	reader := &fakeReader{receipts: []repository.Receipt{
		{ID: uuid.New(), EventID: &eventID, SignatureValid: true, Admitted: true, PayloadBytes: 10},
		{ID: uuid.New(), PayloadBytes: 3},
	}}

	rec := serve(NewReceiptHandler(reader, nil), "/api/v1/receipts?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if reader.lastLimit != 5 {
		t.Errorf("expected limit 5, got %d", reader.lastLimit)
	}

	var resp struct {
		Success bool                 `json:"success"`
		Data    ListReceiptsResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Data.Count != 2 || len(resp.Data.Receipts) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Data.Receipts[0].EventID == nil || *resp.Data.Receipts[0].EventID != eventID {
		t.Error("expected event id on first receipt")
	}
	if resp.Data.Receipts[1].EventID != nil {
		t.Error("rejected receipt should have no event id")
	}
}

func TestListReceipts_DefaultLimit(t *testing.T) {
	reader := &fakeReader{}
	serve(NewReceiptHandler(reader, nil), "/api/v1/receipts")
	if reader.lastLimit != defaultListLimit {
		t.Errorf("expected default limit %d, got %d", defaultListLimit, reader.lastLimit)
	}
}

func TestListReceipts_InvalidLimit(t *testing.T) {
	for _, limit := range []string{"abc", "0", "1001", "-3"} {
		rec := serve(NewReceiptHandler(&fakeReader{}, nil), "/api/v1/receipts?limit="+limit)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit %q: expected 400, got %d", limit, rec.Code)
			continue
		}
		var resp middleware.ErrorResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		if resp.Error.Code != CodeValidationError {
			t.Errorf("limit %q: expected %s, got %q", limit, CodeValidationError, resp.Error.Code)
		}
	}
}

func TestGetReceiptStats(t *testing.T) {
	reader := &fakeReader{stats: repository.ReceiptStats{Total: 4, Admitted: 3, InvalidSignature: 1}}
	h := NewReceiptHandler(reader, nil)
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	rec := serve(h, "/api/v1/receipts/stats?window=2h")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if want := now.Add(-2 * time.Hour); !reader.lastSince.Equal(want) {
		t.Errorf("expected since %v, got %v", want, reader.lastSince)
	}

	var resp struct {
		Data ReceiptStatsResponse `json:"data"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Data.Total != 4 || resp.Data.Admitted != 3 || resp.Data.InvalidSignature != 1 {
		t.Errorf("unexpected stats %+v", resp.Data)
	}
}

func TestGetReceiptStats_InvalidWindow(t *testing.T) {
	for _, window := range []string{"soon", "-1h", "721h"} {
		rec := serve(NewReceiptHandler(&fakeReader{}, nil), "/api/v1/receipts/stats?window="+window)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("window %q: expected 400, got %d", window, rec.Code)
		}
	}
}

func TestReceipts_StoreFailure(t *testing.T) {
	h := NewReceiptHandler(&fakeReader{err: errors.New("connection refused")}, nil)

	for _, target := range []string{"/api/v1/receipts", "/api/v1/receipts/stats"} {
		if rec := serve(h, target); rec.Code != http.StatusInternalServerError {
			t.Errorf("%s: expected 500, got %d", target, rec.Code)
		}
	}
}

type failingWriter struct {
	header http.Header
}

func (w *failingWriter) Header() http.Header {
	if w.header == nil {
		w.header = http.Header{}
	}
	return w.header
}

func (w *failingWriter) WriteHeader(int) {}

func (w *failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestReceiptHandler_LogsResponseWriteFailure(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := NewReceiptHandler(&fakeReader{}, log)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		RegisterReceiptRoutes(r, h, passThrough)
	})
	r.ServeHTTP(&failingWriter{}, httptest.NewRequest(http.MethodGet, "/api/v1/receipts", nil))

	if !strings.Contains(buf.String(), "failed to write receipt response") {
		t.Errorf("expected write failure to be logged, got %q", buf.String())
	}
}
