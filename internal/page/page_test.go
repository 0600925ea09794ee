package page

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

var defaultStreamURL = regexp.MustCompile(`var url = "\\?/sse";`)

func render(t *testing.T, h *Handler) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	RegisterRoutes(r, h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestHandleIndex_RendersPage(t *testing.T) {
	rec := render(t, NewHandler(Config{Title: "Page feed", StreamPath: "/sse"}, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("unexpected content type %q", ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "<title>Page feed</title>") {
		t.Error("page should carry the configured title")
	}
	if !defaultStreamURL.MatchString(body) {
		t.Error("page should connect to the stream path")
	}
	if !strings.Contains(body, `addEventListener("events"`) {
		t.Error("page should listen for events")
	}
}

func TestHandleIndex_SanitizesTitle(t *testing.T) {
	h := NewHandler(Config{Title: `<script>alert("x")</script><b>Ops</b> &amp; feed`}, nil)

	if h.Title() != "Ops & feed" {
		t.Fatalf("unexpected sanitized title %q", h.Title())
	}

	body := render(t, h).Body.String()
	if strings.Contains(body, `alert("x")`) {
		t.Error("script from title reached the page")
	}
	if !strings.Contains(body, "<title>Ops &amp; feed</title>") {
		t.Error("title should be HTML-escaped in the page")
	}
}

func TestNewHandler_Defaults(t *testing.T) {
	h := NewHandler(Config{Title: "<i></i>"}, nil)
	if h.Title() != DefaultTitle {
		t.Errorf("expected default title, got %q", h.Title())
	}
	if !defaultStreamURL.MatchString(render(t, h).Body.String()) {
		t.Error("expected default stream path")
	}
}

func TestHandleIndex_EscapesStreamPath(t *testing.T) {
	body := render(t, NewHandler(Config{StreamPath: `/s"</script>`}, nil)).Body.String()
	if strings.Contains(body, `/s"</script>`) {
		t.Error("stream path must be escaped in the script context")
	}
}
