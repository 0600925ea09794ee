// Package page serves the browser view that lists relayed events as they arrive.
package page

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/welldanyogia/webhook-relay/internal/logger"
	"github.com/welldanyogia/webhook-relay/internal/sanitizer"
)

// DefaultTitle is used when the configured title sanitizes to nothing.
const DefaultTitle = "Webhook events"

const maxTitleLength = 120

// Config holds page configuration.
type Config struct {
	Title      string
	StreamPath string
}

// Handler renders the event page.
type Handler struct {
	tmpl       *template.Template
	title      string
	streamPath string
	logger     *slog.Logger
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
#status { color: #666; }
#events { list-style: none; padding: 0; }
#events li { border-bottom: 1px solid #ddd; padding: .5rem 0; }
#events pre { margin: 0; white-space: pre-wrap; word-break: break-all; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p id="status">connecting</p>
<ul id="events"></ul>
<script>
(function () {
  var url = {{.StreamPath}};
  var token = new URLSearchParams(window.location.search).get("token");
  if (token) {
    url += "?token=" + encodeURIComponent(token);
  }
  var status = document.getElementById("status");
  var list = document.getElementById("events");
  var source = new EventSource(url);
  source.onopen = function () { status.textContent = "connected"; };
  source.onerror = function () { status.textContent = "reconnecting"; };
  source.addEventListener("events", function (e) {
    var item = document.createElement("li");
    var pre = document.createElement("pre");
    try {
      pre.textContent = JSON.stringify(JSON.parse(e.data), null, 2);
    } catch (err) {
      pre.textContent = e.data;
    }
    item.appendChild(pre);
    list.insertBefore(item, list.firstChild);
  });
})();
</script>
</body>
</html>
`))

// NewHandler creates a page handler. The title is stripped of markup before use.
func NewHandler(config Config, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	title := sanitizer.NewStrictSanitizer(maxTitleLength).Sanitize(config.Title)
	if title == "" {
		title = DefaultTitle
	}
	streamPath := config.StreamPath
	if streamPath == "" {
		streamPath = "/sse"
	}
	return &Handler{
		tmpl:       indexTemplate,
		title:      title,
		streamPath: streamPath,
		logger:     log,
	}
}

// Title returns the sanitized page title.
func (h *Handler) Title() string {
	return h.title
}

// HandleIndex renders the page.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	data := struct {
		Title      string
		StreamPath string
	}{h.title, h.streamPath}

	if err := h.tmpl.Execute(&buf, data); err != nil {
		logger.WithCorrelationID(r.Context(), h.logger).Error("failed to render page", slog.String("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// RegisterRoutes registers the page at the root path.
func RegisterRoutes(r chi.Router, handler *Handler) {
	r.Get("/", handler.HandleIndex)
}
