package sanitizer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"pgregory.net/rapid"
)

func TestStrictSanitizer_Sanitize(t *testing.T) {
	s := NewStrictSanitizer(0)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Webhook events", "Webhook events"},
		{"empty", "", ""},
		{"bold", "<b>Live</b> feed", "Live feed"},
		{"script", "<script>alert(1)</script>Feed", "Feed"},
		{"entity", "Tom &amp; Jerry", "Tom & Jerry"},
		{"whitespace", "  a \n\t b  ", "a b"},
		{"attribute", `<img src=x onerror="alert(1)">Title`, "Title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStrictSanitizer_Truncates(t *testing.T) {
	s := NewStrictSanitizer(5)
	if got := s.Sanitize("éééééééé"); got != "ééééé" {
		t.Errorf("expected rune-safe truncation, got %q", got)
	}
}

// Property: Markup Removal
// *For any* text wrapped in arbitrary tags, the sanitized output SHALL contain no
// tag-opening sequence and SHALL never exceed the configured length.
func TestProperty_MarkupRemoval(t *testing.T) {
	s := NewStrictSanitizer(40)

	rapid.Check(t, func(t *rapid.T) {
		tag := rapid.SampledFrom([]string{"b", "i", "script", "style", "div", "a"}).Draw(t, "tag")
		text := rapid.StringMatching(`[a-zA-Z0-9 ]{0,60}`).Draw(t, "text")

		out := s.Sanitize("<" + tag + ">" + text + "</" + tag + ">")

		if strings.Contains(out, "<"+tag) {
			t.Fatalf("tag survived sanitization: %q", out)
		}
		if utf8.RuneCountInString(out) > 40 {
			t.Fatalf("output longer than limit: %d", utf8.RuneCountInString(out))
		}
	})
}
