package cdp

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/ajsharma/neon_playground/internal/compose"
)

func TestHostFramePage(t *testing.T) {
	doc := compose.Compose("<h1>Hi</h1>", "h1{color:red}", "console.log('</script>')")

	page, err := HostFramePage(doc)
	if err != nil {
		t.Fatalf("HostFramePage() error = %v", err)
	}

	checks := []struct {
		name string
		want string
	}{
		{"doctype", "<!DOCTYPE html>"},
		{"preview frame", `<iframe id="preview" sandbox="allow-scripts allow-modals">`},
		{"message listener", "window.addEventListener('message'"},
		{"binding call", "window.neonBridge(raw)"},
		{"srcdoc assignment", "document.getElementById('preview').srcdoc = \""},
		{"escaped markup", `\u003ch1\u003eHi\u003c/h1\u003e`},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			if !strings.Contains(page, c.want) {
				t.Errorf("page missing %q", c.want)
			}
		})
	}

	// Only the host page's own script block may close.
	if n := strings.Count(page, "</script>"); n != 1 {
		t.Errorf("page has %d </script> tags, want 1", n)
	}
}

func TestHostFramePageStyles(t *testing.T) {
	page, err := HostFramePage("")
	if err != nil {
		t.Fatalf("HostFramePage() error = %v", err)
	}
	if !strings.Contains(page, "height:100%;") {
		t.Error("host page style lost its percent signs")
	}
	if strings.Contains(page, "%!") {
		t.Errorf("host page has a formatting error: %s", page)
	}
}

func TestDataURL(t *testing.T) {
	page := "<p>café & more</p>"
	url := DataURL(page)

	const prefix = "data:text/html;charset=utf-8;base64,"
	if !strings.HasPrefix(url, prefix) {
		t.Fatalf("DataURL() = %q, want prefix %q", url, prefix)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, prefix))
	if err != nil {
		t.Fatalf("payload is not base64: %v", err)
	}
	if string(decoded) != page {
		t.Errorf("decoded = %q, want %q", decoded, page)
	}
}
