package cdp

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// BindingName is the page binding the host frame calls with every message
// posted to it, serialized as JSON.
const BindingName = "neonBridge"

// PreviewFrameID is the id of the iframe holding the composed document.
const PreviewFrameID = "preview"

// hostFrameTemplate plays the part of the editor page: it embeds the
// preview in a sandboxed iframe and forwards every message event to Go
// unfiltered. The %s is the composed document as a JS string literal.
const hostFrameTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>neon_playground preview</title>
<style>html,body{margin:0;height:100%%;background:#0b0f14}iframe{border:0;width:100%%;height:100%%;background:white}</style>
</head>
<body>
<iframe id="` + PreviewFrameID + `" sandbox="allow-scripts allow-modals"></iframe>
<script>
window.addEventListener('message', function (e) {
  var raw;
  try { raw = JSON.stringify(e.data); } catch (err) { return; }
  if (typeof raw === 'string' && typeof window.` + BindingName + ` === 'function') {
    window.` + BindingName + `(raw);
  }
});
document.getElementById('` + PreviewFrameID + `').srcdoc = %s;
</script>
</body>
</html>`

// HostFramePage returns the host page for a composed document.
func HostFramePage(document string) (string, error) {
	// json.Marshal escapes <, > and & so the literal cannot close the script.
	literal, err := json.Marshal(document)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	return fmt.Sprintf(hostFrameTemplate, literal), nil
}

// DataURL returns a data: URL serving page.
func DataURL(page string) string {
	return "data:text/html;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(page))
}
