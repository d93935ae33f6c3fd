// Package compose builds the self-contained preview document from the three
// playground source buffers.
package compose

import (
	"io"
	"strings"
)

// ProtocolMarker is the field that tags diagnostics messages posted by the
// preview shim. Receivers drop any message that lacks it.
const ProtocolMarker = "__neon_console"

// Export artifact naming.
const (
	ExportFileName = "neon-editor-project.html"
	ExportMIMEType = "text/html"
)

// SourceSet holds the three editor buffers. Each one is opaque text.
type SourceSet struct {
	Markup string `json:"html"`
	Styles string `json:"css"`
	Script string `json:"js"`
}

// Compose renders the set into a preview document.
func (s SourceSet) Compose() string {
	return Compose(s.Markup, s.Styles, s.Script)
}

const documentHead = `<!doctype html>
<html>
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<style>
  html,body{height:100%;margin:0;background:white;color:#111;font-family:Inter,system-ui,Arial;}
  `

const documentBodyOpen = `
</style>
</head>
<body>
`

// Shim is the diagnostics forwarder installed ahead of any user script.
// Each console severity posts a copy of its arguments to the parent and then
// runs the original function.
const Shim = `<script>
  (function(){
    function send(type, args){
      try{
        parent.postMessage({ ` + ProtocolMarker + `: true, type: type, args: args }, '*');
      }catch(e){}
    }
    const methods = ['log','warn','error','info','debug'];
    methods.forEach(m => {
      const orig = console[m];
      console[m] = function(){
        send(m, Array.from(arguments).map(a => {
          try{ return typeof a === 'object' ? JSON.stringify(a) : String(a); }catch(e){ return String(a); }
        }));
        orig.apply(console, arguments);
      };
    });

    window.addEventListener('error', function(e){
      send('error', [e.message + ' (' + e.filename + ':' + e.lineno + ')' ]);
    });
  })();
</script>`

const guardOpen = `

<script>
try {
  `

// GuardErrorPrefix prefixes the diagnostic reported for a script that throws
// synchronously inside the guard.
const GuardErrorPrefix = "Preview JS Error: "

const guardClose = `
} catch(e) {
  console.error('` + GuardErrorPrefix + `' + e);
}
</script>
</body>
</html>`

// Compose assembles markup, styles and script into one document. The inputs
// are copied verbatim; nothing is parsed or validated, so Compose never fails.
func Compose(markup, styles, script string) string {
	var b strings.Builder
	b.Grow(len(documentHead) + len(documentBodyOpen) + len(Shim) + len(guardOpen) + len(guardClose) +
		len(markup) + len(styles) + len(script) + 2)

	b.WriteString(documentHead)
	b.WriteString(styles)
	b.WriteString(documentBodyOpen)
	b.WriteString(markup)
	b.WriteString("\n\n")
	b.WriteString(Shim)
	b.WriteString(guardOpen)
	b.WriteString(script)
	b.WriteString(guardClose)

	return b.String()
}

// Export writes the composed document for set to w.
func Export(w io.Writer, set SourceSet) error {
	_, err := io.WriteString(w, set.Compose())
	return err
}
