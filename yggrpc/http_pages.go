// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package yggrpc

import (
	"bytes"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/Query-farm/metaschema-rpc/metaschema"
)

// --- HTML templates ---

const pageStyle = `<style>
  body { font-family: system-ui, -apple-system, sans-serif; max-width: 900px;
         margin: 0 auto; padding: 40px 20px 0; color: #2c2c1e; background: #faf8f0; }
  h1 { color: #2d5016; margin-bottom: 4px; font-weight: 700; }
  code, pre { font-family: ui-monospace, monospace; background: #f0ece0;
              padding: 2px 6px; border-radius: 3px; font-size: 0.85em; }
  pre { padding: 10px; overflow-x: auto; }
  a { color: #2d5016; text-decoration: none; }
  .meta { color: #6b6b5a; font-size: 0.9em; }
  .card { border: 1px solid #f0ece0; border-radius: 8px; padding: 20px;
          margin-bottom: 16px; background: #fff; }
  .method-name { font-family: ui-monospace, monospace; font-size: 1.1em; font-weight: 600;
                 color: #2d5016; }
  .section-label { font-size: 0.8em; font-weight: 600; text-transform: uppercase;
                   letter-spacing: 0.05em; color: #6b6b5a; margin-top: 14px; margin-bottom: 6px; }
</style>`

const notFoundHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>404 Not Found</title>
%s
</head>
<body>
<h1>404 Not Found</h1>
<p>This is a <code>ygg_rpc</code> service endpoint%s.</p>
<p>RPC methods are available as <code>POST %s/&lt;method&gt;</code>.</p>
</body>
</html>`

const landingHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
%s
</head>
<body>
<h1>%s</h1>
<p class="meta">server <code>%s</code> &middot; %d methods</p>
<p>This is a <code>ygg_rpc</code> service endpoint.</p>
<p><a href="%s">View service API</a></p>
</body>
</html>`

const describeHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s API Reference</title>
%s
</head>
<body>
<h1>%s</h1>
<p class="meta">API Reference &middot; server <code>%s</code></p>
%s
</body>
</html>`

// --- Page builders ---

func buildNotFoundHTML(prefix, protocolName string) []byte {
	var fragment string
	if protocolName != "" {
		fragment = " serving <strong>" + html.EscapeString(protocolName) + "</strong>"
	}
	return []byte(fmt.Sprintf(notFoundHTMLTemplate,
		pageStyle,
		fragment,
		html.EscapeString(prefix),
	))
}

func buildLandingHTML(s *Server, prefix string) []byte {
	return []byte(fmt.Sprintf(landingHTMLTemplate,
		html.EscapeString(s.serviceName), // <title>
		pageStyle,
		html.EscapeString(s.serviceName), // <h1>
		html.EscapeString(s.serverID),
		len(s.methods),
		html.EscapeString(prefix+"/"+describeMethod),
	))
}

func buildDescribeHTML(s *Server) []byte {
	var cards strings.Builder
	for _, name := range s.availableMethods() {
		buildMethodCard(&cards, s.methods[name])
	}
	return []byte(fmt.Sprintf(describeHTMLTemplate,
		html.EscapeString(s.serviceName), // <title>
		pageStyle,
		html.EscapeString(s.serviceName), // <h1>
		html.EscapeString(s.serverID),
		cards.String(),
	))
}

// buildMethodCard renders one method with its type headers and the
// engine's own description of each type.
func buildMethodCard(w *strings.Builder, info *methodInfo) {
	w.WriteString(`<div class="card">`)
	fmt.Fprintf(w, `<span class="method-name">%s</span>`, html.EscapeString(info.Name))

	for _, section := range []struct {
		label  string
		header []byte
		typ    metaschema.Datatype
	}{
		{"Input", info.InHeader, info.InType},
		{"Output", info.OutHeader, info.OutType},
	} {
		var display bytes.Buffer
		section.typ.Display(&display)
		fmt.Fprintf(w, `<div class="section-label">%s</div>`, section.label)
		fmt.Fprintf(w, `<code>%s</code>`, html.EscapeString(string(section.header)))
		fmt.Fprintf(w, `<pre>%s</pre>`, html.EscapeString(display.String()))
	}

	w.WriteString(`</div>`) // card
	w.WriteString("\n")
}

// --- HTTP handlers ---

func (h *HttpServer) handleLandingPage(w http.ResponseWriter, _ *http.Request) {
	writeHTML(w, http.StatusOK, buildLandingHTML(h.server, h.prefix))
}

func (h *HttpServer) handleDescribePage(w http.ResponseWriter, _ *http.Request) {
	writeHTML(w, http.StatusOK, buildDescribeHTML(h.server))
}

func (h *HttpServer) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeHTML(w, http.StatusNotFound, buildNotFoundHTML(h.prefix, h.server.serviceName))
}

func writeHTML(w http.ResponseWriter, status int, page []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(page)
}
