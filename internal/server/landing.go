package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const landingHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>RAG Studio</title>
<style>
  *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #111827; color: #e5e7eb; min-height: 100vh; display: flex; align-items: center; justify-content: center; }
  .card { max-width: 680px; width: 90%; background: #1f2937; border-radius: 12px; padding: 2.5rem; }
  h1 { font-size: 1.75rem; margin-bottom: 0.5rem; color: #f9fafb; }
  .subtitle { color: #9ca3af; margin-bottom: 1.75rem; }
  .section { margin-bottom: 1.5rem; }
  .section-title { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.1em; color: #6b7280; margin-bottom: 0.5rem; }
  ol { padding-left: 1.25rem; line-height: 1.7; }
  pre { background: #111827; border: 1px solid #374151; border-radius: 8px; padding: 1rem; overflow-x: auto; font-size: 0.85rem; line-height: 1.5; }
  code, .endpoint { font-family: "SF Mono", "Fira Code", Menlo, monospace; }
  .endpoint { font-size: 0.9rem; color: #a5b4fc; }
  a { color: #38bdf8; text-decoration: none; }
</style>
</head>
<body>
<div class="card">
  <h1>RAG Studio</h1>
  <p class="subtitle">A step-by-step retrieval-augmented generation pipeline over one document.</p>

  <div class="section">
    <div class="section-title">Steps</div>
    <ol>
      <li>Upload a TXT, MD or PDF document</li>
      <li>Split it into overlapping chunks</li>
      <li>Embed the chunks into vectors</li>
      <li>Ask questions answered from the closest chunks</li>
    </ol>
  </div>

  <div class="section">
    <div class="section-title">Try it</div>
    <pre><code>curl -X POST localhost:3001/sessions
curl -F file=@notes.md localhost:3001/sessions/$ID/document
curl -X POST localhost:3001/sessions/$ID/next</code></pre>
  </div>

  <div class="section">
    <div class="section-title">Endpoints</div>
    <p><a href="/health" class="endpoint">/health</a> health check</p>
    <p><a href="/sessions" class="endpoint">/sessions</a> pipeline sessions</p>
    <p><a href="/metrics" class="endpoint">/metrics</a> Prometheus metrics</p>
    <p><span class="endpoint">/mcp</span> MCP Streamable HTTP, when enabled</p>
  </div>
</div>
</body>
</html>`

func (s *Server) handleLanding(c echo.Context) error {
	return c.HTML(http.StatusOK, landingHTML)
}
