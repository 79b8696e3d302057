package output

import (
	"html/template"
	"io"
	"sync"
	"time"

	"github.com/PentesterFlow/APIDiff/internal/compare"
	"github.com/PentesterFlow/APIDiff/internal/diff"
)

// HTMLWriter renders a report as a self-contained dashboard page.
type HTMLWriter struct {
	mu     sync.Mutex
	writer io.Writer
	closed bool
}

// NewHTMLWriter creates a new HTML writer.
func NewHTMLWriter(w io.Writer) *HTMLWriter {
	return &HTMLWriter{writer: w}
}

// WriteReport renders the report.
func (h *HTMLWriter) WriteReport(report *compare.Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	return dashboardTmpl.Execute(h.writer, dashboardData{
		Report:      report,
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
	})
}

// Close closes the writer.
func (h *HTMLWriter) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	if closer, ok := h.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

type dashboardData struct {
	Report      *compare.Report
	GeneratedAt string
}

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"changed": func(n *diff.Node) bool { return n.Changed() },
}).Parse(`<!DOCTYPE html>
<html>
<head>
    <title>API Surface Comparison</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        h1, h2, h3 { color: #333; }
        table { border-collapse: collapse; width: 100%; margin-bottom: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f2f2f2; }
        tr:nth-child(even) { background-color: #f9f9f9; }
        .added { color: #1a7f37; }
        .removed { color: #cf222e; }
        .modified { color: #9a6700; }
        .unchanged { color: #57606a; }
        ul.difftree { list-style: none; }
        ul.difftree li { margin: 2px 0; }
    </style>
</head>
<body>
    <h1>API Surface Comparison</h1>
    <p>Generated on: {{.GeneratedAt}}</p>
    <p>Run: {{.Report.RunID}} &mdash; level: {{.Report.Level}} &mdash; versions: {{range $i, $l := .Report.Labels}}{{if $i}} &rarr; {{end}}{{$l}}{{end}}</p>

    <h2>Summary</h2>
    <table>
        <tr><th>Added</th><th>Removed</th><th>Modified</th><th>Unchanged</th><th>Total</th><th>Opaque bodies</th></tr>
        <tr>
            <td>{{.Report.Summary.Added}}</td>
            <td>{{.Report.Summary.Removed}}</td>
            <td>{{.Report.Summary.Modified}}</td>
            <td>{{.Report.Summary.Unchanged}}</td>
            <td>{{.Report.Summary.Total}}</td>
            <td>{{.Report.Summary.OpaqueBodies}}</td>
        </tr>
    </table>

    {{range .Report.Pairs}}
    <h2>{{.Left}} &rarr; {{.Right}}</h2>
    <table>
        <tr><th>Endpoint</th><th>Classification</th><th>Status codes (old)</th><th>Status codes (new)</th></tr>
        {{range .Endpoints}}
        <tr>
            <td>{{.Endpoint.Method}} {{.Endpoint.Host}}{{.Endpoint.Template}}</td>
            <td class="{{.Classification}}">{{.Classification}}</td>
            <td>{{if .StatusCodeDiff}}{{range .StatusCodeDiff.Old}}{{.}} {{end}}{{end}}</td>
            <td>{{if .StatusCodeDiff}}{{range .StatusCodeDiff.New}}{{.}} {{end}}{{end}}</td>
        </tr>
        {{if .ShapeDiff}}
        <tr><td colspan="4">{{template "node" .ShapeDiff}}</td></tr>
        {{end}}
        {{end}}
    </table>
    {{end}}

    {{if .Report.Combined}}
    <h2>Combined view</h2>
    <table>
        <tr><th>Endpoint</th><th>Category</th><th>First pair</th><th>Second pair</th></tr>
        {{range .Report.Combined}}
        <tr>
            <td>{{.Endpoint.Method}} {{.Endpoint.Host}}{{.Endpoint.Template}}</td>
            <td>{{.Category}}</td>
            <td>{{.FirstPair}}</td>
            <td>{{.SecondPair}}</td>
        </tr>
        {{end}}
    </table>
    {{end}}
</body>
</html>
{{define "node"}}
<ul class="difftree">
    {{range .Children}}
    {{if changed .}}
    <li>
        <span class="{{.Kind}}">{{.Kind}}</span> {{.Name}}
        {{if .OldType}}<em>{{.OldType}}</em>{{end}}{{if and .OldType .NewType}} &rarr; {{end}}{{if .NewType}}<em>{{.NewType}}</em>{{end}}
        {{if .Children}}{{template "node" .}}{{end}}
    </li>
    {{end}}
    {{end}}
</ul>
{{end}}`))
