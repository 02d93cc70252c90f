package report

import (
	"html/template"
	"io"
)

// htmlTemplate renders the same field vocabulary as the JSON form:
// generated, hostname, domains, status, missing, extra, changed,
// overall_status.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Reconciliation report for {{.Hostname}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
h1 { border-bottom: 2px solid #444; padding-bottom: .3rem; }
table { border-collapse: collapse; margin: 1rem 0; }
td, th { border: 1px solid #ccc; padding: .3rem .7rem; text-align: left; }
.status-ok { color: #2d7d2d; font-weight: bold; }
.status-warning { color: #b08000; font-weight: bold; }
.status-error { color: #b02020; font-weight: bold; }
.note { color: #666; font-style: italic; }
</style>
</head>
<body>
<h1>Reconciliation report for {{.Hostname}}</h1>
<p>
generated: {{.Generated.Format "2006-01-02 15:04:05 MST"}}<br>
run_id: {{.RunID}}<br>
mode: {{.Mode}}<br>
overall_status: <span class="status-{{.OverallStatus}}">{{.OverallStatus}}</span>
</p>
{{if .Warnings}}
<h2>Warnings</h2>
<ul>{{range .Warnings}}<li>{{.}}</li>{{end}}</ul>
{{end}}
{{range .Domains}}
<h2>{{.Domain}} <span class="status-{{.Status}}">{{.Status}}</span></h2>
{{if .Note}}<p class="note">{{.Note}}</p>{{end}}
<table>
<tr><th>kind</th><th>id</th><th>detail</th></tr>
{{$d := .}}
{{range .Missing}}<tr><td>missing</td><td>{{.}}</td><td></td></tr>{{end}}
{{range .Changed}}{{$id := .ID}}{{range .Diffs}}<tr><td>changed</td><td>{{$id}}</td><td>{{.Name}}: {{.Got}} &rarr; {{.Want}}</td></tr>{{end}}{{end}}
{{range .Extra}}<tr><td>extra</td><td>{{.}}</td><td></td></tr>{{end}}
<tr><td>unchanged</td><td colspan="2">{{.Unchanged}}</td></tr>
</table>
{{end}}
{{if .Execution}}
<h2>Execution ({{.Execution.Mode}})</h2>
<table>
<tr><th>action</th><th>step</th><th>outcome</th><th>reason</th></tr>
{{range .Execution.Results}}
<tr><td>{{.Step.Action}}</td><td>{{.Step.Domain}}.{{.Step.ID}}</td><td>{{.Outcome}}</td><td>{{.Reason}}</td></tr>
{{end}}
</table>
{{end}}
</body>
</html>
`

var htmlTmpl = template.Must(template.New("report").Parse(htmlTemplate))

// RenderHTML writes the standalone HTML form of the report.
func RenderHTML(w io.Writer, r *Report) error {
	return htmlTmpl.Execute(w, r)
}
