package export

import (
	"bytes"
	"html/template"
	"time"
)

// TemplateData holds data for profile template rendering
type TemplateData struct {
	Name          string
	Sector        string
	Stage         string
	Country       string
	PipelineStage string
	Score         float64
	Rank          string
	Description   string
	Sections      []TemplateSection
	Issues        []TemplateIssue
	GeneratedAt   time.Time
}

// TemplateSection is one labeled block of profile attributes
type TemplateSection struct {
	Title string
	Rows  []TemplateRow
}

type TemplateRow struct {
	Label string
	Value string
}

// TemplateIssue holds one threshold issue for rendering
type TemplateIssue struct {
	Category   string
	Issue      string
	RiskRating string
	Mitigation string
	Status     string
}

var profileTemplate = template.Must(template.New("profile").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string { return t.Format(layout) },
}).Parse(profileTemplateHTML))

// RenderProfileHTML renders the startup profile template with provided data
func RenderProfileHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := profileTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const profileTemplateHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Name}}</title>
<style>
  body { font-family: Georgia, serif; color: #1a1a1a; margin: 0; }
  h1 { font-size: 26px; margin-bottom: 2px; }
  h2 { font-size: 15px; border-bottom: 1px solid #ccc; padding-bottom: 4px; margin-top: 28px; }
  .meta { color: #666; font-size: 12px; margin-bottom: 18px; }
  .badge { display: inline-block; background: #eef2f7; border-radius: 4px; padding: 2px 8px; margin-right: 6px; font-size: 12px; }
  table { width: 100%; border-collapse: collapse; font-size: 13px; }
  td { padding: 4px 8px; vertical-align: top; border-bottom: 1px solid #eee; }
  td.label { width: 30%; color: #555; }
  .risk-High { color: #b00020; font-weight: bold; }
  .risk-Medium { color: #b36b00; }
  .risk-Low { color: #2e7d32; }
  footer { margin-top: 36px; color: #999; font-size: 11px; }
</style>
</head>
<body>
<h1>{{.Name}}</h1>
<div class="meta">
  <span class="badge">{{.Sector}}</span>
  <span class="badge">{{.Stage}}</span>
  <span class="badge">{{.Country}}</span>
  <span class="badge">Pipeline: {{.PipelineStage}}</span>
  <span class="badge">Score: {{printf "%.1f" .Score}}</span>
  {{if .Rank}}<span class="badge">Rank: {{.Rank}}</span>{{end}}
</div>
{{if .Description}}<p>{{.Description}}</p>{{end}}

{{range .Sections}}
<h2>{{.Title}}</h2>
<table>
  {{range .Rows}}<tr><td class="label">{{.Label}}</td><td>{{.Value}}</td></tr>
  {{end}}
</table>
{{end}}

{{if .Issues}}
<h2>Threshold Issues</h2>
<table>
  <tr><td class="label">Category</td><td>Issue</td><td>Risk</td><td>Mitigation</td><td>Status</td></tr>
  {{range .Issues}}
  <tr>
    <td class="label">{{.Category}}</td>
    <td>{{.Issue}}</td>
    <td class="risk-{{.RiskRating}}">{{.RiskRating}}</td>
    <td>{{.Mitigation}}</td>
    <td>{{.Status}}</td>
  </tr>
  {{end}}
</table>
{{end}}

<footer>Generated {{formatDate .GeneratedAt "Jan 2, 2006 15:04 MST"}}</footer>
</body>
</html>`
