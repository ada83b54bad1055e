package notify

import (
	"bytes"
	"html/template"
	"time"

	"github.com/Masterminds/sprig/v3"
)

// RoleChangeMailParams feeds the promotion/demotion notification templates.
type RoleChangeMailParams struct {
	Node        string
	Environment string
	LeaderID    string
	LeaseToken  string
	OccurredAt  time.Time
}

const promotedTemplateRaw = `
<html>
<body>
<h2>Fleet leadership change</h2>
<p>Node <b>{{ .Node | lower }}</b> was promoted to leader of environment
<b>{{ .Environment }}</b> at {{ .OccurredAt.Format "2006-01-02 15:04:05 MST" }}.</p>
{{- if .LeaseToken }}
<p>Lease: <code>{{ .LeaseToken | trunc 12 }}&hellip;</code></p>
{{- end }}
<p>Workload adoption is in progress; ownership labels will converge within
one handover window.</p>
</body>
</html>`

const demotedTemplateRaw = `
<html>
<body>
<h2>Fleet leadership change</h2>
<p>Node <b>{{ .Node | lower }}</b> was demoted in environment
<b>{{ .Environment }}</b> at {{ .OccurredAt.Format "2006-01-02 15:04:05 MST" }}.</p>
<p>Current leader: <b>{{ .LeaderID | default "unknown" }}</b>.</p>
</body>
</html>`

var (
	promotedTemplate = template.Must(
		template.New("promoted").Funcs(sprig.HtmlFuncMap()).Parse(promotedTemplateRaw))
	demotedTemplate = template.Must(
		template.New("demoted").Funcs(sprig.HtmlFuncMap()).Parse(demotedTemplateRaw))
)

func render(t *template.Template, p any) (string, error) {
	b := bytes.Buffer{}
	err := t.Execute(&b, p)
	return b.String(), err
}

// RenderPromoted renders the promotion notification body.
func RenderPromoted(p RoleChangeMailParams) (string, error) {
	return render(promotedTemplate, p)
}

// RenderDemoted renders the demotion notification body.
func RenderDemoted(p RoleChangeMailParams) (string, error) {
	return render(demotedTemplate, p)
}
