package emotion

import (
	"fmt"
	"io"
	"strings"
	"text/template"
)

var summaryTmpl = template.Must(template.New("summary").Funcs(template.FuncMap{
	"title":  strings.Title,
	"pad":    func(s string) string { return fmt.Sprintf("%-10s", s) },
	"labels": func() []Label { return Labels },
	"str":    func(l Label) string { return string(l) },
}).Parse(`Emotion summary for session {{ .SessionID }}
{{ if not .Rows }}
No emotion data was recorded for this session.
{{ else }}
Frames analysed: {{ .TotalFrames }}

Emotion    Before  After
{{- range $l := labels }}
{{ pad (title (str $l)) }} {{ printf "%6d" ($.TotalBefore.Get $l) }} {{ printf "%6d" ($.TotalAfter.Get $l) }}
{{- end }}

Students:
{{- range .Rows }}
- {{ .Name }} ({{ .SubjectID }}): {{ if .HasData }}{{ .TotalFrames }} frames{{ else }}no data{{ end }}
{{- end }}
{{ if .HasDominant }}
Dominant emotion: {{ title (str .Dominant) }}
{{ .Message }}
{{ end }}{{ end }}`))

// RenderSummary writes a plain-text report of `stats` to w.
func RenderSummary(w io.Writer, stats Statistics) error {
	return summaryTmpl.Execute(w, stats)
}
