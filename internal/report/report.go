// Package report renders finished check-ins for the care team.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"reco-chatbot/internal/core"
	"reco-chatbot/pkg"
)

const notReported = "not reported"

// Markdown renders a summary, followed by the transcript it was made from.
func Markdown(session pkg.Session, summary pkg.TranscriptSummary, transcript []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Check-in %s\n\n", session.ID)
	if !session.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "_Started %s_\n\n", session.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))
	}

	b.WriteString("## Patient overview\n\n")
	b.WriteString(orNotReported(summary.PatientOverview))
	b.WriteString("\n\n## Current symptoms\n\n")
	writeList(&b, summary.CurrentSymptoms)

	b.WriteString("\n## Vital signs\n\n| Vital | Value |\n| --- | --- |\n")
	v := summary.VitalSigns
	for _, row := range []struct {
		name  string
		value *float64
	}{
		{"Temperature", v.Temperature},
		{"Heart rate", v.HeartRate},
		{"Respiratory rate", v.RespiratoryRate},
		{"Oxygen saturation", v.OxygenSaturation},
		{"Blood pressure (systolic)", v.BloodPressureSystolic},
		{"Blood pressure (diastolic)", v.BloodPressureDiastolic},
		{"Weight", v.Weight},
	} {
		fmt.Fprintf(&b, "| %s | %s |\n", row.name, formatVital(row.value))
	}

	b.WriteString("\n## Current medications\n\n")
	writeList(&b, summary.CurrentMedications)
	b.WriteString("\n## Summary\n\n")
	b.WriteString(orNotReported(summary.Summary))
	b.WriteString("\n")

	if len(transcript) > 0 {
		b.WriteString("\n## Transcript\n\n")
		for _, line := range transcript {
			fmt.Fprintf(&b, "> %s\n>\n", line)
		}
	}
	return b.String()
}

func writeList(b *strings.Builder, items []string) {
	if len(items) == 0 {
		b.WriteString(notReported + "\n")
		return
	}
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func orNotReported(s string) string {
	if strings.TrimSpace(s) == "" {
		return notReported
	}
	return s
}

func formatVital(v *float64) string {
	if v == nil {
		return notReported
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Check-in {{.ID}}</title>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTMLSink writes every delivered summary to <dir>/<session id>.html.
type HTMLSink struct {
	dir    string
	md     goldmark.Markdown
	logger *slog.Logger
}

// NewHTMLSink creates dir if needed.
func NewHTMLSink(dir string, logger *slog.Logger) (*HTMLSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report dir %s: %w", dir, err)
	}
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	return &HTMLSink{dir: dir, md: md, logger: logger}, nil
}

// Render converts a report to a standalone HTML page.
func (s *HTMLSink) Render(session pkg.Session, summary pkg.TranscriptSummary, transcript []string) ([]byte, error) {
	var body bytes.Buffer
	if err := s.md.Convert([]byte(Markdown(session, summary, transcript)), &body); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}
	var page bytes.Buffer
	err := pageTemplate.Execute(&page, struct {
		ID   string
		Body template.HTML
	}{session.ID, template.HTML(body.String())})
	if err != nil {
		return nil, err
	}
	return page.Bytes(), nil
}

// Path returns where the report of a session is written.
func (s *HTMLSink) Path(sessionID string) string {
	return filepath.Join(s.dir, filepath.Base(sessionID)+".html")
}

// Deliver implements core.ReportSink.
func (s *HTMLSink) Deliver(_ context.Context, session pkg.Session, summary pkg.TranscriptSummary, transcript []string) error {
	page, err := s.Render(session, summary, transcript)
	if err != nil {
		return err
	}
	path := s.Path(session.ID)
	if err := os.WriteFile(path, page, 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	s.logger.Info("report written", "session_id", session.ID, "path", path)
	return nil
}

// Fanout delivers to every sink and joins their errors.
type Fanout []core.ReportSink

func (f Fanout) Deliver(ctx context.Context, session pkg.Session, summary pkg.TranscriptSummary, transcript []string) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Deliver(ctx, session, summary, transcript); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
