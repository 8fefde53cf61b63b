package dashboard

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/NordCoder/Uptime/internal/domain/run"
	"github.com/NordCoder/Uptime/internal/history"
	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

//go:embed templates/*.html
var templates embed.FS

const stampLayout = "2006-01-02T15:04:05.000Z07:00"

var funcs = template.FuncMap{
	"stamp": func(t time.Time) string { return t.UTC().Format(stampLayout) },
	"ago":   humanize.Time,
}

var index = template.Must(template.New("index.html").Funcs(funcs).ParseFS(templates, "templates/index.html"))

// RunLister is the read side of the run store.
type RunLister interface {
	ListAll(ctx context.Context) ([]run.Run, error)
}

type Page struct {
	Statuses []history.WebsiteStatus
	Version  string
}

type Renderer struct {
	Runs     RunLister
	Websites []string
	Buckets  int
	Version  string

	tmpl *template.Template
}

func NewRenderer(runs RunLister, websites []string, buckets int, version string) *Renderer {
	if buckets <= 0 {
		buckets = history.DefaultBarBuckets
	}
	return &Renderer{Runs: runs, Websites: websites, Buckets: buckets, Version: version, tmpl: index}
}

// Page loads all runs and aggregates them per website.
func (r *Renderer) Page(ctx context.Context) (Page, error) {
	ctx, span := otel.Tracer("dashboard").Start(ctx, "dashboard.page")
	defer span.End()

	runs, err := r.Runs.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		return Page{}, fmt.Errorf("list runs: %w", err)
	}
	span.SetAttributes(attribute.Int("runs", len(runs)))
	return Page{
		Statuses: history.Aggregate(r.Websites, runs, r.Buckets),
		Version:  r.Version,
	}, nil
}

// Render writes the complete status page to w. Nothing is written unless
// the whole page rendered.
func (r *Renderer) Render(ctx context.Context, w io.Writer) error {
	page, err := r.Page(ctx)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, page); err != nil {
		return fmt.Errorf("render template: %w", err)
	}
	_, err = buf.WriteTo(w)
	return err
}
