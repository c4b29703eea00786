// Package export converts notes to Markdown and PDF.
//
// Markdown conversion is pure. PDF output needs a rendering capability
// (fonts plus a layout engine) that is acquired on first use and kept for
// the life of the process.
package export

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/jot/internal/domain"
	"github.com/MrSnakeDoc/jot/internal/logger"
	"github.com/MrSnakeDoc/jot/internal/metrics"
)

// Renderer lays a document out as PDF bytes. Implementations must be safe
// for concurrent use.
type Renderer interface {
	Render(doc Document) ([]byte, error)
}

// Acquirer produces a Renderer, typically by loading fonts.
type Acquirer interface {
	Acquire(ctx context.Context) (Renderer, error)
}

// AcquirerFunc adapts a function to Acquirer.
type AcquirerFunc func(ctx context.Context) (Renderer, error)

func (f AcquirerFunc) Acquire(ctx context.Context) (Renderer, error) { return f(ctx) }

// Lazy acquires a Renderer on first use and caches it. Concurrent first uses
// share one acquisition. Failures are not cached: the next call tries again.
type Lazy struct {
	acquirer Acquirer
	logger   logger.Logger
	group    singleflight.Group
	renderer atomic.Pointer[Renderer]
}

// NewLazy wraps acq.
func NewLazy(acq Acquirer, log logger.Logger) *Lazy {
	if log == nil {
		log = logger.Nop()
	}
	return &Lazy{acquirer: acq, logger: log.With(logger.Component("pdf"))}
}

// Get returns the cached Renderer, acquiring it if needed.
//
// The acquisition runs detached from ctx cancellation since other callers
// may be waiting on it.
func (l *Lazy) Get(ctx context.Context) (Renderer, error) {
	if r := l.renderer.Load(); r != nil {
		return *r, nil
	}

	v, err, _ := l.group.Do("renderer", func() (any, error) {
		if r := l.renderer.Load(); r != nil {
			return *r, nil
		}
		r, err := l.acquirer.Acquire(context.WithoutCancel(ctx))
		if err == nil && r == nil {
			err = fmt.Errorf("acquirer returned no renderer")
		}
		if err != nil {
			metrics.RendererAcquisitions.WithLabelValues("error").Inc()
			l.logger.Warn("pdf renderer acquisition failed", logger.Error(err))
			return nil, err
		}
		metrics.RendererAcquisitions.WithLabelValues("ok").Inc()
		l.renderer.Store(&r)
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Renderer), nil
}

// Ready reports whether a Renderer has been acquired.
func (l *Lazy) Ready() bool {
	return l.renderer.Load() != nil
}

// Exporter is the entry point of the export pipeline.
type Exporter struct {
	renderer *Lazy
	logger   logger.Logger
}

// NewExporter creates an exporter that acquires its PDF renderer from acq
// on first use.
func NewExporter(acq Acquirer, log logger.Logger) *Exporter {
	if log == nil {
		log = logger.Nop()
	}
	return &Exporter{
		renderer: NewLazy(acq, log),
		logger:   log.With(logger.Component("export")),
	}
}

// ToMarkdown converts a note to Markdown text.
func (e *Exporter) ToMarkdown(note domain.Note) string {
	metrics.Exports.WithLabelValues("md", "ok").Inc()
	return ToMarkdown(note)
}

// ToPDF converts a note to a PDF document. Either the complete document is
// returned or an error and no bytes: domain.ErrExportUnavailable when the
// renderer cannot be acquired, domain.ErrConversion when the body cannot be
// laid out.
func (e *Exporter) ToPDF(ctx context.Context, note domain.Note) (out []byte, err error) {
	defer func() { metrics.Exports.WithLabelValues("pdf", metrics.Outcome(err)).Inc() }()

	r, err := e.renderer.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExportUnavailable, err)
	}

	doc, err := BuildDocument(note)
	if err != nil {
		return nil, err
	}

	out, err = r.Render(doc)
	if err != nil {
		e.logger.Warn("pdf render failed", logger.String("note_id", note.ID), logger.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrConversion, err)
	}
	return out, nil
}

// RendererReady reports whether the PDF renderer has been acquired.
func (e *Exporter) RendererReady() bool {
	return e.renderer.Ready()
}

// FileName derives a download file name from a note title.
func FileName(title, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return '_'
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	name = strings.Trim(name, ". ")

	if runes := []rune(name); len(runes) > 100 {
		name = strings.TrimSpace(string(runes[:100]))
	}
	if name == "" {
		name = "note"
	}
	return name + "." + strings.TrimPrefix(ext, ".")
}
