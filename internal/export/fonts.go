package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/go-pdf/fpdf"

	"github.com/MrSnakeDoc/jot/internal/logger"
)

// fontBundle holds TrueType data for the text family, keyed by fpdf style
// ("", "B", "I", "BI"), plus the monospace face.
type fontBundle struct {
	variants map[string][]byte
	mono     []byte
}

// errFontMissing marks an optional font file that does not exist.
var errFontMissing = errors.New("font file missing")

// AcquirerOptions locate the resources of the PDF renderer.
type AcquirerOptions struct {
	// StyleFile is a YAML style sheet; empty uses DefaultStyleSheet.
	StyleFile string

	// FontDir is a local directory holding the style sheet's font files.
	FontDir string

	// FontURL is a base URL the font files are downloaded from when no
	// FontDir is set. With neither, the PDF core fonts are used and text is
	// limited to Windows-1252.
	FontURL string

	// Timeout bounds each font download.
	Timeout time.Duration
}

// FontAcquirer builds the fpdf renderer from a style sheet and fonts.
type FontAcquirer struct {
	opts   AcquirerOptions
	client *resty.Client
	logger logger.Logger
}

// NewFontAcquirer creates the default rendering capability acquirer.
func NewFontAcquirer(opts AcquirerOptions, log logger.Logger) *FontAcquirer {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	a := &FontAcquirer{opts: opts, logger: log.With(logger.Component("pdf"))}
	if opts.FontURL != "" {
		a.client = resty.New().
			SetBaseURL(strings.TrimRight(opts.FontURL, "/")).
			SetTimeout(opts.Timeout)
	}
	return a
}

// Acquire loads the style sheet and fonts and checks that the result can
// lay out a page.
func (a *FontAcquirer) Acquire(ctx context.Context) (Renderer, error) {
	sheet := DefaultStyleSheet()
	if a.opts.StyleFile != "" {
		var err error
		if sheet, err = LoadStyleSheet(a.opts.StyleFile); err != nil {
			return nil, err
		}
	}

	var (
		fonts *fontBundle
		err   error
	)
	switch {
	case a.opts.FontDir != "":
		fonts, err = loadFonts(sheet.Fonts, a.readFile)
	case a.client != nil:
		fonts, err = loadFonts(sheet.Fonts, func(name string) ([]byte, error) {
			return a.download(ctx, name)
		})
	default:
		a.logger.Info("no font source configured, using PDF core fonts")
	}
	if err != nil {
		return nil, err
	}

	r := &pdfRenderer{sheet: sheet, fonts: fonts}
	if _, err := r.Render(probeDocument); err != nil {
		return nil, fmt.Errorf("probe render: %w", err)
	}
	a.logger.Info("pdf renderer ready",
		logger.String("page_size", sheet.PageSize),
		logger.Bool("embedded_fonts", fonts != nil))
	return r, nil
}

var probeDocument = Document{
	Title: "probe",
	Elements: []Element{
		{Style: StyleTitle, Spans: []Span{{Text: "Probe"}}},
		{Style: StyleBody, Spans: []Span{{Text: "probe", Bold: true}, {Text: " probe", Italic: true}, {Text: " probe", Code: true}}},
	},
}

func (a *FontAcquirer) readFile(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(a.opts.FontDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", errFontMissing, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", name, err)
	}
	return data, nil
}

func (a *FontAcquirer) download(ctx context.Context, name string) ([]byte, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		Get("/" + name)
	if err != nil {
		return nil, fmt.Errorf("download font %s: %w", name, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", errFontMissing, name)
	case resp.IsError():
		return nil, fmt.Errorf("download font %s: status %d", name, resp.StatusCode())
	}
	a.logger.Debug("font downloaded", logger.String("font", name), logger.Int("bytes", len(resp.Body())))
	return resp.Body(), nil
}

// loadFonts fetches every configured face. The regular face is required;
// the others fall back to it.
func loadFonts(files FontFiles, fetch func(name string) ([]byte, error)) (*fontBundle, error) {
	if files.Regular == "" {
		return nil, fmt.Errorf("no regular font configured")
	}
	regular, err := fetch(files.Regular)
	if err != nil {
		return nil, err
	}

	optional := func(name string) ([]byte, error) {
		if name == "" {
			return regular, nil
		}
		data, err := fetch(name)
		if errors.Is(err, errFontMissing) {
			return regular, nil
		}
		return data, err
	}

	b := &fontBundle{variants: map[string][]byte{"": regular}}
	for style, name := range map[string]string{"B": files.Bold, "I": files.Italic, "BI": files.BoldItalic} {
		if b.variants[style], err = optional(name); err != nil {
			return nil, err
		}
	}
	if b.mono, err = optional(files.Mono); err != nil {
		return nil, err
	}
	return b, nil
}

// fontStyle returns the fpdf style string.
func fontStyle(bold, italic bool) string {
	switch {
	case bold && italic:
		return "BI"
	case bold:
		return "B"
	case italic:
		return "I"
	}
	return ""
}

// registerFonts adds the bundle to pdf and returns the text and monospace
// family names with the text translator to use.
func registerFonts(pdf *fpdf.Fpdf, b *fontBundle) (text, mono string, tr func(string) string) {
	if b == nil {
		return "Helvetica", "Courier", pdf.UnicodeTranslatorFromDescriptor("")
	}
	for style, data := range b.variants {
		pdf.AddUTF8FontFromBytes("text", style, data)
	}
	pdf.AddUTF8FontFromBytes("mono", "", b.mono)
	return "text", "mono", func(s string) string { return s }
}
