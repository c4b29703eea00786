package export

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

// pdfRenderer lays documents out with fpdf. It holds only immutable
// resources and builds a fresh fpdf instance per call, so it is safe for
// concurrent use.
type pdfRenderer struct {
	sheet StyleSheet
	fonts *fontBundle
}

func (r *pdfRenderer) Render(doc Document) ([]byte, error) {
	if r.fonts == nil {
		if err := checkCoreFontText(doc); err != nil {
			return nil, err
		}
	}

	m := r.sheet.Margin
	pdf := fpdf.New("P", "mm", r.sheet.PageSize, "")
	pdf.SetMargins(m, m, m)
	pdf.SetAutoPageBreak(true, m)

	text, mono, tr := registerFonts(pdf, r.fonts)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("jot", false)
	pdf.AddPage()

	l := &layout{pdf: pdf, sheet: r.sheet, text: text, mono: mono, tr: tr}
	for _, el := range doc.Elements {
		l.element(el)
		if pdf.Err() {
			break
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	return buf.Bytes(), nil
}

type layout struct {
	pdf   *fpdf.Fpdf
	sheet StyleSheet
	text  string
	mono  string
	tr    func(string) string
}

func (l *layout) element(el Element) {
	ts := l.sheet.style(el.Style)
	h := l.pdf.PointConvert(ts.Size) * l.sheet.LineHeight
	left := l.sheet.Margin + float64(el.Indent)*l.sheet.Indent

	if ts.SpaceBefore > 0 {
		l.pdf.Ln(ts.SpaceBefore)
	}
	l.pdf.SetLeftMargin(left)
	l.pdf.SetX(left)
	l.pdf.SetTextColor(ts.Color[0], ts.Color[1], ts.Color[2])

	switch el.Style {
	case StyleRule:
		pageW, _ := l.pdf.GetPageSize()
		y := l.pdf.GetY() + h/2
		l.pdf.SetDrawColor(ts.Color[0], ts.Color[1], ts.Color[2])
		l.pdf.Line(left, y, pageW-l.sheet.Margin, y)
		l.pdf.Ln(h)
	case StyleCode:
		l.pdf.SetFont(l.mono, "", ts.Size)
		l.pdf.MultiCell(0, h, l.tr(el.Text), "", "L", false)
	default:
		if el.Marker != "" {
			l.pdf.SetFont(l.text, "", ts.Size)
			l.pdf.SetX(left - l.sheet.Indent)
			l.pdf.Write(h, l.tr(el.Marker))
			l.pdf.SetX(left)
		}
		for _, s := range el.Spans {
			l.span(ts, s, h)
		}
		l.pdf.Ln(h)
	}

	if ts.SpaceAfter > 0 {
		l.pdf.Ln(ts.SpaceAfter)
	}
	l.pdf.SetLeftMargin(l.sheet.Margin)
}

func (l *layout) span(ts TextStyle, s Span, h float64) {
	if s.Break {
		l.pdf.Ln(h)
		return
	}
	family, style := l.text, fontStyle(ts.Bold || s.Bold, ts.Italic || s.Italic)
	if s.Code || ts.Mono {
		family, style = l.mono, ""
	}
	if s.Href != "" {
		style += "U"
	}
	l.pdf.SetFont(family, style, ts.Size)

	text := l.tr(s.Text)
	if s.Href != "" {
		l.pdf.WriteLinkString(h, text, s.Href)
		return
	}
	l.pdf.Write(h, text)
}

// checkCoreFontText fails when the document holds text outside
// Windows-1252, the only encoding the PDF core fonts can show.
func checkCoreFontText(doc Document) error {
	enc := charmap.Windows1252.NewEncoder()
	check := func(s string) error {
		if _, err := enc.String(s); err != nil {
			return fmt.Errorf("core fonts cannot show %q: %w", s, err)
		}
		return nil
	}
	for _, el := range doc.Elements {
		if err := check(el.Text); err != nil {
			return err
		}
		if err := check(el.Marker); err != nil {
			return err
		}
		for _, s := range el.Spans {
			if err := check(s.Text); err != nil {
				return err
			}
		}
	}
	return nil
}
