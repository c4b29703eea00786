package export

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Span is a run of inline text sharing one set of marks.
type Span struct {
	Text   string
	Bold   bool
	Italic bool
	Code   bool
	Href   string

	// Break is a hard line break; Text is empty.
	Break bool

	// Unsupported names the element this span stands in for when the markup
	// held something without a text representation. Text is its fallback
	// (alt text for images, inner text otherwise).
	Unsupported string
}

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockList
	blockQuote
	blockCode
	blockRule
)

// block is one node of the parsed body.
type block struct {
	kind     blockKind
	level    int       // heading level
	ordered  bool      // list
	spans    []Span    // paragraph, heading
	items    [][]block // list items
	children []block   // quote
	text     string    // code
}

// elements with no text representation
var unsupported = map[atom.Atom]bool{
	atom.Img:    true,
	atom.Table:  true,
	atom.Iframe: true,
	atom.Video:  true,
	atom.Audio:  true,
	atom.Svg:    true,
	atom.Canvas: true,
	atom.Object: true,
	atom.Embed:  true,
}

var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Head:     true,
	atom.Template: true,
	atom.Noscript: true,
}

// parseMarkup turns body markup into blocks. It never fails: markup the
// tokenizer cannot make sense of degrades to text.
func parseMarkup(markup string) []block {
	if strings.TrimSpace(markup) == "" {
		return nil
	}
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return []block{{kind: blockParagraph, spans: []Span{{Text: collapse(markup)}}}}
	}
	return parseBlocks(nodes)
}

func parseBlocks(nodes []*html.Node) []block {
	var (
		out []block
		run []Span
	)
	flush := func() {
		if spans := trimSpans(run); len(spans) > 0 {
			out = append(out, block{kind: blockParagraph, spans: spans})
		}
		run = nil
	}

	for _, n := range nodes {
		if n.Type == html.TextNode {
			run = append(run, Span{Text: collapse(n.Data)})
			continue
		}
		if n.Type != html.ElementNode || skipped[n.DataAtom] {
			continue
		}

		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			flush()
			if spans := trimSpans(inline(n, Span{})); len(spans) > 0 {
				out = append(out, block{kind: blockHeading, level: int(n.Data[1] - '0'), spans: spans})
			}
		case atom.P:
			flush()
			run = inline(n, Span{})
			flush()
		case atom.Ul, atom.Ol:
			flush()
			if b, ok := parseList(n); ok {
				out = append(out, b)
			}
		case atom.Blockquote:
			flush()
			if children := parseBlocks(childNodes(n)); len(children) > 0 {
				out = append(out, block{kind: blockQuote, children: children})
			}
		case atom.Pre:
			flush()
			out = append(out, block{kind: blockCode, text: strings.Trim(textContent(n), "\n")})
		case atom.Hr:
			flush()
			out = append(out, block{kind: blockRule})
		case atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer,
			atom.Main, atom.Aside, atom.Nav, atom.Figure, atom.Li, atom.Dl, atom.Dd, atom.Dt,
			atom.Html, atom.Body:
			flush()
			out = append(out, parseBlocks(childNodes(n))...)
		default:
			run = append(run, inline(n, Span{})...)
		}
	}
	flush()
	return out
}

func parseList(n *html.Node) (block, bool) {
	b := block{kind: blockList, ordered: n.DataAtom == atom.Ol}
	var loose []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Li {
			if len(loose) > 0 {
				b.items = append(b.items, parseBlocks(loose))
				loose = nil
			}
			b.items = append(b.items, parseBlocks(childNodes(c)))
			continue
		}
		// Editors sometimes nest a list directly in a list.
		loose = append(loose, c)
	}
	if len(loose) > 0 {
		if item := parseBlocks(loose); len(item) > 0 {
			b.items = append(b.items, item)
		}
	}
	return b, len(b.items) > 0
}

// inline flattens n into spans, inheriting the marks of parent.
func inline(n *html.Node, parent Span) []Span {
	switch n.Type {
	case html.TextNode:
		s := parent
		s.Text = collapse(n.Data)
		return []Span{s}
	case html.ElementNode:
	default:
		return nil
	}
	if skipped[n.DataAtom] {
		return nil
	}
	if unsupported[n.DataAtom] {
		s := parent
		s.Unsupported = n.Data
		if n.DataAtom == atom.Img {
			s.Text = attr(n, "alt")
		} else {
			s.Text = collapse(textContent(n))
		}
		return []Span{s}
	}

	marks := parent
	switch n.DataAtom {
	case atom.Br:
		return []Span{{Break: true}}
	case atom.Strong, atom.B:
		marks.Bold = true
	case atom.Em, atom.I, atom.Cite:
		marks.Italic = true
	case atom.Code, atom.Kbd, atom.Samp, atom.Tt:
		marks.Code = true
	case atom.A:
		if href := attr(n, "href"); href != "" {
			marks.Href = href
		}
	}

	var out []Span
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, inline(c, marks)...)
	}
	return out
}

// trimSpans drops whitespace at the edges of a run and merges neighbours
// with identical marks.
func trimSpans(spans []Span) []Span {
	var merged []Span
	for _, s := range spans {
		if s.Text == "" && !s.Break && s.Unsupported == "" {
			continue
		}
		n := len(merged)
		if n > 0 && strings.HasSuffix(merged[n-1].Text, " ") {
			s.Text = strings.TrimLeft(s.Text, " ")
		}
		if n > 0 && sameMarks(merged[n-1], s) {
			merged[n-1].Text += s.Text
			continue
		}
		merged = append(merged, s)
	}

	lineStart := true
	for i := range merged {
		if merged[i].Break {
			lineStart = true
			continue
		}
		if lineStart {
			merged[i].Text = strings.TrimLeft(merged[i].Text, " ")
			lineStart = merged[i].Text == ""
		}
	}
	lineEnd := true
	for i := len(merged) - 1; i >= 0; i-- {
		if merged[i].Break {
			lineEnd = true
			continue
		}
		if lineEnd {
			merged[i].Text = strings.TrimRight(merged[i].Text, " ")
			lineEnd = merged[i].Text == ""
		}
	}
	// Breaks at the edges carry nothing.
	for len(merged) > 0 && merged[0].Break {
		merged = merged[1:]
	}
	for len(merged) > 0 && merged[len(merged)-1].Break {
		merged = merged[:len(merged)-1]
	}

	out := merged[:0]
	for _, s := range merged {
		if s.Text == "" && !s.Break && s.Unsupported == "" {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func sameMarks(a, b Span) bool {
	return !a.Break && !b.Break && a.Unsupported == "" && b.Unsupported == "" &&
		a.Bold == b.Bold && a.Italic == b.Italic && a.Code == b.Code && a.Href == b.Href
}

// collapse folds runs of whitespace into one space.
func collapse(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	if space {
		b.WriteByte(' ')
	}
	return b.String()
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Br {
			b.WriteByte('\n')
			continue
		}
		b.WriteString(textContent(c))
	}
	return b.String()
}

func childNodes(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func spansText(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		if s.Break {
			b.WriteByte(' ')
			continue
		}
		b.WriteString(s.Text)
	}
	return strings.TrimSpace(b.String())
}
