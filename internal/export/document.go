package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/jot/internal/domain"
)

// Style names an entry of the style sheet.
type Style string

const (
	StyleTitle     Style = "title"
	StyleBody      Style = "body"
	StyleQuote     Style = "quote"
	StyleCode      Style = "code"
	StyleRule      Style = "rule"
	StyleTagsLabel Style = "tags_label"
	StyleTags      Style = "tags"
)

// HeadingStyle returns the style of a heading level 1-6.
func HeadingStyle(level int) Style {
	return Style("h" + strconv.Itoa(level))
}

// Element is one layout primitive of a document.
type Element struct {
	Style Style
	Spans []Span

	// Indent is the nesting depth for list items and quotes.
	Indent int

	// Marker is the list bullet or number drawn before the first line.
	Marker string

	// Text holds the verbatim content of code elements.
	Text string
}

// Document is the layout description handed to a Renderer.
type Document struct {
	Title    string
	Elements []Element
}

// BuildDocument maps a note to layout primitives: a title block, the body,
// and a tags block when the note has tags. It fails with
// domain.ErrConversion when the body holds markup the layout cannot
// represent.
func BuildDocument(note domain.Note) (Document, error) {
	title := headingTitle(note.Title)
	doc := Document{
		Title:    title,
		Elements: []Element{{Style: StyleTitle, Spans: []Span{{Text: title}}}},
	}

	body, err := layoutBlocks(bodyBlocks(note), 0, StyleBody)
	if err != nil {
		return Document{}, err
	}
	doc.Elements = append(doc.Elements, body...)

	if len(note.Tags) > 0 {
		doc.Elements = append(doc.Elements,
			Element{Style: StyleTagsLabel, Spans: []Span{{Text: "Tags:"}}},
			Element{Style: StyleTags, Spans: []Span{{Text: strings.Join(note.Tags, ", ")}}},
		)
	}
	return doc, nil
}

func layoutBlocks(blocks []block, indent int, style Style) ([]Element, error) {
	var out []Element
	for _, b := range blocks {
		switch b.kind {
		case blockHeading:
			if err := checkSpans(b.spans); err != nil {
				return nil, err
			}
			out = append(out, Element{Style: HeadingStyle(b.level), Spans: b.spans, Indent: indent})
		case blockParagraph:
			if err := checkSpans(b.spans); err != nil {
				return nil, err
			}
			out = append(out, Element{Style: style, Spans: b.spans, Indent: indent})
		case blockList:
			for i, item := range b.items {
				marker := "•"
				if b.ordered {
					marker = strconv.Itoa(i+1) + "."
				}
				els, err := layoutBlocks(item, indent+1, style)
				if err != nil {
					return nil, err
				}
				if len(els) == 0 || els[0].Marker != "" || els[0].Style == StyleCode || els[0].Style == StyleRule {
					els = append([]Element{{Style: style, Indent: indent + 1}}, els...)
				}
				els[0].Marker = marker
				out = append(out, els...)
			}
		case blockQuote:
			els, err := layoutBlocks(b.children, indent+1, StyleQuote)
			if err != nil {
				return nil, err
			}
			out = append(out, els...)
		case blockCode:
			out = append(out, Element{Style: StyleCode, Text: b.text, Indent: indent})
		case blockRule:
			out = append(out, Element{Style: StyleRule, Indent: indent})
		}
	}
	return out, nil
}

func checkSpans(spans []Span) error {
	for _, s := range spans {
		if s.Unsupported != "" {
			return fmt.Errorf("%w: <%s> has no layout equivalent", domain.ErrConversion, s.Unsupported)
		}
	}
	return nil
}
