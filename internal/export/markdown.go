package export

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/jot/internal/domain"
)

// ToMarkdown renders a note as a Markdown document: a level-1 title
// heading, the converted body, and a trailing tags line when the note has
// tags. Markup without a Markdown equivalent degrades to its text.
func ToMarkdown(note domain.Note) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(escapeInline(headingTitle(note.Title)))

	if body := renderBlocks(bodyBlocks(note)); body != "" {
		b.WriteString("\n\n")
		b.WriteString(body)
	}
	if len(note.Tags) > 0 {
		b.WriteString("\n\nTags: ")
		b.WriteString(strings.Join(note.Tags, ", "))
	}
	return b.String()
}

// bodyBlocks parses the note body, dropping a leading heading that only
// repeats the title.
func bodyBlocks(note domain.Note) []block {
	blocks := parseMarkup(note.BodyMarkup)
	if len(blocks) > 0 && blocks[0].kind == blockHeading &&
		strings.EqualFold(spansText(blocks[0].spans), headingTitle(note.Title)) {
		blocks = blocks[1:]
	}
	return blocks
}

// headingTitle folds the title onto one line.
func headingTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}

func renderBlocks(blocks []block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if s := renderBlock(b); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

func renderBlock(b block) string {
	switch b.kind {
	case blockHeading:
		return strings.Repeat("#", b.level) + " " + renderSpans(b.spans, " ")
	case blockParagraph:
		return escapeLineStart(renderSpans(b.spans, "  \n"))
	case blockList:
		return renderList(b)
	case blockQuote:
		return prefixLines(renderBlocks(b.children), "> ", ">")
	case blockCode:
		fence := "```"
		for strings.Contains(b.text, fence) {
			fence += "`"
		}
		return fence + "\n" + b.text + "\n" + fence
	case blockRule:
		return "---"
	}
	return ""
}

func renderList(b block) string {
	lines := make([]string, 0, len(b.items))
	for i, item := range b.items {
		marker := "- "
		if b.ordered {
			marker = strconv.Itoa(i+1) + ". "
		}
		indent := strings.Repeat(" ", len(marker))
		body := strings.TrimPrefix(prefixLines(renderItem(item), indent, ""), indent)
		lines = append(lines, marker+body)
	}
	return strings.Join(lines, "\n")
}

// renderItem keeps list items tight: paragraphs are joined by a single
// newline and nested lists follow directly.
func renderItem(item []block) string {
	parts := make([]string, 0, len(item))
	for _, b := range item {
		if s := renderBlock(b); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// renderSpans writes brk for line breaks. Headings cannot span lines.
func renderSpans(spans []Span, brk string) string {
	var b strings.Builder
	for _, s := range spans {
		if s.Break {
			b.WriteString(brk)
			continue
		}
		b.WriteString(renderSpan(s))
	}
	return b.String()
}

func renderSpan(s Span) string {
	text := s.Text
	if s.Unsupported != "" {
		return escapeInline(text)
	}

	// Markers must hug the text, so edge spaces move outside them.
	core := strings.TrimSpace(text)
	if core == "" {
		return text
	}
	lead := text[:strings.Index(text, core)]
	trail := text[len(lead)+len(core):]

	if s.Code {
		core = codeSpan(core)
	} else {
		core = escapeInline(core)
	}
	if s.Italic {
		core = "_" + core + "_"
	}
	if s.Bold {
		core = "**" + core + "**"
	}
	if s.Href != "" {
		core = "[" + core + "](" + linkTarget(s.Href) + ")"
	}
	return lead + core + trail
}

func codeSpan(text string) string {
	fence := "`"
	for strings.Contains(text, fence) {
		fence += "`"
	}
	if strings.HasPrefix(text, "`") || strings.HasSuffix(text, "`") {
		return fence + " " + text + " " + fence
	}
	return fence + text + fence
}

var linkEscaper = strings.NewReplacer(
	" ", "%20",
	"(", "%28",
	")", "%29",
	"<", "%3C",
	">", "%3E",
)

// linkTarget percent-encodes the characters that end a link destination.
func linkTarget(href string) string {
	return linkEscaper.Replace(href)
}

var inlineEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
)

// entityRef matches text that Markdown would decode as a character reference.
var entityRef = regexp.MustCompile(`&(#?[0-9A-Za-z]+;)`)

func escapeInline(s string) string {
	return entityRef.ReplaceAllString(inlineEscaper.Replace(s), `\&$1`)
}

// escapeLineStart keeps paragraph text from being read as a heading, quote,
// list item, fence, rule or setext underline.
func escapeLineStart(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "#"), strings.HasPrefix(line, ">"),
			strings.HasPrefix(line, "- "), strings.HasPrefix(line, "+ "),
			strings.HasPrefix(line, "~~~"),
			line == "-", line == "+", underline(line):
			indent := len(line) - len(strings.TrimLeft(line, " "))
			lines[i] = line[:indent] + `\` + line[indent:]
		default:
			if j := orderedMarker(line); j > 0 {
				lines[i] = line[:j] + `\` + line[j:]
			}
		}
	}
	return strings.Join(lines, "\n")
}

// underline reports whether line is a run of '-' or '=', spaces allowed.
func underline(line string) bool {
	runes := strings.ReplaceAll(strings.TrimSpace(line), " ", "")
	if runes == "" {
		return false
	}
	return strings.Trim(runes, "-") == "" || strings.Trim(runes, "=") == ""
}

// orderedMarker returns the index of the '.' or ')' in a leading "123. " or
// "123) ", or 0.
func orderedMarker(line string) int {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) || (line[i] != '.' && line[i] != ')') {
		return 0
	}
	if i+1 < len(line) && line[i+1] != ' ' {
		return 0
	}
	return i
}

func prefixLines(s, prefix, emptyPrefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = emptyPrefix
			continue
		}
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
