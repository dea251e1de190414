// Package render turns assistant replies and product lists into display
// structures for the web page and the terminal.
package render

import (
	"regexp"
	"strings"
)

// Kind identifies a block of reply text.
type Kind string

const (
	KindParagraph Kind = "paragraph"
	KindBullets   Kind = "bullets"
	KindNumbered  Kind = "numbered"
	KindTip       Kind = "tip"
	KindWarning   Kind = "warning"
)

// Span is a run of inline text.
type Span struct {
	Text string
	Bold bool
}

// Line is one paragraph, list item or callout body.
type Line []Span

// Block is a structural element of a reply.
type Block struct {
	Kind  Kind
	Lines []Line
}

var (
	bulletPattern   = regexp.MustCompile(`^[-*•]\s+(.*)$`)
	numberedPattern = regexp.MustCompile(`^\d+[.)]\s+(.*)$`)
	calloutPattern  = regexp.MustCompile(`(?i)^(?:\*\*)?(tip|warning)s?(?:\*\*)?:(?:\*\*)?\s*(.*)$`)
	boldSpanPattern = regexp.MustCompile(`\*\*([^*\n]+?)\*\*`)
)

// Parse splits reply text into blocks. Blank lines end paragraphs and lists;
// Tip: and Warning: lines become callouts of their own.
func Parse(text string) []Block {
	var blocks []Block
	var cur *Block
	var para []string

	flush := func() {
		if len(para) > 0 {
			blocks = append(blocks, Block{Kind: KindParagraph, Lines: []Line{parseSpans(strings.Join(para, " "))}})
			para = nil
		}
		if cur != nil {
			blocks = append(blocks, *cur)
			cur = nil
		}
	}
	addItem := func(kind Kind, item string) {
		if len(para) > 0 || (cur != nil && cur.Kind != kind) {
			flush()
		}
		if cur == nil {
			cur = &Block{Kind: kind}
		}
		cur.Lines = append(cur.Lines, parseSpans(item))
	}

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			flush()
		case calloutPattern.MatchString(line):
			flush()
			m := calloutPattern.FindStringSubmatch(line)
			kind := KindTip
			if strings.EqualFold(m[1], "warning") {
				kind = KindWarning
			}
			blocks = append(blocks, Block{Kind: kind, Lines: []Line{parseSpans(m[2])}})
		case numberedPattern.MatchString(line):
			addItem(KindNumbered, numberedPattern.FindStringSubmatch(line)[1])
		case bulletPattern.MatchString(line):
			addItem(KindBullets, bulletPattern.FindStringSubmatch(line)[1])
		default:
			if cur != nil {
				flush()
			}
			para = append(para, line)
		}
	}
	flush()
	return blocks
}

func parseSpans(text string) Line {
	var line Line
	last := 0
	for _, loc := range boldSpanPattern.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > last {
			line = append(line, Span{Text: text[last:loc[0]]})
		}
		line = append(line, Span{Text: text[loc[2]:loc[3]], Bold: true})
		last = loc[1]
	}
	if last < len(text) {
		line = append(line, Span{Text: text[last:]})
	}
	return line
}

// Plain returns the line without markup.
func (l Line) Plain() string {
	var b strings.Builder
	for _, s := range l {
		b.WriteString(s.Text)
	}
	return b.String()
}
