package render

import (
	"bytes"
	"html/template"

	"github.com/ashureev/skincare-assistant/internal/domain"
)

// Layout is how a message's products are displayed.
type Layout string

const (
	LayoutNone     Layout = "none"
	LayoutCard     Layout = "card"
	LayoutCarousel Layout = "carousel"
)

// LayoutFor picks a single card for one product and a carousel for more.
func LayoutFor(products []domain.Product) Layout {
	switch len(products) {
	case 0:
		return LayoutNone
	case 1:
		return LayoutCard
	default:
		return LayoutCarousel
	}
}

var blockTemplate = template.Must(template.New("blocks").Parse(
	`{{define "line"}}{{range .}}{{if .Bold}}<strong>{{.Text}}</strong>{{else}}{{.Text}}{{end}}{{end}}{{end}}` +
		`{{range .}}` +
		`{{if eq .Kind "paragraph"}}<p>{{template "line" index .Lines 0}}</p>` +
		`{{else if eq .Kind "bullets"}}<ul>{{range .Lines}}<li>{{template "line" .}}</li>{{end}}</ul>` +
		`{{else if eq .Kind "numbered"}}<ol>{{range .Lines}}<li>{{template "line" .}}</li>{{end}}</ol>` +
		`{{else if eq .Kind "tip"}}<p class="callout tip"><span class="label">Tip:</span> {{template "line" index .Lines 0}}</p>` +
		`{{else if eq .Kind "warning"}}<p class="callout warning"><span class="label">Warning:</span> {{template "line" index .Lines 0}}</p>` +
		`{{end}}` +
		`{{end}}`))

// HTML renders blocks as escaped HTML.
func HTML(blocks []Block) (template.HTML, error) {
	var buf bytes.Buffer
	if err := blockTemplate.Execute(&buf, blocks); err != nil {
		return "", err
	}
	//nolint:gosec // output is produced by html/template and is already escaped.
	return template.HTML(buf.String()), nil
}

// Markup parses and renders reply text, falling back to escaped plain text.
func Markup(text string) template.HTML {
	out, err := HTML(Parse(text))
	if err != nil {
		return template.HTML(template.HTMLEscapeString(text)) //nolint:gosec // escaped
	}
	return out
}
