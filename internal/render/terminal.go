package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ashureev/skincare-assistant/internal/domain"
)

const (
	cardWidth     = 34
	minTextWidth  = 20
	descLineLimit = 90
)

var (
	boldStyle    = lipgloss.NewStyle().Bold(true)
	tipLabel     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("35"))
	warningLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	badgeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

var cardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("245")).
	Padding(0, 1).
	Width(cardWidth)

var alternativeCardStyle = cardStyle.BorderForeground(lipgloss.Color("214"))

func styleLine(l Line) string {
	var b strings.Builder
	for _, s := range l {
		if s.Bold {
			b.WriteString(boldStyle.Render(s.Text))
		} else {
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// Terminal renders blocks for a terminal of the given width.
func Terminal(blocks []Block, width int) string {
	if width < minTextWidth {
		width = minTextWidth
	}
	wrap := lipgloss.NewStyle().Width(width)
	indent := lipgloss.NewStyle().Width(width - 4)

	var parts []string
	for _, b := range blocks {
		switch b.Kind {
		case KindParagraph:
			parts = append(parts, wrap.Render(styleLine(b.Lines[0])))
		case KindBullets, KindNumbered:
			var items []string
			for i, l := range b.Lines {
				marker := "  • "
				if b.Kind == KindNumbered {
					marker = fmt.Sprintf("%3d. ", i+1)
				}
				items = append(items, lipgloss.JoinHorizontal(lipgloss.Top, marker, indent.Render(styleLine(l))))
			}
			parts = append(parts, strings.Join(items, "\n"))
		case KindTip:
			parts = append(parts, wrap.Render(tipLabel.Render("Tip:")+" "+styleLine(b.Lines[0])))
		case KindWarning:
			parts = append(parts, wrap.Render(warningLabel.Render("Warning:")+" "+styleLine(b.Lines[0])))
		}
	}
	return strings.Join(parts, "\n\n")
}

// ProductCards draws product cards. A carousel is laid out side by side when
// the width allows it and stacked otherwise.
func ProductCards(products []domain.Product, width int) string {
	if LayoutFor(products) == LayoutNone {
		return ""
	}

	cards := make([]string, 0, len(products))
	for _, p := range products {
		cards = append(cards, productCard(p))
	}

	if LayoutFor(products) == LayoutCarousel && width >= len(cards)*(cardWidth+2) {
		return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

func productCard(p domain.Product) string {
	lines := []string{boldStyle.Render(p.Name)}
	if p.IsAlternative {
		lines = append(lines, badgeStyle.Render("Alternative Recommendation"))
	}
	if p.Description != "" {
		lines = append(lines, truncate(p.Description, descLineLimit))
	}
	if p.ProductURL != "" {
		lines = append(lines, mutedStyle.Render(p.ProductURL))
	}

	style := cardStyle
	if p.IsAlternative {
		style = alternativeCardStyle
	}
	return style.Render(strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
