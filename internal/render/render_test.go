package render

import (
	"strings"
	"testing"

	"github.com/ashureev/skincare-assistant/internal/domain"
)

const sampleReply = `For oily, acne-prone skin try this routine:

1. Cleanse with **Salicylic + LHA 2% Cleanser**
2) Apply **Niacinamide 10% + Zinc 1% Face Serum**
3. Finish with sunscreen

- Patch test first
* Go slow
• Be consistent

**Tip:** Use the serum at night.
Warning: Avoid mixing <acids> with retinol.`

func TestParseStructure(t *testing.T) {
	blocks := Parse(sampleReply)

	want := []Kind{KindParagraph, KindNumbered, KindBullets, KindTip, KindWarning}
	if len(blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %d: %+v", len(want), len(blocks), blocks)
	}
	for i, k := range want {
		if blocks[i].Kind != k {
			t.Errorf("block %d: expected %s, got %s", i, k, blocks[i].Kind)
		}
	}
	if n := len(blocks[1].Lines); n != 3 {
		t.Errorf("expected 3 numbered items, got %d", n)
	}
	if n := len(blocks[2].Lines); n != 3 {
		t.Errorf("expected 3 bullets, got %d", n)
	}
	if got := blocks[3].Lines[0].Plain(); got != "Use the serum at night." {
		t.Errorf("unexpected tip text %q", got)
	}
}

func TestParseBoldSpans(t *testing.T) {
	blocks := Parse("Start with **Vitamin C** and **SPF 50** daily.")
	if len(blocks) != 1 {
		t.Fatalf("expected one paragraph, got %d", len(blocks))
	}
	line := blocks[0].Lines[0]
	var bold []string
	for _, s := range line {
		if s.Bold {
			bold = append(bold, s.Text)
		}
	}
	if strings.Join(bold, "|") != "Vitamin C|SPF 50" {
		t.Errorf("unexpected bold spans %v", bold)
	}
	if line.Plain() != "Start with Vitamin C and SPF 50 daily." {
		t.Errorf("unexpected plain text %q", line.Plain())
	}
}

func TestParseJoinsWrappedParagraphLines(t *testing.T) {
	blocks := Parse("first line\nsecond line\n\nnext")
	if len(blocks) != 2 || blocks[0].Lines[0].Plain() != "first line second line" {
		t.Fatalf("unexpected blocks %+v", blocks)
	}
}

func TestHTMLEscapesAndStructures(t *testing.T) {
	out := string(Markup(sampleReply))

	for _, want := range []string{
		"<ol><li>Cleanse with <strong>Salicylic &#43; LHA 2% Cleanser</strong></li>",
		"<ul><li>Patch test first</li>",
		`<p class="callout tip"><span class="label">Tip:</span> Use the serum at night.</p>`,
		"&lt;acids&gt;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<acids>") {
		t.Error("expected reply text to be escaped")
	}
}

func TestParseCalloutLabelVariants(t *testing.T) {
	for _, line := range []string{
		"Tip: wear sunscreen daily",
		"**Tip:** wear sunscreen daily",
		"**Tip**: wear sunscreen daily",
		"tips: wear sunscreen daily",
	} {
		blocks := Parse(line)
		if len(blocks) != 1 || blocks[0].Kind != KindTip {
			t.Errorf("%q: expected one tip block, got %+v", line, blocks)
			continue
		}
		if got := blocks[0].Lines[0].Plain(); got != "wear sunscreen daily" {
			t.Errorf("%q: unexpected callout text %q", line, got)
		}
	}

	blocks := Parse("**Warning**: stop if irritated")
	if len(blocks) != 1 || blocks[0].Kind != KindWarning {
		t.Errorf("expected warning block, got %+v", blocks)
	}
}

func TestLayoutFor(t *testing.T) {
	p := domain.Product{ID: "a"}
	tests := []struct {
		products []domain.Product
		want     Layout
	}{
		{nil, LayoutNone},
		{[]domain.Product{p}, LayoutCard},
		{[]domain.Product{p, p}, LayoutCarousel},
		{[]domain.Product{p, p, p}, LayoutCarousel},
	}
	for _, tt := range tests {
		if got := LayoutFor(tt.products); got != tt.want {
			t.Errorf("LayoutFor(%d) = %s, want %s", len(tt.products), got, tt.want)
		}
	}
}

func TestTerminalRendersCallouts(t *testing.T) {
	out := Terminal(Parse(sampleReply), 80)
	for _, want := range []string{"Tip:", "Warning:", "Salicylic + LHA 2% Cleanser", "1.", "•"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in terminal output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "**") {
		t.Error("expected bold markers to be consumed")
	}
}

func TestProductCardsAlternativeBadge(t *testing.T) {
	products := []domain.Product{
		{ID: "a", Name: "Niacinamide", Description: "Oil control"},
		{ID: "b", Name: "Sunscreen", Description: "Daily", IsAlternative: true},
	}
	out := ProductCards(products, 120)
	if !strings.Contains(out, "Alternative Recommendation") {
		t.Errorf("expected alternative badge:\n%s", out)
	}
	if strings.Count(out, "Alternative Recommendation") != 1 {
		t.Errorf("expected exactly one badge:\n%s", out)
	}
	if ProductCards(nil, 80) != "" {
		t.Error("expected no output without products")
	}
}
