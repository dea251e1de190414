package recommend

import (
	"reflect"
	"testing"
)

func TestExtractBoldNamesSkipsLabels(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []string
	}{
		{"plain", "Use **Niacinamide** and **Vitamin C**.", []string{"Niacinamide", "Vitamin C"}},
		{"colon inside", "**Tip:** use **Niacinamide**", []string{"Niacinamide"}},
		{"colon outside", "**Tip**: use **Niacinamide**", []string{"Niacinamide"}},
		{"warning label", "**Warning**: avoid **Retinol** with acids", []string{"Retinol"}},
		{"dedupe", "**Retinol** then **retinol**", []string{"Retinol"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractBoldNames(tt.reply); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractBoldNames(%q) = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}
