package recommend

import (
	"regexp"
	"strings"
	"unicode"
)

var boldPattern = regexp.MustCompile(`\*\*([^*\n]+?)\*\*`)

// stopWords are dropped from the user's text before keyword scoring.
var stopWords = map[string]bool{
	"about": true, "after": true, "also": true, "been": true, "best": true,
	"could": true, "does": true, "doing": true, "each": true, "from": true,
	"good": true, "have": true, "having": true, "help": true, "here": true,
	"into": true, "just": true, "like": true, "looking": true, "make": true,
	"more": true, "most": true, "much": true, "need": true, "needs": true,
	"please": true, "product": true, "products": true, "recommend": true,
	"routine": true, "should": true, "skin": true, "skincare": true, "some": true,
	"suggest": true, "than": true, "that": true, "their": true, "them": true,
	"then": true, "there": true, "these": true, "they": true, "this": true,
	"using": true, "very": true, "want": true, "what": true, "when": true,
	"which": true, "while": true, "with": true, "would": true, "your": true,
}

// ExtractBoldNames returns the **bold** spans of a reply in order of appearance,
// de-duplicated case-insensitively. Label-like spans with a trailing ':' inside or
// right after the markers ("**Tip:**", "**Tip**:") are formatting and are skipped.
func ExtractBoldNames(reply string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range boldPattern.FindAllStringSubmatchIndex(reply, -1) {
		name := strings.TrimSpace(reply[m[2]:m[3]])
		if name == "" || strings.HasSuffix(name, ":") || strings.HasPrefix(reply[m[1]:], ":") {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, name)
	}
	return names
}

// words splits text into lower-cased runs of letters and digits.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// nameTokens returns the distinct words of a candidate name longer than 2 characters.
func nameTokens(name string) []string {
	return distinct(words(name), func(w string) bool { return len([]rune(w)) > 2 })
}

// Keywords returns the distinct non-stop-words of the user's text longer than 3 characters.
func Keywords(text string) []string {
	return distinct(words(text), func(w string) bool {
		return len([]rune(w)) > 3 && !stopWords[w]
	})
}

func distinct(in []string, keep func(string) bool) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, w := range in {
		if !keep(w) || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
