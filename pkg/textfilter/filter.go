// Package textfilter softens scene text before it is sent to an image
// provider. Providers reject prompts that trip their safety classifiers, and a
// rejected prompt means no illustration at all.
package textfilter

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Terms that image providers commonly refuse, with a milder stand-in.
// Multi-word terms are matched before the single words they contain.
var flaggedTerms = []struct {
	term        string
	replacement string
}{
	{"blood-soaked", "battle-worn"},
	{"blood soaked", "battle worn"},
	{"decapitated", "defeated"},
	{"dismembered", "defeated"},
	{"disemboweled", "defeated"},
	{"mutilated", "battered"},
	{"entrails", "remains"},
	{"corpse", "fallen figure"},
	{"gore", "grime"},
	{"gory", "grim"},
	{"naked", "unarmored"},
	{"nude", "unarmored"},
	{"fuck", "fudge"},
	{"shit", "muck"},
	{"bitch", "brute"},
	{"bastard", "brute"},
	{"whore", "rogue"},
}

// PromptFilter replaces flagged terms in prompt text, keeping the original casing.
type PromptFilter struct {
	patterns []*regexp.Regexp
	replace  []string
}

// NewPromptFilter compiles the flagged term patterns.
func NewPromptFilter() *PromptFilter {
	pf := &PromptFilter{
		patterns: make([]*regexp.Regexp, 0, len(flaggedTerms)),
		replace:  make([]string, 0, len(flaggedTerms)),
	}
	for _, ft := range flaggedTerms {
		// Whole words only, optionally plural: "corpses" matches, "gorel" does not.
		pattern := `(?i)\b` + regexp.QuoteMeta(ft.term) + `(s|es)?\b`
		pf.patterns = append(pf.patterns, regexp.MustCompile(pattern))
		pf.replace = append(pf.replace, ft.replacement)
	}
	return pf
}

// FilterText returns text with every flagged term replaced.
func (pf *PromptFilter) FilterText(text string) string {
	result := text
	for i, re := range pf.patterns {
		replacement := pf.replace[i]
		result = re.ReplaceAllStringFunc(result, func(match string) string {
			return preserveCase(match, pluralize(match, re, replacement))
		})
	}
	return result
}

// ContainsFlagged reports whether text has any flagged term.
func (pf *PromptFilter) ContainsFlagged(text string) bool {
	for _, re := range pf.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// pluralize carries a plural suffix from the match over to the replacement.
func pluralize(match string, re *regexp.Regexp, replacement string) string {
	sub := re.FindStringSubmatch(match)
	if len(sub) > 1 && sub[1] != "" {
		return replacement + "s"
	}
	return replacement
}

// preserveCase applies the case pattern of the original word to the replacement.
func preserveCase(original, replacement string) string {
	if original == "" {
		return replacement
	}

	if strings.ToUpper(original) == original {
		return strings.ToUpper(replacement)
	}

	if strings.ToLower(original) == original {
		return strings.ToLower(replacement)
	}

	// Title case only capitalizes the first word of a multi-word replacement.
	titleCaser := cases.Title(language.English)
	if titleCaser.String(strings.ToLower(original)) == original {
		runes := []rune(strings.ToLower(replacement))
		runes[0] = unicode.ToUpper(runes[0])
		return string(runes)
	}

	// Mixed case: copy the case rune by rune, lowercase past the original's length.
	originalRunes := []rune(original)
	result := make([]rune, 0, len(replacement))
	for i, r := range []rune(replacement) {
		if i < len(originalRunes) && unicode.IsUpper(originalRunes[i]) {
			result = append(result, unicode.ToUpper(r))
		} else {
			result = append(result, unicode.ToLower(r))
		}
	}
	return string(result)
}

// CollapseWhitespace drops control characters and folds runs of whitespace
// into single spaces. Server-supplied descriptions often carry newlines and
// indentation that only waste prompt tokens.
func CollapseWhitespace(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsControl(r):
			continue
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}
