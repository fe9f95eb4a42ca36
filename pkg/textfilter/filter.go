package textfilter

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// replacements maps words softened for family ratings to their stand-ins.
var replacements = map[string]string{
	"fuck":         "fudge",
	"fucking":      "flipping",
	"motherfucker": "mother-trucker",
	"shit":         "shoot",
	"bullshit":     "baloney",
	"horseshit":    "nonsense",
	"shithead":     "dimwit",
	"damn":         "dang",
	"goddamn":      "gosh-dang",
	"damned":       "darned",
	"hell":         "heck",
	"ass":          "rump",
	"asshole":      "knave",
	"jackass":      "knave",
	"dumbass":      "dullard",
	"bitch":        "wretch",
	"bastard":      "scoundrel",
	"crap":         "rubbish",
	"piss":         "blazes",
	"dick":         "cad",
	"prick":        "cad",
	"whore":        "[censored]",
	"slut":         "[censored]",
}

// Filter softens profanity in narrated text while keeping the casing of
// the word it replaces.
type Filter struct {
	pattern *regexp.Regexp
}

// New compiles the word list into a single pattern. Longer words are
// tried first so compounds win over their prefixes.
func New() *Filter {
	words := make([]string, 0, len(replacements))
	for w := range replacements {
		words = append(words, regexp.QuoteMeta(w))
	}
	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
	return &Filter{
		pattern: regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `)(es|s)?\b`),
	}
}

// Apply returns text with every listed word replaced. Plural forms keep
// their suffix.
func (f *Filter) Apply(text string) string {
	return f.pattern.ReplaceAllStringFunc(text, func(match string) string {
		parts := f.pattern.FindStringSubmatch(match)
		word, suffix := parts[1], parts[2]
		replacement, ok := replacements[strings.ToLower(word)]
		if !ok {
			return match
		}
		if strings.HasPrefix(replacement, "[") {
			return replacement
		}
		return matchCase(word, replacement) + plural(replacement, suffix)
	})
}

// plural returns the suffix that makes replacement plural, in the case of
// the original suffix.
func plural(replacement, suffix string) string {
	if suffix == "" {
		return ""
	}
	out := "s"
	for _, end := range []string{"s", "x", "z", "ch", "sh"} {
		if strings.HasSuffix(replacement, end) {
			out = "es"
			break
		}
	}
	if strings.ToUpper(suffix) == suffix {
		return strings.ToUpper(out)
	}
	return out
}

// Contains reports whether text has any listed word.
func (f *Filter) Contains(text string) bool {
	return f.pattern.MatchString(text)
}

// matchCase applies the casing of original to replacement. A Caser holds
// state, so one is made per call.
func matchCase(original, replacement string) string {
	title := cases.Title(language.English)
	switch {
	case strings.ToUpper(original) == original:
		return strings.ToUpper(replacement)
	case strings.ToLower(original) == original:
		return replacement
	case title.String(strings.ToLower(original)) == original:
		return title.String(replacement)
	}

	orig := []rune(original)
	out := []rune(replacement)
	for i, r := range out {
		if i < len(orig) && unicode.IsUpper(orig[i]) {
			out[i] = unicode.ToUpper(r)
		} else {
			out[i] = unicode.ToLower(r)
		}
	}
	return string(out)
}

// ShouldFilterContent reports whether narration for the given content
// rating is softened. Unrated and R content is left alone.
func ShouldFilterContent(rating string) bool {
	switch strings.ToUpper(strings.TrimSpace(rating)) {
	case "G", "PG", "PG13", "PG-13":
		return true
	default:
		return false
	}
}
