package accent

import "strings"

// labelNames maps the accent model's internal label codes to display names.
// The codes follow the CommonAccent dataset conventions, including its
// spelling of "southatlandtic".
var labelNames = map[string]string{
	"us":             "American",
	"england":        "British",
	"australia":      "Australian",
	"indian":         "Indian",
	"canada":         "Canadian",
	"bermuda":        "Bermudian",
	"scotland":       "Scottish",
	"african":        "African",
	"ireland":        "Irish",
	"newzealand":     "New Zealand",
	"wales":          "Welsh",
	"malaysia":       "Malaysian",
	"philippines":    "Filipino",
	"singapore":      "Singaporean",
	"hongkong":       "Hong Kong",
	"southatlandtic": "South Atlantic",
}

// DisplayName resolves an internal accent code to its human-readable name.
// Unknown codes fall back to a title-cased form of the code itself so that a
// model update adding new labels degrades gracefully instead of failing.
func DisplayName(code string) string {
	if name, ok := labelNames[code]; ok {
		return name
	}
	return titleCase(code)
}

// titleCase upper-cases the first letter of each space-separated word.
// Accent codes are plain ASCII so no Unicode-aware casing is needed.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
