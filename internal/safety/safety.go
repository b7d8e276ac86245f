// Package safety screens raw model output for directive investment advice
// before it is allowed into a stage result.
package safety

import "strings"

// Phrases that mark text as directive buy/sell advice. Matching is
// case-insensitive substring search over the raw response.
var advicePhrases = []string{
	"you should buy",
	"you should sell",
	"buy now",
	"sell now",
	"buy immediately",
	"sell immediately",
	"strong buy",
	"strong sell",
	"guaranteed profit",
	"guaranteed return",
	"can't lose",
	"cannot lose",
	"sure thing",
	"all in on",
	"recommend buying",
	"recommend selling",
	"i recommend you buy",
	"i recommend you sell",
}

// ContainsDisallowedContent reports whether the text carries directive
// investment advice. Stage runners route flagged output to fallback
// synthesis instead of surfacing it.
func ContainsDisallowedContent(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range advicePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
