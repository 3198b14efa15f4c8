package normalize

import (
	"strings"
	"unicode"
)

var titleAbbreviations = map[string]string{
	"sr":    "senior",
	"snr":   "senior",
	"jr":    "junior",
	"jnr":   "junior",
	"eng":   "engineer",
	"engr":  "engineer",
	"mgr":   "manager",
	"dev":   "developer",
	"swe":   "software engineer",
	"sde":   "software development engineer",
	"ml":    "machine learning",
	"vp":    "vice president",
	"assoc": "associate",
	"admin": "administrator",
	"ops":   "operations",
	"mktg":  "marketing",
	"acct":  "account",
}

var titleCompounds = strings.NewReplacer(
	"front end", "frontend",
	"back end", "backend",
	"full stack", "fullstack",
	"dev ops", "devops",
)

// NormalizeTitle lowercases, folds accents, drops punctuation and expands
// common abbreviations so "Sr. Back-End Eng." becomes "senior backend engineer".
func NormalizeTitle(title string) string {
	s := strings.ToLower(FoldAccents(title))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' {
			return r
		}
		return ' '
	}, s)

	words := strings.Fields(s)
	for i, w := range words {
		if full, ok := titleAbbreviations[w]; ok {
			words[i] = full
		}
	}
	return strings.TrimSpace(titleCompounds.Replace(strings.Join(words, " ")))
}
