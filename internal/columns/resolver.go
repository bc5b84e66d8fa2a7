package columns

import (
	"strings"
	"unicode"

	"github.com/tarisrizki/provisioning-telkom/internal/models"
	"golang.org/x/text/unicode/norm"
)

// minTokenLen is the shortest alias token the keyword stage looks for.
const minTokenLen = 3

type term struct {
	lower    string
	stripped string
	tokens   []string
}

func newTerm(s string) term {
	lower := strings.Join(strings.Fields(strings.ToLower(s)), " ")

	var tokens []string
	for _, tok := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(tok) >= minTokenLen {
			tokens = append(tokens, tok)
		}
	}

	return term{
		lower:    lower,
		stripped: stripPunctuation(lower),
		tokens:   tokens,
	}
}

// matcher decides whether a header satisfies an alias at one stage.
type matcher func(header, alias term) bool

// stages run in order; a field resolved at an earlier stage is never revisited.
var stages = []matcher{
	exactMatch,
	substringMatch,
	strippedMatch,
	keywordMatch,
}

func exactMatch(header, alias term) bool {
	return header.lower != "" && header.lower == alias.lower
}

func substringMatch(header, alias term) bool {
	if header.lower == "" || alias.lower == "" {
		return false
	}
	return strings.Contains(header.lower, alias.lower) || strings.Contains(alias.lower, header.lower)
}

func strippedMatch(header, alias term) bool {
	return header.stripped != "" && header.stripped == alias.stripped
}

func keywordMatch(header, alias term) bool {
	for _, tok := range alias.tokens {
		if strings.Contains(header.lower, tok) {
			return true
		}
	}
	return false
}

// Resolve maps every field of table onto an index of headers, or
// models.NotFound. Matching is staged: exact, substring, punctuation-stripped,
// then keyword. Each header index is claimed by at most one field, and for
// duplicate header names the first occurrence wins.
func Resolve(headers []string, table AliasTable) models.ColumnMapping {
	mapping := make(models.ColumnMapping, len(table))
	for _, f := range table {
		mapping[f.Field] = models.NotFound
	}

	headerTerms := make([]term, len(headers))
	for i, h := range headers {
		headerTerms[i] = newTerm(h)
	}
	aliasTerms := make([][]term, len(table))
	for i, f := range table {
		aliasTerms[i] = make([]term, len(f.Aliases))
		for j, a := range f.Aliases {
			aliasTerms[i][j] = newTerm(a)
		}
	}

	used := make([]bool, len(headers))
	for _, match := range stages {
		for fi, f := range table {
			if mapping[f.Field] != models.NotFound {
				continue
			}
			if idx := findHeader(headerTerms, used, aliasTerms[fi], match); idx != models.NotFound {
				mapping[f.Field] = idx
				used[idx] = true
			}
		}
	}

	return mapping
}

// findHeader tries aliases in priority order and returns the first unused
// header that matches.
func findHeader(headers []term, used []bool, aliases []term, match matcher) int {
	for _, alias := range aliases {
		for i, h := range headers {
			if used[i] {
				continue
			}
			if match(h, alias) {
				return i
			}
		}
	}
	return models.NotFound
}

// Missing returns the fields that did not resolve, in the given order.
func Missing(mapping models.ColumnMapping, fields []string) []string {
	var missing []string
	for _, f := range fields {
		if !mapping.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// stripPunctuation lowercases, removes diacritics and drops everything that
// is not a letter or digit.
func stripPunctuation(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
