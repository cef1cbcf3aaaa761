package plan

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

const (
	tokenScale      = 0.95
	partialScale    = 0.9
	farPartialScale = 0.6
)

// indelParams prices a substitution as a deletion plus an insertion, so the
// distance counts only insertions and deletions.
var indelParams = levenshtein.NewParams().SubCost(2)

// Preprocess lowercases s, turns every non-alphanumeric rune into a space and
// collapses whitespace.
func Preprocess(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// WRatio scores the similarity of a and b from 0 to 100, picking the best of
// plain, partial and token-based ratios weighted by how different the two
// lengths are. Inputs are preprocessed first.
func WRatio(a, b string) float64 {
	a, b = Preprocess(a), Preprocess(b)
	if a == "" || b == "" {
		return 0
	}

	la, lb := float64(runeLen(a)), float64(runeLen(b))
	lenRatio := la / lb
	if lb > la {
		lenRatio = lb / la
	}

	best := ratio(a, b)
	if lenRatio < 1.5 {
		return max(best, max(tokenSortRatio(a, b), tokenSetRatio(a, b))*tokenScale)
	}

	scale := partialScale
	if lenRatio >= 8 {
		scale = farPartialScale
	}
	best = max(best, partialRatio(a, b)*scale)
	return max(best, partialTokenRatio(a, b)*tokenScale*scale)
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// normalized converts an indel distance over lensum runes into a 0..100 score.
func normalized(dist, lensum int) float64 {
	if lensum == 0 {
		return 100
	}
	return 100 * (1 - float64(dist)/float64(lensum))
}

// ratio is the normalized indel similarity of a and b.
func ratio(a, b string) float64 {
	return normalized(levenshtein.Distance(a, b, indelParams), runeLen(a)+runeLen(b))
}

// partialRatio is the best ratio between the shorter string and any
// equally long window of the longer one, including windows clipped at
// either end.
func partialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	best := partialShort(ra, rb)
	if len(ra) == len(rb) {
		best = max(best, partialShort(rb, ra))
	}
	return best
}

func partialShort(short, long []rune) float64 {
	n, m := len(short), len(long)
	if n == 0 {
		if m == 0 {
			return 100
		}
		return 0
	}

	inShort := make(map[rune]struct{}, n)
	for _, r := range short {
		inShort[r] = struct{}{}
	}
	s := string(short)
	best := 0.0
	try := func(window []rune) bool {
		if score := ratio(s, string(window)); score > best {
			best = score
		}
		return best == 100
	}

	for i := 1; i < n && i <= m; i++ {
		if _, ok := inShort[long[i-1]]; ok && try(long[:i]) {
			return best
		}
	}
	for i := 0; i <= m-n; i++ {
		if _, ok := inShort[long[i+n-1]]; ok && try(long[i:i+n]) {
			return best
		}
	}
	for i := max(m-n+1, 0); i < m; i++ {
		if _, ok := inShort[long[i]]; ok && try(long[i:]) {
			return best
		}
	}
	return best
}

func sortedTokens(s string) []string {
	toks := strings.Fields(s)
	sort.Strings(toks)
	return toks
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(s) {
		set[t] = struct{}{}
	}
	return set
}

// setParts splits two token sets into their sorted intersection and sorted
// one-sided differences.
func setParts(a, b map[string]struct{}) (sect, onlyA, onlyB []string) {
	for t := range a {
		if _, ok := b[t]; ok {
			sect = append(sect, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range b {
		if _, ok := a[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(sect)
	sort.Strings(onlyA)
	sort.Strings(onlyB)
	return sect, onlyA, onlyB
}

func tokenSortRatio(a, b string) float64 {
	return ratio(strings.Join(sortedTokens(a), " "), strings.Join(sortedTokens(b), " "))
}

// tokenSetRatio compares the shared tokens against the shared tokens plus
// each side's leftovers, and the leftovers against each other.
func tokenSetRatio(a, b string) float64 {
	setA, setB := tokenSet(a), tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	sect, onlyA, onlyB := setParts(setA, setB)
	if len(sect) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	diffA, diffB := strings.Join(onlyA, " "), strings.Join(onlyB, " ")
	lenA, lenB := runeLen(diffA), runeLen(diffB)
	sectLen := runeLen(strings.Join(sect, " "))
	sep := 0
	if sectLen > 0 {
		sep = 1
	}
	sectALen := sectLen + sep + lenA
	sectBLen := sectLen + sep + lenB

	best := normalized(levenshtein.Distance(diffA, diffB, indelParams), sectALen+sectBLen)
	if len(sect) == 0 {
		return best
	}
	best = max(best, normalized(sep+lenA, sectLen+sectALen))
	best = max(best, normalized(sep+lenB, sectLen+sectBLen))
	return best
}

// partialTokenRatio is 100 when any token is shared, otherwise the partial
// ratio of the sorted token strings.
func partialTokenRatio(a, b string) float64 {
	setA, setB := tokenSet(a), tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	sect, onlyA, onlyB := setParts(setA, setB)
	if len(sect) > 0 {
		return 100
	}

	best := partialRatio(strings.Join(sortedTokens(a), " "), strings.Join(sortedTokens(b), " "))
	if len(onlyA) == len(strings.Fields(a)) && len(onlyB) == len(strings.Fields(b)) {
		return best
	}
	return max(best, partialRatio(strings.Join(onlyA, " "), strings.Join(onlyB, " ")))
}
