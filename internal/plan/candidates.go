package plan

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	bulletReplacer = strings.NewReplacer("•", " ", "·", " ", "—", "-")
	lineBreaks     = regexp.MustCompile(`\r\n|\r|\n`)
	separators     = regexp.MustCompile(`[,|/]+`)
)

// minLineRunes is the shortest normalized line kept as a candidate source.
const minLineRunes = 2

// normalizeLine replaces bullets with spaces, em-dashes with hyphens, and
// collapses whitespace runs.
func normalizeLine(s string) string {
	s = bulletReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// ExtractCandidates splits OCR text into candidate item names. Lines shorter
// than two characters are dropped, lines are split on commas, pipes and
// slashes, and the result is deduplicated case-insensitively keeping the
// first spelling seen.
func ExtractCandidates(text string) []string {
	out := []string{}
	seen := make(map[string]struct{})

	for _, line := range lineBreaks.Split(text, -1) {
		line = normalizeLine(line)
		if utf8.RuneCountInString(line) < minLineRunes {
			continue
		}
		for _, part := range separators.Split(line, -1) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			key := strings.ToLower(part)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}
