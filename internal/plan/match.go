package plan

import (
	"slices"
	"strings"

	"go.uber.org/zap"
)

// DefaultThreshold is the minimum score for a candidate to claim a menu item.
const DefaultThreshold = 80

// Scorer rates the similarity of two strings from 0 to 100.
type Scorer func(a, b string) float64

// Matcher reconciles OCR candidates against the canonical menu.
type Matcher struct {
	Threshold float64
	Scorer    Scorer
}

// NewMatcher returns a WRatio matcher. A non-positive threshold falls back
// to DefaultThreshold.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{Threshold: threshold, Scorer: WRatio}
}

// Best returns the highest scoring menu entry for candidate. Ties go to the
// entry listed first. ok is false when menu is empty.
func (m *Matcher) Best(candidate string, menu []string) (name string, score float64, ok bool) {
	score = -1
	for _, item := range menu {
		if s := m.Scorer(candidate, item); s > score {
			name, score, ok = item, s, true
		}
	}
	return name, score, ok
}

// Match maps each candidate, in order, to its best menu entry. A candidate
// is dropped when its best score is under the threshold or that entry was
// already claimed by an earlier candidate. With an empty menu the candidates
// are returned unchanged.
func (m *Matcher) Match(candidates, menu []string) []string {
	if len(candidates) == 0 {
		return []string{}
	}
	if len(menu) == 0 {
		return slices.Clone(candidates)
	}

	log := zap.L().With(zap.String("component", "plan.matcher"))
	claimed := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))

	for _, c := range candidates {
		name, score, ok := m.Best(c, menu)
		if !ok || score < m.Threshold {
			log.Debug("plan: candidate below threshold",
				zap.String("candidate", c),
				zap.String("best", name),
				zap.Float64("score", score),
			)
			continue
		}
		key := strings.ToLower(name)
		if _, taken := claimed[key]; taken {
			log.Debug("plan: menu item already claimed",
				zap.String("candidate", c),
				zap.String("item", name),
			)
			continue
		}
		claimed[key] = struct{}{}
		out = append(out, name)
	}
	return out
}
