// Package validate holds the pure scoring rules that decide whether an
// extraction result is a usable front or back side. No I/O, no clock: the
// same input always yields the same verdict.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"idmerge/internal/recognize"
)

// Pass thresholds.
const (
	FrontPassScore       = 60
	BackKeywordScore     = 80
	BackPassWithKeyword  = 80
	BackPassWithoutMatch = 70
)

// Verdict is the scoring outcome for one extraction result. Reasons list one
// line per field examined, in a stable order, so operators can debug false
// classifications from logs alone.
type Verdict struct {
	Valid   bool     `json:"valid"`
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

var reIDNumber = regexp.MustCompile(`^[0-9]{17}[0-9Xx]$`)

// Validator scores extraction results against a rule table.
type Validator struct {
	rules     Rules
	periodRes []*regexp.Regexp
	genders   map[string]struct{}
}

func NewValidator(rules Rules) (*Validator, error) {
	v := &Validator{
		rules:   rules,
		genders: make(map[string]struct{}, len(rules.GenderLabels)),
	}
	for _, p := range rules.PeriodPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile period pattern %q: %w", p, err)
		}
		v.periodRes = append(v.periodRes, re)
	}
	for _, g := range rules.GenderLabels {
		v.genders[strings.ToLower(g)] = struct{}{}
	}
	return v, nil
}

// MarkerHits returns the marker phrases present in text, sorted.
func (v *Validator) MarkerHits(text string) []string {
	var hits []string
	for _, m := range v.rules.MarkerPhrases {
		if m != "" && strings.Contains(text, m) {
			hits = append(hits, m)
		}
	}
	sort.Strings(hits)
	return hits
}

// ScoreFront scores a front-side extraction. Max 100, pass at >= 60.
func (v *Validator) ScoreFront(f recognize.FrontFields) Verdict {
	var score int
	reasons := make([]string, 0, 6)

	name := strings.TrimSpace(f.Name)
	if utf8.RuneCountInString(name) >= 2 {
		score += 30
		reasons = append(reasons, "name: pass (+30)")
	} else {
		reasons = append(reasons, "name: fail (missing or too short)")
	}

	id := stripSpaces(f.IDNumber)
	if reIDNumber.MatchString(id) {
		score += 30
		reasons = append(reasons, "id_number: pass (+30)")
	} else {
		reasons = append(reasons, "id_number: fail (not 17 digits + checksum)")
	}

	if _, ok := v.genders[strings.ToLower(strings.TrimSpace(f.Gender))]; ok {
		score += 15
		reasons = append(reasons, "gender: pass (+15)")
	} else {
		reasons = append(reasons, "gender: fail (unknown label)")
	}

	if strings.TrimSpace(f.Nation) != "" {
		score += 10
		reasons = append(reasons, "nation: pass (+10)")
	} else {
		reasons = append(reasons, "nation: fail (empty)")
	}

	if strings.TrimSpace(f.Birthday) != "" {
		score += 10
		reasons = append(reasons, "birthday: pass (+10)")
	} else {
		reasons = append(reasons, "birthday: fail (empty)")
	}

	if strings.TrimSpace(f.Address) != "" {
		score += 5
		reasons = append(reasons, "address: pass (+5)")
	} else {
		reasons = append(reasons, "address: fail (empty)")
	}

	return Verdict{Valid: score >= FrontPassScore, Score: score, Reasons: reasons}
}

// ScoreBack scores a back-side extraction. The keyword tier alone can carry
// validity; the supplementary tier always adds on top so the keyword-less
// path can still pass at >= 70.
func (v *Validator) ScoreBack(b recognize.BackFields) Verdict {
	var score int
	reasons := make([]string, 0, 3)

	matched := v.markerMatches(b.KeywordHits)
	if len(matched) > 0 {
		score += BackKeywordScore
		reasons = append(reasons, fmt.Sprintf("keywords: pass (+%d) matched=[%s]", BackKeywordScore, strings.Join(matched, " ")))
	} else {
		reasons = append(reasons, "keywords: fail (no marker phrase)")
	}

	authority := strings.TrimSpace(b.IssueAuthority)
	switch {
	case authority == "":
		reasons = append(reasons, "issue_authority: fail (empty)")
	case v.authorityMatches(authority):
		score += 30
		reasons = append(reasons, "issue_authority: pass (+30)")
	default:
		score += 10
		reasons = append(reasons, "issue_authority: partial (+10, no authority keyword)")
	}

	period := strings.TrimSpace(b.ValidPeriod)
	switch {
	case period == "":
		reasons = append(reasons, "valid_period: fail (empty)")
	case v.periodMatches(period):
		score += 20
		reasons = append(reasons, "valid_period: pass (+20)")
	default:
		score += 10
		reasons = append(reasons, "valid_period: partial (+10, non-conforming)")
	}

	if score > 100 {
		score = 100
	}

	threshold := BackPassWithoutMatch
	if len(matched) > 0 {
		threshold = BackPassWithKeyword
	}
	return Verdict{Valid: score >= threshold, Score: score, Reasons: reasons}
}

func (v *Validator) markerMatches(hits []string) []string {
	if len(hits) == 0 {
		return nil
	}
	markers := make(map[string]struct{}, len(v.rules.MarkerPhrases))
	for _, m := range v.rules.MarkerPhrases {
		markers[m] = struct{}{}
	}
	var matched []string
	for _, h := range hits {
		if _, ok := markers[h]; ok {
			matched = append(matched, h)
		}
	}
	sort.Strings(matched)
	return matched
}

func (v *Validator) authorityMatches(authority string) bool {
	for _, kw := range v.rules.AuthorityKeywords {
		if kw != "" && strings.Contains(authority, kw) {
			return true
		}
	}
	return false
}

func (v *Validator) periodMatches(period string) bool {
	for _, re := range v.periodRes {
		if re.MatchString(period) {
			return true
		}
	}
	return false
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}
