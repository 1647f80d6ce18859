package validate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules is the locale-specific heuristic table the scorer runs on. The exact
// membership is a product decision, so it ships as data: compiled defaults
// below, overridable from a YAML file.
type Rules struct {
	// MarkerPhrases strongly indicate the back side of a national identity
	// document when present in the scanned text.
	MarkerPhrases []string `yaml:"marker_phrases"`
	// AuthorityKeywords are substrings expected inside a genuine
	// issuing-authority name.
	AuthorityKeywords []string `yaml:"authority_keywords"`
	// PeriodPatterns are anchored regular expressions a valid-period value
	// may match. The token 长期 means indefinite.
	PeriodPatterns []string `yaml:"period_patterns"`
	// GenderLabels are the accepted localized gender values.
	GenderLabels []string `yaml:"gender_labels"`
}

// DefaultRules returns the rule table tuned against production scans.
func DefaultRules() Rules {
	return Rules{
		MarkerPhrases: []string{
			"中华人民共和国",
			"居民身份证",
		},
		AuthorityKeywords: []string{
			"公安局",
			"公安分局",
		},
		PeriodPatterns: []string{
			`^\d{4}\.\d{1,2}\.\d{1,2}-\d{4}\.\d{1,2}\.\d{1,2}$`,
			`^\d{4}\.\d{1,2}\.\d{1,2}-长期$`,
			`^\d{8}-\d{8}$`,
			`^\d{8}-长期$`,
			`^长期$`,
		},
		GenderLabels: []string{"男", "女", "male", "female"},
	}
}

// LoadRules reads a YAML rule file. Fields left empty in the file fall back
// to the defaults, so an override file may list only what it changes.
func LoadRules(path string) (Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}
	var r Rules
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w", err)
	}
	def := DefaultRules()
	if len(r.MarkerPhrases) == 0 {
		r.MarkerPhrases = def.MarkerPhrases
	}
	if len(r.AuthorityKeywords) == 0 {
		r.AuthorityKeywords = def.AuthorityKeywords
	}
	if len(r.PeriodPatterns) == 0 {
		r.PeriodPatterns = def.PeriodPatterns
	}
	if len(r.GenderLabels) == 0 {
		r.GenderLabels = def.GenderLabels
	}
	return r, nil
}
