package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/ingest"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/internalerr"
)

// DefaultDistanceThreshold is the maximum start and end offset difference for
// two spans to count as the same region.
const DefaultDistanceThreshold = 5

// Policy configures span matching and label adjudication.
type Policy struct {
	DistanceThreshold int `yaml:"distance_threshold"`
	// TieBreak maps a domain to the annotator whose label wins when no label
	// holds a strict majority.
	TieBreak map[string]string `yaml:"tie_break"`
}

// DefaultPolicy returns the policy used for the leisure-search annotation study.
func DefaultPolicy() Policy {
	return Policy{
		DistanceThreshold: DefaultDistanceThreshold,
		TieBreak: map[string]string{
			"book":  "3",
			"game":  "6",
			"movie": "4",
		},
	}
}

// TieBreakAnnotator returns the adjudicating annotator for domain, if any.
func (p Policy) TieBreakAnnotator(domain string) (ingest.AnnotatorID, bool) {
	id, ok := p.TieBreak[domain]
	if !ok || strings.TrimSpace(id) == "" {
		return "", false
	}
	return ingest.AnnotatorID(id), true
}

// Validate checks the policy values.
func (p Policy) Validate() error {
	if p.DistanceThreshold < 0 {
		return fmt.Errorf("%w: distance_threshold must be >= 0, got %d", internalerr.ErrInvalidConfig, p.DistanceThreshold)
	}
	return nil
}

// LoadPolicy loads a policy from a YAML file. Fields missing from the file keep
// their defaults; a tie_break table in the file replaces the default table.
//
// Expected format:
//
//	distance_threshold: 5
//	tie_break:
//	  book: "3"
//	  game: "6"
//	  movie: "4"
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, err
	}

	var raw struct {
		DistanceThreshold *int              `yaml:"distance_threshold"`
		TieBreak          map[string]string `yaml:"tie_break"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Policy{}, fmt.Errorf("%w: parse policy %s: %v", internalerr.ErrInvalidConfig, path, err)
	}

	policy := DefaultPolicy()
	if raw.DistanceThreshold != nil {
		policy.DistanceThreshold = *raw.DistanceThreshold
	}
	if raw.TieBreak != nil {
		policy.TieBreak = raw.TieBreak
	}
	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}
