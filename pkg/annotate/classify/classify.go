// Package classify decides whether the annotators of a merged annotation agree
// and adjudicates a final label when they do not.
package classify

import (
	"sort"

	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/config"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/match"
)

// Class is the agreement class of a merged annotation.
type Class int

const (
	NonDivergent Class = iota
	Divergent
)

func (c Class) String() string {
	if c == Divergent {
		return "divergent"
	}
	return "non-divergent"
}

// LabelCount is the number of contributing annotators that chose Label.
type LabelCount struct {
	Label string
	Count int
}

// Outcome is the classification of one merged annotation.
type Outcome struct {
	Annotation *match.MergedAnnotation
	Class      Class
	// Counts is ordered by count, ties by first appearance in contribution order.
	Counts []LabelCount
	// FinalLabel is set only for divergent annotations that were adjudicated.
	FinalLabel string
	HasFinal   bool
	// Majority marks a final label won by strict majority, TieBreak one taken
	// from the domain's adjudicating annotator.
	Majority bool
	TieBreak bool
}

// Label returns the label reported for the annotation: the shared label when
// annotators agree, the final label when adjudicated, "" otherwise.
func (o Outcome) Label() (string, bool) {
	if o.Class == NonDivergent {
		return o.Counts[0].Label, true
	}
	return o.FinalLabel, o.HasFinal
}

// Classifier applies the majority and tie-break policy.
type Classifier struct {
	Policy config.Policy
}

// New creates a classifier for policy.
func New(policy config.Policy) *Classifier {
	return &Classifier{Policy: policy}
}

// Classify classifies ann, a merged annotation of a document in domain.
func (c *Classifier) Classify(ann *match.MergedAnnotation, domain string) Outcome {
	out := Outcome{
		Annotation: ann,
		Counts:     CountLabels(ann.Labels()),
	}
	if len(out.Counts) <= 1 {
		out.Class = NonDivergent
		return out
	}

	out.Class = Divergent
	top := out.Counts[0]
	if 2*top.Count > len(ann.Contributions) {
		out.FinalLabel = top.Label
		out.HasFinal = true
		out.Majority = true
		return out
	}

	senior, ok := c.Policy.TieBreakAnnotator(domain)
	if !ok {
		return out
	}
	if contrib, found := ann.Get(senior); found {
		out.FinalLabel = contrib.Label
		out.HasFinal = true
		out.TieBreak = true
	}
	return out
}

// CountLabels counts label frequencies, most frequent first. Equal counts keep
// the order in which labels first appear.
func CountLabels(labels []string) []LabelCount {
	index := make(map[string]int, len(labels))
	var counts []LabelCount
	for _, l := range labels {
		if i, ok := index[l]; ok {
			counts[i].Count++
			continue
		}
		index[l] = len(counts)
		counts = append(counts, LabelCount{Label: l, Count: 1})
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	return counts
}
