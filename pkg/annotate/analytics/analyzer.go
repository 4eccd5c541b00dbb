package analytics

import (
	"sort"

	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/classify"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/ingest"
)

// Analyzer aggregates agreement statistics across classified annotations.
type Analyzer struct {
	domains map[string]*DomainStats
	labels  map[string]int64
	pairs   map[pair]*PairAgreement
}

type pair struct {
	A ingest.AnnotatorID
	B ingest.AnnotatorID
}

func newPair(a, b ingest.AnnotatorID) pair {
	if ingest.Less(b, a) {
		a, b = b, a
	}
	return pair{A: a, B: b}
}

// NewAnalyzer creates an empty analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		domains: make(map[string]*DomainStats),
		labels:  make(map[string]int64),
		pairs:   make(map[pair]*PairAgreement),
	}
}

// Process consumes one classified annotation of a document in domain.
func (a *Analyzer) Process(domain string, out classify.Outcome) {
	ds, ok := a.domains[domain]
	if !ok {
		ds = &DomainStats{}
		a.domains[domain] = ds
	}
	ds.Reconciled++
	switch {
	case out.Class == classify.NonDivergent:
		ds.NonDivergent++
	case out.Majority:
		ds.Divergent++
		ds.Majority++
	case out.TieBreak:
		ds.Divergent++
		ds.TieBreak++
	default:
		ds.Divergent++
		ds.Unresolved++
	}

	if label, ok := out.Label(); ok {
		a.labels[label]++
	}

	// Pairwise agreement over every two annotators sharing this annotation
	contribs := out.Annotation.Contributions
	for i := 0; i < len(contribs); i++ {
		for j := i + 1; j < len(contribs); j++ {
			p := newPair(contribs[i].Annotator, contribs[j].Annotator)
			pa, ok := a.pairs[p]
			if !ok {
				pa = &PairAgreement{A: p.A, B: p.B}
				a.pairs[p] = pa
			}
			pa.Shared++
			if contribs[i].Label == contribs[j].Label {
				pa.Agreed++
			}
		}
	}
}

// DomainStats counts outcomes for one domain.
type DomainStats struct {
	Reconciled   int64 `json:"reconciled"`
	NonDivergent int64 `json:"non_divergent"`
	Divergent    int64 `json:"divergent"`
	Majority     int64 `json:"majority"`
	TieBreak     int64 `json:"tie_break"`
	Unresolved   int64 `json:"unresolved"`
}

// CompleteAgreement is the share of annotations all annotators agreed on.
func (d DomainStats) CompleteAgreement() float64 {
	if d.Reconciled == 0 {
		return 0
	}
	return float64(d.NonDivergent) / float64(d.Reconciled)
}

// PairAgreement counts how often two annotators labelled a shared annotation alike.
type PairAgreement struct {
	A      ingest.AnnotatorID `json:"a"`
	B      ingest.AnnotatorID `json:"b"`
	Shared int64              `json:"shared"`
	Agreed int64              `json:"agreed"`
}

// Rate is Agreed/Shared, or 0 when the pair never co-annotated.
func (p PairAgreement) Rate() float64 {
	if p.Shared == 0 {
		return 0
	}
	return float64(p.Agreed) / float64(p.Shared)
}

// Stats exposes the aggregated counts.
type Stats struct {
	Domains map[string]DomainStats `json:"domains"`
	Labels  map[string]int64       `json:"labels"`
	Pairs   []PairAgreement        `json:"pairs"`
}

// Snapshot returns a copy of the accumulated statistics. Pairs are ordered by
// annotator id.
func (a *Analyzer) Snapshot() Stats {
	domains := make(map[string]DomainStats, len(a.domains))
	for name, ds := range a.domains {
		domains[name] = *ds
	}
	labels := make(map[string]int64, len(a.labels))
	for l, n := range a.labels {
		labels[l] = n
	}
	pairs := make([]PairAgreement, 0, len(a.pairs))
	for _, pa := range a.pairs {
		pairs = append(pairs, *pa)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return ingest.Less(pairs[i].A, pairs[j].A)
		}
		return ingest.Less(pairs[i].B, pairs[j].B)
	})
	return Stats{Domains: domains, Labels: labels, Pairs: pairs}
}

// DomainNames returns the domains in lexical order.
func (s Stats) DomainNames() []string {
	names := make([]string, 0, len(s.Domains))
	for name := range s.Domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
