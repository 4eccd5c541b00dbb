// Package annotate reconciles span annotations from several annotators into
// merged annotations with an agreed or adjudicated label.
package annotate

import (
	"fmt"

	"github.com/biirrr/llms-complex-leisure-search/internal/logging"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/analytics"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/classify"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/config"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/ingest"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/match"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/report"
)

// Reconciler is the main reconciliation facade
type Reconciler struct {
	Policy     config.Policy
	Matcher    *match.Matcher
	Classifier *classify.Classifier
}

// New creates a reconciler applying policy
func New(policy config.Policy) *Reconciler {
	return &Reconciler{
		Policy:     policy,
		Matcher:    match.New(policy.DistanceThreshold),
		Classifier: classify.New(policy),
	}
}

// Result holds the classified annotations of one run, in encounter order.
type Result struct {
	Documents    []ingest.Document
	Outcomes     []classify.Outcome
	NonDivergent []classify.Outcome
	Divergent    []classify.Outcome
	// Majority is the subset of Divergent resolved by strict majority.
	Majority   []classify.Outcome
	ByDocument map[ingest.DocumentID][]classify.Outcome
	Stats      analytics.Stats
}

// Reconcile matches and classifies the annotations of every document.
func (r *Reconciler) Reconcile(docs []ingest.Document) (*Result, error) {
	if err := r.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	if err := ingest.Validate(docs); err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	res := &Result{
		Documents:  docs,
		ByDocument: make(map[ingest.DocumentID][]classify.Outcome),
	}
	analyzer := analytics.NewAnalyzer()

	for _, doc := range docs {
		merged := r.Matcher.Match(doc)
		for _, ann := range merged {
			out := r.Classifier.Classify(ann, doc.Domain())
			res.Outcomes = append(res.Outcomes, out)
			res.ByDocument[doc.ID] = append(res.ByDocument[doc.ID], out)
			if out.Class == classify.NonDivergent {
				res.NonDivergent = append(res.NonDivergent, out)
			} else {
				res.Divergent = append(res.Divergent, out)
				if out.Majority {
					res.Majority = append(res.Majority, out)
				}
			}
			analyzer.Process(doc.Domain(), out)
		}
		logging.Debug().
			Str("document", string(doc.ID)).
			Str("domain", doc.Domain()).
			Int("annotators", len(doc.Annotations)).
			Int("merged", len(merged)).
			Msg("document reconciled")
	}
	res.Stats = analyzer.Snapshot()

	logging.Info().
		Int("documents", len(docs)).
		Int("non_divergent", len(res.NonDivergent)).
		Int("divergent", len(res.Divergent)).
		Int("majority", len(res.Majority)).
		Msg("reconciliation complete")
	return res, nil
}

// Summary computes the run-level agreement figures.
func (res *Result) Summary() (report.Summary, error) {
	return report.Summarize(len(res.NonDivergent), len(res.Divergent), len(res.Majority))
}

// Unresolved returns the divergent outcomes left without a final label.
func (res *Result) Unresolved() []classify.Outcome {
	var out []classify.Outcome
	for _, o := range res.Divergent {
		if !o.HasFinal {
			out = append(out, o)
		}
	}
	return out
}
