package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/analytics"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/internalerr"
)

// Summary holds the run-level agreement counts.
type Summary struct {
	Total             int     `json:"total"`
	NonDivergent      int     `json:"non_divergent"`
	Divergent         int     `json:"divergent"`
	Majority          int     `json:"majority"`
	CompleteAgreement float64 `json:"complete_agreement"`
	MajorityAgreement float64 `json:"majority_agreement"`
}

// Summarize computes the agreement fractions. A run without any reconciled
// annotation has no defined fractions and yields ErrNoAnnotations.
func Summarize(nonDivergent, divergent, majority int) (Summary, error) {
	total := nonDivergent + divergent
	if total == 0 {
		return Summary{}, fmt.Errorf("summarize: %w", internalerr.ErrNoAnnotations)
	}
	return Summary{
		Total:             total,
		NonDivergent:      nonDivergent,
		Divergent:         divergent,
		Majority:          majority,
		CompleteAgreement: float64(nonDivergent) / float64(total),
		MajorityAgreement: float64(nonDivergent+majority) / float64(total),
	}, nil
}

// WriteText prints the summary as plain text, one figure per line.
func (s Summary) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"Total: %d\nNon-divergent: %d\nDivergent: %d\nMajority: %d\nComplete agreement: %s\nMajority agreement: %s\n",
		s.Total, s.NonDivergent, s.Divergent, s.Majority,
		FormatFraction(s.CompleteAgreement), FormatFraction(s.MajorityAgreement))
	return err
}

// FormatFraction prints the shortest exact representation, keeping a decimal
// point for whole numbers ("1.0", "0.5").
func FormatFraction(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

type summaryDocument struct {
	Summary   Summary               `json:"summary"`
	Domains   map[string]domainJSON `json:"domains"`
	Labels    map[string]int64      `json:"labels"`
	Agreement []pairJSON            `json:"pair_agreement"`
}

type domainJSON struct {
	analytics.DomainStats
	CompleteAgreement float64 `json:"complete_agreement"`
}

type pairJSON struct {
	A      string  `json:"a"`
	B      string  `json:"b"`
	Shared int64   `json:"shared"`
	Agreed int64   `json:"agreed"`
	Rate   float64 `json:"rate"`
}

// WriteSummaryJSON writes the summary together with the agreement analytics.
func WriteSummaryJSON(w io.Writer, s Summary, stats analytics.Stats) error {
	doc := summaryDocument{
		Summary:   s,
		Domains:   make(map[string]domainJSON, len(stats.Domains)),
		Labels:    stats.Labels,
		Agreement: make([]pairJSON, 0, len(stats.Pairs)),
	}
	for _, name := range stats.DomainNames() {
		ds := stats.Domains[name]
		doc.Domains[name] = domainJSON{DomainStats: ds, CompleteAgreement: ds.CompleteAgreement()}
	}
	for _, p := range stats.Pairs {
		doc.Agreement = append(doc.Agreement, pairJSON{
			A:      string(p.A),
			B:      string(p.B),
			Shared: p.Shared,
			Agreed: p.Agreed,
			Rate:   p.Rate(),
		})
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	out = append(out, '\n')
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
