package annotate

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/config"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/ingest"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/internalerr"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/report"
)

func annotator(id string, spans ...ingest.Span) ingest.AnnotatorResult {
	regions := make([]ingest.Region, len(spans))
	for i, s := range spans {
		regions[i] = ingest.Region{Value: s}
	}
	return ingest.AnnotatorResult{CompletedBy: ingest.AnnotatorID(id), Result: regions}
}

func document(id, domain, request string, results ...ingest.AnnotatorResult) ingest.Document {
	return ingest.Document{
		ID:          ingest.DocumentID(id),
		Data:        ingest.Data{Request: request, Domain: domain},
		Annotations: append([]ingest.AnnotatorResult{}, results...),
	}
}

const request = "I read a book about a lighthouse keeper on an island."

func TestReconcileAgreeingAnnotators(t *testing.T) {
	docs := []ingest.Document{document("1", "book", request,
		annotator("1", ingest.NewSpan(10, 20, "lighthouse", "X")),
		annotator("2", ingest.NewSpan(12, 22, "ghthouse k", "X")),
	)}

	res, err := New(config.DefaultPolicy()).Reconcile(docs)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.NonDivergent) != 1 || len(res.Divergent) != 0 {
		t.Fatalf("expected one non-divergent record, got %d/%d", len(res.NonDivergent), len(res.Divergent))
	}

	var tsv bytes.Buffer
	if err := report.WriteTSV(&tsv, res.Divergent); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(tsv.String(), "\n"); lines != 1 {
		t.Errorf("agreeing annotations must not reach the divergence table, got %q", tsv.String())
	}

	entries := report.Entries(res.ByDocument["1"])
	if len(entries) != 1 || entries[0].Label != "X" || entries[0].Start != 10 {
		t.Errorf("expected one listed entry with label X, got %+v", entries)
	}
}

func TestReconcileDivergentGameWithoutTieBreaker(t *testing.T) {
	docs := []ingest.Document{document("g", "game", request,
		annotator("1", ingest.NewSpan(10, 20, "lighthouse", "X")),
		annotator("2", ingest.NewSpan(12, 22, "ghthouse k", "Y")),
	)}

	res, err := New(config.DefaultPolicy()).Reconcile(docs)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Divergent) != 1 || len(res.Majority) != 0 {
		t.Fatalf("expected one divergent record without majority, got %+v", res)
	}
	out := res.Divergent[0]
	if out.HasFinal {
		t.Errorf("annotator 6 is absent, final label must be unset: %+v", out)
	}
	if len(res.Unresolved()) != 1 {
		t.Errorf("expected the record to be unresolved")
	}

	var tsv bytes.Buffer
	if err := report.WriteTSV(&tsv, res.Divergent); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(tsv.String(), "\n"); lines != 2 {
		t.Errorf("expected header and one row, got %q", tsv.String())
	}
	if entries := report.Entries(res.ByDocument["g"]); len(entries) != 0 {
		t.Errorf("unresolved record must not be listed, got %+v", entries)
	}

	summary, err := res.Summary()
	if err != nil {
		t.Fatal(err)
	}
	if summary.Total != 1 || summary.Divergent != 1 || summary.CompleteAgreement != 0 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestReconcileMajorityAndTieBreak(t *testing.T) {
	docs := []ingest.Document{
		document("m", "movie", request,
			annotator("1", ingest.NewSpan(0, 6, "I read", "A")),
			annotator("2", ingest.NewSpan(1, 6, " read", "A")),
			annotator("4", ingest.NewSpan(0, 5, "I rea", "B")),
		),
		document("b", "book", request,
			annotator("1", ingest.NewSpan(9, 13, "book", "A")),
			annotator("2", ingest.NewSpan(9, 13, "book", "B")),
			annotator("3", ingest.NewSpan(8, 13, " book", "C")),
		),
	}

	res, err := New(config.DefaultPolicy()).Reconcile(docs)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Divergent) != 2 || len(res.Majority) != 1 {
		t.Fatalf("expected 2 divergent, 1 majority; got %d, %d", len(res.Divergent), len(res.Majority))
	}
	if res.Majority[0].FinalLabel != "A" {
		t.Errorf("majority label should be A, got %q", res.Majority[0].FinalLabel)
	}
	book := res.ByDocument["b"][0]
	if !book.TieBreak || book.FinalLabel != "C" {
		t.Errorf("book record should defer to annotator 3, got %+v", book)
	}

	dom := res.Stats.Domains["book"]
	if dom.TieBreak != 1 || dom.Reconciled != 1 {
		t.Errorf("unexpected book stats %+v", dom)
	}

	summary, err := res.Summary()
	if err != nil {
		t.Fatal(err)
	}
	if summary.MajorityAgreement != 0.5 {
		t.Errorf("expected majority agreement 0.5, got %f", summary.MajorityAgreement)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	docs, err := ingest.LoadFile(filepath.Join("ingest", "testdata", "export.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	docs = append(docs, document("x", "movie", request,
		annotator("4", ingest.NewSpan(22, 32, "lighthouse", "place")),
		annotator("1", ingest.NewSpan(22, 39, "lighthouse keeper", "person")),
		annotator("2", ingest.NewSpan(20, 32, "a lighthouse", "place")),
	))

	render := func() (string, report.Summary) {
		res, err := New(config.DefaultPolicy()).Reconcile(docs)
		if err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		var buf bytes.Buffer
		if err := report.WriteTSV(&buf, res.Divergent); err != nil {
			t.Fatal(err)
		}
		s, err := res.Summary()
		if err != nil {
			t.Fatal(err)
		}
		return buf.String(), s
	}

	tsv1, s1 := render()
	tsv2, s2 := render()
	if tsv1 != tsv2 {
		t.Errorf("tsv differs between runs:\n%s\n---\n%s", tsv1, tsv2)
	}
	if s1 != s2 {
		t.Errorf("summary differs between runs: %+v vs %+v", s1, s2)
	}
}

func TestReconcileRejectsMalformed(t *testing.T) {
	text := "x"
	bad := ingest.Span{Text: &text, Labels: []string{"A"}}
	docs := []ingest.Document{document("1", "book", request,
		annotator("1", bad),
		annotator("2", ingest.NewSpan(0, 1, "I", "A")),
	)}

	if _, err := New(config.DefaultPolicy()).Reconcile(docs); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReconcileRejectsInvalidPolicy(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.DistanceThreshold = -1
	if _, err := New(policy).Reconcile(nil); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSummaryWithoutAnnotations(t *testing.T) {
	res, err := New(config.DefaultPolicy()).Reconcile([]ingest.Document{document("e", "book", request)})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if _, err := res.Summary(); !errors.Is(err, internalerr.ErrNoAnnotations) {
		t.Errorf("expected ErrNoAnnotations, got %v", err)
	}
}
