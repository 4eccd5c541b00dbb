package classify

import (
	"testing"

	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/config"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/ingest"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/match"
)

func merged(labels map[string]string, order ...string) *match.MergedAnnotation {
	m := &match.MergedAnnotation{DocumentID: "d", Anchor: ingest.AnnotatorID(order[0])}
	for i, id := range order {
		m.Contributions = append(m.Contributions, match.Contribution{
			Annotator: ingest.AnnotatorID(id),
			Start:     10 + i,
			End:       20 + i,
			Label:     labels[id],
		})
	}
	return m
}

func TestClassifyNonDivergent(t *testing.T) {
	c := New(config.DefaultPolicy())
	out := c.Classify(merged(map[string]string{"1": "X", "2": "X"}, "1", "2"), "book")

	if out.Class != NonDivergent {
		t.Fatalf("expected non-divergent, got %v", out.Class)
	}
	if out.HasFinal {
		t.Error("non-divergent annotations carry no final label")
	}
	if label, ok := out.Label(); !ok || label != "X" {
		t.Errorf("expected shared label X, got %q", label)
	}
}

func TestClassifyMajority(t *testing.T) {
	c := New(config.DefaultPolicy())
	out := c.Classify(merged(map[string]string{"1": "A", "2": "B", "5": "A"}, "1", "2", "5"), "book")

	if out.Class != Divergent {
		t.Fatalf("expected divergent, got %v", out.Class)
	}
	if !out.HasFinal || out.FinalLabel != "A" || !out.Majority {
		t.Errorf("expected majority final label A, got %+v", out)
	}
	if out.TieBreak {
		t.Error("majority decision should not be marked as tie-break")
	}
}

func TestClassifyNoMajorityUsesTieBreak(t *testing.T) {
	c := New(config.DefaultPolicy())
	out := c.Classify(merged(map[string]string{"1": "A", "2": "B", "3": "C"}, "1", "2", "3"), "book")

	if out.Class != Divergent {
		t.Fatalf("expected divergent, got %v", out.Class)
	}
	if !out.HasFinal || out.FinalLabel != "C" {
		t.Fatalf("book tie-break should take annotator 3's label C, got %+v", out)
	}
	if out.Majority || !out.TieBreak {
		t.Errorf("expected tie-break decision, got %+v", out)
	}
}

func TestClassifyTieBreakAnnotatorAbsent(t *testing.T) {
	c := New(config.DefaultPolicy())
	out := c.Classify(merged(map[string]string{"1": "A", "2": "B", "4": "C"}, "1", "2", "4"), "book")

	if out.Class != Divergent {
		t.Fatalf("expected divergent, got %v", out.Class)
	}
	if out.HasFinal || out.FinalLabel != "" {
		t.Errorf("final label must stay unset without annotator 3, got %+v", out)
	}
	if _, ok := out.Label(); ok {
		t.Error("Label should report no label")
	}
}

func TestClassifyEvenSplitIsNotMajority(t *testing.T) {
	c := New(config.DefaultPolicy())
	// 2 of 4 is not a strict majority; movie defers to annotator 4.
	out := c.Classify(merged(map[string]string{"1": "A", "2": "A", "3": "B", "4": "B"}, "1", "2", "3", "4"), "movie")

	if out.Majority {
		t.Fatal("an exact half must not count as majority")
	}
	if !out.HasFinal || out.FinalLabel != "B" {
		t.Errorf("movie tie-break should take annotator 4's label B, got %+v", out)
	}
}

func TestClassifyGameScenario(t *testing.T) {
	c := New(config.DefaultPolicy())
	out := c.Classify(merged(map[string]string{"1": "X", "2": "Y"}, "1", "2"), "game")

	if out.Class != Divergent {
		t.Fatalf("expected divergent, got %v", out.Class)
	}
	if len(out.Counts) != 2 || out.Counts[0].Count != 1 || out.Counts[1].Count != 1 {
		t.Errorf("expected counts X:1 Y:1, got %+v", out.Counts)
	}
	if out.HasFinal {
		t.Errorf("annotator 6 is absent; final label must be unset, got %q", out.FinalLabel)
	}
}

func TestClassifyUnknownDomain(t *testing.T) {
	c := New(config.DefaultPolicy())
	out := c.Classify(merged(map[string]string{"3": "A", "4": "B"}, "3", "4"), "podcast")
	if out.HasFinal {
		t.Errorf("unknown domain has no tie-break annotator, got %+v", out)
	}
}

func TestClassifyCompleteness(t *testing.T) {
	c := New(config.DefaultPolicy())
	cases := []struct {
		labels map[string]string
		order  []string
	}{
		{map[string]string{"1": "A", "2": "A"}, []string{"1", "2"}},
		{map[string]string{"1": "A", "2": "B"}, []string{"1", "2"}},
		{map[string]string{"1": "A", "2": "A", "3": "A"}, []string{"1", "2", "3"}},
		{map[string]string{"1": "A", "2": "B", "3": "A"}, []string{"1", "2", "3"}},
	}
	for _, tc := range cases {
		out := c.Classify(merged(tc.labels, tc.order...), "book")
		distinct := map[string]bool{}
		for _, l := range tc.labels {
			distinct[l] = true
		}
		want := NonDivergent
		if len(distinct) > 1 {
			want = Divergent
		}
		if out.Class != want {
			t.Errorf("labels %v: got %v, want %v", tc.labels, out.Class, want)
		}
	}
}

func TestCountLabelsOrder(t *testing.T) {
	got := CountLabels([]string{"B", "A", "A", "C", "B"})
	want := []LabelCount{{"B", 2}, {"A", 2}, {"C", 1}}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	}
}
