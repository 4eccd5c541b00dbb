package store

import (
	"testing"
	"time"

	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/classify"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/config"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/ingest"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/match"
)

func merged(docID string, labels ...string) *match.MergedAnnotation {
	m := &match.MergedAnnotation{DocumentID: ingest.DocumentID(docID), Anchor: "1"}
	for i, l := range labels {
		m.Contributions = append(m.Contributions, match.Contribution{
			Annotator: ingest.AnnotatorID(string(rune('1' + i))),
			Start:     i,
			End:       i + 4,
			Text:      "text",
			Label:     l,
		})
	}
	return m
}

func TestNewRunCounts(t *testing.T) {
	c := classify.New(config.DefaultPolicy())
	outcomes := []classify.Outcome{
		c.Classify(merged("a", "X", "X"), "book"),
		c.Classify(merged("a", "X", "X", "Y"), "book"),
		c.Classify(merged("b", "X", "Y"), "game"),
	}
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	r := NewRun("run-1", started, "in.json", outcomes)
	if r.Total != 3 || r.NonDivergent != 1 || r.Divergent != 2 || r.Majority != 1 {
		t.Errorf("unexpected counts %+v", r)
	}
	if r.StartedAt.Location() != time.UTC {
		t.Errorf("start time should be stored in UTC, got %v", r.StartedAt)
	}
	if len(r.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(r.Records))
	}

	second := r.Records[1]
	if second.Seq != 1 || second.Class != "divergent" || !second.HasFinal || second.FinalLabel != "X" {
		t.Errorf("unexpected record %+v", second)
	}
	if len(second.Contributions) != 3 || second.Contributions[2].Annotator != "3" || second.Contributions[2].Label != "Y" {
		t.Errorf("unexpected contributions %+v", second.Contributions)
	}
	if r.Records[2].HasFinal {
		t.Errorf("game record without annotator 6 has no final label: %+v", r.Records[2])
	}
}

func TestIDsAreOrdered(t *testing.T) {
	ids := NewIDs()
	now := time.Now()
	prev := ids.New(now)
	for i := 0; i < 100; i++ {
		next := ids.New(now)
		if next <= prev {
			t.Fatalf("ids must increase within the same millisecond: %s <= %s", next, prev)
		}
		prev = next
	}
	later := ids.New(now.Add(time.Second))
	if later <= prev {
		t.Errorf("later timestamp should sort after earlier ids")
	}
}
