// Package match merges spans that different annotators proposed for the same
// region of a document.
package match

import (
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/ingest"
)

// Contribution is one annotator's span inside a merged annotation.
type Contribution struct {
	Annotator ingest.AnnotatorID
	Start     int
	End       int
	Text      string
	Label     string
}

// MergedAnnotation groups spans from different annotators judged to denote the
// same underlying region. The anchor is the annotator whose span created it.
type MergedAnnotation struct {
	DocumentID    ingest.DocumentID
	Anchor        ingest.AnnotatorID
	Contributions []Contribution
}

// Get returns the contribution recorded for annotator.
func (m *MergedAnnotation) Get(annotator ingest.AnnotatorID) (Contribution, bool) {
	for _, c := range m.Contributions {
		if c.Annotator == annotator {
			return c, true
		}
	}
	return Contribution{}, false
}

// AnchorContribution returns the anchor annotator's span.
func (m *MergedAnnotation) AnchorContribution() Contribution {
	c, _ := m.Get(m.Anchor)
	return c
}

// Labels returns one label per contributing annotator, in contribution order.
func (m *MergedAnnotation) Labels() []string {
	out := make([]string, len(m.Contributions))
	for i, c := range m.Contributions {
		out[i] = c.Label
	}
	return out
}

// Annotators returns the contributing annotators in contribution order.
func (m *MergedAnnotation) Annotators() []ingest.AnnotatorID {
	out := make([]ingest.AnnotatorID, len(m.Contributions))
	for i, c := range m.Contributions {
		out[i] = c.Annotator
	}
	return out
}

// put inserts or overwrites the contribution of c.Annotator.
func (m *MergedAnnotation) put(c Contribution) {
	for i := range m.Contributions {
		if m.Contributions[i].Annotator == c.Annotator {
			m.Contributions[i] = c
			return
		}
	}
	m.Contributions = append(m.Contributions, c)
}

// Matcher pairs spans whose start and end offsets both lie within Threshold.
type Matcher struct {
	Threshold int
}

// New creates a matcher with the given distance threshold.
func New(threshold int) *Matcher {
	return &Matcher{Threshold: threshold}
}

// Within reports whether two spans denote the same region.
func (m *Matcher) Within(a, b ingest.Span) bool {
	return abs(a.StartAt()-b.StartAt()) <= m.Threshold && abs(a.EndAt()-b.EndAt()) <= m.Threshold
}

// Match returns the merged annotations of one document in creation order.
//
// Annotator pairs (A, B) are visited with A before B in the document's list.
// A matching span pair joins the first record whose offsets for A equal A's
// span; otherwise it starts a new record anchored on A.
func (m *Matcher) Match(doc ingest.Document) []*MergedAnnotation {
	st := newStore(doc.ID)
	for i := 0; i < len(doc.Annotations)-1; i++ {
		first := doc.Annotations[i]
		firstSpans := first.Spans()
		for j := i + 1; j < len(doc.Annotations); j++ {
			second := doc.Annotations[j]
			secondSpans := second.Spans()
			for _, a := range firstSpans {
				for _, b := range secondSpans {
					if !m.Within(a, b) {
						continue
					}
					ca := contribution(first.CompletedBy, a)
					cb := contribution(second.CompletedBy, b)
					if rec, ok := st.find(ca); ok {
						st.put(rec, cb)
					} else {
						st.create(ca, cb)
					}
				}
			}
		}
	}
	return st.records
}

func contribution(annotator ingest.AnnotatorID, s ingest.Span) Contribution {
	return Contribution{
		Annotator: annotator,
		Start:     s.StartAt(),
		End:       s.EndAt(),
		Text:      s.SelectedText(),
		Label:     s.Label(),
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
