package match

import "github.com/biirrr/llms-complex-leisure-search/pkg/annotate/ingest"

type spanKey struct {
	annotator ingest.AnnotatorID
	start     int
	end       int
}

// store holds the merged annotations of one document. The index maps an
// annotator's recorded offsets to record positions in creation order; entries
// go stale when a contribution is overwritten, so lookups re-check the record.
type store struct {
	docID   ingest.DocumentID
	records []*MergedAnnotation
	index   map[spanKey][]int
}

func newStore(docID ingest.DocumentID) *store {
	return &store{
		docID: docID,
		index: make(map[spanKey][]int),
	}
}

// find returns the earliest record whose offsets for c.Annotator equal c's.
func (s *store) find(c Contribution) (int, bool) {
	for _, pos := range s.index[keyOf(c)] {
		got, ok := s.records[pos].Get(c.Annotator)
		if ok && got.Start == c.Start && got.End == c.End {
			return pos, true
		}
	}
	return 0, false
}

func (s *store) create(anchor, other Contribution) {
	pos := len(s.records)
	s.records = append(s.records, &MergedAnnotation{
		DocumentID: s.docID,
		Anchor:     anchor.Annotator,
	})
	s.put(pos, anchor)
	s.put(pos, other)
}

func (s *store) put(pos int, c Contribution) {
	s.records[pos].put(c)
	key := keyOf(c)
	for _, existing := range s.index[key] {
		if existing == pos {
			return
		}
	}
	// A record can return to a key after an overwrite; keep creation order.
	s.index[key] = insertSorted(s.index[key], pos)
}

func keyOf(c Contribution) spanKey {
	return spanKey{annotator: c.Annotator, start: c.Start, end: c.End}
}

func insertSorted(positions []int, pos int) []int {
	i := len(positions)
	for i > 0 && positions[i-1] > pos {
		i--
	}
	positions = append(positions, 0)
	copy(positions[i+1:], positions[i:])
	positions[i] = pos
	return positions
}
