package store

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/classify"
)

// Store is the archive of finished reconciliation runs
type Store interface {
	Close() error

	// SaveRun appends a run with its records. Run IDs are unique.
	SaveRun(ctx context.Context, r Run) error
	// GetRun loads a run with its records; unknown IDs yield internalerr.ErrNotFound.
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns returns the most recent runs first, without records.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Run is one archived reconciliation
type Run struct {
	ID           string
	StartedAt    time.Time
	Input        string
	Total        int
	NonDivergent int
	Divergent    int
	Majority     int
	Records      []Record
}

// Record is one classified merged annotation
type Record struct {
	DocumentID    string
	Seq           int
	Anchor        string
	Class         string
	FinalLabel    string
	HasFinal      bool
	Contributions []Contribution
}

// Contribution is one annotator's span inside a record
type Contribution struct {
	Annotator string `json:"annotator"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Text      string `json:"text"`
	Label     string `json:"label"`
}

// IDs hands out time-ordered run identifiers
type IDs struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewIDs creates a run identifier source
func NewIDs() *IDs {
	return &IDs{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// New returns a ULID for a run started at t
func (g *IDs) New(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}

// NewRun converts classified outcomes into an archivable run
func NewRun(id string, startedAt time.Time, input string, outcomes []classify.Outcome) Run {
	r := Run{
		ID:        id,
		StartedAt: startedAt.UTC(),
		Input:     input,
		Records:   make([]Record, 0, len(outcomes)),
	}
	for i, out := range outcomes {
		ann := out.Annotation
		rec := Record{
			DocumentID:    string(ann.DocumentID),
			Seq:           i,
			Anchor:        string(ann.Anchor),
			Class:         out.Class.String(),
			FinalLabel:    out.FinalLabel,
			HasFinal:      out.HasFinal,
			Contributions: make([]Contribution, len(ann.Contributions)),
		}
		for j, c := range ann.Contributions {
			rec.Contributions[j] = Contribution{
				Annotator: string(c.Annotator),
				Start:     c.Start,
				End:       c.End,
				Text:      c.Text,
				Label:     c.Label,
			}
		}
		r.Records = append(r.Records, rec)

		r.Total++
		if out.Class == classify.NonDivergent {
			r.NonDivergent++
		} else {
			r.Divergent++
			if out.Majority {
				r.Majority++
			}
		}
	}
	return r
}
