package ingest

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// DocumentID identifies an annotated task. Exports carry it as a number or a string.
type DocumentID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *DocumentID) UnmarshalJSON(data []byte) error {
	s, err := scalarString(data)
	if err != nil {
		return fmt.Errorf("document id: %w", err)
	}
	*id = DocumentID(s)
	return nil
}

// AnnotatorID identifies the annotator that completed one annotation set.
type AnnotatorID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *AnnotatorID) UnmarshalJSON(data []byte) error {
	s, err := scalarString(data)
	if err != nil {
		return fmt.Errorf("annotator id: %w", err)
	}
	*id = AnnotatorID(s)
	return nil
}

// Less orders annotator ids numerically when both are integers, lexically otherwise.
func Less(a, b AnnotatorID) bool {
	ai, aErr := strconv.Atoi(string(a))
	bi, bErr := strconv.Atoi(string(b))
	switch {
	case aErr == nil && bErr == nil:
		return ai < bi
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	default:
		return a < b
	}
}

func scalarString(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// Document is one annotated request as exported by the annotation tool.
type Document struct {
	ID          DocumentID        `json:"id" validate:"required"`
	Data        Data              `json:"data"`
	Annotations []AnnotatorResult `json:"annotations" validate:"required,dive"`
}

// Data holds the task payload.
type Data struct {
	Request string `json:"request" validate:"required"`
	Domain  string `json:"domain" validate:"required"`
}

// Request returns the annotated text.
func (d Document) Request() string { return d.Data.Request }

// Domain returns the task domain (book, game, movie).
func (d Document) Domain() string { return d.Data.Domain }

// AnnotatorResult is one annotator's full output for a document. An empty
// result list is valid; a missing one is not.
type AnnotatorResult struct {
	CompletedBy AnnotatorID `json:"completed_by" validate:"required"`
	Result      []Region    `json:"result" validate:"required,dive"`
}

// Region wraps a marked span the way the export nests it.
type Region struct {
	Value Span `json:"value"`
}

// Span is a labelled character range. Offsets are 0-based rune positions.
type Span struct {
	Start  *int     `json:"start" validate:"required,gte=0"`
	End    *int     `json:"end" validate:"required,gte=0"`
	Text   *string  `json:"text" validate:"required"`
	Labels []string `json:"labels" validate:"min=1"`
}

// Label returns the first label; only the first one is used.
func (s Span) Label() string { return s.Labels[0] }

// StartAt returns the start offset. Validated spans always carry one.
func (s Span) StartAt() int { return *s.Start }

// EndAt returns the end offset. Validated spans always carry one.
func (s Span) EndAt() int { return *s.End }

// SelectedText returns the covered text. Validated spans always carry one.
func (s Span) SelectedText() string { return *s.Text }

// Spans returns the annotator's spans in export order.
func (r AnnotatorResult) Spans() []Span {
	out := make([]Span, 0, len(r.Result))
	for _, region := range r.Result {
		out = append(out, region.Value)
	}
	return out
}

// NewSpan builds a span with the given offsets, text and label.
func NewSpan(start, end int, text, label string) Span {
	return Span{Start: &start, End: &end, Text: &text, Labels: []string{label}}
}
