// Package report renders reconciled annotations as a divergence table, a
// highlighted-text HTML page and a run summary.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/classify"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/ingest"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/match"
)

// Missing is written for fields a record does not carry.
const Missing = "N/A"

// fieldGroups is the column group precedence after the leading id column.
var fieldGroups = []string{"start", "end", "text", "label"}

// Columns returns the union of the fields carried by outcomes: id first, then
// one start, end, text and label group each, annotators ordered by id.
func Columns(outcomes []classify.Outcome) []string {
	seen := make(map[ingest.AnnotatorID]bool)
	var annotators []ingest.AnnotatorID
	for _, out := range outcomes {
		for _, c := range out.Annotation.Contributions {
			if !seen[c.Annotator] {
				seen[c.Annotator] = true
				annotators = append(annotators, c.Annotator)
			}
		}
	}
	sort.Slice(annotators, func(i, j int) bool {
		return ingest.Less(annotators[i], annotators[j])
	})

	cols := make([]string, 0, 1+len(fieldGroups)*len(annotators))
	cols = append(cols, "id")
	for _, group := range fieldGroups {
		for _, a := range annotators {
			cols = append(cols, group+"."+string(a))
		}
	}
	return cols
}

// Fields flattens a merged annotation into named fields.
func Fields(ann *match.MergedAnnotation) map[string]string {
	fields := make(map[string]string, 1+4*len(ann.Contributions))
	fields["id"] = string(ann.DocumentID)
	for _, c := range ann.Contributions {
		suffix := "." + string(c.Annotator)
		fields["start"+suffix] = strconv.Itoa(c.Start)
		fields["end"+suffix] = strconv.Itoa(c.End)
		fields["text"+suffix] = c.Text
		fields["label"+suffix] = c.Label
	}
	return fields
}

// Project maps ann onto columns. Absent fields render as Missing; fields not
// named in columns are dropped.
func Project(ann *match.MergedAnnotation, columns []string) []string {
	fields := Fields(ann)
	row := make([]string, len(columns))
	for i, col := range columns {
		if v, ok := fields[col]; ok {
			row[i] = v
		} else {
			row[i] = Missing
		}
	}
	return row
}

// WriteTSV writes one tab-separated row per divergent outcome under a header
// row. Non-divergent outcomes are skipped.
func WriteTSV(w io.Writer, outcomes []classify.Outcome) error {
	divergent := make([]classify.Outcome, 0, len(outcomes))
	for _, out := range outcomes {
		if out.Class == classify.Divergent {
			divergent = append(divergent, out)
		}
	}

	cols := Columns(divergent)
	if _, err := io.WriteString(w, tsvLine(cols)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, out := range divergent {
		if _, err := io.WriteString(w, tsvLine(Project(out.Annotation, cols))); err != nil {
			return fmt.Errorf("write row for document %s: %w", out.Annotation.DocumentID, err)
		}
	}
	return nil
}

// tsvLine joins fields with tabs and a trailing newline. Only fields holding a
// tab, quote or line break are quoted; leading spaces are written as is.
func tsvLine(fields []string) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('\t')
		}
		if !strings.ContainsAny(f, "\t\"\r\n") {
			b.WriteString(f)
			continue
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
	return b.String()
}
