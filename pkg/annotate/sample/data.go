// Package sample draws small, maximally diverse samples of first posts using
// the cosine distance between their relevance-assessment vectors.
package sample

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/internalerr"
)

// vectorOffset is the number of leading descriptive columns in an assessment
// file; every later column is one vector dimension.
const vectorOffset = 5

// Columns written by WriteTSV.
var Columns = []string{"thread_id", "domain", "type", "source", "request"}

// Vectors maps a thread id to its assessment vector.
type Vectors map[string][]float64

// Entry is one first post that may be sampled.
type Entry struct {
	ThreadID string
	Domain   string
	Type     string
	Source   string
	Request  string
}

// LoadVectors reads an assessment TSV file.
func LoadVectors(path string) (Vectors, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vectors: %w", err)
	}
	defer f.Close()
	return ReadVectors(f)
}

// ReadVectors parses assessment rows keyed by their id column. Cells that are
// not integers count as 0.
func ReadVectors(r io.Reader) (Vectors, error) {
	header, rows, err := readTSV(r)
	if err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	idCol := indexOf(header, "id")
	if idCol < 0 {
		return nil, fmt.Errorf("%w: vectors: missing id column", internalerr.ErrInvalidInput)
	}

	dims := 0
	if len(header) > vectorOffset {
		dims = len(header) - vectorOffset
	}
	vectors := make(Vectors, len(rows))
	for _, row := range rows {
		vec := make([]float64, dims)
		for d := 0; d < dims; d++ {
			col := vectorOffset + d
			if col >= len(row) {
				break
			}
			if n, err := strconv.Atoi(row[col]); err == nil {
				vec[d] = float64(n)
			}
		}
		vectors[cell(row, idCol)] = vec
	}
	return vectors, nil
}

// LoadEntries reads first-post TSV files in order.
func LoadEntries(paths ...string) ([]Entry, error) {
	var entries []Entry
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open entries: %w", err)
		}
		batch, err := ReadEntries(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		entries = append(entries, batch...)
	}
	return entries, nil
}

// ReadEntries parses first-post rows. A thread_id column is required.
func ReadEntries(r io.Reader) ([]Entry, error) {
	header, rows, err := readTSV(r)
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	cols := make([]int, len(Columns))
	for i, name := range Columns {
		cols[i] = indexOf(header, name)
	}
	if cols[0] < 0 {
		return nil, fmt.Errorf("%w: entries: missing thread_id column", internalerr.ErrInvalidInput)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			ThreadID: cell(row, cols[0]),
			Domain:   cell(row, cols[1]),
			Type:     cell(row, cols[2]),
			Source:   cell(row, cols[3]),
			Request:  cell(row, cols[4]),
		})
	}
	return entries, nil
}

// WriteTSV writes entries under a Columns header.
func WriteTSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.ThreadID, e.Domain, e.Type, e.Source, e.Request}); err != nil {
			return fmt.Errorf("write entry %s: %w", e.ThreadID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func readTSV(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%w: empty file", internalerr.ErrInvalidInput)
	}
	if err != nil {
		return nil, nil, err
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return header, rows, nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
