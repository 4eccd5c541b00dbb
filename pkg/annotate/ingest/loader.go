package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/biirrr/llms-complex-leisure-search/internal/validation"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/internalerr"
)

// LoadFile reads a whole export. Files ending in .jsonl hold one document per
// line; anything else is decoded as a JSON array. Any malformed document fails
// the whole load.
func LoadFile(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return DecodeLines(f)
	}
	return Decode(f)
}

// Decode reads a JSON array of documents and validates each one. Anything
// after the array, such as a second concatenated export, is rejected.
func Decode(r io.Reader) ([]Document, error) {
	var docs []Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&docs); err != nil {
		return nil, fmt.Errorf("%w: decode documents: %v", internalerr.ErrInvalidInput, err)
	}
	var trailing json.RawMessage
	if err := dec.Decode(&trailing); err != io.EOF {
		return nil, fmt.Errorf("%w: decode documents: unexpected data after the document array", internalerr.ErrInvalidInput)
	}
	if err := Validate(docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// DecodeLines reads one JSON document per non-empty line.
func DecodeLines(r io.Reader) ([]Document, error) {
	var docs []Document
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", internalerr.ErrInvalidInput, line, err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	if err := Validate(docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Validate checks every document and reports the first malformed one.
func Validate(docs []Document) error {
	for i := range docs {
		if err := validation.ValidateStruct(&docs[i]); err != nil {
			return fmt.Errorf("%w: document %d (id %q): %v", internalerr.ErrInvalidInput, i, docs[i].ID, err)
		}
	}
	return nil
}
