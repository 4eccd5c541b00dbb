// Package evaluate scores ranked model answers against the titles that forum
// users confirmed as solutions: solved counts at each rank cut-off, the
// reciprocal-rank score built from them, and result-list summaries.
package evaluate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/biirrr/llms-complex-leisure-search/internal/validation"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/internalerr"
)

// ThreadID identifies a forum thread. Files carry it as a number or a string.
type ThreadID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *ThreadID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ThreadID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("thread id: %w", err)
	}
	*id = ThreadID(n.String())
	return nil
}

// Task is a thread whose answer was confirmed by the asker.
type Task struct {
	ThreadID ThreadID `json:"thread_id" validate:"required"`
	Title    string   `json:"title"`
}

// Answer is one ranked guess of a model.
type Answer struct {
	Title string `json:"title"`
}

// Solution holds a model's answer lists for one thread, one list per repeated
// query.
type Solution struct {
	ThreadID ThreadID   `json:"thread_id" validate:"required"`
	Results  [][]Answer `json:"results" validate:"required"`
}

// Paths returns <dataDir>/<domain>/<prefix>_<set>.json for every data set.
func Paths(dataDir, domain, prefix string, sets []string) []string {
	paths := make([]string, 0, len(sets))
	for _, set := range sets {
		paths = append(paths, filepath.Join(dataDir, domain, fmt.Sprintf("%s_%s.json", prefix, set)))
	}
	return paths
}

// LoadTasks reads and concatenates solved-task files.
func LoadTasks(paths ...string) ([]Task, error) {
	var tasks []Task
	for _, path := range paths {
		var part []Task
		if err := loadJSON(path, &part); err != nil {
			return nil, err
		}
		tasks = append(tasks, part...)
	}
	for i := range tasks {
		if err := validation.ValidateStruct(&tasks[i]); err != nil {
			return nil, fmt.Errorf("%w: task %d: %v", internalerr.ErrInvalidInput, i, err)
		}
	}
	return tasks, nil
}

// LoadSolutions reads and concatenates model answer files.
func LoadSolutions(paths ...string) ([]Solution, error) {
	var solutions []Solution
	for _, path := range paths {
		var part []Solution
		if err := loadJSON(path, &part); err != nil {
			return nil, err
		}
		solutions = append(solutions, part...)
	}
	for i := range solutions {
		if err := validation.ValidateStruct(&solutions[i]); err != nil {
			return nil, fmt.Errorf("%w: solution %d: %v", internalerr.ErrInvalidInput, i, err)
		}
	}
	return solutions, nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", internalerr.ErrInvalidInput, path, err)
	}
	return nil
}
