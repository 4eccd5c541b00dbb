package evaluate

import (
	"bytes"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/internalerr"
)

func answers(titles ...string) []Answer {
	out := make([]Answer, len(titles))
	for i, t := range titles {
		out[i] = Answer{Title: t}
	}
	return out
}

func fixture(t *testing.T) *Evaluator {
	t.Helper()
	tasks := []Task{
		{ThreadID: "1", Title: "A"},
		{ThreadID: "2", Title: "B"},
		{ThreadID: "3", Title: "C"},
	}
	solutions := []Solution{
		{ThreadID: "1", Results: [][]Answer{answers("X", "A"), answers("A"), answers("Y", "Z")}},
		{ThreadID: "2", Results: [][]Answer{answers("B"), answers("Q"), answers("R", "S", "B")}},
	}
	e, err := NewEvaluator(tasks, solutions)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return e
}

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSolvedCounts(t *testing.T) {
	e := fixture(t)

	if got := e.SolvedAt(1); got != 2 {
		t.Errorf("SolvedAt(1) = %d, want 2", got)
	}
	tests := []struct {
		k    int
		each int
		runs [Runs]int
	}{
		{1, 2, [Runs]int{1, 1, 0}},
		{2, 3, [Runs]int{2, 1, 0}},
		{3, 4, [Runs]int{2, 1, 1}},
		{20, 4, [Runs]int{2, 1, 1}},
	}
	for _, tt := range tests {
		if got := e.SolvedAtEach(tt.k); got != tt.each {
			t.Errorf("SolvedAtEach(%d) = %d, want %d", tt.k, got, tt.each)
		}
		if got := e.SolvedPerRun(tt.k); got != tt.runs {
			t.Errorf("SolvedPerRun(%d) = %v, want %v", tt.k, got, tt.runs)
		}
	}

	if got := e.FoundDistribution(); got != [Runs + 1]int{0, 0, 2, 0} {
		t.Errorf("FoundDistribution = %v", got)
	}
}

func TestReport(t *testing.T) {
	r := fixture(t).Report("books", "gemini")

	if r.Tasks != 3 || len(r.Best.Counts) != MaxRank {
		t.Fatalf("unexpected report shape %+v", r)
	}
	harmonic := 0.0
	for k := 1; k <= MaxRank; k++ {
		harmonic += 1 / float64(k)
	}
	if !almost(r.Best.MRR, 2*harmonic/3) {
		t.Errorf("best MRR = %v, want %v", r.Best.MRR, 2*harmonic/3)
	}
	if !almost(r.Best.Fractions[0], 2.0/3.0) {
		t.Errorf("best fraction at 1 = %v", r.Best.Fractions[0])
	}

	wantEach := (2 + 3.0/2 + 4*(harmonic-1-0.5)) / 9
	if !almost(r.Each.MRR, wantEach) {
		t.Errorf("each MRR = %v, want %v", r.Each.MRR, wantEach)
	}

	if !almost(r.Average.Mean[0], 2.0/3.0) || !almost(r.Average.StdDev[0], math.Sqrt(2.0/9.0)) {
		t.Errorf("average at 1 = %v ± %v", r.Average.Mean[0], r.Average.StdDev[0])
	}

	s := r.Summary
	if s.Answered != 2 || s.Total != 10 || s.LengthMin != 1 || s.LengthMax != 3 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.LengthQ1 != 1 || s.LengthMedian != 1.5 || s.LengthQ3 != 2 {
		t.Errorf("unexpected quartiles %+v", s)
	}
}

func TestPercentileInterpolates(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	if got := Percentile(values, 25); !almost(got, 1.75) {
		t.Errorf("p25 = %v, want 1.75", got)
	}
	if got := Percentile(values, 100); got != 4 {
		t.Errorf("p100 = %v, want 4", got)
	}
	if got := Percentile(nil, 50); got != 0 {
		t.Errorf("empty percentile = %v", got)
	}
}

func TestNewEvaluatorRequiresTasks(t *testing.T) {
	if _, err := NewEvaluator(nil, nil); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestWriteTable(t *testing.T) {
	r := fixture(t).Report("books", "gemini")

	var buf bytes.Buffer
	if err := WriteTable(&buf, Tables[3], []Report{r}); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	want := "domain,llm,solved.0,solved.1,solved.2,solved.3,solved.0.fraction,solved.1.fraction,solved.2.fraction,solved.3.fraction\n" +
		"books,gemini,0,0,2,0,0.0,0.0,0.6666666666666666,0.0\n"
	if buf.String() != want {
		t.Errorf("table\n got %q\nwant %q", buf.String(), want)
	}

	for _, table := range Tables {
		if got := len(table.Row(r)); got != len(table.Header) {
			t.Errorf("%s: row has %d fields, header %d", table.Name, got, len(table.Header))
		}
	}
}

func TestLoadTasksAndSolutions(t *testing.T) {
	dir := t.TempDir()
	domainDir := filepath.Join(dir, "books")
	if err := os.MkdirAll(domainDir, 0o755); err != nil {
		t.Fatal(err)
	}
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(domainDir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("solved_extra.json", `[{"thread_id": 11, "title": "Dune"}]`)
	write("solved_jdoc.json", `[{"thread_id": "j-2", "title": "Emma"}]`)
	write("gemini_extra.json", `[{"thread_id": 11, "results": [[{"title": "Dune", "qualifiers": ["Herbert"]}], [], []]}]`)

	sets := []string{"extra", "jdoc"}
	tasks, err := LoadTasks(Paths(dir, "books", "solved", sets)...)
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ThreadID != "11" || tasks[1].ThreadID != "j-2" {
		t.Errorf("unexpected tasks %+v", tasks)
	}

	if _, err := LoadSolutions(Paths(dir, "books", "gemini", sets)...); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("a missing answer file should surface fs.ErrNotExist, got %v", err)
	}
	solutions, err := LoadSolutions(Paths(dir, "books", "gemini", sets[:1])...)
	if err != nil {
		t.Fatalf("LoadSolutions: %v", err)
	}
	if len(solutions) != 1 || len(solutions[0].Results) != 3 || solutions[0].Results[0][0].Title != "Dune" {
		t.Errorf("unexpected solutions %+v", solutions)
	}

	write("bad_extra.json", `[{"title": "no thread"}]`)
	_, err = LoadTasks(Paths(dir, "books", "bad", sets[:1])...)
	if !errors.Is(err, internalerr.ErrInvalidInput) || !strings.Contains(err.Error(), "ThreadID") {
		t.Errorf("expected ErrInvalidInput naming ThreadID, got %v", err)
	}
}
