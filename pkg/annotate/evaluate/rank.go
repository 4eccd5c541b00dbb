package evaluate

import (
	"fmt"
	"math"
	"sort"

	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/internalerr"
)

const (
	// Runs is the number of answer lists requested per thread.
	Runs = 3
	// MaxRank is the deepest rank cut-off scored.
	MaxRank = 20
)

// Evaluator scores one model's solutions for one domain.
type Evaluator struct {
	tasks     []Task
	solutions []Solution
	byThread  map[ThreadID][]int
}

// NewEvaluator indexes solutions by thread. Without any solved task no
// fraction is defined, so an empty task list is rejected.
func NewEvaluator(tasks []Task, solutions []Solution) (*Evaluator, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: no solved tasks", internalerr.ErrInvalidInput)
	}
	byThread := make(map[ThreadID][]int)
	for i, s := range solutions {
		byThread[s.ThreadID] = append(byThread[s.ThreadID], i)
	}
	return &Evaluator{tasks: tasks, solutions: solutions, byThread: byThread}, nil
}

// each calls fn for every solution answering a task's thread. A thread
// answered twice is visited twice.
func (e *Evaluator) each(fn func(task Task, s Solution)) {
	for _, task := range e.tasks {
		for _, i := range e.byThread[task.ThreadID] {
			fn(task, e.solutions[i])
		}
	}
}

// inTop reports whether title appears among the first k answers of list.
func inTop(list []Answer, title string, k int) bool {
	if k > len(list) {
		k = len(list)
	}
	for _, a := range list[:k] {
		if a.Title == title {
			return true
		}
	}
	return false
}

// SolvedAt counts tasks whose title is in the top k of any answer list.
func (e *Evaluator) SolvedAt(k int) int {
	n := 0
	e.each(func(task Task, s Solution) {
		for _, list := range s.Results {
			if inTop(list, task.Title, k) {
				n++
				return
			}
		}
	})
	return n
}

// SolvedAtEach counts answer lists holding the task's title in their top k.
func (e *Evaluator) SolvedAtEach(k int) int {
	n := 0
	e.each(func(task Task, s Solution) {
		for _, list := range s.Results {
			if inTop(list, task.Title, k) {
				n++
			}
		}
	})
	return n
}

// SolvedPerRun counts, per answer-list position, the tasks solved in its top k.
// Lists beyond Runs are ignored.
func (e *Evaluator) SolvedPerRun(k int) [Runs]int {
	var totals [Runs]int
	e.each(func(task Task, s Solution) {
		for idx, list := range s.Results {
			if idx >= Runs {
				break
			}
			if inTop(list, task.Title, k) {
				totals[idx]++
			}
		}
	})
	return totals
}

// FoundDistribution counts answered tasks by how many of their lists contain
// the title at any rank: index 0 for none up to Runs for all.
func (e *Evaluator) FoundDistribution() [Runs + 1]int {
	var counts [Runs + 1]int
	e.each(func(task Task, s Solution) {
		found := 0
		for _, list := range s.Results {
			if inTop(list, task.Title, len(list)) {
				found++
			}
		}
		if found > Runs {
			found = Runs
		}
		counts[found]++
	})
	return counts
}

// Curve is a solved count per rank cut-off, index 0 holding rank 1.
type Curve struct {
	Counts    []int
	Fractions []float64
	MRR       float64
}

// AverageCurve is the per-run mean and population deviation at each cut-off.
type AverageCurve struct {
	Mean           []float64
	StdDev         []float64
	FractionMean   []float64
	FractionStdDev []float64
	MRR            float64
}

// ResultSummary describes the answer lists of a model.
type ResultSummary struct {
	Answered         int
	AnsweredFraction float64
	LengthMin        float64
	LengthQ1         float64
	LengthMedian     float64
	LengthQ3         float64
	LengthMax        float64
	Total            int
}

// Report bundles every score of one model for one domain.
type Report struct {
	Domain string
	Model  string
	Tasks  int

	// Best counts a task once when any list solves it.
	Best Curve
	// Each counts every solving list, out of Runs per task.
	Each         Curve
	Average      AverageCurve
	Distribution [Runs + 1]int
	Summary      ResultSummary
}

// DistributionFraction is Distribution over the number of solved tasks.
func (r Report) DistributionFraction() [Runs + 1]float64 {
	var out [Runs + 1]float64
	for i, n := range r.Distribution {
		out[i] = float64(n) / float64(r.Tasks)
	}
	return out
}

// Report computes all scores for cut-offs 1 to MaxRank.
func (e *Evaluator) Report(domain, model string) Report {
	tasks := float64(len(e.tasks))
	r := Report{Domain: domain, Model: model, Tasks: len(e.tasks)}

	for k := 1; k <= MaxRank; k++ {
		best := e.SolvedAt(k)
		r.Best.Counts = append(r.Best.Counts, best)
		r.Best.Fractions = append(r.Best.Fractions, float64(best)/tasks)

		each := e.SolvedAtEach(k)
		r.Each.Counts = append(r.Each.Counts, each)
		r.Each.Fractions = append(r.Each.Fractions, float64(each)/(tasks*Runs))

		perRun := e.SolvedPerRun(k)
		counts := make([]float64, Runs)
		fractions := make([]float64, Runs)
		for i, n := range perRun {
			counts[i] = float64(n)
			fractions[i] = float64(n) / tasks
		}
		mean, std := meanStdDev(counts)
		fmean, fstd := meanStdDev(fractions)
		r.Average.Mean = append(r.Average.Mean, mean)
		r.Average.StdDev = append(r.Average.StdDev, std)
		r.Average.FractionMean = append(r.Average.FractionMean, fmean)
		r.Average.FractionStdDev = append(r.Average.FractionStdDev, fstd)
	}

	bestCounts := make([]float64, len(r.Best.Counts))
	eachCounts := make([]float64, len(r.Each.Counts))
	for i := range r.Best.Counts {
		bestCounts[i] = float64(r.Best.Counts[i])
		eachCounts[i] = float64(r.Each.Counts[i])
	}
	r.Best.MRR = ReciprocalRank(bestCounts, len(e.tasks))
	r.Each.MRR = ReciprocalRank(eachCounts, len(e.tasks)*Runs)
	r.Average.MRR = ReciprocalRank(r.Average.Mean, len(e.tasks))

	r.Distribution = e.FoundDistribution()
	r.Summary = e.summary()
	return r
}

// ReciprocalRank weights the solved count at each cut-off k by 1/k and divides
// the sum by denominator.
func ReciprocalRank(solved []float64, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	total := 0.0
	for i, n := range solved {
		total += n / float64(i+1)
	}
	return total / float64(denominator)
}

func (e *Evaluator) summary() ResultSummary {
	var lengths []float64
	total := 0
	for _, s := range e.solutions {
		for _, list := range s.Results {
			lengths = append(lengths, float64(len(list)))
			total += len(list)
		}
	}
	out := ResultSummary{
		Answered:         len(e.solutions),
		AnsweredFraction: float64(len(e.solutions)) / float64(len(e.tasks)),
		Total:            total,
	}
	if len(lengths) == 0 {
		return out
	}
	sort.Float64s(lengths)
	out.LengthMin = lengths[0]
	out.LengthQ1 = Percentile(lengths, 25)
	out.LengthMedian = Percentile(lengths, 50)
	out.LengthQ3 = Percentile(lengths, 75)
	out.LengthMax = lengths[len(lengths)-1]
	return out
}

// Percentile interpolates linearly between the closest ranks of sorted values.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	sq := 0.0
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
