package sample

import (
	"math"
	"math/rand/v2"
)

// Default sampling parameters.
const (
	DefaultSize   = 10
	DefaultTrials = 10
)

// Sampler picks diverse subsets of entries.
type Sampler struct {
	Size   int
	Trials int
	Rand   *rand.Rand
}

// New creates a sampler with the default size and trial count, seeded for
// reproducible draws.
func New(seed uint64) *Sampler {
	return &Sampler{
		Size:   DefaultSize,
		Trials: DefaultTrials,
		Rand:   rand.New(rand.NewPCG(seed, seed)),
	}
}

// Select returns the most diverse sample found over s.Trials greedy trials and
// its mean pairwise cosine distance. Each trial seeds the sample with a random
// entry and repeatedly adds the entry farthest, on average, from those already
// chosen. Entries without a vector and repeated thread ids are ignored.
func (s *Sampler) Select(entries []Entry, vectors Vectors) ([]Entry, float64) {
	pool := candidates(entries, vectors)
	if len(pool) == 0 {
		return nil, 0
	}
	size := s.Size
	if size <= 0 || size > len(pool) {
		size = len(pool)
	}
	trials := s.Trials
	if trials <= 0 {
		trials = 1
	}

	var (
		best      []Entry
		bestScore = -1.0
	)
	for t := 0; t < trials; t++ {
		selected := s.trial(pool, vectors, size)
		score := MeanPairwiseDistance(selected, vectors)
		if score > bestScore {
			best, bestScore = selected, score
		}
	}
	return best, bestScore
}

func (s *Sampler) trial(pool []Entry, vectors Vectors, size int) []Entry {
	order := make([]Entry, len(pool))
	copy(order, pool)

	chosen := make(map[string]bool, size)
	first := order[s.Rand.IntN(len(order))]
	selected := []Entry{first}
	chosen[first.ThreadID] = true

	for len(selected) < size {
		s.Rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var (
			next    Entry
			found   bool
			maxDist = -1.0
		)
		for _, e := range order {
			if chosen[e.ThreadID] {
				continue
			}
			var sum float64
			for _, prev := range selected {
				sum += CosineDistance(vectors[prev.ThreadID], vectors[e.ThreadID])
			}
			if d := sum / float64(len(selected)); d > maxDist {
				next, maxDist, found = e, d, true
			}
		}
		if !found {
			break
		}
		selected = append(selected, next)
		chosen[next.ThreadID] = true
	}
	return selected
}

func candidates(entries []Entry, vectors Vectors) []Entry {
	seen := make(map[string]bool, len(entries))
	pool := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if _, ok := vectors[e.ThreadID]; !ok || seen[e.ThreadID] {
			continue
		}
		seen[e.ThreadID] = true
		pool = append(pool, e)
	}
	return pool
}

// MeanPairwiseDistance is the mean cosine distance over all pairs of entries,
// 0 for fewer than two.
func MeanPairwiseDistance(entries []Entry, vectors Vectors) float64 {
	if len(entries) < 2 {
		return 0
	}
	var (
		sum   float64
		pairs int
	)
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			sum += CosineDistance(vectors[entries[i].ThreadID], vectors[entries[j].ThreadID])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// CosineDistance returns 1 - cos(a, b). A zero vector has distance 0 to
// everything. Vectors of different length are compared over the shorter one.
func CosineDistance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
