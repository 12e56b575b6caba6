package regression

import (
	"math/rand/v2"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// ForestTrainer fits a bagged ensemble of regression trees. Every split
// considers all features; trees differ only by their bootstrap sample.
type ForestTrainer struct {
	Trees           int
	Seed            uint64
	MinSamplesSplit int
	// MaxDepth limits tree depth; 0 grows trees until leaves are pure
	MaxDepth int
}

// Kind implements Trainer
func (t ForestTrainer) Kind() Kind { return KindForest }

// Fit implements Trainer. The result depends only on the inputs and Seed.
func (t ForestTrainer) Fit(x *mat.Dense, y []float64) (Predictor, error) {
	n, p, err := checkTrainingSet(x, y)
	if err != nil {
		return nil, err
	}

	trees := max(t.Trees, 1)
	minSplit := max(t.MinSamplesSplit, 2)

	rows := make([][]float64, n)
	for i := range n {
		rows[i] = x.RawRowView(i)
	}

	forest := &Forest{
		Dim:   p,
		Trees: make([]Tree, trees),
	}

	// Each tree owns its generator, so the result is independent of scheduling
	jobs := make(chan int)

	var wg sync.WaitGroup

	for range min(runtime.GOMAXPROCS(0), trees) {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range jobs {
				rng := rand.New(rand.NewPCG(t.Seed, uint64(i)))
				g := grower{rows: rows, y: y, minSplit: minSplit, maxDepth: t.MaxDepth}
				forest.Trees[i] = g.grow(bootstrap(rng, n))
			}
		}()
	}

	for i := range trees {
		jobs <- i
	}

	close(jobs)
	wg.Wait()

	return forest, nil
}

func bootstrap(rng *rand.Rand, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.IntN(n)
	}

	return idx
}

// Node is a tree node. Leaves have Feature == -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v,omitempty"`
}

// Tree is a regression tree stored as a flat node list rooted at index 0
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		node := &t.Nodes[i]
		if node.Feature < 0 {
			return node.Value
		}

		if x[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}

// Forest is a fitted random forest
type Forest struct {
	Dim   int    `json:"dim"`
	Trees []Tree `json:"trees"`
}

// Kind implements Predictor
func (f *Forest) Kind() Kind { return KindForest }

// Features implements Predictor
func (f *Forest) Features() int { return f.Dim }

// Predict implements Predictor: the mean of all tree predictions
func (f *Forest) Predict(x []float64) (float64, error) {
	if err := checkInput(x, f.Dim); err != nil {
		return 0, err
	}

	if len(f.Trees) == 0 {
		return 0, nil
	}

	sum := 0.0
	for i := range f.Trees {
		sum += f.Trees[i].predict(x)
	}

	return sum / float64(len(f.Trees)), nil
}

type grower struct {
	rows     [][]float64
	y        []float64
	minSplit int
	maxDepth int
	nodes    []Node
}

func (g *grower) grow(sample []int) Tree {
	g.nodes = g.nodes[:0]
	g.build(sample, 0)

	return Tree{Nodes: g.nodes}
}

// build appends the subtree for sample and returns its root index
func (g *grower) build(sample []int, depth int) int {
	idx := len(g.nodes)
	g.nodes = append(g.nodes, Node{Feature: -1, Value: g.mean(sample)})

	if len(sample) < g.minSplit || (g.maxDepth > 0 && depth >= g.maxDepth) {
		return idx
	}

	feature, threshold, ok := g.bestSplit(sample)
	if !ok {
		return idx
	}

	var left, right []int

	for _, i := range sample {
		if g.rows[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	if len(left) == 0 || len(right) == 0 {
		return idx
	}

	l := g.build(left, depth+1)
	r := g.build(right, depth+1)

	g.nodes[idx] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}

	return idx
}

func (g *grower) mean(sample []int) float64 {
	sum := 0.0
	for _, i := range sample {
		sum += g.y[i]
	}

	return sum / float64(len(sample))
}

// bestSplit finds the split minimizing the summed squared error of both children.
// Every feature is scanned in column order, so ties go to the lower column.
// Thresholds sit halfway between consecutive distinct feature values.
func (g *grower) bestSplit(sample []int) (int, float64, bool) {
	n := len(sample)

	var totalSum, totalSq float64
	for _, i := range sample {
		totalSum += g.y[i]
		totalSq += g.y[i] * g.y[i]
	}

	parent := totalSq - totalSum*totalSum/float64(n)
	if parent <= 1e-12*max(1, totalSq) {
		return 0, 0, false
	}

	best := parent
	bestFeature := -1
	bestThreshold := 0.0

	order := make([]int, n)
	dim := len(g.rows[sample[0]])

	for f := range dim {
		copy(order, sample)
		sort.SliceStable(order, func(a, b int) bool {
			return g.rows[order[a]][f] < g.rows[order[b]][f]
		})

		var leftSum, leftSq float64

		for k := 0; k < n-1; k++ {
			yi := g.y[order[k]]
			leftSum += yi
			leftSq += yi * yi

			lo, hi := g.rows[order[k]][f], g.rows[order[k+1]][f]
			if lo == hi {
				continue
			}

			nl := float64(k + 1)
			nr := float64(n - k - 1)
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq

			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if sse < best-1e-12 {
				best = sse
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}

	return bestFeature, bestThreshold, true
}
