package emissions

import (
	"math"
	"math/rand"
)

// eulerGamma is the Euler–Mascheroni constant used by the average path length
const eulerGamma = 0.5772156649015329

// IsolationForestConfig configures an isolation forest
type IsolationForestConfig struct {
	Trees      int
	MaxSamples int
	Seed       int64
}

// DefaultIsolationForestConfig returns the standard ensemble size and sub-sample cap
func DefaultIsolationForestConfig() IsolationForestConfig {
	return IsolationForestConfig{
		Trees:      100,
		MaxSamples: 256,
		Seed:       42,
	}
}

// isolationNode is a node of a one-dimensional isolation tree
type isolationNode struct {
	split       float64
	left, right *isolationNode
	size        int
}

func (n *isolationNode) isLeaf() bool {
	return n.left == nil && n.right == nil
}

// IsolationForest scores one-dimensional samples by how quickly random splits isolate them
type IsolationForest struct {
	trees      []*isolationNode
	sampleSize int
}

// FitIsolationForest builds the ensemble over values. Each tree draws its
// sub-sample without replacement and is grown to ceil(log2(sampleSize)).
func FitIsolationForest(values []float64, config IsolationForestConfig) *IsolationForest {
	rng := rand.New(rand.NewSource(config.Seed))

	sampleSize := config.MaxSamples
	if sampleSize <= 0 || sampleSize > len(values) {
		sampleSize = len(values)
	}
	heightLimit := int(math.Ceil(math.Log2(math.Max(float64(sampleSize), 2))))

	forest := &IsolationForest{
		trees:      make([]*isolationNode, 0, config.Trees),
		sampleSize: sampleSize,
	}

	for t := 0; t < config.Trees; t++ {
		perm := rng.Perm(len(values))
		sample := make([]float64, sampleSize)
		for i := 0; i < sampleSize; i++ {
			sample[i] = values[perm[i]]
		}
		forest.trees = append(forest.trees, growIsolationTree(sample, 0, heightLimit, rng))
	}

	return forest
}

func growIsolationTree(sample []float64, depth, heightLimit int, rng *rand.Rand) *isolationNode {
	if depth >= heightLimit || len(sample) <= 1 {
		return &isolationNode{size: len(sample)}
	}

	lo, hi := sample[0], sample[0]
	for _, v := range sample[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return &isolationNode{size: len(sample)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right []float64
	for _, v := range sample {
		if v < split {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}

	return &isolationNode{
		split: split,
		left:  growIsolationTree(left, depth+1, heightLimit, rng),
		right: growIsolationTree(right, depth+1, heightLimit, rng),
		size:  len(sample),
	}
}

// pathLength is the depth at which x lands, adjusted for unsplit leaves
func pathLength(node *isolationNode, x float64, depth int) float64 {
	if node.isLeaf() {
		return float64(depth) + averagePathLength(node.size)
	}
	if x < node.split {
		return pathLength(node.left, x, depth+1)
	}
	return pathLength(node.right, x, depth+1)
}

// averagePathLength is c(n), the mean path length of an unsuccessful BST search
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
	}
}

// Score returns the anomaly score in (0, 1]. Higher is more anomalous.
func (f *IsolationForest) Score(x float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	total := 0.0
	for _, tree := range f.trees {
		total += pathLength(tree, x, 0)
	}
	mean := total / float64(len(f.trees))

	norm := averagePathLength(f.sampleSize)
	if norm == 0 {
		return 0.5
	}
	return math.Pow(2, -mean/norm)
}
