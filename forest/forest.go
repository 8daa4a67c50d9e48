// Package forest is a multi-output random forest regressor: bootstrap-sampled
// CART trees whose splits minimise the squared error summed over all outputs.
package forest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// Params controls the ensemble.
type Params struct {
	Trees       int
	Seed        int64
	MaxDepth    int // 0 = unlimited
	MinLeaf     int
	MaxFeatures int // features tried per split, 0 = all
	Workers     int
	Bootstrap   bool
}

// DefaultParams mirrors a 100-tree forest with seed 42.
func DefaultParams() Params {
	return Params{Trees: 100, Seed: 42, MinLeaf: 1, Workers: 4, Bootstrap: true}
}

// Node is a split (Feature >= 0) or a leaf (Feature == -1) of a tree.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Value     []float64 `json:"v,omitempty"`
}

// Tree is a flat node list; node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a fitted ensemble.
type Forest struct {
	Features int    `json:"features"`
	Outputs  int    `json:"outputs"`
	Trees    []Tree `json:"trees"`
}

var errNoSamples = errors.New("forest: no samples")

// Fit grows p.Trees trees on x (rows of features) and y (rows of targets).
// Tree i uses its own RNG seeded with p.Seed+i, so the result does not
// depend on scheduling.
func Fit(ctx context.Context, x, y [][]float64, p Params) (*Forest, error) {
	if len(x) == 0 {
		return nil, errNoSamples
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("forest: %d feature rows but %d target rows", len(x), len(y))
	}
	nf, no := len(x[0]), len(y[0])
	if no == 0 {
		return nil, errors.New("forest: targets have no outputs")
	}
	for i := range x {
		if len(x[i]) != nf || len(y[i]) != no {
			return nil, fmt.Errorf("forest: ragged row %d", i)
		}
		for _, v := range x[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("forest: non-finite feature in row %d", i)
			}
		}
	}
	if p.Trees < 1 {
		p.Trees = 1
	}
	if p.MinLeaf < 1 {
		p.MinLeaf = 1
	}
	if p.Workers < 1 {
		p.Workers = 1
	}

	f := &Forest{Features: nf, Outputs: no, Trees: make([]Tree, p.Trees)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)
	for i := 0; i < p.Trees; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(p.Seed + int64(i)))
			b := &builder{x: x, y: y, p: p, rng: rng, outputs: no}
			f.Trees[i] = b.grow(sample(len(x), p.Bootstrap, rng))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return f, nil
}

// Predict averages the leaf values of all trees.
func (f *Forest) Predict(x []float64) ([]float64, error) {
	if f == nil || len(f.Trees) == 0 {
		return nil, errors.New("forest: not fitted")
	}
	if len(x) != f.Features {
		return nil, fmt.Errorf("forest: got %d features, want %d", len(x), f.Features)
	}
	for _, v := range x {
		if math.IsNaN(v) {
			return nil, errors.New("forest: NaN feature")
		}
	}

	out := make([]float64, f.Outputs)
	for _, t := range f.Trees {
		leaf, err := t.leaf(x)
		if err != nil {
			return nil, err
		}
		for k := range out {
			out[k] += leaf.Value[k]
		}
	}
	for k := range out {
		out[k] /= float64(len(f.Trees))
	}
	return out, nil
}

func (t Tree) leaf(x []float64) (Node, error) {
	i := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		if i < 0 || i >= len(t.Nodes) {
			return Node{}, fmt.Errorf("forest: corrupt tree, node %d out of range", i)
		}
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n, nil
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return Node{}, errors.New("forest: corrupt tree, cycle detected")
}

func sample(n int, bootstrap bool, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		if bootstrap {
			idx[i] = rng.Intn(n)
		} else {
			idx[i] = i
		}
	}
	return idx
}
