package forest

import (
	"math/rand"
	"sort"
)

const minGain = 1e-12

type builder struct {
	x, y    [][]float64
	p       Params
	rng     *rand.Rand
	outputs int
	tree    Tree
}

func (b *builder) grow(idx []int) Tree {
	b.tree = Tree{}
	b.build(idx, 0)
	return b.tree
}

func (b *builder) build(idx []int, depth int) int {
	id := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{Feature: -1, Value: b.mean(idx)})

	if len(idx) < 2*b.p.MinLeaf || (b.p.MaxDepth > 0 && depth >= b.p.MaxDepth) {
		return id
	}
	parentSSE := b.sse(idx)
	if parentSSE <= minGain {
		return id
	}

	feature, threshold, sse, ok := b.bestSplit(idx)
	if !ok || sse >= parentSSE-minGain {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	if len(left) == 0 || len(right) == 0 {
		return id
	}
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.tree.Nodes[id] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return id
}

func (b *builder) candidateFeatures() []int {
	nf := len(b.x[0])
	all := make([]int, nf)
	for i := range all {
		all[i] = i
	}
	if b.p.MaxFeatures <= 0 || b.p.MaxFeatures >= nf {
		return all
	}
	b.rng.Shuffle(nf, func(i, j int) { all[i], all[j] = all[j], all[i] })
	picked := all[:b.p.MaxFeatures]
	sort.Ints(picked)
	return picked
}

// bestSplit scans every candidate feature in sorted order, keeping running
// sums per output so each threshold is evaluated in O(outputs).
func (b *builder) bestSplit(idx []int) (feature int, threshold, bestSSE float64, ok bool) {
	n := len(idx)
	k := b.outputs

	totalSum := make([]float64, k)
	totalSq := make([]float64, k)
	for _, i := range idx {
		for o := 0; o < k; o++ {
			v := b.y[i][o]
			totalSum[o] += v
			totalSq[o] += v * v
		}
	}

	order := append([]int(nil), idx...)
	leftSum := make([]float64, k)
	leftSq := make([]float64, k)

	for _, f := range b.candidateFeatures() {
		sort.SliceStable(order, func(a, c int) bool { return b.x[order[a]][f] < b.x[order[c]][f] })
		for o := 0; o < k; o++ {
			leftSum[o], leftSq[o] = 0, 0
		}

		for pos := 0; pos < n-1; pos++ {
			i := order[pos]
			for o := 0; o < k; o++ {
				v := b.y[i][o]
				leftSum[o] += v
				leftSq[o] += v * v
			}

			cur, next := b.x[i][f], b.x[order[pos+1]][f]
			if cur == next {
				continue
			}
			nl, nr := float64(pos+1), float64(n-pos-1)
			if int(nl) < b.p.MinLeaf || int(nr) < b.p.MinLeaf {
				continue
			}

			var s float64
			for o := 0; o < k; o++ {
				rs := totalSum[o] - leftSum[o]
				rq := totalSq[o] - leftSq[o]
				s += leftSq[o] - leftSum[o]*leftSum[o]/nl
				s += rq - rs*rs/nr
			}
			if !ok || s < bestSSE-minGain {
				feature, threshold, bestSSE, ok = f, midpoint(cur, next), s, true
			}
		}
	}
	return feature, threshold, bestSSE, ok
}

func (b *builder) mean(idx []int) []float64 {
	m := make([]float64, b.outputs)
	if len(idx) == 0 {
		return m
	}
	for _, i := range idx {
		for o := range m {
			m[o] += b.y[i][o]
		}
	}
	for o := range m {
		m[o] /= float64(len(idx))
	}
	return m
}

func (b *builder) sse(idx []int) float64 {
	m := b.mean(idx)
	var s float64
	for _, i := range idx {
		for o := range m {
			d := b.y[i][o] - m[o]
			s += d * d
		}
	}
	return s
}

// midpoint returns a threshold t with cur <= t < next. For adjacent floats
// the arithmetic midpoint rounds up to next, so cur is used instead.
func midpoint(cur, next float64) float64 {
	t := cur + (next-cur)/2
	if t >= next {
		return cur
	}
	return t
}
