package metrics

import (
	"context"
	"math"
	"sort"

	"diareval/internal/annotation"
)

// cooccurrence holds the overlap duration between every reference label
// (rows) and hypothesis label (columns).
type cooccurrence struct {
	refLabels []string
	hypLabels []string
	matrix    [][]int64
}

func newCooccurrence(ctx context.Context, ref, hyp *annotation.Annotation) *cooccurrence {
	c := &cooccurrence{refLabels: ref.Labels(), hypLabels: hyp.Labels()}
	hypTimelines := make([]annotation.Timeline, len(c.hypLabels))
	for j, label := range c.hypLabels {
		hypTimelines[j] = hyp.LabelTimeline(label)
	}
	c.matrix = make([][]int64, len(c.refLabels))
	for i, label := range c.refLabels {
		c.matrix[i] = make([]int64, len(c.hypLabels))
		if ctx.Err() != nil {
			continue
		}
		refTL := ref.LabelTimeline(label)
		for j := range c.hypLabels {
			c.matrix[i][j] = refTL.Intersect(hypTimelines[j]).Duration()
		}
	}
	return c
}

func (c *cooccurrence) total() int64 {
	var sum int64
	for _, row := range c.matrix {
		for _, v := range row {
			sum += v
		}
	}
	return sum
}

// optimalMapping solves the assignment that maximizes total overlap and keeps
// only pairs that actually overlap. Keys are hypothesis labels.
func (c *cooccurrence) optimalMapping(ctx context.Context) map[string]string {
	mapping := make(map[string]string)
	rows, cols := len(c.refLabels), len(c.hypLabels)
	if rows == 0 || cols == 0 {
		return mapping
	}
	n := max(rows, cols)
	cost := make([][]float64, n)
	for i := range cost {
		cost[i] = make([]float64, n)
		for j := range cost[i] {
			if i < rows && j < cols {
				cost[i][j] = -float64(c.matrix[i][j])
			}
		}
	}
	for i, j := range hungarian(ctx, cost) {
		if i < rows && j < cols && c.matrix[i][j] > 0 {
			mapping[c.hypLabels[j]] = c.refLabels[i]
		}
	}
	return mapping
}

// greedyMapping repeatedly pairs the labels with the largest remaining overlap.
func (c *cooccurrence) greedyMapping() map[string]string {
	type cell struct {
		i, j int
		v    int64
	}
	var cells []cell
	for i, row := range c.matrix {
		for j, v := range row {
			if v > 0 {
				cells = append(cells, cell{i, j, v})
			}
		}
	}
	sort.SliceStable(cells, func(a, b int) bool { return cells[a].v > cells[b].v })
	usedRef := make(map[int]bool)
	usedHyp := make(map[int]bool)
	mapping := make(map[string]string)
	for _, cl := range cells {
		if usedRef[cl.i] || usedHyp[cl.j] {
			continue
		}
		usedRef[cl.i] = true
		usedHyp[cl.j] = true
		mapping[c.hypLabels[cl.j]] = c.refLabels[cl.i]
	}
	return mapping
}

// hungarian returns, for a square cost matrix, the column assigned to each row
// in a minimum-cost perfect assignment. When ctx is done it returns the
// identity assignment.
func hungarian(ctx context.Context, cost [][]float64) []int {
	n := len(cost)
	identity := func() []int {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1)
	way := make([]int, n+1)
	for i := 1; i <= n; i++ {
		if ctx.Err() != nil {
			return identity()
		}
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}
	assignment := make([]int, n)
	for j := 1; j <= n; j++ {
		if p[j] != 0 {
			assignment[p[j]-1] = j - 1
		}
	}
	return assignment
}
