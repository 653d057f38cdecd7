package graph

import (
	"container/heap"
	"context"
	"math"
)

type pathItem struct {
	node int
	dist float64
	seq  int
}

type pathQueue []pathItem

func (q pathQueue) Len() int { return len(q) }
func (q pathQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].seq < q[j].seq
}
func (q pathQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *pathQueue) Push(x interface{}) { *q = append(*q, x.(pathItem)) }
func (q *pathQueue) Pop() interface{} {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}

// shortestPaths runs Dijkstra from start using edge weight as cost. For
// parallel edges the cheapest one is used. It returns the predecessor of
// every reached node (-1 for start) and the path cost.
func (s *snapshot) shortestPaths(ctx context.Context, start int) ([]int, []float64, error) {
	n := len(s.ids)
	prev := make([]int, n)
	dist := make([]float64, n)
	done := make([]bool, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		prev[i] = -1
	}
	dist[start] = 0

	seq := 0
	q := &pathQueue{{node: start, dist: 0, seq: seq}}
	for q.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		item := heap.Pop(q).(pathItem)
		u := item.node
		if done[u] {
			continue
		}
		done[u] = true

		for _, a := range s.out[u] {
			candidate := dist[u] + a.minWeight
			if candidate < dist[a.to] {
				dist[a.to] = candidate
				prev[a.to] = u
				seq++
				heap.Push(q, pathItem{node: a.to, dist: candidate, seq: seq})
			}
		}
	}

	return prev, dist, nil
}

// pathTo rebuilds the node path from the start to target.
func (s *snapshot) pathTo(prev []int, target int) []string {
	reversed := []string{}
	for v := target; v != -1; v = prev[v] {
		reversed = append(reversed, s.ids[v])
	}
	path := make([]string, len(reversed))
	for i, id := range reversed {
		path[len(reversed)-1-i] = id
	}
	return path
}

// ShortestPath returns the cheapest path between two nodes using edge
// weight as cost, together with its cost. The bool is false if there is
// no path or an endpoint is missing.
func (g *Graph) ShortestPath(ctx context.Context, source, target string) ([]string, float64, bool, error) {
	s := g.snapshot()
	from, ok := s.index[source]
	if !ok {
		return nil, 0, false, nil
	}
	to, ok := s.index[target]
	if !ok {
		return nil, 0, false, nil
	}

	prev, dist, err := s.shortestPaths(ctx, from)
	if err != nil {
		return nil, 0, false, err
	}
	if math.IsInf(dist[to], 1) {
		return nil, 0, false, nil
	}
	return s.pathTo(prev, to), dist[to], true, nil
}
