package graph

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/siherrmann/nexus/model"
)

// MaxBFSResults bounds the goal nodes a single breadth-first search emits.
const MaxBFSResults = 10

// ReasoningWalk searches for nodes of goalType around the start nodes.
//
// For every start node that exists, three strategies run: a bounded
// breadth-first search, a PageRank-guided search over nodes reachable
// within maxSteps hops and a weighted shortest-path search. Results of
// all strategies and start nodes are pooled, sorted descending by
// composite score and deduplicated by node id, keeping the best scored
// occurrence. Missing start nodes are skipped and maxSteps <= 0 yields no
// results.
//
// Each strategy checks ctx. When ctx is done the results gathered so far
// are returned together with the context error.
func (g *Graph) ReasoningWalk(ctx context.Context, startNodes []string, goalType model.NodeType, maxSteps int) ([]*model.WalkResult, error) {
	results := []*model.WalkResult{}
	if maxSteps <= 0 || len(startNodes) == 0 {
		return results, nil
	}

	s := g.snapshot()
	if len(s.ids) == 0 {
		return results, nil
	}

	var walkErr error
	for _, startID := range startNodes {
		start, ok := s.index[startID]
		if !ok {
			g.log.Debug("Skipping missing start node", slog.String("node_id", startID))
			continue
		}

		bfs, err := s.bfsSearch(ctx, start, goalType, maxSteps)
		results = append(results, bfs...)
		if err != nil {
			walkErr = err
			break
		}

		ranked, err := g.pageRankSearch(ctx, s, start, goalType, maxSteps)
		results = append(results, ranked...)
		if err != nil {
			walkErr = err
			break
		}

		shortest, err := s.shortestPathSearch(ctx, start, goalType, maxSteps)
		results = append(results, shortest...)
		if err != nil {
			walkErr = err
			break
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CompositeScore > results[j].CompositeScore
	})

	seen := make(map[string]bool, len(results))
	deduped := make([]*model.WalkResult, 0, len(results))
	for _, r := range results {
		if seen[r.NodeID] {
			continue
		}
		seen[r.NodeID] = true
		deduped = append(deduped, r)
	}

	g.log.Debug("Reasoning walk completed",
		slog.Int("start_nodes", len(startNodes)),
		slog.String("goal_type", string(goalType)),
		slog.Int("max_steps", maxSteps),
		slog.Int("results", len(deduped)),
	)

	return deduped, walkErr
}

// bfsSearch expands breadth first from start and emits goal nodes other
// than start with score 1/(depth+1).
func (s *snapshot) bfsSearch(ctx context.Context, start int, goalType model.NodeType, maxSteps int) ([]*model.WalkResult, error) {
	type entry struct {
		node  int
		depth int
		path  []int
	}

	results := []*model.WalkResult{}
	visited := map[int]bool{start: true}
	queue := []entry{{node: start, depth: 0, path: []int{start}}}

	for len(queue) > 0 && len(results) < MaxBFSResults {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		current := queue[0]
		queue = queue[1:]

		if current.node != start && s.types[current.node] == goalType {
			results = append(results, &model.WalkResult{
				NodeID:         s.ids[current.node],
				NodeType:       goalType,
				StartNode:      s.ids[start],
				Path:           s.pathIDs(current.path),
				Method:         model.WalkMethodBFS,
				CompositeScore: 1 / float64(current.depth+1),
				Depth:          current.depth,
			})
		}

		if current.depth >= maxSteps {
			continue
		}

		for _, a := range s.out[current.node] {
			if visited[a.to] {
				continue
			}
			visited[a.to] = true

			path := make([]int, len(current.path), len(current.path)+1)
			copy(path, current.path)
			queue = append(queue, entry{node: a.to, depth: current.depth + 1, path: append(path, a.to)})
		}
	}

	return results, nil
}

// pageRankSearch scores goal nodes reachable from start within maxSteps
// hops by importance/(hops+1). Unreachable nodes are not emitted.
func (g *Graph) pageRankSearch(ctx context.Context, s *snapshot, start int, goalType model.NodeType, maxSteps int) ([]*model.WalkResult, error) {
	importance, err := g.importance(ctx, s)
	if err != nil {
		return nil, err
	}

	hops := s.hops(start, maxSteps)
	results := []*model.WalkResult{}
	for node, typ := range s.types {
		if typ != goalType {
			continue
		}
		distance, reachable := hops[node]
		if !reachable {
			continue
		}
		results = append(results, &model.WalkResult{
			NodeID:         s.ids[node],
			NodeType:       goalType,
			StartNode:      s.ids[start],
			Method:         model.WalkMethodPageRank,
			CompositeScore: importance[node] / float64(distance+1),
			Depth:          distance,
			Importance:     importance[node],
		})
	}

	return results, nil
}

// shortestPathSearch finds the cheapest path to every goal node, treating
// edge weight as cost. Paths longer than maxSteps hops are dropped. The
// score is the summed edge weight divided by the number of nodes on the path.
func (s *snapshot) shortestPathSearch(ctx context.Context, start int, goalType model.NodeType, maxSteps int) ([]*model.WalkResult, error) {
	prev, dist, err := s.shortestPaths(ctx, start)
	if err != nil {
		return nil, err
	}

	results := []*model.WalkResult{}
	for node, typ := range s.types {
		if typ != goalType || math.IsInf(dist[node], 1) {
			continue
		}
		path := s.pathTo(prev, node)
		if len(path) > maxSteps+1 {
			continue
		}
		results = append(results, &model.WalkResult{
			NodeID:         s.ids[node],
			NodeType:       goalType,
			StartNode:      s.ids[start],
			Path:           path,
			Method:         model.WalkMethodShortestPath,
			CompositeScore: dist[node] / float64(len(path)),
			Depth:          len(path) - 1,
			PathWeight:     dist[node],
		})
	}

	return results, nil
}

func (s *snapshot) pathIDs(path []int) []string {
	ids := make([]string, len(path))
	for i, node := range path {
		ids[i] = s.ids[node]
	}
	return ids
}
