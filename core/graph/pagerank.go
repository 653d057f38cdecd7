package graph

import (
	"context"
	"log/slog"
	"math"
)

const (
	// DefaultDampingFactor is the probability of following an edge.
	DefaultDampingFactor = 0.85
	// DefaultMaxIterations bounds the power iteration.
	DefaultMaxIterations = 100
	// DefaultConvergence is the maximum per-node change that counts as converged.
	DefaultConvergence = 1e-6
)

// PageRankOptions configures the PageRank computation.
type PageRankOptions struct {
	DampingFactor float64
	MaxIterations int
	Convergence   float64
}

// Validate replaces invalid values with defaults.
func (o *PageRankOptions) Validate() {
	if o.DampingFactor < 0 || o.DampingFactor > 1 {
		o.DampingFactor = DefaultDampingFactor
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Convergence <= 0 {
		o.Convergence = DefaultConvergence
	}
}

// DefaultPageRankOptions returns the standard options.
func DefaultPageRankOptions() *PageRankOptions {
	return &PageRankOptions{
		DampingFactor: DefaultDampingFactor,
		MaxIterations: DefaultMaxIterations,
		Convergence:   DefaultConvergence,
	}
}

// PageRankResult holds the importance of every node.
type PageRankResult struct {
	// Scores maps node id to importance. Scores sum to approximately 1.
	Scores     map[string]float64
	Iterations int
	Converged  bool
	MaxDiff    float64
}

type rankCache struct {
	version uint64
	scores  []float64
}

// PageRank computes weighted PageRank over the whole graph. Unlike the
// scores used by reasoning walks the result is never cached.
//
// A node passes its score to successors in proportion to edge weight,
// parallel edges of different types add up. Nodes without outgoing weight
// spread their score evenly over all nodes. The computation stops early
// when ctx is done and then reports Converged false.
func (g *Graph) PageRank(ctx context.Context, opts *PageRankOptions) *PageRankResult {
	s := g.snapshot()
	scores, iterations, converged, maxDiff := s.pageRank(ctx, opts, g.log)

	result := &PageRankResult{
		Scores:     make(map[string]float64, len(scores)),
		Iterations: iterations,
		Converged:  converged,
		MaxDiff:    maxDiff,
	}
	for i, score := range scores {
		result.Scores[s.ids[i]] = score
	}

	return result
}

// importance returns PageRank scores for the snapshot, reusing the cached
// scores while the graph version is unchanged.
func (g *Graph) importance(ctx context.Context, s *snapshot) ([]float64, error) {
	g.rankMu.Lock()
	cached := g.rankCache
	g.rankMu.Unlock()

	if cached != nil && cached.version == s.version {
		return cached.scores, nil
	}

	scores, _, _, _ := s.pageRank(ctx, nil, g.log)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.storeRank(s.version, scores)
	return scores, nil
}

func (g *Graph) storeRank(version uint64, scores []float64) {
	g.rankMu.Lock()
	defer g.rankMu.Unlock()

	if g.rankCache == nil || g.rankCache.version <= version {
		g.rankCache = &rankCache{version: version, scores: scores}
	}
}

func (s *snapshot) pageRank(ctx context.Context, opts *PageRankOptions, logger *slog.Logger) ([]float64, int, bool, float64) {
	n := len(s.ids)
	if n == 0 {
		return []float64{}, 0, true, 0
	}

	if opts == nil {
		opts = DefaultPageRankOptions()
	} else {
		opts.Validate()
	}
	d := opts.DampingFactor
	N := float64(n)

	outWeight := make([]float64, n)
	sinks := []int{}
	for u := range s.out {
		for _, a := range s.out[u] {
			outWeight[u] += a.sumWeight
		}
		if outWeight[u] == 0 {
			sinks = append(sinks, u)
		}
	}

	scores := make([]float64, n)
	next := make([]float64, n)
	for i := range scores {
		scores[i] = 1 / N
	}

	var iterations int
	var converged bool
	var maxDiff float64

	for iter := 0; iter < opts.MaxIterations; iter++ {
		if ctx.Err() != nil {
			return scores, iter, false, maxDiff
		}

		sinkMass := 0.0
		for _, u := range sinks {
			sinkMass += scores[u]
		}
		base := (1-d)/N + d*sinkMass/N
		for i := range next {
			next[i] = base
		}

		for u := range s.out {
			if outWeight[u] == 0 {
				continue
			}
			share := d * scores[u] / outWeight[u]
			for _, a := range s.out[u] {
				next[a.to] += share * a.sumWeight
			}
		}

		maxDiff = 0
		for i := range next {
			if diff := math.Abs(next[i] - scores[i]); diff > maxDiff {
				maxDiff = diff
			}
		}
		scores, next = next, scores
		iterations = iter + 1

		if maxDiff < opts.Convergence {
			converged = true
			break
		}
	}

	logger.Debug("PageRank completed",
		slog.Int("iterations", iterations),
		slog.Bool("converged", converged),
		slog.Float64("max_diff", maxDiff),
		slog.Int("node_count", n),
	)

	return scores, iterations, converged, maxDiff
}
