package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/siherrmann/nexus/core/fusion"
	"github.com/siherrmann/nexus/model"
	"golang.org/x/sync/errgroup"
)

// Orchestrator runs the vector, fuzzy and graph channels of a query
// concurrently and fuses their rankings.
// Any of the collaborators may be nil, the channel then degrades.
type Orchestrator struct {
	vector VectorSearcher
	fuzzy  FuzzySearcher
	graph  GraphWalker
	config model.QueryConfig
	log    *slog.Logger
}

// NewOrchestrator creates a new orchestrator. Zero values in the config are
// filled from model.DefaultQueryConfig.
func NewOrchestrator(vector VectorSearcher, fuzzy FuzzySearcher, graph GraphWalker, config model.QueryConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		vector: vector,
		fuzzy:  fuzzy,
		graph:  graph,
		config: withDefaults(config),
		log:    logger,
	}
}

func withDefaults(config model.QueryConfig) model.QueryConfig {
	defaults := model.DefaultQueryConfig()
	if config.TopK <= 0 {
		config.TopK = defaults.TopK
	}
	if config.OverFetchFactor <= 0 {
		config.OverFetchFactor = defaults.OverFetchFactor
	}
	if config.RRFK <= 0 {
		config.RRFK = defaults.RRFK
	}
	if config.Weights == nil {
		config.Weights = defaults.Weights
	}
	if config.GraphMaxSteps == 0 {
		config.GraphMaxSteps = defaults.GraphMaxSteps
	}
	if config.GraphGoalType == "" {
		config.GraphGoalType = defaults.GraphGoalType
	}
	if config.MaxSeedNodes <= 0 {
		config.MaxSeedNodes = defaults.MaxSeedNodes
	}
	if config.SeedMinOverlap <= 0 {
		config.SeedMinOverlap = defaults.SeedMinOverlap
	}
	if config.SeedMinTokenLength <= 0 {
		config.SeedMinTokenLength = defaults.SeedMinTokenLength
	}
	if config.ChannelTimeout <= 0 {
		config.ChannelTimeout = defaults.ChannelTimeout
	}
	if config.MaxQueryLength <= 0 {
		config.MaxQueryLength = defaults.MaxQueryLength
	}
	return config
}

// Config returns the effective query configuration.
func (o *Orchestrator) Config() model.QueryConfig {
	return o.config
}

// Validate rejects empty and overlong queries with a MalformedQueryError.
func (o *Orchestrator) Validate(query string) error {
	if strings.TrimSpace(query) == "" {
		return &model.MalformedQueryError{Reason: "empty query", Err: model.ErrEmptyQuery}
	}
	if length := utf8.RuneCountInString(query); length > o.config.MaxQueryLength {
		return &model.MalformedQueryError{
			Reason: fmt.Sprintf("%d characters, maximum is %d", length, o.config.MaxQueryLength),
			Err:    model.ErrQueryTooLong,
		}
	}
	return nil
}

// Retrieve answers a query in the given mode. Each channel fetches
// FetchSize candidates; fused and graph results are cut to k.
// A failing or slow channel never fails the call, it is recorded in the
// diagnostics and contributes an empty list. Only a MalformedQueryError is returned.
func (o *Orchestrator) Retrieve(ctx context.Context, query string, mode model.Mode, k int) (*model.RetrievalResponse, error) {
	start := time.Now()

	mode, err := model.ParseMode(string(mode))
	if err != nil {
		retrievalRequests.WithLabelValues("invalid", "rejected").Inc()
		return nil, err
	}
	if err := o.Validate(query); err != nil {
		retrievalRequests.WithLabelValues(string(mode), "rejected").Inc()
		return nil, err
	}

	config := o.config
	if k > 0 {
		config.TopK = k
	}
	k = config.TopK
	fetch := config.FetchSize()

	response := &model.RetrievalResponse{
		Query:         query,
		Mode:          mode,
		K:             k,
		VectorResults: []*model.RetrievalResult{},
		FuzzyResults:  []*model.RetrievalResult{},
		GraphResults:  []*model.WalkResult{},
		FusedResults:  []*model.RetrievalResult{},
		Diagnostics:   []model.ChannelDiagnostic{},
	}

	runGraph := false
	if mode.Runs(model.StrategyGraph) && o.graph != nil {
		response.SeedNodes = o.graph.FindSeeds(query, config.MaxSeedNodes, config.SeedMinOverlap, config.SeedMinTokenLength)
		runGraph = len(response.SeedNodes) > 0
	}

	var vectorDiag, fuzzyDiag, graphDiag model.ChannelDiagnostic
	var vectorResults, fuzzyResults []*model.RetrievalResult
	var g errgroup.Group

	if mode.Runs(model.StrategyVector) {
		g.Go(func() error {
			vectorResults, vectorDiag = runChannel(ctx, o, model.StrategyVector, func(ctx context.Context) ([]*model.RetrievalResult, error) {
				if o.vector == nil {
					return nil, fmt.Errorf("no vector searcher configured")
				}
				return o.vector.Search(ctx, query, fetch)
			})
			return nil
		})
	}

	if mode.Runs(model.StrategyFuzzy) {
		g.Go(func() error {
			fuzzyResults, fuzzyDiag = runChannel(ctx, o, model.StrategyFuzzy, func(ctx context.Context) ([]*model.RetrievalResult, error) {
				if o.fuzzy == nil {
					return nil, fmt.Errorf("no fuzzy searcher configured")
				}
				return o.fuzzy.Search(ctx, query, fetch)
			})
			return nil
		})
	}

	if runGraph {
		g.Go(func() error {
			response.GraphResults, graphDiag = runChannel(ctx, o, model.StrategyGraph, func(ctx context.Context) ([]*model.WalkResult, error) {
				return o.graph.ReasoningWalk(ctx, response.SeedNodes, config.GraphGoalType, config.GraphMaxSteps)
			})
			return nil
		})
	}

	_ = g.Wait()

	vectorSet := model.NewRankedResultSet(model.StrategyVector, vectorResults)
	fuzzySet := model.NewRankedResultSet(model.StrategyFuzzy, fuzzyResults)
	response.VectorResults = vectorSet.Results
	response.FuzzyResults = fuzzySet.Results
	if len(response.GraphResults) > k {
		response.GraphResults = response.GraphResults[:k]
	}

	if mode.Runs(model.StrategyVector) {
		response.Diagnostics = append(response.Diagnostics, vectorDiag)
	}
	if mode.Runs(model.StrategyFuzzy) {
		response.Diagnostics = append(response.Diagnostics, fuzzyDiag)
	}
	if runGraph {
		response.Diagnostics = append(response.Diagnostics, graphDiag)
	} else if mode.Runs(model.StrategyGraph) {
		response.Diagnostics = append(response.Diagnostics, model.ChannelDiagnostic{Channel: model.StrategyGraph, Skipped: true})
	}

	if mode == model.ModeAll {
		lists := []*model.RankedResultSet{vectorSet, fuzzySet}
		if config.FuseGraph() {
			graphResults := make([]*model.RetrievalResult, 0, len(response.GraphResults))
			for _, walk := range response.GraphResults {
				graphResults = append(graphResults, walk.ToRetrievalResult())
			}
			lists = append(lists, model.NewRankedResultSet(model.StrategyGraph, graphResults))
		}

		fused := fusion.Fuse(lists, config.Weights, config.RRFK)
		if len(fused) > k {
			fused = fused[:k]
		}
		response.FusedResults = fused
		fusedResults.Observe(float64(len(fused)))
	}

	response.Duration = time.Since(start)
	retrievalRequests.WithLabelValues(string(mode), "ok").Inc()

	o.log.Debug("Retrieved",
		slog.String("mode", string(mode)),
		slog.Int("k", k),
		slog.Int("vector", len(response.VectorResults)),
		slog.Int("fuzzy", len(response.FuzzyResults)),
		slog.Int("graph", len(response.GraphResults)),
		slog.Int("fused", len(response.FusedResults)),
		slog.Duration("duration", response.Duration),
	)

	return response, nil
}

type channelOutcome[T any] struct {
	results []T
	err     error
}

// runChannel calls a channel under the channel timeout and converts any
// failure into an empty result list plus a diagnostic entry.
func runChannel[T any](ctx context.Context, o *Orchestrator, channel model.Strategy, call func(context.Context) ([]T, error)) ([]T, model.ChannelDiagnostic) {
	start := time.Now()
	diagnostic := model.ChannelDiagnostic{Channel: channel}

	channelCtx, cancel := context.WithTimeout(ctx, o.config.ChannelTimeout)
	defer cancel()

	done := make(chan channelOutcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- channelOutcome[T]{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		results, err := call(channelCtx)
		done <- channelOutcome[T]{results: results, err: err}
	}()

	var outcome channelOutcome[T]
	select {
	case outcome = <-done:
	case <-channelCtx.Done():
		outcome.err = channelCtx.Err()
	}

	diagnostic.Duration = time.Since(start)
	if outcome.err == nil {
		if outcome.results == nil {
			outcome.results = []T{}
		}
		diagnostic.Count = len(outcome.results)
		channelLatency.WithLabelValues(string(channel), "ok").Observe(diagnostic.Duration.Seconds())
		return outcome.results, diagnostic
	}

	reason := "error"
	var err error
	if errors.Is(outcome.err, context.DeadlineExceeded) && channelCtx.Err() != nil {
		reason = "timeout"
		diagnostic.TimedOut = true
		err = &model.ChannelTimeoutError{Channel: channel, Timeout: o.config.ChannelTimeout}
	} else {
		if strings.HasPrefix(outcome.err.Error(), "panic: ") {
			reason = "panic"
		}
		err = &model.BackendUnavailableError{Channel: channel, Err: outcome.err}
	}
	diagnostic.Error = err.Error()

	channelLatency.WithLabelValues(string(channel), reason).Observe(diagnostic.Duration.Seconds())
	channelDegraded.WithLabelValues(string(channel), reason).Inc()
	o.log.Warn("Retrieval channel degraded",
		slog.String("channel", string(channel)),
		slog.String("error", diagnostic.Error),
		slog.Duration("duration", diagnostic.Duration),
	)

	return []T{}, diagnostic
}
