package model

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects which channels a retrieval call runs.
type Mode string

const (
	ModeAll      Mode = "all"
	ModeSemantic Mode = "semantic"
	ModeFuzzy    Mode = "fuzzy"
	ModeGraph    Mode = "graph"
)

// ParseMode parses a mode name. "vector" and "lexical" are accepted as
// aliases of semantic and fuzzy, an empty string means all.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return ModeAll, nil
	case "semantic", "vector":
		return ModeSemantic, nil
	case "fuzzy", "lexical":
		return ModeFuzzy, nil
	case "graph":
		return ModeGraph, nil
	default:
		return "", &MalformedQueryError{Reason: fmt.Sprintf("unknown retrieval mode %q", s)}
	}
}

// Runs reports whether the mode dispatches the given channel.
// Graph is further gated on seed nodes being found.
func (m Mode) Runs(channel Strategy) bool {
	switch channel {
	case StrategyVector:
		return m == ModeAll || m == ModeSemantic
	case StrategyFuzzy:
		return m == ModeAll || m == ModeFuzzy
	case StrategyGraph:
		return m == ModeAll || m == ModeGraph
	}
	return false
}

// ChannelDiagnostic records how a single channel behaved during a retrieval call.
type ChannelDiagnostic struct {
	Channel  Strategy      `json:"channel"`
	Count    int           `json:"count"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Skipped  bool          `json:"skipped,omitempty"`
}

// Degraded reports whether the channel failed or timed out.
func (d ChannelDiagnostic) Degraded() bool {
	return d.Error != ""
}

// RetrievalResponse is the outcome of a hybrid retrieval call.
type RetrievalResponse struct {
	Query         string              `json:"query"`
	Mode          Mode                `json:"mode"`
	K             int                 `json:"k"`
	VectorResults []*RetrievalResult  `json:"vector_results"`
	FuzzyResults  []*RetrievalResult  `json:"fuzzy_results"`
	GraphResults  []*WalkResult       `json:"graph_results"`
	FusedResults  []*RetrievalResult  `json:"fused_results"`
	SeedNodes     []string            `json:"seed_nodes,omitempty"`
	Diagnostics   []ChannelDiagnostic `json:"diagnostics"`
	Duration      time.Duration       `json:"duration"`
}

// Diagnostic returns the diagnostic entry of a channel, if the channel ran.
func (r *RetrievalResponse) Diagnostic(channel Strategy) (ChannelDiagnostic, bool) {
	for _, d := range r.Diagnostics {
		if d.Channel == channel {
			return d, true
		}
	}
	return ChannelDiagnostic{}, false
}
