package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	t.Run("Parses canonical names and aliases", func(t *testing.T) {
		cases := map[string]Mode{
			"":         ModeAll,
			"all":      ModeAll,
			"semantic": ModeSemantic,
			"vector":   ModeSemantic,
			"FUZZY":    ModeFuzzy,
			"lexical":  ModeFuzzy,
			"graph":    ModeGraph,
		}
		for input, expected := range cases {
			mode, err := ParseMode(input)
			require.NoError(t, err, "Expected %q to parse", input)
			assert.Equal(t, expected, mode)
		}
	})

	t.Run("Rejects unknown modes as malformed query", func(t *testing.T) {
		_, err := ParseMode("telepathy")

		require.Error(t, err)
		assert.True(t, IsMalformedQuery(err))
	})
}

func TestModeRuns(t *testing.T) {
	t.Run("All runs every channel", func(t *testing.T) {
		assert.True(t, ModeAll.Runs(StrategyVector))
		assert.True(t, ModeAll.Runs(StrategyFuzzy))
		assert.True(t, ModeAll.Runs(StrategyGraph))
	})

	t.Run("Single channel modes run only their channel", func(t *testing.T) {
		assert.True(t, ModeSemantic.Runs(StrategyVector))
		assert.False(t, ModeSemantic.Runs(StrategyFuzzy))
		assert.False(t, ModeFuzzy.Runs(StrategyGraph))
		assert.True(t, ModeGraph.Runs(StrategyGraph))
		assert.False(t, ModeGraph.Runs(StrategyVector))
	})
}

func TestErrors(t *testing.T) {
	t.Run("Backend unavailable unwraps its cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := error(&BackendUnavailableError{Channel: StrategyFuzzy, Err: cause})

		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "fuzzy")
	})

	t.Run("Malformed query is detectable through wrapping", func(t *testing.T) {
		err := &MalformedQueryError{Reason: "empty", Err: ErrEmptyQuery}
		wrapped := errors.Join(errors.New("retrieve"), err)

		assert.True(t, IsMalformedQuery(wrapped))
		assert.ErrorIs(t, wrapped, ErrEmptyQuery)
	})

	t.Run("Unknown node names the node", func(t *testing.T) {
		var target *UnknownNodeError
		err := error(&UnknownNodeError{NodeID: "missing_node"})

		require.True(t, errors.As(err, &target))
		assert.Equal(t, "missing_node", target.NodeID)
	})
}

func TestRetrievalResponseDiagnostic(t *testing.T) {
	t.Run("Finds the diagnostic of a channel", func(t *testing.T) {
		resp := &RetrievalResponse{Diagnostics: []ChannelDiagnostic{
			{Channel: StrategyVector, Count: 2},
			{Channel: StrategyFuzzy, Error: "down"},
		}}

		d, ok := resp.Diagnostic(StrategyFuzzy)
		require.True(t, ok)
		assert.True(t, d.Degraded())

		_, ok = resp.Diagnostic(StrategyGraph)
		assert.False(t, ok)
	})
}
