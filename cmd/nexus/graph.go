package main

import (
	"github.com/siherrmann/nexus/model"
	"github.com/spf13/cobra"
)

var (
	walkGoal     string
	walkSteps    int
	hotspotLimit int
)

var walkCmd = &cobra.Command{
	Use:   "walk <node-id>...",
	Short: "Run a reasoning walk over the knowledge graph",
	Long: `Walk from the start nodes towards nodes of the goal type using
breadth first search, personalized PageRank and shortest paths.

Examples:
  nexus walk file::src/auth.py
  nexus walk --goal=module --steps=3 document::1234`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWalk,
}

var hotspotsCmd = &cobra.Command{
	Use:   "hotspots",
	Short: "List the most central nodes of the knowledge graph",
	RunE:  runHotspots,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print knowledge graph statistics",
	RunE:  runStats,
}

func init() {
	walkCmd.Flags().StringVar(&walkGoal, "goal", string(model.NodeTypeDocument), "Goal node type")
	walkCmd.Flags().IntVar(&walkSteps, "steps", 0, "Maximum steps (default: retrieval.graph.max_steps)")
	hotspotsCmd.Flags().IntVar(&hotspotLimit, "limit", 10, "Maximum hotspots to return")
	rootCmd.AddCommand(walkCmd, hotspotsCmd, statsCmd)
}

func runWalk(cmd *cobra.Command, args []string) error {
	n, _, _, err := open()
	if err != nil {
		return err
	}
	defer n.Close()

	if walkSteps <= 0 {
		walkSteps = n.QueryConfig().GraphMaxSteps
	}

	ctx, cancel := signalContext()
	defer cancel()

	results, err := n.Walk(ctx, args, model.NodeType(walkGoal), walkSteps)
	if err != nil {
		return err
	}
	return printJSON(results)
}

func runHotspots(cmd *cobra.Command, args []string) error {
	n, _, _, err := open()
	if err != nil {
		return err
	}
	defer n.Close()

	ctx, cancel := signalContext()
	defer cancel()

	hotspots, err := n.Hotspots(ctx, hotspotLimit)
	if err != nil {
		return err
	}
	return printJSON(hotspots)
}

func runStats(cmd *cobra.Command, args []string) error {
	n, _, _, err := open()
	if err != nil {
		return err
	}
	defer n.Close()

	return printJSON(n.GraphStatistics())
}
