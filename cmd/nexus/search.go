package main

import (
	"strings"

	"github.com/siherrmann/nexus/core/generation"
	"github.com/siherrmann/nexus/model"
	"github.com/spf13/cobra"
)

var (
	searchMode string
	searchK    int
	askTask    string
	askPilot   string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a hybrid retrieval query",
	Long: `Search the vector, fuzzy and graph channels and print the fused results as JSON.

Examples:
  nexus search "session token refresh"
  nexus search --mode=fuzzy --k=5 "sesion tokn"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the retrieved context",
	Long: `Retrieve context for the question and generate an answer. Without
llm.api_keys a demo answer is returned.

Examples:
  nexus ask "How are session tokens refreshed?"
  nexus ask --task=debugging --pilot=alice "Why does login fail?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	searchCmd.Flags().StringVar(&searchMode, "mode", string(model.ModeAll), "Channels to run (all, semantic, fuzzy, graph)")
	searchCmd.Flags().IntVar(&searchK, "k", 0, "Number of results (default: retrieval.k)")
	askCmd.Flags().IntVar(&searchK, "k", 0, "Number of context results (default: retrieval.k)")
	askCmd.Flags().StringVar(&askTask, "task", string(generation.TaskGeneral), "Task type (general, code, documentation, debugging, architecture)")
	askCmd.Flags().StringVar(&askPilot, "pilot", "", "Pilot id for conversation history")
	rootCmd.AddCommand(searchCmd, askCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	mode, err := model.ParseMode(searchMode)
	if err != nil {
		return err
	}

	n, _, _, err := open()
	if err != nil {
		return err
	}
	defer n.Close()

	ctx, cancel := signalContext()
	defer cancel()

	response, err := n.Retrieve(ctx, strings.Join(args, " "), mode, searchK)
	if err != nil {
		return err
	}
	return printJSON(response)
}

func runAsk(cmd *cobra.Command, args []string) error {
	taskType, err := generation.ParseTaskType(askTask)
	if err != nil {
		return err
	}

	n, _, _, err := open()
	if err != nil {
		return err
	}
	defer n.Close()

	ctx, cancel := signalContext()
	defer cancel()

	answer, err := n.Answer(ctx, strings.Join(args, " "), searchK, taskType, askPilot)
	if err != nil {
		return err
	}
	if askPilot != "" {
		if err := n.SaveGraph(ctx); err != nil {
			return err
		}
	}
	return printJSON(answer)
}
