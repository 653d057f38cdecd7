package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/siherrmann/nexus/model"
	"github.com/spf13/cobra"
)

var ingestEntities bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Ingest files or directories",
	Long: `Chunk, embed and index files, and add them to the knowledge graph.

Directories are walked recursively. Code files (.py, .go, .c, .h, .cpp,
.hpp, .qml) also get their imports and definitions added to the graph.

Examples:
  nexus ingest docs/
  nexus ingest --entities README.md src/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestEntities, "entities", false, "Extract named entities (downloads a NER model on first use)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	n, _, logger, err := open()
	if err != nil {
		return err
	}
	defer n.Close()

	if ingestEntities {
		if err := n.EnableEntityExtraction(); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	files := 0
	chunks := 0
	for _, root := range args {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			doc, err := model.NewDocumentFromFile(path, model.Metadata{})
			if err != nil {
				return err
			}
			if doc.Content == "" {
				logger.Debug("Skipping empty file", slog.String("path", path))
				return nil
			}

			count, err := n.ProcessAndInsertDocument(ctx, doc)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", path, err)
			}
			files++
			chunks += count
			return nil
		})
		if err != nil {
			return err
		}
	}

	if err := n.SaveGraph(ctx); err != nil {
		return err
	}

	logger.Info("Ingestion complete", slog.Int("files", files), slog.Int("chunks", chunks))
	return nil
}
