package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	indexFull   bool
	indexDryRun bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the notes vault into the vector store",
	Long: `Index scans the notes root and writes chunk embeddings, wiki-link edges and
external references into the vector store.

By default only documents modified since their last indexing are processed.

Examples:
  # Incremental update
  notegraph index

  # Rebuild everything from scratch
  notegraph index --full

  # Show what would be indexed without touching the store
  notegraph index --dry-run`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexFull, "full", false, "clear all collections and re-index every document")
	indexCmd.Flags().BoolVar(&indexDryRun, "dry-run", false, "list documents that would be indexed without writing")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	scanner, err := a.newScanner()
	if err != nil {
		return err
	}

	if indexDryRun {
		docs, err := scanner.Scan(ctx)
		if err != nil {
			return err
		}
		pending := 0
		for _, doc := range docs {
			if !indexFull && !a.store.NeedsUpdate(ctx, doc.ID, doc.ModifiedTime) {
				continue
			}
			pending++
			fmt.Printf("%-8s %s\n", doc.Type, doc.ID)
		}
		fmt.Printf("\n%d of %d documents would be indexed\n", pending, len(docs))
		return nil
	}

	result, err := a.newIndexer(scanner).Reindex(ctx, indexFull)
	if err != nil {
		return err
	}

	fmt.Printf("Scanned: %d  Indexed: %d  Skipped: %d  Failed: %d\n",
		result.Scanned, result.Indexed, result.Skipped, result.Failed)
	if result.Failed > 0 {
		return fmt.Errorf("%d document(s) failed to index", result.Failed)
	}
	return nil
}
