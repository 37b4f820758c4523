package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/notegraph/internal/notes"
)

var watchSkipInitial bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the notes vault and index changes as they happen",
	Long: `Watch runs an incremental index, then monitors the notes root for changes.
Modified Markdown files are re-indexed after a short debounce; deleted files
are removed from the store. Stop with Ctrl-C.

Examples:
  notegraph watch
  notegraph watch --skip-initial`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchSkipInitial, "skip-initial", false, "start watching without the initial incremental index")
}

func runWatch(cmd *cobra.Command, args []string) error {
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
	indexer := a.newIndexer(scanner)

	if !watchSkipInitial {
		result, err := indexer.Reindex(ctx, false)
		if err != nil {
			return err
		}
		fmt.Printf("Initial index: %d indexed, %d skipped, %d failed\n",
			result.Indexed, result.Skipped, result.Failed)
	}

	watcher := notes.NewWatcher(scanner, indexer, a.logger)
	watcher.OnEvent = func(op, rel string) {
		fmt.Printf("%s %s\n", op, rel)
	}

	fmt.Printf("Watching %s\n", scanner.Root())
	return watcher.Run(ctx)
}
