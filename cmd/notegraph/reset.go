package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/notegraph/internal/vectorstore"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all indexed data",
	Long: `Reset clears every collection in the vector store. Note files on disk are
untouched; run "notegraph index --full" afterwards to rebuild.

Examples:
  notegraph reset --force`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "skip the confirmation prompt")
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	count := a.store.Count(vectorstore.CollectionNotes)
	if !resetForce {
		fmt.Printf("This deletes %d indexed chunk(s) and all link data. Continue? [y/N] ", count)
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := a.store.ClearAllCollections(ctx); err != nil {
		return err
	}

	fmt.Println("Vector store cleared.")
	return nil
}
