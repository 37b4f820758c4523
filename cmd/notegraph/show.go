package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <note>",
	Short: "Show a note's indexed chunk structure",
	Long: `Show prints the stored chunks of a note in order, with their metadata, as
they exist in the vector store.

Examples:
  notegraph show learning/go-generics.md`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	noteID := args[0]

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	chunks, err := a.store.GetNoteChunks(ctx, noteID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		fmt.Printf("No indexed content for %s\n", noteID)
		return nil
	}

	fmt.Printf("Note: %s (%d chunks, %d-dim embeddings)\n", noteID, len(chunks), a.store.Dimension())
	for _, c := range chunks {
		fmt.Printf("\n--- %s (%d chars)\n", c.ChunkID, len(c.Content))
		if title := c.Metadata["title"]; title != "" {
			fmt.Printf("    title: %s\n", title)
		}
		if docType := c.Metadata["doc_type"]; docType != "" {
			fmt.Printf("    type: %s\n", docType)
		}
		fmt.Printf("    %s\n", snippet(c.Content, 200))
	}
	return nil
}
