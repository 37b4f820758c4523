package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/notegraph/internal/vectorstore"
)

var (
	searchLimit     int
	searchThreshold float64
	searchDocType   string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over indexed notes",
	Long: `Search embeds the query and returns the closest note chunks by cosine
similarity.

Examples:
  # Top five matches
  notegraph search "kubernetes ingress debugging"

  # More results, daily notes only
  notegraph search --limit 10 --type daily "standup blockers"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 5, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "minimum cosine similarity, -1 to disable (default from config)")
	searchCmd.Flags().StringVar(&searchDocType, "type", "", "restrict to a document type (daily, weekly, meeting, learning, note)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.Join(args, " ")

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	embedding, err := a.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return fmt.Errorf("embedding query: %w", err)
	}

	threshold := effectiveThreshold(cmd.Flags().Changed("threshold"), searchThreshold, a.cfg.VectorStore.SearchThreshold)
	results, err := a.store.FindSimilar(ctx, embedding, vectorstore.SearchOptions{
		Limit:     searchLimit,
		Threshold: threshold,
		DocType:   searchDocType,
	})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%2d. [%.3f] %s\n", i+1, r.Similarity, r.DocID())
		fmt.Printf("    %s\n", snippet(r.Content, 160))
	}
	return nil
}

// effectiveThreshold resolves the search threshold: an explicit --threshold
// flag wins, otherwise the configured vector_store.search_threshold applies.
func effectiveThreshold(flagSet bool, flagValue, configValue float64) float32 {
	if flagSet {
		return float32(flagValue)
	}
	return float32(configValue)
}

// snippet flattens newlines and truncates for single-line display.
func snippet(s string, max int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
