package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/notegraph/internal/config"
	"github.com/fyrsmithlabs/notegraph/internal/links"
)

var (
	linksApply         bool
	linksSkipBacklinks bool
)

var linksCmd = &cobra.Command{
	Use:   "links <note>",
	Short: "Analyze a note's relationships",
	Long: `Links shows a note's outgoing wiki links, backlinks, semantically related
chunks, and suggested connections that are not yet linked.

With --apply the suggestions are written into the note as wiki links under the
auto-generated references section, and a backlink is appended to each target.

Examples:
  notegraph links projects/roadmap.md
  notegraph links --apply daily/2025-03-10.md`,
	Args: cobra.ExactArgs(1),
	RunE: runLinks,
}

func init() {
	linksCmd.Flags().BoolVar(&linksApply, "apply", false, "materialize suggested links into the note file")
	linksCmd.Flags().BoolVar(&linksSkipBacklinks, "skip-backlinks", false, "with --apply, do not append backlinks to target notes")
}

func runLinks(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	noteID := args[0]

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	svc, err := a.newLinkService()
	if err != nil {
		return err
	}

	analysis, err := svc.AnalyzeRelationships(ctx, noteID)
	if err != nil {
		return err
	}

	fmt.Printf("Note: %s\n", analysis.NoteID)

	fmt.Printf("\nDirect links (%d):\n", len(analysis.DirectLinks))
	for _, e := range analysis.DirectLinks {
		fmt.Printf("  -> %s (%s)\n", e.TargetID, e.LinkType)
	}

	fmt.Printf("\nBacklinks (%d):\n", len(analysis.Backlinks))
	for _, e := range analysis.Backlinks {
		fmt.Printf("  <- %s\n", e.SourceID)
	}

	fmt.Printf("\nSemantically related (%d):\n", len(analysis.SemanticLinks))
	for _, c := range analysis.SemanticLinks {
		fmt.Printf("  [%.3f] %s\n", c.Similarity, c.ChunkID)
	}

	fmt.Printf("\nSuggested connections (%d):\n", len(analysis.SuggestedLinks))
	for _, s := range analysis.SuggestedLinks {
		fmt.Printf("  [%.3f] %s - %s\n", s.Score, s.NoteID, s.Reason)
		if s.Preview != "" {
			fmt.Printf("          %s\n", s.Preview)
		}
	}

	if !linksApply || len(analysis.SuggestedLinks) == 0 {
		return nil
	}

	directives := make([]links.Directive, 0, len(analysis.SuggestedLinks))
	for _, s := range analysis.SuggestedLinks {
		directives = append(directives, links.Directive{
			TargetID:    s.NoteID,
			AddWikiLink: true,
		})
	}

	notePath := filepath.Join(config.ExpandPath(a.cfg.Notes.RootDir), analysis.NoteID)
	if err := svc.UpdateObsidianLinks(ctx, notePath, directives, links.UpdateOptions{
		SkipBacklinks: linksSkipBacklinks,
	}); err != nil {
		return fmt.Errorf("applying suggestions: %w", err)
	}

	fmt.Printf("\nApplied %d suggested link(s) to %s\n", len(directives), notePath)
	return nil
}
