package vectorstore

import (
	"fmt"
	"hash/fnv"
	"regexp"
)

// Link extraction runs on raw chunk text, so links split across chunk
// boundaries are not detected.
var (
	// wikiLinkRe matches [[target]] and [[target|alias]].
	wikiLinkRe = regexp.MustCompile(`\[\[([^\]|]+)(?:\|([^\]]+))?\]\]`)

	// externalRefRe matches Markdown links [text](url).
	externalRefRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
)

// WikiLink is an Obsidian-style [[target]] or [[target|alias]] link.
type WikiLink struct {
	Target string `json:"target"`
	Alias  string `json:"alias"`
}

// ExternalRef is a Markdown [text](url) link.
type ExternalRef struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// ExtractWikiLinks returns all wiki-style links in text, in order of
// appearance. The alias defaults to the target when none is given.
func ExtractWikiLinks(text string) []WikiLink {
	matches := wikiLinkRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	links := make([]WikiLink, 0, len(matches))
	for _, m := range matches {
		link := WikiLink{Target: m[1], Alias: m[2]}
		if link.Alias == "" {
			link.Alias = link.Target
		}
		links = append(links, link)
	}
	return links
}

// ExtractExternalRefs returns all Markdown links in text, in order of
// appearance. Wiki links do not match because their targets contain no
// parenthesized URL part.
func ExtractExternalRefs(text string) []ExternalRef {
	matches := externalRefRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	refs := make([]ExternalRef, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, ExternalRef{Text: m[1], URL: m[2]})
	}
	return refs
}

// linkEdgeID builds the deterministic ID for a wiki-link edge. Re-indexing a
// document produces the same IDs, so edges upsert instead of accumulating.
func linkEdgeID(sourceID, target string) string {
	return fmt.Sprintf("%s_to_%s", sourceID, target)
}

// referenceID builds the deterministic ID for an external reference. URLs can
// contain characters unfit for IDs, so the URL is hashed.
func referenceID(sourceID, url string) string {
	h := fnv.New64a()
	h.Write([]byte(url))
	return fmt.Sprintf("%s_to_%d", sourceID, h.Sum64())
}

// linkContext returns the leading snippet of a chunk stored with each edge.
const linkContextLen = 200

func linkContext(chunk string) string {
	if len(chunk) > linkContextLen {
		return chunk[:linkContextLen]
	}
	return chunk
}
