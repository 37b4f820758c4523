package chunker

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	headingRe   = regexp.MustCompile(`(?m)^#{1,2}\s+(.+)$`)
	inlineTagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	dateRe      = regexp.MustCompile(`\b(\d{4})[-/](\d{2})[-/](\d{2})\b`)
)

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found, or the YAML is invalid,
// the entire content is returned as body.
func splitFrontmatter(content string) (map[string]interface{}, string) {
	const delim = "---"
	trimmed := strings.TrimLeft(content, "\n\r")

	if !strings.HasPrefix(trimmed, delim) {
		return nil, content
	}

	rest := trimmed[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return nil, content
	}

	yamlBlock := rest[:idx]
	body := strings.TrimLeft(rest[idx+1+len(delim):], "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlBlock), &fm); err != nil {
		return nil, content
	}

	return fm, body
}

// extractTitle returns the text of the first # or ## heading, or "".
func extractTitle(body string) string {
	if m := headingRe.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractTags collects tags from the frontmatter "tags" field (list or
// space/comma separated string) and inline #tag tokens, deduplicated and
// sorted.
func extractTags(body string, fm map[string]interface{}, explicit []string) []string {
	seen := make(map[string]struct{})
	add := func(tag string) {
		tag = strings.TrimSpace(strings.TrimPrefix(tag, "#"))
		if tag == "" {
			return
		}
		seen[tag] = struct{}{}
	}

	for _, t := range explicit {
		add(t)
	}

	if fm != nil {
		switch v := fm["tags"].(type) {
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case string:
			for _, s := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
				add(s)
			}
		}
	}

	for _, m := range inlineTagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// extractDates finds YYYY-MM-DD and YYYY/MM/DD forms, normalizes them to
// YYYY-MM-DD, deduplicates and sorts.
func extractDates(text string) []string {
	seen := make(map[string]struct{})
	for _, m := range dateRe.FindAllStringSubmatch(text, -1) {
		seen[m[1]+"-"+m[2]+"-"+m[3]] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// frontmatterFields namespaces custom frontmatter fields as
// frontmatter_<key>, excluding content, title and tags to avoid collisions
// with chunk metadata.
func frontmatterFields(fm map[string]interface{}) map[string]string {
	if len(fm) == 0 {
		return nil
	}
	fields := make(map[string]string)
	for key, value := range fm {
		switch key {
		case "content", "title", "tags":
			continue
		}
		fields["frontmatter_"+key] = fmt.Sprintf("%v", value)
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
