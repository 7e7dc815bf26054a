// Package extractor turns a parsed note into the set of edges it defines:
// typed links from front matter, wiki-links and markdown links from the
// body. It also implements the optional wiki-link-to-markdown-link
// rewrite pass.
package extractor

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mwaldstein/qipu/internal/note"
)

// Source classifies where an edge came from.
type Source string

const (
	SourceTyped   Source = "typed"
	SourceInline  Source = "inline"
	SourceVirtual Source = "virtual"
)

// Edge is a directed relationship extracted from one note. Position is
// only meaningful for typed edges (0-based order within the front
// matter's links array); inline edges carry -1.
type Edge struct {
	From     string
	To       string
	LinkType string
	Source   Source
	Position int
}

var (
	wikiLinkPattern = regexp.MustCompile(`\[\[([^\]|]+)(?:\|[^\]]+)?\]\]`)
	mdLinkPattern   = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+)\)`)
)

// Extract returns the deduplicated edge list for n, plus the set of raw
// targets that did not resolve to a known id. validIDs is the set of
// every id currently known to the store; pathToID maps a note's absolute
// filesystem path to its id, used to resolve relative markdown links.
// noteDir is the directory n's file lives in, used for relative-path
// resolution; it may be empty if n has not been saved yet.
func Extract(n *note.Note, validIDs map[string]struct{}, pathToID map[string]string, noteDir string) (edges []Edge, unresolved []string) {
	seen := make(map[string]struct{}) // key: to|linkType, preserves frontmatter precedence

	addEdge := func(e Edge) {
		key := e.To + "|" + e.LinkType
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		edges = append(edges, e)
	}

	for i, link := range n.Links {
		if _, ok := validIDs[link.To]; !ok {
			unresolved = append(unresolved, link.To)
			continue
		}
		addEdge(Edge{From: n.ID, To: link.To, LinkType: link.LinkType, Source: SourceTyped, Position: i})
	}

	for _, m := range wikiLinkPattern.FindAllStringSubmatch(n.Body, -1) {
		to := strings.TrimSpace(m[1])
		if to == "" {
			continue
		}
		if _, ok := validIDs[to]; !ok {
			unresolved = append(unresolved, to)
			continue
		}
		addEdge(Edge{From: n.ID, To: to, LinkType: "related", Source: SourceInline, Position: -1})
	}

	for _, m := range mdLinkPattern.FindAllStringSubmatch(n.Body, -1) {
		target := strings.TrimSpace(m[2])
		if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") || strings.HasPrefix(target, "#") {
			continue
		}
		to, ok := resolveMarkdownTarget(target, validIDs, pathToID, noteDir)
		if !ok {
			unresolved = append(unresolved, target)
			continue
		}
		addEdge(Edge{From: n.ID, To: to, LinkType: "related", Source: SourceInline, Position: -1})
	}

	return edges, unresolved
}

// resolveMarkdownTarget resolves a markdown link target to a note id.
//
// The id-extraction step matches against the known id set rather than
// slicing on a fixed number of hyphens: ids may themselves contain
// hyphens past the "qp-" prefix, so any delimiter-counting scheme
// misparses them. Instead, find the "qp-" occurrence and try the longest
// valid id that is a prefix of the remaining text.
func resolveMarkdownTarget(target string, validIDs map[string]struct{}, pathToID map[string]string, noteDir string) (string, bool) {
	if idx := strings.Index(target, "qp-"); idx != -1 {
		rest := target[idx:]
		if id, ok := longestKnownIDPrefix(rest, validIDs); ok {
			return id, true
		}
		return strings.TrimSuffix(rest, ".md"), false
	}
	if strings.HasSuffix(target, ".md") && noteDir != "" {
		resolved := filepath.Clean(filepath.Join(noteDir, target))
		if id, ok := pathToID[resolved]; ok {
			return id, true
		}
	}
	return "", false
}

func longestKnownIDPrefix(s string, validIDs map[string]struct{}) (string, bool) {
	best := ""
	for id := range validIDs {
		if strings.HasPrefix(s, id) && len(id) > len(best) {
			best = id
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// RewriteWikiLinks converts every `[[id]]` and `[[id|label]]` occurrence
// in n.Body to a Markdown `[label](id.md)` link, in place. Returns
// whether any rewrite happened.
func RewriteWikiLinks(n *note.Note) bool {
	rewritePattern := regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	modified := false
	lastEnd := 0
	var b strings.Builder

	for _, loc := range rewritePattern.FindAllStringSubmatchIndex(n.Body, -1) {
		content := strings.TrimSpace(n.Body[loc[2]:loc[3]])
		if content == "" {
			continue
		}
		id, label := content, content
		if idx := strings.Index(content, "|"); idx != -1 {
			id = strings.TrimSpace(content[:idx])
			label = strings.TrimSpace(content[idx+1:])
		}
		if id == "" {
			continue
		}
		b.WriteString(n.Body[lastEnd:loc[0]])
		b.WriteString("[" + label + "](" + id + ".md)")
		lastEnd = loc[1]
		modified = true
	}
	if modified {
		b.WriteString(n.Body[lastEnd:])
		n.Body = b.String()
	}
	return modified
}
