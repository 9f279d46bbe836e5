// Package relationships extracts heuristic import/link relationships
// between project files. Extraction is regex-based (goldmark AST for
// markdown); there is no semantic resolution, so edges may be missed or
// spurious.
package relationships

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// FileRelations holds the outgoing and incoming edges for one file.
type FileRelations struct {
	// Imports are the raw import/require/link targets found in the file
	Imports []string `json:"imports"`
	// ImportedBy lists project files whose imports resolve to this file
	ImportedBy []string `json:"importedBy,omitempty"`
}

// Graph is the project relationship graph. It is cached wholesale as the
// relationships blob and replaced atomically on every update.
type Graph struct {
	GeneratedAt string                    `json:"generatedAt"`
	Files       map[string]*FileRelations `json:"files"`
}

// NewGraph returns an empty graph stamped with the current time.
func NewGraph() *Graph {
	return &Graph{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Files:       make(map[string]*FileRelations),
	}
}

// Import statement patterns per language family. Heuristic on purpose.
var (
	// import x from './y'; import './y'; export ... from './y'
	jsImportPattern = regexp.MustCompile(`(?m)^\s*(?:import|export)\b[^'"\n]*['"]([^'"]+)['"]`)
	// require('./y')
	jsRequirePattern = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	// single-line and block-form Go imports
	goImportPattern = regexp.MustCompile(`(?m)^\s*(?:import\s+(?:\w+\s+|\.\s+)?)?"([^"]+)"`)
	goImportBlock   = regexp.MustCompile(`(?s)import\s*\((.*?)\)`)
	// import x / from x import y
	pyImportPattern = regexp.MustCompile(`(?m)^\s*(?:import\s+([\w.]+)|from\s+([\w.]+)\s+import)`)
)

// Analyzer extracts relationships for a set of files under one root.
type Analyzer struct {
	root string
}

// NewAnalyzer creates an Analyzer for the given project root.
func NewAnalyzer(root string) *Analyzer {
	return &Analyzer{root: root}
}

// Analyze builds a Graph covering exactly the given relative paths.
// Unreadable files get an empty entry rather than failing the run; reverse
// edges are resolved only among allFiles (the authoritative project list),
// so edges never dangle into files outside the export.
func (a *Analyzer) Analyze(files []string, allFiles []string) *Graph {
	g := NewGraph()

	for _, rel := range files {
		g.Files[rel] = &FileRelations{Imports: a.extractImports(rel)}
	}

	resolveReverseEdges(g, allFiles)
	return g
}

// extractImports reads one file and pulls import targets by extension.
func (a *Analyzer) extractImports(rel string) []string {
	content, err := os.ReadFile(filepath.Join(a.root, filepath.FromSlash(rel)))
	if err != nil {
		return []string{}
	}

	text := string(content)
	seen := make(map[string]bool)
	var imports []string
	add := func(target string) {
		if target != "" && !seen[target] {
			seen[target] = true
			imports = append(imports, target)
		}
	}

	switch strings.ToLower(filepath.Ext(rel)) {
	case ".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs":
		for _, m := range jsImportPattern.FindAllStringSubmatch(text, -1) {
			add(m[1])
		}
		for _, m := range jsRequirePattern.FindAllStringSubmatch(text, -1) {
			add(m[1])
		}
	case ".go":
		for _, block := range goImportBlock.FindAllStringSubmatch(text, -1) {
			for _, m := range goImportPattern.FindAllStringSubmatch(block[1], -1) {
				add(m[1])
			}
		}
		for _, m := range goImportPattern.FindAllStringSubmatch(text, -1) {
			add(m[1])
		}
	case ".py":
		for _, m := range pyImportPattern.FindAllStringSubmatch(text, -1) {
			if m[1] != "" {
				add(m[1])
			} else {
				add(m[2])
			}
		}
	case ".md", ".markdown":
		for _, target := range extractMarkdownLinks(content) {
			add(target)
		}
	}

	if imports == nil {
		imports = []string{}
	}
	return imports
}

// resolveReverseEdges fills ImportedBy by resolving relative import targets
// against the known project files.
func resolveReverseEdges(g *Graph, allFiles []string) {
	known := make(map[string]bool, len(allFiles))
	for _, f := range allFiles {
		known[f] = true
	}

	for source, rels := range g.Files {
		for _, target := range rels.Imports {
			resolved := resolveTarget(source, target, known)
			if resolved == "" || resolved == source {
				continue
			}
			entry := g.Files[resolved]
			if entry == nil {
				// Target is in the project but was not re-analyzed this
				// round; reverse edges for it get merged by the caller.
				continue
			}
			entry.ImportedBy = appendUnique(entry.ImportedBy, source)
		}
	}

	for _, rels := range g.Files {
		sort.Strings(rels.ImportedBy)
	}
}

// resolveTarget maps a raw import target to a known project-relative path.
// Only relative targets ("./x", "../y") are resolved; bare module and
// stdlib imports stay unresolved.
func resolveTarget(source, target string, known map[string]bool) string {
	if !strings.HasPrefix(target, ".") {
		return ""
	}

	base := filepath.ToSlash(filepath.Join(filepath.Dir(source), target))
	candidates := []string{
		base,
		base + ".js", base + ".jsx", base + ".ts", base + ".tsx",
		base + ".mjs", base + ".go", base + ".py", base + ".md",
		base + "/index.js", base + "/index.ts",
	}
	for _, c := range candidates {
		if known[c] {
			return c
		}
	}
	return ""
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// Merge folds an updated partial graph over a previous full graph:
// entries for re-analyzed files are replaced, deleted paths are dropped,
// and everything else carries over. Reverse edges are recomputed from the
// merged forward edges so they stay consistent.
func Merge(prev, updated *Graph, deleted []string) *Graph {
	merged := NewGraph()

	if prev != nil {
		for path, rels := range prev.Files {
			merged.Files[path] = &FileRelations{Imports: rels.Imports}
		}
	}
	for _, path := range deleted {
		delete(merged.Files, path)
	}
	if updated != nil {
		for path, rels := range updated.Files {
			merged.Files[path] = &FileRelations{Imports: rels.Imports}
		}
	}

	all := make([]string, 0, len(merged.Files))
	for path := range merged.Files {
		all = append(all, path)
	}
	sort.Strings(all)
	resolveReverseEdges(merged, all)

	return merged
}

// Summary returns a short human-readable description for logging.
func (g *Graph) Summary() string {
	edges := 0
	for _, rels := range g.Files {
		edges += len(rels.Imports)
	}
	return fmt.Sprintf("%d files, %d import edges", len(g.Files), edges)
}
