// Package generate renders the selected project files into a single
// markdown or plain-text document: header, ASCII project tree, per-file
// content sections, and an optional relationships appendix.
package generate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/codepack/internal/cache"
	"github.com/harrison/codepack/internal/logger"
	"github.com/harrison/codepack/internal/relationships"
)

// readConcurrency bounds simultaneous file reads. This is I/O fan-out, not
// CPU parallelism; one failed read never aborts its siblings.
const readConcurrency = 10

// Options configures a single generation pass.
type Options struct {
	// Format is "markdown" or "text"
	Format string
	// Title overrides the document title (defaults to the root's base name)
	Title string
	// Changes annotates files from the current run's ChangeSet
	Changes *cache.ChangeSet
	// HighlightNew marks files from Changes.New in the output
	HighlightNew bool
	// Relationships appends an import-graph section when non-nil
	Relationships *relationships.Graph
}

// Result summarizes one generation pass.
type Result struct {
	Document   string
	FileCount  int
	TotalBytes int64
	// Unreadable lists files that could not be read and were skipped
	Unreadable []string
}

// Generator renders documents for one project root.
type Generator struct {
	root string
	log  logger.Logger
}

// New creates a Generator for the given project root.
func New(root string, log logger.Logger) *Generator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Generator{root: root, log: log}
}

// Generate reads every file (bounded concurrency) and renders the document.
// Files are emitted in the given order, which callers keep sorted, so the
// output is deterministic for a given input list.
func (g *Generator) Generate(ctx context.Context, files []string, opts Options) (*Result, error) {
	if opts.Format == "" {
		opts.Format = "markdown"
	}

	contents := make([][]byte, len(files))
	failed := make([]bool, len(files))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(readConcurrency)

	for i, rel := range files {
		i, rel := i, rel
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(g.root, filepath.FromSlash(rel)))
			if err != nil {
				g.log.LogWarn(fmt.Sprintf("skipping unreadable file %s: %v", rel, err))
				failed[i] = true
				return nil
			}
			contents[i] = data
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("generation cancelled: %w", err)
	}

	result := &Result{}
	var included []string
	var includedContents [][]byte
	for i, rel := range files {
		if failed[i] {
			result.Unreadable = append(result.Unreadable, rel)
			continue
		}
		included = append(included, rel)
		includedContents = append(includedContents, contents[i])
		result.TotalBytes += int64(len(contents[i]))
	}
	result.FileCount = len(included)

	title := opts.Title
	if title == "" {
		title = filepath.Base(absOrSelf(g.root))
	}

	switch opts.Format {
	case "text":
		result.Document = renderText(title, included, includedContents, opts)
	default:
		result.Document = renderMarkdown(title, included, includedContents, opts)
	}

	return result, nil
}

func absOrSelf(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// changeMarkers returns lookup sets for annotating changed and new files.
func changeMarkers(opts Options) (changed, fresh map[string]bool) {
	changed = make(map[string]bool)
	fresh = make(map[string]bool)
	if opts.Changes == nil {
		return changed, fresh
	}
	for _, p := range opts.Changes.Changed {
		changed[p] = true
	}
	if opts.HighlightNew {
		for _, p := range opts.Changes.New {
			fresh[p] = true
		}
	}
	return changed, fresh
}

func renderMarkdown(title string, files []string, contents [][]byte, opts Options) string {
	changed, fresh := changeMarkers(opts)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Generated by codepack on %s. %d files.\n\n",
		time.Now().UTC().Format(time.RFC3339), len(files))

	b.WriteString("## Project structure\n\n```\n")
	b.WriteString(BuildTree(title, files))
	b.WriteString("```\n\n")

	b.WriteString("## Files\n")
	for i, rel := range files {
		marker := ""
		if fresh[rel] {
			marker = " (new)"
		} else if changed[rel] {
			marker = " (changed)"
		}
		fmt.Fprintf(&b, "\n### %s%s\n\n", rel, marker)

		fence := fenceFor(contents[i])
		fmt.Fprintf(&b, "%s%s\n", fence, languageTag(rel))
		b.Write(contents[i])
		if len(contents[i]) > 0 && contents[i][len(contents[i])-1] != '\n' {
			b.WriteString("\n")
		}
		b.WriteString(fence)
		b.WriteString("\n")
	}

	if opts.Relationships != nil {
		b.WriteString("\n## Relationships\n\n")
		renderRelationships(&b, opts.Relationships)
	}

	return b.String()
}

func renderText(title string, files []string, contents [][]byte, opts Options) string {
	changed, fresh := changeMarkers(opts)
	rule := strings.Repeat("=", 64)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\nProject: %s\nGenerated: %s\nFiles: %d\n%s\n\n",
		rule, title, time.Now().UTC().Format(time.RFC3339), len(files), rule)

	b.WriteString(BuildTree(title, files))
	b.WriteString("\n")

	for i, rel := range files {
		marker := ""
		if fresh[rel] {
			marker = " [NEW]"
		} else if changed[rel] {
			marker = " [CHANGED]"
		}
		fmt.Fprintf(&b, "%s\nFile: %s%s\n%s\n", rule, rel, marker, rule)
		b.Write(contents[i])
		if len(contents[i]) > 0 && contents[i][len(contents[i])-1] != '\n' {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if opts.Relationships != nil {
		fmt.Fprintf(&b, "%s\nRelationships\n%s\n", rule, rule)
		renderRelationships(&b, opts.Relationships)
	}

	return b.String()
}

func renderRelationships(b *strings.Builder, g *relationships.Graph) {
	paths := make([]string, 0, len(g.Files))
	for path := range g.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		rels := g.Files[path]
		if len(rels.Imports) == 0 && len(rels.ImportedBy) == 0 {
			continue
		}
		fmt.Fprintf(b, "- %s\n", path)
		if len(rels.Imports) > 0 {
			fmt.Fprintf(b, "  - imports: %s\n", strings.Join(rels.Imports, ", "))
		}
		if len(rels.ImportedBy) > 0 {
			fmt.Fprintf(b, "  - imported by: %s\n", strings.Join(rels.ImportedBy, ", "))
		}
	}
}

// fenceFor picks a fence long enough that the content cannot close it.
func fenceFor(content []byte) string {
	fence := "```"
	for strings.Contains(string(content), fence) {
		fence += "`"
	}
	return fence
}

// languageTag maps a file extension to the markdown code-fence language.
func languageTag(rel string) string {
	switch strings.ToLower(filepath.Ext(rel)) {
	case ".go":
		return "go"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".jsx":
		return "jsx"
	case ".ts":
		return "typescript"
	case ".tsx":
		return "tsx"
	case ".py":
		return "python"
	case ".rb":
		return "ruby"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".hpp":
		return "cpp"
	case ".cs":
		return "csharp"
	case ".sh", ".bash":
		return "bash"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".md", ".markdown":
		return "markdown"
	case ".html":
		return "html"
	case ".css":
		return "css"
	case ".sql":
		return "sql"
	default:
		return ""
	}
}
