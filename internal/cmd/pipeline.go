package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/codepack/internal/cache"
	"github.com/harrison/codepack/internal/config"
	"github.com/harrison/codepack/internal/filelock"
	"github.com/harrison/codepack/internal/generate"
	"github.com/harrison/codepack/internal/history"
	"github.com/harrison/codepack/internal/logger"
	"github.com/harrison/codepack/internal/relationships"
	"github.com/harrison/codepack/internal/scan"
)

// pipeline wires one root directory through scan, incremental diff,
// relationship analysis and document generation. Both the generate
// command and watch cycles run the same pipeline.
type pipeline struct {
	root     string
	cfg      *config.Config
	log      logger.Logger
	scanner  *scan.Scanner
	analyzer *relationships.Analyzer
	store    *cache.Store

	// onProcess, when set, observes the files a run actually re-analyzes
	onProcess func(files []string)
}

// runResult summarizes one completed pipeline run.
type runResult struct {
	Changes    *cache.ChangeSet
	FileCount  int
	Unreadable []string
	OutputPath string // empty when the document went to stdout
	Duration   time.Duration
}

func newPipeline(root string, cfg *config.Config, log logger.Logger) *pipeline {
	ignore := cfg.IgnorePatterns
	if cfg.Output != "" {
		// The generated document must not feed back into itself
		ignore = append(append([]string(nil), ignore...), filepath.Base(cfg.Output))
	}

	return &pipeline{
		root: root,
		cfg:  cfg,
		log:  log,
		scanner: scan.New(scan.Options{
			Extensions:     cfg.Extensions,
			IgnorePatterns: ignore,
			MaxFileSize:    cfg.MaxFileSize,
		}),
		analyzer: relationships.NewAnalyzer(root),
		store:    cache.NewStore(root, cfg.CacheDir, log),
	}
}

// initCache prepares the fingerprint cache when incremental mode is on.
func (p *pipeline) initCache() error {
	if !p.cfg.Incremental {
		return nil
	}
	return p.store.Initialize()
}

// activeStore returns the store for diffing, or nil when incremental
// mode is off so every run is a full one.
func (p *pipeline) activeStore() *cache.Store {
	if !p.cfg.Incremental {
		return nil
	}
	return p.store
}

// listFiles enumerates the current include set as sorted relative paths.
func (p *pipeline) listFiles() ([]string, error) {
	return p.scanner.List(p.root)
}

// run executes one generation: diff against the cache, re-analyze what
// changed, render the document and write it out.
func (p *pipeline) run(ctx context.Context, files []string, watchMode bool) (*runResult, error) {
	start := time.Now()

	processor := func(changed []string) (json.RawMessage, error) {
		if p.onProcess != nil && len(changed) > 0 {
			p.onProcess(changed)
		}
		graph := p.analyzer.Analyze(changed, files)
		if prev := p.previousGraph(); prev != nil {
			graph = relationships.Merge(prev, graph, deletedFrom(prev, files))
		}
		return json.Marshal(graph)
	}

	blob, changes, err := cache.ProcessIncremental(files, p.activeStore(), watchMode, processor)
	if err != nil {
		return nil, fmt.Errorf("incremental processing: %w", err)
	}

	graph := relationships.NewGraph()
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, graph); err != nil {
			p.log.LogWarn(fmt.Sprintf("discarding unreadable relationship data: %v", err))
			graph = relationships.NewGraph()
		}
	}

	// Change markers only make sense against a real diff; a full run
	// reports every file as changed and would mark the whole document.
	// A store that failed to initialize also diffs nothing.
	cacheActive := p.activeStore() != nil && p.store.Enabled()
	var markers *cache.ChangeSet
	if cacheActive {
		markers = changes
	}

	gen := generate.New(p.root, p.log)
	result, err := gen.Generate(ctx, files, generate.Options{
		Format:        p.cfg.Format,
		Title:         filepath.Base(p.root),
		Changes:       markers,
		HighlightNew:  cacheActive,
		Relationships: graph,
	})
	if err != nil {
		return nil, fmt.Errorf("generate document: %w", err)
	}

	outPath, err := p.writeDocument(result.Document)
	if err != nil {
		return nil, err
	}

	run := &runResult{
		Changes:    changes,
		FileCount:  result.FileCount,
		Unreadable: result.Unreadable,
		OutputPath: outPath,
		Duration:   time.Since(start),
	}
	p.recordRun(ctx, run, watchMode)
	return run, nil
}

// previousGraph decodes the cached relationship blob, or nil when there
// is none worth merging against.
func (p *pipeline) previousGraph() *relationships.Graph {
	store := p.activeStore()
	if store == nil || !store.Enabled() {
		return nil
	}
	blob := store.Relationships()
	if len(blob) == 0 {
		return nil
	}
	prev := relationships.NewGraph()
	if err := json.Unmarshal(blob, prev); err != nil {
		return nil
	}
	return prev
}

// deletedFrom lists paths the previous graph knows that no longer exist.
func deletedFrom(prev *relationships.Graph, files []string) []string {
	current := make(map[string]bool, len(files))
	for _, f := range files {
		current[f] = true
	}
	var deleted []string
	for f := range prev.Files {
		if !current[f] {
			deleted = append(deleted, f)
		}
	}
	return deleted
}

// writeDocument sends the document to the configured output. An empty
// output path means stdout. File writes are atomic so watch-mode readers
// never see a torn document.
func (p *pipeline) writeDocument(document string) (string, error) {
	if p.cfg.Output == "" {
		_, err := fmt.Fprint(os.Stdout, document)
		return "", err
	}

	outPath := p.cfg.Output
	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(p.root, outPath)
	}
	if err := filelock.AtomicWrite(outPath, []byte(document)); err != nil {
		return "", fmt.Errorf("write %s: %w", outPath, err)
	}
	return outPath, nil
}

// recordRun appends the run to the history database. Failures are logged
// and never fail the run.
func (p *pipeline) recordRun(ctx context.Context, run *runResult, watchMode bool) {
	store, err := history.NewStore(filepath.Join(p.store.Dir(), "history.db"))
	if err != nil {
		p.log.LogDebug(fmt.Sprintf("history unavailable: %v", err))
		return
	}
	defer store.Close()

	mode := history.ModeFull
	switch {
	case watchMode:
		mode = history.ModeWatch
	case p.cfg.Incremental:
		mode = history.ModeIncremental
	}

	processed := run.FileCount
	skipped := 0
	deleted := 0
	if run.Changes != nil && p.cfg.Incremental {
		processed = len(run.Changes.Changed)
		skipped = run.FileCount - processed
		if skipped < 0 {
			skipped = 0
		}
		deleted = len(run.Changes.Deleted)
	}

	rec := &history.Run{
		Root:       p.root,
		Mode:       mode,
		Output:     run.OutputPath,
		TotalFiles: run.FileCount,
		Processed:  processed,
		Skipped:    skipped,
		Deleted:    deleted,
		Duration:   run.Duration,
	}
	if err := store.RecordRun(ctx, rec); err != nil {
		p.log.LogDebug(fmt.Sprintf("history record failed: %v", err))
	}
}

// loadConfig reads the project config for root and applies flag overrides.
func loadConfig(root, configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfig(configPath)
	}
	return config.LoadConfigFromDir(root)
}

// resolveRoot normalizes the positional directory argument.
func resolveRoot(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("access %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}

// newLogger builds the console logger the commands share.
func newLogger(level string) logger.Logger {
	return logger.NewConsoleLogger(os.Stderr, level)
}
