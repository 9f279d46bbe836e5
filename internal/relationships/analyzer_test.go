package relationships

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestExtractJSImports(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "app.js", `
import React from 'react';
import { helper } from './util';
import './styles.css';
const fs = require('fs');
const local = require('./local');
export { thing } from './exports';
`)

	a := NewAnalyzer(root)
	g := a.Analyze([]string{"app.js"}, []string{"app.js"})

	got := g.Files["app.js"].Imports
	want := []string{"react", "./util", "./styles.css", "./exports", "fs", "./local"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Imports = %v, want %v", got, want)
	}
}

func TestExtractGoImports(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "main.go", `package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

import "strings"
`)

	a := NewAnalyzer(root)
	g := a.Analyze([]string{"main.go"}, []string{"main.go"})

	got := g.Files["main.go"].Imports
	for _, want := range []string{"fmt", "os", "github.com/spf13/cobra", "strings"} {
		found := false
		for _, imp := range got {
			if imp == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing import %q in %v", want, got)
		}
	}
}

func TestExtractPythonImports(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "app.py", `
import os
import json.decoder
from pathlib import Path
from . import sibling
`)

	a := NewAnalyzer(root)
	g := a.Analyze([]string{"app.py"}, []string{"app.py"})

	got := g.Files["app.py"].Imports
	for _, want := range []string{"os", "json.decoder", "pathlib"} {
		found := false
		for _, imp := range got {
			if imp == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing import %q in %v", want, got)
		}
	}
}

func TestExtractMarkdownLinks(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "README.md", `# Project

See the [guide](./docs/guide.md) and [site](https://example.com).

![diagram](./assets/arch.png)
`)

	a := NewAnalyzer(root)
	g := a.Analyze([]string{"README.md"}, []string{"README.md"})

	got := g.Files["README.md"].Imports
	want := []string{"./docs/guide.md", "https://example.com", "./assets/arch.png"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Imports = %v, want %v", got, want)
	}
}

func TestReverseEdges(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "app.js", `import { u } from './util';`)
	writeSource(t, root, "util.js", `export const u = 1;`)

	a := NewAnalyzer(root)
	all := []string{"app.js", "util.js"}
	g := a.Analyze(all, all)

	got := g.Files["util.js"].ImportedBy
	if !reflect.DeepEqual(got, []string{"app.js"}) {
		t.Errorf("ImportedBy = %v, want [app.js]", got)
	}
}

func TestUnreadableFileGetsEmptyEntry(t *testing.T) {
	a := NewAnalyzer(t.TempDir())
	g := a.Analyze([]string{"missing.js"}, []string{"missing.js"})

	rels := g.Files["missing.js"]
	if rels == nil {
		t.Fatal("missing entry for unreadable file")
	}
	if len(rels.Imports) != 0 {
		t.Errorf("Imports = %v, want empty", rels.Imports)
	}
}

func TestMergeReplacesAndDeletes(t *testing.T) {
	prev := NewGraph()
	prev.Files["a.js"] = &FileRelations{Imports: []string{"./old"}}
	prev.Files["b.js"] = &FileRelations{Imports: []string{}}
	prev.Files["gone.js"] = &FileRelations{Imports: []string{}}

	updated := NewGraph()
	updated.Files["a.js"] = &FileRelations{Imports: []string{"./b"}}

	merged := Merge(prev, updated, []string{"gone.js"})

	if _, ok := merged.Files["gone.js"]; ok {
		t.Error("deleted file still present after merge")
	}
	if got := merged.Files["a.js"].Imports; !reflect.DeepEqual(got, []string{"./b"}) {
		t.Errorf("a.js imports = %v, want [./b]", got)
	}
	if _, ok := merged.Files["b.js"]; !ok {
		t.Error("unchanged file dropped by merge")
	}
	// Reverse edges recomputed over the merged graph
	if got := merged.Files["b.js"].ImportedBy; !reflect.DeepEqual(got, []string{"a.js"}) {
		t.Errorf("b.js importedBy = %v, want [a.js]", got)
	}
}

func TestMergeNilPrev(t *testing.T) {
	updated := NewGraph()
	updated.Files["a.js"] = &FileRelations{Imports: []string{}}

	merged := Merge(nil, updated, nil)
	if len(merged.Files) != 1 {
		t.Errorf("merged file count = %d, want 1", len(merged.Files))
	}
}

func TestSummary(t *testing.T) {
	g := NewGraph()
	g.Files["a.js"] = &FileRelations{Imports: []string{"x", "y"}}
	g.Files["b.js"] = &FileRelations{Imports: []string{"z"}}

	if got := g.Summary(); got != "2 files, 3 import edges" {
		t.Errorf("Summary = %q", got)
	}
}
