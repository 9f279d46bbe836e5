package generate

import (
	"sort"
	"strings"
)

// treeNode is one directory or file in the rendered project tree.
type treeNode struct {
	name     string
	children map[string]*treeNode
	isFile   bool
}

// BuildTree renders sorted relative paths as an ASCII directory tree.
func BuildTree(rootName string, paths []string) string {
	root := &treeNode{name: rootName, children: make(map[string]*treeNode)}

	for _, path := range paths {
		current := root
		parts := strings.Split(path, "/")
		for i, part := range parts {
			child := current.children[part]
			if child == nil {
				child = &treeNode{name: part, children: make(map[string]*treeNode)}
				current.children[part] = child
			}
			if i == len(parts)-1 {
				child.isFile = true
			}
			current = child
		}
	}

	var b strings.Builder
	b.WriteString(rootName)
	b.WriteString("/\n")
	renderChildren(&b, root, "")
	return b.String()
}

// renderChildren recursively draws the branch characters.
// Directories sort before files, both alphabetically.
func renderChildren(b *strings.Builder, node *treeNode, prefix string) {
	names := make([]string, 0, len(node.children))
	for name := range node.children {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, c := node.children[names[i]], node.children[names[j]]
		if a.isFile != c.isFile {
			return !a.isFile
		}
		return names[i] < names[j]
	})

	for i, name := range names {
		child := node.children[name]
		last := i == len(names)-1

		connector := "├── "
		childPrefix := prefix + "│   "
		if last {
			connector = "└── "
			childPrefix = prefix + "    "
		}

		b.WriteString(prefix)
		b.WriteString(connector)
		b.WriteString(name)
		if !child.isFile {
			b.WriteString("/")
		}
		b.WriteString("\n")

		renderChildren(b, child, childPrefix)
	}
}
