// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Syntax Checker Contract
// =============================================================================

// SyntaxIssue describes one syntax failure with its location when known.
type SyntaxIssue struct {
	// Line is the 1-based line of the first error, 0 when unknown.
	Line int

	// Message describes the failure.
	Message string
}

// SyntaxChecker validates file content for one language.
//
// Implementations are selected by file extension via the SyntaxRegistry.
// New languages register an implementation rather than adding branches to
// the validator.
type SyntaxChecker interface {
	// Validate reports whether content parses. On failure the issue
	// carries the first error's line when the parser exposes it. A syntax
	// failure in one file never blocks validation of other files.
	Validate(ctx context.Context, content []byte) (bool, SyntaxIssue)
}

// =============================================================================
// Registry
// =============================================================================

// SyntaxRegistry maps file extensions to syntax checkers.
//
// # Thread Safety
//
// The registry is immutable after construction and safe to share.
// Checkers themselves create parsers per call.
type SyntaxRegistry struct {
	checkers map[string]SyntaxChecker
}

// NewSyntaxRegistry builds the default registry: tree-sitter for Go,
// Python, JavaScript, and TypeScript; native decoders for JSON and YAML.
func NewSyntaxRegistry() *SyntaxRegistry {
	r := &SyntaxRegistry{checkers: make(map[string]SyntaxChecker)}

	r.Register(&treeSitterChecker{lang: golang.GetLanguage()}, ".go")
	r.Register(&treeSitterChecker{lang: python.GetLanguage()}, ".py", ".pyi")
	r.Register(&treeSitterChecker{lang: javascript.GetLanguage()}, ".js", ".jsx", ".mjs", ".cjs")
	r.Register(&treeSitterChecker{lang: typescript.GetLanguage()}, ".ts", ".tsx", ".mts", ".cts")
	r.Register(&jsonChecker{}, ".json")
	r.Register(&yamlChecker{}, ".yaml", ".yml")

	return r
}

// Register binds a checker to one or more extensions (with leading dot).
func (r *SyntaxRegistry) Register(c SyntaxChecker, exts ...string) {
	for _, ext := range exts {
		r.checkers[strings.ToLower(ext)] = c
	}
}

// CheckerFor returns the checker for a path's extension, if any.
func (r *SyntaxRegistry) CheckerFor(path string) (SyntaxChecker, bool) {
	c, ok := r.checkers[strings.ToLower(filepath.Ext(path))]
	return c, ok
}

// =============================================================================
// Tree-Sitter Checker
// =============================================================================

// treeSitterChecker parses content with a tree-sitter grammar and walks
// the tree for error or missing nodes.
type treeSitterChecker struct {
	lang *sitter.Language
}

// Validate parses the content. Parser created per call; tree-sitter
// parsers must not be shared.
func (c *treeSitterChecker) Validate(ctx context.Context, content []byte) (bool, SyntaxIssue) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(c.lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return false, SyntaxIssue{Message: fmt.Sprintf("parse failed: %v", err)}
	}
	defer tree.Close()

	errNode := findFirstErrorNode(tree.RootNode())
	if errNode == nil {
		return true, SyntaxIssue{}
	}
	return false, SyntaxIssue{
		Line:    int(errNode.StartPoint().Row) + 1,
		Message: "syntax error",
	}
}

// findFirstErrorNode returns the first error or missing node, nil if none.
func findFirstErrorNode(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if node.IsError() || node.IsMissing() {
		return node
	}
	if !node.HasError() {
		return nil
	}
	for i := uint32(0); i < node.ChildCount(); i++ {
		if errNode := findFirstErrorNode(node.Child(int(i))); errNode != nil {
			return errNode
		}
	}
	return nil
}

// =============================================================================
// JSON Checker
// =============================================================================

type jsonChecker struct{}

// Validate decodes the content, mapping the decoder's byte offset to a
// line number on failure. Empty files are valid (a patch may create one).
func (c *jsonChecker) Validate(ctx context.Context, content []byte) (bool, SyntaxIssue) {
	if len(content) == 0 {
		return true, SyntaxIssue{}
	}

	var v any
	err := json.Unmarshal(content, &v)
	if err == nil {
		return true, SyntaxIssue{}
	}

	issue := SyntaxIssue{Message: err.Error()}
	if syntaxErr, ok := err.(*json.SyntaxError); ok {
		issue.Line = lineAtOffset(content, syntaxErr.Offset)
	}
	return false, issue
}

// lineAtOffset returns the 1-based line containing the byte offset.
func lineAtOffset(content []byte, offset int64) int {
	if offset > int64(len(content)) {
		offset = int64(len(content))
	}
	line := 1
	for _, b := range content[:offset] {
		if b == '\n' {
			line++
		}
	}
	return line
}

// =============================================================================
// YAML Checker
// =============================================================================

// yamlLineRe extracts the line number from yaml.v3 error text.
var yamlLineRe = regexp.MustCompile(`line (\d+)`)

type yamlChecker struct{}

// Validate decodes the content with yaml.v3, recovering the line number
// from the error text when present.
func (c *yamlChecker) Validate(ctx context.Context, content []byte) (bool, SyntaxIssue) {
	var v any
	err := yaml.Unmarshal(content, &v)
	if err == nil {
		return true, SyntaxIssue{}
	}

	issue := SyntaxIssue{Message: err.Error()}
	if m := yamlLineRe.FindStringSubmatch(err.Error()); m != nil {
		fmt.Sscanf(m[1], "%d", &issue.Line)
	}
	return false, issue
}
