// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classify parses sanitized patches into per-file change records.
//
// # Description
//
// This package answers three questions about a patch before anything touches
// the filesystem: which files it creates vs. modifies vs. deletes, which
// paths it mentions at all, and how large it is. It also recognizes the
// NDJSON synthetic patch sentinel, which marks a pre-expanded full-file
// replacement that bypasses hunk-based application entirely.
//
// Classification works on header markers only ("new file mode",
// "--- /dev/null", "deleted file mode"); hunk bodies are never consulted.
//
// # Thread Safety
//
// All functions are stateless and safe for concurrent use.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// NDJSONSentinelPrefix marks a pre-expanded synthetic patch. The first line
// of such a patch reads "# NDJSON Operations Applied (N files)".
const NDJSONSentinelPrefix = "# NDJSON Operations Applied ("

// diffGitRe matches the per-file diff header and captures the b/ path.
var diffGitRe = regexp.MustCompile(`^diff --git (?:"?a/.*?"? )"?b/(.+?)"?$`)

// =============================================================================
// Change Kinds
// =============================================================================

// ChangeKind categorizes what a patch does to one file.
type ChangeKind string

const (
	// ChangeNew indicates the patch creates the file.
	ChangeNew ChangeKind = "new"

	// ChangeModified indicates the patch edits an existing file.
	ChangeModified ChangeKind = "modified"

	// ChangeDeleted indicates the patch removes the file.
	ChangeDeleted ChangeKind = "deleted"
)

// String returns the string representation of the kind.
func (k ChangeKind) String() string {
	return string(k)
}

// FileChange is one file's change record within a patch.
type FileChange struct {
	// Path is the repository-relative path (a/ and b/ prefixes stripped).
	Path string `json:"path"`

	// Kind is the change kind.
	Kind ChangeKind `json:"kind"`
}

// Stats summarizes a patch.
type Stats struct {
	// Files is the number of per-file diff blocks.
	Files int `json:"files"`

	// Added is the number of added body lines.
	Added int `json:"added"`

	// Removed is the number of removed body lines.
	Removed int `json:"removed"`
}

// =============================================================================
// Classification
// =============================================================================

// ClassifyPatchFiles splits a patch's files into new and existing sets.
//
// # Description
//
// A file is new when its block carries "new file mode" or "--- /dev/null".
// A file is existing when its block carries "--- a/<path>" or is a deletion
// ("deleted file mode" or "+++ /dev/null"). Deletions are existing files:
// they must be present on disk for the patch to make sense.
//
// # Inputs
//
//   - patch: Sanitized patch text.
//
// # Outputs
//
//   - newFiles: Paths the patch creates, in declaration order.
//   - existingFiles: Paths the patch modifies or deletes, in declaration order.
func ClassifyPatchFiles(patch string) (newFiles, existingFiles []string) {
	for _, block := range splitFileBlocks(patch) {
		isNew := false
		isExisting := false
		for _, line := range block.lines {
			switch {
			case strings.HasPrefix(line, "new file mode"),
				strings.HasPrefix(line, "--- /dev/null"):
				isNew = true
			case strings.HasPrefix(line, "--- a/"),
				strings.HasPrefix(line, "deleted file mode"),
				strings.HasPrefix(line, "+++ /dev/null"):
				isExisting = true
			}
		}

		// "new file mode" wins over anything else in a confused block; the
		// context validator has nothing to check for a brand-new file.
		switch {
		case isNew:
			newFiles = append(newFiles, block.path)
		case isExisting:
			existingFiles = append(existingFiles, block.path)
		default:
			// No headers at all: treat as existing so it still goes through
			// context validation rather than bypassing it.
			existingFiles = append(existingFiles, block.path)
		}
	}
	return newFiles, existingFiles
}

// Changes returns the per-file change records for a patch in declaration order.
func Changes(patch string) []FileChange {
	var changes []FileChange
	for _, block := range splitFileBlocks(patch) {
		kind := ChangeModified
		for _, line := range block.lines {
			switch {
			case strings.HasPrefix(line, "new file mode"),
				strings.HasPrefix(line, "--- /dev/null"):
				kind = ChangeNew
			case strings.HasPrefix(line, "deleted file mode"),
				strings.HasPrefix(line, "+++ /dev/null"):
				kind = ChangeDeleted
			}
		}
		changes = append(changes, FileChange{Path: block.path, Kind: kind})
	}
	return changes
}

// ExtractFilesFromPatch returns the ordered, deduplicated file paths named
// by "diff --git" headers.
func ExtractFilesFromPatch(patch string) []string {
	seen := make(map[string]bool)
	var paths []string
	for _, line := range strings.Split(patch, "\n") {
		m := diffGitRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if !seen[m[1]] {
			seen[m[1]] = true
			paths = append(paths, m[1])
		}
	}
	return paths
}

// ParsePatchStats counts files and added/removed body lines.
//
// # Description
//
// Body lines starting with a single "+" or "-" are counted; the "+++" and
// "---" file headers are excluded. File count comes from "diff --git"
// headers.
func ParsePatchStats(patch string) Stats {
	var stats Stats
	for _, line := range strings.Split(patch, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			stats.Files++
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			// File headers, not content.
		case strings.HasPrefix(line, "+"):
			stats.Added++
		case strings.HasPrefix(line, "-"):
			stats.Removed++
		}
	}
	return stats
}

// =============================================================================
// Whole-Document Parsing
// =============================================================================

// ParsePatch parses a sanitized patch into go-diff file diffs.
//
// # Outputs
//
//   - []*diff.FileDiff: One entry per file block, in declaration order.
//   - error: Non-nil if the patch is not parseable unified diff.
func ParsePatch(patch string) ([]*diff.FileDiff, error) {
	fds, err := diff.NewMultiFileDiffReader(strings.NewReader(patch)).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("parsing patch: %w", err)
	}
	return fds, nil
}

// StripGitPrefix removes the a/ or b/ prefix from a diff header path.
func StripGitPrefix(path string) string {
	path = strings.TrimPrefix(path, "a/")
	path = strings.TrimPrefix(path, "b/")
	return path
}

// FilePath returns the repository-relative path for a parsed file diff,
// preferring the new name, falling back to the original for deletions.
func FilePath(fd *diff.FileDiff) string {
	name := fd.NewName
	if name == "" || name == "/dev/null" {
		name = fd.OrigName
	}
	return StripGitPrefix(name)
}

// NewFileContent extracts a new file's complete content from its hunks.
//
// # Description
//
// For a new-file block every body line is an addition; joining the added
// lines reproduces the file exactly as declared. A trailing newline is
// appended unless the hunk carries the "\ No newline at end of file"
// marker.
func NewFileContent(fd *diff.FileDiff) string {
	var lines []string
	noTrailingNewline := false
	for _, hunk := range fd.Hunks {
		for _, line := range strings.Split(string(hunk.Body), "\n") {
			if strings.HasPrefix(line, "+") {
				lines = append(lines, strings.TrimPrefix(line, "+"))
			} else if strings.HasPrefix(line, `\ No newline`) {
				noTrailingNewline = true
			}
		}
	}
	if len(lines) == 0 {
		return ""
	}
	content := strings.Join(lines, "\n")
	if !noTrailingNewline {
		content += "\n"
	}
	return content
}

// =============================================================================
// Internal Block Splitting
// =============================================================================

// fileBlock is one per-file section of a patch.
type fileBlock struct {
	path  string
	lines []string
}

// splitFileBlocks splits a patch into per-file blocks keyed by the
// "diff --git" b/ path. Text before the first header is ignored.
func splitFileBlocks(patch string) []fileBlock {
	var blocks []fileBlock
	var current *fileBlock

	for _, line := range strings.Split(patch, "\n") {
		if m := diffGitRe.FindStringSubmatch(line); m != nil {
			blocks = append(blocks, fileBlock{path: m[1]})
			current = &blocks[len(blocks)-1]
			continue
		}
		if current != nil {
			current.lines = append(current.lines, line)
		}
	}
	return blocks
}
