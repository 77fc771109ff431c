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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/AleutianAI/patchgate/services/patchd/classify"
)

// ValidatePatchContext checks hunk context against current file content.
//
// # Description
//
// For every hunk of every non-new file, slices the current file at the
// hunk's declared old range and compares each context and removed line
// against on-disk content at that offset. All mismatches for the patch are
// collected in one pass. New-file blocks are exempt: there is no on-disk
// content to match.
//
// # Inputs
//
//   - patch: Sanitized patch text.
//   - workspaceRoot: Absolute workspace directory.
//
// # Outputs
//
//   - []ContextMismatch: One entry per mismatching line, in patch order.
//     Empty when the patch matches.
//   - error: Non-nil only when the patch itself cannot be parsed.
func ValidatePatchContext(patch, workspaceRoot string) ([]ContextMismatch, error) {
	fds, err := classify.ParsePatch(patch)
	if err != nil {
		return nil, err
	}

	var mismatches []ContextMismatch
	for _, fd := range fds {
		if isNewFile(fd) {
			continue
		}

		relPath := classify.FilePath(fd)
		data, err := os.ReadFile(filepath.Join(workspaceRoot, relPath))
		if err != nil {
			mismatches = append(mismatches, ContextMismatch{
				File:     relPath,
				Line:     0,
				Expected: "file present in workspace",
				Actual:   fmt.Sprintf("unreadable: %v", err),
			})
			continue
		}
		fileLines := strings.Split(string(data), "\n")

		for _, hunk := range fd.Hunks {
			mismatches = append(mismatches, checkHunk(relPath, fileLines, hunk)...)
		}
	}
	return mismatches, nil
}

// checkHunk compares one hunk's context/removed lines with file content.
func checkHunk(relPath string, fileLines []string, hunk *godiff.Hunk) []ContextMismatch {
	var mismatches []ContextMismatch

	// 1-based declared start converted to slice offset.
	idx := int(hunk.OrigStartLine) - 1
	if idx < 0 {
		idx = 0
	}

	body := strings.Split(string(hunk.Body), "\n")
	if len(body) > 0 && body[len(body)-1] == "" {
		body = body[:len(body)-1]
	}

	for _, line := range body {
		if line == "" {
			// Blank context line (sanitizer should have marked it, but
			// tolerate it here the same way git does).
			line = " "
		}
		marker, content := line[0], line[1:]
		switch marker {
		case '+':
			continue
		case '\\':
			// "\ No newline at end of file"
			continue
		case ' ', '-':
			if idx >= len(fileLines) {
				mismatches = append(mismatches, ContextMismatch{
					File:     relPath,
					Line:     idx + 1,
					Expected: content,
					Actual:   "<end of file>",
				})
			} else if fileLines[idx] != content {
				mismatches = append(mismatches, ContextMismatch{
					File:     relPath,
					Line:     idx + 1,
					Expected: content,
					Actual:   fileLines[idx],
				})
			}
			idx++
		default:
			// Unmarked line after sanitization is a format defect; report
			// it against the current offset rather than guessing intent.
			mismatches = append(mismatches, ContextMismatch{
				File:     relPath,
				Line:     idx + 1,
				Expected: line,
				Actual:   "<unmarked patch line>",
			})
		}
	}
	return mismatches
}

// CheckExistingFilesForNewPatches guards against silent overwrite via
// mislabeled diffs.
//
// # Description
//
// A block that declares "new file mode" for a path that already exists
// would clobber unrelated content if applied. This check hard-fails on the
// first pass so the whole patch is rejected with no partial application.
//
// # Outputs
//
//   - error: Wraps ErrNewFileCollision naming every colliding path, nil
//     when no new-file path exists yet.
func CheckExistingFilesForNewPatches(patch, workspaceRoot string) error {
	newFiles, _ := classify.ClassifyPatchFiles(patch)

	var collisions []string
	for _, relPath := range newFiles {
		if _, err := os.Stat(filepath.Join(workspaceRoot, relPath)); err == nil {
			collisions = append(collisions, relPath)
		}
	}
	if len(collisions) > 0 {
		return fmt.Errorf("%w: %s", ErrNewFileCollision, strings.Join(collisions, ", "))
	}
	return nil
}

// isNewFile reports whether the parsed file diff creates a file.
func isNewFile(fd *godiff.FileDiff) bool {
	if fd.OrigName == "/dev/null" || fd.OrigName == "" {
		return true
	}
	for _, ext := range fd.Extended {
		if strings.HasPrefix(ext, "new file mode") {
			return true
		}
	}
	return false
}
