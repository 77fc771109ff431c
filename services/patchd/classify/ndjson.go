// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"fmt"
	"strings"
)

// FileOperation is one pre-expanded file write from an NDJSON synthetic patch.
type FileOperation struct {
	// Path is the repository-relative target path.
	Path string `json:"path"`

	// Content is the complete new file content.
	Content string `json:"content"`
}

// IsNDJSONSyntheticPatch reports whether the patch is a pre-expanded
// synthetic patch rather than a true diff.
//
// # Description
//
// An upstream expander turns discrete NDJSON file operations into a
// patch-shaped artifact whose first line is the sentinel
// "# NDJSON Operations Applied (...)". Such a patch carries complete,
// already-correct file content, so hunk-context validation does not apply
// to it. Leading whitespace before the sentinel is tolerated.
//
// The empty string is not a synthetic patch.
func IsNDJSONSyntheticPatch(patch string) bool {
	if patch == "" {
		return false
	}
	firstLine, _, _ := strings.Cut(patch, "\n")
	return strings.HasPrefix(strings.TrimSpace(firstLine), NDJSONSentinelPrefix)
}

// ParseNDJSONOperations expands a synthetic patch into file operations.
//
// # Description
//
// The body after the sentinel line is a sequence of full-file replacement
// diff blocks, one per operation. Each operation's content is rebuilt from
// the block's added lines verbatim.
//
// # Inputs
//
//   - patch: A patch for which IsNDJSONSyntheticPatch returned true.
//
// # Outputs
//
//   - []FileOperation: Operations in declaration order.
//   - error: Non-nil if the sentinel is missing or the body is not
//     parseable.
func ParseNDJSONOperations(patch string) ([]FileOperation, error) {
	if !IsNDJSONSyntheticPatch(patch) {
		return nil, fmt.Errorf("patch does not carry the NDJSON sentinel")
	}

	_, body, _ := strings.Cut(patch, "\n")
	fds, err := ParsePatch(body)
	if err != nil {
		return nil, fmt.Errorf("parsing synthetic patch body: %w", err)
	}
	if len(fds) == 0 {
		return nil, fmt.Errorf("synthetic patch declares no operations")
	}

	ops := make([]FileOperation, 0, len(fds))
	for _, fd := range fds {
		ops = append(ops, FileOperation{
			Path:    FilePath(fd),
			Content: NewFileContent(fd),
		})
	}
	return ops, nil
}
