// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sanitize repairs known format defects in LLM-generated patches.
//
// # Description
//
// Model-emitted unified diffs fail in a small, enumerable set of ways:
// carriage returns, missing trailing newlines, new-file blocks without the
// /dev/null header pair, raw content lines inside hunks, and blank hunk
// lines that break line-count accounting. This package repairs format
// scaffolding only. It never touches semantic content.
//
// All functions are pure string transformations and idempotent:
// Sanitize(Sanitize(p)) == Sanitize(p).
//
// # Thread Safety
//
// All functions are stateless and safe for concurrent use.
package sanitize

import (
	"regexp"
	"strings"
)

// diffGitRe matches the per-file diff header and captures the b/ path.
var diffGitRe = regexp.MustCompile(`^diff --git (?:"?a/.*?"? )"?b/(.+?)"?$`)

// headerPrefixes are line prefixes that belong to diff scaffolding rather
// than hunk bodies. Lines starting with one of these must never receive a
// synthesized marker.
var headerPrefixes = []string{
	"diff --git ",
	"index ",
	"new file mode",
	"deleted file mode",
	"old mode",
	"new mode",
	"similarity index",
	"rename from",
	"rename to",
	"copy from",
	"copy to",
	"Binary files",
	"--- ",
	"+++ ",
	"@@",
	"\\ No newline",
}

// Sanitize runs the full repair chain: NormalizePatch, FixEmptyFileDiffs,
// then SanitizePatch. This is the order the apply engine uses.
func Sanitize(patch string) string {
	return SanitizePatch(FixEmptyFileDiffs(NormalizePatch(patch)))
}

// NormalizePatch normalizes line endings and the trailing newline.
//
// # Description
//
// Converts CRLF and bare CR line endings to LF and ensures the patch ends
// with exactly one newline. Parsers downstream assume LF-only input; git
// apply rejects patches whose last hunk is not newline-terminated.
//
// # Inputs
//
//   - patch: Raw patch text. May be empty.
//
// # Outputs
//
//   - string: LF-only text with exactly one trailing newline. Empty input
//     yields the empty string unchanged.
func NormalizePatch(patch string) string {
	if patch == "" {
		return ""
	}

	patch = strings.ReplaceAll(patch, "\r\n", "\n")
	patch = strings.ReplaceAll(patch, "\r", "\n")

	patch = strings.TrimRight(patch, "\n")
	return patch + "\n"
}

// FixEmptyFileDiffs synthesizes missing /dev/null headers for empty new files.
//
// # Description
//
// Some models emit a new-file block as just the "diff --git" line plus
// "new file mode", with no "--- /dev/null" / "+++ b/<path>" pair and no
// hunk, immediately followed by the next "diff --git" line (or EOF). Strict
// parsers reject such blocks. This function inserts the missing header pair
// so the block reads as an empty new file.
//
// Blocks that already carry a "---" header or any hunk are left untouched.
//
// # Inputs
//
//   - patch: Normalized patch text.
//
// # Outputs
//
//   - string: Patch with header pairs synthesized where needed.
func FixEmptyFileDiffs(patch string) string {
	if patch == "" {
		return ""
	}

	lines := strings.Split(patch, "\n")
	var out []string

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		out = append(out, line)

		m := diffGitRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		path := m[1]

		// Scan the block body up to the next file header or EOF.
		hasNewFileMode := false
		hasOldHeader := false
		hasHunk := false
		end := len(lines)
		for j := i + 1; j < len(lines); j++ {
			if diffGitRe.MatchString(lines[j]) {
				end = j
				break
			}
			switch {
			case strings.HasPrefix(lines[j], "new file mode"):
				hasNewFileMode = true
			case strings.HasPrefix(lines[j], "--- "):
				hasOldHeader = true
			case strings.HasPrefix(lines[j], "@@"):
				hasHunk = true
			}
		}

		if !hasNewFileMode || hasOldHeader || hasHunk {
			continue
		}

		// Emit the rest of the defective block, then the synthesized pair.
		for j := i + 1; j < end; j++ {
			if lines[j] != "" {
				out = append(out, lines[j])
			}
		}
		out = append(out, "--- /dev/null", "+++ b/"+path)
		i = end - 1
	}

	fixed := strings.Join(out, "\n")
	if !strings.HasSuffix(fixed, "\n") {
		fixed += "\n"
	}
	return fixed
}

// SanitizePatch repairs marker defects inside hunk bodies.
//
// # Description
//
// Two repairs, both limited to lines between a hunk header and the next
// file or hunk header:
//
//  1. A line with no diff marker at all (content the model emitted raw,
//     typically inside a new-file hunk) gets a leading "+".
//  2. A completely blank line gets a single leading space so it is read as
//     context instead of terminating the hunk early and breaking the
//     declared line counts.
//
// Idempotent: lines already carrying a marker are never touched.
//
// # Inputs
//
//   - patch: Normalized patch text.
//
// # Outputs
//
//   - string: Patch with hunk-body markers repaired.
func SanitizePatch(patch string) string {
	if patch == "" {
		return ""
	}

	lines := strings.Split(patch, "\n")
	inHunk := false

	for i, line := range lines {
		if isHeaderLine(line) {
			inHunk = strings.HasPrefix(line, "@@")
			continue
		}
		if !inHunk {
			continue
		}

		// Last element of a newline-terminated split is empty; that is the
		// trailing newline, not a blank hunk line.
		if line == "" {
			if i != len(lines)-1 {
				lines[i] = " "
			}
			continue
		}

		switch line[0] {
		case ' ', '+', '-':
			// Already marked.
		default:
			lines[i] = "+" + line
		}
	}

	return strings.Join(lines, "\n")
}

// isHeaderLine reports whether the line is diff scaffolding.
func isHeaderLine(line string) bool {
	for _, p := range headerPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
