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
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// maxReportedLostSymbols caps the number of names listed in a symbol-loss
// finding; the remainder is reported as a count.
const maxReportedLostSymbols = 10

// Per-language top-level declaration patterns. Exact extraction fidelity is
// not required; the contract is a stable set of declaration names so that
// the same extractor applied to old and new content yields comparable sets.
var (
	pythonSymbolRes = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^(?:async\s+)?def\s+([A-Za-z_]\w*)`),
		regexp.MustCompile(`(?m)^class\s+([A-Za-z_]\w*)`),
		regexp.MustCompile(`(?m)^([A-Z][A-Z0-9_]*)\s*=`),
	}

	goSymbolRes = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^func\s+(?:\([^)]*\)\s+)?([A-Za-z_]\w*)`),
		regexp.MustCompile(`(?m)^type\s+([A-Za-z_]\w*)`),
		regexp.MustCompile(`(?m)^(?:var|const)\s+([A-Za-z_]\w*)`),
	}

	jsSymbolRes = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$]\w*)`),
		regexp.MustCompile(`(?m)^(?:export\s+)?(?:abstract\s+)?class\s+([A-Za-z_$]\w*)`),
		regexp.MustCompile(`(?m)^(?:export\s+)?(?:const|let|var)\s+([A-Z][A-Z0-9_]*)\s*=`),
	}

	genericSymbolRes = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^(?:async\s+)?(?:def|function)\s+([A-Za-z_]\w*)`),
		regexp.MustCompile(`(?m)^class\s+([A-Za-z_]\w*)`),
		regexp.MustCompile(`(?m)^([A-Z][A-Z0-9_]*)\s*=`),
	}
)

// ExtractTopLevelSymbols extracts top-level declaration names from content.
//
// # Description
//
// Returns the set of function, class/type, and UPPERCASE-constant names
// declared at column zero, using the extractor for the path's language
// (regex-based; a generic extractor covers unknown extensions).
//
// # Inputs
//
//   - path: File path, used only for language selection.
//   - content: File content.
//
// # Outputs
//
//   - map[string]struct{}: The symbol name set. Empty map when none.
func ExtractTopLevelSymbols(path string, content []byte) map[string]struct{} {
	var patterns []*regexp.Regexp
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyi":
		patterns = pythonSymbolRes
	case ".go":
		patterns = goSymbolRes
	case ".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".mts", ".cts":
		patterns = jsSymbolRes
	default:
		patterns = genericSymbolRes
	}

	symbols := make(map[string]struct{})
	for _, re := range patterns {
		for _, m := range re.FindAllSubmatch(content, -1) {
			symbols[string(m[1])] = struct{}{}
		}
	}
	return symbols
}

// CheckSymbolPreservation rejects patches that silently drop declarations.
//
// # Description
//
// Computes lost = oldSymbols − newSymbols and rejects when
// len(lost)/len(oldSymbols) exceeds maxLostRatio. Files with zero old
// symbols are exempt. The finding lists up to ten lost names sorted
// alphabetically, plus a remainder count.
//
// # Inputs
//
//   - path: Repository-relative path (language selection and reporting).
//   - oldContent: Pre-patch file content.
//   - newContent: Post-patch file content.
//   - maxLostRatio: Maximum tolerated lost fraction (e.g. 0.3).
//
// # Outputs
//
//   - *Finding: Non-nil blocking finding when the ratio is exceeded.
func CheckSymbolPreservation(path string, oldContent, newContent []byte, maxLostRatio float64) *Finding {
	oldSymbols := ExtractTopLevelSymbols(path, oldContent)
	if len(oldSymbols) == 0 {
		return nil
	}
	newSymbols := ExtractTopLevelSymbols(path, newContent)

	var lost []string
	for name := range oldSymbols {
		if _, ok := newSymbols[name]; !ok {
			lost = append(lost, name)
		}
	}
	if len(lost) == 0 {
		return nil
	}

	ratio := float64(len(lost)) / float64(len(oldSymbols))
	if ratio <= maxLostRatio {
		return nil
	}

	sort.Strings(lost)
	shown := lost
	remainder := 0
	if len(shown) > maxReportedLostSymbols {
		remainder = len(shown) - maxReportedLostSymbols
		shown = shown[:maxReportedLostSymbols]
	}

	msg := fmt.Sprintf("lost %d of %d top-level symbols (%.2f > max %.2f): %s",
		len(lost), len(oldSymbols), ratio, maxLostRatio, strings.Join(shown, ", "))
	if remainder > 0 {
		msg += fmt.Sprintf(" and %d more", remainder)
	}

	return &Finding{
		Type:     FindingTypeSymbolLoss,
		File:     path,
		Message:  msg,
		Severity: SeverityHigh,
	}
}
