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
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// StructuralSimilarity returns the line-level LCS similarity ratio between
// two file contents, in [0, 1]. Identical content yields 1.0; unrelated
// content approaches 0.
func StructuralSimilarity(oldContent, newContent string) float64 {
	if oldContent == newContent {
		return 1.0
	}
	oldLines := strings.Split(oldContent, "\n")
	newLines := strings.Split(newContent, "\n")
	return difflib.NewMatcher(oldLines, newLines).Ratio()
}

// CheckStructuralSimilarity rejects structural rewrites of large files.
//
// # Description
//
// A patch that leaves a large file with little resemblance to its previous
// content is more likely a misapplied hunk or a hallucinated rewrite than
// an intended edit. Enforced only for files whose pre-patch line count is
// at or above cfg.MinFileSizeForSimilarityCheck; small files are
// legitimately rewritten wholesale.
//
// # Outputs
//
//   - *Finding: Non-nil blocking finding when the ratio falls below
//     cfg.MinStructuralSimilarity, reporting ratio vs. threshold.
func CheckStructuralSimilarity(path, oldContent, newContent string, cfg Config) *Finding {
	oldLineCount := strings.Count(oldContent, "\n") + 1
	if oldLineCount < cfg.MinFileSizeForSimilarityCheck {
		return nil
	}

	ratio := StructuralSimilarity(oldContent, newContent)
	if ratio >= cfg.MinStructuralSimilarity {
		return nil
	}

	return &Finding{
		Type: FindingTypeLowSimilarity,
		File: path,
		Message: fmt.Sprintf("structural similarity %.3f below minimum %.3f for %d-line file",
			ratio, cfg.MinStructuralSimilarity, oldLineCount),
		Severity: SeverityHigh,
	}
}
