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

import "fmt"

// Severity represents the severity of a validation finding.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// FindingType categorizes validation findings.
type FindingType string

const (
	FindingTypeContextMismatch FindingType = "CONTEXT_MISMATCH"
	FindingTypeSyntax          FindingType = "SYNTAX"
	FindingTypeConflictMarker  FindingType = "CONFLICT_MARKER"
	FindingTypeSymbolLoss      FindingType = "SYMBOL_LOSS"
	FindingTypeLowSimilarity   FindingType = "LOW_SIMILARITY"
	FindingTypeMissingFile     FindingType = "MISSING_FILE"
)

// Finding is one validation problem, carrying enough detail to act on
// without re-reading the raw diff.
type Finding struct {
	// Type is the finding category.
	Type FindingType `json:"type"`

	// File is the repository-relative path.
	File string `json:"file"`

	// Line is the 1-based line number, 0 when not line-scoped.
	Line int `json:"line,omitempty"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Severity is the severity level.
	Severity Severity `json:"severity"`
}

// String formats the finding as "path:line: message".
func (f Finding) String() string {
	if f.Line > 0 {
		return fmt.Sprintf("%s:%d: [%s] %s", f.File, f.Line, f.Severity, f.Message)
	}
	return fmt.Sprintf("%s: [%s] %s", f.File, f.Severity, f.Message)
}

// Blocking reports whether this finding must block patch completion.
// All safety violations (High and Critical) block; lower severities are
// advisory.
func (f Finding) Blocking() bool {
	return f.Severity == SeverityHigh || f.Severity == SeverityCritical
}

// ContextMismatch records one hunk line that does not match on-disk content.
type ContextMismatch struct {
	// File is the repository-relative path.
	File string `json:"file"`

	// Line is the 1-based line number in the current file.
	Line int `json:"line"`

	// Expected is the line content the patch declares.
	Expected string `json:"expected"`

	// Actual is the line content currently on disk.
	Actual string `json:"actual"`
}

// Finding converts the mismatch into a blocking finding.
func (m ContextMismatch) Finding() Finding {
	return Finding{
		Type:     FindingTypeContextMismatch,
		File:     m.File,
		Line:     m.Line,
		Message:  fmt.Sprintf("context mismatch: expected %q, found %q", m.Expected, m.Actual),
		Severity: SeverityHigh,
	}
}

// Config carries the post-apply validation thresholds.
//
// The thresholds are empirically chosen policy, not algorithmic truths;
// callers tune them per repository.
type Config struct {
	// MaxLostSymbolRatio is the maximum tolerated fraction of top-level
	// symbols a patch may remove from a file. Default: 0.3.
	MaxLostSymbolRatio float64

	// MinStructuralSimilarity is the minimum LCS similarity ratio between
	// pre- and post-patch content of large files. Default: 0.6.
	MinStructuralSimilarity float64

	// MinFileSizeForSimilarityCheck is the minimum pre-patch line count for
	// the similarity check to apply. Small files are legitimately rewritten
	// wholesale. Default: 300.
	MinFileSizeForSimilarityCheck int
}

// DefaultConfig returns the default validation thresholds.
func DefaultConfig() Config {
	return Config{
		MaxLostSymbolRatio:            0.3,
		MinStructuralSimilarity:       0.6,
		MinFileSizeForSimilarityCheck: 300,
	}
}
