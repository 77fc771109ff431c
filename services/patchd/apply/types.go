// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package apply

import (
	"os"

	"github.com/AleutianAI/patchgate/services/patchd/validate"
)

// =============================================================================
// Strategies
// =============================================================================

// Strategy identifies how a patch was (or would be) applied.
type Strategy string

const (
	// StrategyDirect writes new-file content verbatim; used only when the
	// patch contains exclusively new-file blocks.
	StrategyDirect Strategy = "direct"

	// StrategyToolNormal delegates to the external apply tool in strict
	// mode: exact hunk match, no fuzz.
	StrategyToolNormal Strategy = "tool_normal"

	// StrategyTool3Way retries with the tool's three-way merge mode,
	// tolerating minor context drift by merging against the blob the diff
	// index references.
	StrategyTool3Way Strategy = "tool_3way"

	// StrategyNDJSON writes pre-expanded full-file operations directly.
	StrategyNDJSON Strategy = "ndjson"
)

// String returns the string representation of the strategy.
func (s Strategy) String() string {
	return string(s)
}

// =============================================================================
// Engine States
// =============================================================================

// State tracks the engine's progress through one apply attempt.
type State string

const (
	StateReceived          State = "RECEIVED"
	StateSanitized         State = "SANITIZED"
	StateNDJSONPreexpanded State = "NDJSON_PREEXPANDED"
	StateClassified        State = "CLASSIFIED"
	StateDirectApply       State = "DIRECT_APPLY"
	StateToolApplyNormal   State = "TOOL_APPLY_NORMAL"
	StateToolApply3Way     State = "TOOL_APPLY_3WAY"
	StateApplied           State = "APPLIED"
	StateFailed            State = "FAILED"
)

// =============================================================================
// Options
// =============================================================================

// Options configures the apply engine.
type Options struct {
	// DryRun runs sanitization, classification, and pre-apply validation
	// but writes nothing.
	DryRun bool

	// FileMode is the mode for newly created files (default: 0644).
	FileMode os.FileMode

	// DirMode is the mode for newly created directories (default: 0755).
	DirMode os.FileMode
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		DryRun:   false,
		FileMode: 0644,
		DirMode:  0755,
	}
}

// =============================================================================
// Result
// =============================================================================

// Result is the terminal artifact of one apply attempt. The engine never
// retries internally; retry policy belongs to the orchestrator, informed
// by the error classifier.
type Result struct {
	// AttemptID uniquely identifies this attempt for audit correlation.
	AttemptID string `json:"attempt_id"`

	// Success indicates the patch landed and passed post-apply validation.
	Success bool `json:"success"`

	// AppliedFiles lists the repository-relative paths written or deleted,
	// in patch-declaration order.
	AppliedFiles []string `json:"applied_files"`

	// Strategy is the strategy that landed the patch (empty on failure
	// before any strategy succeeded).
	Strategy Strategy `json:"strategy,omitempty"`

	// Findings holds all pre- and post-apply validation findings.
	Findings []validate.Finding `json:"findings,omitempty"`

	// PreHashes maps applied paths to their pre-apply content hash.
	// Absent entries are files the patch created.
	PreHashes map[string]string `json:"pre_hashes,omitempty"`

	// PostHashes maps applied paths to their post-apply content hash.
	// Absent entries are files the patch deleted.
	PostHashes map[string]string `json:"post_hashes,omitempty"`
}

// BlockingFindings returns the findings that forced Success to false.
func (r *Result) BlockingFindings() []validate.Finding {
	var blocking []validate.Finding
	for _, f := range r.Findings {
		if f.Blocking() {
			blocking = append(blocking, f)
		}
	}
	return blocking
}
