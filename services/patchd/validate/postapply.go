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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Conflict markers left by a partial 3-way merge. The bare "=======" line
// is deliberately not scanned: it is a common legitimate comment divider
// and would false-positive constantly.
var conflictMarkers = []string{"<<<<<<<", ">>>>>>>"}

// ComputeFileHash returns the SHA-256 hex digest of a file's content.
//
// Recorded before and after apply so the orchestrator can correlate audit
// records and drive rollback.
func ComputeFileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ComputeContentHash returns the SHA-256 hex digest of in-memory content.
func ComputeContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// CheckMergeConflictMarkers returns the 1-based line numbers of leftover
// 3-way merge markers in content.
func CheckMergeConflictMarkers(content string) []int {
	var lines []int
	for i, line := range strings.Split(content, "\n") {
		for _, marker := range conflictMarkers {
			if strings.HasPrefix(line, marker) {
				lines = append(lines, i+1)
				break
			}
		}
	}
	return lines
}

// =============================================================================
// Post-Apply Validator
// =============================================================================

// PostApplyValidator re-inspects written files after a patch lands.
//
// # Description
//
// Four checks per file: leftover conflict markers, per-extension syntax
// validity, top-level symbol preservation, and structural similarity for
// large files. All findings for a pass are accumulated; a failure in one
// file never stops validation of the rest.
//
// # Thread Safety
//
// Safe for concurrent use against distinct workspaces; holds only
// immutable configuration.
type PostApplyValidator struct {
	cfg      Config
	registry *SyntaxRegistry
}

// NewPostApplyValidator creates a validator with the given thresholds and
// the default syntax registry.
func NewPostApplyValidator(cfg Config) *PostApplyValidator {
	return &PostApplyValidator{
		cfg:      cfg,
		registry: NewSyntaxRegistry(),
	}
}

// Registry exposes the syntax registry so callers can register additional
// language checkers.
func (v *PostApplyValidator) Registry() *SyntaxRegistry {
	return v.registry
}

// ValidateFile runs all post-apply checks for one written file.
//
// # Inputs
//
//   - ctx: Context for cancellation (checked before parsing).
//   - workspaceRoot: Absolute workspace directory.
//   - relPath: Repository-relative path of the written file.
//   - oldContent: Pre-apply content; nil for newly created files.
//
// # Outputs
//
//   - []Finding: All findings for this file. Empty when clean.
//   - error: Non-nil only on I/O failure or cancellation.
func (v *PostApplyValidator) ValidateFile(ctx context.Context, workspaceRoot, relPath string, oldContent []byte) ([]Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	absPath := filepath.Join(workspaceRoot, relPath)
	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Deleted by the patch: nothing to inspect.
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", relPath, err)
	}

	var findings []Finding

	for _, line := range CheckMergeConflictMarkers(string(content)) {
		findings = append(findings, Finding{
			Type:     FindingTypeConflictMarker,
			File:     relPath,
			Line:     line,
			Message:  "merge conflict marker left in file",
			Severity: SeverityCritical,
		})
	}

	if checker, ok := v.registry.CheckerFor(relPath); ok {
		if ok, issue := checker.Validate(ctx, content); !ok {
			findings = append(findings, Finding{
				Type:     FindingTypeSyntax,
				File:     relPath,
				Line:     issue.Line,
				Message:  fmt.Sprintf("invalid syntax after apply: %s", issue.Message),
				Severity: SeverityHigh,
			})
		}
	}

	// Symbol and similarity checks compare against pre-apply content, so
	// they only apply to modified files.
	if len(oldContent) > 0 {
		if f := CheckSymbolPreservation(relPath, oldContent, content, v.cfg.MaxLostSymbolRatio); f != nil {
			findings = append(findings, *f)
		}
		if f := CheckStructuralSimilarity(relPath, string(oldContent), string(content), v.cfg); f != nil {
			findings = append(findings, *f)
		}
	}

	return findings, nil
}

// ValidateAll validates every applied file in patch-declaration order.
//
// # Inputs
//
//   - preContent: Pre-apply content by relative path; absent entries are
//     treated as newly created files.
func (v *PostApplyValidator) ValidateAll(ctx context.Context, workspaceRoot string, relPaths []string, preContent map[string][]byte) ([]Finding, error) {
	var findings []Finding
	for _, relPath := range relPaths {
		fileFindings, err := v.ValidateFile(ctx, workspaceRoot, relPath, preContent[relPath])
		if err != nil {
			return findings, err
		}
		findings = append(findings, fileFindings...)
	}
	return findings, nil
}
