// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package apply turns sanitized patches into filesystem changes.
//
// # Description
//
// The engine drives one apply attempt through a fixed state machine:
//
//	RECEIVED → SANITIZED → {NDJSON_PREEXPANDED | CLASSIFIED}
//	         → {DIRECT_APPLY | TOOL_APPLY_NORMAL → TOOL_APPLY_3WAY}
//	         → {APPLIED | FAILED}
//
// Strategies are attempted strictest-first to minimize silent
// misapplication. Hunk matching for existing files is delegated to the
// external git apply primitive; the engine owns sanitization, safety
// gating, fallback sequencing, and post-apply validation.
//
// # Thread Safety
//
// An Engine holds no mutable state and is safe for concurrent use, one
// invocation per isolated workspace. Within one invocation files are
// processed in patch-declaration order, never in parallel: later hunks
// may depend on state left by earlier ones.
package apply

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/patchgate/pkg/logging"
	"github.com/AleutianAI/patchgate/services/patchd/classify"
	"github.com/AleutianAI/patchgate/services/patchd/sanitize"
	"github.com/AleutianAI/patchgate/services/patchd/validate"
)

// Engine applies one patch per invocation against a workspace.
type Engine struct {
	workspaceRoot string
	opts          Options
	logger        *logging.Logger
	tool          *GitApplier
	postValidator *validate.PostApplyValidator
}

// NewEngine creates an apply engine for one workspace.
//
// # Inputs
//
//   - workspaceRoot: Workspace directory. Must be an absolute path to an
//     existing directory, owned exclusively by the caller for the
//     duration of each apply attempt.
//   - cfg: Post-apply validation thresholds.
//   - opts: Engine options.
//   - logger: Structured logger; nil falls back to the default.
//
// # Outputs
//
//   - *Engine: Ready-to-use engine.
//   - error: Non-nil if workspaceRoot is invalid.
func NewEngine(workspaceRoot string, cfg validate.Config, opts Options, logger *logging.Logger) (*Engine, error) {
	if !filepath.IsAbs(workspaceRoot) {
		return nil, fmt.Errorf("workspaceRoot must be absolute: %s", workspaceRoot)
	}
	info, err := os.Stat(workspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("stat workspaceRoot: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspaceRoot is not a directory: %s", workspaceRoot)
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Engine{
		workspaceRoot: workspaceRoot,
		opts:          opts,
		logger:        logger,
		tool:          NewGitApplier(workspaceRoot),
		postValidator: validate.NewPostApplyValidator(cfg),
	}, nil
}

// Apply runs the full pipeline for one raw patch.
//
// # Description
//
// Sanitizes, classifies, validates, applies via the cheapest safe
// strategy, then re-validates the written files. The returned Result is a
// terminal artifact: the engine never retries internally. On a hard abort
// (new-file collision) the workspace is untouched.
//
// # Inputs
//
//   - ctx: Context for cancellation; checked between files, never
//     mid-write. Also bounds the external tool subprocess.
//   - rawPatch: Raw UTF-8 patch text from the LLM.
//
// # Outputs
//
//   - *Result: Always non-nil; carries findings even on failure.
//   - error: Non-nil when the patch was rejected or failed to land.
func (e *Engine) Apply(ctx context.Context, rawPatch string) (*Result, error) {
	start := time.Now()
	result := &Result{
		AttemptID:  uuid.NewString(),
		PreHashes:  make(map[string]string),
		PostHashes: make(map[string]string),
	}
	log := e.logger.With("attempt_id", result.AttemptID)

	ctx, span := startApplySpan(ctx, result.AttemptID, e.workspaceRoot)
	defer span.End()

	err := e.run(ctx, log, rawPatch, result)

	setApplySpanResult(span, result.Strategy, result.Success, len(result.Findings))
	recordApplyMetrics(ctx, result.Strategy, result.Success, time.Since(start), findingTypes(result.Findings))

	if err != nil {
		log.Error("patch apply failed", "error", err.Error(), "strategy", result.Strategy.String())
		return result, err
	}
	log.Info("patch applied",
		"strategy", result.Strategy.String(),
		"files", len(result.AppliedFiles),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// run executes the state machine, mutating result as it goes.
func (e *Engine) run(ctx context.Context, log *logging.Logger, rawPatch string, result *Result) error {
	state := StateReceived

	sanitized := sanitize.Sanitize(rawPatch)
	if strings.TrimSpace(sanitized) == "" {
		return ErrEmptyPatch
	}
	state = StateSanitized
	log.Debug("patch sanitized", "state", string(state), "bytes", len(sanitized))

	if classify.IsNDJSONSyntheticPatch(sanitized) {
		state = StateNDJSONPreexpanded
		log.Debug("ndjson sentinel detected", "state", string(state))
		return e.applyNDJSON(ctx, log, sanitized, result)
	}

	newFiles, existingFiles := classify.ClassifyPatchFiles(sanitized)
	if len(newFiles) == 0 && len(existingFiles) == 0 {
		return ErrEmptyPatch
	}
	state = StateClassified
	log.Debug("patch classified",
		"state", string(state),
		"new_files", len(newFiles),
		"existing_files", len(existingFiles),
	)

	// Hard abort: a mislabeled "new file" block would clobber existing
	// content. Nothing has been written yet, so the workspace is intact.
	if err := validate.CheckExistingFilesForNewPatches(sanitized, e.workspaceRoot); err != nil {
		return err
	}

	// Context validation for existing files; new files have no on-disk
	// content to match.
	if len(existingFiles) > 0 {
		mismatches, err := validate.ValidatePatchContext(sanitized, e.workspaceRoot)
		if err != nil {
			return err
		}
		if len(mismatches) > 0 {
			for _, m := range mismatches {
				result.Findings = append(result.Findings, m.Finding())
			}
			return fmt.Errorf("%w: %d mismatching lines", validate.ErrContextMismatch, len(mismatches))
		}
	}

	preContent, err := e.capturePreState(existingFiles, result)
	if err != nil {
		return err
	}

	if e.opts.DryRun {
		// All pre-apply gates passed; stop before touching the workspace.
		result.Success = true
		return nil
	}

	var strategy Strategy
	if len(existingFiles) == 0 {
		state = StateDirectApply
		log.Debug("direct apply", "state", string(state))
		if err := e.applyDirect(ctx, sanitized); err != nil {
			return err
		}
		strategy = StrategyDirect
	} else {
		state = StateToolApplyNormal
		ok, errText := e.tool.Apply(ctx, ToolModeNormal, sanitized)
		if ok {
			strategy = StrategyToolNormal
		} else {
			log.Warn("strict apply failed, retrying with 3-way merge",
				"state", string(state), "error", errText)
			state = StateToolApply3Way
			ok3, errText3 := e.tool.Apply(ctx, ToolMode3Way, sanitized)
			if !ok3 {
				return fmt.Errorf("%w: normal: %s; 3way: %s",
					ErrAllStrategiesFailed, errText, errText3)
			}
			strategy = StrategyTool3Way
		}
	}

	result.Strategy = strategy
	result.AppliedFiles = classify.ExtractFilesFromPatch(sanitized)
	e.capturePostState(result)

	return e.postValidate(ctx, log, result, preContent)
}

// applyNDJSON writes pre-expanded full-file operations directly,
// bypassing hunk apply and context validation entirely.
func (e *Engine) applyNDJSON(ctx context.Context, log *logging.Logger, patch string, result *Result) error {
	ops, err := classify.ParseNDJSONOperations(patch)
	if err != nil {
		return err
	}
	log.Debug("expanding ndjson operations", "operations", len(ops))

	preContent := make(map[string][]byte, len(ops))
	for _, op := range ops {
		if data, err := os.ReadFile(filepath.Join(e.workspaceRoot, op.Path)); err == nil {
			preContent[op.Path] = data
			result.PreHashes[op.Path] = validate.ComputeContentHash(data)
		}
	}

	if e.opts.DryRun {
		result.Success = true
		return nil
	}

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.writeFile(op.Path, []byte(op.Content)); err != nil {
			return err
		}
		result.AppliedFiles = append(result.AppliedFiles, op.Path)
	}

	result.Strategy = StrategyNDJSON
	e.capturePostState(result)
	return e.postValidate(ctx, log, result, preContent)
}

// applyDirect writes new-file content verbatim. Only reached when the
// patch contains exclusively new-file blocks.
func (e *Engine) applyDirect(ctx context.Context, patch string) error {
	fds, err := classify.ParsePatch(patch)
	if err != nil {
		return err
	}

	for _, fd := range fds {
		if err := ctx.Err(); err != nil {
			return err
		}
		relPath := classify.FilePath(fd)
		content := classify.NewFileContent(fd)
		if err := e.writeFile(relPath, []byte(content)); err != nil {
			return err
		}
	}
	return nil
}

// postValidate runs the post-apply validator and settles the result.
func (e *Engine) postValidate(ctx context.Context, log *logging.Logger, result *Result, preContent map[string][]byte) error {
	findings, err := e.postValidator.ValidateAll(ctx, e.workspaceRoot, result.AppliedFiles, preContent)
	if err != nil {
		return err
	}
	result.Findings = append(result.Findings, findings...)

	if blocking := result.BlockingFindings(); len(blocking) > 0 {
		log.Warn("post-apply validation blocked patch", "blocking_findings", len(blocking))
		return fmt.Errorf("%w: %d blocking findings", ErrValidationBlocked, len(blocking))
	}

	result.Success = true
	return nil
}

// capturePreState reads and hashes existing files before they change.
func (e *Engine) capturePreState(existingFiles []string, result *Result) (map[string][]byte, error) {
	preContent := make(map[string][]byte, len(existingFiles))
	for _, relPath := range existingFiles {
		data, err := os.ReadFile(filepath.Join(e.workspaceRoot, relPath))
		if err != nil {
			return nil, fmt.Errorf("reading %s before apply: %w", relPath, err)
		}
		preContent[relPath] = data
		result.PreHashes[relPath] = validate.ComputeContentHash(data)
	}
	return preContent, nil
}

// capturePostState hashes applied files. Deleted files are absent.
func (e *Engine) capturePostState(result *Result) {
	for _, relPath := range result.AppliedFiles {
		hash, err := validate.ComputeFileHash(filepath.Join(e.workspaceRoot, relPath))
		if err != nil {
			continue
		}
		result.PostHashes[relPath] = hash
	}
}

// writeFile writes one file inside the workspace, creating parent
// directories as needed and rejecting paths that escape the root.
func (e *Engine) writeFile(relPath string, content []byte) error {
	absPath := filepath.Join(e.workspaceRoot, relPath)
	if !e.isPathSafe(absPath) {
		return fmt.Errorf("security: path escapes workspace: %s", relPath)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), e.opts.DirMode); err != nil {
		return fmt.Errorf("creating directories for %s: %w", relPath, err)
	}
	if err := os.WriteFile(absPath, content, e.opts.FileMode); err != nil {
		return fmt.Errorf("writing %s: %w", relPath, err)
	}
	return nil
}

// isPathSafe checks that a resolved path stays inside the workspace.
func (e *Engine) isPathSafe(absPath string) bool {
	rel, err := filepath.Rel(filepath.Clean(e.workspaceRoot), filepath.Clean(absPath))
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..")
}

// findingTypes projects findings to their type strings for metrics.
func findingTypes(findings []validate.Finding) []string {
	types := make([]string, 0, len(findings))
	for _, f := range findings {
		types = append(types, string(f.Type))
	}
	return types
}
