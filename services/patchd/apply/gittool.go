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
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ToolMode selects the external apply tool's mode.
type ToolMode string

const (
	// ToolModeNormal is strict application: exact hunk match, no fuzz.
	ToolModeNormal ToolMode = "normal"

	// ToolMode3Way merges against the blob referenced by the diff index,
	// tolerating minor context drift. May leave conflict markers on
	// partial failure; the post-apply validator catches those.
	ToolMode3Way ToolMode = "3way"
)

// GitApplier wraps the external `git apply` primitive.
//
// # Description
//
// The engine never re-implements hunk matching; it delegates to git's
// proven apply machinery and consumes it strictly through this wrapper,
// which translates mode name and exit status into (success, errorText).
//
// # Thread Safety
//
// Safe for concurrent use against distinct working directories. One
// subprocess per call; no shared state.
type GitApplier struct {
	workDir string
}

// NewGitApplier creates a wrapper running in the given workspace root.
func NewGitApplier(workDir string) *GitApplier {
	return &GitApplier{workDir: workDir}
}

// Apply runs the tool in the given mode with the patch on stdin.
//
// # Inputs
//
//   - ctx: Context bounding the subprocess; cancellation kills it.
//   - mode: ToolModeNormal or ToolMode3Way. Any other value is a
//     programming error and panics immediately; it is never silently
//     defaulted to a mode that could misapply the patch.
//   - patch: Sanitized patch text.
//
// # Outputs
//
//   - bool: True when the tool exited zero.
//   - string: The tool's stderr text on failure, empty on success.
func (g *GitApplier) Apply(ctx context.Context, mode ToolMode, patch string) (bool, string) {
	args := []string{"apply", "--whitespace=nowarn"}
	switch mode {
	case ToolModeNormal:
		// Strict application is git apply's default.
	case ToolMode3Way:
		args = append(args, "--3way")
	default:
		panic(fmt.Sprintf("apply: unknown tool mode %q", mode))
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.workDir
	cmd.Stdin = strings.NewReader(patch)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errText := strings.TrimSpace(stderr.String())
		if errText == "" {
			errText = err.Error()
		}
		return false, errText
	}
	return true, ""
}
