// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	workspaceDir string
	patchFile    string
	configPath   string
	dryRun       bool
	jsonOutput   bool
	verbose      bool

	rootCmd = &cobra.Command{
		Use:   "patchgate",
		Short: "Safely apply LLM-produced patches to a workspace",
		Long: `patchgate sanitizes, classifies, validates, and applies LLM-produced
patches (unified diffs or pre-expanded NDJSON operations), guaranteeing
the workspace is never left worse than before the attempt.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	applyCmd = &cobra.Command{
		Use:   "apply",
		Short: "Apply a patch to a workspace through the full safety pipeline",
		RunE:  runApply, // Defined in cmd_apply.go
	}

	inspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "Sanitize and classify a patch without touching any workspace",
		RunE:  runInspect, // Defined in cmd_inspect.go
	}
)

func init() {
	applyCmd.Flags().StringVarP(&workspaceDir, "workspace", "w", "", "workspace root directory (required)")
	applyCmd.Flags().StringVarP(&patchFile, "patch", "p", "", "patch file (default: stdin)")
	applyCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file with validation thresholds")
	applyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "run all pre-apply gates but write nothing")
	applyCmd.Flags().BoolVar(&jsonOutput, "json", false, "emit the apply result as JSON")
	applyCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug-level logging")

	inspectCmd.Flags().StringVarP(&patchFile, "patch", "p", "", "patch file (default: stdin)")
	inspectCmd.Flags().BoolVar(&jsonOutput, "json", false, "emit the report as JSON")

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(inspectCmd)
}

// usageError marks caller mistakes (bad flags, unreadable inputs) so main
// can exit 2 instead of 1.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// readPatchInput reads the patch from --patch or stdin.
func readPatchInput() (string, error) {
	if patchFile != "" {
		data, err := os.ReadFile(patchFile)
		if err != nil {
			return "", usageErrorf("reading patch file: %v", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", usageErrorf("reading patch from stdin: %v", err)
	}
	return string(data), nil
}
