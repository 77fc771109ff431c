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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/patchgate/services/patchd/apply"
)

// runApply drives one apply attempt end to end.
func runApply(cmd *cobra.Command, args []string) error {
	if workspaceDir == "" {
		return usageErrorf("--workspace is required")
	}
	absWorkspace, err := filepath.Abs(workspaceDir)
	if err != nil {
		return usageErrorf("resolving workspace path: %v", err)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return usageErrorf("%v", err)
	}

	patch, err := readPatchInput()
	if err != nil {
		return err
	}

	logger := cfg.newLogger(verbose)
	defer logger.Close()

	opts := apply.DefaultOptions()
	opts.DryRun = dryRun

	engine, err := apply.NewEngine(absWorkspace, cfg.validateConfig(), opts, logger)
	if err != nil {
		return usageErrorf("%v", err)
	}

	result, applyErr := engine.Apply(cmd.Context(), patch)

	if jsonOutput {
		if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
	} else {
		printResult(result, applyErr)
	}

	return applyErr
}

// printResult writes a human-readable apply summary to stdout.
func printResult(result *apply.Result, applyErr error) {
	if result.Success {
		fmt.Printf("applied %d file(s) via %s\n", len(result.AppliedFiles), result.Strategy)
	} else if applyErr != nil {
		fmt.Printf("apply failed: %v\n", applyErr)
	}

	for _, path := range result.AppliedFiles {
		fmt.Printf("  %s\n", path)
	}
	for _, f := range result.Findings {
		fmt.Printf("  finding: %s\n", f.String())
	}
}
