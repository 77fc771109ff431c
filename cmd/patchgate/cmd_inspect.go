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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/patchgate/services/patchd/classify"
	"github.com/AleutianAI/patchgate/services/patchd/sanitize"
)

// inspectReport is the inspect command's output shape.
type inspectReport struct {
	NDJSONSynthetic bool                  `json:"ndjson_synthetic"`
	Files           []classify.FileChange `json:"files"`
	Stats           classify.Stats        `json:"stats"`
	NewFiles        []string              `json:"new_files"`
	ExistingFiles   []string              `json:"existing_files"`
}

// runInspect sanitizes and classifies a patch without a workspace.
func runInspect(cmd *cobra.Command, args []string) error {
	patch, err := readPatchInput()
	if err != nil {
		return err
	}

	sanitized := sanitize.Sanitize(patch)
	newFiles, existingFiles := classify.ClassifyPatchFiles(sanitized)

	report := inspectReport{
		NDJSONSynthetic: classify.IsNDJSONSyntheticPatch(sanitized),
		Files:           classify.Changes(sanitized),
		Stats:           classify.ParsePatchStats(sanitized),
		NewFiles:        newFiles,
		ExistingFiles:   existingFiles,
	}

	if jsonOutput {
		if err := json.NewEncoder(os.Stdout).Encode(report); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		return nil
	}

	if report.NDJSONSynthetic {
		fmt.Println("ndjson synthetic patch (pre-expanded file operations)")
	}
	fmt.Printf("files: %d, added: %d, removed: %d\n",
		report.Stats.Files, report.Stats.Added, report.Stats.Removed)
	for _, fc := range report.Files {
		fmt.Printf("  %-8s %s\n", fc.Kind, fc.Path)
	}
	return nil
}
