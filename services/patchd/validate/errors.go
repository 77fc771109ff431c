// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validate checks patches against workspace content, before and
// after application.
//
// # Description
//
// Two validation passes live here. The pre-apply pass checks that a
// patch's context and removed lines match what is on disk and that
// "new file" blocks do not target existing paths. The post-apply pass
// re-inspects written files for syntax validity, conflict markers, symbol
// loss, and structural rewrite risk.
//
// Validators accumulate all findings for a pass rather than stopping at
// the first; only the new-file collision aborts immediately.
//
// # Thread Safety
//
// Validators hold no mutable state and are safe for concurrent use against
// distinct workspaces. Tree-sitter parsers are created per call.
package validate

import "errors"

// Sentinel errors for validation.
var (
	// ErrNewFileCollision is returned when a patch declares a file as new
	// but the path already exists in the workspace. Applying would silently
	// overwrite unrelated content, so the whole patch is aborted with no
	// partial application.
	ErrNewFileCollision = errors.New("new-file patch targets existing path")

	// ErrContextMismatch is returned when hunk context or removed lines do
	// not match current file content at their declared offsets.
	ErrContextMismatch = errors.New("patch context does not match file content")
)
