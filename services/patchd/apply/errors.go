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

import "errors"

// Sentinel errors for the apply engine.
var (
	// ErrEmptyPatch is returned when the sanitized patch contains no file
	// blocks at all.
	ErrEmptyPatch = errors.New("patch contains no file changes")

	// ErrAllStrategiesFailed is returned when every applicable strategy
	// was exhausted without landing the patch. The wrapped message carries
	// the tool's error text per strategy.
	ErrAllStrategiesFailed = errors.New("all apply strategies failed")

	// ErrValidationBlocked is returned when the patch landed but
	// post-apply validation produced blocking findings; the Result carries
	// the details.
	ErrValidationBlocked = errors.New("post-apply validation blocked patch")
)
