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
	"errors"
	"os"

	"github.com/AleutianAI/patchgate/services/patchd/validate"
)

// Exit codes: 0 applied and validated, 1 patch rejected or failed,
// 2 usage/configuration error or hard abort (new-file collision).
const (
	exitOK     = 0
	exitFailed = 1
	exitAbort  = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) || errors.Is(err, validate.ErrNewFileCollision) {
			os.Exit(exitAbort)
		}
		os.Exit(exitFailed)
	}
	os.Exit(exitOK)
}
