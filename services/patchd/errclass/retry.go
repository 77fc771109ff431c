// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package errclass

import "time"

// Backoff bounds. LLM pressure backs off long and exponentially; infra
// faults back off short and linearly.
const (
	llmBaseBackoff  = 60 * time.Second
	llmMaxBackoff   = 300 * time.Second
	infraStep       = 5 * time.Second
	infraMaxBackoff = 30 * time.Second
)

// ShouldRetry reports whether a failure of this kind is worth retrying.
// Only the transient kinds are; deterministic failures reproduce exactly
// on retry.
func ShouldRetry(kind Kind) bool {
	return kind == KindTransientInfra || kind == KindTransientLLM
}

// Backoff returns how long to wait before retry number attempt+1.
//
// # Description
//
// attempt is zero-based: attempt 0 is the delay after the first failure.
//
//   - transient_llm: min(60 * 2^attempt, 300) seconds.
//   - transient_infra: min(5 * (attempt+1), 30) seconds.
//   - deterministic kinds: 0, they are never retried.
func Backoff(kind Kind, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	switch kind {
	case KindTransientLLM:
		d := llmBaseBackoff
		for i := 0; i < attempt; i++ {
			d *= 2
			if d >= llmMaxBackoff {
				return llmMaxBackoff
			}
		}
		if d > llmMaxBackoff {
			return llmMaxBackoff
		}
		return d

	case KindTransientInfra:
		d := infraStep * time.Duration(attempt+1)
		if d > infraMaxBackoff {
			return infraMaxBackoff
		}
		return d

	default:
		return 0
	}
}
