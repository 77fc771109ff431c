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
	"fmt"
	"strings"
	"testing"
)

// bigFile builds an n-line file with a per-line prefix so two different
// prefixes produce entirely unrelated content of similar length.
func bigFile(prefix string, n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%s_%d = %d\n", prefix, i, i)
	}
	return sb.String()
}

func TestStructuralSimilarity(t *testing.T) {
	t.Run("identical_is_one", func(t *testing.T) {
		content := bigFile("alpha", 50)
		if got := StructuralSimilarity(content, content); got != 1.0 {
			t.Errorf("ratio = %v, want 1.0", got)
		}
	})

	t.Run("unrelated_is_near_zero", func(t *testing.T) {
		got := StructuralSimilarity(bigFile("alpha", 50), bigFile("omega", 50))
		if got > 0.2 {
			t.Errorf("ratio = %v, want near zero", got)
		}
	})

	t.Run("small_edit_stays_high", func(t *testing.T) {
		old := bigFile("alpha", 100)
		edited := strings.Replace(old, "alpha_50", "alpha_fifty", 1)
		if got := StructuralSimilarity(old, edited); got < 0.95 {
			t.Errorf("ratio = %v, want >= 0.95", got)
		}
	})
}

func TestCheckStructuralSimilarity(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("identical_large_file_accepted", func(t *testing.T) {
		content := bigFile("alpha", 400)
		if f := CheckStructuralSimilarity("a.py", content, content, cfg); f != nil {
			t.Errorf("unexpected finding: %v", f)
		}
	})

	t.Run("rewritten_large_file_rejected", func(t *testing.T) {
		f := CheckStructuralSimilarity("a.py", bigFile("alpha", 400), bigFile("omega", 400), cfg)
		if f == nil {
			t.Fatal("expected finding for rewritten large file")
		}
		if f.Type != FindingTypeLowSimilarity || !f.Blocking() {
			t.Errorf("finding = %+v", f)
		}
		if !strings.Contains(f.Message, "0.600") {
			t.Errorf("message missing threshold: %s", f.Message)
		}
	})

	t.Run("small_file_exempt", func(t *testing.T) {
		f := CheckStructuralSimilarity("a.py", bigFile("alpha", 20), bigFile("omega", 20), cfg)
		if f != nil {
			t.Errorf("unexpected finding for small file: %v", f)
		}
	})
}
