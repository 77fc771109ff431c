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
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func TestGitApplier_NormalMode(t *testing.T) {
	requireGit(t)

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello\nworld\n"), 0644); err != nil {
		t.Fatal(err)
	}

	patch := `diff --git a/hello.txt b/hello.txt
index 1111111..2222222 100644
--- a/hello.txt
+++ b/hello.txt
@@ -1,2 +1,2 @@
 hello
-world
+there
`
	applier := NewGitApplier(root)
	ok, errText := applier.Apply(context.Background(), ToolModeNormal, patch)
	if !ok {
		t.Fatalf("Apply() failed: %s", errText)
	}
	if errText != "" {
		t.Errorf("errText = %q on success", errText)
	}

	data, err := os.ReadFile(filepath.Join(root, "hello.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello\nthere\n" {
		t.Errorf("content = %q", data)
	}
}

func TestGitApplier_NormalModeRejectsDriftedContext(t *testing.T) {
	requireGit(t)

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "hello.txt"), []byte("completely\ndifferent\n"), 0644); err != nil {
		t.Fatal(err)
	}

	patch := `diff --git a/hello.txt b/hello.txt
index 1111111..2222222 100644
--- a/hello.txt
+++ b/hello.txt
@@ -1,2 +1,2 @@
 hello
-world
+there
`
	applier := NewGitApplier(root)
	ok, errText := applier.Apply(context.Background(), ToolModeNormal, patch)
	if ok {
		t.Fatal("Apply() succeeded against drifted content in strict mode")
	}
	if strings.TrimSpace(errText) == "" {
		t.Error("errText empty on failure")
	}
}

func TestGitApplier_UnknownModePanics(t *testing.T) {
	applier := NewGitApplier(t.TempDir())

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Apply() did not panic for unknown mode")
		}
		if !strings.Contains(r.(string), "unknown tool mode") {
			t.Errorf("panic message = %v", r)
		}
	}()
	applier.Apply(context.Background(), ToolMode("fuzzy"), "")
}

func TestGitApplier_CancelledContext(t *testing.T) {
	requireGit(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	applier := NewGitApplier(t.TempDir())
	ok, errText := applier.Apply(ctx, ToolModeNormal, "diff --git a/x b/x\n")
	if ok {
		t.Fatal("Apply() succeeded with cancelled context")
	}
	if errText == "" {
		t.Error("errText empty for cancelled subprocess")
	}
}
