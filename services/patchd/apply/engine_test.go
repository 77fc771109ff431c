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
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/patchgate/services/patchd/validate"
)

// newTestEngine creates an engine over a fresh temp workspace.
func newTestEngine(t *testing.T, opts Options) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	engine, err := NewEngine(root, validate.DefaultConfig(), opts, nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine, root
}

// writeWorkspaceFile writes a file under the workspace root.
func writeWorkspaceFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	absPath := filepath.Join(root, relPath)
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// readWorkspaceFile reads a file under the workspace root.
func readWorkspaceFile(t *testing.T, root, relPath string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", relPath, err)
	}
	return string(data)
}

const newFilePatch = `diff --git a/src/a.py b/src/a.py
new file mode 100644
index 0000000..1111111
--- /dev/null
+++ b/src/a.py
@@ -0,0 +1 @@
+x=1
`

func TestNewEngine(t *testing.T) {
	t.Run("valid_workspace", func(t *testing.T) {
		root := t.TempDir()
		engine, err := NewEngine(root, validate.DefaultConfig(), DefaultOptions(), nil)
		if err != nil {
			t.Fatalf("NewEngine() error = %v", err)
		}
		if engine == nil {
			t.Fatal("NewEngine() returned nil engine")
		}
	})

	t.Run("relative_path_rejected", func(t *testing.T) {
		_, err := NewEngine("relative/path", validate.DefaultConfig(), DefaultOptions(), nil)
		if err == nil {
			t.Fatal("NewEngine() accepted a relative path")
		}
	})

	t.Run("missing_directory_rejected", func(t *testing.T) {
		_, err := NewEngine("/nonexistent/patchgate/workspace", validate.DefaultConfig(), DefaultOptions(), nil)
		if err == nil {
			t.Fatal("NewEngine() accepted a missing directory")
		}
	})

	t.Run("file_as_workspace_rejected", func(t *testing.T) {
		root := t.TempDir()
		filePath := filepath.Join(root, "not_a_dir")
		if err := os.WriteFile(filePath, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := NewEngine(filePath, validate.DefaultConfig(), DefaultOptions(), nil)
		if err == nil {
			t.Fatal("NewEngine() accepted a file as workspace")
		}
	})
}

func TestApply_NewFileOnly(t *testing.T) {
	engine, root := newTestEngine(t, DefaultOptions())

	result, err := engine.Apply(context.Background(), newFilePatch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if !result.Success {
		t.Error("Success = false, want true")
	}
	if result.Strategy != StrategyDirect {
		t.Errorf("Strategy = %v, want %v", result.Strategy, StrategyDirect)
	}
	if len(result.AppliedFiles) != 1 || result.AppliedFiles[0] != "src/a.py" {
		t.Errorf("AppliedFiles = %v, want [src/a.py]", result.AppliedFiles)
	}
	if got := readWorkspaceFile(t, root, "src/a.py"); got != "x=1\n" {
		t.Errorf("file content = %q, want %q", got, "x=1\n")
	}
	if result.AttemptID == "" {
		t.Error("AttemptID is empty")
	}
	if len(result.PreHashes) != 0 {
		t.Errorf("PreHashes = %v, want empty for a new file", result.PreHashes)
	}
	if _, ok := result.PostHashes["src/a.py"]; !ok {
		t.Error("PostHashes missing entry for src/a.py")
	}
}

func TestApply_NewFileCollisionLeavesWorkspaceUntouched(t *testing.T) {
	engine, root := newTestEngine(t, DefaultOptions())
	original := "existing content that must survive\n"
	writeWorkspaceFile(t, root, "src/a.py", original)

	result, err := engine.Apply(context.Background(), newFilePatch)
	if !errors.Is(err, validate.ErrNewFileCollision) {
		t.Fatalf("Apply() error = %v, want ErrNewFileCollision", err)
	}
	if result.Success {
		t.Error("Success = true on collision")
	}

	if got := readWorkspaceFile(t, root, "src/a.py"); got != original {
		t.Errorf("workspace modified on hard abort: %q", got)
	}
}

func TestApply_ContextMismatchAtLine1(t *testing.T) {
	engine, root := newTestEngine(t, DefaultOptions())
	writeWorkspaceFile(t, root, "src/b.py", "def g():\n    pass\n")

	patch := `diff --git a/src/b.py b/src/b.py
index 1111111..2222222 100644
--- a/src/b.py
+++ b/src/b.py
@@ -1,2 +1,2 @@
-def f():
+def f(x):
     pass
`
	result, err := engine.Apply(context.Background(), patch)
	if !errors.Is(err, validate.ErrContextMismatch) {
		t.Fatalf("Apply() error = %v, want ErrContextMismatch", err)
	}
	if result.Success {
		t.Error("Success = true on context mismatch")
	}

	if len(result.Findings) == 0 {
		t.Fatal("no findings on context mismatch")
	}
	f := result.Findings[0]
	if f.Type != validate.FindingTypeContextMismatch {
		t.Errorf("finding type = %v, want %v", f.Type, validate.FindingTypeContextMismatch)
	}
	if f.Line != 1 {
		t.Errorf("finding line = %d, want 1", f.Line)
	}

	// The strict strategy never ran; the file is unchanged.
	if got := readWorkspaceFile(t, root, "src/b.py"); got != "def g():\n    pass\n" {
		t.Errorf("workspace modified despite rejection: %q", got)
	}
}

func TestApply_EmptyPatch(t *testing.T) {
	engine, _ := newTestEngine(t, DefaultOptions())

	for _, patch := range []string{"", "   \n\n", "no diff markers here\n"} {
		_, err := engine.Apply(context.Background(), patch)
		if !errors.Is(err, ErrEmptyPatch) {
			t.Errorf("Apply(%q) error = %v, want ErrEmptyPatch", patch, err)
		}
	}
}

func TestApply_NDJSONSyntheticPatch(t *testing.T) {
	engine, root := newTestEngine(t, DefaultOptions())

	patch := `# NDJSON Operations Applied (1 files)
diff --git a/conf/app.yaml b/conf/app.yaml
new file mode 100644
--- /dev/null
+++ b/conf/app.yaml
@@ -0,0 +1,2 @@
+name: demo
+count: 3
`
	result, err := engine.Apply(context.Background(), patch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if result.Strategy != StrategyNDJSON {
		t.Errorf("Strategy = %v, want %v", result.Strategy, StrategyNDJSON)
	}
	if got := readWorkspaceFile(t, root, "conf/app.yaml"); got != "name: demo\ncount: 3\n" {
		t.Errorf("file content = %q", got)
	}
}

func TestApply_DryRunWritesNothing(t *testing.T) {
	opts := DefaultOptions()
	opts.DryRun = true
	engine, root := newTestEngine(t, opts)

	result, err := engine.Apply(context.Background(), newFilePatch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !result.Success {
		t.Error("Success = false, want true for passing dry run")
	}

	if _, err := os.Stat(filepath.Join(root, "src/a.py")); !os.IsNotExist(err) {
		t.Error("dry run wrote a file")
	}
}

func TestApply_DryRunStillDetectsCollision(t *testing.T) {
	opts := DefaultOptions()
	opts.DryRun = true
	engine, root := newTestEngine(t, opts)
	writeWorkspaceFile(t, root, "src/a.py", "already here\n")

	_, err := engine.Apply(context.Background(), newFilePatch)
	if !errors.Is(err, validate.ErrNewFileCollision) {
		t.Fatalf("Apply() error = %v, want ErrNewFileCollision", err)
	}
}

func TestApply_BlockingSyntaxFinding(t *testing.T) {
	engine, root := newTestEngine(t, DefaultOptions())

	patch := `diff --git a/src/bad.py b/src/bad.py
new file mode 100644
--- /dev/null
+++ b/src/bad.py
@@ -0,0 +1,2 @@
+def broken(:
+    pass
`
	result, err := engine.Apply(context.Background(), patch)
	if !errors.Is(err, ErrValidationBlocked) {
		t.Fatalf("Apply() error = %v, want ErrValidationBlocked", err)
	}
	if result.Success {
		t.Error("Success = true despite blocking finding")
	}
	if len(result.BlockingFindings()) == 0 {
		t.Error("BlockingFindings() is empty")
	}

	// The file was written before validation; the caller owns rollback
	// via the recorded hashes.
	if _, err := os.Stat(filepath.Join(root, "src/bad.py")); err != nil {
		t.Errorf("applied file missing: %v", err)
	}
}

func TestApply_SanitizesRawLLMOutput(t *testing.T) {
	engine, root := newTestEngine(t, DefaultOptions())

	// CRLF endings and a bare content line inside the hunk; the
	// sanitizer repairs both before parsing.
	raw := "diff --git a/src/c.py b/src/c.py\r\n" +
		"new file mode 100644\r\n" +
		"--- /dev/null\r\n" +
		"+++ b/src/c.py\r\n" +
		"@@ -0,0 +1,2 @@\r\n" +
		"+y = 2\r\n" +
		"z = 3\r\n"

	result, err := engine.Apply(context.Background(), raw)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !result.Success {
		t.Error("Success = false")
	}
	if got := readWorkspaceFile(t, root, "src/c.py"); got != "y = 2\nz = 3\n" {
		t.Errorf("file content = %q, want %q", got, "y = 2\nz = 3\n")
	}
}

func TestApply_ModificationViaTool(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	engine, root := newTestEngine(t, DefaultOptions())
	writeWorkspaceFile(t, root, "src/b.py", "def f():\n    pass\n")

	patch := `diff --git a/src/b.py b/src/b.py
index 1111111..2222222 100644
--- a/src/b.py
+++ b/src/b.py
@@ -1,2 +1,2 @@
-def f():
+def f(x):
     pass
`
	result, err := engine.Apply(context.Background(), patch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if !result.Success {
		t.Error("Success = false, want true")
	}
	if result.Strategy != StrategyToolNormal {
		t.Errorf("Strategy = %v, want %v", result.Strategy, StrategyToolNormal)
	}
	if got := readWorkspaceFile(t, root, "src/b.py"); got != "def f(x):\n    pass\n" {
		t.Errorf("file content = %q", got)
	}

	pre, post := result.PreHashes["src/b.py"], result.PostHashes["src/b.py"]
	if pre == "" || post == "" {
		t.Fatalf("missing hashes: pre=%q post=%q", pre, post)
	}
	if pre == post {
		t.Error("pre and post hashes equal for a modified file")
	}
}

func TestApply_AllStrategiesFailed(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	engine, root := newTestEngine(t, DefaultOptions())
	writeWorkspaceFile(t, root, "src/b.py", "def f():\n    pass\n")

	// Context matches on-disk content, so the pre-apply gate passes, but
	// the hunk header's line counts are wrong and git rejects it in both
	// modes (no repository objects exist for a 3-way merge).
	patch := `diff --git a/src/b.py b/src/b.py
index 1111111..2222222 100644
--- a/src/b.py
+++ b/src/b.py
@@ -1,9 +1,9 @@
-def f():
+def f(x):
     pass
`
	result, err := engine.Apply(context.Background(), patch)
	if !errors.Is(err, ErrAllStrategiesFailed) {
		t.Fatalf("Apply() error = %v, want ErrAllStrategiesFailed", err)
	}
	if result.Success {
		t.Error("Success = true despite strategy exhaustion")
	}
}

func TestApply_CancelledContext(t *testing.T) {
	engine, _ := newTestEngine(t, DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Apply(ctx, newFilePatch)
	if err == nil {
		t.Fatal("Apply() succeeded with cancelled context")
	}
}

func TestIsPathSafe(t *testing.T) {
	engine, root := newTestEngine(t, DefaultOptions())

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"inside_root", filepath.Join(root, "src/a.py"), true},
		{"root_itself", root, true},
		{"escapes_root", filepath.Join(root, "../outside.py"), false},
		{"unrelated_absolute", "/etc/passwd", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engine.isPathSafe(tt.path); got != tt.want {
				t.Errorf("isPathSafe(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
