package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	return home
}

func TestExpandHome(t *testing.T) {
	home := setHome(t)
	// raw path unaffected
	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("got %q err=%v", got, err)
	}
	p, err := ExpandHome("~")
	if err != nil || p != home {
		t.Fatalf("expected %q, got %q err=%v", home, p, err)
	}
	exp, err := ExpandHome("~/training")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if filepath.Base(exp) != "training" {
		t.Fatalf("unexpected expanded path: %q", exp)
	}
}

func TestEnsureDir(t *testing.T) {
	home := setHome(t)
	p, err := EnsureDir("~/a/b")
	if err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if p != filepath.Join(home, "a", "b") {
		t.Fatalf("unexpected path %q", p)
	}
	if fi, err := os.Stat(p); err != nil || !fi.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
	// existing is fine
	if _, err := EnsureDir(p); err != nil {
		t.Fatalf("second EnsureDir: %v", err)
	}
	if _, err := EnsureDir(" "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestBaseName(t *testing.T) {
	if n, err := BaseName("Manual_Python_20240101_120000.json"); err != nil || n != "Manual_Python_20240101_120000.json" {
		t.Fatalf("got %q err=%v", n, err)
	}
	for _, bad := range []string{"", ".", "..", "../x.json", "a/b.json", `a\b.json`} {
		if _, err := BaseName(bad); !errors.Is(err, ErrUnsafeName) {
			t.Fatalf("BaseName(%q): expected ErrUnsafeName, got %v", bad, err)
		}
	}
}

func TestPathExists(t *testing.T) {
	dir := t.TempDir()
	if !PathExists(dir) {
		t.Fatalf("temp dir should exist")
	}
	if PathExists(filepath.Join(dir, "missing")) {
		t.Fatalf("missing path reported as existing")
	}
}
