package vault

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tidy-go/internal/tidy"
)

func TestFileSystemVault(t *testing.T) {
	testVaultContract(t, func(t *testing.T) tidy.Vault {
		v, err := NewFileSystemVault("fs", filepath.Join(t.TempDir(), "vault"))
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
		return v
	})
}

func TestFileSystemVault_Layout(t *testing.T) {
	root := t.TempDir()
	v, err := NewFileSystemVault("fs", root)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	if err := v.PutMetadata("host-1", "hashes", strings.NewReader("db"), 2, 42); err != nil {
		t.Fatalf("PutMetadata() error = %v", err)
	}

	for _, name := range []string{"hashes.db", "hashes.version"} {
		if _, err := os.Stat(filepath.Join(root, "host-1", name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(root, "host-1"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileSystemVault_FailedPutKeepsPrevious(t *testing.T) {
	root := t.TempDir()
	v, err := NewFileSystemVault("fs", root)
	if err != nil {
		t.Fatal(err)
	}

	if err := v.PutMetadata("h", "hashes", strings.NewReader("good"), 4, 1); err != nil {
		t.Fatal(err)
	}
	if err := v.PutMetadata("h", "hashes", strings.NewReader("bad"), 99, 2); err == nil {
		t.Fatal("PutMetadata() expected size mismatch error")
	}

	got, err := os.ReadFile(filepath.Join(root, "h", "hashes.db"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "good" {
		t.Errorf("item = %q, want previous %q", got, "good")
	}
	if version, _ := v.GetMetadataVersion("h", "hashes"); version != 1 {
		t.Errorf("version = %d, want 1", version)
	}
}

func TestFileSystemVault_ValidateSetup(t *testing.T) {
	root := t.TempDir()
	v, err := NewFileSystemVault("fs", root)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}

	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}
	if err := v.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() expected error for removed root")
	}
}
