package vault

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"tidy-go/internal/tidy"
)

// testVaultContract runs the behaviour every tidy.Vault must share.
func testVaultContract(t *testing.T, newVault func(t *testing.T) tidy.Vault) {
	t.Run("round trip with version", func(t *testing.T) {
		v := newVault(t)
		data := "sqlite snapshot bytes"

		if err := v.PutMetadata("host-1", "hashes", strings.NewReader(data), int64(len(data)), 7); err != nil {
			t.Fatalf("PutMetadata() error = %v", err)
		}

		var buf bytes.Buffer
		if err := v.GetMetadata("host-1", "hashes", &buf); err != nil {
			t.Fatalf("GetMetadata() error = %v", err)
		}
		if buf.String() != data {
			t.Errorf("GetMetadata() = %q, want %q", buf.String(), data)
		}

		version, err := v.GetMetadataVersion("host-1", "hashes")
		if err != nil {
			t.Fatalf("GetMetadataVersion() error = %v", err)
		}
		if version != 7 {
			t.Errorf("GetMetadataVersion() = %d, want 7", version)
		}
	})

	t.Run("overwrite replaces item and version", func(t *testing.T) {
		v := newVault(t)

		if err := v.PutMetadata("h", "hashes", strings.NewReader("old"), 3, 1); err != nil {
			t.Fatalf("PutMetadata() error = %v", err)
		}
		if err := v.PutMetadata("h", "hashes", strings.NewReader("newer"), 5, 2); err != nil {
			t.Fatalf("PutMetadata() error = %v", err)
		}

		var buf bytes.Buffer
		if err := v.GetMetadata("h", "hashes", &buf); err != nil {
			t.Fatalf("GetMetadata() error = %v", err)
		}
		if buf.String() != "newer" {
			t.Errorf("GetMetadata() = %q, want newer", buf.String())
		}
		if version, _ := v.GetMetadataVersion("h", "hashes"); version != 2 {
			t.Errorf("GetMetadataVersion() = %d, want 2", version)
		}
	})

	t.Run("missing item", func(t *testing.T) {
		v := newVault(t)

		err := v.GetMetadata("nobody", "hashes", &bytes.Buffer{})
		if !errors.Is(err, tidy.ErrSnapshotNotFound) {
			t.Errorf("GetMetadata() error = %v, want ErrSnapshotNotFound", err)
		}

		version, err := v.GetMetadataVersion("nobody", "hashes")
		if err != nil {
			t.Fatalf("GetMetadataVersion() error = %v", err)
		}
		if version != 0 {
			t.Errorf("GetMetadataVersion() = %d, want 0", version)
		}
	})

	t.Run("hosts are isolated", func(t *testing.T) {
		v := newVault(t)

		if err := v.PutMetadata("a", "hashes", strings.NewReader("A"), 1, 1); err != nil {
			t.Fatal(err)
		}
		if err := v.GetMetadata("b", "hashes", &bytes.Buffer{}); !errors.Is(err, tidy.ErrSnapshotNotFound) {
			t.Errorf("GetMetadata(other host) error = %v, want ErrSnapshotNotFound", err)
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		v := newVault(t)

		if err := v.PutMetadata("h", "hashes", strings.NewReader("short"), 100, 1); err == nil {
			t.Error("PutMetadata() expected size mismatch error")
		}
	})
}
