package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tidy-go/internal/database"
	"tidy-go/internal/tidy"
)

// SnapshotName is the vault item the hash store snapshot is stored under.
const SnapshotName = "hashes"

// NeedsPassphrase reports whether restoring requires a passphrase.
func (a *TidyApp) NeedsPassphrase() bool {
	return a.encryptor.NeedsPassphrase()
}

// BackupStore snapshots the hash store and uploads it to the vault now.
// Returns the snapshot version.
func (a *TidyApp) BackupStore() (int64, error) {
	if a.vault == nil {
		return 0, fmt.Errorf("no vault configured")
	}
	if a.db == nil {
		return 0, &tidy.StorageError{Op: "backup", Err: a.storeErr}
	}
	if a.behind {
		return 0, fmt.Errorf("%w: run `tidy store restore` first", ErrStoreBehind)
	}
	if err := a.persistOperation(); err != nil {
		return 0, err
	}

	run := a.op.ScanRun()
	if err := a.db.FinishScanRun(run); err != nil {
		return 0, fmt.Errorf("finishing scan run: %w", err)
	}
	a.op.run = run

	if err := a.uploadSnapshot(a.op.ID); err != nil {
		a.op.Fail()
		return 0, err
	}
	a.uploaded = true
	return a.op.ID, nil
}

// uploadSnapshot copies the store with VACUUM INTO, encrypts the copy and
// uploads it with the given version.
func (a *TidyApp) uploadSnapshot(version int64) error {
	if !a.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys not set up: run `tidy config keys`")
	}

	tmpDir, err := os.MkdirTemp("", "tidy-snapshot-*")
	if err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	plainPath := filepath.Join(tmpDir, database.DatabaseFileName)
	if err := a.db.BackupTo(plainPath); err != nil {
		return fmt.Errorf("snapshotting hash store: %w", err)
	}

	encPath := plainPath + ".enc"
	if err := encryptFile(a.encryptor, plainPath, encPath); err != nil {
		return err
	}

	f, err := os.Open(encPath)
	if err != nil {
		return fmt.Errorf("opening snapshot for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}

	if err := a.vault.PutMetadata(a.cfg.HostID, SnapshotName, f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading snapshot to vault: %w", err)
	}
	a.logger.Info("snapshot uploaded", "vault", a.vault.Name(), "version", version, "size", info.Size())
	return nil
}

func encryptFile(enc tidy.Encryptor, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating encrypted snapshot: %w", err)
	}
	if err := enc.Encrypt(in, out); err != nil {
		out.Close()
		return fmt.Errorf("encrypting snapshot: %w", err)
	}
	return out.Close()
}

// RestoreStore replaces the local hash store with the vault's snapshot.
// The snapshot is downloaded and verified beside the store, then renamed
// over it, so a failed restore leaves the current store untouched.
// Returns the restored snapshot version.
func (a *TidyApp) RestoreStore(passphrase string) (int64, error) {
	if a.vault == nil {
		return 0, fmt.Errorf("no vault configured")
	}
	storePath, err := a.storePath()
	if err != nil {
		return 0, err
	}

	version, err := a.vault.GetMetadataVersion(a.cfg.HostID, SnapshotName)
	if err != nil {
		return 0, fmt.Errorf("checking snapshot version: %w", err)
	}
	if version == 0 {
		return 0, fmt.Errorf("%w: %s/%s", tidy.ErrSnapshotNotFound, a.cfg.HostID, SnapshotName)
	}

	dec, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return 0, fmt.Errorf("unlocking private key: %w", err)
	}

	storeDir := filepath.Dir(storePath)
	if err := os.MkdirAll(storeDir, 0755); err != nil {
		return 0, fmt.Errorf("creating data directory: %w", err)
	}
	tmpDir, err := os.MkdirTemp(storeDir, ".restore-*")
	if err != nil {
		return 0, fmt.Errorf("creating restore directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	encPath := filepath.Join(tmpDir, "snapshot.enc")
	if err := a.download(encPath); err != nil {
		return 0, err
	}

	plainPath := filepath.Join(tmpDir, database.DatabaseFileName)
	if err := decryptFile(dec, encPath, plainPath); err != nil {
		return 0, err
	}

	restored, err := database.NewSQLiteDatabase(plainPath)
	if err != nil {
		return 0, fmt.Errorf("verifying snapshot: %w", err)
	}
	if err := restored.Close(); err != nil {
		return 0, fmt.Errorf("verifying snapshot: %w", err)
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			return 0, fmt.Errorf("closing database: %w", err)
		}
		a.db = nil
	}
	if err := os.Rename(plainPath, storePath); err != nil {
		return 0, fmt.Errorf("replacing hash store: %w", err)
	}
	a.behind = false

	db, err := database.NewSQLiteDatabase(storePath)
	if err != nil {
		return 0, fmt.Errorf("reopening hash store: %w", err)
	}
	a.db = db
	a.storeErr = nil

	a.logger.Info("snapshot restored", "vault", a.vault.Name(), "version", version, "path", storePath)
	return version, nil
}

func (a *TidyApp) download(dst string) error {
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating download file: %w", err)
	}
	if err := a.vault.GetMetadata(a.cfg.HostID, SnapshotName, f); err != nil {
		f.Close()
		return fmt.Errorf("downloading snapshot: %w", err)
	}
	return f.Close()
}

func decryptFile(dec tidy.DecryptionContext, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening downloaded snapshot: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating decrypted snapshot: %w", err)
	}
	if err := dec.Decrypt(in, out); err != nil {
		out.Close()
		return fmt.Errorf("decrypting snapshot: %w", err)
	}
	return out.Close()
}

// StoreInfo summarizes the local hash store and its vault snapshot.
type StoreInfo struct {
	Path          string
	SchemaVersion uint
	Records       int64
	LastRunID     int64
	Encryption    string

	Vault         string // empty when no vault is configured
	RemoteVersion int64
	RemoteErr     error
}

// StoreInfo reports on the hash store. Vault errors are returned inside
// the result, not as an error.
func (a *TidyApp) StoreInfo() (*StoreInfo, error) {
	if a.db == nil {
		return nil, &tidy.StorageError{Op: "info", Err: a.storeErr}
	}

	info := &StoreInfo{Encryption: a.cfg.Encryption.Type}
	if info.Encryption == "" {
		info.Encryption = "none"
	}

	if p, ok := a.db.(interface{ Path() string }); ok {
		info.Path = p.Path()
	}
	if sv, ok := a.db.(interface{ SchemaVersion() (uint, error) }); ok {
		v, err := sv.SchemaVersion()
		if err != nil {
			return nil, fmt.Errorf("reading schema version: %w", err)
		}
		info.SchemaVersion = v
	}

	var err error
	if info.Records, err = a.db.CountRecords(); err != nil {
		return nil, err
	}
	if info.LastRunID, err = a.db.MaxScanRunID(); err != nil {
		return nil, err
	}

	if a.vault != nil {
		info.Vault = a.vault.Name()
		info.RemoteVersion, info.RemoteErr = a.vault.GetMetadataVersion(a.cfg.HostID, SnapshotName)
	}
	return info, nil
}

var _ io.Closer = (*TidyApp)(nil)
