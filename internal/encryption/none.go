package encryption

import (
	"fmt"
	"io"

	"tidy-go/internal/tidy"
)

// NoneEncryptor stores snapshots as plain SQLite files.
type NoneEncryptor struct{}

var _ tidy.Encryptor = NoneEncryptor{}

func (NoneEncryptor) Setup(string) error {
	return fmt.Errorf("encryption type is none; set encryption.type = \"age\" first")
}

func (NoneEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	_, err := io.Copy(w, r)
	return err
}

func (NoneEncryptor) Unlock(string) (tidy.DecryptionContext, error) {
	return passthrough{}, nil
}

func (NoneEncryptor) IsConfigured() bool    { return true }
func (NoneEncryptor) NeedsPassphrase() bool { return false }

type passthrough struct{}

func (passthrough) Decrypt(r io.Reader, w io.Writer) error {
	_, err := io.Copy(w, r)
	return err
}
