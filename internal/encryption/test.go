package encryption

import (
	"bytes"
	"fmt"
	"io"

	"tidy-go/internal/tidy"
)

// fakeHeader marks output of FakeEncryptor so tests can tell a snapshot
// went through the encryption step.
var fakeHeader = []byte("TIDYENC\x00")

// FakeEncryptor is a deterministic, reversible stand-in for tests
// (encryption type "test"). It prefixes a fixed header and does no crypto.
type FakeEncryptor struct {
	SetupCalls int
}

var _ tidy.Encryptor = (*FakeEncryptor)(nil)

// NewFakeEncryptor creates a new FakeEncryptor.
func NewFakeEncryptor() *FakeEncryptor {
	return &FakeEncryptor{}
}

func (e *FakeEncryptor) Setup(string) error {
	e.SetupCalls++
	return nil
}

func (e *FakeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(fakeHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *FakeEncryptor) Unlock(string) (tidy.DecryptionContext, error) {
	return fakeDecryptor{}, nil
}

func (e *FakeEncryptor) IsConfigured() bool    { return true }
func (e *FakeEncryptor) NeedsPassphrase() bool { return false }

type fakeDecryptor struct{}

func (fakeDecryptor) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(fakeHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(header, fakeHeader) {
		return fmt.Errorf("data was not produced by the test encryptor")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
