package encryption

import (
	"bytes"
	"fmt"
	"io"

	"github.com/asboyob/hassio-google-drive-backup/internal/engine"
)

// testHeader marks data produced by TestEncryptor so that encrypted output
// is clearly distinguishable from plaintext while staying reversible.
var testHeader = []byte("HGDBENC\x00")

// TestEncryptor is a deterministic encryptor for tests and the memory
// deployment mode. It prepends a fixed 8-byte header on encryption and
// strips it on decryption, with no actual cryptography involved.
type TestEncryptor struct {
	setupCalled bool
}

var _ engine.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.setupCalled = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying snapshot data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (engine.DecryptionContext, error) {
	return &testDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// testDecryptionContext strips the header added by TestEncryptor.
type testDecryptionContext struct{}

var _ engine.DecryptionContext = (*testDecryptionContext)(nil)

func (c *testDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying snapshot data: %w", err)
	}
	return nil
}
