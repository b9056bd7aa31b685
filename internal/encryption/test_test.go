package encryption

import (
	"bytes"
	"testing"
)

func TestTestEncryptor_Setup(t *testing.T) {
	t.Parallel()
	e := NewTestEncryptor()
	if err := e.Setup("any-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !e.setupCalled {
		t.Error("Setup() did not record that it was called")
	}
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false, want true")
	}
}

func TestTestEncryptor_EncryptDecrypt(t *testing.T) {
	t.Parallel()

	input := []byte("snapshot tarball bytes")

	e := NewTestEncryptor()
	var encrypted bytes.Buffer
	if err := e.Encrypt(bytes.NewReader(input), &encrypted); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if bytes.Equal(encrypted.Bytes(), input) {
		t.Error("encrypted output is identical to plaintext")
	}
	if !bytes.HasPrefix(encrypted.Bytes(), testHeader) {
		t.Error("encrypted output does not start with the test header")
	}

	ctx, err := e.Unlock("any-passphrase")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	var decrypted bytes.Buffer
	if err := ctx.Decrypt(bytes.NewReader(encrypted.Bytes()), &decrypted); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(decrypted.Bytes(), input) {
		t.Errorf("round-trip failed: got %q, want %q", decrypted.Bytes(), input)
	}
}

func TestTestDecryptionContext_InvalidHeader(t *testing.T) {
	t.Parallel()

	ctx := &testDecryptionContext{}
	var out bytes.Buffer
	if err := ctx.Decrypt(bytes.NewReader([]byte("NOT_VALID_HEADER_data")), &out); err == nil {
		t.Error("Decrypt() with invalid header should return error")
	}
}

func TestTestDecryptionContext_TruncatedInput(t *testing.T) {
	t.Parallel()

	ctx := &testDecryptionContext{}
	var out bytes.Buffer
	if err := ctx.Decrypt(bytes.NewReader([]byte("HG")), &out); err == nil {
		t.Error("Decrypt() with truncated data should return error")
	}
	if err := ctx.Decrypt(bytes.NewReader(nil), &out); err == nil {
		t.Error("Decrypt() with empty input should return error")
	}
}
