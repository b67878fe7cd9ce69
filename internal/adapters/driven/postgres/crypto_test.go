package postgres

import (
	"bytes"
	"errors"
	"testing"
)

func testKey(b byte) []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = b
	}
	return key
}

func TestSecretEncryptorRoundTrip(t *testing.T) {
	enc, err := NewSecretEncryptor(testKey(0x11))
	if err != nil {
		t.Fatalf("NewSecretEncryptor failed: %v", err)
	}

	in := accountSecrets{AccessToken: "AT1", RefreshToken: "RT1"}
	blob, err := enc.Encrypt(in)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if blob[0] != secretVersion {
		t.Errorf("version byte = %d, want %d", blob[0], secretVersion)
	}
	if bytes.Contains(blob, []byte("AT1")) || bytes.Contains(blob, []byte("RT1")) {
		t.Error("token material must not appear in the blob")
	}

	var out accountSecrets
	if err := enc.Decrypt(blob, &out); err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestSecretEncryptorNonDeterministic(t *testing.T) {
	enc, _ := NewSecretEncryptor(testKey(0x11))

	first, _ := enc.Encrypt(accountSecrets{AccessToken: "AT1"})
	second, _ := enc.Encrypt(accountSecrets{AccessToken: "AT1"})
	if bytes.Equal(first, second) {
		t.Error("encrypting the same value twice must not produce the same blob")
	}
}

func TestSecretEncryptorWrongKey(t *testing.T) {
	enc, _ := NewSecretEncryptor(testKey(0x11))
	other, _ := NewSecretEncryptor(testKey(0x22))

	blob, _ := enc.Encrypt(accountSecrets{AccessToken: "AT1"})

	var out accountSecrets
	err := other.Decrypt(blob, &out)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestSecretEncryptorTamperedBlob(t *testing.T) {
	enc, _ := NewSecretEncryptor(testKey(0x11))

	blob, _ := enc.Encrypt(accountSecrets{AccessToken: "AT1"})
	blob[len(blob)-1] ^= 0x01

	var out accountSecrets
	if err := enc.Decrypt(blob, &out); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestSecretEncryptorShortBlob(t *testing.T) {
	enc, _ := NewSecretEncryptor(testKey(0x11))

	var out accountSecrets
	if err := enc.Decrypt([]byte{secretVersion, 0x00, 0x01}, &out); !errors.Is(err, ErrInvalidBlobSize) {
		t.Errorf("expected ErrInvalidBlobSize, got %v", err)
	}
}

func TestSecretEncryptorUnknownVersion(t *testing.T) {
	enc, _ := NewSecretEncryptor(testKey(0x11))

	blob, _ := enc.Encrypt(accountSecrets{AccessToken: "AT1"})
	blob[0] = 0x7f

	var out accountSecrets
	if err := enc.Decrypt(blob, &out); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestNewSecretEncryptorBadKeySize(t *testing.T) {
	if _, err := NewSecretEncryptor([]byte("too short")); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("expected ErrInvalidKeySize, got %v", err)
	}
}
