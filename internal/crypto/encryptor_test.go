package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"testing"
)

func newTestEncryptor(t *testing.T) *Encryptor {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	enc, err := NewEncryptor(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	return enc
}

func TestNewEncryptorRejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"not base64", "not-valid-base64!!!"},
		{"too short", base64.StdEncoding.EncodeToString([]byte("tooshort"))},
		{"empty", ""},
	}
	for _, tt := range tests {
		if _, err := NewEncryptor(tt.key); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestEncryptRoundTrip(t *testing.T) {
	enc := newTestEncryptor(t)

	apiKey := "3f9c2b7d4e8a1c6f5b0d9e2a7c4f8b1d"
	sealed, err := enc.Encrypt(apiKey)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if sealed == apiKey {
		t.Fatal("sealed value must not equal the plaintext")
	}

	got, err := enc.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != apiKey {
		t.Fatalf("Decrypt = %q, want %q", got, apiKey)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	enc := newTestEncryptor(t)

	a, _ := enc.Encrypt("same-api-key")
	b, _ := enc.Encrypt("same-api-key")
	if a == b {
		t.Fatal("repeated encryption must produce distinct ciphertexts")
	}
}

func TestDecryptRejectsForeignKey(t *testing.T) {
	sealed, _ := newTestEncryptor(t).Encrypt("secret")
	if _, err := newTestEncryptor(t).Decrypt(sealed); err == nil {
		t.Fatal("expected error decrypting under a different key")
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	enc := newTestEncryptor(t)
	sealed, _ := enc.Encrypt("secret")

	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff

	if _, err := enc.Decrypt(base64.StdEncoding.EncodeToString(raw)); err == nil {
		t.Fatal("expected error for a flipped ciphertext byte")
	}
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	enc := newTestEncryptor(t)
	for _, in := range []string{"", "%%%", base64.StdEncoding.EncodeToString([]byte("tiny"))} {
		if _, err := enc.Decrypt(in); err == nil {
			t.Errorf("Decrypt(%q): expected error", in)
		}
	}
}
