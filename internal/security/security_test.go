package security

import (
	"bytes"
	"strings"
	"testing"
)

func TestSecretHasher_HashAndVerify(t *testing.T) {
	h := NewFastSecretHasher()

	hash, err := h.Hash("password1")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if hash == "password1" || strings.Contains(hash, "password1") {
		t.Fatalf("hash must not contain the plaintext, got %q", hash)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("expected argon2id encoding, got %q", hash)
	}

	ok, err := h.Verify("password1", hash)
	if err != nil || !ok {
		t.Errorf("Verify(correct) = %v, %v; want true, nil", ok, err)
	}

	ok, err = h.Verify("password2", hash)
	if err != nil || ok {
		t.Errorf("Verify(wrong) = %v, %v; want false, nil", ok, err)
	}
}

func TestSecretHasher_SaltsDiffer(t *testing.T) {
	h := NewFastSecretHasher()
	a, _ := h.Hash("1234")
	b, _ := h.Hash("1234")
	if a == b {
		t.Errorf("two hashes of the same PIN should differ")
	}
}

func TestSecretHasher_VerifyRejectsGarbage(t *testing.T) {
	h := NewFastSecretHasher()
	if _, err := h.Verify("x", "not-a-hash"); err == nil {
		t.Errorf("expected error for malformed hash")
	}
}

func TestSecretHasher_VerifyUsesStoredParameters(t *testing.T) {
	fast := NewFastSecretHasher()
	hash, err := fast.Hash("1234")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	// A hasher configured with different cost still verifies old hashes.
	slow := &SecretHasher{time: 2, memory: 2048, threads: 1, keyLength: 32}
	ok, err := slow.Verify("1234", hash)
	if err != nil || !ok {
		t.Errorf("Verify across parameters = %v, %v", ok, err)
	}
}

func TestFieldEncryptor(t *testing.T) {
	fe, err := NewFieldEncryptor(DeriveKey("an-application-secret-of-32-chars!"))
	if err != nil {
		t.Fatalf("NewFieldEncryptor failed: %v", err)
	}

	enc, err := fe.EncryptString("dear diary")
	if err != nil {
		t.Fatalf("EncryptString failed: %v", err)
	}
	if enc == "dear diary" {
		t.Fatalf("ciphertext equals plaintext")
	}
	dec, err := fe.DecryptString(enc)
	if err != nil || dec != "dear diary" {
		t.Errorf("DecryptString = %q, %v", dec, err)
	}

	sealed, err := fe.Seal([]byte("backup bytes"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff
	if _, err := fe.Open(sealed); err == nil {
		t.Errorf("expected tampered ciphertext to fail authentication")
	}

	if _, err := NewFieldEncryptor([]byte("short")); err == nil {
		t.Errorf("expected error for short key")
	}
}

func TestKeyManager(t *testing.T) {
	km, err := NewKeyManager("app-secret", "backup-secret")
	if err != nil {
		t.Fatalf("NewKeyManager failed: %v", err)
	}
	if len(km.AppKey()) != 32 || len(km.BackupKey()) != 32 {
		t.Errorf("derived keys must be 32 bytes")
	}
	if bytes.Equal(km.AppKey(), km.BackupKey()) {
		t.Errorf("distinct secrets should derive distinct keys")
	}
	if _, err := NewKeyManager("", "x"); err == nil {
		t.Errorf("expected error for empty secret")
	}
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateOTP(6)
		if err != nil {
			t.Fatalf("GenerateOTP failed: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("non-digit in code %q", code)
			}
		}
	}
	if _, err := GenerateOTP(0); err == nil {
		t.Errorf("expected error for zero length")
	}
	if !EqualCodes("123456", "123456") || EqualCodes("123456", "123457") {
		t.Errorf("EqualCodes mismatch")
	}
}
