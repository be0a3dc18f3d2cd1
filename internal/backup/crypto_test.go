package backup

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateSalt(t *testing.T) {
	salt1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if len(salt1) != saltSize {
		t.Errorf("salt length = %d, want %d", len(salt1), saltSize)
	}

	salt2, _ := GenerateSalt()
	if bytes.Equal(salt1, salt2) {
		t.Error("two salts should not be equal")
	}
}

func TestDeriveKey(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key1 := DeriveKey("mypassphrase", salt)
	key2 := DeriveKey("mypassphrase", salt)
	if !bytes.Equal(key1, key2) {
		t.Error("same passphrase+salt should produce same key")
	}
	if len(key1) != keySize {
		t.Errorf("key length = %d, want %d", len(key1), keySize)
	}
	if bytes.Equal(key1, DeriveKey("other", salt)) {
		t.Error("different passphrases should produce different keys")
	}
}

func TestSealOpen(t *testing.T) {
	original := []byte("SQLite format 3\x00 some pages")

	sealed, err := Seal(original, "secret")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !bytes.HasPrefix(sealed, magic) {
		t.Error("sealed data should start with the magic header")
	}
	if bytes.Contains(sealed, original) {
		t.Error("sealed data should not contain the plaintext")
	}

	again, _ := Seal(original, "secret")
	if bytes.Equal(sealed, again) {
		t.Error("two seals should differ by salt and nonce")
	}

	got, err := Open(sealed, "secret")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Errorf("open = %q, want %q", got, original)
	}
}

func TestOpenWrongPassphrase(t *testing.T) {
	sealed, _ := Seal([]byte("data"), "right")
	if _, err := Open(sealed, "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("err = %v, want ErrWrongPassword", err)
	}
}

func TestOpenTampered(t *testing.T) {
	sealed, _ := Seal([]byte("data that matters"), "secret")
	sealed[len(sealed)-1] ^= 0xff
	if _, err := Open(sealed, "secret"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("err = %v, want ErrWrongPassword", err)
	}
}

func TestOpenNotBackup(t *testing.T) {
	if _, err := Open([]byte("short"), "secret"); !errors.Is(err, ErrNotBackup) {
		t.Errorf("err = %v, want ErrNotBackup", err)
	}
	plain := bytes.Repeat([]byte("x"), 64)
	if _, err := Open(plain, "secret"); !errors.Is(err, ErrNotBackup) {
		t.Errorf("err = %v, want ErrNotBackup for missing header", err)
	}
}

func TestEncryptDecryptFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.db")
	enc := filepath.Join(dir, "source.db.enc")
	dec := filepath.Join(dir, "restored.db")

	original := []byte("This is test database content with some data in it.")
	if err := os.WriteFile(src, original, 0600); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if err := EncryptFile(src, enc, "pass"); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if err := DecryptFile(enc, dec, "pass"); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	got, _ := os.ReadFile(dec)
	if !bytes.Equal(got, original) {
		t.Errorf("decrypted = %q, want %q", got, original)
	}
}
