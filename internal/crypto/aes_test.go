package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func testKey(t *testing.T) MasterKey {
	t.Helper()
	hexKey, err := GenerateMasterKey()
	if err != nil {
		t.Fatalf("GenerateMasterKey: %v", err)
	}
	mk, err := ParseMasterKey(hexKey)
	if err != nil {
		t.Fatalf("ParseMasterKey: %v", err)
	}
	return mk
}

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey(t))
	if err != nil {
		t.Fatal(err)
	}

	for _, plain := range []string{"sk-1", "sk-ant-api03-" + strings.Repeat("x", 80), "ключ"} {
		ct, err := c.Encrypt([]byte(plain))
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", plain, err)
		}
		if !IsEncrypted(ct) {
			t.Fatalf("ciphertext missing prefix: %q", ct)
		}
		if strings.Contains(ct, plain) {
			t.Fatalf("ciphertext leaks plaintext")
		}
		got, err := c.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if string(got) != plain {
			t.Errorf("round trip = %q, want %q", got, plain)
		}
	}
}

func TestCipherNonceIsRandom(t *testing.T) {
	c, _ := NewCipher(testKey(t))
	a, _ := c.Encrypt([]byte("same"))
	b, _ := c.Encrypt([]byte("same"))
	if a == b {
		t.Error("two encryptions of the same plaintext should differ")
	}
}

func TestCipherWrongKeyFails(t *testing.T) {
	c1, _ := NewCipher(testKey(t))
	c2, _ := NewCipher(testKey(t))

	ct, err := c1.Encrypt([]byte("sk-secret"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := c2.Decrypt(ct)
	if !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt, got %v (plaintext %q)", err, got)
	}
	if got != nil {
		t.Errorf("expected no plaintext on failure, got %q", got)
	}
}

func TestCipherTamperedFails(t *testing.T) {
	c, _ := NewCipher(testKey(t))
	ct, _ := c.Encrypt([]byte("sk-secret"))

	raw, _ := base64.StdEncoding.DecodeString(strings.TrimPrefix(ct, prefix))
	raw[len(raw)-1] ^= 0x01
	tampered := prefix + base64.StdEncoding.EncodeToString(raw)

	if _, err := c.Decrypt(tampered); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt for tampered ciphertext, got %v", err)
	}
}

func TestCipherMalformedFails(t *testing.T) {
	c, _ := NewCipher(testKey(t))
	tests := []struct {
		name  string
		input string
	}{
		{"plain_text", "sk-not-encrypted"},
		{"empty", ""},
		{"bad_base64", prefix + "!!!not-base64"},
		{"too_short", prefix + base64.StdEncoding.EncodeToString([]byte("abc"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Decrypt(tt.input); !errors.Is(err, ErrDecrypt) {
				t.Errorf("Decrypt(%q) error = %v, want ErrDecrypt", tt.input, err)
			}
		})
	}
}

func TestEncryptEmptyPlaintext(t *testing.T) {
	c, _ := NewCipher(testKey(t))
	if _, err := c.Encrypt(nil); err == nil {
		t.Error("expected error for empty plaintext")
	}
}

func TestStringHelpersRoundTrip(t *testing.T) {
	key, _ := GenerateMasterKey()
	ct, err := Encrypt("sk-1", key)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decrypt(ct, key)
	if err != nil {
		t.Fatal(err)
	}
	if got != "sk-1" {
		t.Errorf("got %q", got)
	}

	other, _ := GenerateMasterKey()
	if _, err := Decrypt(ct, other); !errors.Is(err, ErrDecrypt) {
		t.Errorf("expected ErrDecrypt with other key, got %v", err)
	}
}

func TestParseMasterKey(t *testing.T) {
	raw := strings.Repeat("k", 32)
	hexKey := strings.Repeat("ab", 32)
	b64Key := base64.StdEncoding.EncodeToString([]byte(raw))

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"hex", hexKey, false},
		{"base64", b64Key, false},
		{"raw", raw, false},
		{"hex_with_newline", hexKey + "\n", false},
		{"empty", "", true},
		{"short", "tooshort", true},
		{"long", strings.Repeat("a", 65), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMasterKey(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseMasterKey error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidMasterKey) {
				t.Errorf("expected ErrInvalidMasterKey, got %v", err)
			}
		})
	}
}
