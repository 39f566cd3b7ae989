package vault

import (
	"errors"
	"testing"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	v := New("operator-secret")

	seed := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

	encrypted, err := v.Encrypt(seed)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	decrypted, err := v.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}

	if decrypted != seed {
		t.Errorf("roundtrip mismatch, want: %s, got: %s", seed, decrypted)
	}
}

func TestEncryptUsesFreshSalt(t *testing.T) {
	v := New("operator-secret")

	first, err := v.Encrypt("seed")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	second, err := v.Encrypt("seed")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	if first == second {
		t.Errorf("two encryptions of the same seed produced identical blobs")
	}
}

func TestDecryptWrongSecretFails(t *testing.T) {
	encrypted, err := New("right-secret").Encrypt("seed")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	if _, err = New("wrong-secret").Decrypt(encrypted); err == nil {
		t.Errorf("decrypt with the wrong secret succeeded")
	}
}

func TestDecryptMalformedBlob(t *testing.T) {
	cases := []struct {
		name string
		blob string
	}{
		{
			name: "NotBase64",
			blob: "%%%not-base64%%%",
		},
		{
			name: "TooShort",
			blob: "c2hvcnQ=",
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := New("secret").Decrypt(tc.blob)
			if !errors.Is(err, ErrMalformedBlob) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
