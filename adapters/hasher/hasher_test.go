package hasher_test

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/artpar/subroutine/adapters/hasher"
)

func TestBcrypt_Cost(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{bcrypt.MinCost, bcrypt.MinCost},
		{12, 12},
		{1, bcrypt.DefaultCost},
		{100, bcrypt.DefaultCost},
	}

	for _, tt := range tests {
		if got := hasher.NewBcrypt(tt.in).Cost(); got != tt.want {
			t.Errorf("NewBcrypt(%d).Cost() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBcrypt_HashAndCompare(t *testing.T) {
	h := hasher.NewBcrypt(bcrypt.MinCost)

	digest, err := h.Hash("pw123456")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if digest == "pw123456" {
		t.Error("digest should differ from plaintext")
	}
	if !strings.HasPrefix(digest, "$2a$") {
		t.Errorf("digest %q is not a bcrypt digest", digest)
	}

	if !h.Compare(digest, "pw123456") {
		t.Error("Compare should accept the right password")
	}
	if h.Compare(digest, "wrong") {
		t.Error("Compare should reject the wrong password")
	}
	if h.Compare("not a digest", "pw123456") {
		t.Error("Compare should reject a malformed digest")
	}
}

func TestBcrypt_Salted(t *testing.T) {
	h := hasher.NewBcrypt(bcrypt.MinCost)

	a, _ := h.Hash("same")
	b, _ := h.Hash("same")
	if a == b {
		t.Error("two digests of the same password should differ")
	}
}

func TestPlain(t *testing.T) {
	h := hasher.Plain{}

	digest, err := h.Hash("secret")
	if err != nil || digest != "secret" {
		t.Errorf("Hash = %q, %v", digest, err)
	}
	if !h.Compare("secret", "secret") || h.Compare("secret", "other") {
		t.Error("Compare should be plain equality")
	}
}
