package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/recipebook/recipebook/internal/model"
)

var testHasher = NewHasher(Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8})

func TestGenerateToken_Format(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken(testHasher)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if !strings.HasPrefix(tok.Plaintext, "rb_"+tok.Prefix+"_") {
		t.Errorf("plaintext %q does not start with prefix %q", tok.Plaintext, tok.Prefix)
	}
	if len(tok.Prefix) != TokenPrefixLen {
		t.Errorf("prefix length = %d, want %d", len(tok.Prefix), TokenPrefixLen)
	}

	prefix, err := ParseToken(tok.Plaintext)
	if err != nil {
		t.Fatalf("ParseToken failed on generated token: %v", err)
	}
	if prefix != tok.Prefix {
		t.Errorf("ParseToken prefix = %q, want %q", prefix, tok.Prefix)
	}

	ok, err := VerifyPassword(tok.Plaintext, tok.Hash)
	if err != nil || !ok {
		t.Errorf("stored hash does not verify plaintext (ok=%v, err=%v)", ok, err)
	}
}

func TestGenerateToken_Unique(t *testing.T) {
	t.Parallel()

	a, err := GenerateToken(testHasher)
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateToken(testHasher)
	if err != nil {
		t.Fatal(err)
	}
	if a.Plaintext == b.Plaintext {
		t.Error("two generated tokens should differ")
	}
}

func TestParseToken_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"wrong scheme", "pk_0a1b2c3d_" + strings.Repeat("a", 40)},
		{"short prefix", "rb_0a1b_" + strings.Repeat("a", 40)},
		{"short secret", "rb_0a1b2c3d_abc"},
		{"uppercase", "rb_0A1B2C3D_" + strings.Repeat("A", 40)},
		{"trailing junk", "rb_0a1b2c3d_" + strings.Repeat("a", 40) + "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := ParseToken(tt.token); err != ErrInvalidTokenFormat {
				t.Errorf("ParseToken(%q) error = %v, want %v", tt.token, err, ErrInvalidTokenFormat)
			}
		})
	}
}

func TestAuthContextRoundTrip(t *testing.T) {
	t.Parallel()

	if got := UserIDFromContext(context.Background()); got != 0 {
		t.Errorf("UserIDFromContext on empty context = %d, want 0", got)
	}

	ac := &model.AuthContext{UserID: 42, Email: "a@example.com"}
	ctx := ContextWithAuth(context.Background(), ac)

	if got := AuthFromContext(ctx); got != ac {
		t.Errorf("AuthFromContext = %v, want %v", got, ac)
	}
	if got := UserIDFromContext(ctx); got != 42 {
		t.Errorf("UserIDFromContext = %d, want 42", got)
	}
}
