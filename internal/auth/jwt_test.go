package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-chat-rooms/internal/config"
)

const secret = "0123456789abcdef0123456789abcdef"

func newVerifier(t *testing.T, issuer string) *Verifier {
	t.Helper()
	v, err := NewVerifier(config.AuthConfig{JWTSecret: secret, Issuer: issuer, TokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	if _, err := NewVerifier(config.AuthConfig{}); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	v := newVerifier(t, "chat")
	tok, err := v.IssueToken(Principal{ID: "u1", Username: "alice", IsStaff: true})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	p, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.ID != "u1" || p.Username != "alice" || !p.IsStaff {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestVerify_EmptyIsAnonymous(t *testing.T) {
	v := newVerifier(t, "")
	p, err := v.Verify("  ")
	if err != nil || !p.Anonymous() {
		t.Fatalf("expected anonymous, got %+v err=%v", p, err)
	}
	if _, err := v.IssueToken(Principal{}); err == nil {
		t.Fatalf("expected error issuing anonymous token")
	}
}

func TestVerify_Rejections(t *testing.T) {
	v := newVerifier(t, "chat")

	t.Run("garbage", func(t *testing.T) {
		if _, err := v.Verify("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("want ErrInvalidToken, got %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, _ := NewVerifier(config.AuthConfig{JWTSecret: "ffffffffffffffffffffffffffffffff", Issuer: "chat"})
		tok, _ := other.IssueToken(Principal{ID: "u1"})
		if _, err := v.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("want ErrInvalidToken, got %v", err)
		}
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := newVerifier(t, "elsewhere")
		tok, _ := other.IssueToken(Principal{ID: "u1"})
		if _, err := v.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("want ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		old := newVerifier(t, "chat")
		old.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		tok, _ := old.IssueToken(Principal{ID: "u1"})
		if _, err := v.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("want ErrInvalidToken, got %v", err)
		}
	})

	t.Run("none alg", func(t *testing.T) {
		tok, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: "chat"}}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		if _, err := v.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("want ErrInvalidToken, got %v", err)
		}
	})

	t.Run("missing subject", func(t *testing.T) {
		tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "chat",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}).SignedString([]byte(secret))
		if _, err := v.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("want ErrInvalidToken, got %v", err)
		}
	})
}

func TestBearerToken(t *testing.T) {
	if BearerToken("Bearer abc") != "abc" || BearerToken("bearer  xyz ") != "xyz" {
		t.Fatalf("bearer parse failed")
	}
	if BearerToken("Basic abc") != "" || BearerToken("Bearer ") != "" {
		t.Fatalf("non-bearer must be empty")
	}
}
