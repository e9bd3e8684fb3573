package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestUserIDFromClaims(t *testing.T) {
	cases := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{"sub", jwt.MapClaims{"sub": "abc123"}, "abc123"},
		{"user_id fallback", jwt.MapClaims{"user_id": "xyz"}, "xyz"},
		{"sub wins", jwt.MapClaims{"sub": "a", "user_id": "b"}, "a"},
		{"empty sub falls through", jwt.MapClaims{"sub": "", "user_id": "b"}, "b"},
		{"none", jwt.MapClaims{}, ""},
		{"non-string", jwt.MapClaims{"sub": 42}, ""},
	}
	for _, c := range cases {
		if got := UserIDFromClaims(c.claims); got != c.want {
			t.Errorf("%s: expected %q, got %q", c.name, c.want, got)
		}
	}
}

func TestBearerToken(t *testing.T) {
	if got := BearerToken("Bearer abc.def.ghi"); got != "abc.def.ghi" {
		t.Errorf("expected token, got %q", got)
	}
	if got := BearerToken("Bearer   spaced  "); got != "spaced" {
		t.Errorf("expected trimmed token, got %q", got)
	}
	for _, bad := range []string{"", "abc", "Basic abc", "bearer abc"} {
		if got := BearerToken(bad); got != "" {
			t.Errorf("header %q: expected empty, got %q", bad, got)
		}
	}
}

func TestVerifyTokenTestBypass(t *testing.T) {
	v := &Verifier{projectID: "demo", testToken: "let-me-in"}

	claims, err := v.VerifyToken("let-me-in")
	if err != nil {
		t.Fatalf("test token rejected: %v", err)
	}
	if UserIDFromClaims(claims) != "testuid" {
		t.Errorf("expected testuid, got %q", UserIDFromClaims(claims))
	}
}
