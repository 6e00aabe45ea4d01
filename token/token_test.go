package token_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/firasghr/HeyteaDIY/token"
)

// sampleJWT's payload is {"sub":"1234567890","name":"Test","exp":9999999999}.
const sampleJWT = "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9." +
	"eyJzdWIiOiIxMjM0NTY3ODkwIiwibmFtZSI6IlRlc3QiLCJleHAiOjk5OTk5OTk5OTl9." +
	"SflKxwRJSMeKKF2QT4fwpMeJf36POk6yJV_adQssw5c"

// expiredJWT's payload is {"sub":"1234567890","exp":1}.
const expiredJWT = "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9." +
	"eyJzdWIiOiIxMjM0NTY3ODkwIiwiZXhwIjoxfQ." +
	"SflKxwRJSMeKKF2QT4fwpMeJf36POk6yJV_adQssw5c"

func TestParseClaims_Valid(t *testing.T) {
	claims, err := token.ParseClaims("Bearer " + sampleJWT)
	if err != nil {
		t.Fatalf("ParseClaims: %v", err)
	}
	if claims["sub"] != "1234567890" {
		t.Errorf("sub: got %v", claims["sub"])
	}
	exp, ok := claims.ExpiresAt()
	if !ok || exp.Unix() != 9999999999 {
		t.Errorf("ExpiresAt: got %v, %v", exp, ok)
	}
}

func TestParseClaims_Malformed(t *testing.T) {
	for _, tok := range []string{"", "opaque-token", "a.b", "a.!!!.c"} {
		if _, err := token.ParseClaims(tok); err == nil {
			t.Errorf("ParseClaims(%q): expected error", tok)
		}
	}
}

func TestInspect(t *testing.T) {
	now := time.Unix(1700000000, 0)

	st := token.Inspect(sampleJWT, now)
	if !st.JWT || st.Expired {
		t.Errorf("valid JWT: got %+v", st)
	}

	st = token.Inspect(expiredJWT, now)
	if !st.JWT || !st.Expired {
		t.Errorf("expired JWT: got %+v", st)
	}

	st = token.Inspect("opaque-session-id", now)
	if st.JWT || st.Expired {
		t.Errorf("opaque token: got %+v", st)
	}
}

func TestCredentials_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	want := token.Credentials{Token: "Bearer x", UserMainID: "42"}
	if err := want.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := token.LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if got.Token != want.Token || got.UserMainID != want.UserMainID {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.SavedAt.IsZero() {
		t.Error("SavedAt not set")
	}
}

func TestLoadCredentials_Missing(t *testing.T) {
	_, err := token.LoadCredentials(filepath.Join(t.TempDir(), "none.json"))
	if !errors.Is(err, token.ErrNoCredentials) {
		t.Errorf("got %v, want ErrNoCredentials", err)
	}
}
