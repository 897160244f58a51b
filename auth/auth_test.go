package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kbukum/dictation/auth/jwt"
	apperrors "github.com/kbukum/dictation/errors"
)

type fakeUsers map[string]int64

func (f fakeUsers) ResolveUser(ctx context.Context, username string) (Identity, error) {
	id, ok := f[username]
	if !ok {
		return Identity{}, ErrUserNotFound
	}
	return Identity{UserID: id, Username: username}, nil
}

func newVerifier(t *testing.T) *JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier(jwt.Config{Secret: "test-secret", Issuer: "dictation"})
	if err != nil {
		t.Fatalf("NewJWTVerifier: %v", err)
	}
	return v
}

func TestAuthenticateSuccess(t *testing.T) {
	v := newVerifier(t)
	token, err := v.Issue("dr.house")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	a := NewAuthenticator(v, fakeUsers{"dr.house": 7})
	id, err := a.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.UserID != 7 || id.Username != "dr.house" {
		t.Errorf("unexpected identity %+v", id)
	}
}

func TestAuthenticateFailures(t *testing.T) {
	v := newVerifier(t)
	unknown, _ := v.Issue("ghost")

	other, _ := NewJWTVerifier(jwt.Config{Secret: "other-secret"})
	forged, _ := other.Issue("dr.house")

	tests := []struct {
		name   string
		token  string
		reason string
	}{
		{"missing", "", ReasonAuthRequired},
		{"garbage", "not-a-jwt", ReasonAuthRequired},
		{"wrong secret", forged, ReasonAuthRequired},
		{"unknown user", unknown, ReasonUserNotFound},
	}

	a := NewAuthenticator(v, fakeUsers{"dr.house": 7})
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Authenticate(context.Background(), tc.token)
			appErr, ok := apperrors.AsAppError(err)
			if !ok {
				t.Fatalf("expected AppError, got %v", err)
			}
			if appErr.Code != apperrors.ErrCodeAuthenticationFailed {
				t.Errorf("code = %s", appErr.Code)
			}
			if appErr.Message != tc.reason {
				t.Errorf("reason = %q, want %q", appErr.Message, tc.reason)
			}
		})
	}
}

func TestAuthenticateExpiredToken(t *testing.T) {
	v, err := NewJWTVerifier(jwt.Config{Secret: "s", AccessTokenTTL: -time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	token, _ := v.Issue("dr.house")

	_, err = v.VerifyToken(token)
	if !errors.Is(err, jwt.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

type failingUsers struct{ err error }

func (f failingUsers) ResolveUser(ctx context.Context, username string) (Identity, error) {
	return Identity{}, f.err
}

func TestAuthenticateLookupError(t *testing.T) {
	v := newVerifier(t)
	token, _ := v.Issue("dr.house")
	dbErr := errors.New("database is locked")

	_, err := NewAuthenticator(v, failingUsers{dbErr}).Authenticate(context.Background(), token)
	if !errors.Is(err, dbErr) {
		t.Fatalf("expected lookup error to pass through, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "abc",
		"Basic abc":   "",
		"abc":         "",
		"":            "",
	}
	for in, want := range tests {
		if got := BearerToken(in); got != want {
			t.Errorf("BearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}
