package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/kbukum/dictation/auth/jwt"
	apperrors "github.com/kbukum/dictation/errors"
)

// Client-facing reasons. The dictation socket closes with these verbatim.
const (
	ReasonAuthRequired = "Authentication Required"
	ReasonUserNotFound = "User not found"
)

// ErrUserNotFound is returned by a UserResolver for unknown usernames.
var ErrUserNotFound = errors.New("auth: user not found")

// Identity is an authenticated user.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// UserResolver looks a user up by username. Implementations return
// ErrUserNotFound when the user does not exist.
type UserResolver interface {
	ResolveUser(ctx context.Context, username string) (Identity, error)
}

// TokenVerifier extracts the subject from a token.
type TokenVerifier interface {
	VerifyToken(token string) (subject string, err error)
}

// JWTVerifier verifies access tokens and issues them for the token command.
type JWTVerifier struct {
	*jwt.Service
}

func NewJWTVerifier(cfg jwt.Config) (*JWTVerifier, error) {
	svc, err := jwt.NewService(cfg)
	if err != nil {
		return nil, err
	}
	return &JWTVerifier{svc}, nil
}

// VerifyToken returns the username in the token subject.
func (v *JWTVerifier) VerifyToken(token string) (string, error) {
	claims, err := v.Verify(token)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}
	return claims.Subject, nil
}

// Authenticator turns a bearer token into an Identity.
type Authenticator struct {
	verifier TokenVerifier
	users    UserResolver
}

// NewAuthenticator combines token verification with user lookup.
func NewAuthenticator(verifier TokenVerifier, users UserResolver) *Authenticator {
	return &Authenticator{verifier: verifier, users: users}
}

// Authenticate verifies token and resolves its subject. Failures are
// AUTHENTICATION_FAILED AppErrors whose message is ReasonAuthRequired for
// missing, malformed or expired tokens and ReasonUserNotFound for unknown
// users. Lookup errors other than ErrUserNotFound are returned as-is.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, apperrors.AuthenticationFailed(ReasonAuthRequired)
	}
	subject, err := a.verifier.VerifyToken(token)
	if err != nil {
		return Identity{}, apperrors.AuthenticationFailed(ReasonAuthRequired).WithCause(err)
	}
	id, err := a.users.ResolveUser(ctx, subject)
	if errors.Is(err, ErrUserNotFound) {
		return Identity{}, apperrors.AuthenticationFailed(ReasonUserNotFound).WithDetail("username", subject)
	}
	if err != nil {
		return Identity{}, err
	}
	return id, nil
}

// BearerToken extracts the token from an "Authorization: Bearer x" value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type identityKey struct{}

// WithIdentity stores id in ctx for handlers behind the auth middleware.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
