// Package auth verifies bearer tokens and carries the user id in the request
// context. Tokens are HS256 JWTs whose subject is the numeric user id; they are
// issued by an external identity service.
package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/diewo77/go-quotes/httpx"
)

type ctxKey string

const userIDCtxKey = ctxKey("userID")

var ErrInvalidToken = errors.New("invalid token")

// UserVerifier is an optional callback to validate that a token's user still exists.
type UserVerifier func(ctx context.Context, uid uint) bool

// Authenticator parses bearer tokens signed with a shared secret.
type Authenticator struct {
	secret   []byte
	verifier UserVerifier
	now      func() time.Time
}

// New creates an Authenticator. verifier may be nil.
func New(secret string, verifier UserVerifier) *Authenticator {
	return &Authenticator{secret: []byte(secret), verifier: verifier, now: time.Now}
}

// Sign issues a token for uid. The service never hands these out to clients;
// it exists for tests and the operator token command.
func (a *Authenticator) Sign(uid uint, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(uid), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse validates a token and returns its user id.
func (a *Authenticator) Parse(token string) (uint, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return 0, errors.Wrap(ErrInvalidToken, err.Error())
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.Wrap(ErrInvalidToken, "subject is not a user id")
	}
	return uint(id), nil
}

// WithUserID stores user id in context.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext extracts user id.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(userIDCtxKey).(uint)
	return id, ok && id != 0
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Middleware attaches user id to request context when a valid token is present.
// Missing or invalid tokens fall through unauthenticated; RequireAuth rejects them.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearer(r); token != "" {
			if uid, err := a.Parse(token); err == nil {
				r = r.WithContext(WithUserID(r.Context(), uid))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth returns 401 JSON when the request carries no valid user.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok || (a.verifier != nil && !a.verifier(r.Context(), uid)) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="quotes"`)
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
