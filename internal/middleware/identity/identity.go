// Package identity resolves the signed-in user of a request. Reads are
// public; handlers that mutate the registry require a user.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"

	"giftregistry/internal/log"
)

const (
	// HeaderUserID carries the user id in header mode.
	HeaderUserID = "X-User-ID"
	// TokenCookie carries a Firebase ID token for plain form posts.
	TokenCookie = "id_token"
)

// ErrInvalidCredentials is returned for a present but unusable credential.
var ErrInvalidCredentials = errors.New("invalid credentials")

type contextKey struct{}

// Authenticator returns the user id of r, "" for anonymous requests.
type Authenticator interface {
	Identify(r *http.Request) (string, error)
}

// HeaderAuthenticator trusts the X-User-ID header. Meant for development and
// deployments behind an authenticating proxy.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Identify(r *http.Request) (string, error) {
	return strings.TrimSpace(r.Header.Get(HeaderUserID)), nil
}

// TokenVerifier is the part of the Firebase auth client used here.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseAuthenticator verifies Firebase ID tokens from the Authorization
// header or the id_token cookie. The user id is the token's UID.
type FirebaseAuthenticator struct {
	verifier TokenVerifier
}

func NewFirebaseAuthenticator(verifier TokenVerifier) *FirebaseAuthenticator {
	return &FirebaseAuthenticator{verifier: verifier}
}

// NewFirebaseAuthenticatorFromApp builds the auth client of app.
func NewFirebaseAuthenticatorFromApp(ctx context.Context, app *firebase.App) (*FirebaseAuthenticator, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("create firebase auth client: %w", err)
	}
	return NewFirebaseAuthenticator(client), nil
}

func (a *FirebaseAuthenticator) Identify(r *http.Request) (string, error) {
	token := bearerToken(r)
	if token == "" {
		if c, err := r.Cookie(TokenCookie); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		return "", nil
	}
	verified, err := a.verifier.VerifyIDToken(r.Context(), token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return verified.UID, nil
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Middleware stores the resolved user in the request context. Requests with
// invalid credentials are rejected with 401.
func Middleware(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := a.Identify(r)
			if err != nil {
				log.FromContext(r.Context()).WarnContext(r.Context(), "Rejected request credentials", log.FieldError, err)
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
			if user != "" {
				r = r.WithContext(WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUser returns ctx carrying user.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// User returns the signed-in user, "" when anonymous.
func User(ctx context.Context) string {
	user, _ := ctx.Value(contextKey{}).(string)
	return user
}
