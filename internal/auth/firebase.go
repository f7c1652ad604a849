// Package auth is the fan-out server's auth boundary for the
// private/VIP tiers — a collaborator concern per the core broadcast
// contract, kept here as a thin, optional seam rather than enforced
// by default. Public tier traffic never passes through this.
package auth

import (
	"context"
	"log"
	"net/http"
	"strings"

	firebase "firebase.google.com/go"
	"google.golang.org/api/option"
)

// Subscriber identifies the caller behind a verified Firebase ID
// token, for whatever access-logging or per-user rate limit a
// deployment wants to layer on top of the tiered broadcast.
type Subscriber struct {
	UID   string
	Email string
}

// Verifier wraps a Firebase app for ID token verification. A nil
// *Verifier disables auth entirely — every request passes through
// unauthenticated, matching a deployment that hasn't configured
// credentials.
type Verifier struct {
	app *firebase.App
}

// New initializes the Firebase app from a service account credentials
// file. Returns nil (auth disabled) if initialization fails.
func New(credentialsFile string) *Verifier {
	if credentialsFile == "" {
		return nil
	}
	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		log.Printf("⚠️  auth: firebase init failed, private/VIP tiers left unauthenticated: %v", err)
		return nil
	}
	return &Verifier{app: app}
}

// Require wraps an http.Handler so it only runs once the caller's
// Authorization: Bearer <token> has been verified against Firebase. A
// nil Verifier is a passthrough.
func (v *Verifier) Require(next http.Handler) http.Handler {
	if v == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		client, err := v.app.Auth(r.Context())
		if err != nil {
			log.Printf("⚠️  auth: firebase auth client error: %v", err)
			http.Error(w, "internal auth error", http.StatusInternalServerError)
			return
		}
		token, err := client.VerifyIDToken(r.Context(), tokenString)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		sub := &Subscriber{UID: token.UID}
		if email, ok := token.Claims["email"].(string); ok {
			sub.Email = email
		}
		next.ServeHTTP(w, r.WithContext(withSubscriber(r.Context(), sub)))
	})
}

type contextKey struct{}

func withSubscriber(ctx context.Context, sub *Subscriber) context.Context {
	return context.WithValue(ctx, contextKey{}, sub)
}

// FromContext retrieves the verified subscriber, if auth ran.
func FromContext(ctx context.Context) (*Subscriber, bool) {
	sub, ok := ctx.Value(contextKey{}).(*Subscriber)
	return sub, ok
}
