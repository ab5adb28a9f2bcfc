package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when a request carries no valid credential.
var ErrUnauthorized = errors.New("unauthorized")

type contextKey string

const contextSubjectKey contextKey = "sub"

// WithUserID returns a copy of ctx carrying the authenticated user id.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, contextSubjectKey, userID)
}

// UserIDFromContext returns the authenticated user id stored by the auth
// middleware. It is the only way request handlers learn who the requester is.
func UserIDFromContext(ctx context.Context) (int, error) {
	userID, ok := ctx.Value(contextSubjectKey).(int)
	if !ok || userID < 1 {
		return 0, ErrUnauthorized
	}
	return userID, nil
}

// Verifier turns a bearer token into the id of the user it was issued to.
type Verifier interface {
	Verify(ctx context.Context, token string) (int, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, token string) (int, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (int, error) {
	return f(ctx, token)
}

// AnyOf accepts a token if any of the verifiers accepts it, trying them in order.
func AnyOf(verifiers ...Verifier) Verifier {
	return VerifierFunc(func(ctx context.Context, token string) (int, error) {
		err := ErrUnauthorized
		for _, v := range verifiers {
			userID, verr := v.Verify(ctx, token)
			if verr == nil {
				return userID, nil
			}
			if !errors.Is(verr, ErrUnauthorized) {
				err = verr
			}
		}
		return 0, err
	})
}
