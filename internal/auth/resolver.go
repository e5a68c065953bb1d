package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/pingpanda/pingpanda/internal/model"
)

var (
	// ErrNoCredential means the resolver found nothing it understands on the request.
	ErrNoCredential = errors.New("no credential presented")
	// ErrInvalidCredential means a credential was presented but did not verify.
	ErrInvalidCredential = errors.New("invalid credential")
)

// Resolver maps a request to its owning user.
//
// Implementations return ErrNoCredential when their credential kind is
// absent and ErrInvalidCredential when it is present but rejected. Any other
// error is an infrastructure failure.
type Resolver interface {
	Resolve(r *http.Request) (*model.AuthContext, error)
}

// Chain tries each resolver in order and returns the first success.
// Infrastructure errors stop the chain.
type Chain []Resolver

// Resolve implements Resolver.
func (c Chain) Resolve(r *http.Request) (*model.AuthContext, error) {
	failure := ErrNoCredential
	for _, res := range c {
		authCtx, err := res.Resolve(r)
		switch {
		case err == nil:
			return authCtx, nil
		case errors.Is(err, ErrNoCredential):
			continue
		case errors.Is(err, ErrInvalidCredential):
			failure = err
			continue
		default:
			return nil, err
		}
	}
	return nil, failure
}

// bearerToken returns the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// ExtractAPIKey returns the API key from the Authorization bearer token or
// the X-API-Key header. Bearer tokens not using the key scheme are ignored.
func ExtractAPIKey(r *http.Request) string {
	if token := bearerToken(r); token != "" && LooksLikeAPIKey(token) {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
