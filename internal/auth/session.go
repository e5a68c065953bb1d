package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pingpanda/pingpanda/internal/model"
)

// Identity is the stable external identity asserted by the identity provider.
type Identity struct {
	Subject string
	Email   string
}

// IdentityProvider turns a session credential into an Identity.
type IdentityProvider interface {
	Identify(r *http.Request) (*Identity, error)
}

type sessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTIdentityProvider verifies HS256 session tokens issued by the identity
// provider. Tokens are read from the session cookie or from a bearer token
// that is not an API key.
type JWTIdentityProvider struct {
	secret     []byte
	issuer     string
	cookieName string
	parser     *jwt.Parser
}

// NewJWTIdentityProvider creates a provider. An empty issuer skips the iss check.
func NewJWTIdentityProvider(secret, issuer, cookieName string) *JWTIdentityProvider {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &JWTIdentityProvider{
		secret:     []byte(secret),
		issuer:     issuer,
		cookieName: cookieName,
		parser:     jwt.NewParser(opts...),
	}
}

func (p *JWTIdentityProvider) token(r *http.Request) string {
	if c, err := r.Cookie(p.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if token := bearerToken(r); token != "" && !LooksLikeAPIKey(token) {
		return token
	}
	return ""
}

// Identify implements IdentityProvider.
func (p *JWTIdentityProvider) Identify(r *http.Request) (*Identity, error) {
	raw := p.token(r)
	if raw == "" {
		return nil, ErrNoCredential
	}

	var claims sessionClaims
	_, err := p.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: session has no subject", ErrInvalidCredential)
	}

	return &Identity{Subject: claims.Subject, Email: claims.Email}, nil
}

// Issue signs a session token. Used by tests and local tooling; production
// sessions come from the identity provider.
func (p *JWTIdentityProvider) Issue(subject, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// UserProvisioner returns the user bound to an external identity, creating
// it on first contact.
type UserProvisioner interface {
	ResolveExternalUser(ctx context.Context, externalID, email string) (*model.User, error)
}

// SessionResolver authenticates human callers through the identity provider.
type SessionResolver struct {
	Identities IdentityProvider
	Users      UserProvisioner
}

// Resolve implements Resolver.
func (s *SessionResolver) Resolve(r *http.Request) (*model.AuthContext, error) {
	identity, err := s.Identities.Identify(r)
	if err != nil {
		return nil, err
	}

	user, err := s.Users.ResolveExternalUser(r.Context(), identity.Subject, identity.Email)
	if err != nil {
		if errors.Is(err, ErrInvalidCredential) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve session user: %w", err)
	}

	return &model.AuthContext{
		UserID: user.ID,
		Email:  user.Email,
		Plan:   user.Plan,
		Method: model.AuthMethodSession,
	}, nil
}
