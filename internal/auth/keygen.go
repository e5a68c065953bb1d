package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Key format: pp_{env}_{prefix}_{secret}
// Example: pp_live_3f9a0c7d12be_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	KeyPrefixLen = 12 // hex encoded 6 bytes, unique per user
	KeySecretLen = 32 // hex encoded 16 bytes

	keyScheme = "pp_"
)

// Environment indicators for key prefix.
const (
	EnvLive = "live"
	EnvTest = "test"
)

var (
	// ErrInvalidKeyFormat indicates the key format is invalid.
	ErrInvalidKeyFormat = errors.New("invalid API key format")

	keyFormatRegex = regexp.MustCompile(`^pp_(live|test)_([a-f0-9]{12})_([a-f0-9]{32})$`)
)

// GeneratedKey contains the parts of a newly generated API key.
type GeneratedKey struct {
	Plaintext string // full key, shown once
	Hash      string // Argon2id hash for storage
	Prefix    string // visible prefix used for lookup
}

// KeyGenerator mints API keys.
type KeyGenerator struct {
	Env    string
	Params Params
}

// NewKeyGenerator returns a generator for env using DefaultParams.
func NewKeyGenerator(env string) *KeyGenerator {
	if env != EnvLive && env != EnvTest {
		env = EnvLive
	}
	return &KeyGenerator{Env: env, Params: DefaultParams}
}

// Generate creates a new random API key and its hash.
func (g *KeyGenerator) Generate() (*GeneratedKey, error) {
	prefix, err := randomHex(KeyPrefixLen / 2)
	if err != nil {
		return nil, fmt.Errorf("generate prefix: %w", err)
	}
	secret, err := randomHex(KeySecretLen / 2)
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	plaintext := fmt.Sprintf("%s%s_%s_%s", keyScheme, g.Env, prefix, secret)

	hash, err := g.Params.Hash(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash key: %w", err)
	}

	return &GeneratedKey{
		Plaintext: plaintext,
		Hash:      hash,
		Prefix:    prefix,
	}, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ParsedKey contains the parsed parts of an API key.
type ParsedKey struct {
	Env    string
	Prefix string
	Secret string
}

// ParseAPIKey extracts the components from a plaintext API key.
func ParseAPIKey(key string) (*ParsedKey, error) {
	matches := keyFormatRegex.FindStringSubmatch(key)
	if matches == nil {
		return nil, ErrInvalidKeyFormat
	}

	return &ParsedKey{
		Env:    matches[1],
		Prefix: matches[2],
		Secret: matches[3],
	}, nil
}

// LooksLikeAPIKey reports whether s uses the API key scheme, valid or not.
// Bearer tokens without the scheme are treated as session tokens.
func LooksLikeAPIKey(s string) bool {
	return strings.HasPrefix(s, keyScheme)
}
