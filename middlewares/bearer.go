package middlewares

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/dmitrymomot/herald/internal"
)

// operatorKey stores the name of the operator whose token matched.
type operatorKey struct{}

// BearerConfig configures the bearer token middleware.
type BearerConfig struct {
	Extractor internal.Extractor
	// Tokens maps an accepted token to the operator name logged with requests.
	Tokens map[string]string
}

// BearerOption configures BearerConfig.
type BearerOption func(*BearerConfig)

// WithBearerExtractor sets a custom token extractor chain.
func WithBearerExtractor(ext internal.Extractor) BearerOption {
	return func(cfg *BearerConfig) {
		cfg.Extractor = ext
	}
}

// WithBearerToken accepts token and attributes requests that use it to name.
func WithBearerToken(name, token string) BearerOption {
	return func(cfg *BearerConfig) {
		if token != "" {
			cfg.Tokens[token] = name
		}
	}
}

// BearerAuth guards operator routes with static API tokens. With no token
// configured every request is rejected, so an empty OPERATOR_TOKEN never
// leaves the routes open.
func BearerAuth(opts ...BearerOption) internal.Middleware {
	cfg := &BearerConfig{
		Extractor: internal.NewExtractor(internal.FromBearerToken()),
		Tokens:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	// Hash once so comparisons run over equal-length inputs.
	digests := make(map[[sha256.Size]byte]string, len(cfg.Tokens))
	for token, name := range cfg.Tokens {
		digests[sha256.Sum256([]byte(token))] = name
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			token, ok := cfg.Extractor.Extract(c)
			if !ok {
				return internal.ErrUnauthorized("missing bearer token")
			}

			got := sha256.Sum256([]byte(token))
			var (
				name    string
				matched int
			)
			for want, n := range digests {
				if subtle.ConstantTimeCompare(got[:], want[:]) == 1 {
					name, matched = n, 1
				}
			}
			if matched == 0 {
				return internal.ErrUnauthorized("invalid bearer token")
			}

			c.Set(operatorKey{}, name)
			return next(c)
		}
	}
}

// GetOperator returns the operator name set by BearerAuth, or "".
func GetOperator(c internal.Context) string {
	v, _ := c.Get(operatorKey{}).(string)
	return v
}
