package identity

import (
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// FederatedAssertion is the identity material extracted from a verified
// third-party assertion.
type FederatedAssertion struct {
	Subject string
	Email   string
}

// AssertionVerifier validates signed identity assertions from a trusted IdP
// against its published JWK Set, checking issuer and audience before
// extracting the asserted email.
type AssertionVerifier struct {
	jwks     *keyfunc.JWKS
	keyFn    jwt.Keyfunc
	issuer   string
	audience []string
	logger   Logger
}

// NewAssertionVerifier fetches the IdP's JWK Set and keeps it refreshed in
// the background.
func NewAssertionVerifier(jwksURL, issuer string, audience []string) (*AssertionVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			log.Printf("failed to do a background refresh of JWK set: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load federated JWK set").
			WithMetadata(map[string]any{"jwks_url": jwksURL})
	}

	return &AssertionVerifier{
		jwks:     jwks,
		keyFn:    jwks.Keyfunc,
		issuer:   issuer,
		audience: audience,
		logger:   defLogger{},
	}, nil
}

// NewStaticAssertionVerifier builds a verifier from an in-process key
// function. Used by tests and deployments that pin the IdP key material.
func NewStaticAssertionVerifier(keyFn jwt.Keyfunc, issuer string, audience []string) *AssertionVerifier {
	return &AssertionVerifier{
		keyFn:    keyFn,
		issuer:   issuer,
		audience: audience,
		logger:   defLogger{},
	}
}

func (v *AssertionVerifier) WithLogger(logger Logger) *AssertionVerifier {
	v.logger = logger
	return v
}

// Verify parses and validates a raw assertion, returning the asserted
// identity. Any failure collapses to ErrUnauthenticated.
func (v *AssertionVerifier) Verify(raw string) (FederatedAssertion, error) {
	if raw == "" {
		return FederatedAssertion{}, ErrUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	for _, aud := range v.audience {
		opts = append(opts, jwt.WithAudience(aud))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, v.keyFn, opts...)
	if err != nil || !token.Valid {
		v.logger.Debug("assertion validation failed: %v", err)
		return FederatedAssertion{}, ErrUnauthenticated
	}

	assertion := FederatedAssertion{}

	if sub, err := claims.GetSubject(); err == nil {
		assertion.Subject = sub
	}

	if email, ok := claims["email"].(string); ok {
		assertion.Email = NormalizeEmail(email)
	}

	if assertion.Email == "" {
		v.logger.Debug("assertion carries no email claim, subject: %s", assertion.Subject)
		return FederatedAssertion{}, ErrUnauthenticated
	}

	return assertion, nil
}

// Close stops the background JWK refresh
func (v *AssertionVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
