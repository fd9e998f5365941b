package identity

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goliatone/go-errors"
)

// EnvConfig is the process configuration, loaded from the environment.
// The administrator bootstrap values have no default: their absence is a
// fatal configuration error before any request is served.
type EnvConfig struct {
	AdminEmail        string   `env:"IDENTITY_SETUP_ADMIN_EMAIL"`
	AdminPassword     string   `env:"IDENTITY_SETUP_ADMIN_PASSWORD"`
	SessionTTLSeconds int      `env:"IDENTITY_SESSION_TTL_SECONDS" envDefault:"86400"`
	PublicURL         string   `env:"IDENTITY_PUBLIC_URL" envDefault:"http://localhost:8080"`
	CookieName        string   `env:"IDENTITY_COOKIE_NAME" envDefault:"identity_session"`
	Strategy          string   `env:"IDENTITY_AUTH_STRATEGY" envDefault:"password"`
	FederatedJWKSURL  string   `env:"IDENTITY_FEDERATED_JWKS_URL"`
	FederatedIssuer   string   `env:"IDENTITY_FEDERATED_ISSUER"`
	FederatedAudience []string `env:"IDENTITY_FEDERATED_AUDIENCE" envSeparator:","`
}

var _ Config = (*EnvConfig)(nil)

// LoadConfig parses and validates the environment contract
func LoadConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to parse environment configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate enforces the bootstrap environment contract
func (c *EnvConfig) Validate() error {
	if c.AdminEmail == "" {
		return missingConfigError("IDENTITY_SETUP_ADMIN_EMAIL")
	}

	if c.AdminPassword == "" {
		return missingConfigError("IDENTITY_SETUP_ADMIN_PASSWORD")
	}

	if _, ok := ParseStrategyKind(c.Strategy); !ok {
		return errors.New("unknown authentication strategy", errors.CategoryBadInput).
			WithTextCode("INVALID_STRATEGY").
			WithMetadata(map[string]any{"strategy": c.Strategy})
	}

	if StrategyKind(c.Strategy) == StrategyFederated && c.FederatedJWKSURL == "" {
		return missingConfigError("IDENTITY_FEDERATED_JWKS_URL")
	}

	return nil
}

func missingConfigError(variable string) error {
	clone := ErrMissingBootstrapConfig.Clone()
	if clone == nil {
		return ErrMissingBootstrapConfig
	}
	clone.Source = ErrMissingBootstrapConfig
	return clone.WithMetadata(map[string]any{"variable": variable})
}

func (c *EnvConfig) GetAdminEmail() string {
	return c.AdminEmail
}

func (c *EnvConfig) GetAdminPassword() string {
	return c.AdminPassword
}

func (c *EnvConfig) GetSessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c *EnvConfig) GetCookieName() string {
	return c.CookieName
}

func (c *EnvConfig) GetPublicURL() string {
	return c.PublicURL
}

func (c *EnvConfig) GetStrategy() StrategyKind {
	kind, ok := ParseStrategyKind(c.Strategy)
	if !ok {
		return StrategyPassword
	}
	return kind
}

func (c *EnvConfig) GetFederatedJWKSURL() string {
	return c.FederatedJWKSURL
}

func (c *EnvConfig) GetFederatedIssuer() string {
	return c.FederatedIssuer
}

func (c *EnvConfig) GetFederatedAudience() []string {
	return c.FederatedAudience
}
