package auth

import "time"

type LimitPolicyConfig struct {
	MaxAttempts   int `yaml:"max_attempts"`
	WindowSeconds int `yaml:"window_seconds"`
	BlockSeconds  int `yaml:"block_seconds"`
}

func (c *LimitPolicyConfig) policy() LimitPolicy {
	return LimitPolicy{
		MaxAttempts: c.MaxAttempts,
		Window:      time.Duration(c.WindowSeconds) * time.Second,
		BlockFor:    time.Duration(c.BlockSeconds) * time.Second,
	}
}

type LimitsConfig struct {
	Register LimitPolicyConfig `yaml:"register"`
	Login    LimitPolicyConfig `yaml:"login"`
	Refresh  LimitPolicyConfig `yaml:"refresh"`
}

type Config struct {
	// Secret is the shared HMAC secret for access and refresh tokens.
	Secret string `yaml:"secret"`

	// Issuer is the url of this service, stamped into every token.
	Issuer string `yaml:"issuer"`

	// AccessTokenTTL in seconds.
	AccessTokenTTL int `yaml:"access_token_ttl"`

	// RefreshTokenTTL in seconds.
	RefreshTokenTTL int `yaml:"refresh_token_ttl"`

	Limits LimitsConfig `yaml:"limits"`
}

func (c *Config) Validate() {
	if c.Secret == "" {
		logger.Fatal().Msg("auth.Config: Secret is missing")
	}
	if c.Issuer == "" {
		logger.Fatal().Msg("auth.Config: Issuer is missing")
	}

	c.applyDefaults()
}

func (c *Config) applyDefaults() {
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = 900 // 15 minutes
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = 30 * 24 * 3600 // 30 days
	}

	if c.Limits.Login.MaxAttempts == 0 {
		c.Limits.Login = LimitPolicyConfig{MaxAttempts: 5, WindowSeconds: 900, BlockSeconds: 1800}
	}
	if c.Limits.Register.MaxAttempts == 0 {
		c.Limits.Register = LimitPolicyConfig{MaxAttempts: 10, WindowSeconds: 3600, BlockSeconds: 3600}
	}
	if c.Limits.Refresh.MaxAttempts == 0 {
		c.Limits.Refresh = LimitPolicyConfig{MaxAttempts: 30, WindowSeconds: 60, BlockSeconds: 300}
	}
}

func (c *Config) AccessTokenTTLDuration() time.Duration {
	return time.Duration(c.AccessTokenTTL) * time.Second
}

func (c *Config) RefreshTokenTTLDuration() time.Duration {
	return time.Duration(c.RefreshTokenTTL) * time.Second
}

func (c *Config) BuildLimits() Limits {
	return Limits{
		Register: c.Limits.Register.policy(),
		Login:    c.Limits.Login.policy(),
		Refresh:  c.Limits.Refresh.policy(),
	}
}
