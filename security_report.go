package goSession

import "time"

// SecurityReport summarizes the security-relevant settings of an Engine.
type SecurityReport struct {
	ProductionMode     bool
	SigningAlgorithm   string
	SessionTTL         time.Duration
	SecureCookie       bool
	CookieName         string
	RedirectMode       RedirectMode
	PasswordPrimary    string
	UpgradeOnLogin     bool
	Argon2             PasswordConfigReport
	RateLimitingActive bool
	IPThrottleActive   bool
	OAuthProviders     []string
	AuditEnabled       bool
}

type PasswordConfigReport struct {
	BcryptCost  int
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		ProductionMode:   e.config.Security.ProductionMode,
		SigningAlgorithm: e.config.JWT.SigningMethod,
		SessionTTL:       e.config.JWT.SessionTTL,
		SecureCookie:     e.config.Cookie.Secure,
		CookieName:       e.cookie.Name(),
		RedirectMode:     e.config.Redirect.Mode,
		PasswordPrimary:  e.config.Password.Primary,
		UpgradeOnLogin:   e.updater != nil,
		Argon2: PasswordConfigReport{
			BcryptCost:  e.config.Password.BcryptCost,
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		RateLimitingActive: e.rateLimiter != nil,
		IPThrottleActive:   e.rateLimiter != nil && e.config.Security.EnableIPThrottle,
		OAuthProviders:     e.Providers(),
		AuditEnabled:       e.audit != nil,
	}
}
