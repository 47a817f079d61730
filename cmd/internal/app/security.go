package app

import "errors"

const minHMACSecretBytes = 32

// ValidateSecurityConfig enforces Pulse's token policy at startup.
//
// Fail-fast is intentional: silently falling back to dev tokens in production
// is unacceptable. Byte length is measured (not runes) because the secret is
// used as raw key material.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	if cfg.TokenHMACSecret == "" {
		return errors.New("security policy: PULSE_REQUIRE_TOKEN_HMAC=true but PULSE_TOKEN_HMAC_SECRET is missing")
	}
	if len(cfg.TokenHMACSecret) < minHMACSecretBytes {
		return errors.New("security policy: PULSE_REQUIRE_TOKEN_HMAC=true but PULSE_TOKEN_HMAC_SECRET is too short (min 32 bytes)")
	}
	if cfg.DevTokens != "" {
		return errors.New("security policy: PULSE_DEV_TOKENS must not be set when HMAC tokens are required")
	}

	return nil
}
