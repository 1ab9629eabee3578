package app

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/gilrm92/trading-spot/internal/adapter/metrics"
	"github.com/gilrm92/trading-spot/internal/domain"
)

// RateLimitedError is returned by Login when the client has used up its attempts.
type RateLimitedError struct {
	Decision domain.LoginDecision
}

func (e *RateLimitedError) Error() string {
	return "too many login attempts"
}

// Authenticator gates the admin surface behind a verified game-API credential
// whose owner is in the permitted-identity set.
type Authenticator struct {
	verifier domain.CredentialVerifier
	limiter  domain.LoginLimiter
	allowed  []int64
	metrics  *metrics.AuthMetrics
}

// NewAuthenticator creates an authenticator. limiter and m may be nil.
func NewAuthenticator(verifier domain.CredentialVerifier, limiter domain.LoginLimiter, allowed []int64, m *metrics.AuthMetrics) *Authenticator {
	return &Authenticator{
		verifier: verifier,
		limiter:  limiter,
		allowed:  allowed,
		metrics:  m,
	}
}

// Login rate-limits by clientKey, verifies apiKey upstream and checks the
// owner against the permitted set.
func (a *Authenticator) Login(ctx context.Context, apiKey, clientKey string) (*domain.Profile, error) {
	if a.limiter != nil {
		decision, err := a.limiter.Attempt(ctx, clientKey)
		if err != nil {
			// Fail open.
			slog.Error("Login limiter failed", "client", clientKey, "error", err)
		} else if !decision.Allowed {
			a.record("rate_limited")
			return nil, &RateLimitedError{Decision: decision}
		}
	}

	if apiKey == "" {
		a.record("rejected")
		return nil, domain.NewValidationError("apiKey", "API key is required")
	}

	profile, err := a.verifier.VerifyKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredential) {
			a.record("rejected")
		} else {
			a.record("error")
		}
		return nil, err
	}

	if !a.IsAllowed(profile.ID) {
		a.record("rejected")
		slog.Warn("Login rejected for identity outside the admin set", "profile_id", profile.ID)
		return nil, domain.ErrIdentityNotAllowed
	}

	a.record("success")
	slog.Info("Admin logged in", "profile_id", profile.ID, "name", profile.Name)
	return profile, nil
}

// IsAllowed reports whether the profile id belongs to the permitted-identity set.
func (a *Authenticator) IsAllowed(profileID int64) bool {
	return slices.Contains(a.allowed, profileID)
}

func (a *Authenticator) record(result string) {
	if a.metrics != nil {
		a.metrics.LoginAttempts.WithLabelValues(result).Inc()
	}
}
