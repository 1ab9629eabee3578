package domain

import (
	"context"
	"time"
)

// Profile is the identity behind a verified game-API credential.
type Profile struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Level int    `json:"level"`
}

type CredentialVerifier interface {
	// VerifyKey returns the profile owning apiKey, or ErrInvalidCredential.
	VerifyKey(ctx context.Context, apiKey string) (*Profile, error)
}

type LoginDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// LoginLimiter counts login attempts per client in a fixed window.
type LoginLimiter interface {
	Attempt(ctx context.Context, clientKey string) (LoginDecision, error)
}
