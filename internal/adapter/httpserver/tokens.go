package httpserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/jonboulle/clockwork"
)

const tokenName = "tradingspot-admin-token"

var errInvalidToken = errors.New("invalid or expired token")

type tokenClaims struct {
	ProfileID int64 `json:"pid"`
	ExpiresAt int64 `json:"exp"`
}

// tokenIssuer signs bearer tokens for the admin API. Tokens are HMAC-signed with
// the session secret and carry their own expiry.
type tokenIssuer struct {
	codec *securecookie.SecureCookie
	ttl   time.Duration
	clock clockwork.Clock
}

func newTokenIssuer(secret string, ttl time.Duration, clock clockwork.Clock) *tokenIssuer {
	codec := securecookie.New([]byte(secret), nil)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(ttl.Seconds()))
	return &tokenIssuer{codec: codec, ttl: ttl, clock: clock}
}

func (t *tokenIssuer) Issue(profileID int64) (string, error) {
	claims := tokenClaims{
		ProfileID: profileID,
		ExpiresAt: t.clock.Now().Add(t.ttl).Unix(),
	}
	token, err := t.codec.Encode(tokenName, claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (t *tokenIssuer) Verify(token string) (int64, error) {
	var claims tokenClaims
	if err := t.codec.Decode(tokenName, token, &claims); err != nil {
		return 0, errInvalidToken
	}
	if t.clock.Now().Unix() >= claims.ExpiresAt {
		return 0, errInvalidToken
	}
	return claims.ProfileID, nil
}
