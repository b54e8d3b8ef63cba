package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// ExpiryFromJWT reads the exp claim of an access token without verifying its signature.
// The client never holds the signing key; the value is only used to display and
// persist an expiry hint. It returns the zero time when the token is not a JWT or
// carries no exp claim.
func ExpiryFromJWT(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		log.Debug().Err(err).Msg("Access token is not a parseable JWT")
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// ExpiryFrom computes the expiry of a freshly issued access token. expiresIn is the
// server-provided lifetime in seconds; when it is not positive the JWT exp claim is used.
func ExpiryFrom(now time.Time, accessToken string, expiresIn int64) time.Time {
	if expiresIn > 0 {
		return now.Add(time.Duration(expiresIn) * time.Second)
	}
	return ExpiryFromJWT(accessToken)
}
