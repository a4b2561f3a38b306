package realtime

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// checkToken inspects a bearer token's expiry without verifying its
// signature; verification is the server's job, this only avoids dialing
// with a token the server is guaranteed to reject.
func checkToken(token string, now time.Time) error {
	if token == "" {
		return fmt.Errorf("empty bearer token")
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("malformed bearer token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("reading token expiry: %w", err)
	}
	if exp != nil && !now.Before(exp.Time) {
		return fmt.Errorf("bearer token expired at %s", exp.Time.Format(time.RFC3339))
	}
	return nil
}
