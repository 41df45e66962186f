package auth

import "github.com/golang-jwt/jwt/v5"

const issuer = "walletd"

// Claims carried by access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	Email        string `json:"email,omitempty"`
	TokenVersion int    `json:"ver"`
}
