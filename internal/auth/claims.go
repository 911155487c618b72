package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the only supported JWT claims shape for the operator API.
// Tokens are minted out-of-band (ops tooling) with the shared secret; the
// service only verifies them.
type Claims struct {
	jwt.RegisteredClaims

	OperatorID string `json:"operator_id"`
	Role       string `json:"role"`
}
