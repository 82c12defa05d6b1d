package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims represents the typed JWT issued by the storefront's auth
// service. Only the user identity matters to the cart core.
type AccessTokenClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
