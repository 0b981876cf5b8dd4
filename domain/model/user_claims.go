package model

import "github.com/golang-jwt/jwt"

// UserClaims are the JWT claims carried by the API bearer token. Issuer holds
// the user id.
type UserClaims struct {
	UserName string `json:"user_name"`
	jwt.StandardClaims
}
