package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the JWT claims the dashboard issues. Only verification happens
// in this service; issuance lives with the session service.
type Claims struct {
	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	TokenType TokenType `json:"token_type"`

	jwt.RegisteredClaims
}
