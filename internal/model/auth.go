package model

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims are the claims of a Supabase-issued access token.
type AccessClaims struct {
	Email string `json:"email"`
	// Role is the database role ("authenticated"), not the account role.
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller of an admin route.
type Principal struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
}
