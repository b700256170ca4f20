package models

import "time"

// TokenType is the only scheme issued by /admin/login.
const TokenType = "bearer"

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// TokenIdentity is what a verified access token asserts.
type TokenIdentity struct {
	Email            string
	OrganizationName string
	ExpiresAt        time.Time
}
