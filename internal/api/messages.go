package api

import "time"

// RegisterRequest creates a regular user. Admin accounts are provisioned by
// the server operator, not through this call.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	UserID int64 `json:"userId"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by Login and Refresh. On refresh RefreshToken
// is the same value the client already holds.
type TokenResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type RefreshRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type WhoAmIRequest struct{}

type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type WhoAmIResponse struct {
	UserID    int64     `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	Claims    []Claim   `json:"claims"`
}

// RevokeRequest flags another principal's refresh token. Admin only.
type RevokeRequest struct {
	UserID int64 `json:"userId"`
}

type RevokeResponse struct{}
