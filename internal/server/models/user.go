package models

import "time"

// Roles carried in the role claim.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the credential-store row. Only what the token core needs to build
// identity claims is kept here.
type User struct {
	ID            int64
	UserName      string
	Email         string
	Role          string
	PasswordHash  string
	SecurityStamp string
	CreatedAt     time.Time
}
