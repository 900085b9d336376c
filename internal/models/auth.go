package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SyncUserRequest upserts an identity-provider user into the platform.
type SyncUserRequest struct {
	ExternalUID   string  `json:"external_uid" validate:"required"`
	Email         string  `json:"email" validate:"required,email"`
	DisplayName   *string `json:"display_name"`
	PhotoURL      *string `json:"photo_url"`
	EmailVerified bool    `json:"email_verified"`
}

// SyncUserResponse returns the synced user and a platform access token.
type SyncUserResponse struct {
	User        User      `json:"user"`
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}

// JWTClaims embeds the registered claims plus platform identity.
type JWTClaims struct {
	UserID string   `json:"uid"`
	Email  string   `json:"email"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
