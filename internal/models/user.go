package models

import "time"

// UserRole represents the available roles for access control.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleStudent UserRole = "STUDENT"
)

// User represents a platform user synced from the external identity provider.
type User struct {
	ID            string    `db:"id" json:"id"`
	ExternalUID   string    `db:"external_uid" json:"external_uid"`
	Email         string    `db:"email" json:"email"`
	DisplayName   *string   `db:"display_name" json:"display_name,omitempty"`
	PhotoURL      *string   `db:"photo_url" json:"photo_url,omitempty"`
	EmailVerified bool      `db:"email_verified" json:"email_verified"`
	Role          UserRole  `db:"role" json:"role"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
