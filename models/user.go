package models

import "time"

// User: профиль пользователя. IsAdmin лишь зеркалит claim из AuthAccount.
type User struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	IsAdmin     bool      `json:"isAdmin"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AuthAccount holds credentials and the authoritative admin claim.
type AuthAccount struct {
	UID          string
	Email        string
	PasswordHash string
	AdminClaim   bool
	CreatedAt    time.Time
}
