package models

import "time"

type User struct {
	ID            string
	Username      string
	Email         string
	FullName      string
	PasswordHash  []byte
	AvatarURL     string
	CoverImageURL *string
	RefreshToken  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Sanitized strips the credential fields before the record leaves the service
// layer.
func (u User) Sanitized() User {
	u.PasswordHash = nil
	u.RefreshToken = nil
	return u
}
