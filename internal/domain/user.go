package domain

import "time"

// User is the identity record. OTP and reset-token fields are ephemeral
// substructures: set by their issuing operation, cleared by consumption or
// overwritten by reissue. A verified user never retains OTP fields.
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email        string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string `gorm:"size:1024;not null" json:"-"`

	Verified  bool       `gorm:"not null;default:false" json:"verified"`
	OTP       *string    `gorm:"size:6" json:"-"`
	OTPExpiry *time.Time `json:"-"`
	OTPSentAt *time.Time `json:"-"`

	// Only the SHA-256 of the reset token is stored; the raw secret exists
	// solely in the email (or the gated test-mode response).
	ResetTokenHash   *string    `gorm:"size:64;index" json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`

	// Profile fields, opaque to the credential lifecycle.
	FirstName    string `gorm:"size:64" json:"firstName"`
	LastName     string `gorm:"size:64" json:"lastName"`
	PhoneNumber  string `gorm:"size:32" json:"phoneNumber"`
	City         string `gorm:"size:64" json:"city"`
	Country      string `gorm:"size:64" json:"country"`
	Description  string `gorm:"size:512" json:"description"`
	ProfilePhoto string `gorm:"size:1024" json:"profilePhoto"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
