package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/globetrotter/identity-service/internal/domain"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUser      = errors.New("username or email already exists")
	ErrOTPInvalid         = errors.New("no matching active otp")
	ErrResendThrottled    = errors.New("otp resend throttled")
	ErrResetTokenNotFound = errors.New("reset token not found or expired")
)

// UserRepository persists identity records. Every state-transition write is a
// single conditional UPDATE so that concurrent consumptions of the same
// one-time secret yield exactly one success; RowsAffected==0 is a lost race or
// a stale secret, never a partial write.
type UserRepository interface {
	CreateUnverified(user *domain.User) error
	FindByEmail(email string) (*domain.User, error)
	FindByUsername(username string) (*domain.User, error)
	// Delete is the compensating rollback for a registration whose email
	// dispatch failed.
	Delete(id uint) error

	ConsumeOTP(email, code string, now time.Time) (*domain.User, error)
	ReplaceOTP(email, code string, expiry, now time.Time, cooldown time.Duration) error

	SetResetToken(userID uint, tokenHash string, expiry time.Time) error
	FindByActiveResetToken(tokenHash string, now time.Time) (*domain.User, error)
	ConsumeResetToken(tokenHash, newPasswordHash string, now time.Time) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) CreateUnverified(user *domain.User) error {
	user.Verified = false
	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUser
		}
		return err
	}
	return nil
}

func (r *GormUserRepository) FindByEmail(email string) (*domain.User, error) {
	var u domain.User
	if err := r.db.Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) FindByUsername(username string) (*domain.User, error) {
	var u domain.User
	if err := r.db.Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) Delete(id uint) error {
	return r.db.Delete(&domain.User{}, id).Error
}

// ConsumeOTP flips the record to verified and clears the OTP fields in one
// conditional update. Exactly one concurrent caller with the correct,
// unexpired code wins.
func (r *GormUserRepository) ConsumeOTP(email, code string, now time.Time) (*domain.User, error) {
	res := r.db.Model(&domain.User{}).
		Where("email = ? AND verified = ? AND otp = ? AND otp_expiry > ?", email, false, code, now).
		Updates(map[string]any{
			"verified":    true,
			"otp":         nil,
			"otp_expiry":  nil,
			"otp_sent_at": nil,
			"updated_at":  now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrOTPInvalid
	}
	return r.FindByEmail(email)
}

// ReplaceOTP overwrites (never appends) the active code, resetting expiry.
// The cooldown guard is part of the update condition so resend throttling
// holds under concurrent requests as well.
func (r *GormUserRepository) ReplaceOTP(email, code string, expiry, now time.Time, cooldown time.Duration) error {
	threshold := now.Add(-cooldown)
	res := r.db.Model(&domain.User{}).
		Where("email = ? AND verified = ? AND (otp_sent_at IS NULL OR otp_sent_at <= ?)", email, false, threshold).
		Updates(map[string]any{
			"otp":         code,
			"otp_expiry":  expiry,
			"otp_sent_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrResendThrottled
	}
	return nil
}

func (r *GormUserRepository) SetResetToken(userID uint, tokenHash string, expiry time.Time) error {
	res := r.db.Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"reset_token_hash":   tokenHash,
			"reset_token_expiry": expiry,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *GormUserRepository) FindByActiveResetToken(tokenHash string, now time.Time) (*domain.User, error) {
	var u domain.User
	err := r.db.Where("reset_token_hash = ? AND reset_token_expiry > ?", tokenHash, now).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResetTokenNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ConsumeResetToken sets the new password hash and clears the token fields in
// one conditional update, so a token authorizes at most one password change.
func (r *GormUserRepository) ConsumeResetToken(tokenHash, newPasswordHash string, now time.Time) error {
	res := r.db.Model(&domain.User{}).
		Where("reset_token_hash = ? AND reset_token_expiry > ?", tokenHash, now).
		Updates(map[string]any{
			"password_hash":      newPasswordHash,
			"reset_token_hash":   nil,
			"reset_token_expiry": nil,
			"updated_at":         now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrResetTokenNotFound
	}
	return nil
}
