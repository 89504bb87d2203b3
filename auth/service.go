package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"inkwell/common"
	"inkwell/models"
)

// Session is what a successful sign-in returns to the client.
type Session struct {
	Token  string `json:"token"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	UserID string `json:"-"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *AuthModule) findByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := a.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// issueSession mints a token for user, persists it and marks the user logged in.
func (a *AuthModule) issueSession(ctx context.Context, user *models.User) (*Session, error) {
	token, err := a.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, common.ErrInternal(err)
	}

	if err := a.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"token":        token,
		"is_logged_in": true,
	}).Error; err != nil {
		return nil, common.ErrInternal(err)
	}

	return &Session{Token: token, Email: user.Email, Role: user.Role, UserID: user.ID}, nil
}

func (a *AuthModule) RegisterWithPassword(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, common.ErrValidation("Email and password are required")
	}

	_, err := a.findByEmail(ctx, email)
	if err == nil {
		return nil, common.ErrConflict("User already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrInternal(err)
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return nil, common.ErrInternal(err)
	}

	user := models.User{Email: email, Password: hashed}
	if err := a.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, common.ErrInternal(err)
	}

	return a.issueSession(ctx, &user)
}

func (a *AuthModule) LoginWithPassword(ctx context.Context, email, password string) (*Session, error) {
	user, err := a.findByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrInvalidCredentials()
		}
		return nil, common.ErrInternal(err)
	}

	if user.Password == "" || !checkPasswordHash(password, user.Password) {
		return nil, common.ErrInvalidCredentials()
	}

	return a.issueSession(ctx, user)
}

// SendOTP stores a fresh passcode on the user (creating a placeholder
// account for unknown emails) and mails it. A reissue overwrites the
// previous code.
func (a *AuthModule) SendOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return common.ErrValidation("Email is required")
	}

	if a.limiter != nil {
		allowed, err := a.limiter.Allow(ctx, email)
		if err != nil {
			a.logger.Warn().Err(err).Msg("otp limiter unavailable")
		} else if !allowed {
			return common.ErrRateLimited("Too many OTP requests, try again later")
		}
	}

	code, err := generateOTP()
	if err != nil {
		return common.ErrInternal(err)
	}
	expiry := a.now().Add(a.otpTTL)

	var user models.User
	err = a.db.WithContext(ctx).
		Where(models.User{Email: email}).
		Assign(models.User{OTP: code, OTPExpiry: &expiry}).
		FirstOrCreate(&user).Error
	if err != nil {
		return common.ErrInternal(err)
	}

	if err := a.mailer.SendOTP(email, code); err != nil {
		return common.ErrInternal(err)
	}
	return nil
}

// VerifyOTP redeems a passcode. Codes are single use and expire after the
// configured TTL.
func (a *AuthModule) VerifyOTP(ctx context.Context, email, code string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || code == "" {
		return nil, common.ErrValidation("Email and OTP are required")
	}

	var user models.User
	err := a.db.WithContext(ctx).
		Where("email = ? AND otp = ? AND otp <> ''", email, code).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrInvalidOtp("Invalid OTP")
		}
		return nil, common.ErrInternal(err)
	}

	if user.OTPExpiry == nil || a.now().After(*user.OTPExpiry) {
		return nil, common.ErrInvalidOtp("OTP has expired")
	}

	// a code is redeemed by whichever request clears it first
	res := a.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND otp = ?", user.ID, code).
		Updates(map[string]interface{}{
			"otp":         "",
			"otp_expiry":  nil,
			"is_verified": true,
		})
	if res.Error != nil {
		return nil, common.ErrInternal(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, common.ErrInvalidOtp("Invalid OTP")
	}
	user.IsVerified = true

	return a.issueSession(ctx, &user)
}

// FederateGoogle links or creates the account for a provider identity.
func (a *AuthModule) FederateGoogle(ctx context.Context, profile GoogleProfile) (*Session, error) {
	email := normalizeEmail(profile.Email)
	if email == "" {
		return nil, common.ErrValidation("Provider did not return an email")
	}

	user, err := a.findByEmail(ctx, email)
	switch {
	case err == nil:
		updates := map[string]interface{}{"is_logged_in": true}
		if user.GoogleID == "" {
			updates["google_id"] = profile.SubjectID
		}
		if err := a.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			return nil, common.ErrInternal(err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = &models.User{
			GoogleID:   profile.SubjectID,
			Name:       profile.DisplayName,
			Email:      email,
			Avatar:     profile.Avatar,
			IsLoggedIn: true,
			IsVerified: true,
		}
		if err := a.db.WithContext(ctx).Create(user).Error; err != nil {
			return nil, common.ErrInternal(err)
		}
	default:
		return nil, common.ErrInternal(err)
	}

	return a.issueSession(ctx, user)
}

// Logout forgets the persisted token, which invalidates every token of the user.
func (a *AuthModule) Logout(ctx context.Context, userID string) error {
	res := a.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"token":        "",
		"is_logged_in": false,
	})
	if res.Error != nil {
		return common.ErrInternal(res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrNotFound("User not found")
	}
	return nil
}

// UpdateCustomFeed replaces the user's feed tags and returns the stored list.
func (a *AuthModule) UpdateCustomFeed(ctx context.Context, userID string, tags []string) ([]string, error) {
	cleaned := common.NormalizeTags(tags)

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.FeedTag{}).Error; err != nil {
			return err
		}
		if len(cleaned) == 0 {
			return nil
		}
		rows := make([]models.FeedTag, 0, len(cleaned))
		for _, name := range cleaned {
			rows = append(rows, models.FeedTag{UserID: userID, Name: name})
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, common.ErrInternal(err)
	}
	return cleaned, nil
}
