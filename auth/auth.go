package auth

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"inkwell/common"
	"inkwell/metrics"
	"inkwell/models"
)

const oauthStateKey = "oauth_state"

// Mailer delivers one-time passcodes.
type Mailer interface {
	SendOTP(to, code string) error
}

type AuthModule struct {
	db        *gorm.DB
	tokens    *TokenIssuer
	mailer    Mailer
	limiter   OTPLimiter
	provider  IdentityProvider
	clientURL string
	metrics   *metrics.Metrics
	otpTTL    time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

func NewAuthModule(db *gorm.DB, tokens *TokenIssuer, mailer Mailer) *AuthModule {
	return &AuthModule{
		db:     db,
		tokens: tokens,
		mailer: mailer,
		otpTTL: DefaultOTPTTL,
		now:    time.Now,
		logger: common.Logger("auth"),
	}
}

func (a *AuthModule) WithOTPLimiter(limiter OTPLimiter) *AuthModule {
	a.limiter = limiter
	return a
}

// WithIdentityProvider enables the Google sign-in routes. Callbacks
// redirect back to clientURL.
func (a *AuthModule) WithIdentityProvider(provider IdentityProvider, clientURL string) *AuthModule {
	a.provider = provider
	a.clientURL = clientURL
	return a
}

func (a *AuthModule) WithMetrics(m *metrics.Metrics) *AuthModule {
	a.metrics = m
	return a
}

func (a *AuthModule) WithOTPTTL(ttl time.Duration) *AuthModule {
	if ttl > 0 {
		a.otpTTL = ttl
	}
	return a
}

func (a *AuthModule) RegisterRoutes(router *gin.Engine, guard *Guard) {
	group := router.Group("/api/auth")
	{
		group.POST("/registerWithPassword", a.registerWithPassword)
		group.POST("/loginWithPassword", a.loginWithPassword)
		group.POST("/sendOTP", a.sendOTP)
		group.POST("/verifyOTP", a.verifyOTP)
		group.GET("/google", a.googleLogin)
		group.GET("/google/callback", a.googleCallback)

		group.POST("/logoutUser", guard.RequireAuth, a.logoutUser)
		group.GET("/me", guard.RequireAuth, a.me)
		group.POST("/updateCustomFeed", guard.RequireAuth, a.updateCustomFeed)
	}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type otpRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required"`
}

type customFeedRequest struct {
	Tags []string `json:"tags"`
}

func (a *AuthModule) registerWithPassword(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, common.ErrValidation("A valid email and password are required"))
		return
	}

	session, err := a.RegisterWithPassword(c.Request.Context(), req.Email, req.Password)
	a.metrics.Auth("register", err)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "token": session.Token, "email": session.Email, "role": session.Role})
}

func (a *AuthModule) loginWithPassword(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, common.ErrValidation("A valid email and password are required"))
		return
	}

	session, err := a.LoginWithPassword(c.Request.Context(), req.Email, req.Password)
	a.metrics.Auth("login", err)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "token": session.Token, "email": session.Email, "role": session.Role})
}

func (a *AuthModule) sendOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, common.ErrValidation("A valid email is required"))
		return
	}

	err := a.SendOTP(c.Request.Context(), req.Email)
	a.metrics.Auth("send_otp", err)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "OTP sent successfully"})
}

func (a *AuthModule) verifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, common.ErrValidation("Email and OTP are required"))
		return
	}

	session, err := a.VerifyOTP(c.Request.Context(), req.Email, req.OTP)
	a.metrics.Auth("verify_otp", err)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "OTP verified successfully", "token": session.Token, "email": session.Email, "role": session.Role})
}

func (a *AuthModule) googleLogin(c *gin.Context) {
	if a.provider == nil {
		common.RespondError(c, common.ErrNotFound("Google sign-in is not configured"))
		return
	}

	state, err := randomState()
	if err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	session := sessions.Default(c)
	session.Set(oauthStateKey, state)
	if err := session.Save(); err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	c.Redirect(http.StatusFound, a.provider.AuthCodeURL(state))
}

func (a *AuthModule) googleCallback(c *gin.Context) {
	if a.provider == nil {
		common.RespondError(c, common.ErrNotFound("Google sign-in is not configured"))
		return
	}

	session := sessions.Default(c)
	expected, _ := session.Get(oauthStateKey).(string)
	session.Delete(oauthStateKey)
	_ = session.Save()

	if expected == "" || c.Query("state") != expected {
		a.logger.Warn().Msg("oauth state mismatch")
		a.metrics.Auth("google", common.ErrUnauthorized("state mismatch"))
		a.redirectFailure(c)
		return
	}

	profile, err := a.provider.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		a.logger.Error().Err(err).Msg("google exchange failed")
		a.metrics.Auth("google", err)
		a.redirectFailure(c)
		return
	}

	result, err := a.FederateGoogle(c.Request.Context(), *profile)
	a.metrics.Auth("google", err)
	if err != nil {
		a.logger.Error().Err(err).Msg("google federation failed")
		a.redirectFailure(c)
		return
	}

	c.Redirect(http.StatusFound, a.clientURL+"/auth-success?token="+url.QueryEscape(result.Token))
}

func (a *AuthModule) redirectFailure(c *gin.Context) {
	c.Redirect(http.StatusFound, a.clientURL+"/login?error=google_failed")
}

func (a *AuthModule) logoutUser(c *gin.Context) {
	err := a.Logout(c.Request.Context(), CurrentUserID(c))
	a.metrics.Auth("logout", err)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (a *AuthModule) me(c *gin.Context) {
	userID := CurrentUserID(c)
	ctx := c.Request.Context()

	var user models.User
	if err := a.db.WithContext(ctx).Preload("CustomFeed").First(&user, "id = ?", userID).Error; err != nil {
		common.RespondError(c, common.NotFoundOr(err, "User not found"))
		return
	}

	var liked, bookmarked, authored []string
	if err := a.db.WithContext(ctx).Model(&models.BlogLike{}).Where("user_id = ?", userID).Pluck("blog_id", &liked).Error; err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}
	if err := a.db.WithContext(ctx).Model(&models.BlogBookmark{}).Where("user_id = ?", userID).Pluck("blog_id", &bookmarked).Error; err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}
	if err := a.db.WithContext(ctx).Model(&models.Blog{}).Where("author_id = ?", userID).Pluck("id", &authored).Error; err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":            user,
		"likedBlogs":      nonNil(liked),
		"bookmarkedBlogs": nonNil(bookmarked),
		"blogs":           nonNil(authored),
	})
}

func (a *AuthModule) updateCustomFeed(c *gin.Context) {
	var req customFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, common.ErrValidation("tags must be a list of strings"))
		return
	}

	feed, err := a.UpdateCustomFeed(c.Request.Context(), CurrentUserID(c), req.Tags)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Custom feed updated", "customFeed": feed})
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
