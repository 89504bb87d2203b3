package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"inkwell/common"
	"inkwell/models"
)

const (
	userIDKey = "user_id"
	userKey   = "user"
)

// Guard resolves the caller behind a bearer token.
type Guard struct {
	db     *gorm.DB
	tokens *TokenIssuer
}

func NewGuard(db *gorm.DB, tokens *TokenIssuer) *Guard {
	return &Guard{db: db, tokens: tokens}
}

// RequireAuth rejects requests without a valid bearer token of a logged-in user.
func (g *Guard) RequireAuth(c *gin.Context) {
	user, err := g.authenticate(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.Set(userIDKey, user.ID)
	c.Set(userKey, user)
	c.Next()
}

// OptionalAuth attaches the caller when a valid token is presented and
// lets anonymous requests through.
func (g *Guard) OptionalAuth(c *gin.Context) {
	if c.GetHeader("Authorization") != "" {
		if user, err := g.authenticate(c); err == nil {
			c.Set(userIDKey, user.ID)
			c.Set(userKey, user)
		}
	}
	c.Next()
}

// RequireRole must run after RequireAuth.
func (g *Guard) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			common.RespondError(c, common.ErrUnauthorized("No token provided"))
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		common.RespondError(c, common.ErrForbidden("Insufficient role"))
	}
}

func (g *Guard) authenticate(c *gin.Context) (*models.User, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, common.ErrUnauthorized("No token provided")
	}

	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return nil, common.ErrUnauthorized("Malformed authorization header")
	}

	claims, err := g.tokens.Verify(strings.TrimSpace(raw))
	if err != nil {
		return nil, common.ErrUnauthorized("Invalid or expired token")
	}

	var user models.User
	if err := g.db.WithContext(c.Request.Context()).First(&user, "id = ?", claims.ID).Error; err != nil {
		return nil, common.ErrUnauthorized("Invalid or expired token")
	}
	// logout clears the persisted token and ends every session of the user;
	// tokens from earlier logins stay valid until they expire
	if user.Token == "" {
		return nil, common.ErrUnauthorized("Session has been logged out")
	}
	return &user, nil
}

// CurrentUserID returns the authenticated caller's id, or "".
func CurrentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// CurrentUser returns the authenticated caller, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
