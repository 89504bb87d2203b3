package backoffice

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"inkwell/auth"
	"inkwell/cache"
	"inkwell/common"
	"inkwell/metrics"
	"inkwell/models"
)

// BackofficeModule serves moderation actions to admins and moderators.
type BackofficeModule struct {
	db      *gorm.DB
	guard   *auth.Guard
	cache   *cache.RenderCache
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewBackofficeModule(db *gorm.DB, guard *auth.Guard, renderCache *cache.RenderCache, m *metrics.Metrics) *BackofficeModule {
	return &BackofficeModule{
		db:      db,
		guard:   guard,
		cache:   renderCache,
		metrics: m,
		logger:  common.Logger("backoffice"),
	}
}

func (b *BackofficeModule) RegisterRoutes(router *gin.Engine) {
	backofficeGroup := router.Group("/api/blog",
		b.guard.RequireAuth,
		b.guard.RequireRole(models.RoleAdmin, models.RoleModerator),
	)
	{
		backofficeGroup.POST("/rejectBlog/:id", b.rejectBlog)
		backofficeGroup.DELETE("/deleteBlogByAdmin/:id", b.deleteBlogByAdmin)
		backofficeGroup.POST("/banUserBlogs/:userId", b.banUserBlogs)
		backofficeGroup.POST("/banUser/:userId", b.banUser)
		backofficeGroup.POST("/unbanUser/:userId", b.unbanUser)
		backofficeGroup.POST("/clearBlogCache/:id", b.clearBlogCache)
	}
}

func (b *BackofficeModule) audit(c *gin.Context, action string) *zerolog.Event {
	b.metrics.Moderation(action)
	return b.logger.Info().
		Str("action", action).
		Str(common.USER_ID, auth.CurrentUserID(c)).
		Str(common.REQUEST_ID, c.GetString(common.REQUEST_ID))
}

func (b *BackofficeModule) findBlog(c *gin.Context) (*models.Blog, error) {
	var blog models.Blog
	if err := b.db.WithContext(c.Request.Context()).First(&blog, "id = ?", c.Param("id")).Error; err != nil {
		return nil, common.NotFoundOr(err, "Blog not found")
	}
	return &blog, nil
}

func (b *BackofficeModule) findUser(c *gin.Context) (*models.User, error) {
	var user models.User
	if err := b.db.WithContext(c.Request.Context()).First(&user, "id = ?", c.Param("userId")).Error; err != nil {
		return nil, common.NotFoundOr(err, "User not found")
	}
	return &user, nil
}

// rejectBlog hides a blog from every public listing.
func (b *BackofficeModule) rejectBlog(c *gin.Context) {
	blog, err := b.findBlog(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	if err := b.db.WithContext(c.Request.Context()).Model(blog).Update("is_hidden", true).Error; err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	b.audit(c, "reject_blog").Str(common.BLOG_ID, blog.ID).Msg("blog hidden")
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Blog hidden successfully",
		"isHidden": true,
	})
}

// deleteBlogByAdmin removes a blog and everything hanging off it.
func (b *BackofficeModule) deleteBlogByAdmin(c *gin.Context) {
	blog, err := b.findBlog(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	err = b.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		comments := tx.Model(&models.Comment{}).Select("id").Where("blog_id = ?", blog.ID)
		if err := tx.Where("comment_id IN (?)", comments).Delete(&models.Reply{}).Error; err != nil {
			return err
		}
		for _, child := range []interface{}{&models.Comment{}, &models.BlogTag{}, &models.BlogLike{}, &models.BlogBookmark{}} {
			if err := tx.Where("blog_id = ?", blog.ID).Delete(child).Error; err != nil {
				return err
			}
		}
		return tx.Delete(blog).Error
	})
	if err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	if b.cache != nil {
		if err := b.cache.ClearBlog(blog.ID); err != nil {
			b.logger.Warn().Err(err).Str(common.BLOG_ID, blog.ID).Msg("failed to clear cache of deleted blog")
		}
	}

	b.audit(c, "delete_blog").Str(common.BLOG_ID, blog.ID).Msg("blog deleted")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Blog deleted by admin",
	})
}

// banUserBlogs flags every blog of the user as banned.
func (b *BackofficeModule) banUserBlogs(c *gin.Context) {
	user, err := b.findUser(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	res := b.db.WithContext(c.Request.Context()).Model(&models.Blog{}).
		Where("author_id = ?", user.ID).
		Update("is_banned", true)
	if res.Error != nil {
		common.RespondError(c, common.ErrInternal(res.Error))
		return
	}

	b.audit(c, "ban_user_blogs").Str("target_user_id", user.ID).Int64("blogs", res.RowsAffected).Msg("user blogs banned")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "All blogs by user banned successfully",
		"banned":  res.RowsAffected,
	})
}

// banUser flags the user as banned and ends their session. Their blogs
// drop out of every listing.
func (b *BackofficeModule) banUser(c *gin.Context) {
	user, err := b.findUser(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	if user.ID == auth.CurrentUserID(c) {
		common.RespondError(c, common.ErrValidation("Cannot ban yourself"))
		return
	}

	if err := b.db.WithContext(c.Request.Context()).Model(user).Updates(map[string]interface{}{
		"is_banned":    true,
		"token":        "",
		"is_logged_in": false,
	}).Error; err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	b.audit(c, "ban_user").Str("target_user_id", user.ID).Msg("user banned")
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "User banned successfully",
		"isBanned": true,
	})
}

func (b *BackofficeModule) unbanUser(c *gin.Context) {
	user, err := b.findUser(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	if err := b.db.WithContext(c.Request.Context()).Model(user).Update("is_banned", false).Error; err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	b.audit(c, "unban_user").Str("target_user_id", user.ID).Msg("user unbanned")
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "User unbanned successfully",
		"isBanned": false,
	})
}

// clearBlogCache drops every cached render of a blog.
func (b *BackofficeModule) clearBlogCache(c *gin.Context) {
	blog, err := b.findBlog(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	if b.cache != nil {
		if err := b.cache.ClearBlog(blog.ID); err != nil {
			common.RespondError(c, common.ErrInternal(err))
			return
		}
	}

	b.audit(c, "clear_cache").Str(common.BLOG_ID, blog.ID).Msg("blog cache cleared")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Cache cleared successfully",
	})
}
