package blog

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"inkwell/auth"
	"inkwell/common"
	"inkwell/models"
)

// ToggleLike adds or removes userID from the blog's like set and keeps
// likes_cnt in step within the same transaction.
func (b *BlogModule) ToggleLike(ctx context.Context, blogID, userID string) (liked bool, likesCnt int, err error) {
	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var blog models.Blog
		if err := tx.Select("id").First(&blog, "id = ?", blogID).Error; err != nil {
			return common.NotFoundOr(err, "Blog not found")
		}

		// the counter only moves when this transaction changed the like set
		res := tx.Where("blog_id = ? AND user_id = ?", blogID, userID).Delete(&models.BlogLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			if err := tx.Model(&blog).UpdateColumn("likes_cnt", gorm.Expr("likes_cnt - 1")).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Create(&models.BlogLike{BlogID: blogID, UserID: userID}).Error; err != nil {
				return err
			}
			if err := tx.Model(&blog).UpdateColumn("likes_cnt", gorm.Expr("likes_cnt + 1")).Error; err != nil {
				return err
			}
			liked = true
		}

		if err := tx.Select("id", "likes_cnt").First(&blog, "id = ?", blogID).Error; err != nil {
			return err
		}
		likesCnt = blog.LikesCnt
		return nil
	})
	return liked, likesCnt, err
}

// ToggleBookmark adds or removes userID from the blog's bookmark set.
func (b *BlogModule) ToggleBookmark(ctx context.Context, blogID, userID string) (bookmarked bool, err error) {
	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var blog models.Blog
		if err := tx.Select("id").First(&blog, "id = ?", blogID).Error; err != nil {
			return common.NotFoundOr(err, "Blog not found")
		}

		res := tx.Where("blog_id = ? AND user_id = ?", blogID, userID).Delete(&models.BlogBookmark{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		bookmarked = true
		return tx.Create(&models.BlogBookmark{BlogID: blogID, UserID: userID}).Error
	})
	return bookmarked, err
}

func (b *BlogModule) likeBlog(c *gin.Context) {
	liked, likesCnt, err := b.ToggleLike(c.Request.Context(), c.Param("id"), auth.CurrentUserID(c))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	message := "Blog unliked successfully"
	action := "unlike"
	if liked {
		message = "Blog liked successfully"
		action = "like"
	}
	b.metrics.Engagement(action)

	c.JSON(http.StatusOK, gin.H{"message": message, "liked": liked, "likesCnt": likesCnt})
}

func (b *BlogModule) bookmarkBlog(c *gin.Context) {
	bookmarked, err := b.ToggleBookmark(c.Request.Context(), c.Param("id"), auth.CurrentUserID(c))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	message := "Blog unbookmarked successfully"
	action := "unbookmark"
	if bookmarked {
		message = "Blog bookmarked successfully"
		action = "bookmark"
	}
	b.metrics.Engagement(action)

	c.JSON(http.StatusOK, gin.H{"message": message, "bookmarked": bookmarked})
}
