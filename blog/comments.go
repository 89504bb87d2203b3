package blog

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"inkwell/auth"
	"inkwell/common"
	"inkwell/models"
)

type commentRequest struct {
	Text string `json:"text"`
}

type replyRequest struct {
	BlogID string `json:"blogId"`
	Text   string `json:"text"`
}

type deleteCommentRequest struct {
	BlogID  string `json:"blogId"`
	ReplyID string `json:"replyId"`
}

func publicUser(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "email", "avatar")
}

func (b *BlogModule) commentBlog(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		common.RespondError(c, common.ErrValidation("Comment text is required"))
		return
	}

	blog, err := b.findBlog(c, c.Param("id"))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	if blog.DisableComments {
		common.RespondError(c, common.ErrForbidden("Comments are disabled for this blog"))
		return
	}

	comment := models.Comment{
		BlogID: blog.ID,
		UserID: auth.CurrentUserID(c),
		Text:   req.Text,
	}
	if err := b.db.WithContext(c.Request.Context()).Create(&comment).Error; err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}
	comment.Replies = []models.Reply{}
	b.metrics.Engagement("comment")

	c.JSON(http.StatusCreated, gin.H{"message": "Comment added successfully", "comment": comment})
}

// getBlogComments returns the blog's comments oldest first, each with its
// replies and the public fields of every author.
func (b *BlogModule) getBlogComments(c *gin.Context) {
	blog, err := b.findBlog(c, c.Param("id"))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var comments []models.Comment
	err = b.db.WithContext(c.Request.Context()).
		Where("blog_id = ?", blog.ID).
		Preload("User", publicUser).
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Replies.User", publicUser).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	for i := range comments {
		if comments[i].Replies == nil {
			comments[i].Replies = []models.Reply{}
		}
	}
	if comments == nil {
		comments = []models.Comment{}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Fetched comments successfully", "comments": comments})
}

func (b *BlogModule) replyComment(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BlogID == "" || strings.TrimSpace(req.Text) == "" {
		common.RespondError(c, common.ErrValidation("blogId and text are required"))
		return
	}

	blog, err := b.findBlog(c, req.BlogID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	ctx := c.Request.Context()
	var comment models.Comment
	if err := b.db.WithContext(ctx).Where("id = ? AND blog_id = ?", c.Param("commentId"), blog.ID).First(&comment).Error; err != nil {
		common.RespondError(c, common.NotFoundOr(err, "Comment not found"))
		return
	}

	reply := models.Reply{
		CommentID: comment.ID,
		UserID:    auth.CurrentUserID(c),
		Text:      req.Text,
	}
	if err := b.db.WithContext(ctx).Create(&reply).Error; err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}
	b.metrics.Engagement("reply")

	c.JSON(http.StatusCreated, gin.H{"message": "Reply added successfully", "reply": reply})
}

// deleteComment removes a comment with its replies, or a single reply when
// replyId is given. The comment or reply author, the blog owner and admins
// may delete.
func (b *BlogModule) deleteComment(c *gin.Context) {
	var req deleteCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BlogID == "" {
		common.RespondError(c, common.ErrValidation("blogId is required"))
		return
	}

	blog, err := b.findBlog(c, req.BlogID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	ctx := c.Request.Context()
	var comment models.Comment
	if err := b.db.WithContext(ctx).Where("id = ? AND blog_id = ?", c.Param("commentId"), blog.ID).First(&comment).Error; err != nil {
		common.RespondError(c, common.NotFoundOr(err, "Comment not found"))
		return
	}

	caller := auth.CurrentUser(c)
	privileged := blog.AuthorID == caller.ID || caller.Role == models.RoleAdmin

	if req.ReplyID != "" {
		var reply models.Reply
		if err := b.db.WithContext(ctx).Where("id = ? AND comment_id = ?", req.ReplyID, comment.ID).First(&reply).Error; err != nil {
			common.RespondError(c, common.NotFoundOr(err, "Reply not found"))
			return
		}
		if reply.UserID != caller.ID && !privileged {
			common.RespondError(c, common.ErrForbidden("Unauthorized to delete this reply"))
			return
		}
		if err := b.db.WithContext(ctx).Delete(&reply).Error; err != nil {
			common.RespondError(c, common.ErrInternal(err))
			return
		}
	} else {
		if comment.UserID != caller.ID && !privileged {
			common.RespondError(c, common.ErrForbidden("Unauthorized to delete this comment"))
			return
		}
		err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("comment_id = ?", comment.ID).Delete(&models.Reply{}).Error; err != nil {
				return err
			}
			return tx.Delete(&comment).Error
		})
		if err != nil {
			common.RespondError(c, common.ErrInternal(err))
			return
		}
	}

	b.metrics.Engagement("delete_comment")
	c.JSON(http.StatusOK, gin.H{"message": "Deleted successfully"})
}
