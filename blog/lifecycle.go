package blog

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"inkwell/auth"
	"inkwell/common"
	"inkwell/models"
)

type publishRequest struct {
	Title            string                 `json:"title"`
	Subtitle         string                 `json:"subtitle"`
	Content          string                 `json:"content"`
	CoverImage       string                 `json:"coverImage"`
	MainImage        string                 `json:"mainImage"`
	SeoTitle         string                 `json:"seoTitle"`
	SeoDescription   string                 `json:"seoDescription"`
	PublishDate      *time.Time             `json:"publishDate"`
	IsDraft          bool                   `json:"isDraft"`
	Tags             []string               `json:"tags"`
	Series           *string                `json:"series"`
	DisableComments  bool                   `json:"disableComments"`
	SendAsNewsletter *bool                  `json:"sendAsNewsletter"`
	TableOfContents  models.TableOfContents `json:"tableOfContents"`
}

// publishBlog creates a blog authored by the caller. The :id segment names
// the author and must be the caller's id or "me".
func (b *BlogModule) publishBlog(c *gin.Context) {
	caller := auth.CurrentUser(c)
	if id := c.Param("id"); id != "me" && id != caller.ID {
		common.RespondError(c, common.ErrForbidden("Cannot publish on behalf of another user"))
		return
	}

	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, common.ErrValidation("Invalid data"))
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		common.RespondError(c, common.ErrValidation("Title and content are required"))
		return
	}

	now := time.Now()
	blog := models.Blog{
		Title:            req.Title,
		Subtitle:         req.Subtitle,
		Content:          req.Content,
		CoverImage:       req.CoverImage,
		MainImage:        req.MainImage,
		SeoTitle:         req.SeoTitle,
		SeoDescription:   req.SeoDescription,
		PublishDate:      now,
		SeriesID:         req.Series,
		AuthorID:         caller.ID,
		DisableComments:  req.DisableComments,
		SendAsNewsletter: true,
		TableOfContents:  req.TableOfContents,
		IsDraft:          req.IsDraft,
	}
	if req.SendAsNewsletter != nil {
		blog.SendAsNewsletter = *req.SendAsNewsletter
	}
	if req.PublishDate != nil && !req.PublishDate.IsZero() {
		blog.PublishDate = *req.PublishDate
	}
	if req.IsDraft {
		blog.DraftSavedAt = &now
	}
	for _, tag := range common.NormalizeTags(req.Tags) {
		blog.Tags = append(blog.Tags, models.BlogTag{Name: tag})
	}

	if err := b.db.WithContext(c.Request.Context()).Create(&blog).Error; err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	b.logger.Info().Str(common.BLOG_ID, blog.ID).Str(common.USER_ID, caller.ID).Bool("draft", blog.IsDraft).Msg("blog published")
	c.JSON(http.StatusOK, gin.H{"message": "Posted successfully", "blog": blog})
}

func (b *BlogModule) unpublishBlog(c *gin.Context) {
	ctx := c.Request.Context()

	var blog models.Blog
	err := b.db.WithContext(ctx).
		Where("id = ? AND author_id = ?", c.Param("id"), auth.CurrentUserID(c)).
		First(&blog).Error
	if err != nil {
		common.RespondError(c, common.NotFoundOr(err, "Blog not found or not authorized"))
		return
	}

	now := time.Now()
	if err := b.db.WithContext(ctx).Model(&blog).Updates(map[string]interface{}{
		"is_draft":       true,
		"draft_saved_at": now,
	}).Error; err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}
	blog.IsDraft = true
	blog.DraftSavedAt = &now

	c.JSON(http.StatusOK, gin.H{"message": "Blog unpublished successfully", "blog": blog})
}

// ownedOrStaff loads the blog and checks that the caller may manage it.
func (b *BlogModule) ownedOrStaff(c *gin.Context) (*models.Blog, error) {
	blog, err := b.findBlog(c, c.Param("id"))
	if err != nil {
		return nil, err
	}
	caller := auth.CurrentUser(c)
	if blog.AuthorID != caller.ID && !caller.IsStaff() {
		return nil, common.ErrForbidden("Not allowed to manage this blog")
	}
	return blog, nil
}

func (b *BlogModule) deleteBlog(c *gin.Context) {
	blog, err := b.ownedOrStaff(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	now := time.Now()
	if err := b.db.WithContext(c.Request.Context()).Model(blog).Update("deleted_at", now).Error; err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}
	blog.DeletedAt = &now

	b.logger.Info().Str(common.BLOG_ID, blog.ID).Str(common.USER_ID, auth.CurrentUserID(c)).Msg("blog soft-deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Blog deleted successfully", "blog": blog})
}

func (b *BlogModule) restoreBlog(c *gin.Context) {
	blog, err := b.ownedOrStaff(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	if err := b.db.WithContext(c.Request.Context()).Model(blog).Update("deleted_at", nil).Error; err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}
	blog.DeletedAt = nil

	c.JSON(http.StatusOK, gin.H{"message": "Blog restored successfully", "blog": blog})
}
