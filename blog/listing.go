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

// Listing is the paginated envelope returned by every blog listing.
type Listing struct {
	Page         int           `json:"page"`
	Limit        int           `json:"limit"`
	TotalPages   int64         `json:"totalPages"`
	TotalResults int           `json:"totalResults"`
	Blogs        []models.Blog `json:"blogs"`
}

// newListing builds the envelope used by search-style endpoints, where the
// totals describe only the page that survived the author-ban drop.
func newListing(page int, blogs []models.Blog) Listing {
	return Listing{
		Page:         page,
		Limit:        common.PageSize,
		TotalPages:   common.TotalPages(int64(len(blogs))),
		TotalResults: len(blogs),
		Blogs:        blogs,
	}
}

const trendingScore = "(blogs.likes_cnt + (SELECT COUNT(*) FROM comments WHERE comments.blog_id = blogs.id))"

func (b *BlogModule) pageOf(c *gin.Context, page int, scopes ...func(*gorm.DB) *gorm.DB) ([]models.Blog, error) {
	var blogs []models.Blog
	err := b.db.WithContext(c.Request.Context()).
		Scopes(scopes...).
		Scopes(Visible, withActiveAuthor).
		Preload("Tags").
		Offset(common.Offset(page)).
		Limit(common.PageSize).
		Find(&blogs).Error
	if err != nil {
		return nil, err
	}
	return dropBannedAuthors(blogs), nil
}

func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("blogs.publish_date DESC")
}

func (b *BlogModule) getAllBlogs(c *gin.Context) {
	page := common.Page(c)

	blogs, err := b.pageOf(c, page, newestFirst)
	if err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	// counted before the author-ban drop
	var total int64
	if err := b.db.WithContext(c.Request.Context()).Model(&models.Blog{}).Scopes(Visible).Count(&total).Error; err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	c.JSON(http.StatusOK, Listing{
		Page:         page,
		Limit:        common.PageSize,
		TotalPages:   common.TotalPages(total),
		TotalResults: len(blogs),
		Blogs:        blogs,
	})
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (b *BlogModule) searchBlogs(c *gin.Context) {
	page := common.Page(c)
	q := strings.TrimSpace(c.Query("q"))

	matches := func(db *gorm.DB) *gorm.DB {
		return db.Where(
			`(LOWER(blogs.title) LIKE ? ESCAPE '\' OR EXISTS (SELECT 1 FROM blog_tags WHERE blog_tags.blog_id = blogs.id AND blog_tags.name = ?))`,
			"%"+escapeLike(strings.ToLower(q))+"%", q,
		)
	}

	blogs, err := b.pageOf(c, page, matches, newestFirst)
	if err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	c.JSON(http.StatusOK, newListing(page, blogs))
}

// filterTags reads ?tags=a,b and any repeated ?tag= values.
func filterTags(c *gin.Context) []string {
	tags := common.SplitTags(c.Query("tags"))
	tags = append(tags, c.QueryArray("tag")...)
	return common.NormalizeTags(tags)
}

func (b *BlogModule) filterBlogs(c *gin.Context) {
	page := common.Page(c)

	tags := filterTags(c)
	if len(tags) == 0 {
		c.JSON(http.StatusOK, newListing(page, []models.Blog{}))
		return
	}

	blogs, err := b.pageOf(c, page, withTagNames(tags), newestFirst)
	if err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	c.JSON(http.StatusOK, newListing(page, blogs))
}

// getTrendingBlogs ranks by likes plus comment count. The page is cut
// before banned authors are dropped, so a page may hold fewer than ten.
func (b *BlogModule) getTrendingBlogs(c *gin.Context) {
	page := common.Page(c)

	byScore := func(db *gorm.DB) *gorm.DB {
		return db.Order(trendingScore + " DESC").Order("blogs.publish_date DESC")
	}

	blogs, err := b.pageOf(c, page, byScore)
	if err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	c.JSON(http.StatusOK, newListing(page, blogs))
}

func (b *BlogModule) getUserFeed(c *gin.Context) {
	userID := c.Param("userId")
	caller := auth.CurrentUser(c)
	if caller.ID != userID && caller.Role != models.RoleAdmin {
		common.RespondError(c, common.ErrForbidden("Cannot read another user's feed"))
		return
	}

	var user models.User
	if err := b.db.WithContext(c.Request.Context()).Preload("CustomFeed").First(&user, "id = ?", userID).Error; err != nil {
		common.RespondError(c, common.NotFoundOr(err, "User not found"))
		return
	}

	page := common.Page(c)
	feed := user.FeedTags()
	if len(feed) == 0 {
		c.JSON(http.StatusOK, newListing(page, []models.Blog{}))
		return
	}

	blogs, err := b.pageOf(c, page, withTagNames(feed), newestFirst)
	if err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	c.JSON(http.StatusOK, newListing(page, blogs))
}

func (b *BlogModule) getRecommendedBlogs(c *gin.Context) {
	source, err := b.findBlog(c, c.Param("blogId"))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var feed []string
	if callerID := auth.CurrentUserID(c); callerID != "" {
		if err := b.db.WithContext(c.Request.Context()).Model(&models.FeedTag{}).
			Where("user_id = ?", callerID).Pluck("name", &feed).Error; err != nil {
			common.RespondError(c, common.ErrInternal(err))
			return
		}
	}

	related := func(db *gorm.DB) *gorm.DB {
		db = db.Where("blogs.id <> ?", source.ID)
		if len(feed) == 0 {
			return db.Where("blogs.author_id = ?", source.AuthorID)
		}
		return db.Where(
			"(blogs.author_id = ? OR EXISTS (SELECT 1 FROM blog_tags WHERE blog_tags.blog_id = blogs.id AND blog_tags.name IN ?))",
			source.AuthorID, feed,
		)
	}

	blogs, err := b.pageOf(c, 1, related, newestFirst)
	if err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"blogs": blogs})
}

func (b *BlogModule) getUserDraftBlogs(c *gin.Context) {
	page := common.Page(c)
	ctx := c.Request.Context()
	drafts := b.db.WithContext(ctx).Model(&models.Blog{}).
		Where("author_id = ? AND is_draft = ?", auth.CurrentUserID(c), true)

	var total int64
	if err := drafts.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	var blogs []models.Blog
	if err := drafts.Session(&gorm.Session{}).
		Preload("Tags").
		Order("updated_at DESC").
		Offset(common.Offset(page)).
		Limit(common.PageSize).
		Find(&blogs).Error; err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	c.JSON(http.StatusOK, Listing{
		Page:         page,
		Limit:        common.PageSize,
		TotalPages:   common.TotalPages(total),
		TotalResults: int(total),
		Blogs:        blogs,
	})
}

type blogView struct {
	models.Blog
	ContentHTML string `json:"contentHtml"`
}

func (b *BlogModule) getBlogById(c *gin.Context) {
	var blog models.Blog
	err := b.db.WithContext(c.Request.Context()).
		Preload("Author", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "email", "avatar")
		}).
		Preload("Tags").
		Preload("Likes").
		Preload("BookMarked").
		First(&blog, "id = ?", c.Param("id")).Error
	if err != nil {
		common.RespondError(c, common.NotFoundOr(err, "Blog not found"))
		return
	}

	html, hash := b.renderContent(&blog)
	c.Header("X-Content-Hash", hash)

	c.JSON(http.StatusOK, gin.H{
		"message": "success",
		"data":    blogView{Blog: blog, ContentHTML: html},
	})
}
