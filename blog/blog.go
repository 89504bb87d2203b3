package blog

import (
	"bytes"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"gorm.io/gorm"

	"inkwell/auth"
	"inkwell/cache"
	"inkwell/common"
	"inkwell/metrics"
	"inkwell/models"
)

type BlogModule struct {
	db      *gorm.DB
	guard   *auth.Guard
	cache   *cache.RenderCache
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// markdown renderer configured with Goldmark and useful extensions
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,     // tables, strikethrough, task lists, autolinks (GFM set)
		extension.Linkify, // linkify raw URLs
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithUnsafe(), // allow raw HTML passthrough in Markdown
	),
)

func NewBlogModule(db *gorm.DB, guard *auth.Guard, renderCache *cache.RenderCache, m *metrics.Metrics) *BlogModule {
	return &BlogModule{
		db:      db,
		guard:   guard,
		cache:   renderCache,
		metrics: m,
		logger:  common.Logger("blog"),
	}
}

func (b *BlogModule) RegisterRoutes(router *gin.Engine) {
	blogGroup := router.Group("/api/blog")
	{
		blogGroup.GET("/getAllBlogs", b.getAllBlogs)
		blogGroup.GET("/getBlogById/:id", b.getBlogById)
		blogGroup.GET("/searchBlogs", b.searchBlogs)
		blogGroup.GET("/filterBlogs", b.filterBlogs)
		blogGroup.GET("/getTrendingBlogs", b.getTrendingBlogs)
		blogGroup.GET("/getBlogComments/:id", b.getBlogComments)
		blogGroup.GET("/getRecommendedBlogs/:blogId", b.guard.OptionalAuth, b.getRecommendedBlogs)
	}

	authed := router.Group("/api/blog", b.guard.RequireAuth)
	{
		authed.GET("/getUserDraftBlogs", b.getUserDraftBlogs)
		authed.GET("/getUserFeed/:userId", b.getUserFeed)

		authed.POST("/publishBlog/:id", b.publishBlog)
		authed.POST("/unpublishBlog/:id", b.unpublishBlog)
		authed.POST("/deleteBlog/:id", b.deleteBlog)
		authed.POST("/restoreBlog/:id", b.restoreBlog)

		authed.POST("/likeBlog/:id", b.likeBlog)
		authed.POST("/bookmarkBlog/:id", b.bookmarkBlog)

		authed.POST("/commentBlog/:id", b.commentBlog)
		authed.POST("/replyComment/:commentId", b.replyComment)
		authed.DELETE("/deleteComment/:commentId", b.deleteComment)
	}
}

// Visible keeps blogs that are published, not soft-deleted, not hidden and
// not banned.
func Visible(db *gorm.DB) *gorm.DB {
	return db.Where("blogs.is_draft = ? AND blogs.deleted_at IS NULL AND blogs.is_hidden = ? AND blogs.is_banned = ?",
		false, false, false)
}

// withActiveAuthor preloads the author's public fields. Banned authors are
// left unloaded; dropBannedAuthors then removes their blogs.
func withActiveAuthor(db *gorm.DB) *gorm.DB {
	return db.Preload("Author", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "name", "email", "avatar").Where("is_banned = ?", false)
	})
}

func withTagNames(tags []string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("EXISTS (SELECT 1 FROM blog_tags WHERE blog_tags.blog_id = blogs.id AND blog_tags.name IN ?)", tags)
	}
}

func dropBannedAuthors(blogs []models.Blog) []models.Blog {
	kept := make([]models.Blog, 0, len(blogs))
	for _, blog := range blogs {
		if blog.Author != nil {
			kept = append(kept, blog)
		}
	}
	return kept
}

func (b *BlogModule) findBlog(c *gin.Context, id string) (*models.Blog, error) {
	var blog models.Blog
	if err := b.db.WithContext(c.Request.Context()).First(&blog, "id = ?", id).Error; err != nil {
		return nil, common.NotFoundOr(err, "Blog not found")
	}
	return &blog, nil
}

func renderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return content
	}
	return buf.String()
}

// renderContent returns the blog's HTML and the content hash it is cached under.
func (b *BlogModule) renderContent(blog *models.Blog) (string, string) {
	hash := cache.ContentHash(blog.Content)
	if b.cache == nil {
		return renderMarkdown(blog.Content), hash
	}

	if html, ok := b.cache.Read(blog.ID, hash); ok {
		return html, hash
	}

	html := renderMarkdown(blog.Content)
	if err := b.cache.Write(blog.ID, hash, html); err != nil {
		b.logger.Warn().Err(err).Str(common.BLOG_ID, blog.ID).Msg("failed to cache rendered blog")
	}
	return html, hash
}
