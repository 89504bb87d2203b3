package site

import (
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"inkwell/blog"
	"inkwell/common"
	"inkwell/models"
)

type SiteModule struct {
	db     *gorm.DB
	domain string
}

func NewSiteModule(db *gorm.DB, domain string) *SiteModule {
	if domain == "" {
		domain = "http://localhost"
	}
	return &SiteModule{db: db, domain: strings.TrimSuffix(domain, "/")}
}

func (s *SiteModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/", s.index)
	router.GET("/sitemap.xml", s.sitemap)
}

func (s *SiteModule) index(c *gin.Context) {
	c.String(http.StatusOK, "Backend is running!")
}

func writeURL(sb *strings.Builder, loc, lastmod, changefreq, priority string) {
	sb.WriteString("  <url>\n")
	sb.WriteString("    <loc>")
	xml.EscapeText(sb, []byte(loc))
	sb.WriteString("</loc>\n")
	if lastmod != "" {
		sb.WriteString("    <lastmod>" + lastmod + "</lastmod>\n")
	}
	sb.WriteString("    <changefreq>" + changefreq + "</changefreq>\n")
	sb.WriteString("    <priority>" + priority + "</priority>\n")
	sb.WriteString("  </url>\n")
}

// sitemap lists every publicly visible blog and the tags they carry.
func (s *SiteModule) sitemap(c *gin.Context) {
	ctx := c.Request.Context()

	var blogs []models.Blog
	err := s.db.WithContext(ctx).
		Select("blogs.id", "blogs.updated_at").
		Joins("JOIN users ON users.id = blogs.author_id AND users.is_banned = ?", false).
		Scopes(blog.Visible).
		Order("blogs.publish_date DESC").
		Find(&blogs).Error
	if err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	var tags []string
	err = s.db.WithContext(ctx).Model(&models.BlogTag{}).
		Joins("JOIN blogs ON blogs.id = blog_tags.blog_id").
		Joins("JOIN users ON users.id = blogs.author_id AND users.is_banned = ?", false).
		Scopes(blog.Visible).
		Distinct("blog_tags.name").
		Order("blog_tags.name").
		Pluck("blog_tags.name", &tags).Error
	if err != nil {
		common.RespondError(c, common.ErrInternal(err))
		return
	}

	var sitemap strings.Builder
	sitemap.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sitemap.WriteString("\n")
	sitemap.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	sitemap.WriteString("\n")

	writeURL(&sitemap, s.domain+"/", "", "daily", "1.0")

	for _, b := range blogs {
		writeURL(&sitemap, s.domain+"/blog/"+url.PathEscape(b.ID), b.UpdatedAt.UTC().Format(time.RFC3339), "weekly", "0.7")
	}

	for _, tag := range tags {
		writeURL(&sitemap, s.domain+"/tags/"+url.PathEscape(tag), "", "weekly", "0.4")
	}

	sitemap.WriteString("</urlset>\n")

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, sitemap.String())
}
