package blog

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/cache"
	"inkwell/common"
	"inkwell/models"
)

func seedVisibility(t *testing.T, e *testEnv) {
	t.Helper()
	author, _ := e.createUser(t, "author@example.com", models.RoleUser)
	e.createBlog(t, author, "Visible Go", withTags("go"))
	e.createBlog(t, author, "Draft Go", withTags("go"), asDraft)
	e.createBlog(t, author, "Deleted Go", withTags("go"), asDeleted)
	e.createBlog(t, author, "Hidden Go", withTags("go"), asHidden)
	e.createBlog(t, author, "Banned Go", withTags("go"), asBanned)
}

func TestListings_OnlyVisibleBlogs(t *testing.T) {
	e := setupTestEnv(t)
	seedVisibility(t, e)

	for _, path := range []string{
		"/api/blog/getAllBlogs",
		"/api/blog/searchBlogs?q=go",
		"/api/blog/filterBlogs?tags=go",
		"/api/blog/getTrendingBlogs",
	} {
		t.Run(path, func(t *testing.T) {
			out := decodeListing(t, e.do(http.MethodGet, path, "", ""))
			assert.Equal(t, []string{"Visible Go"}, titles(out.Blogs))
			assert.Equal(t, 10, out.Limit)
			assert.Equal(t, 1, out.Page)
		})
	}
}

func TestListings_ExcludeBannedAuthors(t *testing.T) {
	e := setupTestEnv(t)
	good, _ := e.createUser(t, "good@example.com", models.RoleUser)
	bad, _ := e.createUser(t, "bad@example.com", models.RoleUser)
	e.createBlog(t, good, "Good Go", withTags("go"))
	e.createBlog(t, bad, "Bad Go", withTags("go"))
	e.banUser(t, bad)

	for _, path := range []string{
		"/api/blog/getAllBlogs",
		"/api/blog/searchBlogs?q=go",
		"/api/blog/filterBlogs?tags=go",
		"/api/blog/getTrendingBlogs",
	} {
		t.Run(path, func(t *testing.T) {
			out := decodeListing(t, e.do(http.MethodGet, path, "", ""))
			require.Equal(t, []string{"Good Go"}, titles(out.Blogs))
			require.NotNil(t, out.Blogs[0].Author)
			assert.Equal(t, good.ID, out.Blogs[0].Author.ID)
		})
	}
}

func TestGetAllBlogs_TotalPagesCountsBeforeBanDrop(t *testing.T) {
	e := setupTestEnv(t)
	good, _ := e.createUser(t, "good@example.com", models.RoleUser)
	bad, _ := e.createUser(t, "bad@example.com", models.RoleUser)

	e.createBlog(t, good, "Oldest")
	for i := 0; i < 10; i++ {
		e.createBlog(t, bad, fmt.Sprintf("Banned %d", i))
	}
	e.banUser(t, bad)

	first := decodeListing(t, e.do(http.MethodGet, "/api/blog/getAllBlogs", "", ""))
	assert.Equal(t, int64(2), first.TotalPages)
	assert.Equal(t, 0, first.TotalResults)
	assert.Empty(t, first.Blogs)

	second := decodeListing(t, e.do(http.MethodGet, "/api/blog/getAllBlogs?page=2", "", ""))
	assert.Equal(t, 2, second.Page)
	assert.Equal(t, []string{"Oldest"}, titles(second.Blogs))
}

func TestGetAllBlogs_PaginationNewestFirst(t *testing.T) {
	e := setupTestEnv(t)
	author, _ := e.createUser(t, "author@example.com", models.RoleUser)
	for i := 0; i < 12; i++ {
		e.createBlog(t, author, fmt.Sprintf("Post %02d", i))
	}

	first := decodeListing(t, e.do(http.MethodGet, "/api/blog/getAllBlogs?page=0", "", ""))
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, int64(2), first.TotalPages)
	assert.Equal(t, 10, first.TotalResults)
	assert.Equal(t, "Post 11", first.Blogs[0].Title)

	second := decodeListing(t, e.do(http.MethodGet, "/api/blog/getAllBlogs?page=2", "", ""))
	assert.Equal(t, []string{"Post 01", "Post 00"}, titles(second.Blogs))
}

func TestGetAllBlogs_HugePageIsEmpty(t *testing.T) {
	e := setupTestEnv(t)
	author, _ := e.createUser(t, "author@example.com", models.RoleUser)
	e.createBlog(t, author, "Only")

	out := decodeListing(t, e.do(http.MethodGet, "/api/blog/getAllBlogs?page=922337203685477580", "", ""))
	assert.Equal(t, common.MaxPage, out.Page)
	assert.Empty(t, out.Blogs)
}

func TestSearchBlogs(t *testing.T) {
	e := setupTestEnv(t)
	author, _ := e.createUser(t, "author@example.com", models.RoleUser)
	e.createBlog(t, author, "Learning GOLANG")
	e.createBlog(t, author, "Rust notes", withTags("golang"))
	e.createBlog(t, author, "100% coverage")
	e.createBlog(t, author, "Cooking")

	out := decodeListing(t, e.do(http.MethodGet, "/api/blog/searchBlogs?q=golang", "", ""))
	assert.ElementsMatch(t, []string{"Learning GOLANG", "Rust notes"}, titles(out.Blogs))
	assert.Equal(t, 2, out.TotalResults)
	assert.Equal(t, int64(1), out.TotalPages)

	out = decodeListing(t, e.do(http.MethodGet, "/api/blog/searchBlogs?q=%25", "", ""))
	assert.Equal(t, []string{"100% coverage"}, titles(out.Blogs))

	out = decodeListing(t, e.do(http.MethodGet, "/api/blog/searchBlogs?q=gola", "", ""))
	assert.Equal(t, []string{"Learning GOLANG"}, titles(out.Blogs))
}

func TestFilterBlogs(t *testing.T) {
	e := setupTestEnv(t)
	author, _ := e.createUser(t, "author@example.com", models.RoleUser)
	e.createBlog(t, author, "Go", withTags("go", "backend"))
	e.createBlog(t, author, "Rust", withTags("rust"))
	e.createBlog(t, author, "Css", withTags("frontend"))

	out := decodeListing(t, e.do(http.MethodGet, "/api/blog/filterBlogs?tags=go,rust", "", ""))
	assert.ElementsMatch(t, []string{"Go", "Rust"}, titles(out.Blogs))

	out = decodeListing(t, e.do(http.MethodGet, "/api/blog/filterBlogs?tag=frontend&tag=backend", "", ""))
	assert.ElementsMatch(t, []string{"Go", "Css"}, titles(out.Blogs))

	out = decodeListing(t, e.do(http.MethodGet, "/api/blog/filterBlogs", "", ""))
	assert.Empty(t, out.Blogs)
	assert.Equal(t, int64(0), out.TotalPages)
}

func TestGetTrendingBlogs_ScoreOrder(t *testing.T) {
	e := setupTestEnv(t)
	author, _ := e.createUser(t, "author@example.com", models.RoleUser)
	liked := e.createBlog(t, author, "Liked", func(b *models.Blog) { b.LikesCnt = 2 })
	discussed := e.createBlog(t, author, "Discussed", func(b *models.Blog) { b.LikesCnt = 1 })
	e.createBlog(t, author, "Quiet")

	for i := 0; i < 2; i++ {
		require.NoError(t, e.db.Create(&models.Comment{BlogID: discussed.ID, UserID: author.ID, Text: "hi"}).Error)
	}
	require.NotEmpty(t, liked.ID)

	out := decodeListing(t, e.do(http.MethodGet, "/api/blog/getTrendingBlogs", "", ""))
	assert.Equal(t, []string{"Discussed", "Liked", "Quiet"}, titles(out.Blogs))
	assert.Equal(t, 3, out.TotalResults)
}

func TestGetTrendingBlogs_PagesBeforeBanDrop(t *testing.T) {
	e := setupTestEnv(t)
	good, _ := e.createUser(t, "good@example.com", models.RoleUser)
	bad, _ := e.createUser(t, "bad@example.com", models.RoleUser)

	e.createBlog(t, good, "Good")
	for i := 0; i < 10; i++ {
		e.createBlog(t, bad, fmt.Sprintf("Popular %d", i), func(b *models.Blog) { b.LikesCnt = 5 })
	}
	e.banUser(t, bad)

	first := decodeListing(t, e.do(http.MethodGet, "/api/blog/getTrendingBlogs", "", ""))
	assert.Empty(t, first.Blogs)
	assert.Equal(t, 0, first.TotalResults)

	second := decodeListing(t, e.do(http.MethodGet, "/api/blog/getTrendingBlogs?page=2", "", ""))
	assert.Equal(t, 2, second.Page)
	assert.Equal(t, []string{"Good"}, titles(second.Blogs))
	assert.Equal(t, 1, second.TotalResults)
}

func TestGetUserFeed(t *testing.T) {
	e := setupTestEnv(t)
	reader, readerToken := e.createUser(t, "reader@example.com", models.RoleUser)
	_, otherToken := e.createUser(t, "other@example.com", models.RoleUser)
	_, adminToken := e.createUser(t, "admin@example.com", models.RoleAdmin)
	author, _ := e.createUser(t, "author@example.com", models.RoleUser)

	require.NoError(t, e.db.Create(&models.FeedTag{UserID: reader.ID, Name: "go"}).Error)
	e.createBlog(t, author, "Go", withTags("go"))
	e.createBlog(t, author, "Rust", withTags("rust"))
	e.createBlog(t, author, "Go draft", withTags("go"), asDraft)

	path := "/api/blog/getUserFeed/" + reader.ID
	out := decodeListing(t, e.do(http.MethodGet, path, "", readerToken))
	assert.Equal(t, []string{"Go"}, titles(out.Blogs))

	w := e.do(http.MethodGet, path, "", otherToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	out = decodeListing(t, e.do(http.MethodGet, path, "", adminToken))
	assert.Equal(t, []string{"Go"}, titles(out.Blogs))

	w = e.do(http.MethodGet, path, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetRecommendedBlogs(t *testing.T) {
	e := setupTestEnv(t)
	reader, readerToken := e.createUser(t, "reader@example.com", models.RoleUser)
	author, _ := e.createUser(t, "author@example.com", models.RoleUser)
	other, _ := e.createUser(t, "other@example.com", models.RoleUser)

	require.NoError(t, e.db.Create(&models.FeedTag{UserID: reader.ID, Name: "go"}).Error)
	source := e.createBlog(t, author, "Source")
	e.createBlog(t, author, "Same author")
	e.createBlog(t, author, "Same author draft", asDraft)
	e.createBlog(t, other, "Tagged", withTags("go"))
	e.createBlog(t, other, "Unrelated", withTags("rust"))

	var body struct {
		Blogs []listedBlog `json:"blogs"`
	}

	w := e.do(http.MethodGet, "/api/blog/getRecommendedBlogs/"+source.ID, "", readerToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.ElementsMatch(t, []string{"Same author", "Tagged"}, titles(body.Blogs))

	w = e.do(http.MethodGet, "/api/blog/getRecommendedBlogs/"+source.ID, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"Same author"}, titles(body.Blogs))

	w = e.do(http.MethodGet, "/api/blog/getRecommendedBlogs/missing", "", readerToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetUserDraftBlogs(t *testing.T) {
	e := setupTestEnv(t)
	author, token := e.createUser(t, "author@example.com", models.RoleUser)
	other, _ := e.createUser(t, "other@example.com", models.RoleUser)
	e.createBlog(t, author, "Mine", asDraft)
	e.createBlog(t, author, "Published")
	e.createBlog(t, other, "Theirs", asDraft)

	out := decodeListing(t, e.do(http.MethodGet, "/api/blog/getUserDraftBlogs", "", token))
	assert.Equal(t, []string{"Mine"}, titles(out.Blogs))
	assert.True(t, out.Blogs[0].IsDraft)
	assert.Equal(t, 1, out.TotalResults)
}

func TestGetBlogById_RendersAndCaches(t *testing.T) {
	e := setupTestEnv(t)
	author, _ := e.createUser(t, "author@example.com", models.RoleUser)
	blog := e.createBlog(t, author, "Hello", withTags("go"))

	w := e.do(http.MethodGet, "/api/blog/getBlogById/"+blog.ID, "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Message string `json:"message"`
		Data    struct {
			ID          string   `json:"id"`
			Tags        []string `json:"tags"`
			ContentHTML string   `json:"contentHtml"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Message)
	assert.Equal(t, blog.ID, body.Data.ID)
	assert.Equal(t, []string{"go"}, body.Data.Tags)
	assert.Contains(t, body.Data.ContentHTML, "<h1>Hello</h1>")
	assert.Contains(t, body.Data.ContentHTML, "<strong>content</strong>")

	hash := cache.ContentHash(blog.Content)
	assert.Equal(t, hash, w.Header().Get("X-Content-Hash"))
	_, err := os.Stat(e.cache.GetCachePath(blog.ID, hash))
	assert.NoError(t, err)

	w = e.do(http.MethodGet, "/api/blog/getBlogById/missing", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestGetBlogById_ServesCachedRender(t *testing.T) {
	e := setupTestEnv(t)
	author, _ := e.createUser(t, "author@example.com", models.RoleUser)
	blog := e.createBlog(t, author, "Hello")

	require.NoError(t, e.cache.Write(blog.ID, cache.ContentHash(blog.Content), "<p>cached</p>"))

	w := e.do(http.MethodGet, "/api/blog/getBlogById/"+blog.ID, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			ContentHTML string `json:"contentHtml"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "<p>cached</p>", body.Data.ContentHTML)
}
