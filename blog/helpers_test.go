package blog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"inkwell/auth"
	"inkwell/cache"
	"inkwell/database"
	"inkwell/models"
)

type testEnv struct {
	db     *gorm.DB
	tokens *auth.TokenIssuer
	module *BlogModule
	router *gin.Engine
	cache  *cache.RenderCache
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.RunMigrations(db))
	return db
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	renderCache := cache.NewRenderCache(t.TempDir())
	module := NewBlogModule(db, auth.NewGuard(db, tokens), renderCache, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	module.RegisterRoutes(router)

	return &testEnv{db: db, tokens: tokens, module: module, router: router, cache: renderCache}
}

// createUser stores a logged-in user and returns it with a bearer token.
func (e *testEnv) createUser(t *testing.T, email, role string) (*models.User, string) {
	t.Helper()
	user := &models.User{Email: email, Name: strings.Split(email, "@")[0], Role: role}
	require.NoError(t, e.db.Create(user).Error)

	token, err := e.tokens.Issue(user.ID, user.Email)
	require.NoError(t, err)
	require.NoError(t, e.db.Model(user).Updates(map[string]interface{}{"token": token, "is_logged_in": true}).Error)
	return user, token
}

func (e *testEnv) banUser(t *testing.T, user *models.User) {
	t.Helper()
	require.NoError(t, e.db.Model(user).Update("is_banned", true).Error)
}

var publishClock = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// createBlog stores a visible blog; each call is published one minute
// after the previous one.
func (e *testEnv) createBlog(t *testing.T, author *models.User, title string, opts ...func(*models.Blog)) *models.Blog {
	t.Helper()
	publishClock = publishClock.Add(time.Minute)
	blog := &models.Blog{
		Title:       title,
		Content:     "# " + title + "\n\nSome **content**.",
		AuthorID:    author.ID,
		PublishDate: publishClock,
	}
	for _, opt := range opts {
		opt(blog)
	}
	require.NoError(t, e.db.Create(blog).Error)
	return blog
}

func withTags(tags ...string) func(*models.Blog) {
	return func(b *models.Blog) {
		for _, tag := range tags {
			b.Tags = append(b.Tags, models.BlogTag{Name: tag})
		}
	}
}

func asDraft(b *models.Blog)   { b.IsDraft = true }
func asHidden(b *models.Blog)  { b.IsHidden = true }
func asBanned(b *models.Blog)  { b.IsBanned = true }
func asDeleted(b *models.Blog) { now := time.Now(); b.DeletedAt = &now }

func (e *testEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type listedBlog struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Tags     []string `json:"tags"`
	LikesCnt int      `json:"likesCnt"`
	IsDraft  bool     `json:"isDraft"`
	Author   *struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"author"`
}

type listing struct {
	Page         int          `json:"page"`
	Limit        int          `json:"limit"`
	TotalPages   int64        `json:"totalPages"`
	TotalResults int          `json:"totalResults"`
	Blogs        []listedBlog `json:"blogs"`
}

func decodeListing(t *testing.T, w *httptest.ResponseRecorder) listing {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out listing
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func titles(blogs []listedBlog) []string {
	out := make([]string, 0, len(blogs))
	for _, b := range blogs {
		out = append(out, b.Title)
	}
	return out
}
