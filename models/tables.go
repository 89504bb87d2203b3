package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles a user can hold.
const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

type User struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name       string     `json:"name"`
	Email      string     `gorm:"index" json:"email"`
	Password   string     `json:"-"` // bcrypt hash, empty for OAuth/OTP-only accounts
	GoogleID   string     `gorm:"index" json:"googleId,omitempty"`
	OTP        string     `json:"-"`
	OTPExpiry  *time.Time `json:"-"`
	Role       string     `gorm:"default:user;not null" json:"role"`
	Avatar     string     `json:"avatar"`
	IsVerified bool       `gorm:"default:false" json:"isVerified"`
	IsLoggedIn bool       `gorm:"default:false" json:"isLoggedIn"`
	Token      string     `json:"-"` // latest issued bearer token
	IsBanned   bool       `gorm:"default:false;index" json:"isBanned"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`

	CustomFeed      []FeedTag      `gorm:"foreignKey:UserID" json:"customFeed,omitempty"`
	Blogs           []Blog         `gorm:"foreignKey:AuthorID" json:"-"`
	LikedBlogs      []BlogLike     `gorm:"foreignKey:UserID" json:"-"`
	BookmarkedBlogs []BlogBookmark `gorm:"foreignKey:UserID" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// IsStaff reports whether the user may run moderation actions.
func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleModerator
}

// FeedTags returns the user's custom feed as plain strings.
func (u *User) FeedTags() []string {
	tags := make([]string, 0, len(u.CustomFeed))
	for _, t := range u.CustomFeed {
		tags = append(tags, t.Name)
	}
	return tags
}

// FeedTag is one tag of a user's custom feed.
type FeedTag struct {
	ID     uint   `gorm:"primaryKey"`
	UserID string `gorm:"not null;index;type:varchar(36)"`
	Name   string `gorm:"not null;index"`
}

func (t FeedTag) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Name)
}

type Blog struct {
	ID               string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title            string          `gorm:"not null" json:"title"`
	Subtitle         string          `json:"subtitle"`
	Content          string          `gorm:"type:text;not null" json:"content"`
	CoverImage       string          `json:"coverImage"`
	MainImage        string          `json:"mainImage"`
	SeoTitle         string          `json:"seoTitle"`
	SeoDescription   string          `json:"seoDescription"`
	PublishDate      time.Time       `gorm:"index" json:"publishDate"`
	SeriesID         *string         `gorm:"type:varchar(36)" json:"series,omitempty"`
	AuthorID         string          `gorm:"not null;index;type:varchar(36)" json:"authorId"`
	DisableComments  bool            `gorm:"default:false" json:"disableComments"`
	SendAsNewsletter bool            `json:"sendAsNewsletter"`
	TableOfContents  TableOfContents `gorm:"type:text" json:"tableOfContents"`
	LikesCnt         int             `gorm:"default:0;not null" json:"likesCnt"`
	IsDraft          bool            `gorm:"index" json:"isDraft"`
	DraftSavedAt     *time.Time      `json:"draftSavedAt,omitempty"`
	DeletedAt        *time.Time      `gorm:"index" json:"deletedAt"`
	IsHidden         bool            `gorm:"default:false;index" json:"isHidden"`
	IsBanned         bool            `gorm:"default:false;index" json:"isBanned"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`

	Author     *User          `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Tags       []BlogTag      `gorm:"foreignKey:BlogID" json:"tags"`
	Likes      []BlogLike     `gorm:"foreignKey:BlogID" json:"likes,omitempty"`
	BookMarked []BlogBookmark `gorm:"foreignKey:BlogID" json:"bookMarked,omitempty"`
	Comments   []Comment      `gorm:"foreignKey:BlogID" json:"comments,omitempty"`
}

func (b *Blog) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// TagNames returns the blog's tags as plain strings.
func (b *Blog) TagNames() []string {
	names := make([]string, 0, len(b.Tags))
	for _, t := range b.Tags {
		names = append(names, t.Name)
	}
	return names
}

// Heading is one entry of a blog's table of contents.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	ID    string `json:"id,omitempty"`
}

// TableOfContents is stored as a JSON text column.
type TableOfContents []Heading

func (t TableOfContents) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *TableOfContents) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*t = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return errors.New("unsupported table of contents value")
	}
	if len(raw) == 0 {
		*t = nil
		return nil
	}
	return json.Unmarshal(raw, t)
}

type BlogTag struct {
	ID     uint   `gorm:"primaryKey"`
	BlogID string `gorm:"not null;index;type:varchar(36)"`
	Name   string `gorm:"not null;index"`
}

func (t BlogTag) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Name)
}

// BlogLike is one member of a blog's like set.
type BlogLike struct {
	ID        uint      `gorm:"primaryKey"`
	BlogID    string    `gorm:"not null;uniqueIndex:idx_blog_like;type:varchar(36)"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_blog_like;index;type:varchar(36)"`
	CreatedAt time.Time
}

func (l BlogLike) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.UserID)
}

// BlogBookmark is one member of a blog's bookmark set.
type BlogBookmark struct {
	ID        uint      `gorm:"primaryKey"`
	BlogID    string    `gorm:"not null;uniqueIndex:idx_blog_bookmark;type:varchar(36)"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_blog_bookmark;index;type:varchar(36)"`
	CreatedAt time.Time
}

func (b BlogBookmark) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.UserID)
}

type Comment struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BlogID    string    `gorm:"not null;index;type:varchar(36)" json:"blogId"`
	UserID    string    `gorm:"not null;type:varchar(36)" json:"userId"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `json:"createdAt"`

	User    *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Replies []Reply `gorm:"foreignKey:CommentID" json:"replies"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type Reply struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CommentID string    `gorm:"not null;index;type:varchar(36)" json:"commentId"`
	UserID    string    `gorm:"not null;type:varchar(36)" json:"userId"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `json:"createdAt"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (r *Reply) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
