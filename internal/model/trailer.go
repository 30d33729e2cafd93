package model

import (
	"time"

	"github.com/lib/pq"
)

// Trailer 预告片模型
// Views/Likes/Comments 为冗余计数器，仅由互动服务写入，
// 真实来源是 view_events / like_records / comments 原始记录
type Trailer struct {
	ID          int            `json:"id" db:"id"`
	Title       string         `json:"title" db:"title"`
	Slug        string         `json:"slug" db:"slug" gorm:"unique"`
	Description string         `json:"description" db:"description"`
	VideoURL    string         `json:"video_url" db:"video_url"`
	Poster      string         `json:"poster" db:"poster"`
	Genres      pq.StringArray `json:"genres" db:"genres" gorm:"type:text[]"`
	Views       int64          `json:"views" db:"views"`
	Likes       int64          `json:"likes" db:"likes"`
	Comments    int64          `json:"comments" db:"comments"`
	Trending    bool           `json:"trending" db:"trending"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// TrailerStats 从原始记录实时统计出的互动数据（聚合分析用，不依赖冗余计数器）
type TrailerStats struct {
	TrailerID    int     `json:"trailer_id" db:"trailer_id"`
	Title        string  `json:"title" db:"title"`
	ViewCount    int64   `json:"view_count" db:"view_count"`
	LikeCount    int64   `json:"like_count" db:"like_count"`
	CommentCount int64   `json:"comment_count" db:"comment_count"`
	Engagement   float64 `json:"engagement" db:"-"`
}
