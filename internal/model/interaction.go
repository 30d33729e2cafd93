package model

import (
	"time"
)

// ViewEvent 观看事件（原始记录）
// 同一 (trailer_id, 访客标识) 在一小时窗口内只会有一条记录
type ViewEvent struct {
	ID        int       `json:"id" db:"id"`
	TrailerID int       `json:"trailer_id" db:"trailer_id" gorm:"index:idx_view_viewer"`
	UserID    *int      `json:"user_id" db:"user_id" gorm:"index:idx_view_viewer"`
	SessionID string    `json:"session_id" db:"session_id" gorm:"index:idx_view_viewer"`
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"index"`
}

// LikeRecord 点赞记录，(trailer_id, user_id) 唯一，存在即表示已赞
type LikeRecord struct {
	ID        int       `json:"id" db:"id"`
	TrailerID int       `json:"trailer_id" db:"trailer_id" gorm:"uniqueIndex:idx_like_trailer_user"`
	UserID    int       `json:"user_id" db:"user_id" gorm:"uniqueIndex:idx_like_trailer_user"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Comment 评论，本子系统内创建后不可变
type Comment struct {
	ID        int       `json:"id" db:"id"`
	TrailerID int       `json:"trailer_id" db:"trailer_id" gorm:"index"`
	UserID    int       `json:"user_id" db:"user_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	User      *User     `json:"user,omitempty" gorm:"foreignKey:UserID"` // 关联查询时填充
}

// RegistrationBucket 注册趋势的单日桶
type RegistrationBucket struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}
