package repository

import (
	"time"

	"github.com/user/tucheki/internal/model"
	"gorm.io/gorm"
)

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create 写入评论，回填自增 ID 和时间戳
func (r *CommentRepository) Create(trailerID, userID int, content string) (*model.Comment, error) {
	comment := &model.Comment{
		TrailerID: trailerID,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := r.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// ListByTrailer 获取某预告片的评论（最新优先）
func (r *CommentRepository) ListByTrailer(trailerID int, limit, offset int) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := r.db.Preload("User").
		Where("trailer_id = ?", trailerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	return comments, err
}

// CountByTrailer 统计某预告片的原始评论数
func (r *CommentRepository) CountByTrailer(trailerID int) (int64, error) {
	var count int64
	err := r.db.Model(&model.Comment{}).Where("trailer_id = ?", trailerID).Count(&count).Error
	return count, err
}
