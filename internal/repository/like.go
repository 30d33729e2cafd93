package repository

import (
	"time"

	"github.com/user/tucheki/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LikeRepository struct {
	db *gorm.DB
}

func NewLikeRepository(db *gorm.DB) *LikeRepository {
	return &LikeRepository{db: db}
}

// TryInsertTx 在指定事务内尝试插入点赞记录
// 依赖 (trailer_id, user_id) 唯一索引，已存在时不报错，返回是否真正插入
// 把“查状态再写”压缩为一次存储层原子判定，并发重复点击不会双计
func (r *LikeRepository) TryInsertTx(tx *gorm.DB, trailerID, userID int) (bool, error) {
	record := &model.LikeRecord{
		TrailerID: trailerID,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteTx 在指定事务内删除点赞记录，返回是否真正删除
func (r *LikeRepository) DeleteTx(tx *gorm.DB, trailerID, userID int) (bool, error) {
	result := tx.Where("trailer_id = ? AND user_id = ?", trailerID, userID).Delete(&model.LikeRecord{})
	return result.RowsAffected > 0, result.Error
}

// IsLiked 检查用户是否已点赞
func (r *LikeRepository) IsLiked(trailerID, userID int) (bool, error) {
	var count int64
	err := r.db.Model(&model.LikeRecord{}).
		Where("trailer_id = ? AND user_id = ?", trailerID, userID).
		Count(&count).Error
	return count > 0, err
}

// CountByTrailer 统计某预告片的原始点赞记录数
func (r *LikeRepository) CountByTrailer(trailerID int) (int64, error) {
	var count int64
	err := r.db.Model(&model.LikeRecord{}).Where("trailer_id = ?", trailerID).Count(&count).Error
	return count, err
}
