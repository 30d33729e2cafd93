package repository

import (
	"errors"
	"time"

	"github.com/user/tucheki/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TrailerRepository struct {
	db *gorm.DB
}

func NewTrailerRepository(db *gorm.DB) *TrailerRepository {
	return &TrailerRepository{db: db}
}

// FindByID 根据 ID 查找预告片
func (r *TrailerRepository) FindByID(id int) (*model.Trailer, error) {
	var trailer model.Trailer
	err := r.db.First(&trailer, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trailer, nil
}

// Exists 检查预告片是否存在
func (r *TrailerRepository) Exists(id int) (bool, error) {
	var count int64
	err := r.db.Model(&model.Trailer{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// List 预告片列表（最新优先）
func (r *TrailerRepository) List(limit, offset int) ([]*model.Trailer, error) {
	var trailers []*model.Trailer
	err := r.db.Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&trailers).Error
	return trailers, err
}

// ListTrending 热门预告片列表
func (r *TrailerRepository) ListTrending(limit int) ([]*model.Trailer, error) {
	var trailers []*model.Trailer
	err := r.db.Where("trending = ?", true).
		Order("views DESC, id ASC").
		Limit(limit).
		Find(&trailers).Error
	return trailers, err
}

// Upsert 创建或更新预告片（按 slug 去重，后台录入用）
func (r *TrailerRepository) Upsert(trailer *model.Trailer) error {
	if trailer.CreatedAt.IsZero() {
		trailer.CreatedAt = time.Now()
	}
	trailer.UpdatedAt = time.Now()
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description", "video_url", "poster", "genres", "updated_at"}),
	}).Create(trailer).Error
}

// Delete 删除预告片
// 关联的原始互动记录不做级联删除，由定期清理任务回收
func (r *TrailerRepository) Delete(id int) error {
	return r.db.Delete(&model.Trailer{}, id).Error
}

// IncrementViews 观看数 +1（存储层原子操作）
func (r *TrailerRepository) IncrementViews(id int) error {
	return r.db.Model(&model.Trailer{}).Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

// IncrementViewsTx 在指定事务内观看数 +1
func (r *TrailerRepository) IncrementViewsTx(tx *gorm.DB, id int) error {
	return tx.Model(&model.Trailer{}).Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

// IncrementLikesTx 在指定事务内点赞数 +1
func (r *TrailerRepository) IncrementLikesTx(tx *gorm.DB, id int) error {
	return tx.Model(&model.Trailer{}).Where("id = ?", id).
		UpdateColumn("likes", gorm.Expr("likes + 1")).Error
}

// DecrementLikesTx 在指定事务内点赞数 -1，下限为 0
func (r *TrailerRepository) DecrementLikesTx(tx *gorm.DB, id int) error {
	return tx.Model(&model.Trailer{}).Where("id = ?", id).
		UpdateColumn("likes", gorm.Expr("CASE WHEN likes > 0 THEN likes - 1 ELSE 0 END")).Error
}

// IncrementComments 评论数 +1（存储层原子操作）
func (r *TrailerRepository) IncrementComments(id int) error {
	return r.db.Model(&model.Trailer{}).Where("id = ?", id).
		UpdateColumn("comments", gorm.Expr("comments + 1")).Error
}

// SetTrending 批量刷新热门标记：在 ids 内的置为 true，其余置为 false
func (r *TrailerRepository) SetTrending(ids []int) error {
	if err := r.db.Model(&model.Trailer{}).
		Where("trending = ?", true).
		UpdateColumn("trending", false).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&model.Trailer{}).
		Where("id IN ?", ids).
		UpdateColumn("trending", true).Error
}

// RecountAll 用原始记录重算所有冗余计数器，修复计数漂移
func (r *TrailerRepository) RecountAll() (int64, error) {
	result := r.db.Exec(`
		UPDATE trailers SET
			views = (SELECT COUNT(*) FROM view_events WHERE view_events.trailer_id = trailers.id),
			likes = (SELECT COUNT(*) FROM like_records WHERE like_records.trailer_id = trailers.id),
			comments = (SELECT COUNT(*) FROM comments WHERE comments.trailer_id = trailers.id)
	`)
	return result.RowsAffected, result.Error
}

// StatsAll 从原始记录统计每部预告片的互动数据（不读冗余计数器）
func (r *TrailerRepository) StatsAll() ([]*model.TrailerStats, error) {
	var stats []*model.TrailerStats
	err := r.db.Raw(`
		SELECT t.id AS trailer_id, t.title,
			(SELECT COUNT(*) FROM view_events v WHERE v.trailer_id = t.id) AS view_count,
			(SELECT COUNT(*) FROM like_records l WHERE l.trailer_id = t.id) AS like_count,
			(SELECT COUNT(*) FROM comments c WHERE c.trailer_id = t.id) AS comment_count
		FROM trailers t
	`).Scan(&stats).Error
	return stats, err
}

// StatsSince 同 StatsAll，但只统计窗口内的观看事件（热门标记刷新用）
func (r *TrailerRepository) StatsSince(since time.Time) ([]*model.TrailerStats, error) {
	var stats []*model.TrailerStats
	err := r.db.Raw(`
		SELECT t.id AS trailer_id, t.title,
			(SELECT COUNT(*) FROM view_events v WHERE v.trailer_id = t.id AND v.created_at >= ?) AS view_count,
			(SELECT COUNT(*) FROM like_records l WHERE l.trailer_id = t.id AND l.created_at >= ?) AS like_count,
			(SELECT COUNT(*) FROM comments c WHERE c.trailer_id = t.id AND c.created_at >= ?) AS comment_count
		FROM trailers t
	`, since, since, since).Scan(&stats).Error
	return stats, err
}

// Count 预告片总数
func (r *TrailerRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.Trailer{}).Count(&count).Error
	return count, err
}
