package repository

import (
	"errors"
	"time"

	"github.com/user/tucheki/internal/model"
	"gorm.io/gorm"
)

type ViewEventRepository struct {
	db *gorm.DB
}

func NewViewEventRepository(db *gorm.DB) *ViewEventRepository {
	return &ViewEventRepository{db: db}
}

// viewerScope 按访客身份过滤：登录用户按 user_id，匿名按 session_id
func viewerScope(db *gorm.DB, trailerID int, identity model.Identity) *gorm.DB {
	q := db.Where("trailer_id = ?", trailerID)
	if identity.UserID != nil {
		return q.Where("user_id = ?", *identity.UserID)
	}
	return q.Where("user_id IS NULL AND session_id = ?", identity.SessionID)
}

// LatestFor 查找该访客对该预告片最近一次观看事件
func (r *ViewEventRepository) LatestFor(trailerID int, identity model.Identity) (*model.ViewEvent, error) {
	var event model.ViewEvent
	err := viewerScope(r.db.Model(&model.ViewEvent{}), trailerID, identity).
		Order("created_at DESC").
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// InsertTx 在指定事务内写入观看事件
func (r *ViewEventRepository) InsertTx(tx *gorm.DB, event *model.ViewEvent) error {
	return tx.Create(event).Error
}

// CountDistinctViewers 统计窗口内有观看记录的不同访客身份数
// 登录身份和匿名身份视为不同的键，不做合并
func (r *ViewEventRepository) CountDistinctViewers(since time.Time) (int64, error) {
	var count int64
	err := r.db.Raw(`
		SELECT COUNT(DISTINCT CASE
			WHEN user_id IS NOT NULL THEN 'u:' || user_id
			ELSE 's:' || session_id
		END)
		FROM view_events
		WHERE created_at >= ?
	`, since).Scan(&count).Error
	return count, err
}

// DeleteOld 清理超过指定天数的观看事件
func (r *ViewEventRepository) DeleteOld(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	result := r.db.Where("created_at < ?", cutoff).Delete(&model.ViewEvent{})
	return result.RowsAffected, result.Error
}

// CountByTrailer 统计某预告片的原始观看记录数
func (r *ViewEventRepository) CountByTrailer(trailerID int) (int64, error) {
	var count int64
	err := r.db.Model(&model.ViewEvent{}).Where("trailer_id = ?", trailerID).Count(&count).Error
	return count, err
}
