package service

import (
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/user/tucheki/internal/model"
	"github.com/user/tucheki/internal/repository"
	"github.com/user/tucheki/internal/utils"
	"gorm.io/gorm"
)

const (
	// ViewDedupWindow 同一访客对同一预告片的观看去重窗口
	ViewDedupWindow = time.Hour
	// MaxCommentLength 评论最大长度（字符数）
	MaxCommentLength = 2000

	commentPageSize = 50
)

// EngagementService 互动服务：观看计数、点赞切换、评论
// 所有写入都遵循"原始记录为准，冗余计数器尽力同步"的策略,
// 计数漂移由清理任务定期用原始记录重算修复
type EngagementService struct {
	repos        *repository.Repositories
	commentCache *utils.LRUCache[[]*model.Comment]
	now          func() time.Time
}

// NewEngagementService 创建互动服务
func NewEngagementService(repos *repository.Repositories) *EngagementService {
	return &EngagementService{
		repos:        repos,
		commentCache: utils.NewLRUCache[[]*model.Comment](1000, 10*time.Minute),
		now:          time.Now,
	}
}

// RecordView 记录一次观看
// 返回 true 表示已计入新观看，false 表示落在去重窗口内被忽略。
// 事件写入和计数器自增放在同一事务里，两者要么都成功要么都不发生。
// 调用方（页面加载）不应阻塞在这个结果上，失败也不对访客展示。
func (s *EngagementService) RecordView(trailerID int, identity model.Identity) (bool, error) {
	exists, err := s.repos.Trailer.Exists(trailerID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !exists {
		return false, ErrNotFound
	}

	latest, err := s.repos.ViewEvent.LatestFor(trailerID, identity)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := s.now()
	if latest != nil && now.Sub(latest.CreatedAt) < ViewDedupWindow {
		// 窗口内重复观看，不再计数
		return false, nil
	}

	err = s.repos.DB.Transaction(func(tx *gorm.DB) error {
		event := &model.ViewEvent{
			TrailerID: trailerID,
			UserID:    identity.UserID,
			SessionID: identity.SessionID,
			CreatedAt: now,
		}
		if err := s.repos.ViewEvent.InsertTx(tx, event); err != nil {
			return err
		}
		return s.repos.Trailer.IncrementViewsTx(tx, trailerID)
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return true, nil
}

// ToggleLike 切换点赞状态，返回切换后是否为已赞
// 整个切换在一个事务内完成：先做带唯一索引的条件插入，
// 插入成功即"未赞 -> 已赞"，冲突则删除记录完成"已赞 -> 未赞"。
// 同一用户的并发切换在存储层排队，不会出现双计
func (s *EngagementService) ToggleLike(trailerID int, identity model.Identity) (bool, error) {
	if !identity.IsUser() {
		return false, ErrAuthRequired
	}

	exists, err := s.repos.Trailer.Exists(trailerID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !exists {
		return false, ErrNotFound
	}

	userID := *identity.UserID
	var liked bool
	err = s.repos.DB.Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repos.Like.TryInsertTx(tx, trailerID, userID)
		if err != nil {
			return err
		}
		if inserted {
			liked = true
			return s.repos.Trailer.IncrementLikesTx(tx, trailerID)
		}

		deleted, err := s.repos.Like.DeleteTx(tx, trailerID, userID)
		if err != nil {
			return err
		}
		liked = false
		if deleted {
			return s.repos.Trailer.DecrementLikesTx(tx, trailerID)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return liked, nil
}

// IsLiked 查询用户是否已点赞（详情页展示用）
func (s *EngagementService) IsLiked(trailerID int, identity model.Identity) (bool, error) {
	if !identity.IsUser() {
		return false, nil
	}
	return s.repos.Like.IsLiked(trailerID, *identity.UserID)
}

// AddComment 发表评论，返回已持久化的评论（含 ID 和时间戳）
// 评论行是事实来源，写入失败直接上抛；
// 计数器自增是次级步骤，失败只记日志不影响结果
func (s *EngagementService) AddComment(trailerID int, identity model.Identity, content string) (*model.Comment, error) {
	if !identity.IsUser() {
		return nil, ErrAuthRequired
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: 评论内容不能为空", ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return nil, fmt.Errorf("%w: 评论内容过长", ErrInvalidInput)
	}

	exists, err := s.repos.Trailer.Exists(trailerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	comment, err := s.repos.Comment.Create(trailerID, *identity.UserID, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := s.repos.Trailer.IncrementComments(trailerID); err != nil {
		log.Printf("[Engagement] 评论计数更新失败 trailer=%d: %v", trailerID, err)
	}

	// 评论列表缓存失效，向展示层传达"内容已变化"
	s.commentCache.Delete(commentCacheKey(trailerID))

	return comment, nil
}

// Comments 获取评论列表（最新优先），首页结果走 LRU 缓存
func (s *EngagementService) Comments(trailerID, limit, offset int) ([]*model.Comment, error) {
	if limit <= 0 || limit > commentPageSize {
		limit = commentPageSize
	}

	firstPage := offset == 0 && limit == commentPageSize
	if firstPage {
		if cached, found := s.commentCache.Get(commentCacheKey(trailerID)); found {
			return cached, nil
		}
	}

	comments, err := s.repos.Comment.ListByTrailer(trailerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if firstPage {
		s.commentCache.Set(commentCacheKey(trailerID), comments)
	}
	return comments, nil
}

func commentCacheKey(trailerID int) string {
	return fmt.Sprintf("comments:%d", trailerID)
}
