package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/user/tucheki/internal/model"
	"github.com/user/tucheki/internal/repository"
	"github.com/user/tucheki/internal/utils"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTrendDays 注册趋势默认窗口
	DefaultTrendDays = 30
	// DefaultActiveWindowDays 活跃访客默认窗口
	DefaultActiveWindowDays = 7

	analyticsCacheTTL = time.Minute
)

// AnalyticsService 聚合分析服务，只读
// 所有指标在调用时从原始记录实时计算，绝不读冗余计数器，
// 避免把写路径上可能的计数漂移带进分析结果
type AnalyticsService struct {
	repos    *repository.Repositories
	sf       singleflight.Group
	cacheTTL time.Duration
	now      func() time.Time
}

// NewAnalyticsService 创建聚合分析服务
func NewAnalyticsService(repos *repository.Repositories) *AnalyticsService {
	return &AnalyticsService{
		repos:    repos,
		cacheTTL: analyticsCacheTTL,
		now:      time.Now,
	}
}

// TopByViews 按原始观看记录数取前 n 部预告片，并列时按 ID 升序保证确定性
func (s *AnalyticsService) TopByViews(n int) ([]*model.TrailerStats, error) {
	key := fmt.Sprintf("analytics:top_views:%d", n)
	return s.cachedStats(key, func() ([]*model.TrailerStats, error) {
		stats, err := s.statsFromRaw()
		if err != nil {
			return nil, err
		}
		sort.Slice(stats, func(i, j int) bool {
			if stats[i].ViewCount != stats[j].ViewCount {
				return stats[i].ViewCount > stats[j].ViewCount
			}
			return stats[i].TrailerID < stats[j].TrailerID
		})
		return topN(stats, n), nil
	})
}

// TopByEngagement 按互动率取前 n 部预告片
// 互动率 = (点赞 + 评论) / max(观看, 1)，零观看按 1 计，
// 有意把"没人看但有互动"的内容当作互动率最高而不是除零
func (s *AnalyticsService) TopByEngagement(n int) ([]*model.TrailerStats, error) {
	key := fmt.Sprintf("analytics:top_engagement:%d", n)
	return s.cachedStats(key, func() ([]*model.TrailerStats, error) {
		stats, err := s.statsFromRaw()
		if err != nil {
			return nil, err
		}
		sort.Slice(stats, func(i, j int) bool {
			if stats[i].Engagement != stats[j].Engagement {
				return stats[i].Engagement > stats[j].Engagement
			}
			return stats[i].TrailerID < stats[j].TrailerID
		})
		return topN(stats, n), nil
	})
}

// RegistrationTrend 按天统计注册量，窗口为最近 days 个自然日（UTC）
// 序列是稠密的：窗口内每一天都有一个桶，没有注册则计 0，
// 消费端的图表依赖这个性质
func (s *AnalyticsService) RegistrationTrend(days int) ([]*model.RegistrationBucket, error) {
	if days <= 0 {
		days = DefaultTrendDays
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(days - 1))

	times, err := s.repos.User.CreatedSince(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	counts := make(map[string]int64, days)
	for _, t := range times {
		counts[t.UTC().Format("2006-01-02")]++
	}

	buckets := make([]*model.RegistrationBucket, 0, days)
	for day := start; !day.After(today); day = day.AddDate(0, 0, 1) {
		date := day.Format("2006-01-02")
		buckets = append(buckets, &model.RegistrationBucket{
			Date:  date,
			Count: counts[date],
		})
	}
	return buckets, nil
}

// ActiveUserCount 统计窗口内有观看记录的不同访客身份数
// 匿名身份和登录身份都计入，但作为不同的身份值，不做合并
func (s *AnalyticsService) ActiveUserCount(windowDays int) (int64, error) {
	if windowDays <= 0 {
		windowDays = DefaultActiveWindowDays
	}
	since := s.now().Add(-time.Duration(windowDays) * 24 * time.Hour)
	count, err := s.repos.ViewEvent.CountDistinctViewers(since)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}

// statsFromRaw 从原始记录取全量统计并计算互动率
func (s *AnalyticsService) statsFromRaw() ([]*model.TrailerStats, error) {
	stats, err := s.repos.Trailer.StatsAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for _, st := range stats {
		st.Engagement = EngagementRatio(st.ViewCount, st.LikeCount, st.CommentCount)
	}
	return stats, nil
}

// cachedStats 带缓存和 singleflight 的统计查询
// 同一个 key 的并发请求只会触发一次实际计算
func (s *AnalyticsService) cachedStats(key string, compute func() ([]*model.TrailerStats, error)) ([]*model.TrailerStats, error) {
	if s.cacheTTL > 0 {
		if cached, found := utils.CacheGet(key); found {
			if stats, ok := cached.([]*model.TrailerStats); ok {
				return stats, nil
			}
		}
	}

	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		stats, err := compute()
		if err != nil {
			return nil, err
		}
		if s.cacheTTL > 0 {
			utils.CacheSet(key, stats, s.cacheTTL)
		}
		return stats, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*model.TrailerStats), nil
}

// EngagementRatio 互动率 = (点赞 + 评论) / max(观看, 1)
func EngagementRatio(views, likes, comments int64) float64 {
	divisor := views
	if divisor < 1 {
		divisor = 1
	}
	return float64(likes+comments) / float64(divisor)
}

func topN(stats []*model.TrailerStats, n int) []*model.TrailerStats {
	if n < 0 {
		n = 0
	}
	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}
