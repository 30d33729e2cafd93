package service

import (
	"log"
	"sort"
	"time"

	"github.com/user/tucheki/internal/repository"
	"github.com/user/tucheki/internal/utils"
)

const (
	// viewEventRetentionDays 原始观看事件保留天数
	viewEventRetentionDays = 90
	// trendingWindowDays 热门标记统计窗口
	trendingWindowDays = 7
	// trendingSize 热门预告片数量
	trendingSize = 8
)

// CleanupService 维护服务：数据保留、计数器校准、热门标记刷新
type CleanupService struct {
	repos *repository.Repositories
}

// NewCleanupService 创建维护服务
func NewCleanupService(repos *repository.Repositories) *CleanupService {
	return &CleanupService{repos: repos}
}

// Start 启动定时维护任务
func (s *CleanupService) Start() {
	ticker := time.NewTicker(24 * time.Hour)

	// 启动时先运行一次
	go s.runMaintenance()

	go func() {
		for range ticker.C {
			s.runMaintenance()
		}
	}()
}

func (s *CleanupService) runMaintenance() {
	log.Println("[CleanupService] 开始执行维护任务...")

	// 1. 清理超过保留期的观看事件
	affected, err := s.repos.ViewEvent.DeleteOld(viewEventRetentionDays)
	if err != nil {
		log.Printf("[CleanupService] 清理观看事件失败: %v", err)
	} else if affected > 0 {
		log.Printf("[CleanupService] 已清理 %d 条超过 %d 天的观看事件", affected, viewEventRetentionDays)
	}

	// 2. 用原始记录重算冗余计数器，修复写路径允许的计数漂移
	recounted, err := s.repos.Trailer.RecountAll()
	if err != nil {
		log.Printf("[CleanupService] 计数器校准失败: %v", err)
	} else {
		log.Printf("[CleanupService] 已校准 %d 部预告片的计数器", recounted)
	}

	// 3. 按最近一周的互动率刷新热门标记
	if err := s.RefreshTrending(); err != nil {
		log.Printf("[CleanupService] 热门标记刷新失败: %v", err)
	}

	// 4. 计数器和热门标记都可能已变化，清掉聚合分析缓存
	utils.CacheClear()
}

// RefreshTrending 刷新热门标记：最近一周互动率最高的预告片置为 trending
func (s *CleanupService) RefreshTrending() error {
	since := time.Now().AddDate(0, 0, -trendingWindowDays)
	stats, err := s.repos.Trailer.StatsSince(since)
	if err != nil {
		return err
	}

	for _, st := range stats {
		st.Engagement = EngagementRatio(st.ViewCount, st.LikeCount, st.CommentCount)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Engagement != stats[j].Engagement {
			return stats[i].Engagement > stats[j].Engagement
		}
		return stats[i].TrailerID < stats[j].TrailerID
	})

	ids := make([]int, 0, trendingSize)
	for _, st := range stats {
		if len(ids) >= trendingSize {
			break
		}
		// 没有任何互动的预告片不参与热门
		if st.ViewCount == 0 && st.LikeCount == 0 && st.CommentCount == 0 {
			continue
		}
		ids = append(ids, st.TrailerID)
	}

	return s.repos.Trailer.SetTrending(ids)
}
