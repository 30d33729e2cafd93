package service

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/user/tucheki/internal/model"
	"github.com/user/tucheki/internal/repository"
	"gorm.io/gorm"
)

func newTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "tucheki.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Trailer{},
		&model.ViewEvent{},
		&model.LikeRecord{},
		&model.Comment{},
	); err != nil {
		t.Fatalf("建表失败: %v", err)
	}
	return repository.NewRepositories(db)
}

func mustTrailer(t *testing.T, repos *repository.Repositories, title string) *model.Trailer {
	t.Helper()
	trailer := &model.Trailer{
		Title:     title,
		Slug:      fmt.Sprintf("%s-%d", title, time.Now().UnixNano()),
		VideoURL:  "https://cdn.example.com/" + title + ".m3u8",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := repos.DB.Create(trailer).Error; err != nil {
		t.Fatalf("创建预告片失败: %v", err)
	}
	return trailer
}

func mustUser(t *testing.T, repos *repository.Repositories, email string) *model.User {
	t.Helper()
	user, err := repos.User.Create(email, email, "password-123")
	if err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}
	return user
}

func mustCounters(t *testing.T, repos *repository.Repositories, trailerID int) *model.Trailer {
	t.Helper()
	trailer, err := repos.Trailer.FindByID(trailerID)
	if err != nil || trailer == nil {
		t.Fatalf("查询预告片失败: %v", err)
	}
	return trailer
}

func userIdentity(userID int) model.Identity {
	return model.Identity{UserID: &userID, SessionID: fmt.Sprintf("sess-of-u%d", userID)}
}

func anonIdentity(sessionID string) model.Identity {
	return model.Identity{SessionID: sessionID}
}

func TestRecordViewDedupWindow(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewEngagementService(repos)
	trailer := mustTrailer(t, repos, "mvua")
	viewer := anonIdentity("s1")

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	recorded, err := svc.RecordView(trailer.ID, viewer)
	if err != nil {
		t.Fatalf("记录观看失败: %v", err)
	}
	if !recorded {
		t.Fatalf("第一次观看应当被计数")
	}

	// 59 分钟后：窗口内，去重
	svc.now = func() time.Time { return base.Add(59 * time.Minute) }
	recorded, err = svc.RecordView(trailer.ID, viewer)
	if err != nil {
		t.Fatalf("记录观看失败: %v", err)
	}
	if recorded {
		t.Fatalf("窗口内的重复观看不应计数")
	}
	if got := mustCounters(t, repos, trailer.ID).Views; got != 1 {
		t.Fatalf("观看数应为 1，实际 %d", got)
	}

	// 61 分钟后：窗口外，再次计数
	svc.now = func() time.Time { return base.Add(61 * time.Minute) }
	recorded, err = svc.RecordView(trailer.ID, viewer)
	if err != nil {
		t.Fatalf("记录观看失败: %v", err)
	}
	if !recorded {
		t.Fatalf("窗口外的观看应当再次计数")
	}
	if got := mustCounters(t, repos, trailer.ID).Views; got != 2 {
		t.Fatalf("观看数应为 2，实际 %d", got)
	}
}

func TestRecordViewDistinctViewers(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewEngagementService(repos)
	trailer := mustTrailer(t, repos, "safari")

	for _, sessionID := range []string{"s1", "s2", "s3"} {
		recorded, err := svc.RecordView(trailer.ID, anonIdentity(sessionID))
		if err != nil {
			t.Fatalf("记录观看失败: %v", err)
		}
		if !recorded {
			t.Fatalf("不同访客的观看都应计数")
		}
	}
	if got := mustCounters(t, repos, trailer.ID).Views; got != 3 {
		t.Fatalf("观看数应为 3，实际 %d", got)
	}
}

func TestRecordViewUnknownTrailer(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewEngagementService(repos)

	_, err := svc.RecordView(404, anonIdentity("s1"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("期望 ErrNotFound，实际 %v", err)
	}
}

func TestToggleLikeReversibility(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewEngagementService(repos)
	trailer := mustTrailer(t, repos, "simba")
	user := mustUser(t, repos, "u1@example.com")
	identity := userIdentity(user.ID)

	liked, err := svc.ToggleLike(trailer.ID, identity)
	if err != nil {
		t.Fatalf("切换点赞失败: %v", err)
	}
	if !liked {
		t.Fatalf("第一次切换应为已赞")
	}
	if got := mustCounters(t, repos, trailer.ID).Likes; got != 1 {
		t.Fatalf("点赞数应为 1，实际 %d", got)
	}

	liked, err = svc.ToggleLike(trailer.ID, identity)
	if err != nil {
		t.Fatalf("切换点赞失败: %v", err)
	}
	if liked {
		t.Fatalf("第二次切换应为未赞")
	}
	if got := mustCounters(t, repos, trailer.ID).Likes; got != 0 {
		t.Fatalf("偶数次切换后点赞数应回到 0，实际 %d", got)
	}

	// 奇数次切换，最终停在已赞、净 +1
	for i := 0; i < 3; i++ {
		liked, err = svc.ToggleLike(trailer.ID, identity)
		if err != nil {
			t.Fatalf("切换点赞失败: %v", err)
		}
	}
	if !liked {
		t.Fatalf("奇数次切换后应为已赞")
	}
	if got := mustCounters(t, repos, trailer.ID).Likes; got != 1 {
		t.Fatalf("奇数次切换后点赞数应为 1，实际 %d", got)
	}
	rawCount, err := repos.Like.CountByTrailer(trailer.ID)
	if err != nil {
		t.Fatalf("统计点赞记录失败: %v", err)
	}
	if rawCount != 1 {
		t.Fatalf("原始点赞记录应为 1 条，实际 %d", rawCount)
	}
}

func TestToggleLikeRequiresAuth(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewEngagementService(repos)
	trailer := mustTrailer(t, repos, "duma")

	_, err := svc.ToggleLike(trailer.ID, anonIdentity("s1"))
	if !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("期望 ErrAuthRequired，实际 %v", err)
	}

	// 不应有任何写入
	rawCount, _ := repos.Like.CountByTrailer(trailer.ID)
	if rawCount != 0 {
		t.Fatalf("匿名点赞不应写入记录，实际 %d 条", rawCount)
	}
	if got := mustCounters(t, repos, trailer.ID).Likes; got != 0 {
		t.Fatalf("匿名点赞不应改动计数器，实际 %d", got)
	}
}

func TestAddComment(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewEngagementService(repos)
	trailer := mustTrailer(t, repos, "jabali")
	user := mustUser(t, repos, "u1@example.com")

	comment, err := svc.AddComment(trailer.ID, userIdentity(user.ID), "  Kali sana!  ")
	if err != nil {
		t.Fatalf("发表评论失败: %v", err)
	}
	if comment.ID == 0 {
		t.Fatalf("返回的评论应带有持久化 ID")
	}
	if comment.Content != "Kali sana!" {
		t.Fatalf("评论内容应去除首尾空白，实际 %q", comment.Content)
	}
	if comment.CreatedAt.IsZero() {
		t.Fatalf("返回的评论应带有时间戳")
	}
	if got := mustCounters(t, repos, trailer.ID).Comments; got != 1 {
		t.Fatalf("评论数应为 1，实际 %d", got)
	}
}

func TestAddCommentValidation(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewEngagementService(repos)
	trailer := mustTrailer(t, repos, "kiboko")
	user := mustUser(t, repos, "u1@example.com")

	// 未登录
	if _, err := svc.AddComment(trailer.ID, anonIdentity("s1"), "hi"); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("期望 ErrAuthRequired，实际 %v", err)
	}

	// 去除空白后为空
	if _, err := svc.AddComment(trailer.ID, userIdentity(user.ID), "   \n\t "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("期望 ErrInvalidInput，实际 %v", err)
	}

	// 超出长度上限（按字符数而非字节数计）
	tooLong := strings.Repeat("片", MaxCommentLength+1)
	if _, err := svc.AddComment(trailer.ID, userIdentity(user.ID), tooLong); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("超长评论期望 ErrInvalidInput，实际 %v", err)
	}

	// 校验失败的路径均不应写入
	rawCount, _ := repos.Comment.CountByTrailer(trailer.ID)
	if rawCount != 0 {
		t.Fatalf("校验失败的评论不应写入，实际 %d 条", rawCount)
	}
	if got := mustCounters(t, repos, trailer.ID).Comments; got != 0 {
		t.Fatalf("校验失败不应改动计数器，实际 %d", got)
	}

	// 恰好达到上限应被接受
	atLimit := strings.Repeat("片", MaxCommentLength)
	if _, err := svc.AddComment(trailer.ID, userIdentity(user.ID), atLimit); err != nil {
		t.Fatalf("达到上限的评论应被接受: %v", err)
	}
	rawCount, _ = repos.Comment.CountByTrailer(trailer.ID)
	if rawCount != 1 {
		t.Fatalf("达到上限的评论应写入 1 条，实际 %d", rawCount)
	}
}

func TestAddCommentSurvivesCounterFailure(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewEngagementService(repos)
	trailer := mustTrailer(t, repos, "pweza")
	user := mustUser(t, repos, "u1@example.com")

	// 人为阻断 trailers 的 UPDATE，模拟计数器更新故障
	if err := repos.DB.Exec(`CREATE TRIGGER counters_offline BEFORE UPDATE ON trailers
		BEGIN SELECT RAISE(ABORT, 'counters offline'); END`).Error; err != nil {
		t.Fatalf("创建触发器失败: %v", err)
	}

	comment, err := svc.AddComment(trailer.ID, userIdentity(user.ID), "Bado nzuri sana")
	if err != nil {
		t.Fatalf("计数器故障不应导致评论失败: %v", err)
	}
	if comment == nil || comment.ID == 0 {
		t.Fatalf("评论应已持久化并带有 ID")
	}

	rawCount, _ := repos.Comment.CountByTrailer(trailer.ID)
	if rawCount != 1 {
		t.Fatalf("评论表应有 1 条记录，实际 %d", rawCount)
	}
	// 计数器保持旧值，留给定时校准任务修复
	if got := mustCounters(t, repos, trailer.ID).Comments; got != 0 {
		t.Fatalf("计数器不应被更新，实际 %d", got)
	}
}

func TestCommentsCacheInvalidation(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewEngagementService(repos)
	trailer := mustTrailer(t, repos, "nyota")
	user := mustUser(t, repos, "u1@example.com")

	if _, err := svc.AddComment(trailer.ID, userIdentity(user.ID), "kwanza"); err != nil {
		t.Fatalf("发表评论失败: %v", err)
	}
	comments, err := svc.Comments(trailer.ID, 0, 0)
	if err != nil {
		t.Fatalf("获取评论失败: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("应有 1 条评论，实际 %d", len(comments))
	}

	// 新评论要让缓存失效，列表立即反映变化
	if _, err := svc.AddComment(trailer.ID, userIdentity(user.ID), "pili"); err != nil {
		t.Fatalf("发表评论失败: %v", err)
	}
	comments, err = svc.Comments(trailer.ID, 0, 0)
	if err != nil {
		t.Fatalf("获取评论失败: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("应有 2 条评论，实际 %d", len(comments))
	}
	if comments[0].Content != "pili" {
		t.Fatalf("评论应按时间倒序，最新在前，实际 %q", comments[0].Content)
	}
}

// 规格化的端到端场景：匿名观看去重、点赞往返、评论与互动率
func TestEngagementEndToEnd(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewEngagementService(repos)
	analytics := NewAnalyticsService(repos)
	analytics.cacheTTL = 0

	trailer := mustTrailer(t, repos, "t1")
	s1 := anonIdentity("S1")
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	svc.now = func() time.Time { return base }
	if recorded, _ := svc.RecordView(trailer.ID, s1); !recorded {
		t.Fatalf("t=0 的观看应计数")
	}

	svc.now = func() time.Time { return base.Add(30 * time.Minute) }
	if recorded, _ := svc.RecordView(trailer.ID, s1); recorded {
		t.Fatalf("t=30min 的观看应被去重")
	}

	svc.now = func() time.Time { return base.Add(90 * time.Minute) }
	if recorded, _ := svc.RecordView(trailer.ID, s1); !recorded {
		t.Fatalf("t=90min 的观看应再次计数")
	}
	if got := mustCounters(t, repos, trailer.ID).Views; got != 2 {
		t.Fatalf("观看数应为 2，实际 %d", got)
	}

	u1 := mustUser(t, repos, "u1@example.com")
	identity := userIdentity(u1.ID)

	if liked, _ := svc.ToggleLike(trailer.ID, identity); !liked {
		t.Fatalf("点赞后应为已赞")
	}
	if _, err := svc.AddComment(trailer.ID, identity, "Great!"); err != nil {
		t.Fatalf("发表评论失败: %v", err)
	}
	if liked, _ := svc.ToggleLike(trailer.ID, identity); liked {
		t.Fatalf("取消点赞后应为未赞")
	}

	counters := mustCounters(t, repos, trailer.ID)
	if counters.Likes != 0 || counters.Comments != 1 {
		t.Fatalf("计数器应为 likes=0 comments=1，实际 likes=%d comments=%d", counters.Likes, counters.Comments)
	}

	top, err := analytics.TopByEngagement(1)
	if err != nil {
		t.Fatalf("互动率排行失败: %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("应返回 1 条，实际 %d", len(top))
	}
	if top[0].Engagement != 0.5 {
		t.Fatalf("互动率应为 (0+1)/2 = 0.5，实际 %v", top[0].Engagement)
	}
}
