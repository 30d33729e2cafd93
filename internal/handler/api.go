package handler

import (
	"errors"
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/tucheki/internal/middleware"
	"github.com/user/tucheki/internal/model"
	"github.com/user/tucheki/internal/service"
	"github.com/user/tucheki/internal/utils"
)

// ==================== 预告片 ====================

// Trailers 预告片列表
func (h *Handler) Trailers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	trailers, err := h.Repos.Trailer.List(limit, offset)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, trailers)
}

// TrendingTrailers 热门预告片列表
func (h *Handler) TrendingTrailers(c *gin.Context) {
	trailers, err := h.Repos.Trailer.ListTrending(8)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, trailers)
}

// TrailerDetail 预告片详情
// 详情访问即触发一次观看记录，异步执行，不阻塞响应，
// 失败只记日志，永远不对访客展示观看统计错误
func (h *Handler) TrailerDetail(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "无效的预告片 ID")
		return
	}

	trailer, err := h.Repos.Trailer.FindByID(id)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	if trailer == nil {
		utils.NotFound(c, "")
		return
	}

	identity := middleware.GetIdentity(c)

	go func() {
		if _, err := h.Engagement.RecordView(id, identity); err != nil {
			log.Printf("[API] 观看记录失败 trailer=%d viewer=%s: %v", id, identity.Key(), err)
		}
	}()

	liked, _ := h.Engagement.IsLiked(id, identity)
	utils.Success(c, gin.H{
		"trailer": trailer,
		"liked":   liked,
	})
}

// RecordView 显式记录一次观看（播放器打点用）
// 对调用方永远成功，是否真正计数通过 recorded 字段透出
func (h *Handler) RecordView(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "无效的预告片 ID")
		return
	}

	identity := middleware.GetIdentity(c)
	recorded, err := h.Engagement.RecordView(id, identity)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			utils.NotFound(c, "")
			return
		}
		// 观看记录是尽力而为的遥测，存储故障不回报给访客
		log.Printf("[API] 观看记录失败 trailer=%d viewer=%s: %v", id, identity.Key(), err)
		utils.Success(c, gin.H{"recorded": false})
		return
	}
	utils.Success(c, gin.H{"recorded": recorded})
}

// ToggleLike 切换点赞
func (h *Handler) ToggleLike(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "无效的预告片 ID")
		return
	}

	identity := middleware.GetIdentity(c)
	liked, err := h.Engagement.ToggleLike(id, identity)
	if err != nil {
		h.engagementError(c, err)
		return
	}
	utils.Success(c, gin.H{"liked": liked})
}

// CommentRequest 评论请求
type CommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// AddComment 发表评论，返回已持久化的评论供前端直接渲染
func (h *Handler) AddComment(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "无效的预告片 ID")
		return
	}

	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "评论内容不能为空")
		return
	}

	identity := middleware.GetIdentity(c)
	comment, err := h.Engagement.AddComment(id, identity, req.Content)
	if err != nil {
		h.engagementError(c, err)
		return
	}
	utils.Success(c, comment)
}

// Comments 评论列表
func (h *Handler) Comments(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "无效的预告片 ID")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	comments, err := h.Engagement.Comments(id, limit, offset)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, comments)
}

// engagementError 互动服务错误到 HTTP 响应的映射
// 点赞和评论的失败必须可见，让用户能够重试
func (h *Handler) engagementError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAuthRequired):
		utils.Unauthorized(c, "")
	case errors.Is(err, service.ErrInvalidInput):
		utils.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrNotFound):
		utils.NotFound(c, "")
	default:
		utils.InternalServerError(c, "操作失败，请重试")
	}
}

// ==================== 聚合分析（管理员） ====================

// TopByViews 观看量排行
func (h *Handler) TopByViews(c *gin.Context) {
	n, _ := strconv.Atoi(c.DefaultQuery("n", "10"))
	stats, err := h.Analytics.TopByViews(n)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, stats)
}

// TopByEngagement 互动率排行
func (h *Handler) TopByEngagement(c *gin.Context) {
	n, _ := strconv.Atoi(c.DefaultQuery("n", "10"))
	stats, err := h.Analytics.TopByEngagement(n)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, stats)
}

// RegistrationTrend 注册趋势
func (h *Handler) RegistrationTrend(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	buckets, err := h.Analytics.RegistrationTrend(days)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, buckets)
}

// ActiveUsers 活跃访客数
func (h *Handler) ActiveUsers(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	count, err := h.Analytics.ActiveUserCount(days)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, gin.H{"active_users": count, "window_days": days})
}

// ==================== 管理后台 ====================

// TrailerRequest 预告片录入请求
type TrailerRequest struct {
	Title       string   `json:"title" binding:"required,max=200"`
	Slug        string   `json:"slug" binding:"required,max=200"`
	Description string   `json:"description"`
	VideoURL    string   `json:"video_url" binding:"required,url"`
	Poster      string   `json:"poster" binding:"omitempty,url"`
	Genres      []string `json:"genres"`
}

// AdminTrailerUpsert 创建或更新预告片
func (h *Handler) AdminTrailerUpsert(c *gin.Context) {
	var req TrailerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, bindErrorMessage(err))
		return
	}

	trailer := &model.Trailer{
		Title:       req.Title,
		Slug:        req.Slug,
		Description: req.Description,
		VideoURL:    req.VideoURL,
		Poster:      req.Poster,
		Genres:      req.Genres,
	}
	if err := h.Repos.Trailer.Upsert(trailer); err != nil {
		utils.InternalServerError(c, "保存失败")
		return
	}

	// 片单已变化，聚合分析缓存作废
	utils.CacheClear()
	utils.Success(c, trailer)
}

// AdminTrailerDelete 删除预告片
func (h *Handler) AdminTrailerDelete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "无效的预告片 ID")
		return
	}
	if err := h.Repos.Trailer.Delete(id); err != nil {
		utils.InternalServerError(c, "删除失败")
		return
	}

	// 已删除的预告片不应再出现在榜单里
	utils.CacheClear()
	utils.SuccessWithMessage(c, "已删除", nil)
}
