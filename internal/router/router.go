package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/tucheki/internal/handler"
	"github.com/user/tucheki/internal/middleware"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "site": h.Config.SiteName})
	})

	// ==================== 认证 ====================
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
		auth.GET("/me", middleware.OptionalAuth(h.Config.AppSecret, h.Config.IsProduction()), h.Me)
	}

	// ==================== 公开 API ====================
	api := r.Group("/api")
	api.Use(middleware.OptionalAuth(h.Config.AppSecret, h.Config.IsProduction()))
	api.Use(middleware.ViewerIdentity(int(h.Config.SessionMaxAge.Seconds()), h.Config.IsProduction()))
	{
		api.GET("/trailers", h.Trailers)
		api.GET("/trailers/trending", h.TrendingTrailers)
		api.GET("/trailers/:id", h.TrailerDetail)
		api.POST("/trailers/:id/view", h.RecordView)
		api.POST("/trailers/:id/like", h.ToggleLike)
		api.GET("/trailers/:id/comments", h.Comments)
		api.POST("/trailers/:id/comments", h.AddComment)
	}

	// ==================== 管理后台 ====================
	admin := r.Group("/admin")
	admin.Use(middleware.RequireAuth(h.Config.AppSecret, h.Config.IsProduction()))
	admin.Use(middleware.RequireAdmin())
	{
		admin.POST("/trailers", h.AdminTrailerUpsert)
		admin.DELETE("/trailers/:id", h.AdminTrailerDelete)

		// 聚合分析
		admin.GET("/analytics/top-views", h.TopByViews)
		admin.GET("/analytics/top-engagement", h.TopByEngagement)
		admin.GET("/analytics/registrations", h.RegistrationTrend)
		admin.GET("/analytics/active-users", h.ActiveUsers)
	}
}
