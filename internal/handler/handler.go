package handler

import (
	"errors"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/user/tucheki/internal/config"
	"github.com/user/tucheki/internal/middleware"
	"github.com/user/tucheki/internal/model"
	"github.com/user/tucheki/internal/repository"
	"github.com/user/tucheki/internal/service"
	"github.com/user/tucheki/internal/utils"
)

// Handler HTTP 处理器
type Handler struct {
	Repos      *repository.Repositories
	Config     *config.Config
	Engagement *service.EngagementService
	Analytics  *service.AnalyticsService
}

// NewHandler 创建处理器
func NewHandler(repos *repository.Repositories, cfg *config.Config) *Handler {
	return &Handler{
		Repos:      repos,
		Config:     cfg,
		Engagement: service.NewEngagementService(repos),
		Analytics:  service.NewAnalyticsService(repos),
	}
}

// ==================== 认证 ====================

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=2,max=32"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// Register 注册处理
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, bindErrorMessage(err))
		return
	}

	existing, err := h.Repos.User.FindByEmail(req.Email)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	if existing != nil {
		utils.BadRequest(c, "该邮箱已注册")
		return
	}

	user, err := h.Repos.User.Create(req.Email, req.Username, req.Password)
	if err != nil {
		utils.InternalServerError(c, "注册失败，请重试")
		return
	}

	h.loginUser(c, user)
	utils.SuccessWithMessage(c, "注册成功", gin.H{"id": user.ID, "username": user.Username})
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login 登录处理
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, bindErrorMessage(err))
		return
	}

	user, err := h.Repos.User.FindByEmail(req.Email)
	if err != nil || user == nil {
		utils.Unauthorized(c, "邮箱或密码错误")
		return
	}

	if !h.Repos.User.CheckPassword(user, req.Password) {
		utils.Unauthorized(c, "邮箱或密码错误")
		return
	}

	h.loginUser(c, user)
	utils.SuccessWithMessage(c, "登录成功", gin.H{"id": user.ID, "username": user.Username})
}

// Logout 退出登录
func (h *Handler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.SetCookie("token", "", -1, "/", "", h.Config.IsProduction(), true)
	utils.SuccessWithMessage(c, "已退出登录", nil)
}

// Me 返回当前登录用户
func (h *Handler) Me(c *gin.Context) {
	session := sessions.Default(c)
	if userinfo := session.Get("userinfo"); userinfo != nil {
		if su, ok := userinfo.(model.SessionUser); ok {
			utils.Success(c, su)
			return
		}
	}

	// Session 缺失时回退到 JWT（跨端只携带 Token 的场景）
	if userID := middleware.GetUserID(c); userID > 0 {
		user, err := h.Repos.User.FindByID(userID)
		if err == nil && user != nil {
			utils.Success(c, model.SessionUser{
				ID:       user.ID,
				Email:    user.Email,
				Username: user.Username,
				Role:     user.Role,
			})
			return
		}
	}

	utils.Unauthorized(c, "未登录")
}

// loginUser 写入 Session 和 JWT Cookie
func (h *Handler) loginUser(c *gin.Context, user *model.User) {
	session := sessions.Default(c)
	session.Set("userinfo", model.SessionUser{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		Role:     user.Role,
	})
	session.Save()

	token, err := middleware.GenerateToken(user.ID, user.Email, user.Role, h.Config.AppSecret, h.Config.JWTExpiry)
	if err != nil {
		return
	}
	c.SetCookie("token", token, int(h.Config.JWTExpiry.Seconds()), "/", "", h.Config.IsProduction(), true)
}

// bindErrorMessage 把绑定校验错误转成用户可读的提示
func bindErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fe.Field() + " 为必填项"
		case "email":
			return "邮箱格式不正确"
		case "min":
			return fe.Field() + " 长度不足"
		case "max":
			return fe.Field() + " 长度超限"
		}
		return fe.Field() + " 不合法"
	}
	return "请求参数不合法"
}
