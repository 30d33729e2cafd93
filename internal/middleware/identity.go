package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/user/tucheki/internal/model"
)

// SessionCookieName 匿名会话 Cookie 名，站点外部契约，不可更改
const SessionCookieName = "tucheki_session_id"

const identityContextKey = "viewer_identity"

// ViewerIdentity 访客身份中间件
// 登录用户取 user_id；匿名访客读取会话 Cookie，没有就签发一个新的。
// 该中间件永不失败，后续 Handler 总能拿到一个可用的身份。
// 需要挂在 OptionalAuth 之后。
func ViewerIdentity(maxAgeSeconds int, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := model.Identity{
			UserID: GetUserIDPtr(c),
		}

		sessionID, err := c.Cookie(SessionCookieName)
		if err != nil || sessionID == "" {
			sessionID = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookieName, sessionID, maxAgeSeconds, "/", "", secure, true)
		}
		identity.SessionID = sessionID

		c.Set(identityContextKey, identity)
		c.Next()
	}
}

// GetIdentity 从上下文获取访客身份
// 未挂中间件时兜底签发一次性身份，保证调用方总能拿到幂等键
func GetIdentity(c *gin.Context) model.Identity {
	if v, exists := c.Get(identityContextKey); exists {
		if identity, ok := v.(model.Identity); ok {
			return identity
		}
	}
	return model.Identity{
		UserID:    GetUserIDPtr(c),
		SessionID: uuid.NewString(),
	}
}
