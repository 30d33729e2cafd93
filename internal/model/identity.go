package model

import "fmt"

// Identity 访客身份，作为去重和点赞归属的幂等键
// UserID 为 nil 时表示匿名访客，SessionID 始终存在兜底
type Identity struct {
	UserID    *int
	SessionID string
}

// IsUser 是否为登录用户
func (i Identity) IsUser() bool {
	return i.UserID != nil
}

// Key 返回稳定的身份键：登录用户为 u:<id>，匿名为 s:<session>
// 匿名身份和登录身份永远是两个不同的键，不做合并
func (i Identity) Key() string {
	if i.UserID != nil {
		return fmt.Sprintf("u:%d", *i.UserID)
	}
	return "s:" + i.SessionID
}
