package handler

import (
	"github.com/gin-gonic/gin"

	"smart-timetable/internal/service"
	"smart-timetable/pkg/response"
	appvalidator "smart-timetable/pkg/validator"
)

// 上下文键，由 JWTAuth 中间件写入
const (
	CtxUserID   = "user_id"
	CtxRole     = "role"
	CtxEmail    = "email"
	CtxTokenJTI = "token_jti"
	CtxTokenExp = "token_exp"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	s := c.GetString(CtxUserID)
	if s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetActor 提取当前操作者（用户 ID、邮箱、角色）
func MustGetActor(c *gin.Context) (service.Actor, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return service.Actor{}, false
	}
	role := c.GetString(CtxRole)
	if role == "" {
		response.Unauthorized(c, 10002, "未认证")
		return service.Actor{}, false
	}
	return service.Actor{UserID: userID, Email: c.GetString(CtxEmail), Role: role}, true
}

// badRequest 参数绑定失败，details 为翻译后的校验信息
func badRequest(c *gin.Context, code int, err error) {
	response.ErrorWithDetails(c, 400, code, "参数校验失败", appvalidator.Translate(err))
}
