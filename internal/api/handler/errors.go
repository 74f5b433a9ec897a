package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smart-timetable/internal/service"
	pkgerrors "smart-timetable/pkg/errors"
	"smart-timetable/pkg/jwt"
	"smart-timetable/pkg/response"
)

// ── 业务错误 → HTTP 响应 ──
//
// 错误码分段：10xxx 通用 / 11xxx 认证 / 20xxx 课表 / 21xxx 评论 /
// 22xxx 审批 / 23xxx 目录 / 24xxx 导出

func handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, 11001, "邮箱或密码错误")
	case errors.Is(err, service.ErrEmailExists):
		response.Conflict(c, 11002, "邮箱已被注册")
	case errors.Is(err, service.ErrAdminSignupDisabled):
		response.Forbidden(c, 11003, "不允许自助注册管理员")
	case errors.Is(err, jwt.ErrTokenExpired):
		response.Unauthorized(c, 11004, "Token 已过期")
	case errors.Is(err, jwt.ErrTokenInvalid), errors.Is(err, service.ErrTokenTypeInvalid):
		response.Unauthorized(c, 11004, "Token 无效")
	case errors.Is(err, service.ErrTokenRevoked):
		response.Unauthorized(c, 11005, "Token 已失效，请重新登录")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 11006, "用户不存在")
	default:
		response.InternalError(c)
	}
}

func handleTimetableError(c *gin.Context, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		response.Unprocessable(c, 20104, "课表结构校验未通过", ve.Result)
	case errors.Is(err, service.ErrTimetableNotFound):
		response.NotFound(c, 20101, "课表不存在")
	case errors.Is(err, service.ErrTimetableInvalidID):
		response.BadRequest(c, 20102, "课表 ID 格式错误")
	case errors.Is(err, service.ErrTimetableMalformed):
		response.ErrorWithDetails(c, http.StatusBadRequest, 20103, "课表 JSON 格式错误", err.Error())
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 20105, "课表已被他人修改，请刷新后重试")
	case errors.Is(err, service.ErrTeacherRequired):
		response.BadRequest(c, 20106, "教师姓名不能为空")
	case errors.Is(err, service.ErrWorkbookUnreadable):
		response.ErrorWithDetails(c, http.StatusBadRequest, 20107, "无法读取 Excel 文件", err.Error())
	case errors.Is(err, service.ErrCalendarUnreadable):
		response.ErrorWithDetails(c, http.StatusBadRequest, 20108, "无法解析 iCalendar 文件", err.Error())
	default:
		response.InternalError(c)
	}
}

func handleCommentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCommentNotFound):
		response.NotFound(c, 21101, "评论不存在")
	case errors.Is(err, service.ErrCommentEmpty):
		response.BadRequest(c, 21102, "评论内容不能为空")
	case errors.Is(err, service.ErrCommentTooLong):
		response.BadRequest(c, 21103, "评论内容过长")
	case errors.Is(err, service.ErrCommentForbidden):
		response.Forbidden(c, 21104, "只能删除自己的评论")
	default:
		handleTimetableError(c, err)
	}
}

func handleRequestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRequestNotFound):
		response.NotFound(c, 22101, "申请不存在")
	case errors.Is(err, service.ErrRequestNotPending):
		response.Conflict(c, 22102, "申请已处理，不能重复审批")
	case errors.Is(err, service.ErrRequestForbidden):
		response.Forbidden(c, 22103, "无权查看该申请")
	default:
		handleTimetableError(c, err)
	}
}

func handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportEmpty):
		response.NotFound(c, 24101, "没有可导出的课程")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.Error(c, http.StatusInternalServerError, 24102, "生成导出文件失败")
	default:
		handleTimetableError(c, err)
	}
}
