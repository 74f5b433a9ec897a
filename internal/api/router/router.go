package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smart-timetable/config"
	"smart-timetable/internal/api/handler"
	"smart-timetable/internal/api/middleware"
	"smart-timetable/internal/model"
	"smart-timetable/pkg/jwt"
	"smart-timetable/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎；rdb 为 nil 时黑名单与限流降级放行
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// 避免把 nil *redis.Client 装进接口
	var (
		blacklist middleware.TokenBlacklist
		limiter   middleware.RateLimiter
	)
	if rdb != nil {
		blacklist = rdb
		limiter = rdb
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders(cfg.Server.HSTS))
	r.Use(middleware.CORS(cfg.Server.CORS))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查 ──
	r.GET("/health", h.Health.Live)
	r.GET("/health/ready", h.Health.Ready)

	const (
		admin   = model.RoleAdmin
		teacher = model.RoleTeacher
	)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", middleware.RateLimit(limiter, cfg.Auth.LoginRateLimit, time.Minute), h.Auth.Login)
			auth.POST("/register", h.Auth.Register)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, blacklist))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)

			// 课表模块
			timetables := authorized.Group("/timetables")
			{
				timetables.GET("", h.Timetable.List)
				timetables.GET("/template", h.Timetable.Template)
				timetables.POST("/validate", h.Timetable.Validate)
				timetables.POST("/sanitize", h.Timetable.Sanitize)
				timetables.POST("/import", middleware.RoleAuth(admin), h.Timetable.ImportJSON)
				timetables.POST("/import/xlsx", middleware.RoleAuth(admin), h.Timetable.ImportXLSX)
				timetables.GET("/teachers/:name/conflicts", h.Timetable.TeacherConflicts)

				timetables.GET("/:id", h.Timetable.Get)
				timetables.PUT("/:id", middleware.RoleAuth(admin, teacher), h.Timetable.Save)
				timetables.DELETE("/:id", middleware.RoleAuth(admin), h.Timetable.Delete)
				timetables.POST("/:id/import/ics", middleware.RoleAuth(admin, teacher), h.Timetable.ImportICS)
				timetables.GET("/:id/subjects", h.Timetable.Subjects)
				timetables.GET("/:id/teachers", h.Timetable.Teachers)
				timetables.GET("/:id/conflicts", h.Timetable.Conflicts)

				// 导出
				timetables.GET("/:id/export.xlsx", h.Export.ExportXLSX)
				timetables.GET("/:id/export.ics", h.Export.ExportICS)

				// 评论
				timetables.GET("/:id/comments", h.Comment.List)
				timetables.POST("/:id/comments", h.Comment.Create)
				timetables.GET("/:id/comments/ws", h.Comment.Stream)
			}

			authorized.DELETE("/comments/:id", h.Comment.Delete) // admin 或作者（Service 层鉴权）

			// 审批申请模块
			requests := authorized.Group("/requests")
			{
				requests.POST("", h.Request.Create)
				requests.GET("", middleware.RoleAuth(admin), h.Request.List)
				requests.GET("/:id", h.Request.Get) // admin 或申请人（Service 层鉴权）
				requests.PUT("/:id/approve", middleware.RoleAuth(admin), h.Request.Approve)
				requests.PUT("/:id/reject", middleware.RoleAuth(admin), h.Request.Reject)
			}

			// 教师 / 科目目录
			catalog := authorized.Group("/catalog")
			{
				catalog.GET("/teachers", h.Catalog.ListTeachers)
				catalog.GET("/subjects", h.Catalog.ListSubjects)
				catalog.POST("/teachers/import", middleware.RoleAuth(admin), h.Catalog.ImportTeachers)
				catalog.POST("/subjects/import", middleware.RoleAuth(admin), h.Catalog.ImportSubjects)
			}
		}
	}

	return r
}
