package api

import (
	"github.com/clinops/dashboard-gin/internal/auth"
	"github.com/clinops/dashboard-gin/internal/config"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// 全局令牌桶限流参数
const (
	defaultRateLimit = 100.0
	defaultRateBurst = 200
)

// RouterDeps 路由依赖
// Validator 和 FGA 为 nil 时对应的认证/授权中间件不挂载
type RouterDeps struct {
	Config    *config.Config
	DB        *gorm.DB
	Validator *auth.KeycloakTokenValidator
	FGA       *auth.OpenFGAClient
	Checker   auth.PermissionChecker

	Templates  *TemplateController
	Migrations *MigrationController
	Exports    *ExportController
	Studies    *StudyController
	AuditLogs  *AuditLogController
}

// SetupRoutes 配置路由
func SetupRoutes(deps *RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware())
	router.Use(ErrorHandlerMiddleware())
	router.Use(RateLimitMiddleware(defaultRateLimit, defaultRateBurst))
	if deps.Config != nil && len(deps.Config.CORS.AllowedOrigins) > 0 {
		router.Use(CORSMiddleware(deps.Config.CORS.AllowedOrigins))
	}

	// 健康检查
	healthController := NewHealthController(deps.DB, deps.FGA)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	// API v1 路由组
	v1 := router.Group("/api/v1")
	if deps.Validator != nil {
		v1.Use(auth.KeycloakAuthMiddleware(deps.Validator))
		v1.Use(UserContextMiddleware())
	}

	// guard 返回资源权限中间件,未配置 OpenFGA 时为空操作
	guard := func(objectType, relation string) gin.HandlerFunc {
		if deps.Checker == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return auth.PermissionMiddleware(deps.Checker, objectType, relation)
	}

	// 模板管理路由
	templates := v1.Group("/templates")
	{
		templates.POST("", deps.Templates.Create)
		templates.GET("", deps.Templates.List)
		templates.POST("/merge", deps.Templates.Merge)
		templates.GET("/:id", guard("template", "viewer"), deps.Templates.Get)
		templates.PUT("/:id", guard("template", "editor"), deps.Templates.Update)
		templates.DELETE("/:id", guard("template", "deleter"), deps.Templates.Delete)
		templates.POST("/:id/transition", guard("template", "editor"), deps.Templates.Transition)
		templates.PUT("/:id/parent", guard("template", "editor"), deps.Templates.SetParent)
		templates.GET("/:id/resolve", guard("template", "viewer"), deps.Templates.Resolve)
		templates.GET("/:id/validate", guard("template", "viewer"), deps.Templates.Validate)
		templates.GET("/:id/versions", guard("template", "viewer"), deps.Templates.ListVersions)

		// 模式迁移
		templates.GET("/:id/migration-plan", guard("template", "viewer"), deps.Migrations.Plan)
		templates.POST("/:id/migrate", guard("template", "migrator"), deps.Migrations.Migrate)

		// 导出导入
		templates.GET("/:id/export", guard("template", "viewer"), deps.Exports.Export)
		templates.POST("/import", deps.Exports.Import)
	}

	// 研究管理路由
	studies := v1.Group("/studies")
	{
		studies.POST("", deps.Studies.Create)
		studies.GET("", deps.Studies.List)
		studies.GET("/:id", guard("study", "member"), deps.Studies.Get)
		studies.POST("/:id/dashboards", guard("study", "editor"), deps.Studies.AddDashboard)
		studies.GET("/:id/dashboards", guard("study", "member"), deps.Studies.ListDashboards)
		studies.GET("/:id/templates", guard("study", "member"), deps.Studies.ListTemplates)
		studies.POST("/:id/migrate", guard("study", "editor"), deps.Migrations.MigrateStudy)
	}

	// 审计日志路由
	v1.GET("/audit-logs", deps.AuditLogs.List)

	return router
}
