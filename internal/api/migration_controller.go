package api

import (
	"net/http"

	"github.com/clinops/dashboard-gin/internal/service"
	"github.com/gin-gonic/gin"
)

// MigrationController 模板迁移控制器
type MigrationController struct {
	migrationService service.MigrationService
}

// NewMigrationController 创建模板迁移控制器
func NewMigrationController(migrationService service.MigrationService) *MigrationController {
	return &MigrationController{
		migrationService: migrationService,
	}
}

// migrateRequest 迁移请求
type migrateRequest struct {
	Target string `json:"target" binding:"required"` // 目标模式版本
	DryRun bool   `json:"dry_run"`                   // 只演练不落库
}

// Plan 计算迁移计划,不产生任何副作用
func (c *MigrationController) Plan(ctx *gin.Context) {
	id := ctx.Param("id")
	target := ctx.Query("target")
	if target == "" {
		Error(ctx, http.StatusBadRequest, "missing target version", "query parameter target is required")
		return
	}

	plan, err := c.migrationService.Plan(id, target)
	if err != nil {
		if service.IsNotFound(err) {
			Error(ctx, http.StatusNotFound, "template not found", err.Error())
			return
		}
		Error(ctx, http.StatusBadRequest, "failed to plan migration", err.Error())
		return
	}

	Success(ctx, plan)
}

// Migrate 迁移单个模板到目标模式版本
// 迁移失败时返回 200 和 success=false 的报告,数据库保持原状
func (c *MigrationController) Migrate(ctx *gin.Context) {
	id := ctx.Param("id")

	var req migrateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	report, err := c.migrationService.Migrate(ctx.Request.Context(), id, req.Target, req.DryRun)
	if err != nil {
		if service.IsNotFound(err) {
			Error(ctx, http.StatusNotFound, "template not found", err.Error())
			return
		}
		Error(ctx, http.StatusBadRequest, "failed to migrate template", err.Error())
		return
	}

	Success(ctx, report)
}

// MigrateStudy 迁移一个研究引用的全部模板
func (c *MigrationController) MigrateStudy(ctx *gin.Context) {
	id := ctx.Param("id")

	var req migrateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	report, err := c.migrationService.MigrateStudy(ctx.Request.Context(), id, req.Target, req.DryRun)
	if err != nil {
		if service.IsNotFound(err) {
			Error(ctx, http.StatusNotFound, "study not found", err.Error())
			return
		}
		Error(ctx, http.StatusBadRequest, "failed to migrate study templates", err.Error())
		return
	}

	Success(ctx, report)
}
