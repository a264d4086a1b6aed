package api

import (
	"net/http"
	"strconv"

	"github.com/clinops/dashboard-gin/internal/repository"
	"github.com/clinops/dashboard-gin/internal/service"
	"github.com/gin-gonic/gin"
)

// AuditLogController 审计日志控制器
type AuditLogController struct {
	auditService service.AuditLogService
}

// NewAuditLogController 创建审计日志控制器
func NewAuditLogController(auditService service.AuditLogService) *AuditLogController {
	return &AuditLogController{
		auditService: auditService,
	}
}

// List 查询审计日志
func (c *AuditLogController) List(ctx *gin.Context) {
	filter := repository.AuditLogFilter{
		UserID:       ctx.Query("user_id"),
		Action:       ctx.Query("action"),
		ResourceType: ctx.Query("resource_type"),
		ResourceID:   ctx.Query("resource_id"),
		Page:         1,
		PageSize:     20,
	}

	if v := ctx.Query("page"); v != "" {
		if page, err := strconv.Atoi(v); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if v := ctx.Query("page_size"); v != "" {
		if pageSize, err := strconv.Atoi(v); err == nil && pageSize > 0 {
			filter.PageSize = pageSize
		}
	}

	logs, total, err := c.auditService.List(filter)
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to list audit logs", err.Error())
		return
	}

	totalPage := int(total) / filter.PageSize
	if int(total)%filter.PageSize > 0 {
		totalPage++
	}

	Paginated(ctx, logs, PaginationInfo{
		Page:      filter.Page,
		PageSize:  filter.PageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}
