package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/clinops/dashboard-gin/internal/merge"
	"github.com/clinops/dashboard-gin/internal/model"
	"github.com/clinops/dashboard-gin/internal/service"
	"github.com/clinops/dashboard-gin/internal/utils"
	"github.com/gin-gonic/gin"
)

// TemplateController 模板控制器
type TemplateController struct {
	templateService service.TemplateService
}

// NewTemplateController 创建模板控制器
func NewTemplateController(templateService service.TemplateService) *TemplateController {
	return &TemplateController{
		templateService: templateService,
	}
}

// Create 创建模板
func (c *TemplateController) Create(ctx *gin.Context) {
	var req service.CreateTemplateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	template, err := c.templateService.Create(ctx.Request.Context(), &req)
	if err != nil {
		Error(ctx, http.StatusBadRequest, "failed to create template", err.Error())
		return
	}

	Success(ctx, template)
}

// Get 获取模板
func (c *TemplateController) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateTemplateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid template id", err.Error())
		return
	}

	template, err := c.templateService.Get(id)
	if err != nil {
		Error(ctx, http.StatusNotFound, "template not found", err.Error())
		return
	}

	Success(ctx, template)
}

// Update 更新模板
func (c *TemplateController) Update(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateTemplateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid template id", err.Error())
		return
	}

	var req service.UpdateTemplateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	template, err := c.templateService.Update(ctx.Request.Context(), id, &req)
	if err != nil {
		if service.IsNotFound(err) {
			Error(ctx, http.StatusNotFound, "template not found", err.Error())
			return
		}
		Error(ctx, http.StatusBadRequest, "failed to update template", err.Error())
		return
	}

	Success(ctx, template)
}

// Delete 删除模板
func (c *TemplateController) Delete(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateTemplateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid template id", err.Error())
		return
	}

	if err := c.templateService.Delete(ctx.Request.Context(), id); err != nil {
		if service.IsNotFound(err) {
			Error(ctx, http.StatusNotFound, "template not found", err.Error())
			return
		}
		Error(ctx, http.StatusConflict, "failed to delete template", err.Error())
		return
	}

	Success(ctx, nil)
}

// List 列出模板
func (c *TemplateController) List(ctx *gin.Context) {
	filter := service.TemplateListFilter{
		Status:   ctx.Query("status"),
		ParentID: ctx.Query("parent_id"),
		Search:   ctx.Query("search"),
		SortBy:   ctx.DefaultQuery("sort_by", "created_at"),
		Order:    ctx.DefaultQuery("order", "desc"),
	}

	if v := ctx.Query("is_public"); v != "" {
		isPublic := v == "true"
		filter.IsPublic = &isPublic
	}
	if v := ctx.Query("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			Error(ctx, http.StatusBadRequest, "invalid page", err.Error())
			return
		}
		filter.Page = page
	}
	if v := ctx.Query("page_size"); v != "" {
		pageSize, err := strconv.Atoi(v)
		if err != nil {
			Error(ctx, http.StatusBadRequest, "invalid page_size", err.Error())
			return
		}
		filter.PageSize = pageSize
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	response, err := c.templateService.List(&filter)
	if err != nil {
		Error(ctx, http.StatusBadRequest, "failed to list templates", err.Error())
		return
	}

	Paginated(ctx, response.Data, PaginationInfo{
		Page:      response.Pagination.Page,
		PageSize:  response.Pagination.PageSize,
		Total:     response.Pagination.Total,
		TotalPage: response.Pagination.TotalPage,
	})
}

// transitionRequest 生命周期流转请求
type transitionRequest struct {
	Status string `json:"status" binding:"required"` // DRAFT/PUBLISHED/DEPRECATED/ARCHIVED
}

// Transition 推进模板生命周期状态
func (c *TemplateController) Transition(ctx *gin.Context) {
	id := ctx.Param("id")

	var req transitionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	template, err := c.templateService.Transition(ctx.Request.Context(), id, model.TemplateStatus(req.Status))
	if err != nil {
		var invalid *service.StructureInvalidError
		if errors.As(err, &invalid) {
			ValidationFailed(ctx, "template structure is not valid for publishing", invalid.Result.Issues)
			return
		}
		if service.IsNotFound(err) {
			Error(ctx, http.StatusNotFound, "template not found", err.Error())
			return
		}
		Error(ctx, http.StatusConflict, "failed to transition template", err.Error())
		return
	}

	Success(ctx, template)
}

// setParentRequest 设置继承关系请求
type setParentRequest struct {
	ParentTemplateID string `json:"parent_template_id"`                  // 为空表示解除继承
	InheritanceType  string `json:"inheritance_type" binding:"required"` // EXTENDS/INCLUDES
}

// SetParent 设置模板的继承关系
func (c *TemplateController) SetParent(ctx *gin.Context) {
	id := ctx.Param("id")

	var req setParentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	template, err := c.templateService.SetParent(ctx.Request.Context(), id, req.ParentTemplateID, model.InheritanceType(req.InheritanceType))
	if err != nil {
		if service.IsNotFound(err) {
			Error(ctx, http.StatusNotFound, "template not found", err.Error())
			return
		}
		Error(ctx, http.StatusConflict, "failed to set parent", err.Error())
		return
	}

	Success(ctx, template)
}

// Resolve 计算继承链折叠后的有效结构
func (c *TemplateController) Resolve(ctx *gin.Context) {
	id := ctx.Param("id")

	structure, err := c.templateService.Resolve(id)
	if err != nil {
		if service.IsNotFound(err) {
			Error(ctx, http.StatusNotFound, "template not found", err.Error())
			return
		}
		Error(ctx, http.StatusConflict, "failed to resolve template", err.Error())
		return
	}

	Success(ctx, gin.H{
		"template_id": id,
		"structure":   json.RawMessage(structure),
	})
}

// Validate 校验模板结构
func (c *TemplateController) Validate(ctx *gin.Context) {
	id := ctx.Param("id")

	result, err := c.templateService.Validate(id)
	if err != nil {
		if service.IsNotFound(err) {
			Error(ctx, http.StatusNotFound, "template not found", err.Error())
			return
		}
		Error(ctx, http.StatusBadRequest, "failed to validate template", err.Error())
		return
	}

	Success(ctx, result)
}

// Merge 对一组结构做带冲突报告的深度合并
func (c *TemplateController) Merge(ctx *gin.Context) {
	var req service.MergeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	response, err := c.templateService.Merge(&req)
	if err != nil {
		var conflict *merge.ConflictError
		if errors.As(err, &conflict) {
			ctx.JSON(http.StatusConflict, ErrorResponse{
				Code:    http.StatusConflict,
				Message: "merge conflict",
				Detail:  conflict.Error(),
				Issues: gin.H{
					"path":   conflict.Path,
					"values": conflict.Values,
				},
			})
			return
		}
		Error(ctx, http.StatusBadRequest, "failed to merge structures", err.Error())
		return
	}

	Success(ctx, response)
}

// ListVersions 列出模板版本
func (c *TemplateController) ListVersions(ctx *gin.Context) {
	id := ctx.Param("id")

	versions, err := c.templateService.ListVersions(id)
	if err != nil {
		Error(ctx, http.StatusNotFound, "failed to list versions", err.Error())
		return
	}

	Success(ctx, versions)
}
