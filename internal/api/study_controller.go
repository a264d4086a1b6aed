package api

import (
	"net/http"

	"github.com/clinops/dashboard-gin/internal/service"
	"github.com/gin-gonic/gin"
)

// StudyController 研究控制器
type StudyController struct {
	studyService service.StudyService
}

// NewStudyController 创建研究控制器
func NewStudyController(studyService service.StudyService) *StudyController {
	return &StudyController{
		studyService: studyService,
	}
}

// Create 创建研究
func (c *StudyController) Create(ctx *gin.Context) {
	var req service.CreateStudyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	study, err := c.studyService.Create(ctx.Request.Context(), &req)
	if err != nil {
		Error(ctx, http.StatusBadRequest, "failed to create study", err.Error())
		return
	}

	Success(ctx, study)
}

// Get 获取研究
func (c *StudyController) Get(ctx *gin.Context) {
	study, err := c.studyService.Get(ctx.Param("id"))
	if err != nil {
		Error(ctx, http.StatusNotFound, "study not found", err.Error())
		return
	}

	Success(ctx, study)
}

// List 列出全部研究
func (c *StudyController) List(ctx *gin.Context) {
	studies, err := c.studyService.List()
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to list studies", err.Error())
		return
	}

	Success(ctx, studies)
}

// AddDashboard 给研究添加仪表盘
func (c *StudyController) AddDashboard(ctx *gin.Context) {
	var req service.AddDashboardRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	dashboard, err := c.studyService.AddDashboard(ctx.Request.Context(), ctx.Param("id"), &req)
	if err != nil {
		if service.IsNotFound(err) {
			Error(ctx, http.StatusNotFound, "study or template not found", err.Error())
			return
		}
		Error(ctx, http.StatusConflict, "failed to add dashboard", err.Error())
		return
	}

	Success(ctx, dashboard)
}

// ListDashboards 列出研究的全部仪表盘
func (c *StudyController) ListDashboards(ctx *gin.Context) {
	dashboards, err := c.studyService.ListDashboards(ctx.Param("id"))
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to list dashboards", err.Error())
		return
	}

	Success(ctx, dashboards)
}

// ListTemplates 列出研究仪表盘引用的模板 ID
func (c *StudyController) ListTemplates(ctx *gin.Context) {
	ids, err := c.studyService.TemplateIDs(ctx.Param("id"))
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to list study templates", err.Error())
		return
	}

	Success(ctx, gin.H{
		"study_id":     ctx.Param("id"),
		"template_ids": ids,
	})
}
