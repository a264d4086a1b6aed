package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/clinops/dashboard-gin/internal/service"
	"github.com/gin-gonic/gin"
)

// ExportController 模板导出导入控制器
type ExportController struct {
	exportService service.ExportService
}

// NewExportController 创建模板导出导入控制器
func NewExportController(exportService service.ExportService) *ExportController {
	return &ExportController{
		exportService: exportService,
	}
}

// Export 导出模板为归档包并下载
func (c *ExportController) Export(ctx *gin.Context) {
	id := ctx.Param("id")

	path, err := c.exportService.Export(ctx.Request.Context(), id)
	if err != nil {
		if service.IsNotFound(err) {
			Error(ctx, http.StatusNotFound, "template not found", err.Error())
			return
		}
		Error(ctx, http.StatusInternalServerError, "failed to export template", err.Error())
		return
	}

	ctx.FileAttachment(path, filepath.Base(path))
}

// Import 从上传的归档包导入模板
// 归档里的结构必须通过校验,导入的模板以 DRAFT 状态落库
func (c *ExportController) Import(ctx *gin.Context) {
	file, err := ctx.FormFile("file")
	if err != nil {
		Error(ctx, http.StatusBadRequest, "missing upload file", err.Error())
		return
	}

	f, err := file.Open()
	if err != nil {
		Error(ctx, http.StatusBadRequest, "failed to open upload file", err.Error())
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		Error(ctx, http.StatusBadRequest, "failed to read upload file", err.Error())
		return
	}

	template, err := c.exportService.Import(ctx.Request.Context(), data)
	if err != nil {
		var invalid *service.StructureInvalidError
		if errors.As(err, &invalid) {
			ValidationFailed(ctx, "imported template structure is not valid", invalid.Result.Issues)
			return
		}
		Error(ctx, http.StatusBadRequest, "failed to import template", err.Error())
		return
	}

	Success(ctx, template)
}
