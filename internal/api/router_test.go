package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinops/dashboard-gin/internal/config"
	"github.com/clinops/dashboard-gin/internal/database"
	"github.com/clinops/dashboard-gin/internal/inheritance"
	"github.com/clinops/dashboard-gin/internal/merge"
	"github.com/clinops/dashboard-gin/internal/migration"
	"github.com/clinops/dashboard-gin/internal/repository"
	"github.com/clinops/dashboard-gin/internal/schema"
	"github.com/clinops/dashboard-gin/internal/service"
	"github.com/clinops/dashboard-gin/internal/validation"
)

const validStructure = `{"menu":{"items":[
	{"id":"overview","type":"dashboard","label":"Overview","dashboard":{
		"layout":{"type":"grid","columns":12},
		"widgets":[{"id":"w1","widget_code":"kpi","position":{"x":0,"y":0,"w":3,"h":2}}]
	}}
]}}`

// newTestRouter 装配一个基于内存 SQLite 的完整路由,不挂认证
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	templates := repository.NewTemplateRepository(db)
	versions := repository.NewTemplateVersionRepository(db)
	studies := repository.NewStudyRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	validator := validation.NewValidator(nil)
	registry := schema.BuiltinRegistry(validator)
	merger := merge.NewMerger()
	resolver := inheritance.NewResolver(templates, merger)

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	engine := migration.NewEngine(registry, validator, templates, log)
	migration.RegisterBuiltinMigrations(engine)

	auditSvc := service.NewAuditLogService(auditRepo)
	templateSvc := service.NewTemplateService(templates, versions, validator, registry, resolver, merger, auditSvc, time.Minute)
	migrationSvc := service.NewMigrationService(engine, studies, auditSvc)
	exportSvc := service.NewExportService(templates, versions, validator, auditSvc, t.TempDir(), "")
	studySvc := service.NewStudyService(studies, templates, auditSvc)

	return SetupRoutes(&RouterDeps{
		Config:     config.Default(),
		DB:         db,
		Templates:  NewTemplateController(templateSvc),
		Migrations: NewMigrationController(migrationSvc),
		Exports:    NewExportController(exportSvc),
		Studies:    NewStudyController(studySvc),
		AuditLogs:  NewAuditLogController(auditSvc),
	})
}

// doJSON 发送 JSON 请求并返回响应
func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// createTemplate 通过 API 创建模板并返回其 ID
func createTemplate(t *testing.T, router *gin.Engine, code string) string {
	t.Helper()
	w := doJSON(router, http.MethodPost, "/api/v1/templates", gin.H{
		"code":      code,
		"name":      "Template " + code,
		"structure": json.RawMessage(validStructure),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			ID string `json:"ID"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.ID)
	return resp.Data.ID
}

func TestTemplateCRUDOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	id := createTemplate(t, router, "onc-baseline")

	w := doJSON(router, http.MethodGet, "/api/v1/templates/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "onc-baseline")

	w = doJSON(router, http.MethodPut, "/api/v1/templates/"+id, gin.H{
		"name": "Renamed",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Renamed")

	w = doJSON(router, http.MethodGet, "/api/v1/templates?page=1&page_size=10&sort_by=code&order=asc", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var list PaginatedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, int64(1), list.Pagination.Total)

	w = doJSON(router, http.MethodDelete, "/api/v1/templates/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/templates/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateTemplateRejectsBadRequest(t *testing.T) {
	router := newTestRouter(t)

	// 缺少必填字段
	w := doJSON(router, http.MethodPost, "/api/v1/templates", gin.H{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 非法模板代码
	w = doJSON(router, http.MethodPost, "/api/v1/templates", gin.H{
		"code":      "Bad Code!",
		"name":      "x",
		"structure": json.RawMessage(`{"menu":{"items":[]}}`),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPublishInvalidStructureReturns422(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/templates", gin.H{
		"code":      "broken",
		"name":      "Broken",
		"structure": json.RawMessage(`{"menu":17}`),
	})
	require.Equal(t, http.StatusOK, w.Code, "结构问题不阻止草稿保存")

	var resp struct {
		Data struct {
			ID string `json:"ID"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = doJSON(router, http.MethodPost, "/api/v1/templates/"+resp.Data.ID+"/transition", gin.H{
		"status": "PUBLISHED",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "issues")
}

func TestInheritanceOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	parentID := createTemplate(t, router, "parent")
	w := doJSON(router, http.MethodPost, "/api/v1/templates/"+parentID+"/transition", gin.H{"status": "PUBLISHED"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	childID := createTemplate(t, router, "child")
	w = doJSON(router, http.MethodPut, "/api/v1/templates/"+childID+"/parent", gin.H{
		"parent_template_id": parentID,
		"inheritance_type":   "EXTENDS",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(router, http.MethodGet, "/api/v1/templates/"+childID+"/resolve", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "overview")

	// 自指继承被拒绝
	w = doJSON(router, http.MethodPut, "/api/v1/templates/"+parentID+"/parent", gin.H{
		"parent_template_id": parentID,
		"inheritance_type":   "EXTENDS",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMergeEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/templates/merge", gin.H{
		"structures": []json.RawMessage{
			json.RawMessage(`{"a":1,"b":{"x":1}}`),
			json.RawMessage(`{"a":2,"b":{"y":2}}`),
		},
		"policy": "KEEP_LAST",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data struct {
			Merged    json.RawMessage  `json:"merged"`
			Conflicts []merge.Conflict `json:"conflicts"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.JSONEq(t, `{"a":2,"b":{"x":1,"y":2}}`, string(resp.Data.Merged))
	assert.NotEmpty(t, resp.Data.Conflicts)

	// THROW_ERROR 策略遇到冲突返回 409
	w = doJSON(router, http.MethodPost, "/api/v1/templates/merge", gin.H{
		"structures": []json.RawMessage{
			json.RawMessage(`{"a":1}`),
			json.RawMessage(`{"a":2}`),
		},
		"policy": "THROW_ERROR",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// 不足两个文档
	w = doJSON(router, http.MethodPost, "/api/v1/templates/merge", gin.H{
		"structures": []json.RawMessage{json.RawMessage(`{"a":1}`)},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMigrationEndpoints(t *testing.T) {
	router := newTestRouter(t)
	id := createTemplate(t, router, "legacy")

	w := doJSON(router, http.MethodGet, "/api/v1/templates/"+id+"/migration-plan?target=2.0.0", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "1.0.0")

	w = doJSON(router, http.MethodPost, "/api/v1/templates/"+id+"/migrate", gin.H{
		"target":  "2.0.0",
		"dry_run": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"success":true`)

	// 演练不落库
	w = doJSON(router, http.MethodGet, "/api/v1/templates/"+id, nil)
	assert.Contains(t, w.Body.String(), `"SchemaVersion":"1.0.0"`)

	w = doJSON(router, http.MethodPost, "/api/v1/templates/"+id+"/migrate", gin.H{
		"target": "2.0.0",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/templates/"+id, nil)
	assert.Contains(t, w.Body.String(), `"SchemaVersion":"2.0.0"`)
}

func TestStudyEndpoints(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/studies", gin.H{
		"code":  "onc-301",
		"name":  "Oncology Phase III",
		"phase": "III",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data struct {
			ID string `json:"ID"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	studyID := resp.Data.ID

	// 未发布的模板不能挂仪表盘
	draftID := createTemplate(t, router, "draft-tpl")
	w = doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/studies/%s/dashboards", studyID), gin.H{
		"template_id": draftID,
		"name":        "Draft dashboard",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/templates/"+draftID+"/transition", gin.H{"status": "PUBLISHED"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/studies/%s/dashboards", studyID), gin.H{
		"template_id": draftID,
		"name":        "Enrollment overview",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(router, http.MethodGet, fmt.Sprintf("/api/v1/studies/%s/templates", studyID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), draftID)
}

func TestHealthAndRequestID(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"healthy"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	// 透传已有的请求 ID
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	assert.Equal(t, "fixed-id", w2.Header().Get("X-Request-ID"))
}

func TestAuditLogsRecorded(t *testing.T) {
	router := newTestRouter(t)
	createTemplate(t, router, "audited")

	w := doJSON(router, http.MethodGet, "/api/v1/audit-logs?action=create", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var list PaginatedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, int64(1), list.Pagination.Total)
}
