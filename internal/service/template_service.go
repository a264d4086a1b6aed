package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinops/dashboard-gin/internal/inheritance"
	"github.com/clinops/dashboard-gin/internal/merge"
	"github.com/clinops/dashboard-gin/internal/metrics"
	"github.com/clinops/dashboard-gin/internal/model"
	"github.com/clinops/dashboard-gin/internal/repository"
	"github.com/clinops/dashboard-gin/internal/schema"
	"github.com/clinops/dashboard-gin/internal/structure"
	"github.com/clinops/dashboard-gin/internal/utils"
	"github.com/clinops/dashboard-gin/internal/validation"
)

// TemplateService 模板服务接口
type TemplateService interface {
	Create(ctx context.Context, req *CreateTemplateRequest) (*model.TemplateModel, error)
	Get(id string) (*model.TemplateModel, error)
	GetByCode(code string) (*model.TemplateModel, error)
	Update(ctx context.Context, id string, req *UpdateTemplateRequest) (*model.TemplateModel, error)
	Delete(ctx context.Context, id string) error
	List(filter *TemplateListFilter) (*TemplateListResponse, error)
	Transition(ctx context.Context, id string, target model.TemplateStatus) (*model.TemplateModel, error)
	SetParent(ctx context.Context, id string, parentID string, inheritanceType model.InheritanceType) (*model.TemplateModel, error)
	// Resolve 计算继承链折叠后的有效结构,带 TTL 缓存
	Resolve(id string) ([]byte, error)
	Validate(id string) (validation.Result, error)
	// Merge 对任意一组结构做带冲突报告的深度合并
	Merge(req *MergeRequest) (*MergeResponse, error)
	ListVersions(id string) ([]*model.TemplateVersionModel, error)
}

// CreateTemplateRequest 创建模板请求
type CreateTemplateRequest struct {
	Code             string          `json:"code" binding:"required"`      // 模板代码, 全局唯一
	Name             string          `json:"name" binding:"required"`      // 模板名称
	Description      string          `json:"description"`                  // 模板描述
	Structure        json.RawMessage `json:"structure" binding:"required"` // 结构文档
	ParentTemplateID *string         `json:"parent_template_id"`           // 父模板 ID
	InheritanceType  string          `json:"inheritance_type"`             // NONE/EXTENDS/INCLUDES
	IsPublic         bool            `json:"is_public"`                    // 是否公共模板
}

// UpdateTemplateRequest 更新模板请求
type UpdateTemplateRequest struct {
	Name              string          `json:"name"`               // 模板名称
	Description       string          `json:"description"`        // 模板描述
	Structure         json.RawMessage `json:"structure"`          // 结构文档, 为空表示不更新
	IsPublic          *bool           `json:"is_public"`          // 是否公共模板
	ChangeDescription string          `json:"change_description"` // 版本快照的变更说明
}

// TemplateListFilter 模板列表查询过滤器
type TemplateListFilter struct {
	Page     int
	PageSize int
	Status   string
	ParentID string
	IsPublic *bool
	Search   string // code/name 关键字
	SortBy   string
	Order    string // asc/desc
}

// TemplateListResponse 模板列表响应
type TemplateListResponse struct {
	Data       []*model.TemplateModel
	Pagination PaginationInfo
}

// PaginationInfo 分页信息
type PaginationInfo struct {
	Page      int
	PageSize  int
	Total     int64
	TotalPage int
}

// MergeRequest 通用深度合并请求
type MergeRequest struct {
	Structures []json.RawMessage `json:"structures" binding:"required"` // 按优先级从低到高
	Policy     string            `json:"policy"`                        // KEEP_FIRST/KEEP_LAST/MERGE_ARRAYS/THROW_ERROR
	Overrides  map[string]string `json:"overrides"`                     // 路径级策略覆盖
}

// MergeResponse 合并结果: 合并后的结构和完整冲突报告
type MergeResponse struct {
	Merged    json.RawMessage  `json:"merged"`
	Conflicts []merge.Conflict `json:"conflicts"`
}

// resolveCacheEntry 有效结构缓存条目
type resolveCacheEntry struct {
	structure []byte
	expiresAt time.Time
}

// templateService 模板服务实现
type templateService struct {
	templates repository.TemplateRepository
	versions  repository.TemplateVersionRepository
	validator *validation.Validator
	registry  *schema.Registry
	resolver  *inheritance.Resolver
	merger    *merge.Merger
	auditSvc  AuditLogService
	cache     *sync.Map
	cacheTTL  time.Duration
}

// NewTemplateService 创建模板服务
func NewTemplateService(
	templates repository.TemplateRepository,
	versions repository.TemplateVersionRepository,
	validator *validation.Validator,
	registry *schema.Registry,
	resolver *inheritance.Resolver,
	merger *merge.Merger,
	auditSvc AuditLogService,
	cacheTTL time.Duration,
) TemplateService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute // 默认缓存 5 分钟
	}
	return &templateService{
		templates: templates,
		versions:  versions,
		validator: validator,
		registry:  registry,
		resolver:  resolver,
		merger:    merger,
		auditSvc:  auditSvc,
		cache:     &sync.Map{},
		cacheTTL:  cacheTTL,
	}
}

// Create 创建模板
func (s *templateService) Create(ctx context.Context, req *CreateTemplateRequest) (*model.TemplateModel, error) {
	if err := utils.ValidateTemplateCode(req.Code); err != nil {
		return nil, err
	}
	if err := utils.ValidateTemplateName(req.Name); err != nil {
		return nil, err
	}

	doc, err := structure.Decode(req.Structure)
	if err != nil {
		return nil, fmt.Errorf("invalid structure document: %w", err)
	}

	inheritanceType := model.InheritanceType(req.InheritanceType)
	if req.InheritanceType == "" {
		inheritanceType = model.InheritanceNone
	}
	if !model.ValidInheritanceType(inheritanceType) {
		return nil, fmt.Errorf("invalid inheritance type: %s", req.InheritanceType)
	}

	tm := &model.TemplateModel{
		ID:               "tpl-" + uuid.NewString(),
		Code:             req.Code,
		Name:             strings.TrimSpace(req.Name),
		Description:      req.Description,
		ParentTemplateID: req.ParentTemplateID,
		InheritanceType:  inheritanceType,
		Status:           model.StatusDraft,
		VersionMajor:     1,
		IsPublic:         req.IsPublic,
		Structure:        req.Structure,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
		CreatedBy:        getUserIDFromContext(ctx),
		UpdatedBy:        getUserIDFromContext(ctx),
	}

	if req.ParentTemplateID != nil {
		if err := s.resolver.ValidateInheritance(tm.ID, *req.ParentTemplateID); err != nil {
			return nil, err
		}
	}
	if err := tm.Validate(); err != nil {
		return nil, err
	}

	// 继承子模板允许保存稀疏片段,结构性问题在发布时按有效结构阻断
	result := s.validator.ValidateStructure(doc)
	metrics.RecordValidation(result.IsValid)

	version, err := s.registry.DetectVersion(doc)
	if err != nil {
		return nil, err
	}
	tm.SchemaVersion = version

	snapshot := s.snapshotOf(tm, "initial version", false)
	if err := s.templates.Persist(tm, snapshot); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	s.audit(ctx, "create", tm.ID, map[string]string{"code": tm.Code, "name": tm.Name})
	return tm, nil
}

// Get 获取模板
func (s *templateService) Get(id string) (*model.TemplateModel, error) {
	return s.templates.GetByID(id)
}

// GetByCode 根据代码获取模板
func (s *templateService) GetByCode(code string) (*model.TemplateModel, error) {
	return s.templates.GetByCode(code)
}

// Update 更新模板,每次更新都追加版本快照
func (s *templateService) Update(ctx context.Context, id string, req *UpdateTemplateRequest) (*model.TemplateModel, error) {
	tm, err := s.templates.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	if req.Name != "" {
		if err := utils.ValidateTemplateName(req.Name); err != nil {
			return nil, err
		}
		tm.Name = strings.TrimSpace(req.Name)
	}
	if req.Description != "" {
		tm.Description = req.Description
	}
	if req.IsPublic != nil {
		tm.IsPublic = *req.IsPublic
	}

	if len(req.Structure) > 0 {
		doc, err := structure.Decode(req.Structure)
		if err != nil {
			return nil, fmt.Errorf("invalid structure document: %w", err)
		}
		result := s.validator.ValidateStructure(doc)
		metrics.RecordValidation(result.IsValid)
		version, err := s.registry.DetectVersion(doc)
		if err != nil {
			return nil, err
		}
		tm.Structure = req.Structure
		tm.SchemaVersion = version
	}

	tm.VersionPatch++
	tm.UpdatedAt = time.Now()
	tm.UpdatedBy = getUserIDFromContext(ctx)

	changeDescription := req.ChangeDescription
	if changeDescription == "" {
		changeDescription = "template updated"
	}
	snapshot := s.snapshotOf(tm, changeDescription, false)
	if err := s.templates.Persist(tm, snapshot); err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}

	// 子模板的有效结构也依赖本模板,整体失效
	s.clearResolveCache()
	s.audit(ctx, "update", tm.ID, map[string]string{"version": tm.Version()})
	return tm, nil
}

// Delete 删除模板,有子模板时拒绝
func (s *templateService) Delete(ctx context.Context, id string) error {
	children, err := s.templates.GetChildren(id)
	if err != nil {
		return fmt.Errorf("failed to check children: %w", err)
	}
	if len(children) > 0 {
		return fmt.Errorf("template %s has %d child templates and cannot be deleted", id, len(children))
	}

	if err := s.templates.Delete(id); err != nil {
		return err
	}

	s.clearResolveCache()
	s.audit(ctx, "delete", id, nil)
	return nil
}

// List 查询模板列表
func (s *templateService) List(filter *TemplateListFilter) (*TemplateListResponse, error) {
	if filter == nil {
		filter = &TemplateListFilter{}
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	repoFilter := repository.TemplateFilter{
		Status:   model.TemplateStatus(filter.Status),
		ParentID: filter.ParentID,
		IsPublic: filter.IsPublic,
		Search:   filter.Search,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	if filter.Status != "" && !model.ValidStatus(repoFilter.Status) {
		return nil, fmt.Errorf("invalid status filter: %s", filter.Status)
	}
	if filter.SortBy != "" {
		if err := utils.ValidateSortField(filter.SortBy); err != nil {
			return nil, fmt.Errorf("invalid sort field: %w", err)
		}
		repoFilter.OrderBy = filter.SortBy + " " + utils.SanitizeSortOrder(filter.Order)
	}

	templates, total, err := s.templates.List(repoFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	totalPage := int(total) / filter.PageSize
	if int(total)%filter.PageSize > 0 {
		totalPage++
	}
	return &TemplateListResponse{
		Data: templates,
		Pagination: PaginationInfo{
			Page:      filter.Page,
			PageSize:  filter.PageSize,
			Total:     total,
			TotalPage: totalPage,
		},
	}, nil
}

// Transition 推进模板生命周期状态,只允许向前流转
func (s *templateService) Transition(ctx context.Context, id string, target model.TemplateStatus) (*model.TemplateModel, error) {
	tm, err := s.templates.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	if !model.CanTransition(tm.Status, target) {
		return nil, fmt.Errorf("status transition %s -> %s is not allowed", tm.Status, target)
	}

	// 发布前做完整校验,有 ERROR 不允许发布
	// 继承子模板按折叠后的有效结构校验,稀疏片段本身不是校验对象
	if target == model.StatusPublished {
		var result validation.Result
		if tm.ParentTemplateID != nil {
			effective, err := s.resolver.EffectiveStructure(tm.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve effective structure: %w", err)
			}
			result = s.validator.ValidateStructure(effective)
		} else {
			result = s.validator.ValidateTemplate(tm)
		}
		metrics.RecordValidation(result.IsValid)
		if !result.IsValid {
			return nil, &StructureInvalidError{Result: result}
		}
	}

	tm.Status = target
	tm.UpdatedAt = time.Now()
	tm.UpdatedBy = getUserIDFromContext(ctx)
	if err := s.templates.Save(tm); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	s.audit(ctx, strings.ToLower(string(target)), tm.ID, map[string]string{"status": string(target)})
	return tm, nil
}

// SetParent 设置模板的继承关系
func (s *templateService) SetParent(ctx context.Context, id string, parentID string, inheritanceType model.InheritanceType) (*model.TemplateModel, error) {
	tm, err := s.templates.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	if parentID == "" {
		tm.ParentTemplateID = nil
		tm.InheritanceType = model.InheritanceNone
	} else {
		if inheritanceType != model.InheritanceExtends && inheritanceType != model.InheritanceIncludes {
			return nil, fmt.Errorf("inheritance type must be EXTENDS or INCLUDES")
		}
		if err := s.resolver.ValidateInheritance(id, parentID); err != nil {
			return nil, err
		}
		tm.ParentTemplateID = &parentID
		tm.InheritanceType = inheritanceType
	}

	tm.UpdatedAt = time.Now()
	tm.UpdatedBy = getUserIDFromContext(ctx)
	if err := s.templates.Save(tm); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	s.clearResolveCache()
	s.audit(ctx, "set_parent", tm.ID, map[string]string{"parent_id": parentID, "inheritance_type": string(inheritanceType)})
	return tm, nil
}

// Resolve 计算继承链折叠后的有效结构（带缓存）
func (s *templateService) Resolve(id string) ([]byte, error) {
	if val, found := s.cache.Load(id); found {
		entry := val.(*resolveCacheEntry)
		if time.Now().Before(entry.expiresAt) {
			metrics.RecordResolution(true)
			return entry.structure, nil
		}
		s.cache.Delete(id)
	}

	doc, err := s.resolver.EffectiveStructure(id)
	if err != nil {
		return nil, err
	}
	encoded, err := doc.Encode()
	if err != nil {
		return nil, err
	}

	s.cache.Store(id, &resolveCacheEntry{
		structure: encoded,
		expiresAt: time.Now().Add(s.cacheTTL),
	})
	metrics.RecordResolution(false)
	return encoded, nil
}

// Validate 校验模板,返回问题清单而不是错误
func (s *templateService) Validate(id string) (validation.Result, error) {
	tm, err := s.templates.GetByID(id)
	if err != nil {
		return validation.Result{}, fmt.Errorf("failed to get template: %w", err)
	}

	result := s.validator.ValidateTemplate(tm)
	metrics.RecordValidation(result.IsValid)
	return result, nil
}

// Merge 对任意一组结构做带冲突报告的深度合并
func (s *templateService) Merge(req *MergeRequest) (*MergeResponse, error) {
	if len(req.Structures) < 2 {
		return nil, fmt.Errorf("merge requires at least two structures")
	}

	docs := make([]*structure.Value, 0, len(req.Structures))
	for i, raw := range req.Structures {
		doc, err := structure.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid structure at index %d: %w", i, err)
		}
		docs = append(docs, doc)
	}

	policy := merge.Policy(req.Policy)
	if req.Policy == "" {
		policy = merge.PolicyKeepLast
	}
	if !validPolicy(policy) {
		return nil, fmt.Errorf("invalid merge policy: %s", req.Policy)
	}
	overrides := make(map[string]merge.Policy, len(req.Overrides))
	for path, p := range req.Overrides {
		override := merge.Policy(p)
		if !validPolicy(override) {
			return nil, fmt.Errorf("invalid merge policy for path %s: %s", path, p)
		}
		overrides[path] = override
	}

	merged, conflicts, err := s.merger.Merge(docs, policy, overrides)
	metrics.RecordMerge(string(policy))
	if err != nil {
		return nil, err
	}
	encoded, err := merged.Encode()
	if err != nil {
		return nil, err
	}
	if conflicts == nil {
		conflicts = []merge.Conflict{}
	}
	return &MergeResponse{Merged: encoded, Conflicts: conflicts}, nil
}

// ListVersions 列出模板的版本轨迹
func (s *templateService) ListVersions(id string) ([]*model.TemplateVersionModel, error) {
	return s.versions.ListByTemplate(id)
}

// snapshotOf 由当前模板状态生成版本快照
func (s *templateService) snapshotOf(tm *model.TemplateModel, description string, breaking bool) *model.TemplateVersionModel {
	return &model.TemplateVersionModel{
		ID:                uuid.NewString(),
		TemplateID:        tm.ID,
		VersionMajor:      tm.VersionMajor,
		VersionMinor:      tm.VersionMinor,
		VersionPatch:      tm.VersionPatch,
		SchemaVersion:     tm.SchemaVersion,
		Structure:         tm.Structure,
		ChangeDescription: description,
		BreakingChanges:   breaking,
		CreatedAt:         time.Now(),
		CreatedBy:         tm.UpdatedBy,
	}
}

// clearResolveCache 清空有效结构缓存
// 任何继承关系或结构变更都可能影响后代模板,统一整体失效
func (s *templateService) clearResolveCache() {
	s.cache.Range(func(key, _ interface{}) bool {
		s.cache.Delete(key)
		return true
	})
}

// audit 记录审计日志,失败只影响日志不影响主流程
func (s *templateService) audit(ctx context.Context, action, resourceID string, details interface{}) {
	if s.auditSvc == nil {
		return
	}
	userID := getUserIDFromContext(ctx)
	if userID == "" {
		return
	}
	_ = s.auditSvc.RecordAction(ctx, userID, action, "template", resourceID, details)
}

// validPolicy 判断合并策略是否合法
func validPolicy(p merge.Policy) bool {
	switch p {
	case merge.PolicyKeepFirst, merge.PolicyKeepLast, merge.PolicyMergeArrays, merge.PolicyThrowError:
		return true
	}
	return false
}

// StructureInvalidError 结构校验未通过
// 携带完整校验结果,API 层把它渲染成 422 响应
type StructureInvalidError struct {
	Result validation.Result
}

func (e *StructureInvalidError) Error() string {
	return fmt.Sprintf("structure validation failed with %d issues", len(e.Result.Issues))
}
