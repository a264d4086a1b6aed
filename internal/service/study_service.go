package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinops/dashboard-gin/internal/model"
	"github.com/clinops/dashboard-gin/internal/repository"
	"github.com/clinops/dashboard-gin/internal/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StudyService 研究服务接口
type StudyService interface {
	Create(ctx context.Context, req *CreateStudyRequest) (*model.StudyModel, error)
	Get(id string) (*model.StudyModel, error)
	List() ([]*model.StudyModel, error)
	AddDashboard(ctx context.Context, studyID string, req *AddDashboardRequest) (*model.StudyDashboardModel, error)
	ListDashboards(studyID string) ([]*model.StudyDashboardModel, error)
	// TemplateIDs 返回研究仪表盘引用的去重模板 ID 列表
	TemplateIDs(studyID string) ([]string, error)
}

// CreateStudyRequest 创建研究请求
type CreateStudyRequest struct {
	Code    string `json:"code" binding:"required"` // 研究代码, 全局唯一
	Name    string `json:"name" binding:"required"` // 研究名称
	Sponsor string `json:"sponsor"`                 // 申办方
	Phase   string `json:"phase"`                   // I/II/III/IV
}

// AddDashboardRequest 添加研究仪表盘请求
type AddDashboardRequest struct {
	TemplateID string `json:"template_id" binding:"required"` // 引用的模板 ID
	Name       string `json:"name" binding:"required"`        // 仪表盘名称
}

// studyService 研究服务实现
type studyService struct {
	studies   repository.StudyRepository
	templates repository.TemplateRepository
	auditSvc  AuditLogService
}

// NewStudyService 创建研究服务
func NewStudyService(studies repository.StudyRepository, templates repository.TemplateRepository, auditSvc AuditLogService) StudyService {
	return &studyService{
		studies:   studies,
		templates: templates,
		auditSvc:  auditSvc,
	}
}

// Create 创建研究
func (s *studyService) Create(ctx context.Context, req *CreateStudyRequest) (*model.StudyModel, error) {
	if err := utils.ValidateTemplateCode(req.Code); err != nil {
		return nil, fmt.Errorf("invalid study code: %w", err)
	}
	name, err := utils.TrimAndValidate(req.Name, 255)
	if err != nil {
		return nil, fmt.Errorf("invalid study name: %w", err)
	}

	now := time.Now()
	study := &model.StudyModel{
		ID:        "study-" + uuid.New().String(),
		Code:      req.Code,
		Name:      name,
		Sponsor:   req.Sponsor,
		Phase:     req.Phase,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := study.Validate(); err != nil {
		return nil, err
	}
	if err := s.studies.Save(study); err != nil {
		return nil, fmt.Errorf("failed to save study: %w", err)
	}

	if s.auditSvc != nil {
		_ = s.auditSvc.RecordAction(ctx, getUserIDFromContext(ctx), "create_study", "study", study.ID, req)
	}
	return study, nil
}

// Get 获取研究
func (s *studyService) Get(id string) (*model.StudyModel, error) {
	return s.studies.GetByID(id)
}

// List 列出全部研究
func (s *studyService) List() ([]*model.StudyModel, error) {
	return s.studies.List()
}

// AddDashboard 给研究挂一个仪表盘,模板必须存在且已发布
func (s *studyService) AddDashboard(ctx context.Context, studyID string, req *AddDashboardRequest) (*model.StudyDashboardModel, error) {
	if _, err := s.studies.GetByID(studyID); err != nil {
		return nil, fmt.Errorf("failed to get study %s: %w", studyID, err)
	}

	tm, err := s.templates.GetByID(req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get template %s: %w", req.TemplateID, err)
	}
	if tm.Status != model.StatusPublished {
		return nil, fmt.Errorf("template %s is not published", tm.ID)
	}

	now := time.Now()
	dashboard := &model.StudyDashboardModel{
		ID:         "dash-" + uuid.New().String(),
		StudyID:    studyID,
		TemplateID: tm.ID,
		Name:       req.Name,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := dashboard.Validate(); err != nil {
		return nil, err
	}
	if err := s.studies.SaveDashboard(dashboard); err != nil {
		return nil, fmt.Errorf("failed to save dashboard: %w", err)
	}

	if s.auditSvc != nil {
		_ = s.auditSvc.RecordAction(ctx, getUserIDFromContext(ctx), "add_dashboard", "study", studyID, dashboard)
	}
	return dashboard, nil
}

// ListDashboards 列出研究的全部仪表盘
func (s *studyService) ListDashboards(studyID string) ([]*model.StudyDashboardModel, error) {
	return s.studies.ListDashboards(studyID)
}

// TemplateIDs 返回研究仪表盘引用的去重模板 ID 列表
func (s *studyService) TemplateIDs(studyID string) ([]string, error) {
	return s.studies.TemplateIDs(studyID)
}

// IsNotFound 判断是否为记录不存在错误
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
