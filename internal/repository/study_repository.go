package repository

import (
	"gorm.io/gorm"

	"github.com/clinops/dashboard-gin/internal/model"
)

// StudyRepository 研究仓储接口
type StudyRepository interface {
	Save(study *model.StudyModel) error
	GetByID(id string) (*model.StudyModel, error)
	List() ([]*model.StudyModel, error)
	SaveDashboard(dashboard *model.StudyDashboardModel) error
	ListDashboards(studyID string) ([]*model.StudyDashboardModel, error)
	// TemplateIDs 返回研究仪表盘引用的去重模板 ID 列表
	TemplateIDs(studyID string) ([]string, error)
}

// studyRepository 研究仓储实现
type studyRepository struct {
	db *gorm.DB
}

// NewStudyRepository 创建研究仓储
func NewStudyRepository(db *gorm.DB) StudyRepository {
	return &studyRepository{db: db}
}

// Save 保存研究
func (r *studyRepository) Save(study *model.StudyModel) error {
	return r.db.Save(study).Error
}

// GetByID 根据 ID 查找研究
func (r *studyRepository) GetByID(id string) (*model.StudyModel, error) {
	var study model.StudyModel
	if err := r.db.First(&study, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &study, nil
}

// List 列出全部研究
func (r *studyRepository) List() ([]*model.StudyModel, error) {
	var studies []*model.StudyModel
	err := r.db.Order("code").Find(&studies).Error
	return studies, err
}

// SaveDashboard 保存研究仪表盘
func (r *studyRepository) SaveDashboard(dashboard *model.StudyDashboardModel) error {
	return r.db.Save(dashboard).Error
}

// ListDashboards 列出研究的全部仪表盘
func (r *studyRepository) ListDashboards(studyID string) ([]*model.StudyDashboardModel, error) {
	var dashboards []*model.StudyDashboardModel
	err := r.db.Where("study_id = ?", studyID).Order("created_at").Find(&dashboards).Error
	return dashboards, err
}

// TemplateIDs 返回研究仪表盘引用的去重模板 ID 列表
func (r *studyRepository) TemplateIDs(studyID string) ([]string, error) {
	var ids []string
	err := r.db.Model(&model.StudyDashboardModel{}).
		Where("study_id = ?", studyID).
		Distinct("template_id").
		Order("template_id").
		Pluck("template_id", &ids).Error
	return ids, err
}
