package repository

import (
	"gorm.io/gorm"

	"github.com/clinops/dashboard-gin/internal/model"
)

// TemplateVersionRepository 模板版本快照仓储接口,快照只追加不修改
type TemplateVersionRepository interface {
	Create(version *model.TemplateVersionModel) error
	GetByID(id string) (*model.TemplateVersionModel, error)
	ListByTemplate(templateID string) ([]*model.TemplateVersionModel, error)
}

// templateVersionRepository 模板版本快照仓储实现
type templateVersionRepository struct {
	db *gorm.DB
}

// NewTemplateVersionRepository 创建模板版本快照仓储
func NewTemplateVersionRepository(db *gorm.DB) TemplateVersionRepository {
	return &templateVersionRepository{db: db}
}

// Create 追加版本快照
func (r *templateVersionRepository) Create(version *model.TemplateVersionModel) error {
	return r.db.Create(version).Error
}

// GetByID 根据 ID 查找版本快照
func (r *templateVersionRepository) GetByID(id string) (*model.TemplateVersionModel, error) {
	var version model.TemplateVersionModel
	if err := r.db.First(&version, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &version, nil
}

// ListByTemplate 按时间倒序列出模板的版本轨迹
func (r *templateVersionRepository) ListByTemplate(templateID string) ([]*model.TemplateVersionModel, error) {
	var versions []*model.TemplateVersionModel
	err := r.db.Where("template_id = ?", templateID).Order("created_at DESC").Find(&versions).Error
	return versions, err
}
