package repository

import (
	"gorm.io/gorm"

	"github.com/clinops/dashboard-gin/internal/model"
)

// TemplateFilter 模板列表过滤条件
// OrderBy 必须是完整的 "<列名> <方向>" 子句,由调用方先做白名单校验
type TemplateFilter struct {
	Status   model.TemplateStatus
	ParentID string
	IsPublic *bool
	Search   string // code/name 关键字
	Page     int
	PageSize int
	OrderBy  string
}

// TemplateRepository 模板仓储接口
type TemplateRepository interface {
	Create(template *model.TemplateModel) error
	Save(template *model.TemplateModel) error
	GetByID(id string) (*model.TemplateModel, error)
	GetByCode(code string) (*model.TemplateModel, error)
	GetChildren(parentID string) ([]*model.TemplateModel, error)
	List(filter TemplateFilter) ([]*model.TemplateModel, int64, error)
	Delete(id string) error
	// Persist 在一个事务里保存模板并追加版本快照
	Persist(template *model.TemplateModel, version *model.TemplateVersionModel) error
	// Restore 把模板行整体覆盖为备份状态
	Restore(template *model.TemplateModel) error
}

// templateRepository 模板仓储实现
type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository 创建模板仓储
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

// Create 新建模板
func (r *templateRepository) Create(template *model.TemplateModel) error {
	return r.db.Create(template).Error
}

// Save 保存模板
func (r *templateRepository) Save(template *model.TemplateModel) error {
	return r.db.Save(template).Error
}

// GetByID 根据 ID 查找模板
func (r *templateRepository) GetByID(id string) (*model.TemplateModel, error) {
	var template model.TemplateModel
	if err := r.db.First(&template, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

// GetByCode 根据代码查找模板
func (r *templateRepository) GetByCode(code string) (*model.TemplateModel, error) {
	var template model.TemplateModel
	if err := r.db.First(&template, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

// GetChildren 查找直接子模板
func (r *templateRepository) GetChildren(parentID string) ([]*model.TemplateModel, error) {
	var templates []*model.TemplateModel
	err := r.db.Where("parent_template_id = ?", parentID).Order("code").Find(&templates).Error
	return templates, err
}

// List 按条件分页查找模板
func (r *templateRepository) List(filter TemplateFilter) ([]*model.TemplateModel, int64, error) {
	query := r.db.Model(&model.TemplateModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ParentID != "" {
		query = query.Where("parent_template_id = ?", filter.ParentID)
	}
	if filter.IsPublic != nil {
		query = query.Where("is_public = ?", *filter.IsPublic)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("code LIKE ? OR name LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "updated_at DESC"
	}

	var templates []*model.TemplateModel
	err := query.Order(orderBy).Find(&templates).Error
	return templates, total, err
}

// Delete 删除模板
func (r *templateRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.TemplateModel{}).Error
}

// Persist 在一个事务里保存模板并追加版本快照
func (r *templateRepository) Persist(template *model.TemplateModel, version *model.TemplateVersionModel) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(template).Error; err != nil {
			return err
		}
		return tx.Create(version).Error
	})
}

// Restore 把模板行整体覆盖为备份状态
func (r *templateRepository) Restore(template *model.TemplateModel) error {
	return r.db.Save(template).Error
}
