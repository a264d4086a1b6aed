package repository

import (
	"gorm.io/gorm"

	"github.com/clinops/dashboard-gin/internal/model"
)

// AuditLogFilter 审计日志过滤条件
type AuditLogFilter struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Page         int
	PageSize     int
}

// AuditLogRepository 审计日志仓储接口
type AuditLogRepository interface {
	Create(log *model.AuditLogModel) error
	List(filter AuditLogFilter) ([]*model.AuditLogModel, int64, error)
}

// auditLogRepository 审计日志仓储实现
type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository 创建审计日志仓储
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

// Create 写入审计日志
func (r *auditLogRepository) Create(log *model.AuditLogModel) error {
	return r.db.Create(log).Error
}

// List 按条件分页查找审计日志
func (r *auditLogRepository) List(filter AuditLogFilter) ([]*model.AuditLogModel, int64, error) {
	query := r.db.Model(&model.AuditLogModel{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		query = query.Where("resource_id = ?", filter.ResourceID)
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

	var logs []*model.AuditLogModel
	err := query.Order("created_at DESC").Find(&logs).Error
	return logs, total, err
}
