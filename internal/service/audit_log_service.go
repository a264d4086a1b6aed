package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/clinops/dashboard-gin/internal/model"
	"github.com/clinops/dashboard-gin/internal/repository"
)

// AuditLogService 审计日志服务
type AuditLogService interface {
	RecordAction(ctx context.Context, userID string, action string, resourceType string, resourceID string, details interface{}) error
	List(filter repository.AuditLogFilter) ([]*model.AuditLogModel, int64, error)
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository) AuditLogService {
	return &auditLogService{
		auditRepo: auditRepo,
	}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(
	ctx context.Context,
	userID string,
	action string,
	resourceType string,
	resourceID string,
	details interface{},
) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	auditLog := &model.AuditLogModel{
		ID:           uuid.New().String(),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    getRequestIDFromContext(ctx),
		IP:           GetClientIP(ctx),
		UserAgent:    GetUserAgent(ctx),
		Details:      detailsJSON,
		CreatedAt:    time.Now(),
	}

	return s.auditRepo.Create(auditLog)
}

// List 查询审计日志
func (s *auditLogService) List(filter repository.AuditLogFilter) ([]*model.AuditLogModel, int64, error) {
	return s.auditRepo.List(filter)
}
