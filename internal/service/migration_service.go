package service

import (
	"context"
	"fmt"

	"github.com/clinops/dashboard-gin/internal/metrics"
	"github.com/clinops/dashboard-gin/internal/migration"
	"github.com/clinops/dashboard-gin/internal/repository"
)

// MigrationService 模板迁移服务,在迁移引擎外补审计和指标
type MigrationService interface {
	Plan(templateID, target string) (*migration.Plan, error)
	Migrate(ctx context.Context, templateID, target string, dryRun bool) (*migration.Report, error)
	MigrateStudy(ctx context.Context, studyID, target string, dryRun bool) (*migration.StudyReport, error)
}

// migrationService 模板迁移服务实现
type migrationService struct {
	engine   *migration.Engine
	studies  repository.StudyRepository
	auditSvc AuditLogService
}

// NewMigrationService 创建模板迁移服务
func NewMigrationService(engine *migration.Engine, studies repository.StudyRepository, auditSvc AuditLogService) MigrationService {
	return &migrationService{
		engine:   engine,
		studies:  studies,
		auditSvc: auditSvc,
	}
}

// Plan 计算迁移计划
func (s *migrationService) Plan(templateID, target string) (*migration.Plan, error) {
	return s.engine.Plan(templateID, target)
}

// Migrate 迁移单个模板
func (s *migrationService) Migrate(ctx context.Context, templateID, target string, dryRun bool) (*migration.Report, error) {
	actor := getUserIDFromContext(ctx)
	report, err := s.engine.Migrate(ctx, templateID, target, actor, dryRun)
	if err != nil {
		return nil, err
	}

	if !dryRun {
		metrics.RecordMigration(target, report.Success)
		for _, step := range report.Steps {
			metrics.RecordMigrationStep(step.Name, step.Duration)
		}
		s.audit(ctx, actor, "migrate", templateID, report)
	}
	return report, nil
}

// MigrateStudy 迁移一个研究引用的全部模板,尽力而为
func (s *migrationService) MigrateStudy(ctx context.Context, studyID, target string, dryRun bool) (*migration.StudyReport, error) {
	if _, err := s.studies.GetByID(studyID); err != nil {
		return nil, fmt.Errorf("failed to get study %s: %w", studyID, err)
	}

	actor := getUserIDFromContext(ctx)
	report, err := s.engine.MigrateStudyTemplates(ctx, s.studies, studyID, target, actor, dryRun)
	if err != nil {
		return nil, err
	}

	if !dryRun {
		for _, tr := range report.Reports {
			metrics.RecordMigration(target, tr.Success)
		}
		s.audit(ctx, actor, "migrate_study", studyID, map[string]interface{}{
			"target": target,
			"failed": report.Failed,
		})
	}
	return report, nil
}

// audit 记录审计日志,失败只影响日志不影响主流程
func (s *migrationService) audit(ctx context.Context, userID, action, resourceID string, details interface{}) {
	if s.auditSvc == nil || userID == "" {
		return
	}
	resourceType := "template"
	if action == "migrate_study" {
		resourceType = "study"
	}
	_ = s.auditSvc.RecordAction(ctx, userID, action, resourceType, resourceID, details)
}
