package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinops/dashboard-gin/internal/migration"
	"github.com/clinops/dashboard-gin/internal/model"
	"github.com/clinops/dashboard-gin/internal/repository"
	"github.com/clinops/dashboard-gin/internal/schema"
	"github.com/clinops/dashboard-gin/internal/validation"
)

func newMigrationEnv(t *testing.T) (*serviceEnv, MigrationService, repository.StudyRepository) {
	t.Helper()
	env := newServiceEnv(t)

	validator := validation.NewValidator(nil)
	engine := migration.NewEngine(schema.BuiltinRegistry(validator), validator, env.templates, nil)
	migration.RegisterBuiltinMigrations(engine)

	studies := repository.NewStudyRepository(env.db)
	svc := NewMigrationService(engine, studies, nil)
	return env, svc, studies
}

// TestMigrationServicePlanAndMigrate 测试计划与迁移贯通
func TestMigrationServicePlanAndMigrate(t *testing.T) {
	env, svc, _ := newMigrationEnv(t)
	ctx := userCtx("alice")

	tm, err := env.svc.Create(ctx, &CreateTemplateRequest{
		Code: "safety", Name: "Safety", Structure: json.RawMessage(validStructure),
	})
	require.NoError(t, err)

	plan, err := svc.Plan(tm.ID, "2.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", plan.FromVersion)
	assert.True(t, plan.Breaking)

	report, err := svc.Migrate(ctx, tm.ID, "2.0.0", false)
	require.NoError(t, err)
	require.True(t, report.Success)

	reloaded, err := env.templates.GetByID(tm.ID)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", reloaded.SchemaVersion)
	assert.Equal(t, 2, reloaded.VersionMajor)

	// 迁移落库即追加快照: 初始创建 1 条 + 迁移 1 条
	history, err := env.versions.ListByTemplate(tm.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

// TestMigrationServiceStudy 测试研究级迁移
func TestMigrationServiceStudy(t *testing.T) {
	env, svc, studies := newMigrationEnv(t)
	ctx := userCtx("alice")

	tm, err := env.svc.Create(ctx, &CreateTemplateRequest{
		Code: "safety", Name: "Safety", Structure: json.RawMessage(validStructure),
	})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, studies.Save(&model.StudyModel{ID: "s1", Code: "ONC-001", Name: "Oncology", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, studies.SaveDashboard(&model.StudyDashboardModel{
		ID: "d1", StudyID: "s1", TemplateID: tm.ID, Name: "Safety", CreatedAt: now, UpdatedAt: now,
	}))

	report, err := svc.MigrateStudy(ctx, "s1", "1.1.0", false)
	require.NoError(t, err)
	assert.Empty(t, report.Failed)
	require.Len(t, report.Reports, 1)
	assert.True(t, report.Reports[0].Success)

	// 研究不存在时直接报错
	_, err = svc.MigrateStudy(ctx, "ghost", "1.1.0", false)
	assert.Error(t, err)
}
