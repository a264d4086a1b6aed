package migration

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinops/dashboard-gin/internal/model"
	"github.com/clinops/dashboard-gin/internal/schema"
	"github.com/clinops/dashboard-gin/internal/structure"
	"github.com/clinops/dashboard-gin/internal/validation"
)

// fakeTemplateStore 内存模板存储,读取返回副本以模拟数据库行为
type fakeTemplateStore struct {
	templates map[string]*model.TemplateModel
	snapshots []*model.TemplateVersionModel
	restored  int
}

func newFakeTemplateStore(templates ...*model.TemplateModel) *fakeTemplateStore {
	s := &fakeTemplateStore{templates: make(map[string]*model.TemplateModel)}
	for _, tm := range templates {
		s.templates[tm.ID] = tm
	}
	return s
}

func copyTemplate(tm *model.TemplateModel) *model.TemplateModel {
	out := *tm
	out.Structure = append([]byte(nil), tm.Structure...)
	return &out
}

func (s *fakeTemplateStore) GetByID(id string) (*model.TemplateModel, error) {
	tm, ok := s.templates[id]
	if !ok {
		return nil, errors.New("template not found")
	}
	return copyTemplate(tm), nil
}

func (s *fakeTemplateStore) Persist(tm *model.TemplateModel, version *model.TemplateVersionModel) error {
	s.templates[tm.ID] = copyTemplate(tm)
	s.snapshots = append(s.snapshots, version)
	return nil
}

func (s *fakeTemplateStore) Restore(tm *model.TemplateModel) error {
	s.templates[tm.ID] = copyTemplate(tm)
	s.restored++
	return nil
}

type fakeStudyStore map[string][]string

func (s fakeStudyStore) TemplateIDs(studyID string) ([]string, error) {
	ids, ok := s[studyID]
	if !ok {
		return nil, errors.New("study not found")
	}
	return ids, nil
}

const structureV1 = `{"menu":{"items":[
	{"id":"overview","type":"dashboard","label":"Overview","dashboard":{
		"layout":{"type":"grid","columns":12},
		"widgets":[{"id":"w1","widget_code":"kpi","position":{"x":0,"y":0,"w":3,"h":2}}]
	}}
]}}`

func legacyTemplate(id string) *model.TemplateModel {
	return &model.TemplateModel{
		ID:              id,
		Code:            id,
		Name:            id,
		InheritanceType: model.InheritanceNone,
		Status:          model.StatusPublished,
		VersionMajor:    1,
		Structure:       []byte(structureV1),
	}
}

func builtinEngine(store TemplateStore) *Engine {
	validator := validation.NewValidator(nil)
	e := NewEngine(schema.BuiltinRegistry(validator), validator, store, nil)
	RegisterBuiltinMigrations(e)
	return e
}

// TestPlan 测试迁移计划包含全部中间步骤且标记破坏性
func TestPlan(t *testing.T) {
	store := newFakeTemplateStore(legacyTemplate("t1"))
	plan, err := builtinEngine(store).Plan("t1", "2.0.0")
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", plan.FromVersion)
	assert.Equal(t, "2.0.0", plan.ToVersion)
	assert.Equal(t, [][2]string{{"1.0.0", "1.1.0"}, {"1.1.0", "2.0.0"}}, plan.Pairs)
	assert.Equal(t, []string{"introduce-data-mappings", "init-widget-data-requirements", "grid-to-responsive-grid"}, plan.Steps)
	assert.True(t, plan.Breaking)
}

// TestMigrateMinorUpgrade 测试非破坏性迁移升次版本号并写入快照
func TestMigrateMinorUpgrade(t *testing.T) {
	store := newFakeTemplateStore(legacyTemplate("t1"))
	report, err := builtinEngine(store).Migrate(context.Background(), "t1", "1.1.0", "alice", false)
	require.NoError(t, err)

	require.True(t, report.Success)
	assert.Equal(t, "1.0.0", report.FromVersion)
	assert.False(t, report.Breaking)
	assert.Equal(t, "1.1.0", report.NewVersion)
	require.Len(t, report.Steps, 2)
	for _, step := range report.Steps {
		assert.Equal(t, StepCompleted, step.Status)
	}
	assert.True(t, report.Validation.IsValid)

	saved := store.templates["t1"]
	assert.Equal(t, "1.1.0", saved.SchemaVersion)
	assert.Equal(t, "alice", saved.UpdatedBy)
	doc, err := structure.Decode(saved.Structure)
	require.NoError(t, err)
	_, ok := doc.Get("data_mappings")
	assert.True(t, ok)

	require.Len(t, store.snapshots, 1)
	assert.False(t, store.snapshots[0].BreakingChanges)
	assert.Equal(t, "1.1.0", store.snapshots[0].Version())
	assert.Equal(t, "alice", store.snapshots[0].CreatedBy)
}

// TestMigrateBreakingUpgrade 测试破坏性迁移升主版本号并改写布局
func TestMigrateBreakingUpgrade(t *testing.T) {
	store := newFakeTemplateStore(legacyTemplate("t1"))
	report, err := builtinEngine(store).Migrate(context.Background(), "t1", "2.0.0", "alice", false)
	require.NoError(t, err)

	require.True(t, report.Success)
	assert.True(t, report.Breaking)
	assert.Equal(t, "2.0.0", report.NewVersion)

	doc, err := structure.Decode(store.templates["t1"].Structure)
	require.NoError(t, err)
	layout, ok := doc.GetPath("menu", "items")
	require.True(t, ok)
	layout, ok = layout.Item(0).GetPath("dashboard", "layout")
	require.True(t, ok)

	layoutType, _ := layout.Get("type")
	s, _ := layoutType.AsString()
	assert.Equal(t, "responsive_grid", s)
	columns, ok := layout.GetPath("breakpoints", "lg", "columns")
	require.True(t, ok)
	n, _ := columns.AsNumber()
	assert.Equal(t, float64(12), n)
	_, ok = layout.Get("columns")
	assert.False(t, ok)

	require.Len(t, store.snapshots, 1)
	assert.True(t, store.snapshots[0].BreakingChanges)
}

// TestMigrateResultPassesStructureValidation 测试内置迁移产物仍通过结构校验
func TestMigrateResultPassesStructureValidation(t *testing.T) {
	store := newFakeTemplateStore(legacyTemplate("t1"))
	report, err := builtinEngine(store).Migrate(context.Background(), "t1", "2.0.0", "alice", false)
	require.NoError(t, err)
	require.True(t, report.Success)

	doc, err := structure.Decode(store.templates["t1"].Structure)
	require.NoError(t, err)
	widgets, ok := doc.GetPath("menu", "items")
	require.True(t, ok)
	widgets, ok = widgets.Item(0).GetPath("dashboard", "widgets")
	require.True(t, ok)
	reqs, ok := widgets.Item(0).Get("data_requirements")
	require.True(t, ok)
	assert.Equal(t, structure.KindObject, reqs.Kind())

	result := validation.NewValidator(nil).ValidateStructure(doc)
	assert.True(t, result.IsValid)
	for _, issue := range result.Issues {
		assert.NotEqual(t, validation.SeverityError, issue.Severity)
	}
}

// TestMigrateDryRun 测试试运行不落库
func TestMigrateDryRun(t *testing.T) {
	store := newFakeTemplateStore(legacyTemplate("t1"))
	report, err := builtinEngine(store).Migrate(context.Background(), "t1", "2.0.0", "alice", true)
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.True(t, report.DryRun)
	assert.Equal(t, []byte(structureV1), store.templates["t1"].Structure)
	assert.Empty(t, store.snapshots)
	assert.Zero(t, store.restored)
}

// TestMigrateNoOp 测试已在目标版本时直接成功
func TestMigrateNoOp(t *testing.T) {
	tm := legacyTemplate("t1")
	tm.SchemaVersion = "1.0.0"
	store := newFakeTemplateStore(tm)

	report, err := builtinEngine(store).Migrate(context.Background(), "t1", "1.0.0", "alice", false)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Empty(t, report.Steps)
	assert.Empty(t, store.snapshots)
}

// TestMigrateDowngradeRejected 测试降级直接报错
func TestMigrateDowngradeRejected(t *testing.T) {
	tm := legacyTemplate("t1")
	tm.SchemaVersion = "2.0.0"
	store := newFakeTemplateStore(tm)

	_, err := builtinEngine(store).Migrate(context.Background(), "t1", "1.0.0", "alice", false)
	require.Error(t, err)
	var downgrade *schema.UnsupportedDowngradeError
	assert.ErrorAs(t, err, &downgrade)
}

// TestMigrateStepFailureRestores 测试步骤失败后数据库保持原状
func TestMigrateStepFailureRestores(t *testing.T) {
	validator := validation.NewValidator(nil)
	registry := schema.NewRegistry(validator)
	require.NoError(t, registry.Register(&schema.Version{Version: "1.0.0", Schema: &validation.Schema{}}))
	require.NoError(t, registry.Register(&schema.Version{Version: "2.0.0", Schema: &validation.Schema{}}))

	tm := legacyTemplate("t1")
	tm.SchemaVersion = "1.0.0"
	store := newFakeTemplateStore(tm)

	e := NewEngine(registry, validator, store, nil)
	e.RegisterMigration("1.0.0", "2.0.0", []*Step{
		{
			Name: "first",
			Up: func(doc *structure.Value) error {
				doc.Set("touched", structure.Scalar(true))
				return nil
			},
		},
		{
			Name: "second",
			Up: func(doc *structure.Value) error {
				return fmt.Errorf("boom")
			},
		},
	})

	report, err := e.Migrate(context.Background(), "t1", "2.0.0", "alice", false)
	require.NoError(t, err)

	assert.False(t, report.Success)
	assert.Contains(t, report.Error, "second")
	require.Len(t, report.Steps, 2)
	assert.Equal(t, StepCompleted, report.Steps[0].Status)
	assert.Equal(t, StepFailed, report.Steps[1].Status)
	assert.Equal(t, "boom", report.Steps[1].Error)

	// 备份恢复后结构逐字节不变
	assert.Equal(t, []byte(structureV1), store.templates["t1"].Structure)
	assert.Equal(t, 1, store.restored)
	assert.Empty(t, store.snapshots)
}

// TestMigrateFinalValidationFailure 测试迁移结果不符合目标 schema 时回滚
func TestMigrateFinalValidationFailure(t *testing.T) {
	validator := validation.NewValidator(nil)
	registry := schema.NewRegistry(validator)
	require.NoError(t, registry.Register(&schema.Version{Version: "1.0.0", Schema: &validation.Schema{}}))
	require.NoError(t, registry.Register(&schema.Version{
		Version: "2.0.0",
		Schema:  &validation.Schema{RequiredSections: []string{"data_mappings"}},
	}))

	tm := legacyTemplate("t1")
	tm.SchemaVersion = "1.0.0"
	store := newFakeTemplateStore(tm)

	e := NewEngine(registry, validator, store, nil)
	e.RegisterMigration("1.0.0", "2.0.0", []*Step{
		{Name: "noop", Up: func(doc *structure.Value) error { return nil }},
	})

	report, err := e.Migrate(context.Background(), "t1", "2.0.0", "alice", false)
	require.NoError(t, err)
	assert.False(t, report.Success)
	assert.False(t, report.Validation.IsValid)
	assert.Equal(t, []byte(structureV1), store.templates["t1"].Structure)
	assert.Empty(t, store.snapshots)
}

// TestMigrateStudyTemplates 测试研究级迁移尽力而为
func TestMigrateStudyTemplates(t *testing.T) {
	store := newFakeTemplateStore(legacyTemplate("t1"), legacyTemplate("t2"))
	studies := fakeStudyStore{"s1": {"t1", "missing", "t2"}}

	out, err := builtinEngine(store).MigrateStudyTemplates(context.Background(), studies, "s1", "1.1.0", "alice", false)
	require.NoError(t, err)

	require.Len(t, out.Reports, 3)
	assert.Equal(t, []string{"missing"}, out.Failed)
	assert.Equal(t, "1.1.0", store.templates["t1"].SchemaVersion)
	assert.Equal(t, "1.1.0", store.templates["t2"].SchemaVersion)
	require.Len(t, store.snapshots, 2)
}
