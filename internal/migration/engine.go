package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clinops/dashboard-gin/internal/model"
	"github.com/clinops/dashboard-gin/internal/schema"
	"github.com/clinops/dashboard-gin/internal/structure"
	"github.com/clinops/dashboard-gin/internal/validation"
)

// Step 一个迁移步骤,Up 在工作副本上就地改写结构
// Down 可为空,为空表示该步骤不可逆
type Step struct {
	Name     string
	Breaking bool
	Up       func(doc *structure.Value) error
	Down     func(doc *structure.Value) error
}

// StepError 某个迁移步骤执行失败
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("migration step %q failed: %s", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// 步骤执行状态
const (
	StepCompleted = "COMPLETED"
	StepFailed    = "FAILED"
	StepSkipped   = "SKIPPED"
)

// StepLog 单个步骤的执行记录
type StepLog struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Report 单个模板的迁移结果
// Success 为 false 时数据库保持迁移前的状态
type Report struct {
	TemplateID  string            `json:"template_id"`
	FromVersion string            `json:"from_version"`
	ToVersion   string            `json:"to_version"`
	DryRun      bool              `json:"dry_run"`
	Success     bool              `json:"success"`
	Breaking    bool              `json:"breaking"`
	NewVersion  string            `json:"new_version,omitempty"` // 迁移后的模板语义化版本
	Steps       []StepLog         `json:"steps"`
	Validation  validation.Result `json:"validation"`
	Error       string            `json:"error,omitempty"`
}

// StudyReport 一次研究级批量迁移的汇总
type StudyReport struct {
	StudyID string    `json:"study_id"`
	Reports []*Report `json:"reports"`
	Failed  []string  `json:"failed"` // 迁移失败的模板 ID
}

// Plan 一次迁移的静态计划,不产生任何副作用
type Plan struct {
	TemplateID  string      `json:"template_id"`
	FromVersion string      `json:"from_version"`
	ToVersion   string      `json:"to_version"`
	Pairs       [][2]string `json:"pairs"`
	Steps       []string    `json:"steps"`
	Breaking    bool        `json:"breaking"`
}

// TemplateStore 迁移引擎需要的模板持久化能力
type TemplateStore interface {
	GetByID(id string) (*model.TemplateModel, error)
	// Persist 原子地保存模板并追加一条版本快照
	Persist(tm *model.TemplateModel, version *model.TemplateVersionModel) error
	// Restore 把模板恢复为给定的备份状态
	Restore(tm *model.TemplateModel) error
}

// StudyStore 迁移引擎需要的研究查询能力
type StudyStore interface {
	TemplateIDs(studyID string) ([]string, error)
}

// Engine 模板结构迁移引擎
type Engine struct {
	registry   *schema.Registry
	validator  *validation.Validator
	templates  TemplateStore
	migrations map[string][]*Step
	log        *logrus.Logger
}

// NewEngine 创建迁移引擎
func NewEngine(registry *schema.Registry, validator *validation.Validator, templates TemplateStore, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		registry:   registry,
		validator:  validator,
		templates:  templates,
		migrations: make(map[string][]*Step),
		log:        log,
	}
}

func migrationKey(from, to string) string {
	return from + "->" + to
}

// RegisterMigration 注册一对相邻版本之间的迁移步骤
func (e *Engine) RegisterMigration(from, to string, steps []*Step) {
	e.migrations[migrationKey(from, to)] = steps
}

// currentVersion 确定模板结构当前的 schema 版本
// 模板记录了版本时直接采信,否则按结构推断
func (e *Engine) currentVersion(tm *model.TemplateModel, doc *structure.Value) (string, error) {
	if tm.SchemaVersion != "" {
		return tm.SchemaVersion, nil
	}
	return e.registry.DetectVersion(doc)
}

// Plan 计算从当前版本到目标版本的迁移计划
func (e *Engine) Plan(templateID, target string) (*Plan, error) {
	tm, err := e.templates.GetByID(templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", templateID, err)
	}
	doc, err := structure.Decode(tm.Structure)
	if err != nil {
		return nil, fmt.Errorf("failed to decode structure of template %s: %w", templateID, err)
	}
	current, err := e.currentVersion(tm, doc)
	if err != nil {
		return nil, err
	}
	pairs, err := e.registry.UpgradePath(current, target)
	if err != nil {
		return nil, err
	}

	plan := &Plan{TemplateID: templateID, FromVersion: current, ToVersion: target, Pairs: pairs}
	for _, pair := range pairs {
		steps, ok := e.migrations[migrationKey(pair[0], pair[1])]
		if !ok {
			return nil, fmt.Errorf("no migration registered for %s -> %s", pair[0], pair[1])
		}
		for _, step := range steps {
			plan.Steps = append(plan.Steps, step.Name)
			if step.Breaking {
				plan.Breaking = true
			}
		}
	}
	return plan, nil
}

// Migrate 把一个模板迁移到目标 schema 版本
// 在内存工作副本上执行全部步骤并通过最终校验后才落库,
// 任何一步失败都恢复备份并返回 Success=false 的报告,错误码为 nil;
// 返回非 nil 错误仅表示迁移根本无法开始 (模板不存在/版本未知/没有注册迁移)
func (e *Engine) Migrate(ctx context.Context, templateID, target, actor string, dryRun bool) (*Report, error) {
	tm, err := e.templates.GetByID(templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", templateID, err)
	}
	doc, err := structure.Decode(tm.Structure)
	if err != nil {
		return nil, fmt.Errorf("failed to decode structure of template %s: %w", templateID, err)
	}
	current, err := e.currentVersion(tm, doc)
	if err != nil {
		return nil, err
	}

	report := &Report{
		TemplateID:  templateID,
		FromVersion: current,
		ToVersion:   target,
		DryRun:      dryRun,
		Steps:       []StepLog{},
	}

	if current == target {
		report.Success = true
		report.NewVersion = tm.Version()
		report.Validation = validation.NewResult(nil)
		return report, nil
	}

	pairs, err := e.registry.UpgradePath(current, target)
	if err != nil {
		return nil, err
	}
	var steps []*Step
	for _, pair := range pairs {
		pairSteps, ok := e.migrations[migrationKey(pair[0], pair[1])]
		if !ok {
			return nil, fmt.Errorf("no migration registered for %s -> %s", pair[0], pair[1])
		}
		steps = append(steps, pairSteps...)
	}

	// 执行前捕获备份,失败时按它恢复
	backup := *tm
	backup.Structure = append([]byte(nil), tm.Structure...)

	working := doc.Clone()
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return e.fail(report, &backup, dryRun, err)
		}
		start := time.Now()
		err := step.Up(working)
		elapsed := time.Since(start)
		if err != nil {
			report.Steps = append(report.Steps, StepLog{Name: step.Name, Status: StepFailed, Duration: elapsed, Error: err.Error()})
			return e.fail(report, &backup, dryRun, &StepError{Step: step.Name, Err: err})
		}
		report.Steps = append(report.Steps, StepLog{Name: step.Name, Status: StepCompleted, Duration: elapsed})
		if step.Breaking {
			report.Breaking = true
		}
	}

	result, err := e.registry.ValidateAgainstSchema(working, target)
	if err != nil {
		return e.fail(report, &backup, dryRun, err)
	}
	report.Validation = result
	if !result.IsValid {
		return e.fail(report, &backup, dryRun, fmt.Errorf("migrated structure does not conform to schema %s", target))
	}

	migrated, err := working.Encode()
	if err != nil {
		return e.fail(report, &backup, dryRun, err)
	}

	// 破坏性迁移升主版本号,否则升次版本号
	if report.Breaking {
		tm.VersionMajor++
		tm.VersionMinor = 0
	} else {
		tm.VersionMinor++
	}
	tm.VersionPatch = 0
	tm.Structure = migrated
	tm.SchemaVersion = target
	tm.UpdatedBy = actor
	report.NewVersion = tm.Version()

	if dryRun {
		report.Success = true
		return report, nil
	}

	snapshot := &model.TemplateVersionModel{
		ID:                uuid.NewString(),
		TemplateID:        tm.ID,
		VersionMajor:      tm.VersionMajor,
		VersionMinor:      tm.VersionMinor,
		VersionPatch:      tm.VersionPatch,
		SchemaVersion:     target,
		Structure:         migrated,
		ChangeDescription: fmt.Sprintf("schema migration %s -> %s", current, target),
		BreakingChanges:   report.Breaking,
		CreatedAt:         time.Now(),
		CreatedBy:         actor,
	}
	if err := e.templates.Persist(tm, snapshot); err != nil {
		return e.fail(report, &backup, dryRun, fmt.Errorf("failed to persist migrated template: %w", err))
	}

	report.Success = true
	e.log.WithFields(logrus.Fields{
		"template_id": templateID,
		"from":        current,
		"to":          target,
		"breaking":    report.Breaking,
		"new_version": report.NewVersion,
	}).Info("模板迁移完成")
	return report, nil
}

// fail 记录失败原因并恢复备份
func (e *Engine) fail(report *Report, backup *model.TemplateModel, dryRun bool, cause error) (*Report, error) {
	report.Success = false
	report.Error = cause.Error()
	if !dryRun {
		if err := e.templates.Restore(backup); err != nil {
			e.log.WithFields(logrus.Fields{
				"template_id": report.TemplateID,
				"error":       err.Error(),
			}).Error("迁移失败后恢复备份失败")
			report.Error = fmt.Sprintf("%s; restore failed: %s", report.Error, err)
		}
	}
	e.log.WithFields(logrus.Fields{
		"template_id": report.TemplateID,
		"from":        report.FromVersion,
		"to":          report.ToVersion,
		"error":       report.Error,
	}).Warn("模板迁移失败")
	return report, nil
}

// MigrateStudyTemplates 迁移一个研究引用的全部模板
// 尽力而为: 单个模板失败不阻止其余模板,也不回滚已成功的模板
func (e *Engine) MigrateStudyTemplates(ctx context.Context, studies StudyStore, studyID, target, actor string, dryRun bool) (*StudyReport, error) {
	ids, err := studies.TemplateIDs(studyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates of study %s: %w", studyID, err)
	}

	out := &StudyReport{StudyID: studyID, Reports: []*Report{}, Failed: []string{}}
	for _, id := range ids {
		report, err := e.Migrate(ctx, id, target, actor, dryRun)
		if err != nil {
			report = &Report{TemplateID: id, ToVersion: target, DryRun: dryRun, Steps: []StepLog{}, Error: err.Error()}
		}
		out.Reports = append(out.Reports, report)
		if !report.Success {
			out.Failed = append(out.Failed, id)
		}
	}
	return out, nil
}
