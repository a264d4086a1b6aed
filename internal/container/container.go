package container

import (
	"fmt"
	"time"

	"github.com/clinops/dashboard-gin/internal/api"
	"github.com/clinops/dashboard-gin/internal/auth"
	"github.com/clinops/dashboard-gin/internal/config"
	"github.com/clinops/dashboard-gin/internal/database"
	"github.com/clinops/dashboard-gin/internal/inheritance"
	"github.com/clinops/dashboard-gin/internal/merge"
	"github.com/clinops/dashboard-gin/internal/migration"
	"github.com/clinops/dashboard-gin/internal/repository"
	"github.com/clinops/dashboard-gin/internal/schema"
	"github.com/clinops/dashboard-gin/internal/service"
	"github.com/clinops/dashboard-gin/internal/validation"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、服务、客户端等
type Container struct {
	cfg               *config.Config
	log               *logrus.Logger
	db                *gorm.DB
	registry          *schema.Registry
	templateSvc       service.TemplateService
	migrationSvc      service.MigrationService
	exportSvc         service.ExportService
	studySvc          service.StudyService
	auditSvc          service.AuditLogService
	fgaClient         *auth.OpenFGAClient
	checker           auth.PermissionChecker
	keycloakValidator *auth.KeycloakTokenValidator
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config) (*Container, error) {
	log, err := api.NewLoggerFromConfig(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// 1. 初始化数据库（带重试机制）
	db, err := database.ConnectWithRetry(cfg.Database, config.IsProduction(cfg), 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := database.CreateIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return build(cfg, log, db)
}

// NewContainerWithDB 用已有数据库连接创建容器,供 CLI 和测试使用
func NewContainerWithDB(cfg *config.Config, db *gorm.DB) (*Container, error) {
	log, err := api.NewLoggerFromConfig(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return build(cfg, log, db)
}

// build 在数据库和日志就绪后装配其余依赖
func build(cfg *config.Config, log *logrus.Logger, db *gorm.DB) (*Container, error) {
	// 2. 仓储层
	templates := repository.NewTemplateRepository(db)
	versions := repository.NewTemplateVersionRepository(db)
	studies := repository.NewStudyRepository(db)
	datasets := repository.NewDatasetRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// 3. 校验器和 schema 注册表
	validator := validation.NewValidator(repository.NewDatasetCatalog(datasets))
	registry := schema.BuiltinRegistry(validator)
	if cfg.Schema.RegistryFile != "" {
		if err := registry.LoadFile(cfg.Schema.RegistryFile); err != nil {
			return nil, fmt.Errorf("failed to load schema registry file: %w", err)
		}
	}

	// 4. 合并器、继承解析器、迁移引擎
	merger := merge.NewMerger()
	resolver := inheritance.NewResolver(templates, merger)
	engine := migration.NewEngine(registry, validator, templates, log)
	migration.RegisterBuiltinMigrations(engine)

	// 5. 服务层
	auditSvc := service.NewAuditLogService(auditRepo)
	cacheTTL := time.Duration(cfg.Cache.TemplateTTL) * time.Second
	templateSvc := service.NewTemplateService(templates, versions, validator, registry, resolver, merger, auditSvc, cacheTTL)
	migrationSvc := service.NewMigrationService(engine, studies, auditSvc)
	exportSvc := service.NewExportService(templates, versions, validator, auditSvc, cfg.Export.Dir, cfg.Export.EncryptionKey)
	studySvc := service.NewStudyService(studies, templates, auditSvc)

	c := &Container{
		cfg:          cfg,
		log:          log,
		db:           db,
		registry:     registry,
		templateSvc:  templateSvc,
		migrationSvc: migrationSvc,
		exportSvc:    exportSvc,
		studySvc:     studySvc,
		auditSvc:     auditSvc,
	}

	// 6. 可选的 OpenFGA 客户端（带重试机制）,未配置 store 时为开放模式
	if cfg.OpenFGA.APIURL != "" && cfg.OpenFGA.StoreID != "" {
		fgaClient, err := auth.NewOpenFGAClientWithRetry(cfg.OpenFGA.APIURL, cfg.OpenFGA.StoreID, cfg.OpenFGA.ModelID, 3, time.Second, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenFGA client: %w", err)
		}
		c.fgaClient = fgaClient
		c.checker = auth.NewCachedOpenFGAClient(fgaClient, 30*time.Second)
	}

	// 7. 可选的 Keycloak Token 验证器
	if cfg.Keycloak.Issuer != "" {
		c.keycloakValidator = auth.NewKeycloakTokenValidator(cfg.Keycloak.Issuer, cfg.Keycloak.JWKSURL)
	}

	return c, nil
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// Logger 获取日志记录器
func (c *Container) Logger() *logrus.Logger {
	return c.log
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// SchemaRegistry 获取 schema 注册表
func (c *Container) SchemaRegistry() *schema.Registry {
	return c.registry
}

// TemplateService 获取模板服务
func (c *Container) TemplateService() service.TemplateService {
	return c.templateSvc
}

// MigrationService 获取模板迁移服务
func (c *Container) MigrationService() service.MigrationService {
	return c.migrationSvc
}

// ExportService 获取模板导入导出服务
func (c *Container) ExportService() service.ExportService {
	return c.exportSvc
}

// StudyService 获取研究服务
func (c *Container) StudyService() service.StudyService {
	return c.studySvc
}

// AuditLogService 获取审计日志服务
func (c *Container) AuditLogService() service.AuditLogService {
	return c.auditSvc
}

// OpenFGAClient 获取 OpenFGA 客户端,未配置时为 nil
func (c *Container) OpenFGAClient() *auth.OpenFGAClient {
	return c.fgaClient
}

// PermissionChecker 获取带缓存的权限检查器,未配置时为 nil
func (c *Container) PermissionChecker() auth.PermissionChecker {
	return c.checker
}

// KeycloakValidator 获取 Keycloak Token 验证器,未配置时为 nil
func (c *Container) KeycloakValidator() *auth.KeycloakTokenValidator {
	return c.keycloakValidator
}

// RouterDeps 装配 HTTP 路由依赖
func (c *Container) RouterDeps() *api.RouterDeps {
	return &api.RouterDeps{
		Config:     c.cfg,
		DB:         c.db,
		Validator:  c.keycloakValidator,
		FGA:        c.fgaClient,
		Checker:    c.checker,
		Templates:  api.NewTemplateController(c.templateSvc),
		Migrations: api.NewMigrationController(c.migrationSvc),
		Exports:    api.NewExportController(c.exportSvc),
		Studies:    api.NewStudyController(c.studySvc),
		AuditLogs:  api.NewAuditLogController(c.auditSvc),
	}
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	return nil
}
