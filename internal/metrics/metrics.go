package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 模板校验数
	validationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_validations_total",
			Help: "Total number of template validations",
		},
		[]string{"result"}, // valid, invalid
	)

	// 继承解析数
	resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_resolutions_total",
			Help: "Total number of inheritance resolutions",
		},
		[]string{"source"}, // cache, computed
	)

	// 深度合并数
	mergesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_merges_total",
			Help: "Total number of structure merges",
		},
		[]string{"policy"},
	)

	// 迁移结果数
	migrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_migrations_total",
			Help: "Total number of template migrations",
		},
		[]string{"target", "result"}, // result: success, failed
	)

	// 迁移步骤耗时
	migrationStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "migration_step_duration_seconds",
			Help:    "Migration step duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 模板状态分布
	templatesByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "templates_by_status",
			Help: "Number of templates by lifecycle status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(validationsTotal)
	prometheus.MustRegister(resolutionsTotal)
	prometheus.MustRegister(mergesTotal)
	prometheus.MustRegister(migrationsTotal)
	prometheus.MustRegister(migrationStepDuration)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(templatesByStatus)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		// 尝试注册 Go 运行时指标，如果已注册则忽略错误
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordValidation 记录模板校验结果
func RecordValidation(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	validationsTotal.WithLabelValues(result).Inc()
}

// RecordResolution 记录继承解析,区分缓存命中与真实计算
func RecordResolution(fromCache bool) {
	source := "computed"
	if fromCache {
		source = "cache"
	}
	resolutionsTotal.WithLabelValues(source).Inc()
}

// RecordMerge 记录一次结构深度合并
func RecordMerge(policy string) {
	mergesTotal.WithLabelValues(policy).Inc()
}

// RecordMigration 记录迁移结果
func RecordMigration(target string, success bool) {
	result := "failed"
	if success {
		result = "success"
	}
	migrationsTotal.WithLabelValues(target, result).Inc()
}

// RecordMigrationStep 记录单个迁移步骤的耗时
func RecordMigrationStep(step string, duration time.Duration) {
	migrationStepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateTemplatesByStatus 更新模板状态分布指标
func UpdateTemplatesByStatus(status string, count float64) {
	templatesByStatus.WithLabelValues(status).Set(count)
}
