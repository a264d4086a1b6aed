/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinops/dashboard-gin/internal/api"
	"github.com/clinops/dashboard-gin/internal/config"
	"github.com/clinops/dashboard-gin/internal/container"
	"github.com/clinops/dashboard-gin/internal/metrics"
	"github.com/clinops/dashboard-gin/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the Dashboard Gin API server.
The server will listen on the configured host and port,
and provide REST API interfaces for dashboard template management.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// 2. 初始化容器
		ctr, err := container.NewContainer(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		// 3. 配置热更新,日志级别变更即时生效
		if configPath != "" {
			watcher := config.NewWatcher(cfg, configPath)
			watcher.OnChange(func(updated *config.Config) {
				if level, err := logrus.ParseLevel(updated.Log.Level); err == nil {
					ctr.Logger().SetLevel(level)
				}
			})
			if err := watcher.Start(); err != nil {
				ctr.Logger().WithError(err).Warn("配置热更新未启用")
			} else {
				defer watcher.Stop()
			}
		}

		// 4. 设置路由
		router := api.SetupRoutes(ctr.RouterDeps())
		router.NoRoute(func(c *gin.Context) {
			api.Error(c, http.StatusNotFound, "route not found", "the requested route does not exist")
		})

		// 5. 周期性刷新数据库连接池和模板状态指标
		stopMetrics := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					_ = metrics.UpdateDatabaseConnections(ctr.DB())
					refreshTemplateStatusMetrics(ctr.DB())
				case <-stopMetrics:
					return
				}
			}
		}()
		defer close(stopMetrics)

		// 6. 启动服务器
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: router,
		}

		go func() {
			log.Printf("Server starting on %s", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()

		// 等待中断信号
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("Shutting down server...")

		// 优雅关闭
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		log.Println("Server exited")
		return nil
	},
}

// refreshTemplateStatusMetrics 按状态统计模板数量并更新指标
func refreshTemplateStatusMetrics(db *gorm.DB) {
	for _, status := range []model.TemplateStatus{
		model.StatusDraft,
		model.StatusPublished,
		model.StatusDeprecated,
		model.StatusArchived,
	} {
		var count int64
		if err := db.Model(&model.TemplateModel{}).Where("status = ?", status).Count(&count).Error; err == nil {
			metrics.UpdateTemplatesByStatus(string(status), float64(count))
		}
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().String("config", "", "Config file path (default: config.yaml)")
	serverCmd.Flags().String("host", "0.0.0.0", "Server host")
	serverCmd.Flags().Int("port", 8080, "Server port")
}
