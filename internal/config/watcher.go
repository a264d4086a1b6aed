package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Watcher 配置监听器
// 监听配置文件变更并热更新,回调用于日志级别、缓存 TTL 这类可在线调整的项
type Watcher struct {
	config     *Config
	configPath string
	viper      *viper.Viper
	callbacks  []func(*Config)
	mu         sync.RWMutex
	stopped    bool
	stopMu     sync.RWMutex
}

// NewWatcher 创建配置监听器
func NewWatcher(cfg *Config, configPath string) *Watcher {
	v := viper.New()
	v.SetConfigFile(configPath)
	setDefaults(v)

	return &Watcher{
		config:     cfg,
		configPath: configPath,
		viper:      v,
		callbacks:  make([]func(*Config), 0),
	}
}

// OnChange 注册配置变更回调
func (w *Watcher) OnChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start 启动配置监听
func (w *Watcher) Start() error {
	if err := w.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	w.viper.WatchConfig()
	w.viper.OnConfigChange(func(e fsnotify.Event) {
		w.stopMu.RLock()
		stopped := w.stopped
		w.stopMu.RUnlock()
		if stopped {
			return
		}

		// 重新加载,失败时保留旧配置
		var newCfg Config
		if err := w.viper.Unmarshal(&newCfg); err != nil {
			logrus.WithFields(logrus.Fields{
				"file":  w.configPath,
				"error": err.Error(),
			}).Error("配置热更新解析失败,保留旧配置")
			return
		}

		// 回调快照在锁外执行,避免回调里再注册回调时死锁
		w.mu.RLock()
		callbacks := make([]func(*Config), len(w.callbacks))
		copy(callbacks, w.callbacks)
		w.mu.RUnlock()

		for _, callback := range callbacks {
			callback(&newCfg)
		}

		w.mu.Lock()
		w.config = &newCfg
		w.mu.Unlock()

		logrus.WithField("file", e.Name).Info("配置已热更新")
	})

	return nil
}

// Stop 停止配置监听
func (w *Watcher) Stop() {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()
	w.stopped = true
}

// GetConfig 获取当前配置
func (w *Watcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}
