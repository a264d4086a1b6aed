package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/clinops/dashboard-gin/internal/structure"
	"github.com/clinops/dashboard-gin/internal/validation"
)

// UnsupportedDowngradeError 不支持向旧版本迁移
type UnsupportedDowngradeError struct {
	From string
	To   string
}

func (e *UnsupportedDowngradeError) Error() string {
	return fmt.Sprintf("downgrade from schema %s to %s is not supported", e.From, e.To)
}

// Version 一个已注册的 schema 版本
type Version struct {
	Version     string             `yaml:"version"`
	Schema      *validation.Schema `yaml:"schema"`
	Changes     []string           `yaml:"changes"`
	Fingerprint func(doc *structure.Value) bool `yaml:"-"` // 版本推断用的结构指纹,可为空
}

// Registry 有序的 schema 版本注册表,注册顺序即版本从旧到新的顺序
type Registry struct {
	versions  []*Version
	index     map[string]int
	validator *validation.Validator
}

// NewRegistry 创建空注册表
func NewRegistry(validator *validation.Validator) *Registry {
	return &Registry{index: make(map[string]int), validator: validator}
}

// Register 追加一个版本,重复版本号返回错误
func (r *Registry) Register(v *Version) error {
	if v == nil || v.Version == "" {
		return fmt.Errorf("schema version must not be empty")
	}
	if _, ok := r.index[v.Version]; ok {
		return fmt.Errorf("schema version %s already registered", v.Version)
	}
	r.index[v.Version] = len(r.versions)
	r.versions = append(r.versions, v)
	return nil
}

// Versions 按从旧到新返回全部版本号
func (r *Registry) Versions() []string {
	out := make([]string, len(r.versions))
	for i, v := range r.versions {
		out[i] = v.Version
	}
	return out
}

// Latest 返回最新版本,空注册表返回 nil
func (r *Registry) Latest() *Version {
	if len(r.versions) == 0 {
		return nil
	}
	return r.versions[len(r.versions)-1]
}

// Get 按版本号取版本
func (r *Registry) Get(version string) (*Version, bool) {
	i, ok := r.index[version]
	if !ok {
		return nil, false
	}
	return r.versions[i], true
}

// ValidateAgainstSchema 按指定版本(为空取最新)检查结构符合性
func (r *Registry) ValidateAgainstSchema(doc *structure.Value, version string) (validation.Result, error) {
	var v *Version
	if version == "" {
		v = r.Latest()
		if v == nil {
			return validation.Result{}, fmt.Errorf("schema registry is empty")
		}
	} else {
		var ok bool
		v, ok = r.Get(version)
		if !ok {
			return validation.Result{}, fmt.Errorf("unknown schema version %s", version)
		}
	}
	return r.validator.ValidateConformance(doc, v.Schema), nil
}

// DetectVersion 推断结构的 schema 版本
// 先按从新到旧做严格符合性检查,全部不符合时退回结构指纹,
// 指纹也全部落空时按最旧版本处理
func (r *Registry) DetectVersion(doc *structure.Value) (string, error) {
	if len(r.versions) == 0 {
		return "", fmt.Errorf("schema registry is empty")
	}
	for i := len(r.versions) - 1; i >= 0; i-- {
		v := r.versions[i]
		if r.validator.ValidateConformance(doc, v.Schema).IsValid {
			return v.Version, nil
		}
	}
	for i := len(r.versions) - 1; i >= 0; i-- {
		v := r.versions[i]
		if v.Fingerprint != nil && v.Fingerprint(doc) {
			return v.Version, nil
		}
	}
	return r.versions[0].Version, nil
}

// UpgradePath 返回 from 到 to 之间的相邻版本对序列
// from == to 时返回空序列,目标比来源旧时返回 UnsupportedDowngradeError
func (r *Registry) UpgradePath(from, to string) ([][2]string, error) {
	fi, ok := r.index[from]
	if !ok {
		return nil, fmt.Errorf("unknown schema version %s", from)
	}
	ti, ok := r.index[to]
	if !ok {
		return nil, fmt.Errorf("unknown schema version %s", to)
	}
	if ti < fi {
		return nil, &UnsupportedDowngradeError{From: from, To: to}
	}
	var path [][2]string
	for i := fi; i < ti; i++ {
		path = append(path, [2]string{r.versions[i].Version, r.versions[i+1].Version})
	}
	return path, nil
}

// registryFile schema 定义文件的顶层结构
type registryFile struct {
	Versions []*Version `yaml:"versions"`
}

// LoadFile 从 YAML 文件加载版本定义并追加到注册表
// 文件中的版本没有指纹,只参与符合性检查
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read schema registry file: %w", err)
	}
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse schema registry file: %w", err)
	}
	for _, v := range file.Versions {
		if err := r.Register(v); err != nil {
			return err
		}
	}
	return nil
}
