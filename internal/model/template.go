package model

import (
	"errors"
	"time"
)

// InheritanceType 模板继承方式
type InheritanceType string

const (
	InheritanceNone     InheritanceType = "NONE"
	InheritanceExtends  InheritanceType = "EXTENDS"
	InheritanceIncludes InheritanceType = "INCLUDES"
)

// TemplateStatus 模板生命周期状态
type TemplateStatus string

const (
	StatusDraft      TemplateStatus = "DRAFT"
	StatusPublished  TemplateStatus = "PUBLISHED"
	StatusDeprecated TemplateStatus = "DEPRECATED"
	StatusArchived   TemplateStatus = "ARCHIVED"
)

// statusOrder 状态机顺序,本服务内只允许向前流转
var statusOrder = map[TemplateStatus]int{
	StatusDraft:      0,
	StatusPublished:  1,
	StatusDeprecated: 2,
	StatusArchived:   3,
}

// ValidStatus 判断状态值是否合法
func ValidStatus(s TemplateStatus) bool {
	_, ok := statusOrder[s]
	return ok
}

// CanTransition 判断状态流转是否允许 (DRAFT -> PUBLISHED -> DEPRECATED -> ARCHIVED)
func CanTransition(from, to TemplateStatus) bool {
	f, ok1 := statusOrder[from]
	t, ok2 := statusOrder[to]
	if !ok1 || !ok2 {
		return false
	}
	return t == f+1
}

// ValidInheritanceType 判断继承方式是否合法
func ValidInheritanceType(t InheritanceType) bool {
	switch t {
	case InheritanceNone, InheritanceExtends, InheritanceIncludes:
		return true
	}
	return false
}

// TemplateModel 仪表盘模板数据模型
type TemplateModel struct {
	ID               string          `gorm:"primaryKey;type:varchar(64)"`
	Code             string          `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name             string          `gorm:"type:varchar(255);not null"`
	Description      string          `gorm:"type:text"`
	ParentTemplateID *string         `gorm:"type:varchar(64);index"`
	InheritanceType  InheritanceType `gorm:"type:varchar(16);not null;default:NONE"`
	Status           TemplateStatus  `gorm:"type:varchar(16);not null;default:DRAFT"`
	VersionMajor     int             `gorm:"not null;default:1"`
	VersionMinor     int             `gorm:"not null;default:0"`
	VersionPatch     int             `gorm:"not null;default:0"`
	SchemaVersion    string          `gorm:"type:varchar(16)"` // 结构对应的 schema 版本
	IsPublic         bool            `gorm:"not null;default:false"`
	Structure        []byte          `gorm:"type:jsonb;not null"` // 序列化后的结构文档
	CreatedAt        time.Time       `gorm:"not null"`
	UpdatedAt        time.Time       `gorm:"not null"`
	CreatedBy        string          `gorm:"type:varchar(64)"`
	UpdatedBy        string          `gorm:"type:varchar(64)"`
}

// TableName 指定表名
func (TemplateModel) TableName() string {
	return "templates"
}

// Validate 验证模板模型
func (tm *TemplateModel) Validate() error {
	if tm.ID == "" {
		return errors.New("template ID is required")
	}
	if tm.Code == "" {
		return errors.New("template code is required")
	}
	if tm.Name == "" {
		return errors.New("template name is required")
	}
	if len(tm.Structure) == 0 {
		return errors.New("template structure is required")
	}
	if !ValidInheritanceType(tm.InheritanceType) {
		return errors.New("invalid inheritance type")
	}
	// inheritance_type 为 NONE 当且仅当没有父模板
	if (tm.InheritanceType == InheritanceNone) != (tm.ParentTemplateID == nil) {
		return errors.New("inheritance type does not match parent reference")
	}
	return nil
}

// Version 返回语义化版本字符串
func (tm *TemplateModel) Version() string {
	return versionString(tm.VersionMajor, tm.VersionMinor, tm.VersionPatch)
}
