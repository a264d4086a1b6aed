package model

import (
	"errors"
	"fmt"
	"time"
)

// TemplateVersionModel 模板版本快照,只追加不修改,构成审计/回滚轨迹
type TemplateVersionModel struct {
	ID                string    `gorm:"primaryKey;type:varchar(64)"`
	TemplateID        string    `gorm:"type:varchar(64);not null;index"`
	VersionMajor      int       `gorm:"not null"`
	VersionMinor      int       `gorm:"not null"`
	VersionPatch      int       `gorm:"not null"`
	SchemaVersion     string    `gorm:"type:varchar(16)"`
	Structure         []byte    `gorm:"type:jsonb;not null"` // 结构快照
	ChangeDescription string    `gorm:"type:text"`
	BreakingChanges   bool      `gorm:"not null;default:false"`
	CreatedAt         time.Time `gorm:"not null"`
	CreatedBy         string    `gorm:"type:varchar(64)"`
}

// TableName 指定表名
func (TemplateVersionModel) TableName() string {
	return "template_versions"
}

// Validate 验证版本快照模型
func (tv *TemplateVersionModel) Validate() error {
	if tv.ID == "" {
		return errors.New("version ID is required")
	}
	if tv.TemplateID == "" {
		return errors.New("template ID is required")
	}
	if len(tv.Structure) == 0 {
		return errors.New("structure snapshot is required")
	}
	return nil
}

// Version 返回语义化版本字符串
func (tv *TemplateVersionModel) Version() string {
	return versionString(tv.VersionMajor, tv.VersionMinor, tv.VersionPatch)
}

func versionString(major, minor, patch int) string {
	return fmt.Sprintf("%d.%d.%d", major, minor, patch)
}
